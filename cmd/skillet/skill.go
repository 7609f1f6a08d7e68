package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/server"
	"github.com/jingkaihe/skillet/pkg/skills"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// SkillListConfig holds the filters shared by list and search
type SkillListConfig struct {
	Category string
	Tags     []string
	Type     string
	Output   string
}

// NewSkillListConfig creates a SkillListConfig with default values
func NewSkillListConfig() *SkillListConfig {
	return &SkillListConfig{Output: formatTable}
}

// SkillShowConfig holds configuration for the show command
type SkillShowConfig struct {
	Schema bool
	Output string
}

// NewSkillShowConfig creates a SkillShowConfig with default values
func NewSkillShowConfig() *SkillShowConfig {
	return &SkillShowConfig{Output: formatYAML}
}

// SkillRunConfig holds configuration for the run command
type SkillRunConfig struct {
	Inputs      []string
	InputsFile  string
	Context     []string
	ContextFile string
	File        string
	JSON        bool
	Timeout     time.Duration
	Server      string
}

// NewSkillRunConfig creates a SkillRunConfig with default values
func NewSkillRunConfig() *SkillRunConfig {
	return &SkillRunConfig{}
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Discover, inspect and run skills",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available skills",
	Long:  `List every valid skill found in the built-in, community and custom skill directories.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSkillSearch(cmd.Context(), "", getSkillListConfigFromFlags(cmd))
	},
}

var skillSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search skills by name, description or tag",
	Long: `Search skills with a case-insensitive substring match on name, description and tags.

Examples:
  skillet skill search summar
  skillet skill search review --category engineering
  skillet skill search "" --type script -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSkillSearch(cmd.Context(), args[0], getSkillListConfigFromFlags(cmd))
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a skill definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSkillShow(cmd.Context(), args[0], getSkillShowConfigFromFlags(cmd))
	},
}

var skillRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Execute a skill",
	Long: `Execute a skill by name, or a definition file with --file.

Input values that parse as JSON keep their type, anything else is passed as a string.

Examples:
  skillet skill run word-count --input text="hello there"
  skillet skill run semver-bump --input version=1.4.2 --input part=minor
  skillet skill run summarize --inputs-file inputs.yaml --json
  skillet skill run --file ./my-skill.yaml --input name=world`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return runSkillRun(cmd.Context(), name, getSkillRunConfigFromFlags(cmd))
	},
}

var skillValidateCmd = &cobra.Command{
	Use:   "validate [path...]",
	Short: "Validate skill definitions",
	Long: `Validate skill definition files or directories. Without arguments, every
configured skill directory is scanned and invalid definitions are reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSkillValidate(cmd.Context(), args)
	},
}

var skillInstallCmd = &cobra.Command{
	Use:   "install <source>",
	Short: "Install skills from a file, directory or URL",
	Long: `Install skill definitions into the custom skill directory. The source may be a
definition file, a directory of definitions, or an http(s) URL of a single definition.
Every definition is validated before anything is written.

Examples:
  skillet skill install ./skills/review/SKILL.md
  skillet skill install ./team-skills
  skillet skill install https://example.com/skills/translate.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSkillInstall(cmd.Context(), args[0])
	},
}

func init() {
	listDefaults := NewSkillListConfig()
	for _, c := range []*cobra.Command{skillListCmd, skillSearchCmd} {
		c.Flags().String("category", listDefaults.Category, "Only show skills in this category")
		c.Flags().StringSlice("tag", listDefaults.Tags, "Only show skills with this tag (repeatable)")
		c.Flags().String("type", listDefaults.Type, "Only show skills of this execution type (ai-prompt, script, mcp, composite)")
		c.Flags().StringP("output", "o", listDefaults.Output, "Output format (table, json, yaml)")
	}

	showDefaults := NewSkillShowConfig()
	skillShowCmd.Flags().Bool("schema", showDefaults.Schema, "Print the JSON schema of inputs and outputs instead of the definition")
	skillShowCmd.Flags().StringP("output", "o", showDefaults.Output, "Output format (yaml, json)")

	runDefaults := NewSkillRunConfig()
	skillRunCmd.Flags().StringArrayP("input", "i", runDefaults.Inputs, "Input value as key=value (repeatable)")
	skillRunCmd.Flags().String("inputs-file", runDefaults.InputsFile, "YAML or JSON file of input values")
	skillRunCmd.Flags().StringArray("context", runDefaults.Context, "Context value as key=value (repeatable)")
	skillRunCmd.Flags().String("context-file", runDefaults.ContextFile, "YAML or JSON file of context values")
	skillRunCmd.Flags().StringP("file", "f", runDefaults.File, "Run the definition in this file instead of a registered skill")
	skillRunCmd.Flags().Bool("json", runDefaults.JSON, "Print outputs as JSON")
	skillRunCmd.Flags().Duration("timeout", runDefaults.Timeout, "Abort the execution after this duration (0 for no limit)")
	skillRunCmd.Flags().String("server", runDefaults.Server, "Execute on a running skillet server at this address instead of locally")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillSearchCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(withTracing(skillRunCmd))
	skillCmd.AddCommand(skillValidateCmd)
	skillCmd.AddCommand(skillInstallCmd)
}

func getSkillListConfigFromFlags(cmd *cobra.Command) *SkillListConfig {
	config := NewSkillListConfig()
	if category, err := cmd.Flags().GetString("category"); err == nil {
		config.Category = category
	}
	if tags, err := cmd.Flags().GetStringSlice("tag"); err == nil {
		config.Tags = tags
	}
	if typ, err := cmd.Flags().GetString("type"); err == nil {
		config.Type = typ
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	return config
}

func getSkillShowConfigFromFlags(cmd *cobra.Command) *SkillShowConfig {
	config := NewSkillShowConfig()
	if schema, err := cmd.Flags().GetBool("schema"); err == nil {
		config.Schema = schema
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	return config
}

func getSkillRunConfigFromFlags(cmd *cobra.Command) *SkillRunConfig {
	config := NewSkillRunConfig()
	if inputs, err := cmd.Flags().GetStringArray("input"); err == nil {
		config.Inputs = inputs
	}
	if file, err := cmd.Flags().GetString("inputs-file"); err == nil {
		config.InputsFile = file
	}
	if execCtx, err := cmd.Flags().GetStringArray("context"); err == nil {
		config.Context = execCtx
	}
	if file, err := cmd.Flags().GetString("context-file"); err == nil {
		config.ContextFile = file
	}
	if file, err := cmd.Flags().GetString("file"); err == nil {
		config.File = file
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	if timeout, err := cmd.Flags().GetDuration("timeout"); err == nil {
		config.Timeout = timeout
	}
	if addr, err := cmd.Flags().GetString("server"); err == nil {
		config.Server = addr
	}
	return config
}

func runSkillSearch(ctx context.Context, query string, config *SkillListConfig) error {
	if err := validateFormat(config.Output, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}
	kind := skilltypes.ExecutionKind(config.Type)
	if kind != "" && !kind.IsValid() {
		return errors.Errorf("unknown execution type %q", config.Type)
	}

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	found := e.registry.Search(query, skills.Filters{
		Category: config.Category,
		Tags:     config.Tags,
		Type:     kind,
	})

	if config.Output != formatTable {
		if found == nil {
			found = []*skilltypes.Skill{}
		}
		return writeFormatted(os.Stdout, config.Output, found)
	}

	if len(found) == 0 {
		presenter.Info("No skills found")
		return nil
	}
	rows := make([][]string, 0, len(found))
	for _, skill := range found {
		rows = append(rows, []string{
			skill.Name,
			skill.Version,
			string(skill.ExecutionKind()),
			skill.Category,
			string(skill.Source.Origin),
			truncate(skill.Description, 60),
		})
	}
	presenter.Table([]string{"NAME", "VERSION", "TYPE", "CATEGORY", "ORIGIN", "DESCRIPTION"}, rows)
	return nil
}

func runSkillShow(ctx context.Context, name string, config *SkillShowConfig) error {
	if err := validateFormat(config.Output, formatJSON, formatYAML); err != nil {
		return err
	}

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	skill, ok := e.registry.Get(name)
	if !ok {
		return &skilltypes.NotFoundError{Name: name}
	}

	if config.Schema {
		// jsonschema types only carry JSON tags, so the schema is always JSON
		return writeFormatted(os.Stdout, formatJSON, map[string]any{
			"inputs":  skills.InputSchema(skill),
			"outputs": skills.OutputSchema(skill),
		})
	}
	return writeFormatted(os.Stdout, config.Output, skill)
}

func runSkillRun(ctx context.Context, name string, config *SkillRunConfig) error {
	if name == "" && config.File == "" {
		return errors.New("a skill name or --file is required")
	}
	if name != "" && config.File != "" {
		return errors.New("use either a skill name or --file, not both")
	}
	if config.Server != "" && config.File != "" {
		return errors.New("--file cannot be executed on a remote server")
	}

	execCtx, err := collectValues(config.ContextFile, config.Context, nil)
	if err != nil {
		return errors.Wrap(err, "invalid context")
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	if config.Server != "" {
		client := server.NewClient(config.Server)
		params, err := client.Inputs(ctx, name)
		if err != nil {
			return err
		}
		inputs, err := collectValues(config.InputsFile, config.Inputs, params)
		if err != nil {
			return errors.Wrap(err, "invalid inputs")
		}
		outputs, err := client.Execute(ctx, name, inputs, execCtx)
		if err != nil {
			return err
		}
		return printRunOutputs(name, outputs, config.JSON)
	}

	var inline *skilltypes.Skill
	if config.File != "" {
		data, err := os.ReadFile(config.File)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", config.File)
		}
		if inline, err = skills.ParseDefinition(config.File, data); err != nil {
			return err
		}
		inline.Source.Origin = skilltypes.OriginInline
		name = inline.Name
	}

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(context.WithoutCancel(ctx))

	skill := inline
	if skill == nil {
		var ok bool
		if skill, ok = e.registry.Get(name); !ok {
			return &skilltypes.NotFoundError{Name: name}
		}
	}
	inputs, err := collectValues(config.InputsFile, config.Inputs, skill.Inputs)
	if err != nil {
		return errors.Wrap(err, "invalid inputs")
	}

	var outputs skilltypes.Values
	if inline != nil {
		outputs, err = e.registry.ExecuteSkill(ctx, inline, inputs, execCtx)
	} else {
		outputs, err = e.registry.Execute(ctx, name, inputs, execCtx)
	}
	if err != nil {
		return err
	}

	return printRunOutputs(name, outputs, config.JSON)
}

func printRunOutputs(name string, outputs skilltypes.Values, asJSON bool) error {
	if asJSON {
		return writeFormatted(os.Stdout, formatJSON, outputs)
	}
	printOutputs(name, outputs)
	return nil
}

func printOutputs(name string, outputs skilltypes.Values) {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		fmt.Println(formatOutput(outputs[keys[0]]))
		return
	}

	presenter.Section(name)
	for _, k := range keys {
		fmt.Printf("%s: %s\n", color.New(color.Bold).Sprint(k), formatOutput(outputs[k]))
	}
}

func formatOutput(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		var sb strings.Builder
		if err := writeFormatted(&sb, formatJSON, val); err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSpace(sb.String())
	}
}

func runSkillValidate(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return validateConfiguredDirs(ctx)
	}

	validator := skills.NewValidator()
	failed := 0
	checked := 0
	for _, p := range paths {
		files, err := definitionFiles(p)
		if err != nil {
			return err
		}
		for _, file := range files {
			checked++
			data, err := os.ReadFile(file)
			if err == nil {
				var skill *skilltypes.Skill
				if skill, err = skills.ParseDefinition(file, data); err == nil {
					err = validator.Validate(skill)
				}
			}
			if err != nil {
				failed++
				presenter.Error(err, file)
				continue
			}
			presenter.Success(file)
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d definitions are invalid", failed, checked)
	}
	presenter.Info(fmt.Sprintf("%d definitions are valid", checked))
	return nil
}

func validateConfiguredDirs(ctx context.Context) error {
	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	report := e.registry.LastReport()
	for _, skipped := range report.Skipped {
		presenter.Error(skipped.Err, skipped.Path)
	}
	presenter.Info(fmt.Sprintf("Scanned %d definitions: %d valid, %d invalid", report.Scanned, report.Valid, len(report.Skipped)))
	if len(report.Overridden) > 0 {
		presenter.Info(fmt.Sprintf("Overridden by a later definition: %s", strings.Join(report.Overridden, ", ")))
	}
	return report.Err()
}

// definitionFiles expands a path into the definition files beneath it
func definitionFiles(p string) ([]string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", p)
	}
	if !info.IsDir() {
		return []string{p}, nil
	}

	var files []string
	err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != p && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if skills.IsDefinitionFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", p)
	}
	return files, nil
}

func runSkillInstall(ctx context.Context, source string) error {
	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	names, err := e.registry.Install(ctx, source)
	for _, name := range names {
		presenter.Success(fmt.Sprintf("Installed skill %s", name))
	}
	return err
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
