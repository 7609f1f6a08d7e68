package skills

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/tailscale/hujson"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

const skillMarkdownFile = "SKILL.md"

// definitionExtensions are the file extensions recognized as skill definitions
var definitionExtensions = []string{".yaml", ".yml", ".json", ".jsonc", ".toml"}

// definition mirrors a skill document before the execution block is resolved
type definition struct {
	Name         string                 `mapstructure:"name"`
	Version      string                 `mapstructure:"version"`
	Description  string                 `mapstructure:"description"`
	Category     string                 `mapstructure:"category"`
	Tags         []string               `mapstructure:"tags"`
	Inputs       []skilltypes.Parameter `mapstructure:"inputs"`
	Outputs      []skilltypes.Parameter `mapstructure:"outputs"`
	Execution    map[string]any         `mapstructure:"execution"`
	Dependencies []any                  `mapstructure:"dependencies"`
}

// IsDefinitionFile reports whether the file name looks like a skill definition
func IsDefinitionFile(name string) bool {
	base := filepath.Base(name)
	if base == skillMarkdownFile {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, known := range definitionExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// ParseDefinition decodes a skill document. The format is chosen from the
// file name: SKILL.md frontmatter, YAML, JSON, JSONC or TOML. The returned
// skill is not validated.
func ParseDefinition(path string, data []byte) (*skilltypes.Skill, error) {
	var (
		raw  map[string]any
		body string
		err  error
	)

	if filepath.Base(path) == skillMarkdownFile {
		raw, body, err = parseMarkdown(data)
	} else {
		raw, err = parseDocument(strings.ToLower(filepath.Ext(path)), data)
	}
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("empty skill definition")
	}

	skill, err := decodeSkill(raw, body)
	if err != nil {
		return nil, err
	}
	skill.Source.Path = path
	return skill, nil
}

func parseDocument(ext string, data []byte) (map[string]any, error) {
	raw := map[string]any{}
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to parse yaml")
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to parse json")
		}
	case ".jsonc":
		standard, err := hujson.Standardize(data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse jsonc")
		}
		if err := json.Unmarshal(standard, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to parse jsonc")
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, errors.Wrap(err, "failed to parse toml")
		}
	default:
		return nil, errors.Errorf("unsupported definition format %q", ext)
	}
	return normalize(raw).(map[string]any), nil
}

// parseMarkdown reads SKILL.md frontmatter as the definition and returns the
// body, which serves as the prompt of an ai-prompt skill.
func parseMarkdown(data []byte) (map[string]any, string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(data, &buf, parser.WithContext(pctx)); err != nil {
		return nil, "", errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to parse frontmatter")
	}
	if metaData == nil {
		return nil, "", errors.New("missing frontmatter")
	}

	return normalize(metaData).(map[string]any), extractBodyContent(string(data)), nil
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}
	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimSpace(strings.Join(lines[frontmatterEnd+1:], "\n"))
}

// normalize converts the map[interface{}]interface{} values produced by some
// YAML decoders into map[string]any, recursively.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			val[k] = normalize(inner)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalize(inner)
		}
		return out
	case []any:
		for i, inner := range val {
			val[i] = normalize(inner)
		}
		return val
	case []map[string]any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	default:
		return v
	}
}

func newDecoder(result any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
}

func decodeSkill(raw map[string]any, body string) (*skilltypes.Skill, error) {
	var def definition
	decoder, err := newDecoder(&def)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create definition decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode skill definition")
	}

	skill := &skilltypes.Skill{
		Name:        def.Name,
		Version:     def.Version,
		Description: def.Description,
		Category:    def.Category,
		Tags:        def.Tags,
		Inputs:      def.Inputs,
		Outputs:     def.Outputs,
	}

	deps, err := decodeDependencies(def.Dependencies)
	if err != nil {
		return nil, err
	}
	skill.Dependencies = deps

	if def.Execution == nil && body != "" {
		skill.Execution = &skilltypes.PromptExecution{Prompt: body}
		return skill, nil
	}
	if def.Execution == nil {
		return skill, nil
	}

	execution, err := DecodeExecution(def.Name, def.Execution)
	if err != nil {
		return nil, err
	}
	if prompt, ok := execution.(*skilltypes.PromptExecution); ok && prompt.Prompt == "" {
		prompt.Prompt = body
	}
	skill.Execution = execution
	return skill, nil
}

// DecodeExecution resolves an execution block into its variant using the
// "type" discriminator. An unknown type is reported as a *ValidationError.
func DecodeExecution(skillName string, raw map[string]any) (skilltypes.Execution, error) {
	kindValue, _ := raw["type"].(string)
	kind := skilltypes.ExecutionKind(kindValue)

	var execution skilltypes.Execution
	switch kind {
	case skilltypes.ExecutionAIPrompt:
		execution = &skilltypes.PromptExecution{}
	case skilltypes.ExecutionScript:
		execution = &skilltypes.ScriptExecution{}
	case skilltypes.ExecutionMCP:
		execution = &skilltypes.MCPExecution{}
	case skilltypes.ExecutionComposite:
		execution = &skilltypes.CompositeExecution{}
	case "":
		return nil, skilltypes.NewValidationError(skillName, "execution.type", "execution type is required")
	default:
		return nil, skilltypes.NewValidationError(skillName, "execution.type", "unknown execution type %q", kind)
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != "type" {
			fields[k] = v
		}
	}

	decoder, err := newDecoder(execution)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create execution decoder")
	}
	if err := decoder.Decode(fields); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s execution", kind)
	}
	return execution, nil
}

// decodeDependencies accepts either bare names or {name, optional} objects
func decodeDependencies(raw []any) ([]skilltypes.Dependency, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	deps := make([]skilltypes.Dependency, 0, len(raw))
	for i, item := range raw {
		switch v := item.(type) {
		case string:
			deps = append(deps, skilltypes.Dependency{Name: v})
		case map[string]any:
			var dep skilltypes.Dependency
			decoder, err := newDecoder(&dep)
			if err != nil {
				return nil, errors.Wrap(err, "failed to create dependency decoder")
			}
			if err := decoder.Decode(v); err != nil {
				return nil, errors.Wrapf(err, "failed to decode dependency %d", i)
			}
			deps = append(deps, dep)
		default:
			return nil, errors.Errorf("dependency %d has unsupported form %T", i, item)
		}
	}
	return deps, nil
}
