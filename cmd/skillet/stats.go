package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry statistics",
	Long:  `Show how many skills are registered, grouped by category, origin and execution type.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")
		return runStats(cmd.Context(), output)
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached results of a running server",
	Long: `The result cache lives in memory, so it only outlives a single command inside
"skillet serve". This command asks a running server to drop its cache.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("server")
		return runCacheClear(cmd.Context(), addr)
	},
}

// HistoryConfig holds configuration for the history command
type HistoryConfig struct {
	Skill   string
	Since   time.Duration
	Limit   int
	Summary bool
	Output  string
}

// NewHistoryConfig creates a HistoryConfig with default values
func NewHistoryConfig() *HistoryConfig {
	return &HistoryConfig{Limit: history.DefaultListLimit, Output: formatTable}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded skill executions",
	Long: `Show executions recorded in the history database, newest first.

Examples:
  skillet history
  skillet history --skill summarize --since 24h
  skillet history --summary`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistory(cmd.Context(), getHistoryConfigFromFlags(cmd))
	},
}

func init() {
	statsCmd.Flags().StringP("output", "o", formatTable, "Output format (table, json, yaml)")

	cacheClearCmd.Flags().String("server", "http://localhost:8080", "Address of the running skillet server")
	cacheCmd.AddCommand(cacheClearCmd)

	defaults := NewHistoryConfig()
	historyCmd.Flags().String("skill", defaults.Skill, "Only show executions of this skill")
	historyCmd.Flags().Duration("since", defaults.Since, "Only show executions newer than this duration")
	historyCmd.Flags().Int("limit", defaults.Limit, "Maximum number of executions to show")
	historyCmd.Flags().Bool("summary", defaults.Summary, "Aggregate executions per skill")
	historyCmd.Flags().StringP("output", "o", defaults.Output, "Output format (table, json, yaml)")
}

func getHistoryConfigFromFlags(cmd *cobra.Command) *HistoryConfig {
	config := NewHistoryConfig()
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if since, err := cmd.Flags().GetDuration("since"); err == nil {
		config.Since = since
	}
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if summary, err := cmd.Flags().GetBool("summary"); err == nil {
		config.Summary = summary
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	return config
}

func runStats(ctx context.Context, output string) error {
	if err := validateFormat(output, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	stats := e.registry.Stats(ctx)
	if output != formatTable {
		return writeFormatted(os.Stdout, output, stats)
	}

	presenter.Section("Skills")
	presenter.KeyValues(map[string]string{
		"Total":      strconv.Itoa(stats.TotalSkills),
		"Discovered": strconv.Itoa(stats.Discovered),
		"Invalid":    strconv.Itoa(stats.Invalid),
		"Overridden": strconv.Itoa(stats.Overridden),
		"Executions": strconv.FormatInt(stats.Executions, 10),
	})

	printCounts("By category", stats.ByCategory)
	byOrigin := make(map[string]int, len(stats.ByOrigin))
	for k, v := range stats.ByOrigin {
		byOrigin[string(k)] = v
	}
	printCounts("By origin", byOrigin)
	byType := make(map[string]int, len(stats.ByExecutionType))
	for k, v := range stats.ByExecutionType {
		byType[string(k)] = v
	}
	printCounts("By execution type", byType)
	return nil
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	presenter.Section(title)
	presenter.Table([]string{"NAME", "SKILLS"}, rows)
}

func runHistory(ctx context.Context, config *HistoryConfig) error {
	if err := validateFormat(config.Output, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}

	store, err := history.Open(ctx, historyPath())
	if err != nil {
		return err
	}
	defer store.Close()

	if config.Summary {
		summaries, err := store.Summary(ctx)
		if err != nil {
			return err
		}
		if config.Output != formatTable {
			return writeFormatted(os.Stdout, config.Output, summaries)
		}
		rows := make([][]string, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, []string{
				s.Skill,
				strconv.FormatInt(s.Executions, 10),
				strconv.FormatInt(s.Failures, 10),
				strconv.FormatInt(s.CacheHits, 10),
				s.AvgDuration.Round(time.Millisecond).String(),
			})
		}
		presenter.Table([]string{"SKILL", "EXECUTIONS", "FAILURES", "CACHE HITS", "AVG DURATION"}, rows)
		return nil
	}

	opts := history.ListOptions{Skill: config.Skill, Limit: config.Limit}
	if config.Since > 0 {
		opts.Since = time.Now().Add(-config.Since)
	}
	records, err := store.List(ctx, opts)
	if err != nil {
		return err
	}
	if config.Output != formatTable {
		return writeFormatted(os.Stdout, config.Output, records)
	}
	if len(records) == 0 {
		presenter.Info("No executions recorded")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		if r.Cached {
			status += " (cached)"
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			r.Skill,
			string(r.Type),
			status,
			r.Duration.Round(time.Millisecond).String(),
			truncate(r.Error, 50),
		})
	}
	presenter.Table([]string{"STARTED", "SKILL", "TYPE", "STATUS", "DURATION", "ERROR"}, rows)
	return nil
}

func historyPath() string {
	return viper.GetString("history.path")
}

func runCacheClear(ctx context.Context, addr string) error {
	if err := server.NewClient(addr).ClearCache(ctx); err != nil {
		return errors.Wrap(err, "failed to clear cache")
	}
	presenter.Success(fmt.Sprintf("Cleared the result cache of %s", addr))
	return nil
}
