package main

import (
	"context"

	"github.com/jingkaihe/skillet/pkg/executor"
	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/llm"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/mcp"
	"github.com/jingkaihe/skillet/pkg/script"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// engine is everything a command needs to run skills
type engine struct {
	registry *skills.Registry
	history  *history.Store
}

// Close releases the registry collaborators
func (e *engine) Close(ctx context.Context) {
	if err := e.registry.Close(); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to close skill engine")
	}
}

// newEngine builds the registry from configuration and runs discovery. The
// language-model client and MCP servers are created lazily on first use by
// their skills, so listing and validating never need credentials.
func newEngine(ctx context.Context) (*engine, error) {
	config, err := skills.GetConfigFromViper()
	if err != nil {
		return nil, err
	}

	llmConfig, err := llm.GetConfigFromViper()
	if err != nil {
		return nil, err
	}
	mcpConfig, err := mcp.GetConfigFromViper()
	if err != nil {
		return nil, err
	}
	tools, err := mcp.NewManager(mcpConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure mcp servers")
	}

	exec := executor.New(
		executor.WithGenerator(llm.NewLazyGenerator(llmConfig)),
		executor.WithInterpreter(script.New(script.WithTimeout(viper.GetDuration("script.timeout")))),
		executor.WithToolCaller(tools),
	)

	opts := []skills.RegistryOption{
		skills.WithExecutor(exec),
		skills.WithCloser(tools.Close),
	}

	e := &engine{}
	if viper.GetBool("history.enabled") && !viper.GetBool("no_history") {
		store, err := history.Open(ctx, viper.GetString("history.path"))
		if err != nil {
			logger.G(ctx).WithError(err).Warn("execution history unavailable")
		} else {
			e.history = store
			opts = append(opts, skills.WithRecorder(store), skills.WithCloser(store.Close))
		}
	}

	registry, err := skills.NewRegistryFromConfig(config, opts...)
	if err != nil {
		return nil, err
	}
	exec.SetRunner(registry)

	if err := registry.Initialize(ctx); err != nil {
		registry.Close()
		return nil, errors.Wrap(err, "failed to discover skills")
	}
	if report := registry.LastReport(); report != nil && len(report.Skipped) > 0 {
		logger.G(ctx).WithField("skipped", len(report.Skipped)).Warn("some skill definitions are invalid, run `skillet skill validate` for details")
	}

	e.registry = registry
	return e, nil
}
