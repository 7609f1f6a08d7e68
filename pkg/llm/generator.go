package llm

import (
	"context"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

// NewGenerator creates the generator for the configured provider, wrapped
// with retries when Retry.Attempts is greater than one
func NewGenerator(ctx context.Context, config Config) (skilltypes.Generator, error) {
	var (
		gen skilltypes.Generator
		err error
	)
	switch config.Provider {
	case ProviderAnthropic, "":
		gen = NewAnthropicGenerator(config)
	case ProviderOpenAI:
		gen, err = NewOpenAIGenerator(config)
	case ProviderGoogle:
		gen, err = NewGoogleGenerator(ctx, config)
	default:
		return nil, errors.Errorf("unsupported provider %q", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	if config.Retry.Attempts > 1 {
		gen = WithRetry(gen, config.Retry)
	}
	return gen, nil
}

// resolveOptions fills per-call options from the provider defaults
func resolveOptions(config Config, defaultModel string, opts skilltypes.GenerateOptions) skilltypes.GenerateOptions {
	if opts.Model == "" {
		opts.Model = config.Model
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = config.MaxTokens
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature == nil {
		opts.Temperature = config.Temperature
	}
	return opts
}
