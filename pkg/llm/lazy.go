package llm

import (
	"context"
	"sync"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// LazyGenerator defers provider construction to the first Generate call, so
// commands that never run an ai-prompt skill need no credentials
type LazyGenerator struct {
	config Config

	once sync.Once
	gen  skilltypes.Generator
	err  error
}

// NewLazyGenerator creates a generator for config on first use
func NewLazyGenerator(config Config) *LazyGenerator {
	return &LazyGenerator{config: config}
}

// Generate implements skilltypes.Generator
func (l *LazyGenerator) Generate(ctx context.Context, prompt string, opts skilltypes.GenerateOptions) (string, error) {
	l.once.Do(func() {
		l.gen, l.err = NewGenerator(ctx, l.config)
	})
	if l.err != nil {
		return "", l.err
	}
	return l.gen.Generate(ctx, prompt, opts)
}
