// Package script runs the code bodies of script skills inside restricted
// interpreters. Scripts only see their bindings: no filesystem, network or
// process access is exposed.
package script

import (
	"context"
	"strings"
	"time"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds a single script run
const DefaultTimeout = 10 * time.Second

// Interpreter routes a script to the engine for its language
type Interpreter struct {
	timeout time.Duration
	engines map[string]engine
}

type engine interface {
	run(ctx context.Context, code string, bindings skilltypes.Values) (any, error)
}

// Option configures an Interpreter
type Option func(*Interpreter)

// WithTimeout bounds each run. Zero or negative keeps the default.
func WithTimeout(timeout time.Duration) Option {
	return func(i *Interpreter) {
		if timeout > 0 {
			i.timeout = timeout
		}
	}
}

// New creates an Interpreter supporting javascript and POSIX shell
func New(opts ...Option) *Interpreter {
	i := &Interpreter{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(i)
	}

	js := &javascript{}
	sh := &shell{}
	i.engines = map[string]engine{
		"javascript": js,
		"js":         js,
		"sh":         sh,
		"bash":       sh,
		"shell":      sh,
	}
	return i
}

// Languages returns the supported language names
func (i *Interpreter) Languages() []string {
	return []string{"javascript", "js", "sh", "bash", "shell"}
}

// Run executes code with the given read-only bindings and returns what the
// script produced
func (i *Interpreter) Run(ctx context.Context, language, code string, bindings skilltypes.Values) (any, error) {
	eng, ok := i.engines[strings.ToLower(language)]
	if !ok {
		return nil, errors.Errorf("unsupported script language %q", language)
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	result, err := eng.run(ctx, code, bindings)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, errors.Wrapf(ctxErr, "script exceeded timeout of %s", i.timeout)
		}
		return nil, err
	}
	return result, nil
}
