// Package executor runs validated skills by dispatching on their execution
// kind to the language-model, script, capability-server or composite backend.
package executor

import (
	"context"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

// Executor dispatches skills to their backends. A backend collaborator that
// is not configured makes skills of that kind fail with an ExecutionError.
type Executor struct {
	generator   skilltypes.Generator
	interpreter skilltypes.Interpreter
	toolCaller  skilltypes.ToolCaller
	runner      skilltypes.Runner
}

// Option configures an Executor
type Option func(*Executor)

// WithGenerator sets the language-model collaborator for ai-prompt skills
func WithGenerator(g skilltypes.Generator) Option {
	return func(e *Executor) { e.generator = g }
}

// WithInterpreter sets the script collaborator for script skills
func WithInterpreter(i skilltypes.Interpreter) Option {
	return func(e *Executor) { e.interpreter = i }
}

// WithToolCaller sets the capability-server collaborator for mcp skills
func WithToolCaller(c skilltypes.ToolCaller) Option {
	return func(e *Executor) { e.toolCaller = c }
}

// WithRunner sets how composite steps invoke nested skills. The registry
// is normally passed here so steps go through validation and caching.
func WithRunner(r skilltypes.Runner) Option {
	return func(e *Executor) { e.runner = r }
}

// New creates an Executor
func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetRunner sets the runner after construction. The registry and executor
// reference each other, so one of them has to be wired late.
func (e *Executor) SetRunner(r skilltypes.Runner) {
	e.runner = r
}

// Execute runs skill with already validated inputs. deps holds the resolved
// definitions of everything the skill depends on.
func (e *Executor) Execute(ctx context.Context, skill *skilltypes.Skill, inputs, execCtx skilltypes.Values, deps map[string]*skilltypes.Skill) (skilltypes.Values, error) {
	if inputs == nil {
		inputs = skilltypes.Values{}
	}
	if execCtx == nil {
		execCtx = skilltypes.Values{}
	}

	var (
		outputs skilltypes.Values
		err     error
	)
	switch exec := skill.Execution.(type) {
	case *skilltypes.PromptExecution:
		outputs, err = e.executePrompt(ctx, skill, exec, inputs, execCtx)
	case *skilltypes.ScriptExecution:
		outputs, err = e.executeScript(ctx, skill, exec, inputs, execCtx)
	case *skilltypes.MCPExecution:
		outputs, err = e.executeMCP(ctx, skill, exec, inputs)
	case *skilltypes.CompositeExecution:
		return e.executeComposite(ctx, skill, exec, inputs, execCtx, deps)
	default:
		err = errors.Errorf("unsupported execution type %T", skill.Execution)
	}
	if err != nil {
		return nil, wrapError(skill, err)
	}
	return outputs, nil
}

// wrapError annotates a backend failure with the skill name and execution
// type. Errors that already carry a typed engine error pass through.
func wrapError(skill *skilltypes.Skill, err error) error {
	var (
		execErr  *skilltypes.ExecutionError
		mismatch *skilltypes.OutputMismatchError
	)
	if errors.As(err, &execErr) || errors.As(err, &mismatch) {
		return err
	}
	return &skilltypes.ExecutionError{
		Skill: skill.Name,
		Type:  skill.ExecutionKind(),
		Err:   err,
	}
}
