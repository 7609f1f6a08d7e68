package skills

import "context"

// Values is a loosely typed name -> value map used for inputs, outputs and context
type Values = map[string]any

// GenerateOptions tunes a single language-model call
type GenerateOptions struct {
	System      string
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Generator is the language-model collaborator used by ai-prompt skills
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Interpreter is the script collaborator used by script skills. Bindings are
// exposed to the script read-only.
type Interpreter interface {
	Run(ctx context.Context, language, code string, bindings Values) (any, error)
}

// ToolCaller is the capability-server collaborator used by mcp skills
type ToolCaller interface {
	CallTool(ctx context.Context, server, tool string, args Values) (any, error)
}

// Runner executes a skill by name; composites use it for their steps
type Runner interface {
	Execute(ctx context.Context, name string, inputs, execCtx Values) (Values, error)
}
