package skills

import (
	"encoding/json"
)

// ExecutionKind names one of the four execution backends
type ExecutionKind string

const (
	ExecutionAIPrompt  ExecutionKind = "ai-prompt"
	ExecutionScript    ExecutionKind = "script"
	ExecutionMCP       ExecutionKind = "mcp"
	ExecutionComposite ExecutionKind = "composite"
)

// ExecutionKinds lists the known execution kinds
var ExecutionKinds = []ExecutionKind{
	ExecutionAIPrompt,
	ExecutionScript,
	ExecutionMCP,
	ExecutionComposite,
}

// IsValid reports whether k is a known execution kind
func (k ExecutionKind) IsValid() bool {
	for _, known := range ExecutionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Execution is the closed set of execution strategies. Only the variants in
// this package implement it; consumers switch on the concrete type.
type Execution interface {
	Kind() ExecutionKind
	isExecution()
}

// FewShotExample is an input/output pair used to steer a prompt
type FewShotExample struct {
	Input       string `json:"input" yaml:"input" mapstructure:"input"`
	Output      string `json:"output" yaml:"output" mapstructure:"output"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty" mapstructure:"explanation"`
}

// PromptExecution renders a prompt template and submits it to a language model
type PromptExecution struct {
	Prompt          string           `json:"prompt" yaml:"prompt" mapstructure:"prompt"`
	FewShotExamples []FewShotExample `json:"fewShotExamples,omitempty" yaml:"fewShotExamples,omitempty" mapstructure:"fewShotExamples"`
	System          string           `json:"system,omitempty" yaml:"system,omitempty" mapstructure:"system"`
	Model           string           `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	MaxTokens       int              `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty" mapstructure:"maxTokens"`
	Temperature     *float64         `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`
}

// ScriptExecution runs an embedded script body in a sandboxed interpreter
type ScriptExecution struct {
	Language string `json:"language" yaml:"language" mapstructure:"language"`
	Code     string `json:"code" yaml:"code" mapstructure:"code"`
}

// MCPExecution delegates to a tool on a capability (MCP) server
type MCPExecution struct {
	Server string `json:"server" yaml:"server" mapstructure:"server"`
	Tool   string `json:"tool" yaml:"tool" mapstructure:"tool"`
}

// Step is one invocation inside a composite skill
type Step struct {
	Name     string            `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Skill    string            `json:"skill" yaml:"skill" mapstructure:"skill"`
	Inputs   map[string]string `json:"inputs,omitempty" yaml:"inputs,omitempty" mapstructure:"inputs"`
	Optional bool              `json:"optional,omitempty" yaml:"optional,omitempty" mapstructure:"optional"`
}

// ID returns the name under which the step's outputs are published
func (s Step) ID() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Skill
}

// CompositeExecution runs other skills in order, threading outputs forward
type CompositeExecution struct {
	Steps   []Step            `json:"steps" yaml:"steps" mapstructure:"steps"`
	Outputs map[string]string `json:"outputs,omitempty" yaml:"outputs,omitempty" mapstructure:"outputs"`
}

func (*PromptExecution) Kind() ExecutionKind    { return ExecutionAIPrompt }
func (*ScriptExecution) Kind() ExecutionKind    { return ExecutionScript }
func (*MCPExecution) Kind() ExecutionKind       { return ExecutionMCP }
func (*CompositeExecution) Kind() ExecutionKind { return ExecutionComposite }

func (*PromptExecution) isExecution()    {}
func (*ScriptExecution) isExecution()    {}
func (*MCPExecution) isExecution()       {}
func (*CompositeExecution) isExecution() {}

// StepSkills returns the skill names referenced by a composite's steps
func (c *CompositeExecution) StepSkills() []string {
	names := make([]string, 0, len(c.Steps))
	for _, step := range c.Steps {
		names = append(names, step.Skill)
	}
	return names
}

// MarshalExecution renders an execution with its "type" discriminator, the
// shape used in definition documents and API responses.
func MarshalExecution(e Execution) (map[string]any, error) {
	if e == nil {
		return nil, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	out["type"] = string(e.Kind())
	return out, nil
}

// MarshalJSON encodes the skill with a tagged execution block
func (s Skill) MarshalJSON() ([]byte, error) {
	type plain Skill
	execution, err := MarshalExecution(s.Execution)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Execution map[string]any `json:"execution"`
	}{plain: plain(s), Execution: execution})
}

// MarshalYAML encodes the skill with a tagged execution block
func (s Skill) MarshalYAML() (any, error) {
	type plain Skill
	execution, err := MarshalExecution(s.Execution)
	if err != nil {
		return nil, err
	}
	return struct {
		plain     `yaml:",inline"`
		Execution map[string]any `yaml:"execution"`
	}{plain: plain(s), Execution: execution}, nil
}
