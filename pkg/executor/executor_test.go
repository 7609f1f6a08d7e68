package executor

import (
	"context"
	"testing"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
	prompt   string
	opts     skilltypes.GenerateOptions
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, opts skilltypes.GenerateOptions) (string, error) {
	f.calls++
	f.prompt = prompt
	f.opts = opts
	return f.response, f.err
}

type fakeInterpreter struct {
	result   any
	err      error
	language string
	bindings skilltypes.Values
}

func (f *fakeInterpreter) Run(_ context.Context, language, _ string, bindings skilltypes.Values) (any, error) {
	f.language = language
	f.bindings = bindings
	return f.result, f.err
}

type fakeToolCaller struct {
	result any
	err    error
	server string
	tool   string
	args   skilltypes.Values
}

func (f *fakeToolCaller) CallTool(_ context.Context, server, tool string, args skilltypes.Values) (any, error) {
	f.server, f.tool, f.args = server, tool, args
	return f.result, f.err
}

type runnerFunc func(ctx context.Context, name string, inputs, execCtx skilltypes.Values) (skilltypes.Values, error)

func (f runnerFunc) Execute(ctx context.Context, name string, inputs, execCtx skilltypes.Values) (skilltypes.Values, error) {
	return f(ctx, name, inputs, execCtx)
}

func promptSkill(outputs ...string) *skilltypes.Skill {
	s := &skilltypes.Skill{
		Name:    "greet",
		Version: "1.0.0",
		Execution: &skilltypes.PromptExecution{
			Prompt: "Say hello to {{name}} in {{language}}",
			System: "You are {{persona}}",
		},
	}
	for _, o := range outputs {
		s.Outputs = append(s.Outputs, skilltypes.Parameter{Name: o, Type: skilltypes.ParamTypeString})
	}
	return s
}

func TestExecutePrompt(t *testing.T) {
	gen := &fakeGenerator{response: "Bonjour Alice"}
	e := New(WithGenerator(gen))

	out, err := e.Execute(context.Background(), promptSkill("greeting"),
		skilltypes.Values{"name": "Alice", "language": "French"},
		skilltypes.Values{"persona": "polite", "language": "English"},
		nil)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "Say hello to Alice in French", gen.prompt, "inputs take precedence over context")
	assert.Equal(t, "You are polite", gen.opts.System)
	assert.Equal(t, skilltypes.Values{"greeting": "Bonjour Alice"}, out)
}

func TestExecutePromptWithFewShotExamples(t *testing.T) {
	gen := &fakeGenerator{response: "positive"}
	skill := promptSkill("label")
	skill.Execution = &skilltypes.PromptExecution{
		Prompt: "Classify: {{text}}",
		FewShotExamples: []skilltypes.FewShotExample{
			{Input: "great", Output: "positive", Explanation: "praise"},
			{Input: "awful", Output: "negative"},
		},
	}

	_, err := New(WithGenerator(gen)).Execute(context.Background(), skill, skilltypes.Values{"text": "fine"}, nil, nil)
	require.NoError(t, err)

	expected := "Example 1:\nInput: great\nOutput: positive\nExplanation: praise\n\n" +
		"Example 2:\nInput: awful\nOutput: negative\n\n" +
		"Classify: fine"
	assert.Equal(t, expected, gen.prompt)
}

func TestExecutePromptGeneratorFailure(t *testing.T) {
	cause := errors.New("rate limited")
	e := New(WithGenerator(&fakeGenerator{err: cause}))

	_, err := e.Execute(context.Background(), promptSkill("out"), nil, nil, nil)
	require.Error(t, err)

	var execErr *skilltypes.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "greet", execErr.Skill)
	assert.Equal(t, skilltypes.ExecutionAIPrompt, execErr.Type)
	assert.ErrorIs(t, err, cause)
}

func TestExecuteWithoutCollaborator(t *testing.T) {
	_, err := New().Execute(context.Background(), promptSkill(), nil, nil, nil)

	var execErr *skilltypes.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), "no language model configured")
}

func TestExecuteScript(t *testing.T) {
	interp := &fakeInterpreter{result: map[string]any{"result": int64(8)}}
	skill := &skilltypes.Skill{
		Name:      "add",
		Outputs:   []skilltypes.Parameter{{Name: "result", Type: skilltypes.ParamTypeNumber}},
		Execution: &skilltypes.ScriptExecution{Language: "javascript", Code: "return {result: inputs.a + inputs.b}"},
	}

	out, err := New(WithInterpreter(interp)).Execute(context.Background(), skill,
		skilltypes.Values{"a": 5, "b": 3}, skilltypes.Values{"user": "bob"}, nil)
	require.NoError(t, err)

	assert.Equal(t, skilltypes.Values{"result": int64(8)}, out)
	assert.Equal(t, "javascript", interp.language)
	assert.Equal(t, skilltypes.Values{"a": 5, "b": 3}, interp.bindings["inputs"])
	assert.Equal(t, skilltypes.Values{"user": "bob"}, interp.bindings["context"])
}

func TestExecuteScriptResultShape(t *testing.T) {
	skill := &skilltypes.Skill{
		Name:      "shape",
		Outputs:   []skilltypes.Parameter{{Name: "result", Type: skilltypes.ParamTypeObject}},
		Execution: &skilltypes.ScriptExecution{Language: "javascript", Code: "return inputs;"},
	}

	tests := []struct {
		name    string
		result  any
		output  string
		message string
	}{
		{"nothing returned", nil, "", "got nothing"},
		{"scalar returned", 42.0, "", "got float64"},
		{"array returned", []any{1.0}, "", "got []interface {}"},
		{"declared output absent", map[string]any{"wrong": 1.0}, "result", "missing a declared output"},
		{"undeclared key", map[string]any{"result": map[string]any{}, "extra": true}, "extra", "not declared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp := &fakeInterpreter{result: tt.result}
			out, err := New(WithInterpreter(interp)).Execute(context.Background(), skill, nil, nil, nil)
			assert.Nil(t, out)

			var mismatch *skilltypes.OutputMismatchError
			require.True(t, errors.As(err, &mismatch), "got %v", err)
			assert.Equal(t, tt.output, mismatch.Output)
			assert.Contains(t, mismatch.Message, tt.message)

			var execErr *skilltypes.ExecutionError
			assert.False(t, errors.As(err, &execErr), "mismatches are not wrapped as execution errors")
		})
	}

	t.Run("no declared outputs accepts any object", func(t *testing.T) {
		free := &skilltypes.Skill{Name: "free", Execution: skill.Execution}
		interp := &fakeInterpreter{result: map[string]any{"anything": "goes"}}
		out, err := New(WithInterpreter(interp)).Execute(context.Background(), free, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, skilltypes.Values{"anything": "goes"}, out)

		interp.result = nil
		_, err = New(WithInterpreter(interp)).Execute(context.Background(), free, nil, nil, nil)
		var mismatch *skilltypes.OutputMismatchError
		assert.True(t, errors.As(err, &mismatch))
	})
}

func TestExecuteMCP(t *testing.T) {
	caller := &fakeToolCaller{result: "<html>ok</html>"}
	skill := &skilltypes.Skill{
		Name:      "fetch",
		Outputs:   []skilltypes.Parameter{{Name: "content", Type: skilltypes.ParamTypeString}},
		Execution: &skilltypes.MCPExecution{Server: "web", Tool: "fetch"},
	}

	out, err := New(WithToolCaller(caller)).Execute(context.Background(), skill, skilltypes.Values{"url": "https://example.com"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "web", caller.server)
	assert.Equal(t, "fetch", caller.tool)
	assert.Equal(t, skilltypes.Values{"url": "https://example.com"}, caller.args)
	assert.Equal(t, skilltypes.Values{"content": "<html>ok</html>"}, out)
}

func TestExecuteMCPFailure(t *testing.T) {
	caller := &fakeToolCaller{err: errors.New("connection refused")}
	skill := &skilltypes.Skill{Name: "fetch", Execution: &skilltypes.MCPExecution{Server: "web", Tool: "fetch"}}

	_, err := New(WithToolCaller(caller)).Execute(context.Background(), skill, nil, nil, nil)

	var execErr *skilltypes.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, skilltypes.ExecutionMCP, execErr.Type)
	assert.Contains(t, err.Error(), "connection refused")
}
