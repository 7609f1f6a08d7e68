package interpolate

import (
	"testing"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]any
		expected string
	}{
		{
			name:     "string and number",
			template: "Hello {{name}}, age {{age}}",
			vars:     map[string]any{"name": "Alice", "age": 30},
			expected: "Hello Alice, age 30",
		},
		{
			name:     "unmatched token kept verbatim",
			template: "Hi {{name}} from {{city}}",
			vars:     map[string]any{"name": "Bob"},
			expected: "Hi Bob from {{city}}",
		},
		{
			name:     "spaces inside braces",
			template: "{{ greeting }}!",
			vars:     map[string]any{"greeting": "hey"},
			expected: "hey!",
		},
		{
			name:     "dotted path",
			template: "summary: {{steps.summarize.text}}",
			vars: map[string]any{
				"steps": map[string]any{"summarize": map[string]any{"text": "short"}},
			},
			expected: "summary: short",
		},
		{
			name:     "map value is json encoded",
			template: "data={{data}}",
			vars:     map[string]any{"data": map[string]any{"a": 1}},
			expected: `data={"a":1}`,
		},
		{
			name:     "repeated token",
			template: "{{x}}-{{x}}",
			vars:     map[string]any{"x": true},
			expected: "true-true",
		},
		{
			name:     "nil vars",
			template: "{{x}}",
			vars:     nil,
			expected: "{{x}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Interpolate(tt.template, tt.vars))
		})
	}
}

func TestSingleToken(t *testing.T) {
	key, ok := SingleToken(" {{ steps.a.result }} ")
	assert.True(t, ok)
	assert.Equal(t, "steps.a.result", key)

	_, ok = SingleToken("prefix {{a}}")
	assert.False(t, ok)

	_, ok = SingleToken("{{a}}{{b}}")
	assert.False(t, ok)
}

func TestLookupPrefersExactKey(t *testing.T) {
	vars := map[string]any{
		"a.b": "flat",
		"a":   map[string]any{"b": "nested"},
	}
	v, ok := Lookup(vars, "a.b")
	assert.True(t, ok)
	assert.Equal(t, "flat", v)
}

func TestFormatExamples(t *testing.T) {
	examples := []skilltypes.FewShotExample{
		{Input: "2+2", Output: "4", Explanation: "basic addition"},
		{Input: "3*3", Output: "9"},
	}

	expected := "Example 1:\nInput: 2+2\nOutput: 4\nExplanation: basic addition\n\n" +
		"Example 2:\nInput: 3*3\nOutput: 9"
	assert.Equal(t, expected, FormatExamples(examples))
	assert.Equal(t, "", FormatExamples(nil))
}

func TestMerge(t *testing.T) {
	merged := Merge(map[string]any{"a": 1, "b": 2}, map[string]any{"b": 3})
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, merged)
}
