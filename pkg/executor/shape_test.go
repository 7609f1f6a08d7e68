package executor

import (
	"testing"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/stretchr/testify/assert"
)

func skillWithOutputs(names ...string) *skilltypes.Skill {
	s := &skilltypes.Skill{Name: "s"}
	for _, n := range names {
		s.Outputs = append(s.Outputs, skilltypes.Parameter{Name: n, Type: skilltypes.ParamTypeString})
	}
	return s
}

func TestShapeText(t *testing.T) {
	tests := []struct {
		name     string
		outputs  []string
		text     string
		expected skilltypes.Values
	}{
		{
			name:     "no declared outputs",
			text:     "hello",
			expected: skilltypes.Values{"result": "hello"},
		},
		{
			name:     "single output keeps raw text",
			outputs:  []string{"summary"},
			text:     `{"summary": "not parsed"}`,
			expected: skilltypes.Values{"summary": `{"summary": "not parsed"}`},
		},
		{
			name:     "multiple outputs parsed from json",
			outputs:  []string{"label", "reason"},
			text:     `{"label": "positive", "reason": "praise"}`,
			expected: skilltypes.Values{"label": "positive", "reason": "praise"},
		},
		{
			name:     "multiple outputs parsed from fenced block",
			outputs:  []string{"label", "reason"},
			text:     "Here you go:\n```json\n{\"label\": \"negative\"}\n```\n",
			expected: skilltypes.Values{"label": "negative"},
		},
		{
			name:     "unparseable text falls back to first output",
			outputs:  []string{"label", "reason"},
			text:     "positive, because it is praise",
			expected: skilltypes.Values{"label": "positive, because it is praise"},
		},
		{
			name:     "undeclared keys fall back to first output",
			outputs:  []string{"label", "reason"},
			text:     `{"label": "x", "confidence": 0.9}`,
			expected: skilltypes.Values{"label": `{"label": "x", "confidence": 0.9}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShapeText(skillWithOutputs(tt.outputs...), tt.text))
		})
	}
}

func TestShapeValue(t *testing.T) {
	assert.Equal(t,
		skilltypes.Values{"a": 1.0},
		ShapeValue(skillWithOutputs("a", "b"), map[string]any{"a": 1.0}))

	assert.Equal(t,
		skilltypes.Values{"items": []any{1, 2}},
		ShapeValue(skillWithOutputs("items"), []any{1, 2}))

	assert.Equal(t,
		skilltypes.Values{"result": 42},
		ShapeValue(skillWithOutputs(), 42))

	assert.Equal(t,
		skilltypes.Values{"data": map[string]any{"x": 1}},
		ShapeValue(skillWithOutputs("data"), map[string]any{"x": 1}))
}
