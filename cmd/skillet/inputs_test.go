package main

import (
	"os"
	"path/filepath"
	"testing"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{
		"text=hello world",
		"count=3",
		"enabled=true",
		"tags=[\"a\",\"b\"]",
		"empty=",
		" spaced =x=y",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, skilltypes.Values{
		"text":    "hello world",
		"count":   float64(3),
		"enabled": true,
		"tags":    []any{"a", "b"},
		"empty":   "",
		"spaced":  "x=y",
	}, values)

	for _, bad := range []string{"novalue", "=value", "  =x"} {
		_, err := parseAssignments([]string{bad}, nil)
		assert.ErrorContains(t, err, "expected key=value", bad)
	}
}

func TestParseAssignmentsUsesDeclaredTypes(t *testing.T) {
	params := []skilltypes.Parameter{
		{Name: "text", Type: skilltypes.ParamTypeString},
		{Name: "style", Type: skilltypes.ParamTypeEnum, Values: []string{"true", "false"}},
		{Name: "limit", Type: skilltypes.ParamTypeNumber},
		{Name: "strict", Type: skilltypes.ParamTypeBoolean},
		{Name: "options", Type: skilltypes.ParamTypeObject},
		{Name: "items", Type: skilltypes.ParamTypeArray},
	}

	values, err := parseAssignments([]string{
		"text=42",
		"style=true",
		"limit=10",
		"strict=false",
		`options={"depth":2}`,
		"items=[1,2]",
		"extra=7",
	}, params)
	require.NoError(t, err)
	assert.Equal(t, skilltypes.Values{
		"text":    "42",
		"style":   "true",
		"limit":   float64(10),
		"strict":  false,
		"options": map[string]any{"depth": float64(2)},
		"items":   []any{float64(1), float64(2)},
		"extra":   float64(7),
	}, values)

	tests := []struct {
		raw      string
		expected any
	}{
		{"text=true", "true"},
		{"text=null", "null"},
		{`text={"a":1}`, `{"a":1}`},
		{"text=", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			values, err := parseAssignments([]string{tt.raw}, params)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, values["text"])
		})
	}
}

func TestCollectValues(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "inputs.yaml")
	require.NoError(t, os.WriteFile(file, []byte("version: 1.2.3\npart: major\n"), 0o644))

	values, err := collectValues(file, []string{"part=minor"}, nil)
	require.NoError(t, err)
	assert.Equal(t, skilltypes.Values{"version": "1.2.3", "part": "minor"}, values)

	jsonFile := filepath.Join(dir, "inputs.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`{"text": "from json"}`), 0o644))
	values, err = collectValues(jsonFile, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, skilltypes.Values{"text": "from json"}, values)

	_, err = collectValues(filepath.Join(dir, "missing.yaml"), nil, nil)
	assert.ErrorContains(t, err, "failed to read")

	values, err = collectValues(file, []string{"version=2"}, []skilltypes.Parameter{{Name: "version", Type: skilltypes.ParamTypeString}})
	require.NoError(t, err)
	assert.Equal(t, "2", values["version"], "flags typed by the declared parameter")

	values, err = collectValues("", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}
