// Package interpolate renders {{key}} templates against variable maps and
// formats few-shot example blocks for prompts.
package interpolate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Interpolate replaces every {{key}} token with the string form of vars[key].
// Dotted keys walk nested maps. Tokens without a matching variable are kept
// verbatim.
func Interpolate(template string, vars map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := tokenPattern.FindStringSubmatch(token)[1]
		value, ok := Lookup(vars, key)
		if !ok {
			return token
		}
		return Stringify(value)
	})
}

// SingleToken returns the key when template consists of exactly one token
func SingleToken(template string) (string, bool) {
	trimmed := strings.TrimSpace(template)
	loc := tokenPattern.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 || loc[1] != len(trimmed) {
		return "", false
	}
	return trimmed[loc[2]:loc[3]], true
}

// Lookup resolves a possibly dotted key against vars. An exact match on the
// full key wins over path traversal.
func Lookup(vars map[string]any, key string) (any, bool) {
	if vars == nil {
		return nil, false
	}
	if v, ok := vars[key]; ok {
		return v, true
	}

	parts := strings.Split(key, ".")
	var current any = vars
	for _, part := range parts {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

// Stringify renders a variable the way it appears in a template
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any, map[string]string, []string:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// FormatExamples renders few-shot examples as numbered blocks separated by a
// blank line.
func FormatExamples(examples []skilltypes.FewShotExample) string {
	blocks := make([]string, 0, len(examples))
	for i, ex := range examples {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Example %d:\n", i+1)
		fmt.Fprintf(&sb, "Input: %s\n", ex.Input)
		fmt.Fprintf(&sb, "Output: %s", ex.Output)
		if ex.Explanation != "" {
			fmt.Fprintf(&sb, "\nExplanation: %s", ex.Explanation)
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Merge layers maps left to right; later maps win
func Merge(layers ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
