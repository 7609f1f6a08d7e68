package executor

import (
	"encoding/json"
	"regexp"
	"strings"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// DefaultOutput is the key free-form results are returned under when a skill
// declares no outputs
const DefaultOutput = "result"

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n?```")

// ShapeText turns free-form text into outputs.
//
// With exactly one declared output the text is returned under its name.
// With several, the text is parsed as a JSON object, optionally inside a
// fenced code block, and used when every key is a declared output.
// Otherwise the whole text goes under the first declared output. A skill
// without declared outputs gets the text under "result".
func ShapeText(skill *skilltypes.Skill, text string) skilltypes.Values {
	names := skill.OutputNames()
	switch len(names) {
	case 0:
		return skilltypes.Values{DefaultOutput: text}
	case 1:
		return skilltypes.Values{names[0]: text}
	}

	if obj, ok := parseObject(text); ok && keysDeclared(obj, names) {
		return obj
	}
	return skilltypes.Values{names[0]: text}
}

// ShapeValue maps a structured backend result onto outputs. Objects whose
// keys are all declared pass through, strings are shaped as text, anything
// else is wrapped under the single declared output or "result".
func ShapeValue(skill *skilltypes.Skill, value any) skilltypes.Values {
	names := skill.OutputNames()
	switch v := value.(type) {
	case map[string]any:
		if len(names) == 0 || keysDeclared(v, names) {
			return v
		}
		if len(names) == 1 {
			return skilltypes.Values{names[0]: v}
		}
		return v
	case string:
		return ShapeText(skill, v)
	}

	if len(names) == 1 {
		return skilltypes.Values{names[0]: value}
	}
	return skilltypes.Values{DefaultOutput: value}
}

func parseObject(text string) (map[string]any, bool) {
	candidates := []string{strings.TrimSpace(text)}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		candidates = append([]string{strings.TrimSpace(m[1])}, candidates...)
	}
	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil && obj != nil {
			return obj, true
		}
	}
	return nil, false
}

func keysDeclared(obj map[string]any, names []string) bool {
	if len(obj) == 0 {
		return false
	}
	for k := range obj {
		found := false
		for _, n := range names {
			if n == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
