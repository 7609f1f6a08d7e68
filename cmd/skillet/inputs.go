package main

import (
	"encoding/json"
	"os"
	"strings"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// parseAssignments turns repeated key=value flags into values. A key matching
// a declared string or enum parameter keeps the raw text. Any other value
// that parses as JSON keeps its JSON type, anything else is a string.
func parseAssignments(assignments []string, params []skilltypes.Parameter) (skilltypes.Values, error) {
	declared := make(map[string]skilltypes.ParamType, len(params))
	for _, p := range params {
		declared[p.Name] = p.Type
	}

	values := skilltypes.Values{}
	for _, assignment := range assignments {
		key, raw, ok := strings.Cut(assignment, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("invalid assignment %q, expected key=value", assignment)
		}
		switch declared[key] {
		case skilltypes.ParamTypeString, skilltypes.ParamTypeEnum:
			values[key] = raw
		default:
			values[key] = parseValue(raw)
		}
	}
	return values, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// readValuesFile loads a YAML or JSON object of values
func readValuesFile(path string) (skilltypes.Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	values := skilltypes.Values{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return values, nil
}

// collectValues merges a values file with key=value flags, flags winning.
// params types the flag values; nil falls back to JSON detection.
func collectValues(file string, assignments []string, params []skilltypes.Parameter) (skilltypes.Values, error) {
	values := skilltypes.Values{}
	if file != "" {
		fromFile, err := readValuesFile(file)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			values[k] = v
		}
	}
	fromFlags, err := parseAssignments(assignments, params)
	if err != nil {
		return nil, err
	}
	for k, v := range fromFlags {
		values[k] = v
	}
	return values, nil
}
