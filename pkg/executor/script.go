package executor

import (
	"context"
	"fmt"
	"slices"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

func (e *Executor) executeScript(ctx context.Context, skill *skilltypes.Skill, exec *skilltypes.ScriptExecution, inputs, execCtx skilltypes.Values) (skilltypes.Values, error) {
	if e.interpreter == nil {
		return nil, errors.New("no script interpreter configured")
	}

	result, err := e.interpreter.Run(ctx, exec.Language, exec.Code, skilltypes.Values{
		"inputs":  inputs,
		"context": execCtx,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s script failed", exec.Language)
	}
	return ScriptOutputs(skill, result)
}

// ScriptOutputs checks a script result. It must be an object, and when the
// skill declares outputs its keys must be exactly the declared names.
func ScriptOutputs(skill *skilltypes.Skill, result any) (skilltypes.Values, error) {
	obj, ok := result.(map[string]any)
	if !ok || obj == nil {
		return nil, &skilltypes.OutputMismatchError{
			Skill:   skill.Name,
			Message: fmt.Sprintf("script must return an object, got %s", describe(result)),
		}
	}

	names := skill.OutputNames()
	if len(names) == 0 {
		return obj, nil
	}
	for _, name := range names {
		if _, ok := obj[name]; !ok {
			return nil, &skilltypes.OutputMismatchError{Skill: skill.Name, Output: name, Message: "script result is missing a declared output"}
		}
	}
	for key := range obj {
		if !slices.Contains(names, key) {
			return nil, &skilltypes.OutputMismatchError{Skill: skill.Name, Output: key, Message: "output is not declared"}
		}
	}
	return obj, nil
}

func describe(v any) string {
	if v == nil {
		return "nothing"
	}
	return fmt.Sprintf("%T", v)
}
