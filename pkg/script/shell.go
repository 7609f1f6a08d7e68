package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// shell runs POSIX shell bodies with the mvdan.cc/sh interpreter. Only shell
// builtins are available: external commands and file opens are refused.
// Inputs are exported as INPUT_<NAME> variables plus SKILL_INPUTS and
// SKILL_CONTEXT holding JSON. Stdout is decoded as JSON when possible and
// returned as trimmed text otherwise.
type shell struct{}

func (shell) run(ctx context.Context, code string, bindings skilltypes.Values) (any, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(code), "skill.sh")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse shell script")
	}

	env, err := shellEnv(bindings)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &stdout, &stderr),
		interp.ExecHandlers(func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
			return func(_ context.Context, args []string) error {
				return fmt.Errorf("command %q is not allowed", args[0])
			}
		}),
		interp.OpenHandler(func(_ context.Context, path string, _ int, _ os.FileMode) (io.ReadWriteCloser, error) {
			if path == "/dev/null" {
				return devNull{}, nil
			}
			return nil, fmt.Errorf("opening %q is not allowed", path)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create shell interpreter")
	}

	if err := runner.Run(ctx, file); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrapf(err, "shell script failed: %s", msg)
		}
		return nil, errors.Wrap(err, "shell script failed")
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	return text, nil
}

func shellEnv(bindings skilltypes.Values) ([]string, error) {
	env := []string{"PATH="}

	inputs, _ := bindings["inputs"].(skilltypes.Values)
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env = append(env, "INPUT_"+envName(name)+"="+stringValue(inputs[name]))
	}

	for key, binding := range map[string]string{"SKILL_INPUTS": "inputs", "SKILL_CONTEXT": "context"} {
		v := bindings[binding]
		if v == nil {
			v = skilltypes.Values{}
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s", binding)
		}
		env = append(env, key+"="+string(data))
	}
	return env, nil
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, _ := json.Marshal(val)
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

type devNull struct{}

func (devNull) Read([]byte) (int, error)    { return 0, io.EOF }
func (devNull) Write(p []byte) (int, error) { return len(p), nil }
func (devNull) Close() error                { return nil }
