package script

import (
	"context"
	"encoding/json"

	"github.com/dop251/goja"
	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
)

// prelude deep-freezes the bindings handed to the script body
const prelude = `
function __freeze(o) {
	if (o !== null && typeof o === "object" && !Object.isFrozen(o)) {
		Object.getOwnPropertyNames(o).forEach(function (k) { __freeze(o[k]); });
		Object.freeze(o);
	}
	return o;
}
`

// javascript runs script bodies as the body of a function of (inputs,
// context) in a fresh goja runtime per call
type javascript struct{}

func (javascript) run(ctx context.Context, code string, bindings skilltypes.Values) (any, error) {
	vm := goja.New()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	log := logger.G(ctx)
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]any, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			args = append(args, a.Export())
		}
		log.WithField("args", args).Debug("script console.log")
		return goja.Undefined()
	})
	_ = vm.Set("console", console)

	if _, err := vm.RunString(prelude); err != nil {
		return nil, errors.Wrap(err, "failed to prepare script runtime")
	}

	args := make([]goja.Value, 0, 2)
	for _, name := range []string{"inputs", "context"} {
		v, err := frozenBinding(vm, bindings[name])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to bind %s", name)
		}
		args = append(args, v)
	}

	wrapped := "(function (inputs, context) {\n\"use strict\";\n" + code + "\n})"
	program, err := goja.Compile("skill.js", wrapped, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile script")
	}
	fnValue, err := vm.RunProgram(program)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load script")
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, errors.New("script did not compile to a function")
	}

	result, err := fn(goja.Undefined(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "script raised an error")
	}
	return exportResult(vm, result)
}

// frozenBinding copies v into the runtime through JSON so the script sees
// plain JS data, then deep-freezes it
func frozenBinding(vm *goja.Runtime, v any) (goja.Value, error) {
	if v == nil {
		v = map[string]any{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse is unavailable")
	}
	parsed, err := parse(goja.Undefined(), vm.ToValue(string(data)))
	if err != nil {
		return nil, err
	}
	freeze, ok := goja.AssertFunction(vm.Get("__freeze"))
	if !ok {
		return nil, errors.New("freeze helper is unavailable")
	}
	return freeze(goja.Undefined(), parsed)
}

// exportResult converts the returned value to plain Go data via JSON so
// numbers come back as float64 regardless of how goja stores them
func exportResult(vm *goja.Runtime, result goja.Value) (any, error) {
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return nil, errors.New("JSON.stringify is unavailable")
	}
	encoded, err := stringify(goja.Undefined(), result)
	if err != nil {
		return nil, errors.Wrap(err, "script result is not serializable")
	}
	if goja.IsUndefined(encoded) {
		return nil, nil
	}

	var out any
	if err := json.Unmarshal([]byte(encoded.String()), &out); err != nil {
		return nil, errors.Wrap(err, "failed to decode script result")
	}
	return out, nil
}
