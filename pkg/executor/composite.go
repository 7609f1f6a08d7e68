package executor

import (
	"context"

	"github.com/jingkaihe/skillet/pkg/interpolate"
	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// executeComposite runs the steps in order. Each step's input mapping is
// rendered against a namespace holding the composite's inputs (both bare and
// under "inputs"), "context", and the outputs of earlier steps under
// "steps.<id>" and "<id>". Errors from required steps are returned unchanged
// so typed engine errors from nested skills reach the caller.
func (e *Executor) executeComposite(ctx context.Context, skill *skilltypes.Skill, exec *skilltypes.CompositeExecution, inputs, execCtx skilltypes.Values, deps map[string]*skilltypes.Skill) (skilltypes.Values, error) {
	if e.runner == nil {
		return nil, wrapError(skill, errors.New("no runner configured for composite steps"))
	}

	steps := skilltypes.Values{}
	ns := interpolate.Merge(inputs)
	ns["inputs"] = inputs
	ns["context"] = execCtx
	ns["steps"] = steps

	var last skilltypes.Values
	for i, step := range exec.Steps {
		if err := ctx.Err(); err != nil {
			return nil, wrapError(skill, err)
		}

		id := step.ID()
		log := logger.G(ctx).WithFields(logrus.Fields{
			"skill": skill.Name,
			"step":  id,
			"index": i,
		})

		if deps != nil && step.Optional {
			if _, ok := deps[step.Skill]; !ok {
				log.WithField("target", step.Skill).Debug("skipping optional step with unresolved skill")
				continue
			}
		}

		out, err := e.runner.Execute(ctx, step.Skill, RenderMapping(step.Inputs, ns), execCtx)
		if err != nil {
			if step.Optional {
				log.WithError(err).Warn("optional step failed, continuing")
				continue
			}
			return nil, err
		}

		steps[id] = out
		ns[id] = out
		last = out
	}

	if len(exec.Outputs) > 0 {
		return RenderMapping(exec.Outputs, ns), nil
	}
	if last == nil {
		return skilltypes.Values{}, nil
	}
	return interpolate.Merge(last), nil
}

// RenderMapping renders each template of a mapping against vars. A template
// that is exactly one token keeps the raw value so numbers, objects and
// arrays survive; a lone token with no value leaves the key out.
func RenderMapping(mapping map[string]string, vars skilltypes.Values) skilltypes.Values {
	out := make(skilltypes.Values, len(mapping))
	for key, tmpl := range mapping {
		if token, ok := interpolate.SingleToken(tmpl); ok {
			if v, found := interpolate.Lookup(vars, token); found {
				out[key] = v
			}
			continue
		}
		out[key] = interpolate.Interpolate(tmpl, vars)
	}
	return out
}
