package skills

import (
	"context"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

type callPathKey struct{}

// callPath returns the names of the skills currently executing on this call
// chain, outermost first
func callPath(ctx context.Context) []string {
	path, _ := ctx.Value(callPathKey{}).([]string)
	return path
}

func withCallPath(ctx context.Context, name string) context.Context {
	prev := callPath(ctx)
	path := make([]string, len(prev), len(prev)+1)
	copy(path, prev)
	return context.WithValue(ctx, callPathKey{}, append(path, name))
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// requirement is one skill another skill needs in order to run
type requirement struct {
	name     string
	optional bool
}

// requirements lists declared dependencies followed by the skills a
// composite's steps invoke. A step skill is required unless the step is
// optional.
func requirements(skill *skilltypes.Skill) []requirement {
	seen := make(map[string]int)
	var reqs []requirement
	add := func(name string, optional bool) {
		if i, ok := seen[name]; ok {
			if !optional {
				reqs[i].optional = false
			}
			return
		}
		seen[name] = len(reqs)
		reqs = append(reqs, requirement{name: name, optional: optional})
	}

	for _, dep := range skill.Dependencies {
		add(dep.Name, dep.Optional)
	}
	if composite, ok := skill.Execution.(*skilltypes.CompositeExecution); ok {
		for _, step := range composite.Steps {
			add(step.Skill, step.Optional)
		}
	}
	return reqs
}

// resolveDependencies walks the dependency graph of skill depth first and
// returns every definition reachable from it. path holds the skills already
// executing above this one so a runtime recursion into an ancestor is
// reported as a cycle too.
func (r *Registry) resolveDependencies(skill *skilltypes.Skill, path []string) (map[string]*skilltypes.Skill, error) {
	resolved := make(map[string]*skilltypes.Skill)
	visiting := append(append([]string{}, path...), skill.Name)
	if err := r.resolveInto(skill, visiting, resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (r *Registry) resolveInto(skill *skilltypes.Skill, visiting []string, resolved map[string]*skilltypes.Skill) error {
	for _, req := range requirements(skill) {
		if containsName(visiting, req.name) {
			return &skilltypes.CycleDetectedError{Path: append(append([]string{}, visiting...), req.name)}
		}
		if _, done := resolved[req.name]; done {
			continue
		}

		dep, ok := r.Get(req.name)
		if !ok {
			if req.optional {
				continue
			}
			return &skilltypes.MissingDependencyError{Skill: skill.Name, Dependency: req.name}
		}

		resolved[req.name] = dep
		if err := r.resolveInto(dep, append(visiting, req.name), resolved); err != nil {
			return err
		}
	}
	return nil
}
