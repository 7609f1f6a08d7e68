package skills

import (
	"context"
	"sync"
	"testing"
	"testing/fstest"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingExecutor returns a fixed result and counts backend calls
type countingExecutor struct {
	mu     sync.Mutex
	calls  map[string]int
	result func(skill *skilltypes.Skill, inputs skilltypes.Values) (skilltypes.Values, error)
	deps   map[string]*skilltypes.Skill
}

func newCountingExecutor() *countingExecutor {
	return &countingExecutor{calls: make(map[string]int)}
}

func (e *countingExecutor) Execute(_ context.Context, skill *skilltypes.Skill, inputs, _ skilltypes.Values, deps map[string]*skilltypes.Skill) (skilltypes.Values, error) {
	e.mu.Lock()
	e.calls[skill.Name]++
	e.deps = deps
	e.mu.Unlock()
	if e.result != nil {
		return e.result(skill, inputs)
	}
	return skilltypes.Values{"result": "ok"}, nil
}

func (e *countingExecutor) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[name]
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []skilltypes.ExecutionRecord
}

func (m *memoryRecorder) Record(_ context.Context, record skilltypes.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *memoryRecorder) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func summarizeSkill() *skilltypes.Skill {
	return &skilltypes.Skill{
		Name:        "summarize",
		Version:     "1.0.0",
		Description: "Summarize text",
		Category:    "text",
		Tags:        []string{"writing"},
		Inputs: []skilltypes.Parameter{
			{Name: "text", Type: skilltypes.ParamTypeString, Required: true},
			{Name: "style", Type: skilltypes.ParamTypeEnum, Values: []string{"brief", "detailed"}, Default: "brief"},
		},
		Execution: &skilltypes.PromptExecution{Prompt: "Summarize {{text}} in a {{style}} style"},
	}
}

func newTestRegistry(t *testing.T, exec Executor, opts ...RegistryOption) *Registry {
	t.Helper()
	r, err := NewRegistry(append([]RegistryOption{WithExecutor(exec)}, opts...)...)
	require.NoError(t, err)
	return r
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := newTestRegistry(t, newCountingExecutor())

	require.NoError(t, r.Register(summarizeSkill()))
	assert.True(t, r.Has("summarize"))
	assert.False(t, r.Has("translate"))

	skill, ok := r.Get("summarize")
	require.True(t, ok)
	assert.Equal(t, skilltypes.OriginInline, skill.Source.Origin)

	invalid := summarizeSkill()
	invalid.Version = "latest"
	var validationErr *skilltypes.ValidationError
	assert.ErrorAs(t, r.Register(invalid), &validationErr)

	r.Reset()
	assert.False(t, r.Has("summarize"))
	assert.Empty(t, r.Names())
}

func TestRegistryExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults and caches", func(t *testing.T) {
		exec := newCountingExecutor()
		var seen skilltypes.Values
		exec.result = func(_ *skilltypes.Skill, inputs skilltypes.Values) (skilltypes.Values, error) {
			seen = inputs
			return skilltypes.Values{"result": "short"}, nil
		}
		rec := &memoryRecorder{}
		r := newTestRegistry(t, exec, WithRecorder(rec))
		require.NoError(t, r.Register(summarizeSkill()))

		first, err := r.Execute(ctx, "summarize", skilltypes.Values{"text": "long text"}, nil)
		require.NoError(t, err)
		assert.Equal(t, skilltypes.Values{"result": "short"}, first)
		assert.Equal(t, "brief", seen["style"])

		second, err := r.Execute(ctx, "summarize", skilltypes.Values{"text": "long text"}, nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, exec.count("summarize"), "second call must be served from cache")

		// Explicitly passing the default hits the same cache entry
		_, err = r.Execute(ctx, "summarize", skilltypes.Values{"text": "long text", "style": "brief"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, exec.count("summarize"))

		require.Len(t, rec.records, 3)
		assert.False(t, rec.records[0].Cached)
		assert.True(t, rec.records[1].Cached)
		assert.True(t, rec.records[0].Success)
		assert.Equal(t, rec.records[0].InputsHash, rec.records[1].InputsHash)
		assert.NotEqual(t, rec.records[0].ID, rec.records[1].ID)

		stats := r.Stats(ctx)
		assert.Equal(t, 1, stats.CacheSize)
		assert.Equal(t, int64(2), stats.CacheHits)
		assert.Equal(t, int64(3), stats.Executions)

		r.ClearCache()
		assert.Zero(t, r.Stats(ctx).CacheSize)
		_, err = r.Execute(ctx, "summarize", skilltypes.Values{"text": "long text"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, exec.count("summarize"))
	})

	t.Run("missing required input never reaches the backend", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(summarizeSkill()))

		_, err := r.Execute(ctx, "summarize", skilltypes.Values{}, nil)
		var validationErr *skilltypes.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "inputs.text", validationErr.Field)
		assert.Zero(t, exec.count("summarize"))
	})

	t.Run("enum violation", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(summarizeSkill()))

		_, err := r.Execute(ctx, "summarize", skilltypes.Values{"text": "x", "style": "poetic"}, nil)
		var validationErr *skilltypes.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Zero(t, exec.count("summarize"))
	})

	t.Run("unknown skill", func(t *testing.T) {
		r := newTestRegistry(t, newCountingExecutor())
		_, err := r.Execute(ctx, "nope", nil, nil)
		var notFound *skilltypes.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "nope", notFound.Name)
	})

	t.Run("backend failure is not cached", func(t *testing.T) {
		exec := newCountingExecutor()
		exec.result = func(skill *skilltypes.Skill, _ skilltypes.Values) (skilltypes.Values, error) {
			return nil, &skilltypes.ExecutionError{Skill: skill.Name, Type: skill.ExecutionKind(), Err: errors.New("model unavailable")}
		}
		rec := &memoryRecorder{}
		r := newTestRegistry(t, exec, WithRecorder(rec))
		require.NoError(t, r.Register(summarizeSkill()))

		for i := 0; i < 2; i++ {
			_, err := r.Execute(ctx, "summarize", skilltypes.Values{"text": "x"}, nil)
			var execErr *skilltypes.ExecutionError
			require.ErrorAs(t, err, &execErr)
		}
		assert.Equal(t, 2, exec.count("summarize"))
		require.Len(t, rec.records, 2)
		assert.False(t, rec.records[0].Success)
		assert.Contains(t, rec.records[0].Error, "model unavailable")
	})

	t.Run("no executor", func(t *testing.T) {
		r, err := NewRegistry()
		require.NoError(t, err)
		require.NoError(t, r.Register(summarizeSkill()))
		_, err = r.Execute(ctx, "summarize", skilltypes.Values{"text": "x"}, nil)
		assert.Error(t, err)
	})

	t.Run("execute skill validates the definition", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec)

		result, err := r.ExecuteSkill(ctx, summarizeSkill(), skilltypes.Values{"text": "x"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", result["result"])
		assert.False(t, r.Has("summarize"), "ad-hoc skills are not registered")

		broken := summarizeSkill()
		broken.Description = ""
		_, err = r.ExecuteSkill(ctx, broken, skilltypes.Values{"text": "x"}, nil)
		var validationErr *skilltypes.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestRegistryOutputPolicy(t *testing.T) {
	ctx := context.Background()
	skill := summarizeSkill()
	skill.Outputs = []skilltypes.Parameter{{Name: "summary", Type: skilltypes.ParamTypeString}}

	mismatching := func() *countingExecutor {
		exec := newCountingExecutor()
		exec.result = func(*skilltypes.Skill, skilltypes.Values) (skilltypes.Values, error) {
			return skilltypes.Values{"text": "wrong key"}, nil
		}
		return exec
	}

	t.Run("strict", func(t *testing.T) {
		exec := mismatching()
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(skill))

		_, err := r.Execute(ctx, "summarize", skilltypes.Values{"text": "x"}, nil)
		var mismatch *skilltypes.OutputMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Zero(t, r.Stats(ctx).CacheSize)
	})

	t.Run("warn", func(t *testing.T) {
		exec := mismatching()
		r := newTestRegistry(t, exec, WithOutputPolicy(OutputPolicyWarn))
		require.NoError(t, r.Register(skill))

		result, err := r.Execute(ctx, "summarize", skilltypes.Values{"text": "x"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "wrong key", result["text"])
		assert.Zero(t, r.Stats(ctx).CacheSize, "mismatched results are not cached")
	})

	t.Run("null declared output", func(t *testing.T) {
		exec := newCountingExecutor()
		exec.result = func(*skilltypes.Skill, skilltypes.Values) (skilltypes.Values, error) {
			return skilltypes.Values{"summary": nil}, nil
		}
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(skill))

		_, err := r.Execute(ctx, "summarize", skilltypes.Values{"text": "x"}, nil)
		var mismatch *skilltypes.OutputMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "summary", mismatch.Output)
	})

	t.Run("absent declared output", func(t *testing.T) {
		exec := newCountingExecutor()
		exec.result = func(*skilltypes.Skill, skilltypes.Values) (skilltypes.Values, error) {
			return skilltypes.Values{}, nil
		}
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(skill))

		result, err := r.Execute(ctx, "summarize", skilltypes.Values{"text": "x"}, nil)
		require.NoError(t, err)
		assert.Empty(t, result)
		assert.Equal(t, 1, r.Stats(ctx).CacheSize)
	})

	t.Run("unknown policy", func(t *testing.T) {
		_, err := NewRegistry(WithOutputPolicy("lenient"))
		assert.Error(t, err)
	})
}

func TestRegistryDependencies(t *testing.T) {
	ctx := context.Background()

	withDeps := func(name string, deps ...skilltypes.Dependency) *skilltypes.Skill {
		s := scriptSkill(name)
		s.Dependencies = deps
		return s
	}

	t.Run("required dependency missing", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(withDeps("report", skilltypes.Dependency{Name: "fetch"})))

		_, err := r.Execute(ctx, "report", nil, nil)
		var missing *skilltypes.MissingDependencyError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "report", missing.Skill)
		assert.Equal(t, "fetch", missing.Dependency)
		assert.Zero(t, exec.count("report"))
	})

	t.Run("optional dependency missing", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(withDeps("report", skilltypes.Dependency{Name: "fetch", Optional: true})))

		_, err := r.Execute(ctx, "report", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, exec.count("report"))
		assert.Empty(t, exec.deps)
	})

	t.Run("transitive dependencies are resolved", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(withDeps("a", skilltypes.Dependency{Name: "b"})))
		require.NoError(t, r.Register(withDeps("b", skilltypes.Dependency{Name: "c"})))
		require.NoError(t, r.Register(scriptSkill("c")))

		_, err := r.Execute(ctx, "a", nil, nil)
		require.NoError(t, err)
		assert.Len(t, exec.deps, 2)
		assert.Contains(t, exec.deps, "b")
		assert.Contains(t, exec.deps, "c")
	})

	t.Run("transitive required dependency missing", func(t *testing.T) {
		r := newTestRegistry(t, newCountingExecutor())
		require.NoError(t, r.Register(withDeps("a", skilltypes.Dependency{Name: "b"})))
		require.NoError(t, r.Register(withDeps("b", skilltypes.Dependency{Name: "c"})))

		_, err := r.Execute(ctx, "a", nil, nil)
		var missing *skilltypes.MissingDependencyError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "b", missing.Skill)
		assert.Equal(t, "c", missing.Dependency)
	})

	t.Run("cycle", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec)
		require.NoError(t, r.Register(withDeps("a", skilltypes.Dependency{Name: "b"})))
		require.NoError(t, r.Register(withDeps("b", skilltypes.Dependency{Name: "a"})))

		_, err := r.Execute(ctx, "a", nil, nil)
		var cycle *skilltypes.CycleDetectedError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
		assert.Zero(t, exec.count("a"))
	})

	t.Run("diamond is not a cycle", func(t *testing.T) {
		r := newTestRegistry(t, newCountingExecutor())
		require.NoError(t, r.Register(withDeps("top", skilltypes.Dependency{Name: "left"}, skilltypes.Dependency{Name: "right"})))
		require.NoError(t, r.Register(withDeps("left", skilltypes.Dependency{Name: "base"})))
		require.NoError(t, r.Register(withDeps("right", skilltypes.Dependency{Name: "base"})))
		require.NoError(t, r.Register(scriptSkill("base")))

		_, err := r.Execute(ctx, "top", nil, nil)
		assert.NoError(t, err)
	})

	t.Run("composite steps count as dependencies", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec)
		pipeline := scriptSkill("pipeline")
		pipeline.Execution = &skilltypes.CompositeExecution{Steps: []skilltypes.Step{
			{Skill: "first"},
			{Skill: "maybe", Optional: true},
		}}
		require.NoError(t, r.Register(pipeline))

		_, err := r.Execute(ctx, "pipeline", nil, nil)
		var missing *skilltypes.MissingDependencyError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "first", missing.Dependency)

		require.NoError(t, r.Register(scriptSkill("first")))
		_, err = r.Execute(ctx, "pipeline", nil, nil)
		require.NoError(t, err)
		assert.Contains(t, exec.deps, "first")
		assert.NotContains(t, exec.deps, "maybe")
	})
}

func TestRegistryNestedCycle(t *testing.T) {
	r := newTestRegistry(t, newCountingExecutor())
	require.NoError(t, r.Register(scriptSkill("outer")))

	// A nested call to a skill already on the call path is a cycle even
	// when the definitions do not declare it.
	ctx := withCallPath(withCallPath(context.Background(), "outer"), "inner")
	_, err := r.Execute(ctx, "outer", nil, nil)
	var cycle *skilltypes.CycleDetectedError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"outer", "inner", "outer"}, cycle.Path)
}

func TestRegistryDiscover(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"alpha.yaml":   {Data: []byte(yamlSkill("alpha", "First skill"))},
		"beta.yaml":    {Data: []byte(yamlSkill("beta", "Second skill"))},
		"gamma.yaml":   {Data: []byte(yamlSkill("internal-gamma", "Hidden by allowlist"))},
		"invalid.yaml": {Data: []byte("name: invalid\n")},
	}

	newDiscovery := func(t *testing.T) *Discovery {
		d, err := NewDiscovery(WithBuiltin(fsys))
		require.NoError(t, err)
		return d
	}

	t.Run("initialize", func(t *testing.T) {
		r := newTestRegistry(t, newCountingExecutor(), WithDiscovery(newDiscovery(t)))
		require.NoError(t, r.Initialize(ctx))

		assert.Equal(t, []string{"alpha", "beta", "internal-gamma"}, r.Names())
		stats := r.Stats(ctx)
		assert.Equal(t, 3, stats.TotalSkills)
		assert.Equal(t, 3, stats.Discovered)
		assert.Equal(t, 1, stats.Invalid)
		assert.Equal(t, 3, stats.ByOrigin[skilltypes.OriginBuiltin])
		assert.Equal(t, 3, stats.ByCategory["uncategorized"])
		assert.Equal(t, 3, stats.ByExecutionType[skilltypes.ExecutionScript])
		require.NotNil(t, r.LastReport())
		assert.Len(t, r.LastReport().Skipped, 1)
	})

	t.Run("allowlist", func(t *testing.T) {
		r := newTestRegistry(t, newCountingExecutor(),
			WithDiscovery(newDiscovery(t)),
			WithAllowlist("alpha", "b*"),
		)
		require.NoError(t, r.Initialize(ctx))
		assert.Equal(t, []string{"alpha", "beta"}, r.Names())

		stats := r.Stats(ctx)
		assert.Equal(t, 3, stats.Discovered)
		assert.Equal(t, 2, stats.Registered)
	})

	t.Run("invalid allowlist pattern", func(t *testing.T) {
		_, err := NewRegistry(WithAllowlist("[unclosed"))
		assert.Error(t, err)
	})

	t.Run("rediscovery clears the cache", func(t *testing.T) {
		exec := newCountingExecutor()
		r := newTestRegistry(t, exec, WithDiscovery(newDiscovery(t)))
		require.NoError(t, r.Initialize(ctx))

		_, err := r.Execute(ctx, "alpha", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Stats(ctx).CacheSize)

		_, err = r.Discover(ctx)
		require.NoError(t, err)
		assert.Zero(t, r.Stats(ctx).CacheSize)
	})

	t.Run("discover without discovery", func(t *testing.T) {
		r := newTestRegistry(t, newCountingExecutor())
		_, err := r.Discover(ctx)
		assert.Error(t, err)
	})
}

func TestRegistrySearch(t *testing.T) {
	r := newTestRegistry(t, newCountingExecutor())
	require.NoError(t, r.Register(summarizeSkill()))

	counter := scriptSkill("word-count")
	counter.Description = "Count words in text"
	counter.Category = "text"
	counter.Tags = []string{"utility"}
	require.NoError(t, r.Register(counter))

	bump := scriptSkill("semver-bump")
	bump.Description = "Bump a version"
	bump.Category = "release"
	bump.Tags = []string{"versioning", "utility"}
	require.NoError(t, r.Register(bump))

	names := func(skills []*skilltypes.Skill) []string {
		out := make([]string, 0, len(skills))
		for _, s := range skills {
			out = append(out, s.Name)
		}
		return out
	}

	all := r.Search("", Filters{})
	assert.Equal(t, []string{"semver-bump", "summarize", "word-count"}, names(all))

	tests := []struct {
		name     string
		query    string
		filters  Filters
		expected []string
	}{
		{"name match", "summ", Filters{}, []string{"summarize"}},
		{"case insensitive description", "WORDS", Filters{}, []string{"word-count"}},
		{"tag match", "version", Filters{}, []string{"semver-bump"}},
		{"category filter", "", Filters{Category: "TEXT"}, []string{"summarize", "word-count"}},
		{"tag filter", "", Filters{Tags: []string{"utility"}}, []string{"semver-bump", "word-count"}},
		{"type filter", "", Filters{Type: skilltypes.ExecutionAIPrompt}, []string{"summarize"}},
		{"query and filter", "count", Filters{Category: "release"}, []string{}},
		{"no match", "translate", Filters{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Search(tt.query, tt.filters)
			assert.Equal(t, tt.expected, names(got))
			assert.Subset(t, names(all), names(got))
		})
	}

	assert.Equal(t, []string{"summarize", "word-count"}, names(r.List("text")))
	assert.Len(t, r.List(""), 3)
}

func TestRegistryClose(t *testing.T) {
	var closed []string
	r, err := NewRegistry(
		WithCloser(func() error { closed = append(closed, "history"); return nil }),
		WithCloser(func() error { closed = append(closed, "mcp"); return errors.New("mcp close failed") }),
	)
	require.NoError(t, err)

	err = r.Close()
	assert.ErrorContains(t, err, "mcp close failed")
	assert.Equal(t, []string{"history", "mcp"}, closed)
	assert.NoError(t, r.Close(), "closers run once")
}
