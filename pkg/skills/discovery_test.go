package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yamlSkill(name, description string) string {
	return `name: ` + name + `
version: 1.0.0
description: ` + description + `
execution:
  type: script
  language: javascript
  code: return {};
`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewDiscovery(t *testing.T) {
	t.Run("with default dirs", func(t *testing.T) {
		discovery, err := NewDiscovery()
		require.NoError(t, err)
		assert.Len(t, discovery.roots, 4)
		assert.Equal(t, skilltypes.OriginBuiltin, discovery.roots[0].origin)
		assert.Len(t, discovery.CustomDirs(), 2)
		assert.Len(t, discovery.Dirs(), 3)
	})

	t.Run("with explicit dirs", func(t *testing.T) {
		discovery, err := NewDiscovery(
			WithCommunityDirs("/tmp/community"),
			WithCustomDirs("/tmp/skills1", "/tmp/skills2"),
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"/tmp/skills1", "/tmp/skills2"}, discovery.CustomDirs())
		assert.Equal(t, []string{"/tmp/community", "/tmp/skills1", "/tmp/skills2"}, discovery.Dirs())
	})

	t.Run("nil builtin", func(t *testing.T) {
		_, err := NewDiscovery(WithBuiltin(nil))
		assert.Error(t, err)
	})
}

func TestDiscoverBuiltins(t *testing.T) {
	builtin, err := BuiltinFS()
	require.NoError(t, err)

	discovery, err := NewDiscovery(WithBuiltin(builtin))
	require.NoError(t, err)

	found, report := discovery.Discover(context.Background())
	require.NoError(t, report.Err())
	assert.Empty(t, report.Skipped)

	for _, name := range []string{
		"classify-sentiment",
		"code-review",
		"fetch-url",
		"release-notes",
		"semver-bump",
		"summarize",
		"word-count",
	} {
		skill, ok := found[name]
		require.True(t, ok, "builtin %s not discovered", name)
		assert.Equal(t, skilltypes.OriginBuiltin, skill.Source.Origin)
	}
	assert.Equal(t, report.Valid, len(found))
	assert.Equal(t, "builtin:code-review/SKILL.md", found["code-review"].Source.Path)
}

func TestDiscoverSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"good.yaml":          {Data: []byte(yamlSkill("good", "A good skill"))},
		"nested/deep.toml":   {Data: []byte("name = \"deep\"\nversion = \"1.0.0\"\ndescription = \"Deep\"\n[execution]\ntype = \"mcp\"\nserver = \"s\"\ntool = \"t\"\n")},
		"bad-version.yaml":   {Data: []byte("name: bad\nversion: one\ndescription: Bad\nexecution:\n  type: script\n  language: js\n  code: x\n")},
		"broken.json":        {Data: []byte("{not json")},
		".git/config.yaml":   {Data: []byte(yamlSkill("hidden", "Should be ignored"))},
		"notes.txt":          {Data: []byte("not a definition")},
		"review/SKILL.md":    {Data: []byte("---\nname: review\nversion: 1.0.0\ndescription: Review\n---\n\nReview {{diff}}\n")},
		"review/helpers.txt": {Data: []byte("ignored")},
	}

	discovery, err := NewDiscovery(WithBuiltin(fsys))
	require.NoError(t, err)

	found, report := discovery.Discover(context.Background())

	assert.Len(t, found, 3)
	assert.Contains(t, found, "good")
	assert.Contains(t, found, "deep")
	assert.Contains(t, found, "review")
	assert.NotContains(t, found, "hidden")

	assert.Equal(t, 5, report.Scanned)
	assert.Equal(t, 3, report.Valid)
	require.Len(t, report.Skipped, 2)
	paths := []string{report.Skipped[0].Path, report.Skipped[1].Path}
	assert.ElementsMatch(t, []string{"builtin:bad-version.yaml", "builtin:broken.json"}, paths)
	assert.Error(t, report.Err())
}

func TestDiscoverOverridePrecedence(t *testing.T) {
	builtin := fstest.MapFS{
		"shared.yaml": {Data: []byte(yamlSkill("shared", "from builtin"))},
		"only.yaml":   {Data: []byte(yamlSkill("only-builtin", "untouched"))},
	}

	community := t.TempDir()
	custom := t.TempDir()
	writeFile(t, filepath.Join(community, "shared.yaml"), yamlSkill("shared", "from community"))
	writeFile(t, filepath.Join(custom, "shared", "shared.yaml"), yamlSkill("shared", "from custom"))

	discovery, err := NewDiscovery(
		WithBuiltin(builtin),
		WithCommunityDirs(community),
		WithCustomDirs(custom),
	)
	require.NoError(t, err)

	found, report := discovery.Discover(context.Background())
	require.Len(t, found, 2)

	shared := found["shared"]
	assert.Equal(t, "from custom", shared.Description)
	assert.Equal(t, skilltypes.OriginCustom, shared.Source.Origin)
	assert.Equal(t, filepath.Join(custom, "shared", "shared.yaml"), shared.Source.Path)
	assert.Equal(t, []string{"shared", "shared"}, report.Overridden)
	assert.Equal(t, skilltypes.OriginBuiltin, found["only-builtin"].Source.Origin)
}

func TestDiscoverMissingDirectory(t *testing.T) {
	discovery, err := NewDiscovery(WithCustomDirs(filepath.Join(t.TempDir(), "does-not-exist")))
	require.NoError(t, err)

	found, report := discovery.Discover(context.Background())
	assert.Empty(t, found)
	assert.Zero(t, report.Scanned)
	assert.NoError(t, report.Err())
}
