package skills

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "first.yaml"), yamlSkill("first", "First"))

	discovery, err := NewDiscovery(WithCustomDirs(dir))
	require.NoError(t, err)
	r := newTestRegistry(t, newCountingExecutor(), WithDiscovery(discovery))
	require.NoError(t, r.Initialize(context.Background()))
	require.Equal(t, []string{"first"}, r.Names())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, 20*time.Millisecond) }()

	// Give the watcher a moment to register the directories
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "second.yaml"), yamlSkill("second", "Second"))

	assert.Eventually(t, func() bool {
		return r.Has("second")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchWithoutDiscovery(t *testing.T) {
	r := newTestRegistry(t, newCountingExecutor())
	assert.Error(t, r.Watch(context.Background(), 0))
}
