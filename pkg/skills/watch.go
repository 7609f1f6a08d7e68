package skills

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultWatchDebounce is how long Watch waits for changes to settle
const DefaultWatchDebounce = 300 * time.Millisecond

// Watch re-discovers whenever a definition file under a community or custom
// directory changes. Bursts of events are collapsed into one pass. It blocks
// until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, debounce time.Duration) error {
	if r.discovery == nil {
		return errors.New("registry has no discovery configured")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	log := logger.G(ctx)
	for _, dir := range r.discovery.Dirs() {
		if err := addRecursive(watcher, dir); err != nil {
			log.WithError(err).WithField("dir", dir).Debug("not watching skills directory")
		}
	}

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(watcher, event.Name)
				}
			}
			if !IsDefinitionFile(event.Name) && event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.WithField("file", event.Name).WithField("operation", event.Op.String()).Debug("skill definition changed")
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			trigger = timer.C
		case <-trigger:
			trigger = nil
			report, err := r.Discover(ctx)
			if err != nil {
				log.WithError(err).Warn("failed to reload skills")
				continue
			}
			log.WithField("valid", report.Valid).WithField("skipped", len(report.Skipped)).Info("reloaded skills")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("skill watcher error")
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}
