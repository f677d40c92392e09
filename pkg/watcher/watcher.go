package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/insights-dashboard/pkg/logging"
)

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// relevantOps are the operations that can change the content of a file.
// Renames and removes count because editors replace files that way.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// FileWatcher watches a set of files. It watches their directories rather
// than the files so replaced files keep being tracked.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]struct{}
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher for the given files
func NewFileWatcher(files ...string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   make(map[string]struct{}, len(files)),
		events:  make(chan ChangeEvent, 100),
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("resolving %s: %w", f, err)
		}
		fw.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return fw, nil
}

// Start begins watching for file changes. The event channel is closed when ctx ends.
func (fw *FileWatcher) Start(ctx context.Context) {
	logging.Info("started watching files", "count", len(fw.files))
	go fw.processEvents(ctx)
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(relevantOps) {
				continue
			}
			if _, watched := fw.files[filepath.Clean(event.Name)]; !watched {
				continue
			}

			logging.Trace("file changed", "path", event.Name, "op", event.Op.String())
			select {
			case fw.events <- ChangeEvent{Paths: []string{event.Name}, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
