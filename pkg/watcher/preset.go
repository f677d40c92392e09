package watcher

import (
	"context"
	"time"

	"github.com/ritzau/insights-dashboard/pkg/filters"
	"github.com/ritzau/insights-dashboard/pkg/logging"
	"github.com/ritzau/insights-dashboard/pkg/model"
)

const (
	presetQuietPeriod = 200 * time.Millisecond
	presetMaxWait     = 2 * time.Second
)

// ApplyFunc installs a complete filter set
type ApplyFunc func(ctx context.Context, set model.FilterSet) error

// WatchPreset loads the filter preset at path, applies it, and applies it
// again every time the file changes until ctx ends. A file that fails to
// parse is logged and skipped; the filters stay as they were.
func WatchPreset(ctx context.Context, path string, apply ApplyFunc) error {
	fw, err := NewFileWatcher(path)
	if err != nil {
		return err
	}
	fw.Start(ctx)

	debouncer := NewDebouncer(fw.Events(), presetQuietPeriod, presetMaxWait)
	debouncer.Start(ctx)

	reload(ctx, path, apply)
	for range debouncer.Output() {
		reload(ctx, path, apply)
	}
	return nil
}

func reload(ctx context.Context, path string, apply ApplyFunc) {
	set, err := filters.LoadPreset(path)
	if err != nil {
		logging.Warn("ignoring filter preset", "path", path, "error", err)
		return
	}
	if err := apply(ctx, set); err != nil && ctx.Err() == nil {
		logging.Warn("applying filter preset", "path", path, "error", err)
		return
	}
	logging.Info("filter preset loaded", "path", path)
}
