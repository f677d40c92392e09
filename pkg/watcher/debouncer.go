package watcher

import (
	"context"
	"time"

	"github.com/ritzau/insights-dashboard/pkg/logging"
)

// Debouncer batches rapid file system events so one save triggers one reload
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer. A batch is emitted after
// quietPeriod without events, or maxWait after its first event at the latest.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet    <-chan time.Time
		deadline <-chan time.Time
		paths    []string
		seen     = make(map[string]struct{})
		count    int
	)

	flush := func() {
		quiet, deadline = nil, nil
		if count == 0 {
			return
		}
		logging.Debug("flushing accumulated events", "count", count, "paths", len(paths))
		d.output <- ChangeEvent{Paths: paths, Timestamp: time.Now()}
		paths, seen, count = nil, make(map[string]struct{}), 0
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			for _, p := range event.Paths {
				if _, dup := seen[p]; !dup {
					seen[p] = struct{}{}
					paths = append(paths, p)
				}
			}
			count++

			quiet = time.After(d.quietPeriod)
			if deadline == nil {
				deadline = time.After(d.maxWait)
			}

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
