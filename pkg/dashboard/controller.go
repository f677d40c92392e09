// Package dashboard ties the filter state, the data fetch and the chart
// renderers together.
//
// All state transitions happen on the goroutine running Run. Fetches are
// dispatched to their own goroutines and post their result back to that loop,
// so filter edits are accepted while a request is outstanding. Every dataset
// that is accepted is rendered into all chart slots and the record list in one
// pass under the display lock; readers never see charts from different
// datasets.
package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ritzau/insights-dashboard/pkg/chart"
	"github.com/ritzau/insights-dashboard/pkg/fetch"
	"github.com/ritzau/insights-dashboard/pkg/filters"
	"github.com/ritzau/insights-dashboard/pkg/listing"
	"github.com/ritzau/insights-dashboard/pkg/logging"
	"github.com/ritzau/insights-dashboard/pkg/model"
	"github.com/ritzau/insights-dashboard/pkg/pubsub"
	"github.com/ritzau/insights-dashboard/pkg/render"
)

// ErrNotRunning is returned by operations submitted after Run has returned
var ErrNotRunning = errors.New("dashboard is not running")

// ErrUnknownSlot is returned when exporting a chart slot that does not exist
var ErrUnknownSlot = errors.New("unknown chart slot")

// Options configure a Controller
type Options struct {
	// DiscardStale drops fetch results older than the most recently dispatched
	// request. When false, whichever response resolves last is shown.
	DiscardStale bool
	// Publisher receives dashboard events; nil disables publishing
	Publisher pubsub.Publisher
	// Filters is the initial filter state used by the first fetch
	Filters model.FilterSet
	Layout  chart.Layout
}

// View is the dataset currently on display and the filters it was fetched with
type View struct {
	Version   int             `json:"version"`
	Filters   model.FilterSet `json:"filters"`
	Dataset   model.Dataset   `json:"records"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Controller is the composition root of the dashboard
type Controller struct {
	fetcher      fetch.Fetcher
	pub          pubsub.Publisher
	discardStale bool
	layout       chart.Layout

	cmds    chan func(ctx context.Context)
	running atomic.Bool
	done    chan struct{}

	// owned by the loop goroutine
	state      *filters.State
	dispatched uint64
	version    int

	// filters mirrors state for readers outside the loop
	filters atomic.Pointer[model.FilterSet]

	display  sync.RWMutex
	renderer *render.Renderer
	list     []byte
	view     *View

	inflight sync.WaitGroup
}

// New creates a controller. Nothing is fetched until Run.
func New(f fetch.Fetcher, opts Options) *Controller {
	if opts.Layout == (chart.Layout{}) {
		opts.Layout = chart.DefaultLayout()
	}

	slots := make([]string, len(chart.DashboardCharts))
	for i, spec := range chart.DashboardCharts {
		slots[i] = spec.Slot()
	}

	c := &Controller{
		fetcher:      f,
		pub:          opts.Publisher,
		discardStale: opts.DiscardStale,
		layout:       opts.Layout,
		cmds:         make(chan func(context.Context)),
		done:         make(chan struct{}),
		state:        filters.NewState(),
		renderer:     render.NewRenderer(opts.Layout, slots...),
		view:         &View{},
	}
	c.state.Replace(opts.Filters)
	initial := c.state.Get()
	c.filters.Store(&initial)
	return c
}

// Run draws the empty dashboard, issues the initial fetch and then processes
// filter changes and fetch results until ctx is cancelled. Run may be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("dashboard is already running")
	}
	defer func() {
		close(c.done)
		c.inflight.Wait()
	}()

	logging.Info("dashboard started", "discardStale", c.discardStale)

	// the initial empty dataset is a dataset change like any other
	c.show(model.Dataset{}, c.state.Get())
	c.dispatch(ctx, c.state.Get())

	for {
		select {
		case <-ctx.Done():
			logging.Info("dashboard stopped")
			return nil
		case cmd := <-c.cmds:
			cmd(ctx)
		}
	}
}

// submit runs fn on the loop goroutine and waits for it to finish. It blocks
// until Run picks the command up, Run has returned, or ctx ends.
func (c *Controller) submit(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	cmd := func(loopCtx context.Context) {
		defer close(finished)
		fn(loopCtx)
	}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// SetFilter changes one filter value and issues a fetch for the resulting set.
// Every call fetches, even when the value is unchanged.
func (c *Controller) SetFilter(ctx context.Context, key model.FilterKey, value string) (model.FilterSet, error) {
	if _, err := model.ParseFilterKey(string(key)); err != nil {
		return model.FilterSet{}, err
	}

	var next model.FilterSet
	err := c.submit(ctx, func(loopCtx context.Context) {
		prev := c.state.Get()
		next = c.state.Update(key, value)
		c.filtersChanged(loopCtx, next, prev.Diff(next))
	})
	return next, err
}

// ApplyFilters replaces the whole filter set, e.g. from a preset file. It
// counts as a single change: at most one fetch is issued, and none when the
// set is identical to the current one.
func (c *Controller) ApplyFilters(ctx context.Context, set model.FilterSet) ([]model.FilterKey, error) {
	var changed []model.FilterKey
	err := c.submit(ctx, func(loopCtx context.Context) {
		changed = c.state.Replace(set)
		if len(changed) == 0 {
			logging.Debug("filter preset unchanged, not fetching")
			return
		}
		c.filtersChanged(loopCtx, c.state.Get(), changed)
	})
	return changed, err
}

func (c *Controller) filtersChanged(ctx context.Context, next model.FilterSet, changed []model.FilterKey) {
	c.filters.Store(&next)
	logging.Info("filters changed", "changed", changed)
	c.publish(pubsub.EventFiltersChanged, pubsub.FiltersChanged{Filters: next, Changed: changed})
	c.dispatch(ctx, next)
}

// Filters returns the current filter state, which may be ahead of the dataset on display
func (c *Controller) Filters() model.FilterSet {
	return *c.filters.Load()
}

type result struct {
	seq     uint64
	id      string
	filters model.FilterSet
	dataset model.Dataset
	err     error
	elapsed time.Duration
}

// dispatch starts a fetch without waiting for it. Earlier fetches keep running.
func (c *Controller) dispatch(ctx context.Context, f model.FilterSet) {
	c.dispatched++
	seq := c.dispatched
	id := uuid.NewString()
	fctx := logging.WithFetchID(ctx, id)

	logging.DebugContext(fctx, "fetch dispatched", "seq", seq)
	c.publish(pubsub.EventFetchStarted, pubsub.FetchStatus{FetchID: id, URL: c.requestURL(f), Filters: f})

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		start := time.Now()
		ds, err := c.fetcher.Fetch(fctx, f)
		r := result{seq: seq, id: id, filters: f, dataset: ds, err: err, elapsed: time.Since(start)}

		select {
		case c.cmds <- func(loopCtx context.Context) { c.resolve(logging.WithFetchID(loopCtx, id), r) }:
		case <-c.done:
		}
	}()
}

func (c *Controller) requestURL(f model.FilterSet) string {
	if u, ok := c.fetcher.(interface {
		RequestURL(model.FilterSet) (string, error)
	}); ok {
		if s, err := u.RequestURL(f); err == nil {
			return s
		}
	}
	return ""
}

// resolve runs on the loop. A failed fetch leaves the dataset on display untouched.
func (c *Controller) resolve(ctx context.Context, r result) {
	if r.err != nil {
		status := pubsub.FetchStatus{FetchID: r.id, URL: c.requestURL(r.filters), Filters: r.filters, Error: r.err.Error()}
		var fe *fetch.FetchError
		if errors.As(r.err, &fe) {
			status.Kind = string(fe.Kind)
			status.URL = fe.URL
		}
		logging.WarnContext(ctx, "fetch failed, keeping current dataset", "error", r.err, "durationMs", r.elapsed.Milliseconds())
		c.publish(pubsub.EventFetchFailed, status)
		return
	}

	if c.discardStale && r.seq < c.dispatched {
		logging.InfoContext(ctx, "discarding stale response", "seq", r.seq, "latest", c.dispatched, "records", len(r.dataset))
		c.publish(pubsub.EventFetchDiscarded, pubsub.FetchStatus{FetchID: r.id, URL: c.requestURL(r.filters), Filters: r.filters})
		return
	}

	logging.InfoContext(ctx, "fetch completed", "records", len(r.dataset), "durationMs", r.elapsed.Milliseconds())
	c.show(r.dataset, r.filters)
}

// show replaces the dataset on display and redraws every chart slot and the
// record list from it. Geometry is computed before the display lock is taken.
func (c *Controller) show(ds model.Dataset, f model.FilterSet) {
	geoms := make([]*chart.Geometry, len(chart.DashboardCharts))
	for i, spec := range chart.DashboardCharts {
		geoms[i] = chart.Build(ds, spec, c.layout)
	}

	var list bytes.Buffer
	if err := listing.WriteHTML(&list, ds); err != nil {
		logging.Error("rendering record list", "error", err)
	}

	c.version++
	view := &View{Version: c.version, Filters: f, Dataset: ds, UpdatedAt: time.Now()}

	c.display.Lock()
	for _, g := range geoms {
		if err := c.renderer.Render(g.Spec.Slot(), g); err != nil {
			logging.Error("rendering chart", "slot", g.Spec.Slot(), "error", err)
		}
	}
	c.list = list.Bytes()
	c.view = view
	c.display.Unlock()

	c.publish(pubsub.EventRendered, pubsub.Rendered{
		Version: view.Version,
		Records: len(ds),
		Filters: f,
		Slots:   c.renderer.Slots(),
	})
}

// View returns the dataset on display
func (c *Controller) View() *View {
	c.display.RLock()
	defer c.display.RUnlock()
	return c.view
}

// Chart exports the current content of a chart slot and returns the view
// version it was drawn from
func (c *Controller) Chart(w io.Writer, slot string, format render.Format) (int, error) {
	c.display.RLock()
	defer c.display.RUnlock()

	canvas, ok := c.renderer.Canvas(slot)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	return c.view.Version, canvas.Export(w, format)
}

// Shapes returns the primitives currently drawn in a slot
func (c *Controller) Shapes(slot string) ([]chart.Shape, error) {
	c.display.RLock()
	defer c.display.RUnlock()

	canvas, ok := c.renderer.Canvas(slot)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	return canvas.Shapes(), nil
}

// WriteRecords writes the record list HTML rendered with the current charts
// and returns its view version
func (c *Controller) WriteRecords(w io.Writer) (int, error) {
	c.display.RLock()
	defer c.display.RUnlock()
	_, err := w.Write(c.list)
	return c.view.Version, err
}

// Slots lists the chart slot ids
func (c *Controller) Slots() []string {
	return c.renderer.Slots()
}

func (c *Controller) publish(eventType string, data any) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(pubsub.TopicDashboard, eventType, data); err != nil && !errors.Is(err, pubsub.ErrClosed) {
		logging.Warn("publishing dashboard event", "type", eventType, "error", err)
	}
}
