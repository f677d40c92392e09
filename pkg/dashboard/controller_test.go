package dashboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/insights-dashboard/pkg/chart"
	"github.com/ritzau/insights-dashboard/pkg/fetch"
	"github.com/ritzau/insights-dashboard/pkg/model"
	"github.com/ritzau/insights-dashboard/pkg/pubsub"
	"github.com/ritzau/insights-dashboard/pkg/render"
)

const waitTimeout = 2 * time.Second

type outcome struct {
	ds  model.Dataset
	err error
}

// pending is one outstanding fetch; the test decides when and how it resolves
type pending struct {
	filters model.FilterSet
	reply   chan outcome
}

type scriptedFetcher struct {
	calls chan *pending
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{calls: make(chan *pending, 16)}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, filters model.FilterSet) (model.Dataset, error) {
	p := &pending{filters: filters, reply: make(chan outcome, 1)}
	f.calls <- p
	select {
	case o := <-p.reply:
		return o.ds, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *scriptedFetcher) next(t *testing.T) *pending {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (f *scriptedFetcher) idle(t *testing.T) {
	t.Helper()
	select {
	case p := <-f.calls:
		t.Fatalf("unexpected fetch with filters %+v", p.filters)
	case <-time.After(50 * time.Millisecond):
	}
}

type harness struct {
	c       *Controller
	fetcher *scriptedFetcher
	events  <-chan pubsub.Event
}

func start(t *testing.T, opts Options) *harness {
	t.Helper()
	pub := pubsub.NewSSEPublisher()
	sub, err := pub.Subscribe(context.Background(), pubsub.TopicDashboard)
	if err != nil {
		t.Fatal(err)
	}

	f := newScriptedFetcher()
	opts.Publisher = pub
	c := New(f, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Error("Run did not return after cancel")
		}
		_ = pub.Close()
	})

	return &harness{c: c, fetcher: f, events: sub.Events()}
}

func (h *harness) await(t *testing.T, eventType string) pubsub.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-h.events:
			if e.Type == eventType {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
			return pubsub.Event{}
		}
	}
}

func records(titles ...string) model.Dataset {
	ds := make(model.Dataset, len(titles))
	for i, title := range titles {
		v := model.Num(float64(i + 1))
		ds[i] = model.Record{Title: title, Intensity: v, Likelihood: v, Relevance: v, StartYear: model.Num(2015 + float64(i))}
	}
	return ds
}

func titlesOf(ds model.Dataset) string {
	return strings.Join(ds.Titles(), ",")
}

func (h *harness) bars(t *testing.T) int {
	t.Helper()
	shapes, err := h.c.Shapes("intensity-bar-chart")
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, s := range shapes {
		if _, ok := s.(chart.Rect); ok {
			n++
		}
	}
	return n
}

func TestStartupRendersEmptyThenFetches(t *testing.T) {
	h := start(t, Options{})

	h.await(t, pubsub.EventRendered)
	if v := h.c.View(); v.Version != 1 || len(v.Dataset) != 0 {
		t.Fatalf("initial view = %+v, want empty version 1", v)
	}
	if n := h.bars(t); n != 0 {
		t.Errorf("initial chart has %d bars", n)
	}

	p := h.fetcher.next(t)
	if p.filters != (model.FilterSet{}) {
		t.Errorf("initial fetch filters = %+v, want all empty", p.filters)
	}
	p.reply <- outcome{ds: records("A", "B")}

	h.await(t, pubsub.EventRendered)
	if got := titlesOf(h.c.View().Dataset); got != "A,B" {
		t.Errorf("dataset = %s, want A,B", got)
	}
	if n := h.bars(t); n != 2 {
		t.Errorf("chart has %d bars, want 2", n)
	}
}

func TestFailedFetchKeepsCharts(t *testing.T) {
	h := start(t, Options{})
	h.fetcher.next(t).reply <- outcome{ds: records("A", "B")}
	h.await(t, pubsub.EventRendered)
	h.await(t, pubsub.EventRendered)
	before := h.c.View()

	if _, err := h.c.SetFilter(context.Background(), model.FilterTopic, "oil"); err != nil {
		t.Fatal(err)
	}
	h.fetcher.next(t).reply <- outcome{err: &fetch.FetchError{Kind: fetch.KindStatus, URL: "http://x", StatusCode: 500}}

	e := h.await(t, pubsub.EventFetchFailed)
	if !strings.Contains(string(e.Data), `"kind":"status"`) {
		t.Errorf("fetch_failed payload = %s", e.Data)
	}

	after := h.c.View()
	if after != before {
		t.Errorf("view changed after a failed fetch: %+v", after)
	}
	if n := h.bars(t); n != 2 {
		t.Errorf("chart has %d bars after failure, want 2", n)
	}
	if got := h.c.Filters().Topic; got != "oil" {
		t.Errorf("filter state = %q, want oil", got)
	}
}

func TestEachFilterEditFetchesFullSet(t *testing.T) {
	h := start(t, Options{})
	h.fetcher.next(t).reply <- outcome{}

	ctx := context.Background()
	if _, err := h.c.SetFilter(ctx, model.FilterTopic, "oil"); err != nil {
		t.Fatal(err)
	}
	set, err := h.c.SetFilter(ctx, model.FilterRegion, "Asia")
	if err != nil {
		t.Fatal(err)
	}
	if set.Topic != "oil" || set.Region != "Asia" {
		t.Errorf("SetFilter returned %+v", set)
	}

	first, second := h.fetcher.next(t), h.fetcher.next(t)
	if first.filters.Topic != "oil" || first.filters.Region != "" {
		t.Errorf("first fetch = %+v", first.filters)
	}
	if second.filters.Topic != "oil" || second.filters.Region != "Asia" {
		t.Errorf("second fetch = %+v", second.filters)
	}
	h.fetcher.idle(t)
}

func TestUnchangedValueStillFetches(t *testing.T) {
	h := start(t, Options{})
	h.fetcher.next(t).reply <- outcome{}

	for i := 0; i < 2; i++ {
		if _, err := h.c.SetFilter(context.Background(), model.FilterCity, "Oslo"); err != nil {
			t.Fatal(err)
		}
	}
	h.fetcher.next(t)
	h.fetcher.next(t)
}

func TestLastResolvedResponseWins(t *testing.T) {
	h := start(t, Options{})
	h.fetcher.next(t).reply <- outcome{}
	h.await(t, pubsub.EventRendered)
	h.await(t, pubsub.EventRendered)

	ctx := context.Background()
	_, _ = h.c.SetFilter(ctx, model.FilterTopic, "oil")
	older := h.fetcher.next(t)
	_, _ = h.c.SetFilter(ctx, model.FilterRegion, "Asia")
	newer := h.fetcher.next(t)

	newer.reply <- outcome{ds: records("new")}
	h.await(t, pubsub.EventRendered)
	older.reply <- outcome{ds: records("old")}
	h.await(t, pubsub.EventRendered)

	v := h.c.View()
	if got := titlesOf(v.Dataset); got != "old" {
		t.Errorf("dataset = %s, want the later-resolving old response", got)
	}
	if v.Filters.Region != "" {
		t.Errorf("view filters = %+v, want those of the older request", v.Filters)
	}
}

func TestDiscardStaleKeepsNewestRequest(t *testing.T) {
	h := start(t, Options{DiscardStale: true})
	h.fetcher.next(t).reply <- outcome{}
	h.await(t, pubsub.EventRendered)
	h.await(t, pubsub.EventRendered)

	ctx := context.Background()
	_, _ = h.c.SetFilter(ctx, model.FilterTopic, "oil")
	older := h.fetcher.next(t)
	_, _ = h.c.SetFilter(ctx, model.FilterRegion, "Asia")
	newer := h.fetcher.next(t)

	newer.reply <- outcome{ds: records("new")}
	h.await(t, pubsub.EventRendered)
	older.reply <- outcome{ds: records("old")}
	h.await(t, pubsub.EventFetchDiscarded)

	if got := titlesOf(h.c.View().Dataset); got != "new" {
		t.Errorf("dataset = %s, want new", got)
	}
}

func TestApplyFiltersIsOneChange(t *testing.T) {
	h := start(t, Options{})
	h.fetcher.next(t).reply <- outcome{}

	preset := model.FilterSet{Topic: "gas", Country: "India"}
	changed, err := h.c.ApplyFilters(context.Background(), preset)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 2 {
		t.Errorf("changed = %v, want 2 keys", changed)
	}
	if p := h.fetcher.next(t); p.filters != preset {
		t.Errorf("fetch filters = %+v", p.filters)
	}
	h.fetcher.idle(t)

	// same preset again is not a change
	changed, _ = h.c.ApplyFilters(context.Background(), preset)
	if len(changed) != 0 {
		t.Errorf("changed = %v, want none", changed)
	}
	h.fetcher.idle(t)
}

func TestAllChartsShowSameDataset(t *testing.T) {
	h := start(t, Options{})
	h.fetcher.next(t).reply <- outcome{ds: records("X", "Y", "Z")}
	h.await(t, pubsub.EventRendered)
	h.await(t, pubsub.EventRendered)

	for _, slot := range h.c.Slots() {
		shapes, err := h.c.Shapes(slot)
		if err != nil {
			t.Fatal(err)
		}
		var labels []string
		for _, s := range shapes {
			if txt, ok := s.(chart.Text); ok && txt.Rotate != 0 {
				labels = append(labels, txt.Body)
			}
		}
		if got := strings.Join(labels, ","); got != "X,Y,Z" {
			t.Errorf("%s x labels = %s, want X,Y,Z", slot, got)
		}
	}

	var list bytes.Buffer
	listVersion, err := h.c.WriteRecords(&list)
	if err != nil {
		t.Fatal(err)
	}
	if listVersion != h.c.View().Version {
		t.Errorf("record list version = %d, view version = %d", listVersion, h.c.View().Version)
	}
	if strings.Count(list.String(), "<li>") != 3 {
		t.Errorf("record list = %s", list.String())
	}
}

func TestSetFilterRejectsUnknownKey(t *testing.T) {
	h := start(t, Options{})
	if _, err := h.c.SetFilter(context.Background(), model.FilterKey("year"), "2017"); err == nil {
		t.Error("expected an error for an unknown filter key")
	}
}

func TestChartExport(t *testing.T) {
	h := start(t, Options{})
	h.await(t, pubsub.EventRendered)

	var buf bytes.Buffer
	version, err := h.c.Chart(&buf, "start_year-line-chart", render.FormatSVG)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Errorf("export is not svg")
	}
	if version != 1 {
		t.Errorf("exported version = %d, want 1 (the empty startup render)", version)
	}
	if _, err := h.c.Chart(&buf, "nope", render.FormatSVG); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("unknown slot error = %v", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	c := New(newScriptedFetcher(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetFilter(context.Background(), model.FilterTopic, "oil"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("SetFilter after stop = %v, want ErrNotRunning", err)
	}
	if err := c.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

func TestInitialFilters(t *testing.T) {
	h := start(t, Options{Filters: model.FilterSet{Sector: "Energy"}})
	if p := h.fetcher.next(t); p.filters.Sector != "Energy" {
		t.Errorf("initial fetch filters = %+v", p.filters)
	}
	if h.c.Filters().Sector != "Energy" {
		t.Errorf("Filters() = %+v", h.c.Filters())
	}
}
