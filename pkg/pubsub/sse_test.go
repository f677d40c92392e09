package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/insights-dashboard/pkg/model"
)

func publishN(t *testing.T, pub Publisher, topic string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if err := pub.Publish(topic, "event", map[string]int{"num": i}); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}
}

func TestEventBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic("test", TopicConfig{BufferSize: 3, ReplayAll: true})
	publishN(t, pub, "test", 5)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, "test")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// last 3 of 5 are replayed
	for want := 3; want <= 5; want++ {
		select {
		case event := <-sub.Events():
			if event.Version != want {
				t.Errorf("Expected version %d, got %d", want, event.Version)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for version %d", want)
		}
	}
}

func TestDashboardTopicReplaysLatestOnly(t *testing.T) {
	pub := NewDashboardPublisher()
	defer pub.Close()

	_ = pub.Publish(TopicDashboard, EventFetchStarted, FetchStatus{FetchID: "a"})
	_ = pub.Publish(TopicDashboard, EventRendered, Rendered{Version: 1, Records: 2})

	sub, err := pub.Subscribe(context.Background(), TopicDashboard)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		if event.Type != EventRendered || event.Version != 2 {
			t.Errorf("replayed %s v%d, want rendered v2", event.Type, event.Version)
		}
		var r Rendered
		if err := json.Unmarshal(event.Data, &r); err != nil || r.Records != 2 {
			t.Errorf("payload = %s (%v)", event.Data, err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	publishN(t, pub, "test", 3)

	sub, err := pub.Subscribe(context.Background(), "test")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected replayed event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}

	if err := pub.Publish("test", "event", map[string]int{"num": 4}); err != nil {
		t.Fatalf("Failed to publish new event: %v", err)
	}
	select {
	case event := <-sub.Events():
		if event.Version != 4 {
			t.Errorf("Expected version 4, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for new event")
	}
}

func TestCancelledContextEndsSubscription(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := pub.Subscribe(ctx, "test")
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("expected the channel to be closed, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription channel was not closed after cancel")
	}
	if n := pub.Subscribers("test"); n != 0 {
		t.Errorf("Subscribers = %d after cancel, want 0", n)
	}
	// closing again is harmless
	if err := sub.Close(); err != nil {
		t.Error(err)
	}
}

func TestClosedPublisher(t *testing.T) {
	pub := NewSSEPublisher()
	sub, _ := pub.Subscribe(context.Background(), "test")
	_ = pub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("expected subscription to end when the publisher closes")
	}
	_ = sub.Close()

	if _, err := pub.Subscribe(context.Background(), "test"); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe after Close = %v, want ErrClosed", err)
	}
	if err := pub.Publish("test", "event", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
}

func TestStreamWritesEvents(t *testing.T) {
	pub := NewDashboardPublisher()
	defer pub.Close()

	changed := FiltersChanged{
		Filters: model.FilterSet{}.With(model.FilterTopic, "oil"),
		Changed: []model.FilterKey{model.FilterTopic},
	}
	_ = pub.Publish(TopicDashboard, EventFiltersChanged, changed)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/subscribe/dashboard", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		Stream(rec, req, pub, TopicDashboard)
		close(done)
	}()

	// wait until the replayed event has been handed over, then hang up
	deadline := time.After(time.Second)
	for pub.Subscribers(TopicDashboard) == 0 {
		select {
		case <-deadline:
			t.Fatal("stream never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stream did not return after the client went away")
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, ": connected\n\n") {
		t.Errorf("missing connect comment: %q", body)
	}
	if !strings.Contains(body, `"type":"filters_changed"`) || !strings.Contains(body, `"topic":"oil"`) {
		t.Errorf("event not streamed: %q", body)
	}
}
