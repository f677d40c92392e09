package pubsub

import (
	"context"
	"encoding/json"

	"github.com/ritzau/insights-dashboard/pkg/model"
)

// TopicDashboard carries every state change of the dashboard
const TopicDashboard = "dashboard"

// Event types published on TopicDashboard
const (
	EventFiltersChanged = "filters_changed"
	EventFetchStarted   = "fetch_started"
	EventFetchFailed    = "fetch_failed"
	EventFetchDiscarded = "fetch_discarded"
	EventRendered       = "rendered"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic, e.g. "dashboard"
	Type    string          `json:"type"`    // Event type, e.g. "fetch_started" or "rendered"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// FiltersChanged is published when a filter value changed
type FiltersChanged struct {
	Filters model.FilterSet   `json:"filters"`
	Changed []model.FilterKey `json:"changed"`
}

// FetchStatus describes one fetch. Error and Kind are set for fetch_failed only.
type FetchStatus struct {
	FetchID string          `json:"fetchId"`
	URL     string          `json:"url"`
	Filters model.FilterSet `json:"filters"`
	Kind    string          `json:"kind,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Rendered is published after all charts and the record list were redrawn
type Rendered struct {
	Version int             `json:"version"` // Dataset generation shown by the charts
	Records int             `json:"records"`
	Filters model.FilterSet `json:"filters"`
	Slots   []string        `json:"slots"`
}
