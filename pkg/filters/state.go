// Package filters holds the current filter values and the static table of filter fields.
package filters

import "github.com/ritzau/insights-dashboard/pkg/model"

// State is the single source of truth for the current filter values.
// It is owned by one goroutine (the dashboard loop) and is not synchronized.
type State struct {
	current model.FilterSet
}

// NewState starts with every field empty
func NewState() *State {
	return &State{}
}

// Get returns the current filter set. FilterSet is a value, so callers get a copy.
func (s *State) Get() model.FilterSet {
	return s.current
}

// Update sets key to value verbatim and returns the new set. No validation or
// coercion is applied to value; the data endpoint interprets it.
func (s *State) Update(key model.FilterKey, value string) model.FilterSet {
	s.current = s.current.With(key, value)
	return s.current
}

// Replace swaps in a whole filter set and reports which keys changed
func (s *State) Replace(set model.FilterSet) []model.FilterKey {
	changed := s.current.Diff(set)
	s.current = set
	return changed
}
