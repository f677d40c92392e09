package model

import "fmt"

// FilterKey names one of the recognized filter fields
type FilterKey string

const (
	FilterEndYear FilterKey = "end_year"
	FilterTopic   FilterKey = "topic"
	FilterSector  FilterKey = "sector"
	FilterRegion  FilterKey = "region"
	FilterPestle  FilterKey = "pestle"
	FilterSource  FilterKey = "source"
	FilterSwot    FilterKey = "swot"
	FilterCountry FilterKey = "country"
	FilterCity    FilterKey = "city"
)

// FilterKeys lists every recognized filter key in display order.
// The set is closed: nothing outside this list is ever stored in a FilterSet.
var FilterKeys = []FilterKey{
	FilterEndYear,
	FilterTopic,
	FilterSector,
	FilterRegion,
	FilterPestle,
	FilterSource,
	FilterSwot,
	FilterCountry,
	FilterCity,
}

// ParseFilterKey validates a key coming from outside the process (HTTP path, preset file)
func ParseFilterKey(s string) (FilterKey, error) {
	for _, k := range FilterKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown filter key %q", s)
}

// FilterSet holds the value of every filter field. An empty string means "no constraint".
// The url tags drive query serialization; empty values are intentionally kept.
type FilterSet struct {
	EndYear string `url:"end_year" yaml:"end_year" json:"end_year"`
	Topic   string `url:"topic" yaml:"topic" json:"topic"`
	Sector  string `url:"sector" yaml:"sector" json:"sector"`
	Region  string `url:"region" yaml:"region" json:"region"`
	Pestle  string `url:"pestle" yaml:"pestle" json:"pestle"`
	Source  string `url:"source" yaml:"source" json:"source"`
	Swot    string `url:"swot" yaml:"swot" json:"swot"`
	Country string `url:"country" yaml:"country" json:"country"`
	City    string `url:"city" yaml:"city" json:"city"`
}

// Get returns the value stored under key
func (f FilterSet) Get(key FilterKey) string {
	return *f.field(key)
}

// With returns a copy of f where key is set to value, verbatim.
// Passing a key outside FilterKeys is a programming error and panics.
func (f FilterSet) With(key FilterKey, value string) FilterSet {
	*f.field(key) = value
	return f
}

// Diff returns the keys whose values differ between f and other, in FilterKeys order
func (f FilterSet) Diff(other FilterSet) []FilterKey {
	var changed []FilterKey
	for _, k := range FilterKeys {
		if f.Get(k) != other.Get(k) {
			changed = append(changed, k)
		}
	}
	return changed
}

func (f *FilterSet) field(key FilterKey) *string {
	switch key {
	case FilterEndYear:
		return &f.EndYear
	case FilterTopic:
		return &f.Topic
	case FilterSector:
		return &f.Sector
	case FilterRegion:
		return &f.Region
	case FilterPestle:
		return &f.Pestle
	case FilterSource:
		return &f.Source
	case FilterSwot:
		return &f.Swot
	case FilterCountry:
		return &f.Country
	case FilterCity:
		return &f.City
	}
	panic(fmt.Sprintf("model: unknown filter key %q", key))
}
