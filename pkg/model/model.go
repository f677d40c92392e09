package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Metric names a numeric Record attribute that can be charted
type Metric string

const (
	MetricIntensity  Metric = "intensity"
	MetricLikelihood Metric = "likelihood"
	MetricRelevance  Metric = "relevance"
	MetricStartYear  Metric = "start_year"
	MetricEndYear    Metric = "end_year"
)

// Number is a numeric field that may be absent. The upstream data source sends
// numbers, numeric strings, empty strings or null for the same field.
type Number struct {
	Value float64
	Valid bool // false when the field was missing, null or blank
}

// Num builds a present Number
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// UnmarshalJSON accepts 12, 12.5, "12", "", and null. Any other value is absent.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = Number{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			// Non-numeric text contributes nothing rather than failing the whole dataset
			*n = Number{}
			return nil
		}
		*n = Num(v)
		return nil
	}

	// booleans, objects and arrays are treated like unparseable text
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*n = Number{}
		return nil
	}
	*n = Num(v)
	return nil
}

// MarshalJSON writes null for absent values
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// String renders the value the way the record list shows it: blank when absent
func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Record is one data point returned by the data endpoint
type Record struct {
	Title      string `json:"title"`
	Topic      string `json:"topic"`
	Sector     string `json:"sector"`
	Region     string `json:"region"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Pestle     string `json:"pestle"`
	Source     string `json:"source"`
	Swot       string `json:"swot,omitempty"`
	StartYear  Number `json:"start_year"`
	EndYear    Number `json:"end_year"`
	Intensity  Number `json:"intensity"`
	Likelihood Number `json:"likelihood"`
	Relevance  Number `json:"relevance"`
	Published  string `json:"published"` // Serialized date, rendered but never charted
}

// Value returns the numeric attribute named by m
func (r Record) Value(m Metric) Number {
	switch m {
	case MetricIntensity:
		return r.Intensity
	case MetricLikelihood:
		return r.Likelihood
	case MetricRelevance:
		return r.Relevance
	case MetricStartYear:
		return r.StartYear
	case MetricEndYear:
		return r.EndYear
	}
	return Number{}
}

// Dataset is the ordered result of one successful fetch. Order is the server's
// response order and doubles as the categorical axis order. A Dataset is
// replaced wholesale, never mutated after it is published.
type Dataset []Record

// Titles returns the categorical domain in dataset order, duplicates included
func (d Dataset) Titles() []string {
	titles := make([]string, len(d))
	for i, r := range d {
		titles[i] = r.Title
	}
	return titles
}

// Values returns the present values of m; absent fields are skipped
func (d Dataset) Values(m Metric) []float64 {
	values := make([]float64, 0, len(d))
	for _, r := range d {
		if v := r.Value(m); v.Valid {
			values = append(values, v.Value)
		}
	}
	return values
}
