package chart

import (
	"fmt"

	"github.com/ritzau/insights-dashboard/pkg/model"
)

// Kind is the chart shape drawn for a metric
type Kind string

const (
	KindBar  Kind = "bar"
	KindLine Kind = "line"
)

// Spec describes one chart of the dashboard
type Spec struct {
	Metric model.Metric `json:"metric"`
	Kind   Kind         `json:"kind"`
}

// Slot returns the stable id of the drawing area the chart renders into,
// e.g. "intensity-bar-chart"
func (s Spec) Slot() string {
	return fmt.Sprintf("%s-%s-chart", s.Metric, s.Kind)
}

// DashboardCharts are the four charts derived from every dataset, in page order
var DashboardCharts = []Spec{
	{Metric: model.MetricIntensity, Kind: KindBar},
	{Metric: model.MetricLikelihood, Kind: KindBar},
	{Metric: model.MetricRelevance, Kind: KindBar},
	{Metric: model.MetricStartYear, Kind: KindLine},
}

// SpecForSlot finds the dashboard chart that owns slot
func SpecForSlot(slot string) (Spec, bool) {
	for _, s := range DashboardCharts {
		if s.Slot() == slot {
			return s, true
		}
	}
	return Spec{}, false
}

// Margin is the space reserved around the plot area for axes
type Margin struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// Layout is the fixed size of a chart surface. It does not depend on the dataset:
// more categories make bands narrower instead of making the surface wider.
type Layout struct {
	Width  float64
	Height float64
	Margin Margin
}

// DefaultLayout is 600x400 with room for the y axis on the left and x labels below
func DefaultLayout() Layout {
	return Layout{
		Width:  600,
		Height: 400,
		Margin: Margin{Top: 20, Right: 30, Bottom: 40, Left: 40},
	}
}

// PlotWidth is the drawable width inside the margins
func (l Layout) PlotWidth() float64 {
	return l.Width - l.Margin.Left - l.Margin.Right
}

// PlotHeight is the drawable height inside the margins
func (l Layout) PlotHeight() float64 {
	return l.Height - l.Margin.Top - l.Margin.Bottom
}
