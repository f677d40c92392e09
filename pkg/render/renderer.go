// Package render materializes chart geometry into named drawing slots.
package render

import (
	"fmt"
	"sort"

	"github.com/ritzau/insights-dashboard/pkg/chart"
	"github.com/ritzau/insights-dashboard/pkg/logging"
)

// Surface is a persistent drawing target for one slot
type Surface interface {
	// Clear removes everything previously drawn
	Clear()
	// Draw adds shapes on top of the current content
	Draw(shapes []chart.Shape)
}

// Canvas is the in-memory Surface used by the dashboard. Its content can be
// exported to SVG or PNG at any time.
type Canvas struct {
	layout chart.Layout
	shapes []chart.Shape
}

// NewCanvas allocates a canvas with a fixed layout
func NewCanvas(layout chart.Layout) *Canvas {
	return &Canvas{layout: layout}
}

func (c *Canvas) Clear() {
	c.shapes = nil
}

func (c *Canvas) Draw(shapes []chart.Shape) {
	c.shapes = append(c.shapes, shapes...)
}

// Layout returns the canvas size and margins
func (c *Canvas) Layout() chart.Layout {
	return c.layout
}

// Shapes returns a copy of the current content
func (c *Canvas) Shapes() []chart.Shape {
	return append([]chart.Shape(nil), c.shapes...)
}

// Renderer owns one Surface per slot. Each Render fully replaces the slot's
// content. Renderer is not synchronized; the dashboard serializes access.
type Renderer struct {
	layout chart.Layout
	slots  map[string]Surface
}

// NewRenderer allocates a Canvas of the given layout for every slot
func NewRenderer(layout chart.Layout, slots ...string) *Renderer {
	r := &Renderer{
		layout: layout,
		slots:  make(map[string]Surface, len(slots)),
	}
	for _, slot := range slots {
		r.slots[slot] = NewCanvas(layout)
	}
	return r
}

// Attach replaces the surface behind slot, e.g. with a different backend
func (r *Renderer) Attach(slot string, s Surface) {
	r.slots[slot] = s
}

// Render clears slot and draws g into it. Nothing from a previous render survives.
func (r *Renderer) Render(slot string, g *chart.Geometry) error {
	s, ok := r.slots[slot]
	if !ok {
		return fmt.Errorf("unknown chart slot %q", slot)
	}

	s.Clear()
	s.Draw(g.Shapes())

	logging.Debug("chart rendered", "slot", slot, "marks", g.MarkCount())
	return nil
}

// Canvas returns the in-memory canvas behind slot, if it is one
func (r *Renderer) Canvas(slot string) (*Canvas, bool) {
	c, ok := r.slots[slot].(*Canvas)
	return c, ok
}

// Slots lists the slot ids in sorted order
func (r *Renderer) Slots() []string {
	slots := make([]string, 0, len(r.slots))
	for slot := range r.slots {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}
