package chart

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/interp"

	"github.com/ritzau/insights-dashboard/pkg/logging"
	"github.com/ritzau/insights-dashboard/pkg/model"
	"github.com/ritzau/insights-dashboard/pkg/scale"
)

const (
	yTickCount      = 10
	tickSize        = 6
	tickPadding     = 3
	labelFontSize   = 10
	xLabelRotation  = -45
	lineStrokeWidth = 2
	// samplesPerSegment controls how finely the monotone curve is flattened
	samplesPerSegment = 8
)

// Tick is one labelled position along an axis
type Tick struct {
	Label string  `json:"label"`
	Pos   float64 `json:"pos"`
}

// Axis holds tick placement for one side of the plot
type Axis struct {
	Ticks         []Tick  `json:"ticks"`
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	LabelRotation float64 `json:"labelRotation"`
	LabelAnchor   Anchor  `json:"labelAnchor"`
}

// Geometry is everything needed to draw one chart, in plot coordinates
type Geometry struct {
	Spec   Spec   `json:"spec"`
	Layout Layout `json:"layout"`
	Bars   []Rect `json:"bars,omitempty"`
	// Knots are the data points the line visits, in dataset order
	Knots []Point `json:"knots,omitempty"`
	Line  *Path   `json:"line,omitempty"`
	XAxis Axis    `json:"xAxis"`
	YAxis Axis    `json:"yAxis"`
}

// Build derives the drawable geometry of spec from ds. Scales are built fresh
// on every call. An empty dataset yields axes only.
func Build(ds model.Dataset, spec Spec, layout Layout) *Geometry {
	w, h := layout.PlotWidth(), layout.PlotHeight()
	s := scale.Build(ds, spec.Metric, w, h)

	g := &Geometry{
		Spec:   spec,
		Layout: layout,
		XAxis:  bottomAxis(s.X, w),
		YAxis:  leftAxis(s.Y),
	}

	switch spec.Kind {
	case KindBar:
		g.Bars = bars(ds, spec.Metric, s, h)
	case KindLine:
		g.Knots = knots(ds, spec.Metric, s)
		g.Line = monotonePath(g.Knots)
	}

	logging.Trace("built chart geometry", "slot", spec.Slot(), "records", len(ds), "bars", len(g.Bars), "knots", len(g.Knots))
	return g
}

// MarkCount is the number of data marks: one per bar, or one for a drawn line
func (g *Geometry) MarkCount() int {
	n := len(g.Bars)
	if g.Line != nil {
		n++
	}
	return n
}

// Shapes flattens the geometry into primitives: marks first, then axes on top
func (g *Geometry) Shapes() []Shape {
	h := g.Layout.PlotHeight()
	shapes := make([]Shape, 0, len(g.Bars)+3*(len(g.XAxis.Ticks)+len(g.YAxis.Ticks))+3)

	for _, b := range g.Bars {
		shapes = append(shapes, b)
	}
	if g.Line != nil {
		shapes = append(shapes, *g.Line)
	}

	// y axis on the left edge
	shapes = append(shapes, Line{From: Point{0, g.YAxis.Start}, To: Point{0, g.YAxis.End}, Stroke: ColorAxis})
	for _, t := range g.YAxis.Ticks {
		shapes = append(shapes,
			Line{From: Point{-tickSize, t.Pos}, To: Point{0, t.Pos}, Stroke: ColorAxis},
			Text{At: Point{-(tickSize + tickPadding), t.Pos}, Body: t.Label, Rotate: g.YAxis.LabelRotation, Anchor: g.YAxis.LabelAnchor, Size: labelFontSize},
		)
	}

	// x axis along the bottom edge
	shapes = append(shapes, Line{From: Point{g.XAxis.Start, h}, To: Point{g.XAxis.End, h}, Stroke: ColorAxis})
	for _, t := range g.XAxis.Ticks {
		shapes = append(shapes,
			Line{From: Point{t.Pos, h}, To: Point{t.Pos, h + tickSize}, Stroke: ColorAxis},
			Text{At: Point{t.Pos, h + tickSize + tickPadding}, Body: t.Label, Rotate: g.XAxis.LabelRotation, Anchor: g.XAxis.LabelAnchor, Size: labelFontSize},
		)
	}

	return shapes
}

func bars(ds model.Dataset, m model.Metric, s scale.Scales, plotHeight float64) []Rect {
	rects := make([]Rect, 0, len(ds))
	for i, r := range ds {
		y := s.Y.Map(value(r, m))
		rects = append(rects, Rect{
			X:      s.X.At(i),
			Y:      y,
			Width:  s.X.Bandwidth(),
			Height: plotHeight - y,
			Fill:   ColorMark,
		})
	}
	return rects
}

func knots(ds model.Dataset, m model.Metric, s scale.Scales) []Point {
	points := make([]Point, 0, len(ds))
	for i, r := range ds {
		points = append(points, Point{X: s.X.At(i), Y: s.Y.Map(value(r, m))})
	}
	return points
}

// value treats an absent field as zero so the mark is drawn on the baseline
func value(r model.Record, m model.Metric) float64 {
	if v := r.Value(m); v.Valid {
		return v.Value
	}
	return 0
}

// monotonePath interpolates the knots with a Fritsch-Butland monotone cubic,
// which never overshoots the local minimum or maximum between two points.
// Knot x positions come from a band scale and are strictly increasing.
func monotonePath(knots []Point) *Path {
	if len(knots) == 0 {
		return nil
	}
	path := &Path{Stroke: ColorMark, StrokeWidth: lineStrokeWidth}
	if len(knots) == 1 {
		path.Points = []Point{knots[0]}
		return path
	}

	xs := make([]float64, len(knots))
	ys := make([]float64, len(knots))
	for i, k := range knots {
		xs[i], ys[i] = k.X, k.Y
	}

	var fb interp.FritschButland
	if err := fb.Fit(xs, ys); err != nil {
		logging.Warn("monotone fit failed, drawing straight segments", "error", err)
		path.Points = append([]Point(nil), knots...)
		return path
	}

	path.Points = make([]Point, 0, (len(knots)-1)*samplesPerSegment+1)
	path.Points = append(path.Points, knots[0])
	for i := 1; i < len(knots); i++ {
		x0, x1 := knots[i-1].X, knots[i].X
		for j := 1; j < samplesPerSegment; j++ {
			x := x0 + (x1-x0)*float64(j)/samplesPerSegment
			path.Points = append(path.Points, Point{X: x, Y: fb.Predict(x)})
		}
		path.Points = append(path.Points, knots[i])
	}
	return path
}

func leftAxis(y *scale.Linear) Axis {
	r0, r1 := y.Range()
	values := y.Ticks(yTickCount)
	labels := formatTicks(values)

	ticks := make([]Tick, len(values))
	for i, v := range values {
		ticks[i] = Tick{Label: labels[i], Pos: y.Map(v)}
	}
	return Axis{Ticks: ticks, Start: r0, End: r1, LabelAnchor: AnchorEnd}
}

// bottomAxis puts one tick per record at the band centre. Labels are rotated and
// right-aligned so long titles stay readable instead of being truncated.
func bottomAxis(x *scale.Band, width float64) Axis {
	ticks := make([]Tick, x.Len())
	for i := range ticks {
		ticks[i] = Tick{Label: x.Label(i), Pos: x.Center(i)}
	}
	return Axis{
		Ticks:         ticks,
		Start:         0,
		End:           width,
		LabelRotation: xLabelRotation,
		LabelAnchor:   AnchorEnd,
	}
}

var tickPrinter = message.NewPrinter(language.English)

// formatTicks renders values with thousands grouping and just enough decimals
// to tell adjacent ticks apart
func formatTicks(values []float64) []string {
	decimals := 0
	if len(values) > 1 {
		step := math.Abs(values[1] - values[0])
		if step > 0 && step < 1 {
			decimals = int(math.Ceil(-math.Log10(step) - 1e-9))
		}
	}

	format := fmt.Sprintf("%%.%df", decimals)
	labels := make([]string, len(values))
	for i, v := range values {
		labels[i] = tickPrinter.Sprintf(format, v)
	}
	return labels
}
