package chart

// Colors used by the dashboard charts
const (
	ColorMark = "#4682b4" // steelblue
	ColorAxis = "#000000"
)

// Anchor is the horizontal alignment of a text label relative to its position
type Anchor string

const (
	AnchorStart  Anchor = "start"
	AnchorMiddle Anchor = "middle"
	AnchorEnd    Anchor = "end"
)

// Point is a position in plot coordinates (origin at the top-left of the plot area)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is a drawing primitive. The set is closed: Rect, Path, Line and Text.
type Shape interface {
	shape()
}

// Rect is a filled rectangle, used for bars
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Fill   string  `json:"fill"`
}

// Path is an open stroked polyline
type Path struct {
	Points      []Point `json:"points"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
}

// Line is a single stroked segment, used for axis domains and tick marks
type Line struct {
	From   Point  `json:"from"`
	To     Point  `json:"to"`
	Stroke string `json:"stroke"`
}

// Text is a label. Rotate is in degrees, applied around the anchor position.
type Text struct {
	At     Point   `json:"at"`
	Body   string  `json:"body"`
	Rotate float64 `json:"rotate"`
	Anchor Anchor  `json:"anchor"`
	Size   float64 `json:"size"`
}

func (Rect) shape() {}
func (Path) shape() {}
func (Line) shape() {}
func (Text) shape() {}
