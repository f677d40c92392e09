package render

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ritzau/insights-dashboard/pkg/chart"
)

// Format is an export file format
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts "svg" or "png"
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatSVG:
		return FormatSVG, nil
	case FormatPNG:
		return FormatPNG, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType is the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// Export writes the canvas content as an image. Shapes are in plot coordinates
// and are shifted by the layout margins here.
func (c *Canvas) Export(w io.Writer, format Format) error {
	provider := gochart.SVG
	if format == FormatPNG {
		provider = gochart.PNG
	}

	width, height := int(c.layout.Width), int(c.layout.Height)
	r, err := provider(width, height)
	if err != nil {
		return fmt.Errorf("creating %s renderer: %w", format, err)
	}

	font, err := gochart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("loading font: %w", err)
	}
	r.SetFont(font)

	r.SetFillColor(drawing.ColorWhite)
	r.MoveTo(0, 0)
	r.LineTo(width, 0)
	r.LineTo(width, height)
	r.LineTo(0, height)
	r.Close()
	r.Fill()

	p := painter{
		r:      r,
		ox:     c.layout.Margin.Left,
		oy:     c.layout.Margin.Top,
		escape: format == FormatSVG,
	}
	for _, s := range c.shapes {
		r.ResetStyle()
		p.paint(s)
	}

	if err := r.Save(w); err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}

type painter struct {
	r      gochart.Renderer
	ox, oy float64
	escape bool // SVG text is written verbatim by the renderer
}

func (p painter) pt(x, y float64) (int, int) {
	return int(math.Round(x + p.ox)), int(math.Round(y + p.oy))
}

func (p painter) paint(s chart.Shape) {
	switch s := s.(type) {
	case chart.Rect:
		if s.Width <= 0 || s.Height <= 0 {
			return
		}
		p.r.SetFillColor(color(s.Fill))
		p.r.MoveTo(p.pt(s.X, s.Y))
		p.r.LineTo(p.pt(s.X+s.Width, s.Y))
		p.r.LineTo(p.pt(s.X+s.Width, s.Y+s.Height))
		p.r.LineTo(p.pt(s.X, s.Y+s.Height))
		p.r.Close()
		p.r.Fill()

	case chart.Path:
		if len(s.Points) == 0 {
			return
		}
		if len(s.Points) == 1 {
			// a lone knot is drawn as a dot the width of the stroke
			d := s.StrokeWidth
			x, y := s.Points[0].X, s.Points[0].Y
			p.r.SetFillColor(color(s.Stroke))
			p.r.MoveTo(p.pt(x-d, y-d))
			p.r.LineTo(p.pt(x+d, y-d))
			p.r.LineTo(p.pt(x+d, y+d))
			p.r.LineTo(p.pt(x-d, y+d))
			p.r.Close()
			p.r.Fill()
			return
		}
		p.r.SetStrokeColor(color(s.Stroke))
		p.r.SetStrokeWidth(s.StrokeWidth)
		p.r.MoveTo(p.pt(s.Points[0].X, s.Points[0].Y))
		for _, pt := range s.Points[1:] {
			p.r.LineTo(p.pt(pt.X, pt.Y))
		}
		p.r.Stroke()

	case chart.Line:
		p.r.SetStrokeColor(color(s.Stroke))
		p.r.SetStrokeWidth(1)
		p.r.MoveTo(p.pt(s.From.X, s.From.Y))
		p.r.LineTo(p.pt(s.To.X, s.To.Y))
		p.r.Stroke()

	case chart.Text:
		p.text(s)
	}
}

// text places a label so that its anchor point lands on s.At after rotation
func (p painter) text(s chart.Text) {
	p.r.SetFontColor(drawing.ColorBlack)
	p.r.SetFontSize(s.Size)

	body := s.Body
	width := float64(p.r.MeasureText(body).Width())
	theta := s.Rotate * math.Pi / 180

	// baseline shift: centred on the tick for horizontal labels, hanging below it otherwise
	x, y := s.At.X, s.At.Y
	if s.Rotate == 0 {
		y += 0.32 * s.Size
	} else {
		y += 0.71 * s.Size
	}

	var shift float64
	switch s.Anchor {
	case chart.AnchorEnd:
		shift = width
	case chart.AnchorMiddle:
		shift = width / 2
	}
	x -= shift * math.Cos(theta)
	y -= shift * math.Sin(theta)

	if p.escape {
		body = html.EscapeString(body)
	}

	px, py := p.pt(x, y)
	if theta != 0 {
		p.r.SetTextRotation(theta)
		defer p.r.ClearTextRotation()
	}
	p.r.Text(body, px, py)
}

func color(hex string) drawing.Color {
	if hex == "" {
		return drawing.ColorBlack
	}
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}
