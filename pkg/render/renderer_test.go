package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/ritzau/insights-dashboard/pkg/chart"
	"github.com/ritzau/insights-dashboard/pkg/model"
)

var barSpec = chart.Spec{Metric: model.MetricIntensity, Kind: chart.KindBar}

func dataset(titles ...string) model.Dataset {
	ds := make(model.Dataset, len(titles))
	for i, title := range titles {
		ds[i] = model.Record{Title: title, Intensity: model.Num(float64(i + 1))}
	}
	return ds
}

func countRects(shapes []chart.Shape) int {
	n := 0
	for _, s := range shapes {
		if _, ok := s.(chart.Rect); ok {
			n++
		}
	}
	return n
}

func TestRenderReplacesPreviousContent(t *testing.T) {
	slot := barSpec.Slot()
	r := NewRenderer(chart.DefaultLayout(), slot)

	first := chart.Build(dataset("A", "B", "C"), barSpec, chart.DefaultLayout())
	second := chart.Build(dataset("D"), barSpec, chart.DefaultLayout())

	if err := r.Render(slot, first); err != nil {
		t.Fatal(err)
	}
	if err := r.Render(slot, second); err != nil {
		t.Fatal(err)
	}

	c, ok := r.Canvas(slot)
	if !ok {
		t.Fatal("slot has no canvas")
	}
	got := c.Shapes()
	want := second.Shapes()
	if len(got) != len(want) {
		t.Fatalf("canvas has %d shapes, want %d", len(got), len(want))
	}
	if countRects(got) != 1 {
		t.Errorf("canvas has %d bars, want 1", countRects(got))
	}
	for _, s := range got {
		if txt, ok := s.(chart.Text); ok && (txt.Body == "A" || txt.Body == "B" || txt.Body == "C") {
			t.Errorf("label %q from the first render survived", txt.Body)
		}
	}
}

func TestRenderSameGeometryTwiceIsIdempotent(t *testing.T) {
	slot := barSpec.Slot()
	r := NewRenderer(chart.DefaultLayout(), slot)
	g := chart.Build(dataset("A", "B"), barSpec, chart.DefaultLayout())

	_ = r.Render(slot, g)
	c, _ := r.Canvas(slot)
	once := len(c.Shapes())
	_ = r.Render(slot, g)
	if twice := len(c.Shapes()); twice != once {
		t.Errorf("second render left %d shapes, want %d", twice, once)
	}
}

func TestRenderUnknownSlot(t *testing.T) {
	r := NewRenderer(chart.DefaultLayout(), barSpec.Slot())
	if err := r.Render("pie-chart", chart.Build(nil, barSpec, chart.DefaultLayout())); err == nil {
		t.Error("expected an error for an unknown slot")
	}
}

type recordingSurface struct {
	clears int
	drawn  int
}

func (s *recordingSurface) Clear()                    { s.clears++; s.drawn = 0 }
func (s *recordingSurface) Draw(shapes []chart.Shape) { s.drawn += len(shapes) }

func TestAttachedSurfaceIsClearedFirst(t *testing.T) {
	slot := barSpec.Slot()
	r := NewRenderer(chart.DefaultLayout())
	s := &recordingSurface{drawn: 99}
	r.Attach(slot, s)

	g := chart.Build(dataset("A"), barSpec, chart.DefaultLayout())
	if err := r.Render(slot, g); err != nil {
		t.Fatal(err)
	}
	if s.clears != 1 || s.drawn != len(g.Shapes()) {
		t.Errorf("clears=%d drawn=%d, want 1/%d", s.clears, s.drawn, len(g.Shapes()))
	}
	if _, ok := r.Canvas(slot); ok {
		t.Error("attached surface should not be reported as a canvas")
	}
}

func TestSlotsSorted(t *testing.T) {
	r := NewRenderer(chart.DefaultLayout(), "b", "a", "c")
	if got := strings.Join(r.Slots(), ","); got != "a,b,c" {
		t.Errorf("Slots() = %s", got)
	}
}

func TestExportSVG(t *testing.T) {
	c := NewCanvas(chart.DefaultLayout())
	c.Draw(chart.Build(dataset("Oil & <gas>", "Coal"), barSpec, chart.DefaultLayout()).Shapes())

	var buf bytes.Buffer
	if err := c.Export(&buf, FormatSVG); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "<svg") {
		t.Fatalf("output is not svg: %.80s", out)
	}
	if strings.Contains(out, "<gas>") {
		t.Error("label text was not escaped")
	}
	if !strings.Contains(out, "rotate(") {
		t.Error("x labels are not rotated")
	}
}

func TestExportPNG(t *testing.T) {
	l := chart.DefaultLayout()
	c := NewCanvas(l)
	c.Draw(chart.Build(dataset("A", "B"), chart.Spec{Metric: model.MetricIntensity, Kind: chart.KindLine}, l).Shapes())

	var buf bytes.Buffer
	if err := c.Export(&buf, FormatPNG); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decoding png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != int(l.Width) || b.Dy() != int(l.Height) {
		t.Errorf("png is %dx%d, want %vx%v", b.Dx(), b.Dy(), l.Width, l.Height)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("PNG"); err != nil || f != FormatPNG {
		t.Errorf("ParseFormat(PNG) = %v, %v", f, err)
	}
	if _, err := ParseFormat("gif"); err == nil {
		t.Error("expected gif to be rejected")
	}
	if FormatSVG.ContentType() != "image/svg+xml" {
		t.Errorf("svg content type = %s", FormatSVG.ContentType())
	}
}
