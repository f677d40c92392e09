package scale

import "github.com/ritzau/insights-dashboard/pkg/model"

// niceTickCount is the tick density used when rounding the y domain
const niceTickCount = 10

// Scales is the coordinate mapping for one chart render. It is rebuilt from the
// dataset every time and never cached.
type Scales struct {
	X *Band   // record index -> horizontal offset
	Y *Linear // metric value -> vertical offset, inverted
}

// Build derives the x and y scales for metric m over a plot area of width x height.
// The y domain is [0, max(m)] niced; absent values do not contribute.
func Build(ds model.Dataset, m model.Metric, width, height float64) Scales {
	x := NewBand(ds.Titles(), 0, width, DefaultPadding)
	y := NewLinear(0, DomainMax(ds.Values(m)), height, 0).Nice(niceTickCount)
	return Scales{X: x, Y: y}
}
