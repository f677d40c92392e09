package scale

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultPadding is the fraction of each band step left empty, inside and at both ends
const DefaultPadding = 0.1

// Band maps category positions onto equal-width slots across a pixel range.
// Categories are addressed by index, so repeated labels each get their own slot.
type Band struct {
	labels    []string
	start     float64
	step      float64
	bandwidth float64
}

// NewBand lays out len(labels) bands over [r0, r1] with the given padding fraction
// applied both between bands and at the outer edges, centred in the range.
func NewBand(labels []string, r0, r1, padding float64) *Band {
	n := float64(len(labels))
	span := r1 - r0

	step := span / math.Max(1, n-padding+2*padding)
	start := r0 + (span-step*(n-padding))*0.5

	return &Band{
		labels:    labels,
		start:     start,
		step:      step,
		bandwidth: step * (1 - padding),
	}
}

// Len returns the number of bands
func (b *Band) Len() int {
	return len(b.labels)
}

// Label returns the category of band i
func (b *Band) Label(i int) string {
	return b.labels[i]
}

// At returns the pixel offset of the start of band i
func (b *Band) At(i int) float64 {
	return b.start + float64(i)*b.step
}

// Center returns the pixel offset of the middle of band i
func (b *Band) Center(i int) float64 {
	return b.At(i) + b.bandwidth/2
}

// Bandwidth returns the width of one band
func (b *Band) Bandwidth() float64 {
	return b.bandwidth
}

// Step returns the distance between the starts of adjacent bands
func (b *Band) Step() float64 {
	return b.step
}

// Linear maps a numeric domain onto a pixel range
type Linear struct {
	d0, d1 float64
	r0, r1 float64
}

// NewLinear creates a linear scale from [d0, d1] to [r0, r1].
// Pass r0 > r1 to invert the axis, as screen y grows downward.
func NewLinear(d0, d1, r0, r1 float64) *Linear {
	return &Linear{d0: d0, d1: d1, r0: r0, r1: r1}
}

// Domain returns the current domain bounds
func (l *Linear) Domain() (float64, float64) {
	return l.d0, l.d1
}

// Range returns the pixel bounds
func (l *Linear) Range() (float64, float64) {
	return l.r0, l.r1
}

// Map converts a domain value to pixel space. A degenerate domain maps everything
// onto r0, which is the baseline for an inverted y axis.
func (l *Linear) Map(v float64) float64 {
	if l.d1 == l.d0 {
		return l.r0
	}
	t := (v - l.d0) / (l.d1 - l.d0)
	return l.r0 + t*(l.r1-l.r0)
}

// Nice extends the domain outward to round tick boundaries for roughly count ticks
func (l *Linear) Nice(count int) *Linear {
	start, stop := l.d0, l.d1
	reversed := stop < start
	if reversed {
		start, stop = stop, start
	}

	var prestep float64
	for iter := 0; iter < 10; iter++ {
		step := TickIncrement(start, stop, count)
		if step == prestep {
			break
		}
		switch {
		case step > 0:
			start = math.Floor(start/step) * step
			stop = math.Ceil(stop/step) * step
		case step < 0:
			start = math.Ceil(start*step) / step
			stop = math.Floor(stop*step) / step
		default:
			iter = 10
		}
		prestep = step
	}

	if reversed {
		start, stop = stop, start
	}
	l.d0, l.d1 = positiveZero(start), positiveZero(stop)
	return l
}

// Ticks returns roughly count round values spanning the domain
func (l *Linear) Ticks(count int) []float64 {
	start, stop := l.d0, l.d1
	if start > stop {
		start, stop = stop, start
	}
	if start == stop || count <= 0 {
		return []float64{start}
	}

	inc := TickIncrement(start, stop, count)
	if inc == 0 || math.IsInf(inc, 0) || math.IsNaN(inc) {
		return []float64{start}
	}

	var ticks []float64
	if inc > 0 {
		i0, i1 := math.Ceil(start/inc), math.Floor(stop/inc)
		for i := i0; i <= i1; i++ {
			ticks = append(ticks, positiveZero(i*inc))
		}
	} else {
		inc = -inc
		i0, i1 := math.Ceil(start*inc), math.Floor(stop*inc)
		for i := i0; i <= i1; i++ {
			ticks = append(ticks, positiveZero(i/inc))
		}
	}
	return ticks
}

var (
	e10 = math.Sqrt(50)
	e5  = math.Sqrt(10)
	e2  = math.Sqrt(2)
)

// TickIncrement returns the step between round ticks covering [start, stop].
// A negative result -k means a step of 1/k, which keeps small steps exact.
func TickIncrement(start, stop float64, count int) float64 {
	if count <= 0 || stop <= start {
		return 0
	}
	step := (stop - start) / float64(count)
	power := math.Floor(math.Log10(step))
	errRatio := step / math.Pow(10, power)

	factor := 1.0
	switch {
	case errRatio >= e10:
		factor = 10
	case errRatio >= e5:
		factor = 5
	case errRatio >= e2:
		factor = 2
	}

	if power >= 0 {
		return factor * math.Pow(10, power)
	}
	return -math.Pow(10, -power) / factor
}

// positiveZero turns -0 into 0 so labels never read "-0"
func positiveZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

// DomainMax returns the largest value, or 0 when there are none.
// Negative maxima are clamped to 0 so the domain always starts at the baseline.
func DomainMax(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Max(0, floats.Max(values))
}
