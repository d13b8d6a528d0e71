package mathx

import "math"

// Interval is a closed range of real values.
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewInterval orders the bounds so that Min <= Max.
func NewInterval(a, b float64) Interval {
	if a > b {
		a, b = b, a
	}
	return Interval{Min: a, Max: b}
}

func (i Interval) Mid() float64 {
	return i.Min + (i.Max-i.Min)/2
}

func (i Interval) Span() float64 {
	return i.Max - i.Min
}

// BelongsTo reports whether v lies inside the closed interval.
func (i Interval) BelongsTo(v float64) bool {
	return v >= i.Min && v <= i.Max
}

// Contains reports whether other lies entirely inside i.
func (i Interval) Contains(other Interval) bool {
	return other.Min >= i.Min && other.Max <= i.Max
}

// Bound clamps v to the interval.
func (i Interval) Bound(v float64) float64 {
	return math.Min(i.Max, math.Max(i.Min, v))
}
