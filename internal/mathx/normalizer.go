package mathx

import (
	"errors"
	"math"
)

var ErrNormalizerNotInitialized = errors.New("normalizer not initialized")

// DefaultNormRange is the target range used when none is given.
var DefaultNormRange = Interval{Min: -1, Max: 1}

// Normalizer maps natural sample values into a normalized range and back.
// It must observe at least two distinct samples before use.
type Normalizer struct {
	normRange    Interval
	reserveRatio float64
	standardize  bool
	samples      BasicStat
}

func NewNormalizer(normRange Interval, reserveRatio float64, standardize bool) *Normalizer {
	if normRange.Span() == 0 {
		normRange = DefaultNormRange
	}
	if reserveRatio < 0 {
		reserveRatio = 0
	}
	return &Normalizer{
		normRange:    normRange,
		reserveRatio: reserveRatio,
		standardize:  standardize,
	}
}

func (n *Normalizer) Adjust(v float64) {
	n.samples.Add(v)
}

func (n *Normalizer) AdjustAll(values []float64) {
	n.samples.AddAll(values)
}

func (n *Normalizer) Initialized() bool {
	return n.samples.Count() > 0 && n.samples.Min() != n.samples.Max()
}

func (n *Normalizer) NormRange() Interval { return n.normRange }

func (n *Normalizer) Samples() StatSnapshot { return n.samples.Snapshot() }

func (n *Normalizer) vMin() float64 {
	return n.samples.Min() - n.samples.Span()*n.reserveRatio/2
}

func (n *Normalizer) vMax() float64 {
	return n.samples.Max() + n.samples.Span()*n.reserveRatio/2
}

func (n *Normalizer) gaussHalfInterval() float64 {
	sd := n.samples.StdDev()
	lo := math.Abs((n.vMin() - n.samples.Mean()) / sd)
	hi := math.Abs((n.vMax() - n.samples.Mean()) / sd)
	return math.Max(lo, hi)
}

func (n *Normalizer) scale(min, max, v float64) float64 {
	return n.normRange.Min + n.normRange.Span()*((v-min)/(max-min))
}

func (n *Normalizer) unscale(min, max, v float64) float64 {
	return min + (max-min)*((v-n.normRange.Min)/n.normRange.Span())
}

// Normalize maps a natural value into the normalized range.
func (n *Normalizer) Normalize(v float64) (float64, error) {
	if !n.Initialized() {
		return 0, ErrNormalizerNotInitialized
	}
	if n.standardize {
		half := n.gaussHalfInterval()
		return n.scale(-half, half, (v-n.samples.Mean())/n.samples.StdDev()), nil
	}
	return n.scale(n.vMin(), n.vMax(), v), nil
}

// Naturalize is the inverse of Normalize.
func (n *Normalizer) Naturalize(v float64) (float64, error) {
	if !n.Initialized() {
		return 0, ErrNormalizerNotInitialized
	}
	if n.standardize {
		half := n.gaussHalfInterval()
		return n.unscale(-half, half, v)*n.samples.StdDev() + n.samples.Mean(), nil
	}
	return n.unscale(n.vMin(), n.vMax(), v), nil
}

