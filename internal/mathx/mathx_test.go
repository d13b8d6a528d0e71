package mathx

import (
	"errors"
	"math"
	"testing"
)

func TestBasicStatRunningValues(t *testing.T) {
	var s BasicStat
	s.AddAll([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Count() != 8 {
		t.Fatalf("unexpected count: %d", s.Count())
	}
	if s.Mean() != 5 {
		t.Fatalf("unexpected mean: %f", s.Mean())
	}
	if math.Abs(s.StdDev()-2) > 1e-12 {
		t.Fatalf("unexpected std dev: %f", s.StdDev())
	}
	if s.Min() != 2 || s.Max() != 9 || s.Span() != 7 {
		t.Fatalf("unexpected bounds: min=%f max=%f", s.Min(), s.Max())
	}

	s.Reset()
	if !s.Empty() || s.Mean() != 0 {
		t.Fatalf("expected empty stat after reset: %+v", s.Snapshot())
	}
}

func TestBasicStatMerge(t *testing.T) {
	a := NewBasicStat()
	a.AddAll([]float64{1, 2})
	b := NewBasicStat()
	b.AddAll([]float64{-3, 10})
	a.Merge(b)
	if a.Count() != 4 || a.Min() != -3 || a.Max() != 10 || a.Sum() != 10 {
		t.Fatalf("unexpected merged stat: %+v", a.Snapshot())
	}
}

func TestWeightedAvg(t *testing.T) {
	var w WeightedAvg
	if w.Avg() != 0 {
		t.Fatalf("expected zero avg without samples")
	}
	w.Add(1, 3)
	w.Add(5, 1)
	if w.Avg() != 2 {
		t.Fatalf("unexpected weighted avg: %f", w.Avg())
	}
}

func TestIntervalHelpers(t *testing.T) {
	i := NewInterval(1, -1)
	if i.Min != -1 || i.Max != 1 {
		t.Fatalf("expected ordered bounds: %+v", i)
	}
	if i.Mid() != 0 || i.Span() != 2 {
		t.Fatalf("unexpected mid/span: %f %f", i.Mid(), i.Span())
	}
	if !i.Contains(Interval{Min: -0.5, Max: 1}) {
		t.Fatal("expected contained interval")
	}
	if i.Contains(Interval{Min: -2, Max: 0}) {
		t.Fatal("expected interval not to be contained")
	}
	if i.Bound(3) != 1 || i.Bound(-3) != -1 {
		t.Fatal("unexpected bound clamp")
	}
}

func TestBinDistributionCountsBorderAsUpperClass(t *testing.T) {
	d := NewBinDistribution(0.5)
	d.Update([]float64{0.1, 0.5, 0.49, 0.9, 0.5})
	if d.NumOf != [2]int{2, 3} {
		t.Fatalf("unexpected class counts: %v", d.NumOf)
	}
	if d.Class(0.5) != 1 || d.Class(0.4999) != 0 {
		t.Fatal("expected border value in class 1")
	}
}

func TestBinErrStat(t *testing.T) {
	s := NewBinErrStat(0.5)
	s.Update(0.9, 1)
	s.Update(0.2, 1)
	s.Update(0.1, 0)
	s.Update(0.7, 0)
	if s.ErrRate() != 0.5 {
		t.Fatalf("unexpected error rate: %f", s.ErrRate())
	}
	if s.ClassErr[1].Count() != 2 || s.ClassErr[1].Sum() != 1 {
		t.Fatalf("unexpected class 1 stat: %+v", s.ClassErr[1].Snapshot())
	}
}

func TestNormalizerRequiresSamples(t *testing.T) {
	n := NewNormalizer(DefaultNormRange, 0, false)
	if _, err := n.Normalize(1); !errors.Is(err, ErrNormalizerNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
	n.Adjust(3)
	if _, err := n.Naturalize(0); !errors.Is(err, ErrNormalizerNotInitialized) {
		t.Fatalf("expected not initialized error for single value, got %v", err)
	}
}

func TestNormalizerRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		reserve     float64
		standardize bool
	}{
		{name: "minmax", reserve: 0},
		{name: "minmax_reserve", reserve: 0.2},
		{name: "standardized", reserve: 0.1, standardize: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := NewNormalizer(DefaultNormRange, tc.reserve, tc.standardize)
			samples := []float64{-4, 0, 3, 8, 12}
			n.AdjustAll(samples)
			for _, v := range samples {
				norm, err := n.Normalize(v)
				if err != nil {
					t.Fatalf("normalize: %v", err)
				}
				if norm < -1-1e-9 || norm > 1+1e-9 {
					t.Fatalf("normalized value out of range: %f", norm)
				}
				back, err := n.Naturalize(norm)
				if err != nil {
					t.Fatalf("naturalize: %v", err)
				}
				if math.Abs(back-v) > 1e-9 {
					t.Fatalf("round trip mismatch: got=%f want=%f", back, v)
				}
			}
		})
	}
}

func TestNormalizerMinMaxBounds(t *testing.T) {
	n := NewNormalizer(Interval{Min: 0, Max: 1}, 0, false)
	n.AdjustAll([]float64{10, 20})
	lo, _ := n.Normalize(10)
	hi, _ := n.Normalize(20)
	if lo != 0 || hi != 1 {
		t.Fatalf("unexpected bounds: lo=%f hi=%f", lo, hi)
	}
}

func TestNewRandDeterministic(t *testing.T) {
	a := NewRand(7)
	b := NewRand(7)
	for i := 0; i < 5; i++ {
		if a.Int63() != b.Int63() {
			t.Fatal("expected identical sequences for equal seeds")
		}
	}
	if EnsureRand(nil) == nil {
		t.Fatal("expected fallback generator")
	}
}
