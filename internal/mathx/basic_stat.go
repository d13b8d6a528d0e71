package mathx

import "math"

// BasicStat accumulates running statistics of a sample stream. It is not safe
// for concurrent use; callers that share one instance must serialize access.
type BasicStat struct {
	count      int
	sum        float64
	sumSquares float64
	min        float64
	max        float64
}

// StatSnapshot is the serializable view of a BasicStat.
type StatSnapshot struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func NewBasicStat() *BasicStat {
	return &BasicStat{}
}

func (s *BasicStat) Add(v float64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.count++
	s.sum += v
	s.sumSquares += v * v
}

func (s *BasicStat) AddAll(values []float64) {
	for _, v := range values {
		s.Add(v)
	}
}

// Merge folds the samples of other into s.
func (s *BasicStat) Merge(other *BasicStat) {
	if other == nil || other.count == 0 {
		return
	}
	if s.count == 0 || other.min < s.min {
		s.min = other.min
	}
	if s.count == 0 || other.max > s.max {
		s.max = other.max
	}
	s.count += other.count
	s.sum += other.sum
	s.sumSquares += other.sumSquares
}

func (s *BasicStat) Reset() {
	*s = BasicStat{}
}

func (s *BasicStat) Clone() *BasicStat {
	clone := *s
	return &clone
}

func (s *BasicStat) Count() int { return s.count }
func (s *BasicStat) Sum() float64 { return s.sum }
func (s *BasicStat) Min() float64 { return s.min }
func (s *BasicStat) Max() float64 { return s.max }
func (s *BasicStat) Span() float64 { return s.max - s.min }
func (s *BasicStat) Empty() bool { return s.count == 0 }

func (s *BasicStat) Mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Variance returns the population variance.
func (s *BasicStat) Variance() float64 {
	if s.count == 0 {
		return 0
	}
	mean := s.Mean()
	v := s.sumSquares/float64(s.count) - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

func (s *BasicStat) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// RootMeanSquare is the quadratic mean of the samples.
func (s *BasicStat) RootMeanSquare() float64 {
	if s.count == 0 {
		return 0
	}
	return math.Sqrt(s.sumSquares / float64(s.count))
}

func (s *BasicStat) Snapshot() StatSnapshot {
	return StatSnapshot{
		Count:  s.count,
		Mean:   s.Mean(),
		StdDev: s.StdDev(),
		Min:    s.min,
		Max:    s.max,
	}
}
