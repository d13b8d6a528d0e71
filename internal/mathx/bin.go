package mathx

// BinDistribution counts values below (class 0) and at-or-above (class 1) a
// border value.
type BinDistribution struct {
	BinBorder float64 `json:"bin_border"`
	NumOf     [2]int  `json:"num_of"`
}

func NewBinDistribution(border float64) *BinDistribution {
	return &BinDistribution{BinBorder: border}
}

// Class maps v onto its binary class.
func (d *BinDistribution) Class(v float64) int {
	if v >= d.BinBorder {
		return 1
	}
	return 0
}

func (d *BinDistribution) Update(values []float64) {
	for _, v := range values {
		d.NumOf[d.Class(v)]++
	}
}

// BinErrStat tracks misclassifications of computed values against ideal
// values split by a border.
type BinErrStat struct {
	BinBorder float64      `json:"bin_border"`
	TotalErr  BasicStat    `json:"-"`
	ClassErr  [2]BasicStat `json:"-"`
}

func NewBinErrStat(border float64) *BinErrStat {
	return &BinErrStat{BinBorder: border}
}

func (s *BinErrStat) Update(computed, ideal float64) {
	bins := BinDistribution{BinBorder: s.BinBorder}
	idealClass, computedClass := bins.Class(ideal), bins.Class(computed)
	errValue := 0.0
	if idealClass != computedClass {
		errValue = 1
	}
	s.TotalErr.Add(errValue)
	s.ClassErr[idealClass].Add(errValue)
}

// ErrRate is the fraction of misclassified samples.
func (s *BinErrStat) ErrRate() float64 {
	return s.TotalErr.Mean()
}

func (s *BinErrStat) Merge(other *BinErrStat) {
	if other == nil {
		return
	}
	s.TotalErr.Merge(&other.TotalErr)
	s.ClassErr[0].Merge(&other.ClassErr[0])
	s.ClassErr[1].Merge(&other.ClassErr[1])
}
