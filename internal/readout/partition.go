package readout

import (
	"fmt"
	"math"

	"esnkit/internal/mathx"
)

// foldLayout resolves the test fold length and fold count for n samples.
func foldLayout(field FieldSettings, n int) (int, error) {
	if field.TestDataRatio > MaxRatioOfTestData {
		return 0, fmt.Errorf("%w: field %s ratio=%g max=%g", ErrTestRatioTooHigh, field.Name, field.TestDataRatio, MaxRatioOfTestData)
	}
	testLen := int(math.Round(float64(n) * field.TestDataRatio))
	if testLen < MinLengthOfTestDataset {
		return 0, fmt.Errorf("%w: field %s test samples=%d min=%d", ErrTestDatasetTooSmall, field.Name, testLen, MinLengthOfTestDataset)
	}
	folds := field.NumOfFolds
	if folds <= 0 {
		folds = n / testLen
		if folds > MaxNumOfFolds {
			folds = MaxNumOfFolds
		}
	}
	if folds < 2 || folds > MaxNumOfFolds || folds > n {
		return 0, fmt.Errorf("%w: field %s folds=%d samples=%d", ErrInvalidFolds, field.Name, folds, n)
	}
	return folds, nil
}

// splitForecast chunks positions [0, n) contiguously into k folds and deals
// the remainder round-robin.
func splitForecast(n, k int) [][]int {
	folds := make([][]int, k)
	size := n / k
	pos := 0
	for f := 0; f < k; f++ {
		for i := 0; i < size; i++ {
			folds[f] = append(folds[f], pos)
			pos++
		}
	}
	for i := 0; pos < n; i, pos = i+1, pos+1 {
		folds[i%k] = append(folds[i%k], pos)
	}
	return folds
}

// splitClassification stratifies positions by binary class so that every
// fold holds max(1, c/k) samples of each class before the remainder is dealt
// round-robin.
func splitClassification(values []float64, border float64, k int) ([][]int, error) {
	dist := mathx.NewBinDistribution(border)
	dist.Update(values)
	var per [2]int
	for class, count := range dist.NumOf {
		per[class] = max(1, count/k)
		if per[class]*k > count {
			return nil, fmt.Errorf("%w: class %d has %d samples for %d folds", ErrInsufficientClassSamples, class, count, k)
		}
	}
	bins := [2][]int{make([]int, 0, dist.NumOf[0]), make([]int, 0, dist.NumOf[1])}
	for pos, v := range values {
		class := dist.Class(v)
		bins[class] = append(bins[class], pos)
	}

	folds := make([][]int, k)
	var next [2]int
	for f := 0; f < k; f++ {
		for class := range bins {
			for i := 0; i < per[class]; i++ {
				folds[f] = append(folds[f], bins[class][next[class]])
				next[class]++
			}
		}
	}
	for class := range bins {
		for i := 0; next[class] < len(bins[class]); i, next[class] = i+1, next[class]+1 {
			folds[i%k] = append(folds[i%k], bins[class][next[class]])
		}
	}
	return folds, nil
}
