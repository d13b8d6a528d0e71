package mathx

// WeightedAvg accumulates a weighted arithmetic mean.
type WeightedAvg struct {
	sumWeightedValues float64
	sumWeights        float64
	count             int
}

func (w *WeightedAvg) Add(value, weight float64) {
	w.sumWeightedValues += value * weight
	w.sumWeights += weight
	w.count++
}

func (w *WeightedAvg) Count() int { return w.count }

// Avg returns the weighted mean, or 0 when no weight was accumulated.
func (w *WeightedAvg) Avg() float64 {
	if w.sumWeights == 0 {
		return 0
	}
	return w.sumWeightedValues / w.sumWeights
}
