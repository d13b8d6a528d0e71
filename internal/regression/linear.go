// Package regression provides trainers producing single-output linear units
// for the readout layer.
package regression

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"esnkit/internal/activation"
	"esnkit/internal/mathx"
	"esnkit/internal/readout"
)

// LinearUnit computes act(w·x + b).
type LinearUnit struct {
	Weights    []float64
	Bias       float64
	activation activation.Activation

	trainErr *mathx.BasicStat
	testErr  *mathx.BasicStat
}

var _ readout.Unit = (*LinearUnit)(nil)

func NewLinearUnit(inputs int, act activation.Activation) *LinearUnit {
	if act == nil {
		act = activation.Identity
	}
	return &LinearUnit{
		Weights:    make([]float64, inputs),
		activation: act,
		trainErr:   mathx.NewBasicStat(),
	}
}

func (u *LinearUnit) net(predictors []float64) float64 {
	return floats.Dot(u.Weights, predictors) + u.Bias
}

func (u *LinearUnit) Compute(predictors []float64) float64 {
	return u.activation.Compute(u.net(predictors))
}

func (u *LinearUnit) TrainingErrStat() *mathx.BasicStat { return u.trainErr }

func (u *LinearUnit) TestingErrStat() *mathx.BasicStat { return u.testErr }

// evaluate refreshes the absolute error statistics of the unit.
func (u *LinearUnit) evaluate(set readout.TrainingSet) {
	u.trainErr = absErrStat(u, set.TrainingPredictors, set.TrainingIdeals)
	u.testErr = nil
	if len(set.ValidationIdeals) > 0 {
		u.testErr = absErrStat(u, set.ValidationPredictors, set.ValidationIdeals)
	}
}

func absErrStat(u *LinearUnit, predictors [][]float64, ideals []float64) *mathx.BasicStat {
	stat := mathx.NewBasicStat()
	for i, row := range predictors {
		stat.Add(math.Abs(u.Compute(row) - ideals[i]))
	}
	return stat
}

func meanSquaredError(u *LinearUnit, predictors [][]float64, ideals []float64) float64 {
	if len(ideals) == 0 {
		return 0
	}
	sum := 0.0
	for i, row := range predictors {
		e := ideals[i] - u.Compute(row)
		sum += e * e
	}
	return sum / float64(len(ideals))
}
