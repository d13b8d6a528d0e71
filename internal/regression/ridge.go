package regression

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"esnkit/internal/readout"
)

const DefaultRidgeLambda = 1e-6

// RidgeTrainer fits an identity-output linear unit by closed-form ridge
// regression. The bias term is not penalized.
type RidgeTrainer struct {
	Lambda float64
}

var _ readout.Trainer = RidgeTrainer{}

func (t RidgeTrainer) Train(set readout.TrainingSet) (readout.Unit, error) {
	rows := len(set.TrainingPredictors)
	if rows == 0 || rows != len(set.TrainingIdeals) {
		return nil, fmt.Errorf("invalid training set: predictors=%d ideals=%d", rows, len(set.TrainingIdeals))
	}
	lambda := t.Lambda
	if lambda <= 0 {
		lambda = DefaultRidgeLambda
	}
	cols := len(set.TrainingPredictors[0])

	x := mat.NewDense(rows, cols+1, nil)
	y := mat.NewVecDense(rows, append([]float64(nil), set.TrainingIdeals...))
	for r, row := range set.TrainingPredictors {
		if len(row) != cols {
			return nil, fmt.Errorf("training row %d length mismatch: got=%d want=%d", r, len(row), cols)
		}
		for c, v := range row {
			x.Set(r, c, v)
		}
		x.Set(r, cols, 1)
	}

	var gram mat.Dense
	gram.Mul(x.T(), x)
	for c := 0; c < cols; c++ {
		gram.Set(c, c, gram.At(c, c)+lambda)
	}
	var rhs mat.VecDense
	rhs.MulVec(x.T(), y)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("ridge solve: %w", err)
		}
	}

	unit := NewLinearUnit(cols, nil)
	for c := 0; c < cols; c++ {
		unit.Weights[c] = w.AtVec(c)
	}
	unit.Bias = w.AtVec(cols)
	unit.evaluate(set)
	return unit, nil
}
