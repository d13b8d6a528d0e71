package readout

import (
	"math/rand"

	"esnkit/internal/mathx"
)

// TrainingSet is the data handed to a Trainer for one fold of one field.
type TrainingSet struct {
	Field      string
	TaskType   TaskType
	FoldIndex  int
	NumOfFolds int

	TrainingPredictors   [][]float64
	TrainingIdeals       []float64
	ValidationPredictors [][]float64
	ValidationIdeals     []float64

	Rand *rand.Rand
}

// Unit is a trained single-output regression unit.
type Unit interface {
	Compute(predictors []float64) float64
	TrainingErrStat() *mathx.BasicStat
	// TestingErrStat may be nil when the trainer does not track it.
	TestingErrStat() *mathx.BasicStat
}

type Trainer interface {
	Train(set TrainingSet) (Unit, error)
}

// TrainerFunc adapts a function to Trainer.
type TrainerFunc func(set TrainingSet) (Unit, error)

func (f TrainerFunc) Train(set TrainingSet) (Unit, error) {
	return f(set)
}

// ProgressFunc is invoked after every trained fold.
type ProgressFunc func(field string, fold, folds int)
