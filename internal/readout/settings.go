package readout

import (
	"errors"
	"fmt"

	"esnkit/internal/mathx"
)

const (
	MaxNumOfFolds          = 100
	MaxRatioOfTestData     = 1.0 / 3.0
	MinLengthOfTestDataset = 2
)

type TaskType string

const (
	TaskPrediction     TaskType = "prediction"
	TaskClassification TaskType = "classification"
)

// ParseTaskType maps a configuration name onto a TaskType.
func ParseTaskType(name string) (TaskType, error) {
	switch TaskType(name) {
	case "", TaskPrediction, "forecast", "regression":
		return TaskPrediction, nil
	case TaskClassification:
		return TaskClassification, nil
	default:
		return "", fmt.Errorf("unsupported task type: %s", name)
	}
}

var (
	ErrTestRatioTooHigh         = errors.New("test data ratio too high")
	ErrTestDatasetTooSmall      = errors.New("test dataset too small")
	ErrInsufficientClassSamples = errors.New("insufficient class samples")
	ErrOutputRangeUnsupported   = errors.New("output range unsupported")
	ErrInvalidFolds             = errors.New("invalid number of folds")
	ErrNotBuilt                 = errors.New("readout layer not built")
)

// FieldSettings configures the cluster trained for one output field.
type FieldSettings struct {
	Name          string         `json:"name"`
	TaskType      TaskType       `json:"task_type"`
	OutputRange   mathx.Interval `json:"output_range"`
	TestDataRatio float64        `json:"test_data_ratio"`
	// NumOfFolds of 0 derives the fold count from the test data ratio.
	NumOfFolds int `json:"num_of_folds"`
}

type Settings struct {
	DataRange mathx.Interval  `json:"data_range"`
	Seed      int64           `json:"seed"`
	Fields    []FieldSettings `json:"fields"`
}

func (s Settings) validate() error {
	if len(s.Fields) == 0 {
		return errors.New("readout requires at least one output field")
	}
	if s.DataRange.Span() <= 0 {
		return fmt.Errorf("invalid data range: %+v", s.DataRange)
	}
	for _, f := range s.Fields {
		if !s.DataRange.Contains(f.OutputRange) {
			return fmt.Errorf("%w: field %s range [%g, %g] outside data range [%g, %g]",
				ErrOutputRangeUnsupported, f.Name, f.OutputRange.Min, f.OutputRange.Max, s.DataRange.Min, s.DataRange.Max)
		}
		if _, err := ParseTaskType(string(f.TaskType)); err != nil {
			return err
		}
		if f.NumOfFolds < 0 {
			return fmt.Errorf("%w: field %s folds=%d", ErrInvalidFolds, f.Name, f.NumOfFolds)
		}
	}
	return nil
}
