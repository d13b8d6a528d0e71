// Package dataset holds in-memory sample bundles and their CSV and
// normalization plumbing.
package dataset

import (
	"errors"
	"fmt"
)

// TimeSeriesBundle pairs each input vector with the ideal output vector of
// the same step. Next, when known, is the input that follows the last step.
type TimeSeriesBundle struct {
	Inputs  [][]float64 `json:"inputs"`
	Outputs [][]float64 `json:"outputs"`
	Next    []float64   `json:"next,omitempty"`
}

// PatternBundle pairs each input pattern (a sequence of input vectors) with
// one ideal output vector.
type PatternBundle struct {
	Patterns [][][]float64 `json:"patterns"`
	Outputs  [][]float64   `json:"outputs"`
}

func (b TimeSeriesBundle) Len() int { return len(b.Inputs) }

func (b PatternBundle) Len() int { return len(b.Patterns) }

func (b TimeSeriesBundle) Validate() error {
	if len(b.Inputs) == 0 {
		return errors.New("time series bundle is empty")
	}
	if len(b.Inputs) != len(b.Outputs) {
		return fmt.Errorf("time series bundle length mismatch: inputs=%d outputs=%d", len(b.Inputs), len(b.Outputs))
	}
	if err := sameWidth("input", b.Inputs); err != nil {
		return err
	}
	if b.Next != nil && len(b.Next) != len(b.Inputs[0]) {
		return fmt.Errorf("next input width mismatch: got=%d want=%d", len(b.Next), len(b.Inputs[0]))
	}
	return sameWidth("output", b.Outputs)
}

func (b PatternBundle) Validate() error {
	if len(b.Patterns) == 0 {
		return errors.New("pattern bundle is empty")
	}
	if len(b.Patterns) != len(b.Outputs) {
		return fmt.Errorf("pattern bundle length mismatch: patterns=%d outputs=%d", len(b.Patterns), len(b.Outputs))
	}
	width := -1
	for i, pattern := range b.Patterns {
		if len(pattern) == 0 {
			return fmt.Errorf("pattern %d is empty", i)
		}
		for _, v := range pattern {
			if width < 0 {
				width = len(v)
			}
			if len(v) != width {
				return fmt.Errorf("pattern %d vector width mismatch: got=%d want=%d", i, len(v), width)
			}
		}
	}
	return sameWidth("output", b.Outputs)
}

// Split divides the bundle into the first n samples and the rest. Next stays
// with the rest.
func (b TimeSeriesBundle) Split(n int) (TimeSeriesBundle, TimeSeriesBundle) {
	if n < 0 {
		n = 0
	}
	if n > len(b.Inputs) {
		n = len(b.Inputs)
	}
	return TimeSeriesBundle{Inputs: b.Inputs[:n], Outputs: b.Outputs[:n]},
		TimeSeriesBundle{Inputs: b.Inputs[n:], Outputs: b.Outputs[n:], Next: b.Next}
}

func sameWidth(kind string, rows [][]float64) error {
	for i := range rows {
		if len(rows[i]) != len(rows[0]) {
			return fmt.Errorf("%s row %d width mismatch: got=%d want=%d", kind, i, len(rows[i]), len(rows[0]))
		}
	}
	return nil
}
