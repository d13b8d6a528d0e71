package dataset

import (
	"fmt"

	"esnkit/internal/mathx"
)

// Normalizers holds one fitted normalizer per input and output field.
type Normalizers struct {
	Inputs  []*mathx.Normalizer
	Outputs []*mathx.Normalizer
}

func newNormalizers(inputs, outputs int, normRange mathx.Interval, reserve float64, standardize bool) *Normalizers {
	n := &Normalizers{
		Inputs:  make([]*mathx.Normalizer, inputs),
		Outputs: make([]*mathx.Normalizer, outputs),
	}
	for i := range n.Inputs {
		n.Inputs[i] = mathx.NewNormalizer(normRange, reserve, standardize)
	}
	for i := range n.Outputs {
		n.Outputs[i] = mathx.NewNormalizer(normRange, reserve, standardize)
	}
	return n
}

// FitTimeSeries adjusts normalizers to every value of the bundle.
func FitTimeSeries(b TimeSeriesBundle, normRange mathx.Interval, reserve float64, standardize bool) (*Normalizers, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	n := newNormalizers(len(b.Inputs[0]), len(b.Outputs[0]), normRange, reserve, standardize)
	for i := range b.Inputs {
		adjust(n.Inputs, b.Inputs[i])
		adjust(n.Outputs, b.Outputs[i])
	}
	if b.Next != nil {
		adjust(n.Inputs, b.Next)
	}
	return n, nil
}

// FitPatterns adjusts normalizers to every value of the bundle.
func FitPatterns(b PatternBundle, normRange mathx.Interval, reserve float64, standardize bool) (*Normalizers, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	n := newNormalizers(len(b.Patterns[0][0]), len(b.Outputs[0]), normRange, reserve, standardize)
	for i, pattern := range b.Patterns {
		for _, v := range pattern {
			adjust(n.Inputs, v)
		}
		adjust(n.Outputs, b.Outputs[i])
	}
	return n, nil
}

func (n *Normalizers) NormalizeTimeSeries(b TimeSeriesBundle) (TimeSeriesBundle, error) {
	out := TimeSeriesBundle{
		Inputs:  make([][]float64, len(b.Inputs)),
		Outputs: make([][]float64, len(b.Outputs)),
	}
	for i := range b.Inputs {
		var err error
		if out.Inputs[i], err = apply(n.Inputs, b.Inputs[i], false); err != nil {
			return TimeSeriesBundle{}, fmt.Errorf("normalize input row %d: %w", i, err)
		}
		if out.Outputs[i], err = apply(n.Outputs, b.Outputs[i], false); err != nil {
			return TimeSeriesBundle{}, fmt.Errorf("normalize output row %d: %w", i, err)
		}
	}
	if b.Next != nil {
		next, err := n.NormalizeInput(b.Next)
		if err != nil {
			return TimeSeriesBundle{}, fmt.Errorf("normalize next input: %w", err)
		}
		out.Next = next
	}
	return out, nil
}

func (n *Normalizers) NormalizePatterns(b PatternBundle) (PatternBundle, error) {
	out := PatternBundle{
		Patterns: make([][][]float64, len(b.Patterns)),
		Outputs:  make([][]float64, len(b.Outputs)),
	}
	for i, pattern := range b.Patterns {
		out.Patterns[i] = make([][]float64, len(pattern))
		for j, v := range pattern {
			norm, err := apply(n.Inputs, v, false)
			if err != nil {
				return PatternBundle{}, fmt.Errorf("normalize pattern %d step %d: %w", i, j, err)
			}
			out.Patterns[i][j] = norm
		}
		norm, err := apply(n.Outputs, b.Outputs[i], false)
		if err != nil {
			return PatternBundle{}, fmt.Errorf("normalize pattern output %d: %w", i, err)
		}
		out.Outputs[i] = norm
	}
	return out, nil
}

// NormalizeInput normalizes one external input vector.
func (n *Normalizers) NormalizeInput(values []float64) ([]float64, error) {
	return apply(n.Inputs, values, false)
}

// NaturalizeOutput maps normalized output values back to natural units.
func (n *Normalizers) NaturalizeOutput(values []float64) ([]float64, error) {
	return apply(n.Outputs, values, true)
}

func adjust(normalizers []*mathx.Normalizer, values []float64) {
	for i, v := range values {
		normalizers[i].Adjust(v)
	}
}

func apply(normalizers []*mathx.Normalizer, values []float64, naturalize bool) ([]float64, error) {
	if len(values) != len(normalizers) {
		return nil, fmt.Errorf("vector length mismatch: got=%d want=%d", len(values), len(normalizers))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		var err error
		if naturalize {
			out[i], err = normalizers[i].Naturalize(v)
		} else {
			out[i], err = normalizers[i].Normalize(v)
		}
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
	}
	return out, nil
}
