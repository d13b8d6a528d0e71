// Package activation defines the numeric unit contract used by reservoir
// neurons and readout trainers, plus a registry of built-in units.
package activation

import (
	"errors"
	"fmt"
)

var ErrDerivativeUnsupported = errors.New("derivative unsupported")

// Activation transforms a stimulus into an output value. Stateful units may
// change internal state on every call, so each neuron owns its own instance.
type Activation interface {
	Compute(x float64) float64
}

// Resetter is implemented by stateful units.
type Resetter interface {
	Reset()
}

// Deriver is implemented by units that can compute dy/dx from the computed
// value y and its input x without changing internal state.
type Deriver interface {
	Derivative(y, x float64) (float64, error)
}

// Reset resets a unit when it carries state.
func Reset(a Activation) {
	if r, ok := a.(Resetter); ok {
		r.Reset()
	}
}

// Derivative evaluates the derivative of a, failing with
// ErrDerivativeUnsupported when a cannot provide one.
func Derivative(a Activation, y, x float64) (float64, error) {
	d, ok := a.(Deriver)
	if !ok {
		return 0, fmt.Errorf("%w: %T", ErrDerivativeUnsupported, a)
	}
	return d.Derivative(y, x)
}

// SupportsDerivative reports whether a implements Deriver.
func SupportsDerivative(a Activation) bool {
	_, ok := a.(Deriver)
	return ok
}
