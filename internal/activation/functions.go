package activation

import (
	"fmt"
	"math"
)

// Func adapts a stateless function and optional derivative to Activation.
type Func struct {
	Name  string
	Fn    func(x float64) float64
	Deriv func(y, x float64) float64
}

func (f Func) Compute(x float64) float64 {
	return f.Fn(x)
}

func (f Func) Derivative(y, x float64) (float64, error) {
	if f.Deriv == nil {
		return 0, fmt.Errorf("%w: %s", ErrDerivativeUnsupported, f.Name)
	}
	return f.Deriv(y, x), nil
}

var (
	Identity = Func{
		Name:  "identity",
		Fn:    func(x float64) float64 { return x },
		Deriv: func(_, _ float64) float64 { return 1 },
	}
	TanH = Func{
		Name:  "tanh",
		Fn:    math.Tanh,
		Deriv: func(y, _ float64) float64 { return 1 - y*y },
	}
	Sigmoid = Func{
		Name:  "sigmoid",
		Fn:    func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		Deriv: func(y, _ float64) float64 { return y * (1 - y) },
	}
	// Elliot is the softsign function x/(1+|x|).
	Elliot = Func{
		Name: "elliot",
		Fn:   func(x float64) float64 { return x / (1 + math.Abs(x)) },
		Deriv: func(_, x float64) float64 {
			d := 1 + math.Abs(x)
			return 1 / (d * d)
		},
	}
	Gaussian = Func{
		Name:  "gaussian",
		Fn:    gaussian,
		Deriv: func(y, x float64) float64 { return -2 * x * y },
	}
	Sinc = Func{
		Name: "sinc",
		Fn:   sinc,
		Deriv: func(y, x float64) float64 {
			if x == 0 {
				return 0
			}
			return (math.Cos(x) - y) / x
		},
	}
	ReLU = Func{
		Name: "relu",
		Fn: func(x float64) float64 {
			if x < 0 {
				return 0
			}
			return x
		},
		Deriv: func(_, x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
	SoftPlus = Func{
		Name:  "softplus",
		Fn:    func(x float64) float64 { return math.Log1p(math.Exp(x)) },
		Deriv: func(_, x float64) float64 { return 1 / (1 + math.Exp(-x)) },
	}
)

func gaussian(x float64) float64 {
	if x > 10 {
		x = 10
	} else if x < -10 {
		x = -10
	}
	return math.Exp(-(x * x))
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(x) / x
}
