package regression

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"esnkit/internal/activation"
	"esnkit/internal/mathx"
	"esnkit/internal/readout"
)

// RPropParameters tunes the iRPROP+ step adaptation.
type RPropParameters struct {
	ZeroTolerance float64
	PositiveEta   float64
	NegativeEta   float64
	DeltaIni      float64
	DeltaMin      float64
	DeltaMax      float64
}

func DefaultRPropParameters() RPropParameters {
	return RPropParameters{
		ZeroTolerance: 1e-17,
		PositiveEta:   1.2,
		NegativeEta:   0.5,
		DeltaIni:      0.1,
		DeltaMin:      1e-6,
		DeltaMax:      50,
	}
}

const (
	DefaultRPropEpochs   = 400
	DefaultRPropAttempts = 1
)

// RPropTrainer fits a linear unit with an optional output activation by
// resilient backpropagation. Each attempt starts from fresh random weights
// and the attempt/epoch with the lowest validation error wins.
type RPropTrainer struct {
	Params     RPropParameters
	Epochs     int
	Attempts   int
	Activation string
	Workers    int
	// StopMSE ends an attempt early once the training error drops below it.
	StopMSE float64
}

var _ readout.Trainer = RPropTrainer{}

func (t RPropTrainer) Train(set readout.TrainingSet) (readout.Unit, error) {
	rows := len(set.TrainingPredictors)
	if rows == 0 || rows != len(set.TrainingIdeals) {
		return nil, fmt.Errorf("invalid training set: predictors=%d ideals=%d", rows, len(set.TrainingIdeals))
	}
	if t.Params == (RPropParameters{}) {
		t.Params = DefaultRPropParameters()
	}
	if t.Epochs <= 0 {
		t.Epochs = DefaultRPropEpochs
	}
	if t.Attempts <= 0 {
		t.Attempts = DefaultRPropAttempts
	}
	if t.Activation == "" {
		t.Activation = activation.Identity.Name
	}
	if t.Workers <= 0 {
		t.Workers = runtime.GOMAXPROCS(0)
	}
	act, err := activation.New(t.Activation)
	if err != nil {
		return nil, err
	}
	if !activation.SupportsDerivative(act) {
		return nil, fmt.Errorf("rprop output activation %s: %w", t.Activation, activation.ErrDerivativeUnsupported)
	}
	rng := mathx.EnsureRand(set.Rand)
	inputs := len(set.TrainingPredictors[0])

	var best *LinearUnit
	bestErr := math.Inf(1)
	for attempt := 0; attempt < t.Attempts; attempt++ {
		unit := NewLinearUnit(inputs, act)
		for i := range unit.Weights {
			unit.Weights[i] = mathx.Uniform(rng, -0.05, 0.05)
		}
		run := newRPropRun(t, unit, set.TrainingPredictors, set.TrainingIdeals)
		for epoch := 0; epoch < t.Epochs; epoch++ {
			if err := run.iteration(); err != nil {
				return nil, err
			}
			trainMSE := meanSquaredError(unit, set.TrainingPredictors, set.TrainingIdeals)
			score := trainMSE
			if len(set.ValidationIdeals) > 0 {
				score = math.Max(score, meanSquaredError(unit, set.ValidationPredictors, set.ValidationIdeals))
			}
			if score < bestErr {
				bestErr = score
				best = &LinearUnit{
					Weights:    append([]float64(nil), unit.Weights...),
					Bias:       unit.Bias,
					activation: act,
				}
			}
			if trainMSE <= t.StopMSE {
				break
			}
		}
	}
	if best == nil {
		best = NewLinearUnit(inputs, act)
	}
	best.evaluate(set)
	return best, nil
}

// rpropRun holds the optimizer state of one attempt. Index len(Weights) is
// the bias.
type rpropRun struct {
	params  RPropParameters
	workers int
	unit    *LinearUnit
	inputs  [][]float64
	ideals  []float64

	mu          sync.Mutex
	grads       []float64
	prevGrads   []float64
	prevDeltas  []float64
	prevChanges []float64
	prevMSE     float64
	lastMSE     float64
}

func newRPropRun(t RPropTrainer, unit *LinearUnit, inputs [][]float64, ideals []float64) *rpropRun {
	n := len(unit.Weights) + 1
	r := &rpropRun{
		params:      t.Params,
		workers:     t.Workers,
		unit:        unit,
		inputs:      inputs,
		ideals:      ideals,
		grads:       make([]float64, n),
		prevGrads:   make([]float64, n),
		prevDeltas:  make([]float64, n),
		prevChanges: make([]float64, n),
	}
	for i := range r.prevDeltas {
		r.prevDeltas[i] = t.Params.DeltaIni
	}
	return r
}

func (r *rpropRun) sign(v float64) float64 {
	if math.Abs(v) <= r.params.ZeroTolerance {
		return 0
	}
	if v > 0 {
		return 1
	}
	return -1
}

// iteration runs one epoch: gradient workers over row ranges merge into the
// shared accumulator under one lock per batch, then every weight is updated
// independently.
func (r *rpropRun) iteration() error {
	r.prevMSE = r.lastMSE
	r.lastMSE = 0
	for i := range r.grads {
		r.grads[i] = 0
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	n := len(r.grads)
	forRanges(len(r.inputs), r.workers, &wg, func(lo, hi int) {
		local := make([]float64, n)
		sumSq := 0.0
		for row := lo; row < hi; row++ {
			x := r.inputs[row]
			z := r.unit.net(x)
			y := r.unit.activation.Compute(z)
			d, err := activation.Derivative(r.unit.activation, y, z)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			e := r.ideals[row] - y
			g := d * e
			for i, v := range x {
				local[i] += v * g
			}
			local[n-1] += g
			sumSq += e * e
		}
		r.mu.Lock()
		for i, v := range local {
			r.grads[i] += v
		}
		r.lastMSE += sumSq
		r.mu.Unlock()
	})
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	r.lastMSE /= float64(len(r.inputs))

	forRanges(n, r.workers, &wg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			r.updateWeight(i)
		}
	})
	wg.Wait()

	copy(r.prevGrads, r.grads)
	return nil
}

func (r *rpropRun) updateWeight(i int) {
	change := 0.0
	switch gradSign := r.sign(r.prevGrads[i] * r.grads[i]); {
	case gradSign > 0:
		delta := math.Min(r.prevDeltas[i]*r.params.PositiveEta, r.params.DeltaMax)
		r.prevDeltas[i] = delta
		change = r.sign(r.grads[i]) * delta
	case gradSign < 0:
		delta := math.Max(r.prevDeltas[i]*r.params.NegativeEta, r.params.DeltaMin)
		r.prevDeltas[i] = delta
		if r.lastMSE > r.prevMSE {
			change = -r.prevChanges[i]
		}
		r.grads[i] = 0
	default:
		change = r.sign(r.grads[i]) * r.prevDeltas[i]
	}
	if i == len(r.unit.Weights) {
		r.unit.Bias += change
	} else {
		r.unit.Weights[i] += change
	}
	r.prevChanges[i] = change
}

// forRanges starts one goroutine per contiguous range of [0, n).
func forRanges(n, workers int, wg *sync.WaitGroup, fn func(lo, hi int)) {
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	batch := n / workers
	for w, lo := 0, 0; w < workers; w, lo = w+1, lo+batch {
		hi := lo + batch
		if w == workers-1 {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
}
