// Package reservoir implements a fixed, randomly connected recurrent network
// of leaky neurons whose states serve as predictors for a trained readout.
package reservoir

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"esnkit/internal/activation"
	"esnkit/internal/mathx"
)

var ErrFeedbackLength = errors.New("feedback length mismatch")

// Reservoir owns the neurons, the input block, the internal topology and the
// optional context unit and feedback pathway.
type Reservoir struct {
	settings Settings

	neurons   []*Neuron
	input     *InputBlock
	adjacency *adjacency

	context          *Neuron
	neuronsToContext []float64
	contextToNeurons []float64

	feedback        []float64
	feedbackWeights []float64
	feedbackEnabled bool

	workers int
}

// New builds a reservoir for inputCount external fields and feedbackCount
// fed back values. All randomness is drawn from rng.
func New(settings Settings, inputCount, feedbackCount int, rng *rand.Rand) (*Reservoir, error) {
	if settings.Topology == "" {
		settings.Topology = TopologyRandom
	}
	if settings.Activation == "" {
		settings.Activation = "tanh"
	}
	if settings.ContextActivation == "" {
		settings.ContextActivation = "tanh"
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if inputCount < 0 || feedbackCount < 0 {
		return nil, errors.New("input and feedback counts must be >= 0")
	}
	rng = mathx.EnsureRand(rng)
	n := settings.Size

	r := &Reservoir{
		settings: settings,
		neurons:  make([]*Neuron, n),
		feedback: make([]float64, feedbackCount),
		workers:  settings.Workers,
	}
	if r.workers <= 0 {
		r.workers = runtime.GOMAXPROCS(0)
	}

	r.input = NewInputBlock(inputCount, n, settings.BiasScale, settings.InputWeightScale,
		NeuronsPerInput(n, settings.InputConnectionDensity), rng)

	rates := make([]float64, n)
	retaining := int(math.Round(float64(n) * settings.RetainmentDensity))
	if retaining > 0 && settings.RetainmentMaxRate > 0 {
		for i := 0; i < retaining; i++ {
			rates[i] = mathx.Uniform(rng, settings.RetainmentMinRate, settings.RetainmentMaxRate)
		}
		mathx.ShuffleFloats(rng, rates)
	}
	for i := range r.neurons {
		act, err := activation.New(settings.Activation)
		if err != nil {
			return nil, err
		}
		r.neurons[i] = NewNeuron(act, rates[i])
	}

	contextFeedbacks := int(math.Round(float64(n) * settings.ContextFeedbackDensity))
	if contextFeedbacks > 0 {
		act, err := activation.New(settings.ContextActivation)
		if err != nil {
			return nil, fmt.Errorf("context activation: %w", err)
		}
		r.context = NewNeuron(act, 0)
		r.neuronsToContext = make([]float64, n)
		for i := range r.neuronsToContext {
			r.neuronsToContext[i] = randomWeight(rng, settings.ContextInWeightScale)
		}
		r.contextToNeurons = make([]float64, n)
		indices := mathx.ShuffledIndices(rng, n)
		for i := 0; i < contextFeedbacks && i < n; i++ {
			r.contextToNeurons[indices[i]] = randomWeight(rng, settings.ContextOutWeightScale)
		}
	}

	perOutput := int(math.Round(settings.FeedbackDensity * float64(n)))
	if perOutput > 0 && feedbackCount > 0 {
		r.feedbackEnabled = true
		r.feedbackWeights = make([]float64, feedbackCount*n)
		for out := 0; out < feedbackCount; out++ {
			indices := mathx.ShuffledIndices(rng, n)
			for i := 0; i < perOutput && i < n; i++ {
				r.feedbackWeights[out*n+indices[i]] = randomWeight(rng, settings.FeedbackWeightScale)
			}
		}
	}

	r.adjacency = newAdjacency(n, settings.InternalWeightScale, rng)
	switch settings.Topology {
	case TopologyRandom:
		r.adjacency.setupRandom(settings.Density)
	case TopologyRing:
		r.adjacency.setupRing(settings.Bidirectional, settings.SelfConnectionDensity, settings.InterConnectionDensity)
	case TopologyDTT:
		r.adjacency.setupDTT(settings.SelfConnectionDensity)
	}
	return r, nil
}

func (r *Reservoir) Name() string { return r.settings.Name }
func (r *Reservoir) Size() int { return len(r.neurons) }
func (r *Reservoir) Settings() Settings { return r.settings }
func (r *Reservoir) InputCount() int { return r.input.InputCount() }
func (r *Reservoir) FeedbackCount() int { return len(r.feedback) }
func (r *Reservoir) HasContext() bool { return r.context != nil }
func (r *Reservoir) HasFeedback() bool { return r.feedbackEnabled }
func (r *Reservoir) Neuron(i int) *Neuron { return r.neurons[i] }

// OutputPredictorsCount is Size, or twice Size with augmented states.
func (r *Reservoir) OutputPredictorsCount() int {
	if r.settings.AugmentedStates {
		return 2 * len(r.neurons)
	}
	return len(r.neurons)
}

// Connections lists every internal edge.
func (r *Reservoir) Connections() []Connection {
	return r.adjacency.connections()
}

// InputConnections returns the number of input connections of neuron i.
func (r *Reservoir) InputConnections(i int) int {
	return r.input.Connections(i)
}

// Reset zeroes neuron and context states. Weights, topology and the stored
// feedback vector are left untouched.
func (r *Reservoir) Reset(resetStatistics bool) {
	for _, n := range r.neurons {
		n.Reset(resetStatistics)
	}
	if r.context != nil {
		r.context.Reset(resetStatistics)
	}
}

// SetFeedback stores the values used by the next Compute call.
func (r *Reservoir) SetFeedback(values []float64) error {
	if len(values) != len(r.feedback) {
		return fmt.Errorf("%w: got=%d want=%d", ErrFeedbackLength, len(values), len(r.feedback))
	}
	copy(r.feedback, values)
	return nil
}

func (r *Reservoir) ClearFeedback() {
	for i := range r.feedback {
		r.feedback[i] = 0
	}
}

// Feedback returns a copy of the stored feedback vector.
func (r *Reservoir) Feedback() []float64 {
	return append([]float64(nil), r.feedback...)
}

// Compute advances every neuron by one synchronous step and returns the
// predictor values.
func (r *Reservoir) Compute(input []float64, collectStatistics bool) ([]float64, error) {
	if err := r.input.Update(input); err != nil {
		return nil, err
	}
	for _, n := range r.neurons {
		n.StoreCurrentState()
	}

	n := len(r.neurons)
	predictors := make([]float64, r.OutputPredictorsCount())
	r.parallelFor(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			signal := r.input.Signal(i)
			for _, e := range r.adjacency.incoming[i] {
				signal += e.weight * r.neurons[e.source].previousState
			}
			if r.context != nil {
				signal += r.contextToNeurons[i] * r.context.currentState
			}
			if r.feedbackEnabled {
				for out, v := range r.feedback {
					signal += v * r.feedbackWeights[out*n+i]
				}
			}
			neuron := r.neurons[i]
			neuron.Compute(signal, collectStatistics)
			predictors[i] = neuron.currentState
			if r.settings.AugmentedStates {
				predictors[n+i] = neuron.currentState * neuron.currentState
			}
		}
	})

	if r.context != nil {
		signal := 0.0
		for i, neuron := range r.neurons {
			signal += r.neuronsToContext[i] * neuron.currentState
		}
		r.context.Compute(signal, collectStatistics)
	}
	return predictors, nil
}

// parallelFor splits [0, n) into contiguous ranges, one per worker, and
// waits for all of them.
func (r *Reservoir) parallelFor(n int, fn func(lo, hi int)) {
	workers := r.workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
