// Package network composes reservoir instances into one predictor vector and
// trains the readout layer on top of them.
package network

import (
	"errors"
	"fmt"
	"sync"

	"esnkit/internal/dataset"
	"esnkit/internal/mathx"
	"esnkit/internal/readout"
	"esnkit/internal/regression"
	"esnkit/internal/reservoir"
)

var ErrTaskTypeMismatch = errors.New("operation not supported for network task type")

type instance struct {
	settings  InstanceSettings
	reservoir *reservoir.Reservoir
	offset    int
}

// Network owns the reservoir instances and the readout layer.
type Network struct {
	settings      Settings
	instances     []*instance
	numPredictors int
	readout       *readout.Layer
}

// RegressionInput is the dataset collected for readout training.
type RegressionInput struct {
	Predictors     [][]float64       `json:"predictors"`
	IdealOutputs   [][]float64       `json:"ideal_outputs"`
	ReservoirStats []reservoir.Stats `json:"reservoir_stats"`
}

// ProgressFunc is called after each processed sample.
type ProgressFunc func(total, processed int)

func New(settings Settings) (*Network, error) {
	if settings.TaskType == "" {
		settings.TaskType = readout.TaskPrediction
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	for i := range settings.Readout.Fields {
		if settings.Readout.Fields[i].TaskType == "" {
			settings.Readout.Fields[i].TaskType = settings.TaskType
		}
	}
	settings.Readout.Seed = settings.Seed
	layer, err := readout.New(settings.Readout)
	if err != nil {
		return nil, err
	}

	n := &Network{settings: settings, readout: layer}
	for i, def := range settings.Instances {
		seed := settings.Seed
		if seed >= 0 {
			seed += int64(i)
		}
		res, err := reservoir.New(def.Reservoir, len(def.InputFieldMapping), len(def.FeedbackFieldMapping), mathx.NewRand(seed))
		if err != nil {
			return nil, fmt.Errorf("instance %d (%s): %w", i, def.Reservoir.Name, err)
		}
		n.instances = append(n.instances, &instance{settings: def, reservoir: res, offset: n.numPredictors})
		n.numPredictors += res.OutputPredictorsCount()
	}
	if settings.RouteInputToReadout {
		n.numPredictors += settings.InputFieldCount
	}
	return n, nil
}

func (n *Network) Settings() Settings { return n.settings }

func (n *Network) TaskType() readout.TaskType { return n.settings.TaskType }

// NumOfPredictors is the fixed length of every predictor vector.
func (n *Network) NumOfPredictors() int { return n.numPredictors }

func (n *Network) Readout() *readout.Layer { return n.readout }

// Reservoirs returns the instances in definition order.
func (n *Network) Reservoirs() []*reservoir.Reservoir {
	out := make([]*reservoir.Reservoir, len(n.instances))
	for i, inst := range n.instances {
		out[i] = inst.reservoir
	}
	return out
}

func (n *Network) Reset(resetStatistics bool) {
	for _, inst := range n.instances {
		inst.reservoir.Reset(resetStatistics)
	}
}

// ComputePredictors pushes one external input vector through every instance
// and returns the predictor vector. Reservoir state persists across calls.
func (n *Network) ComputePredictors(input []float64, collectStatistics bool) ([]float64, error) {
	if len(input) != n.settings.InputFieldCount {
		return nil, fmt.Errorf("input length mismatch: got=%d want=%d", len(input), n.settings.InputFieldCount)
	}
	predictors := make([]float64, n.numPredictors)
	err := n.forEachInstance(func(inst *instance) error {
		out, err := inst.reservoir.Compute(inst.localInput(input), collectStatistics)
		if err != nil {
			return err
		}
		copy(predictors[inst.offset:], out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.routeInput(predictors, input)
	return predictors, nil
}

// ComputePatternPredictors resets reservoir states, keeping statistics,
// consumes the whole pattern and returns the final predictor vector. With
// input routing enabled the last pattern vector is appended.
func (n *Network) ComputePatternPredictors(pattern [][]float64) ([]float64, error) {
	if len(pattern) == 0 {
		return nil, errors.New("input pattern is empty")
	}
	for i, v := range pattern {
		if len(v) != n.settings.InputFieldCount {
			return nil, fmt.Errorf("pattern vector %d length mismatch: got=%d want=%d", i, len(v), n.settings.InputFieldCount)
		}
	}
	predictors := make([]float64, n.numPredictors)
	err := n.forEachInstance(func(inst *instance) error {
		inst.reservoir.Reset(false)
		var out []float64
		for _, v := range pattern {
			var err error
			if out, err = inst.reservoir.Compute(inst.localInput(v), true); err != nil {
				return err
			}
		}
		copy(predictors[inst.offset:], out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.routeInput(predictors, pattern[len(pattern)-1])
	return predictors, nil
}

// PushFeedback distributes the last known true output values to every
// instance with a feedback mapping. The values are used by the next compute.
func (n *Network) PushFeedback(values []float64) error {
	if n.settings.TaskType != readout.TaskPrediction {
		return fmt.Errorf("%w: push feedback on %s network", ErrTaskTypeMismatch, n.settings.TaskType)
	}
	if len(values) != len(n.settings.Readout.Fields) {
		return fmt.Errorf("feedback length mismatch: got=%d want=%d", len(values), len(n.settings.Readout.Fields))
	}
	for _, inst := range n.instances {
		if len(inst.settings.FeedbackFieldMapping) == 0 {
			continue
		}
		local := make([]float64, len(inst.settings.FeedbackFieldMapping))
		for i, idx := range inst.settings.FeedbackFieldMapping {
			local[i] = values[idx]
		}
		if err := inst.reservoir.SetFeedback(local); err != nil {
			return fmt.Errorf("instance %s: %w", inst.reservoir.Name(), err)
		}
	}
	return nil
}

// PrepareTimeSeriesInput resets the network, then runs every step of the
// bundle. Steps before bootSamples warm the reservoirs up without collecting
// statistics or predictors. After each step the true output is fed back.
func (n *Network) PrepareTimeSeriesInput(bundle dataset.TimeSeriesBundle, bootSamples int, progress ProgressFunc) (RegressionInput, error) {
	if n.settings.TaskType != readout.TaskPrediction {
		return RegressionInput{}, fmt.Errorf("%w: time series input on %s network", ErrTaskTypeMismatch, n.settings.TaskType)
	}
	if err := bundle.Validate(); err != nil {
		return RegressionInput{}, err
	}
	if bootSamples < 0 || bootSamples >= bundle.Len() {
		return RegressionInput{}, fmt.Errorf("boot samples must be in [0, %d): %d", bundle.Len(), bootSamples)
	}
	n.Reset(true)
	for _, inst := range n.instances {
		inst.reservoir.ClearFeedback()
	}

	total := bundle.Len()
	rsi := RegressionInput{
		Predictors:   make([][]float64, 0, total-bootSamples),
		IdealOutputs: make([][]float64, 0, total-bootSamples),
	}
	for i := 0; i < total; i++ {
		afterBoot := i >= bootSamples
		predictors, err := n.ComputePredictors(bundle.Inputs[i], afterBoot)
		if err != nil {
			return RegressionInput{}, fmt.Errorf("sample %d: %w", i, err)
		}
		if afterBoot {
			rsi.Predictors = append(rsi.Predictors, predictors)
			rsi.IdealOutputs = append(rsi.IdealOutputs, append([]float64(nil), bundle.Outputs[i]...))
		}
		if err := n.PushFeedback(bundle.Outputs[i]); err != nil {
			return RegressionInput{}, fmt.Errorf("sample %d: %w", i, err)
		}
		if progress != nil {
			progress(total, i+1)
		}
	}
	rsi.ReservoirStats = n.ReservoirStats()
	return rsi, nil
}

// PreparePatternInput runs every pattern of the bundle through the network.
func (n *Network) PreparePatternInput(bundle dataset.PatternBundle, progress ProgressFunc) (RegressionInput, error) {
	if n.settings.TaskType == readout.TaskPrediction {
		return RegressionInput{}, fmt.Errorf("%w: pattern input on %s network", ErrTaskTypeMismatch, n.settings.TaskType)
	}
	if err := bundle.Validate(); err != nil {
		return RegressionInput{}, err
	}
	total := bundle.Len()
	rsi := RegressionInput{
		Predictors:   make([][]float64, 0, total),
		IdealOutputs: make([][]float64, 0, total),
	}
	for i, pattern := range bundle.Patterns {
		predictors, err := n.ComputePatternPredictors(pattern)
		if err != nil {
			return RegressionInput{}, fmt.Errorf("pattern %d: %w", i, err)
		}
		rsi.Predictors = append(rsi.Predictors, predictors)
		rsi.IdealOutputs = append(rsi.IdealOutputs, append([]float64(nil), bundle.Outputs[i]...))
		if progress != nil {
			progress(total, i+1)
		}
	}
	rsi.ReservoirStats = n.ReservoirStats()
	return rsi, nil
}

// BuildReadout trains the readout layer. A nil trainer uses ridge regression.
func (n *Network) BuildReadout(rsi RegressionInput, trainer readout.Trainer, progress readout.ProgressFunc) (readout.ValidationBundle, error) {
	if trainer == nil {
		trainer = regression.RidgeTrainer{Lambda: regression.DefaultRidgeLambda}
	}
	return n.readout.Build(rsi.Predictors, rsi.IdealOutputs, trainer, progress)
}

// Compute advances the network by one time step and returns the readout
// output. The stored feedback is whatever was pushed last.
func (n *Network) Compute(input []float64) ([]float64, error) {
	if n.settings.TaskType != readout.TaskPrediction {
		return nil, fmt.Errorf("%w: streaming compute on %s network", ErrTaskTypeMismatch, n.settings.TaskType)
	}
	predictors, err := n.ComputePredictors(input, true)
	if err != nil {
		return nil, err
	}
	return n.readout.Compute(predictors)
}

// ComputePattern classifies one input pattern.
func (n *Network) ComputePattern(pattern [][]float64) ([]float64, error) {
	if n.settings.TaskType == readout.TaskPrediction {
		return nil, fmt.Errorf("%w: pattern compute on %s network", ErrTaskTypeMismatch, n.settings.TaskType)
	}
	predictors, err := n.ComputePatternPredictors(pattern)
	if err != nil {
		return nil, err
	}
	return n.readout.Compute(predictors)
}

func (n *Network) ClusterErrStatistics() []readout.ClusterErrStats {
	return n.readout.ClusterErrStatistics()
}

func (n *Network) ReservoirStats() []reservoir.Stats {
	out := make([]reservoir.Stats, len(n.instances))
	for i, inst := range n.instances {
		out[i] = inst.reservoir.Stats()
	}
	return out
}

func (n *Network) routeInput(predictors, input []float64) {
	if n.settings.RouteInputToReadout {
		copy(predictors[n.numPredictors-len(input):], input)
	}
}

// forEachInstance runs fn on every instance, concurrently when there is more
// than one, and returns the first error in definition order.
func (n *Network) forEachInstance(fn func(inst *instance) error) error {
	if len(n.instances) == 1 {
		return fn(n.instances[0])
	}
	errs := make([]error, len(n.instances))
	var wg sync.WaitGroup
	for i, inst := range n.instances {
		wg.Add(1)
		go func(i int, inst *instance) {
			defer wg.Done()
			errs[i] = fn(inst)
		}(i, inst)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("instance %s: %w", n.instances[i].reservoir.Name(), err)
		}
	}
	return nil
}

func (inst *instance) localInput(input []float64) []float64 {
	local := make([]float64, len(inst.settings.InputFieldMapping))
	for i, idx := range inst.settings.InputFieldMapping {
		local[i] = input[idx]
	}
	return local
}
