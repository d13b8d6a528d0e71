package network

import (
	"errors"
	"math"
	"testing"

	"esnkit/internal/dataset"
	"esnkit/internal/mathx"
	"esnkit/internal/readout"
	"esnkit/internal/reservoir"
)

func smallReservoir(name string, size int) reservoir.Settings {
	s := reservoir.DefaultSettings()
	s.Name = name
	s.Size = size
	s.Workers = 2
	return s
}

func predictionSettings() Settings {
	res := smallReservoir("main", 30)
	res.FeedbackDensity = 0.2
	res.FeedbackWeightScale = 0.5
	return Settings{
		TaskType:        readout.TaskPrediction,
		InputFieldCount: 1,
		Instances: []InstanceSettings{
			{Reservoir: res, InputFieldMapping: []int{0}, FeedbackFieldMapping: []int{0}},
		},
		Seed: 7,
		Readout: readout.Settings{
			DataRange: mathx.DefaultNormRange,
			Fields:    []readout.FieldSettings{{Name: "next", TestDataRatio: 0.2}},
		},
	}
}

func sineBundle(steps int) dataset.TimeSeriesBundle {
	var b dataset.TimeSeriesBundle
	for t := 0; t < steps; t++ {
		b.Inputs = append(b.Inputs, []float64{0.8 * math.Sin(0.2*float64(t))})
		b.Outputs = append(b.Outputs, []float64{0.8 * math.Sin(0.2*float64(t+1))})
	}
	return b
}

func TestPredictorLayoutWithRoutedInput(t *testing.T) {
	settings := Settings{
		TaskType:        readout.TaskPrediction,
		InputFieldCount: 3,
		Instances: []InstanceSettings{
			{Reservoir: smallReservoir("a", 5), InputFieldMapping: []int{0, 1}},
			{Reservoir: smallReservoir("b", 4), InputFieldMapping: []int{2}},
		},
		RouteInputToReadout: true,
		Seed:                1,
		Readout: readout.Settings{
			DataRange: mathx.DefaultNormRange,
			Fields:    []readout.FieldSettings{{Name: "y", TestDataRatio: 0.2}},
		},
	}
	settings.Instances[1].Reservoir.AugmentedStates = true
	n, err := New(settings)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	if n.NumOfPredictors() != 5+8+3 {
		t.Fatalf("unexpected predictor count: %d", n.NumOfPredictors())
	}
	predictors, err := n.ComputePredictors([]float64{0.1, 0.2, 0.3}, true)
	if err != nil {
		t.Fatalf("compute predictors: %v", err)
	}
	if len(predictors) != n.NumOfPredictors() {
		t.Fatalf("predictor length mismatch: %d", len(predictors))
	}
	tail := predictors[len(predictors)-3:]
	if tail[0] != 0.1 || tail[1] != 0.2 || tail[2] != 0.3 {
		t.Fatalf("expected routed input at the tail, got %v", tail)
	}
	for i := 0; i < 4; i++ {
		state := predictors[5+i]
		if math.Abs(predictors[5+4+i]-state*state) > 1e-12 {
			t.Fatalf("expected augmented square for neuron %d", i)
		}
	}
	if _, err := n.ComputePredictors([]float64{1}, true); err == nil {
		t.Fatal("expected input length mismatch")
	}
}

func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		target error
	}{
		{name: "no_instances", mutate: func(s *Settings) { s.Instances = nil }},
		{name: "input_index", mutate: func(s *Settings) { s.Instances[0].InputFieldMapping = []int{1} }},
		{name: "feedback_index", mutate: func(s *Settings) { s.Instances[0].FeedbackFieldMapping = []int{2} }},
		{name: "no_outputs", mutate: func(s *Settings) { s.Readout.Fields = nil }},
		{name: "bad_task", mutate: func(s *Settings) { s.TaskType = "clustering" }},
		{
			name: "classification_feedback",
			mutate: func(s *Settings) {
				s.TaskType = readout.TaskClassification
			},
			target: ErrTaskTypeMismatch,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			settings := predictionSettings()
			tc.mutate(&settings)
			_, err := New(settings)
			if err == nil {
				t.Fatal("expected settings error")
			}
			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestTimeSeriesPreparationAndReadout(t *testing.T) {
	n, err := New(predictionSettings())
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	bundle := sineBundle(220)
	calls := 0
	rsi, err := n.PrepareTimeSeriesInput(bundle, 20, func(total, processed int) {
		calls++
		if total != 220 || processed != calls {
			t.Fatalf("unexpected progress: total=%d processed=%d call=%d", total, processed, calls)
		}
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if calls != 220 || len(rsi.Predictors) != 200 || len(rsi.IdealOutputs) != 200 {
		t.Fatalf("unexpected collection: calls=%d predictors=%d ideals=%d", calls, len(rsi.Predictors), len(rsi.IdealOutputs))
	}
	if rsi.IdealOutputs[0][0] != bundle.Outputs[20][0] {
		t.Fatalf("expected ideals aligned after boot")
	}
	if len(rsi.ReservoirStats) != 1 || rsi.ReservoirStats[0].NeuronsAvgStates.Count != 30 {
		t.Fatalf("unexpected reservoir stats: %+v", rsi.ReservoirStats)
	}

	if _, err := n.BuildReadout(rsi, nil, nil); err != nil {
		t.Fatalf("build readout: %v", err)
	}
	stats := n.ClusterErrStatistics()
	if len(stats) != 1 || stats[0].NumOfUnits != 5 {
		t.Fatalf("unexpected cluster stats: %+v", stats)
	}
	if mean := stats[0].PrecisionErr.Mean(); mean > 0.1 {
		t.Fatalf("expected small validation error, got %f", mean)
	}
	out, err := n.Compute([]float64{bundle.Outputs[219][0]})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(out) != 1 || math.IsNaN(out[0]) {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestFirstComputeAfterTrainingUsesLastFeedback(t *testing.T) {
	bundle := sineBundle(60)
	a, err := New(predictionSettings())
	if err != nil {
		t.Fatalf("new network a: %v", err)
	}
	b, err := New(predictionSettings())
	if err != nil {
		t.Fatalf("new network b: %v", err)
	}
	if _, err := a.PrepareTimeSeriesInput(bundle, 10, nil); err != nil {
		t.Fatalf("prepare a: %v", err)
	}
	if _, err := b.PrepareTimeSeriesInput(bundle, 10, nil); err != nil {
		t.Fatalf("prepare b: %v", err)
	}
	last := bundle.Outputs[len(bundle.Outputs)-1][0]
	if fb := a.Reservoirs()[0].Feedback(); fb[0] != last {
		t.Fatalf("expected stored feedback %f, got %v", last, fb)
	}

	// b gets its feedback re-zeroed; a keeps the last true output.
	if err := b.PushFeedback([]float64{0}); err != nil {
		t.Fatalf("push feedback: %v", err)
	}
	next := []float64{0.8 * math.Sin(0.2*60)}
	pa, err := a.ComputePredictors(next, true)
	if err != nil {
		t.Fatalf("compute a: %v", err)
	}
	pb, err := b.ComputePredictors(next, true)
	if err != nil {
		t.Fatalf("compute b: %v", err)
	}
	same := true
	for i := range pa {
		if pa[i] != pb[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected predictors to depend on the stored feedback")
	}
}

func TestDeterministicAcrossConcurrentInstances(t *testing.T) {
	build := func() *Network {
		settings := predictionSettings()
		settings.Instances = append(settings.Instances, InstanceSettings{
			Reservoir:         smallReservoir("second", 12),
			InputFieldMapping: []int{0},
		})
		n, err := New(settings)
		if err != nil {
			t.Fatalf("new network: %v", err)
		}
		return n
	}
	a, b := build(), build()
	for step := 0; step < 10; step++ {
		input := []float64{math.Cos(float64(step))}
		pa, err := a.ComputePredictors(input, true)
		if err != nil {
			t.Fatalf("compute a: %v", err)
		}
		pb, err := b.ComputePredictors(input, true)
		if err != nil {
			t.Fatalf("compute b: %v", err)
		}
		for i := range pa {
			if pa[i] != pb[i] {
				t.Fatalf("step %d predictor %d differs: %f vs %f", step, i, pa[i], pb[i])
			}
		}
	}
}

func classificationBundle(count int) dataset.PatternBundle {
	rng := mathx.NewRand(3)
	var b dataset.PatternBundle
	for i := 0; i < count; i++ {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		pattern := make([][]float64, 4)
		for j := range pattern {
			pattern[j] = []float64{mathx.Uniform(rng, -1, 1)}
		}
		pattern[len(pattern)-1][0] = sign * mathx.Uniform(rng, 0.5, 1)
		b.Patterns = append(b.Patterns, pattern)
		b.Outputs = append(b.Outputs, []float64{sign})
	}
	return b
}

func TestPatternClassification(t *testing.T) {
	settings := Settings{
		TaskType:        readout.TaskClassification,
		InputFieldCount: 1,
		Instances: []InstanceSettings{
			{Reservoir: smallReservoir("patterns", 20), InputFieldMapping: []int{0}},
		},
		RouteInputToReadout: true,
		Seed:                11,
		Readout: readout.Settings{
			DataRange: mathx.DefaultNormRange,
			Fields:    []readout.FieldSettings{{Name: "class", TestDataRatio: 0.25}},
		},
	}
	n, err := New(settings)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	bundle := classificationBundle(40)
	rsi, err := n.PreparePatternInput(bundle, nil)
	if err != nil {
		t.Fatalf("prepare patterns: %v", err)
	}
	if len(rsi.Predictors) != 40 || len(rsi.Predictors[0]) != 21 {
		t.Fatalf("unexpected predictors: %d x %d", len(rsi.Predictors), len(rsi.Predictors[0]))
	}
	if _, err := n.BuildReadout(rsi, nil, nil); err != nil {
		t.Fatalf("build readout: %v", err)
	}
	stats := n.ClusterErrStatistics()
	if stats[0].TaskType != readout.TaskClassification || stats[0].BinaryErr == nil {
		t.Fatalf("expected classification cluster stats: %+v", stats[0])
	}
	correct := 0
	for i, pattern := range bundle.Patterns {
		out, err := n.ComputePattern(pattern)
		if err != nil {
			t.Fatalf("compute pattern: %v", err)
		}
		if (out[0] > 0) == (bundle.Outputs[i][0] > 0) {
			correct++
		}
	}
	if correct < 36 {
		t.Fatalf("expected at least 36/40 correct, got %d", correct)
	}
}

func TestTaskTypeMismatch(t *testing.T) {
	prediction, err := New(predictionSettings())
	if err != nil {
		t.Fatalf("new prediction network: %v", err)
	}
	if _, err := prediction.ComputePattern([][]float64{{0}}); !errors.Is(err, ErrTaskTypeMismatch) {
		t.Fatalf("expected ErrTaskTypeMismatch from ComputePattern, got %v", err)
	}
	if _, err := prediction.PreparePatternInput(classificationBundle(4), nil); !errors.Is(err, ErrTaskTypeMismatch) {
		t.Fatalf("expected ErrTaskTypeMismatch from PreparePatternInput, got %v", err)
	}

	settings := predictionSettings()
	settings.TaskType = readout.TaskClassification
	settings.Instances[0].FeedbackFieldMapping = nil
	classification, err := New(settings)
	if err != nil {
		t.Fatalf("new classification network: %v", err)
	}
	if _, err := classification.Compute([]float64{0}); !errors.Is(err, ErrTaskTypeMismatch) {
		t.Fatalf("expected ErrTaskTypeMismatch from Compute, got %v", err)
	}
	if err := classification.PushFeedback([]float64{0}); !errors.Is(err, ErrTaskTypeMismatch) {
		t.Fatalf("expected ErrTaskTypeMismatch from PushFeedback, got %v", err)
	}
	if _, err := classification.PrepareTimeSeriesInput(sineBundle(10), 0, nil); !errors.Is(err, ErrTaskTypeMismatch) {
		t.Fatalf("expected ErrTaskTypeMismatch from PrepareTimeSeriesInput, got %v", err)
	}
}

func TestComputeBeforeBuildFails(t *testing.T) {
	n, err := New(predictionSettings())
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	if _, err := n.Compute([]float64{0}); !errors.Is(err, readout.ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
}
