package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"esnkit/internal/reservoir"
	"esnkit/pkg/esnkit"
)

func loadRunRequestFromConfig(path string) (esnkit.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return esnkit.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return esnkit.RunRequest{}, err
	}

	var req esnkit.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["name"]); ok {
		req.Name = v
	}
	if v, ok := asString(raw["data_path"]); ok {
		req.DataPath = v
	}
	if v, ok := asStrings(raw["input_columns"]); ok {
		req.InputColumns = v
	}
	if v, ok := asStrings(raw["output_columns"]); ok {
		req.OutputColumns = v
	}
	if v, ok := asInt(raw["fields_per_step"]); ok {
		req.FieldsPerStep = v
	}
	if v, ok := asString(raw["task_type"]); ok {
		req.TaskType = v
	}
	if v, ok := asInt(raw["boot_samples"]); ok {
		req.BootSamples = v
	}
	if v, ok := asFloat64(raw["normalizer_reserve"]); ok {
		req.NormalizerReserve = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asBool(raw["route_input"]); ok {
		req.RouteInput = v
	}
	if v, ok := asString(raw["trainer"]); ok {
		req.Trainer = v
	}
	if v, ok := asFloat64(raw["ridge_lambda"]); ok {
		req.RidgeLambda = v
	}
	if v, ok := asInt(raw["rprop_epochs"]); ok {
		req.RPropEpochs = v
	}

	if items, ok := raw["reservoirs"].([]any); ok {
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return esnkit.RunRequest{}, fmt.Errorf("reservoirs[%d]: expected object", i)
			}
			inst, err := instanceFromConfig(m)
			if err != nil {
				return esnkit.RunRequest{}, fmt.Errorf("reservoirs[%d]: %w", i, err)
			}
			req.Instances = append(req.Instances, inst)
		}
	}

	if m, ok := raw["readout"].(map[string]any); ok {
		dataMin, hasMin := asFloat64(m["data_min"])
		dataMax, hasMax := asFloat64(m["data_max"])
		if hasMin || hasMax {
			req.DataRange = esnkit.Interval{Min: dataMin, Max: dataMax}
		}
		if items, ok := m["fields"].([]any); ok {
			for i, item := range items {
				fm, ok := item.(map[string]any)
				if !ok {
					return esnkit.RunRequest{}, fmt.Errorf("readout.fields[%d]: expected object", i)
				}
				req.Fields = append(req.Fields, fieldFromConfig(fm))
			}
		}
	}
	return req, nil
}

func instanceFromConfig(m map[string]any) (esnkit.InstanceSettings, error) {
	s := esnkit.DefaultReservoirSettings()
	if v, ok := asString(m["name"]); ok {
		s.Name = v
	}
	if v, ok := asInt(m["size"]); ok {
		s.Size = v
	}
	if v, ok := asString(m["activation"]); ok {
		s.Activation = v
	}
	if v, ok := asString(m["topology"]); ok {
		topology, err := reservoir.ParseTopology(strings.ToLower(v))
		if err != nil {
			return esnkit.InstanceSettings{}, err
		}
		s.Topology = topology
	}
	floats := map[string]*float64{
		"density":                  &s.Density,
		"self_density":             &s.SelfConnectionDensity,
		"inter_density":            &s.InterConnectionDensity,
		"input_density":            &s.InputConnectionDensity,
		"input_scale":              &s.InputWeightScale,
		"bias_scale":               &s.BiasScale,
		"internal_scale":           &s.InternalWeightScale,
		"context_feedback_density": &s.ContextFeedbackDensity,
		"context_in_scale":         &s.ContextInWeightScale,
		"context_out_scale":        &s.ContextOutWeightScale,
		"feedback_density":         &s.FeedbackDensity,
		"feedback_scale":           &s.FeedbackWeightScale,
		"retainment_density":       &s.RetainmentDensity,
		"retainment_min":           &s.RetainmentMinRate,
		"retainment_max":           &s.RetainmentMaxRate,
	}
	for key, dst := range floats {
		if v, ok := asFloat64(m[key]); ok {
			*dst = v
		}
	}
	if v, ok := asString(m["context_activation"]); ok {
		s.ContextActivation = v
	}
	if v, ok := asBool(m["bidirectional"]); ok {
		s.Bidirectional = v
	}
	if v, ok := asBool(m["augmented_states"]); ok {
		s.AugmentedStates = v
	}

	inst := esnkit.InstanceSettings{Reservoir: s}
	if v, ok := asInts(m["input_fields"]); ok {
		inst.InputFieldMapping = v
	}
	if v, ok := asInts(m["feedback_fields"]); ok {
		inst.FeedbackFieldMapping = v
	}
	return inst, nil
}

func fieldFromConfig(m map[string]any) esnkit.FieldSettings {
	var f esnkit.FieldSettings
	if v, ok := asString(m["name"]); ok {
		f.Name = v
	}
	if v, ok := asString(m["task_type"]); ok {
		f.TaskType = esnkit.TaskType(v)
	}
	if v, ok := asFloat64(m["test_ratio"]); ok {
		f.TestDataRatio = v
	}
	if v, ok := asInt(m["folds"]); ok {
		f.NumOfFolds = v
	}
	outMin, hasMin := asFloat64(m["output_min"])
	outMax, hasMax := asFloat64(m["output_max"])
	if hasMin || hasMax {
		f.OutputRange = esnkit.Interval{Min: outMin, Max: outMax}
	}
	return f
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// asStrings accepts a JSON array of strings or a comma separated string.
func asStrings(v any) ([]string, bool) {
	switch x := v.(type) {
	case string:
		return splitList(x), true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func asInts(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func overrideFromFlags(req *esnkit.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "name":
			req.Name = v.(string)
		case "data":
			req.DataPath = v.(string)
		case "inputs":
			req.InputColumns = splitList(v.(string))
		case "outputs":
			req.OutputColumns = splitList(v.(string))
		case "fields-per-step":
			req.FieldsPerStep = v.(int)
		case "task":
			req.TaskType = v.(string)
		case "boot":
			req.BootSamples = v.(int)
		case "reserve":
			req.NormalizerReserve = v.(float64)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		case "route-input":
			req.RouteInput = v.(bool)
		case "trainer":
			req.Trainer = v.(string)
		case "ridge-lambda":
			req.RidgeLambda = v.(float64)
		case "rprop-epochs":
			req.RPropEpochs = v.(int)
		case "size":
			size := v.(int)
			if size <= 0 {
				return fmt.Errorf("size must be > 0: %d", size)
			}
			if len(req.Instances) == 0 {
				req.Instances = []esnkit.InstanceSettings{{Reservoir: esnkit.DefaultReservoirSettings()}}
			}
			for i := range req.Instances {
				req.Instances[i].Reservoir.Size = size
			}
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (esnkit.RunRequest, error) {
	if configPath == "" {
		return esnkit.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return esnkit.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
