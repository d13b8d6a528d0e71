package network

import (
	"errors"
	"fmt"

	"esnkit/internal/readout"
	"esnkit/internal/reservoir"
)

// InstanceSettings binds one reservoir to fields of the shared external input
// vector and, for prediction tasks, to fields of the output vector that are
// fed back.
type InstanceSettings struct {
	Reservoir            reservoir.Settings `json:"reservoir"`
	InputFieldMapping    []int              `json:"input_field_mapping"`
	FeedbackFieldMapping []int              `json:"feedback_field_mapping,omitempty"`
}

// Settings configures a composed network. Seed drives topology generation
// (instance i uses Seed+i) and readout shuffling; a negative seed is
// time-based.
type Settings struct {
	TaskType            readout.TaskType   `json:"task_type"`
	InputFieldCount     int                `json:"input_field_count"`
	Instances           []InstanceSettings `json:"instances"`
	RouteInputToReadout bool               `json:"route_input_to_readout"`
	Seed                int64              `json:"seed"`
	Readout             readout.Settings   `json:"readout"`
}

func (s Settings) validate() error {
	if _, err := readout.ParseTaskType(string(s.TaskType)); err != nil {
		return err
	}
	if s.InputFieldCount <= 0 {
		return errors.New("input field count must be > 0")
	}
	if len(s.Instances) == 0 {
		return errors.New("network requires at least one reservoir instance")
	}
	outputs := len(s.Readout.Fields)
	if outputs == 0 {
		return errors.New("network requires at least one output field")
	}
	for i, inst := range s.Instances {
		if len(inst.InputFieldMapping) == 0 {
			return fmt.Errorf("instance %d (%s): input field mapping is empty", i, inst.Reservoir.Name)
		}
		for _, idx := range inst.InputFieldMapping {
			if idx < 0 || idx >= s.InputFieldCount {
				return fmt.Errorf("instance %d (%s): input field index %d out of range [0, %d)", i, inst.Reservoir.Name, idx, s.InputFieldCount)
			}
		}
		if len(inst.FeedbackFieldMapping) > 0 && s.TaskType == readout.TaskClassification {
			return fmt.Errorf("%w: instance %d (%s) maps feedback on a classification network", ErrTaskTypeMismatch, i, inst.Reservoir.Name)
		}
		for _, idx := range inst.FeedbackFieldMapping {
			if idx < 0 || idx >= outputs {
				return fmt.Errorf("instance %d (%s): feedback field index %d out of range [0, %d)", i, inst.Reservoir.Name, idx, outputs)
			}
		}
	}
	return nil
}
