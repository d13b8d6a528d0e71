package reservoir

import (
	"errors"
	"fmt"
)

type Topology string

const (
	TopologyRandom Topology = "random"
	TopologyRing   Topology = "ring"
	TopologyDTT    Topology = "dtt"
)

// ParseTopology maps a configuration name onto a Topology.
func ParseTopology(name string) (Topology, error) {
	switch Topology(name) {
	case TopologyRandom, TopologyRing, TopologyDTT:
		return Topology(name), nil
	case "":
		return TopologyRandom, nil
	default:
		return "", fmt.Errorf("unsupported topology: %s", name)
	}
}

// Settings is the construction-time configuration of one reservoir.
type Settings struct {
	Name       string   `json:"name"`
	Size       int      `json:"size"`
	Activation string   `json:"activation"`
	Topology   Topology `json:"topology"`

	// Random topology.
	Density float64 `json:"density"`
	// Ring and DTT topologies.
	SelfConnectionDensity  float64 `json:"self_connection_density"`
	InterConnectionDensity float64 `json:"inter_connection_density"`
	Bidirectional          bool    `json:"bidirectional"`

	InputConnectionDensity float64 `json:"input_connection_density"`
	InputWeightScale       float64 `json:"input_weight_scale"`
	BiasScale              float64 `json:"bias_scale"`
	InternalWeightScale    float64 `json:"internal_weight_scale"`

	ContextFeedbackDensity float64 `json:"context_feedback_density"`
	ContextActivation      string  `json:"context_activation"`
	ContextInWeightScale   float64 `json:"context_in_weight_scale"`
	ContextOutWeightScale  float64 `json:"context_out_weight_scale"`

	FeedbackDensity     float64 `json:"feedback_density"`
	FeedbackWeightScale float64 `json:"feedback_weight_scale"`

	RetainmentDensity float64 `json:"retainment_density"`
	RetainmentMinRate float64 `json:"retainment_min_rate"`
	RetainmentMaxRate float64 `json:"retainment_max_rate"`

	AugmentedStates bool `json:"augmented_states"`

	// Workers bounds propagation parallelism; 0 uses GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
}

// DefaultSettings returns a small random tanh reservoir.
func DefaultSettings() Settings {
	return Settings{
		Name:                   "reservoir",
		Size:                   100,
		Activation:             "tanh",
		Topology:               TopologyRandom,
		Density:                0.1,
		SelfConnectionDensity:  0.1,
		InterConnectionDensity: 0.05,
		InputConnectionDensity: 0.5,
		InputWeightScale:       1,
		BiasScale:              0.1,
		InternalWeightScale:    0.2,
		ContextActivation:      "tanh",
		ContextInWeightScale:   0.1,
		ContextOutWeightScale:  0.1,
		FeedbackWeightScale:    0.1,
	}
}

func (s Settings) Validate() error {
	if s.Size <= 0 {
		return errors.New("reservoir size must be > 0")
	}
	if _, err := ParseTopology(string(s.Topology)); err != nil {
		return err
	}
	densities := map[string]float64{
		"density":                  s.Density,
		"self_connection_density":  s.SelfConnectionDensity,
		"inter_connection_density": s.InterConnectionDensity,
		"input_connection_density": s.InputConnectionDensity,
		"context_feedback_density": s.ContextFeedbackDensity,
		"feedback_density":         s.FeedbackDensity,
		"retainment_density":       s.RetainmentDensity,
	}
	for name, value := range densities {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be in [0, 1]: %f", name, value)
		}
	}
	if s.RetainmentMinRate < 0 || s.RetainmentMaxRate > MaxRetainmentRate || s.RetainmentMinRate > s.RetainmentMaxRate {
		return fmt.Errorf("retainment rates must satisfy 0 <= min <= max <= %.2f: min=%f max=%f", MaxRetainmentRate, s.RetainmentMinRate, s.RetainmentMaxRate)
	}
	return nil
}
