package reservoir

import (
	"esnkit/internal/activation"
	"esnkit/internal/mathx"
)

const MaxRetainmentRate = 0.99

// Neuron is a leaky-integrating unit around an activation.
type Neuron struct {
	activation     activation.Activation
	retainmentRate float64
	previousState  float64
	currentState   float64
	stats          mathx.BasicStat
}

func NewNeuron(act activation.Activation, retainmentRate float64) *Neuron {
	if retainmentRate < 0 {
		retainmentRate = 0
	} else if retainmentRate > MaxRetainmentRate {
		retainmentRate = MaxRetainmentRate
	}
	return &Neuron{activation: act, retainmentRate: retainmentRate}
}

func (n *Neuron) RetainmentRate() float64 { return n.retainmentRate }
func (n *Neuron) PreviousState() float64 { return n.previousState }
func (n *Neuron) CurrentState() float64 { return n.currentState }

// Stats returns a snapshot of the collected output statistics.
func (n *Neuron) Stats() mathx.StatSnapshot { return n.stats.Snapshot() }

func (n *Neuron) Reset(resetStatistics bool) {
	n.previousState = 0
	n.currentState = 0
	activation.Reset(n.activation)
	if resetStatistics {
		n.stats.Reset()
	}
}

// Compute blends the activated signal into the current state.
func (n *Neuron) Compute(signal float64, collectStatistics bool) {
	n.currentState = n.retainmentRate*n.currentState + (1-n.retainmentRate)*n.activation.Compute(signal)
	if collectStatistics {
		n.stats.Add(n.currentState)
	}
}

// StoreCurrentState snapshots the current state as the previous one.
func (n *Neuron) StoreCurrentState() {
	n.previousState = n.currentState
}
