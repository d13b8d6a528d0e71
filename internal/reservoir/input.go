package reservoir

import (
	"fmt"
	"math"
	"math/rand"

	"esnkit/internal/mathx"
)

type inputConnection struct {
	field  int
	weight float64
}

// InputBlock spreads external input fields over randomly chosen neurons.
type InputBlock struct {
	values      []float64
	biases      []float64
	connections [][]inputConnection
}

// NeuronsPerInput is the fan-out of every input field.
func NeuronsPerInput(size int, density float64) int {
	n := int(math.Round(float64(size) * density))
	if n < 1 {
		n = 1
	}
	if n > size {
		n = size
	}
	return n
}

func NewInputBlock(inputCount, neuronCount int, biasScale, weightScale float64, neuronsPerInput int, rng *rand.Rand) *InputBlock {
	b := &InputBlock{
		values:      make([]float64, inputCount),
		biases:      make([]float64, neuronCount),
		connections: make([][]inputConnection, neuronCount),
	}
	for i := range b.biases {
		b.biases[i] = randomWeight(rng, biasScale)
	}
	for field := 0; field < inputCount; field++ {
		indices := mathx.ShuffledIndices(rng, neuronCount)
		for i := 0; i < neuronsPerInput && i < neuronCount; i++ {
			b.connections[indices[i]] = append(b.connections[indices[i]], inputConnection{
				field:  field,
				weight: randomWeight(rng, weightScale),
			})
		}
	}
	return b
}

func (b *InputBlock) InputCount() int { return len(b.values) }

// Update overwrites the stored input vector.
func (b *InputBlock) Update(values []float64) error {
	if len(values) != len(b.values) {
		return fmt.Errorf("input length mismatch: got=%d want=%d", len(values), len(b.values))
	}
	copy(b.values, values)
	return nil
}

// Signal is the bias plus weighted inputs of a neuron, or 0 for neurons
// without input connections.
func (b *InputBlock) Signal(neuron int) float64 {
	conns := b.connections[neuron]
	if len(conns) == 0 {
		return 0
	}
	signal := b.biases[neuron]
	for _, c := range conns {
		signal += b.values[c.field] * c.weight
	}
	return signal
}

// Connections returns the number of input connections of a neuron.
func (b *InputBlock) Connections(neuron int) int {
	return len(b.connections[neuron])
}
