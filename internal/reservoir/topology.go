package reservoir

import (
	"math"
	"math/rand"

	"esnkit/internal/mathx"
)

// Connection is one internal edge.
type Connection struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Weight float64 `json:"weight"`
}

type edge struct {
	source int
	weight float64
}

// adjacency holds the incoming edges of every target neuron.
type adjacency struct {
	incoming [][]edge
	scale    float64
	rng      *rand.Rand
}

func newAdjacency(size int, scale float64, rng *rand.Rand) *adjacency {
	return &adjacency{incoming: make([][]edge, size), scale: scale, rng: rng}
}

func (a *adjacency) size() int { return len(a.incoming) }

func (a *adjacency) has(target, source int) bool {
	for _, e := range a.incoming[target] {
		if e.source == source {
			return true
		}
	}
	return false
}

// add appends source->target with a fresh random weight. With check set it
// refuses duplicates.
func (a *adjacency) add(target, source int, check bool) bool {
	if check && a.has(target, source) {
		return false
	}
	a.incoming[target] = append(a.incoming[target], edge{source: source, weight: randomWeight(a.rng, a.scale)})
	return true
}

// addFlat adds a connection encoded as target*size+source.
func (a *adjacency) addFlat(id int, check bool) bool {
	n := a.size()
	return a.add(id/n, id%n, check)
}

func (a *adjacency) ring(bidirectional, check bool) {
	n := a.size()
	for i := 0; i < n; i++ {
		prev := i - 1
		if i == 0 {
			prev = n - 1
		}
		a.add(i, prev, check)
		if bidirectional {
			next := i + 1
			if i == n-1 {
				next = 0
			}
			a.add(i, next, check)
		}
	}
}

func (a *adjacency) selfConnections(density float64, check bool) {
	n := a.size()
	count := int(math.Round(float64(n) * density))
	indices := mathx.ShuffledIndices(a.rng, n)
	for i := 0; i < count; i++ {
		a.add(indices[i], indices[i], check)
	}
}

func (a *adjacency) interConnections(density float64, check bool) {
	n := a.size()
	count := int(math.Round(float64((n-1)*n) * density))
	candidates := make([]int, 0, (n-1)*n)
	for target := 0; target < n; target++ {
		for source := 0; source < n; source++ {
			if target != source {
				candidates = append(candidates, target*n+source)
			}
		}
	}
	a.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for i := 0; i < count; i++ {
		a.addFlat(candidates[i], check)
	}
}

func (a *adjacency) setupRandom(density float64) {
	n := a.size()
	count := int(math.Round(float64(n*n) * density))
	candidates := mathx.ShuffledIndices(a.rng, n*n)
	for i := 0; i < count; i++ {
		a.addFlat(candidates[i], false)
	}
}

func (a *adjacency) setupRing(bidirectional bool, selfDensity, interDensity float64) {
	a.ring(bidirectional, false)
	a.selfConnections(selfDensity, false)
	a.interConnections(interDensity, true)
}

// setupDTT builds the doubly twisted torus: a one-way ring, a vertical twist
// of floor(sqrt(n)) wrapping inside its row, and random self loops.
func (a *adjacency) setupDTT(selfDensity float64) {
	a.ring(false, false)
	n := a.size()
	step := int(math.Floor(math.Sqrt(float64(n))))
	for source := 0; source < n; source++ {
		target := source + step
		if target > n-1 {
			left := source % step
			if left == 0 {
				target = step - 1
			} else {
				target = left - 1
			}
		}
		a.add(target, source, false)
	}
	a.selfConnections(selfDensity, false)
}

func (a *adjacency) connections() []Connection {
	var out []Connection
	for target, edges := range a.incoming {
		for _, e := range edges {
			out = append(out, Connection{Source: e.source, Target: target, Weight: e.weight})
		}
	}
	return out
}

func randomWeight(rng *rand.Rand, scale float64) float64 {
	return mathx.Uniform(rng, -1, 1) * scale
}
