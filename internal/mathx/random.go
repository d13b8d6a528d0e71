package mathx

import (
	"math/rand"
	"time"
)

// NewRand returns a generator seeded with seed, or a time-seeded generator
// when seed is negative.
func NewRand(seed int64) *rand.Rand {
	if seed < 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(seed))
}

// EnsureRand falls back to a time-seeded generator when rng is nil.
func EnsureRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return NewRand(-1)
}

// Uniform draws a value uniformly from [min, max).
func Uniform(rng *rand.Rand, min, max float64) float64 {
	return min + rng.Float64()*(max-min)
}

// ShuffledIndices returns a random permutation of [0, n).
func ShuffledIndices(rng *rand.Rand, n int) []int {
	return rng.Perm(n)
}

func ShuffleFloats(rng *rand.Rand, values []float64) {
	rng.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})
}
