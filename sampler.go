package hnsw

import (
	"math"
	"math/rand"
)

// sampleLevel draws a node's top level from the HNSW geometric
// distribution: with lambda = 1/ln(m), repeatedly draw u in [0,1) and
// increment the level while u stays below e^(-1/lambda) (= 1/m). This is
// the reverse-exponential generator every HNSW implementation uses to keep
// upper layers exponentially sparser than the base layer.
func sampleLevel(rng *rand.Rand, m int) int {
	if m < 2 {
		m = 2
	}

	lambda := 1 / math.Log(float64(m))
	thresh := math.Exp(-1 / lambda)

	level := 0
	for rng.Float64() < thresh {
		level++
	}
	return level
}
