package hnsw

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleLevel(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("never negative", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			assert.GreaterOrEqual(t, sampleLevel(rng, 16), 0)
		}
	})

	t.Run("distribution skews toward layer 0", func(t *testing.T) {
		var zeros int
		const n = 5000
		for i := 0; i < n; i++ {
			if sampleLevel(rng, 16) == 0 {
				zeros++
			}
		}
		// With m=16, P(level==0) = 1 - 1/16 = 0.9375; allow slack.
		assert.Greater(t, zeros, n*8/10)
	})

	t.Run("m below 2 is clamped", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			assert.GreaterOrEqual(t, sampleLevel(rng, 0), 0)
		}
	})
}
