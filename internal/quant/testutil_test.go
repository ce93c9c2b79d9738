package quant

import "math/rand"

// newTestRand returns a seeded generator so codec tests are deterministic.
func newTestRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
