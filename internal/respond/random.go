package respond

import "math/rand/v2"

// RandomSource picks an index in [0, n). *rand.Rand from math/rand/v2 satisfies it,
// so tests can inject a seeded generator.
type RandomSource interface {
	IntN(n int) int
}

// globalSource draws from the math/rand/v2 top-level generator, which is safe for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultRandomSource returns the process-wide random source.
func DefaultRandomSource() RandomSource {
	return globalSource{}
}

// FixedSource always returns the same index, clamped to the pool size.
type FixedSource int

// IntN implements RandomSource.
func (f FixedSource) IntN(n int) int {
	if int(f) >= n {
		return n - 1
	}
	if f < 0 {
		return 0
	}
	return int(f)
}
