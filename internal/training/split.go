package training

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Split shuffles the indices 0..n-1 with a seeded generator and divides them
// into a training and a held-out part. The test part has ceil(n*testRatio)
// items. Callers index texts, encodings and labels through the same slices so
// that they always move together.
func Split(n int, testRatio float64, seed uint64) (train, test []int, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in (0, 1), got %g", testRatio)
	}

	testSize := int(math.Ceil(float64(n) * testRatio))
	if n-testSize < 1 || testSize < 1 {
		return nil, nil, fmt.Errorf("cannot split %d examples with test ratio %g", n, testRatio)
	}

	perm := newRand(seed).Perm(n)
	return perm[testSize:], perm[:testSize], nil
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}
