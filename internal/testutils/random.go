// Package testutils holds helpers shared by the module's tests.
package testutils

import (
	"math/rand/v2"
	"os"
	"strconv"
	"testing"
	"time"
)

// Seed is the seed of every generator returned by NewRand. Set TEST_SEED to reproduce a run.
var Seed uint64 //nolint:gochecknoglobals // shared so a failing run can be replayed

func init() { //nolint:gochecknoinits // the seed has to be fixed before any test starts
	if envSeed := os.Getenv("TEST_SEED"); envSeed != "" {
		if parsed, err := strconv.ParseUint(envSeed, 10, 64); err == nil {
			Seed = parsed
			return
		}
	}
	Seed = uint64(time.Now().UnixNano()) //nolint:gosec // overflow is acceptable for test seeds
}

// NewRand returns a deterministic generator seeded with Seed and logs the seed on failure.
func NewRand(t *testing.T) *rand.Rand {
	t.Helper()
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("TEST_SEED=%d", Seed)
		}
	})
	return rand.New(rand.NewPCG(Seed, Seed)) //nolint:gosec // weak RNG is fine for tests
}

// RandMapKey returns a random key from a map. Panics if the map is empty.
func RandMapKey[K comparable, V any](r *rand.Rand, m map[K]V) K {
	idx := r.IntN(len(m))
	for k := range m {
		if idx == 0 {
			return k
		}
		idx--
	}
	panic("unreachable")
}
