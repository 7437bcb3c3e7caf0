//go:build !release

package assert_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pkg.world.dev/world-engine/inspector/assert"
)

func TestThat(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() { assert.That(true, "never") })
	require.PanicsWithValue(t, assert.Violation{Message: "row 3 out of range"}, func() {
		assert.That(false, "row %d out of range", 3)
	})
	require.EqualError(t, assert.Violation{Message: "x"}, "invariant violated: x")
}
