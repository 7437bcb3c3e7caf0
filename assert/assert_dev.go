//go:build !release

// Package assert guards internal invariants. A failed check is a bug in this module, never bad
// input, so it panics with a Violation in development builds. Release builds compile the checks
// away.
package assert

import "fmt"

// That panics with a Violation carrying the formatted message when cond is false.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic(Violation{Message: fmt.Sprintf(format, args...)})
	}
}
