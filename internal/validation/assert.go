// Package validation holds contract checks shared by constructors and API boundaries.
package validation

import "fmt"

// AssertNotNil panics if ptr is nil. Use it only for mandatory dependencies
// handed to constructors, where a nil is a wiring bug rather than a runtime condition.
//
//	validation.AssertNotNil(resolver, "flag resolver")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}
