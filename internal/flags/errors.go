package flags

import "errors"

var (
	// ErrDestroyed is raised by any use of a Resolver after Destroy.
	ErrDestroyed = errors.New("flag resolver destroyed")

	// ErrCallbackFailure wraps errors and panics coming out of a usage callback.
	// It is only ever logged.
	ErrCallbackFailure = errors.New("usage callback failed")
)
