package flags

import (
	"context"
	"errors"

	"github.com/rafaeljc/slipup/internal/validation"
)

var (
	errNotInitialized = errors.New("resolver not initialized")
	errLoading        = errors.New("resolver initialization in progress")
)

// HealthChecker reports the resolver as ready once Initialize has completed.
// Degraded counts as healthy: defaults are a valid serving mode.
type HealthChecker struct {
	resolver *Resolver
}

// NewHealthChecker creates a health checker for r.
func NewHealthChecker(r *Resolver) *HealthChecker {
	validation.AssertNotNil(r, "flag resolver")
	return &HealthChecker{resolver: r}
}

// Name returns the component name.
func (h *HealthChecker) Name() string {
	return "flag_resolver"
}

// Check maps the lifecycle state to an error.
func (h *HealthChecker) Check(_ context.Context) error {
	switch h.resolver.State() {
	case StateReady, StateDegraded:
		return nil
	case StateLoading:
		return errLoading
	case StateDestroyed:
		return ErrDestroyed
	default:
		return errNotInitialized
	}
}
