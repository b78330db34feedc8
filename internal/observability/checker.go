package observability

import (
	"context"
	"fmt"
	"sync"
)

// Checker defines the contract for any component that needs to report its health status.
// Implementations must be thread-safe and non-blocking (respecting the context).
type Checker interface {
	// Name returns the unique identifier of the component (e.g., "flag_resolver", "redis").
	Name() string
	// Check performs the health verification. Returns nil if healthy, or an error if it fails.
	Check(ctx context.Context) error
}

// CheckResult is the outcome of one Checker.
type CheckResult struct {
	Name string
	Err  error
}

// Status renders the result the way the readiness body shows it.
func (r CheckResult) Status() string {
	if r.Err != nil {
		return fmt.Sprintf("down: %v", r.Err)
	}
	return "up"
}

// RunChecks executes all checkers in parallel, bounded by ctx.
// Results keep the order of checkers.
func RunChecks(ctx context.Context, checkers []Checker) []CheckResult {
	results := make([]CheckResult, len(checkers))

	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = CheckResult{Name: c.Name(), Err: c.Check(ctx)}
		}()
	}
	wg.Wait()

	return results
}
