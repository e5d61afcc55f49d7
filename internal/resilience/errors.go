// internal/resilience/errors.go
package resilience

import "errors"

// Error taxonomy for provider calls. Provider-local errors are contained by
// the orchestrator and never abort a job; only persistence and job-state
// errors are allowed to.
var (
	// ErrRateLimited means the token bucket for a provider is empty and the
	// bounded wait (if any) elapsed. Retryable after backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrBudgetExceeded means the call would push the provider past its
	// daily or monthly spend ceiling. Not retryable within the period; the
	// provider is skipped for the remainder of the job.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrProviderUnavailable means the provider's circuit breaker is open.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrJobCancelled is the cooperative cancellation signal. It halts new
	// dispatch but lets in-flight calls drain.
	ErrJobCancelled = errors.New("job cancelled")
)

// Retryable reports whether a provider call error is worth retrying with
// backoff. Budget exhaustion and an open breaker are deterministic for the
// rest of the attempt window, and cancellation must stop dispatch entirely.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrBudgetExceeded),
		errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrJobCancelled):
		return false
	}
	return true
}
