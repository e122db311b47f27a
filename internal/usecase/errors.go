package usecase

import "errors"

// Error kinds the handlers map to HTTP statuses with errors.Is. Services
// wrap them with fmt.Errorf("...: %w", ...) to add detail.
var (
	// ErrValidation rejects malformed amounts, dates or parties before
	// any state change.
	ErrValidation = errors.New("validation failed")

	// ErrConflict rejects a transition from a state that no longer
	// permits it; the record is left unchanged.
	ErrConflict = errors.New("state conflict")

	ErrNotFound = errors.New("not found")

	// ErrProvider marks a failed gateway call. The payment keeps its
	// prior state; the sweep retries up to the attempt budget.
	ErrProvider = errors.New("provider call failed")

	// ErrConfiguration marks missing fee-tier or category data. Fatal
	// for that booking's pricing, never silently defaulted.
	ErrConfiguration = errors.New("configuration missing")

	// ErrReleaseBlocked means a release was skipped because a dispute
	// blocks its subject or an ordering guard is not yet satisfied.
	// Sweeps treat it as "retry next cycle", not as a failure.
	ErrReleaseBlocked = errors.New("release blocked")
)
