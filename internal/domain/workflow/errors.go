package workflow

import "errors"

var (
	// ErrIllegalTransition is returned when the requested edge is absent
	// from the record kind's transition table
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrUnauthorized is returned when the actor's role or ownership fails
	// the edge's allow predicate
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingRequiredField is returned when a side field required by the
	// target status is absent or empty
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrAlreadyInState is returned when the record already holds the
	// requested status. Callers should treat it as a no-op success so
	// retries stay safe.
	ErrAlreadyInState = errors.New("already in target state")

	// ErrStaleState is returned when the record's status changed between
	// validation and commit (concurrent modification)
	ErrStaleState = errors.New("state changed, please refresh")

	// ErrNotReversible is returned when an undo is attempted past the grace
	// window or against a non-reversible event
	ErrNotReversible = errors.New("not reversible")

	// ErrStorageFailure wraps persistence layer errors
	ErrStorageFailure = errors.New("storage failure")

	// ErrNotFound is returned when the record or event does not exist
	ErrNotFound = errors.New("not found")
)

// Retryable reports whether the caller may safely retry the same request.
// Only transient failures qualify; authorization and table lookups never do.
func Retryable(err error) bool {
	return errors.Is(err, ErrStaleState) || errors.Is(err, ErrStorageFailure)
}

// ErrorKind maps an error to its taxonomy name for API responses
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrMissingRequiredField):
		return "missing_required_field"
	case errors.Is(err, ErrAlreadyInState):
		return "already_in_state"
	case errors.Is(err, ErrStaleState):
		return "stale_state"
	case errors.Is(err, ErrNotReversible):
		return "not_reversible"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorageFailure):
		return "storage_failure"
	default:
		return "internal"
	}
}
