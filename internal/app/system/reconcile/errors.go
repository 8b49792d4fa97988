package reconcile

import (
	"errors"
	"fmt"
)

// DuplicateMessage is the backend message that reports an assignment which
// already exists server-side.
const DuplicateMessage = "Product already assigned"

var (
	// ErrDuplicateAssignment is returned by an Assigner when the backend
	// already holds the assignment. The Reconciler treats it as success.
	ErrDuplicateAssignment = errors.New("product already assigned")

	// ErrAttemptInFlight is returned when an assign attempt is started while
	// another one for the same product context is still pending, or when a
	// pending record is unassigned.
	ErrAttemptInFlight = errors.New("an assign attempt is already in progress")

	// ErrSuperseded is returned by Open when a later Open switched the
	// context before this one finished loading.
	ErrSuperseded = errors.New("product context superseded by a later open")
)

// ValidationError reports a request rejected before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return e.Field + " is required"
}

// RemoteFailure reports an assign attempt the backend did not accept. The
// optimistic record has already been rolled back when this is returned.
type RemoteFailure struct {
	ProductID  string
	CustomerID string
	Err        error
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("assign customer %s to product %s: %v", e.CustomerID, e.ProductID, e.Err)
}

func (e *RemoteFailure) Unwrap() error { return e.Err }
