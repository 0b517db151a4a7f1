package approval

import (
	"errors"
	"fmt"
)

var (
	// ErrCommentsRequired is matched by a ValidationError for a missing comment
	ErrCommentsRequired = errors.New("comments required")

	// ErrActionDisabled is returned when a disabled or waiting action is dispatched
	ErrActionDisabled = errors.New("action is disabled")

	// ErrSubmissionInProgress is returned while another decision on the same requisition is in flight
	ErrSubmissionInProgress = errors.New("a decision is already being submitted for this requisition")

	// ErrUnknownAction is returned for an action type with no effect
	ErrUnknownAction = errors.New("unknown action type")
)

// ValidationError is raised before any effect runs
type ValidationError struct {
	Field   string
	Message string
	cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// ActionFailure wraps an error returned by one of the approve/reject/send-back effects
type ActionFailure struct {
	Action ActionType
	StepID string
	Err    error
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("%s on step %s failed: %v", e.Action, e.StepID, e.Err)
}

func (e *ActionFailure) Unwrap() error {
	return e.Err
}
