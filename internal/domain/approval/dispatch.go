package approval

import (
	"context"
	"strings"
	"sync"
)

// Effects are the side-effecting collaborators behind a document-level decision
type Effects interface {
	Approve(ctx context.Context, stepID, comments string) error
	Reject(ctx context.Context, stepID, comments string) error
	SendBack(ctx context.Context, stepID, comments string) error
}

// CompletionChecker reports whether a requisition has no pending required steps left
type CompletionChecker interface {
	IsComplete(ctx context.Context, requisitionID string) (bool, error)
}

// Outcome describes a dispatched action
type Outcome struct {
	Action ActionType `json:"action"`
	StepID string     `json:"step_id"`

	// Completed is only meaningful for approve: no required steps remain.
	Completed bool `json:"completed"`
}

// Message returns the confirmation text for the outcome
func (o Outcome) Message() string {
	switch o.Action {
	case ActionApprove:
		if o.Completed {
			return "Requisition fully approved"
		}
		return "Approved; forwarded to the next approver"
	case ActionReject:
		return "Requisition rejected"
	case ActionSendBack:
		return "Requisition returned to requester"
	}
	return ""
}

// ActionDispatcher validates a chosen action and invokes exactly one effect.
// At most one call per requisition is in flight at a time.
type ActionDispatcher struct {
	effects    Effects
	completion CompletionChecker

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewActionDispatcher creates a dispatcher. completion may be nil, in which
// case approve outcomes never report Completed.
func NewActionDispatcher(effects Effects, completion CompletionChecker) *ActionDispatcher {
	return &ActionDispatcher{
		effects:    effects,
		completion: completion,
		inFlight:   make(map[string]struct{}),
	}
}

// ValidateComments checks the comment rule for an action without running it
func ValidateComments(action ApprovalAction, comments string) error {
	if action.RequiresComments && strings.TrimSpace(comments) == "" {
		return &ValidationError{Field: "comments", Message: "comments required", cause: ErrCommentsRequired}
	}
	return nil
}

// Dispatch runs the effect for action on stepID
func (d *ActionDispatcher) Dispatch(ctx context.Context, requisitionID, stepID string, action ApprovalAction, comments string) (Outcome, error) {
	if action.Disabled || action.Type == ActionWaiting {
		return Outcome{}, ErrActionDisabled
	}
	if err := ValidateComments(action, comments); err != nil {
		return Outcome{}, err
	}

	if !d.acquire(requisitionID) {
		return Outcome{}, ErrSubmissionInProgress
	}
	defer d.release(requisitionID)

	comments = strings.TrimSpace(comments)

	var err error
	switch action.Type {
	case ActionApprove:
		err = d.effects.Approve(ctx, stepID, comments)
	case ActionReject:
		err = d.effects.Reject(ctx, stepID, comments)
	case ActionSendBack:
		err = d.effects.SendBack(ctx, stepID, comments)
	default:
		return Outcome{}, ErrUnknownAction
	}
	if err != nil {
		return Outcome{}, &ActionFailure{Action: action.Type, StepID: stepID, Err: err}
	}

	outcome := Outcome{Action: action.Type, StepID: stepID}
	if action.Type == ActionApprove && d.completion != nil {
		// Only picks the confirmation wording; the approval already happened.
		if done, cerr := d.completion.IsComplete(ctx, requisitionID); cerr == nil {
			outcome.Completed = done
		}
	}
	return outcome, nil
}

// Submitting reports whether a decision for the requisition is in flight
func (d *ActionDispatcher) Submitting(requisitionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[requisitionID]
	return ok
}

func (d *ActionDispatcher) acquire(requisitionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[requisitionID]; busy {
		return false
	}
	d.inFlight[requisitionID] = struct{}{}
	return true
}

func (d *ActionDispatcher) release(requisitionID string) {
	d.mu.Lock()
	delete(d.inFlight, requisitionID)
	d.mu.Unlock()
}
