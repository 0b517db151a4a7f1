package workflow

import "context"

// Facts are the conditions the requisition guards look at when a step is approved
type Facts struct {
	// StepsRemaining is true when required steps follow the one just approved.
	StepsRemaining bool
}

type factsKey struct{}

// WithFacts attaches transition facts to ctx
func WithFacts(ctx context.Context, f Facts) context.Context {
	return context.WithValue(ctx, factsKey{}, f)
}

func factsFrom(ctx context.Context) Facts {
	f, _ := ctx.Value(factsKey{}).(Facts)
	return f
}

func stepsRemaining(ctx context.Context) bool {
	return factsFrom(ctx).StepsRemaining
}

func lastStep(ctx context.Context) bool {
	return !factsFrom(ctx).StepsRemaining
}

// NewRequisitionBuilder returns a builder configured with the requisition lifecycle:
//
//	DRAFT -> SUBMITTED -> IN_APPROVAL -> APPROVED | PARTIALLY_APPROVED | ISSUED
//	                          |-> REJECTED
//	                          |-> RETURNED -> SUBMITTED
func NewRequisitionBuilder() *Builder {
	b := NewBuilder()

	b.Configure(StateDraft).
		Permit(TriggerSubmit, StateSubmitted)

	b.Configure(StateSubmitted).
		Permit(TriggerRoute, StateInApproval)

	b.Configure(StateInApproval).
		PermitIf(TriggerApprove, StateInApproval, stepsRemaining).
		PermitIf(TriggerApprove, StateApproved, lastStep).
		PermitIf(TriggerApprovePartial, StateInApproval, stepsRemaining).
		PermitIf(TriggerApprovePartial, StatePartiallyApproved, lastStep).
		PermitIf(TriggerIssue, StateInApproval, stepsRemaining).
		PermitIf(TriggerIssue, StateIssued, lastStep).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerSendBack, StateReturned)

	b.Configure(StateReturned).
		Permit(TriggerResubmit, StateSubmitted)

	b.Configure(StateApproved).
		Permit(TriggerIssue, StateIssued)

	b.Configure(StatePartiallyApproved).
		Permit(TriggerIssue, StateIssued)

	return b
}

var requisitionBuilder = NewRequisitionBuilder()

// NewRequisitionMachine builds a lifecycle machine positioned at status
func NewRequisitionMachine(status State) StateMachine {
	return requisitionBuilder.Build(status)
}
