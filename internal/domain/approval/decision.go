package approval

import "fmt"

// Decision is the result of evaluating a summary for the current approver
type Decision struct {
	Actions []ApprovalAction `json:"actions"`
	Blocked bool             `json:"blocked"`
	Reason  string           `json:"reason"`
}

const (
	reasonNotYourTurn = "waiting on another approver"
	reasonNoItems     = "requisition has no items"
	reasonAvailable   = "actions available"
	reasonNone        = "no actions available"
)

// Decide evaluates the item summary against the fixed priority table and
// returns the actions available to the current approver. It is pure: the
// caller supplies the authorization result and the label wording.
//
// Rules, first match wins:
//  1. pending > 0            -> one disabled waiting action
//  2. rejected == total      -> reject
//  3. approved == total      -> approve (or issue at the issue stage)
//  4. review > 0             -> send back
//  5. rejected>0, approved>0 -> partial approve and reject all
//  6. approved == 0          -> reject
//
// An empty requisition never yields actions.
func Decide(summary ItemStatusSummary, canUserAct bool, stage WorkflowStage, labels LabelFormatter) Decision {
	if labels == nil {
		labels = DefaultLabels
	}

	if !canUserAct {
		return finish(nil, reasonNotYourTurn)
	}
	if summary.Total == 0 {
		return finish(nil, reasonNoItems)
	}

	if summary.Pending > 0 {
		label, desc := labels.Waiting(summary.Pending)
		waiting := newAction(ActionWaiting, label, desc)
		waiting.Disabled = true
		return finish([]ApprovalAction{waiting}, fmt.Sprintf("%s pending review", items(summary.Pending)))
	}

	var actions []ApprovalAction
	switch {
	case summary.Rejected == summary.Total:
		label, desc := labels.RejectAll(summary.Total)
		actions = append(actions, newAction(ActionReject, label, desc))

	case summary.Approved == summary.Total:
		label, desc := labels.ApproveAll(summary.Total, stage)
		actions = append(actions, newAction(ActionApprove, label, desc))

	// Rejected items are settled by exclusion below; only review flags
	// send the whole document back to the requester.
	case summary.Review > 0:
		label, desc := labels.Return(summary.Review)
		actions = append(actions, newAction(ActionSendBack, label, desc))

	case summary.Rejected > 0 && summary.Approved > 0:
		label, desc := labels.ApprovePartial(summary.Approved, summary.Rejected, stage)
		partial := newAction(ActionApprove, label, desc)
		partial.Partial = true
		partial.ExcludedItems = summary.Rejected
		label, desc = labels.RejectRemaining(summary.Total)
		actions = append(actions, partial, newAction(ActionReject, label, desc))

	case summary.Approved == 0:
		label, desc := labels.RejectAll(summary.Total)
		actions = append(actions, newAction(ActionReject, label, desc))
	}

	if len(actions) == 0 {
		return finish(nil, reasonNone)
	}
	return finish(actions, reasonAvailable)
}

func finish(actions []ApprovalAction, reason string) Decision {
	if actions == nil {
		actions = []ApprovalAction{}
	}
	return Decision{
		Actions: actions,
		Blocked: len(actions) == 0 || (len(actions) == 1 && actions[0].Disabled),
		Reason:  reason,
	}
}

// Find returns the first enabled action of the given type
func (d Decision) Find(t ActionType) (ApprovalAction, bool) {
	for _, a := range d.Actions {
		if a.Type == t && !a.Disabled {
			return a, true
		}
	}
	return ApprovalAction{}, false
}
