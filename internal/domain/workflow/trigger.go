package workflow

// Trigger is an event that moves a requisition between states
type Trigger string

const (
	TriggerSubmit         Trigger = "SUBMIT"
	TriggerRoute          Trigger = "ROUTE"
	TriggerApprove        Trigger = "APPROVE"
	TriggerApprovePartial Trigger = "APPROVE_PARTIAL"
	TriggerIssue          Trigger = "ISSUE"
	TriggerReject         Trigger = "REJECT"
	TriggerSendBack       Trigger = "SEND_BACK"
	TriggerResubmit       Trigger = "RESUBMIT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
