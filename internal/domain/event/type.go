package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequisitionSubmitted         Type = "requisition.submitted"
	TypeItemReviewed                 Type = "item.reviewed"
	TypeRequisitionApproved          Type = "requisition.approved"
	TypeRequisitionPartiallyApproved Type = "requisition.partially_approved"
	TypeRequisitionRejected          Type = "requisition.rejected"
	TypeRequisitionReturned          Type = "requisition.returned"
	TypeRequisitionIssued            Type = "requisition.issued"
	TypeStepAdvanced                 Type = "step.advanced"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequisitionSubmitted,
		TypeItemReviewed,
		TypeRequisitionApproved,
		TypeRequisitionPartiallyApproved,
		TypeRequisitionRejected,
		TypeRequisitionReturned,
		TypeRequisitionIssued,
		TypeStepAdvanced:
		return true
	default:
		return false
	}
}

// IsDecision reports whether the event closes a requisition's approval round
func (t Type) IsDecision() bool {
	switch t {
	case TypeRequisitionApproved,
		TypeRequisitionPartiallyApproved,
		TypeRequisitionRejected,
		TypeRequisitionReturned,
		TypeRequisitionIssued:
		return true
	}
	return false
}
