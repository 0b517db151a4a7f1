package entity

// Status constants for Requisition
const (
	StatusDraft             = "DRAFT"
	StatusSubmitted         = "SUBMITTED"
	StatusInApproval        = "IN_APPROVAL"
	StatusReturned          = "RETURNED"
	StatusApproved          = "APPROVED"
	StatusPartiallyApproved = "PARTIALLY_APPROVED"
	StatusRejected          = "REJECTED"
	StatusIssued            = "ISSUED"
)

// Approval step status constants
const (
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
	StepStatusReturned = "returned"
	StepStatusSkipped  = "skipped"
)

// History action types
const (
	ActionCreate     = "CREATE"
	ActionSubmit     = "SUBMIT"
	ActionItemReview = "ITEM_REVIEW"
	ActionApprove    = "APPROVE"
	ActionReject     = "REJECT"
	ActionSendBack   = "SEND_BACK"
	ActionAdvance    = "ADVANCE"
)

// Item categories used by hotel stores
const (
	CategoryFood         = "FOOD"
	CategoryBeverage     = "BEVERAGE"
	CategoryHousekeeping = "HOUSEKEEPING"
	CategoryEngineering  = "ENGINEERING"
	CategoryStationery   = "STATIONERY"
	CategoryOther        = "OTHER"
)
