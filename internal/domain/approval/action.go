package approval

// ActionType identifies what a document-level action does
type ActionType string

const (
	ActionWaiting  ActionType = "waiting"
	ActionApprove  ActionType = "approve"
	ActionReject   ActionType = "reject"
	ActionSendBack ActionType = "sendback"
)

// String returns the string representation of the action type
func (t ActionType) String() string {
	return string(t)
}

// IsValid returns true if the action type is known
func (t ActionType) IsValid() bool {
	switch t {
	case ActionWaiting, ActionApprove, ActionReject, ActionSendBack:
		return true
	}
	return false
}

// needsComments reports whether actions of this type must carry reviewer comments
func (t ActionType) needsComments() bool {
	return t == ActionReject || t == ActionSendBack
}

// WorkflowStage is the pipeline position of the current approval step.
// Only StageIssue changes what the approve action is called.
type WorkflowStage string

const (
	StageReview   WorkflowStage = "review"
	StageApproval WorkflowStage = "approval"
	StageIssue    WorkflowStage = "issue"
)

// IsValid returns true if the stage is known
func (s WorkflowStage) IsValid() bool {
	switch s {
	case StageReview, StageApproval, StageIssue:
		return true
	}
	return false
}

// ApprovalAction is one action the current approver may take on a requisition.
// Actions are computed from the current summary and never persisted.
type ApprovalAction struct {
	Type             ActionType `json:"type"`
	Label            string     `json:"label"`
	Description      string     `json:"description"`
	RequiresComments bool       `json:"requires_comments"`
	Disabled         bool       `json:"disabled"`

	// Partial is set on an approve action that leaves rejected items out.
	Partial       bool `json:"partial,omitempty"`
	ExcludedItems int  `json:"excluded_items,omitempty"`
}

func newAction(t ActionType, label, description string) ApprovalAction {
	return ApprovalAction{
		Type:             t,
		Label:            label,
		Description:      description,
		RequiresComments: t.needsComments(),
	}
}
