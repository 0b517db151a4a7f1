package approval

import "fmt"

// LabelFormatter supplies the user-facing text for each action the engine
// can produce. Eligibility never depends on the formatter.
type LabelFormatter interface {
	Waiting(pending int) (label, description string)
	ApproveAll(total int, stage WorkflowStage) (label, description string)
	ApprovePartial(approved, excluded int, stage WorkflowStage) (label, description string)
	RejectAll(total int) (label, description string)
	RejectRemaining(total int) (label, description string)
	Return(review int) (label, description string)
}

// DefaultLabels is the wording used by the approval panel
var DefaultLabels LabelFormatter = defaultLabels{}

// CompactLabels is the shorter wording used on the requisition detail page
var CompactLabels LabelFormatter = compactLabels{}

// LabelsByName resolves a configured label style, falling back to DefaultLabels
func LabelsByName(name string) LabelFormatter {
	if name == "compact" {
		return CompactLabels
	}
	return DefaultLabels
}

func items(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}

func approveVerb(stage WorkflowStage) string {
	if stage == StageIssue {
		return "Issue"
	}
	return "Approve"
}

type defaultLabels struct{}

func (defaultLabels) Waiting(pending int) (string, string) {
	return fmt.Sprintf("Waiting: %s pending", items(pending)),
		"Every item must be reviewed before the requisition can be decided"
}

func (defaultLabels) ApproveAll(total int, stage WorkflowStage) (string, string) {
	if stage == StageIssue {
		return fmt.Sprintf("Issue All (%s)", items(total)), "Issue all items from store"
	}
	return fmt.Sprintf("Approve All (%s)", items(total)), "Approve all items and move to the next step"
}

func (defaultLabels) ApprovePartial(approved, excluded int, stage WorkflowStage) (string, string) {
	label := fmt.Sprintf("%s %d Items", approveVerb(stage), approved)
	if approved == 1 {
		label = fmt.Sprintf("%s 1 Item", approveVerb(stage))
	}
	return label, fmt.Sprintf("Proceed with approved items only, excluding %s rejected", items(excluded))
}

func (defaultLabels) RejectAll(total int) (string, string) {
	return "Reject Requisition", fmt.Sprintf("All %s were rejected; reject the entire requisition", items(total))
}

func (defaultLabels) RejectRemaining(total int) (string, string) {
	return "Reject All", "Reject the entire requisition"
}

func (defaultLabels) Return(review int) (string, string) {
	return fmt.Sprintf("Return (%s for review)", items(review)),
		"Send the requisition back to the requester for changes"
}

type compactLabels struct{}

func (compactLabels) Waiting(pending int) (string, string) {
	return fmt.Sprintf("%s pending", items(pending)), "Review all items first"
}

func (compactLabels) ApproveAll(total int, stage WorkflowStage) (string, string) {
	return approveVerb(stage), fmt.Sprintf("%s approved", items(total))
}

func (compactLabels) ApprovePartial(approved, excluded int, stage WorkflowStage) (string, string) {
	return fmt.Sprintf("%s %d Items", approveVerb(stage), approved), fmt.Sprintf("%d excluded", excluded)
}

func (compactLabels) RejectAll(total int) (string, string) {
	return "Reject", fmt.Sprintf("%s rejected", items(total))
}

func (compactLabels) RejectRemaining(total int) (string, string) {
	return "Reject All", ""
}

func (compactLabels) Return(review int) (string, string) {
	return "Return", fmt.Sprintf("%s flagged for review", items(review))
}
