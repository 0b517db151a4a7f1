package approval

// ItemApprovalStatus is the review outcome of a single requisition line
type ItemApprovalStatus string

const (
	ItemPending  ItemApprovalStatus = "pending"
	ItemApproved ItemApprovalStatus = "approved"
	ItemRejected ItemApprovalStatus = "rejected"
	ItemReview   ItemApprovalStatus = "review"
)

var validItemStatuses = map[ItemApprovalStatus]bool{
	ItemPending:  true,
	ItemApproved: true,
	ItemRejected: true,
	ItemReview:   true,
}

// IsValid returns true if the status is one of the known item statuses
func (s ItemApprovalStatus) IsValid() bool {
	return validItemStatuses[s]
}

// String returns the string representation of the status
func (s ItemApprovalStatus) String() string {
	return string(s)
}

// StatusCarrier is anything that carries an item approval status
type StatusCarrier interface {
	ApprovalStatus() ItemApprovalStatus
}

// ItemStatusSummary counts the line items of one requisition by status.
// It is a projection and is never stored.
type ItemStatusSummary struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Review   int `json:"review"`
}

// Summarize counts items by status. Unknown statuses count as pending so that
// an unreadable row keeps the document-level decision blocked.
func Summarize[T StatusCarrier](items []T) ItemStatusSummary {
	var s ItemStatusSummary
	for _, item := range items {
		s.Total++
		switch item.ApprovalStatus() {
		case ItemApproved:
			s.Approved++
		case ItemRejected:
			s.Rejected++
		case ItemReview:
			s.Review++
		default:
			s.Pending++
		}
	}
	return s
}

// SummarizeStatuses counts a plain list of statuses
func SummarizeStatuses(statuses ...ItemApprovalStatus) ItemStatusSummary {
	return Summarize(statuses)
}

// ApprovalStatus lets a bare status act as a StatusCarrier
func (s ItemApprovalStatus) ApprovalStatus() ItemApprovalStatus {
	return s
}

// Consistent reports whether the per-status counts add up to Total
func (s ItemStatusSummary) Consistent() bool {
	return s.Pending+s.Approved+s.Rejected+s.Review == s.Total
}

// Decided returns the number of items that are no longer pending
func (s ItemStatusSummary) Decided() int {
	return s.Total - s.Pending
}
