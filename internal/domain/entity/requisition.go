package entity

import (
	"time"

	"github.com/hotelops/requisition-approval/internal/domain/approval"
)

// Requisition is a store requisition raised by a department
type Requisition struct {
	ID            string     `json:"id"`
	Number        string     `json:"number"`
	Title         string     `json:"title"`
	Department    string     `json:"department"`
	StoreLocation string     `json:"store_location"`
	RequesterID   string     `json:"requester_id"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`

	// Loaded on demand
	Items []*RequisitionItem `json:"items,omitempty"`
	Steps []*ApprovalStep    `json:"steps,omitempty"`

	// TotalCents is filled by list queries
	TotalCents int64 `json:"total_cents"`
}

// IsEditable reports whether item statuses may still change
func (r *Requisition) IsEditable() bool {
	return r.Status == StatusInApproval
}

// CurrentStep returns the step marked current, if loaded
func (r *Requisition) CurrentStep() *ApprovalStep {
	for _, s := range r.Steps {
		if s.IsCurrent {
			return s
		}
	}
	return nil
}

// RequisitionItem is one product line on a requisition
type RequisitionItem struct {
	ID            string                      `json:"id"`
	RequisitionID string                      `json:"requisition_id"`
	SKU           string                      `json:"sku"`
	Name          string                      `json:"name"`
	Category      string                      `json:"category"`
	Unit          string                      `json:"unit"`
	Quantity      float64                     `json:"quantity"`
	UnitCostCents int64                       `json:"unit_cost_cents"`
	Status        approval.ItemApprovalStatus `json:"status"`
	ReviewNote    string                      `json:"review_note,omitempty"`
	ReviewedBy    string                      `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time                  `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// ApprovalStatus implements approval.StatusCarrier
func (i *RequisitionItem) ApprovalStatus() approval.ItemApprovalStatus {
	return i.Status
}

// LineTotalCents returns quantity times unit cost, rounded to the cent
func (i *RequisitionItem) LineTotalCents() int64 {
	return int64(i.Quantity*float64(i.UnitCostCents) + 0.5)
}

// ApprovalStep is one sign-off stage in a requisition's approval chain
type ApprovalStep struct {
	ID             string                 `json:"id"`
	RequisitionID  string                 `json:"requisition_id"`
	Sequence       int                    `json:"sequence"`
	Name           string                 `json:"name"`
	Stage          approval.WorkflowStage `json:"stage"`
	RequiredRole   string                 `json:"required_role"`
	AssigneeUserID string                 `json:"assignee_user_id,omitempty"`
	IsRequired     bool                   `json:"is_required"`
	Status         string                 `json:"status"`
	IsCurrent      bool                   `json:"is_current"`
	ActedBy        string                 `json:"acted_by,omitempty"`
	Comments       string                 `json:"comments,omitempty"`
	ActedAt        *time.Time             `json:"acted_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// IsPending reports whether the step still awaits a decision
func (s *ApprovalStep) IsPending() bool {
	return s.Status == StepStatusPending
}

// ApprovalHistory is the audit trail of a requisition
type ApprovalHistory struct {
	ID             int64     `json:"id"`
	RequisitionID  string    `json:"requisition_id"`
	StepID         string    `json:"step_id,omitempty"`
	ItemID         string    `json:"item_id,omitempty"`
	ActorID        string    `json:"actor_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActionType     string    `json:"action_type"`
	Comments       string    `json:"comments,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// CategoryTotal aggregates the lines of one category
type CategoryTotal struct {
	Category   string                     `json:"category"`
	Lines      int                        `json:"lines"`
	Quantity   float64                    `json:"quantity"`
	TotalCents int64                      `json:"total_cents"`
	Summary    approval.ItemStatusSummary `json:"summary"`
}
