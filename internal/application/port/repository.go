package port

import (
	"context"
	"errors"
	"time"

	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
)

// ErrNotFound is returned by repositories when a row does not exist
var ErrNotFound = errors.New("not found")

// Sort keys accepted by RequisitionRepository.List
const (
	SortCreatedAt = "created_at"
	SortNumber    = "number"
	SortTotal     = "total"
)

// ListFilter narrows and orders requisition listings
type ListFilter struct {
	Status        string
	Department    string
	StoreLocation string
	Query         string // matches number or title
	SortBy        string
	Descending    bool
	Limit         int
	Offset        int
}

// RequisitionRepository defines persistence operations for Requisition
type RequisitionRepository interface {
	Create(ctx context.Context, req *entity.Requisition) error
	GetByID(ctx context.Context, id string) (*entity.Requisition, error)
	UpdateStatus(ctx context.Context, id string, status string) error
	SetDecidedAt(ctx context.Context, id string, t time.Time) error
	List(ctx context.Context, filter ListFilter) ([]*entity.Requisition, int, error)
}

// ItemRepository defines persistence operations for RequisitionItem
type ItemRepository interface {
	Create(ctx context.Context, item *entity.RequisitionItem) error
	GetByID(ctx context.Context, id string) (*entity.RequisitionItem, error)
	GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.RequisitionItem, error)
	UpdateStatus(ctx context.Context, id string, status approval.ItemApprovalStatus, note, reviewer string) error

	// ResetStatus moves every item of a requisition from one status to another
	ResetStatus(ctx context.Context, requisitionID string, from, to approval.ItemApprovalStatus) (int, error)
}

// StepRepository defines persistence operations for ApprovalStep
type StepRepository interface {
	Create(ctx context.Context, step *entity.ApprovalStep) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalStep, error)
	GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.ApprovalStep, error)
	GetCurrent(ctx context.Context, requisitionID string) (*entity.ApprovalStep, error)
	Complete(ctx context.Context, id string, status, actedBy, comments string) error
	SetCurrent(ctx context.Context, requisitionID, stepID string) error
	ClearCurrent(ctx context.Context, requisitionID string) error

	// ResetAll puts every step back to pending, used when a returned requisition is resubmitted
	ResetAll(ctx context.Context, requisitionID string) error

	// ListStale returns current pending steps that were last touched before cutoff
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ApprovalStep, error)

	// Touch refreshes updated_at so a reminder is not repeated every poll
	Touch(ctx context.Context, id string) error
}

// HistoryRepository defines persistence operations for ApprovalHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.ApprovalHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
