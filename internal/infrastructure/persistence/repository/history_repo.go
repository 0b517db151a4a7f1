package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new approval history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit row
func (r *HistoryRepository) Create(ctx context.Context, h *entity.ApprovalHistory) error {
	if h.Timestamp.IsZero() {
		h.Timestamp = now()
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO approval_history (
			requisition_id, step_id, item_id, actor_id, previous_status,
			new_status, action_type, comments, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.RequisitionID, h.StepID, h.ItemID, h.ActorID, h.PreviousStatus,
		h.NewStatus, h.ActionType, h.Comments, h.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history", zap.String("requisition_id", h.RequisitionID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// GetByRequisitionID returns the audit trail oldest first
func (r *HistoryRepository) GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.ApprovalHistory, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, requisition_id, step_id, item_id, actor_id, previous_status,
			new_status, action_type, comments, timestamp
		FROM approval_history
		WHERE requisition_id = ?
		ORDER BY id ASC`,
		requisitionID)
	if err != nil {
		r.logger.Error("Failed to get history", zap.String("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	history := []*entity.ApprovalHistory{}
	for rows.Next() {
		var h entity.ApprovalHistory
		if err := rows.Scan(
			&h.ID,
			&h.RequisitionID,
			&h.StepID,
			&h.ItemID,
			&h.ActorID,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.ActionType,
			&h.Comments,
			&h.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
