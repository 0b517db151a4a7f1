package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/infrastructure/persistence/sqlite"
)

// StepRepository implements port.StepRepository
type StepRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewStepRepository creates a new approval step repository
func NewStepRepository(db *sqlite.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

const stepColumns = `s.id, s.requisition_id, s.sequence, s.name, s.stage, s.required_role,
	s.assignee_user_id, s.is_required, s.status, s.is_current, s.acted_by, s.comments,
	s.acted_at, s.created_at, s.updated_at`

// Create inserts an approval step
func (r *StepRepository) Create(ctx context.Context, step *entity.ApprovalStep) error {
	ts := now()
	step.CreatedAt, step.UpdatedAt = ts, ts
	if step.Status == "" {
		step.Status = entity.StepStatusPending
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO approval_steps (
			id, requisition_id, sequence, name, stage, required_role, assignee_user_id,
			is_required, status, is_current, acted_by, comments, acted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.RequisitionID, step.Sequence, step.Name, string(step.Stage), step.RequiredRole,
		step.AssigneeUserID, step.IsRequired, step.Status, step.IsCurrent, step.ActedBy, step.Comments,
		nullableTime(step.ActedAt), step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval step", zap.String("requisition_id", step.RequisitionID), zap.Error(err))
		return fmt.Errorf("failed to create approval step: %w", err)
	}
	return nil
}

// GetByID retrieves a step by ID
func (r *StepRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalStep, error) {
	return r.getOne(ctx, `SELECT `+stepColumns+` FROM approval_steps s WHERE s.id = ?`, id)
}

// GetCurrent retrieves the step currently awaiting action
func (r *StepRepository) GetCurrent(ctx context.Context, requisitionID string) (*entity.ApprovalStep, error) {
	return r.getOne(ctx, `SELECT `+stepColumns+` FROM approval_steps s
		WHERE s.requisition_id = ? AND s.is_current = 1`, requisitionID)
}

func (r *StepRepository) getOne(ctx context.Context, query, key string) (*entity.ApprovalStep, error) {
	step, err := scanStep(r.db.Executor(ctx).QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval step %s: %w", key, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get approval step", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval step: %w", err)
	}
	return step, nil
}

// GetByRequisitionID retrieves the approval chain in sequence order
func (r *StepRepository) GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.ApprovalStep, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		`SELECT `+stepColumns+` FROM approval_steps s WHERE s.requisition_id = ? ORDER BY s.sequence ASC`,
		requisitionID)
	if err != nil {
		r.logger.Error("Failed to get approval steps", zap.String("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval steps: %w", err)
	}
	return collectSteps(rows)
}

// Complete records the decision taken on a step and clears its current flag
func (r *StepRepository) Complete(ctx context.Context, id string, status, actedBy, comments string) error {
	ts := now()
	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE approval_steps
		SET status = ?, acted_by = ?, comments = ?, acted_at = ?, is_current = 0, updated_at = ?
		WHERE id = ?`,
		status, actedBy, comments, ts, ts, id,
	)
	if err != nil {
		r.logger.Error("Failed to complete approval step", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to complete approval step: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("approval step %s: %w", id, port.ErrNotFound)
	}
	return nil
}

// SetCurrent makes stepID the only current step of the requisition
func (r *StepRepository) SetCurrent(ctx context.Context, requisitionID, stepID string) error {
	ts := now()
	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE approval_steps
		SET is_current = CASE WHEN id = ? THEN 1 ELSE 0 END, updated_at = ?
		WHERE requisition_id = ?`,
		stepID, ts, requisitionID,
	)
	if err != nil {
		r.logger.Error("Failed to set current step", zap.String("step_id", stepID), zap.Error(err))
		return fmt.Errorf("failed to set current step: %w", err)
	}
	return nil
}

// ClearCurrent leaves the requisition without a current step
func (r *StepRepository) ClearCurrent(ctx context.Context, requisitionID string) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE approval_steps SET is_current = 0, updated_at = ? WHERE requisition_id = ? AND is_current = 1`,
		now(), requisitionID)
	if err != nil {
		return fmt.Errorf("failed to clear current step: %w", err)
	}
	return nil
}

// ResetAll puts the whole chain back to pending
func (r *StepRepository) ResetAll(ctx context.Context, requisitionID string) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE approval_steps
		SET status = ?, is_current = 0, acted_by = '', comments = '', acted_at = NULL, updated_at = ?
		WHERE requisition_id = ? AND status != ?`,
		entity.StepStatusPending, now(), requisitionID, entity.StepStatusSkipped)
	if err != nil {
		r.logger.Error("Failed to reset approval steps", zap.String("requisition_id", requisitionID), zap.Error(err))
		return fmt.Errorf("failed to reset approval steps: %w", err)
	}
	return nil
}

// ListStale returns current pending steps of in-approval requisitions untouched since cutoff
func (r *StepRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ApprovalStep, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT `+stepColumns+`
		FROM approval_steps s
		JOIN requisitions r ON r.id = s.requisition_id
		WHERE s.is_current = 1 AND s.status = ? AND r.status = ? AND s.updated_at < ?
		ORDER BY s.updated_at ASC
		LIMIT ?`,
		entity.StepStatusPending, entity.StatusInApproval, cutoff.UTC(), limit)
	if err != nil {
		r.logger.Error("Failed to list stale steps", zap.Error(err))
		return nil, fmt.Errorf("failed to list stale steps: %w", err)
	}
	return collectSteps(rows)
}

// Touch refreshes updated_at
func (r *StepRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE approval_steps SET updated_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch approval step: %w", err)
	}
	return nil
}

func collectSteps(rows *sql.Rows) ([]*entity.ApprovalStep, error) {
	defer rows.Close()

	steps := []*entity.ApprovalStep{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanStep(s rowScanner) (*entity.ApprovalStep, error) {
	var step entity.ApprovalStep
	var stage string
	var actedAt sql.NullTime

	err := s.Scan(
		&step.ID,
		&step.RequisitionID,
		&step.Sequence,
		&step.Name,
		&stage,
		&step.RequiredRole,
		&step.AssigneeUserID,
		&step.IsRequired,
		&step.Status,
		&step.IsCurrent,
		&step.ActedBy,
		&step.Comments,
		&actedAt,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	step.Stage = approval.WorkflowStage(stage)
	step.ActedAt = timePtr(actedAt)
	return &step, nil
}

var _ port.StepRepository = (*StepRepository)(nil)
