package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/infrastructure/persistence/sqlite"
)

// ItemRepository implements port.ItemRepository
type ItemRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewItemRepository creates a new requisition item repository
func NewItemRepository(db *sqlite.DB, logger *zap.Logger) port.ItemRepository {
	return &ItemRepository{
		db:     db,
		logger: logger,
	}
}

const itemColumns = `id, requisition_id, sku, name, category, unit, quantity, unit_cost_cents,
	status, review_note, reviewed_by, reviewed_at, created_at, updated_at`

// Create inserts an item. Items keep their insertion order.
func (r *ItemRepository) Create(ctx context.Context, item *entity.RequisitionItem) error {
	ts := now()
	item.CreatedAt, item.UpdatedAt = ts, ts
	if item.Status == "" {
		item.Status = approval.ItemPending
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO requisition_items (
			id, requisition_id, sku, name, category, unit, quantity, unit_cost_cents,
			status, review_note, reviewed_by, reviewed_at, position, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM requisition_items WHERE requisition_id = ?),
			?, ?)`,
		item.ID, item.RequisitionID, item.SKU, item.Name, item.Category, item.Unit,
		item.Quantity, item.UnitCostCents, string(item.Status), item.ReviewNote, item.ReviewedBy,
		nullableTime(item.ReviewedAt), item.RequisitionID, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create item", zap.String("requisition_id", item.RequisitionID), zap.Error(err))
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetByID retrieves an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*entity.RequisitionItem, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM requisition_items WHERE id = ?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get item", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// GetByRequisitionID retrieves the items of a requisition in entry order
func (r *ItemRepository) GetByRequisitionID(ctx context.Context, requisitionID string) ([]*entity.RequisitionItem, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		`SELECT `+itemColumns+` FROM requisition_items WHERE requisition_id = ? ORDER BY position ASC`,
		requisitionID)
	if err != nil {
		r.logger.Error("Failed to get items", zap.String("requisition_id", requisitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := []*entity.RequisitionItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateStatus records a reviewer's decision on one item
func (r *ItemRepository) UpdateStatus(ctx context.Context, id string, status approval.ItemApprovalStatus, note, reviewer string) error {
	ts := now()
	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE requisition_items
		SET status = ?, review_note = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(status), note, reviewer, ts, ts, id,
	)
	if err != nil {
		r.logger.Error("Failed to update item status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update item status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", id, port.ErrNotFound)
	}
	return nil
}

// ResetStatus moves every item in status from to status to, clearing the reviewer
func (r *ItemRepository) ResetStatus(ctx context.Context, requisitionID string, from, to approval.ItemApprovalStatus) (int, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE requisition_items
		SET status = ?, reviewed_by = '', reviewed_at = NULL, updated_at = ?
		WHERE requisition_id = ? AND status = ?`,
		string(to), now(), requisitionID, string(from),
	)
	if err != nil {
		r.logger.Error("Failed to reset item statuses", zap.String("requisition_id", requisitionID), zap.Error(err))
		return 0, fmt.Errorf("failed to reset item statuses: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

func scanItem(s rowScanner) (*entity.RequisitionItem, error) {
	var item entity.RequisitionItem
	var status string
	var reviewedAt sql.NullTime

	err := s.Scan(
		&item.ID,
		&item.RequisitionID,
		&item.SKU,
		&item.Name,
		&item.Category,
		&item.Unit,
		&item.Quantity,
		&item.UnitCostCents,
		&status,
		&item.ReviewNote,
		&item.ReviewedBy,
		&reviewedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Status = approval.ItemApprovalStatus(status)
	item.ReviewedAt = timePtr(reviewedAt)
	return &item, nil
}

var _ port.ItemRepository = (*ItemRepository)(nil)
