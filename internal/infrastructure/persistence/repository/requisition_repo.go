package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/infrastructure/persistence/sqlite"
)

const defaultListLimit = 50

// RequisitionRepository implements port.RequisitionRepository
type RequisitionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRequisitionRepository creates a new requisition repository
func NewRequisitionRepository(db *sqlite.DB, logger *zap.Logger) port.RequisitionRepository {
	return &RequisitionRepository{
		db:     db,
		logger: logger,
	}
}

const requisitionColumns = `r.id, r.number, r.title, r.department, r.store_location, r.requester_id,
	r.status, r.notes, r.created_at, r.updated_at, r.decided_at`

// Create inserts a requisition header
func (r *RequisitionRepository) Create(ctx context.Context, req *entity.Requisition) error {
	ts := now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = ts
	}
	req.UpdatedAt = ts

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO requisitions (
			id, number, title, department, store_location, requester_id,
			status, notes, created_at, updated_at, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Number, req.Title, req.Department, req.StoreLocation, req.RequesterID,
		req.Status, req.Notes, req.CreatedAt.UTC(), req.UpdatedAt, nullableTime(req.DecidedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create requisition", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create requisition: %w", err)
	}
	return nil
}

// GetByID retrieves a requisition header with its computed total
func (r *RequisitionRepository) GetByID(ctx context.Context, id string) (*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + `, ` + totalExpr + `
		FROM requisitions r
		LEFT JOIN requisition_items i ON i.requisition_id = r.id
		WHERE r.id = ?
		GROUP BY r.id`

	req, err := scanRequisition(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("requisition %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get requisition", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

// UpdateStatus sets the document status
func (r *RequisitionRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	return r.exec(ctx, "update requisition status", id,
		`UPDATE requisitions SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
}

// SetDecidedAt records when the requisition reached a final decision
func (r *RequisitionRepository) SetDecidedAt(ctx context.Context, id string, t time.Time) error {
	return r.exec(ctx, "set decided_at", id,
		`UPDATE requisitions SET decided_at = ?, updated_at = ? WHERE id = ?`, t.UTC(), now(), id)
}

// List returns one page of requisitions matching filter and the total match count
func (r *RequisitionRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.Requisition, int, error) {
	where, args := buildWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM requisitions r` + where
	if err := r.db.Executor(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count requisitions", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count requisitions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + requisitionColumns + `, ` + totalExpr + `
		FROM requisitions r
		LEFT JOIN requisition_items i ON i.requisition_id = r.id` + where + `
		GROUP BY r.id
		ORDER BY ` + orderBy(filter) + `
		LIMIT ? OFFSET ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		r.logger.Error("Failed to list requisitions", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list requisitions: %w", err)
	}
	defer rows.Close()

	var list []*entity.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan requisition: %w", err)
		}
		list = append(list, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate requisitions: %w", err)
	}
	return list, total, nil
}

// line totals round to the cent the same way RequisitionItem.LineTotalCents does
const totalExpr = `COALESCE(SUM(CAST(ROUND(i.quantity * i.unit_cost_cents) AS INTEGER)), 0) AS total_cents`

// likeEscaper makes search text match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildWhere(f port.ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Status != "" {
		clauses = append(clauses, "r.status = ?")
		args = append(args, f.Status)
	}
	if f.Department != "" {
		clauses = append(clauses, "r.department = ?")
		args = append(args, f.Department)
	}
	if f.StoreLocation != "" {
		clauses = append(clauses, "r.store_location = ?")
		args = append(args, f.StoreLocation)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		clauses = append(clauses, `(r.number LIKE ? ESCAPE '\' OR r.title LIKE ? ESCAPE '\')`)
		like := "%" + likeEscaper.Replace(q) + "%"
		args = append(args, like, like)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(f port.ListFilter) string {
	column := "r.created_at"
	switch f.SortBy {
	case port.SortNumber:
		column = "r.number"
	case port.SortTotal:
		column = "total_cents"
	}

	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	return column + " " + dir + ", r.id " + dir
}

func scanRequisition(s rowScanner) (*entity.Requisition, error) {
	var req entity.Requisition
	var decidedAt sql.NullTime

	err := s.Scan(
		&req.ID,
		&req.Number,
		&req.Title,
		&req.Department,
		&req.StoreLocation,
		&req.RequesterID,
		&req.Status,
		&req.Notes,
		&req.CreatedAt,
		&req.UpdatedAt,
		&decidedAt,
		&req.TotalCents,
	)
	if err != nil {
		return nil, err
	}
	req.DecidedAt = timePtr(decidedAt)
	return &req, nil
}

func (r *RequisitionRepository) exec(ctx context.Context, op, id, query string, args ...interface{}) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("requisition %s: %w", id, port.ErrNotFound)
	}
	return nil
}

var _ port.RequisitionRepository = (*RequisitionRepository)(nil)
