package export

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
)

// Sheet names in the order they appear in the workbook
const (
	SheetSummary   = "Summary"
	SheetItems     = "Items"
	SheetApprovals = "Approvals"
)

const timeLayout = "2006-01-02 15:04"

var itemHeader = []interface{}{"Category", "SKU", "Item", "Unit", "Quantity", "Unit Cost", "Line Total", "Status", "Review Note", "Reviewed By"}

// WorkbookWriter renders a requisition as an xlsx workbook
type WorkbookWriter struct {
	logger *zap.Logger
}

// NewWorkbookWriter creates a new workbook writer
func NewWorkbookWriter(logger *zap.Logger) *WorkbookWriter {
	return &WorkbookWriter{logger: logger}
}

type styles struct {
	header   int
	subtotal int
	money    int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	}); err != nil {
		return s, err
	}
	if s.subtotal, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: 4,
	}); err != nil {
		return s, err
	}
	s.money, err = f.NewStyle(&excelize.Style{NumFmt: 4})
	return s, err
}

// Write implements port.Exporter
func (ww *WorkbookWriter) Write(ctx context.Context, w io.Writer, data *port.WorkbookData) error {
	if data == nil || data.Requisition == nil {
		return fmt.Errorf("workbook data has no requisition")
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	// the default sheet becomes the summary
	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetItems, SheetApprovals} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	if err := ww.writeSummary(f, st, data); err != nil {
		return err
	}
	if err := ww.writeItems(f, st, data.Items); err != nil {
		return err
	}
	if err := ww.writeApprovals(f, st, data); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	ww.logger.Info("Workbook written",
		zap.String("requisition_id", data.Requisition.ID),
		zap.Int("items", len(data.Items)))
	return nil
}

func yuan(cents int64) float64 {
	return float64(cents) / 100
}

func actedAt(s *entity.ApprovalStep) string {
	if s.ActedAt == nil {
		return ""
	}
	return s.ActedAt.Format(timeLayout)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleRow(f *excelize.File, sheet string, row, cols, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func (ww *WorkbookWriter) writeSummary(f *excelize.File, st styles, data *port.WorkbookData) error {
	req := data.Requisition
	decided := ""
	if req.DecidedAt != nil {
		decided = req.DecidedAt.Format(timeLayout)
	}

	rows := [][]interface{}{
		{"Number", req.Number},
		{"Title", req.Title},
		{"Department", req.Department},
		{"Store", req.StoreLocation},
		{"Requester", req.RequesterID},
		{"Status", req.Status},
		{"Created", req.CreatedAt.Format(timeLayout)},
		{"Decided", decided},
		{"Items", data.Summary.Total},
		{"Approved", data.Summary.Approved},
		{"Rejected", data.Summary.Rejected},
		{"In Review", data.Summary.Review},
		{"Pending", data.Summary.Pending},
		{"Requested Total", yuan(totalCents(data.Items))},
		{"Approved Total", yuan(entity.ApprovedTotalCents(data.Items))},
	}
	for i, r := range rows {
		if err := setRow(f, SheetSummary, i+1, r); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	n := len(rows)
	if err := f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", n), st.header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, fmt.Sprintf("B%d", n-1), fmt.Sprintf("B%d", n), st.money); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "B", 22)
}

func totalCents(items []*entity.RequisitionItem) int64 {
	var total int64
	for _, item := range items {
		total += item.LineTotalCents()
	}
	return total
}

// writeItems lists lines grouped by category, each group closed by a subtotal row
func (ww *WorkbookWriter) writeItems(f *excelize.File, st styles, items []*entity.RequisitionItem) error {
	if err := setRow(f, SheetItems, 1, itemHeader); err != nil {
		return fmt.Errorf("failed to write item header: %w", err)
	}
	if err := styleRow(f, SheetItems, 1, len(itemHeader), st.header); err != nil {
		return err
	}

	groups := entity.GroupByCategory(items)
	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	row := 2
	for _, category := range categories {
		first := row
		for _, item := range groups[category] {
			values := []interface{}{
				category, item.SKU, item.Name, item.Unit, item.Quantity,
				yuan(item.UnitCostCents), yuan(item.LineTotalCents()),
				string(item.Status), item.ReviewNote, item.ReviewedBy,
			}
			if err := setRow(f, SheetItems, row, values); err != nil {
				return fmt.Errorf("failed to write item row: %w", err)
			}
			row++
		}
		if err := f.SetCellStyle(SheetItems, fmt.Sprintf("F%d", first), fmt.Sprintf("G%d", row-1), st.money); err != nil {
			return err
		}

		subtotal := []interface{}{category + " subtotal"}
		if err := setRow(f, SheetItems, row, subtotal); err != nil {
			return err
		}
		if err := f.SetCellFormula(SheetItems, fmt.Sprintf("E%d", row), fmt.Sprintf("SUM(E%d:E%d)", first, row-1)); err != nil {
			return err
		}
		if err := f.SetCellFormula(SheetItems, fmt.Sprintf("G%d", row), fmt.Sprintf("SUM(G%d:G%d)", first, row-1)); err != nil {
			return err
		}
		if err := styleRow(f, SheetItems, row, len(itemHeader), st.subtotal); err != nil {
			return err
		}
		row += 2
	}

	if err := f.SetColWidth(SheetItems, "A", "C", 18); err != nil {
		return err
	}
	return f.SetPanes(SheetItems, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (ww *WorkbookWriter) writeApprovals(f *excelize.File, st styles, data *port.WorkbookData) error {
	stepHeader := []interface{}{"Seq", "Step", "Stage", "Role", "Assignee", "Required", "Status", "Acted By", "Acted At", "Comments"}
	if err := setRow(f, SheetApprovals, 1, stepHeader); err != nil {
		return err
	}
	if err := styleRow(f, SheetApprovals, 1, len(stepHeader), st.header); err != nil {
		return err
	}

	row := 2
	for _, s := range data.Steps {
		values := []interface{}{
			s.Sequence, s.Name, string(s.Stage), s.RequiredRole, s.AssigneeUserID,
			s.IsRequired, s.Status, s.ActedBy, actedAt(s), s.Comments,
		}
		if err := setRow(f, SheetApprovals, row, values); err != nil {
			return fmt.Errorf("failed to write step row: %w", err)
		}
		row++
	}

	row++
	historyHeader := []interface{}{"Time", "Actor", "Action", "From", "To", "Comments"}
	if err := setRow(f, SheetApprovals, row, historyHeader); err != nil {
		return err
	}
	if err := styleRow(f, SheetApprovals, row, len(historyHeader), st.header); err != nil {
		return err
	}
	row++

	for _, h := range data.History {
		values := []interface{}{
			h.Timestamp.Format(timeLayout), h.ActorID, h.ActionType,
			h.PreviousStatus, h.NewStatus, h.Comments,
		}
		if err := setRow(f, SheetApprovals, row, values); err != nil {
			return fmt.Errorf("failed to write history row: %w", err)
		}
		row++
	}

	return f.SetColWidth(SheetApprovals, "B", "B", 22)
}

var _ port.Exporter = (*WorkbookWriter)(nil)
