package port

import (
	"context"
	"io"

	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
)

// Notifier delivers a plain text message to a user
type Notifier interface {
	SendText(ctx context.Context, userID string, content string) error
}

// WorkbookData is everything an exported requisition workbook shows
type WorkbookData struct {
	Requisition *entity.Requisition
	Items       []*entity.RequisitionItem
	Steps       []*entity.ApprovalStep
	History     []*entity.ApprovalHistory
	Summary     approval.ItemStatusSummary
}

// Exporter renders a requisition workbook
type Exporter interface {
	Write(ctx context.Context, w io.Writer, data *WorkbookData) error
}
