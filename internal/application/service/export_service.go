package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"

	"github.com/hotelops/requisition-approval/internal/application/dispatcher"
	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/event"
)

// ExportService renders requisition workbooks and archives decided ones
type ExportService interface {
	Export(ctx context.Context, requisitionID string, w io.Writer) (filename string, err error)
	Archive(ctx context.Context, requisitionID string) (string, error)

	// RegisterArchiver archives a workbook whenever a requisition reaches a final decision
	RegisterArchiver(d dispatcher.Dispatcher)
}

type exportServiceImpl struct {
	reqService RequisitionService
	exporter   port.Exporter
	storage    port.FileStorage
	logger     Logger
}

// NewExportService creates a new ExportService. storage may be nil when archiving is off.
func NewExportService(reqService RequisitionService, exporter port.Exporter, storage port.FileStorage, logger Logger) ExportService {
	return &exportServiceImpl{
		reqService: reqService,
		exporter:   exporter,
		storage:    storage,
		logger:     logger,
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

func safeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "")
}

// archivePath places a workbook at <department>/<number>.xlsx
func archivePath(department, number string) string {
	dept := safeName(department)
	if dept == "" {
		dept = "unassigned"
	}
	return path.Join(dept, safeName(number)+".xlsx")
}

func (s *exportServiceImpl) workbook(ctx context.Context, requisitionID string) (*port.WorkbookData, error) {
	detail, err := s.reqService.Get(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	return &port.WorkbookData{
		Requisition: detail.Requisition,
		Items:       detail.Items,
		Steps:       detail.Steps,
		History:     detail.History,
		Summary:     approval.Summarize(detail.Items),
	}, nil
}

func (s *exportServiceImpl) Export(ctx context.Context, requisitionID string, w io.Writer) (string, error) {
	data, err := s.workbook(ctx, requisitionID)
	if err != nil {
		return "", err
	}
	if err := s.exporter.Write(ctx, w, data); err != nil {
		s.logger.Error("Failed to write workbook", "error", err, "requisition_id", requisitionID)
		return "", fmt.Errorf("write workbook: %w", err)
	}
	return safeName(data.Requisition.Number) + ".xlsx", nil
}

func (s *exportServiceImpl) Archive(ctx context.Context, requisitionID string) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("archive storage is not configured")
	}

	data, err := s.workbook(ctx, requisitionID)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(ctx, &buf, data); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}

	p := archivePath(data.Requisition.Department, data.Requisition.Number)
	if err := s.storage.Save(ctx, p, buf.Bytes()); err != nil {
		s.logger.Error("Failed to archive workbook", "error", err, "requisition_id", requisitionID)
		return "", fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Info("Workbook archived", "requisition_id", requisitionID, "path", p)
	return p, nil
}

func (s *exportServiceImpl) RegisterArchiver(d dispatcher.Dispatcher) {
	d.Subscribe("archive-workbook", func(ctx context.Context, evt *event.Event) error {
		_, err := s.Archive(ctx, evt.RequisitionID)
		return err
	},
		event.TypeRequisitionApproved,
		event.TypeRequisitionPartiallyApproved,
		event.TypeRequisitionRejected,
		event.TypeRequisitionIssued,
	)
}
