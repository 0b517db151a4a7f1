package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hotelops/requisition-approval/internal/application/dispatcher"
	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/application/workflow"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/domain/event"
	domainwf "github.com/hotelops/requisition-approval/internal/domain/workflow"
	"github.com/hotelops/requisition-approval/pkg/utils"
)

// NewItem is one line of a requisition being created
type NewItem struct {
	SKU           string  `json:"sku"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Unit          string  `json:"unit"`
	Quantity      float64 `json:"quantity"`
	UnitCostCents int64   `json:"unit_cost_cents"`
}

// NewStep is one step of the approval chain of a requisition being created
type NewStep struct {
	Name           string                 `json:"name"`
	Stage          approval.WorkflowStage `json:"stage"`
	RequiredRole   string                 `json:"required_role"`
	AssigneeUserID string                 `json:"assignee_user_id"`
	Optional       bool                   `json:"optional"`
}

// CreateRequisitionInput is the payload for RequisitionService.Create
type CreateRequisitionInput struct {
	Title         string    `json:"title"`
	Department    string    `json:"department"`
	StoreLocation string    `json:"store_location"`
	Notes         string    `json:"notes"`
	Items         []NewItem `json:"items"`
	Steps         []NewStep `json:"steps"`
}

// RequisitionDetail is a requisition with everything a reviewer looks at
type RequisitionDetail struct {
	*entity.Requisition
	Summary approval.ItemStatusSummary `json:"summary"`
	History []*entity.ApprovalHistory  `json:"history"`
}

// ListResult is one page of requisitions
type ListResult struct {
	Requisitions []*entity.Requisition `json:"requisitions"`
	Total        int                   `json:"total"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// ItemReview is the state after one item decision
type ItemReview struct {
	Item    *entity.RequisitionItem    `json:"item"`
	Summary approval.ItemStatusSummary `json:"summary"`
}

// ActionsView is what the current user may do with a requisition
type ActionsView struct {
	RequisitionID string                     `json:"requisition_id"`
	Status        string                     `json:"status"`
	Summary       approval.ItemStatusSummary `json:"summary"`
	Decision      approval.Decision          `json:"decision"`
	CurrentStep   *entity.ApprovalStep       `json:"current_step,omitempty"`
	CanAct        bool                       `json:"can_act"`
}

// Aggregates are per-category totals of a requisition
type Aggregates struct {
	RequisitionID      string                     `json:"requisition_id"`
	Categories         []entity.CategoryTotal     `json:"categories"`
	TotalCents         int64                      `json:"total_cents"`
	ApprovedTotalCents int64                      `json:"approved_total_cents"`
	Summary            approval.ItemStatusSummary `json:"summary"`
}

// RequisitionService manages requisitions and item reviews
type RequisitionService interface {
	Create(ctx context.Context, user User, in CreateRequisitionInput) (*RequisitionDetail, error)
	Submit(ctx context.Context, id string, user User) (*entity.Requisition, error)
	Get(ctx context.Context, id string) (*RequisitionDetail, error)
	List(ctx context.Context, filter port.ListFilter) (*ListResult, error)
	ReviewItem(ctx context.Context, requisitionID, itemID string, status approval.ItemApprovalStatus, note string, user User) (*ItemReview, error)
	Actions(ctx context.Context, requisitionID string, user User) (*ActionsView, error)
	Aggregates(ctx context.Context, requisitionID string) (*Aggregates, error)
}

type requisitionServiceImpl struct {
	requisitions port.RequisitionRepository
	items        port.ItemRepository
	steps        port.StepRepository
	history      port.HistoryRepository
	txManager    port.TransactionManager
	engine       workflow.Engine
	events       dispatcher.Dispatcher
	authorizer   Authorizer
	labels       approval.LabelFormatter
	logger       Logger
}

// RequisitionOption configures the requisition service
type RequisitionOption func(*requisitionServiceImpl)

// WithAuthorizer replaces the default StepAuthorizer
func WithAuthorizer(a Authorizer) RequisitionOption {
	return func(s *requisitionServiceImpl) {
		s.authorizer = a
	}
}

// WithLabels sets the wording of offered actions
func WithLabels(l approval.LabelFormatter) RequisitionOption {
	return func(s *requisitionServiceImpl) {
		s.labels = l
	}
}

// WithEvents sets the dispatcher that receives domain events
func WithEvents(d dispatcher.Dispatcher) RequisitionOption {
	return func(s *requisitionServiceImpl) {
		s.events = d
	}
}

// NewRequisitionService creates a new RequisitionService
func NewRequisitionService(
	requisitions port.RequisitionRepository,
	items port.ItemRepository,
	steps port.StepRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	engine workflow.Engine,
	logger Logger,
	opts ...RequisitionOption,
) RequisitionService {
	s := &requisitionServiceImpl{
		requisitions: requisitions,
		items:        items,
		steps:        steps,
		history:      history,
		txManager:    txManager,
		engine:       engine,
		authorizer:   StepAuthorizer{},
		labels:       approval.DefaultLabels,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validateCreate(user User, in *CreateRequisitionInput) error {
	if user.ID == "" {
		return invalid("requester is required")
	}
	in.Title = utils.SanitizeString(in.Title)
	in.Department = utils.SanitizeString(in.Department)
	if in.Title == "" {
		return invalid("title is required")
	}
	if in.Department == "" {
		return invalid("department is required")
	}
	if len(in.Items) == 0 {
		return invalid("at least one item is required")
	}
	for i := range in.Items {
		item := &in.Items[i]
		item.Name = utils.SanitizeString(item.Name)
		item.SKU = strings.TrimSpace(item.SKU)
		item.Category = strings.ToUpper(strings.TrimSpace(item.Category))
		if item.Category == "" {
			item.Category = entity.CategoryOther
		}
		if item.Name == "" {
			return invalid("items[%d].name is required", i)
		}
		if err := utils.ValidateSKU(item.SKU); err != nil {
			return invalid("items[%d]: %v", i, err)
		}
		if err := utils.ValidateQuantity(item.Quantity); err != nil {
			return invalid("items[%d]: %v", i, err)
		}
		if err := utils.ValidateUnitCost(item.UnitCostCents); err != nil {
			return invalid("items[%d]: %v", i, err)
		}
	}

	if len(in.Steps) == 0 {
		return invalid("at least one approval step is required")
	}
	required := 0
	for i := range in.Steps {
		step := &in.Steps[i]
		step.Name = strings.TrimSpace(step.Name)
		if step.Stage == "" {
			step.Stage = approval.StageApproval
		}
		if step.Name == "" {
			return invalid("steps[%d].name is required", i)
		}
		if !step.Stage.IsValid() {
			return invalid("steps[%d].stage %q is not valid", i, step.Stage)
		}
		if step.RequiredRole == "" && step.AssigneeUserID == "" {
			return invalid("steps[%d] needs a required_role or an assignee_user_id", i)
		}
		if !step.Optional {
			required++
		}
	}
	if required == 0 {
		return invalid("at least one approval step must be required")
	}
	return nil
}

func newNumber(now time.Time) string {
	return fmt.Sprintf("REQ-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// Create stores a new DRAFT requisition with its items and approval chain
func (s *requisitionServiceImpl) Create(ctx context.Context, user User, in CreateRequisitionInput) (*RequisitionDetail, error) {
	if err := validateCreate(user, &in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req := &entity.Requisition{
		ID:            uuid.NewString(),
		Number:        newNumber(now),
		Title:         in.Title,
		Department:    in.Department,
		StoreLocation: strings.TrimSpace(in.StoreLocation),
		RequesterID:   user.ID,
		Status:        entity.StatusDraft,
		Notes:         in.Notes,
		CreatedAt:     now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requisitions.Create(txCtx, req); err != nil {
			return fmt.Errorf("create requisition: %w", err)
		}

		for _, ni := range in.Items {
			item := &entity.RequisitionItem{
				ID:            uuid.NewString(),
				RequisitionID: req.ID,
				SKU:           ni.SKU,
				Name:          ni.Name,
				Category:      ni.Category,
				Unit:          ni.Unit,
				Quantity:      ni.Quantity,
				UnitCostCents: ni.UnitCostCents,
				Status:        approval.ItemPending,
			}
			if err := s.items.Create(txCtx, item); err != nil {
				return fmt.Errorf("create item: %w", err)
			}
			req.Items = append(req.Items, item)
		}

		for i, ns := range in.Steps {
			step := &entity.ApprovalStep{
				ID:             uuid.NewString(),
				RequisitionID:  req.ID,
				Sequence:       i + 1,
				Name:           ns.Name,
				Stage:          ns.Stage,
				RequiredRole:   ns.RequiredRole,
				AssigneeUserID: ns.AssigneeUserID,
				IsRequired:     !ns.Optional,
				Status:         entity.StepStatusPending,
			}
			if err := s.steps.Create(txCtx, step); err != nil {
				return fmt.Errorf("create approval step: %w", err)
			}
			req.Steps = append(req.Steps, step)
		}

		return s.history.Create(txCtx, &entity.ApprovalHistory{
			RequisitionID: req.ID,
			ActorID:       user.ID,
			NewStatus:     entity.StatusDraft,
			ActionType:    entity.ActionCreate,
			Timestamp:     now,
		})
	})
	if err != nil {
		s.logger.Error("Failed to create requisition", "error", err, "requester_id", user.ID)
		return nil, err
	}

	for _, item := range req.Items {
		req.TotalCents += item.LineTotalCents()
	}

	s.logger.Info("Requisition created", "id", req.ID, "number", req.Number, "items", len(req.Items))
	return &RequisitionDetail{Requisition: req, Summary: approval.Summarize(req.Items)}, nil
}

// firstRequiredStep returns the lowest-sequence required step still pending
func firstRequiredStep(steps []*entity.ApprovalStep) *entity.ApprovalStep {
	for _, s := range steps {
		if s.IsRequired && s.IsPending() {
			return s
		}
	}
	return nil
}

// Submit sends a DRAFT or RETURNED requisition into approval and makes its
// first required step current
func (s *requisitionServiceImpl) Submit(ctx context.Context, id string, user User) (*entity.Requisition, error) {
	var first *entity.ApprovalStep
	var req *entity.Requisition

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.requisitions.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if req.RequesterID != user.ID {
			return fmt.Errorf("%w: only the requester can submit", ErrForbidden)
		}

		trigger := domainwf.TriggerSubmit
		if req.Status == entity.StatusReturned {
			trigger = domainwf.TriggerResubmit
			if err := s.steps.ResetAll(txCtx, id); err != nil {
				return err
			}
		}

		t := workflow.Transition{ActorID: user.ID}
		if _, err := s.engine.Fire(txCtx, id, trigger, t); err != nil {
			return err
		}

		steps, err := s.steps.GetByRequisitionID(txCtx, id)
		if err != nil {
			return err
		}
		first = firstRequiredStep(steps)
		if first == nil {
			return invalid("requisition has no required approval step")
		}
		if err := s.steps.SetCurrent(txCtx, id, first.ID); err != nil {
			return err
		}

		t.StepID = first.ID
		result, err := s.engine.Fire(txCtx, id, domainwf.TriggerRoute, t)
		if err != nil {
			return err
		}
		req.Status = result.Current.String()
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit requisition", "error", err, "id", id)
		return nil, err
	}

	s.emit(ctx, event.TypeRequisitionSubmitted, req, map[string]interface{}{
		"actor_id": user.ID,
	})
	s.emit(ctx, event.TypeStepAdvanced, req, stepPayload(first))

	s.logger.Info("Requisition submitted", "id", id, "first_step", first.Name)
	return req, nil
}

// Get loads a requisition with items, steps, summary and history
func (s *requisitionServiceImpl) Get(ctx context.Context, id string) (*RequisitionDetail, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.history.GetByRequisitionID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RequisitionDetail{Requisition: req, Summary: approval.Summarize(req.Items), History: history}, nil
}

func (s *requisitionServiceImpl) load(ctx context.Context, id string) (*entity.Requisition, error) {
	req, err := s.requisitions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Items, err = s.items.GetByRequisitionID(ctx, id); err != nil {
		return nil, err
	}
	if req.Steps, err = s.steps.GetByRequisitionID(ctx, id); err != nil {
		return nil, err
	}
	return req, nil
}

// List returns one page of requisitions
func (s *requisitionServiceImpl) List(ctx context.Context, filter port.ListFilter) (*ListResult, error) {
	switch filter.SortBy {
	case "", port.SortCreatedAt, port.SortNumber, port.SortTotal:
	default:
		return nil, invalid("unknown sort key %q", filter.SortBy)
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	list, total, err := s.requisitions.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list requisitions", "error", err)
		return nil, err
	}
	if list == nil {
		list = []*entity.Requisition{}
	}
	return &ListResult{Requisitions: list, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ReviewItem records the current approver's decision on one line
func (s *requisitionServiceImpl) ReviewItem(ctx context.Context, requisitionID, itemID string, status approval.ItemApprovalStatus, note string, user User) (*ItemReview, error) {
	if !status.IsValid() {
		return nil, invalid("status %q is not valid", status)
	}

	var review ItemReview
	var previous approval.ItemApprovalStatus
	var req *entity.Requisition

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.requisitions.GetByID(txCtx, requisitionID)
		if err != nil {
			return err
		}
		if !req.IsEditable() {
			return fmt.Errorf("%w: status is %s", ErrNotEditable, req.Status)
		}

		current, err := s.steps.GetCurrent(txCtx, requisitionID)
		if err != nil {
			return err
		}
		if !s.authorizer.CanAct(user, req, current) {
			return fmt.Errorf("%w: not the current approver", ErrForbidden)
		}

		item, err := s.items.GetByID(txCtx, itemID)
		if err != nil {
			return err
		}
		if item.RequisitionID != requisitionID {
			return fmt.Errorf("item %s: %w", itemID, port.ErrNotFound)
		}
		previous = item.Status

		note = strings.TrimSpace(note)
		if err := s.items.UpdateStatus(txCtx, itemID, status, note, user.ID); err != nil {
			return err
		}
		if err := s.history.Create(txCtx, &entity.ApprovalHistory{
			RequisitionID:  requisitionID,
			StepID:         current.ID,
			ItemID:         itemID,
			ActorID:        user.ID,
			PreviousStatus: string(previous),
			NewStatus:      string(status),
			ActionType:     entity.ActionItemReview,
			Comments:       note,
		}); err != nil {
			return err
		}

		items, err := s.items.GetByRequisitionID(txCtx, requisitionID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if it.ID == itemID {
				review.Item = it
			}
		}
		review.Summary = approval.Summarize(items)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to review item", "error", err, "requisition_id", requisitionID, "item_id", itemID)
		return nil, err
	}

	s.emit(ctx, event.TypeItemReviewed, req, map[string]interface{}{
		"item_id":         itemID,
		"previous_status": string(previous),
		"new_status":      string(status),
		"actor_id":        user.ID,
	})
	return &review, nil
}

// Actions evaluates the decision table for user on the requisition's current step
func (s *requisitionServiceImpl) Actions(ctx context.Context, requisitionID string, user User) (*ActionsView, error) {
	req, err := s.load(ctx, requisitionID)
	if err != nil {
		return nil, err
	}

	current := req.CurrentStep()
	canAct := s.authorizer.CanAct(user, req, current)
	stage := approval.StageApproval
	if current != nil {
		stage = current.Stage
	}

	summary := approval.Summarize(req.Items)
	return &ActionsView{
		RequisitionID: req.ID,
		Status:        req.Status,
		Summary:       summary,
		Decision:      approval.Decide(summary, canAct, stage, s.labels),
		CurrentStep:   current,
		CanAct:        canAct,
	}, nil
}

// Aggregates groups the requisition's lines by category
func (s *requisitionServiceImpl) Aggregates(ctx context.Context, requisitionID string) (*Aggregates, error) {
	if _, err := s.requisitions.GetByID(ctx, requisitionID); err != nil {
		return nil, err
	}
	items, err := s.items.GetByRequisitionID(ctx, requisitionID)
	if err != nil {
		return nil, err
	}

	agg := &Aggregates{
		RequisitionID:      requisitionID,
		Categories:         entity.CategoryTotals(items),
		ApprovedTotalCents: entity.ApprovedTotalCents(items),
		Summary:            approval.Summarize(items),
	}
	for _, c := range agg.Categories {
		agg.TotalCents += c.TotalCents
	}
	return agg, nil
}

func (s *requisitionServiceImpl) emit(ctx context.Context, t event.Type, req *entity.Requisition, payload map[string]interface{}) {
	if s.events == nil || req == nil {
		return
	}
	s.events.DispatchAsync(ctx, event.NewEvent(t, req.ID, withRequisition(payload, req)))
}

// withRequisition adds the fields every notification needs
func withRequisition(payload map[string]interface{}, req *entity.Requisition) map[string]interface{} {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["number"] = req.Number
	payload["title"] = req.Title
	payload["requester_id"] = req.RequesterID
	payload["department"] = req.Department
	return payload
}

func stepPayload(step *entity.ApprovalStep) map[string]interface{} {
	return map[string]interface{}{
		"step_id":          step.ID,
		"step_name":        step.Name,
		"stage":            string(step.Stage),
		"required_role":    step.RequiredRole,
		"assignee_user_id": step.AssigneeUserID,
	}
}
