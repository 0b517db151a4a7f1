package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/application/workflow"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/domain/event"
	domainwf "github.com/hotelops/requisition-approval/internal/domain/workflow"
)

var (
	requester    = User{ID: "u-req", Role: "staff"}
	headOfDept   = User{ID: "u-hod", Role: "hod"}
	storeManager = User{ID: "u-sm", Role: "store_manager"}
	storekeeper  = User{ID: "u-sk", Role: "storekeeper"}
)

type harness struct {
	store     *fakeStore
	events    *recordingDispatcher
	reqs      RequisitionService
	approvals ApprovalService
}

func newHarness() *harness {
	store := newFakeStore()
	tx := &fakeTxManager{store: store}
	events := newRecordingDispatcher()

	reqRepo := fakeRequisitionRepo{store}
	itemRepo := fakeItemRepo{store}
	stepRepo := fakeStepRepo{store}
	historyRepo := fakeHistoryRepo{store}

	engine := workflow.NewEngine(reqRepo, historyRepo, tx)
	reqs := NewRequisitionService(reqRepo, itemRepo, stepRepo, historyRepo, tx, engine, &mockLogger{}, WithEvents(events))
	approvals := NewApprovalService(reqRepo, itemRepo, stepRepo, historyRepo, tx, engine, reqs, events, &mockLogger{})

	return &harness{store: store, events: events, reqs: reqs, approvals: approvals}
}

func twoStepChain() []NewStep {
	return []NewStep{
		{Name: "Head of Department", RequiredRole: "hod"},
		{Name: "Store Manager", AssigneeUserID: "u-sm"},
	}
}

func weeklyOrder(steps []NewStep) CreateRequisitionInput {
	return CreateRequisitionInput{
		Title:         "Weekly kitchen order",
		Department:    "Kitchen",
		StoreLocation: "Main Store",
		Items: []NewItem{
			{SKU: "RICE-25", Name: "Rice 25kg", Category: "food", Unit: "bag", Quantity: 4, UnitCostCents: 3200},
			{SKU: "TWL-01", Name: "Bath towel", Category: "housekeeping", Unit: "pc", Quantity: 20, UnitCostCents: 450},
			{SKU: "BLB-60", Name: "LED bulb", Category: "engineering", Unit: "pc", Quantity: 10, UnitCostCents: 199},
		},
		Steps: steps,
	}
}

// submitted creates and submits a requisition and returns its id
func (h *harness) submitted(t *testing.T, steps []NewStep) string {
	t.Helper()
	ctx := context.Background()
	detail, err := h.reqs.Create(ctx, requester, weeklyOrder(steps))
	require.NoError(t, err)
	_, err = h.reqs.Submit(ctx, detail.ID, requester)
	require.NoError(t, err)
	return detail.ID
}

// review sets item statuses by item name
func (h *harness) review(t *testing.T, reqID string, user User, statuses map[string]approval.ItemApprovalStatus) approval.ItemStatusSummary {
	t.Helper()
	ctx := context.Background()
	detail, err := h.reqs.Get(ctx, reqID)
	require.NoError(t, err)

	var summary approval.ItemStatusSummary
	for _, item := range detail.Items {
		status, ok := statuses[item.Name]
		if !ok {
			continue
		}
		review, err := h.reqs.ReviewItem(ctx, reqID, item.ID, status, "", user)
		require.NoError(t, err)
		summary = review.Summary
	}
	return summary
}

func allApproved() map[string]approval.ItemApprovalStatus {
	return map[string]approval.ItemApprovalStatus{
		"Rice 25kg":  approval.ItemApproved,
		"Bath towel": approval.ItemApproved,
		"LED bulb":   approval.ItemApproved,
	}
}

func TestRequisitionService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		user   User
		mutate func(in *CreateRequisitionInput)
	}{
		{"missing requester", User{}, func(in *CreateRequisitionInput) {}},
		{"missing title", requester, func(in *CreateRequisitionInput) { in.Title = "  " }},
		{"missing department", requester, func(in *CreateRequisitionInput) { in.Department = "" }},
		{"no items", requester, func(in *CreateRequisitionInput) { in.Items = nil }},
		{"zero quantity", requester, func(in *CreateRequisitionInput) { in.Items[0].Quantity = 0 }},
		{"negative cost", requester, func(in *CreateRequisitionInput) { in.Items[1].UnitCostCents = -1 }},
		{"no steps", requester, func(in *CreateRequisitionInput) { in.Steps = nil }},
		{"bad stage", requester, func(in *CreateRequisitionInput) { in.Steps[0].Stage = "audit" }},
		{"step without approver", requester, func(in *CreateRequisitionInput) { in.Steps[1].AssigneeUserID = "" }},
		{"only optional steps", requester, func(in *CreateRequisitionInput) {
			in.Steps[0].Optional = true
			in.Steps[1].Optional = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			in := weeklyOrder(twoStepChain())
			tt.mutate(&in)

			_, err := h.reqs.Create(context.Background(), tt.user, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, h.store.reqs)
		})
	}
}

func TestRequisitionService_CreateDraft(t *testing.T) {
	h := newHarness()

	detail, err := h.reqs.Create(context.Background(), requester, weeklyOrder(twoStepChain()))
	require.NoError(t, err)

	assert.Equal(t, entity.StatusDraft, detail.Status)
	assert.True(t, strings.HasPrefix(detail.Number, "REQ-"))
	assert.Equal(t, requester.ID, detail.RequesterID)
	assert.Equal(t, int64(4*3200+20*450+10*199), detail.TotalCents)
	assert.Equal(t, approval.ItemStatusSummary{Total: 3, Pending: 3}, detail.Summary)

	require.Len(t, detail.Steps, 2)
	assert.Equal(t, 1, detail.Steps[0].Sequence)
	assert.Equal(t, approval.StageApproval, detail.Steps[0].Stage)
	assert.False(t, detail.Steps[0].IsCurrent)
	assert.Equal(t, entity.CategoryFood, detail.Items[0].Category)

	require.Len(t, h.store.history, 1)
	assert.Equal(t, entity.ActionCreate, h.store.history[0].ActionType)
}

func TestRequisitionService_Submit(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	detail, err := h.reqs.Create(ctx, requester, weeklyOrder(twoStepChain()))
	require.NoError(t, err)

	_, err = h.reqs.Submit(ctx, detail.ID, headOfDept)
	assert.ErrorIs(t, err, ErrForbidden)

	req, err := h.reqs.Submit(ctx, detail.ID, requester)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInApproval, req.Status)

	got, err := h.reqs.Get(ctx, detail.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentStep())
	assert.Equal(t, "Head of Department", got.CurrentStep().Name)
	assert.Len(t, got.History, 3) // create, submit, route

	assert.Equal(t, []event.Type{event.TypeRequisitionSubmitted, event.TypeStepAdvanced}, h.events.types())

	_, err = h.reqs.Submit(ctx, detail.ID, requester)
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
}

func TestRequisitionService_ReviewItem(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	reqID := h.submitted(t, twoStepChain())

	detail, err := h.reqs.Get(ctx, reqID)
	require.NoError(t, err)
	itemID := detail.Items[0].ID

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := h.reqs.ReviewItem(ctx, reqID, itemID, "maybe", "", headOfDept)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("only the current approver", func(t *testing.T) {
		_, err := h.reqs.ReviewItem(ctx, reqID, itemID, approval.ItemApproved, "", storeManager)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("item must belong to the requisition", func(t *testing.T) {
		other := h.submitted(t, twoStepChain())
		otherDetail, err := h.reqs.Get(ctx, other)
		require.NoError(t, err)

		_, err = h.reqs.ReviewItem(ctx, reqID, otherDetail.Items[0].ID, approval.ItemApproved, "", headOfDept)
		assert.ErrorIs(t, err, port.ErrNotFound)
	})

	t.Run("records decision and recomputes summary", func(t *testing.T) {
		review, err := h.reqs.ReviewItem(ctx, reqID, itemID, approval.ItemReview, "  wrong pack size ", headOfDept)
		require.NoError(t, err)
		assert.Equal(t, approval.ItemReview, review.Item.Status)
		assert.Equal(t, "wrong pack size", review.Item.ReviewNote)
		assert.Equal(t, approval.ItemStatusSummary{Total: 3, Pending: 2, Review: 1}, review.Summary)
		assert.True(t, review.Summary.Consistent())

		evt := h.events.last(event.TypeItemReviewed)
		require.NotNil(t, evt)
		assert.Equal(t, "review", evt.GetPayloadString("new_status"))
	})

	t.Run("draft requisitions are not editable", func(t *testing.T) {
		draft, err := h.reqs.Create(ctx, requester, weeklyOrder(twoStepChain()))
		require.NoError(t, err)
		_, err = h.reqs.ReviewItem(ctx, draft.ID, draft.Items[0].ID, approval.ItemApproved, "", headOfDept)
		assert.ErrorIs(t, err, ErrNotEditable)
	})
}

func TestRequisitionService_Actions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	reqID := h.submitted(t, twoStepChain())

	view, err := h.reqs.Actions(ctx, reqID, headOfDept)
	require.NoError(t, err)
	assert.True(t, view.CanAct)
	assert.True(t, view.Decision.Blocked)
	require.Len(t, view.Decision.Actions, 1)
	assert.Equal(t, approval.ActionWaiting, view.Decision.Actions[0].Type)
	assert.Contains(t, view.Decision.Actions[0].Label, "3 items pending")

	view, err = h.reqs.Actions(ctx, reqID, storeManager)
	require.NoError(t, err)
	assert.False(t, view.CanAct)
	assert.Empty(t, view.Decision.Actions)
	assert.True(t, view.Decision.Blocked)

	h.review(t, reqID, headOfDept, allApproved())
	view, err = h.reqs.Actions(ctx, reqID, headOfDept)
	require.NoError(t, err)
	require.Len(t, view.Decision.Actions, 1)
	assert.Equal(t, "Approve All (3 items)", view.Decision.Actions[0].Label)
	assert.False(t, view.Decision.Blocked)
	assert.Equal(t, approval.ItemStatusSummary{Total: 3, Approved: 3}, view.Summary)
}

func TestRequisitionService_ActionsCompactLabels(t *testing.T) {
	store := newFakeStore()
	tx := &fakeTxManager{store: store}
	engine := workflow.NewEngine(fakeRequisitionRepo{store}, fakeHistoryRepo{store}, tx)
	reqs := NewRequisitionService(fakeRequisitionRepo{store}, fakeItemRepo{store}, fakeStepRepo{store},
		fakeHistoryRepo{store}, tx, engine, &mockLogger{}, WithLabels(approval.CompactLabels))
	h := &harness{store: store, events: newRecordingDispatcher(), reqs: reqs}

	reqID := h.submitted(t, twoStepChain())
	h.review(t, reqID, headOfDept, allApproved())

	view, err := reqs.Actions(context.Background(), reqID, headOfDept)
	require.NoError(t, err)
	require.Len(t, view.Decision.Actions, 1)
	assert.Equal(t, "Approve", view.Decision.Actions[0].Label)
}

type denyAll struct{}

func (denyAll) CanAct(User, *entity.Requisition, *entity.ApprovalStep) bool { return false }

func TestRequisitionService_CustomAuthorizer(t *testing.T) {
	store := newFakeStore()
	tx := &fakeTxManager{store: store}
	engine := workflow.NewEngine(fakeRequisitionRepo{store}, fakeHistoryRepo{store}, tx)
	reqs := NewRequisitionService(fakeRequisitionRepo{store}, fakeItemRepo{store}, fakeStepRepo{store},
		fakeHistoryRepo{store}, tx, engine, &mockLogger{}, WithAuthorizer(denyAll{}))
	h := &harness{store: store, events: newRecordingDispatcher(), reqs: reqs}

	reqID := h.submitted(t, twoStepChain())

	view, err := reqs.Actions(context.Background(), reqID, headOfDept)
	require.NoError(t, err)
	assert.False(t, view.CanAct)
	assert.Empty(t, view.Decision.Actions)

	detail, err := reqs.Get(context.Background(), reqID)
	require.NoError(t, err)
	_, err = reqs.ReviewItem(context.Background(), reqID, detail.Items[0].ID, approval.ItemApproved, "", headOfDept)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRequisitionService_Aggregates(t *testing.T) {
	h := newHarness()
	reqID := h.submitted(t, twoStepChain())
	h.review(t, reqID, headOfDept, map[string]approval.ItemApprovalStatus{
		"Rice 25kg":  approval.ItemApproved,
		"Bath towel": approval.ItemRejected,
	})

	agg, err := h.reqs.Aggregates(context.Background(), reqID)
	require.NoError(t, err)
	require.Len(t, agg.Categories, 3)
	assert.Equal(t, entity.CategoryEngineering, agg.Categories[0].Category)
	assert.Equal(t, int64(12800+9000+1990), agg.TotalCents)
	assert.Equal(t, int64(12800), agg.ApprovedTotalCents)
	assert.Equal(t, approval.ItemStatusSummary{Total: 3, Pending: 1, Approved: 1, Rejected: 1}, agg.Summary)

	_, err = h.reqs.Aggregates(context.Background(), "missing")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestRequisitionService_List(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := h.reqs.Create(ctx, requester, weeklyOrder(twoStepChain()))
		require.NoError(t, err)
	}

	result, err := h.reqs.List(ctx, port.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Requisitions, 2)
	assert.Equal(t, 2, result.Limit)

	result, err = h.reqs.List(ctx, port.ListFilter{Status: entity.StatusIssued})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.NotNil(t, result.Requisitions)
	assert.Equal(t, 50, result.Limit)

	_, err = h.reqs.List(ctx, port.ListFilter{SortBy: "colour"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
