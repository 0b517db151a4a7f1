package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	domainwf "github.com/hotelops/requisition-approval/internal/domain/workflow"
)

type mockRequisitionRepo struct {
	requisitions map[string]*entity.Requisition
	updateErr    error
}

func (m *mockRequisitionRepo) Create(ctx context.Context, req *entity.Requisition) error {
	m.requisitions[req.ID] = req
	return nil
}

func (m *mockRequisitionRepo) GetByID(ctx context.Context, id string) (*entity.Requisition, error) {
	req, ok := m.requisitions[id]
	if !ok {
		return nil, fmt.Errorf("requisition %s: %w", id, port.ErrNotFound)
	}
	copied := *req
	return &copied, nil
}

func (m *mockRequisitionRepo) UpdateStatus(ctx context.Context, id string, status string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.requisitions[id].Status = status
	return nil
}

func (m *mockRequisitionRepo) SetDecidedAt(ctx context.Context, id string, t time.Time) error {
	m.requisitions[id].DecidedAt = &t
	return nil
}

func (m *mockRequisitionRepo) List(ctx context.Context, filter port.ListFilter) ([]*entity.Requisition, int, error) {
	return nil, 0, nil
}

type mockHistoryRepo struct {
	histories []*entity.ApprovalHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *entity.ApprovalHistory) error {
	m.histories = append(m.histories, h)
	return nil
}

func (m *mockHistoryRepo) GetByRequisitionID(ctx context.Context, id string) ([]*entity.ApprovalHistory, error) {
	return m.histories, nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

func newTestEngine(status string) (Engine, *mockRequisitionRepo, *mockHistoryRepo) {
	reqs := &mockRequisitionRepo{requisitions: map[string]*entity.Requisition{
		"r1": {ID: "r1", Status: status},
	}}
	history := &mockHistoryRepo{}
	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	e := NewEngine(reqs, history, &mockTxManager{}, WithClock(func() time.Time { return fixed }))
	return e, reqs, history
}

func TestEngine_FirePersistsAndRecords(t *testing.T) {
	e, reqs, history := newTestEngine(entity.StatusDraft)
	ctx := context.Background()

	result, err := e.Fire(ctx, "r1", domainwf.TriggerSubmit, Transition{ActorID: "u-req"})
	if err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if result.Previous != domainwf.StateDraft || result.Current != domainwf.StateSubmitted {
		t.Errorf("result = %+v, want DRAFT -> SUBMITTED", result)
	}
	if reqs.requisitions["r1"].Status != entity.StatusSubmitted {
		t.Errorf("persisted status = %s, want %s", reqs.requisitions["r1"].Status, entity.StatusSubmitted)
	}
	if reqs.requisitions["r1"].DecidedAt != nil {
		t.Error("submission should not stamp decided_at")
	}
	if len(history.histories) != 1 {
		t.Fatalf("history rows = %d, want 1", len(history.histories))
	}
	h := history.histories[0]
	if h.ActionType != entity.ActionSubmit || h.ActorID != "u-req" || h.PreviousStatus != entity.StatusDraft {
		t.Errorf("unexpected history row: %+v", h)
	}
}

func TestEngine_FireUsesFacts(t *testing.T) {
	tests := []struct {
		name        string
		remaining   bool
		wantState   domainwf.State
		wantDecided bool
	}{
		{"more steps", true, domainwf.StateInApproval, false},
		{"last step", false, domainwf.StateApproved, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, reqs, history := newTestEngine(entity.StatusInApproval)

			result, err := e.Fire(context.Background(), "r1", domainwf.TriggerApprove, Transition{
				ActorID: "u-mgr",
				StepID:  "s1",
				Facts:   domainwf.Facts{StepsRemaining: tt.remaining},
			})
			if err != nil {
				t.Fatalf("Fire() error = %v", err)
			}
			if result.Current != tt.wantState {
				t.Errorf("Current = %v, want %v", result.Current, tt.wantState)
			}
			if got := reqs.requisitions["r1"].DecidedAt != nil; got != tt.wantDecided {
				t.Errorf("decided_at stamped = %v, want %v", got, tt.wantDecided)
			}
			if len(history.histories) != 1 || history.histories[0].StepID != "s1" {
				t.Errorf("history = %+v, want one row for step s1", history.histories)
			}
		})
	}
}

func TestEngine_FireInvalidTransition(t *testing.T) {
	e, reqs, history := newTestEngine(entity.StatusIssued)

	_, err := e.Fire(context.Background(), "r1", domainwf.TriggerReject, Transition{})
	if !errors.Is(err, domainwf.ErrInvalidTransition) {
		t.Fatalf("Fire() error = %v, want %v", err, domainwf.ErrInvalidTransition)
	}
	if reqs.requisitions["r1"].Status != entity.StatusIssued {
		t.Error("status should not change")
	}
	if len(history.histories) != 0 {
		t.Error("no history should be recorded")
	}
}

func TestEngine_FireUpdateFailure(t *testing.T) {
	e, reqs, _ := newTestEngine(entity.StatusInApproval)
	reqs.updateErr = errors.New("disk full")

	_, err := e.Fire(context.Background(), "r1", domainwf.TriggerReject, Transition{})
	if err == nil {
		t.Fatal("Fire() should fail when the status cannot be persisted")
	}
}

func TestEngine_UnknownRequisition(t *testing.T) {
	e, _, _ := newTestEngine(entity.StatusDraft)

	if _, err := e.CurrentState(context.Background(), "missing"); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("CurrentState() error = %v, want %v", err, port.ErrNotFound)
	}
}

func TestEngine_Permitted(t *testing.T) {
	e, _, _ := newTestEngine(entity.StatusReturned)

	got, err := e.Permitted(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Permitted() error = %v", err)
	}
	if len(got) != 1 || got[0] != domainwf.TriggerResubmit {
		t.Errorf("Permitted() = %v, want [RESUBMIT]", got)
	}
}
