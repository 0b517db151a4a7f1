package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	domainwf "github.com/hotelops/requisition-approval/internal/domain/workflow"
)

// Engine moves requisitions through their document lifecycle
type Engine interface {
	// Fire applies trigger to the requisition, persists the new status and
	// records history. It joins the transaction carried by ctx, if any.
	Fire(ctx context.Context, requisitionID string, trigger domainwf.Trigger, t Transition) (Result, error)

	// CurrentState returns the persisted state of a requisition
	CurrentState(ctx context.Context, requisitionID string) (domainwf.State, error)

	// Permitted lists the triggers configured for the requisition's current state
	Permitted(ctx context.Context, requisitionID string) ([]domainwf.Trigger, error)
}

// Transition describes who fired a trigger and under which facts
type Transition struct {
	ActorID  string
	StepID   string
	Comments string
	Facts    domainwf.Facts
}

// Result reports the states on both sides of a transition
type Result struct {
	Previous domainwf.State
	Current  domainwf.State
}

// Changed reports whether the document status moved
func (r Result) Changed() bool {
	return r.Previous != r.Current
}

// decisionStates stamp decided_at when entered
var decisionStates = map[domainwf.State]bool{
	domainwf.StateApproved:          true,
	domainwf.StatePartiallyApproved: true,
	domainwf.StateRejected:          true,
	domainwf.StateIssued:            true,
}

type engine struct {
	requisitions port.RequisitionRepository
	history      port.HistoryRepository
	txManager    port.TransactionManager
	clock        func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engine)

// WithClock overrides the time source
func WithClock(clock func() time.Time) EngineOption {
	return func(e *engine) {
		e.clock = clock
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requisitions port.RequisitionRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engine{
		requisitions: requisitions,
		history:      history,
		txManager:    txManager,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engine) machine(ctx context.Context, requisitionID string) (domainwf.StateMachine, error) {
	req, err := e.requisitions.GetByID(ctx, requisitionID)
	if err != nil {
		return nil, err
	}

	state := domainwf.State(req.Status)
	if !state.IsValid() {
		return nil, fmt.Errorf("requisition %s has invalid status %q", requisitionID, req.Status)
	}
	return domainwf.NewRequisitionMachine(state), nil
}

func (e *engine) Fire(ctx context.Context, requisitionID string, trigger domainwf.Trigger, t Transition) (Result, error) {
	var result Result

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		m, err := e.machine(txCtx, requisitionID)
		if err != nil {
			return err
		}
		result.Previous = m.State()

		if err := m.Fire(domainwf.WithFacts(txCtx, t.Facts), trigger); err != nil {
			return err
		}
		result.Current = m.State()

		if result.Changed() {
			if err := e.requisitions.UpdateStatus(txCtx, requisitionID, result.Current.String()); err != nil {
				return fmt.Errorf("failed to update requisition status: %w", err)
			}
		}

		now := e.clock()
		if decisionStates[result.Current] && result.Changed() {
			if err := e.requisitions.SetDecidedAt(txCtx, requisitionID, now); err != nil {
				return fmt.Errorf("failed to stamp decision time: %w", err)
			}
		}

		actor := t.ActorID
		if actor == "" {
			actor = "system"
		}
		if err := e.history.Create(txCtx, &entity.ApprovalHistory{
			RequisitionID:  requisitionID,
			StepID:         t.StepID,
			ActorID:        actor,
			PreviousStatus: result.Previous.String(),
			NewStatus:      result.Current.String(),
			ActionType:     trigger.String(),
			Comments:       t.Comments,
			Timestamp:      now,
		}); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (e *engine) CurrentState(ctx context.Context, requisitionID string) (domainwf.State, error) {
	m, err := e.machine(ctx, requisitionID)
	if err != nil {
		return "", err
	}
	return m.State(), nil
}

func (e *engine) Permitted(ctx context.Context, requisitionID string) ([]domainwf.Trigger, error) {
	m, err := e.machine(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	return m.PermittedTriggers(), nil
}
