package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hotelops/requisition-approval/internal/application/dispatcher"
	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/application/workflow"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/domain/event"
	domainwf "github.com/hotelops/requisition-approval/internal/domain/workflow"
)

// ApprovalService applies document-level decisions to the approval chain
type ApprovalService interface {
	approval.Effects
	approval.CompletionChecker

	// Decide resolves actionType against the live decision for user and dispatches it
	Decide(ctx context.Context, requisitionID string, user User, actionType approval.ActionType, comments string) (approval.Outcome, error)

	// Issue hands an approved requisition over to the store
	Issue(ctx context.Context, requisitionID string, user User) (*entity.Requisition, error)
}

type approvalServiceImpl struct {
	requisitions port.RequisitionRepository
	items        port.ItemRepository
	steps        port.StepRepository
	history      port.HistoryRepository
	txManager    port.TransactionManager
	engine       workflow.Engine
	reqService   RequisitionService
	events       dispatcher.Dispatcher
	dispatcher   *approval.ActionDispatcher
	logger       Logger
}

// NewApprovalService creates a new ApprovalService. events may be nil.
func NewApprovalService(
	requisitions port.RequisitionRepository,
	items port.ItemRepository,
	steps port.StepRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	engine workflow.Engine,
	reqService RequisitionService,
	events dispatcher.Dispatcher,
	logger Logger,
) ApprovalService {
	s := &approvalServiceImpl{
		requisitions: requisitions,
		items:        items,
		steps:        steps,
		history:      history,
		txManager:    txManager,
		engine:       engine,
		reqService:   reqService,
		events:       events,
		logger:       logger,
	}
	s.dispatcher = approval.NewActionDispatcher(s, s)
	return s
}

// Decide runs actionType for user if the engine currently offers it
func (s *approvalServiceImpl) Decide(ctx context.Context, requisitionID string, user User, actionType approval.ActionType, comments string) (approval.Outcome, error) {
	if !actionType.IsValid() {
		return approval.Outcome{}, fmt.Errorf("%w: %q", approval.ErrUnknownAction, actionType)
	}

	view, err := s.reqService.Actions(ctx, requisitionID, user)
	if err != nil {
		return approval.Outcome{}, err
	}

	action, ok := view.Decision.Find(actionType)
	if !ok {
		// offered but disabled goes through the dispatcher so it stays a no-op
		for _, a := range view.Decision.Actions {
			if a.Type == actionType {
				action, ok = a, true
				break
			}
		}
	}
	if !ok || view.CurrentStep == nil {
		return approval.Outcome{}, fmt.Errorf("%w: %s (%s)", ErrActionUnavailable, actionType, view.Decision.Reason)
	}

	outcome, err := s.dispatcher.Dispatch(WithActor(ctx, user), requisitionID, view.CurrentStep.ID, action, comments)
	if err != nil {
		var failure *approval.ActionFailure
		if errors.As(err, &failure) {
			s.logger.Error("Decision failed", "requisition_id", requisitionID, "action", actionType, "error", failure.Err)
		}
		return approval.Outcome{}, err
	}

	s.logger.Info("Decision applied",
		"requisition_id", requisitionID,
		"action", actionType,
		"step_id", outcome.StepID,
		"completed", outcome.Completed,
	)
	return outcome, nil
}

// currentStep loads stepID and checks that it is the pending current step
func (s *approvalServiceImpl) currentStep(ctx context.Context, stepID string) (*entity.ApprovalStep, *entity.Requisition, error) {
	step, err := s.steps.GetByID(ctx, stepID)
	if err != nil {
		return nil, nil, err
	}
	if !step.IsCurrent || !step.IsPending() {
		return nil, nil, fmt.Errorf("%w: step %s is %s", ErrStepNotCurrent, stepID, step.Status)
	}
	req, err := s.requisitions.GetByID(ctx, step.RequisitionID)
	if err != nil {
		return nil, nil, err
	}
	return step, req, nil
}

// nextRequired returns the first pending required step after current, and
// the optional pending steps passed on the way
func nextRequired(steps []*entity.ApprovalStep, current *entity.ApprovalStep) (*entity.ApprovalStep, []*entity.ApprovalStep) {
	var skipped []*entity.ApprovalStep
	for _, st := range steps {
		if st.Sequence <= current.Sequence || !st.IsPending() {
			continue
		}
		if st.IsRequired {
			return st, skipped
		}
		skipped = append(skipped, st)
	}
	return nil, skipped
}

// Approve signs off the step, then advances the chain or finishes the requisition
func (s *approvalServiceImpl) Approve(ctx context.Context, stepID, comments string) error {
	actor := ActorFrom(ctx)

	var req *entity.Requisition
	var next *entity.ApprovalStep
	var result workflow.Result
	var summary approval.ItemStatusSummary

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		step, r, err := s.currentStep(txCtx, stepID)
		if err != nil {
			return err
		}
		req = r

		items, err := s.items.GetByRequisitionID(txCtx, req.ID)
		if err != nil {
			return err
		}
		summary = approval.Summarize(items)
		if summary.Pending > 0 || summary.Review > 0 || summary.Approved == 0 {
			return fmt.Errorf("%w: cannot approve with %d pending, %d in review and %d approved items",
				ErrActionUnavailable, summary.Pending, summary.Review, summary.Approved)
		}

		if err := s.steps.Complete(txCtx, step.ID, entity.StepStatusApproved, actor.ID, comments); err != nil {
			return err
		}

		steps, err := s.steps.GetByRequisitionID(txCtx, req.ID)
		if err != nil {
			return err
		}
		var skipped []*entity.ApprovalStep
		next, skipped = nextRequired(steps, step)

		// optional steps before the next required one are passed over
		for _, opt := range skipped {
			if err := s.steps.Complete(txCtx, opt.ID, entity.StepStatusSkipped, "system", ""); err != nil {
				return err
			}
		}

		trigger := domainwf.TriggerApprove
		switch {
		case step.Stage == approval.StageIssue:
			trigger = domainwf.TriggerIssue
		case summary.Rejected > 0:
			trigger = domainwf.TriggerApprovePartial
		}

		result, err = s.engine.Fire(txCtx, req.ID, trigger, workflow.Transition{
			ActorID:  actor.ID,
			StepID:   step.ID,
			Comments: comments,
			Facts:    domainwf.Facts{StepsRemaining: next != nil},
		})
		if err != nil {
			return err
		}

		if next != nil {
			if err := s.steps.SetCurrent(txCtx, req.ID, next.ID); err != nil {
				return err
			}
			return s.history.Create(txCtx, &entity.ApprovalHistory{
				RequisitionID:  req.ID,
				StepID:         next.ID,
				ActorID:        actor.ID,
				PreviousStatus: step.Name,
				NewStatus:      next.Name,
				ActionType:     entity.ActionAdvance,
			})
		}
		return s.steps.ClearCurrent(txCtx, req.ID)
	})
	if err != nil {
		return err
	}

	if next != nil {
		s.emit(ctx, event.TypeStepAdvanced, req, stepPayload(next))
		return nil
	}

	payload := map[string]interface{}{
		"actor_id":       actor.ID,
		"comments":       comments,
		"approved_items": summary.Approved,
		"excluded_items": summary.Rejected,
	}
	switch result.Current {
	case domainwf.StateIssued:
		s.emit(ctx, event.TypeRequisitionIssued, req, payload)
	case domainwf.StatePartiallyApproved:
		s.emit(ctx, event.TypeRequisitionPartiallyApproved, req, payload)
	default:
		s.emit(ctx, event.TypeRequisitionApproved, req, payload)
	}
	return nil
}

// Reject closes the requisition at this step
func (s *approvalServiceImpl) Reject(ctx context.Context, stepID, comments string) error {
	req, err := s.close(ctx, stepID, comments, entity.StepStatusRejected, domainwf.TriggerReject, nil)
	if err != nil {
		return err
	}
	s.emit(ctx, event.TypeRequisitionRejected, req, map[string]interface{}{
		"actor_id": ActorFrom(ctx).ID,
		"comments": comments,
	})
	return nil
}

// SendBack returns the requisition to the requester and reopens review-flagged lines
func (s *approvalServiceImpl) SendBack(ctx context.Context, stepID, comments string) error {
	var reopened int
	req, err := s.close(ctx, stepID, comments, entity.StepStatusReturned, domainwf.TriggerSendBack,
		func(txCtx context.Context, req *entity.Requisition) error {
			n, err := s.items.ResetStatus(txCtx, req.ID, approval.ItemReview, approval.ItemPending)
			reopened = n
			return err
		})
	if err != nil {
		return err
	}
	s.emit(ctx, event.TypeRequisitionReturned, req, map[string]interface{}{
		"actor_id":       ActorFrom(ctx).ID,
		"comments":       comments,
		"reopened_items": reopened,
	})
	return nil
}

// close ends the chain at stepID with stepStatus and fires trigger
func (s *approvalServiceImpl) close(
	ctx context.Context,
	stepID, comments, stepStatus string,
	trigger domainwf.Trigger,
	extra func(ctx context.Context, req *entity.Requisition) error,
) (*entity.Requisition, error) {
	actor := ActorFrom(ctx)
	var req *entity.Requisition

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		step, r, err := s.currentStep(txCtx, stepID)
		if err != nil {
			return err
		}
		req = r

		if err := s.steps.Complete(txCtx, step.ID, stepStatus, actor.ID, comments); err != nil {
			return err
		}
		if extra != nil {
			if err := extra(txCtx, req); err != nil {
				return err
			}
		}
		_, err = s.engine.Fire(txCtx, req.ID, trigger, workflow.Transition{
			ActorID:  actor.ID,
			StepID:   step.ID,
			Comments: comments,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// IsComplete reports that no required step is pending
func (s *approvalServiceImpl) IsComplete(ctx context.Context, requisitionID string) (bool, error) {
	steps, err := s.steps.GetByRequisitionID(ctx, requisitionID)
	if err != nil {
		return false, err
	}
	return firstRequiredStep(steps) == nil, nil
}

// Issue moves an APPROVED or PARTIALLY_APPROVED requisition to ISSUED
func (s *approvalServiceImpl) Issue(ctx context.Context, requisitionID string, user User) (*entity.Requisition, error) {
	var req *entity.Requisition
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if req, err = s.requisitions.GetByID(txCtx, requisitionID); err != nil {
			return err
		}
		// issuing from IN_APPROVAL belongs to the issue-stage approver
		if req.Status != entity.StatusApproved && req.Status != entity.StatusPartiallyApproved {
			return fmt.Errorf("%w: cannot issue a %s requisition", domainwf.ErrInvalidTransition, req.Status)
		}
		result, err := s.engine.Fire(txCtx, requisitionID, domainwf.TriggerIssue, workflow.Transition{ActorID: user.ID})
		if err != nil {
			return err
		}
		req.Status = result.Current.String()
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to issue requisition", "error", err, "id", requisitionID)
		return nil, err
	}

	s.emit(ctx, event.TypeRequisitionIssued, req, map[string]interface{}{"actor_id": user.ID})
	return req, nil
}

func (s *approvalServiceImpl) emit(ctx context.Context, t event.Type, req *entity.Requisition, payload map[string]interface{}) {
	if s.events == nil || req == nil {
		return
	}
	s.events.DispatchAsync(ctx, event.NewEvent(t, req.ID, withRequisition(payload, req)))
}
