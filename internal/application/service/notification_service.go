package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/hotelops/requisition-approval/internal/application/dispatcher"
	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
	"github.com/hotelops/requisition-approval/internal/domain/event"
)

// NotificationService tells requesters and approvers about decisions
type NotificationService interface {
	// Register subscribes the service's handlers on d
	Register(d dispatcher.Dispatcher)

	// HandleDecision messages the requester about a final or returning decision
	HandleDecision(ctx context.Context, evt *event.Event) error

	// HandleStepAdvanced messages the assignee of the step that became current
	HandleStepAdvanced(ctx context.Context, evt *event.Event) error

	// RemindStale nudges the assignee of a step that has waited too long
	RemindStale(ctx context.Context, step *entity.ApprovalStep) error
}

type notificationServiceImpl struct {
	requisitions port.RequisitionRepository
	notifier     port.Notifier
	logger       Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	requisitions port.RequisitionRepository,
	notifier port.Notifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		requisitions: requisitions,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.Subscribe("notify-requester", s.HandleDecision,
		event.TypeRequisitionApproved,
		event.TypeRequisitionPartiallyApproved,
		event.TypeRequisitionRejected,
		event.TypeRequisitionReturned,
		event.TypeRequisitionIssued,
	)
	d.Subscribe("notify-approver", s.HandleStepAdvanced, event.TypeStepAdvanced)
}

// decisionMessage renders the requester-facing text for a decision event
func decisionMessage(evt *event.Event) string {
	number := evt.GetPayloadString("number")
	title := evt.GetPayloadString("title")
	actor := evt.GetPayloadString("actor_id")
	comments := strings.TrimSpace(evt.GetPayloadString("comments"))

	var b strings.Builder
	fmt.Fprintf(&b, "Requisition %s \"%s\" ", number, title)
	switch evt.Type {
	case event.TypeRequisitionApproved:
		fmt.Fprintf(&b, "was approved by %s.", actor)
	case event.TypeRequisitionPartiallyApproved:
		fmt.Fprintf(&b, "was partially approved by %s: %d items approved, %d excluded.",
			actor, evt.GetPayloadInt("approved_items"), evt.GetPayloadInt("excluded_items"))
	case event.TypeRequisitionRejected:
		fmt.Fprintf(&b, "was rejected by %s.", actor)
	case event.TypeRequisitionReturned:
		fmt.Fprintf(&b, "was returned by %s for rework.", actor)
		if n := evt.GetPayloadInt("reopened_items"); n > 0 {
			fmt.Fprintf(&b, " %d items need your attention.", n)
		}
	case event.TypeRequisitionIssued:
		b.WriteString("has been issued by the store.")
	default:
		fmt.Fprintf(&b, "changed: %s.", evt.Type)
	}
	if comments != "" {
		fmt.Fprintf(&b, "\nComments: %s", comments)
	}
	return b.String()
}

func (s *notificationServiceImpl) HandleDecision(ctx context.Context, evt *event.Event) error {
	requester := evt.GetPayloadString("requester_id")
	if requester == "" {
		s.logger.Info("Skipping notification without requester", "event_id", evt.ID, "type", evt.Type)
		return nil
	}
	return s.send(ctx, evt.RequisitionID, requester, decisionMessage(evt))
}

func (s *notificationServiceImpl) HandleStepAdvanced(ctx context.Context, evt *event.Event) error {
	assignee := evt.GetPayloadString("assignee_user_id")
	if assignee == "" {
		// role-based steps have no single recipient
		s.logger.Info("Step has no assignee, not notifying",
			"requisition_id", evt.RequisitionID,
			"required_role", evt.GetPayloadString("required_role"))
		return nil
	}

	msg := fmt.Sprintf("Requisition %s \"%s\" from %s is waiting for your approval (%s).",
		evt.GetPayloadString("number"),
		evt.GetPayloadString("title"),
		evt.GetPayloadString("department"),
		evt.GetPayloadString("step_name"),
	)
	return s.send(ctx, evt.RequisitionID, assignee, msg)
}

func (s *notificationServiceImpl) RemindStale(ctx context.Context, step *entity.ApprovalStep) error {
	if step.AssigneeUserID == "" {
		return nil
	}
	req, err := s.requisitions.GetByID(ctx, step.RequisitionID)
	if err != nil {
		return fmt.Errorf("get requisition: %w", err)
	}

	msg := fmt.Sprintf("Reminder: requisition %s \"%s\" has been waiting for your approval (%s) since %s.",
		req.Number, req.Title, step.Name, step.UpdatedAt.Format("2006-01-02 15:04"))
	return s.send(ctx, req.ID, step.AssigneeUserID, msg)
}

func (s *notificationServiceImpl) send(ctx context.Context, requisitionID, userID, msg string) error {
	if err := s.notifier.SendText(ctx, userID, msg); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "requisition_id", requisitionID, "user_id", userID)
		return fmt.Errorf("send notification: %w", err)
	}
	s.logger.Info("Notification sent", "requisition_id", requisitionID, "user_id", userID)
	return nil
}
