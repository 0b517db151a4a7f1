package service

import "github.com/hotelops/requisition-approval/internal/domain/entity"

// Authorizer decides whether a user may act on the current approval step
type Authorizer interface {
	CanAct(user User, req *entity.Requisition, step *entity.ApprovalStep) bool
}

// StepAuthorizer lets the step's assignee or any holder of its required role act
type StepAuthorizer struct{}

// CanAct implements Authorizer
func (StepAuthorizer) CanAct(user User, req *entity.Requisition, step *entity.ApprovalStep) bool {
	if req == nil || step == nil || user.ID == "" {
		return false
	}
	if req.Status != entity.StatusInApproval || !step.IsCurrent || !step.IsPending() {
		return false
	}
	if step.AssigneeUserID != "" && step.AssigneeUserID == user.ID {
		return true
	}
	return step.RequiredRole != "" && step.RequiredRole == user.Role
}
