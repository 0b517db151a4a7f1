package service

import (
	"context"
	"errors"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var (
	// ErrInvalidInput is wrapped by every request validation failure
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden is returned when the user may not perform the operation
	ErrForbidden = errors.New("forbidden")

	// ErrNotEditable is returned when items change outside IN_APPROVAL
	ErrNotEditable = errors.New("requisition is not open for review")

	// ErrStepNotCurrent is returned when an effect targets a step that is not awaiting action
	ErrStepNotCurrent = errors.New("approval step is not awaiting action")

	// ErrActionUnavailable is returned when the requested action is not offered by the current decision
	ErrActionUnavailable = errors.New("action is not available")
)

// User identifies the caller of a service operation
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type actorKey struct{}

// WithActor attaches the acting user to ctx. Effects read it to attribute
// step decisions and history rows.
func WithActor(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, actorKey{}, u)
}

// ActorFrom returns the acting user in ctx, or a system user
func ActorFrom(ctx context.Context) User {
	if u, ok := ctx.Value(actorKey{}).(User); ok && u.ID != "" {
		return u
	}
	return User{ID: "system"}
}
