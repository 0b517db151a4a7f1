package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/application/service"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	domainwf "github.com/hotelops/requisition-approval/internal/domain/workflow"
)

// statusFor maps an application error to an HTTP status code
func statusFor(err error) int {
	var failure *approval.ActionFailure
	var validation *approval.ValidationError

	switch {
	// state conflicts stay 409 even when an effect surfaced them
	case errors.Is(err, approval.ErrSubmissionInProgress),
		errors.Is(err, approval.ErrActionDisabled),
		errors.Is(err, service.ErrActionUnavailable),
		errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrGuardFailed),
		errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrStepNotCurrent):
		return http.StatusConflict
	// any other failed effect wraps whatever the effect returned
	case errors.As(err, &failure):
		return http.StatusBadGateway
	case errors.As(err, &validation),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, approval.ErrUnknownAction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON error response. Server errors are
// logged and their detail withheld from the client.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		msg = "internal server error"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed",
			"error", err,
			"status", status,
			"request_id", c.GetString(ctxRequestID),
		)
	}
	c.JSON(status, Response{Success: false, Error: msg})
}
