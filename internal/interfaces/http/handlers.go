package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/application/service"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	requisitions service.RequisitionService
	approvals    service.ApprovalService
	exports      service.ExportService
	health       HealthFunc
	logger       Logger
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(services Services, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		requisitions: services.Requisitions,
		approvals:    services.Approvals,
		exports:      services.Exports,
		health:       health,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// ListRequisitionsRequest represents query parameters for listing requisitions
type ListRequisitionsRequest struct {
	Status     string `form:"status"`
	Department string `form:"department"`
	Store      string `form:"store"`
	Query      string `form:"q"`
	Sort       string `form:"sort"`
	Order      string `form:"order"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// ReviewItemRequest is the body of PUT /api/requisitions/:id/items/:itemId/status
type ReviewItemRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// DecisionRequest is the body of POST /api/requisitions/:id/decision
type DecisionRequest struct {
	Action   string `json:"action" binding:"required"`
	Comments string `json:"comments"`
}

// DecisionResponse reports a dispatched decision
type DecisionResponse struct {
	Outcome approval.Outcome `json:"outcome"`
	Message string           `json:"message"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	status := http.StatusOK
	if h.health != nil {
		healthy, details := h.health()
		response.Components = details
		if !healthy {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// CreateRequisition handles POST /api/requisitions
func (h *Handlers) CreateRequisition(c *gin.Context) {
	var in service.CreateRequisitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	detail, err := h.requisitions.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		h.respondError(c, "Create requisition", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: detail})
}

// ListRequisitions handles GET /api/requisitions
func (h *Handlers) ListRequisitions(c *gin.Context) {
	var req ListRequisitionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}

	order := strings.ToLower(req.Order)
	if order != "" && order != "asc" && order != "desc" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "order must be asc or desc"})
		return
	}

	result, err := h.requisitions.List(c.Request.Context(), port.ListFilter{
		Status:        strings.ToUpper(strings.TrimSpace(req.Status)),
		Department:    strings.TrimSpace(req.Department),
		StoreLocation: strings.TrimSpace(req.Store),
		Query:         strings.TrimSpace(req.Query),
		SortBy:        req.Sort,
		Descending:    order == "desc",
		Limit:         req.Limit,
		Offset:        req.Offset,
	})
	if err != nil {
		h.respondError(c, "List requisitions", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// GetRequisition handles GET /api/requisitions/:id
func (h *Handlers) GetRequisition(c *gin.Context) {
	detail, err := h.requisitions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Get requisition", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// SubmitRequisition handles POST /api/requisitions/:id/submit
func (h *Handlers) SubmitRequisition(c *gin.Context) {
	req, err := h.requisitions.Submit(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, "Submit requisition", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// ReviewItem handles PUT /api/requisitions/:id/items/:itemId/status
func (h *Handlers) ReviewItem(c *gin.Context) {
	var body ReviewItemRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	status := approval.ItemApprovalStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	review, err := h.requisitions.ReviewItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), status, body.Note, currentUser(c))
	if err != nil {
		h.respondError(c, "Review item", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: review})
}

// GetActions handles GET /api/requisitions/:id/actions
func (h *Handlers) GetActions(c *gin.Context) {
	view, err := h.requisitions.Actions(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, "Get actions", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// Decide handles POST /api/requisitions/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	action := approval.ActionType(strings.ToLower(strings.TrimSpace(body.Action)))
	outcome, err := h.approvals.Decide(c.Request.Context(), c.Param("id"), currentUser(c), action, body.Comments)
	if err != nil {
		h.respondError(c, "Decision", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    DecisionResponse{Outcome: outcome, Message: outcome.Message()},
	})
}

// IssueRequisition handles POST /api/requisitions/:id/issue
func (h *Handlers) IssueRequisition(c *gin.Context) {
	req, err := h.approvals.Issue(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.respondError(c, "Issue requisition", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// GetAggregates handles GET /api/requisitions/:id/aggregates
func (h *Handlers) GetAggregates(c *gin.Context) {
	agg, err := h.requisitions.Aggregates(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Aggregates", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: agg})
}

// ExportRequisition handles GET /api/requisitions/:id/export
func (h *Handlers) ExportRequisition(c *gin.Context) {
	// buffered so a failed render can still produce a JSON error
	var buf bytes.Buffer
	filename, err := h.exports.Export(c.Request.Context(), c.Param("id"), &buf)
	if err != nil {
		h.respondError(c, "Export requisition", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
