package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateRecordRequest is the body for POST /api/records
type CreateRecordRequest struct {
	Kind    string         `json:"kind" binding:"required"`
	Payload entity.Payload `json:"payload"`
	Tags    []string       `json:"tags"`
}

// TransitionRequest is the body for POST /api/records/:id/transition
type TransitionRequest struct {
	To              string     `json:"to" binding:"required"`
	RejectionReason string     `json:"rejection_reason"`
	PaidDate        *time.Time `json:"paid_date"`
	AssigneeID      string     `json:"assignee_id"`
}

func (r *TransitionRequest) fields() workflow.Fields {
	return workflow.Fields{
		RejectionReason: r.RejectionReason,
		PaidDate:        r.PaidDate,
		AssigneeID:      r.AssigneeID,
	}
}

// BulkTransitionRequest is the body for POST /api/transitions
type BulkTransitionRequest struct {
	RecordIDs []string `json:"record_ids" binding:"required"`
	TransitionRequest
}

// ListRecordsRequest represents query parameters for listing records
type ListRecordsRequest struct {
	Kind   string `form:"kind"`
	Status string `form:"status"`
	Tag    string `form:"tag"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (r *ListRecordsRequest) filter() port.RecordFilter {
	if r.Limit <= 0 || r.Limit > 100 {
		r.Limit = 20
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	return port.RecordFilter{
		Kind:   entity.Kind(r.Kind),
		Status: r.Status,
		Tag:    r.Tag,
		Limit:  r.Limit,
		Offset: r.Offset,
	}
}

// NoteRequest is the body for POST /api/records/:id/notes
type NoteRequest struct {
	Note string `json:"note" binding:"required"`
}

// TagsRequest is the body for PUT /api/records/:id/tags
type TagsRequest struct {
	Tags []string `json:"tags"`
}

// FieldsRequest is the body for field edits and extraction results
type FieldsRequest struct {
	Fields entity.Payload `json:"fields" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateRecord handles POST /api/records
func (h *Handlers) CreateRecord(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	record, err := h.services.Records.Create(c.Request.Context(), entity.Kind(req.Kind), requestActor(c), req.Payload, req.Tags)
	if err != nil {
		h.fail(c, "Failed to create record", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    record,
	})
}

// ListRecords handles GET /api/records
func (h *Handlers) ListRecords(c *gin.Context) {
	var req ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	records, err := h.services.Records.List(c.Request.Context(), req.filter())
	if err != nil {
		h.fail(c, "Failed to list records", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    records,
	})
}

// GetRecord handles GET /api/records/:id
func (h *Handlers) GetRecord(c *gin.Context) {
	record, err := h.services.Records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get record", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    record,
	})
}

// Transition handles POST /api/records/:id/transition
func (h *Handlers) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	event, err := h.services.Transitions.Transition(
		c.Request.Context(), c.Param("id"), workflow.Status(req.To), requestActor(c), req.fields())
	if errors.Is(err, workflow.ErrAlreadyInState) {
		// Retry of an applied transition: report success without a new event
		c.JSON(http.StatusOK, Response{
			Success:   true,
			ErrorKind: workflow.ErrorKind(err),
		})
		return
	}
	if err != nil {
		h.fail(c, "Transition failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    event,
	})
}

// BulkTransition handles POST /api/transitions
func (h *Handlers) BulkTransition(c *gin.Context) {
	var req BulkTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	result := h.services.Bulk.Apply(
		c.Request.Context(), req.RecordIDs, workflow.Status(req.To), requestActor(c), req.fields())

	// The batch itself succeeds even when individual records fail; the
	// per-record outcomes are the payload.
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// EditFields handles PATCH /api/records/:id/fields
func (h *Handlers) EditFields(c *gin.Context) {
	var req FieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	event, err := h.services.Records.EditFields(c.Request.Context(), c.Param("id"), requestActor(c), req.Fields)
	if err != nil {
		h.fail(c, "Field edit failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    event,
	})
}

// RecordExtraction handles POST /api/records/:id/extraction
func (h *Handlers) RecordExtraction(c *gin.Context) {
	var req FieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	event, err := h.services.Records.RecordExtraction(c.Request.Context(), c.Param("id"), requestActor(c), req.Fields)
	if err != nil {
		h.fail(c, "Extraction recording failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    event,
	})
}

// AddNote handles POST /api/records/:id/notes
func (h *Handlers) AddNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	event, err := h.services.Records.AddNote(c.Request.Context(), c.Param("id"), requestActor(c), req.Note)
	if err != nil {
		h.fail(c, "Note append failed", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    event,
	})
}

// SetTags handles PUT /api/records/:id/tags
func (h *Handlers) SetTags(c *gin.Context) {
	var req TagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	event, err := h.services.Records.SetTags(c.Request.Context(), c.Param("id"), requestActor(c), req.Tags)
	if err != nil {
		h.fail(c, "Tag update failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    event,
	})
}

// DeleteRecord handles DELETE /api/records/:id
func (h *Handlers) DeleteRecord(c *gin.Context) {
	if err := h.services.Records.Delete(c.Request.Context(), c.Param("id"), requestActor(c)); err != nil {
		h.fail(c, "Delete failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// History handles GET /api/records/:id/history
func (h *Handlers) History(c *gin.Context) {
	events, err := h.services.Audit.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to load history", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    events,
	})
}

// StatusAt handles GET /api/records/:id/status-at?at=RFC3339
func (h *Handlers) StatusAt(c *gin.Context) {
	at, err := time.Parse(time.RFC3339, c.Query("at"))
	if err != nil {
		h.badRequest(c, "invalid 'at' timestamp, want RFC3339", err)
		return
	}

	status, err := h.services.Audit.StatusAt(c.Request.Context(), c.Param("id"), at)
	if err != nil {
		h.fail(c, "Failed to reconstruct status", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"record_id": c.Param("id"),
			"at":        at.UTC().Format(time.RFC3339),
			"status":    status,
		},
	})
}

// OfferUndo handles GET /api/events/:id/undo
func (h *Handlers) OfferUndo(c *gin.Context) {
	action, err := h.services.Undo.OfferUndo(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Undo offer failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    action,
	})
}

// ApplyUndo handles POST /api/events/:id/undo
func (h *Handlers) ApplyUndo(c *gin.Context) {
	event, err := h.services.Undo.ApplyUndo(c.Request.Context(), c.Param("id"), requestActor(c))
	if err != nil {
		h.fail(c, "Undo failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    event,
	})
}

// Duplicates handles GET /api/insights/duplicates
func (h *Handlers) Duplicates(c *gin.Context) {
	var req ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	groups, err := h.services.Insights.Duplicates(c.Request.Context(), req.filter())
	if err != nil {
		h.fail(c, "Duplicate scan failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    groups,
	})
}

// Anomalies handles GET /api/insights/anomalies
func (h *Handlers) Anomalies(c *gin.Context) {
	var req ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	flags, err := h.services.Insights.Anomalies(c.Request.Context(), req.filter())
	if err != nil {
		h.fail(c, "Anomaly scan failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    flags,
	})
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	c.JSON(statusForError(err), Response{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: workflow.ErrorKind(err),
		Retryable: workflow.Retryable(err),
	})
}

// statusForError maps the workflow error taxonomy to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrMissingRequiredField):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrNotReversible):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
