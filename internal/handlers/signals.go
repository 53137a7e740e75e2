package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/opsdesk/opsdesk/pkg/response"
)

// SignalHandler exposes HTTP endpoints for the signals module.
type SignalHandler struct {
	signals *services.SignalService
	history *services.HistoryService
}

// NewSignalHandler constructs a signal handler with its service dependencies.
func NewSignalHandler(db *gorm.DB) (*SignalHandler, error) {
	history, err := services.NewHistoryService(db)
	if err != nil {
		return nil, err
	}
	notifications, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}
	signals, err := services.NewSignalService(db, history, notifications)
	if err != nil {
		return nil, err
	}
	return &SignalHandler{signals: signals, history: history}, nil
}

type createSignalRequest struct {
	SignalTypeID string     `json:"signal_type_id" validate:"required"`
	Body         string     `json:"body" validate:"required"`
	ActiveFrom   *time.Time `json:"active_from"`
	AssignedToID string     `json:"assigned_to_id"`
	Notify       *bool      `json:"notify"`
}

type updateSignalRequest struct {
	SignalTypeID *string    `json:"signal_type_id"`
	StatusID     *string    `json:"status_id"`
	Body         *string    `json:"body"`
	ActiveFrom   *time.Time `json:"active_from"`
	AssignedToID *string    `json:"assigned_to_id"`
}

// Create reports a new signal.
func (h *SignalHandler) Create(c *gin.Context) {
	var req createSignalRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.CreateSignalInput{
		SignalTypeID: req.SignalTypeID,
		Body:         req.Body,
		AssignedToID: req.AssignedToID,
		Notify:       req.Notify,
	}
	if req.ActiveFrom != nil {
		input.ActiveFrom = *req.ActiveFrom
	}

	signal, err := h.signals.Create(requestContext(c), input, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, signal)
}

// List returns signals matching the query filters.
func (h *SignalHandler) List(c *gin.Context) {
	input := services.ListSignalsInput{
		Page:            parseIntQuery(c, "page", 1),
		PageSize:        parseIntQuery(c, "per_page", 25),
		IncludeArchived: parseBoolQuery(c, "archived"),
		StatusID:        strings.TrimSpace(c.Query("status_id")),
		SignalTypeID:    strings.TrimSpace(c.Query("type_id")),
		Unassigned:      parseBoolQuery(c, "unassigned"),
		Search:          c.Query("q"),
	}
	if parseBoolQuery(c, "mine") {
		input.AssignedToID = currentActor(c).UserID
	} else {
		input.AssignedToID = strings.TrimSpace(c.Query("assigned_to"))
	}

	signals, total, err := h.signals.List(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, signals, listMeta(input.Page, input.PageSize, total))
}

// Get returns a single signal.
func (h *SignalHandler) Get(c *gin.Context) {
	signal, err := h.signals.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, signal)
}

// Update applies a multi-field edit.
func (h *SignalHandler) Update(c *gin.Context) {
	var req updateSignalRequest
	if !bindAndValidate(c, &req) {
		return
	}

	signal, err := h.signals.Update(requestContext(c), c.Param("id"), services.UpdateSignalInput{
		SignalTypeID: req.SignalTypeID,
		StatusID:     req.StatusID,
		Body:         req.Body,
		ActiveFrom:   req.ActiveFrom,
		AssignedToID: req.AssignedToID,
	}, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, signal)
}

type setStatusRequest struct {
	StatusID string `json:"status_id"`
}

// SetStatus moves the signal to another status.
func (h *SignalHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	signal, err := h.signals.SetStatus(requestContext(c), c.Param("id"), req.StatusID, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, signal)
}

type setTypeRequest struct {
	TypeID string `json:"type_id" validate:"required"`
}

// SetType recategorises the signal.
func (h *SignalHandler) SetType(c *gin.Context) {
	var req setTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	signal, err := h.signals.SetType(requestContext(c), c.Param("id"), req.TypeID, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, signal)
}

type setActiveFromRequest struct {
	ActiveFrom time.Time `json:"active_from" validate:"required"`
}

// SetActiveFrom moves the signal's visibility start.
func (h *SignalHandler) SetActiveFrom(c *gin.Context) {
	var req setActiveFromRequest
	if !bindAndValidate(c, &req) {
		return
	}

	signal, err := h.signals.SetActiveFrom(requestContext(c), c.Param("id"), req.ActiveFrom, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, signal)
}

type setAssigneeRequest struct {
	UserID string `json:"user_id"`
}

// SetAssignee hands the signal to another user, or clears the assignee.
func (h *SignalHandler) SetAssignee(c *gin.Context) {
	var req setAssigneeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	signal, err := h.signals.SetAssignee(requestContext(c), c.Param("id"), req.UserID, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, signal)
}

// ToggleArchive flips the archived flag.
func (h *SignalHandler) ToggleArchive(c *gin.Context) {
	signal, err := h.signals.ToggleArchive(requestContext(c), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, signal)
}

type addNoteRequest struct {
	Body string `json:"body" validate:"required"`
}

// AddNote appends a note to the signal.
func (h *SignalHandler) AddNote(c *gin.Context) {
	var req addNoteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	note, err := h.signals.AddNote(requestContext(c), c.Param("id"), req.Body, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, note)
}

// ListNotes returns the signal's notes.
func (h *SignalHandler) ListNotes(c *gin.Context) {
	notes, err := h.signals.ListNotes(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, notes)
}

// History returns the signal's audit trail with display labels.
func (h *SignalHandler) History(c *gin.Context) {
	events, err := h.history.ListForEntity(requestContext(c), models.KindSignal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, presentHistory(events))
}

func listMeta(page, perPage int, total int64) *response.Meta {
	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	}
}
