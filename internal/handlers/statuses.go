package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/opsdesk/opsdesk/pkg/response"
)

// StatusHandler exposes the status reference data endpoints.
type StatusHandler struct {
	statuses *services.StatusService
}

// NewStatusHandler constructs a status handler.
func NewStatusHandler(db *gorm.DB) (*StatusHandler, error) {
	statuses, err := services.NewStatusService(db)
	if err != nil {
		return nil, err
	}
	return &StatusHandler{statuses: statuses}, nil
}

// ListForModule returns the statuses available to one module.
func (h *StatusHandler) ListForModule(c *gin.Context) {
	statuses, err := h.statuses.ListForModule(requestContext(c), c.Param("module"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, statuses)
}

// ListSets returns all status sets with their statuses.
func (h *StatusHandler) ListSets(c *gin.Context) {
	sets, err := h.statuses.ListSets(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sets)
}

type createSetRequest struct {
	Key  string `json:"key" validate:"required,max=40"`
	Name string `json:"name" validate:"required,max=120"`
}

// CreateSet registers a status set.
func (h *StatusHandler) CreateSet(c *gin.Context) {
	var req createSetRequest
	if !bindAndValidate(c, &req) {
		return
	}

	set, err := h.statuses.CreateSet(requestContext(c), req.Key, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, set)
}

type ensureStatusRequest struct {
	Key       string `json:"key" validate:"required,max=40"`
	Label     string `json:"label" validate:"required,max=120"`
	SortOrder int    `json:"sort_order"`
	IsDone    bool   `json:"is_done"`
	IsDefault bool   `json:"is_default"`
}

// EnsureStatus upserts a status inside a set.
func (h *StatusHandler) EnsureStatus(c *gin.Context) {
	var req ensureStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.statuses.EnsureStatus(requestContext(c), services.EnsureStatusInput{
		StatusSetID: c.Param("id"),
		Key:         req.Key,
		Label:       req.Label,
		SortOrder:   req.SortOrder,
		IsDone:      req.IsDone,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

type setDefaultRequest struct {
	StatusID string `json:"status_id" validate:"required"`
}

// SetDefault makes one status the exclusive default of its set.
func (h *StatusHandler) SetDefault(c *gin.Context) {
	var req setDefaultRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status, err := h.statuses.SetDefault(requestContext(c), c.Param("id"), req.StatusID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

type setUsageRequest struct {
	StatusSetID string `json:"status_set_id"`
	Enabled     bool   `json:"enabled"`
}

// SetUsage points a module at a status set.
func (h *StatusHandler) SetUsage(c *gin.Context) {
	var req setUsageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	usage, err := h.statuses.SetUsage(requestContext(c), c.Param("module"), req.StatusSetID, req.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, usage)
}

// GetUsage returns the usage row for one module.
func (h *StatusHandler) GetUsage(c *gin.Context) {
	usage, err := h.statuses.GetUsage(requestContext(c), strings.TrimSpace(c.Param("module")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, usage)
}
