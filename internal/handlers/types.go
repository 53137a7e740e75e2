package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/opsdesk/opsdesk/pkg/response"
)

// TypeHandler exposes the signal and task category endpoints.
type TypeHandler struct {
	types *services.TypeService
}

// NewTypeHandler constructs a type handler.
func NewTypeHandler(db *gorm.DB) (*TypeHandler, error) {
	types, err := services.NewTypeService(db)
	if err != nil {
		return nil, err
	}
	return &TypeHandler{types: types}, nil
}

type typeRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

type typeUpdateRequest struct {
	Name        string `json:"name" validate:"omitempty,max=120"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

// ListSignalTypes returns signal categories. Pass all=true to include
// inactive ones.
func (h *TypeHandler) ListSignalTypes(c *gin.Context) {
	types, err := h.types.ListSignalTypes(requestContext(c), !parseBoolQuery(c, "all"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, types)
}

// ListTaskTypes returns task categories.
func (h *TypeHandler) ListTaskTypes(c *gin.Context) {
	types, err := h.types.ListTaskTypes(requestContext(c), !parseBoolQuery(c, "all"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, types)
}

// CreateSignalType registers a signal category.
func (h *TypeHandler) CreateSignalType(c *gin.Context) {
	var req typeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	created, err := h.types.CreateSignalType(requestContext(c), services.TypeInput{
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}

// CreateTaskType registers a task category.
func (h *TypeHandler) CreateTaskType(c *gin.Context) {
	var req typeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	created, err := h.types.CreateTaskType(requestContext(c), services.TypeInput{
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}

// UpdateSignalType edits a signal category.
func (h *TypeHandler) UpdateSignalType(c *gin.Context) {
	var req typeUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	updated, err := h.types.UpdateSignalType(requestContext(c), c.Param("id"), services.TypeInput{
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

// UpdateTaskType edits a task category.
func (h *TypeHandler) UpdateTaskType(c *gin.Context) {
	var req typeUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	updated, err := h.types.UpdateTaskType(requestContext(c), c.Param("id"), services.TypeInput{
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}
