package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/models"
	apperrors "github.com/opsdesk/opsdesk/pkg/errors"
)

// TypeInput describes an admin create or update of a category.
type TypeInput struct {
	Name        string
	Description string
	SortOrder   int
	IsActive    *bool
}

// TypeService manages the flat signal and task categories.
type TypeService struct {
	db *gorm.DB
}

// NewTypeService constructs a TypeService.
func NewTypeService(db *gorm.DB) (*TypeService, error) {
	if db == nil {
		return nil, errors.New("type service: db is required")
	}
	return &TypeService{db: db}, nil
}

// ListSignalTypes returns signal categories ordered for display. With
// activeOnly set, disabled categories are hidden (existing records keep
// referencing them).
func (s *TypeService) ListSignalTypes(ctx context.Context, activeOnly bool) ([]models.SignalType, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("sort_order, name")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var types []models.SignalType
	if err := query.Find(&types).Error; err != nil {
		return nil, fmt.Errorf("type service: list signal types: %w", err)
	}
	return types, nil
}

// ListTaskTypes returns task categories ordered for display.
func (s *TypeService) ListTaskTypes(ctx context.Context, activeOnly bool) ([]models.TaskType, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("sort_order, name")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var types []models.TaskType
	if err := query.Find(&types).Error; err != nil {
		return nil, fmt.Errorf("type service: list task types: %w", err)
	}
	return types, nil
}

// CreateSignalType registers a new signal category.
func (s *TypeService) CreateSignalType(ctx context.Context, input TypeInput) (*models.SignalType, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("type name is required")
	}

	record := models.SignalType{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		SortOrder:   input.SortOrder,
		IsActive:    true,
	}
	if input.IsActive != nil {
		record.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("type service: create signal type: %w", err)
	}
	return &record, nil
}

// CreateTaskType registers a new task category.
func (s *TypeService) CreateTaskType(ctx context.Context, input TypeInput) (*models.TaskType, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("type name is required")
	}

	record := models.TaskType{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		SortOrder:   input.SortOrder,
		IsActive:    true,
	}
	if input.IsActive != nil {
		record.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("type service: create task type: %w", err)
	}
	return &record, nil
}

// UpdateSignalType applies an admin edit to a signal category.
func (s *TypeService) UpdateSignalType(ctx context.Context, id string, input TypeInput) (*models.SignalType, error) {
	ctx = ensureContext(ctx)

	var record models.SignalType
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("type service: load signal type: %w", err)
	}

	updates := typeUpdates(input)
	if len(updates) == 0 {
		return &record, nil
	}

	if err := s.db.WithContext(ctx).Model(&record).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("type service: update signal type: %w", err)
	}
	return &record, nil
}

// UpdateTaskType applies an admin edit to a task category.
func (s *TypeService) UpdateTaskType(ctx context.Context, id string, input TypeInput) (*models.TaskType, error) {
	ctx = ensureContext(ctx)

	var record models.TaskType
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("type service: load task type: %w", err)
	}

	updates := typeUpdates(input)
	if len(updates) == 0 {
		return &record, nil
	}

	if err := s.db.WithContext(ctx).Model(&record).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("type service: update task type: %w", err)
	}
	return &record, nil
}

func typeUpdates(input TypeInput) map[string]any {
	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" {
		updates["name"] = name
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		updates["description"] = desc
	}
	if input.SortOrder != 0 {
		updates["sort_order"] = input.SortOrder
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	return updates
}
