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

// EnsureStatusInput describes the idempotent status upsert.
type EnsureStatusInput struct {
	StatusSetID string
	Key         string
	Label       string
	SortOrder   int
	IsDone      bool
	IsDefault   bool
}

// StatusService manages the status reference data: sets, per-module usage
// and the statuses themselves.
type StatusService struct {
	db *gorm.DB
}

// NewStatusService constructs a StatusService.
func NewStatusService(db *gorm.DB) (*StatusService, error) {
	if db == nil {
		return nil, errors.New("status service: db is required")
	}
	return &StatusService{db: db}, nil
}

// GetDefaultStatus resolves the default status for a module through the
// usage -> set -> default chain. Every stage may legitimately yield
// nothing; callers treat a nil status as "leave status unset".
func (s *StatusService) GetDefaultStatus(ctx context.Context, moduleKey string) (*models.Status, error) {
	ctx = ensureContext(ctx)
	return resolveDefaultStatus(s.db.WithContext(ctx), moduleKey)
}

func resolveDefaultStatus(tx *gorm.DB, moduleKey string) (*models.Status, error) {
	moduleKey = strings.TrimSpace(moduleKey)
	if moduleKey == "" {
		return nil, errors.New("status service: module key is required")
	}

	var usage models.StatusUsage
	err := tx.Where("module_key = ? AND enabled = ?", moduleKey, true).First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && usage.StatusSetID == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status service: resolve usage: %w", err)
	}

	var set models.StatusSet
	err = tx.Where("id = ? AND enabled = ?", *usage.StatusSetID, true).First(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status service: resolve set: %w", err)
	}

	var status models.Status
	err = tx.Where("status_set_id = ? AND is_default = ?", set.ID, true).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status service: resolve default: %w", err)
	}

	return &status, nil
}

// EnsureStatus creates the status if absent; otherwise it refreshes label,
// sort order and done flag when they differ. The default flag is never
// touched on update. SetDefault is the only path that changes it, so
// repeated runs cannot produce two defaults in one set.
func (s *StatusService) EnsureStatus(ctx context.Context, input EnsureStatusInput) (*models.Status, error) {
	ctx = ensureContext(ctx)

	key := strings.TrimSpace(input.Key)
	if key == "" {
		return nil, apperrors.NewBadRequest("status key is required")
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return nil, apperrors.NewBadRequest("status label is required")
	}

	var result *models.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var set models.StatusSet
		if err := tx.First(&set, "id = ?", input.StatusSetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewBadRequest("status set does not exist")
			}
			return fmt.Errorf("status service: load set: %w", err)
		}

		var status models.Status
		err := tx.Where("status_set_id = ? AND key = ?", set.ID, key).First(&status).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			status = models.Status{
				StatusSetID: set.ID,
				Key:         key,
				Label:       label,
				SortOrder:   input.SortOrder,
				IsDone:      input.IsDone,
				IsDefault:   input.IsDefault,
			}
			if err := tx.Create(&status).Error; err != nil {
				return fmt.Errorf("status service: create status: %w", err)
			}
			if status.IsDefault {
				if err := clearOtherSetDefaults(tx, set.ID, status.ID); err != nil {
					return err
				}
			}
		case err != nil:
			return fmt.Errorf("status service: load status: %w", err)
		default:
			updates := map[string]any{}
			if status.Label != label {
				updates["label"] = label
			}
			if status.SortOrder != input.SortOrder {
				updates["sort_order"] = input.SortOrder
			}
			if status.IsDone != input.IsDone {
				updates["is_done"] = input.IsDone
			}
			if len(updates) > 0 {
				if err := tx.Model(&status).Updates(updates).Error; err != nil {
					return fmt.Errorf("status service: update status: %w", err)
				}
			}
		}

		result = &status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetDefault makes one status the default of its set and clears the flag
// on every other status in the set, inside a single transaction.
func (s *StatusService) SetDefault(ctx context.Context, statusSetID, statusID string) (*models.Status, error) {
	ctx = ensureContext(ctx)

	var result *models.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var status models.Status
		if err := tx.Where("id = ? AND status_set_id = ?", statusID, statusSetID).First(&status).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewBadRequest("status does not belong to the supplied set")
			}
			return fmt.Errorf("status service: load status: %w", err)
		}

		if !status.IsDefault {
			if err := tx.Model(&status).Update("is_default", true).Error; err != nil {
				return fmt.Errorf("status service: set default: %w", err)
			}
			status.IsDefault = true
		}

		if err := clearOtherSetDefaults(tx, statusSetID, status.ID); err != nil {
			return err
		}

		result = &status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func clearOtherSetDefaults(tx *gorm.DB, setID, keepID string) error {
	if err := tx.Model(&models.Status{}).
		Where("status_set_id = ? AND id <> ?", setID, keepID).
		Update("is_default", false).Error; err != nil {
		return fmt.Errorf("status service: clear other defaults: %w", err)
	}
	return nil
}

// ListForModule returns the statuses of the module's enabled set, ordered
// by sort order then label. A module without an enabled usage yields an
// empty list.
func (s *StatusService) ListForModule(ctx context.Context, moduleKey string) ([]models.Status, error) {
	ctx = ensureContext(ctx)

	var usage models.StatusUsage
	err := s.db.WithContext(ctx).
		Where("module_key = ? AND enabled = ?", strings.TrimSpace(moduleKey), true).
		First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && usage.StatusSetID == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status service: resolve usage: %w", err)
	}

	var statuses []models.Status
	if err := s.db.WithContext(ctx).
		Where("status_set_id = ?", *usage.StatusSetID).
		Order("sort_order, label").
		Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("status service: list statuses: %w", err)
	}
	return statuses, nil
}

// statusInModuleSet verifies, inside the caller's transaction, that a
// status id belongs to the module's enabled set. Used by mutation services
// at write time so a stale admin change cannot slip through.
func statusInModuleSet(tx *gorm.DB, moduleKey, statusID string) (bool, error) {
	var usage models.StatusUsage
	err := tx.Where("module_key = ? AND enabled = ?", moduleKey, true).First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && usage.StatusSetID == nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("status service: resolve usage: %w", err)
	}

	var count int64
	if err := tx.Model(&models.Status{}).
		Where("id = ? AND status_set_id = ?", statusID, *usage.StatusSetID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("status service: check status scope: %w", err)
	}
	return count > 0, nil
}

// ListSets returns all status sets with their statuses.
func (s *StatusService) ListSets(ctx context.Context) ([]models.StatusSet, error) {
	ctx = ensureContext(ctx)

	var sets []models.StatusSet
	if err := s.db.WithContext(ctx).
		Preload("Statuses", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order, label")
		}).
		Order("key").
		Find(&sets).Error; err != nil {
		return nil, fmt.Errorf("status service: list sets: %w", err)
	}
	return sets, nil
}

// CreateSet registers a new status set.
func (s *StatusService) CreateSet(ctx context.Context, key, name string) (*models.StatusSet, error) {
	ctx = ensureContext(ctx)

	key = strings.TrimSpace(key)
	name = strings.TrimSpace(name)
	if key == "" {
		return nil, apperrors.NewBadRequest("set key is required")
	}
	if name == "" {
		return nil, apperrors.NewBadRequest("set name is required")
	}

	set := models.StatusSet{Key: key, Name: name, Enabled: true}
	if err := s.db.WithContext(ctx).Create(&set).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("status service: create set: %w", err)
	}
	return &set, nil
}

// SetUsage points a module at a status set (or clears the mapping with an
// empty set id) and toggles it. One usage row per module.
func (s *StatusService) SetUsage(ctx context.Context, moduleKey, statusSetID string, enabled bool) (*models.StatusUsage, error) {
	ctx = ensureContext(ctx)

	moduleKey = strings.TrimSpace(moduleKey)
	if moduleKey == "" {
		return nil, apperrors.NewBadRequest("module key is required")
	}

	var result *models.StatusUsage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setID *string
		if trimmed := strings.TrimSpace(statusSetID); trimmed != "" {
			var set models.StatusSet
			if err := tx.First(&set, "id = ?", trimmed).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NewBadRequest("status set does not exist")
				}
				return fmt.Errorf("status service: load set: %w", err)
			}
			setID = &set.ID
		}

		var usage models.StatusUsage
		err := tx.Where("module_key = ?", moduleKey).First(&usage).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			usage = models.StatusUsage{ModuleKey: moduleKey, StatusSetID: setID, Enabled: enabled}
			if err := tx.Create(&usage).Error; err != nil {
				return fmt.Errorf("status service: create usage: %w", err)
			}
		case err != nil:
			return fmt.Errorf("status service: load usage: %w", err)
		default:
			if err := tx.Model(&usage).Updates(map[string]any{
				"status_set_id": setID,
				"enabled":       enabled,
			}).Error; err != nil {
				return fmt.Errorf("status service: update usage: %w", err)
			}
			usage.StatusSetID = setID
			usage.Enabled = enabled
		}

		result = &usage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetUsage returns the usage row for a module, or nil when unmapped.
func (s *StatusService) GetUsage(ctx context.Context, moduleKey string) (*models.StatusUsage, error) {
	ctx = ensureContext(ctx)

	var usage models.StatusUsage
	err := s.db.WithContext(ctx).
		Preload("StatusSet").
		Where("module_key = ?", strings.TrimSpace(moduleKey)).
		First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status service: load usage: %w", err)
	}
	return &usage, nil
}
