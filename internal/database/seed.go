package database

import (
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/models"
)

// SeedDefaults populates the default status sets, usages, statuses and
// types. Safe to run repeatedly: statuses are upserted without touching
// default-ness, then a single exclusive sweep guarantees at most one
// default per set.
func SeedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		signalsSet, err := ensureStatusSet(tx, "signals", "Signals")
		if err != nil {
			return err
		}
		tasksSet, err := ensureStatusSet(tx, "tasks", "Tasks")
		if err != nil {
			return err
		}

		if err := ensureUsage(tx, models.ModuleSignals, signalsSet.ID); err != nil {
			return err
		}
		if err := ensureUsage(tx, models.ModuleTasks, tasksSet.ID); err != nil {
			return err
		}

		openStatus, err := ensureStatus(tx, signalsSet.ID, "open", "Open", 10, false, true)
		if err != nil {
			return err
		}
		if _, err := ensureStatus(tx, signalsSet.ID, "done", "Done", 90, true, false); err != nil {
			return err
		}
		if err := clearOtherDefaults(tx, signalsSet.ID, openStatus.ID); err != nil {
			return err
		}

		todoStatus, err := ensureStatus(tx, tasksSet.ID, "todo", "To do", 10, false, true)
		if err != nil {
			return err
		}
		if _, err := ensureStatus(tx, tasksSet.ID, "done", "Done", 90, true, false); err != nil {
			return err
		}
		if err := clearOtherDefaults(tx, tasksSet.ID, todoStatus.ID); err != nil {
			return err
		}

		if err := ensureType(tx, &models.SignalType{Name: "General"}); err != nil {
			return err
		}
		return ensureType(tx, &models.TaskType{Name: "General"})
	})
}

func ensureStatusSet(tx *gorm.DB, key, name string) (*models.StatusSet, error) {
	var set models.StatusSet
	err := tx.Where(models.StatusSet{Key: key}).
		Attrs(models.StatusSet{Name: name, Enabled: true}).
		FirstOrCreate(&set).Error
	if err != nil {
		return nil, err
	}
	return &set, nil
}

func ensureUsage(tx *gorm.DB, moduleKey, setID string) error {
	var usage models.StatusUsage
	if err := tx.Where(models.StatusUsage{ModuleKey: moduleKey}).
		Attrs(models.StatusUsage{StatusSetID: &setID, Enabled: true}).
		FirstOrCreate(&usage).Error; err != nil {
		return err
	}

	if usage.StatusSetID != nil && *usage.StatusSetID == setID && usage.Enabled {
		return nil
	}
	return tx.Model(&usage).Updates(map[string]any{
		"status_set_id": setID,
		"enabled":       true,
	}).Error
}

// ensureStatus upserts a status inside a set. Existing rows get their
// label, sort order and done flag refreshed; the default flag is never
// changed on update (that is handled by clearOtherDefaults).
func ensureStatus(tx *gorm.DB, setID, key, label string, sortOrder int, isDone, isDefault bool) (*models.Status, error) {
	var status models.Status
	err := tx.Where(models.Status{StatusSetID: setID, Key: key}).
		Attrs(models.Status{
			Label:     label,
			SortOrder: sortOrder,
			IsDone:    isDone,
			IsDefault: isDefault,
		}).
		FirstOrCreate(&status).Error
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if status.Label != label {
		updates["label"] = label
	}
	if status.SortOrder != sortOrder {
		updates["sort_order"] = sortOrder
	}
	if status.IsDone != isDone {
		updates["is_done"] = isDone
	}
	if len(updates) == 0 {
		return &status, nil
	}

	if err := tx.Model(&status).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

func clearOtherDefaults(tx *gorm.DB, setID, keepID string) error {
	return tx.Model(&models.Status{}).
		Where("status_set_id = ? AND id <> ?", setID, keepID).
		Update("is_default", false).Error
}

func ensureType[T any](tx *gorm.DB, value *T) error {
	return tx.Where(value).FirstOrCreate(new(T)).Error
}
