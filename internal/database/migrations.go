package database

import (
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Person{},
		&models.SignalType{},
		&models.TaskType{},
		&models.StatusSet{},
		&models.Status{},
		&models.StatusUsage{},
		&models.Signal{},
		&models.Task{},
		&models.Note{},
		&models.HistoryEvent{},
		&models.Notification{},
	)
}
