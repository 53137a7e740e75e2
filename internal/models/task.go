package models

import "time"

// Task is a unit of work assigned to staff. Like Signal it carries notes,
// history and an optional single assignee.
type Task struct {
	BaseModel

	TaskTypeID string    `gorm:"type:uuid;not null;index" json:"task_type_id"`
	TaskType   *TaskType `gorm:"foreignKey:TaskTypeID" json:"task_type,omitempty"`

	StatusID *string `gorm:"type:uuid;index" json:"status_id"`
	Status   *Status `gorm:"foreignKey:StatusID" json:"status,omitempty"`

	Title       string `gorm:"type:varchar(160);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	DueAt *time.Time `gorm:"index" json:"due_at"`

	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id"`
	AssignedTo   *User   `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`

	CreatedByID *string `gorm:"type:uuid" json:"created_by_id"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	Notify bool `gorm:"default:true" json:"notify"`

	IsArchived bool `gorm:"default:false;index" json:"is_archived"`
}

func (t *Task) EntityKind() Kind { return KindTask }
func (t *Task) EntityID() string { return t.ID }
