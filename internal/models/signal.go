package models

import "time"

// Signal is an incident or notice reported to the staff team. A nil
// AssignedToID means the signal is visible to all staff.
type Signal struct {
	BaseModel

	SignalTypeID string      `gorm:"type:uuid;not null;index" json:"signal_type_id"`
	SignalType   *SignalType `gorm:"foreignKey:SignalTypeID" json:"signal_type,omitempty"`

	StatusID *string `gorm:"type:uuid;index" json:"status_id"`
	Status   *Status `gorm:"foreignKey:StatusID" json:"status,omitempty"`

	Body       string    `gorm:"type:text;not null" json:"body"`
	ActiveFrom time.Time `gorm:"index" json:"active_from"`

	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id"`
	AssignedTo   *User   `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`

	CreatedByID *string `gorm:"type:uuid" json:"created_by_id"`
	CreatedBy   *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	// Notify is a stored intent flag; fan-out currently only happens at
	// creation time regardless of its value.
	Notify bool `gorm:"default:true" json:"notify"`

	IsArchived bool `gorm:"default:false;index" json:"is_archived"`
}

func (s *Signal) EntityKind() Kind { return KindSignal }
func (s *Signal) EntityID() string { return s.ID }
