package models

import "time"

// NotificationBodyLimit bounds the stored body length; longer signal bodies
// are truncated at fan-out time.
const NotificationBodyLimit = 4000

// Notification is a persisted, pollable in-app notification. Created only
// by the signal-creation fan-out; never auto-deleted.
type Notification struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	EntityKindValue Kind   `gorm:"column:entity_kind;type:varchar(40);index:idx_notifications_entity" json:"entity_kind"`
	EntityIDValue   string `gorm:"column:entity_id;type:uuid;index:idx_notifications_entity" json:"entity_id"`

	Title string `gorm:"type:varchar(255);not null" json:"title"`
	Body  string `gorm:"type:text" json:"body"`
	URL   string `gorm:"type:text" json:"url"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}

func (n *Notification) EntityKind() Kind { return KindNotification }
func (n *Notification) EntityID() string { return n.ID }
