package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Note is a free-text remark attached to any tracked entity. Append-only,
// listed newest first.
type Note struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	EntityKindValue Kind   `gorm:"column:entity_kind;type:varchar(40);not null;index:idx_notes_entity" json:"entity_kind"`
	EntityIDValue   string `gorm:"column:entity_id;type:uuid;not null;index:idx_notes_entity" json:"entity_id"`

	AuthorID *string `gorm:"type:uuid" json:"author_id"`
	Author   *User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Body string `gorm:"type:text;not null" json:"body"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
