package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChangeSet maps a field name to its [old, new] pair. An empty set is valid
// (a "created" event carries no changes).
type ChangeSet map[string][]any

// Change builds the [old, new] pair stored in a ChangeSet.
func Change(oldValue, newValue any) []any {
	return []any{oldValue, newValue}
}

// HistoryEvent is one immutable audit record of a single mutation on a
// single entity. The entity reference is weak: events outlive the record
// they describe, and no cascade repairs dangling references.
type HistoryEvent struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	EntityKindValue Kind   `gorm:"column:entity_kind;type:varchar(40);not null;index:idx_history_entity" json:"entity_kind"`
	EntityIDValue   string `gorm:"column:entity_id;type:uuid;not null;index:idx_history_entity" json:"entity_id"`

	// ActorID is null for system-originated events.
	ActorID *string `gorm:"type:uuid" json:"actor_id"`
	Actor   *User   `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	// ActorName snapshots the actor's name at write time so the activity
	// feed stays searchable after account changes.
	ActorName string `json:"actor_name"`

	Action  string         `gorm:"type:varchar(60);not null;index" json:"action"`
	Changes datatypes.JSON `json:"changes"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (h *HistoryEvent) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// DecodeChanges unmarshals the stored diff payload. Returns an empty set on
// a missing or malformed payload rather than failing a read.
func (h *HistoryEvent) DecodeChanges() ChangeSet {
	if len(h.Changes) == 0 {
		return ChangeSet{}
	}
	var out ChangeSet
	if err := json.Unmarshal(h.Changes, &out); err != nil {
		return ChangeSet{}
	}
	return out
}
