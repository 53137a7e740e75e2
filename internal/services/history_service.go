package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/pkg/metrics"
)

// History action vocabulary. Unrecognised actions are accepted and get a
// derived display label, so new actions can ship without a migration.
const (
	ActionCreated           = "created"
	ActionUpdated           = "updated"
	ActionDeleted           = "deleted"
	ActionStatusChanged     = "status_changed"
	ActionTypeChanged       = "type_changed"
	ActionActiveFromChanged = "active_from_changed"
	ActionReassigned        = "reassigned"
	ActionArchivedToggled   = "archived_toggled"
	ActionNoteAdded         = "note_added"
)

var actionLabels = map[string]string{
	ActionCreated:           "Created",
	ActionUpdated:           "Updated",
	ActionDeleted:           "Deleted",
	ActionStatusChanged:     "Status changed",
	ActionTypeChanged:       "Type changed",
	ActionActiveFromChanged: "Active from changed",
	ActionReassigned:        "Reassigned",
	ActionArchivedToggled:   "Archive toggled",
	ActionNoteAdded:         "Note added",
}

// ActionLabel returns the display label for an action. Unknown actions get
// a title-cased, underscore-to-space fallback.
func ActionLabel(action string) string {
	if label, ok := actionLabels[action]; ok {
		return label
	}

	label := strings.ReplaceAll(strings.TrimSpace(action), "_", " ")
	if label == "" {
		return label
	}
	runes := []rune(strings.ToLower(label))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}

// RecordHistoryInput captures a single audit event to persist.
type RecordHistoryInput struct {
	Entity  models.Entity
	Actor   auth.Actor
	Action  string
	Changes models.ChangeSet
}

// ActivityFilter encapsulates optional filters for the activity feed.
type ActivityFilter struct {
	Kind        models.Kind
	ExcludeKind models.Kind
	Action      string
	Search      string
}

// ActivityListOptions controls pagination and filtering for feed queries.
type ActivityListOptions struct {
	Page     int
	PageSize int
	Filter   ActivityFilter
}

// HistoryService persists and retrieves the append-only audit history.
// Events have no update or delete path once written.
type HistoryService struct {
	db *gorm.DB
}

// NewHistoryService constructs a HistoryService using the provided database handle.
func NewHistoryService(db *gorm.DB) (*HistoryService, error) {
	if db == nil {
		return nil, errors.New("history service: db is required")
	}
	return &HistoryService{db: db}, nil
}

// Record stores one immutable history event for an entity.
func (s *HistoryService) Record(ctx context.Context, input RecordHistoryInput) (*models.HistoryEvent, error) {
	ctx = ensureContext(ctx)
	return recordHistory(s.db.WithContext(ctx), input)
}

// RecordTx stores a history event inside an already-open transaction so the
// event commits or rolls back with the mutation that caused it.
func (s *HistoryService) RecordTx(tx *gorm.DB, input RecordHistoryInput) (*models.HistoryEvent, error) {
	if tx == nil {
		return nil, errors.New("history service: tx is required")
	}
	return recordHistory(tx, input)
}

func recordHistory(tx *gorm.DB, input RecordHistoryInput) (*models.HistoryEvent, error) {
	if input.Entity == nil {
		return nil, errors.New("history service: entity is required")
	}

	kind := input.Entity.EntityKind()
	if !models.KnownKind(kind) {
		return nil, fmt.Errorf("history service: unknown entity kind %q", kind)
	}
	entityID := strings.TrimSpace(input.Entity.EntityID())
	if entityID == "" {
		return nil, errors.New("history service: entity id is required")
	}
	action := strings.TrimSpace(input.Action)
	if action == "" {
		return nil, errors.New("history service: action is required")
	}

	changes := input.Changes
	if changes == nil {
		changes = models.ChangeSet{}
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("history service: marshal changes: %w", err)
	}

	event := models.HistoryEvent{
		EntityKindValue: kind,
		EntityIDValue:   entityID,
		Action:          action,
		Changes:         payload,
	}

	if input.Actor.IsAuthenticated && input.Actor.UserID != "" {
		actorID := input.Actor.UserID
		event.ActorID = &actorID
		event.ActorName = input.Actor.DisplayName
	}

	if err := tx.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("history service: record event: %w", err)
	}

	metrics.HistoryEvents.WithLabelValues(string(kind), action).Inc()
	return &event, nil
}

// ListForEntity returns all events for one entity, most recent first.
func (s *HistoryService) ListForEntity(ctx context.Context, kind models.Kind, entityID string) ([]models.HistoryEvent, error) {
	ctx = ensureContext(ctx)

	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, errors.New("history service: entity id is required")
	}

	var events []models.HistoryEvent
	if err := s.db.WithContext(ctx).
		Preload("Actor").
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("history service: list events: %w", err)
	}

	return events, nil
}

// ListActivity returns the cross-entity activity feed, most recent first.
func (s *HistoryService) ListActivity(ctx context.Context, opts ActivityListOptions) ([]models.HistoryEvent, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 25
	}

	query := s.db.WithContext(ctx).Model(&models.HistoryEvent{})
	query = s.applyActivityFilter(query, opts.Filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("history service: count events: %w", err)
	}

	var events []models.HistoryEvent
	if err := query.
		Preload("Actor").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("history service: list activity: %w", err)
	}

	return events, total, nil
}

func (s *HistoryService) applyActivityFilter(query *gorm.DB, filter ActivityFilter) *gorm.DB {
	if filter.Kind != "" {
		query = query.Where("entity_kind = ?", filter.Kind)
	}
	if filter.ExcludeKind != "" {
		query = query.Where("entity_kind <> ?", filter.ExcludeKind)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		if s.db.Dialector.Name() == "postgres" {
			query = query.Where(
				"actor_name ILIKE ? OR action ILIKE ? OR changes::text ILIKE ?",
				pattern, pattern, pattern,
			)
		} else {
			query = query.Where(
				"actor_name LIKE ? OR action LIKE ? OR changes LIKE ?",
				pattern, pattern, pattern,
			)
		}
	}

	return query
}

// DistinctActions lists the action values present in the feed, excluding
// the supplied kind, for building filter dropdowns.
func (s *HistoryService) DistinctActions(ctx context.Context, excludeKind models.Kind) ([]string, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.HistoryEvent{}).Distinct("action").Order("action")
	if excludeKind != "" {
		query = query.Where("entity_kind <> ?", excludeKind)
	}

	var actions []string
	if err := query.Pluck("action", &actions).Error; err != nil {
		return nil, fmt.Errorf("history service: distinct actions: %w", err)
	}
	return actions, nil
}
