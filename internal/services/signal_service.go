package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
	apperrors "github.com/opsdesk/opsdesk/pkg/errors"
)

// CreateSignalInput carries the fields accepted when reporting a signal.
type CreateSignalInput struct {
	SignalTypeID string
	Body         string
	ActiveFrom   time.Time
	AssignedToID string
	Notify       *bool
}

// UpdateSignalInput carries an edit over the mutable signal fields. Nil
// pointers mean "leave unchanged"; empty strings inside pointers clear
// optional references.
type UpdateSignalInput struct {
	SignalTypeID *string
	StatusID     *string
	Body         *string
	ActiveFrom   *time.Time
	AssignedToID *string
}

// ListSignalsInput defines filters for the signal list.
type ListSignalsInput struct {
	Page            int
	PageSize        int
	IncludeArchived bool
	StatusID        string
	SignalTypeID    string
	AssignedToID    string
	Unassigned      bool
	Search          string
}

// SignalService owns the signal lifecycle: creation with default status
// and notification fan-out, field mutations with history, notes and
// archival. Every mutation runs in one transaction with its history event.
type SignalService struct {
	db            *gorm.DB
	history       *HistoryService
	notifications *NotificationService
}

// NewSignalService constructs a SignalService.
func NewSignalService(db *gorm.DB, history *HistoryService, notifications *NotificationService) (*SignalService, error) {
	if db == nil {
		return nil, errors.New("signal service: db is required")
	}
	if history == nil {
		return nil, errors.New("signal service: history service is required")
	}
	if notifications == nil {
		return nil, errors.New("signal service: notification service is required")
	}
	return &SignalService{db: db, history: history, notifications: notifications}, nil
}

// Create stores a new signal, stamps the module's default status, records
// the creation event and fans out notifications. All four effects commit
// or roll back together.
func (s *SignalService) Create(ctx context.Context, input CreateSignalInput, actor auth.Actor) (*models.Signal, error) {
	ctx = ensureContext(ctx)

	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewBadRequest("signal body is required")
	}
	if strings.TrimSpace(input.SignalTypeID) == "" {
		return nil, apperrors.NewBadRequest("signal type is required")
	}

	signal := models.Signal{
		SignalTypeID: input.SignalTypeID,
		Body:         body,
		ActiveFrom:   input.ActiveFrom,
		AssignedToID: trimmedOrNil(input.AssignedToID),
		Notify:       true,
	}
	if input.Notify != nil {
		signal.Notify = *input.Notify
	}
	if signal.ActiveFrom.IsZero() {
		signal.ActiveFrom = time.Now().UTC()
	}
	if actor.IsAuthenticated && actor.UserID != "" {
		createdBy := actor.UserID
		signal.CreatedByID = &createdBy
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var signalType models.SignalType
		if err := tx.First(&signalType, "id = ? AND is_active = ?", signal.SignalTypeID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewBadRequest("signal type does not exist or is inactive")
			}
			return fmt.Errorf("signal service: load signal type: %w", err)
		}

		defaultStatus, err := resolveDefaultStatus(tx, models.ModuleSignals)
		if err != nil {
			return err
		}
		if defaultStatus != nil {
			signal.StatusID = &defaultStatus.ID
		}

		if err := tx.Create(&signal).Error; err != nil {
			return fmt.Errorf("signal service: create signal: %w", err)
		}

		if _, err := s.history.RecordTx(tx, RecordHistoryInput{
			Entity:  &signal,
			Actor:   actor,
			Action:  ActionCreated,
			Changes: models.ChangeSet{},
		}); err != nil {
			return err
		}

		if _, err := s.notifications.NotifyOnSignalCreatedTx(tx, &signal, actor); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, signal.ID)
}

// Get loads a signal with its references.
func (s *SignalService) Get(ctx context.Context, id string) (*models.Signal, error) {
	ctx = ensureContext(ctx)

	var signal models.Signal
	if err := s.db.WithContext(ctx).
		Preload("SignalType").
		Preload("Status").
		Preload("AssignedTo").
		Preload("CreatedBy").
		First(&signal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("signal service: load signal: %w", err)
	}
	return &signal, nil
}

// List returns signals matching the filters, newest first. Archived
// signals are hidden unless asked for.
func (s *SignalService) List(ctx context.Context, input ListSignalsInput) ([]models.Signal, int64, error) {
	ctx = ensureContext(ctx)

	page := input.Page
	if page <= 0 {
		page = 1
	}
	perPage := input.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 25
	}

	query := s.db.WithContext(ctx).Model(&models.Signal{})
	if !input.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}
	if input.StatusID != "" {
		query = query.Where("status_id = ?", input.StatusID)
	}
	if input.SignalTypeID != "" {
		query = query.Where("signal_type_id = ?", input.SignalTypeID)
	}
	if input.Unassigned {
		query = query.Where("assigned_to_id IS NULL")
	} else if input.AssignedToID != "" {
		query = query.Where("assigned_to_id = ?", input.AssignedToID)
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		pattern := "%" + search + "%"
		if s.db.Dialector.Name() == "postgres" {
			query = query.Where("body ILIKE ?", pattern)
		} else {
			query = query.Where("body LIKE ?", pattern)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("signal service: count signals: %w", err)
	}

	var signals []models.Signal
	if err := query.
		Preload("SignalType").
		Preload("Status").
		Preload("AssignedTo").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&signals).Error; err != nil {
		return nil, 0, fmt.Errorf("signal service: list signals: %w", err)
	}

	return signals, total, nil
}

// Update applies a multi-field edit. Only fields whose value actually
// changed appear in the recorded change set; an edit that changes nothing
// writes no history at all.
func (s *SignalService) Update(ctx context.Context, id string, input UpdateSignalInput, actor auth.Actor) (*models.Signal, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signal, err := loadSignalForUpdate(tx, id)
		if err != nil {
			return err
		}

		before := signalSnapshot(signal)

		if input.SignalTypeID != nil {
			typeID := strings.TrimSpace(*input.SignalTypeID)
			if typeID == "" {
				return apperrors.NewBadRequest("signal type cannot be cleared")
			}
			var signalType models.SignalType
			if err := tx.First(&signalType, "id = ?", typeID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NewBadRequest("signal type does not exist")
				}
				return fmt.Errorf("signal service: load signal type: %w", err)
			}
			signal.SignalTypeID = typeID
		}
		if input.StatusID != nil {
			statusID, err := resolveModuleStatus(tx, models.ModuleSignals, *input.StatusID)
			if err != nil {
				return err
			}
			signal.StatusID = statusID
		}
		if input.Body != nil {
			body := strings.TrimSpace(*input.Body)
			if body == "" {
				return apperrors.NewBadRequest("signal body is required")
			}
			signal.Body = body
		}
		if input.ActiveFrom != nil {
			signal.ActiveFrom = *input.ActiveFrom
		}
		if input.AssignedToID != nil {
			assignee, err := resolveAssignee(tx, *input.AssignedToID)
			if err != nil {
				return err
			}
			signal.AssignedToID = assignee
		}

		return persistSignalMutation(tx, s.history, signal, before, actor, ActionUpdated)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetStatus moves the signal to another status of the signals module's set.
func (s *SignalService) SetStatus(ctx context.Context, id, statusID string, actor auth.Actor) (*models.Signal, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signal, err := loadSignalForUpdate(tx, id)
		if err != nil {
			return err
		}

		before := signalSnapshot(signal)
		resolved, err := resolveModuleStatus(tx, models.ModuleSignals, statusID)
		if err != nil {
			return err
		}
		signal.StatusID = resolved

		return persistSignalMutation(tx, s.history, signal, before, actor, ActionStatusChanged)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetType recategorises the signal.
func (s *SignalService) SetType(ctx context.Context, id, signalTypeID string, actor auth.Actor) (*models.Signal, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signal, err := loadSignalForUpdate(tx, id)
		if err != nil {
			return err
		}

		var signalType models.SignalType
		if err := tx.First(&signalType, "id = ?", strings.TrimSpace(signalTypeID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewBadRequest("signal type does not exist")
			}
			return fmt.Errorf("signal service: load signal type: %w", err)
		}

		before := signalSnapshot(signal)
		signal.SignalTypeID = signalType.ID

		return persistSignalMutation(tx, s.history, signal, before, actor, ActionTypeChanged)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetActiveFrom moves the signal's visibility start.
func (s *SignalService) SetActiveFrom(ctx context.Context, id string, activeFrom time.Time, actor auth.Actor) (*models.Signal, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signal, err := loadSignalForUpdate(tx, id)
		if err != nil {
			return err
		}

		before := signalSnapshot(signal)
		signal.ActiveFrom = activeFrom

		return persistSignalMutation(tx, s.history, signal, before, actor, ActionActiveFromChanged)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetAssignee hands the signal to another user, or clears the assignee
// with an empty id. Reassignment does not fan out notifications.
func (s *SignalService) SetAssignee(ctx context.Context, id, userID string, actor auth.Actor) (*models.Signal, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signal, err := loadSignalForUpdate(tx, id)
		if err != nil {
			return err
		}

		before := signalSnapshot(signal)
		assignee, err := resolveAssignee(tx, userID)
		if err != nil {
			return err
		}
		signal.AssignedToID = assignee

		return persistSignalMutation(tx, s.history, signal, before, actor, ActionReassigned)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// ToggleArchive flips the archived flag.
func (s *SignalService) ToggleArchive(ctx context.Context, id string, actor auth.Actor) (*models.Signal, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signal, err := loadSignalForUpdate(tx, id)
		if err != nil {
			return err
		}

		wasArchived := signal.IsArchived
		if err := tx.Model(signal).Update("is_archived", !wasArchived).Error; err != nil {
			return fmt.Errorf("signal service: toggle archive: %w", err)
		}
		signal.IsArchived = !wasArchived

		_, err = s.history.RecordTx(tx, RecordHistoryInput{
			Entity: signal,
			Actor:  actor,
			Action: ActionArchivedToggled,
			Changes: models.ChangeSet{
				"is_archived": models.Change(wasArchived, signal.IsArchived),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// AddNote appends a note to the signal and records it in history.
func (s *SignalService) AddNote(ctx context.Context, id, body string, actor auth.Actor) (*models.Note, error) {
	ctx = ensureContext(ctx)

	var note *models.Note
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signal, err := loadSignalForUpdate(tx, id)
		if err != nil {
			return err
		}

		note, err = addEntityNote(tx, s.history, signal, body, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// ListNotes returns the signal's notes, newest first.
func (s *SignalService) ListNotes(ctx context.Context, id string) ([]models.Note, error) {
	return listEntityNotes(ensureContext(ctx), s.db, models.KindSignal, id)
}

func loadSignalForUpdate(tx *gorm.DB, id string) (*models.Signal, error) {
	var signal models.Signal
	if err := tx.First(&signal, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("signal service: load signal: %w", err)
	}
	return &signal, nil
}

func signalSnapshot(signal *models.Signal) snapshot {
	return snapshot{
		"signal_type_id": signal.SignalTypeID,
		"status_id":      strPtrValue(signal.StatusID),
		"body":           signal.Body,
		"active_from":    timeValue(signal.ActiveFrom),
		"assigned_to_id": strPtrValue(signal.AssignedToID),
	}
}

// persistSignalMutation writes the modified signal, diffs it against the
// pre-mutation snapshot and records history only when something changed.
func persistSignalMutation(tx *gorm.DB, history *HistoryService, signal *models.Signal, before snapshot, actor auth.Actor, action string) error {
	changes := diffSnapshots(before, signalSnapshot(signal))
	if len(changes) == 0 {
		return nil
	}

	if err := tx.Model(signal).Updates(map[string]any{
		"signal_type_id": signal.SignalTypeID,
		"status_id":      signal.StatusID,
		"body":           signal.Body,
		"active_from":    signal.ActiveFrom,
		"assigned_to_id": signal.AssignedToID,
	}).Error; err != nil {
		return fmt.Errorf("signal service: update signal: %w", err)
	}

	_, err := history.RecordTx(tx, RecordHistoryInput{
		Entity:  signal,
		Actor:   actor,
		Action:  action,
		Changes: changes,
	})
	return err
}

// resolveModuleStatus validates a status id against the module's enabled
// set. An empty id clears the status.
func resolveModuleStatus(tx *gorm.DB, moduleKey, statusID string) (*string, error) {
	trimmed := strings.TrimSpace(statusID)
	if trimmed == "" {
		return nil, nil
	}

	ok, err := statusInModuleSet(tx, moduleKey, trimmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewBadRequest("status is not part of the module's status set")
	}
	return &trimmed, nil
}

// resolveAssignee validates an assignee id, tolerating an empty id as
// "unassigned". Inactive users cannot receive new work.
func resolveAssignee(tx *gorm.DB, userID string) (*string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, nil
	}

	var user models.User
	if err := tx.First(&user, "id = ?", trimmed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewBadRequest("assignee does not exist")
		}
		return nil, fmt.Errorf("resolve assignee: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.NewBadRequest("assignee is inactive")
	}
	return &user.ID, nil
}

// addEntityNote persists a note against any tracked entity and records the
// note_added event referencing the new note's id.
func addEntityNote(tx *gorm.DB, history *HistoryService, entity models.Entity, body string, actor auth.Actor) (*models.Note, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewBadRequest("note body is required")
	}

	note := models.Note{
		EntityKindValue: entity.EntityKind(),
		EntityIDValue:   entity.EntityID(),
		Body:            body,
	}
	if actor.IsAuthenticated && actor.UserID != "" {
		authorID := actor.UserID
		note.AuthorID = &authorID
	}

	if err := tx.Create(&note).Error; err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	if _, err := history.RecordTx(tx, RecordHistoryInput{
		Entity: entity,
		Actor:  actor,
		Action: ActionNoteAdded,
		Changes: models.ChangeSet{
			"note_id": models.Change(nil, note.ID),
		},
	}); err != nil {
		return nil, err
	}

	return &note, nil
}

func listEntityNotes(ctx context.Context, db *gorm.DB, kind models.Kind, entityID string) ([]models.Note, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, errors.New("entity id is required")
	}

	var notes []models.Note
	if err := db.WithContext(ctx).
		Preload("Author").
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("created_at DESC").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}
