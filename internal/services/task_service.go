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

// CreateTaskInput carries the fields accepted when opening a task.
type CreateTaskInput struct {
	TaskTypeID   string
	Title        string
	Description  string
	DueAt        *time.Time
	AssignedToID string
	Notify       *bool
}

// UpdateTaskInput carries an edit over the mutable task fields.
type UpdateTaskInput struct {
	TaskTypeID   *string
	StatusID     *string
	Title        *string
	Description  *string
	DueAt        *time.Time
	ClearDueAt   bool
	AssignedToID *string
}

// ListTasksInput defines filters for the task list.
type ListTasksInput struct {
	Page            int
	PageSize        int
	IncludeArchived bool
	StatusID        string
	TaskTypeID      string
	AssignedToID    string
	Unassigned      bool
	DueBefore       *time.Time
	Search          string
}

// TaskService owns the task lifecycle. Tasks follow the same mutation
// protocol as signals but creation does not fan out notifications.
type TaskService struct {
	db      *gorm.DB
	history *HistoryService
}

// NewTaskService constructs a TaskService.
func NewTaskService(db *gorm.DB, history *HistoryService) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	if history == nil {
		return nil, errors.New("task service: history service is required")
	}
	return &TaskService{db: db, history: history}, nil
}

// Create stores a new task with the module's default status and records
// the creation event in the same transaction.
func (s *TaskService) Create(ctx context.Context, input CreateTaskInput, actor auth.Actor) (*models.Task, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("task title is required")
	}
	if strings.TrimSpace(input.TaskTypeID) == "" {
		return nil, apperrors.NewBadRequest("task type is required")
	}

	task := models.Task{
		TaskTypeID:   input.TaskTypeID,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		DueAt:        input.DueAt,
		AssignedToID: trimmedOrNil(input.AssignedToID),
		Notify:       true,
	}
	if input.Notify != nil {
		task.Notify = *input.Notify
	}
	if actor.IsAuthenticated && actor.UserID != "" {
		createdBy := actor.UserID
		task.CreatedByID = &createdBy
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taskType models.TaskType
		if err := tx.First(&taskType, "id = ? AND is_active = ?", task.TaskTypeID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewBadRequest("task type does not exist or is inactive")
			}
			return fmt.Errorf("task service: load task type: %w", err)
		}

		defaultStatus, err := resolveDefaultStatus(tx, models.ModuleTasks)
		if err != nil {
			return err
		}
		if defaultStatus != nil {
			task.StatusID = &defaultStatus.ID
		}

		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("task service: create task: %w", err)
		}

		_, err = s.history.RecordTx(tx, RecordHistoryInput{
			Entity:  &task,
			Actor:   actor,
			Action:  ActionCreated,
			Changes: models.ChangeSet{},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, task.ID)
}

// Get loads a task with its references.
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	var task models.Task
	if err := s.db.WithContext(ctx).
		Preload("TaskType").
		Preload("Status").
		Preload("AssignedTo").
		Preload("CreatedBy").
		First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: load task: %w", err)
	}
	return &task, nil
}

// List returns tasks matching the filters, newest first.
func (s *TaskService) List(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	ctx = ensureContext(ctx)

	page := input.Page
	if page <= 0 {
		page = 1
	}
	perPage := input.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 25
	}

	query := s.db.WithContext(ctx).Model(&models.Task{})
	if !input.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}
	if input.StatusID != "" {
		query = query.Where("status_id = ?", input.StatusID)
	}
	if input.TaskTypeID != "" {
		query = query.Where("task_type_id = ?", input.TaskTypeID)
	}
	if input.Unassigned {
		query = query.Where("assigned_to_id IS NULL")
	} else if input.AssignedToID != "" {
		query = query.Where("assigned_to_id = ?", input.AssignedToID)
	}
	if input.DueBefore != nil {
		query = query.Where("due_at IS NOT NULL AND due_at < ?", *input.DueBefore)
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		pattern := "%" + search + "%"
		if s.db.Dialector.Name() == "postgres" {
			query = query.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
		} else {
			query = query.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("task service: count tasks: %w", err)
	}

	var tasks []models.Task
	if err := query.
		Preload("TaskType").
		Preload("Status").
		Preload("AssignedTo").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("task service: list tasks: %w", err)
	}

	return tasks, total, nil
}

// Update applies a multi-field edit with minimal-diff history.
func (s *TaskService) Update(ctx context.Context, id string, input UpdateTaskInput, actor auth.Actor) (*models.Task, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, id)
		if err != nil {
			return err
		}

		before := taskSnapshot(task)

		if input.TaskTypeID != nil {
			typeID := strings.TrimSpace(*input.TaskTypeID)
			if typeID == "" {
				return apperrors.NewBadRequest("task type cannot be cleared")
			}
			var taskType models.TaskType
			if err := tx.First(&taskType, "id = ?", typeID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NewBadRequest("task type does not exist")
				}
				return fmt.Errorf("task service: load task type: %w", err)
			}
			task.TaskTypeID = typeID
		}
		if input.StatusID != nil {
			statusID, err := resolveModuleStatus(tx, models.ModuleTasks, *input.StatusID)
			if err != nil {
				return err
			}
			task.StatusID = statusID
		}
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return apperrors.NewBadRequest("task title is required")
			}
			task.Title = title
		}
		if input.Description != nil {
			task.Description = strings.TrimSpace(*input.Description)
		}
		if input.ClearDueAt {
			task.DueAt = nil
		} else if input.DueAt != nil {
			task.DueAt = input.DueAt
		}
		if input.AssignedToID != nil {
			assignee, err := resolveAssignee(tx, *input.AssignedToID)
			if err != nil {
				return err
			}
			task.AssignedToID = assignee
		}

		return persistTaskMutation(tx, s.history, task, before, actor, ActionUpdated)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetStatus moves the task to another status of the tasks module's set.
func (s *TaskService) SetStatus(ctx context.Context, id, statusID string, actor auth.Actor) (*models.Task, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, id)
		if err != nil {
			return err
		}

		before := taskSnapshot(task)
		resolved, err := resolveModuleStatus(tx, models.ModuleTasks, statusID)
		if err != nil {
			return err
		}
		task.StatusID = resolved

		return persistTaskMutation(tx, s.history, task, before, actor, ActionStatusChanged)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetType recategorises the task.
func (s *TaskService) SetType(ctx context.Context, id, taskTypeID string, actor auth.Actor) (*models.Task, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, id)
		if err != nil {
			return err
		}

		var taskType models.TaskType
		if err := tx.First(&taskType, "id = ?", strings.TrimSpace(taskTypeID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewBadRequest("task type does not exist")
			}
			return fmt.Errorf("task service: load task type: %w", err)
		}

		before := taskSnapshot(task)
		task.TaskTypeID = taskType.ID

		return persistTaskMutation(tx, s.history, task, before, actor, ActionTypeChanged)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetDueAt moves or clears the task deadline. The action is not part of
// the core vocabulary; readers see its derived label.
func (s *TaskService) SetDueAt(ctx context.Context, id string, dueAt *time.Time, actor auth.Actor) (*models.Task, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, id)
		if err != nil {
			return err
		}

		before := taskSnapshot(task)
		task.DueAt = dueAt

		return persistTaskMutation(tx, s.history, task, before, actor, "due_at_changed")
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// SetAssignee hands the task to another user, or clears the assignee.
func (s *TaskService) SetAssignee(ctx context.Context, id, userID string, actor auth.Actor) (*models.Task, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, id)
		if err != nil {
			return err
		}

		before := taskSnapshot(task)
		assignee, err := resolveAssignee(tx, userID)
		if err != nil {
			return err
		}
		task.AssignedToID = assignee

		return persistTaskMutation(tx, s.history, task, before, actor, ActionReassigned)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// ToggleArchive flips the archived flag.
func (s *TaskService) ToggleArchive(ctx context.Context, id string, actor auth.Actor) (*models.Task, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, id)
		if err != nil {
			return err
		}

		wasArchived := task.IsArchived
		if err := tx.Model(task).Update("is_archived", !wasArchived).Error; err != nil {
			return fmt.Errorf("task service: toggle archive: %w", err)
		}
		task.IsArchived = !wasArchived

		_, err = s.history.RecordTx(tx, RecordHistoryInput{
			Entity: task,
			Actor:  actor,
			Action: ActionArchivedToggled,
			Changes: models.ChangeSet{
				"is_archived": models.Change(wasArchived, task.IsArchived),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// AddNote appends a note to the task and records it in history.
func (s *TaskService) AddNote(ctx context.Context, id, body string, actor auth.Actor) (*models.Note, error) {
	ctx = ensureContext(ctx)

	var note *models.Note
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTaskForUpdate(tx, id)
		if err != nil {
			return err
		}

		note, err = addEntityNote(tx, s.history, task, body, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// ListNotes returns the task's notes, newest first.
func (s *TaskService) ListNotes(ctx context.Context, id string) ([]models.Note, error) {
	return listEntityNotes(ensureContext(ctx), s.db, models.KindTask, id)
}

func loadTaskForUpdate(tx *gorm.DB, id string) (*models.Task, error) {
	var task models.Task
	if err := tx.First(&task, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: load task: %w", err)
	}
	return &task, nil
}

func taskSnapshot(task *models.Task) snapshot {
	dueAt := any(nil)
	if task.DueAt != nil {
		dueAt = timeValue(*task.DueAt)
	}
	return snapshot{
		"task_type_id":   task.TaskTypeID,
		"status_id":      strPtrValue(task.StatusID),
		"title":          task.Title,
		"description":    task.Description,
		"due_at":         dueAt,
		"assigned_to_id": strPtrValue(task.AssignedToID),
	}
}

func persistTaskMutation(tx *gorm.DB, history *HistoryService, task *models.Task, before snapshot, actor auth.Actor, action string) error {
	changes := diffSnapshots(before, taskSnapshot(task))
	if len(changes) == 0 {
		return nil
	}

	if err := tx.Model(task).Updates(map[string]any{
		"task_type_id":   task.TaskTypeID,
		"status_id":      task.StatusID,
		"title":          task.Title,
		"description":    task.Description,
		"due_at":         task.DueAt,
		"assigned_to_id": task.AssignedToID,
	}).Error; err != nil {
		return fmt.Errorf("task service: update task: %w", err)
	}

	_, err := history.RecordTx(tx, RecordHistoryInput{
		Entity:  task,
		Actor:   actor,
		Action:  action,
		Changes: changes,
	})
	return err
}
