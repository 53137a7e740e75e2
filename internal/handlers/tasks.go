package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/opsdesk/opsdesk/pkg/response"
)

// TaskHandler exposes HTTP endpoints for the tasks module.
type TaskHandler struct {
	tasks   *services.TaskService
	history *services.HistoryService
}

// NewTaskHandler constructs a task handler with its service dependencies.
func NewTaskHandler(db *gorm.DB) (*TaskHandler, error) {
	history, err := services.NewHistoryService(db)
	if err != nil {
		return nil, err
	}
	tasks, err := services.NewTaskService(db, history)
	if err != nil {
		return nil, err
	}
	return &TaskHandler{tasks: tasks, history: history}, nil
}

type createTaskRequest struct {
	TaskTypeID   string     `json:"task_type_id" validate:"required"`
	Title        string     `json:"title" validate:"required,max=160"`
	Description  string     `json:"description"`
	DueAt        *time.Time `json:"due_at"`
	AssignedToID string     `json:"assigned_to_id"`
	Notify       *bool      `json:"notify"`
}

type updateTaskRequest struct {
	TaskTypeID   *string    `json:"task_type_id"`
	StatusID     *string    `json:"status_id"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	DueAt        *time.Time `json:"due_at"`
	ClearDueAt   bool       `json:"clear_due_at"`
	AssignedToID *string    `json:"assigned_to_id"`
}

// Create opens a new task.
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Create(requestContext(c), services.CreateTaskInput{
		TaskTypeID:   req.TaskTypeID,
		Title:        req.Title,
		Description:  req.Description,
		DueAt:        req.DueAt,
		AssignedToID: req.AssignedToID,
		Notify:       req.Notify,
	}, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, task)
}

// List returns tasks matching the query filters.
func (h *TaskHandler) List(c *gin.Context) {
	input := services.ListTasksInput{
		Page:            parseIntQuery(c, "page", 1),
		PageSize:        parseIntQuery(c, "per_page", 25),
		IncludeArchived: parseBoolQuery(c, "archived"),
		StatusID:        strings.TrimSpace(c.Query("status_id")),
		TaskTypeID:      strings.TrimSpace(c.Query("type_id")),
		Unassigned:      parseBoolQuery(c, "unassigned"),
		Search:          c.Query("q"),
	}
	if parseBoolQuery(c, "mine") {
		input.AssignedToID = currentActor(c).UserID
	} else {
		input.AssignedToID = strings.TrimSpace(c.Query("assigned_to"))
	}
	if overdue := parseBoolQuery(c, "overdue"); overdue {
		now := time.Now().UTC()
		input.DueBefore = &now
	}

	tasks, total, err := h.tasks.List(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, tasks, listMeta(input.Page, input.PageSize, total))
}

// Get returns a single task.
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Update applies a multi-field edit.
func (h *TaskHandler) Update(c *gin.Context) {
	var req updateTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Update(requestContext(c), c.Param("id"), services.UpdateTaskInput{
		TaskTypeID:   req.TaskTypeID,
		StatusID:     req.StatusID,
		Title:        req.Title,
		Description:  req.Description,
		DueAt:        req.DueAt,
		ClearDueAt:   req.ClearDueAt,
		AssignedToID: req.AssignedToID,
	}, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}

// SetStatus moves the task to another status.
func (h *TaskHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.SetStatus(requestContext(c), c.Param("id"), req.StatusID, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// SetType recategorises the task.
func (h *TaskHandler) SetType(c *gin.Context) {
	var req setTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.SetType(requestContext(c), c.Param("id"), req.TypeID, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

type setDueAtRequest struct {
	DueAt *time.Time `json:"due_at"`
}

// SetDueAt moves or clears the task deadline.
func (h *TaskHandler) SetDueAt(c *gin.Context) {
	var req setDueAtRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.SetDueAt(requestContext(c), c.Param("id"), req.DueAt, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// SetAssignee hands the task to another user, or clears the assignee.
func (h *TaskHandler) SetAssignee(c *gin.Context) {
	var req setAssigneeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.SetAssignee(requestContext(c), c.Param("id"), req.UserID, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// ToggleArchive flips the archived flag.
func (h *TaskHandler) ToggleArchive(c *gin.Context) {
	task, err := h.tasks.ToggleArchive(requestContext(c), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// AddNote appends a note to the task.
func (h *TaskHandler) AddNote(c *gin.Context) {
	var req addNoteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	note, err := h.tasks.AddNote(requestContext(c), c.Param("id"), req.Body, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, note)
}

// ListNotes returns the task's notes.
func (h *TaskHandler) ListNotes(c *gin.Context) {
	notes, err := h.tasks.ListNotes(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, notes)
}

// History returns the task's audit trail with display labels.
func (h *TaskHandler) History(c *gin.Context) {
	events, err := h.history.ListForEntity(requestContext(c), models.KindTask, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, presentHistory(events))
}
