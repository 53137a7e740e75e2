package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/opsdesk/opsdesk/pkg/response"
)

// PersonHandler exposes HTTP endpoints for the people module.
type PersonHandler struct {
	people  *services.PersonService
	history *services.HistoryService
}

// NewPersonHandler constructs a person handler with its service dependencies.
func NewPersonHandler(db *gorm.DB) (*PersonHandler, error) {
	history, err := services.NewHistoryService(db)
	if err != nil {
		return nil, err
	}
	people, err := services.NewPersonService(db, history)
	if err != nil {
		return nil, err
	}
	return &PersonHandler{people: people, history: history}, nil
}

type createPersonRequest struct {
	PersonType string `json:"person_type" validate:"omitempty,oneof=student employee"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=150"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,max=30"`
	Remarks    string `json:"remarks"`
}

type updatePersonRequest struct {
	PersonType *string `json:"person_type"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Remarks    *string `json:"remarks"`
}

// Create registers a person.
func (h *PersonHandler) Create(c *gin.Context) {
	var req createPersonRequest
	if !bindAndValidate(c, &req) {
		return
	}

	person, err := h.people.Create(requestContext(c), services.CreatePersonInput{
		PersonType: req.PersonType,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Remarks:    req.Remarks,
	}, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, person)
}

// List returns people matching the query filters.
func (h *PersonHandler) List(c *gin.Context) {
	input := services.ListPeopleInput{
		Page:       parseIntQuery(c, "page", 1),
		PageSize:   parseIntQuery(c, "per_page", 25),
		PersonType: strings.TrimSpace(c.Query("person_type")),
		Search:     c.Query("q"),
	}

	people, total, err := h.people.List(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, people, listMeta(input.Page, input.PageSize, total))
}

// Get returns a single person.
func (h *PersonHandler) Get(c *gin.Context) {
	person, err := h.people.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, person)
}

// Update applies an edit to a person record.
func (h *PersonHandler) Update(c *gin.Context) {
	var req updatePersonRequest
	if !bindAndValidate(c, &req) {
		return
	}

	person, err := h.people.Update(requestContext(c), c.Param("id"), services.UpdatePersonInput{
		PersonType: req.PersonType,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Remarks:    req.Remarks,
	}, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, person)
}

// AddNote appends a note to the person.
func (h *PersonHandler) AddNote(c *gin.Context) {
	var req addNoteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	note, err := h.people.AddNote(requestContext(c), c.Param("id"), req.Body, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, note)
}

// ListNotes returns the person's notes.
func (h *PersonHandler) ListNotes(c *gin.Context) {
	notes, err := h.people.ListNotes(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, notes)
}

// History returns the person's audit trail with display labels.
func (h *PersonHandler) History(c *gin.Context) {
	events, err := h.history.ListForEntity(requestContext(c), models.KindPerson, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, presentHistory(events))
}
