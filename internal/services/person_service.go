package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
	apperrors "github.com/opsdesk/opsdesk/pkg/errors"
)

// CreatePersonInput carries the fields accepted when registering a person.
type CreatePersonInput struct {
	PersonType string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Remarks    string
}

// UpdatePersonInput carries an edit over the mutable person fields.
type UpdatePersonInput struct {
	PersonType *string
	FirstName  *string
	LastName   *string
	Email      *string
	Phone      *string
	Remarks    *string
}

// ListPeopleInput defines filters for the people list.
type ListPeopleInput struct {
	Page       int
	PageSize   int
	PersonType string
	Search     string
}

// PersonService manages the tracked people records. People follow the
// history protocol but never trigger notification fan-out.
type PersonService struct {
	db      *gorm.DB
	history *HistoryService
}

// NewPersonService constructs a PersonService.
func NewPersonService(db *gorm.DB, history *HistoryService) (*PersonService, error) {
	if db == nil {
		return nil, errors.New("person service: db is required")
	}
	if history == nil {
		return nil, errors.New("person service: history service is required")
	}
	return &PersonService{db: db, history: history}, nil
}

// Create registers a person and records the creation event.
func (s *PersonService) Create(ctx context.Context, input CreatePersonInput, actor auth.Actor) (*models.Person, error) {
	ctx = ensureContext(ctx)

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" || lastName == "" {
		return nil, apperrors.NewBadRequest("first and last name are required")
	}

	personType := strings.TrimSpace(input.PersonType)
	if personType == "" {
		personType = models.PersonTypeStudent
	}
	if !models.ValidPersonType(personType) {
		return nil, apperrors.NewBadRequest("unknown person type")
	}

	person := models.Person{
		PersonType: personType,
		FirstName:  firstName,
		LastName:   lastName,
		Email:      strings.TrimSpace(input.Email),
		Phone:      strings.TrimSpace(input.Phone),
		Remarks:    strings.TrimSpace(input.Remarks),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&person).Error; err != nil {
			return fmt.Errorf("person service: create person: %w", err)
		}

		_, err := s.history.RecordTx(tx, RecordHistoryInput{
			Entity:  &person,
			Actor:   actor,
			Action:  ActionCreated,
			Changes: models.ChangeSet{},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return &person, nil
}

// Get loads a person by id.
func (s *PersonService) Get(ctx context.Context, id string) (*models.Person, error) {
	ctx = ensureContext(ctx)

	var person models.Person
	if err := s.db.WithContext(ctx).First(&person, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("person service: load person: %w", err)
	}
	return &person, nil
}

// List returns people matching the filters, ordered by last then first name.
func (s *PersonService) List(ctx context.Context, input ListPeopleInput) ([]models.Person, int64, error) {
	ctx = ensureContext(ctx)

	page := input.Page
	if page <= 0 {
		page = 1
	}
	perPage := input.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 25
	}

	query := s.db.WithContext(ctx).Model(&models.Person{})
	if input.PersonType != "" {
		query = query.Where("person_type = ?", input.PersonType)
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		pattern := "%" + search + "%"
		if s.db.Dialector.Name() == "postgres" {
			query = query.Where(
				"first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?",
				pattern, pattern, pattern,
			)
		} else {
			query = query.Where(
				"first_name LIKE ? OR last_name LIKE ? OR email LIKE ?",
				pattern, pattern, pattern,
			)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("person service: count people: %w", err)
	}

	var people []models.Person
	if err := query.
		Order("last_name, first_name").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&people).Error; err != nil {
		return nil, 0, fmt.Errorf("person service: list people: %w", err)
	}

	return people, total, nil
}

// Update applies an edit with minimal-diff history. An edit that changes
// nothing records no event.
func (s *PersonService) Update(ctx context.Context, id string, input UpdatePersonInput, actor auth.Actor) (*models.Person, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var person models.Person
		if err := tx.First(&person, "id = ?", strings.TrimSpace(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("person service: load person: %w", err)
		}

		before := personSnapshot(&person)

		if input.PersonType != nil {
			personType := strings.TrimSpace(*input.PersonType)
			if !models.ValidPersonType(personType) {
				return apperrors.NewBadRequest("unknown person type")
			}
			person.PersonType = personType
		}
		if input.FirstName != nil {
			firstName := strings.TrimSpace(*input.FirstName)
			if firstName == "" {
				return apperrors.NewBadRequest("first name is required")
			}
			person.FirstName = firstName
		}
		if input.LastName != nil {
			lastName := strings.TrimSpace(*input.LastName)
			if lastName == "" {
				return apperrors.NewBadRequest("last name is required")
			}
			person.LastName = lastName
		}
		if input.Email != nil {
			person.Email = strings.TrimSpace(*input.Email)
		}
		if input.Phone != nil {
			person.Phone = strings.TrimSpace(*input.Phone)
		}
		if input.Remarks != nil {
			person.Remarks = strings.TrimSpace(*input.Remarks)
		}

		changes := diffSnapshots(before, personSnapshot(&person))
		if len(changes) == 0 {
			return nil
		}

		if err := tx.Model(&person).Updates(map[string]any{
			"person_type": person.PersonType,
			"first_name":  person.FirstName,
			"last_name":   person.LastName,
			"email":       person.Email,
			"phone":       person.Phone,
			"remarks":     person.Remarks,
		}).Error; err != nil {
			return fmt.Errorf("person service: update person: %w", err)
		}

		_, err := s.history.RecordTx(tx, RecordHistoryInput{
			Entity:  &person,
			Actor:   actor,
			Action:  ActionUpdated,
			Changes: changes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// AddNote appends a note to the person and records it in history.
func (s *PersonService) AddNote(ctx context.Context, id, body string, actor auth.Actor) (*models.Note, error) {
	ctx = ensureContext(ctx)

	var note *models.Note
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var person models.Person
		if err := tx.First(&person, "id = ?", strings.TrimSpace(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("person service: load person: %w", err)
		}

		var err error
		note, err = addEntityNote(tx, s.history, &person, body, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// ListNotes returns the person's notes, newest first.
func (s *PersonService) ListNotes(ctx context.Context, id string) ([]models.Note, error) {
	return listEntityNotes(ensureContext(ctx), s.db, models.KindPerson, id)
}

func personSnapshot(person *models.Person) snapshot {
	return snapshot{
		"person_type": person.PersonType,
		"first_name":  person.FirstName,
		"last_name":   person.LastName,
		"email":       person.Email,
		"phone":       person.Phone,
		"remarks":     person.Remarks,
	}
}
