package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
)

func TestCreatePersonDefaultsToStudent(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))

	person, err := f.people.Create(context.Background(), CreatePersonInput{
		FirstName: "Emma",
		LastName:  "Bakker",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, models.PersonTypeStudent, person.PersonType)

	events, err := f.history.ListForEntity(context.Background(), models.KindPerson, person.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, ActionCreated, events[0].Action)
	require.Empty(t, events[0].DecodeChanges())
}

func TestCreatePersonRejectsUnknownType(t *testing.T) {
	f := newFixture(t)

	_, err := f.people.Create(context.Background(), CreatePersonInput{
		PersonType: "alien",
		FirstName:  "Zed",
		LastName:   "Ex",
	}, auth.System())
	require.Error(t, err)
}

func TestUpdatePersonRecordsMinimalDiff(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))

	person, err := f.people.Create(context.Background(), CreatePersonInput{
		FirstName: "Emma",
		LastName:  "Bakker",
		Email:     "emma@example.test",
	}, actor)
	require.NoError(t, err)

	newPhone := "06-12345678"
	sameEmail := person.Email
	updated, err := f.people.Update(context.Background(), person.ID, UpdatePersonInput{
		Phone: &newPhone,
		Email: &sameEmail,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, newPhone, updated.Phone)

	events, err := f.history.ListForEntity(context.Background(), models.KindPerson, person.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	changes := events[0].DecodeChanges()
	require.Len(t, changes, 1)
	require.Equal(t, []any{"", newPhone}, changes["phone"])
}

func TestUpdatePersonNoOpRecordsNoHistory(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))

	person, err := f.people.Create(context.Background(), CreatePersonInput{
		FirstName: "Emma",
		LastName:  "Bakker",
	}, actor)
	require.NoError(t, err)

	sameName := person.FirstName
	_, err = f.people.Update(context.Background(), person.ID, UpdatePersonInput{
		FirstName: &sameName,
	}, actor)
	require.NoError(t, err)

	events, err := f.history.ListForEntity(context.Background(), models.KindPerson, person.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestPersonNotesAndNoNotifications(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	f.createStaff(t, "colleague")
	actor := auth.ActorFromUser(creator)

	person, err := f.people.Create(context.Background(), CreatePersonInput{
		FirstName: "Emma",
		LastName:  "Bakker",
	}, actor)
	require.NoError(t, err)

	note, err := f.people.AddNote(context.Background(), person.ID, "Called home, all fine", actor)
	require.NoError(t, err)
	require.Equal(t, models.KindPerson, note.EntityKindValue)

	notes, err := f.people.ListNotes(context.Background(), person.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].Author)
	require.Equal(t, creator.ID, notes[0].Author.ID)

	// People never fan out notifications.
	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestListPeopleFilterAndSearch(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))

	_, err := f.people.Create(context.Background(), CreatePersonInput{
		FirstName: "Emma",
		LastName:  "Bakker",
	}, actor)
	require.NoError(t, err)
	_, err = f.people.Create(context.Background(), CreatePersonInput{
		PersonType: models.PersonTypeEmployee,
		FirstName:  "Joost",
		LastName:   "Smit",
	}, actor)
	require.NoError(t, err)

	employees, total, err := f.people.List(context.Background(), ListPeopleInput{
		PersonType: models.PersonTypeEmployee,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Smit", employees[0].LastName)

	found, total, err := f.people.List(context.Background(), ListPeopleInput{Search: "Bakker"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Emma", found[0].FirstName)
}
