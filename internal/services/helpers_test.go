package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/database/testutil"
	"github.com/opsdesk/opsdesk/internal/models"
)

type fixture struct {
	db            *gorm.DB
	users         *UserService
	history       *HistoryService
	notifications *NotificationService
	statuses      *StatusService
	types         *TypeService
	signals       *SignalService
	tasks         *TaskService
	people        *PersonService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedDefaults())

	users, err := NewUserService(db)
	require.NoError(t, err)
	history, err := NewHistoryService(db)
	require.NoError(t, err)
	notifications, err := NewNotificationService(db)
	require.NoError(t, err)
	statuses, err := NewStatusService(db)
	require.NoError(t, err)
	types, err := NewTypeService(db)
	require.NoError(t, err)
	signals, err := NewSignalService(db, history, notifications)
	require.NoError(t, err)
	tasks, err := NewTaskService(db, history)
	require.NoError(t, err)
	people, err := NewPersonService(db, history)
	require.NoError(t, err)

	return &fixture{
		db:            db,
		users:         users,
		history:       history,
		notifications: notifications,
		statuses:      statuses,
		types:         types,
		signals:       signals,
		tasks:         tasks,
		people:        people,
	}
}

func (f *fixture) createStaff(t *testing.T, username string) *models.User {
	t.Helper()

	user, err := f.users.Create(context.Background(), CreateUserInput{
		Username: username,
		Email:    fmt.Sprintf("%s@example.test", username),
		Password: "correct horse battery",
		IsStaff:  true,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) signalType(t *testing.T) *models.SignalType {
	t.Helper()

	types, err := f.types.ListSignalTypes(context.Background(), true)
	require.NoError(t, err)
	require.NotEmpty(t, types)
	return &types[0]
}

func (f *fixture) taskType(t *testing.T) *models.TaskType {
	t.Helper()

	types, err := f.types.ListTaskTypes(context.Background(), true)
	require.NoError(t, err)
	require.NotEmpty(t, types)
	return &types[0]
}

func (f *fixture) createSignal(t *testing.T, actor auth.Actor, assigneeID string) *models.Signal {
	t.Helper()

	signal, err := f.signals.Create(context.Background(), CreateSignalInput{
		SignalTypeID: f.signalType(t).ID,
		Body:         "Broken window in building C",
		AssignedToID: assigneeID,
	}, actor)
	require.NoError(t, err)
	return signal
}

func TestDiffSnapshotsOmitsUnchangedFields(t *testing.T) {
	before := snapshot{"body": "old", "status_id": "s1", "assigned_to_id": nil}
	after := snapshot{"body": "old", "status_id": "s2", "assigned_to_id": "u1"}

	changes := diffSnapshots(before, after)

	require.Len(t, changes, 2)
	require.Equal(t, models.Change("s1", "s2"), changes["status_id"])
	require.Equal(t, models.Change(nil, "u1"), changes["assigned_to_id"])
	require.NotContains(t, changes, "body")
}

func TestDiffSnapshotsEmptyOnNoChange(t *testing.T) {
	same := snapshot{"body": "text", "status_id": nil}

	require.Empty(t, diffSnapshots(same, snapshot{"body": "text", "status_id": nil}))
}

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "abc", truncateRunes("abc", 10))
	require.Equal(t, "ab", truncateRunes("abcd", 2))
	require.Equal(t, "héll", truncateRunes("héllo", 4))
	require.Equal(t, "", truncateRunes("abc", 0))
}
