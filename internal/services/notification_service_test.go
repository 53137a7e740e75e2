package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
)

func TestFanOutAssignedSignalNotifiesAssigneeOnly(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	assignee := f.createStaff(t, "assignee")
	f.createStaff(t, "bystander")

	f.createSignal(t, auth.ActorFromUser(creator), assignee.ID)

	var rows []models.Notification
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, assignee.ID, rows[0].UserID)
	require.Equal(t, models.KindSignal, rows[0].EntityKindValue)
	require.Equal(t, "New signal", rows[0].Title)
	require.False(t, rows[0].IsRead)
	require.Nil(t, rows[0].ReadAt)
}

func TestFanOutUnassignedSignalNotifiesStaffExceptCreator(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	one := f.createStaff(t, "staff-one")
	two := f.createStaff(t, "staff-two")

	// Inactive and non-staff accounts are never recipients.
	inactive := f.createStaff(t, "inactive")
	_, err := f.users.SetActive(context.Background(), inactive.ID, false)
	require.NoError(t, err)
	_, err = f.users.Create(context.Background(), CreateUserInput{
		Username: "visitor",
		Email:    "visitor@example.test",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	signal := f.createSignal(t, auth.ActorFromUser(creator), "")

	var rows []models.Notification
	require.NoError(t, f.db.Order("created_at").Find(&rows).Error)
	require.Len(t, rows, 2)

	recipients := []string{rows[0].UserID, rows[1].UserID}
	require.ElementsMatch(t, []string{one.ID, two.ID}, recipients)
	for _, row := range rows {
		require.Equal(t, signal.ID, row.EntityIDValue)
		require.Equal(t, "/signals/"+signal.ID+"/", row.URL)
	}
}

func TestFanOutTruncatesLongBodies(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	assignee := f.createStaff(t, "assignee")

	long := make([]rune, models.NotificationBodyLimit+500)
	for i := range long {
		long[i] = 'x'
	}
	_, err := f.signals.Create(context.Background(), CreateSignalInput{
		SignalTypeID: f.signalType(t).ID,
		Body:         string(long),
		AssignedToID: assignee.ID,
	}, auth.ActorFromUser(creator))
	require.NoError(t, err)

	var row models.Notification
	require.NoError(t, f.db.First(&row).Error)
	require.Len(t, []rune(row.Body), models.NotificationBodyLimit)
}

func TestListForUserAndUnreadCount(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	reader := f.createStaff(t, "reader")

	f.createSignal(t, auth.ActorFromUser(creator), reader.ID)
	f.createSignal(t, auth.ActorFromUser(creator), reader.ID)

	rows, err := f.notifications.ListForUser(context.Background(), ListNotificationsInput{UserID: reader.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	count, err := f.notifications.UnreadCount(context.Background(), reader.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	_, err = f.notifications.MarkRead(context.Background(), reader.ID, rows[0].ID)
	require.NoError(t, err)

	unread, err := f.notifications.ListForUser(context.Background(), ListNotificationsInput{
		UserID:     reader.ID,
		UnreadOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, unread, 1)
}

func TestMarkReadSetsReadAtExactlyOnce(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	reader := f.createStaff(t, "reader")

	f.createSignal(t, auth.ActorFromUser(creator), reader.ID)

	rows, err := f.notifications.ListForUser(context.Background(), ListNotificationsInput{UserID: reader.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	first, err := f.notifications.MarkRead(context.Background(), reader.ID, rows[0].ID)
	require.NoError(t, err)
	require.True(t, first.IsRead)
	require.NotNil(t, first.ReadAt)

	time.Sleep(10 * time.Millisecond)

	second, err := f.notifications.MarkRead(context.Background(), reader.ID, rows[0].ID)
	require.NoError(t, err)
	require.True(t, second.IsRead)
	require.NotNil(t, second.ReadAt)
	require.Equal(t, first.ReadAt.Unix(), second.ReadAt.Unix())

	// The stored row keeps the original timestamp as well.
	var stored models.Notification
	require.NoError(t, f.db.First(&stored, "id = ?", rows[0].ID).Error)
	require.NotNil(t, stored.ReadAt)
	require.Equal(t, first.ReadAt.Unix(), stored.ReadAt.Unix())
}

func TestMarkReadScopedToOwner(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	owner := f.createStaff(t, "owner")
	other := f.createStaff(t, "other")

	f.createSignal(t, auth.ActorFromUser(creator), owner.ID)

	rows, err := f.notifications.ListForUser(context.Background(), ListNotificationsInput{UserID: owner.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = f.notifications.MarkRead(context.Background(), other.ID, rows[0].ID)
	require.Error(t, err)
}

func TestMarkAllRead(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	reader := f.createStaff(t, "reader")

	f.createSignal(t, auth.ActorFromUser(creator), reader.ID)
	f.createSignal(t, auth.ActorFromUser(creator), reader.ID)

	require.NoError(t, f.notifications.MarkAllRead(context.Background(), reader.ID))

	count, err := f.notifications.UnreadCount(context.Background(), reader.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}
