package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
)

func TestCreateSignalStampsDefaultStatusAndHistory(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))

	signal := f.createSignal(t, actor, "")

	require.NotNil(t, signal.StatusID)
	require.NotNil(t, signal.Status)
	require.Equal(t, "open", signal.Status.Key)
	require.True(t, signal.Status.IsDefault)

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, ActionCreated, events[0].Action)

	// A created event marks the birth of the record; the row itself holds
	// the initial values, so the change set stays empty.
	require.Empty(t, events[0].DecodeChanges())
}

func TestCreateSignalWithoutDefaultStatusLeavesItUnset(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))

	// Unmap the signals module from its status set.
	_, err := f.statuses.SetUsage(context.Background(), models.ModuleSignals, "", false)
	require.NoError(t, err)

	signal := f.createSignal(t, actor, "")
	require.Nil(t, signal.StatusID)
}

func TestCreateSignalRejectsInactiveType(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))

	inactive := false
	signalType, err := f.types.CreateSignalType(context.Background(), TypeInput{
		Name:     "Retired",
		IsActive: &inactive,
	})
	require.NoError(t, err)

	_, err = f.signals.Create(context.Background(), CreateSignalInput{
		SignalTypeID: signalType.ID,
		Body:         "should not persist",
	}, actor)
	require.Error(t, err)
}

func TestUpdateSignalNoOpRecordsNoHistory(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	signal := f.createSignal(t, actor, "")

	sameBody := signal.Body
	updated, err := f.signals.Update(context.Background(), signal.ID, UpdateSignalInput{
		Body: &sameBody,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, signal.Body, updated.Body)

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	// Only the creation event; the no-op update left no trace.
	require.Len(t, events, 1)
}

func TestSetAssigneeRecordsMinimalDiff(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	first := f.createStaff(t, "first")
	second := f.createStaff(t, "second")

	signal := f.createSignal(t, actor, first.ID)

	_, err := f.signals.SetAssignee(context.Background(), signal.ID, second.ID, actor)
	require.NoError(t, err)

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, ActionReassigned, events[0].Action)

	changes := events[0].DecodeChanges()
	require.Len(t, changes, 1)
	require.Equal(t, []any{first.ID, second.ID}, changes["assigned_to_id"])
}

func TestSetAssigneeSameUserIsNoOp(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	assignee := f.createStaff(t, "worker")

	signal := f.createSignal(t, actor, assignee.ID)

	_, err := f.signals.SetAssignee(context.Background(), signal.ID, assignee.ID, actor)
	require.NoError(t, err)

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestSetStatusRejectsStatusOutsideModuleSet(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	signal := f.createSignal(t, actor, "")

	// A status from the tasks set is not valid for signals.
	taskStatuses, err := f.statuses.ListForModule(context.Background(), models.ModuleTasks)
	require.NoError(t, err)
	require.NotEmpty(t, taskStatuses)

	_, err = f.signals.SetStatus(context.Background(), signal.ID, taskStatuses[0].ID, actor)
	require.Error(t, err)
}

func TestSetStatusMovesToDoneStatus(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	signal := f.createSignal(t, actor, "")

	statuses, err := f.statuses.ListForModule(context.Background(), models.ModuleSignals)
	require.NoError(t, err)

	var done *models.Status
	for i := range statuses {
		if statuses[i].Key == "done" {
			done = &statuses[i]
		}
	}
	require.NotNil(t, done)

	updated, err := f.signals.SetStatus(context.Background(), signal.ID, done.ID, actor)
	require.NoError(t, err)
	require.Equal(t, done.ID, *updated.StatusID)

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	require.Equal(t, ActionStatusChanged, events[0].Action)
}

func TestToggleArchiveFlipsAndRecords(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	signal := f.createSignal(t, actor, "")

	archived, err := f.signals.ToggleArchive(context.Background(), signal.ID, actor)
	require.NoError(t, err)
	require.True(t, archived.IsArchived)

	restored, err := f.signals.ToggleArchive(context.Background(), signal.ID, actor)
	require.NoError(t, err)
	require.False(t, restored.IsArchived)

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, ActionArchivedToggled, events[0].Action)
	require.Equal(t, []any{true, false}, events[0].DecodeChanges()["is_archived"])
}

func TestAddNoteRecordsHistory(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	signal := f.createSignal(t, actor, "")

	note, err := f.signals.AddNote(context.Background(), signal.ID, "Spoke to the caretaker", actor)
	require.NoError(t, err)
	require.NotEmpty(t, note.ID)
	require.Equal(t, models.KindSignal, note.EntityKindValue)

	notes, err := f.signals.ListNotes(context.Background(), signal.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	require.Equal(t, ActionNoteAdded, events[0].Action)
	require.Equal(t, []any{nil, note.ID}, events[0].DecodeChanges()["note_id"])
}

func TestCreateSignalRollsBackWhenFanOutFails(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	f.createStaff(t, "recipient")

	// Sabotage the fan-out target so the final step of the creation
	// transaction fails.
	require.NoError(t, f.db.Migrator().DropTable(&models.Notification{}))

	_, err := f.signals.Create(context.Background(), CreateSignalInput{
		SignalTypeID: f.signalType(t).ID,
		Body:         "must roll back",
	}, auth.ActorFromUser(creator))
	require.Error(t, err)

	var signalCount, eventCount int64
	require.NoError(t, f.db.Model(&models.Signal{}).Count(&signalCount).Error)
	require.NoError(t, f.db.Model(&models.HistoryEvent{}).Count(&eventCount).Error)
	require.Zero(t, signalCount)
	require.Zero(t, eventCount)
}

func TestListSignalsFilters(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	worker := f.createStaff(t, "worker")

	assigned := f.createSignal(t, actor, worker.ID)
	unassigned := f.createSignal(t, actor, "")
	_, err := f.signals.ToggleArchive(context.Background(), unassigned.ID, actor)
	require.NoError(t, err)

	visible, total, err := f.signals.List(context.Background(), ListSignalsInput{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, assigned.ID, visible[0].ID)

	all, total, err := f.signals.List(context.Background(), ListSignalsInput{IncludeArchived: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, all, 2)

	mine, _, err := f.signals.List(context.Background(), ListSignalsInput{AssignedToID: worker.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	unassignedOnly, _, err := f.signals.List(context.Background(), ListSignalsInput{
		IncludeArchived: true,
		Unassigned:      true,
	})
	require.NoError(t, err)
	require.Len(t, unassignedOnly, 1)
	require.Equal(t, unassigned.ID, unassignedOnly[0].ID)
}

func TestSignalEndToEndCreateThenReassign(t *testing.T) {
	f := newFixture(t)
	creator := f.createStaff(t, "creator")
	colleague := f.createStaff(t, "colleague")
	actor := auth.ActorFromUser(creator)

	signal := f.createSignal(t, actor, "")

	// Unassigned creation fans out to the one other staff member.
	rows, err := f.notifications.ListForUser(context.Background(), ListNotificationsInput{UserID: colleague.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = f.signals.SetAssignee(context.Background(), signal.ID, colleague.ID, actor)
	require.NoError(t, err)

	// Reassignment writes history but no new notification.
	rows, err = f.notifications.ListForUser(context.Background(), ListNotificationsInput{UserID: colleague.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, ActionReassigned, events[0].Action)
	require.Equal(t, ActionCreated, events[1].Action)
}

func TestSetActiveFromRecordsChange(t *testing.T) {
	f := newFixture(t)
	actor := auth.ActorFromUser(f.createStaff(t, "alice"))
	signal := f.createSignal(t, actor, "")

	next := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	updated, err := f.signals.SetActiveFrom(context.Background(), signal.ID, next, actor)
	require.NoError(t, err)
	require.True(t, updated.ActiveFrom.Equal(next))

	events, err := f.history.ListForEntity(context.Background(), models.KindSignal, signal.ID)
	require.NoError(t, err)
	require.Equal(t, ActionActiveFromChanged, events[0].Action)

	changes := events[0].DecodeChanges()
	require.Len(t, changes, 1)
	require.Equal(t, "2026-09-01T08:00:00Z", changes["active_from"][1])
}
