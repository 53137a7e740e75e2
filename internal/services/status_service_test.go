package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/models"
)

func TestGetDefaultStatusResolvesSeededDefault(t *testing.T) {
	f := newFixture(t)

	status, err := f.statuses.GetDefaultStatus(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.NotNil(t, status)
	require.Equal(t, "open", status.Key)
	require.True(t, status.IsDefault)
}

func TestGetDefaultStatusNilWhenUnmapped(t *testing.T) {
	f := newFixture(t)

	status, err := f.statuses.GetDefaultStatus(context.Background(), models.ModuleMessages)
	require.NoError(t, err)
	require.Nil(t, status)
}

func TestGetDefaultStatusNilWhenUsageDisabled(t *testing.T) {
	f := newFixture(t)

	usage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.NotNil(t, usage)
	require.NotNil(t, usage.StatusSetID)

	_, err = f.statuses.SetUsage(context.Background(), models.ModuleSignals, *usage.StatusSetID, false)
	require.NoError(t, err)

	status, err := f.statuses.GetDefaultStatus(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.Nil(t, status)
}

func TestGetDefaultStatusNilWhenSetDisabled(t *testing.T) {
	f := newFixture(t)

	usage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.NotNil(t, usage.StatusSetID)

	require.NoError(t, f.db.Model(&models.StatusSet{}).
		Where("id = ?", *usage.StatusSetID).
		Update("enabled", false).Error)

	status, err := f.statuses.GetDefaultStatus(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.Nil(t, status)
}

func TestGetDefaultStatusNilWhenSetHasNoDefault(t *testing.T) {
	f := newFixture(t)

	usage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.NotNil(t, usage.StatusSetID)

	require.NoError(t, f.db.Model(&models.Status{}).
		Where("status_set_id = ?", *usage.StatusSetID).
		Update("is_default", false).Error)

	status, err := f.statuses.GetDefaultStatus(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.Nil(t, status)
}

func TestEnsureStatusIsIdempotentAndPreservesDefault(t *testing.T) {
	f := newFixture(t)

	usage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	setID := *usage.StatusSetID

	// Re-running the upsert with IsDefault unset must not strip the
	// existing default.
	status, err := f.statuses.EnsureStatus(context.Background(), EnsureStatusInput{
		StatusSetID: setID,
		Key:         "open",
		Label:       "Open (updated)",
		SortOrder:   15,
		IsDefault:   false,
	})
	require.NoError(t, err)
	require.Equal(t, "Open (updated)", status.Label)

	resolved, err := f.statuses.GetDefaultStatus(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, "open", resolved.Key)

	var count int64
	require.NoError(t, f.db.Model(&models.Status{}).
		Where("status_set_id = ? AND key = ?", setID, "open").
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEnsureStatusWithDefaultClearsSiblings(t *testing.T) {
	f := newFixture(t)

	usage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	setID := *usage.StatusSetID

	created, err := f.statuses.EnsureStatus(context.Background(), EnsureStatusInput{
		StatusSetID: setID,
		Key:         "triage",
		Label:       "Triage",
		SortOrder:   5,
		IsDefault:   true,
	})
	require.NoError(t, err)
	require.True(t, created.IsDefault)

	var defaults int64
	require.NoError(t, f.db.Model(&models.Status{}).
		Where("status_set_id = ? AND is_default = ?", setID, true).
		Count(&defaults).Error)
	require.EqualValues(t, 1, defaults)
}

func TestSetDefaultIsExclusive(t *testing.T) {
	f := newFixture(t)

	usage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	setID := *usage.StatusSetID

	statuses, err := f.statuses.ListForModule(context.Background(), models.ModuleSignals)
	require.NoError(t, err)

	var done *models.Status
	for i := range statuses {
		if statuses[i].Key == "done" {
			done = &statuses[i]
		}
	}
	require.NotNil(t, done)
	require.False(t, done.IsDefault)

	promoted, err := f.statuses.SetDefault(context.Background(), setID, done.ID)
	require.NoError(t, err)
	require.True(t, promoted.IsDefault)

	var defaults []models.Status
	require.NoError(t, f.db.Where("status_set_id = ? AND is_default = ?", setID, true).
		Find(&defaults).Error)
	require.Len(t, defaults, 1)
	require.Equal(t, done.ID, defaults[0].ID)
}

func TestSetDefaultRejectsForeignStatus(t *testing.T) {
	f := newFixture(t)

	signalsUsage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	tasksStatuses, err := f.statuses.ListForModule(context.Background(), models.ModuleTasks)
	require.NoError(t, err)
	require.NotEmpty(t, tasksStatuses)

	_, err = f.statuses.SetDefault(context.Background(), *signalsUsage.StatusSetID, tasksStatuses[0].ID)
	require.Error(t, err)
}

func TestSeedDefaultsIsRepeatable(t *testing.T) {
	f := newFixture(t)

	// The fixture already seeded once; seeding must be safe to run again
	// without duplicating rows or moving defaults.
	require.NoError(t, database.SeedDefaults(f.db))

	var sets, defaults int64
	require.NoError(t, f.db.Model(&models.StatusSet{}).Count(&sets).Error)
	require.EqualValues(t, 2, sets)

	usage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Status{}).
		Where("status_set_id = ? AND is_default = ?", *usage.StatusSetID, true).
		Count(&defaults).Error)
	require.EqualValues(t, 1, defaults)
}

func TestListForModuleOrdersBySortOrder(t *testing.T) {
	f := newFixture(t)

	usage, err := f.statuses.GetUsage(context.Background(), models.ModuleSignals)
	require.NoError(t, err)

	_, err = f.statuses.EnsureStatus(context.Background(), EnsureStatusInput{
		StatusSetID: *usage.StatusSetID,
		Key:         "triage",
		Label:       "Triage",
		SortOrder:   5,
	})
	require.NoError(t, err)

	statuses, err := f.statuses.ListForModule(context.Background(), models.ModuleSignals)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	require.Equal(t, "triage", statuses[0].Key)
	require.Equal(t, "open", statuses[1].Key)
	require.Equal(t, "done", statuses[2].Key)
}
