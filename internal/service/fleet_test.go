package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/models"
)

func parsedSessions(t *testing.T, raws ...models.RawRecord) []models.Session {
	t.Helper()
	result := analytics.ParseRecords(raws)
	require.Zero(t, result.Rejected)
	return result.Sessions
}

func TestFleetDisabled(t *testing.T) {
	fleet := NewFleetService(nil, testEngine(t), zap.NewNop())
	ctx := context.Background()

	assert.False(t, fleet.Enabled())
	_, err := fleet.AnonymousStats(ctx)
	assert.True(t, errors.Is(err, ErrFleetDisabled))
	_, err = fleet.BatteryHealth(ctx, "")
	assert.True(t, errors.Is(err, ErrFleetDisabled))
	_, err = fleet.Contribute(ctx, nil, "iX")
	assert.True(t, errors.Is(err, ErrFleetDisabled))
}

func TestFleetAnonymousStats(t *testing.T) {
	fleet := NewFleetService(NewMemoryFleetStore(), testEngine(t), zap.NewNop())
	ctx := context.Background()

	_, err := fleet.Contribute(ctx, parsedSessions(t,
		rawRecord(1, 20, 80, 50, 45, "EnBW"),
		rawRecord(2, 30, 30, 0, 0, "enbw"),
	), "iX")
	require.NoError(t, err)
	_, err = fleet.Contribute(ctx, parsedSessions(t,
		rawRecord(3, 10, 90, 60, 54, "IONITY"),
	), "i4")
	require.NoError(t, err)

	stats, err := fleet.AnonymousStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.GlobalStats.TotalSessions)
	assert.Equal(t, 1, stats.GlobalStats.FailedSessions)
	assert.Equal(t, 99.0, stats.GlobalStats.TotalEnergyAdded)
	assert.Len(t, stats.AllProviders, 2)
	assert.InDelta(t, 0.9, stats.OverallEfficiency, 1e-9)
}

func TestFleetBatteryHealth(t *testing.T) {
	store := NewMemoryFleetStore()
	fleet := NewFleetService(store, testEngine(t), zap.NewNop())
	ctx := context.Background()

	_, err := fleet.Contribute(ctx, parsedSessions(t,
		rawRecord(1, 20, 70, 50, 40, "EnBW"),
		rawRecord(20, 20, 70, 50, 39, "EnBW"),
	), "iX")
	require.NoError(t, err)
	_, err = fleet.Contribute(ctx, parsedSessions(t, rawRecord(5, 20, 70, 40, 35, "EnBW")), "i4")
	require.NoError(t, err)

	health, err := fleet.BatteryHealth(ctx, "iX")
	require.NoError(t, err)
	assert.Equal(t, "iX", health.ModelFilter)
	assert.Equal(t, []string{"i4", "iX"}, health.AvailableModels)
	assert.Len(t, health.BatteryHealthData, 3)
	require.NotNil(t, health.Trend)
	assert.Equal(t, analytics.FittedOnRaw, health.Trend.FittedOn)

	all, err := fleet.BatteryHealth(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all.BatteryHealthData, 4)
}

func TestMemoryFleetStore(t *testing.T) {
	store := NewMemoryFleetStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stored, err := store.SaveSessions(ctx, []models.FleetSession{
		{Fingerprint: "b", Model: "iX", StartTime: base.Add(time.Hour)},
		{Fingerprint: "a", Model: "i4", StartTime: base},
		{Fingerprint: "a", Model: "i4", StartTime: base},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	list, err := store.ListSessions(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Fingerprint)

	list, err = store.ListSessions(ctx, "iX")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	count, err := store.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
