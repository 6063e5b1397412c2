package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/chargegazer/internal/models"
)

// 需要 PostgreSQL，设置 TEST_DATABASE_URL 后运行
func testDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestFleetRepository(t *testing.T) {
	db := testDB(t)
	repo := NewFleetRepository(db)
	ctx := context.Background()

	// 每次运行使用独立车型，避免受历史数据影响
	model := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM fleet_sessions WHERE model = $1`, model)
	})

	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	sessions := []models.FleetSession{
		{Fingerprint: uuid.NewString() + "b", Model: model, StartTime: base.Add(time.Hour), EndTime: base.Add(2 * time.Hour), SocStart: 20, SocEnd: 80, EnergyFromGrid: 50, EnergyAddedHvb: 45, Provider: "EnBW"},
		{Fingerprint: uuid.NewString() + "a", Model: model, StartTime: base, EndTime: base.Add(time.Hour), SocStart: 30, SocEnd: 30, Provider: "IONITY", Cost: 1.5},
	}

	stored, err := repo.SaveSessions(ctx, sessions)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	stored, err = repo.SaveSessions(ctx, sessions[:1])
	require.NoError(t, err)
	assert.Zero(t, stored)

	list, err := repo.ListSessions(ctx, model)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "IONITY", list[0].Provider)
	assert.Equal(t, 1.5, list[0].Cost)
	assert.True(t, list[0].StartTime.Equal(base))

	names, err := repo.AvailableModels(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, model)

	count, err := repo.CountSessions(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
}
