package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/chargegazer/internal/analytics"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"PORT", "DEBUG", "DATABASE_URL", "SIMILARITY_THRESHOLD", "MIN_GROUP_SESSIONS", "WORKSPACE_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8050", cfg.ServerPort)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 0.8, cfg.SimilarityThreshold)
	assert.Equal(t, 50, cfg.MinGroupSessions)
	assert.Equal(t, 30*time.Minute, cfg.WorkspaceTTL)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("DEBUG", "true")
	t.Setenv("SIMILARITY_THRESHOLD", "0.65")
	t.Setenv("MIN_GROUP_SESSIONS", "10")
	t.Setenv("WORKSPACE_TTL", "1h")
	t.Setenv("TOP_PROVIDERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ServerPort)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 0.65, cfg.SimilarityThreshold)
	assert.Equal(t, 10, cfg.MinGroupSessions)
	assert.Equal(t, time.Hour, cfg.WorkspaceTTL)
	assert.Equal(t, 5, cfg.TopProviders)

	opts := cfg.AnalyticsOptions()
	assert.Equal(t, 0.65, opts.SimilarityThreshold)
	assert.Equal(t, 10, opts.MinGroupSessions)
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")

	_, err := Load()
	assert.True(t, errors.Is(err, analytics.ErrInvalidThreshold))
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
