package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/chargegazer/internal/models"
)

func TestParseDateRange(t *testing.T) {
	rng, err := ParseDateRange("", "")
	require.NoError(t, err)
	assert.Nil(t, rng)

	rng, err = ParseDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.NotNil(t, rng)
	assert.True(t, rng.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, rng.Contains(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, rng.Contains(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)))
}

func TestParseDateRangeErrors(t *testing.T) {
	for _, tc := range [][2]string{
		{"2024-01-01", ""},
		{"", "2024-01-01"},
		{"2024/01/01", "2024-01-31"},
		{"2024-02-01", "2024-01-01"},
	} {
		_, err := ParseDateRange(tc[0], tc[1])
		assert.True(t, errors.Is(err, ErrInvalidDateRange), "%v", tc)
	}
}

func TestFilterSessions(t *testing.T) {
	sessions := []models.Session{
		testSession(at(2024, 1, 10), 20, 80, 40, "EnBW"),
		testSession(at(2024, 2, 10), 20, 80, 40, "EnBW"),
		testSession(at(2024, 3, 10), 20, 80, 40, "EnBW"),
	}

	rng, err := ParseDateRange("2024-02-01", "2024-03-10")
	require.NoError(t, err)

	filtered := FilterSessions(sessions, rng)
	require.Len(t, filtered, 2)
	assert.Equal(t, sessions[1].ID, filtered[0].ID)
	assert.Equal(t, sessions[2].ID, filtered[1].ID)

	assert.Len(t, FilterSessions(sessions, nil), 3)
}
