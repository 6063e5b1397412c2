package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/langchou/chargegazer/internal/models"
)

func ptr(v float64) *float64 { return &v }

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// testSession 构造一条已解析的充电记录，电网电量按 90% 效率反推
func testSession(start time.Time, socStart, socEnd, added float64, provider string) models.Session {
	grid := added / 0.9
	s := models.Session{
		ID:             start.Format("20060102150405"),
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		SocStart:       socStart,
		SocEnd:         socEnd,
		EnergyFromGrid: grid,
		EnergyAddedHvb: added,
		AvgPower:       11,
		Provider:       provider,
		Location:       models.UnknownLocation,
	}
	if grid > 0 {
		s.Efficiency = ptr(added / grid)
	}
	return s
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultOptions())
	require.NoError(t, err)
	return e
}

func repeatSessions(n int, start time.Time, socStart, socEnd float64, provider string) []models.Session {
	sessions := make([]models.Session, 0, n)
	for i := 0; i < n; i++ {
		sessions = append(sessions, testSession(start.Add(time.Duration(i)*time.Hour), socStart, socEnd, 10, provider))
	}
	return sessions
}
