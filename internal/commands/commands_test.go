package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/service"
)

const export = `[
  {
    "startTime": 1709280000,
    "endTime": 1709283600,
    "displayedStartSoc": 20,
    "displayedSoc": 80,
    "energyConsumedFromPowerGridKwh": 50,
    "energyIncreaseHvbKwh": 46,
    "chargingCostInformation": {"calculatedChargingCost": 29.5},
    "chargingLocation": {"formattedAddress": "Leopoldstraße 82, München", "mapMatchedLatitude": 48.162, "mapMatchedLongitude": 11.586},
    "chargingBlocks": [{"averagePowerGridKw": 100}, {"averagePowerGridKw": 50}],
    "mileage": 15000,
    "publicChargingPoint": {"potentialChargingPointMatches": [{"providerName": "IONITY GmbH"}]}
  },
  {
    "startTime": 1709366400,
    "endTime": 1709370000,
    "displayedStartSoc": 30,
    "displayedSoc": 30,
    "energyConsumedFromPowerGridKwh": 0,
    "chargingLocation": {"formattedAddress": "Leopoldstraße 82, München", "mapMatchedLatitude": 48.162, "mapMatchedLongitude": 11.586},
    "chargingBlocks": [],
    "mileage": 15100,
    "publicChargingPoint": {"potentialChargingPointMatches": [{"providerName": "Ionity"}]}
  },
  {
    "startTime": 1709452800,
    "endTime": 1709449200,
    "displayedStartSoc": 10,
    "displayedSoc": 50
  }
]`

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "chargectl "+Version+"\n", out)
}

func TestStatsCommand(t *testing.T) {
	out, err := run(t, "stats", writeExport(t))
	require.NoError(t, err)

	assert.Contains(t, out, "1 invalid records skipped")
	assert.Contains(t, out, "Success rate")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "29.50")
}

func TestStatsCommandDateRange(t *testing.T) {
	path := writeExport(t)

	_, err := run(t, "stats", path, "--since", "2024-03-02")
	assert.ErrorIs(t, err, analytics.ErrInvalidDateRange)

	out, err := run(t, "stats", path, "--since", "2024-03-02", "--until", "2024-03-02")
	require.NoError(t, err)
	assert.Contains(t, out, "0.0%")
}

func TestProvidersCommand(t *testing.T) {
	path := writeExport(t)

	out, err := run(t, "providers", path, "--all", "--min-sessions", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "IONITY GmbH")

	_, err = run(t, "providers", path, "--threshold", "1.5")
	assert.ErrorIs(t, err, analytics.ErrInvalidThreshold)
}

func TestCapacityCommand(t *testing.T) {
	path := writeExport(t)

	out, err := run(t, "capacity", path)
	require.NoError(t, err)
	assert.Contains(t, out, "76.67")

	out, err = run(t, "capacity", path, "--min-energy", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions qualify")
}

func TestLocationsCommand(t *testing.T) {
	out, err := run(t, "locations", writeExport(t))
	require.NoError(t, err)
	assert.Contains(t, out, "48.1620")
	assert.Contains(t, out, "11.5860")
}

func TestMissingExport(t *testing.T) {
	_, err := run(t, "stats", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestImportCommand(t *testing.T) {
	store := service.NewMemoryFleetStore()
	orig := openFleetStore
	openFleetStore = func(ctx context.Context, databaseURL string) (service.FleetStore, func(), error) {
		return store, func() {}, nil
	}
	t.Cleanup(func() { openFleetStore = orig })

	path := writeExport(t)

	out, err := run(t, "import", path, "--model", "iX", "--database-url", "postgres://test", "--batch-size", "1", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 2 sessions for iX")

	out, err = run(t, "import", path, "--model", "iX", "--database-url", "postgres://test", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 of 2 sessions")

	count, err := store.CountSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestImportCommandValidation(t *testing.T) {
	path := writeExport(t)

	_, err := run(t, "import", path, "--database-url", "postgres://test")
	assert.ErrorIs(t, err, service.ErrModelRequired)

	_, err = run(t, "import", path, "--model", "iX", "--database-url", "")
	assert.Error(t, err)

	_, err = run(t, "import", path, "--model", "iX", "--database-url", "postgres://test", "--batch-size", "0")
	assert.Error(t, err)
}
