package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/langchou/chargegazer/internal/models"
)

func newStatsCommand(opts *globalOptions) *cobra.Command {
	var since, until string

	cmd := &cobra.Command{
		Use:   "stats <export.json>",
		Short: "Show overall charging statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd.ErrOrStderr())
			defer logger.Sync()

			engine, err := opts.engine()
			if err != nil {
				return err
			}

			result, err := loadSessions(args[0], logger)
			if err != nil {
				return err
			}

			filtered, rng, err := filterRange(result.Sessions, since, until)
			if err != nil {
				return err
			}

			snapshot := engine.Aggregate(filtered, rng)
			out := cmd.OutOrStdout()
			if result.Rejected > 0 {
				fmt.Fprintf(out, "%d invalid records skipped\n", result.Rejected)
			}
			return renderStats(out, snapshot)
		},
	}

	cmd.Flags().StringVarP(&since, "since", "s", "", "Filter from date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&until, "until", "u", "", "Filter until date, inclusive (YYYY-MM-DD)")

	return cmd
}

func renderStats(w io.Writer, s models.StatsSnapshot) error {
	table := newTable(w, "Metric", "Value")

	rows := [][]string{
		{"Sessions", strconv.Itoa(s.SessionStats.TotalSessions)},
		{"Successful", strconv.Itoa(s.SessionStats.TotalSuccessfulSessions)},
		{"Failed", strconv.Itoa(s.SessionStats.TotalFailedSessions)},
		{"Success rate", formatPercent(s.SessionStats.SuccessRate)},
		{"Efficiency", formatPercent(s.OverallEfficiency * 100)},
		{"Energy from grid (kWh)", formatFloat(s.Energy.TotalEnergyFromGrid, 2)},
		{"Energy added (kWh)", formatFloat(s.Energy.TotalEnergyAdded, 2)},
		{"Energy wasted (kWh)", formatFloat(s.Energy.EnergyWastedKwh, 2)},
		{"Energy wasted", formatPercent(s.Energy.EnergyWastedPercent)},
		{"Total cost", formatFloat(s.Energy.TotalCost, 2)},
		{"Cost per kWh", formatFloat(s.Energy.CostPerKwh, 2)},
		{"Peak power (kW)", formatFloat(s.Energy.PeakPower, 1)},
		{"Distance (km)", formatFloat(s.TotalDistanceKm, 0)},
		{"Consumption (kWh/100km)", formatFloat(s.PowerConsumptionPer100km, 1)},
		{"Average start SOC", formatPercent(s.SOCStats.AverageStartSoc)},
		{"Average end SOC", formatPercent(s.SOCStats.AverageEndSoc)},
	}
	for _, ct := range []models.ChargingType{models.ChargingTypeAC, models.ChargingTypeDC} {
		if stats, ok := s.Energy.ChargingTypes[ct]; ok {
			rows = append(rows, []string{fmt.Sprintf("%s sessions", ct), strconv.Itoa(stats.Sessions)})
		}
	}
	if s.UsingEstimatedValues {
		rows = append(rows, []string{"Estimated values", "yes"})
	}

	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
