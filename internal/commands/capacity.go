package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langchou/chargegazer/internal/models"
)

func newCapacityCommand(opts *globalOptions) *cobra.Command {
	var minSocChange, minEnergy float64

	cmd := &cobra.Command{
		Use:   "capacity <export.json>",
		Short: "Estimate battery capacity and its degradation trend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd.ErrOrStderr())
			defer logger.Sync()

			opts.capacityMinSocChange = minSocChange
			opts.capacityMinEnergyKwh = minEnergy
			engine, err := opts.engine()
			if err != nil {
				return err
			}

			result, err := loadSessions(args[0], logger)
			if err != nil {
				return err
			}

			estimate := engine.EstimateCapacity(result.Sessions)
			out := cmd.OutOrStdout()
			if len(estimate.Points) == 0 {
				_, err := fmt.Fprintln(out, "No sessions qualify for capacity estimation")
				return err
			}

			table := newTable(out, "Date", "Capacity (kWh)", "SOC change", "Trend (kWh)")
			for _, p := range estimate.Points {
				if err := table.Append(capacityRow(p)); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}

			if t := estimate.Trend; t != nil {
				_, err = fmt.Fprintf(out, "Loss since %s: %.2f kWh (%.1f%%), %.2f kWh per year\n",
					t.FirstDate.Format("2006-01-02"), t.LossKwh, t.LossPercent, t.SlopePerYear)
			}
			return err
		},
	}

	cmd.Flags().Float64Var(&minSocChange, "min-soc-change", 0, "Minimum SOC change of a session to be used")
	cmd.Flags().Float64Var(&minEnergy, "min-energy", 0, "Minimum energy added (kWh) of a session to be used")

	return cmd
}

func capacityRow(p models.CapacityPoint) []string {
	date := p.Date.Format("2006-01-02")
	if p.IsMonthlyAverage {
		date = fmt.Sprintf("%s (%d)", p.Month, p.Count)
	}
	trend := "-"
	if p.Trend != nil {
		trend = formatFloat(*p.Trend, 2)
	}
	return []string{date, formatFloat(p.EstimatedBatteryCapacity, 2), formatFloat(p.SocChange, 1), trend}
}
