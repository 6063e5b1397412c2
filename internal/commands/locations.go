package commands

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newLocationsCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "locations <export.json>",
		Short: "List charging locations by session count",
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

			locations := engine.AggregateByLocation(result.Sessions)
			if limit > 0 && len(locations) > limit {
				locations = locations[:limit]
			}

			table := newTable(cmd.OutOrStdout(), "Location", "Provider", "Latitude", "Longitude", "Sessions", "Failed", "Energy (kWh)")
			for _, l := range locations {
				row := []string{
					l.Name,
					l.Provider,
					formatFloat(l.Latitude, 4),
					formatFloat(l.Longitude, 4),
					strconv.Itoa(l.SessionCount),
					strconv.Itoa(l.FailedCount),
					formatFloat(l.TotalEnergy, 1),
				}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of locations to show (0 for all)")

	return cmd
}
