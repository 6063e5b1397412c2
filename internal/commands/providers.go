package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newProvidersCommand(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "providers <export.json>",
		Short: "Group similar provider names and show their success rates",
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

			grouped, err := engine.GroupProviders(result.Sessions, opts.threshold)
			if err != nil {
				return err
			}

			groups := grouped.GroupedSuccessfulProviders
			if all {
				groups = grouped.AllProviders
			}

			table := newTable(cmd.OutOrStdout(), "Provider", "Variants", "Sessions", "Successful", "Failed", "Success rate", "Energy (kWh)")
			for _, g := range groups {
				row := []string{
					g.CanonicalName,
					strings.Join(g.Variants, "\n"),
					strconv.Itoa(g.Total),
					strconv.Itoa(g.SuccessfulCount),
					strconv.Itoa(g.FailedCount),
					formatPercent(g.SuccessRate),
					formatFloat(g.TotalEnergyAdded, 1),
				}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show every provider group instead of the top list")

	return cmd
}
