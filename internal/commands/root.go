// Package commands chargectl 命令行：离线分析 CarData 导出文件，或导入车队数据库
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/cardata"
	"github.com/langchou/chargegazer/internal/models"
)

// Version chargectl 版本
const Version = "1.0.0"

type globalOptions struct {
	threshold   float64
	minSessions int
	top         int
	debug       bool

	capacityMinSocChange float64
	capacityMinEnergyKwh float64
}

// NewRootCommand 创建 chargectl 根命令
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "chargectl",
		Short:         "Charging session analytics for CarData exports",
		Long:          `Analyze BMW CarData charging exports offline or import them into the fleet database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.Float64Var(&opts.threshold, "threshold", analytics.DefaultSimilarityThreshold, "Provider name similarity threshold (0-1)")
	flags.IntVar(&opts.minSessions, "min-sessions", analytics.DefaultMinGroupSessions, "Minimum sessions for a provider to enter top lists")
	flags.IntVar(&opts.top, "top", analytics.DefaultTopProviders, "Length of provider top lists")
	flags.BoolVar(&opts.debug, "debug", false, "Show debug logging")

	rootCmd.AddCommand(
		newStatsCommand(opts),
		newProvidersCommand(opts),
		newCapacityCommand(opts),
		newLocationsCommand(opts),
		newImportCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

func (o *globalOptions) engine() (*analytics.Engine, error) {
	eo := analytics.DefaultOptions()
	eo.SimilarityThreshold = o.threshold
	eo.MinGroupSessions = o.minSessions
	eo.TopProviders = o.top
	eo.CapacityMinSocChange = o.capacityMinSocChange
	eo.CapacityMinEnergyKwh = o.capacityMinEnergyKwh
	return analytics.New(eo)
}

func (o *globalOptions) logger(w io.Writer) *zap.Logger {
	if !o.debug {
		return zap.NewNop()
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), zapcore.DebugLevel))
}

// loadSessions 读取导出文件并解析
func loadSessions(path string, logger *zap.Logger) (analytics.ParseResult, error) {
	export, err := cardata.ReadFile(path)
	if err != nil {
		return analytics.ParseResult{}, err
	}

	result := export.Parse()
	logger.Debug("Export loaded",
		zap.String("path", path),
		zap.String("format", export.Format),
		zap.Int("sessions", len(result.Sessions)),
		zap.Int("rejected", result.Rejected))
	for _, e := range result.Errors {
		logger.Debug("Record rejected", zap.Error(e))
	}

	if len(result.Sessions) == 0 {
		return result, fmt.Errorf("no valid charging sessions in %s", path)
	}
	return result, nil
}

func filterRange(sessions []models.Session, since, until string) ([]models.Session, *analytics.DateRange, error) {
	rng, err := analytics.ParseDateRange(since, until)
	if err != nil {
		return nil, nil, err
	}
	return analytics.FilterSessions(sessions, rng), rng, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the chargectl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "chargectl %s\n", Version)
			return err
		},
	}
}
