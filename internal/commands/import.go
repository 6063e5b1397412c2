package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/models"
	"github.com/langchou/chargegazer/internal/repository"
	"github.com/langchou/chargegazer/internal/service"
)

// openFleetStore 打开车队数据库并执行迁移，测试中可替换
var openFleetStore = func(ctx context.Context, databaseURL string) (service.FleetStore, func(), error) {
	db, err := repository.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return repository.NewFleetRepository(db), db.Close, nil
}

func newImportCommand(opts *globalOptions) *cobra.Command {
	var (
		model       string
		databaseURL string
		batchSize   int
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "import <export.json>",
		Short: "Import an export into the anonymous fleet database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd.ErrOrStderr())
			defer logger.Sync()

			if model == "" {
				return service.ErrModelRequired
			}
			if databaseURL == "" {
				return errors.New("database url is required, set --database-url or DATABASE_URL")
			}
			if batchSize <= 0 {
				return fmt.Errorf("batch size must be positive: %d", batchSize)
			}

			result, err := loadSessions(args[0], logger)
			if err != nil {
				return err
			}

			store, closeStore, err := openFleetStore(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer closeStore()

			progress := io.Writer(cmd.ErrOrStderr())
			if quiet {
				progress = io.Discard
			}

			stored, err := importSessions(cmd.Context(), store, result.Sessions, model, batchSize, progress)
			if err != nil {
				return err
			}

			logger.Info("Fleet import finished",
				zap.String("model", model),
				zap.Int("sessions", len(result.Sessions)),
				zap.Int("stored", stored))

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d sessions for %s (%d duplicates, %d invalid)\n",
				stored, len(result.Sessions), model, len(result.Sessions)-stored, result.Rejected)
			return err
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Vehicle model the export belongs to")
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Sessions written per transaction")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")

	return cmd
}

// importSessions 分批写入，返回新写入（未去重掉）的条数
func importSessions(ctx context.Context, store service.FleetStore, sessions []models.Session, model string, batchSize int, progress io.Writer) (int, error) {
	bar := progressbar.NewOptions(len(sessions),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stored := 0
	for start := 0; start < len(sessions); start += batchSize {
		end := min(start+batchSize, len(sessions))

		batch := make([]models.FleetSession, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, analytics.ToFleetSession(&sessions[i], model))
		}

		n, err := store.SaveSessions(ctx, batch)
		if err != nil {
			return stored, fmt.Errorf("save sessions %d-%d: %w", start, end, err)
		}
		stored += n
		_ = bar.Add(len(batch))
	}
	_ = bar.Finish()

	return stored, nil
}
