package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/solarcast-etl/config"
)

type Maintainer interface {
	Backup(ctx context.Context) error
	PurgeBackups(retentionDays int) error
	PurgeLog(ctx context.Context, maxLogEntries int) error
	PurgeRuns(ctx context.Context, retentionDays int) error
}

func NewMaintenanceTask(logger *slog.Logger, db Maintainer, cnfg func() *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		c := cnfg()

		if err := db.Backup(ctx); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
		}

		if err := db.PurgeBackups(c.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeLog(ctx, c.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeRuns(ctx, c.Database.GetRunRetentionDays()); err != nil {
			logger.Error("etl_run maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}
