package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/icodeforyou/solarcast-etl/config"
	"github.com/icodeforyou/solarcast-etl/database"
	"github.com/icodeforyou/solarcast-etl/notify"
	"github.com/robfig/cron/v3"
)

type Tasks struct {
	cron            *cron.Cron
	cnfg            atomic.Pointer[config.AppConfig]
	EtlTask         func()
	MaintenanceTask func()
}

func NewTasks(db *database.Database, notifier notify.Notifier, cnfg *config.AppConfig) *Tasks {
	logger := slog.Default().With("module", "tasks")
	t := &Tasks{cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))}
	t.cnfg.Store(cnfg)
	t.EtlTask = NewEtlTask(logger.With(slog.String("task", "etl")), db, notifier, t.Config)
	t.MaintenanceTask = NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, t.Config)
	return t
}

func (t *Tasks) Config() *config.AppConfig {
	return t.cnfg.Load()
}

// SetConfig swaps the configuration used by the next runs. Schedules keep the
// expressions they were started with.
func (t *Tasks) SetConfig(c *config.AppConfig) {
	t.cnfg.Store(c)
}

func (t *Tasks) Run() error {
	c := t.Config()
	if _, err := t.cron.AddFunc(c.Schedule.Etl, t.EtlTask); err != nil {
		return fmt.Errorf("scheduling etl task %q: %w", c.Schedule.Etl, err)
	}
	if _, err := t.cron.AddFunc(c.Schedule.Maintenance, t.MaintenanceTask); err != nil {
		return fmt.Errorf("scheduling maintenance task %q: %w", c.Schedule.Maintenance, err)
	}
	t.cron.Start()
	return nil
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
