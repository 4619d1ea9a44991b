package task

import (
	"context"
	"errors"
	"testing"

	"github.com/icodeforyou/solarcast-etl/config"
	"github.com/stretchr/testify/assert"
)

type fakeMaintainer struct {
	calls   []string
	backups int
	entries int
	runs    int
}

func (m *fakeMaintainer) Backup(context.Context) error {
	m.calls = append(m.calls, "backup")
	return errors.New("read-only file system")
}

func (m *fakeMaintainer) PurgeBackups(retentionDays int) error {
	m.calls = append(m.calls, "backups")
	m.backups = retentionDays
	return nil
}

func (m *fakeMaintainer) PurgeLog(_ context.Context, maxLogEntries int) error {
	m.calls = append(m.calls, "log")
	m.entries = maxLogEntries
	return nil
}

func (m *fakeMaintainer) PurgeRuns(_ context.Context, retentionDays int) error {
	m.calls = append(m.calls, "runs")
	m.runs = retentionDays
	return nil
}

func TestMaintenanceTask(t *testing.T) {
	keep := 7
	cnfg := &config.AppConfig{Database: config.AppConfigDatabase{RunRetentionDays: &keep}}
	m := &fakeMaintainer{}

	NewMaintenanceTask(quietLogger(), m, func() *config.AppConfig { return cnfg })()

	// a failed backup does not stop the purges
	assert.Equal(t, []string{"backup", "backups", "log", "runs"}, m.calls)
	assert.Equal(t, 30, m.backups)
	assert.Equal(t, 10000, m.entries)
	assert.Equal(t, 7, m.runs)
}
