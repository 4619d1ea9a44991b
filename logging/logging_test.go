package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/icodeforyou/solarcast-etl/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSaver struct {
	rows []database.LogEntryRow
	err  error
}

func (m *memSaver) SaveLogEntry(_ context.Context, r database.LogEntryRow) error {
	m.rows = append(m.rows, r)
	return m.err
}

func TestDBHandlerKeepsLoggerAttrs(t *testing.T) {
	saver := &memSaver{}
	logger := slog.New(NewDBHandler(saver, slog.LevelWarn, LogAttrFormatJSON)).
		With(slog.String("module", "task"), slog.String("run_id", "abc"))

	logger.Info("ignored")
	logger.Warn("stage failed", slog.String("stage", "fetch"))

	require.Len(t, saver.rows, 1)
	row := saver.rows[0]
	assert.Equal(t, "stage failed", row.Message)
	assert.Equal(t, int(slog.LevelWarn), row.Level)

	var attrs map[string]string
	require.NoError(t, json.Unmarshal([]byte(row.Attrs), &attrs))
	assert.Equal(t, map[string]string{"module": "task", "run_id": "abc", "stage": "fetch"}, attrs)
}

func TestDBHandlerTextFormat(t *testing.T) {
	saver := &memSaver{}
	logger := slog.New(NewDBHandler(saver, slog.LevelInfo, LogAttrFormatText))
	logger.Info("refreshed", slog.String("where", "a=b;c"), slog.Int("rows", 3))

	require.Len(t, saver.rows, 1)
	assert.Equal(t, `where=a\=b\;c; rows=3`, saver.rows[0].Attrs)
}

func TestMultiHandler(t *testing.T) {
	var console bytes.Buffer
	saver := &memSaver{err: errors.New("database is locked")}
	h := NewMultiHandler(
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelDebug}),
		NewDBHandler(saver, slog.LevelError, LogAttrFormatJSON))

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(h).With("module", "etl")
	logger.Debug("batch fetched")
	assert.Empty(t, saver.rows)
	assert.Contains(t, console.String(), "module=etl")

	logger.Error("run failed")
	assert.Len(t, saver.rows, 1)
	assert.Contains(t, console.String(), "run failed")
}

func TestLevelFromString(t *testing.T) {
	warn, debug, junk := "warn", "DEBUG", "loud"
	assert.Equal(t, slog.LevelWarn, LevelFromString(&warn))
	assert.Equal(t, slog.LevelDebug, LevelFromString(&debug))
	assert.Equal(t, slog.LevelInfo, LevelFromString(&junk))
	assert.Equal(t, slog.LevelInfo, LevelFromString(nil))
}
