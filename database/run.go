package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRow is one ETL execution.
type RunRow struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Status   RunStatus
	Rows     int
	Error    string
}

func (d *Database) SaveRun(ctx context.Context, r RunRow) error {
	var finished sql.NullString
	if !r.Finished.IsZero() {
		finished = sql.NullString{String: r.Finished.UTC().Format(time.RFC3339), Valid: true}
	}
	var errText sql.NullString
	if r.Error != "" {
		errText = sql.NullString{String: r.Error, Valid: true}
	}

	_, err := d.write.ExecContext(ctx, d.rebind(`
		INSERT INTO etl_run (id, started, finished, status, rows, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			finished = excluded.finished,
			status = excluded.status,
			rows = excluded.rows,
			error = excluded.error`),
		r.ID,
		r.Started.UTC().Format(time.RFC3339),
		finished,
		string(r.Status),
		r.Rows,
		errText)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", r.ID, err)
	}
	return nil
}

func (d *Database) GetRun(ctx context.Context, id string) (RunRow, error) {
	var r RunRow
	var started string
	var finished, errText sql.NullString
	var status string
	err := d.read.QueryRowContext(ctx, d.rebind(`
		SELECT id, started, finished, status, rows, error FROM etl_run WHERE id = ?`), id).
		Scan(&r.ID, &started, &finished, &status, &r.Rows, &errText)
	if err != nil {
		return RunRow{}, fmt.Errorf("fetching run %s: %w", id, err)
	}

	r.Status = RunStatus(status)
	r.Error = errText.String
	if r.Started, err = time.Parse(time.RFC3339, started); err != nil {
		return RunRow{}, fmt.Errorf("parsing run start: %w", err)
	}
	if finished.Valid {
		if r.Finished, err = time.Parse(time.RFC3339, finished.String); err != nil {
			return RunRow{}, fmt.Errorf("parsing run end: %w", err)
		}
	}
	return r, nil
}

// PurgeRuns deletes the runs started more than retentionDays ago.
func (d *Database) PurgeRuns(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	before := time.Now().Add(-24 * time.Hour * time.Duration(retentionDays)).UTC().Format(time.RFC3339)
	res, err := d.write.ExecContext(ctx, d.rebind(`DELETE FROM etl_run WHERE started < ?`), before)
	if err != nil {
		return fmt.Errorf("error when purging etl_run: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", "etl_run"), slog.Any("error", err))
	} else {
		d.logger.Debug(fmt.Sprintf("purged %d rows from etl_run", rows))
	}
	return nil
}
