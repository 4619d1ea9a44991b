package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/hours"
)

const defaultIndexColumn = "date_heure"

// Refresh replaces the whole content of table with ds in a single transaction. The
// table is created, or extended with the missing columns, as needed. Timestamps are
// written in local time without zone, nulls as SQL NULL. The index column is not unique:
// the hour repeated when the clocks go back prints twice.
func (d *Database) Refresh(ctx context.Context, table string, ds *frame.Frame) (int, error) {
	qTable, err := quote(table)
	if err != nil {
		return 0, fmt.Errorf("refreshing table: %w", err)
	}
	indexName := ds.IndexName()
	if indexName == "" {
		indexName = defaultIndexColumn
	}
	columns := append([]string{indexName}, ds.Columns()...)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		if quoted[i], err = quote(c); err != nil {
			return 0, fmt.Errorf("refreshing %s: %w", table, err)
		}
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("start transaction for %s: %w", table, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s TEXT NOT NULL)`, qTable, quoted[0]))
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	existing, err := d.tableColumns(ctx, tx, table)
	if err != nil {
		return 0, err
	}
	for i, c := range columns[1:] {
		if slices.Contains(existing, c) {
			continue
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s DOUBLE PRECISION`, qTable, quoted[i+1]))
		if err != nil {
			return 0, fmt.Errorf("add column %s to %s: %w", c, table, err)
		}
	}

	if err := d.truncate(ctx, tx, qTable); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, d.rebind(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		qTable, strings.Join(quoted, ", "), placeholders)))
	if err != nil {
		return 0, fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	names := ds.Columns()
	args := make([]any, len(columns))
	for row := 0; row < ds.Len(); row++ {
		args[0] = hours.FormatIso(ds.Time(row))
		for i, n := range names {
			if v := ds.Value(n, row); frame.IsNull(v) {
				args[i+1] = nil
			} else {
				args[i+1] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d into %s: %w", row, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit refresh of %s: %w", table, err)
	}

	d.logger.Info("table refreshed", slog.String("table", table), slog.Int("rows", ds.Len()), slog.Int("columns", len(columns)))
	return ds.Len(), nil
}

func (d *Database) truncate(ctx context.Context, tx *sql.Tx, qTable string) error {
	if d.driver == Postgres {
		_, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+qTable)
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM "+qTable)
	return err
}

func (d *Database) tableColumns(ctx context.Context, tx *sql.Tx, table string) ([]string, error) {
	var rows *sql.Rows
	var err error
	if d.driver == Postgres {
		rows, err = tx.QueryContext(ctx,
			`SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`, table)
	} else {
		rows, err = tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	}
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// CountRows returns the number of rows of table.
func (d *Database) CountRows(ctx context.Context, table string) (int, error) {
	qTable, err := quote(table)
	if err != nil {
		return 0, err
	}
	var n int
	if err := d.read.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return n, nil
}
