package database

import (
	"context"
	"fmt"

	"github.com/icodeforyou/solarcast-etl/weather"
)

func (d *Database) Coordinates(ctx context.Context, table string) ([]weather.Coordinate, error) {
	qTable, err := quote(table)
	if err != nil {
		return nil, err
	}
	rows, err := d.read.QueryContext(ctx, fmt.Sprintf(`SELECT id, geometry FROM %s ORDER BY id`, qTable))
	if err != nil {
		return nil, fmt.Errorf("fetching coordinates: %w", err)
	}
	defer rows.Close()

	var coords []weather.Coordinate
	for rows.Next() {
		var id int
		var geometry string
		if err := rows.Scan(&id, &geometry); err != nil {
			return nil, fmt.Errorf("scan coordinate: %w", err)
		}
		c, err := weather.ParseCoordinate(id, geometry)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading coordinate rows: %w", err)
	}
	return coords, nil
}

func (d *Database) SaveCoordinates(ctx context.Context, table string, coords []weather.Coordinate) error {
	qTable, err := quote(table)
	if err != nil {
		return err
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction for coordinates: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, d.rebind(fmt.Sprintf(`
		INSERT INTO %s (id, geometry) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET geometry = excluded.geometry`, qTable)))
	if err != nil {
		return fmt.Errorf("prepare coordinate upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range coords {
		if _, err := stmt.ExecContext(ctx, c.ID, c.WKT()); err != nil {
			return fmt.Errorf("saving coordinate %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}
