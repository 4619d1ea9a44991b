package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Source returns the hourly weather of one coordinate, with a "date" column and one
// column per variable tagged with the coordinate id.
type Source interface {
	Hourly(ctx context.Context, c Coordinate, start, end time.Time, variables []string) (Table, error)
}

type Sleeper func(ctx context.Context, d time.Duration) error

// FetchScenarios queries every coordinate in order, waiting delay between two calls.
func FetchScenarios(ctx context.Context, logger *slog.Logger, src Source, sleep Sleeper,
	coords []Coordinate, start, end time.Time, variables []string, delay time.Duration) ([]Table, error) {

	tables := make([]Table, 0, len(coords))
	for i, c := range coords {
		if i > 0 && delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		t, err := src.Hourly(ctx, c, start, end, variables)
		if err != nil {
			return nil, fmt.Errorf("weather for coordinate %d: %w", c.ID, err)
		}
		logger.Debug("scenario fetched", slog.Int("coordinate", c.ID), slog.Int("rows", t.Len()))
		tables = append(tables, t)
	}
	return tables, nil
}
