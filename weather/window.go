package weather

import (
	"log/slog"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/hours"
)

// HistoricalRange returns the first and last production timestamps.
func HistoricalRange(production *frame.Frame) (first, last time.Time, err error) {
	if production.Len() == 0 {
		return time.Time{}, time.Time{}, etlerr.EmptyResult("historical range", "no production rows")
	}
	return production.Time(0), production.Time(production.Len() - 1), nil
}

// HistoricalWindow keeps the weather rows between the first and last production
// timestamps, both included.
func HistoricalWindow(logger *slog.Logger, weather, production *frame.Frame) (*frame.Frame, error) {
	first, last, err := HistoricalRange(production)
	if err != nil {
		return nil, err
	}

	w := weather.Between(first, last)
	if w.Len() != production.Len() {
		logger.Warn("historical weather does not cover production",
			slog.Int("weather_rows", w.Len()),
			slog.Int("production_rows", production.Len()),
			slog.String("first", hours.FormatIso(first)),
			slog.String("last", hours.FormatIso(last)))
	}
	return w, nil
}

func ForecastStart(last time.Time) time.Time {
	return last.Add(time.Hour)
}

// ForecastWindow keeps the length rows starting one hour after last.
func ForecastWindow(weather *frame.Frame, last time.Time, length int) (*frame.Frame, error) {
	start := ForecastStart(last)
	w := weather.Filter(func(row int) bool {
		return !weather.Time(row).Before(start)
	}).Head(length)

	if w.Len() < length {
		return nil, etlerr.SchemaMismatch("forecast window",
			"%d forecast rows from %s, expected %d", w.Len(), hours.FormatIso(start), length)
	}
	return w, nil
}
