package dataset

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/icodeforyou/solarcast-etl/capacity"
	"github.com/icodeforyou/solarcast-etl/convert"
	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/production"
)

// FullRawInferenceDataset turns production into a generation factor, joins it with the
// historical weather and appends the forecast weather rows, whose production is null.
func FullRawInferenceDataset(prod, historical, forecast *frame.Frame, installed float64) (*frame.Frame, error) {
	const op = "full raw inference dataset"

	if installed <= 0 || math.IsNaN(installed) || math.IsInf(installed, 0) {
		return nil, etlerr.Configuration(op, "installed capacity must be positive, got %v", installed)
	}
	values, ok := prod.Column(production.Column)
	if !ok {
		return nil, etlerr.SchemaMismatch(op, "production has no %s column", production.Column)
	}
	if forecast.Has(production.Column) {
		return nil, etlerr.SchemaMismatch(op, "forecast weather carries a %s column", production.Column)
	}

	for i, v := range values {
		values[i] = v / installed
	}
	factor := prod.Clone()
	if err := factor.Set(production.Column, values); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	merged, err := frame.InnerJoin(factor, historical)
	if err != nil {
		return nil, etlerr.SchemaMismatch(op, "%v", err)
	}
	return frame.Append(merged, forecast).SortByIndex(), nil
}

// NormalizeByCurve divides production by the installed capacity of the same hour.
// Hours without a capacity are dropped.
func NormalizeByCurve(prod, curve *frame.Frame) (*frame.Frame, error) {
	const op = "normalize by capacity curve"

	joined, err := frame.InnerJoin(prod, curve)
	if err != nil {
		return nil, etlerr.SchemaMismatch(op, "%v", err)
	}
	values, ok := joined.Column(production.Column)
	if !ok {
		return nil, etlerr.SchemaMismatch(op, "production has no %s column", production.Column)
	}
	installed, _ := joined.Column(capacity.Column)
	for i := range values {
		values[i] = convert.Ratio(values[i], installed[i])
	}
	if err := joined.Set(production.Column, values); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return joined.Drop(capacity.Column).DropNull(), nil
}

// CreateExploratoryDataset joins production and weather on their timestamps. Nulls in
// the result are reported, not removed.
func CreateExploratoryDataset(logger *slog.Logger, prod, weather *frame.Frame) (*frame.Frame, error) {
	merged, err := frame.InnerJoin(prod, weather)
	if err != nil {
		return nil, etlerr.SchemaMismatch("exploratory dataset", "%v", err)
	}

	if nulls := merged.NullCount(); nulls > 0 {
		cells := merged.Len() * merged.Width()
		logger.Warn("exploratory dataset holds nulls",
			slog.Int("nulls", nulls),
			slog.Float64("fraction", convert.RoundFloat64(float64(nulls)/float64(cells), 4)))
	}
	return merged, nil
}
