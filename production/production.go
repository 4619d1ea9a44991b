package production

import (
	"fmt"
	"sort"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/fetch"
	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/hours"
)

const (
	Column    = "solaire"
	IndexName = "date_heure"
	opPrepare = "prepare production"
)

type Mode string

const (
	Training  Mode = "training"
	Inference Mode = "inference"
)

// Schema names the source columns of one production export.
type Schema struct {
	Region    string
	Timestamp string
	Value     string
}

var schemas = map[Mode]Schema{
	Training:  {Region: "Code INSEE région", Timestamp: "Date - Heure", Value: "Solaire (MW)"},
	Inference: {Region: "code_insee_region", Timestamp: "date_heure", Value: "solaire"},
}

func SchemaFor(mode Mode) (Schema, error) {
	s, ok := schemas[mode]
	if !ok {
		return Schema{}, etlerr.Configuration(opPrepare, "unknown production mode %q", mode)
	}
	return s, nil
}

type point struct {
	at    time.Time
	value float64
}

// Prepare keeps the rows of region, converts them to the local zone and averages them
// per step. Buckets without any value are dropped.
func Prepare(raw fetch.Records, region int, step time.Duration, mode Mode) (*frame.Frame, error) {
	schema, err := SchemaFor(mode)
	if err != nil {
		return nil, err
	}
	if step <= 0 {
		return nil, etlerr.Configuration(opPrepare, "aggregation step must be positive, got %s", step)
	}

	points := make([]point, 0, len(raw))
	for i, r := range raw {
		if _, ok := r[schema.Timestamp]; !ok {
			return nil, etlerr.SchemaMismatch(opPrepare, "row %d has no %q column", i, schema.Timestamp)
		}
		code, ok := r.Int(schema.Region)
		if !ok || code != region {
			continue
		}
		at, ok := r.Time(schema.Timestamp)
		if !ok {
			return nil, etlerr.SchemaMismatch(opPrepare, "row %d: unreadable timestamp %v", i, r[schema.Timestamp])
		}
		value, ok := r.Float(schema.Value)
		if !ok {
			value = frame.Null()
		}
		points = append(points, point{at: hours.In(at), value: value})
	}

	sort.SliceStable(points, func(a, b int) bool { return points[a].at.Before(points[b].at) })

	index := make([]time.Time, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		index[i] = p.at
		values[i] = p.value
	}

	f := frame.New(index)
	f.SetIndexName(IndexName)
	if err := f.Set(Column, values); err != nil {
		return nil, fmt.Errorf("%s: %w", opPrepare, err)
	}

	resampled := f.Resample(func(t time.Time) time.Time { return hours.Floor(t, step) })
	return resampled.DropNull(), nil
}
