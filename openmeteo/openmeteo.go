package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/hours"
	"github.com/icodeforyou/solarcast-etl/weather"
)

const (
	HistoricalURL = "https://historical-forecast-api.open-meteo.com/v1/forecast"
	ForecastURL   = "https://api.open-meteo.com/v1/forecast"
)

type Getter interface {
	Body(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// Source reads the hourly grid of one Open-Meteo endpoint.
type Source struct {
	getter   Getter
	endpoint string
}

func New(getter Getter, endpoint string) *Source {
	return &Source{getter: getter, endpoint: endpoint}
}

type response struct {
	Hourly map[string]json.RawMessage `json:"hourly"`
	Reason string                     `json:"reason"`
}

// Hourly returns a "date" column in the local zone followed by one column per
// variable, named after the variable and tagged with the coordinate id.
func (s *Source) Hourly(ctx context.Context, c weather.Coordinate, start, end time.Time, variables []string) (weather.Table, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(c.Latitude(), 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(c.Longitude(), 'f', -1, 64))
	params.Set("start_date", hours.FormatDate(start))
	params.Set("end_date", hours.FormatDate(end))
	params.Set("hourly", strings.Join(variables, ","))
	params.Set("timeformat", "unixtime")

	body, err := s.getter.Body(ctx, s.endpoint, params)
	if err != nil {
		return weather.Table{}, err
	}
	return decode(body, c.ID, variables)
}

func decode(body []byte, scenario int, variables []string) (weather.Table, error) {
	const op = "decode open-meteo"

	var res response
	if err := json.Unmarshal(body, &res); err != nil {
		return weather.Table{}, etlerr.SchemaMismatch(op, "%v", err)
	}
	if res.Reason != "" {
		return weather.Table{}, etlerr.FatalRequest(op, fmt.Errorf("%s", res.Reason))
	}

	raw, ok := res.Hourly["time"]
	if !ok {
		return weather.Table{}, etlerr.SchemaMismatch(op, "hourly block has no time grid")
	}
	var epochs []int64
	if err := json.Unmarshal(raw, &epochs); err != nil {
		return weather.Table{}, etlerr.SchemaMismatch(op, "time grid: %v", err)
	}

	times := make([]time.Time, len(epochs))
	for i, e := range epochs {
		times[i] = hours.In(time.Unix(e, 0))
	}

	table := weather.Table{Columns: []weather.Column{{Name: "date", Times: times}}}
	for _, v := range variables {
		raw, ok := res.Hourly[v]
		if !ok {
			return weather.Table{}, etlerr.SchemaMismatch(op, "variable %s missing from response", v)
		}
		var cells []*float64
		if err := json.Unmarshal(raw, &cells); err != nil {
			return weather.Table{}, etlerr.SchemaMismatch(op, "variable %s: %v", v, err)
		}
		if len(cells) != len(times) {
			return weather.Table{}, etlerr.SchemaMismatch(op, "variable %s has %d values for %d hours", v, len(cells), len(times))
		}

		values := make([]float64, len(cells))
		for i, cell := range cells {
			if cell == nil {
				values[i] = math.NaN()
			} else {
				values[i] = *cell
			}
		}
		table.Columns = append(table.Columns, weather.Column{Name: weather.RunTag(v, scenario), Values: values})
	}
	return table, nil
}
