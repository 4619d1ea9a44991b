package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/icodeforyou/solarcast-etl/config"
	"github.com/icodeforyou/solarcast-etl/database"
	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/features"
	"github.com/icodeforyou/solarcast-etl/fetch"
	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/hours"
	"github.com/icodeforyou/solarcast-etl/notify"
	"github.com/icodeforyou/solarcast-etl/weather"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	coords  []weather.Coordinate
	table   string
	dataset *frame.Frame
	runs    []database.RunRow
	err     error
}

func (s *fakeStore) Coordinates(context.Context, string) ([]weather.Coordinate, error) {
	return s.coords, nil
}

func (s *fakeStore) Refresh(_ context.Context, table string, ds *frame.Frame) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.table, s.dataset = table, ds
	return ds.Len(), nil
}

func (s *fakeStore) SaveRun(_ context.Context, r database.RunRow) error {
	s.runs = append(s.runs, r)
	return nil
}

type fakeProduction struct {
	rows fetch.Records
}

func (p *fakeProduction) FetchPaginated(context.Context, string, int, int, url.Values) (fetch.Records, error) {
	return p.rows, nil
}

type fakeRegistry struct {
	rows fetch.Records
}

func (r *fakeRegistry) Fetch(context.Context, string, url.Values) (fetch.Records, error) {
	return r.rows, nil
}

// fakeWeather returns whole days of hourly values, the value being the hour plus the
// coordinate id. A non zero until cuts the days short.
type fakeWeather struct {
	calls []int
	until time.Time
}

func (w *fakeWeather) Hourly(_ context.Context, c weather.Coordinate, start, end time.Time, variables []string) (weather.Table, error) {
	w.calls = append(w.calls, c.ID)
	to := hours.FloorDay(end).Add(23 * time.Hour)
	if !w.until.IsZero() && w.until.Before(to) {
		to = w.until
	}
	times := hours.Range(hours.FloorDay(start), to, time.Hour)
	t := weather.Table{Columns: []weather.Column{{Name: "date", Times: times}}}
	for _, v := range variables {
		values := make([]float64, len(times))
		for i, at := range times {
			values[i] = float64(at.Hour() + c.ID)
		}
		t.Columns = append(t.Columns, weather.Column{Name: weather.RunTag(v, c.ID), Values: values})
	}
	return t, nil
}

type fakeNotifier struct {
	events []notify.Event
}

func (n *fakeNotifier) Refreshed(_ context.Context, e notify.Event) error {
	n.events = append(n.events, e)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Region:     config.AppConfigRegion{Code: 76, AggregationStep: time.Hour},
		Production: config.AppConfigProduction{NHours: 6, BatchLimit: 96},
		Weather: config.AppConfigWeather{
			Variables: []string{"temperature_2m"},
			LenPrev:   3,
		},
		Features: config.AppConfigFeatures{
			CentralScenario: 13,
			Lags:            []int{1},
			LaggedFeatures:  []string{"solaire", "temperature_2m"},
			Timeframes:      []features.Timeframe{{Unit: "hour", Period: 24}},
			Target:          "solaire",
			IndexName:       "date_heure",
		},
		Database: config.AppConfigDatabase{CoordinateTable: "coordinates", InferenceTable: "inference_dataset"},
	}
}

type fixture struct {
	store    *fakeStore
	weather  *fakeWeather
	notifier *fakeNotifier
	etl      *Etl
}

func newFixture() *fixture {
	first := time.Date(2025, 6, 1, 10, 0, 0, 0, hours.Zone())
	var prod fetch.Records
	for i := 0; i < 6; i++ {
		prod = append(prod, fetch.Record{
			"code_insee_region": "76",
			"date_heure":        first.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			"solaire":           float64(100 * (i + 1)),
		})
	}

	f := &fixture{
		store: &fakeStore{coords: []weather.Coordinate{
			{ID: 13, Point: orb.Point{2.3, 43.6}},
			{ID: 2, Point: orb.Point{1.4, 43.6}},
			{ID: 1, Point: orb.Point{3.1, 44.1}},
		}},
		weather:  &fakeWeather{},
		notifier: &fakeNotifier{},
	}
	sources := Sources{
		Production: &fakeProduction{rows: prod},
		Registry: &fakeRegistry{rows: fetch.Records{
			{"coderegion": "76", "datemiseenservice": "2010-01-01", "filiere": "Solaire", "puismaxinstallee": 500000.0},
		}},
		Historical: f.weather,
		Forecast:   f.weather,
		Sleep:      func(context.Context, time.Duration) error { return nil },
	}
	f.etl = NewEtl(quietLogger(), f.store, sources, f.notifier)
	f.etl.now = func() time.Time { return time.Date(2025, 6, 1, 16, 30, 0, 0, hours.Zone()) }
	return f
}

func TestEtlRun(t *testing.T) {
	f := newFixture()

	run, err := f.etl.Run(context.Background(), testConfig())
	require.NoError(t, err)

	// peripheral scenarios first, central last, for both windows
	assert.Equal(t, []int{1, 2, 13, 1, 2, 13}, f.weather.calls)

	require.NotNil(t, f.store.dataset)
	ds := f.store.dataset
	assert.Equal(t, "inference_dataset", f.store.table)
	assert.Equal(t, "date_heure", ds.IndexName())

	// the first historical hour has no lag, only the first forecast hour has a lagged target
	require.Equal(t, 6, ds.Len())
	assert.True(t, ds.Time(0).Equal(time.Date(2025, 6, 1, 11, 0, 0, 0, hours.Zone())))
	assert.True(t, ds.Time(5).Equal(time.Date(2025, 6, 1, 16, 0, 0, 0, hours.Zone())))

	assert.True(t, ds.Has("temperature_2m"))
	assert.False(t, ds.Has("temperature_2m_run_13"))
	assert.True(t, ds.Has(weather.StdColumn("temperature_2m")))
	assert.True(t, ds.Has("hour_sin"))

	// 200 MW on 500 MW installed
	assert.InDelta(t, 0.4, ds.Value("solaire", 0), 1e-9)
	assert.True(t, frame.IsNull(ds.Value("solaire", 5)))
	assert.InDelta(t, 1.2, ds.Value(features.LagColumn("solaire", 1), 5), 1e-9)
	assert.Equal(t, 24.0, ds.Value("temperature_2m", 0))
	assert.Equal(t, 1.0, ds.Value(weather.DeltaColumn("temperature_2m"), 0))

	assert.Equal(t, database.RunSucceeded, run.Status)
	assert.Equal(t, 6, run.Rows)
	require.Len(t, f.store.runs, 2)
	assert.Equal(t, database.RunRunning, f.store.runs[0].Status)
	assert.Equal(t, run.ID, f.store.runs[1].ID)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notify.Event{
		RunID:       run.ID,
		Table:       "inference_dataset",
		Rows:        6,
		RefreshedAt: f.etl.now(),
	}, f.notifier.events[0])
}

func TestEtlRunMissingCentralScenario(t *testing.T) {
	f := newFixture()
	cnfg := testConfig()
	cnfg.Features.CentralScenario = 99

	run, err := f.etl.Run(context.Background(), cnfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, etlerr.ErrConfiguration)
	assert.Equal(t, database.RunFailed, run.Status)
	assert.NotEmpty(t, run.Error)
	assert.Empty(t, f.weather.calls)
	assert.Nil(t, f.store.dataset)
	assert.Empty(t, f.notifier.events)
}

func TestEtlRunLoadFailure(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("disk full")

	run, err := f.etl.Run(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load")
	assert.Equal(t, database.RunFailed, run.Status)
	assert.Equal(t, database.RunFailed, f.store.runs[len(f.store.runs)-1].Status)
	assert.Empty(t, f.notifier.events)
}

func TestEtlRunForecastTooShort(t *testing.T) {
	f := newFixture()
	f.weather.until = time.Date(2025, 6, 1, 20, 0, 0, 0, hours.Zone())
	cnfg := testConfig()
	cnfg.Weather.LenPrev = 12

	_, err := f.etl.Run(context.Background(), cnfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, etlerr.ErrSchemaMismatch)
}
