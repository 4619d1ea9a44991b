package features

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/hours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(t *testing.T, n int) *frame.Frame {
	start := time.Date(2025, 3, 30, 0, 0, 0, 0, hours.Zone())
	f := frame.New(hours.Range(start, start.Add(time.Duration(n-1)*time.Hour), time.Hour))
	target := make([]float64, n)
	temp := make([]float64, n)
	for i := range target {
		target[i] = float64(i) / 10
		temp[i] = float64(10 + i)
	}
	// forecast horizon
	target[n-1] = math.NaN()
	require.NoError(t, f.Set("solaire", target))
	require.NoError(t, f.Set("temperature_2m_run_13", temp))
	return f
}

func defaultOptions() Options {
	return Options{
		CentralScenario: 13,
		Timeframes:      []Timeframe{{Unit: "month", Period: 12}, {Unit: "hour", Period: 24}},
		Lags:            []int{1, 3},
		LaggedFeatures:  []string{"solaire", "temperature_2m"},
		Target:          "solaire",
		IndexName:       "date_heure",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRenameScenarioColumns(t *testing.T) {
	f := frame.New(nil)
	require.NoError(t, f.Set("temperature_2m_run_13", nil))
	require.NoError(t, f.Set("temperature_2m_run_131", nil))
	require.NoError(t, f.Set("cloud_cover_run_2", nil))
	require.NoError(t, f.Set("cloud_cover_delta_minmax", nil))

	renamed, err := RenameScenarioColumns(f, 13)
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature_2m", "temperature_2m_run_131", "cloud_cover_run_2", "cloud_cover_delta_minmax"}, renamed.Columns())
}

func TestRenameCollisionIsAnError(t *testing.T) {
	f := frame.New(nil)
	require.NoError(t, f.Set("cloud_cover", nil))
	require.NoError(t, f.Set("cloud_cover_run_13", nil))
	_, err := RenameScenarioColumns(f, 13)
	assert.ErrorIs(t, err, etlerr.ErrSchemaMismatch)
}

func TestCyclicalFeaturesStayOnUnitCircle(t *testing.T) {
	f := series(t, 30)
	out, err := AddCyclicalFeatures(f, []Timeframe{{"hour", 24}, {"month", 12}, {"weekday", 7}, {"dayofyear", 366}})
	require.NoError(t, err)

	for _, unit := range []string{"hour", "month", "weekday", "dayofyear"} {
		sin, ok := out.Column(unit + "_sin")
		require.True(t, ok, unit)
		cos, _ := out.Column(unit + "_cos")
		for i := range sin {
			assert.InDelta(t, 1, sin[i]*sin[i]+cos[i]*cos[i], 1e-4, "%s row %d", unit, i)
		}
	}
	assert.False(t, out.Has("hour"))

	// 2025-03-30 06:00 local is a quarter of the day
	row := 0
	for i, ts := range out.Index() {
		if ts.Hour() == 6 {
			row = i
			break
		}
	}
	assert.Equal(t, 1.0, out.Value("hour_sin", row))
	assert.Equal(t, 0.0, out.Value("hour_cos", row))
}

func TestUnknownUnitIsRejected(t *testing.T) {
	_, err := AddCyclicalFeatures(series(t, 3), []Timeframe{{"fortnight", 26}})
	assert.ErrorIs(t, err, etlerr.ErrConfiguration)
}

func TestLagAndRollingMean(t *testing.T) {
	f := series(t, 10)
	renamed, err := RenameScenarioColumns(f, 13)
	require.NoError(t, err)

	out, err := AddLagFeatures(renamed, []string{"solaire", "temperature_2m"}, []int{1, 3}, "solaire")
	require.NoError(t, err)

	assert.False(t, out.Has("solaire_ma_1"))
	assert.False(t, out.Has("solaire_ma_3"))

	temp, _ := out.Column("temperature_2m")
	for _, lag := range []int{1, 3} {
		lagged, _ := out.Column(LagColumn("temperature_2m", lag))
		mean, _ := out.Column(MeanColumn("temperature_2m", lag))
		for i := range lagged {
			if i < lag {
				assert.True(t, frame.IsNull(lagged[i]))
			} else {
				assert.Equal(t, temp[i-lag], lagged[i])
			}
			if i < lag-1 {
				assert.True(t, frame.IsNull(mean[i]))
				continue
			}
			sum := 0.0
			for j := i - lag + 1; j <= i; j++ {
				sum += temp[j]
			}
			assert.InDelta(t, sum/float64(lag), mean[i], 1e-9)
		}
	}
}

func TestMissingLaggedFeature(t *testing.T) {
	_, err := AddLagFeatures(series(t, 3), []string{"wind_speed_10m"}, []int{1}, "solaire")
	assert.ErrorIs(t, err, etlerr.ErrSchemaMismatch)
}

func TestTransform(t *testing.T) {
	f := series(t, 10)

	out, err := Transform(quietLogger(), f, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "date_heure", out.IndexName())
	// the first three rows lack a full window, the forecast rows survive
	assert.Equal(t, 7, out.Len())
	solaire, _ := out.Column("solaire")
	assert.True(t, frame.IsNull(solaire[6]))

	for _, name := range out.Columns() {
		if name == "solaire" {
			continue
		}
		col, _ := out.Column(name)
		for i, v := range col {
			assert.False(t, frame.IsNull(v), "%s row %d", name, i)
		}
	}
	assert.True(t, out.Has("temperature_2m_ma_3"))
	assert.True(t, out.Has("month_sin"))

	// input is left untouched
	assert.True(t, f.Has("temperature_2m_run_13"))
}

func TestTransformDropsRowsWithLaggedTargetNull(t *testing.T) {
	f := series(t, 10)
	target, _ := f.Column("solaire")
	target[8] = math.NaN()
	require.NoError(t, f.Set("solaire", target))
	opts := defaultOptions()
	opts.Lags = []int{1}

	out, err := Transform(quietLogger(), f, opts)
	require.NoError(t, err)
	// the last row has a null solaire_lag_1
	assert.Equal(t, 8, out.Len())
}
