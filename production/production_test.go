package production

import (
	"strings"
	"testing"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/fetch"
	"github.com/icodeforyou/solarcast-etl/hours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareInference(t *testing.T) {
	raw := fetch.Records{
		{"code_insee_region": "76", "date_heure": "2025-06-01T08:15:00+00:00", "solaire": 30.0},
		{"code_insee_region": "76", "date_heure": "2025-06-01T08:00:00+00:00", "solaire": 10.0},
		{"code_insee_region": "76", "date_heure": "2025-06-01T08:30:00+00:00", "solaire": nil},
		{"code_insee_region": "11", "date_heure": "2025-06-01T08:45:00+00:00", "solaire": 999.0},
		{"code_insee_region": "76", "date_heure": "2025-06-01T09:00:00+00:00", "solaire": 50.0},
		{"code_insee_region": "76", "date_heure": "2025-06-01T10:00:00+00:00", "solaire": nil},
	}

	f, err := Prepare(raw, 76, time.Hour, Inference)
	require.NoError(t, err)

	require.Equal(t, 2, f.Len())
	assert.Equal(t, IndexName, f.IndexName())
	assert.True(t, f.Time(0).Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, hours.Zone())))
	assert.Equal(t, hours.Zone(), f.Time(0).Location())
	col, _ := f.Column(Column)
	assert.Equal(t, []float64{20, 50}, col)
}

func TestPrepareAcrossFallBack(t *testing.T) {
	// quarter hours from 00:00 to 03:45 Paris on 2025-10-26, 02:00 comes twice
	start := time.Date(2025, 10, 25, 22, 0, 0, 0, time.UTC)
	var raw fetch.Records
	for i := 0; i < 5*4; i++ {
		raw = append(raw, fetch.Record{
			"code_insee_region": "76",
			"date_heure":        start.Add(time.Duration(i) * 15 * time.Minute).Format(time.RFC3339),
			"solaire":           float64(i / 4),
		})
	}

	f, err := Prepare(raw, 76, time.Hour, Inference)
	require.NoError(t, err)

	require.Equal(t, 5, f.Len())
	for i := 1; i < f.Len(); i++ {
		assert.Equal(t, time.Hour, f.Time(i).Sub(f.Time(i-1)), "row %d", i)
	}
	assert.Equal(t, "2025-10-26T02:00:00", hours.FormatIso(f.Time(2)))
	assert.Equal(t, "2025-10-26T02:00:00", hours.FormatIso(f.Time(3)))
	col, _ := f.Column(Column)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, col)
}

func TestPrepareTrainingSchema(t *testing.T) {
	raw := fetch.Records{
		{"Code INSEE région": 76.0, "Date - Heure": "2021-03-01T12:00:00+01:00", "Solaire (MW)": "120"},
		{"Code INSEE région": 76.0, "Date - Heure": "2021-03-01T12:30:00+01:00", "Solaire (MW)": "140"},
	}
	f, err := Prepare(raw, 76, time.Hour, Training)
	require.NoError(t, err)
	require.Equal(t, 1, f.Len())
	assert.Equal(t, 130.0, f.Value(Column, 0))
}

func TestPrepareErrors(t *testing.T) {
	_, err := Prepare(fetch.Records{{"solaire": 1.0}}, 76, time.Hour, Inference)
	assert.ErrorIs(t, err, etlerr.ErrSchemaMismatch)

	_, err = Prepare(nil, 76, time.Hour, Mode("weekly"))
	assert.ErrorIs(t, err, etlerr.ErrConfiguration)

	f, err := Prepare(fetch.Records{}, 76, time.Hour, Inference)
	require.NoError(t, err)
	assert.Zero(t, f.Len())
}

func TestReadCSV(t *testing.T) {
	in := "\ufeffCode INSEE région;Date - Heure;Solaire (MW)\n76;2021-03-01T12:00:00+01:00;120\n76;2021-03-01T13:00:00+01:00;\n"
	rows, err := ReadCSV(strings.NewReader(in), ';')
	require.NoError(t, err)
	require.Len(t, rows, 2)

	code, ok := rows[0].Int("Code INSEE région")
	assert.True(t, ok)
	assert.Equal(t, 76, code)
	_, ok = rows[1].Float("Solaire (MW)")
	assert.False(t, ok)
}
