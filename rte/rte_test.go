package rte

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/icodeforyou/solarcast-etl/fetch"
	"github.com/icodeforyou/solarcast-etl/hours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaginator struct {
	endpoint string
	total    int
	batch    int
	filter   url.Values
}

func (f *fakePaginator) FetchPaginated(_ context.Context, endpoint string, total, batchSize int, filter url.Values) (fetch.Records, error) {
	f.endpoint, f.total, f.batch, f.filter = endpoint, total, batchSize, filter
	return fetch.Records{{"solaire": 1.0}}, nil
}

func TestProduction(t *testing.T) {
	now := time.Date(2025, 6, 5, 12, 0, 0, 0, hours.Zone())
	p := &fakePaginator{}

	rows, err := Production(context.Background(), p, Query{Region: 76, NHours: 99, Limit: 500}, now)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.Equal(t, URL, p.endpoint)
	assert.Equal(t, 396, p.total)
	assert.Equal(t, MaxLimit, p.batch)
	assert.Equal(t, Select, p.filter.Get("select"))
	assert.Equal(t, "date_heure", p.filter.Get("order_by"))
	assert.Equal(t, "code_insee_region='76' AND date_heure >= '2025-06-01 09:00:00'", p.filter.Get("where"))
}
