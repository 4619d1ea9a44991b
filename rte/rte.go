// Package rte reads the regional solar production published by RTE eco2mix
// on the ODRE open data platform.
package rte

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/icodeforyou/solarcast-etl/fetch"
	"github.com/icodeforyou/solarcast-etl/hours"
)

const (
	URL          = "https://odre.opendatasoft.com/api/explore/v2.1/catalog/datasets/eco2mix-regional-tr/records"
	Select       = "code_insee_region, date, heure, date_heure, solaire"
	OrderBy      = "date_heure"
	MaxLimit     = 96
	StepsPerHour = 4
)

type Paginator interface {
	FetchPaginated(ctx context.Context, endpoint string, total, batchSize int, filter url.Values) (fetch.Records, error)
}

type Query struct {
	URL    string
	Region int
	NHours int
	Limit  int
	Select string
}

func (q Query) Start(now time.Time) time.Time {
	return now.Add(-time.Duration(q.NHours) * time.Hour)
}

// TotalRecords is the number of quarter-hour records covering the queried hours.
func (q Query) TotalRecords() int {
	return q.NHours * StepsPerHour
}

func (q Query) Params(now time.Time) url.Values {
	sel := q.Select
	if sel == "" {
		sel = Select
	}
	params := url.Values{}
	params.Set("select", sel)
	params.Set("where", fmt.Sprintf("code_insee_region='%d' AND date_heure >= '%s'", q.Region, hours.FormatQuery(q.Start(now))))
	params.Set("order_by", OrderBy)
	return params
}

// Production fetches the last NHours of production of the region.
func Production(ctx context.Context, p Paginator, q Query, now time.Time) (fetch.Records, error) {
	endpoint := q.URL
	if endpoint == "" {
		endpoint = URL
	}
	limit := q.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	return p.FetchPaginated(ctx, endpoint, q.TotalRecords(), limit, q.Params(now))
}
