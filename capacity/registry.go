package capacity

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/fetch"
	"github.com/icodeforyou/solarcast-etl/hours"
)

const (
	RegistryURL = "https://odre.opendatasoft.com/api/explore/v2.1/catalog/datasets/registre-national-installation-production-stockage-electricite-agrege/exports/parquet"
	Solar       = "Solaire"

	fieldRegion     = "coderegion"
	fieldDate       = "datemiseenservice"
	fieldTechnology = "filiere"
	fieldPower      = "puismaxinstallee"
	registryDate    = "02/01/2006"
)

// Unit is an aggregated registry line: nameplate power commissioned on one day.
type Unit struct {
	Region       int
	Commissioned time.Time
	Technology   string
	PowerKW      float64
}

type RecordFetcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) (fetch.Records, error)
}

// FetchRegistry downloads the registry lines of region.
func FetchRegistry(ctx context.Context, f RecordFetcher, endpoint string, region int) ([]Unit, error) {
	if endpoint == "" {
		endpoint = RegistryURL
	}
	params := url.Values{}
	params.Set("select", strings.Join([]string{fieldRegion, fieldDate, fieldTechnology, fieldPower}, ","))
	params.Set("where", fmt.Sprintf("%s='%d'", fieldRegion, region))

	rows, err := f.Fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	units, err := ParseRegistry(rows)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, etlerr.EmptyResult("fetch registry", "no registry line for region %d", region)
	}
	return units, nil
}

// ParseRegistry converts registry records. Lines without a commissioning date or power
// are skipped since they cannot be placed on the curve.
func ParseRegistry(rows fetch.Records) ([]Unit, error) {
	units := make([]Unit, 0, len(rows))
	for i, r := range rows {
		region, ok := r.Int(fieldRegion)
		if !ok {
			continue
		}
		power, ok := r.Float(fieldPower)
		if !ok {
			continue
		}
		commissioned, ok, err := commissioningDate(r)
		if err != nil {
			return nil, etlerr.SchemaMismatch("parse registry", "line %d: %v", i, err)
		}
		if !ok {
			continue
		}
		technology, _ := r.String(fieldTechnology)
		units = append(units, Unit{Region: region, Commissioned: commissioned, Technology: technology, PowerKW: power})
	}
	return units, nil
}

func commissioningDate(r fetch.Record) (time.Time, bool, error) {
	switch v := r[fieldDate].(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return hours.FloorDay(v), true, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return time.Time{}, false, nil
		}
		if t, err := hours.ParseDate(registryDate, strings.TrimSpace(v)); err == nil {
			return t, true, nil
		}
		t, err := hours.ParseDate(hours.DateLayout, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, false, fmt.Errorf("unreadable commissioning date %q", v)
		}
		return t, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("unexpected commissioning date %v", v)
	}
}

// Group sums the power per (region, commissioning date, technology) and keeps the
// solar lines of region, ordered by commissioning date.
func Group(units []Unit, region int) []Unit {
	type key struct {
		region     int
		day        int64
		technology string
	}
	sums := make(map[key]*Unit)
	for _, u := range units {
		if u.Region != region || u.Technology != Solar {
			continue
		}
		k := key{u.Region, u.Commissioned.Unix(), u.Technology}
		if g, ok := sums[k]; ok {
			g.PowerKW += u.PowerKW
			continue
		}
		g := u
		sums[k] = &g
	}

	grouped := make([]Unit, 0, len(sums))
	for _, g := range sums {
		grouped = append(grouped, *g)
	}
	sort.Slice(grouped, func(a, b int) bool {
		return grouped[a].Commissioned.Before(grouped[b].Commissioned)
	})
	return grouped
}
