package capacity

import (
	"fmt"
	"sort"
	"time"

	"github.com/icodeforyou/solarcast-etl/convert"
	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/hours"
)

const Column = "installed_capacity"

// CumulativeCurve builds the installed capacity in MW over [start, end). Units
// commissioned before start form the baseline; later ones are accumulated on top of it.
// Every point is then replaced by the mean of its bucket, the index is unchanged.
func CumulativeCurve(units []Unit, start, end time.Time, bucket func(time.Time) time.Time) (*frame.Frame, error) {
	sorted := make([]Unit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Commissioned.Before(sorted[b].Commissioned) })

	baseline := 0.0
	var index []time.Time
	var cumulative []float64
	for _, u := range sorted {
		if u.Commissioned.Before(start) {
			baseline += u.PowerKW
			continue
		}
		total := u.PowerKW
		if n := len(cumulative); n > 0 {
			total += cumulative[n-1]
		}
		index = append(index, u.Commissioned)
		cumulative = append(cumulative, total)
	}

	means := make(map[int64][2]float64)
	for i, t := range index {
		cumulative[i] += baseline
		k := bucket(t).UnixNano()
		m := means[k]
		means[k] = [2]float64{m[0] + cumulative[i], m[1] + 1}
	}

	var keep []time.Time
	var values []float64
	for _, t := range index {
		if !t.Before(end) {
			continue
		}
		m := means[bucket(t).UnixNano()]
		keep = append(keep, t)
		values = append(values, convert.KWToMW(m[0]/m[1]))
	}

	curve := frame.New(keep)
	if values == nil {
		values = []float64{}
	}
	if err := curve.Set(Column, values); err != nil {
		return nil, fmt.Errorf("cumulative capacity curve: %w", err)
	}
	return curve, nil
}

// ResampleDailyToHourlyFFill spreads a daily curve over every hour of the days it
// covers, each hour taking the last known value.
func ResampleDailyToHourlyFFill(series *frame.Frame) (*frame.Frame, error) {
	if series.Len() == 0 {
		return series.Clone(), nil
	}
	sorted := series.SortByIndex()

	from := hours.FloorDay(sorted.Time(0))
	to := hours.FloorDay(sorted.Time(sorted.Len()-1)).AddDate(0, 0, 1).Add(-time.Hour)
	index := hours.Range(from, to, time.Hour)

	out := frame.New(index)
	out.SetIndexName(series.IndexName())
	for _, name := range sorted.Columns() {
		src, _ := sorted.Column(name)
		dst := make([]float64, len(index))
		at := -1
		for i, t := range index {
			for at+1 < sorted.Len() && !sorted.Time(at+1).After(t) {
				at++
			}
			if at < 0 {
				dst[i] = frame.Null()
			} else {
				dst[i] = src[at]
			}
		}
		if err := out.Set(name, dst); err != nil {
			return nil, fmt.Errorf("hourly resample of %s: %w", name, err)
		}
	}
	return out, nil
}

// HourlyCurve is the daily cumulative curve of the region expanded to hours.
func HourlyCurve(units []Unit, region int, start, end time.Time) (*frame.Frame, error) {
	corrected := CorrectOutliers(Group(units, region))
	daily, err := CumulativeCurve(corrected, start, end, hours.FloorDay)
	if err != nil {
		return nil, err
	}
	return ResampleDailyToHourlyFFill(daily)
}
