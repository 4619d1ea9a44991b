package hours

import (
	"fmt"
	"time"
)

const (
	// IsoLayout is the timestamp form written to the sink, without zone suffix.
	IsoLayout   = "2006-01-02T15:04:05"
	QueryLayout = "2006-01-02 15:04:05"
	DateLayout  = "2006-01-02"
)

var zone *time.Location

func init() {
	var err error
	zone, err = time.LoadLocation("Europe/Paris")
	if err != nil {
		panic(fmt.Sprintf("failed to load Paris location: %v", err))
	}
}

// SetZone replaces the zone every series is normalized to.
func SetZone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %v", name, err)
	}
	zone = loc
	return nil
}

func Zone() *time.Location {
	return zone
}

func In(t time.Time) time.Time {
	return t.In(zone)
}

// Floor returns the start of the step-long bucket holding t. Steps of whole days
// start at local midnight, shorter steps are aligned on the epoch.
func Floor(t time.Time, step time.Duration) time.Time {
	t = t.In(zone)
	if step >= 24*time.Hour && step%(24*time.Hour) == 0 {
		return FloorDay(t)
	}
	if step <= 0 {
		return t
	}
	return t.Truncate(step)
}

func FloorDay(t time.Time) time.Time {
	t = t.In(zone)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, zone)
}

// Range lists every step from from to to, both included.
func Range(from, to time.Time, step time.Duration) []time.Time {
	if step <= 0 || to.Before(from) {
		return nil
	}
	var out []time.Time
	for t := from; !t.After(to); t = t.Add(step) {
		out = append(out, t.In(zone))
	}
	return out
}

func FormatIso(t time.Time) string {
	return t.In(zone).Format(IsoLayout)
}

func FormatQuery(t time.Time) string {
	return t.In(zone).Format(QueryLayout)
}

func FormatDate(t time.Time) string {
	return t.In(zone).Format(DateLayout)
}

// ParseDate reads a calendar date as local midnight.
func ParseDate(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, zone)
}
