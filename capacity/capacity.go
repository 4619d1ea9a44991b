package capacity

import (
	"time"

	"github.com/icodeforyou/solarcast-etl/convert"
	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/hours"
	"github.com/icodeforyou/solarcast-etl/slice"
	"gonum.org/v1/gonum/floats"
)

// OutlierThresholdPct is the share of the regional power, in percent, above which
// units commissioned before the sanity floor are kept.
const OutlierThresholdPct = 0.01

var SanityFloor = time.Date(1990, 1, 1, 0, 0, 0, 0, hours.Zone())

func power(units []Unit) float64 {
	return floats.Sum(slice.Map(units, func(u Unit) float64 { return u.PowerKW }))
}

// CorrectOutliers handles the units commissioned before the sanity floor. Worth at
// least OutlierThresholdPct of the other units, they are kept and moved to the first
// valid commissioning date; otherwise they are dropped. Units must be date ordered.
func CorrectOutliers(units []Unit) []Unit {
	var flagged, valid []Unit
	for _, u := range units {
		if u.Commissioned.Before(SanityFloor) {
			flagged = append(flagged, u)
		} else {
			valid = append(valid, u)
		}
	}
	if len(flagged) == 0 || len(valid) == 0 {
		return units
	}

	if validPower := power(valid); validPower > 0 && power(flagged)/validPower*100 < OutlierThresholdPct {
		return valid
	}

	first := valid[0].Commissioned
	corrected := make([]Unit, 0, len(units))
	for _, u := range flagged {
		u.Commissioned = first
		corrected = append(corrected, u)
	}
	return append(corrected, valid...)
}

// Estimate returns the installed solar capacity of region in MW.
func Estimate(units []Unit, region int) (float64, error) {
	corrected := CorrectOutliers(Group(units, region))
	mw := convert.KWToMW(power(corrected))
	if mw <= 0 {
		return 0, etlerr.Configuration("estimate capacity", "no installed solar capacity for region %d", region)
	}
	return mw, nil
}
