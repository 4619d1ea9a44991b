package features

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/icodeforyou/solarcast-etl/convert"
	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/frame"
	"gonum.org/v1/gonum/stat"
)

const opTransform = "transform features"

// Timeframe encodes one calendar unit of the time index on a circle of Period steps.
type Timeframe struct {
	Unit   string `mapstructure:"unit" validate:"oneof=minute hour day weekday dayofyear month quarter"`
	Period int    `mapstructure:"period" validate:"gt=0"`
}

type Options struct {
	CentralScenario int
	Timeframes      []Timeframe
	Lags            []int
	LaggedFeatures  []string
	Target          string
	IndexName       string
}

// Transform builds the model table: scenario suffixes removed, calendar units encoded
// on the unit circle, lags and rolling means added, and rows with a null outside the
// target dropped.
func Transform(logger *slog.Logger, f *frame.Frame, opts Options) (*frame.Frame, error) {
	out, err := transform(f, opts)
	if err != nil {
		logger.Error("feature transform failed",
			slog.Int("rows", f.Len()),
			slog.Int("columns", f.Width()),
			slog.Int("central_scenario", opts.CentralScenario),
			slog.Any("error", err))
		return nil, err
	}

	logger.Info("features ready",
		slog.Int("rows_in", f.Len()),
		slog.Int("rows_out", out.Len()),
		slog.Int("columns", out.Width()))
	return out, nil
}

func transform(f *frame.Frame, opts Options) (*frame.Frame, error) {
	renamed, err := RenameScenarioColumns(f, opts.CentralScenario)
	if err != nil {
		return nil, err
	}
	encoded, err := AddCyclicalFeatures(renamed, opts.Timeframes)
	if err != nil {
		return nil, err
	}
	lagged, err := AddLagFeatures(encoded, opts.LaggedFeatures, opts.Lags, opts.Target)
	if err != nil {
		return nil, err
	}

	pruned := lagged.DropNull(opts.Target)
	pruned.SetIndexName(opts.IndexName)
	return pruned, nil
}

// RenameScenarioColumns strips the central scenario tag from every column ending with it.
func RenameScenarioColumns(f *frame.Frame, central int) (*frame.Frame, error) {
	suffix := fmt.Sprintf("_run_%d", central)
	renamed, err := f.Rename(func(name string) string {
		return strings.TrimSuffix(name, suffix)
	})
	if err != nil {
		return nil, etlerr.SchemaMismatch(opTransform, "%v", err)
	}
	return renamed, nil
}

var units = map[string]func(time.Time) int{
	"minute":    func(t time.Time) int { return t.Minute() },
	"hour":      func(t time.Time) int { return t.Hour() },
	"day":       func(t time.Time) int { return t.Day() },
	"weekday":   func(t time.Time) int { return (int(t.Weekday()) + 6) % 7 },
	"dayofyear": func(t time.Time) int { return t.YearDay() },
	"month":     func(t time.Time) int { return int(t.Month()) },
	"quarter":   func(t time.Time) int { return (int(t.Month())-1)/3 + 1 },
}

// AddCyclicalFeatures adds {unit}_sin and {unit}_cos for every timeframe, rounded to 5 decimals.
func AddCyclicalFeatures(f *frame.Frame, timeframes []Timeframe) (*frame.Frame, error) {
	out := f.Clone()
	for _, tf := range timeframes {
		extract, ok := units[tf.Unit]
		if !ok {
			return nil, etlerr.Configuration(opTransform, "unknown calendar unit %q", tf.Unit)
		}
		if tf.Period <= 0 {
			return nil, etlerr.Configuration(opTransform, "period of %s must be positive, got %d", tf.Unit, tf.Period)
		}

		sin := make([]float64, f.Len())
		cos := make([]float64, f.Len())
		for i := range sin {
			angle := 2 * math.Pi * float64(extract(f.Time(i))) / float64(tf.Period)
			sin[i] = convert.RoundFloat64(math.Sin(angle), 5)
			cos[i] = convert.RoundFloat64(math.Cos(angle), 5)
		}
		if err := out.Set(tf.Unit+"_sin", sin); err != nil {
			return nil, err
		}
		if err := out.Set(tf.Unit+"_cos", cos); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func LagColumn(feature string, lag int) string {
	return fmt.Sprintf("%s_lag_%d", feature, lag)
}

func MeanColumn(feature string, window int) string {
	return fmt.Sprintf("%s_ma_%d", feature, window)
}

// AddLagFeatures adds, for every feature and lag, the value lag rows earlier and, except
// for the target, the trailing mean over lag rows.
func AddLagFeatures(f *frame.Frame, features []string, lags []int, target string) (*frame.Frame, error) {
	out := f.Clone()
	for _, feature := range features {
		values, ok := f.Column(feature)
		if !ok {
			return nil, etlerr.SchemaMismatch(opTransform, "lagged feature %s is not a column", feature)
		}
		for _, lag := range lags {
			if lag <= 0 {
				return nil, etlerr.Configuration(opTransform, "lag must be positive, got %d", lag)
			}
			if err := out.Set(LagColumn(feature, lag), shift(values, lag)); err != nil {
				return nil, err
			}
			if feature == target {
				continue
			}
			if err := out.Set(MeanColumn(feature, lag), rollingMean(values, lag)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func shift(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < lag {
			out[i] = frame.Null()
		} else {
			out[i] = values[i-lag]
		}
	}
	return out
}

// rollingMean is null until the window is full and whenever it holds a null.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < window-1 {
			out[i] = frame.Null()
			continue
		}
		w := values[i-window+1 : i+1]
		if hasNull(w) {
			out[i] = frame.Null()
			continue
		}
		out[i] = stat.Mean(w, nil)
	}
	return out
}

func hasNull(values []float64) bool {
	for _, v := range values {
		if frame.IsNull(v) {
			return true
		}
	}
	return false
}
