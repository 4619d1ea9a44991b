package weather

import (
	"math"
	"strings"

	"github.com/icodeforyou/solarcast-etl/convert"
	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/frame"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Schema maps every base variable to the columns holding it, one per scenario.
type Schema map[string][]string

// ResolveSchema assigns a column to a variable when it is the variable itself or the
// variable tagged with a scenario run.
func ResolveSchema(columns []string, variables []string) Schema {
	s := make(Schema, len(variables))
	for _, v := range variables {
		s[v] = []string{}
		for _, c := range columns {
			if c == v || strings.HasPrefix(c, v+runInfix) {
				s[v] = append(s[v], c)
			}
		}
	}
	return s
}

func DeltaColumn(variable string) string {
	return variable + "_delta_minmax"
}

func StdColumn(variable string) string {
	return variable + "_std"
}

// ComputeVariableDispersion computes, per timestamp, the max-min spread and the sample
// standard deviation of every variable across the peripheral columns holding it. A
// variable without any column gets zero spread.
func ComputeVariableDispersion(peripheral *frame.Frame, variables []string) (*frame.Frame, error) {
	schema := ResolveSchema(peripheral.Columns(), variables)
	out := frame.New(peripheral.Index())
	out.SetIndexName(peripheral.IndexName())

	values := make([]float64, 0, peripheral.Width())
	for _, v := range variables {
		cols := make([][]float64, 0, len(schema[v]))
		for _, name := range schema[v] {
			col, _ := peripheral.Column(name)
			cols = append(cols, col)
		}

		delta := make([]float64, peripheral.Len())
		std := make([]float64, peripheral.Len())
		for row := range delta {
			if len(cols) == 0 {
				continue
			}
			values = values[:0]
			for _, col := range cols {
				if !frame.IsNull(col[row]) {
					values = append(values, col[row])
				}
			}
			delta[row], std[row] = spread(values)
		}

		if err := out.Set(DeltaColumn(v), delta); err != nil {
			return nil, etlerr.SchemaMismatch(opDispersal, "%v", err)
		}
		if err := out.Set(StdColumn(v), std); err != nil {
			return nil, etlerr.SchemaMismatch(opDispersal, "%v", err)
		}
	}
	return out, nil
}

func spread(values []float64) (delta, std float64) {
	switch len(values) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return 0, 0
	}
	delta = convert.RoundFloat64(floats.Max(values)-floats.Min(values), 4)
	std = convert.RoundFloat64(stat.StdDev(values, nil), 4)
	return delta, std
}

// ConcatenateWeatherData indexes the central scenario by its date column and joins
// the dispersion columns on the shared timestamps.
func ConcatenateWeatherData(central Table, dispersion *frame.Frame) (*frame.Frame, error) {
	c, err := SetTimeIndexDropDateColumns(central)
	if err != nil {
		return nil, err
	}
	return frame.InnerJoin(c, dispersion)
}

// Reduce turns an ordered scenario set into the central variables plus their dispersion
// across the peripheral scenarios.
func Reduce(scenarios []Table, variables []string) (*frame.Frame, error) {
	central, peripheral, err := SeparateCentralScenario(scenarios)
	if err != nil {
		return nil, err
	}

	var p *frame.Frame
	if peripheral.Width() == 0 {
		c, err := SetTimeIndexDropDateColumns(central)
		if err != nil {
			return nil, err
		}
		p = frame.New(c.Index())
		p.SetIndexName(c.IndexName())
	} else {
		if p, err = SetTimeIndexDropDateColumns(peripheral); err != nil {
			return nil, err
		}
	}

	dispersion, err := ComputeVariableDispersion(p, variables)
	if err != nil {
		return nil, err
	}
	return ConcatenateWeatherData(central, dispersion)
}
