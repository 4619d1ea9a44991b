package weather

import (
	"fmt"
	"strings"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/frame"
)

const (
	datePrefix  = "date"
	runInfix    = "_run_"
	opSeparate  = "separate central scenario"
	opSetIndex  = "set time index"
	opDispersal = "compute dispersion"
)

// Column is one column of a scenario table. Date columns carry Times, value
// columns carry Values.
type Column struct {
	Name   string
	Times  []time.Time
	Values []float64
}

func (c Column) IsDate() bool {
	return c.Times != nil
}

func (c Column) Len() int {
	if c.IsDate() {
		return len(c.Times)
	}
	return len(c.Values)
}

// Table is a scenario table before it is indexed by time. Column names may repeat,
// typically the date column of every scenario after a column concatenation.
type Table struct {
	Columns []Column
}

func (t Table) Width() int {
	return len(t.Columns)
}

func (t Table) Len() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

func (t Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RunTag suffixes a column name with the scenario it was fetched for.
func RunTag(column string, scenario int) string {
	return fmt.Sprintf("%s%s%d", column, runInfix, scenario)
}

// SeparateCentralScenario splits the last scenario off as the central one and
// concatenates the columns of the others, in order, into the peripheral table.
func SeparateCentralScenario(scenarios []Table) (central, peripheral Table, err error) {
	if len(scenarios) == 0 {
		return Table{}, Table{}, etlerr.SchemaMismatch(opSeparate, "no scenario to separate")
	}

	central = scenarios[len(scenarios)-1]
	rows := -1
	for i, s := range scenarios[:len(scenarios)-1] {
		for _, c := range s.Columns {
			if rows == -1 {
				rows = c.Len()
			}
			if c.Len() != rows {
				return Table{}, Table{}, etlerr.SchemaMismatch(opSeparate,
					"scenario %d column %s has %d rows, expected %d", i, c.Name, c.Len(), rows)
			}
			peripheral.Columns = append(peripheral.Columns, c)
		}
	}
	return central, peripheral, nil
}

// SetTimeIndexDropDateColumns promotes the first date column to the time index and
// removes every date column from the result.
func SetTimeIndexDropDateColumns(t Table) (*frame.Frame, error) {
	var index *Column
	for i := range t.Columns {
		if strings.HasPrefix(t.Columns[i].Name, datePrefix) {
			index = &t.Columns[i]
			break
		}
	}
	if index == nil {
		return nil, etlerr.SchemaMismatch(opSetIndex, "no date column among %v", t.Names())
	}
	if !index.IsDate() {
		return nil, etlerr.SchemaMismatch(opSetIndex, "column %s holds no timestamps", index.Name)
	}

	f := frame.New(index.Times)
	f.SetIndexName(index.Name)
	for _, c := range t.Columns {
		if strings.HasPrefix(c.Name, datePrefix) {
			continue
		}
		if f.Has(c.Name) {
			return nil, etlerr.SchemaMismatch(opSetIndex, "duplicate column %s", c.Name)
		}
		if err := f.Set(c.Name, c.Values); err != nil {
			return nil, etlerr.SchemaMismatch(opSetIndex, "%v", err)
		}
	}
	return f, nil
}
