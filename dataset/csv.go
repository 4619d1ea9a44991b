package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/icodeforyou/solarcast-etl/frame"
	"github.com/icodeforyou/solarcast-etl/hours"
)

// WriteCSV writes f with its index as first column. Nulls are written as empty cells.
func WriteCSV(w io.Writer, f *frame.Frame, sep rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = sep

	indexName := f.IndexName()
	if indexName == "" {
		indexName = "index"
	}
	names := f.Columns()
	if err := writer.Write(append([]string{indexName}, names...)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(names)+1)
	for row := 0; row < f.Len(); row++ {
		record[0] = hours.FormatIso(f.Time(row))
		for i, n := range names {
			v := f.Value(n, row)
			if frame.IsNull(v) {
				record[i+1] = ""
			} else {
				record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", row, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
