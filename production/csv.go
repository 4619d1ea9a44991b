package production

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/icodeforyou/solarcast-etl/fetch"
)

// ReadCSV reads a delimited export with a header row into records. Empty cells are nulls.
func ReadCSV(r io.Reader, sep rune) (fetch.Records, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows fetch.Records
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		row := make(fetch.Record, len(header))
		for i, name := range header {
			if i < len(fields) && strings.TrimSpace(fields[i]) != "" {
				row[name] = fields[i]
			} else {
				row[name] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
