package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Record is one row of an upstream dataset, keyed by source column name.
type Record map[string]any

type Records []Record

func (r Record) String(key string) (string, bool) {
	switch v := r[key].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Float returns the numeric value of key. Strings are parsed, nulls and NaN are not ok.
func (r Record) Float(key string) (float64, bool) {
	var f float64
	switch v := r[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func (r Record) Int(key string) (int, bool) {
	f, ok := r.Float(key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses key as a timestamp. Values without an offset are read as UTC.
func (r Record) Time(key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// DecodeRecords reads a JSON body, either {"results": [...]} or a bare array, and
// falls back to a parquet payload when the body is not JSON.
func DecodeRecords(body []byte) (Records, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Records{}, nil
	}

	switch trimmed[0] {
	case '{':
		var envelope struct {
			Results Records `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			if envelope.Results == nil {
				envelope.Results = Records{}
			}
			return envelope.Results, nil
		}
	case '[':
		var rows Records
		if err := json.Unmarshal(trimmed, &rows); err == nil {
			return rows, nil
		}
	}

	rows, err := decodeParquet(body)
	if err != nil {
		return nil, fmt.Errorf("payload is neither JSON nor parquet: %w", err)
	}
	return rows, nil
}

func decodeParquet(body []byte) (Records, error) {
	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(
		context.Background(),
		bytes.NewReader(body),
		parquet.NewReaderProperties(mem),
		pqarrow.ArrowReadProperties{},
		mem)
	if err != nil {
		return nil, fmt.Errorf("reading parquet table: %w", err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	tr := array.NewTableReader(tbl, 4096)
	defer tr.Release()

	rows := make(Records, 0, tbl.NumRows())
	for tr.Next() {
		rec := tr.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			row := make(Record, rec.NumCols())
			for c := 0; c < int(rec.NumCols()); c++ {
				row[schema.Field(c).Name] = cellValue(rec.Column(c), i)
			}
			rows = append(rows, row)
		}
	}

	return rows, nil
}

func cellValue(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Int64:
		return float64(a.Value(i))
	case *array.Int32:
		return float64(a.Value(i))
	case *array.Int16:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	default:
		return col.ValueStr(i)
	}
}
