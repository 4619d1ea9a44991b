package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordsShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"envelope", `{"total_count": 2, "results": [{"a": 1}, {"a": 2}]}`, 2},
		{"array", `[{"a": 1}]`, 1},
		{"empty envelope", `{"results": []}`, 0},
		{"missing results", `{"total_count": 0}`, 0},
		{"blank", "  ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := DecodeRecords([]byte(tt.body))
			require.NoError(t, err)
			assert.NotNil(t, rows)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestDecodeRecordsRejectsGarbage(t *testing.T) {
	_, err := DecodeRecords([]byte("not a payload"))
	assert.Error(t, err)
}

func TestRecordAccessors(t *testing.T) {
	r := Record{
		"code":    "76",
		"num":     76.0,
		"frac":    1.5,
		"null":    nil,
		"when":    "2025-11-18T10:15:00+00:00",
		"naive":   "2025-11-18 10:15:00",
		"garbage": "n/a",
	}

	s, ok := r.String("num")
	assert.True(t, ok)
	assert.Equal(t, "76", s)

	n, ok := r.Int("code")
	assert.True(t, ok)
	assert.Equal(t, 76, n)

	_, ok = r.Int("frac")
	assert.False(t, ok)

	_, ok = r.Float("null")
	assert.False(t, ok)

	_, ok = r.Float("garbage")
	assert.False(t, ok)

	when, ok := r.Time("when")
	require.True(t, ok)
	assert.True(t, when.Equal(time.Date(2025, 11, 18, 10, 15, 0, 0, time.UTC)))

	naive, ok := r.Time("naive")
	require.True(t, ok)
	assert.Equal(t, time.UTC, naive.Location())
}
