package frame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

func hourly(n int) []time.Time {
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return idx
}

func TestSetRejectsWrongLength(t *testing.T) {
	f := New(hourly(3))
	assert.Error(t, f.Set("a", []float64{1, 2}))
	require.NoError(t, f.Set("a", []float64{1, 2, 3}))
	require.NoError(t, f.Set("a", []float64{4, 5, 6}))
	assert.Equal(t, []string{"a"}, f.Columns())
	assert.Equal(t, 5.0, f.Value("a", 1))
}

func TestColumnIsACopy(t *testing.T) {
	f := New(hourly(2))
	require.NoError(t, f.Set("a", []float64{1, 2}))
	c, ok := f.Column("a")
	require.True(t, ok)
	c[0] = 100
	assert.Equal(t, 1.0, f.Value("a", 0))
}

func TestInnerJoin(t *testing.T) {
	left := New(hourly(4))
	require.NoError(t, left.Set("solaire", []float64{1, 2, 3, 4}))
	right := New(hourly(6)[2:])
	require.NoError(t, right.Set("temperature_2m", []float64{10, 11, 12, 13}))

	joined, err := InnerJoin(left, right)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.Len())
	assert.Equal(t, []string{"solaire", "temperature_2m"}, joined.Columns())
	assert.Equal(t, 3.0, joined.Value("solaire", 0))
	assert.Equal(t, 10.0, joined.Value("temperature_2m", 0))

	_, err = InnerJoin(left, left)
	assert.Error(t, err)
}

func TestAppendUnionsColumns(t *testing.T) {
	top := New(hourly(2))
	require.NoError(t, top.Set("solaire", []float64{1, 2}))
	require.NoError(t, top.Set("t", []float64{5, 6}))
	bottom := New(hourly(3)[2:])
	require.NoError(t, bottom.Set("t", []float64{7}))

	all := Append(top, bottom)
	assert.Equal(t, 3, all.Len())
	assert.Equal(t, []string{"solaire", "t"}, all.Columns())
	assert.True(t, IsNull(all.Value("solaire", 2)))
	assert.Equal(t, 7.0, all.Value("t", 2))
}

func TestDropNullKeepsExceptedColumn(t *testing.T) {
	f := New(hourly(3))
	require.NoError(t, f.Set("solaire", []float64{1, math.NaN(), 3}))
	require.NoError(t, f.Set("t", []float64{math.NaN(), 2, 3}))

	pruned := f.DropNull("solaire")
	require.Equal(t, 2, pruned.Len())
	assert.Equal(t, start.Add(time.Hour), pruned.Time(0))
	assert.True(t, IsNull(pruned.Value("solaire", 0)))
}

func TestResampleMean(t *testing.T) {
	idx := []time.Time{
		start,
		start.Add(15 * time.Minute),
		start.Add(30 * time.Minute),
		start.Add(2 * time.Hour),
	}
	f := New(idx)
	require.NoError(t, f.Set("v", []float64{1, 2, math.NaN(), 10}))

	r := f.Resample(func(t time.Time) time.Time { return t.Truncate(time.Hour) })
	require.Equal(t, 2, r.Len())
	assert.Equal(t, start, r.Time(0))
	assert.InDelta(t, 1.5, r.Value("v", 0), 1e-12)
	assert.Equal(t, 10.0, r.Value("v", 1))
}

func TestSortByIndexIsStable(t *testing.T) {
	idx := []time.Time{start.Add(time.Hour), start, start.Add(time.Hour)}
	f := New(idx)
	require.NoError(t, f.Set("v", []float64{1, 2, 3}))

	s := f.SortByIndex()
	v, _ := s.Column("v")
	assert.Equal(t, []float64{2, 1, 3}, v)
}

func TestRenameDetectsDuplicates(t *testing.T) {
	f := New(hourly(1))
	require.NoError(t, f.Set("a_run_1", []float64{1}))
	require.NoError(t, f.Set("a", []float64{2}))
	_, err := f.Rename(func(s string) string {
		if s == "a_run_1" {
			return "a"
		}
		return s
	})
	assert.Error(t, err)
}

func TestBetweenAndHead(t *testing.T) {
	f := New(hourly(5))
	require.NoError(t, f.Set("v", []float64{0, 1, 2, 3, 4}))

	b := f.Between(start.Add(time.Hour), start.Add(3*time.Hour))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 2, b.Head(2).Len())
	assert.Equal(t, 3, b.Head(10).Len())
}
