package frame

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"
)

// Frame is a table of float64 columns sharing a single time index.
// A NaN cell is a null. Every operation returns a new Frame and leaves
// the receiver untouched, except Set and SetIndexName.
type Frame struct {
	indexName string
	index     []time.Time
	names     []string
	cols      map[string][]float64
}

func New(index []time.Time) *Frame {
	return &Frame{
		index: slices.Clone(index),
		cols:  make(map[string][]float64),
	}
}

func Null() float64 {
	return math.NaN()
}

func IsNull(v float64) bool {
	return math.IsNaN(v)
}

func (f *Frame) Len() int {
	return len(f.index)
}

func (f *Frame) Width() int {
	return len(f.names)
}

func (f *Frame) IndexName() string {
	return f.indexName
}

func (f *Frame) SetIndexName(name string) {
	f.indexName = name
}

func (f *Frame) Index() []time.Time {
	return slices.Clone(f.index)
}

func (f *Frame) Time(row int) time.Time {
	return f.index[row]
}

func (f *Frame) Columns() []string {
	return slices.Clone(f.names)
}

func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.cols[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(c), true
}

func (f *Frame) Value(name string, row int) float64 {
	c, ok := f.cols[name]
	if !ok {
		return Null()
	}
	return c[row]
}

// Set adds the column, or replaces it in place if it already exists.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("column %s has %d values, index has %d", name, len(values), len(f.index))
	}
	if _, ok := f.cols[name]; !ok {
		f.names = append(f.names, name)
	}
	f.cols[name] = slices.Clone(values)
	return nil
}

func (f *Frame) Clone() *Frame {
	c := &Frame{
		indexName: f.indexName,
		index:     slices.Clone(f.index),
		names:     slices.Clone(f.names),
		cols:      make(map[string][]float64, len(f.cols)),
	}
	for k, v := range f.cols {
		c.cols[k] = slices.Clone(v)
	}
	return c
}

func (f *Frame) Drop(names ...string) *Frame {
	c := f.Clone()
	for _, n := range names {
		if _, ok := c.cols[n]; !ok {
			continue
		}
		delete(c.cols, n)
		c.names = slices.DeleteFunc(c.names, func(s string) bool { return s == n })
	}
	return c
}

// Select keeps the named columns in the given order, missing names are an error.
func (f *Frame) Select(names ...string) (*Frame, error) {
	c := New(f.index)
	c.indexName = f.indexName
	for _, n := range names {
		col, ok := f.cols[n]
		if !ok {
			return nil, fmt.Errorf("unknown column %s", n)
		}
		c.names = append(c.names, n)
		c.cols[n] = slices.Clone(col)
	}
	return c, nil
}

// Rename maps every column name through fn. Two columns ending up with the same name is an error.
func (f *Frame) Rename(fn func(string) string) (*Frame, error) {
	c := New(f.index)
	c.indexName = f.indexName
	for _, n := range f.names {
		renamed := fn(n)
		if _, dup := c.cols[renamed]; dup {
			return nil, fmt.Errorf("renaming %s: duplicate column %s", n, renamed)
		}
		c.names = append(c.names, renamed)
		c.cols[renamed] = slices.Clone(f.cols[n])
	}
	return c, nil
}

// Rows builds a frame from the given row positions, in that order.
func (f *Frame) Rows(rows []int) *Frame {
	c := &Frame{
		indexName: f.indexName,
		index:     make([]time.Time, len(rows)),
		names:     slices.Clone(f.names),
		cols:      make(map[string][]float64, len(f.cols)),
	}
	for i, r := range rows {
		c.index[i] = f.index[r]
	}
	for _, n := range f.names {
		src := f.cols[n]
		dst := make([]float64, len(rows))
		for i, r := range rows {
			dst[i] = src[r]
		}
		c.cols[n] = dst
	}
	return c
}

func (f *Frame) Filter(keep func(row int) bool) *Frame {
	rows := make([]int, 0, len(f.index))
	for i := range f.index {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Rows(rows)
}

// Between keeps rows whose timestamp lies in [from, to].
func (f *Frame) Between(from, to time.Time) *Frame {
	return f.Filter(func(i int) bool {
		t := f.index[i]
		return !t.Before(from) && !t.After(to)
	})
}

func (f *Frame) Head(n int) *Frame {
	n = min(max(n, 0), len(f.index))
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return f.Rows(rows)
}

// SortByIndex orders rows by ascending timestamp, keeping the relative order of equal timestamps.
func (f *Frame) SortByIndex() *Frame {
	rows := make([]int, len(f.index))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return f.index[rows[a]].Before(f.index[rows[b]])
	})
	return f.Rows(rows)
}

// DropNull removes every row holding a null in any column not listed in except.
func (f *Frame) DropNull(except ...string) *Frame {
	checked := make([][]float64, 0, len(f.names))
	for _, n := range f.names {
		if !slices.Contains(except, n) {
			checked = append(checked, f.cols[n])
		}
	}
	return f.Filter(func(row int) bool {
		for _, c := range checked {
			if IsNull(c[row]) {
				return false
			}
		}
		return true
	})
}

func (f *Frame) NullCount() int {
	n := 0
	for _, c := range f.cols {
		for _, v := range c {
			if IsNull(v) {
				n++
			}
		}
	}
	return n
}

// Resample groups rows by bucket(timestamp) and averages the non-null values of every
// column within each bucket. Buckets come out in ascending order; a bucket where a
// column has no value yields a null.
func (f *Frame) Resample(bucket func(time.Time) time.Time) *Frame {
	type group struct {
		at   time.Time
		rows []int
	}
	groups := make(map[int64]*group)
	for i, t := range f.index {
		b := bucket(t)
		key := b.UnixNano()
		g, ok := groups[key]
		if !ok {
			g = &group{at: b}
			groups[key] = g
		}
		g.rows = append(g.rows, i)
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].at.Before(ordered[b].at) })

	index := make([]time.Time, len(ordered))
	for i, g := range ordered {
		index[i] = g.at
	}
	c := New(index)
	c.indexName = f.indexName
	for _, n := range f.names {
		src := f.cols[n]
		dst := make([]float64, len(ordered))
		for i, g := range ordered {
			sum, count := 0.0, 0
			for _, r := range g.rows {
				if !IsNull(src[r]) {
					sum += src[r]
					count++
				}
			}
			if count == 0 {
				dst[i] = Null()
			} else {
				dst[i] = sum / float64(count)
			}
		}
		c.names = append(c.names, n)
		c.cols[n] = dst
	}
	return c
}

// InnerJoin keeps the left rows whose timestamp exists in right, in left order, with the
// left columns followed by the right columns. A column present on both sides is an error.
func InnerJoin(left, right *Frame) (*Frame, error) {
	for _, n := range right.names {
		if left.Has(n) {
			return nil, fmt.Errorf("column %s exists on both sides of the join", n)
		}
	}

	lookup := make(map[int64]int, len(right.index))
	for i, t := range right.index {
		if _, seen := lookup[t.UnixNano()]; !seen {
			lookup[t.UnixNano()] = i
		}
	}

	var leftRows, rightRows []int
	for i, t := range left.index {
		if r, ok := lookup[t.UnixNano()]; ok {
			leftRows = append(leftRows, i)
			rightRows = append(rightRows, r)
		}
	}

	joined := left.Rows(leftRows)
	if joined.indexName == "" {
		joined.indexName = right.indexName
	}
	for _, n := range right.names {
		src := right.cols[n]
		dst := make([]float64, len(rightRows))
		for i, r := range rightRows {
			dst[i] = src[r]
		}
		joined.names = append(joined.names, n)
		joined.cols[n] = dst
	}
	return joined, nil
}

// Append stacks bottom under top. Columns are the union of both, top order first;
// cells a side has no column for are null.
func Append(top, bottom *Frame) *Frame {
	index := make([]time.Time, 0, top.Len()+bottom.Len())
	index = append(index, top.index...)
	index = append(index, bottom.index...)

	c := New(index)
	c.indexName = top.indexName
	if c.indexName == "" {
		c.indexName = bottom.indexName
	}

	names := slices.Clone(top.names)
	for _, n := range bottom.names {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	for _, n := range names {
		dst := make([]float64, 0, len(index))
		dst = appendOrNull(dst, top, n)
		dst = appendOrNull(dst, bottom, n)
		c.names = append(c.names, n)
		c.cols[n] = dst
	}
	return c
}

func appendOrNull(dst []float64, f *Frame, name string) []float64 {
	if col, ok := f.cols[name]; ok {
		return append(dst, col...)
	}
	for range f.index {
		dst = append(dst, Null())
	}
	return dst
}
