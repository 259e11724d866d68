package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Type is the storage type of a column.
type Type int

const (
	String Type = iota
	Number
	Time
)

func (t Type) String() string {
	switch t {
	case Number:
		return "number"
	case Time:
		return "time"
	default:
		return "string"
	}
}

// ErrLengthMismatch is returned when a column does not match the dataset row count.
var ErrLengthMismatch = errors.New("column length does not match dataset rows")

// Column holds one named, typed column. Only the slice matching Type is populated.
// Null marks missing cells; the value stored at a null position is meaningless.
type Column struct {
	Name        string
	Type        Type
	Categorical bool // bounded enumeration stored as strings (e.g. Segment)
	Strings     []string
	Numbers     []float64
	Times       []time.Time
	Null        []bool
}

// NewStringColumn builds a String column; empty strings are NOT treated as null.
func NewStringColumn(name string, vals []string, null []bool) *Column {
	if null == nil {
		null = make([]bool, len(vals))
	}
	return &Column{Name: name, Type: String, Strings: vals, Null: null}
}

// NewNumberColumn builds a Number column; NaN and infinite values are marked null.
func NewNumberColumn(name string, vals []float64) *Column {
	null := make([]bool, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			null[i] = true
		}
	}
	return &Column{Name: name, Type: Number, Numbers: vals, Null: null}
}

// NewTimeColumn builds a Time column.
func NewTimeColumn(name string, vals []time.Time, null []bool) *Column {
	if null == nil {
		null = make([]bool, len(vals))
	}
	return &Column{Name: name, Type: Time, Times: vals, Null: null}
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Null) }

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool { return c.Null[i] }

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, b := range c.Null {
		if b {
			n++
		}
	}
	return n
}

// Key returns a canonical string for row i, used for grouping, distinct counts
// and duplicate detection. Nulls map to a sentinel that no real value produces.
func (c *Column) Key(i int) string {
	if c.Null[i] {
		return "\x00"
	}
	switch c.Type {
	case Number:
		return strconv.FormatFloat(c.Numbers[i], 'g', -1, 64)
	case Time:
		return c.Times[i].UTC().Format(time.RFC3339Nano)
	default:
		return c.Strings[i]
	}
}

// Display renders row i for humans and exports. Nulls render empty.
func (c *Column) Display(i int) string {
	if c.Null[i] {
		return ""
	}
	switch c.Type {
	case Number:
		return strconv.FormatFloat(c.Numbers[i], 'f', -1, 64)
	case Time:
		t := c.Times[i]
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	default:
		return c.Strings[i]
	}
}

// Distinct counts distinct values. When withNull is true a null counts as one value.
func (c *Column) Distinct(withNull bool) int {
	seen := make(map[string]struct{}, c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.Null[i] && !withNull {
			continue
		}
		seen[c.Key(i)] = struct{}{}
	}
	return len(seen)
}

// Valid returns the non-null numbers of a Number column.
func (c *Column) Valid() []float64 {
	if c.Type != Number {
		return nil
	}
	out := make([]float64, 0, len(c.Numbers))
	for i, v := range c.Numbers {
		if !c.Null[i] {
			out = append(out, v)
		}
	}
	return out
}

// Clone deep-copies the column.
func (c *Column) Clone() *Column {
	cp := &Column{Name: c.Name, Type: c.Type, Categorical: c.Categorical}
	cp.Null = append([]bool(nil), c.Null...)
	switch c.Type {
	case Number:
		cp.Numbers = append([]float64(nil), c.Numbers...)
	case Time:
		cp.Times = append([]time.Time(nil), c.Times...)
	default:
		cp.Strings = append([]string(nil), c.Strings...)
	}
	return cp
}

// toSeries encodes the column as a gota series. Nulls become NA elements and
// times are stored as RFC 3339 strings.
func (c *Column) toSeries() series.Series {
	vals := make([]interface{}, c.Len())
	for i := range vals {
		if c.Null[i] {
			continue
		}
		switch c.Type {
		case Number:
			vals[i] = c.Numbers[i]
		case Time:
			vals[i] = c.Times[i].Format(time.RFC3339Nano)
		default:
			vals[i] = c.Strings[i]
		}
	}
	t := series.String
	if c.Type == Number {
		t = series.Float
	}
	return series.New(vals, t, c.Name)
}

// fromSeries decodes a gota series back into a typed column. Null cells hold
// the zero value of their type.
func fromSeries(name string, s series.Series, m meta) *Column {
	null := s.IsNaN()
	c := &Column{Name: name, Type: m.typ, Categorical: m.categorical, Null: null}
	switch m.typ {
	case Number:
		c.Numbers = s.Float()
		for i := range c.Numbers {
			if null[i] {
				c.Numbers[i] = 0
			}
		}
	case Time:
		c.Times = make([]time.Time, len(null))
		for i, r := range s.Records() {
			if null[i] {
				continue
			}
			t, err := time.Parse(time.RFC3339Nano, r)
			if err != nil {
				c.Null[i] = true
				continue
			}
			c.Times[i] = t
		}
	default:
		c.Strings = s.Records()
		for i := range c.Strings {
			if null[i] {
				c.Strings[i] = ""
			}
		}
	}
	return c
}

// meta is what a gota series cannot carry for us.
type meta struct {
	name        string
	typ         Type
	categorical bool
}

// Dataset is an ordered, rectangular table of uniquely named columns, stored
// in a gota DataFrame. Rows are positional; the row key is always the dense
// index 0..Rows()-1.
//
// Columns handed out by Column and Columns are decoded views shared by all
// callers. Change a column by building a new one (or a Clone) and passing it
// to AddColumn or With.
type Dataset struct {
	frame dataframe.DataFrame
	meta  []meta
	index map[string]int
	rows  int

	mu    sync.Mutex
	views []*Column
}

// New returns an empty dataset with a fixed row count.
func New(rows int) *Dataset {
	return &Dataset{index: map[string]int{}, rows: rows}
}

// FromColumns builds a dataset; all columns must share a length and have unique names.
func FromColumns(cols ...*Column) (*Dataset, error) {
	rows := 0
	if len(cols) > 0 {
		rows = cols[0].Len()
	}
	ds := New(rows)
	if len(cols) == 0 {
		return ds, nil
	}
	ss := make([]series.Series, 0, len(cols))
	ms := make([]meta, 0, len(cols))
	for _, c := range cols {
		if c == nil {
			return nil, errors.New("nil column")
		}
		if c.Len() != rows {
			return nil, fmt.Errorf("%w: %q has %d cells, dataset has %d rows", ErrLengthMismatch, c.Name, c.Len(), rows)
		}
		if _, dup := ds.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		ds.index[c.Name] = len(ms)
		ss = append(ss, c.toSeries())
		ms = append(ms, meta{name: c.Name, typ: c.Type, categorical: c.Categorical})
	}
	if err := ds.commit(dataframe.New(ss...), ms); err != nil {
		return nil, err
	}
	return ds, nil
}

// commit installs a new frame and its metadata. gota renames blank or repeated
// column names on construction, so the names are always reapplied from ms.
func (d *Dataset) commit(f dataframe.DataFrame, ms []meta) error {
	if len(ms) == 0 {
		d.frame, d.meta, d.index = dataframe.DataFrame{}, nil, map[string]int{}
		d.resetViews()
		return nil
	}
	if f.Err != nil {
		return fmt.Errorf("dataframe: %w", f.Err)
	}
	names := make([]string, len(ms))
	index := make(map[string]int, len(ms))
	for i, m := range ms {
		names[i] = m.name
		index[m.name] = i
	}
	if err := f.SetNames(names...); err != nil {
		return fmt.Errorf("dataframe: %w", err)
	}
	d.frame, d.meta, d.index = f, ms, index
	d.resetViews()
	return nil
}

func (d *Dataset) resetViews() {
	d.mu.Lock()
	d.views = nil
	d.mu.Unlock()
}

// columns decodes the frame once and caches the typed views.
func (d *Dataset) columns() []*Column {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.views == nil && len(d.meta) > 0 {
		d.views = make([]*Column, len(d.meta))
		for i, m := range d.meta {
			d.views[i] = fromSeries(m.name, d.frame.Col(m.name), m)
		}
	}
	return d.views
}

// Rows returns the row count.
func (d *Dataset) Rows() int { return d.rows }

// Width returns the column count.
func (d *Dataset) Width() int { return len(d.meta) }

// Empty reports whether the dataset has no rows or no columns.
func (d *Dataset) Empty() bool { return d == nil || d.rows == 0 || len(d.meta) == 0 }

// AddColumn appends a column. Adding a name that already exists replaces it in place.
func (d *Dataset) AddColumn(c *Column) error {
	if c == nil {
		return errors.New("nil column")
	}
	if c.Len() != d.rows {
		return fmt.Errorf("%w: %q has %d cells, dataset has %d rows", ErrLengthMismatch, c.Name, c.Len(), d.rows)
	}
	m := meta{name: c.Name, typ: c.Type, categorical: c.Categorical}
	ms := append([]meta(nil), d.meta...)
	s := c.toSeries()
	var f dataframe.DataFrame
	switch i, ok := d.index[c.Name]; {
	case ok:
		ms[i] = m
		f = d.frame.Mutate(s)
	case len(ms) == 0:
		ms = append(ms, m)
		f = dataframe.New(s)
	default:
		ms = append(ms, m)
		f = d.frame.Mutate(s)
	}
	if err := d.commit(f, ms); err != nil {
		return fmt.Errorf("add column %q: %w", c.Name, err)
	}
	return nil
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns()[i], true
}

// Columns returns the columns in order. Callers must not mutate the returned slice.
func (d *Dataset) Columns() []*Column { return d.columns() }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.meta))
	for i, m := range d.meta {
		out[i] = m.name
	}
	return out
}

// Clone deep-copies the dataset.
func (d *Dataset) Clone() *Dataset {
	cp := New(d.rows)
	if len(d.meta) > 0 {
		// Copy keeps the frame's error state, so a failure here means d was already broken.
		if err := cp.commit(d.frame.Copy(), append([]meta(nil), d.meta...)); err != nil {
			panic(err)
		}
	}
	return cp
}

// Drop returns a copy without the named columns. Unknown names are ignored.
func (d *Dataset) Drop(names ...string) *Dataset {
	skip := make(map[string]bool, len(names))
	var known []string
	for _, n := range names {
		if _, ok := d.index[n]; ok && !skip[n] {
			skip[n] = true
			known = append(known, n)
		}
	}
	if len(known) == 0 {
		return d.Clone()
	}
	var ms []meta
	for _, m := range d.meta {
		if !skip[m.name] {
			ms = append(ms, m)
		}
	}
	cp := New(d.rows)
	if len(ms) == 0 {
		return cp
	}
	if err := cp.commit(d.frame.Drop(known), ms); err != nil {
		panic(err)
	}
	return cp
}

// Take returns a copy holding only the given rows, re-indexed densely.
// Row indexes must be in range.
func (d *Dataset) Take(rows []int) *Dataset {
	cp := New(len(rows))
	if len(d.meta) == 0 {
		return cp
	}
	if err := cp.commit(d.frame.Subset(rows), append([]meta(nil), d.meta...)); err != nil {
		panic(err)
	}
	return cp
}

// With returns a copy with the column added (or replaced).
func (d *Dataset) With(c *Column) (*Dataset, error) {
	cp := d.Clone()
	if err := cp.AddColumn(c); err != nil {
		return nil, err
	}
	return cp, nil
}

// Rename returns a copy with columns renamed via mapping old→new.
func (d *Dataset) Rename(mapping map[string]string) (*Dataset, error) {
	ms := append([]meta(nil), d.meta...)
	seen := make(map[string]bool, len(ms))
	for i := range ms {
		if to, ok := mapping[ms[i].name]; ok {
			ms[i].name = to
		}
		if seen[ms[i].name] {
			return nil, fmt.Errorf("rename produces duplicate column %q", ms[i].name)
		}
		seen[ms[i].name] = true
	}
	cp := New(d.rows)
	if len(ms) == 0 {
		return cp, nil
	}
	if err := cp.commit(d.frame.Copy(), ms); err != nil {
		return nil, err
	}
	return cp, nil
}

// RowKey joins the keys of every column for row i.
func (d *Dataset) RowKey(i int) string {
	var b strings.Builder
	for j, c := range d.columns() {
		if j > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(c.Key(i))
	}
	return b.String()
}

// NullCount returns the number of missing cells across all columns.
func (d *Dataset) NullCount() int {
	n := 0
	for _, c := range d.columns() {
		n += c.NullCount()
	}
	return n
}
