package models

import (
	"fmt"
	"math"
	"strconv"
)

// ColumnKind tells whether a column holds labels or numbers.
type ColumnKind int

const (
	StringColumn ColumnKind = iota
	NumberColumn
)

func (k ColumnKind) String() string {
	if k == NumberColumn {
		return "number"
	}
	return "string"
}

// Column is a single named column of a Table. Exactly one of Strings or
// Numbers is populated, according to Kind. Nulls are "" and NaN respectively.
type Column struct {
	Name    string
	Kind    ColumnKind
	Strings []string
	Numbers []float64
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	if c.Kind == NumberColumn {
		return len(c.Numbers)
	}
	return len(c.Strings)
}

// IsNull reports whether row i holds a null value.
func (c *Column) IsNull(i int) bool {
	if c.Kind == NumberColumn {
		return math.IsNaN(c.Numbers[i])
	}
	return c.Strings[i] == ""
}

// Format renders row i as text. Nulls render as "" and integral numbers
// without a decimal point; +Inf renders as "+Inf".
func (c *Column) Format(i int) string {
	if c.Kind == StringColumn {
		return c.Strings[i]
	}
	v := c.Numbers[i]
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Column) take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == NumberColumn {
		out.Numbers = make([]float64, len(idx))
		for i, j := range idx {
			out.Numbers[i] = c.Numbers[j]
		}
		return out
	}
	out.Strings = make([]string, len(idx))
	for i, j := range idx {
		out.Strings[i] = c.Strings[j]
	}
	return out
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == NumberColumn {
		out.Numbers = append([]float64(nil), c.Numbers...)
	} else {
		out.Strings = append([]string(nil), c.Strings...)
	}
	return out
}

// Table is an in-memory columnar dataset. Rows are identified by position.
// Operations that reshape a table return a new Table and leave the receiver
// untouched, so a stage never mutates a table produced by an earlier stage.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable returns an empty table; the row count is fixed by the first column added.
func NewTable() *Table {
	return &Table{index: make(map[string]int), rows: -1}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t.rows < 0 {
		return 0
	}
	return t.rows
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Missing returns the subset of names that are not columns of the table.
func (t *Table) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !t.Has(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

func (t *Table) set(col *Column) error {
	n := col.Len()
	if t.rows >= 0 && n != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", col.Name, n, t.rows)
	}
	t.rows = n
	if i, ok := t.index[col.Name]; ok {
		t.columns[i] = col
		return nil
	}
	t.index[col.Name] = len(t.columns)
	t.columns = append(t.columns, col)
	return nil
}

// SetStrings adds or replaces a string column. The table takes ownership of vals.
func (t *Table) SetStrings(name string, vals []string) error {
	return t.set(&Column{Name: name, Kind: StringColumn, Strings: vals})
}

// SetNumbers adds or replaces a number column. The table takes ownership of vals.
func (t *Table) SetNumbers(name string, vals []float64) error {
	return t.set(&Column{Name: name, Kind: NumberColumn, Numbers: vals})
}

// Strings returns the values of a string column.
func (t *Table) Strings(name string) ([]string, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if c.Kind != StringColumn {
		return nil, fmt.Errorf("column %q is a %s column, want string", name, c.Kind)
	}
	return c.Strings, nil
}

// Numbers returns the values of a number column.
func (t *Table) Numbers(name string) ([]float64, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if c.Kind != NumberColumn {
		return nil, fmt.Errorf("column %q is a %s column, want number", name, c.Kind)
	}
	return c.Numbers, nil
}

// Ints returns a number column as ints. Null or fractional values are an error.
func (t *Table) Ints(name string) ([]int, error) {
	vals, err := t.Numbers(name)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("column %q row %d: %q is not an integer", name, i, strconv.FormatFloat(v, 'g', -1, 64))
		}
		out[i] = int(v)
	}
	return out, nil
}

// Take returns a new table holding copies of the rows at idx, in that order.
func (t *Table) Take(idx []int) *Table {
	out := NewTable()
	out.rows = len(idx)
	for _, c := range t.columns {
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c.take(idx))
	}
	return out
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	idx := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// Drop returns a deep copy of the table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	out := NewTable()
	out.rows = t.rows
	for _, c := range t.columns {
		if _, ok := skip[c.Name]; ok {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c.clone())
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	return t.Drop()
}

// Record returns row i as formatted column values keyed by column name.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.columns))
	for _, c := range t.columns {
		rec[c.Name] = c.Format(i)
	}
	return rec
}
