package types

import "math"

// Table is a column-oriented chunk of tabular data. Columns keep their
// insertion order; a nil value represents null. All series in a table have
// the same length.
type Table struct {
	series []*Series
	index  map[string]int
}

// Series is a single named column of values.
type Series struct {
	Name   string
	Values []interface{}
}

// IsNull reports whether a cell value represents null.
func IsNull(v interface{}) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok {
		return math.IsNaN(f)
	}
	return false
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// AddSeries appends a column. Adding a duplicate name replaces the values of
// the existing column.
func (t *Table) AddSeries(name string, values []interface{}) {
	if i, ok := t.index[name]; ok {
		t.series[i].Values = values
		return
	}
	t.index[name] = len(t.series)
	t.series = append(t.series, &Series{Name: name, Values: values})
}

// Series returns the column with the given name, or nil.
func (t *Table) Series(name string) *Series {
	if i, ok := t.index[name]; ok {
		return t.series[i]
	}
	return nil
}

// Columns returns column names in insertion order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.series))
	for i, s := range t.series {
		names[i] = s.Name
	}
	return names
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.series)
}

// NumRows returns the number of rows. An empty table has zero rows.
func (t *Table) NumRows() int {
	if len(t.series) == 0 {
		return 0
	}
	return len(t.series[0].Values)
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []interface{} {
	row := make([]interface{}, len(t.series))
	for j, s := range t.series {
		row[j] = s.Values[i]
	}
	return row
}

// RenameColumn changes a column's name in place. Renaming a missing column is
// a no-op.
func (t *Table) RenameColumn(old, name string) {
	i, ok := t.index[old]
	if !ok || old == name {
		return
	}
	delete(t.index, old)
	t.index[name] = i
	t.series[i].Name = name
}

// Copy returns a deep copy of the table.
func (t *Table) Copy() *Table {
	out := NewTable()
	for _, s := range t.series {
		values := make([]interface{}, len(s.Values))
		copy(values, s.Values)
		out.AddSeries(s.Name, values)
	}
	return out
}

// Select returns a new table containing only the named columns, in the given
// order. Missing columns are skipped.
func (t *Table) Select(names []string) *Table {
	out := NewTable()
	for _, name := range names {
		if s := t.Series(name); s != nil {
			values := make([]interface{}, len(s.Values))
			copy(values, s.Values)
			out.AddSeries(name, values)
		}
	}
	return out
}

// FilterRows returns a new table keeping only rows where keep is true.
func (t *Table) FilterRows(keep func(row int) bool) *Table {
	out := NewTable()
	for _, s := range t.series {
		var values []interface{}
		for i, v := range s.Values {
			if keep(i) {
				values = append(values, v)
			}
		}
		out.AddSeries(s.Name, values)
	}
	return out
}

// AppendRow appends one row of values in column order. The value count must
// match the column count.
func (t *Table) AppendRow(values []interface{}) {
	for j, s := range t.series {
		s.Values = append(s.Values, values[j])
	}
}

// EmptyLike returns an empty table with the same columns as t.
func (t *Table) EmptyLike() *Table {
	out := NewTable()
	for _, s := range t.series {
		out.AddSeries(s.Name, nil)
	}
	return out
}
