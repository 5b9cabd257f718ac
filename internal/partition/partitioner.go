// Package partition splits validated tables into partition-keyed chunks
// based on the schema's declared partition columns.
package partition

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rapid-data/rapid/pkg/types"
)

// Partition is one partition-keyed chunk of a validated table. Path is the
// hive-style storage sub-path ("col1=a/col2=b"); Data holds the non-partition
// columns for the rows sharing that key.
type Partition struct {
	Path string
	Data *types.Table
}

// Split divides a validated table by its schema's partition columns.
// A schema with no partition columns yields a single partition with an empty
// path. Output order is deterministic (sorted by path); arrival order of rows
// within a partition is preserved.
func Split(schema *types.Schema, t *types.Table) []Partition {
	partitionCols := schema.PartitionColumns()
	if len(partitionCols) == 0 {
		return []Partition{{Path: "", Data: t.Copy()}}
	}

	valueCols := make([]string, 0, len(schema.Columns)-len(partitionCols))
	for _, c := range schema.ValueColumns() {
		valueCols = append(valueCols, c.Name)
	}

	groups := make(map[string]*types.Table)
	for row := 0; row < t.NumRows(); row++ {
		path := partitionPath(partitionCols, t, row)
		sub, ok := groups[path]
		if !ok {
			sub = types.NewTable()
			for _, name := range valueCols {
				sub.AddSeries(name, nil)
			}
			groups[path] = sub
		}
		values := make([]interface{}, len(valueCols))
		for j, name := range valueCols {
			values[j] = t.Series(name).Values[row]
		}
		sub.AppendRow(values)
	}

	out := make([]Partition, 0, len(groups))
	for path, sub := range groups {
		out = append(out, Partition{Path: path, Data: sub})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// partitionPath renders the hive-style path segment for one row.
func partitionPath(cols []types.Column, t *types.Table, row int) string {
	segments := make([]string, len(cols))
	for i, c := range cols {
		segments[i] = fmt.Sprintf("%s=%s", c.Name, formatPartitionValue(t.Series(c.Name).Values[row]))
	}
	return strings.Join(segments, "/")
}

// formatPartitionValue renders a cell for use in a storage path. Dates render
// as ISO dates, which are partition safe.
func formatPartitionValue(v interface{}) string {
	switch d := v.(type) {
	case time.Time:
		return d.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", v)
	}
}
