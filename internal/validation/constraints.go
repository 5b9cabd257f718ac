package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/rapid-data/rapid/internal/schema"
	"github.com/rapid-data/rapid/pkg/types"
)

// convertDateColumns parses every value of each date-typed column against the
// column's declared strptime format and rewrites the column to canonical date
// values. A column with any unparseable row yields a single diagnostic.
func convertDateColumns(sc *types.Schema, t *types.Table) []string {
	var errs []string
	for _, col := range sc.Columns {
		if col.DataType != types.DataTypeDate {
			continue
		}
		series := t.Series(col.Name)
		if series == nil {
			continue
		}
		converted := make([]interface{}, len(series.Values))
		ok := true
		for i, v := range series.Values {
			if types.IsNull(v) {
				converted[i] = nil
				continue
			}
			switch d := v.(type) {
			case time.Time:
				converted[i] = d
			case string:
				parsed, err := schema.ParseDate(col.Format, d)
				if err != nil {
					ok = false
				} else {
					converted[i] = parsed
				}
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if !ok {
			errs = append(errs, fmt.Sprintf(
				"Column [%s] does not match specified date format in at least one row", col.Name))
			continue
		}
		series.Values = converted
	}
	return errs
}

// checkNullsAndUniqueness enforces allow_null and unique declarations,
// yielding one diagnostic per violated constraint per column.
func checkNullsAndUniqueness(sc *types.Schema, t *types.Table) []string {
	var errs []string
	for _, col := range sc.Columns {
		series := t.Series(col.Name)
		if series == nil {
			continue
		}
		if !col.AllowNull && hasNull(series.Values) {
			errs = append(errs, fmt.Sprintf("non-nullable series '%s' contains null values", col.Name))
		}
		if col.Unique && hasDuplicates(series.Values) {
			errs = append(errs, fmt.Sprintf("series '%s' contains duplicate values", col.Name))
		}
	}
	return errs
}

func hasNull(values []interface{}) bool {
	for _, v := range values {
		if types.IsNull(v) {
			return true
		}
	}
	return false
}

// hasDuplicates reports whether any non-null value repeats.
func hasDuplicates(values []interface{}) bool {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if types.IsNull(v) {
			continue
		}
		key := fmt.Sprintf("%T:%v", v, v)
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}

// checkPartitionSafety scans non-date partition columns for the '/'
// character, which would break S3 partition path segments. One diagnostic is
// produced per offending column regardless of how many rows offend.
// Date-typed partition columns are exempt: canonicalized dates never
// contain '/'.
func checkPartitionSafety(sc *types.Schema, t *types.Table) []string {
	var errs []string
	for _, col := range sc.Columns {
		if !col.IsPartition() || col.DataType == types.DataTypeDate {
			continue
		}
		series := t.Series(col.Name)
		if series == nil {
			continue
		}
		for _, v := range series.Values {
			s, ok := v.(string)
			if ok && strings.Contains(s, "/") {
				errs = append(errs, fmt.Sprintf(
					"Partition column [%s] has values with illegal characters '/'", col.Name))
				break
			}
		}
	}
	return errs
}

// removeEmptyRows drops rows that are null across every column. This is a
// cleanup, not an error condition.
func removeEmptyRows(t *types.Table) *types.Table {
	cols := t.Columns()
	return t.FilterRows(func(row int) bool {
		for _, name := range cols {
			if !types.IsNull(t.Series(name).Values[row]) {
				return true
			}
		}
		return false
	})
}
