package validation

import (
	"fmt"
	"math"
	"time"

	"github.com/rapid-data/rapid/pkg/types"
)

// integralValue extracts an integer from a cell if the cell holds one,
// including floats carrying an exactly integral value (readers produce these
// for numeric columns containing nulls).
func integralValue(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || math.Trunc(n) != n {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// inferSeriesType infers the semantic type actually present in a series,
// used only to build the coercion diagnostic. Any string value dominates the
// inference, so a mixed numeric/text column reads as "string".
func inferSeriesType(values []interface{}) types.DataType {
	var (
		sawBool  bool
		sawInt   bool
		sawFloat bool
		sawDate  bool
		sawOther bool
		sawAny   bool
		maxAbs   int64
	)
	for _, v := range values {
		if types.IsNull(v) {
			continue
		}
		sawAny = true
		switch n := v.(type) {
		case string:
			return types.DataTypeString
		case bool:
			sawBool = true
		case time.Time:
			sawDate = true
		case float64:
			if math.Trunc(n) == n {
				sawInt = true
				if abs := int64(math.Abs(n)); abs > maxAbs {
					maxAbs = abs
				}
			} else {
				sawFloat = true
			}
		case int, int32, int64:
			sawInt = true
			i, _ := integralValue(n)
			if i < 0 {
				i = -i
			}
			if i > maxAbs {
				maxAbs = i
			}
		default:
			sawOther = true
		}
	}
	switch {
	case !sawAny:
		return types.DataTypeObject
	case sawOther, (sawBool && (sawInt || sawFloat)), (sawDate && (sawBool || sawInt || sawFloat)):
		return types.DataTypeObject
	case sawDate:
		return types.DataTypeDate
	case sawBool:
		return types.DataTypeBoolean
	case sawFloat:
		return types.DataTypeDouble
	case maxAbs > math.MaxInt32:
		return types.DataTypeBigInt
	default:
		return types.DataTypeInt
	}
}

// coerceTypes casts every declared column to its declared semantic type,
// producing one diagnostic per column that cannot be cast. Columns holding
// only nulls are exempt: their declared type cannot be falsified by absence
// of data. Date columns are owned by the date-conversion stage.
func coerceTypes(schema *types.Schema, t *types.Table) []string {
	var errs []string
	for _, col := range schema.Columns {
		series := t.Series(col.Name)
		if series == nil || col.DataType == types.DataTypeDate || col.DataType == types.DataTypeObject {
			continue
		}
		if allNull(series.Values) {
			continue
		}
		if !coerceSeries(col.DataType, series) {
			errs = append(errs, fmt.Sprintf(
				"Column [%s] has an incorrect data type. Expected %s, received %s",
				col.Name, col.DataType, inferSeriesType(series.Values)))
		}
	}
	return errs
}

// coerceSeries rewrites the series values in place to the canonical Go
// representation of the declared type. It returns false, leaving the series
// untouched, if any value cannot be cast.
func coerceSeries(declared types.DataType, series *types.Series) bool {
	coerced := make([]interface{}, len(series.Values))
	for i, v := range series.Values {
		if types.IsNull(v) {
			coerced[i] = nil
			continue
		}
		switch declared {
		case types.DataTypeInt:
			n, ok := integralValue(v)
			if !ok || n < math.MinInt32 || n > math.MaxInt32 {
				return false
			}
			coerced[i] = int32(n)
		case types.DataTypeBigInt:
			n, ok := integralValue(v)
			if !ok {
				return false
			}
			coerced[i] = n
		case types.DataTypeDouble:
			f, ok := floatValue(v)
			if !ok {
				return false
			}
			coerced[i] = f
		case types.DataTypeBoolean:
			b, ok := v.(bool)
			if !ok {
				return false
			}
			coerced[i] = b
		case types.DataTypeString:
			s, ok := v.(string)
			if !ok {
				return false
			}
			coerced[i] = s
		default:
			coerced[i] = v
		}
	}
	series.Values = coerced
	return true
}

func allNull(values []interface{}) bool {
	for _, v := range values {
		if !types.IsNull(v) {
			return false
		}
	}
	return true
}
