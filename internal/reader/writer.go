package reader

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rapid-data/rapid/pkg/types"
)

// WriteParquet encodes the table to parquet using the schema's declared
// column types. Only columns present in the table are written, so partition
// columns already lifted into the object path are left out. Date values are
// written as ISO-8601 strings.
func WriteParquet(w io.Writer, sc *types.Schema, t *types.Table) error {
	group := parquet.Group{}
	for _, name := range t.Columns() {
		col, ok := sc.Column(name)
		if !ok {
			return fmt.Errorf("table column %q is not in the schema", name)
		}
		group[name] = parquet.Optional(parquetNode(col.DataType))
	}

	writer := parquet.NewGenericWriter[map[string]any](w, parquet.NewSchema(sc.Metadata.TableName(), group))

	rows := make([]map[string]any, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		row := make(map[string]any, t.NumColumns())
		for _, name := range t.Columns() {
			value := t.Series(name).Values[i]
			if types.IsNull(value) {
				continue
			}
			if ts, ok := value.(time.Time); ok {
				value = ts.Format("2006-01-02")
			}
			row[name] = value
		}
		rows = append(rows, row)
	}

	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalise parquet file: %w", err)
	}
	return nil
}

func parquetNode(dt types.DataType) parquet.Node {
	switch dt {
	case types.DataTypeInt:
		return parquet.Int(32)
	case types.DataTypeBigInt:
		return parquet.Int(64)
	case types.DataTypeDouble:
		return parquet.Leaf(parquet.DoubleType)
	case types.DataTypeBoolean:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}
