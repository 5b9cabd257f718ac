package reader

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/rapid-data/rapid/pkg/types"
)

// ParquetReader reads a parquet file in chunks, one row group at a time.
type ParquetReader struct {
	source    io.Closer
	file      *parquet.File
	names     []string
	chunkRows int

	groupIndex int
	rows       parquet.Rows
	buffer     []parquet.Row
}

// NewParquetReader creates a chunked reader over the source. The source is
// closed by Close.
func NewParquetReader(source interface {
	io.ReaderAt
	io.Closer
}, size int64, chunkRows int) (*ParquetReader, error) {
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}

	file, err := parquet.OpenFile(source, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	fields := file.Schema().Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name()
	}

	return &ParquetReader{
		source:    source,
		file:      file,
		names:     names,
		chunkRows: chunkRows,
		buffer:    make([]parquet.Row, chunkRows),
	}, nil
}

func (r *ParquetReader) Next() (*types.Table, error) {
	columns := make([][]interface{}, len(r.names))
	total := 0

	for total < r.chunkRows {
		if r.rows == nil {
			groups := r.file.RowGroups()
			if r.groupIndex >= len(groups) {
				break
			}
			r.rows = groups[r.groupIndex].Rows()
			r.groupIndex++
		}

		n, err := r.rows.ReadRows(r.buffer[:r.chunkRows-total])
		for _, row := range r.buffer[:n] {
			for _, value := range row {
				col := value.Column()
				columns[col] = append(columns[col], decodeParquetValue(value))
			}
		}
		total += n

		if err == io.EOF {
			r.rows.Close()
			r.rows = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	if total == 0 {
		return nil, io.EOF
	}

	table := types.NewTable()
	for i, name := range r.names {
		table.AddSeries(name, columns[i])
	}
	return table, nil
}

func (r *ParquetReader) Close() error {
	if r.rows != nil {
		r.rows.Close()
		r.rows = nil
	}
	return r.source.Close()
}

func decodeParquetValue(v parquet.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return v.String()
	}
}
