package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rapid-data/rapid/pkg/types"
)

// CSVReader reads a CSV file in chunks. The first record is the header; every
// subsequent record becomes one row, with values inferred as int, double,
// boolean or string. Empty cells are nulls.
type CSVReader struct {
	source    io.ReadCloser
	csv       *csv.Reader
	chunkRows int
	headers   []string
	done      bool
}

// NewCSVReader creates a chunked reader over the source. The source is closed
// by Close.
func NewCSVReader(source io.ReadCloser, chunkRows int) *CSVReader {
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}
	r := csv.NewReader(source)
	// Ragged rows are reported as validation failures downstream, not as
	// parse errors here.
	r.FieldsPerRecord = -1
	return &CSVReader{source: source, csv: r, chunkRows: chunkRows}
}

func (r *CSVReader) Next() (*types.Table, error) {
	if r.done {
		return nil, io.EOF
	}

	if r.headers == nil {
		header, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		r.headers = header
	}

	columns := make([][]interface{}, len(r.headers))
	rows := 0
	for rows < r.chunkRows {
		record, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		for i := range r.headers {
			var value interface{}
			if i < len(record) {
				value = inferValue(record[i])
			}
			columns[i] = append(columns[i], value)
		}
		rows++
	}

	if rows == 0 {
		return nil, io.EOF
	}

	table := types.NewTable()
	for i, name := range r.headers {
		table.AddSeries(name, columns[i])
	}
	return table, nil
}

func (r *CSVReader) Close() error {
	return r.source.Close()
}

// inferValue maps a CSV cell to a typed value. Integers before floats, so
// "42" stays integral; booleans accept only the spellings strconv does.
func inferValue(cell string) interface{} {
	if cell == "" {
		return nil
	}
	if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(cell); err == nil {
		return v
	}
	return cell
}
