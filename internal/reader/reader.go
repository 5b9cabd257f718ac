// Package reader decodes uploaded dataset files into tables, in bounded
// chunks, and encodes validated tables to parquet.
package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rapid-data/rapid/pkg/types"
)

// DefaultChunkRows is how many rows each chunk holds unless configured
// otherwise.
const DefaultChunkRows = 50_000

// ChunkReader yields an uploaded file's contents as a sequence of tables.
// Next returns io.EOF once the file is exhausted.
type ChunkReader interface {
	Next() (*types.Table, error)
	Close() error
}

// Open returns a chunk reader for the file, chosen by extension. Supported
// formats are .csv and .parquet.
func Open(path string, chunkRows int) (ChunkReader, error) {
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open upload: %w", err)
		}
		return NewCSVReader(f, chunkRows), nil
	case ".parquet":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open upload: %w", err)
		}
		stat, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to stat upload: %w", err)
		}
		r, err := NewParquetReader(f, stat.Size(), chunkRows)
		if err != nil {
			f.Close()
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
}
