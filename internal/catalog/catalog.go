// Package catalog integrates with the AWS data catalogue: Glue for table
// definitions and crawlers, Athena for SQL execution over the stored data.
package catalog

import (
	"context"
	"time"

	"github.com/rapid-data/rapid/pkg/types"
)

// pollCount converts a wait budget into a retry count for a fixed-interval
// poll. A budget shorter than one interval still allows a single retry.
func pollCount(budget, interval time.Duration) uint64 {
	n := uint64(budget / interval)
	if n == 0 {
		n = 1
	}
	return n
}

// TableCatalog manages the queryable table registered for each dataset
// version.
type TableCatalog interface {
	// CreateTable registers a table for the schema version, with the
	// schema's partition columns as partition keys.
	CreateTable(ctx context.Context, sc *types.Schema) error

	// UpdateTableConfig re-registers the table definition for an existing
	// schema version, preserving the table name.
	UpdateTableConfig(ctx context.Context, sc *types.Schema) error

	// DeleteTable removes the table for the schema version. Deleting a
	// table that does not exist is not an error.
	DeleteTable(ctx context.Context, m types.SchemaMetadata) error

	// StartCrawler triggers partition discovery for the dataset.
	StartCrawler(ctx context.Context, m types.SchemaMetadata) error

	// WaitForCrawlerCompletion blocks until the dataset's crawler is back
	// in a ready state, or the retry budget runs out.
	WaitForCrawlerCompletion(ctx context.Context, m types.SchemaMetadata) error
}

// QueryEngine executes SQL against registered dataset tables.
type QueryEngine interface {
	// Query runs sql synchronously and decodes the result set.
	Query(ctx context.Context, sql string) (*types.Table, error)

	// QueryAsync submits sql and returns the execution id without waiting.
	QueryAsync(ctx context.Context, sql string) (string, error)

	// WaitForCompletion blocks until the execution succeeds, or returns a
	// query execution error if it fails or is cancelled.
	WaitForCompletion(ctx context.Context, executionID string) error

	// Results decodes the result set of a completed execution.
	Results(ctx context.Context, executionID string) (*types.Table, error)

	// ResultsLocation returns the object key holding the raw result file of
	// a completed execution.
	ResultsLocation(ctx context.Context, executionID string) (string, error)
}
