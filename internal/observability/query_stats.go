// Package observability tracks which columns datasets are queried on, so
// operators can spot hot predicates and pick better partition columns.
package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// ColumnStats accumulates how often one column appears in query predicates.
type ColumnStats struct {
	Column    string         `json:"column"`
	Frequency int64          `json:"frequency"`
	LastSeen  time.Time      `json:"last_seen"`
	Operators map[string]int `json:"operators"`
}

// QueryStats counts predicate usage per catalogue table inside a sliding
// retention window. All methods are safe for concurrent use.
type QueryStats struct {
	mu     sync.RWMutex
	tables map[string]map[string]*ColumnStats
	window time.Duration
}

// NewQueryStats creates a tracker that retains entries for the given window.
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		tables: make(map[string]map[string]*ColumnStats),
		window: window,
	}
}

// RecordPredicate counts one predicate over a column of a table.
func (q *QueryStats) RecordPredicate(table, column, operator string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cols, ok := q.tables[table]
	if !ok {
		cols = make(map[string]*ColumnStats)
		q.tables[table] = cols
	}
	stats, ok := cols[column]
	if !ok {
		stats = &ColumnStats{Column: column, Operators: make(map[string]int)}
		cols[column] = stats
	}
	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operators[strings.ToUpper(strings.TrimSpace(operator))]++
}

// TopColumns returns the table's most queried columns, most frequent first,
// capped at limit. Entries older than the retention window are dropped.
func (q *QueryStats) TopColumns(table string, limit int) []ColumnStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pruneLocked(table)
	cols := q.tables[table]
	out := make([]ColumnStats, 0, len(cols))
	for _, stats := range cols {
		cp := *stats
		cp.Operators = make(map[string]int, len(stats.Operators))
		for op, n := range stats.Operators {
			cp.Operators[op] = n
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Column < out[j].Column
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (q *QueryStats) pruneLocked(table string) {
	if q.window <= 0 {
		return
	}
	cutoff := time.Now().Add(-q.window)
	for column, stats := range q.tables[table] {
		if stats.LastSeen.Before(cutoff) {
			delete(q.tables[table], column)
		}
	}
}
