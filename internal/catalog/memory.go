package catalog

import (
	"context"
	"sync"

	apperrors "github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// MemoryTableCatalog is an in-memory TableCatalog used in tests.
type MemoryTableCatalog struct {
	mu          sync.Mutex
	tables      map[string]*types.Schema
	crawlerRuns map[string]int

	// CrawlerChecksUntilReady makes WaitForCrawlerCompletion fail this many
	// times before succeeding.
	CrawlerChecksUntilReady int
}

// NewMemoryTableCatalog creates an empty in-memory table catalogue.
func NewMemoryTableCatalog() *MemoryTableCatalog {
	return &MemoryTableCatalog{
		tables:      make(map[string]*types.Schema),
		crawlerRuns: make(map[string]int),
	}
}

func (m *MemoryTableCatalog) CreateTable(ctx context.Context, sc *types.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[sc.Metadata.TableName()] = sc
	return nil
}

func (m *MemoryTableCatalog) UpdateTableConfig(ctx context.Context, sc *types.Schema) error {
	return m.CreateTable(ctx, sc)
}

func (m *MemoryTableCatalog) DeleteTable(ctx context.Context, md types.SchemaMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, md.TableName())
	return nil
}

func (m *MemoryTableCatalog) StartCrawler(ctx context.Context, md types.SchemaMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crawlerRuns[md.String()]++
	return nil
}

func (m *MemoryTableCatalog) WaitForCrawlerCompletion(ctx context.Context, md types.SchemaMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CrawlerChecksUntilReady > 0 {
		m.CrawlerChecksUntilReady--
		return apperrors.NewCrawlerNotReadyError("crawler is still running")
	}
	return nil
}

// HasTable reports whether a table is registered.
func (m *MemoryTableCatalog) HasTable(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[name]
	return ok
}

// CrawlerRuns returns how many times the dataset's crawler was started.
func (m *MemoryTableCatalog) CrawlerRuns(md types.SchemaMetadata) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crawlerRuns[md.String()]
}

// MemoryQueryEngine is an in-memory QueryEngine used in tests. It records
// submitted SQL and returns canned results.
type MemoryQueryEngine struct {
	mu sync.Mutex

	// Result is returned from Query and Results.
	Result *types.Table
	// Err, when set, is returned from every operation.
	Err error

	queries []string
}

func (m *MemoryQueryEngine) Query(ctx context.Context, sql string) (*types.Table, error) {
	if _, err := m.QueryAsync(ctx, sql); err != nil {
		return nil, err
	}
	return m.Result, nil
}

func (m *MemoryQueryEngine) QueryAsync(ctx context.Context, sql string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.queries = append(m.queries, sql)
	return "execution-1", nil
}

func (m *MemoryQueryEngine) WaitForCompletion(ctx context.Context, executionID string) error {
	return m.Err
}

func (m *MemoryQueryEngine) Results(ctx context.Context, executionID string) (*types.Table, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

func (m *MemoryQueryEngine) ResultsLocation(ctx context.Context, executionID string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return "query-results/" + executionID + ".csv", nil
}

// Queries returns the SQL submitted so far.
func (m *MemoryQueryEngine) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}
