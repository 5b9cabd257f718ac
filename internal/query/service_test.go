package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/catalog"
	"github.com/rapid-data/rapid/internal/job"
	"github.com/rapid-data/rapid/internal/observability"
	"github.com/rapid-data/rapid/internal/schema"
	"github.com/rapid-data/rapid/internal/storage"
	"github.com/rapid-data/rapid/pkg/types"
)

type serviceFixture struct {
	service *Service
	engine  *catalog.MemoryQueryEngine
	jobs    *job.Service
	stats   *observability.QueryStats
}

func newServiceFixture(t *testing.T) *serviceFixture {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	schemaCatalog := schema.NewMemoryCatalog()
	sc := &types.Schema{
		Metadata: types.SchemaMetadata{
			Layer:           types.LayerRaw,
			Domain:          "sales",
			Dataset:         "orders",
			Version:         1,
			IsLatestVersion: true,
		},
		Columns: []types.Column{
			{Name: "item", DataType: types.DataTypeString, AllowNull: true},
		},
	}
	require.NoError(t, schemaCatalog.StoreSchema(context.Background(), sc))

	schemas := schema.NewService(schemaCatalog, store, catalog.NewMemoryTableCatalog(), zap.NewNop())
	jobs := job.NewService(job.NewMemoryStore(), time.Hour, zap.NewNop())
	engine := &catalog.MemoryQueryEngine{Result: types.NewTable()}

	stats := observability.NewQueryStats(time.Hour)
	return &serviceFixture{
		service: NewService(schemas, engine, store, jobs, stats, zap.NewNop()),
		engine:  engine,
		jobs:    jobs,
		stats:   stats,
	}
}

func ordersMetadata() types.SchemaMetadata {
	return types.SchemaMetadata{Layer: types.LayerRaw, Domain: "sales", Dataset: "orders", Version: 1}
}

func TestQueryDatasetBuildsSQLAgainstTable(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.QueryDataset(context.Background(), ordersMetadata(), SqlQuery{})
	require.NoError(t, err)

	queries := f.engine.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "SELECT * FROM raw_sales_orders_1", queries[0])
}

func TestQueryDatasetUnknownDataset(t *testing.T) {
	f := newServiceFixture(t)

	m := ordersMetadata()
	m.Dataset = "missing"
	_, err := f.service.QueryDataset(context.Background(), m, SqlQuery{})
	assert.Error(t, err)
	assert.Empty(t, f.engine.Queries())
}

func TestQueryLargeDatasetSucceedsWithDownloadURL(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	j, err := f.service.QueryLargeDataset(ctx, "subject-1", ordersMetadata(), SqlQuery{Limit: 10})
	require.NoError(t, err)
	f.service.Wait()

	final, err := f.jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSuccess, final.Status)
	assert.Equal(t, job.StepNone, final.Step)
	assert.Contains(t, final.ResultsURL, "query-results/execution-1.csv")
}

func TestQueryDatasetRecordsPredicateStats(t *testing.T) {
	f := newServiceFixture(t)

	q := SqlQuery{Filter: &FilterGroup{
		LogicOperator: "AND",
		Conditions: []FilterCondition{
			{Column: "item", Operator: "=", Value: "widget"},
			{Column: "item", Operator: "like", Value: "w%"},
		},
	}}
	_, err := f.service.QueryDataset(context.Background(), ordersMetadata(), q)
	require.NoError(t, err)

	top := f.stats.TopColumns("raw_sales_orders_1", 5)
	require.Len(t, top, 1)
	assert.Equal(t, "item", top[0].Column)
	assert.Equal(t, int64(2), top[0].Frequency)
	assert.Equal(t, 1, top[0].Operators["LIKE"])
}

func TestQueryLargeDatasetFailure(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.engine.Err = assert.AnError

	j, err := f.service.QueryLargeDataset(ctx, "subject-1", ordersMetadata(), SqlQuery{})
	require.NoError(t, err)
	f.service.Wait()

	final, err := f.jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, final.Status)
	assert.NotEmpty(t, final.Errors)
}
