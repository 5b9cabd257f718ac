package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/catalog"
	"github.com/rapid-data/rapid/internal/job"
	"github.com/rapid-data/rapid/internal/storage"
	"github.com/rapid-data/rapid/pkg/types"
)

func intPtr(i int) *int { return &i }

func uploadSchema() *types.Schema {
	return &types.Schema{
		Metadata: types.SchemaMetadata{
			Layer:           types.LayerRaw,
			Domain:          "sales",
			Dataset:         "orders",
			Version:         1,
			Sensitivity:     types.SensitivityPublic,
			UpdateBehaviour: types.UpdateAppend,
		},
		Columns: []types.Column{
			{Name: "year", DataType: types.DataTypeInt, PartitionIndex: intPtr(0)},
			{Name: "item", DataType: types.DataTypeString, AllowNull: true},
			{Name: "quantity", DataType: types.DataTypeInt, AllowNull: true},
		},
	}
}

type fixture struct {
	processor *Processor
	jobs      *job.Service
	store     *storage.LocalStorage
	tables    *catalog.MemoryTableCatalog
}

func newFixture(t *testing.T) *fixture {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	jobs := job.NewService(job.NewMemoryStore(), time.Hour, zap.NewNop())
	tables := catalog.NewMemoryTableCatalog()
	p := NewProcessor(jobs, store, tables, Config{MaxConcurrentUploads: 2, ChunkRows: 2}, zap.NewNop())

	return &fixture{processor: p, jobs: jobs, store: store, tables: tables}
}

func writeUpload(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestProcessorUploadSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := uploadSchema()

	path := writeUpload(t, "year,item,quantity\n2023,widget,3\n2023,gadget,7\n2024,widget,1\n")

	j, err := f.processor.Submit(ctx, "subject-1", sc, "orders.csv", path)
	require.NoError(t, err)
	f.processor.Wait()

	final, err := f.jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSuccess, final.Status)
	assert.Equal(t, job.StepNone, final.Step)
	assert.Empty(t, final.Errors)

	// Raw file retained, partitioned data written, crawler run once.
	names, err := f.store.ListRawFiles(ctx, sc.Metadata)
	require.NoError(t, err)
	assert.Len(t, names, 1)

	size, err := f.store.FolderSize(ctx, sc.Metadata.DatasetLocation())
	require.NoError(t, err)
	assert.Positive(t, size)

	assert.Equal(t, 1, f.tables.CrawlerRuns(sc.Metadata))

	// The local temp file is cleaned up.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessorValidationFailureLeavesNoData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := uploadSchema()

	path := writeUpload(t, "year,item,quantity\n2023,widget,not_a_number\n")

	j, err := f.processor.Submit(ctx, "subject-1", sc, "orders.csv", path)
	require.NoError(t, err)
	f.processor.Wait()

	final, err := f.jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, final.Status)
	assert.Equal(t, job.StepValidation, final.Step)
	assert.Contains(t, final.Errors,
		"Column [quantity] has an incorrect data type. Expected int, received string")

	names, err := f.store.ListRawFiles(ctx, sc.Metadata)
	require.NoError(t, err)
	assert.Empty(t, names)

	size, err := f.store.FolderSize(ctx, sc.Metadata.DatasetLocation())
	require.NoError(t, err)
	assert.Zero(t, size)

	assert.Zero(t, f.tables.CrawlerRuns(sc.Metadata))
}

func TestProcessorAccumulatesErrorsAcrossChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := uploadSchema()

	// Chunk size 2: the bad rows land in different chunks.
	path := writeUpload(t, "year,item,quantity\n2023,widget,bad\n2023,gadget,1\n2024,widget,worse\n")

	j, err := f.processor.Submit(ctx, "subject-1", sc, "orders.csv", path)
	require.NoError(t, err)
	f.processor.Wait()

	final, err := f.jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, final.Status)
	assert.Len(t, final.Errors, 2)
}

func TestProcessorOverwriteReplacesPreviousData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := uploadSchema()
	sc.Metadata.UpdateBehaviour = types.UpdateOverwrite

	first := writeUpload(t, "year,item,quantity\n2023,widget,3\n")
	j1, err := f.processor.Submit(ctx, "subject-1", sc, "orders.csv", first)
	require.NoError(t, err)
	f.processor.Wait()

	second := writeUpload(t, "year,item,quantity\n2024,gadget,5\n")
	j2, err := f.processor.Submit(ctx, "subject-1", sc, "orders.csv", second)
	require.NoError(t, err)
	f.processor.Wait()

	for _, id := range []string{j1.ID, j2.ID} {
		final, err := f.jobs.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, job.StatusSuccess, final.Status)
	}

	// Only the second upload's raw file survives the overwrite.
	names, err := f.store.ListRawFiles(ctx, sc.Metadata)
	require.NoError(t, err)
	assert.Equal(t, []string{j2.ID + ".csv"}, names)
}

func TestProcessorUnsupportedExtension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := uploadSchema()

	path := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	j, err := f.processor.Submit(ctx, "subject-1", sc, "orders.xlsx", path)
	require.NoError(t, err)
	f.processor.Wait()

	final, err := f.jobs.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, final.Status)
}
