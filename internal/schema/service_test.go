package schema

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/catalog"
	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/internal/storage"
	"github.com/rapid-data/rapid/pkg/types"
)

func newServiceFixture(t *testing.T) (*Service, *MemoryCatalog, *storage.LocalStorage, *catalog.MemoryTableCatalog) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	schemas := NewMemoryCatalog()
	tables := catalog.NewMemoryTableCatalog()
	return NewService(schemas, store, tables, zap.NewNop()), schemas, store, tables
}

func TestUploadSchemaAssignsFirstVersion(t *testing.T) {
	svc, _, _, tables := newServiceFixture(t)
	ctx := context.Background()

	stored, err := svc.UploadSchema(ctx, validSchema())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Metadata.Version)
	assert.True(t, stored.Metadata.IsLatestVersion)
	assert.True(t, tables.HasTable(stored.Metadata.TableName()))
}

func TestUploadSchemaConflictsWithExistingDataset(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)
	ctx := context.Background()

	_, err := svc.UploadSchema(ctx, validSchema())
	require.NoError(t, err)

	_, err = svc.UploadSchema(ctx, validSchema())
	require.Error(t, err)
	var rerr *errors.RapidError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 409, rerr.HTTPStatus())
}

func TestUploadSchemaRejectsInvalid(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)

	sc := validSchema()
	sc.Metadata.Domain = "Sales"
	_, err := svc.UploadSchema(context.Background(), sc)
	require.Error(t, err)
	assert.NotEmpty(t, errors.ValidationMessages(err))
}

func TestUpdateSchemaCutsNewVersionAndDeprecatesPrevious(t *testing.T) {
	svc, schemas, _, tables := newServiceFixture(t)
	ctx := context.Background()

	first, err := svc.UploadSchema(ctx, validSchema())
	require.NoError(t, err)

	updated := validSchema()
	updated.Columns = append(updated.Columns, types.Column{
		Name: "discount", DataType: types.DataTypeDouble, AllowNull: true,
	})
	second, err := svc.UpdateSchema(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, 2, second.Metadata.Version)
	assert.True(t, second.Metadata.IsLatestVersion)
	assert.True(t, tables.HasTable(second.Metadata.TableName()))

	prev, err := schemas.GetSchema(ctx, first.Metadata)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.False(t, prev.Metadata.IsLatestVersion)

	latest, err := svc.GetLatestSchema(ctx, types.LayerRaw, "sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Metadata.Version)
}

func TestUpdateSchemaUnknownDataset(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)

	_, err := svc.UpdateSchema(context.Background(), validSchema())
	require.Error(t, err)
	var rerr *errors.RapidError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errors.CodeSchemaNotFound, rerr.Code)
}

func TestDeleteSchemaCascades(t *testing.T) {
	svc, schemas, store, tables := newServiceFixture(t)
	ctx := context.Background()

	stored, err := svc.UploadSchema(ctx, validSchema())
	require.NoError(t, err)
	require.NoError(t, store.UploadRawData(ctx, stored.Metadata, "job-1.csv", bytes.NewReader([]byte("region\nx\n"))))

	require.NoError(t, svc.DeleteSchema(ctx, stored.Metadata))

	assert.False(t, tables.HasTable(stored.Metadata.TableName()))

	gone, err := schemas.GetSchema(ctx, stored.Metadata)
	require.NoError(t, err)
	assert.Nil(t, gone)

	files, err := store.ListRawFiles(ctx, stored.Metadata)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDatasetInfoReportsStoredFiles(t *testing.T) {
	svc, _, store, _ := newServiceFixture(t)
	ctx := context.Background()

	stored, err := svc.UploadSchema(ctx, validSchema())
	require.NoError(t, err)

	info, err := svc.DatasetInfo(ctx, stored.Metadata)
	require.NoError(t, err)
	assert.Equal(t, stored.Metadata, info.Schema.Metadata)
	assert.Empty(t, info.RawFiles)
	assert.Zero(t, info.DataSizeBytes)
	assert.Nil(t, info.LastUpdated)

	require.NoError(t, store.UploadRawData(ctx, stored.Metadata, "job-1.csv", bytes.NewReader([]byte("region\nx\n"))))
	require.NoError(t, store.UploadPartitionedData(ctx, stored.Metadata, "region=north", "chunk-0.parquet", []byte("pq")))

	info, err = svc.DatasetInfo(ctx, stored.Metadata)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1.csv"}, info.RawFiles)
	assert.Equal(t, int64(2), info.DataSizeBytes)
	require.NotNil(t, info.LastUpdated)
	assert.False(t, info.LastUpdated.IsZero())
}

func TestDeleteSchemaUnknownDataset(t *testing.T) {
	svc, _, _, _ := newServiceFixture(t)

	err := svc.DeleteSchema(context.Background(), types.SchemaMetadata{
		Layer: types.LayerRaw, Domain: "sales", Dataset: "ghost", Version: 1,
	})
	require.Error(t, err)
	var rerr *errors.RapidError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errors.CodeSchemaNotFound, rerr.Code)
}
