package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/internal/schema"
	"github.com/rapid-data/rapid/pkg/types"
)

func grant(t *testing.T, id string) types.PermissionItem {
	t.Helper()
	p, err := Parse(id)
	require.NoError(t, err)
	return p
}

func meta(layer types.Layer, domain, dataset string, sensitivity types.Sensitivity) types.SchemaMetadata {
	return types.SchemaMetadata{
		Layer:       layer,
		Domain:      domain,
		Dataset:     dataset,
		Version:     1,
		Sensitivity: sensitivity,
	}
}

func TestOverlapsWith(t *testing.T) {
	tests := []struct {
		name     string
		grant    string
		metadata types.SchemaMetadata
		want     bool
	}{
		{
			name:     "exact layer and sensitivity",
			grant:    "READ_RAW_PUBLIC",
			metadata: meta(types.LayerRaw, "sales", "orders", types.SensitivityPublic),
			want:     true,
		},
		{
			name:     "ALL layer covers both concrete layers",
			grant:    "READ_ALL_PUBLIC",
			metadata: meta(types.LayerLayer, "sales", "orders", types.SensitivityPublic),
			want:     true,
		},
		{
			name:     "PRIVATE grant covers PUBLIC dataset",
			grant:    "READ_RAW_PRIVATE",
			metadata: meta(types.LayerRaw, "sales", "orders", types.SensitivityPublic),
			want:     true,
		},
		{
			name:     "PUBLIC grant does not cover PRIVATE dataset",
			grant:    "READ_RAW_PUBLIC",
			metadata: meta(types.LayerRaw, "sales", "orders", types.SensitivityPrivate),
			want:     false,
		},
		{
			name:     "ALL sensitivity does not cover PROTECTED dataset",
			grant:    "READ_RAW_ALL",
			metadata: meta(types.LayerRaw, "finance", "ledger", types.SensitivityProtected),
			want:     false,
		},
		{
			name:     "protected grant matches its own domain case-insensitively",
			grant:    "READ_RAW_PROTECTED_FINANCE",
			metadata: meta(types.LayerRaw, "finance", "ledger", types.SensitivityProtected),
			want:     true,
		},
		{
			name:     "protected grant does not cross domains",
			grant:    "READ_RAW_PROTECTED_FINANCE",
			metadata: meta(types.LayerRaw, "hr", "salaries", types.SensitivityProtected),
			want:     false,
		},
		{
			name:     "protected grant still requires a matching layer",
			grant:    "READ_LAYER_PROTECTED_FINANCE",
			metadata: meta(types.LayerRaw, "finance", "ledger", types.SensitivityProtected),
			want:     false,
		},
		{
			name:     "wrong layer",
			grant:    "READ_LAYER_PUBLIC",
			metadata: meta(types.LayerRaw, "sales", "orders", types.SensitivityPublic),
			want:     false,
		},
		{
			name:     "admin grants never authorize dataset access",
			grant:    "DATA_ADMIN",
			metadata: meta(types.LayerRaw, "sales", "orders", types.SensitivityPublic),
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverlapsWith(tt.metadata, grant(t, tt.grant)))
		})
	}
}

func newEvaluatorFixture(t *testing.T) (*Evaluator, *MemoryStore, *schema.MemoryCatalog) {
	t.Helper()
	store := NewMemoryStore()
	catalog := schema.NewMemoryCatalog()
	return NewEvaluator(store, catalog, zap.NewNop()), store, catalog
}

func storeSchema(t *testing.T, catalog *schema.MemoryCatalog, m types.SchemaMetadata) {
	t.Helper()
	m.IsLatestVersion = true
	require.NoError(t, catalog.StoreSchema(context.Background(), &types.Schema{Metadata: m}))
}

func TestFetchDatasetsDeduplicatesAcrossGrants(t *testing.T) {
	eval, store, catalog := newEvaluatorFixture(t)
	ctx := context.Background()

	storeSchema(t, catalog, meta(types.LayerRaw, "sales", "orders", types.SensitivityPublic))
	storeSchema(t, catalog, meta(types.LayerRaw, "sales", "returns", types.SensitivityPrivate))
	storeSchema(t, catalog, meta(types.LayerLayer, "marketing", "campaigns", types.SensitivityPublic))

	// Both grants match the public raw dataset; it must appear once.
	store.SetSubject("svc-analytics", []string{"READ_RAW_PRIVATE", "READ_ALL_PUBLIC"})

	out, err := eval.FetchDatasets(ctx, "svc-analytics", types.ActionRead, nil, nil)
	require.NoError(t, err)

	names := make([]string, len(out))
	for i, m := range out {
		names[i] = m.Domain + "/" + m.Dataset
	}
	assert.Equal(t, []string{"marketing/campaigns", "sales/orders", "sales/returns"}, names)
}

func TestFetchDatasetsIgnoresGrantsOfOtherActions(t *testing.T) {
	eval, store, catalog := newEvaluatorFixture(t)
	ctx := context.Background()

	storeSchema(t, catalog, meta(types.LayerRaw, "sales", "orders", types.SensitivityPublic))
	store.SetSubject("svc-writer", []string{"WRITE_RAW_PUBLIC"})

	out, err := eval.FetchDatasets(ctx, "svc-writer", types.ActionRead, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFetchDatasetsAppliesTagFilters(t *testing.T) {
	eval, store, catalog := newEvaluatorFixture(t)
	ctx := context.Background()

	tagged := meta(types.LayerRaw, "sales", "orders", types.SensitivityPublic)
	tagged.KeyValueTags = map[string]string{"team": "growth"}
	storeSchema(t, catalog, tagged)
	storeSchema(t, catalog, meta(types.LayerRaw, "sales", "returns", types.SensitivityPublic))

	store.SetSubject("svc-analytics", []string{"READ_ALL_ALL"})

	out, err := eval.FetchDatasets(ctx, "svc-analytics", types.ActionRead, map[string]string{"team": "growth"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "orders", out[0].Dataset)
}

func TestCanAccessDataset(t *testing.T) {
	eval, store, catalog := newEvaluatorFixture(t)
	ctx := context.Background()

	m := meta(types.LayerRaw, "sales", "orders", types.SensitivityPrivate)
	storeSchema(t, catalog, m)
	store.SetSubject("svc-reader", []string{"READ_RAW_PRIVATE"})
	store.SetSubject("svc-public", []string{"READ_RAW_PUBLIC"})

	assert.NoError(t, eval.CanAccessDataset(ctx, "svc-reader", []types.Action{types.ActionRead}, m))

	err := eval.CanAccessDataset(ctx, "svc-public", []types.Action{types.ActionRead}, m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorised")

	// READ alone is not enough when WRITE is also required.
	err = eval.CanAccessDataset(ctx, "svc-reader", []types.Action{types.ActionRead, types.ActionWrite}, m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRITE")
}

func TestCanAccessDatasetUnknownSchema(t *testing.T) {
	eval, store, _ := newEvaluatorFixture(t)
	store.SetSubject("svc-reader", []string{"READ_ALL_ALL"})

	err := eval.CanAccessDataset(context.Background(), "svc-reader",
		[]types.Action{types.ActionRead}, meta(types.LayerRaw, "sales", "missing", types.SensitivityPublic))
	require.Error(t, err)

	var rerr *errors.RapidError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errors.CodeSchemaNotFound, rerr.Code)
}

func TestCheckAdminPermission(t *testing.T) {
	eval, store, _ := newEvaluatorFixture(t)
	ctx := context.Background()

	store.SetSubject("svc-admin", []string{"USER_ADMIN", "READ_ALL_PUBLIC"})
	store.SetSubject("svc-reader", []string{"READ_ALL_PUBLIC"})

	assert.NoError(t, eval.CheckAdminPermission(ctx, "svc-admin", types.ActionUserAdmin))
	assert.Error(t, eval.CheckAdminPermission(ctx, "svc-admin", types.ActionDataAdmin))
	assert.Error(t, eval.CheckAdminPermission(ctx, "svc-reader", types.ActionUserAdmin))
}

func TestSubjectGrantsSkipsMalformedIDs(t *testing.T) {
	eval, store, _ := newEvaluatorFixture(t)
	store.SetSubject("svc-mixed", []string{"READ_RAW_PUBLIC", "NOT_A_PERMISSION"})

	grants, err := eval.ListSubjectPermissions(context.Background(), "svc-mixed")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "READ_RAW_PUBLIC", grants[0].ID)
}
