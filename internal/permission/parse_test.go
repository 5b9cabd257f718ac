package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapid-data/rapid/pkg/types"
)

func TestParseValidPermissions(t *testing.T) {
	tests := []struct {
		id   string
		want types.PermissionItem
	}{
		{
			id:   "USER_ADMIN",
			want: types.PermissionItem{ID: "USER_ADMIN", Type: types.ActionUserAdmin},
		},
		{
			id:   "DATA_ADMIN",
			want: types.PermissionItem{ID: "DATA_ADMIN", Type: types.ActionDataAdmin},
		},
		{
			id: "READ_RAW_PUBLIC",
			want: types.PermissionItem{
				ID: "READ_RAW_PUBLIC", Type: types.ActionRead,
				Layer: types.LayerRaw, Sensitivity: types.SensitivityPublic,
			},
		},
		{
			id: "WRITE_ALL_PRIVATE",
			want: types.PermissionItem{
				ID: "WRITE_ALL_PRIVATE", Type: types.ActionWrite,
				Layer: types.LayerAll, Sensitivity: types.SensitivityPrivate,
			},
		},
		{
			id: "READ_LAYER_PROTECTED_FINANCE",
			want: types.PermissionItem{
				ID: "READ_LAYER_PROTECTED_FINANCE", Type: types.ActionRead,
				Layer: types.LayerLayer, Sensitivity: types.SensitivityProtected,
				Domain: "FINANCE",
			},
		},
		{
			// Protected domains may themselves contain underscores.
			id: "WRITE_RAW_PROTECTED_HUMAN_RESOURCES",
			want: types.PermissionItem{
				ID: "WRITE_RAW_PROTECTED_HUMAN_RESOURCES", Type: types.ActionWrite,
				Layer: types.LayerRaw, Sensitivity: types.SensitivityProtected,
				Domain: "HUMAN_RESOURCES",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := Parse(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejectsMalformedIDs(t *testing.T) {
	ids := []string{
		"",
		"READ",
		"READ_RAW",
		"DELETE_RAW_PUBLIC",
		"READ_STAGING_PUBLIC",
		"READ_RAW_SECRET",
		"READ_RAW_PUBLIC_FINANCE",
		"READ_RAW_PROTECTED",
		"read_raw_public",
	}
	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			_, err := Parse(id)
			require.Error(t, err)
		})
	}
}

func TestBuildID(t *testing.T) {
	assert.Equal(t, "READ_ALL_PUBLIC",
		BuildID(types.ActionRead, types.LayerAll, types.SensitivityPublic, ""))
	assert.Equal(t, "WRITE_RAW_PROTECTED_FINANCE",
		BuildID(types.ActionWrite, types.LayerRaw, types.SensitivityProtected, "finance"))
}

func TestExpandSensitivity(t *testing.T) {
	tests := []struct {
		in   types.Sensitivity
		want []types.Sensitivity
	}{
		{types.SensitivityAll, []types.Sensitivity{types.SensitivityPublic, types.SensitivityPrivate, types.SensitivityProtected}},
		{types.SensitivityPrivate, []types.Sensitivity{types.SensitivityPublic, types.SensitivityPrivate}},
		{types.SensitivityPublic, []types.Sensitivity{types.SensitivityPublic}},
		{types.SensitivityProtected, []types.Sensitivity{types.SensitivityProtected}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandSensitivity(tt.in), "expanding %s", tt.in)
	}
}

func TestExpandLayer(t *testing.T) {
	assert.Equal(t, []types.Layer{types.LayerRaw, types.LayerLayer}, ExpandLayer(types.LayerAll))
	assert.Equal(t, []types.Layer{types.LayerRaw}, ExpandLayer(types.LayerRaw))
	assert.Equal(t, []types.Layer{types.LayerLayer}, ExpandLayer(types.LayerLayer))
}
