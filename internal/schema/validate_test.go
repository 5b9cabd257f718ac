package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapid-data/rapid/pkg/types"
)

func intPtr(i int) *int { return &i }

func validSchema() *types.Schema {
	return &types.Schema{
		Metadata: types.SchemaMetadata{
			Layer:           types.LayerRaw,
			Domain:          "sales",
			Dataset:         "orders",
			Version:         1,
			Sensitivity:     types.SensitivityPublic,
			UpdateBehaviour: types.UpdateAppend,
			Owners:          []types.Owner{{Name: "sales team", Email: "sales@example.com"}},
		},
		Columns: []types.Column{
			{Name: "region", DataType: types.DataTypeString, PartitionIndex: intPtr(0)},
			{Name: "quantity", DataType: types.DataTypeInt, AllowNull: true},
			{Name: "ordered_at", DataType: types.DataTypeDate, Format: "%Y-%m-%d", AllowNull: true},
		},
	}
}

func TestValidateSchemaAcceptsValid(t *testing.T) {
	require.NoError(t, ValidateSchema(validSchema()))
}

func TestValidateSchemaRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.Schema)
		wantMsg string
	}{
		{
			"uppercase domain",
			func(s *types.Schema) { s.Metadata.Domain = "Sales" },
			"invalid domain name",
		},
		{
			"dataset starting with digit",
			func(s *types.Schema) { s.Metadata.Dataset = "1orders" },
			"invalid dataset name",
		},
		{
			"sensitivity ALL is permission sugar only",
			func(s *types.Schema) { s.Metadata.Sensitivity = types.SensitivityAll },
			"invalid sensitivity",
		},
		{
			"missing update behaviour",
			func(s *types.Schema) { s.Metadata.UpdateBehaviour = "" },
			"invalid update behaviour",
		},
		{
			"no owners",
			func(s *types.Schema) { s.Metadata.Owners = nil },
			"at least one owner",
		},
		{
			"placeholder owner email",
			func(s *types.Schema) { s.Metadata.Owners[0].Email = "change_me@email.com" },
			"real email address",
		},
		{
			"no columns",
			func(s *types.Schema) { s.Columns = nil },
			"at least one column",
		},
		{
			"uppercase column name",
			func(s *types.Schema) { s.Columns[1].Name = "Quantity" },
			"invalid column name",
		},
		{
			"generated heading as column name",
			func(s *types.Schema) { s.Columns[1].Name = "unnamed_2" },
			"generated heading",
		},
		{
			"duplicate column names",
			func(s *types.Schema) { s.Columns[1].Name = "region" },
			"duplicate column name",
		},
		{
			"unknown data type",
			func(s *types.Schema) { s.Columns[1].DataType = "float" },
			"invalid data type",
		},
		{
			"date without format",
			func(s *types.Schema) { s.Columns[2].Format = "" },
			"must declare a format",
		},
		{
			"date with unaccepted format",
			func(s *types.Schema) { s.Columns[2].Format = "%Y %m %d" },
			"unaccepted format",
		},
		{
			"format on non-date column",
			func(s *types.Schema) { s.Columns[1].Format = "%Y-%m-%d" },
			"not a date column",
		},
		{
			"negative partition index",
			func(s *types.Schema) { s.Columns[0].PartitionIndex = intPtr(-1) },
			"negative partition index",
		},
		{
			"duplicate partition index",
			func(s *types.Schema) { s.Columns[1].PartitionIndex = intPtr(0) },
			"share partition index",
		},
		{
			"nullable partition column",
			func(s *types.Schema) { s.Columns[0].AllowNull = true },
			"must not allow null",
		},
		{
			"non-contiguous partition indexes",
			func(s *types.Schema) { s.Columns[0].PartitionIndex = intPtr(1) },
			"contiguous from zero",
		},
		{
			"every column partitioned",
			func(s *types.Schema) {
				s.Columns[1].PartitionIndex = intPtr(1)
				s.Columns[1].AllowNull = false
				s.Columns[2].PartitionIndex = intPtr(2)
				s.Columns[2].AllowNull = false
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := validSchema()
			tt.mutate(sc)
			err := ValidateSchema(sc)
			require.Error(t, err)
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}
