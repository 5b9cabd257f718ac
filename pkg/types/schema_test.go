package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func TestSchemaMetadataLocations(t *testing.T) {
	m := SchemaMetadata{Layer: LayerRaw, Domain: "sales", Dataset: "orders", Version: 2}

	assert.Equal(t, "raw/sales/orders/2", m.String())
	assert.Equal(t, "data/raw/sales/orders/2", m.DatasetLocation())
	assert.Equal(t, "raw_data/raw/sales/orders/2", m.RawDataLocation())
	assert.Equal(t, "raw_sales_orders_2", m.TableName())
}

func TestCheckString(t *testing.T) {
	tests := []struct {
		check Check
		want  string
	}{
		{Check{Type: "in_range", Parameters: []interface{}{0, 100}}, "in_range(0, 100)"},
		{Check{Type: "is_in", Parameters: []interface{}{"emea", "apac"}}, "is_in('emea', 'apac')"},
		{Check{Type: "not_blank"}, "not_blank()"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.check.String())
	}
}

func TestPartitionColumnsOrderedByIndex(t *testing.T) {
	s := &Schema{Columns: []Column{
		{Name: "region", DataType: DataTypeString, PartitionIndex: intPtr(1)},
		{Name: "quantity", DataType: DataTypeInt},
		{Name: "year", DataType: DataTypeInt, PartitionIndex: intPtr(0)},
	}}

	parts := s.PartitionColumns()
	assert.Equal(t, []string{"year", "region"}, []string{parts[0].Name, parts[1].Name})

	values := s.ValueColumns()
	assert.Len(t, values, 1)
	assert.Equal(t, "quantity", values[0].Name)
}

func TestDatasetFiltersMatches(t *testing.T) {
	meta := SchemaMetadata{
		Layer:        LayerRaw,
		Domain:       "sales",
		Dataset:      "orders",
		Sensitivity:  SensitivityPrivate,
		KeyValueTags: map[string]string{"team": "growth"},
		KeyOnlyTags:  []string{"pii"},
	}

	tests := []struct {
		name    string
		filters DatasetFilters
		want    bool
	}{
		{"empty filters match all", DatasetFilters{}, true},
		{"matching layer and sensitivity", DatasetFilters{Layer: []Layer{LayerRaw}, Sensitivity: []Sensitivity{SensitivityPrivate}}, true},
		{"wrong layer", DatasetFilters{Layer: []Layer{LayerLayer}}, false},
		{"wrong sensitivity", DatasetFilters{Sensitivity: []Sensitivity{SensitivityPublic}}, false},
		{"domain exact match", DatasetFilters{Domain: "sales"}, true},
		{"domain mismatch", DatasetFilters{Domain: "marketing"}, false},
		{"key-value tag match", DatasetFilters{KeyValueTags: map[string]string{"team": "growth"}}, true},
		{"key-value tag mismatch", DatasetFilters{KeyValueTags: map[string]string{"team": "platform"}}, false},
		{"key-only tag present", DatasetFilters{KeyOnlyTags: []string{"pii"}}, true},
		{"key-only tag missing", DatasetFilters{KeyOnlyTags: []string{"gdpr"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.Matches(meta))
		})
	}
}

func TestWithTagsDoesNotMutateReceiver(t *testing.T) {
	base := DatasetFilters{Layer: []Layer{LayerRaw}}
	merged := base.WithTags(map[string]string{"team": "growth"}, []string{"pii"})

	assert.Nil(t, base.KeyValueTags)
	assert.Nil(t, base.KeyOnlyTags)
	assert.Equal(t, "growth", merged.KeyValueTags["team"])
	assert.Equal(t, []string{"pii"}, merged.KeyOnlyTags)
}
