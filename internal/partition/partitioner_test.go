package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapid-data/rapid/pkg/types"
)

func intPtr(i int) *int { return &i }

func partitionedSchema() *types.Schema {
	return &types.Schema{
		Metadata: types.SchemaMetadata{Layer: types.LayerRaw, Domain: "sales", Dataset: "orders", Version: 1},
		Columns: []types.Column{
			{Name: "year", DataType: types.DataTypeInt, PartitionIndex: intPtr(0)},
			{Name: "region", DataType: types.DataTypeString, PartitionIndex: intPtr(1)},
			{Name: "quantity", DataType: types.DataTypeInt, AllowNull: true},
			{Name: "sku", DataType: types.DataTypeString, AllowNull: true},
		},
	}
}

func TestSplitGroupsByPartitionKey(t *testing.T) {
	table := types.NewTable()
	table.AddSeries("year", []interface{}{2021, 2021, 2022, 2021})
	table.AddSeries("region", []interface{}{"emea", "apac", "emea", "emea"})
	table.AddSeries("quantity", []interface{}{int32(1), int32(2), int32(3), int32(4)})
	table.AddSeries("sku", []interface{}{"a", "b", "c", "d"})

	parts := Split(partitionedSchema(), table)
	require.Len(t, parts, 3)

	// Sorted by path.
	assert.Equal(t, "year=2021/region=apac", parts[0].Path)
	assert.Equal(t, "year=2021/region=emea", parts[1].Path)
	assert.Equal(t, "year=2022/region=emea", parts[2].Path)

	// Partition columns are dropped; value columns survive.
	assert.Equal(t, []string{"quantity", "sku"}, parts[1].Data.Columns())

	// Row arrival order inside a partition is preserved.
	assert.Equal(t, []interface{}{int32(1), int32(4)}, parts[1].Data.Series("quantity").Values)
	assert.Equal(t, []interface{}{"a", "d"}, parts[1].Data.Series("sku").Values)
	assert.Equal(t, 1, parts[0].Data.NumRows())
	assert.Equal(t, 1, parts[2].Data.NumRows())
}

func TestSplitRespectsPartitionIndexOrder(t *testing.T) {
	sc := partitionedSchema()
	// Invert the declared order: region first, then year.
	sc.Columns[0].PartitionIndex = intPtr(1)
	sc.Columns[1].PartitionIndex = intPtr(0)

	table := types.NewTable()
	table.AddSeries("year", []interface{}{2021})
	table.AddSeries("region", []interface{}{"emea"})
	table.AddSeries("quantity", []interface{}{int32(1)})
	table.AddSeries("sku", []interface{}{"a"})

	parts := Split(sc, table)
	require.Len(t, parts, 1)
	assert.Equal(t, "region=emea/year=2021", parts[0].Path)
}

func TestSplitWithoutPartitionColumns(t *testing.T) {
	sc := &types.Schema{
		Metadata: types.SchemaMetadata{Layer: types.LayerRaw, Domain: "sales", Dataset: "orders", Version: 1},
		Columns: []types.Column{
			{Name: "quantity", DataType: types.DataTypeInt, AllowNull: true},
		},
	}
	table := types.NewTable()
	table.AddSeries("quantity", []interface{}{int32(1), int32(2)})

	parts := Split(sc, table)
	require.Len(t, parts, 1)
	assert.Equal(t, "", parts[0].Path)
	assert.Equal(t, 2, parts[0].Data.NumRows())

	// The no-partition case hands back a copy, not the input table.
	parts[0].Data.Series("quantity").Values[0] = int32(99)
	assert.Equal(t, int32(1), table.Series("quantity").Values[0])
}

func TestSplitFormatsDatePartitionValues(t *testing.T) {
	sc := &types.Schema{
		Metadata: types.SchemaMetadata{Layer: types.LayerRaw, Domain: "sales", Dataset: "orders", Version: 1},
		Columns: []types.Column{
			{Name: "ordered_at", DataType: types.DataTypeDate, Format: "%d/%m/%Y", PartitionIndex: intPtr(0)},
			{Name: "quantity", DataType: types.DataTypeInt, AllowNull: true},
		},
	}
	table := types.NewTable()
	table.AddSeries("ordered_at", []interface{}{time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)})
	table.AddSeries("quantity", []interface{}{int32(7)})

	parts := Split(sc, table)
	require.Len(t, parts, 1)
	assert.Equal(t, "ordered_at=2021-02-01", parts[0].Path)
}
