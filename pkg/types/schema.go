// Package types defines the shared domain types for the rAPId catalogue:
// schemas, columns, permissions, dataset filters and tabular data chunks.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Layer is a coarse data-zone label partitioning datasets by pipeline stage.
type Layer string

const (
	LayerRaw   Layer = "RAW"
	LayerLayer Layer = "LAYER"

	// LayerAll is permission sugar for the union of all concrete layers.
	// It is never a valid dataset layer.
	LayerAll Layer = "ALL"
)

// ConcreteLayers lists every layer a dataset can actually live in.
var ConcreteLayers = []Layer{LayerRaw, LayerLayer}

// Valid reports whether l is a layer a dataset can be registered under.
func (l Layer) Valid() bool {
	for _, c := range ConcreteLayers {
		if l == c {
			return true
		}
	}
	return false
}

// Sensitivity classifies a dataset's access risk.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "PUBLIC"
	SensitivityPrivate   Sensitivity = "PRIVATE"
	SensitivityProtected Sensitivity = "PROTECTED"

	// SensitivityAll is permission sugar for the full sensitivity set.
	// It is never a valid dataset sensitivity.
	SensitivityAll Sensitivity = "ALL"
)

// Valid reports whether s is a sensitivity a dataset can be registered under.
func (s Sensitivity) Valid() bool {
	return s == SensitivityPublic || s == SensitivityPrivate || s == SensitivityProtected
}

// Action is the operation class a permission grants.
type Action string

const (
	ActionRead      Action = "READ"
	ActionWrite     Action = "WRITE"
	ActionUserAdmin Action = "USER_ADMIN"
	ActionDataAdmin Action = "DATA_ADMIN"
)

// DataType is the declared semantic type of a column.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeInt     DataType = "int"
	DataTypeBigInt  DataType = "bigint"
	DataTypeDouble  DataType = "double"
	DataTypeBoolean DataType = "boolean"
	DataTypeDate    DataType = "date"
	DataTypeObject  DataType = "object"
)

// Valid reports whether d is a recognised column data type.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeString, DataTypeInt, DataTypeBigInt, DataTypeDouble,
		DataTypeBoolean, DataTypeDate, DataTypeObject:
		return true
	}
	return false
}

// UpdateBehaviour controls what a new upload does to previously stored data.
type UpdateBehaviour string

const (
	UpdateAppend    UpdateBehaviour = "APPEND"
	UpdateOverwrite UpdateBehaviour = "OVERWRITE"
)

// Check is a named per-column validation rule with positional parameters,
// e.g. {Type: "in_range", Parameters: [0, 100]}.
type Check struct {
	Type       string        `json:"check_type" yaml:"check_type"`
	Parameters []interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// String renders the check in the canonical "type(p1, p2)" form used in
// validation error messages.
func (c Check) String() string {
	params := make([]string, len(c.Parameters))
	for i, p := range c.Parameters {
		switch v := p.(type) {
		case string:
			params[i] = fmt.Sprintf("'%s'", v)
		default:
			params[i] = fmt.Sprintf("%v", v)
		}
	}
	return fmt.Sprintf("%s(%s)", c.Type, strings.Join(params, ", "))
}

// Column declares a single column of a dataset schema.
type Column struct {
	Name string `json:"name" yaml:"name"`

	// DataType is one of string, int, bigint, double, boolean, date, object.
	DataType DataType `json:"data_type" yaml:"data_type"`

	// PartitionIndex orders this column within the partition path.
	// Nil means the column is not partitioned on.
	PartitionIndex *int `json:"partition_index" yaml:"partition_index"`

	// AllowNull permits null values. Partitioned columns must not allow null.
	AllowNull bool `json:"allow_null" yaml:"allow_null"`

	// Format is the strptime pattern for date columns, e.g. "%d/%m/%Y".
	// Mandatory iff DataType is date.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Unique requires all non-null values to be distinct.
	Unique bool `json:"unique,omitempty" yaml:"unique,omitempty"`

	// Checks are additional named validation rules run per value.
	Checks []Check `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// IsPartition reports whether the column participates in the partition path.
func (c Column) IsPartition() bool {
	return c.PartitionIndex != nil
}

// Owner identifies a person responsible for a dataset.
type Owner struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// SchemaMetadata identifies and describes one version of a dataset.
type SchemaMetadata struct {
	Layer           Layer             `json:"layer" yaml:"layer"`
	Domain          string            `json:"domain" yaml:"domain"`
	Dataset         string            `json:"dataset" yaml:"dataset"`
	Version         int               `json:"version" yaml:"version"`
	Sensitivity     Sensitivity       `json:"sensitivity" yaml:"sensitivity"`
	Description     string            `json:"description,omitempty" yaml:"description,omitempty"`
	Owners          []Owner           `json:"owners" yaml:"owners"`
	UpdateBehaviour UpdateBehaviour   `json:"update_behaviour" yaml:"update_behaviour"`
	KeyValueTags    map[string]string `json:"key_value_tags,omitempty" yaml:"key_value_tags,omitempty"`
	KeyOnlyTags     []string          `json:"key_only_tags,omitempty" yaml:"key_only_tags,omitempty"`
	IsLatestVersion bool              `json:"is_latest_version" yaml:"is_latest_version"`
}

// String returns the canonical "layer/domain/dataset/version" identity.
func (m SchemaMetadata) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", strings.ToLower(string(m.Layer)), m.Domain, m.Dataset, m.Version)
}

// DatasetLocation is the object-storage prefix holding the dataset's data.
func (m SchemaMetadata) DatasetLocation() string {
	return fmt.Sprintf("data/%s/%s/%s/%d", strings.ToLower(string(m.Layer)), m.Domain, m.Dataset, m.Version)
}

// RawDataLocation is the object-storage prefix holding unprocessed uploads.
func (m SchemaMetadata) RawDataLocation() string {
	return fmt.Sprintf("raw_data/%s/%s/%s/%d", strings.ToLower(string(m.Layer)), m.Domain, m.Dataset, m.Version)
}

// TableName is the catalogue table name for this dataset version.
func (m SchemaMetadata) TableName() string {
	return fmt.Sprintf("%s_%s_%s_%d", strings.ToLower(string(m.Layer)), m.Domain, m.Dataset, m.Version)
}

// Schema is the full declaration of a dataset version: identity plus an
// ordered list of column declarations.
type Schema struct {
	Metadata SchemaMetadata `json:"metadata" yaml:"metadata"`
	Columns  []Column       `json:"columns" yaml:"columns"`
}

// ColumnNames returns column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the declared column with the given name.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PartitionColumns returns the partitioned columns ordered by partition index.
func (s *Schema) PartitionColumns() []Column {
	var cols []Column
	for _, c := range s.Columns {
		if c.IsPartition() {
			cols = append(cols, c)
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		return *cols[i].PartitionIndex < *cols[j].PartitionIndex
	})
	return cols
}

// ValueColumns returns the non-partitioned columns in declaration order.
func (s *Schema) ValueColumns() []Column {
	var cols []Column
	for _, c := range s.Columns {
		if !c.IsPartition() {
			cols = append(cols, c)
		}
	}
	return cols
}
