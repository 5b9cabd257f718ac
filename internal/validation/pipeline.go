package validation

import (
	"fmt"
	"sort"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// stage is one column-wise validation pass. Stages may rewrite table values
// in place (coercion, date canonicalization) and return their diagnostics;
// the pipeline concatenates diagnostics across stages rather than failing
// fast.
type stage func(*types.Schema, *types.Table) []string

// stages run in strict order because later stages assume the invariants
// established by earlier ones.
var stages = []stage{
	coerceTypes,
	convertDateColumns,
	checkNullsAndUniqueness,
	checkPartitionSafety,
	runCustomChecks,
}

// Pipeline validates chunks of raw tabular data against one schema.
type Pipeline struct {
	schema *types.Schema
}

// New creates a validation pipeline for the given schema. The schema is
// assumed to have passed construction-time validation.
func New(schema *types.Schema) *Pipeline {
	return &Pipeline{schema: schema}
}

// BuildValidatedTable converts a raw chunk into a schema-conformant,
// type-coerced, partition-safe table.
//
// A chunk whose column set does not match the schema, or which has no data
// rows, is unprocessable: no column-wise validation is meaningful and an
// UnprocessableDataset error is returned. Otherwise every stage runs to
// completion and all diagnostics are aggregated into a single
// DatasetValidation error, ordered by stage and, within a stage, by column
// declaration order. The input table is never mutated.
func (p *Pipeline) BuildValidatedTable(raw *types.Table) (*types.Table, error) {
	t := raw.Copy()
	cleanHeaders(t)

	if err := p.checkColumnSet(raw, t); err != nil {
		return nil, err
	}
	if t.NumRows() == 0 {
		return nil, errors.NewUnprocessableDatasetError("Dataset has no rows, it cannot be processed")
	}

	var msgs []string
	for _, s := range stages {
		msgs = append(msgs, s(p.schema, t)...)
	}
	if len(msgs) > 0 {
		return nil, errors.NewDatasetValidationError(msgs)
	}

	return removeEmptyRows(t), nil
}

// cleanHeaders renames every column of t to its normalized heading.
func cleanHeaders(t *types.Table) {
	raw := t.Columns()
	cleaned := CleanHeadings(raw)
	for i, name := range raw {
		t.RenameColumn(name, cleaned[i])
	}
}

// checkColumnSet verifies the cleaned table's column names equal the declared
// schema columns as a multiset: every declared column present exactly once,
// nothing extra. Two raw headers cleaning to the same name count as a
// duplicate, not a match. The diagnostic lists the expected columns sorted
// and the received headers verbatim, in original order.
func (p *Pipeline) checkColumnSet(raw, cleaned *types.Table) error {
	expected := append([]string(nil), p.schema.ColumnNames()...)
	sort.Strings(expected)

	received := cleaned.Columns()
	if len(received) == len(expected) {
		counts := make(map[string]int, len(received))
		for _, name := range received {
			counts[name]++
		}
		match := true
		for _, name := range expected {
			if counts[name] != 1 {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return errors.NewUnprocessableDatasetError(fmt.Sprintf(
		"Expected columns: %v, received: %v", expected, raw.Columns()))
}
