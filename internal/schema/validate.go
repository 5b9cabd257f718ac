package schema

import (
	"fmt"
	"regexp"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

var (
	// nameRegex constrains domain and dataset names: lowercase alphabetic
	// start, then lowercase alphanumerics and underscores.
	nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	// columnNameRegex constrains cleaned column headings.
	columnNameRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

	// generatedHeadingRegex matches headings synthesised for unnamed columns;
	// these indicate a malformed source file, not a real column.
	generatedHeadingRegex = regexp.MustCompile(`^unnamed_[0-9]+$`)
)

// ValidateSchema validates a schema declaration against every structural
// invariant. It is the single construction-time gate: code downstream of a
// stored schema may assume all invariants hold.
func ValidateSchema(s *types.Schema) error {
	m := s.Metadata

	if !m.Layer.Valid() {
		return errors.NewUserError(errors.CodeInvalidSchema,
			fmt.Sprintf("invalid layer [%s]", m.Layer))
	}
	if !nameRegex.MatchString(m.Domain) {
		return errors.NewUserError(errors.CodeInvalidSchema,
			fmt.Sprintf("invalid domain name [%s]: must start with a letter and contain only lowercase letters, digits and underscores", m.Domain))
	}
	if !nameRegex.MatchString(m.Dataset) {
		return errors.NewUserError(errors.CodeInvalidSchema,
			fmt.Sprintf("invalid dataset name [%s]: must start with a letter and contain only lowercase letters, digits and underscores", m.Dataset))
	}
	if !m.Sensitivity.Valid() {
		return errors.NewUserError(errors.CodeInvalidSchema,
			fmt.Sprintf("invalid sensitivity [%s]", m.Sensitivity))
	}
	if m.UpdateBehaviour != types.UpdateAppend && m.UpdateBehaviour != types.UpdateOverwrite {
		return errors.NewUserError(errors.CodeInvalidSchema,
			fmt.Sprintf("invalid update behaviour [%s]", m.UpdateBehaviour))
	}
	if err := validateOwners(m.Owners); err != nil {
		return err
	}

	if len(s.Columns) == 0 {
		return errors.NewUserError(errors.CodeInvalidSchema, "schema must declare at least one column")
	}
	if err := validateColumns(s.Columns); err != nil {
		return err
	}
	return validatePartitions(s.Columns)
}

func validateOwners(owners []types.Owner) error {
	if len(owners) == 0 {
		return errors.NewUserError(errors.CodeInvalidSchema, "schema must declare at least one owner")
	}
	for _, o := range owners {
		if o.Email == "" || o.Email == "change_me@email.com" {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("owner [%s] must declare a real email address", o.Name))
		}
	}
	return nil
}

func validateColumns(columns []types.Column) error {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return errors.NewUserError(errors.CodeInvalidSchema, "column names must not be empty")
		}
		if !columnNameRegex.MatchString(c.Name) {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("invalid column name [%s]: must contain only lowercase letters, digits and underscores", c.Name))
		}
		if generatedHeadingRegex.MatchString(c.Name) {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("column name [%s] looks like a generated heading for an unnamed column", c.Name))
		}
		if seen[c.Name] {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("duplicate column name [%s]", c.Name))
		}
		seen[c.Name] = true

		if !c.DataType.Valid() {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("column [%s] has invalid data type [%s]", c.Name, c.DataType))
		}
		if c.DataType == types.DataTypeDate {
			if c.Format == "" {
				return errors.NewUserError(errors.CodeInvalidSchema,
					fmt.Sprintf("date column [%s] must declare a format", c.Name))
			}
			if !IsAcceptedDateFormat(c.Format) {
				return errors.NewUserError(errors.CodeInvalidSchema,
					fmt.Sprintf("date column [%s] declares unaccepted format [%s]", c.Name, c.Format))
			}
		} else if c.Format != "" {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("column [%s] declares a format but is not a date column", c.Name))
		}
	}
	return nil
}

// validatePartitions enforces that partition indexes are unique, non-negative,
// contiguous from zero, strictly fewer than the column count, and that every
// partitioned column is non-nullable.
func validatePartitions(columns []types.Column) error {
	indexes := make(map[int]string)
	count := 0
	for _, c := range columns {
		if !c.IsPartition() {
			continue
		}
		idx := *c.PartitionIndex
		if idx < 0 {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("column [%s] has negative partition index %d", c.Name, idx))
		}
		if other, dup := indexes[idx]; dup {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("columns [%s] and [%s] share partition index %d", other, c.Name, idx))
		}
		if c.AllowNull {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("partition column [%s] must not allow null values", c.Name))
		}
		indexes[idx] = c.Name
		count++
	}
	if count == 0 {
		return nil
	}
	if count >= len(columns) {
		return errors.NewUserError(errors.CodeInvalidSchema,
			"at least one column must remain unpartitioned")
	}
	for i := 0; i < count; i++ {
		if _, ok := indexes[i]; !ok {
			return errors.NewUserError(errors.CodeInvalidSchema,
				fmt.Sprintf("partition indexes must be contiguous from zero, missing index %d", i))
		}
	}
	return nil
}
