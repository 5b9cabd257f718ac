// Package query compiles structured, tree-shaped filter specifications into
// injection-safe SQL fragments for the Athena query engine. No untrusted
// value is ever concatenated unquoted.
package query

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rapid-data/rapid/internal/errors"
)

// columnNameRegex constrains referenced column names, including dotted
// qualified names. Anything else is rejected before any SQL is produced.
var columnNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// operators that take no value.
var nullaryOperators = map[string]bool{
	"IS NULL":     true,
	"IS NOT NULL": true,
}

// operators that take exactly one value.
var binaryOperators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	">": true, ">=": true, "<": true, "<=": true,
	"LIKE": true,
}

// FilterCondition is a single column comparison.
type FilterCondition struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// ToSQL renders the condition. String values are single-quoted with internal
// quotes doubled; booleans render bare; numerics render unquoted; IN renders
// a parenthesized quoted list; IS NULL / IS NOT NULL forbid a value.
func (c FilterCondition) ToSQL() (string, error) {
	if err := ValidateColumnName(c.Column); err != nil {
		return "", err
	}
	op := strings.ToUpper(strings.TrimSpace(c.Operator))

	switch {
	case nullaryOperators[op]:
		if c.Value != nil {
			return "", errors.NewUserError(errors.CodeInvalidQuery,
				fmt.Sprintf("operator %s does not take a value", op))
		}
		return fmt.Sprintf("%s %s", c.Column, op), nil

	case op == "IN":
		values, ok := c.Value.([]interface{})
		if !ok || len(values) == 0 {
			return "", errors.NewUserError(errors.CodeInvalidQuery,
				"operator IN requires a non-empty list value")
		}
		quoted := make([]string, len(values))
		for i, v := range values {
			q, err := quoteValue(v)
			if err != nil {
				return "", err
			}
			quoted[i] = q
		}
		return fmt.Sprintf("%s IN (%s)", c.Column, strings.Join(quoted, ", ")), nil

	case binaryOperators[op]:
		if c.Value == nil {
			return "", errors.NewUserError(errors.CodeInvalidQuery,
				fmt.Sprintf("operator %s requires a value", op))
		}
		q, err := quoteValue(c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", c.Column, op, q), nil

	default:
		return "", errors.NewUserError(errors.CodeInvalidQuery,
			fmt.Sprintf("unsupported operator [%s]", c.Operator))
	}
}

// FilterGroup composes conditions and nested groups with one logic operator.
type FilterGroup struct {
	// LogicOperator joins the group's direct children. Required iff the
	// group has more than one direct child.
	LogicOperator string `json:"logic_operator,omitempty"`

	Conditions []FilterCondition `json:"conditions,omitempty"`
	Groups     []FilterGroup     `json:"groups,omitempty"`
}

// ToSQL renders the group. The top-level group is not parenthesized; nested
// groups are.
func (g FilterGroup) ToSQL() (string, error) {
	return g.toSQL(true)
}

func (g FilterGroup) toSQL(topLevel bool) (string, error) {
	children := len(g.Conditions) + len(g.Groups)
	if children == 0 {
		return "", errors.NewUserError(errors.CodeInvalidQuery, "filter group has no conditions")
	}

	op := strings.ToUpper(strings.TrimSpace(g.LogicOperator))
	if children > 1 && op != "AND" && op != "OR" {
		return "", errors.NewUserError(errors.CodeInvalidQuery,
			"filter group with multiple children must declare logic_operator AND or OR")
	}

	parts := make([]string, 0, children)
	for _, c := range g.Conditions {
		sql, err := c.ToSQL()
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	for _, sub := range g.Groups {
		sql, err := sub.toSQL(false)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}

	joined := strings.Join(parts, fmt.Sprintf(" %s ", op))
	if len(parts) == 1 {
		joined = parts[0]
	}
	if topLevel {
		return joined, nil
	}
	return fmt.Sprintf("(%s)", joined), nil
}

// EachCondition visits every condition in the group and its nested groups,
// depth first.
func (g FilterGroup) EachCondition(fn func(FilterCondition)) {
	for _, c := range g.Conditions {
		fn(c)
	}
	for _, sub := range g.Groups {
		sub.EachCondition(fn)
	}
}

// ValidateColumnName rejects any column reference that could smuggle SQL.
func ValidateColumnName(name string) error {
	if !columnNameRegex.MatchString(name) {
		return errors.NewUserError(errors.CodeInvalidQuery,
			fmt.Sprintf("invalid column name [%s]", name))
	}
	return nil
}

// quoteValue renders one literal. Strings are single-quoted with internal
// quotes doubled; unknown types are rejected rather than guessed at.
func quoteValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(val, "'", "''")), nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", val), nil
	case time.Time:
		return fmt.Sprintf("DATE '%s'", val.Format("2006-01-02")), nil
	default:
		return "", errors.NewUserError(errors.CodeInvalidQuery,
			fmt.Sprintf("unsupported filter value type %T", v))
	}
}
