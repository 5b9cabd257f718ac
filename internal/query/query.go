package query

import (
	"fmt"
	"strings"

	"github.com/rapid-data/rapid/internal/errors"
)

// aggregateFunctions whitelists the functions allowed in HAVING conditions.
var aggregateFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
}

// AggregationCondition is one HAVING predicate over an aggregate of a column.
type AggregationCondition struct {
	Function string      `json:"function"`
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// ToSQL renders the aggregation predicate, e.g. "sum(amount) > 100".
func (a AggregationCondition) ToSQL() (string, error) {
	fn := strings.ToLower(strings.TrimSpace(a.Function))
	if !aggregateFunctions[fn] {
		return "", errors.NewUserError(errors.CodeInvalidQuery,
			fmt.Sprintf("unsupported aggregate function [%s]", a.Function))
	}
	column := a.Column
	// count(*) is the only aggregate allowed over the bare star.
	if column != "*" || fn != "count" {
		if err := ValidateColumnName(column); err != nil {
			return "", err
		}
	}
	op := strings.ToUpper(strings.TrimSpace(a.Operator))
	if !binaryOperators[op] {
		return "", errors.NewUserError(errors.CodeInvalidQuery,
			fmt.Sprintf("unsupported operator [%s] in aggregation condition", a.Operator))
	}
	if a.Value == nil {
		return "", errors.NewUserError(errors.CodeInvalidQuery,
			fmt.Sprintf("operator %s requires a value", op))
	}
	quoted, err := quoteValue(a.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s) %s %s", fn, column, op, quoted), nil
}

// OrderByClause orders the result by one column. Direction defaults to ASC.
type OrderByClause struct {
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"`
}

// SqlQuery is the constrained query specification the service compiles to
// SQL. It is not a general SQL surface: every identifier is validated and
// every literal quoted.
type SqlQuery struct {
	SelectColumns         []string               `json:"select_columns,omitempty"`
	Filter                *FilterGroup           `json:"filter,omitempty"`
	GroupByColumns        []string               `json:"group_by_columns,omitempty"`
	AggregationConditions []AggregationCondition `json:"aggregation_conditions,omitempty"`
	OrderBy               []OrderByClause        `json:"order_by,omitempty"`
	Limit                 int                    `json:"limit,omitempty"`
}

// ToSQL assembles the full statement for a table, omitting each clause whose
// input is empty.
func (q SqlQuery) ToSQL(table string) (string, error) {
	if err := ValidateColumnName(table); err != nil {
		return "", err
	}

	var b strings.Builder
	columns := "*"
	if len(q.SelectColumns) > 0 {
		for _, c := range q.SelectColumns {
			if err := ValidateColumnName(c); err != nil {
				return "", err
			}
		}
		columns = strings.Join(q.SelectColumns, ", ")
	}
	fmt.Fprintf(&b, "SELECT %s FROM %s", columns, table)

	if q.Filter != nil {
		where, err := q.Filter.ToSQL()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " WHERE %s", where)
	}

	if len(q.GroupByColumns) > 0 {
		for _, c := range q.GroupByColumns {
			if err := ValidateColumnName(c); err != nil {
				return "", err
			}
		}
		fmt.Fprintf(&b, " GROUP BY %s", strings.Join(q.GroupByColumns, ", "))
	}

	if len(q.AggregationConditions) > 0 {
		having := make([]string, len(q.AggregationConditions))
		for i, a := range q.AggregationConditions {
			sql, err := a.ToSQL()
			if err != nil {
				return "", err
			}
			having[i] = sql
		}
		fmt.Fprintf(&b, " HAVING %s", strings.Join(having, " AND "))
	}

	orderBy, err := renderOrderBy(q.OrderBy)
	if err != nil {
		return "", err
	}
	if orderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", orderBy)
	}

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), nil
}

// renderOrderBy skips entries with empty column names and defaults the
// direction to ASC.
func renderOrderBy(clauses []OrderByClause) (string, error) {
	var parts []string
	for _, c := range clauses {
		if c.Column == "" {
			continue
		}
		if err := ValidateColumnName(c.Column); err != nil {
			return "", err
		}
		direction := strings.ToUpper(strings.TrimSpace(c.Direction))
		if direction == "" {
			direction = "ASC"
		}
		if direction != "ASC" && direction != "DESC" {
			return "", errors.NewUserError(errors.CodeInvalidQuery,
				fmt.Sprintf("invalid sort direction [%s]", c.Direction))
		}
		parts = append(parts, fmt.Sprintf("%s %s", c.Column, direction))
	}
	return strings.Join(parts, ", "), nil
}
