package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rapid-data/rapid/pkg/types"
)

// runCustomChecks executes every declared column check, yielding one
// formatted diagnostic per failing check carrying the offending raw values.
func runCustomChecks(sc *types.Schema, t *types.Table) []string {
	var errs []string
	for _, col := range sc.Columns {
		series := t.Series(col.Name)
		if series == nil {
			continue
		}
		for i, check := range col.Checks {
			predicate, err := buildPredicate(check)
			if err != nil {
				errs = append(errs, fmt.Sprintf("Column '%s' declares invalid check %s: %v", col.Name, check, err))
				continue
			}
			var failures []string
			for _, v := range series.Values {
				if types.IsNull(v) {
					continue
				}
				if !predicate(v) {
					failures = append(failures, fmt.Sprintf("%v", v))
				}
			}
			if len(failures) > 0 {
				errs = append(errs, fmt.Sprintf(
					"[%s] Column '%s' failed element-wise validator number %d: %s failure cases: %s",
					check, col.Name, i, check, strings.Join(failures, ", ")))
			}
		}
	}
	return errs
}

// buildPredicate compiles a declared check into an element-wise predicate.
func buildPredicate(check types.Check) (func(interface{}) bool, error) {
	switch check.Type {
	case "greater_than":
		bound, err := numericParam(check, 0)
		if err != nil {
			return nil, err
		}
		return numericPredicate(func(f float64) bool { return f > bound }), nil
	case "greater_than_or_equal_to":
		bound, err := numericParam(check, 0)
		if err != nil {
			return nil, err
		}
		return numericPredicate(func(f float64) bool { return f >= bound }), nil
	case "less_than":
		bound, err := numericParam(check, 0)
		if err != nil {
			return nil, err
		}
		return numericPredicate(func(f float64) bool { return f < bound }), nil
	case "less_than_or_equal_to":
		bound, err := numericParam(check, 0)
		if err != nil {
			return nil, err
		}
		return numericPredicate(func(f float64) bool { return f <= bound }), nil
	case "in_range":
		min, err := numericParam(check, 0)
		if err != nil {
			return nil, err
		}
		max, err := numericParam(check, 1)
		if err != nil {
			return nil, err
		}
		return numericPredicate(func(f float64) bool { return f >= min && f <= max }), nil
	case "isin":
		allowed := make(map[string]bool, len(check.Parameters))
		for _, p := range check.Parameters {
			allowed[fmt.Sprintf("%v", p)] = true
		}
		return func(v interface{}) bool { return allowed[fmt.Sprintf("%v", v)] }, nil
	case "str_length":
		min, err := numericParam(check, 0)
		if err != nil {
			return nil, err
		}
		max := float64(-1)
		if len(check.Parameters) > 1 {
			if max, err = numericParam(check, 1); err != nil {
				return nil, err
			}
		}
		return func(v interface{}) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			n := float64(len(s))
			return n >= min && (max < 0 || n <= max)
		}, nil
	case "str_matches":
		pattern, err := stringParam(check, 0)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return func(v interface{}) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}, nil
	default:
		return nil, fmt.Errorf("unknown check type %q", check.Type)
	}
}

func numericPredicate(cmp func(float64) bool) func(interface{}) bool {
	return func(v interface{}) bool {
		f, ok := floatValue(v)
		return ok && cmp(f)
	}
}

func numericParam(check types.Check, i int) (float64, error) {
	if i >= len(check.Parameters) {
		return 0, fmt.Errorf("missing parameter %d", i)
	}
	f, ok := floatValue(check.Parameters[i])
	if !ok {
		return 0, fmt.Errorf("parameter %d must be numeric", i)
	}
	return f, nil
}

func stringParam(check types.Check, i int) (string, error) {
	if i >= len(check.Parameters) {
		return "", fmt.Errorf("missing parameter %d", i)
	}
	s, ok := check.Parameters[i].(string)
	if !ok {
		return "", fmt.Errorf("parameter %d must be a string", i)
	}
	return s, nil
}
