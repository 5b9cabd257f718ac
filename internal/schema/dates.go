// Package schema validates dataset schema declarations at construction time
// and manages their versioned lifecycle in the schema catalogue.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// strptime directives recognised in column date formats, mapped to Go
// reference-time layout fragments.
var strptimeDirectives = map[string]string{
	"%Y": "2006",
	"%y": "06",
	"%m": "01",
	"%d": "02",
	"%b": "Jan",
	"%B": "January",
	"%H": "15",
	"%M": "04",
	"%S": "05",
}

// acceptedDateFormats is the closed set of strptime patterns a date column
// may declare. Separators are restricted to '-' and '/' so canonicalized
// values stay partition safe.
var acceptedDateFormats = map[string]bool{
	"%Y-%m-%d": true,
	"%Y-%d-%m": true,
	"%d-%m-%Y": true,
	"%m-%d-%Y": true,
	"%Y/%m/%d": true,
	"%Y/%d/%m": true,
	"%d/%m/%Y": true,
	"%m/%d/%Y": true,
	"%Y-%m":    true,
	"%m-%Y":    true,
	"%Y/%m":    true,
	"%m/%Y":    true,
	"%d-%b-%Y": true,
	"%d/%b/%Y": true,
	"%Y":       true,
}

// IsAcceptedDateFormat reports whether format may be declared on a date
// column.
func IsAcceptedDateFormat(format string) bool {
	return acceptedDateFormats[format]
}

// TranslateFormat converts a strptime pattern into a Go time layout.
// Unknown directives are an error; literal text passes through unchanged.
func TranslateFormat(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] != '%' {
			b.WriteByte(format[i])
			i++
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("trailing %% in date format %q", format)
		}
		directive := format[i : i+2]
		layout, ok := strptimeDirectives[directive]
		if !ok {
			return "", fmt.Errorf("unsupported directive %q in date format %q", directive, format)
		}
		b.WriteString(layout)
		i += 2
	}
	return b.String(), nil
}

// ParseDate parses value against the column's strptime format.
func ParseDate(format, value string) (time.Time, error) {
	layout, err := TranslateFormat(format)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(layout, value)
}
