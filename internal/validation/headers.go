// Package validation implements the chunked dataset validation pipeline:
// given a schema and a raw chunk of tabular data it produces either a
// type-coerced, partition-safe table or the complete ordered list of
// human-readable validation errors.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var headingJunk = regexp.MustCompile(`[^a-z0-9_]+`)

// CleanHeading normalizes a raw column heading to the schema heading style:
// trimmed, lowercased, with runs of whitespace and punctuation collapsed to a
// single underscore.
func CleanHeading(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	h = headingJunk.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

// CleanHeadings normalizes every heading, synthesising "unnamed_N" for
// headings that clean down to nothing. The returned slice is positional.
func CleanHeadings(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		cleaned := CleanHeading(h)
		if cleaned == "" {
			cleaned = fmt.Sprintf("unnamed_%d", i+1)
		}
		out[i] = cleaned
	}
	return out
}
