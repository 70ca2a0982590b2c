// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// AppendNote appends note to an existing sep-delimited log. Empty notes are
// dropped and an empty log yields the note alone.
//
//	AppendNote("Agent: ok", " | ", "Manual Approval: fine")
//	// Returns: "Agent: ok | Manual Approval: fine"
func AppendNote(log, sep, note string) string {
	note = strings.TrimSpace(note)
	switch {
	case note == "":
		return log
	case log == "":
		return note
	default:
		return log + sep + note
	}
}
