package match

import "strings"

// Normalize lower-cases the value, trims it, and collapses internal
// whitespace runs to single spaces. Stored names and incoming queries go
// through the same normalization so similarity is computed on canonical forms.
func Normalize(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
