// Package normalize canonicalises user-supplied identifiers and directory
// fields before they are stored or compared.
package normalize

import "strings"

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name and collapses inner runs of whitespace. Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Status trims and lowercases a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ID trims an opaque identifier such as a product or customer ID. Case is
// preserved.
func ID(s string) string {
	return strings.TrimSpace(s)
}
