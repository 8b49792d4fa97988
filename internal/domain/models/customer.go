// internal/domain/models/customer.go
package models

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Customer is a candidate entry from the user directory.
//
// The directory is owned by another service; only the fields needed to
// snapshot an assignment are kept.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Image   string `json:"image,omitempty"`
	Address string `json:"address,omitempty"`
}

// Initial is the upper-cased first letter of the name, shown in place of a
// missing image. It is "" for a blank name.
func (c Customer) Initial() string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

// ShortID is the compact label shown next to a customer: the last six
// characters of id, upper-cased. Shorter ids are returned whole.
func ShortID(id string) string {
	r := []rune(strings.TrimSpace(id))
	if len(r) > 6 {
		r = r[len(r)-6:]
	}
	return strings.ToUpper(string(r))
}
