// Package htmlsanitize strips markup from text that arrives from other
// services before it is stored or echoed back to operators.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxRounds bounds how many layers of entity escaping PlainText peels off.
const maxRounds = 4

// PlainText removes every tag and attribute from s and trims surrounding
// whitespace. Entities are decoded so the result is the text a user would
// read, and decoding is repeated until it exposes no further markup: escaped
// input such as "&lt;b&gt;" never comes back as a live tag. Input that is
// still changing after maxRounds is returned in escaped form.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	out := s
	for i := 0; i < maxRounds; i++ {
		next := html.UnescapeString(strict.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return strings.TrimSpace(strict.Sanitize(out))
}

// Fields points at customer-facing strings sanitised together.
type Fields struct {
	Name, Email, Phone, Image, Address *string
}

// Apply runs PlainText over every non-nil field.
func (f Fields) Apply() {
	for _, p := range []*string{f.Name, f.Email, f.Phone, f.Image, f.Address} {
		if p != nil {
			*p = PlainText(*p)
		}
	}
}
