package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/assignhub/internal/app/system/htmlsanitize"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Ada Lovelace", "Ada Lovelace"},
		{"trims", "  Ada  ", "Ada"},
		{"strips tags", "<b>Ada</b> <i>Lovelace</i>", "Ada Lovelace"},
		{"removes script", "Ada<script>alert('xss')</script>", "Ada"},
		{"removes attributes", `<a href="javascript:alert(1)" onclick="x()">Ada</a>`, "Ada"},
		{"keeps ampersand", "Smith & Sons", "Smith & Sons"},
		{"keeps email", "ada@example.com", "ada@example.com"},
		{"escaped tags stay stripped", "&lt;b&gt;Ada&lt;/b&gt;", "Ada"},
		{"escaped script stays stripped", "&lt;script&gt;alert(1)&lt;/script&gt;Ada", "Ada"},
		{"double escaped tags", "&amp;lt;i&amp;gt;Ada&amp;lt;/i&amp;gt;", "Ada"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFields_Apply(t *testing.T) {
	name, email := "<em>Ada</em>", " ada@example.com "
	htmlsanitize.Fields{Name: &name, Email: &email}.Apply()

	if name != "Ada" {
		t.Errorf("name: got %q", name)
	}
	if email != "ada@example.com" {
		t.Errorf("email: got %q", email)
	}
}
