package models_test

import (
	"testing"

	"github.com/dalemusser/assignhub/internal/domain/models"
)

func TestShortID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"u1", "U1"},
		{"abcdef", "ABCDEF"},
		{"65f1c2ab9e0d4c7a1b2c3d4e", "2C3D4E"},
		{"  65f1c2ab9e0d4c7a1b2c3d4e ", "2C3D4E"},
	}
	for _, tt := range tests {
		if got := models.ShortID(tt.in); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCustomer_Initial(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"", ""},
		{"   ", ""},
		{"ada", "A"},
		{" Grace", "G"},
		{"émile", "É"},
	}
	for _, tt := range tests {
		if got := (models.Customer{Name: tt.name}).Initial(); got != tt.want {
			t.Errorf("Initial(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
