package utils

import "testing"

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Seminar 2", want: "seminar-2"},
		{in: "  Main track - Main track ", want: "main-track-main-track"},
		{in: "Über Café", want: "uber-cafe"},
		{in: "SFSCON", want: "sfscon"},
		{in: "!!!", want: "untitled"},
		{in: "", want: "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
