package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	got, err := SanitizeFileName(" nested/cv.tex ")
	if err != nil || got != "nested_cv.tex" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
	for _, bad := range []string{"../secret", "", "   "} {
		if _, err := SanitizeFileName(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "Acme Corp", max: 50, want: "Acme_Corp"},
		{in: "Müller & Söhne GmbH", max: 50, want: "Muller_Sohne_GmbH"},
		{in: "  --weird!!name--  ", max: 50, want: "weird_name"},
		{in: "Zürich-Versicherung", max: 50, want: "Zurich-Versicherung"},
		{in: "abcdefghij", max: 4, want: "abcd"},
		{in: "日本", max: 50, want: ""},
	}
	for _, tt := range tests {
		if got := Slug(tt.in, tt.max); got != tt.want {
			t.Fatalf("Slug(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
