package s3

import (
	"io"
	"strings"
	"testing"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "acme_application.pdf", want: "acme_application.pdf"},
		{name: "simple prefix", prefix: "generated", key: "acme_application.pdf", want: "generated/acme_application.pdf"},
		{name: "prefix trailing slash", prefix: "generated/", key: "acme_application.pdf", want: "generated/acme_application.pdf"},
		{name: "prefix and key slashes", prefix: "/generated/", key: "/acme_application.pdf", want: "generated/acme_application.pdf"},
		{name: "empty key", prefix: "generated", key: "", want: "generated"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	c := &countingReader{r: strings.NewReader("0123456789")}
	if _, err := io.Copy(io.Discard, c); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if c.n != 10 {
		t.Fatalf("expected 10 bytes counted, got %d", c.n)
	}
}

func TestNormalizePrefix(t *testing.T) {
	if got := normalizePrefix("  /a/b/ "); got != "a/b" {
		t.Fatalf("unexpected prefix %q", got)
	}
}
