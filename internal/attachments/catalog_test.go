package attachments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"applique-backend/internal/shared/telemetry"
)

func newCatalog(t *testing.T, files ...string) *Catalog {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return &Catalog{Dir: dir}
}

func TestCatalogList(t *testing.T) {
	c := newCatalog(t, "transcript.pdf", "cert.pdf", "notes.txt")
	if err := os.Mkdir(filepath.Join(c.Dir, "nested.pdf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	entries, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "cert.pdf" || entries[1].Name != "transcript.pdf" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	empty := &Catalog{Dir: filepath.Join(t.TempDir(), "missing")}
	entries, err = empty.List(context.Background())
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty list for missing dir, got %v %v", entries, err)
	}
}

func TestCatalogPath(t *testing.T) {
	c := newCatalog(t, "transcript.pdf")

	path, err := c.Path("transcript.pdf")
	if err != nil || path != filepath.Join(c.Dir, "transcript.pdf") {
		t.Fatalf("unexpected path %q %v", path, err)
	}
	if _, err := c.Path("absent.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, name := range []string{"", "../secret.pdf", "a/b.pdf", ".hidden.pdf", "notes.txt"} {
		if _, err := c.Path(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Path(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestListHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Cleanup(telemetry.SetOutput(&bytes.Buffer{}))
	router := gin.New()
	NewHandler(newCatalog(t, "a.pdf")).RegisterRoutes(router.Group("/api/v1"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/attachments", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Attachments []Entry `json:"attachments"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Attachments) != 1 || body.Attachments[0].Name != "a.pdf" || body.Attachments[0].SizeBytes != 8 {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}
