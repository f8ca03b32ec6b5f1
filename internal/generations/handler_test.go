package generations_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"applique-backend/internal/generations"
	"applique-backend/internal/shared/storage/object/local"
	"applique-backend/internal/shared/telemetry"
)

func newHistoryRouter(t *testing.T) (*gin.Engine, *generations.Service, *local.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Cleanup(telemetry.SetOutput(&bytes.Buffer{}))

	store := local.New(t.TempDir())
	svc := &generations.Service{Repo: generations.NewMemoryRepo(), Store: store}
	router := gin.New()
	generations.NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router, svc, store
}

func seed(t *testing.T, svc *generations.Service, store *local.Store, filename string, at time.Time) generations.Record {
	t.Helper()
	if _, err := store.Put(context.Background(), filename, "application/pdf", strings.NewReader("%PDF-1.4 "+filename)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, err := svc.Record(context.Background(), generations.Record{
		CreatedAt:   at,
		Filename:    filename,
		StorageKey:  filename,
		CVFile:      "cv.tex",
		CompanyName: "Acme",
		PageCount:   1,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	return rec
}

func TestHistoryListNewestFirst(t *testing.T) {
	router, svc, store := newHistoryRouter(t)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	seed(t, svc, store, "old.pdf", base)
	seed(t, svc, store, "new.pdf", base.Add(time.Hour))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/generations?limit=10", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Generations []struct {
			ID          string   `json:"id"`
			Filename    string   `json:"filename"`
			Attachments []string `json:"attachments"`
			DownloadURL string   `json:"downloadUrl"`
		} `json:"generations"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Generations) != 2 || body.Generations[0].Filename != "new.pdf" {
		t.Fatalf("unexpected list %+v", body.Generations)
	}
	if body.Generations[0].Attachments == nil {
		t.Fatalf("expected attachments to encode as an empty array")
	}
	if !strings.HasSuffix(body.Generations[0].DownloadURL, body.Generations[0].ID+"/download") {
		t.Fatalf("unexpected download url %q", body.Generations[0].DownloadURL)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/generations?limit=abc", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.Code)
	}
}

func TestHistoryDownload(t *testing.T) {
	router, svc, store := newHistoryRouter(t)
	rec := seed(t, svc, store, "acme.pdf", time.Now())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/generations/"+rec.ID+"/download", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %s", ct)
	}
	disposition, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition"))
	if err != nil || disposition != "attachment" || params["filename"] != "acme.pdf" {
		t.Fatalf("unexpected content disposition %q", resp.Header().Get("Content-Disposition"))
	}
	if resp.Body.String() != "%PDF-1.4 acme.pdf" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}

	orphan, err := svc.Record(context.Background(), generations.Record{Filename: "gone.pdf", StorageKey: "gone.pdf"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/generations/"+orphan.ID+"/download", nil))
	if resp.Code != http.StatusGone {
		t.Fatalf("expected 410 for missing file, got %d", resp.Code)
	}
	if cd := resp.Header().Get("Content-Disposition"); cd != "" {
		t.Fatalf("expected no content disposition, got %s", cd)
	}
}

func TestHistoryDeleteKeepsFile(t *testing.T) {
	router, svc, store := newHistoryRouter(t)
	rec := seed(t, svc, store, "keep.pdf", time.Now())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/generations/"+rec.ID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/generations/"+rec.ID, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}

	rc, err := store.Open(context.Background(), "keep.pdf")
	if err != nil {
		t.Fatalf("expected generated file to survive delete: %v", err)
	}
	rc.Close()
}

func TestHistoryClear(t *testing.T) {
	router, svc, store := newHistoryRouter(t)
	seed(t, svc, store, "a.pdf", time.Now())
	seed(t, svc, store, "b.pdf", time.Now())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/generations", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"removed":2`) {
		t.Fatalf("unexpected clear response %d %s", resp.Code, resp.Body.String())
	}
}
