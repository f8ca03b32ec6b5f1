package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"applique-backend/internal/generations"
	"applique-backend/internal/shared/config"
	"applique-backend/internal/shared/telemetry"
)

func testConfig(t *testing.T, ledger string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Env:                 "dev",
		DefaultTemplatesDir: filepath.Join(dir, "defaults"),
		UserTemplatesDir:    filepath.Join(dir, "user"),
		AttachmentsDir:      filepath.Join(dir, "attachments"),
		ProfilePath:         filepath.Join(dir, "profile.yaml"),
		PostingsDir:         filepath.Join(dir, "postings"),
		WorkDir:             filepath.Join(dir, "work"),
		ObjectStoreType:     "local",
		OutputDir:           filepath.Join(dir, "output"),
		LedgerDriver:        ledger,
		SQLitePath:          filepath.Join(dir, "ledger.db"),
		LatexCommand:        "pdflatex",
		LatexTimeout:        time.Second,
		LatexPasses:         1,
		CompileMaxParallel:  2,
	}
}

func TestBuildServesAPI(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(&bytes.Buffer{}))
	cfg := testConfig(t, "sqlite")

	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if _, ok := app.Generations.Repo.(*generations.SQLiteRepo); !ok {
		t.Fatalf("expected sqlite ledger, got %T", app.Generations.Repo)
	}

	for _, path := range []string{"/api/v1/generations", "/api/v1/attachments", "/api/v1/templates/cv", "/api/v1/metrics"} {
		resp := httptest.NewRecorder()
		app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, resp.Code, resp.Body.String())
		}
	}

	// the default templates directory was never created
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusServiceUnavailable || !strings.Contains(resp.Body.String(), `"templates":{"ok":false`) {
		t.Fatalf("expected unhealthy report, got %d: %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/generate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %d", resp.Code)
	}
}

func TestBuildCoreMemoryLedger(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(&bytes.Buffer{}))
	app, err := BuildCore(context.Background(), testConfig(t, "memory"))
	if err != nil {
		t.Fatalf("BuildCore: %v", err)
	}
	defer app.Close()

	if app.Router != nil || app.DB != nil {
		t.Fatalf("expected no router or database")
	}
	if _, ok := app.Generations.Repo.(*generations.MemoryRepo); !ok {
		t.Fatalf("expected memory ledger, got %T", app.Generations.Repo)
	}
	if got := app.Generate.Policy.Precedence; len(got) != 3 {
		t.Fatalf("expected default precedence, got %v", got)
	}
}

func TestBuildFailsWithoutDatabaseInProduction(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(&bytes.Buffer{}))
	cfg := testConfig(t, "postgres")
	cfg.Env = "production"

	if _, err := BuildCore(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for postgres ledger without a DSN")
	}

	cfg.Env = "dev"
	app, err := BuildCore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected dev fallback, got %v", err)
	}
	defer app.Close()
	if _, ok := app.Generations.Repo.(*generations.MemoryRepo); !ok {
		t.Fatalf("expected memory fallback, got %T", app.Generations.Repo)
	}
}

func TestBuildRejectsS3WithoutBucket(t *testing.T) {
	t.Cleanup(telemetry.SetOutput(&bytes.Buffer{}))
	cfg := testConfig(t, "memory")
	cfg.ObjectStoreType = "s3"
	if _, err := BuildCore(context.Background(), cfg); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(cfg.UserTemplatesDir); !os.IsNotExist(err) {
		t.Fatalf("expected nothing created after a failed build, stat err=%v", err)
	}
}
