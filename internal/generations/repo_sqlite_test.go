package generations

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"applique-backend/internal/shared/storage/db"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Connect(ctx, db.SQLite, filepath.Join(t.TempDir(), "ledger.db"), db.DefaultMigrateOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.RunMigrations(ctx, conn, db.SQLite); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return &SQLiteRepo{DB: conn}
}

func TestSQLiteRepoRoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := Record{ID: "a", CreatedAt: base, Filename: "a.pdf", StorageKey: "a.pdf", CVFile: "cv.tex", PageCount: 1, SizeBytes: 100}
	second := Record{
		ID:              "b",
		CreatedAt:       base.Add(1500 * time.Millisecond),
		Filename:        "b.pdf",
		StorageKey:      "b.pdf",
		CVFile:          "cv.tex",
		CoverLetterFile: "cover_letter.tex",
		Attachments:     []string{"x.pdf"},
		PostingID:       "p-9",
		CompanyName:     "Zürich AG",
		JobTitle:        "Engineer",
		Combined:        true,
		PageCount:       3,
		SizeBytes:       300,
	}
	for _, rec := range []Record{first, second} {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create %s: %v", rec.ID, err)
		}
	}

	got, err := repo.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}

	list, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	n, err := repo.Clear(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 cleared, got %d %v", n, err)
	}
}
