package templates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testTiers struct {
	user string
	def  string
}

func newTestStore(t *testing.T, cacheSize int) (*Store, testTiers) {
	t.Helper()
	root := t.TempDir()
	tiers := testTiers{user: filepath.Join(root, "user"), def: filepath.Join(root, "defaults")}
	store, err := NewStore(Config{UserDir: tiers.user, DefaultDir: tiers.def, CacheSize: cacheSize})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, tiers
}

func writeTemplate(t *testing.T, base string, kind Kind, name, content string) {
	t.Helper()
	dir := filepath.Join(base, kind.Dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func mustRef(t *testing.T, kind Kind, name string) Ref {
	t.Helper()
	ref, err := NewRef(kind, name)
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	return ref
}

func TestResolveDefaultOnly(t *testing.T) {
	store, tiers := newTestStore(t, 0)
	writeTemplate(t, tiers.def, KindCoverLetter, "cover_letter.tex", "Default body\n")

	doc, err := store.Resolve(context.Background(), mustRef(t, KindCoverLetter, "cover_letter"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if doc.Tier != TierDefault || doc.Content != "Default body\n" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.Blocks[RootBlock] != "Default body\n" {
		t.Fatalf("expected implicit root block, got %v", doc.Blocks)
	}
}

func TestSaveResetRoundTrip(t *testing.T) {
	for _, cacheSize := range []int{0, 8} {
		t.Run(fmt.Sprintf("cache=%d", cacheSize), func(t *testing.T) {
			store, tiers := newTestStore(t, cacheSize)
			ctx := context.Background()
			ref := mustRef(t, KindCV, "cv.tex")
			writeTemplate(t, tiers.def, KindCV, "cv.tex", "default cv\n")

			if _, err := store.Resolve(ctx, ref); err != nil {
				t.Fatalf("warm resolve: %v", err)
			}
			if err := store.Save(ctx, ref, "user cv\n"); err != nil {
				t.Fatalf("Save: %v", err)
			}
			doc, err := store.Resolve(ctx, ref)
			if err != nil {
				t.Fatalf("Resolve after save: %v", err)
			}
			if doc.Tier != TierUser || doc.Content != "user cv\n" {
				t.Fatalf("expected user override, got %+v", doc)
			}

			res, err := store.Reset(ctx, ref)
			if err != nil || !res.Customized {
				t.Fatalf("Reset: %+v %v", res, err)
			}
			doc, err = store.Resolve(ctx, ref)
			if err != nil {
				t.Fatalf("Resolve after reset: %v", err)
			}
			if doc.Tier != TierDefault || doc.Content != "default cv\n" {
				t.Fatalf("expected default after reset, got %+v", doc)
			}

			res, err = store.Reset(ctx, ref)
			if err != nil {
				t.Fatalf("second Reset should not fail: %v", err)
			}
			if res.Customized {
				t.Fatalf("expected not-customized notice on second reset")
			}
		})
	}
}

func TestResolveInheritance(t *testing.T) {
	store, tiers := newTestStore(t, 0)
	writeTemplate(t, tiers.def, KindCoverLetter, "base.tex",
		"\\begin{document}\n%@block header\nDear Sir or Madam,\n%@endblock\n%@block body\nDefault body.\n%@endblock\n\\end{document}\n")
	writeTemplate(t, tiers.user, KindCoverLetter, "warm.tex",
		"%@extends base.tex\nignored text\n%@block body\nWarm body.\n%@endblock\n")

	doc, err := store.Resolve(context.Background(), mustRef(t, KindCoverLetter, "warm.tex"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "\\begin{document}\nDear Sir or Madam,\nWarm body.\n\\end{document}\n"
	if diff := cmp.Diff(want, doc.Content); diff != "" {
		t.Fatalf("content mismatch (-want +got):\n%s", diff)
	}
	wantChain := []Link{{Name: "warm.tex", Tier: TierUser}, {Name: "base.tex", Tier: TierDefault}}
	if diff := cmp.Diff(wantChain, doc.Chain); diff != "" {
		t.Fatalf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveTransitiveChain(t *testing.T) {
	store, tiers := newTestStore(t, 0)
	writeTemplate(t, tiers.def, KindCV, "c.tex", "<\n%@block x\nc-x\n%@endblock\n%@block y\nc-y\n%@endblock\n%@block z\nc-z\n%@endblock\n>")
	writeTemplate(t, tiers.def, KindCV, "b.tex", "%@extends c\n%@block y\nb-y\n%@endblock\n%@block z\nb-z\n%@endblock\n")
	writeTemplate(t, tiers.def, KindCV, "a.tex", "%@extends b.tex\n%@block z\na-z\n%@endblock\n")

	doc, err := store.Resolve(context.Background(), mustRef(t, KindCV, "a"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(doc.Content, "c-x\nb-y\na-z\n") {
		t.Fatalf("unexpected merged content %q", doc.Content)
	}
	if len(doc.Chain) != 3 {
		t.Fatalf("expected 3 links, got %v", doc.Chain)
	}
}

func TestUserOverrideExtendsPinnedDefault(t *testing.T) {
	store, tiers := newTestStore(t, 0)
	writeTemplate(t, tiers.def, KindCoverLetter, "cover_letter.tex", "A\n%@block closing\nRegards\n%@endblock\n")
	writeTemplate(t, tiers.user, KindCoverLetter, "cover_letter.tex", "%@extends default:cover_letter.tex\n%@block closing\nCheers\n%@endblock\n")

	doc, err := store.Resolve(context.Background(), mustRef(t, KindCoverLetter, "cover_letter"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if doc.Content != "A\nCheers\n" || doc.Tier != TierUser {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestResolveCycle(t *testing.T) {
	store, tiers := newTestStore(t, 0)
	writeTemplate(t, tiers.def, KindCV, "a.tex", "%@extends b\n")
	writeTemplate(t, tiers.def, KindCV, "b.tex", "%@extends a\n")
	writeTemplate(t, tiers.user, KindCV, "self.tex", "%@extends self.tex\n")

	for _, name := range []string{"a", "self"} {
		_, err := store.Resolve(context.Background(), mustRef(t, KindCV, name))
		var cycle *CycleError
		if !errors.As(err, &cycle) {
			t.Fatalf("%s: expected CycleError, got %v", name, err)
		}
	}
}

func TestResolveMissingParent(t *testing.T) {
	store, tiers := newTestStore(t, 0)
	writeTemplate(t, tiers.user, KindCV, "child.tex", "%@extends ghost.tex\n")

	_, err := store.Resolve(context.Background(), mustRef(t, KindCV, "child.tex"))
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if resErr.Missing != "ghost.tex" || resErr.Ref.Name != "child.tex" {
		t.Fatalf("unexpected error fields %+v", resErr)
	}
	if !strings.Contains(err.Error(), "ghost.tex") {
		t.Fatalf("expected message to name the parent: %v", err)
	}
}

func TestResolveMissingTemplate(t *testing.T) {
	store, _ := newTestStore(t, 0)
	_, err := store.Resolve(context.Background(), mustRef(t, KindCV, "nope"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRejectsMalformed(t *testing.T) {
	store, _ := newTestStore(t, 0)
	err := store.Save(context.Background(), mustRef(t, KindCV, "bad"), "%@block a\n")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestNewRefValidation(t *testing.T) {
	for _, name := range []string{"", "../x.tex", "a/b.tex", `a\b.tex`, ".hidden.tex", "cv.pdf"} {
		if _, err := NewRef(KindCV, name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("%q: expected ErrInvalidName, got %v", name, err)
		}
	}
	ref, err := NewRef(KindPersonalInformation, "about")
	if err != nil || ref.Name != "about.txt" {
		t.Fatalf("expected extension appended, got %+v %v", ref, err)
	}
	if _, err := NewRef(Kind("poem"), "x"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestListUnionsTiers(t *testing.T) {
	store, tiers := newTestStore(t, 0)
	writeTemplate(t, tiers.def, KindCV, "b.tex", "b")
	writeTemplate(t, tiers.def, KindCV, "a.tex", "a")
	writeTemplate(t, tiers.user, KindCV, "a.tex", "a2")
	writeTemplate(t, tiers.user, KindCV, "c.tex", "c")
	writeTemplate(t, tiers.user, KindCV, "notes.md", "ignored")

	entries, err := store.List(context.Background(), KindCV)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []Entry{
		{Name: "a.tex", Tier: TierUser, Customized: true, HasDefault: true},
		{Name: "b.tex", Tier: TierDefault, HasDefault: true},
		{Name: "c.tex", Tier: TierUser, Customized: true},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestDetailReportsBothTiers(t *testing.T) {
	store, tiers := newTestStore(t, 0)
	writeTemplate(t, tiers.def, KindCoverLetter, "cl.tex", "def")
	writeTemplate(t, tiers.user, KindCoverLetter, "cl.tex", "usr")

	d, err := store.Detail(context.Background(), mustRef(t, KindCoverLetter, "cl"))
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if d.Content != "usr" || d.DefaultContent != "def" || !d.Customized || !d.HasDefault || d.Tier != TierUser {
		t.Fatalf("unexpected detail %+v", d)
	}
}

func TestConcurrentSaveAndResolve(t *testing.T) {
	store, tiers := newTestStore(t, 4)
	ref := mustRef(t, KindCV, "cv.tex")
	writeTemplate(t, tiers.def, KindCV, "cv.tex", "v0")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := store.Save(ctx, ref, fmt.Sprintf("v%d-%d", i, j)); err != nil {
					t.Errorf("Save: %v", err)
					return
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				doc, err := store.Resolve(ctx, ref)
				if err != nil {
					t.Errorf("Resolve: %v", err)
					return
				}
				if !strings.HasPrefix(doc.Content, "v") {
					t.Errorf("torn read %q", doc.Content)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestHotReloadSeesExternalEdits(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(Config{
		UserDir:    filepath.Join(root, "user"),
		DefaultDir: filepath.Join(root, "defaults"),
		CacheSize:  8,
		HotReload:  true,
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer store.Close()

	ref := mustRef(t, KindCV, "cv.tex")
	writeTemplate(t, filepath.Join(root, "user"), KindCV, "cv.tex", "first")
	waitForContent(t, store, ref, "first")

	writeTemplate(t, filepath.Join(root, "user"), KindCV, "cv.tex", "second")
	waitForContent(t, store, ref, "second")
}

func TestEditDuringReadDoesNotLeaveStaleCache(t *testing.T) {
	store, tiers := newTestStore(t, 8)
	ref := mustRef(t, KindCV, "cv.tex")
	writeTemplate(t, tiers.user, KindCV, "cv.tex", "old")
	path := store.path(TierUser, ref)

	// an external edit and its watcher event land after the read but
	// before the read fills the cache
	edited := false
	store.afterRead = func(p string) {
		if p != path || edited {
			return
		}
		edited = true
		if err := os.WriteFile(path, []byte("new"), 0o644); err != nil {
			t.Errorf("write: %v", err)
		}
		store.invalidate(path)
	}

	doc, err := store.Resolve(context.Background(), ref)
	if err != nil || doc.Content != "old" {
		t.Fatalf("expected in-flight read to return old content, got %q %v", doc.Content, err)
	}
	doc, err = store.Resolve(context.Background(), ref)
	if err != nil || doc.Content != "new" {
		t.Fatalf("expected edit to be visible, got %q %v", doc.Content, err)
	}
}

func waitForContent(t *testing.T, store *Store, ref Ref, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		doc, err := store.Resolve(context.Background(), ref)
		if err == nil && doc.Content == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q (last %q, %v)", want, doc.Content, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
