package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/natefinch/atomic"

	"applique-backend/internal/shared/telemetry"
)

// maxDepth bounds inheritance chains independently of cycle detection.
const maxDepth = 32

// Config locates the two tiers and tunes caching.
type Config struct {
	UserDir    string
	DefaultDir string
	// CacheSize is the number of raw files kept in memory; 0 disables caching.
	CacheSize int
	// HotReload invalidates cached files when they change on disk.
	HotReload bool
	// Placeholders fills Detail.Placeholders; nil leaves the list empty.
	Placeholders PlaceholderFunc
}

// Store resolves templates from a writable user tier layered over a
// read-only default tier.
type Store struct {
	cfg Config

	locksMu sync.Mutex
	locks   map[Ref]*sync.RWMutex

	cache   *lru.Cache[string, cachedFile]
	watcher *watcher

	// epoch advances on every invalidation. A read only fills the cache when
	// no invalidation happened while it was on disk.
	cacheMu sync.Mutex
	epoch   uint64
	// afterRead runs between the disk read and the cache fill; tests only.
	afterRead func(path string)
}

type cachedFile struct {
	content string
	exists  bool
}

// NewStore creates the user tier directories and, when configured, the
// content cache. Call Start to begin watching for external edits.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.UserDir) == "" || strings.TrimSpace(cfg.DefaultDir) == "" {
		return nil, errors.New("templates: user and default directories are required")
	}
	for _, k := range Kinds {
		if err := os.MkdirAll(filepath.Join(cfg.UserDir, k.Dir()), 0o755); err != nil {
			return nil, fmt.Errorf("templates: mkdir user tier: %w", err)
		}
	}
	s := &Store{cfg: cfg, locks: map[Ref]*sync.RWMutex{}}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, cachedFile](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("templates: cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Resolve returns the effective template for ref with its inheritance applied.
func (s *Store) Resolve(ctx context.Context, ref Ref) (Document, error) {
	ref, err := NewRef(ref.Kind, ref.Name)
	if err != nil {
		return Document{}, err
	}
	node, err := s.resolve(ctx, ref, "", nil, nil)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Ref:     ref,
		Tier:    node.chain[0].Tier,
		Content: render(node.skeleton, node.blocks),
		Blocks:  node.blocks,
		Chain:   node.chain,
	}, nil
}

type resolvedNode struct {
	skeleton []segment
	blocks   map[string]string
	chain    []Link
}

// resolve walks from ref to its root-most ancestor. child is the template
// that extended ref, or nil for the requested template.
func (s *Store) resolve(ctx context.Context, ref Ref, pin Tier, child *Ref, visited []Link) (*resolvedNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, tier, err := s.load(ref, pin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if child != nil {
				return nil, &ResolutionError{Ref: *child, Missing: ref.Name, Reason: "parent not found", Err: ErrNotFound}
			}
			return nil, &ResolutionError{Ref: ref, Missing: ref.Name, Reason: "not found", Err: ErrNotFound}
		}
		return nil, &ResolutionError{Ref: ref, Reason: "read failed", Err: err}
	}

	link := Link{Name: ref.Name, Tier: tier}
	for _, seen := range visited {
		if seen == link {
			return nil, &CycleError{Ref: ref, Chain: append(append([]Link(nil), visited...), link)}
		}
	}
	visited = append(visited, link)
	if len(visited) > maxDepth {
		return nil, &ResolutionError{Ref: ref, Reason: fmt.Sprintf("inheritance deeper than %d", maxDepth)}
	}

	p, err := parse(content)
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Reason: err.Error(), Err: err}
	}
	if p.parent == nil {
		return &resolvedNode{skeleton: p.skeleton, blocks: p.blocks, chain: []Link{link}}, nil
	}

	parentRef, err := NewRef(ref.Kind, p.parent.name)
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Missing: p.parent.name, Reason: "invalid parent name", Err: err}
	}
	parent, err := s.resolve(ctx, parentRef, p.parent.pin, &ref, visited)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(parent.blocks)+len(p.blocks))
	for name, body := range parent.blocks {
		merged[name] = body
	}
	for name, body := range p.blocks {
		merged[name] = body
	}
	return &resolvedNode{
		skeleton: parent.skeleton,
		blocks:   merged,
		chain:    append([]Link{link}, parent.chain...),
	}, nil
}

// load reads ref from the pinned tier, or user then default when pin is empty.
func (s *Store) load(ref Ref, pin Tier) (string, Tier, error) {
	lock := s.lockFor(ref)
	lock.RLock()
	defer lock.RUnlock()

	tiers := []Tier{TierUser, TierDefault}
	if pin != "" {
		tiers = []Tier{pin}
	}
	for _, tier := range tiers {
		f, err := s.readFile(s.path(tier, ref))
		if err != nil {
			return "", "", err
		}
		if f.exists {
			return f.content, tier, nil
		}
	}
	return "", "", ErrNotFound
}

// Save writes content as the user override for ref.
func (s *Store) Save(ctx context.Context, ref Ref, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref, err := NewRef(ref.Kind, ref.Name)
	if err != nil {
		return err
	}
	if _, err := parse(content); err != nil {
		return &ResolutionError{Ref: ref, Reason: err.Error(), Err: err}
	}

	lock := s.lockFor(ref)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(TierUser, ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	s.invalidate(path)
	telemetry.Info("template.saved", map[string]any{"kind": string(ref.Kind), "name": ref.Name, "bytes": len(content)})
	return nil
}

// Reset removes the user override for ref. Resetting a template that was
// never customized is not an error; the result reports it.
func (s *Store) Reset(ctx context.Context, ref Ref) (ResetResult, error) {
	if err := ctx.Err(); err != nil {
		return ResetResult{}, err
	}
	ref, err := NewRef(ref.Kind, ref.Name)
	if err != nil {
		return ResetResult{}, err
	}

	lock := s.lockFor(ref)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(TierUser, ref)
	err = os.Remove(path)
	s.invalidate(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ResetResult{Ref: ref, Customized: false}, nil
	case err != nil:
		return ResetResult{}, fmt.Errorf("remove template: %w", err)
	}
	telemetry.Info("template.reset", map[string]any{"kind": string(ref.Kind), "name": ref.Name})
	return ResetResult{Ref: ref, Customized: true}, nil
}

// List returns every template name of kind across both tiers, sorted by name.
func (s *Store) List(ctx context.Context, kind Kind) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	userNames, err := globNames(filepath.Join(s.cfg.UserDir, kind.Dir()), kind.Ext())
	if err != nil {
		return nil, err
	}
	defaultNames, err := globNames(filepath.Join(s.cfg.DefaultDir, kind.Dir()), kind.Ext())
	if err != nil {
		return nil, err
	}

	entries := map[string]*Entry{}
	for _, name := range defaultNames {
		entries[name] = &Entry{Name: name, Tier: TierDefault, HasDefault: true}
	}
	for _, name := range userNames {
		e, ok := entries[name]
		if !ok {
			e = &Entry{Name: name}
			entries[name] = e
		}
		e.Tier = TierUser
		e.Customized = true
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Detail returns the raw content of both tiers for ref. Placeholders are
// taken from the resolved template, or from the raw effective content when
// inheritance cannot be applied.
func (s *Store) Detail(ctx context.Context, ref Ref) (Detail, error) {
	if err := ctx.Err(); err != nil {
		return Detail{}, err
	}
	ref, err := NewRef(ref.Kind, ref.Name)
	if err != nil {
		return Detail{}, err
	}
	d, err := s.detail(ref)
	if err != nil || s.cfg.Placeholders == nil {
		return d, err
	}

	content := d.Content
	if doc, err := s.Resolve(ctx, ref); err == nil {
		content = doc.Content
	}
	placeholders, err := s.cfg.Placeholders(content)
	if err != nil {
		telemetry.Warn("template.placeholders_failed", map[string]any{"ref": ref.String(), "err": err})
	}
	d.Placeholders = placeholders
	return d, nil
}

func (s *Store) detail(ref Ref) (Detail, error) {
	lock := s.lockFor(ref)
	lock.RLock()
	defer lock.RUnlock()

	user, err := s.readFile(s.path(TierUser, ref))
	if err != nil {
		return Detail{}, err
	}
	def, err := s.readFile(s.path(TierDefault, ref))
	if err != nil {
		return Detail{}, err
	}
	if !user.exists && !def.exists {
		return Detail{}, &ResolutionError{Ref: ref, Missing: ref.Name, Reason: "not found", Err: ErrNotFound}
	}

	d := Detail{
		Ref:            ref,
		DefaultContent: def.content,
		UserContent:    user.content,
		Customized:     user.exists,
		HasDefault:     def.exists,
	}
	if user.exists {
		d.Tier, d.Content = TierUser, user.content
	} else {
		d.Tier, d.Content = TierDefault, def.content
	}
	return d, nil
}

func (s *Store) path(tier Tier, ref Ref) string {
	base := s.cfg.DefaultDir
	if tier == TierUser {
		base = s.cfg.UserDir
	}
	return filepath.Join(base, ref.Kind.Dir(), ref.Name)
}

func (s *Store) lockFor(ref Ref) *sync.RWMutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[ref]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[ref] = l
	}
	return l
}

func (s *Store) readFile(path string) (cachedFile, error) {
	if s.cache != nil {
		if f, ok := s.cache.Get(path); ok {
			return f, nil
		}
	}
	epoch := s.currentEpoch()
	data, err := os.ReadFile(path)
	var f cachedFile
	switch {
	case err == nil:
		f = cachedFile{content: string(data), exists: true}
	case errors.Is(err, fs.ErrNotExist):
		f = cachedFile{}
	default:
		return cachedFile{}, err
	}
	if s.afterRead != nil {
		s.afterRead(path)
	}
	if s.cache != nil {
		s.cacheMu.Lock()
		if s.epoch == epoch {
			s.cache.Add(path, f)
		}
		s.cacheMu.Unlock()
	}
	return f, nil
}

func (s *Store) currentEpoch() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.epoch
}

func (s *Store) invalidate(path string) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.epoch++
	s.cache.Remove(path)
	s.cacheMu.Unlock()
}

func (s *Store) purge() {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.epoch++
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func globNames(dir, ext string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "*"+ext)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}
