package templates

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"applique-backend/internal/shared/telemetry"
)

type watcher struct {
	fs     *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start begins invalidating cached files on external edits when HotReload
// and caching are both enabled. It is a no-op otherwise.
func (s *Store) Start(ctx context.Context) error {
	if !s.cfg.HotReload || s.cache == nil || s.watcher != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, base := range []string{s.cfg.UserDir, s.cfg.DefaultDir} {
		for _, k := range Kinds {
			dir := filepath.Join(base, k.Dir())
			if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err := fsw.Add(dir); err != nil {
				fsw.Close()
				return err
			}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &watcher{fs: fsw, cancel: cancel, done: make(chan struct{})}
	s.watcher = w
	go s.watch(ctx, w)
	telemetry.Info("template.watch.started", map[string]any{"user_dir": s.cfg.UserDir, "default_dir": s.cfg.DefaultDir})
	return nil
}

// Close stops the hot reload watcher.
func (s *Store) Close() error {
	w := s.watcher
	if w == nil {
		return nil
	}
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.fs.Close()
		<-w.done
	})
	return err
}

func (s *Store) watch(ctx context.Context, w *watcher) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.invalidate(event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			telemetry.Warn("template.watch.error", map[string]any{"err": err})
			// a missed event may leave stale entries behind
			s.purge()
		}
	}
}
