package assets

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNothingToWatch is returned when a watcher is created for a library
// without cached scenes.
var ErrNothingToWatch = errors.New("no scenes loaded to watch")

// DefaultDebounce is how long a watcher waits for a burst of file events
// to settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Change reports one reload triggered by a file change. Err is set when the
// scene could not be imported again; the stale entry is then dropped.
type Change struct {
	Path  string
	Entry *Entry
	Err   error
}

// Watcher reloads library scenes when their files, or files next to them
// such as material libraries and textures, change.
type Watcher struct {
	lib      *Library
	fw       *fsnotify.Watcher
	debounce time.Duration
	dirs     map[string]bool
}

// NewWatcher watches the directories of every cached scene. Events are
// buffered until Run is called.
func (l *Library) NewWatcher(debounce time.Duration) (*Watcher, error) {
	paths := l.Paths()
	if len(paths) == 0 {
		return nil, ErrNothingToWatch
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{lib: l, fw: fw, debounce: debounce, dirs: make(map[string]bool)}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Watch watches every cached scene until ctx is done, calling onChange for
// each reload.
func (l *Library) Watch(ctx context.Context, debounce time.Duration, onChange func(Change)) error {
	w, err := l.NewWatcher(debounce)
	if err != nil {
		return err
	}
	return w.Run(ctx, onChange)
}

// Add watches the directory holding path.
func (w *Watcher) Add(path string) error {
	key, err := Key(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(key)
	if w.dirs[dir] {
		return nil
	}
	if err := w.fw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	w.lib.log.Debug("watching directory", zap.String("dir", dir))
	return nil
}

// Dirs returns the watched directories in sorted order.
func (w *Watcher) Dirs() []string {
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Close stops watching. Run closes the watcher itself when it returns.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func(Change)) error {
	defer w.fw.Close()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(w.debounce)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.lib.log.Warn("file watcher error", zap.Error(err))
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			w.reload(ctx, changed, onChange)
		}
	}
}

// affected returns the cached scenes to reload for the changed files. A
// changed scene reloads itself; any other file reloads every scene in its
// directory.
func (w *Watcher) affected(changed []string) (scenes []string, dependency bool) {
	cached := w.lib.Paths()
	set := make(map[string]bool)
	for _, name := range changed {
		key, err := Key(name)
		if err != nil {
			continue
		}
		if _, ok := w.lib.cache.Peek(key); ok {
			set[key] = true
			continue
		}
		if Supported(key) {
			// A new scene file nobody loaded.
			continue
		}
		dependency = true
		dir := filepath.Dir(key)
		for _, p := range cached {
			if filepath.Dir(p) == dir {
				set[p] = true
			}
		}
	}
	for p := range set {
		scenes = append(scenes, p)
	}
	sort.Strings(scenes)
	return scenes, dependency
}

func (w *Watcher) reload(ctx context.Context, changed []string, onChange func(Change)) {
	scenes, dependency := w.affected(changed)
	if dependency {
		w.lib.textures.Cache().Clear()
	}
	for _, p := range scenes {
		e, err := w.lib.Reload(ctx, p)
		if err != nil {
			w.lib.log.Warn("scene reload failed", zap.String("file", p), zap.Error(err))
		}
		if onChange != nil {
			onChange(Change{Path: p, Entry: e, Err: err})
		}
	}
}
