// Package assets handles scene loading and caching for the tools.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Faultbox/rayscene/pkg/formats"
	"github.com/Faultbox/rayscene/pkg/scene"
	"github.com/Faultbox/rayscene/pkg/tachyon"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// ErrSkippedInput is returned by a strict library when an import skipped
// part of its input.
var ErrSkippedInput = errors.New("input skipped during import")

// Entry is one loaded scene. Exactly one of Model and Tachyon is set.
type Entry struct {
	Path    string
	Model   *scene.Model
	Tachyon *tachyon.Model
	// Skipped counts recoverable problems per kind.
	Skipped  map[formats.SkipKind]int
	Loaded   time.Time
	Duration time.Duration
}

// NumTriangles returns the triangle count of the loaded scene, counting
// instanced triangles once per instance.
func (e *Entry) NumTriangles() int {
	if e.Tachyon != nil {
		return e.Tachyon.NumTriangles()
	}
	return e.Model.NumTriangleInstances()
}

// Options configure a Library.
type Options struct {
	Workers int
	Strict  bool
	Log     *zap.Logger
}

// Library imports scene files and keeps them cached by absolute path.
// Textures are shared across all scenes it loads.
type Library struct {
	opts     Options
	log      *zap.Logger
	textures *formats.TextureLoader
	cache    *Cache
	// loadMu serializes imports of the same library so a path is never
	// imported twice concurrently.
	loadMu sync.Mutex
}

// NewLibrary creates an empty library.
func NewLibrary(opts Options) *Library {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{
		opts:     opts,
		log:      log,
		textures: formats.NewTextureLoader(),
		cache:    NewCache(),
	}
}

// Key returns the cache key for path: absolute, cleaned, with ~ expanded.
func Key(path string) (string, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// IsTachyon reports whether path names a Tachyon scene.
func IsTachyon(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".tach")
}

// Supported reports whether the library can load path.
func Supported(path string) bool {
	return IsTachyon(path) || formats.Supported(path)
}

// Load returns the cached scene for path, importing it on first use.
func (l *Library) Load(ctx context.Context, path string) (*Entry, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}
	if e, ok := l.cache.Get(key); ok {
		return e, nil
	}

	l.loadMu.Lock()
	defer l.loadMu.Unlock()
	if e, ok := l.cache.Peek(key); ok {
		return e, nil
	}
	e, err := l.load(ctx, key)
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, e)
	return e, nil
}

// Reload imports path again, replacing any cached entry. On failure the
// stale entry is dropped.
func (l *Library) Reload(ctx context.Context, path string) (*Entry, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}
	l.loadMu.Lock()
	defer l.loadMu.Unlock()
	e, err := l.load(ctx, key)
	if err != nil {
		l.cache.Delete(key)
		return nil, err
	}
	l.cache.Set(key, e)
	return e, nil
}

func (l *Library) load(ctx context.Context, key string) (*Entry, error) {
	start := time.Now()
	e := &Entry{Path: key, Skipped: make(map[formats.SkipKind]int)}
	log := l.log.With(zap.String("file", key))

	if IsTachyon(key) {
		tm, err := tachyon.ImportFile(key, tachyon.WithLogger(log))
		if err != nil {
			return nil, err
		}
		e.Tachyon = tm
	} else {
		var mu sync.Mutex
		diag := formats.NewDiagnostics(log, func(s formats.Skip) {
			mu.Lock()
			e.Skipped[s.Kind]++
			mu.Unlock()
		})
		model := scene.NewModel()
		err := formats.Import(ctx, model, key,
			formats.WithLogger(log),
			formats.WithDiagnostics(diag),
			formats.WithTextureLoader(l.textures),
			formats.WithWorkers(l.opts.Workers))
		if err != nil {
			return nil, err
		}
		e.Model = model
		if n := diag.TotalSkipped(); n > 0 && l.opts.Strict {
			return nil, fmt.Errorf("%w: %d units in %s", ErrSkippedInput, n, key)
		}
	}

	e.Loaded = time.Now()
	e.Duration = e.Loaded.Sub(start)
	log.Info("scene loaded",
		zap.Int("triangles", e.NumTriangles()),
		zap.Duration("took", e.Duration))
	return e, nil
}

// Invalidate drops path from the cache and reports whether it was cached.
func (l *Library) Invalidate(path string) bool {
	key, err := Key(path)
	if err != nil {
		return false
	}
	return l.cache.Delete(key)
}

// Paths returns the cached scene paths in sorted order.
func (l *Library) Paths() []string {
	keys := l.cache.Keys()
	sort.Strings(keys)
	return keys
}

// Stats returns scene cache statistics.
func (l *Library) Stats() (hits, misses int) {
	return l.cache.Stats()
}

// Textures returns the texture loader shared by all imports.
func (l *Library) Textures() *formats.TextureLoader {
	return l.textures
}

// Clear empties the scene and texture caches.
func (l *Library) Clear() {
	l.cache.Clear()
	l.textures.Cache().Clear()
}

// Cache is a simple in-memory cache for loaded scenes.
type Cache struct {
	data map[string]*Entry
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*Entry),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e, ok
}

// Peek retrieves an item without touching the statistics.
func (c *Cache) Peek(key string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	return e, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = e
}

// Delete removes an item and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	delete(c.data, key)
	return ok
}

// Keys returns the cached keys in no particular order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	return keys
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*Entry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
