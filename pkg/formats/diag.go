package formats

import (
	"sync"

	"go.uber.org/zap"
)

// SkipKind classifies a recoverable problem.
type SkipKind string

// Recoverable problems an importer may skip over.
const (
	SkipMalformedLine    SkipKind = "malformed-line"
	SkipNaNVertex        SkipKind = "nan-vertex"
	SkipBadIndex         SkipKind = "bad-index"
	SkipDegenerateFace   SkipKind = "degenerate-face"
	SkipUnknownNode      SkipKind = "unknown-node"
	SkipUnknownMaterial  SkipKind = "unknown-material"
	SkipMissingFile      SkipKind = "missing-file"
	SkipTexture          SkipKind = "texture"
	SkipPartialTriangle  SkipKind = "partial-triangle"
	SkipUnsupportedCell  SkipKind = "unsupported-cell"
	SkipOrphanDefinition SkipKind = "orphan-definition"
)

// Skip describes one skipped unit of input.
type Skip struct {
	File   string
	Line   int
	Kind   SkipKind
	Detail string
}

// WarningTracker remembers which warnings were already issued. It is safe for
// concurrent use.
type WarningTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewWarningTracker creates an empty tracker.
func NewWarningTracker() *WarningTracker {
	return &WarningTracker{seen: make(map[string]struct{})}
}

// WarnOnce reports true the first time key is seen.
func (w *WarningTracker) WarnOnce(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct keys seen.
func (w *WarningTracker) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Diagnostics collects recoverable problems for one import. Skips are counted,
// forwarded to OnSkip if set, and logged at debug level. Warnings keyed by
// WarnOnce are logged once.
type Diagnostics struct {
	OnSkip func(Skip)

	log    *zap.Logger
	warned *WarningTracker

	mu     sync.Mutex
	counts map[SkipKind]int
}

// NewDiagnostics creates a diagnostics sink. log may be nil.
func NewDiagnostics(log *zap.Logger, onSkip func(Skip)) *Diagnostics {
	if log == nil {
		log = zap.NewNop()
	}
	return &Diagnostics{
		OnSkip: onSkip,
		log:    log,
		warned: NewWarningTracker(),
		counts: make(map[SkipKind]int),
	}
}

// Skip records a skipped unit.
func (d *Diagnostics) Skip(s Skip) {
	d.mu.Lock()
	d.counts[s.Kind]++
	cb := d.OnSkip
	d.mu.Unlock()

	d.log.Debug("skipped input",
		zap.String("file", s.File),
		zap.Int("line", s.Line),
		zap.String("kind", string(s.Kind)),
		zap.String("detail", s.Detail))
	if cb != nil {
		cb(s)
	}
}

// WarnOnce logs msg at warn level the first time key is seen and reports
// whether it did.
func (d *Diagnostics) WarnOnce(key, msg string, fields ...zap.Field) bool {
	if !d.warned.WarnOnce(key) {
		return false
	}
	d.log.Warn(msg, fields...)
	return true
}

// Skipped returns how many units of the given kind were skipped.
func (d *Diagnostics) Skipped(kind SkipKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[kind]
}

// TotalSkipped returns the number of skipped units of any kind.
func (d *Diagnostics) TotalSkipped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.counts {
		n += c
	}
	return n
}

// Logger returns the logger diagnostics are written to.
func (d *Diagnostics) Logger() *zap.Logger {
	return d.log
}
