package formats

import (
	"runtime"

	"go.uber.org/zap"
)

// Option configures an import.
type Option func(*options)

type options struct {
	log      *zap.Logger
	diag     *Diagnostics
	textures *TextureLoader
	workers  int
}

// WithLogger sets the logger used for diagnostics created by the import.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithDiagnostics routes recoverable problems to d.
func WithDiagnostics(d *Diagnostics) Option {
	return func(o *options) { o.diag = d }
}

// WithTextureLoader shares a texture loader (and its cache) across imports.
func WithTextureLoader(l *TextureLoader) Option {
	return func(o *options) { o.textures = l }
}

// WithWorkers bounds the parallelism of batch imports.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.diag == nil {
		o.diag = NewDiagnostics(o.log, nil)
	}
	if o.textures == nil {
		o.textures = NewTextureLoader()
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// rebuild turns resolved options back into a list, for nested imports that
// must share diagnostics and caches.
func (o *options) rebuild() []Option {
	return []Option{
		WithLogger(o.log),
		WithDiagnostics(o.diag),
		WithTextureLoader(o.textures),
		WithWorkers(o.workers),
	}
}
