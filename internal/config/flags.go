package config

import "flag"

// Flags are the command line overrides shared by every subcommand.
type Flags struct {
	Config   string
	Debug    bool
	LogFile  string
	Workers  int
	Strict   bool
	Renderer string
}

// RegisterFlags defines the shared flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Also write logs to this file")
	fs.IntVar(&f.Workers, "workers", 0, "Parallel imports (0 = config value)")
	fs.BoolVar(&f.Strict, "strict", false, "Fail on recoverable import problems")
	fs.StringVar(&f.Renderer, "renderer", "", "Renderer type materials are created for")
	return f
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.Path = f.LogFile
	}
	if f.Workers > 0 {
		cfg.Import.Workers = f.Workers
	}
	if f.Strict {
		cfg.Import.Strict = true
	}
	if f.Renderer != "" {
		cfg.Renderer.Renderer = f.Renderer
	}
}
