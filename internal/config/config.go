// Package config handles scenetool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/rayscene/internal/adapter"
	"github.com/Faultbox/rayscene/internal/logger"
	"github.com/Faultbox/rayscene/pkg/tachyon"
	"github.com/jinzhu/copier"
)

// EnvPrefix prefixes every environment override, e.g.
// RAYSCENE_LOGGING_LEVEL or RAYSCENE_IMPORT_WORKERS.
const EnvPrefix = "RAYSCENE"

// Config holds all tool settings.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
	Import       ImportConfig       `yaml:"import" toml:"import"`
	Tessellation TessellationConfig `yaml:"tessellation" toml:"tessellation"`
	Renderer     RendererConfig     `yaml:"renderer" toml:"renderer"`
	Export       ExportConfig       `yaml:"export" toml:"export"`
}

// LoggingConfig holds logging settings. The file fields mirror
// logger.FileConfig.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level" split_words:"true"`
	Path       string `yaml:"log_file" toml:"log_file" split_words:"true"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" split_words:"true"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" split_words:"true"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" split_words:"true"`
	Compress   bool   `yaml:"compress" toml:"compress" split_words:"true"`
	Console    bool   `yaml:"console" toml:"console" split_words:"true"`
}

// ImportConfig holds scene import settings.
type ImportConfig struct {
	// Workers bounds batch imports such as STL animations; 0 uses all CPUs.
	Workers int `yaml:"workers" toml:"workers" split_words:"true"`
	// Strict turns recoverable import problems into a failed command.
	Strict bool `yaml:"strict" toml:"strict" split_words:"true"`
}

// TessellationConfig controls how Tachyon spheres and cylinders become
// triangles on export.
type TessellationConfig struct {
	SphereDepth      int `yaml:"sphere_depth" toml:"sphere_depth" split_words:"true"`
	CylinderSegments int `yaml:"cylinder_segments" toml:"cylinder_segments" split_words:"true"`
}

// RendererConfig holds the settings handed to the engine adapter.
type RendererConfig struct {
	Renderer          string `yaml:"type" toml:"type" split_words:"true"`
	GeometryType      string `yaml:"geometry_type" toml:"geometry_type" split_words:"true"`
	Alpha             bool   `yaml:"alpha" toml:"alpha" split_words:"true"`
	NoDefaultMaterial bool   `yaml:"no_default_material" toml:"no_default_material" split_words:"true"`
	MaxObjects        int    `yaml:"max_objects" toml:"max_objects" split_words:"true"`
	ForceInstancing   bool   `yaml:"force_instancing" toml:"force_instancing" split_words:"true"`
	ForceNoInstancing bool   `yaml:"force_no_instancing" toml:"force_no_instancing" split_words:"true"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	// Dir is where exported files go when the output has no directory.
	Dir string `yaml:"dir" toml:"dir" split_words:"true"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	fileCfg := logger.DefaultFileConfig("")
	tess := tachyon.DefaultTessellation()
	ad := adapter.DefaultOptions()
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  fileCfg.MaxSizeMB,
			MaxBackups: fileCfg.MaxBackups,
			MaxAgeDays: fileCfg.MaxAgeDays,
			Compress:   fileCfg.Compress,
			Console:    true,
		},
		Tessellation: TessellationConfig{
			SphereDepth:      tess.SphereDepth,
			CylinderSegments: tess.CylinderSegments,
		},
		Renderer: RendererConfig{
			Renderer:     ad.Renderer,
			GeometryType: ad.GeometryType,
		},
		Export: ExportConfig{Dir: "."},
	}
}

// FileConfig returns the logger file settings.
func (c *Config) FileConfig() (logger.FileConfig, error) {
	var out logger.FileConfig
	if err := copier.Copy(&out, &c.Logging); err != nil {
		return out, fmt.Errorf("logging config: %w", err)
	}
	return out, nil
}

// TessellationOptions returns the tessellation settings.
func (c *Config) TessellationOptions() (tachyon.TessellationOptions, error) {
	var out tachyon.TessellationOptions
	if err := copier.Copy(&out, &c.Tessellation); err != nil {
		return out, fmt.Errorf("tessellation config: %w", err)
	}
	return out, nil
}

// AdapterOptions returns the engine adapter settings.
func (c *Config) AdapterOptions() (adapter.Options, error) {
	var out adapter.Options
	if err := copier.Copy(&out, &c.Renderer); err != nil {
		return out, fmt.Errorf("renderer config: %w", err)
	}
	return out, nil
}

// Validate checks settings that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Import.Workers < 0 {
		return fmt.Errorf("import.workers must not be negative, got %d", c.Import.Workers)
	}
	if c.Renderer.ForceInstancing && c.Renderer.ForceNoInstancing {
		return adapter.ErrConflictingInstancing
	}
	return nil
}
