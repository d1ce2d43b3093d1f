// scenetool is a CLI utility for importing, inspecting and converting
// ray tracing scenes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/rayscene/internal/assets"
	"github.com/Faultbox/rayscene/internal/config"
	"github.com/Faultbox/rayscene/internal/logger"
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"go.uber.org/zap"
)

var commands = []string{"info", "import", "tach2xml", "animate", "watch", "config", "help"}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args)
	case "import":
		err = cmdImport(args)
	case "tach2xml":
		err = cmdTach2XML(args)
	case "animate":
		err = cmdAnimate(args)
	case "watch":
		err = cmdWatch(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		if s := suggest(command); s != "" {
			fmt.Fprintf(os.Stderr, "Did you mean %q?\n", s)
		}
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// suggest returns the known command closest to cmd, if any is close.
func suggest(cmd string) string {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	best, bestScore := "", 0.5
	for _, c := range commands {
		if s := strutil.Similarity(cmd, c, lev); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func printUsage() {
	fmt.Println(`scenetool - ray tracing scene utility

Usage:
  scenetool <command> [options]

Commands:
  info <scene>...                   Show scene statistics
  import <scene>...                 Import scenes and hand them to the engine
  tach2xml <in.tach> [out]          Tessellate a Tachyon scene to XML + bin
  animate <frames.astl>             Import an STL animation list
  watch <scene>...                  Reload scenes whenever their files change
  config [-save path]               Print or save the effective configuration

Supported scenes: obj, stl, astl, tri, xyz, xyzs, x3d, xml (RIVL), vtk, off, tach

Shared options:
  -config path   -debug   -log-file path   -workers n   -strict   -renderer type

Examples:
  scenetool info bunny.obj
  scenetool import -graph sponza.obj
  scenetool tach2xml -depth 3 molecule.tach out/molecule
  scenetool watch -debug scene.x3d`)
}

// setup parses the shared and command flags, loads the configuration and
// initializes logging.
func setup(fs *flag.FlagSet, args []string) (*config.Config, error) {
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	fileCfg, err := cfg.FileConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, cfg.Logging.Console); err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded",
		zap.String("renderer", cfg.Renderer.Renderer),
		zap.Int("workers", cfg.Import.Workers))
	return cfg, nil
}

func newLibrary(cfg *config.Config) *assets.Library {
	return assets.NewLibrary(assets.Options{
		Workers: cfg.Import.Workers,
		Strict:  cfg.Import.Strict,
		Log:     logger.Named("assets"),
	})
}
