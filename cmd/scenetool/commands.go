package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/Faultbox/rayscene/internal/adapter"
	"github.com/Faultbox/rayscene/internal/assets"
	"github.com/Faultbox/rayscene/internal/config"
	"github.com/Faultbox/rayscene/internal/logger"
	"github.com/Faultbox/rayscene/pkg/engine"
	"github.com/Faultbox/rayscene/pkg/formats"
	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/sg"
	"github.com/Faultbox/rayscene/pkg/tachyon"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var errUsage = errors.New("missing arguments")

func formatBounds(b math.Box3) string {
	if b.Empty() {
		return "(empty)"
	}
	return fmt.Sprintf("(%g, %g, %g) - (%g, %g, %g)",
		b.Lower.X, b.Lower.Y, b.Lower.Z, b.Upper.X, b.Upper.Y, b.Upper.Z)
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool info <scene>...")
		return errUsage
	}

	lib := newLibrary(cfg)
	ctx := context.Background()
	for i, path := range fs.Args() {
		e, err := lib.Load(ctx, path)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Println()
		}
		if e.Tachyon != nil {
			printTachyonInfo(e)
		} else {
			printModelInfo(e)
		}
	}
	return nil
}

func printModelInfo(e *assets.Entry) {
	m := e.Model
	fmt.Printf("Scene:     %s\n", e.Path)
	fmt.Printf("Meshes:    %d\n", m.NumMeshes())
	fmt.Printf("Instances: %d\n", len(m.Instance))
	fmt.Printf("Triangles: %d unique, %d instanced\n", m.NumUniqueTriangles(), m.NumTriangleInstances())
	fmt.Printf("Materials: %d\n", len(m.Materials()))
	fmt.Printf("Cameras:   %d\n", len(m.Camera))
	fmt.Printf("Bounds:    %s\n", formatBounds(m.Bounds()))
	fmt.Printf("Loaded in: %v\n", e.Duration)

	if len(e.Skipped) == 0 {
		return
	}
	kinds := make([]string, 0, len(e.Skipped))
	for k := range e.Skipped {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	fmt.Println()
	fmt.Println("Skipped input:")
	for _, k := range kinds {
		fmt.Printf("  %-20s %d\n", k, e.Skipped[formats.SkipKind(k)])
	}
}

func printTachyonInfo(e *assets.Entry) {
	m := e.Tachyon
	fmt.Printf("Scene:        %s (tachyon)\n", e.Path)
	if m.Resolution[0] > 0 {
		fmt.Printf("Resolution:   %dx%d\n", m.Resolution[0], m.Resolution[1])
	}
	fmt.Printf("Spheres:      %d\n", len(m.Spheres))
	fmt.Printf("Cylinders:    %d\n", len(m.Cylinders))
	fmt.Printf("Triangles:    %d\n", m.NumTriangles())
	fmt.Printf("VertexArrays: %d\n", len(m.VertexArrays))
	fmt.Printf("Textures:     %d\n", len(m.Textures))
	fmt.Printf("Lights:       %d point, %d directional\n", len(m.PointLights), len(m.DirLights))
	if m.Camera != nil {
		c := m.Camera
		fmt.Printf("Camera:       at (%g, %g, %g) looking (%g, %g, %g)\n",
			c.Center.X, c.Center.Y, c.Center.Z, c.ViewDir.X, c.ViewDir.Y, c.ViewDir.Z)
	}
	fmt.Printf("Bounds:       %s\n", formatBounds(m.Bounds()))
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	graph := fs.Bool("graph", false, "Build and commit a scene graph instead of direct engine objects")
	instancing := fs.Bool("instancing", false, "Force engine instancing")
	noInstancing := fs.Bool("no-instancing", false, "Force baking instance transforms")
	maxObjects := fs.Int("max", 0, "Only consider the first N instances (0 = all)")
	alpha := fs.Bool("alpha", false, "Use alpha aware triangle meshes")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool import [-graph] <scene>...")
		return errUsage
	}

	opts, err := cfg.AdapterOptions()
	if err != nil {
		return err
	}
	opts.ForceInstancing = opts.ForceInstancing || *instancing
	opts.ForceNoInstancing = opts.ForceNoInstancing || *noInstancing
	opts.Alpha = opts.Alpha || *alpha
	if *maxObjects > 0 {
		opts.MaxObjects = *maxObjects
	}

	lib := newLibrary(cfg)
	ctx := context.Background()
	for _, path := range fs.Args() {
		e, err := lib.Load(ctx, path)
		if err != nil {
			return err
		}
		rec := engine.NewRecorder()
		log := logger.With(zap.String("file", e.Path))

		switch {
		case e.Tachyon != nil:
			sc, err := adapter.NewTachyonParser(rec, opts.Renderer, log).Specify(ctx, e.Tachyon)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s: %d triangles, %d lights\n", path, sc.NumTriangles, len(sc.Lights))
		case *graph:
			if err := commitGraph(ctx, rec, log, opts.Renderer, e); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		default:
			p := adapter.NewTriangleMeshParser(rec, opts, log)
			if _, err := p.Specify(ctx, e.Model); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for typ, n := range p.MaterialWarnings() {
				fmt.Printf("%s: material type %q replaced %d times\n", path, typ, n)
			}
		}
		printEngineObjects(path, rec)
	}
	return nil
}

// commitGraph builds a renderer node over the imported model and commits
// it to dev.
func commitGraph(ctx context.Context, dev engine.Device, log *zap.Logger, rendererType string, e *assets.Entry) error {
	nodes := &sg.NodeList{}
	world, err := sg.BuildWorld(nodes, "world", e.Model)
	if err != nil {
		return err
	}
	r := sg.NewRenderer()
	r.Add(world)
	r.Child("rendererType").SetValue(rendererType)
	if err := r.Verify(); err != nil {
		return err
	}
	if err := r.Commit(ctx, sg.NewRenderContext(dev, log)); err != nil {
		return err
	}
	log.Debug("scene graph committed",
		zap.Int("nodes", nodes.Len()),
		zap.String("bounds", formatBounds(sg.WorldBounds(world))))
	return nil
}

func printEngineObjects(path string, rec *engine.Recorder) {
	kinds := []string{
		engine.KindModel, engine.KindGeometry, engine.KindInstance, engine.KindMaterial,
		engine.KindTexture, engine.KindLight, engine.KindRenderer, engine.KindData,
	}
	var parts []string
	for _, k := range kinds {
		if n := rec.Count(k); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	fmt.Printf("%s: engine objects: %s\n", path, strings.Join(parts, ", "))
	for _, err := range rec.Errors() {
		fmt.Fprintf(os.Stderr, "%s: engine misuse: %v\n", path, err)
	}
}

func cmdTach2XML(args []string) error {
	fs := flag.NewFlagSet("tach2xml", flag.ExitOnError)
	depth := fs.Int("depth", 0, "Sphere subdivision depth (0 = config value)")
	segments := fs.Int("segments", 0, "Cylinder segments (0 = config value)")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool tach2xml <in.tach> [out]")
		return errUsage
	}

	in := fs.Arg(0)
	var out string
	if fs.NArg() > 1 {
		out = fs.Arg(1)
	} else {
		out = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	}
	if !strings.ContainsRune(out, filepath.Separator) && !strings.HasPrefix(out, "~") {
		out = filepath.Join(cfg.Export.Dir, out)
	}
	if out, err = homedir.Expand(out); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}

	tess, err := cfg.TessellationOptions()
	if err != nil {
		return err
	}
	if *depth > 0 {
		tess.SphereDepth = *depth
	}
	if *segments > 0 {
		tess.CylinderSegments = *segments
	}

	m, err := tachyon.ImportFile(in, tachyon.WithLogger(logger.Named("tachyon")))
	if err != nil {
		return err
	}
	stats, err := tachyon.Export(m, out, tess)
	if err != nil {
		return err
	}
	fmt.Printf("Exported: %s.xml, %s.bin (%d meshes, %d triangles, %d bytes)\n",
		out, out, stats.Meshes, stats.Triangles, stats.BinBytes)
	return nil
}

func cmdAnimate(args []string) error {
	fs := flag.NewFlagSet("animate", flag.ExitOnError)
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool animate <frames.astl>")
		return errUsage
	}

	diag := formats.NewDiagnostics(logger.Named("stl"), nil)
	frames, err := formats.ImportSTLAnimation(context.Background(), fs.Arg(0),
		formats.WithLogger(logger.Named("stl")),
		formats.WithDiagnostics(diag),
		formats.WithWorkers(cfg.Import.Workers))
	if err != nil {
		return err
	}
	if n := diag.TotalSkipped(); n > 0 && cfg.Import.Strict {
		return fmt.Errorf("%w: %d units", assets.ErrSkippedInput, n)
	}

	total := 0
	for i, f := range frames {
		n := f.NumTriangleInstances()
		total += n
		fmt.Printf("frame %4d: %8d triangles  %s\n", i, n, formatBounds(f.Bounds()))
	}
	fmt.Printf("\n%d frames, %d triangles\n", len(frames), total)
	return nil
}

func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	debounce := fs.Duration("debounce", assets.DefaultDebounce, "Wait this long for file events to settle")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool watch <scene>...")
		return errUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib := newLibrary(cfg)
	for _, path := range fs.Args() {
		e, err := lib.Load(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d triangles\n", e.Path, e.NumTriangles())
	}

	logger.Info("watching for changes", zap.Strings("scenes", lib.Paths()))
	return lib.Watch(ctx, *debounce, func(c assets.Change) {
		if c.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: reload failed: %v\n", c.Path, c.Err)
			return
		}
		fmt.Printf("%s: reloaded, %d triangles in %v\n", c.Path, c.Entry.NumTriangles(), c.Entry.Duration)
	})
}

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	save := fs.String("save", "", "Write the effective configuration to this path (.yaml or .toml)")
	saveDefault := fs.Bool("save-default", false, "Write the effective configuration to the user config directory")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}

	switch {
	case *save != "":
		if err := cfg.SaveTo(*save); err != nil {
			return err
		}
		fmt.Printf("Saved: %s\n", *save)
	case *saveDefault:
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved: %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	default:
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	}
	return nil
}
