// Package formats provides parsers for scene and geometry file formats.
//
// Every importer appends to a scene.Model. Fatal problems are returned as
// errors wrapping one of the package's sentinel errors, usually inside a
// *ParseError that carries the file and line. Recoverable problems are
// reported to a Diagnostics and skipped.
package formats

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
)

// Extensions lists the file extensions Import understands.
var Extensions = []string{"obj", "stl", "astl", "tri", "xyz", "xyzs", "x3d", "xml", "vtk", "off"}

func fileExt(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Supported reports whether Import accepts path.
func Supported(path string) bool {
	ext := fileExt(path)
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Import loads path into model, choosing the parser by extension.
func Import(ctx context.Context, model *scene.Model, path string, opts ...Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch ext := fileExt(path); ext {
	case "obj":
		return ImportOBJ(model, path, opts...)
	case "stl":
		return ImportSTL(model, path, opts...)
	case "astl":
		frames, err := ImportSTLAnimation(ctx, path, opts...)
		if err != nil {
			return err
		}
		for _, f := range frames {
			model.Append(f)
		}
		return nil
	case "tri", "xyz", "xyzs":
		return ImportTri(model, path, opts...)
	case "x3d":
		return ImportX3D(model, path, opts...)
	case "xml":
		return ImportRIVL(model, path, opts...)
	case "vtk", "off":
		return importVolumeSurface(model, path, opts...)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// importVolumeSurface adds the surface of a volume file as one mesh.
func importVolumeSurface(model *scene.Model, path string, opts ...Option) error {
	v, err := ImportVolume(path, opts...)
	if err != nil {
		return err
	}
	mesh := v.SurfaceMesh(filepath.Base(path))
	if mesh == nil {
		return fmt.Errorf("%w: %s has no surface or tetrahedral cells", ErrEmptyFile, path)
	}
	model.AddMesh(mesh, math.Identity())
	return nil
}
