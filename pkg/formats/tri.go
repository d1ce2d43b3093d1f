package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
)

// TriVariant selects the per-vertex layout of a .tri stream.
type TriVariant int

// .tri layouts.
const (
	TriXYZ  TriVariant = 3 // x y z
	TriXYZS TriVariant = 4 // x y z scalar; the scalar is discarded
)

// String returns the variant name.
func (v TriVariant) String() string {
	switch v {
	case TriXYZ:
		return "xyz"
	case TriXYZS:
		return "xyzs"
	default:
		return fmt.Sprintf("TriVariant(%d)", int(v))
	}
}

// DetectTriVariant picks the layout from a file name: names ending in
// "xyzs" (for example "mesh.xyzs" or "mesh_xyzs.tri") use 4 floats per
// vertex, everything else 3.
func DetectTriVariant(path string) TriVariant {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, ".tri")
	if strings.HasSuffix(base, "xyzs") {
		return TriXYZS
	}
	return TriXYZ
}

// ParseTri reads raw little-endian float triangles until EOF into one mesh
// with a shared 0.7 gray material. A trailing partial triangle is skipped.
func ParseTri(model *scene.Model, r io.Reader, name string, variant TriVariant, opts ...Option) error {
	o := buildOptions(opts)

	stride := int(variant) * 4
	buf := make([]byte, 3*stride)
	br := bufio.NewReaderSize(r, 1<<16)

	h := scene.NewImportHelper(model)
	h.Begin(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), scene.NewMaterial("tri"))
	count := 0
	for {
		n, err := io.ReadFull(br, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			o.diag.Skip(Skip{File: name, Kind: SkipPartialTriangle,
				Detail: fmt.Sprintf("%d trailing bytes after %d triangles", n, count)})
			break
		}
		if err != nil {
			return parseErr(name, 0, fmt.Errorf("reading triangle %d: %w", count, err))
		}

		var idx [3]int32
		for v := 0; v < 3; v++ {
			rec := buf[v*stride:]
			idx[v] = h.AddVertex(math.Vec3{
				X: readFloat32(rec),
				Y: readFloat32(rec[4:]),
				Z: readFloat32(rec[8:]),
			})
		}
		h.AddTriangle(math.Vec3i{X: idx[0], Y: idx[1], Z: idx[2]})
		count++
	}
	if count == 0 {
		return parseErr(name, 0, ErrEmptyFile)
	}
	h.Finalize()
	return nil
}

// ImportTri reads a .tri file, inferring the variant from its name.
func ImportTri(model *scene.Model, path string, opts ...Option) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening TRI file: %w", err)
	}
	defer f.Close()
	return ParseTri(model, f, path, DetectTriVariant(path), opts...)
}
