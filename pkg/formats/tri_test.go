package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
)

// createTestTri writes n triangles in the given layout. Vertex v of triangle
// i is (i, v, 0); xyzs records carry a scalar of 42.
func createTestTri(n int, variant TriVariant) []byte {
	buf := new(bytes.Buffer)
	for i := 0; i < n; i++ {
		for v := 0; v < 3; v++ {
			binary.Write(buf, binary.LittleEndian, [3]float32{float32(i), float32(v), 0})
			if variant == TriXYZS {
				binary.Write(buf, binary.LittleEndian, float32(42))
			}
		}
	}
	return buf.Bytes()
}

func TestDetectTriVariant(t *testing.T) {
	tests := []struct {
		path string
		want TriVariant
	}{
		{"mesh.tri", TriXYZ},
		{"mesh.xyz", TriXYZ},
		{"mesh.xyzs", TriXYZS},
		{"dir/mesh_xyzs.tri", TriXYZS},
		{"MESH.XYZS", TriXYZS},
	}
	for _, tt := range tests {
		if got := DetectTriVariant(tt.path); got != tt.want {
			t.Errorf("DetectTriVariant(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestParseTri(t *testing.T) {
	for _, variant := range []TriVariant{TriXYZ, TriXYZS} {
		t.Run(variant.String(), func(t *testing.T) {
			model := scene.NewModel()
			data := createTestTri(3, variant)
			if err := ParseTri(model, bytes.NewReader(data), "m.tri", variant); err != nil {
				t.Fatalf("ParseTri failed: %v", err)
			}
			mesh := model.Mesh[0]
			if len(mesh.Triangle) != 3 || len(mesh.Position) != 9 {
				t.Fatalf("got %d triangles / %d positions, want 3/9", len(mesh.Triangle), len(mesh.Position))
			}
			if mesh.Position[7] != (math.Vec3{X: 2, Y: 1}) {
				t.Errorf("position 7 = %v, want (2,1,0)", mesh.Position[7])
			}
			if kd := mesh.Material.Vec3("Kd", math.Vec3{}); kd != math.Splat(0.7) {
				t.Errorf("Kd = %v, want 0.7 gray", kd)
			}
		})
	}
}

func TestParseTri_PartialTriangle(t *testing.T) {
	data := createTestTri(2, TriXYZ)
	data = append(data, make([]byte, 20)...)

	diag := NewDiagnostics(nil, nil)
	model := scene.NewModel()
	if err := ParseTri(model, bytes.NewReader(data), "m.tri", TriXYZ, WithDiagnostics(diag)); err != nil {
		t.Fatalf("ParseTri failed: %v", err)
	}
	if got := model.NumUniqueTriangles(); got != 2 {
		t.Errorf("expected 2 triangles, got %d", got)
	}
	if diag.Skipped(SkipPartialTriangle) != 1 {
		t.Errorf("expected a partial triangle skip, got %d", diag.Skipped(SkipPartialTriangle))
	}
}

func TestParseTri_Empty(t *testing.T) {
	err := ParseTri(scene.NewModel(), bytes.NewReader(nil), "e.tri", TriXYZ)
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
}

func TestImportTri_VariantFromName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "cloud.xyzs"), string(createTestTri(4, TriXYZS)))

	model := scene.NewModel()
	if err := ImportTri(model, path); err != nil {
		t.Fatalf("ImportTri failed: %v", err)
	}
	if got := model.NumUniqueTriangles(); got != 4 {
		t.Errorf("expected 4 triangles, got %d", got)
	}
}
