package tachyon

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
)

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel()
	if m.Resolution != [2]int{-1, -1} {
		t.Errorf("resolution = %v, want [-1 -1]", m.Resolution)
	}
	if m.BackgroundColor != math.Splat(0.1) {
		t.Errorf("background = %v, want 0.1", m.BackgroundColor)
	}
	if !m.Empty() {
		t.Error("new model should be empty")
	}
	if m.Camera != nil {
		t.Error("new model should have no camera")
	}
	cam := m.CameraOrCreate()
	if cam.UpDir != (math.Vec3{Y: 1}) || cam.ViewDir != (math.Vec3{Z: 1}) {
		t.Errorf("unexpected default camera %+v", cam)
	}
	if m.CameraOrCreate() != cam {
		t.Error("CameraOrCreate should return the same camera")
	}
}

func TestModel_BoundsEncloseEverything(t *testing.T) {
	m := NewModel()
	m.AddSphere(Sphere{Center: math.Vec3{X: 5}, Radius: 2})
	m.AddCylinder(Cylinder{Base: math.Vec3{Y: -3}, Apex: math.Vec3{Y: 3}, Radius: 1})
	m.AddTriangle(Triangle{V0: math.Vec3{Z: -10}, V1: math.Vec3{X: 1}, V2: math.Vec3{Y: 1}})
	m.AddSmoothTriangle(Triangle{V0: math.Vec3{Z: 7}, V1: math.Vec3{X: 1}, V2: math.Vec3{Y: 1}})
	m.AddPointLight(PointLight{Center: math.Splat(100)})

	b := m.Bounds()
	want := math.Box3{Lower: math.Vec3{X: -1, Y: -4, Z: -10}, Upper: math.Vec3{X: 7, Y: 4, Z: 7}}
	if b != want {
		t.Errorf("bounds = %+v, want %+v", b, want)
	}
}

func TestModel_AddTextureDeduplicates(t *testing.T) {
	m := NewModel()
	red := DefaultTexture()
	red.Color = math.Vec3{X: 1}
	blue := DefaultTexture()
	blue.Color = math.Vec3{Z: 1}

	if id := m.AddTexture(red); id != 0 {
		t.Errorf("first texture id = %d, want 0", id)
	}
	if id := m.AddTexture(blue); id != 1 {
		t.Errorf("second texture id = %d, want 1", id)
	}
	if id := m.AddTexture(red); id != 0 {
		t.Errorf("repeated texture id = %d, want 0", id)
	}
	if len(m.Textures) != 2 {
		t.Errorf("expected 2 textures, got %d", len(m.Textures))
	}
}

func TestTexture_EqualIsBitwise(t *testing.T) {
	a := DefaultTexture()
	b := DefaultTexture()
	if !a.Equal(b) {
		t.Fatal("identical textures should be equal")
	}

	nan := float32(gomath.NaN())
	a.Ambient, b.Ambient = nan, nan
	if !a.Equal(b) {
		t.Error("textures with the same NaN bits should be equal")
	}

	negZero := float32(gomath.Copysign(0, -1))
	c := DefaultTexture()
	c.Specular = negZero
	if c.Equal(DefaultTexture()) {
		t.Error("-0 and +0 should differ bitwise")
	}
}

func TestModel_TextureOutOfRange(t *testing.T) {
	m := NewModel()
	if got := m.Texture(3); !got.Equal(DefaultTexture()) {
		t.Errorf("unknown texture id should give the default, got %+v", got)
	}
}

func TestModel_SmoothTrianglesShareArray(t *testing.T) {
	m := NewModel()
	if m.SmoothTriangles(false) != nil {
		t.Fatal("no smooth array before first smooth triangle")
	}
	tri := Triangle{
		V0: math.Vec3{}, V1: math.Vec3{X: 1}, V2: math.Vec3{Y: 1},
		N0: math.Vec3{Z: 1}, N1: math.Vec3{Z: 1}, N2: math.Vec3{Z: 1},
	}
	tri.TextureID = 4
	m.AddSmoothTriangle(tri)
	tri.TextureID = 2
	m.AddSmoothTriangle(tri)

	if len(m.VertexArrays) != 1 {
		t.Fatalf("expected 1 vertex array, got %d", len(m.VertexArrays))
	}
	va := m.SmoothTriangles(false)
	if va != m.VertexArrays[0] {
		t.Error("smooth array should be registered with the model")
	}
	if len(va.Coord) != 6 || len(va.Normal) != 6 {
		t.Errorf("expected 6 coords and normals, got %d/%d", len(va.Coord), len(va.Normal))
	}
	if va.Triangle[1] != (math.Vec3i{X: 3, Y: 4, Z: 5}) {
		t.Errorf("second triangle = %v", va.Triangle[1])
	}
	if len(va.PerTriTextureID) != 2 || va.PerTriTextureID[0] != 4 || va.PerTriTextureID[1] != 2 {
		t.Errorf("per-triangle textures = %v", va.PerTriTextureID)
	}
	if m.NumTriangles() != 2 {
		t.Errorf("NumTriangles = %d, want 2", m.NumTriangles())
	}
}
