// Package tachyon holds the Tachyon scene model, its parser, and the
// tessellation and export of its implicit primitives.
package tachyon

import (
	gomath "math"

	"github.com/Faultbox/rayscene/pkg/math"
)

// Phong is the specular part of a Texture.
type Phong struct {
	Plastic float32
	Size    float32
}

// Texture is a Tachyon surface description. Despite the name it carries no
// image data.
type Texture struct {
	Ambient  float32
	Diffuse  float32
	Specular float32
	Opacity  float32
	Phong    Phong
	Color    math.Vec3
	TexFunc  int32
}

// DefaultTexture returns the texture values Tachyon assumes when a field is
// not given.
func DefaultTexture() Texture {
	return Texture{
		Diffuse: 0.8,
		Opacity: 1,
		Color:   math.Splat(1),
	}
}

// Equal reports whether t and o match bit for bit.
func (t Texture) Equal(o Texture) bool {
	bits := func(f float32) uint32 { return gomath.Float32bits(f) }
	vbits := func(v math.Vec3) [3]uint32 { return [3]uint32{bits(v.X), bits(v.Y), bits(v.Z)} }
	return bits(t.Ambient) == bits(o.Ambient) &&
		bits(t.Diffuse) == bits(o.Diffuse) &&
		bits(t.Specular) == bits(o.Specular) &&
		bits(t.Opacity) == bits(o.Opacity) &&
		bits(t.Phong.Plastic) == bits(o.Phong.Plastic) &&
		bits(t.Phong.Size) == bits(o.Phong.Size) &&
		vbits(t.Color) == vbits(o.Color) &&
		t.TexFunc == o.TexFunc
}

// Camera is the scene camera.
type Camera struct {
	Center  math.Vec3
	UpDir   math.Vec3
	ViewDir math.Vec3
}

// NewCamera returns a camera at the origin looking down +Z.
func NewCamera() *Camera {
	return &Camera{UpDir: math.Vec3{Y: 1}, ViewDir: math.Vec3{Z: 1}}
}

// Attenuation holds point light falloff coefficients.
type Attenuation struct {
	Constant, Linear, Quadratic float32
}

// PointLight is a positional light.
type PointLight struct {
	Center math.Vec3
	Color  math.Vec3
	Atten  Attenuation
}

// DirLight is a directional light.
type DirLight struct {
	Color     math.Vec3
	Direction math.Vec3
}

// Sphere is an implicit sphere.
type Sphere struct {
	Center    math.Vec3
	Radius    float32
	TextureID int
}

// Cylinder is an implicit cylinder from Base to Apex.
type Cylinder struct {
	Base, Apex math.Vec3
	Radius     float32
	TextureID  int
}

// Triangle is a triangle with per-vertex normals. Flat triangles have zero
// normals.
type Triangle struct {
	V0, V1, V2 math.Vec3
	N0, N1, N2 math.Vec3
	TextureID  int
}

// VertexArray is an explicit triangle batch. PerTriTextureID is only set
// for arrays whose triangles carry their own texture.
type VertexArray struct {
	Coord           []math.Vec3
	Color           []math.Vec3
	Normal          []math.Vec3
	Triangle        []math.Vec3i
	PerTriTextureID []int32
	TextureID       int
}

// NumTriangles returns the triangle count.
func (va *VertexArray) NumTriangles() int {
	return len(va.Triangle)
}

// Model is a parsed Tachyon scene. Its bounds are extended as primitives are
// added and always enclose every primitive added so far.
type Model struct {
	Resolution      [2]int
	BackgroundColor math.Vec3
	Camera          *Camera

	Triangles    []Triangle
	Spheres      []Sphere
	Cylinders    []Cylinder
	VertexArrays []*VertexArray
	DirLights    []DirLight
	PointLights  []PointLight
	Textures     []Texture

	bounds     math.Box3
	smoothTris *VertexArray
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{
		Resolution:      [2]int{-1, -1},
		BackgroundColor: math.Splat(0.1),
		bounds:          math.EmptyBox(),
	}
}

// Bounds returns the bounding box of everything added.
func (m *Model) Bounds() math.Box3 {
	return m.bounds
}

// Empty reports whether no geometry was added.
func (m *Model) Empty() bool {
	return m.bounds.Empty()
}

// AddTexture returns the ID of an equal texture if one exists, otherwise
// appends t.
func (m *Model) AddTexture(t Texture) int {
	for i := len(m.Textures) - 1; i >= 0; i-- {
		if m.Textures[i].Equal(t) {
			return i
		}
	}
	m.Textures = append(m.Textures, t)
	return len(m.Textures) - 1
}

// Texture returns the texture with the given ID, or the default texture for
// an unknown ID.
func (m *Model) Texture(id int) Texture {
	if id < 0 || id >= len(m.Textures) {
		return DefaultTexture()
	}
	return m.Textures[id]
}

// AddTriangle adds a flat triangle.
func (m *Model) AddTriangle(t Triangle) {
	m.Triangles = append(m.Triangles, t)
	m.bounds.Extend(t.V0)
	m.bounds.Extend(t.V1)
	m.bounds.Extend(t.V2)
}

// AddSmoothTriangle appends a triangle with vertex normals to the shared
// smooth triangle vertex array.
func (m *Model) AddSmoothTriangle(t Triangle) {
	va := m.SmoothTriangles(true)
	base := int32(len(va.Coord))
	va.Coord = append(va.Coord, t.V0, t.V1, t.V2)
	va.Normal = append(va.Normal, t.N0, t.N1, t.N2)
	va.Triangle = append(va.Triangle, math.Vec3i{X: base, Y: base + 1, Z: base + 2})
	va.PerTriTextureID = append(va.PerTriTextureID, int32(t.TextureID))
	m.bounds.Extend(t.V0)
	m.bounds.Extend(t.V1)
	m.bounds.Extend(t.V2)
}

// AddSphere adds a sphere.
func (m *Model) AddSphere(s Sphere) {
	m.Spheres = append(m.Spheres, s)
	m.bounds.ExtendSphere(s.Center, s.Radius)
}

// AddCylinder adds a cylinder, bounding both end caps by their radius.
func (m *Model) AddCylinder(c Cylinder) {
	m.Cylinders = append(m.Cylinders, c)
	m.bounds.ExtendSphere(c.Base, c.Radius)
	m.bounds.ExtendSphere(c.Apex, c.Radius)
}

// AddVertexArray adds an explicit triangle batch.
func (m *Model) AddVertexArray(va *VertexArray) {
	m.VertexArrays = append(m.VertexArrays, va)
	for _, p := range va.Coord {
		m.bounds.Extend(p)
	}
}

// AddPointLight adds a point light. Lights do not affect the bounds.
func (m *Model) AddPointLight(l PointLight) {
	m.PointLights = append(m.PointLights, l)
}

// AddDirLight adds a directional light.
func (m *Model) AddDirLight(l DirLight) {
	m.DirLights = append(m.DirLights, l)
}

// CameraOrCreate returns the camera, creating a default one if needed.
func (m *Model) CameraOrCreate() *Camera {
	if m.Camera == nil {
		m.Camera = NewCamera()
	}
	return m.Camera
}

// SmoothTriangles returns the vertex array smooth triangles are collected
// in. With create set it is made on first use and registered as one of the
// model's vertex arrays.
func (m *Model) SmoothTriangles(create bool) *VertexArray {
	if m.smoothTris == nil && create {
		m.smoothTris = &VertexArray{}
		m.VertexArrays = append(m.VertexArrays, m.smoothTris)
	}
	return m.smoothTris
}

// NumTriangles counts flat triangles plus the triangles of all vertex
// arrays.
func (m *Model) NumTriangles() int {
	n := len(m.Triangles)
	for _, va := range m.VertexArrays {
		n += len(va.Triangle)
	}
	return n
}
