package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/rayscene/pkg/math"
)

// Mesh validation errors.
var (
	ErrAttributeLength = errors.New("vertex attribute length mismatch")
	ErrIndexOutOfRange = errors.New("triangle index out of range")
)

// Mesh is an indexed triangle mesh with a single material, or a material
// list addressed by TriangleMaterialID.
type Mesh struct {
	Name     string
	Position []math.Vec3
	Normal   []math.Vec3 // empty or len(Position)
	Texcoord []math.Vec2 // empty or len(Position)
	Color    []math.Vec4 // empty or len(Position)
	Triangle []math.Vec3i

	Material *Material

	// MaterialList and TriangleMaterialID are set together when triangles
	// carry their own material.
	MaterialList       []*Material
	TriangleMaterialID []int32

	bounds  math.Box3
	boundsN int
}

// NewMesh creates an empty mesh.
func NewMesh(name string, mat *Material) *Mesh {
	return &Mesh{Name: name, Material: mat}
}

// AddPosition appends a vertex position, extending the bounds, and returns
// its index.
func (m *Mesh) AddPosition(p math.Vec3) int32 {
	m.Bounds()
	m.Position = append(m.Position, p)
	m.bounds.Extend(p)
	m.boundsN++
	return int32(len(m.Position) - 1)
}

// Bounds returns the bounding box of all positions. Positions assigned
// directly to the slice are folded in on the next call.
func (m *Mesh) Bounds() math.Box3 {
	if m.boundsN == 0 || m.boundsN > len(m.Position) {
		m.bounds = math.EmptyBox()
		m.boundsN = 0
	}
	for ; m.boundsN < len(m.Position); m.boundsN++ {
		m.bounds.Extend(m.Position[m.boundsN])
	}
	return m.bounds
}

// NumTriangles returns the triangle count.
func (m *Mesh) NumTriangles() int {
	return len(m.Triangle)
}

// Validate checks attribute lengths and triangle index ranges.
func (m *Mesh) Validate() error {
	n := len(m.Position)
	if len(m.Normal) != 0 && len(m.Normal) != n {
		return fmt.Errorf("%w: %d normals for %d positions", ErrAttributeLength, len(m.Normal), n)
	}
	if len(m.Texcoord) != 0 && len(m.Texcoord) != n {
		return fmt.Errorf("%w: %d texcoords for %d positions", ErrAttributeLength, len(m.Texcoord), n)
	}
	if len(m.Color) != 0 && len(m.Color) != n {
		return fmt.Errorf("%w: %d colors for %d positions", ErrAttributeLength, len(m.Color), n)
	}
	if len(m.TriangleMaterialID) != 0 && len(m.TriangleMaterialID) != len(m.Triangle) {
		return fmt.Errorf("%w: %d material ids for %d triangles", ErrAttributeLength, len(m.TriangleMaterialID), len(m.Triangle))
	}
	for i, t := range m.Triangle {
		for _, idx := range [3]int32{t.X, t.Y, t.Z} {
			if idx < 0 || int(idx) >= n {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrIndexOutOfRange, i, idx, n)
			}
		}
	}
	return nil
}

// Instance places a mesh in the world.
type Instance struct {
	MeshID int
	Xfm    math.Affine3
}

// NewInstance creates an instance with the identity transform.
func NewInstance(meshID int) Instance {
	return Instance{MeshID: meshID, Xfm: math.Identity()}
}

// Camera is a look-at camera found in a scene file.
type Camera struct {
	From, At, Up math.Vec3
}
