package scene

import "github.com/Faultbox/rayscene/pkg/math"

// Model is the aggregate an importer fills: meshes, their instances and any
// cameras the file carried.
type Model struct {
	Mesh     []*Mesh
	Instance []Instance
	Camera   []*Camera

	// bounds grows as instances are added and is never recomputed;
	// boundsN is the number of instances folded into it.
	bounds  math.Box3
	boundsN int
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{bounds: math.EmptyBox()}
}

// AddMesh appends a mesh together with an instance carrying xfm and returns
// the mesh index. The mesh must be complete: its bounds are folded into the
// model bounds here.
func (m *Model) AddMesh(mesh *Mesh, xfm math.Affine3) int {
	id := len(m.Mesh)
	m.Mesh = append(m.Mesh, mesh)
	m.AddInstance(Instance{MeshID: id, Xfm: xfm})
	return id
}

// AddInstance appends an instance of an existing mesh and extends the model
// bounds by it.
func (m *Model) AddInstance(inst Instance) {
	m.Bounds()
	m.Instance = append(m.Instance, inst)
	m.extend(inst)
	m.boundsN++
}

func (m *Model) extend(inst Instance) {
	if inst.MeshID < 0 || inst.MeshID >= len(m.Mesh) {
		return
	}
	m.bounds.ExtendBox(m.Mesh[inst.MeshID].Bounds().Transform(inst.Xfm))
}

// NumMeshes returns the mesh count.
func (m *Model) NumMeshes() int {
	return len(m.Mesh)
}

// NumUniqueTriangles counts triangles once per mesh, ignoring instancing.
func (m *Model) NumUniqueTriangles() int {
	n := 0
	for _, mesh := range m.Mesh {
		n += len(mesh.Triangle)
	}
	return n
}

// NumTriangleInstances counts triangles once per instance.
func (m *Model) NumTriangleInstances() int {
	n := 0
	for _, inst := range m.Instance {
		if inst.MeshID >= 0 && inst.MeshID < len(m.Mesh) {
			n += len(m.Mesh[inst.MeshID].Triangle)
		}
	}
	return n
}

// Bounds returns the world-space bounds of every instance. The box only
// grows: it is extended as instances are added, and instances appended
// directly to the slice are folded in on the next call.
func (m *Model) Bounds() math.Box3 {
	if m.boundsN == 0 || m.boundsN > len(m.Instance) {
		m.bounds = math.EmptyBox()
		m.boundsN = 0
	}
	for ; m.boundsN < len(m.Instance); m.boundsN++ {
		m.extend(m.Instance[m.boundsN])
	}
	return m.bounds
}

// Materials returns the distinct materials referenced by the meshes, in
// first-use order.
func (m *Model) Materials() []*Material {
	seen := make(map[*Material]bool)
	var out []*Material
	add := func(mat *Material) {
		if mat != nil && !seen[mat] {
			seen[mat] = true
			out = append(out, mat)
		}
	}
	for _, mesh := range m.Mesh {
		add(mesh.Material)
		for _, mat := range mesh.MaterialList {
			add(mat)
		}
	}
	return out
}

// Append moves other's meshes, instances and cameras into m, rebasing
// instance mesh indices.
func (m *Model) Append(other *Model) {
	base := len(m.Mesh)
	m.Mesh = append(m.Mesh, other.Mesh...)
	for _, inst := range other.Instance {
		inst.MeshID += base
		m.AddInstance(inst)
	}
	m.Camera = append(m.Camera, other.Camera...)
}
