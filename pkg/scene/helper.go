package scene

import "github.com/Faultbox/rayscene/pkg/math"

// ImportHelper accumulates vertices and triangles into one open mesh at a
// time and hands finished meshes to a Model. Vertices are never shared.
type ImportHelper struct {
	model *Model
	mesh  *Mesh
	xfm   math.Affine3
}

// NewImportHelper creates a helper that finalizes into model.
func NewImportHelper(model *Model) *ImportHelper {
	return &ImportHelper{model: model, xfm: math.Identity()}
}

// Begin opens a new mesh. An already open mesh is finalized first.
func (h *ImportHelper) Begin(name string, mat *Material) *Mesh {
	if h.mesh != nil {
		h.Finalize()
	}
	h.mesh = NewMesh(name, mat)
	h.xfm = math.Identity()
	return h.mesh
}

// SetTransform sets the instance transform used when the mesh is finalized.
func (h *ImportHelper) SetTransform(xfm math.Affine3) {
	h.xfm = xfm
}

// Mesh returns the open mesh, or nil.
func (h *ImportHelper) Mesh() *Mesh {
	return h.mesh
}

// AddVertex appends a position to the open mesh and returns its index.
func (h *ImportHelper) AddVertex(p math.Vec3) int32 {
	if h.mesh == nil {
		panic("scene: ImportHelper.AddVertex called with no open mesh")
	}
	return h.mesh.AddPosition(p)
}

// AddTriangle appends a triangle verbatim.
func (h *ImportHelper) AddTriangle(t math.Vec3i) {
	if h.mesh == nil {
		panic("scene: ImportHelper.AddTriangle called with no open mesh")
	}
	h.mesh.Triangle = append(h.mesh.Triangle, t)
}

// Finalize moves the open mesh into the model with a matching instance and
// returns its index, or -1 if no mesh was open.
func (h *ImportHelper) Finalize() int {
	if h.mesh == nil {
		return -1
	}
	id := h.model.AddMesh(h.mesh, h.xfm)
	h.mesh = nil
	h.xfm = math.Identity()
	return id
}
