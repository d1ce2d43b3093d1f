package scene

import (
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
)

func TestImportHelper_FinalizeAddsMeshAndInstance(t *testing.T) {
	model := NewModel()
	h := NewImportHelper(model)
	mat := NewMaterial("gray")

	h.Begin("tri", mat)
	a := h.AddVertex(math.Vec3{X: 0, Y: 0, Z: 0})
	b := h.AddVertex(math.Vec3{X: 1, Y: 0, Z: 0})
	c := h.AddVertex(math.Vec3{X: 0, Y: 1, Z: 0})
	h.AddTriangle(math.Vec3i{X: a, Y: b, Z: c})

	if id := h.Finalize(); id != 0 {
		t.Fatalf("Finalize() = %d, want 0", id)
	}
	if h.Mesh() != nil {
		t.Error("helper should have no open mesh after Finalize")
	}
	if len(model.Mesh) != 1 || len(model.Instance) != 1 {
		t.Fatalf("model has %d meshes / %d instances, want 1/1", len(model.Mesh), len(model.Instance))
	}
	if model.Instance[0].MeshID != 0 || !model.Instance[0].Xfm.IsIdentity() {
		t.Errorf("unexpected instance %+v", model.Instance[0])
	}
	mesh := model.Mesh[0]
	if mesh.Material != mat {
		t.Error("mesh should keep its material")
	}
	if got := mesh.Triangle[0]; got != (math.Vec3i{X: 0, Y: 1, Z: 2}) {
		t.Errorf("triangle = %v, want (0,1,2)", got)
	}
	want := math.Box3{Lower: math.Vec3{}, Upper: math.Vec3{X: 1, Y: 1}}
	if got := mesh.Bounds(); got != want {
		t.Errorf("bounds = %v, want %v", got, want)
	}
}

func TestImportHelper_NoDedup(t *testing.T) {
	h := NewImportHelper(NewModel())
	h.Begin("", nil)
	p := math.Vec3{X: 1, Y: 2, Z: 3}
	if a, b := h.AddVertex(p), h.AddVertex(p); a == b {
		t.Errorf("identical positions must get distinct indices, got %d twice", a)
	}
}

func TestImportHelper_ReusableAndInert(t *testing.T) {
	model := NewModel()
	h := NewImportHelper(model)

	if id := h.Finalize(); id != -1 {
		t.Errorf("Finalize with no open mesh = %d, want -1", id)
	}

	h.Begin("first", nil)
	h.AddVertex(math.Vec3{})
	h.Begin("second", nil) // finalizes "first"
	h.AddVertex(math.Vec3{})
	h.Finalize()

	if len(model.Mesh) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(model.Mesh))
	}
	if model.Mesh[0].Name != "first" || model.Mesh[1].Name != "second" {
		t.Errorf("mesh order = %q, %q", model.Mesh[0].Name, model.Mesh[1].Name)
	}
	if model.Instance[1].MeshID != 1 {
		t.Errorf("second instance mesh id = %d, want 1", model.Instance[1].MeshID)
	}
}

func TestImportHelper_PanicsWithoutMesh(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AddVertex without an open mesh should panic")
		}
	}()
	NewImportHelper(NewModel()).AddVertex(math.Vec3{})
}
