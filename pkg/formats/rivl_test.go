package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
)

// createTestRIVLBin lays out one RGBA texel, a triangle's vertices and one
// prim whose material id is 2.
func createTestRIVLBin() (bin []byte, texOfs, vtxOfs, primOfs int) {
	buf := new(bytes.Buffer)
	texOfs = buf.Len()
	buf.Write([]byte{10, 20, 30, 200})
	vtxOfs = buf.Len()
	binary.Write(buf, binary.LittleEndian, [9]float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
	primOfs = buf.Len()
	binary.Write(buf, binary.LittleEndian, [4]int32{0, 1, 2, 2 << 16})
	return buf.Bytes(), texOfs, vtxOfs, primOfs
}

func createTestRIVL() (string, []byte) {
	bin, texOfs, vtxOfs, primOfs := createTestRIVLBin()
	doc := fmt.Sprintf(`<?xml version="1.0"?>
<BGFscene>
  <Texture2D ofs="%d" width="1" height="1" channels="4" depth="1" format="RGBA8"/>
  <Material name="paint" type="OBJ">
    <textures num="1">0</textures>
    <param name="Kd" type="float3">1 0 0</param>
    <param name="Ns" type="float">8</param>
    <param name="map_Kd" type="int">0</param>
  </Material>
  <Mesh>
    <vertex ofs="%d" num="3"/>
    <prim ofs="%d" num="1"/>
    <materiallist>1</materiallist>
  </Mesh>
  <Transform child="2">1 0 0 0 1 0 0 0 1 5 0 0</Transform>
  <Camera><from>0 0 5</from><at>0 0 0</at><up>0 1 0</up></Camera>
  <Annotation/>
  <Group>2 3 4</Group>
</BGFscene>
`, texOfs, vtxOfs, primOfs)
	return doc, bin
}

func TestParseRIVL(t *testing.T) {
	doc, bin := createTestRIVL()
	diag := NewDiagnostics(nil, nil)
	model := scene.NewModel()
	if err := ParseRIVL(model, strings.NewReader(doc), bin, "scene.xml", WithDiagnostics(diag)); err != nil {
		t.Fatalf("ParseRIVL failed: %v", err)
	}

	if len(model.Mesh) != 1 {
		t.Fatalf("shared mesh should be emitted once, got %d meshes", len(model.Mesh))
	}
	if len(model.Instance) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(model.Instance))
	}
	if !model.Instance[0].Xfm.IsIdentity() {
		t.Errorf("first instance should be untransformed, got %+v", model.Instance[0].Xfm)
	}
	if p := model.Instance[1].Xfm.P; p != (math.Vec3{X: 5}) {
		t.Errorf("second instance translation = %v, want (5,0,0)", p)
	}
	if len(model.Camera) != 1 || model.Camera[0].From != (math.Vec3{Z: 5}) {
		t.Errorf("unexpected cameras %+v", model.Camera)
	}

	mesh := model.Mesh[0]
	if len(mesh.TriangleMaterialID) != 1 || mesh.TriangleMaterialID[0] != 2 {
		t.Errorf("material ids = %v, want [2]", mesh.TriangleMaterialID)
	}
	mat := mesh.Material
	if mat == nil || mat.Name != "paint" {
		t.Fatalf("single material list should set Material, got %+v", mat)
	}
	if kd := mat.Vec3("Kd", math.Vec3{}); kd != (math.Vec3{X: 1}) {
		t.Errorf("Kd = %v", kd)
	}
	tex := mat.Texture("map_Kd")
	if tex == nil {
		t.Fatal("map_Kd should reference the material's texture")
	}
	if !bytes.Equal(tex.Data, []byte{10, 20, 30, 55}) {
		t.Errorf("texel = %v, alpha should be inverted", tex.Data)
	}
	if !tex.PreferLinear {
		t.Error("RIVL textures prefer linear")
	}
	if diag.Skipped(SkipUnknownNode) != 1 {
		t.Errorf("expected 1 unknown node, got %d", diag.Skipped(SkipUnknownNode))
	}
}

func TestParseRIVL_AllZeroMaterialIDsDropped(t *testing.T) {
	doc, bin := createTestRIVL()
	// clear the material id in the prim
	binary.LittleEndian.PutUint32(bin[len(bin)-4:], 0)

	model := scene.NewModel()
	if err := ParseRIVL(model, strings.NewReader(doc), bin, "scene.xml"); err != nil {
		t.Fatalf("ParseRIVL failed: %v", err)
	}
	if ids := model.Mesh[0].TriangleMaterialID; ids != nil {
		t.Errorf("all-zero material ids should be dropped, got %v", ids)
	}
}

func TestParseRIVL_Errors(t *testing.T) {
	doc, bin := createTestRIVL()
	tests := []struct {
		name string
		doc  string
		bin  []byte
		want error
	}{
		{"wrong root", "<Scene><Group/></Scene>", bin, ErrInvalidRIVLRoot},
		{"empty", "<BGFscene/>", bin, ErrInvalidRIVLNode},
		{"truncated bin", doc, bin[:10], ErrTruncatedRIVLData},
		{"short transform", "<BGFscene><Group/><Transform child=\"0\">1 2 3</Transform></BGFscene>", bin, ErrInvalidRIVLNode},
		{"forward reference", "<BGFscene><Group>3</Group></BGFscene>", bin, ErrInvalidRIVLNode},
		{"unknown mesh child", "<BGFscene><Mesh><edge ofs=\"0\" num=\"0\"/></Mesh></BGFscene>", bin, ErrInvalidRIVLNode},
		{"unknown param type", "<BGFscene><Material><param name=\"x\" type=\"double\">1</param></Material><Group/></BGFscene>", bin, ErrInvalidRIVLNode},
		{"texture count", "<BGFscene><Material><textures num=\"2\"></textures></Material><Group/></BGFscene>", bin, ErrInvalidRIVLNode},
		{"no root", "<BGFscene><Camera/></BGFscene>", bin, ErrInvalidRIVLNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := scene.NewModel()
			err := ParseRIVL(model, strings.NewReader(tt.doc), tt.bin, "bad.xml")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if len(model.Mesh) != 0 || len(model.Instance) != 0 {
				t.Error("a failed import must leave the model untouched")
			}
		})
	}
}

func TestImportRIVL_ReadsCompanionBin(t *testing.T) {
	dir := t.TempDir()
	doc, bin := createTestRIVL()
	path := writeFile(t, filepath.Join(dir, "scene.xml"), doc)
	writeFile(t, path+".bin", string(bin))

	model := scene.NewModel()
	if err := ImportRIVL(model, path); err != nil {
		t.Fatalf("ImportRIVL failed: %v", err)
	}
	if model.NumTriangleInstances() != 2 {
		t.Errorf("expected 2 triangle instances, got %d", model.NumTriangleInstances())
	}
}

func TestRIVLKindString(t *testing.T) {
	tests := []struct {
		kind rivlKind
		want string
	}{
		{rivlKindNone, "unknown"},
		{rivlKindTexture, "Texture2D"},
		{rivlKindMesh, "Mesh"},
		{rivlKindGroup, "Group"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("rivlKind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
