package tachyon

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
)

const flatTriangleXML = `<?xml version="1.0"?>
<scene>
 <Group>
  <TriangleMesh>
    <environment>0</environment>
    <material>
    <code>"OBJ"</code>
    <parameters>
      <float name="d">1</float>
      <float3 name="Kd">0.8 0.4 0</float3>
      <float3 name="Ks">0.2 0.2 0.2</float3>
      <float name="Ns">40</float>
    </parameters>
    </material>
    <positions ofs="0" size="3"/>
    <normals ofs="36" size="3"/>
    <triangles ofs="72" size="1"/>
  </TriangleMesh>
 </Group>
</scene>
`

func TestExportTo_FlatTriangle(t *testing.T) {
	m := NewModel()
	tex := DefaultTexture()
	tex.Color = math.Vec3{X: 1, Y: 0.5}
	tex.Specular = 0.2
	tex.Phong.Size = 40
	id := m.AddTexture(tex)
	m.AddTriangle(Triangle{V0: math.Vec3{X: 2}, V1: math.Vec3{X: 3}, V2: math.Vec3{X: 2, Y: 1}, TextureID: id})

	var xml, bin bytes.Buffer
	stats, err := ExportTo(&xml, &bin, m, DefaultTessellation())
	if err != nil {
		t.Fatalf("ExportTo failed: %v", err)
	}
	if xml.String() != flatTriangleXML {
		t.Errorf("unexpected xml:\n%s", xml.String())
	}
	if stats.Meshes != 1 || stats.Triangles != 1 || stats.BinBytes != 84 {
		t.Errorf("stats = %+v", stats)
	}
	if bin.Len() != 84 {
		t.Fatalf("bin has %d bytes, want 84", bin.Len())
	}

	var coords [3]math.Vec3
	if err := binary.Read(bytes.NewReader(bin.Bytes()), binary.LittleEndian, &coords); err != nil {
		t.Fatal(err)
	}
	if coords[1] != (math.Vec3{X: 3}) {
		t.Errorf("second position = %v", coords[1])
	}
	var tri math.Vec3i
	if err := binary.Read(bytes.NewReader(bin.Bytes()[72:]), binary.LittleEndian, &tri); err != nil {
		t.Fatal(err)
	}
	if tri != (math.Vec3i{X: 0, Y: 1, Z: 2}) {
		t.Errorf("triangle = %v", tri)
	}
}

func TestExportTo_Order(t *testing.T) {
	m := NewModel()
	a := m.AddTexture(DefaultTexture())
	red := DefaultTexture()
	red.Color = math.Vec3{X: 1}
	b := m.AddTexture(red)

	m.AddCylinder(Cylinder{Apex: math.Vec3{Y: 1}, Radius: 0.1, TextureID: a})
	m.AddSphere(Sphere{Radius: 1, TextureID: a})
	m.AddSphere(Sphere{Center: math.Vec3{X: 3}, Radius: 1, TextureID: b})
	m.AddSmoothTriangle(Triangle{V1: math.Vec3{X: 1}, V2: math.Vec3{Y: 1}, N0: math.Vec3{Z: 1}, N1: math.Vec3{Z: 1}, N2: math.Vec3{Z: 1}, TextureID: b})

	var xml, bin bytes.Buffer
	stats, err := ExportTo(&xml, &bin, m, TessellationOptions{SphereDepth: 1, CylinderSegments: 8})
	if err != nil {
		t.Fatalf("ExportTo failed: %v", err)
	}

	// smooth array, two sphere groups, one cylinder group
	if stats.Meshes != 4 {
		t.Errorf("meshes = %d, want 4", stats.Meshes)
	}
	if want := 1 + 32 + 32 + 16; stats.Triangles != want {
		t.Errorf("triangles = %d, want %d", stats.Triangles, want)
	}
	if int64(bin.Len()) != stats.BinBytes {
		t.Errorf("bin length %d != stats %d", bin.Len(), stats.BinBytes)
	}
	if n := strings.Count(xml.String(), "<TriangleMesh>"); n != 4 {
		t.Errorf("xml has %d meshes", n)
	}

	first := strings.Index(xml.String(), `<triangles ofs="72" size="1"/>`)
	cyl := strings.LastIndex(xml.String(), `size="16"/>`)
	if first < 0 || cyl < 0 || first > cyl {
		t.Errorf("vertex arrays should be exported before cylinders:\n%s", xml.String())
	}
}

func TestExportTo_Empty(t *testing.T) {
	var xml, bin bytes.Buffer
	stats, err := ExportTo(&xml, &bin, NewModel(), DefaultTessellation())
	if err != nil {
		t.Fatal(err)
	}
	if stats != (ExportStats{}) || bin.Len() != 0 {
		t.Errorf("expected nothing exported, got %+v", stats)
	}
	if xml.String() != "<?xml version=\"1.0\"?>\n<scene>\n <Group>\n </Group>\n</scene>\n" {
		t.Errorf("unexpected xml %q", xml.String())
	}
}

func TestExport_Files(t *testing.T) {
	m := NewModel()
	m.AddSphere(Sphere{Radius: 1})
	base := filepath.Join(t.TempDir(), "out")

	stats, err := Export(m, base, DefaultTessellation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if stats.Triangles != 128 {
		t.Errorf("triangles = %d, want 128", stats.Triangles)
	}
	info, err := os.Stat(base + ".bin")
	if err != nil {
		t.Fatal(err)
	}
	// 192 positions, 192 normals, 128 triangles
	if info.Size() != 192*12*2+128*12 {
		t.Errorf("bin size = %d", info.Size())
	}
	if _, err := os.Stat(base + ".xml"); err != nil {
		t.Error(err)
	}
}
