package formats

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
)

func TestParseMTL_Parameters(t *testing.T) {
	src := `# exported
newmtl glass
Kd 0.1 0.2 0.3
Ks 1 1 1
d 0.5
Ns 64
illum 2
illum_4 1
type Glass
sharpness 3
`
	mats, err := ParseMTL(strings.NewReader(src), "test.mtl", t.TempDir())
	if err != nil {
		t.Fatalf("ParseMTL failed: %v", err)
	}
	glass, ok := mats["glass"]
	if !ok {
		t.Fatal("material glass not found")
	}
	if glass.Type != "Glass" {
		t.Errorf("type = %q, want Glass", glass.Type)
	}
	if kd := glass.Vec3("Kd", math.Vec3{}); kd != (math.Vec3{X: 0.1, Y: 0.2, Z: 0.3}) {
		t.Errorf("Kd = %v", kd)
	}
	if d := glass.Float("d", 1); d != 0.5 {
		t.Errorf("d = %v, want 0.5", d)
	}
	if glass.Has("illum") || glass.Has("illum_4") {
		t.Error("illum keywords should be ignored")
	}
	if s := glass.Float("sharpness", 0); s != 3 {
		t.Errorf("unknown keyword should become a float param, got %v", s)
	}
}

func TestParseMTL_OrphanAndMalformed(t *testing.T) {
	src := "Kd 1 1 1\nnewmtl a\nKd 1 x\n"
	diag := NewDiagnostics(nil, nil)
	mats, err := ParseMTL(strings.NewReader(src), "test.mtl", t.TempDir(), WithDiagnostics(diag))
	if err != nil {
		t.Fatalf("ParseMTL failed: %v", err)
	}
	if len(mats) != 1 {
		t.Fatalf("expected 1 material, got %d", len(mats))
	}
	if diag.Skipped(SkipOrphanDefinition) != 1 {
		t.Errorf("expected 1 orphan definition, got %d", diag.Skipped(SkipOrphanDefinition))
	}
	if diag.Skipped(SkipMalformedLine) != 1 {
		t.Errorf("expected 1 malformed line, got %d", diag.Skipped(SkipMalformedLine))
	}
}

func TestParseMTL_TexturesShareCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wood.ppm"), string(createTestPPM(2, 2)))

	src := `newmtl a
map_Kd wood.ppm
newmtl b
colorMap wood.ppm
map_Bump wood.ppm
map_Ks missing.ppm
`
	loader := NewTextureLoader()
	diag := NewDiagnostics(nil, nil)
	mats, err := ParseMTL(strings.NewReader(src), "test.mtl", dir,
		WithTextureLoader(loader), WithDiagnostics(diag))
	if err != nil {
		t.Fatalf("ParseMTL failed: %v", err)
	}

	a := mats["a"].Texture("map_Kd")
	b := mats["b"].Texture("map_Kd")
	if a == nil || a != b {
		t.Fatal("both materials should share one decoded texture")
	}
	if a.PreferLinear {
		t.Error("color maps should not prefer linear")
	}
	bump := mats["b"].Texture("map_Bump")
	if bump == nil || bump == a || !bump.PreferLinear {
		t.Error("bump map should be a separate linear texture")
	}
	if hits, misses := loader.Cache().Stats(); hits != 1 || misses != 3 {
		t.Errorf("cache stats = %d hits / %d misses, want 1/3", hits, misses)
	}
	if diag.Skipped(SkipTexture) != 1 {
		t.Errorf("expected 1 texture skip, got %d", diag.Skipped(SkipTexture))
	}
}
