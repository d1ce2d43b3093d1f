package tachyon

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/chewxy/math32"
)

const eps = 1e-4

func TestTessellateSphere(t *testing.T) {
	tests := []struct {
		depth  int
		tris   int
		coords int
	}{
		{depth: 1, tris: 32, coords: 48},
		{depth: 2, tris: 128, coords: 192},
		{depth: 3, tris: 512, coords: 768},
	}

	s := Sphere{Center: math.Vec3{X: 1, Y: 2, Z: 3}, Radius: 2}
	for _, tt := range tests {
		va := &VertexArray{}
		TessellateSphere(va, s, tt.depth)

		if len(va.Triangle) != tt.tris {
			t.Errorf("depth %d: %d triangles, want %d", tt.depth, len(va.Triangle), tt.tris)
		}
		if len(va.Coord) != tt.coords || len(va.Normal) != tt.coords {
			t.Errorf("depth %d: %d coords, %d normals, want %d", tt.depth, len(va.Coord), len(va.Normal), tt.coords)
		}
		for i, n := range va.Normal {
			if math32.Abs(n.Length()-1) > eps {
				t.Fatalf("depth %d: normal %d not unit: %v", tt.depth, i, n)
			}
			if d := va.Coord[i].Distance(s.Center); math32.Abs(d-s.Radius) > eps {
				t.Fatalf("depth %d: vertex %d at distance %v", tt.depth, i, d)
			}
		}
		for _, tri := range va.Triangle {
			for _, idx := range []int32{tri.X, tri.Y, tri.Z} {
				if idx < 0 || int(idx) >= len(va.Coord) {
					t.Fatalf("index %d out of range", idx)
				}
			}
		}
	}
}

// TestTessellateSphere_Closed checks that octants meet without gaps: every
// edge, keyed by the exact vertex bits, belongs to exactly two triangles.
func TestTessellateSphere_Closed(t *testing.T) {
	tests := []struct {
		depth int
		edges int
	}{
		{depth: 1, edges: 48},
		{depth: 2, edges: 192},
		{depth: 3, edges: 768},
		{depth: 4, edges: 3072},
	}

	type point [3]uint32
	type edge [2]point
	key := func(v math.Vec3) point {
		return point{gomath.Float32bits(v.X), gomath.Float32bits(v.Y), gomath.Float32bits(v.Z)}
	}
	less := func(a, b point) bool {
		for i := range a {
			if a[i] != b[i] {
				return a[i] < b[i]
			}
		}
		return false
	}

	s := Sphere{Center: math.Vec3{X: -1, Y: 0.5, Z: 2}, Radius: 1.5}
	for _, tt := range tests {
		va := &VertexArray{}
		TessellateSphere(va, s, tt.depth)

		counts := make(map[edge]int)
		for _, tri := range va.Triangle {
			ids := [3]int32{tri.X, tri.Y, tri.Z}
			for i := range ids {
				a, b := key(va.Coord[ids[i]]), key(va.Coord[ids[(i+1)%3]])
				if less(b, a) {
					a, b = b, a
				}
				counts[edge{a, b}]++
			}
		}

		if len(counts) != tt.edges {
			t.Errorf("depth %d: %d edges, want %d", tt.depth, len(counts), tt.edges)
		}
		open := 0
		for _, n := range counts {
			if n != 2 {
				open++
			}
		}
		if open != 0 {
			t.Errorf("depth %d: %d edges not shared by exactly two triangles", tt.depth, open)
		}
	}
}

func TestTessellateCylinder(t *testing.T) {
	c := Cylinder{Base: math.Vec3{X: 1}, Apex: math.Vec3{X: 1, Y: 4}, Radius: 0.5}
	const n = 12

	va := &VertexArray{Coord: make([]math.Vec3, 3), Normal: make([]math.Vec3, 3)}
	TessellateCylinder(va, c, n)

	if got := len(va.Triangle); got != 2*n {
		t.Fatalf("%d triangles, want %d", got, 2*n)
	}
	if got := len(va.Coord) - 3; got != 2*n {
		t.Fatalf("%d new coords, want %d", got, 2*n)
	}
	for _, tri := range va.Triangle {
		for _, idx := range []int32{tri.X, tri.Y, tri.Z} {
			if idx < 3 || idx >= 3+2*n {
				t.Fatalf("index %d outside the appended ring", idx)
			}
		}
	}
	// The last quad wraps back to the first pair.
	last := va.Triangle[len(va.Triangle)-1]
	if last != (math.Vec3i{X: 3 + 2*n - 1, Y: 3, Z: 4}) {
		t.Errorf("last triangle = %v", last)
	}

	for i := 3; i < len(va.Coord); i++ {
		p := va.Coord[i]
		// Distance from the Y axis through (1,0,0).
		r := math.Vec3{X: p.X - 1, Z: p.Z}.Length()
		if math32.Abs(r-c.Radius) > eps {
			t.Fatalf("vertex %d at radius %v", i, r)
		}
		wantY := float32(0)
		if (i-3)%2 == 1 {
			wantY = 4
		}
		if math32.Abs(p.Y-wantY) > eps {
			t.Fatalf("vertex %d at height %v, want %v", i, p.Y, wantY)
		}
		if n := va.Normal[i]; math32.Abs(n.Y) > eps {
			t.Fatalf("normal %d not perpendicular to the axis: %v", i, n)
		}
	}
}

func TestGroupByTexture(t *testing.T) {
	spheres := []Sphere{
		{Radius: 1, TextureID: 2},
		{Radius: 1, TextureID: 0},
		{Radius: 1, TextureID: 2},
		{Radius: 1, TextureID: 5},
		{Radius: 1, TextureID: 0},
	}
	groups, passes := GroupByTexture(spheres,
		func(s Sphere) int { return s.TextureID },
		func(va *VertexArray, s Sphere) { TessellateSphere(va, s, 1) })

	if passes != 3 || len(groups) != 3 {
		t.Fatalf("passes = %d, groups = %d, want 3", passes, len(groups))
	}
	wantIDs := []int{2, 0, 5}
	wantTris := []int{64, 64, 32}
	for i, g := range groups {
		if g.TextureID != wantIDs[i] {
			t.Errorf("group %d texture = %d, want %d", i, g.TextureID, wantIDs[i])
		}
		if len(g.Triangle) != wantTris[i] {
			t.Errorf("group %d has %d triangles, want %d", i, len(g.Triangle), wantTris[i])
		}
	}
}

func TestGroupByTexture_Empty(t *testing.T) {
	groups, passes := GroupByTexture[Sphere](nil,
		func(s Sphere) int { return s.TextureID },
		func(*VertexArray, Sphere) { t.Fatal("nothing to tessellate") })
	if passes != 0 || len(groups) != 0 {
		t.Errorf("expected no groups, got %d/%d", passes, len(groups))
	}
}

func TestTessellationDefaults(t *testing.T) {
	groups := TessellateCylinders([]Cylinder{{Apex: math.Vec3{Z: 1}, Radius: 1}}, TessellationOptions{})
	if len(groups) != 1 || len(groups[0].Triangle) != 32 {
		t.Errorf("zero options should tessellate with 16 segments, got %+v", groups)
	}
	groups = TessellateSpheres([]Sphere{{Radius: 1}}, TessellationOptions{SphereDepth: 1})
	if len(groups) != 1 || len(groups[0].Triangle) != 32 {
		t.Errorf("depth 1 sphere should have 32 triangles")
	}
}

func TestFlatTriangles(t *testing.T) {
	tris := []Triangle{
		{V0: math.Vec3{}, V1: math.Vec3{X: 1}, V2: math.Vec3{Y: 1}, TextureID: 1},
		{V0: math.Vec3{}, V1: math.Vec3{Y: 1}, V2: math.Vec3{X: 1}, TextureID: 1},
	}
	groups := FlatTriangles(tris)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	va := groups[0]
	if va.Normal[0] != (math.Vec3{Z: 1}) || va.Normal[3] != (math.Vec3{Z: -1}) {
		t.Errorf("face normals = %v", va.Normal)
	}
	if va.Triangle[1] != (math.Vec3i{X: 3, Y: 4, Z: 5}) {
		t.Errorf("second triangle = %v", va.Triangle[1])
	}
}

func TestSplitByTexture(t *testing.T) {
	m := NewModel()
	for i, id := range []int{0, 1, 0} {
		off := float32(i)
		m.AddSmoothTriangle(Triangle{
			V0: math.Vec3{X: off}, V1: math.Vec3{X: off + 1}, V2: math.Vec3{X: off, Y: 1},
			N0: math.Vec3{Z: 1}, N1: math.Vec3{Z: 1}, N2: math.Vec3{Z: 1},
			TextureID: id,
		})
	}
	parts := SplitByTexture(m.SmoothTriangles(false))
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].TextureID != 0 || len(parts[0].Triangle) != 2 {
		t.Errorf("first part: texture %d, %d triangles", parts[0].TextureID, len(parts[0].Triangle))
	}
	if parts[1].TextureID != 1 || len(parts[1].Triangle) != 1 {
		t.Errorf("second part: texture %d, %d triangles", parts[1].TextureID, len(parts[1].Triangle))
	}
	if parts[0].Coord[3] != (math.Vec3{X: 2}) {
		t.Errorf("second triangle of part 0 should be the third input, got %v", parts[0].Coord[3])
	}
	if len(parts[1].Normal) != 3 || len(parts[1].Color) != 0 {
		t.Errorf("normals should be carried and colors not invented")
	}

	plain := &VertexArray{TextureID: 3}
	if got := SplitByTexture(plain); len(got) != 1 || got[0] != plain {
		t.Error("array without per-triangle textures should be returned as is")
	}
}
