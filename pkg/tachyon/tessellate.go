package tachyon

import (
	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/chewxy/math32"
)

// TessellationOptions controls how implicit primitives become triangles.
type TessellationOptions struct {
	// SphereDepth is the octant subdivision depth; each octant yields
	// 4^SphereDepth triangles.
	SphereDepth int `yaml:"sphere_depth" toml:"sphere_depth"`
	// CylinderSegments is the number of segments around a cylinder.
	CylinderSegments int `yaml:"cylinder_segments" toml:"cylinder_segments"`
}

// DefaultTessellation returns depth 2 spheres and 16 segment cylinders.
func DefaultTessellation() TessellationOptions {
	return TessellationOptions{SphereDepth: 2, CylinderSegments: 16}
}

func (o TessellationOptions) withDefaults() TessellationOptions {
	d := DefaultTessellation()
	if o.SphereDepth <= 0 {
		o.SphereDepth = d.SphereDepth
	}
	if o.CylinderSegments < 3 {
		o.CylinderSegments = d.CylinderSegments
	}
	return o
}

var octants = [8][3]math.Vec3{
	{{X: 1}, {Y: 1}, {Z: 1}},
	{{X: 1}, {Y: 1}, {Z: -1}},
	{{X: 1}, {Y: -1}, {Z: 1}},
	{{X: 1}, {Y: -1}, {Z: -1}},
	{{X: -1}, {Y: 1}, {Z: 1}},
	{{X: -1}, {Y: 1}, {Z: -1}},
	{{X: -1}, {Y: -1}, {Z: 1}},
	{{X: -1}, {Y: -1}, {Z: -1}},
}

// TessellateSphere appends 8·4^depth triangles approximating s to va.
// Normals are the unit directions from the center.
func TessellateSphere(va *VertexArray, s Sphere, depth int) {
	for _, o := range octants {
		tessellateOctant(va, s, o[0], o[1], o[2], depth)
	}
}

func tessellateOctant(va *VertexArray, s Sphere, du, dv, dw math.Vec3, depth int) {
	duv := du.Add(dv).Normalize()
	duw := du.Add(dw).Normalize()
	dvw := dv.Add(dw).Normalize()

	if depth > 1 {
		tessellateOctant(va, s, du, duv, duw, depth-1)
		tessellateOctant(va, s, dv, dvw, duv, depth-1)
		tessellateOctant(va, s, dw, dvw, duw, depth-1)
		tessellateOctant(va, s, duv, dvw, duw, depth-1)
		return
	}

	base := int32(len(va.Coord))
	for _, d := range [6]math.Vec3{du, dv, dw, duv, duw, dvw} {
		va.Coord = append(va.Coord, s.Center.Add(d.Scale(s.Radius)))
		va.Normal = append(va.Normal, d)
	}
	va.Triangle = append(va.Triangle,
		math.Vec3i{X: 0, Y: 3, Z: 4}.Add(base),
		math.Vec3i{X: 1, Y: 3, Z: 5}.Add(base),
		math.Vec3i{X: 2, Y: 4, Z: 5}.Add(base),
		math.Vec3i{X: 3, Y: 4, Z: 5}.Add(base),
	)
}

// TessellateCylinder appends an open tube of 2·segments triangles around
// the axis of c to va. The ring wraps back to its first vertices.
func TessellateCylinder(va *VertexArray, c Cylinder, segments int) {
	axis := c.Apex.Sub(c.Base)
	l := axis.Length()
	space := math.Frame(axis.Normalize())
	space.P = c.Base

	base := int32(len(va.Coord))
	n := int32(segments)
	for i := int32(0); i < n; i++ {
		phi := float32(i) * 2 * math32.Pi / float32(n)
		u := c.Radius * math32.Cos(phi)
		v := c.Radius * math32.Sin(phi)

		nrm := space.TransformVector(math.Vec3{X: u, Y: v})
		va.Coord = append(va.Coord,
			space.TransformPoint(math.Vec3{X: u, Y: v}),
			space.TransformPoint(math.Vec3{X: u, Y: v, Z: l}))
		va.Normal = append(va.Normal, nrm, nrm)

		i0 := (2*i + 0) % (2 * n)
		i1 := (2*i + 1) % (2 * n)
		i2 := (2*i + 2) % (2 * n)
		i3 := (2*i + 3) % (2 * n)
		va.Triangle = append(va.Triangle,
			math.Vec3i{X: i0, Y: i1, Z: i2}.Add(base),
			math.Vec3i{X: i1, Y: i2, Z: i3}.Add(base))
	}
}

// GroupByTexture merges prims into one vertex array per distinct texture
// ID. Each pass takes the texture of the first remaining primitive,
// tessellates every primitive with that texture, and keeps the rest for
// the next pass. Groups come out in order of first appearance; passes
// equals the number of groups.
func GroupByTexture[P any](prims []P, textureID func(P) int, tessellate func(*VertexArray, P)) (groups []*VertexArray, passes int) {
	remaining := prims
	for len(remaining) > 0 {
		id := textureID(remaining[0])
		va := &VertexArray{TextureID: id}
		var notMatching []P
		for _, p := range remaining {
			if textureID(p) != id {
				notMatching = append(notMatching, p)
				continue
			}
			tessellate(va, p)
		}
		groups = append(groups, va)
		remaining = notMatching
		passes++
	}
	return groups, passes
}

// TessellateSpheres groups spheres by texture and tessellates them.
func TessellateSpheres(spheres []Sphere, opts TessellationOptions) []*VertexArray {
	opts = opts.withDefaults()
	groups, _ := GroupByTexture(spheres,
		func(s Sphere) int { return s.TextureID },
		func(va *VertexArray, s Sphere) { TessellateSphere(va, s, opts.SphereDepth) })
	return groups
}

// TessellateCylinders groups cylinders by texture and tessellates them.
func TessellateCylinders(cylinders []Cylinder, opts TessellationOptions) []*VertexArray {
	opts = opts.withDefaults()
	groups, _ := GroupByTexture(cylinders,
		func(c Cylinder) int { return c.TextureID },
		func(va *VertexArray, c Cylinder) { TessellateCylinder(va, c, opts.CylinderSegments) })
	return groups
}

// FlatTriangles groups flat triangles by texture into vertex arrays with
// face normals.
func FlatTriangles(tris []Triangle) []*VertexArray {
	groups, _ := GroupByTexture(tris,
		func(t Triangle) int { return t.TextureID },
		func(va *VertexArray, t Triangle) {
			base := int32(len(va.Coord))
			n := t.V1.Sub(t.V0).Cross(t.V2.Sub(t.V0)).Normalize()
			va.Coord = append(va.Coord, t.V0, t.V1, t.V2)
			va.Normal = append(va.Normal, n, n, n)
			va.Triangle = append(va.Triangle, math.Vec3i{X: 0, Y: 1, Z: 2}.Add(base))
		})
	return groups
}

// SplitByTexture breaks a vertex array whose triangles carry their own
// texture into one array per texture. Arrays without per-triangle textures
// are returned as is.
func SplitByTexture(va *VertexArray) []*VertexArray {
	if len(va.PerTriTextureID) == 0 {
		return []*VertexArray{va}
	}
	tris := make([]int, len(va.Triangle))
	for i := range tris {
		tris[i] = i
	}
	groups, _ := GroupByTexture(tris,
		func(i int) int { return int(va.PerTriTextureID[i]) },
		func(out *VertexArray, i int) {
			t := va.Triangle[i]
			base := int32(len(out.Coord))
			for _, idx := range [3]int32{t.X, t.Y, t.Z} {
				out.Coord = append(out.Coord, va.Coord[idx])
				if len(va.Normal) > 0 {
					out.Normal = append(out.Normal, va.Normal[idx])
				}
				if len(va.Color) > 0 {
					out.Color = append(out.Color, va.Color[idx])
				}
			}
			out.Triangle = append(out.Triangle, math.Vec3i{X: 0, Y: 1, Z: 2}.Add(base))
		})
	return groups
}
