package math

import "github.com/chewxy/math32"

// Affine3 is a 3x3 linear map plus a translation. The linear part is stored
// by columns: a point p maps to Vx*p.X + Vy*p.Y + Vz*p.Z + P.
type Affine3 struct {
	Vx, Vy, Vz Vec3
	P          Vec3
}

// Identity returns the identity transform.
func Identity() Affine3 {
	return Affine3{
		Vx: Vec3{1, 0, 0},
		Vy: Vec3{0, 1, 0},
		Vz: Vec3{0, 0, 1},
	}
}

// Translate creates a translation.
func Translate(t Vec3) Affine3 {
	m := Identity()
	m.P = t
	return m
}

// Scale creates a non-uniform scale.
func Scale(s Vec3) Affine3 {
	return Affine3{
		Vx: Vec3{s.X, 0, 0},
		Vy: Vec3{0, s.Y, 0},
		Vz: Vec3{0, 0, s.Z},
	}
}

// RotateAxis creates a rotation around an arbitrary axis.
// axis is normalized here; angle is in radians.
func RotateAxis(axis Vec3, angle float32) Affine3 {
	a := axis.Normalize()
	c := math32.Cos(angle)
	s := math32.Sin(angle)
	t := 1 - c
	x, y, z := a.X, a.Y, a.Z

	return Affine3{
		Vx: Vec3{t*x*x + c, t*x*y + s*z, t*x*z - s*y},
		Vy: Vec3{t*x*y - s*z, t*y*y + c, t*y*z + s*x},
		Vz: Vec3{t*x*z + s*y, t*y*z - s*x, t*z*z + c},
	}
}

// Frame returns a rotation whose z axis is the normalized n.
func Frame(n Vec3) Affine3 {
	dz := n.Normalize()
	dx0 := Vec3{1, 0, 0}.Cross(dz)
	dx1 := Vec3{0, 1, 0}.Cross(dz)
	dx := dx1
	if dx0.Dot(dx0) > dx1.Dot(dx1) {
		dx = dx0
	}
	dx = dx.Normalize()
	dy := dz.Cross(dx).Normalize()
	return Affine3{Vx: dx, Vy: dy, Vz: dz}
}

// TransformVector applies the linear part only.
func (m Affine3) TransformVector(v Vec3) Vec3 {
	return m.Vx.Scale(v.X).Add(m.Vy.Scale(v.Y)).Add(m.Vz.Scale(v.Z))
}

// TransformPoint applies the full transform to a point.
func (m Affine3) TransformPoint(p Vec3) Vec3 {
	return m.TransformVector(p).Add(m.P)
}

// TransformNormal transforms a surface normal by the inverse transpose of
// the linear part. The result is not normalized.
func (m Affine3) TransformNormal(n Vec3) Vec3 {
	inv := m.Inverse()
	return Vec3{inv.Vx.Dot(n), inv.Vy.Dot(n), inv.Vz.Dot(n)}
}

// Mul composes two transforms; the result applies other first, then m.
func (m Affine3) Mul(other Affine3) Affine3 {
	return Affine3{
		Vx: m.TransformVector(other.Vx),
		Vy: m.TransformVector(other.Vy),
		Vz: m.TransformVector(other.Vz),
		P:  m.TransformPoint(other.P),
	}
}

// Det returns the determinant of the linear part.
func (m Affine3) Det() float32 {
	return m.Vx.Dot(m.Vy.Cross(m.Vz))
}

// Inverse returns the inverse transform. A singular linear part yields the
// identity.
func (m Affine3) Inverse() Affine3 {
	det := m.Det()
	if math32.Abs(det) < 1e-12 {
		return Identity()
	}
	inv := 1 / det

	// Rows of the inverse are the cross products of the columns.
	r0 := m.Vy.Cross(m.Vz).Scale(inv)
	r1 := m.Vz.Cross(m.Vx).Scale(inv)
	r2 := m.Vx.Cross(m.Vy).Scale(inv)

	l := Affine3{
		Vx: Vec3{r0.X, r1.X, r2.X},
		Vy: Vec3{r0.Y, r1.Y, r2.Y},
		Vz: Vec3{r0.Z, r1.Z, r2.Z},
	}
	l.P = l.TransformVector(m.P).Neg()
	return l
}

// IsIdentity reports whether m is exactly the identity.
func (m Affine3) IsIdentity() bool {
	return m == Identity()
}

// Array returns the transform as 12 floats, columns first, translation last.
func (m Affine3) Array() [12]float32 {
	return [12]float32{
		m.Vx.X, m.Vx.Y, m.Vx.Z,
		m.Vy.X, m.Vy.Y, m.Vy.Z,
		m.Vz.X, m.Vz.Y, m.Vz.Z,
		m.P.X, m.P.Y, m.P.Z,
	}
}
