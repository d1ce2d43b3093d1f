package math

import (
	"testing"

	"github.com/chewxy/math32"
)

func approxVec3(a, b Vec3) bool {
	const eps = 1e-5
	return math32.Abs(a.X-b.X) < eps && math32.Abs(a.Y-b.Y) < eps && math32.Abs(a.Z-b.Z) < eps
}

func TestIdentity(t *testing.T) {
	m := Identity()
	p := Vec3{1, 2, 3}
	if got := m.TransformPoint(p); got != p {
		t.Errorf("Identity().TransformPoint(%v) = %v", p, got)
	}
	if !m.IsIdentity() {
		t.Error("Identity().IsIdentity() = false")
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(Vec3{5, 10, 15})
	if got := m.TransformPoint(Vec3{}); got != (Vec3{5, 10, 15}) {
		t.Errorf("Translate: got %v, want (5, 10, 15)", got)
	}
	if got := m.TransformVector(Vec3{1, 0, 0}); got != (Vec3{1, 0, 0}) {
		t.Errorf("translation must not affect vectors, got %v", got)
	}
}

func TestMulOrder(t *testing.T) {
	// Scale first, then translate.
	m := Translate(Vec3{1, 0, 0}).Mul(Scale(Vec3{2, 2, 2}))
	got := m.TransformPoint(Vec3{1, 1, 1})
	want := Vec3{3, 2, 2}
	if got != want {
		t.Errorf("T*S applied to (1,1,1) = %v, want %v", got, want)
	}
}

func TestRotateAxis(t *testing.T) {
	m := RotateAxis(Vec3{0, 0, 1}, math32.Pi/2)
	got := m.TransformVector(Vec3{1, 0, 0})
	if !approxVec3(got, Vec3{0, 1, 0}) {
		t.Errorf("90deg about Z of X = %v, want (0, 1, 0)", got)
	}
}

func TestInverse(t *testing.T) {
	m := Translate(Vec3{1, 2, 3}).Mul(RotateAxis(Vec3{1, 1, 0}, 0.7)).Mul(Scale(Vec3{2, 3, 4}))
	p := Vec3{0.5, -1, 2}
	got := m.Inverse().TransformPoint(m.TransformPoint(p))
	if !approxVec3(got, p) {
		t.Errorf("inverse round trip = %v, want %v", got, p)
	}
}

func TestFrameOrthonormal(t *testing.T) {
	for _, n := range []Vec3{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}, {1, 2, 3}, {-1, 0.5, 0}} {
		f := Frame(n)
		if !approxVec3(f.Vz, n.Normalize()) {
			t.Errorf("Frame(%v).Vz = %v", n, f.Vz)
		}
		if d := f.Vx.Dot(f.Vy); math32.Abs(d) > 1e-5 {
			t.Errorf("Frame(%v) x.y = %v, want 0", n, d)
		}
		if d := f.Vx.Dot(f.Vz); math32.Abs(d) > 1e-5 {
			t.Errorf("Frame(%v) x.z = %v, want 0", n, d)
		}
		if l := f.Vx.Length(); math32.Abs(l-1) > 1e-5 {
			t.Errorf("Frame(%v) |x| = %v, want 1", n, l)
		}
	}
}

func TestQuatToAffineMatchesRotateAxis(t *testing.T) {
	axis := Vec3{0, 1, 0}
	angle := float32(0.8)
	q := QuatFromAxisAngle(axis, angle).ToAffine()
	r := RotateAxis(axis, angle)
	v := Vec3{1, 2, 3}
	if !approxVec3(q.TransformVector(v), r.TransformVector(v)) {
		t.Errorf("quat rotation %v != axis rotation %v", q.TransformVector(v), r.TransformVector(v))
	}
}

func TestTransformNormal(t *testing.T) {
	// Scaling x by 2 halves the x component of a normal.
	m := Scale(Vec3{2, 1, 1})
	n := m.TransformNormal(Vec3{1, 1, 0})
	if !approxVec3(n, Vec3{0.5, 1, 0}) {
		t.Errorf("TransformNormal = %v, want (0.5, 1, 0)", n)
	}

	// The transformed normal stays perpendicular to transformed tangents.
	tangent := m.TransformVector(Vec3{1, -1, 0})
	if d := n.Dot(tangent); math32.Abs(d) > 1e-5 {
		t.Errorf("normal not perpendicular to tangent: dot = %v", d)
	}
}
