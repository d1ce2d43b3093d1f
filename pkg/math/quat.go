package math

import "github.com/chewxy/math32"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// angle is in radians; a zero axis yields the identity.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	a := axis.Normalize()
	if a == (Vec3{}) {
		return QuatIdentity()
	}
	s := math32.Sin(angle / 2)
	return Quat{
		X: a.X * s,
		Y: a.Y * s,
		Z: a.Z * s,
		W: math32.Cos(angle / 2),
	}
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if length < 0.0001 {
		return QuatIdentity()
	}
	inv := 1 / length
	return Quat{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

// Conjugate returns the inverse rotation of a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// Mul multiplies two quaternions (combines rotations).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// ToAffine converts the quaternion to a rotation transform.
func (q Quat) ToAffine() Affine3 {
	q = q.Normalize()

	xx := q.X * q.X
	xy := q.X * q.Y
	xz := q.X * q.Z
	xw := q.X * q.W
	yy := q.Y * q.Y
	yz := q.Y * q.Z
	yw := q.Y * q.W
	zz := q.Z * q.Z
	zw := q.Z * q.W

	return Affine3{
		Vx: Vec3{1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw)},
		Vy: Vec3{2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw)},
		Vz: Vec3{2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy)},
	}
}
