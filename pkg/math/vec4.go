package math

// Vec4 is a 4-component vector, used for vertex colors and packed positions.
type Vec4 struct {
	X, Y, Z, W float32
}

// XYZ drops the fourth component.
func (v Vec4) XYZ() Vec3 {
	return Vec3{v.X, v.Y, v.Z}
}

// Vec4i is a quadruple of indices. Volume cells are encoded as runs of these.
type Vec4i struct {
	X, Y, Z, W int32
}
