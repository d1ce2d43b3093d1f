package math

import "github.com/chewxy/math32"

// Box3 is an axis-aligned bounding box.
type Box3 struct {
	Lower, Upper Vec3
}

// EmptyBox returns a box that contains nothing; extending it by a point
// yields a degenerate box around that point.
func EmptyBox() Box3 {
	inf := math32.Inf(1)
	return Box3{
		Lower: Vec3{inf, inf, inf},
		Upper: Vec3{-inf, -inf, -inf},
	}
}

// Empty reports whether the box has never been extended.
func (b Box3) Empty() bool {
	return b.Lower.X > b.Upper.X || b.Lower.Y > b.Upper.Y || b.Lower.Z > b.Upper.Z
}

// Extend grows the box to include p.
func (b *Box3) Extend(p Vec3) {
	b.Lower = b.Lower.Min(p)
	b.Upper = b.Upper.Max(p)
}

// ExtendBox grows the box to include other.
func (b *Box3) ExtendBox(other Box3) {
	if other.Empty() {
		return
	}
	b.Extend(other.Lower)
	b.Extend(other.Upper)
}

// ExtendSphere grows the box to include a sphere of radius r around c.
func (b *Box3) ExtendSphere(c Vec3, r float32) {
	b.Extend(c.Sub(Splat(r)))
	b.Extend(c.Add(Splat(r)))
}

// Contains reports whether p lies inside the box (inclusive).
func (b Box3) Contains(p Vec3) bool {
	return p.X >= b.Lower.X && p.Y >= b.Lower.Y && p.Z >= b.Lower.Z &&
		p.X <= b.Upper.X && p.Y <= b.Upper.Y && p.Z <= b.Upper.Z
}

// ContainsBox reports whether other lies entirely inside the box.
func (b Box3) ContainsBox(other Box3) bool {
	if other.Empty() {
		return true
	}
	return b.Contains(other.Lower) && b.Contains(other.Upper)
}

// Center returns the midpoint of the box.
func (b Box3) Center() Vec3 {
	return b.Lower.Add(b.Upper).Scale(0.5)
}

// Size returns the box extent along each axis.
func (b Box3) Size() Vec3 {
	if b.Empty() {
		return Vec3{}
	}
	return b.Upper.Sub(b.Lower)
}

// Corner returns corner i (0..7); bit 0 selects X, bit 1 Y, bit 2 Z.
func (b Box3) Corner(i int) Vec3 {
	c := b.Lower
	if i&1 != 0 {
		c.X = b.Upper.X
	}
	if i&2 != 0 {
		c.Y = b.Upper.Y
	}
	if i&4 != 0 {
		c.Z = b.Upper.Z
	}
	return c
}

// Transform returns the bounds of the box's eight corners under xfm.
func (b Box3) Transform(xfm Affine3) Box3 {
	out := EmptyBox()
	if b.Empty() {
		return out
	}
	for i := 0; i < 8; i++ {
		out.Extend(xfm.TransformPoint(b.Corner(i)))
	}
	return out
}
