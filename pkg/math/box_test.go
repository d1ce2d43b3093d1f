package math

import "testing"

func TestEmptyBox(t *testing.T) {
	b := EmptyBox()
	if !b.Empty() {
		t.Fatal("EmptyBox should be empty")
	}
	if b.Contains(Vec3{}) {
		t.Error("empty box should not contain the origin")
	}
	if got := b.Size(); got != (Vec3{}) {
		t.Errorf("empty box size = %v, want zero", got)
	}
}

func TestBoxExtend(t *testing.T) {
	b := EmptyBox()
	points := []Vec3{{1, 2, 3}, {-1, 0, 5}, {0, 4, -2}}
	for _, p := range points {
		b.Extend(p)
	}

	if b.Lower != (Vec3{-1, 0, -2}) {
		t.Errorf("Lower = %v, want (-1, 0, -2)", b.Lower)
	}
	if b.Upper != (Vec3{1, 4, 5}) {
		t.Errorf("Upper = %v, want (1, 4, 5)", b.Upper)
	}
	for _, p := range points {
		if !b.Contains(p) {
			t.Errorf("box should contain %v", p)
		}
	}
}

func TestBoxExtendSphere(t *testing.T) {
	b := EmptyBox()
	b.ExtendSphere(Vec3{1, 1, 1}, 2)
	if b.Lower != (Vec3{-1, -1, -1}) || b.Upper != (Vec3{3, 3, 3}) {
		t.Errorf("sphere bounds = %v..%v, want (-1,-1,-1)..(3,3,3)", b.Lower, b.Upper)
	}
}

func TestBoxExtendBoxIgnoresEmpty(t *testing.T) {
	b := EmptyBox()
	b.Extend(Vec3{1, 1, 1})
	b.ExtendBox(EmptyBox())
	if b.Lower != (Vec3{1, 1, 1}) || b.Upper != (Vec3{1, 1, 1}) {
		t.Errorf("extending by an empty box changed bounds: %v..%v", b.Lower, b.Upper)
	}
}

func TestBoxTransform(t *testing.T) {
	b := Box3{Lower: Vec3{0, 0, 0}, Upper: Vec3{1, 2, 3}}
	got := b.Transform(Translate(Vec3{10, 0, 0}))
	if got.Lower != (Vec3{10, 0, 0}) || got.Upper != (Vec3{11, 2, 3}) {
		t.Errorf("translated box = %v..%v", got.Lower, got.Upper)
	}
}
