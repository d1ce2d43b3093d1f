package main

import (
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
)

func TestSuggest(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"inf", "info"},
		{"INFO", "info"},
		{"imprt", "import"},
		{"tach2xl", "tach2xml"},
		{"wach", "watch"},
		{"frobnicate", ""},
	}
	for _, tt := range tests {
		if got := suggest(tt.in); got != tt.want {
			t.Errorf("suggest(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatBounds(t *testing.T) {
	if got := formatBounds(math.EmptyBox()); got != "(empty)" {
		t.Errorf("empty box: %s", got)
	}
	b := math.Box3{Lower: math.Vec3{X: -1}, Upper: math.Vec3{X: 1, Y: 2, Z: 0.5}}
	if got, want := formatBounds(b), "(-1, 0, 0) - (1, 2, 0.5)"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
