package scene

import (
	"testing"

	"github.com/Faultbox/rayscene/pkg/math"
)

func TestNewMaterialDefaults(t *testing.T) {
	m := NewMaterial("default")
	if m.Type != "OBJ" {
		t.Errorf("Type = %q, want OBJ", m.Type)
	}
	if got := m.Vec3("Kd", math.Vec3{}); got != math.Splat(0.7) {
		t.Errorf("Kd = %v, want 0.7 gray", got)
	}
	if got := m.Names(); len(got) != 3 || got[0] != "Kd" {
		t.Errorf("Names() = %v", got)
	}
}

func TestMaterialParamDefaults(t *testing.T) {
	m := &Material{}
	m.SetFloat("d", 0.5)
	m.SetString("type", "Glass")

	if got := m.Float("d", 1); got != 0.5 {
		t.Errorf("Float(d) = %v, want 0.5", got)
	}
	if got := m.Float("Ns", 10); got != 10 {
		t.Errorf("missing Float(Ns) = %v, want default 10", got)
	}
	// Kind mismatch falls back to the default.
	if got := m.Float("type", 3); got != 3 {
		t.Errorf("Float on a string param = %v, want default", got)
	}
	if got := m.StringParam("type", ""); got != "Glass" {
		t.Errorf("StringParam(type) = %q", got)
	}
}

func TestMaterialSetKeepsOrder(t *testing.T) {
	m := &Material{}
	m.SetFloat("a", 1)
	m.SetFloat("b", 2)
	m.SetFloat("a", 3)
	m.Remove("b")
	m.SetFloat("c", 4)

	names := m.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Errorf("Names() = %v, want [a c]", names)
	}
	if m.Float("a", 0) != 3 {
		t.Error("overwrite should replace the value")
	}
}

func TestMaterialNilTextureIgnored(t *testing.T) {
	m := &Material{}
	m.SetTexture("map_Kd", nil)
	if m.Has("map_Kd") {
		t.Error("nil texture should not be stored")
	}
	tex := &Texture2D{Width: 1, Height: 1, Channels: 3, Depth: 1}
	m.SetTexture("map_Kd", tex)
	if m.Texture("map_Kd") != tex {
		t.Error("texture param not returned")
	}
}

func TestMaterialCloneIsIndependent(t *testing.T) {
	m := NewMaterial("a")
	c := m.Clone()
	c.SetFloat("d", 0.1)
	if m.Has("d") {
		t.Error("clone shares parameter table with original")
	}
}

func TestTextureFormat(t *testing.T) {
	tests := []struct {
		tex  Texture2D
		want string
	}{
		{Texture2D{Channels: 3, Depth: 1}, "SRGB"},
		{Texture2D{Channels: 3, Depth: 1, PreferLinear: true}, "RGB8"},
		{Texture2D{Channels: 4, Depth: 1}, "SRGBA"},
		{Texture2D{Channels: 1, Depth: 1}, "R8"},
		{Texture2D{Channels: 3, Depth: 4}, "RGB32F"},
		{Texture2D{Channels: 1, Depth: 4}, "R32F"},
		{Texture2D{Channels: 2, Depth: 1}, ""},
	}
	for _, tt := range tests {
		if got := tt.tex.Format(); got != tt.want {
			t.Errorf("Format(%d ch, depth %d, linear %v) = %q, want %q",
				tt.tex.Channels, tt.tex.Depth, tt.tex.PreferLinear, got, tt.want)
		}
	}
}
