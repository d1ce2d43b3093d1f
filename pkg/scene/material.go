// Package scene defines the in-memory scene model that every importer
// populates: meshes, instances, materials, textures and cameras.
package scene

import (
	"fmt"

	"github.com/Faultbox/rayscene/pkg/math"
)

// DefaultMaterialType is the type tag given to materials parsed from OBJ/MTL
// and to the synthetic materials importers create.
const DefaultMaterialType = "OBJ"

// ParamType identifies the kind of value stored in a Param.
type ParamType int

// Parameter kinds.
const (
	ParamInt ParamType = iota
	ParamInt2
	ParamInt3
	ParamInt4
	ParamFloat
	ParamFloat2
	ParamFloat3
	ParamFloat4
	ParamString
	ParamTexture
)

var paramTypeNames = [...]string{
	ParamInt:     "int",
	ParamInt2:    "int2",
	ParamInt3:    "int3",
	ParamInt4:    "int4",
	ParamFloat:   "float",
	ParamFloat2:  "float2",
	ParamFloat3:  "float3",
	ParamFloat4:  "float4",
	ParamString:  "string",
	ParamTexture: "texture",
}

func (t ParamType) String() string {
	if t >= 0 && int(t) < len(paramTypeNames) {
		return paramTypeNames[t]
	}
	return fmt.Sprintf("ParamType(%d)", int(t))
}

// Components returns the number of numeric components for int/float kinds.
func (t ParamType) Components() int {
	switch t {
	case ParamInt, ParamFloat:
		return 1
	case ParamInt2, ParamFloat2:
		return 2
	case ParamInt3, ParamFloat3:
		return 3
	case ParamInt4, ParamFloat4:
		return 4
	}
	return 0
}

// Param is one named material parameter.
type Param struct {
	Type    ParamType
	I       [4]int32
	F       [4]float32
	S       string
	Texture *Texture2D
}

// Material is a named, typed bag of parameters. Parameters keep their
// insertion order so that downstream consumers see a stable sequence.
type Material struct {
	Name string
	Type string

	// Textures is the material's own texture table; int parameters named
	// map_* index into it in formats that reference textures by number.
	Textures []*Texture2D

	params map[string]Param
	order  []string
}

// NewMaterial creates a material with the OBJ defaults Kd=0.7, Ks=0, Ka=0.
func NewMaterial(name string) *Material {
	m := &Material{Name: name, Type: DefaultMaterialType}
	m.SetVec3("Kd", math.Splat(0.7))
	m.SetVec3("Ks", math.Vec3{})
	m.SetVec3("Ka", math.Vec3{})
	return m
}

// Set stores p under name, replacing any previous value.
func (m *Material) Set(name string, p Param) {
	if m.params == nil {
		m.params = make(map[string]Param)
	}
	if _, ok := m.params[name]; !ok {
		m.order = append(m.order, name)
	}
	m.params[name] = p
}

// SetFloat stores a float parameter.
func (m *Material) SetFloat(name string, v float32) {
	m.Set(name, Param{Type: ParamFloat, F: [4]float32{v}})
}

// SetVec2 stores a float2 parameter.
func (m *Material) SetVec2(name string, v math.Vec2) {
	m.Set(name, Param{Type: ParamFloat2, F: [4]float32{v.X, v.Y}})
}

// SetVec3 stores a float3 parameter.
func (m *Material) SetVec3(name string, v math.Vec3) {
	m.Set(name, Param{Type: ParamFloat3, F: [4]float32{v.X, v.Y, v.Z}})
}

// SetVec4 stores a float4 parameter.
func (m *Material) SetVec4(name string, v math.Vec4) {
	m.Set(name, Param{Type: ParamFloat4, F: [4]float32{v.X, v.Y, v.Z, v.W}})
}

// SetInt stores an int parameter.
func (m *Material) SetInt(name string, v int32) {
	m.Set(name, Param{Type: ParamInt, I: [4]int32{v}})
}

// SetInts stores an int2..int4 parameter from the first n components of v.
func (m *Material) SetInts(name string, v [4]int32, n int) {
	t := ParamInt
	switch n {
	case 2:
		t = ParamInt2
	case 3:
		t = ParamInt3
	case 4:
		t = ParamInt4
	}
	m.Set(name, Param{Type: t, I: v})
}

// SetString stores a string parameter.
func (m *Material) SetString(name, v string) {
	m.Set(name, Param{Type: ParamString, S: v})
}

// SetTexture stores a texture reference. A nil texture is not stored.
func (m *Material) SetTexture(name string, tex *Texture2D) {
	if tex == nil {
		return
	}
	m.Set(name, Param{Type: ParamTexture, Texture: tex})
}

// Param returns the named parameter.
func (m *Material) Param(name string) (Param, bool) {
	p, ok := m.params[name]
	return p, ok
}

// Has reports whether the named parameter exists.
func (m *Material) Has(name string) bool {
	_, ok := m.params[name]
	return ok
}

// Remove deletes the named parameter.
func (m *Material) Remove(name string) {
	if _, ok := m.params[name]; !ok {
		return
	}
	delete(m.params, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Names returns parameter names in insertion order.
func (m *Material) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Float returns a float parameter or def if absent or of another kind.
func (m *Material) Float(name string, def float32) float32 {
	if p, ok := m.params[name]; ok && p.Type == ParamFloat {
		return p.F[0]
	}
	return def
}

// Vec3 returns a float3 parameter or def.
func (m *Material) Vec3(name string, def math.Vec3) math.Vec3 {
	if p, ok := m.params[name]; ok && p.Type == ParamFloat3 {
		return math.Vec3{X: p.F[0], Y: p.F[1], Z: p.F[2]}
	}
	return def
}

// Int returns an int parameter or def.
func (m *Material) Int(name string, def int32) int32 {
	if p, ok := m.params[name]; ok && p.Type == ParamInt {
		return p.I[0]
	}
	return def
}

// StringParam returns a string parameter or def.
func (m *Material) StringParam(name, def string) string {
	if p, ok := m.params[name]; ok && p.Type == ParamString {
		return p.S
	}
	return def
}

// Texture returns a texture parameter or nil.
func (m *Material) Texture(name string) *Texture2D {
	if p, ok := m.params[name]; ok && p.Type == ParamTexture {
		return p.Texture
	}
	return nil
}

// Clone returns a copy with its own parameter table. Textures are shared.
func (m *Material) Clone() *Material {
	c := &Material{
		Name:     m.Name,
		Type:     m.Type,
		Textures: append([]*Texture2D(nil), m.Textures...),
		params:   make(map[string]Param, len(m.params)),
		order:    append([]string(nil), m.order...),
	}
	for k, v := range m.params {
		c.params[k] = v
	}
	return c
}
