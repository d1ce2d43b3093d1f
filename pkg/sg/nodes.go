package sg

import (
	"errors"
	"fmt"

	"github.com/Faultbox/rayscene/pkg/engine"
	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
	"github.com/chewxy/math32"
)

// Node construction errors.
var (
	ErrNoMesh        = errors.New("triangle mesh node without mesh")
	ErrNoTexture     = errors.New("texture node without texels")
	ErrTextureFormat = errors.New("unsupported texel layout")
)

// DefaultMaterialType is the engine material created when none is named.
const DefaultMaterialType = "OBJMaterial"

// Material creates an engine material of the type held by its "type"
// child. Changing the type, or committing under a different renderer,
// creates a new material; other children are pushed as parameters.
type Material struct {
	createdType     string
	createdRenderer string
}

// NewMaterial creates a material node. An empty typ selects
// DefaultMaterialType.
func NewMaterial(name, typ string) *Node {
	if typ == "" {
		typ = DefaultMaterialType
	}
	n := New(name, "Material", nil)
	n.cap = &Material{}
	n.CreateChild("type", "string", typ).SetFlags(Required)
	return n
}

// NewMaterialFrom creates a material node carrying the parameters of mat.
// Texture parameters become Texture2D children.
func NewMaterialFrom(mat *scene.Material) *Node {
	typ := mat.Type
	if typ == "" || typ == scene.DefaultMaterialType {
		typ = DefaultMaterialType
	}
	n := NewMaterial(mat.Name, typ)
	for _, name := range mat.Names() {
		p, _ := mat.Param(name)
		switch p.Type {
		case scene.ParamFloat:
			n.CreateChild(name, "float", p.F[0])
		case scene.ParamFloat2:
			n.CreateChild(name, "vec2f", math.Vec2{X: p.F[0], Y: p.F[1]})
		case scene.ParamFloat3:
			n.CreateChild(name, "vec3f", math.Vec3{X: p.F[0], Y: p.F[1], Z: p.F[2]}).SetFlags(GUIColor)
		case scene.ParamFloat4:
			n.CreateChild(name, "vec4f", math.Vec4{X: p.F[0], Y: p.F[1], Z: p.F[2], W: p.F[3]})
		case scene.ParamInt:
			n.CreateChild(name, "int", p.I[0])
		case scene.ParamString:
			n.CreateChild(name, "string", p.S)
		case scene.ParamTexture:
			if p.Texture != nil {
				n.Add(NewTexture2D(name, p.Texture))
			}
		}
	}
	return n
}

func materialType(n *Node) string {
	s, _ := n.ChildValue("type", DefaultMaterialType).(string)
	return s
}

func (m *Material) NeedsRecreate(rc *RenderContext, n *Node) bool {
	return materialType(n) != m.createdType || rc.RendererType != m.createdRenderer
}

func (m *Material) CreateEngineObject(rc *RenderContext, n *Node) (engine.Handle, error) {
	typ := materialType(n)
	h, err := rc.Device.NewMaterial(rc.RendererType, typ)
	if err != nil {
		return engine.NilHandle, err
	}
	m.createdType = typ
	m.createdRenderer = rc.RendererType
	return h, nil
}

// PushParameters binds the texture children.
func (m *Material) PushParameters(rc *RenderContext, n *Node) error {
	for _, c := range n.children {
		if _, ok := c.cap.(*Texture2D); ok && !c.handle.IsNil() {
			rc.Device.SetObject(n.handle, c.name, c.handle)
		}
	}
	return nil
}

// Texture2D creates an engine texture from a *scene.Texture2D value.
// Replacing the value creates a new texture.
type Texture2D struct{}

// NewTexture2D creates a texture node.
func NewTexture2D(name string, tex *scene.Texture2D) *Node {
	n := New(name, "Texture2D", tex)
	n.cap = &Texture2D{}
	return n
}

func (*Texture2D) NeedsRecreate(_ *RenderContext, n *Node) bool {
	return n.lastModified > n.lastCommitted
}

func (*Texture2D) CreateEngineObject(rc *RenderContext, n *Node) (engine.Handle, error) {
	tex, _ := n.value.(*scene.Texture2D)
	if tex == nil {
		return engine.NilHandle, ErrNoTexture
	}
	format := tex.Format()
	if format == "" {
		return engine.NilHandle, fmt.Errorf("%w: %d channels of %d bytes", ErrTextureFormat, tex.Channels, tex.Depth)
	}
	return rc.Device.NewTexture(format, tex.Width, tex.Height, tex.Data)
}

func (*Texture2D) PushParameters(*RenderContext, *Node) error {
	return nil
}

// Renderer owns the world, the lights and the render settings. Changing
// "rendererType" creates a new renderer, and with it new materials and
// lights below it.
type Renderer struct {
	createdType string
	stashed     string
}

// Renderer types accepted by the "rendererType" child.
var RendererTypes = []any{"scivis", "pathtracer"}

// NewRenderer creates a renderer node with its default settings and an
// empty world.
func NewRenderer() *Node {
	n := New("renderer", "Renderer", nil)
	n.cap = &Renderer{}
	n.Add(NewWorld("world"))
	n.CreateChild("lights", "Node", nil)
	n.CreateChild("rendererType", "string", "scivis").SetFlags(Required).SetWhitelist(RendererTypes...)
	n.CreateChild("shadowsEnabled", "bool", true)
	n.CreateChild("maxDepth", "int", 5).SetFlags(Required).SetMinMax(0, 999)
	n.CreateChild("aoSamples", "int", 1).SetFlags(Required|GUISlider).SetMinMax(0, 128)
	n.CreateChild("spp", "int", 1).SetFlags(Required|GUISlider).SetMinMax(-8, 128)
	n.CreateChild("aoDistance", "float", float32(1)).SetFlags(Required).SetMinMax(float32(1e-31), float32(math32.MaxFloat32))
	n.CreateChild("oneSidedLighting", "bool", true).SetFlags(Required)
	return n
}

func rendererType(n *Node) string {
	s, _ := n.ChildValue("rendererType", "scivis").(string)
	return s
}

func (r *Renderer) NeedsRecreate(_ *RenderContext, n *Node) bool {
	return rendererType(n) != r.createdType
}

func (r *Renderer) CreateEngineObject(rc *RenderContext, n *Node) (engine.Handle, error) {
	typ := rendererType(n)
	h, err := rc.Device.NewRenderer(typ)
	if err != nil {
		return engine.NilHandle, err
	}
	r.createdType = typ
	return h, nil
}

func (r *Renderer) Enter(rc *RenderContext, n *Node) {
	r.stashed = rc.RendererType
	rc.RendererType = r.createdType
}

func (r *Renderer) Exit(rc *RenderContext, _ *Node) {
	rc.RendererType = r.stashed
}

// PushParameters binds the world model and the light list.
func (r *Renderer) PushParameters(rc *RenderContext, n *Node) error {
	if w := n.Child("world"); w != nil && !w.handle.IsNil() {
		rc.Device.SetObject(n.handle, "model", w.handle)
	}
	var lights []engine.Handle
	if l := n.Child("lights"); l != nil {
		for _, c := range l.children {
			if !c.handle.IsNil() {
				lights = append(lights, c.handle)
			}
		}
	}
	data, err := rc.Device.NewData(engine.DataObject, len(lights), lights)
	if err != nil {
		return err
	}
	rc.Device.SetData(n.handle, "lights", data)
	return nil
}

// World builds an engine model from its geometry children. Any change
// below it rebuilds the model.
type World struct{}

// NewWorld creates an empty world node.
func NewWorld(name string) *Node {
	n := New(name, "World", nil)
	n.cap = &World{}
	return n
}

func (*World) NeedsRecreate(*RenderContext, *Node) bool {
	return true
}

func (*World) CreateEngineObject(rc *RenderContext, _ *Node) (engine.Handle, error) {
	return rc.Device.NewModel()
}

// PushParameters adds every committed geometry child to the model.
func (*World) PushParameters(rc *RenderContext, n *Node) error {
	for _, c := range n.children {
		if _, ok := c.cap.(*TriangleMesh); !ok || c.handle.IsNil() {
			continue
		}
		if err := rc.Device.AddGeometry(n.handle, c.handle); err != nil {
			return err
		}
	}
	return nil
}

// WorldBounds returns the union of the mesh bounds below n.
func WorldBounds(n *Node) math.Box3 {
	b := math.EmptyBox()
	n.Walk(func(c *Node) bool {
		if mesh, ok := c.value.(*scene.Mesh); ok && mesh != nil {
			b.ExtendBox(mesh.Bounds())
		}
		return true
	})
	return b
}

// TriangleMesh creates a "triangles" geometry from a *scene.Mesh value and
// binds the Material child to it.
type TriangleMesh struct{}

// NewTriangleMesh creates a mesh node. A detached material becomes its
// "material" child; a material that already has a parent, such as one
// shared through a world's material group, is referenced instead.
func NewTriangleMesh(name string, mesh *scene.Mesh, material *Node) *Node {
	n := New(name, "TriangleMesh", mesh)
	n.cap = &TriangleMesh{}
	switch {
	case material == nil:
	case material.parent == nil:
		material.name = "material"
		n.Add(material)
	default:
		n.CreateChild("material", "ref", material)
	}
	return n
}

// material returns the material node bound to a mesh node.
func (*TriangleMesh) material(n *Node) *Node {
	m := n.Child("material")
	if m == nil {
		return nil
	}
	if ref, ok := m.value.(*Node); ok {
		return ref
	}
	return m
}

func (*TriangleMesh) NeedsRecreate(_ *RenderContext, n *Node) bool {
	return n.lastModified > n.lastCommitted
}

func (*TriangleMesh) CreateEngineObject(rc *RenderContext, n *Node) (engine.Handle, error) {
	mesh, _ := n.value.(*scene.Mesh)
	if mesh == nil {
		return engine.NilHandle, ErrNoMesh
	}
	dev := rc.Device
	geom, err := dev.NewGeometry("triangles")
	if err != nil {
		return engine.NilHandle, err
	}

	type slot struct {
		name string
		typ  engine.DataType
		n    int
		data any
	}
	slots := []slot{
		{"position", engine.DataFloat3, len(mesh.Position), mesh.Position},
		{"index", engine.DataInt3, len(mesh.Triangle), mesh.Triangle},
		{"vertex.normal", engine.DataFloat3, len(mesh.Normal), mesh.Normal},
		{"vertex.color", engine.DataFloat4, len(mesh.Color), mesh.Color},
		{"vertex.texcoord", engine.DataFloat2, len(mesh.Texcoord), mesh.Texcoord},
	}
	for _, s := range slots {
		if s.n == 0 {
			continue
		}
		data, err := dev.NewData(s.typ, s.n, s.data)
		if err != nil {
			return engine.NilHandle, fmt.Errorf("%s: %w", s.name, err)
		}
		dev.SetData(geom, s.name, data)
	}
	return geom, nil
}

// PushParameters binds the material child.
func (t *TriangleMesh) PushParameters(rc *RenderContext, n *Node) error {
	if m := t.material(n); m != nil && !m.handle.IsNil() {
		rc.Device.SetObject(n.handle, "material", m.handle)
	}
	return nil
}

// Light creates an engine light of the kind held by its "type" child.
type Light struct {
	createdType     string
	createdRenderer string
}

// NewLight creates a light node with a white color and unit intensity.
func NewLight(name, kind string) *Node {
	n := New(name, "Light", nil)
	n.cap = &Light{}
	n.CreateChild("type", "string", kind).SetFlags(Required)
	n.CreateChild("color", "vec3f", math.Splat(1)).SetFlags(GUIColor)
	n.CreateChild("intensity", "float", float32(1)).SetMinMax(float32(0), nil)
	return n
}

func lightType(n *Node) string {
	s, _ := n.ChildValue("type", "").(string)
	return s
}

func (l *Light) NeedsRecreate(rc *RenderContext, n *Node) bool {
	return lightType(n) != l.createdType || rc.RendererType != l.createdRenderer
}

func (l *Light) CreateEngineObject(rc *RenderContext, n *Node) (engine.Handle, error) {
	typ := lightType(n)
	h, err := rc.Device.NewLight(rc.RendererType, typ)
	if err != nil {
		return engine.NilHandle, err
	}
	l.createdType = typ
	l.createdRenderer = rc.RendererType
	return h, nil
}

func (*Light) PushParameters(*RenderContext, *Node) error {
	return nil
}
