package adapter

import (
	"context"
	"fmt"
	gomath "math"

	"github.com/Faultbox/rayscene/pkg/engine"
	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/tachyon"
	"go.uber.org/zap"
)

// Packed primitive layouts shared with the engine's sphere and cylinder
// geometries. The material id is stored in the first float's bits.
const (
	floatsPerSphere   = 5
	floatsPerCylinder = 8
	floatsPerTexture  = 10
	floatsPerPoint    = 9
	floatsPerDir      = 6
)

// TachyonScene is the engine side of a Tachyon model.
type TachyonScene struct {
	Model        engine.Handle
	Lights       []engine.Handle
	Bounds       math.Box3
	NumTriangles int
}

// TachyonParser creates engine objects for Tachyon models. Spheres and
// cylinders are handed over as implicit primitives; triangles become
// triangle meshes.
type TachyonParser struct {
	dev      engine.Device
	renderer string
	log      *zap.Logger
}

// NewTachyonParser creates an adapter creating materials and lights for
// renderer. A nil logger disables logging.
func NewTachyonParser(dev engine.Device, renderer string, log *zap.Logger) *TachyonParser {
	if log == nil {
		log = zap.NewNop()
	}
	if renderer == "" {
		renderer = DefaultOptions().Renderer
	}
	return &TachyonParser{dev: dev, renderer: renderer, log: log}
}

func idBits(id int) float32 {
	return gomath.Float32frombits(uint32(int32(id)))
}

// Specify creates the engine model, materials and lights for tm.
func (p *TachyonParser) Specify(ctx context.Context, tm *tachyon.Model) (*TachyonScene, error) {
	model, err := p.dev.NewModel()
	if err != nil {
		return nil, err
	}
	materials, err := p.materialList(tm)
	if err != nil {
		return nil, err
	}
	out := &TachyonScene{Model: model, Bounds: tm.Bounds()}

	if len(tm.Spheres) > 0 {
		if err := p.spheres(model, materials, tm.Spheres); err != nil {
			return nil, err
		}
	}
	if len(tm.Cylinders) > 0 {
		if err := p.cylinders(model, materials, tm.Cylinders); err != nil {
			return nil, err
		}
	}

	arrays := append([]*tachyon.VertexArray(nil), tm.VertexArrays...)
	arrays = append(arrays, tachyon.FlatTriangles(tm.Triangles)...)
	for _, va := range arrays {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if va.NumTriangles() == 0 {
			continue
		}
		if err := p.triangleMesh(model, materials, va); err != nil {
			return nil, err
		}
		out.NumTriangles += va.NumTriangles()
	}

	if err := p.sceneData(model, tm); err != nil {
		return nil, err
	}
	if err := p.dev.Commit(model); err != nil {
		return nil, err
	}
	if out.Lights, err = p.lights(tm); err != nil {
		return nil, err
	}

	p.log.Debug("specified tachyon model",
		zap.Int("spheres", len(tm.Spheres)),
		zap.Int("cylinders", len(tm.Cylinders)),
		zap.Int("triangles", out.NumTriangles),
		zap.Int("textures", len(tm.Textures)),
		zap.Int("lights", len(out.Lights)))
	return out, nil
}

// materialList creates one OBJ material per texture and wraps them in a
// data array indexed by texture id.
func (p *TachyonParser) materialList(tm *tachyon.Model) (engine.Handle, error) {
	handles := make([]engine.Handle, len(tm.Textures))
	for i, tex := range tm.Textures {
		h, err := p.dev.NewMaterial(p.renderer, DefaultMaterialType)
		if err != nil {
			return engine.NilHandle, fmt.Errorf("texture %d: %w", i, err)
		}
		p.dev.SetVec3(h, "Kd", tex.Color.Scale(tex.Diffuse))
		p.dev.SetVec3(h, "Ks", math.Splat(tex.Specular))
		p.dev.SetFloat(h, "Ns", tex.Phong.Size)
		p.dev.SetFloat(h, "d", tex.Opacity)
		if err := p.dev.Commit(h); err != nil {
			return engine.NilHandle, err
		}
		handles[i] = h
	}
	return p.dev.NewData(engine.DataObject, len(handles), handles)
}

func (p *TachyonParser) data(obj engine.Handle, slot string, typ engine.DataType, n int, values any) error {
	h, err := p.dev.NewData(typ, n, values)
	if err != nil {
		return fmt.Errorf("%s: %w", slot, err)
	}
	p.dev.SetData(obj, slot, h)
	return nil
}

func (p *TachyonParser) spheres(model, materials engine.Handle, spheres []tachyon.Sphere) error {
	packed := make([]float32, 0, floatsPerSphere*len(spheres))
	for _, s := range spheres {
		packed = append(packed, idBits(s.TextureID), s.Center.X, s.Center.Y, s.Center.Z, s.Radius)
	}
	geom, err := p.dev.NewGeometry("spheres")
	if err != nil {
		return err
	}
	if err := p.data(geom, "spheres", engine.DataFloat, len(packed), packed); err != nil {
		return err
	}
	p.dev.SetInt(geom, "bytes_per_sphere", 4*floatsPerSphere)
	p.dev.SetInt(geom, "offset_materialID", 0)
	p.dev.SetInt(geom, "offset_center", 4)
	p.dev.SetInt(geom, "offset_radius", 16)
	p.dev.SetData(geom, "materialList", materials)
	if err := p.dev.Commit(geom); err != nil {
		return err
	}
	return p.dev.AddGeometry(model, geom)
}

func (p *TachyonParser) cylinders(model, materials engine.Handle, cylinders []tachyon.Cylinder) error {
	packed := make([]float32, 0, floatsPerCylinder*len(cylinders))
	for _, c := range cylinders {
		packed = append(packed, idBits(c.TextureID),
			c.Base.X, c.Base.Y, c.Base.Z,
			c.Apex.X, c.Apex.Y, c.Apex.Z,
			c.Radius)
	}
	geom, err := p.dev.NewGeometry("cylinders")
	if err != nil {
		return err
	}
	if err := p.data(geom, "cylinders", engine.DataFloat, len(packed), packed); err != nil {
		return err
	}
	p.dev.SetInt(geom, "bytes_per_cylinder", 4*floatsPerCylinder)
	p.dev.SetInt(geom, "offset_materialID", 0)
	p.dev.SetInt(geom, "offset_v0", 4)
	p.dev.SetInt(geom, "offset_v1", 16)
	p.dev.SetInt(geom, "offset_radius", 28)
	p.dev.SetData(geom, "materialList", materials)
	if err := p.dev.Commit(geom); err != nil {
		return err
	}
	return p.dev.AddGeometry(model, geom)
}

func (p *TachyonParser) triangleMesh(model, materials engine.Handle, va *tachyon.VertexArray) error {
	geom, err := p.dev.NewGeometry("trianglemesh")
	if err != nil {
		return err
	}
	if err := p.data(geom, "triangle", engine.DataInt3, len(va.Triangle), va.Triangle); err != nil {
		return err
	}
	if err := p.data(geom, "vertex", engine.DataFloat3, len(va.Coord), va.Coord); err != nil {
		return err
	}
	if len(va.Normal) > 0 {
		if err := p.data(geom, "vertex.normal", engine.DataFloat3, len(va.Normal), va.Normal); err != nil {
			return err
		}
	}
	if len(va.Color) > 0 {
		if err := p.data(geom, "vertex.color", engine.DataFloat3, len(va.Color), va.Color); err != nil {
			return err
		}
	}
	if len(va.PerTriTextureID) > 0 {
		if err := p.data(geom, "prim.materialID", engine.DataInt, len(va.PerTriTextureID), va.PerTriTextureID); err != nil {
			return err
		}
	} else {
		p.dev.SetInt(geom, "geom.materialID", int32(va.TextureID))
	}
	p.dev.SetData(geom, "materialList", materials)
	if err := p.dev.Commit(geom); err != nil {
		return err
	}
	return p.dev.AddGeometry(model, geom)
}

// sceneData attaches the raw texture and light tables the Tachyon renderer
// reads.
func (p *TachyonParser) sceneData(model engine.Handle, tm *tachyon.Model) error {
	textures := make([]float32, 0, floatsPerTexture*len(tm.Textures))
	for _, t := range tm.Textures {
		textures = append(textures,
			t.Ambient, t.Diffuse, t.Specular, t.Opacity,
			t.Phong.Plastic, t.Phong.Size,
			t.Color.X, t.Color.Y, t.Color.Z,
			gomath.Float32frombits(uint32(t.TexFunc)))
	}
	if err := p.data(model, "textureArray", engine.DataFloat, len(textures), textures); err != nil {
		return err
	}

	points := make([]float32, 0, floatsPerPoint*len(tm.PointLights))
	for _, l := range tm.PointLights {
		points = append(points,
			l.Center.X, l.Center.Y, l.Center.Z,
			l.Color.X, l.Color.Y, l.Color.Z,
			l.Atten.Constant, l.Atten.Linear, l.Atten.Quadratic)
	}
	if err := p.data(model, "pointLights", engine.DataFloat, len(points), points); err != nil {
		return err
	}

	dirs := make([]float32, 0, floatsPerDir*len(tm.DirLights))
	for _, l := range tm.DirLights {
		dirs = append(dirs,
			l.Color.X, l.Color.Y, l.Color.Z,
			l.Direction.X, l.Direction.Y, l.Direction.Z)
	}
	return p.data(model, "dirLights", engine.DataFloat, len(dirs), dirs)
}

func (p *TachyonParser) lights(tm *tachyon.Model) ([]engine.Handle, error) {
	out := make([]engine.Handle, 0, len(tm.DirLights)+len(tm.PointLights))
	for _, l := range tm.DirLights {
		h, err := p.dev.NewLight(p.renderer, "DirectionalLight")
		if err != nil {
			return nil, err
		}
		p.dev.SetVec3(h, "direction", l.Direction)
		p.dev.SetVec3(h, "color", l.Color)
		if err := p.dev.Commit(h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	for _, l := range tm.PointLights {
		h, err := p.dev.NewLight(p.renderer, "PointLight")
		if err != nil {
			return nil, err
		}
		p.dev.SetVec3(h, "position", l.Center)
		p.dev.SetVec3(h, "color", l.Color)
		p.dev.SetVec3(h, "attenuation", math.Vec3{X: l.Atten.Constant, Y: l.Atten.Linear, Z: l.Atten.Quadratic})
		if err := p.dev.Commit(h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
