// Package adapter hands imported scenes to the rendering engine: it turns
// meshes, materials and Tachyon primitives into engine objects.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faultbox/rayscene/pkg/engine"
	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
	"github.com/chewxy/math32"
	"go.uber.org/zap"
)

// ErrConflictingInstancing is returned when instancing is both forced on
// and forced off.
var ErrConflictingInstancing = errors.New("cannot force both instancing and no instancing")

// DefaultMaterialType is the engine material type used when a material does
// not name one.
const DefaultMaterialType = "OBJMaterial"

// Options configure the triangle mesh adapter.
type Options struct {
	// Renderer is the renderer type materials are created for.
	Renderer string `yaml:"renderer" toml:"renderer"`
	// GeometryType is the engine geometry created per mesh.
	GeometryType string `yaml:"geometry_type" toml:"geometry_type"`
	// Alpha selects the alpha aware mesh geometry and binds per-material
	// alpha maps.
	Alpha bool `yaml:"alpha" toml:"alpha"`
	// NoDefaultMaterial leaves meshes without a material when theirs is
	// missing or cannot be created.
	NoDefaultMaterial bool `yaml:"no_default_material" toml:"no_default_material"`
	// MaxObjects limits the number of instances considered; 0 means all.
	MaxObjects        int  `yaml:"max_objects" toml:"max_objects"`
	ForceInstancing   bool `yaml:"force_instancing" toml:"force_instancing"`
	ForceNoInstancing bool `yaml:"force_no_instancing" toml:"force_no_instancing"`
}

// DefaultOptions returns the scivis renderer with plain triangle geometry.
func DefaultOptions() Options {
	return Options{Renderer: "scivis", GeometryType: "triangles"}
}

// TriangleMeshParser creates engine geometry for scene models. Materials and
// textures are created once per source object and shared.
type TriangleMeshParser struct {
	dev  engine.Device
	opts Options
	log  *zap.Logger

	materials       map[*scene.Material]engine.Handle
	textures        map[*scene.Texture2D]engine.Handle
	defaultMaterial engine.Handle
	warned          map[string]int
}

// NewTriangleMeshParser creates an adapter for dev. A nil logger disables
// logging.
func NewTriangleMeshParser(dev engine.Device, opts Options, log *zap.Logger) *TriangleMeshParser {
	if log == nil {
		log = zap.NewNop()
	}
	d := DefaultOptions()
	if opts.Renderer == "" {
		opts.Renderer = d.Renderer
	}
	if opts.GeometryType == "" {
		opts.GeometryType = d.GeometryType
	}
	return &TriangleMeshParser{
		dev:       dev,
		opts:      opts,
		log:       log,
		materials: make(map[*scene.Material]engine.Handle),
		textures:  make(map[*scene.Texture2D]engine.Handle),
		warned:    make(map[string]int),
	}
}

// MaterialWarnings returns how often each material type could not be
// created.
func (p *TriangleMeshParser) MaterialWarnings() map[string]int {
	out := make(map[string]int, len(p.warned))
	for k, v := range p.warned {
		out[k] = v
	}
	return out
}

// Specify creates an engine model holding every instance of m. Models with
// more instances than meshes, or with ForceInstancing set, use engine
// instances over one model per mesh; otherwise transformed meshes are
// baked into fresh geometry.
func (p *TriangleMeshParser) Specify(ctx context.Context, m *scene.Model) (engine.Handle, error) {
	if p.opts.ForceInstancing && p.opts.ForceNoInstancing {
		return engine.NilHandle, ErrConflictingInstancing
	}
	instances := m.Instance
	if p.opts.MaxObjects > 0 && len(instances) > p.opts.MaxObjects {
		instances = instances[:p.opts.MaxObjects]
	}
	instancing := p.opts.ForceInstancing ||
		(len(m.Instance) > len(m.Mesh) && !p.opts.ForceNoInstancing)

	model, err := p.dev.NewModel()
	if err != nil {
		return engine.NilHandle, err
	}

	if instancing {
		err = p.specifyInstanced(ctx, model, m, instances)
	} else {
		err = p.specifyFlat(ctx, model, m, instances)
	}
	if err != nil {
		return engine.NilHandle, err
	}
	if err := p.dev.Commit(model); err != nil {
		return engine.NilHandle, err
	}

	p.log.Debug("specified triangle mesh model",
		zap.Int("meshes", len(m.Mesh)),
		zap.Int("instances", len(instances)),
		zap.Bool("instancing", instancing))
	return model, nil
}

func (p *TriangleMeshParser) specifyFlat(ctx context.Context, model engine.Handle, m *scene.Model, instances []scene.Instance) error {
	for i, inst := range instances {
		if err := ctx.Err(); err != nil {
			return err
		}
		mesh, err := meshOf(m, inst)
		if err != nil {
			return err
		}
		if inst.MeshID != i || !inst.Xfm.IsIdentity() {
			mesh = bakeTransform(mesh, inst.Xfm)
		}
		geom, err := p.Geometry(mesh)
		if err != nil {
			return err
		}
		if geom.IsNil() {
			continue
		}
		if err := p.dev.AddGeometry(model, geom); err != nil {
			return err
		}
	}
	return nil
}

func (p *TriangleMeshParser) specifyInstanced(ctx context.Context, model engine.Handle, m *scene.Model, instances []scene.Instance) error {
	meshModels := make([]engine.Handle, len(m.Mesh))
	for i, mesh := range m.Mesh {
		if err := ctx.Err(); err != nil {
			return err
		}
		geom, err := p.Geometry(mesh)
		if err != nil {
			return err
		}
		mm, err := p.dev.NewModel()
		if err != nil {
			return err
		}
		if !geom.IsNil() {
			if err := p.dev.AddGeometry(mm, geom); err != nil {
				return err
			}
		}
		if err := p.dev.Commit(mm); err != nil {
			return err
		}
		meshModels[i] = mm
	}
	for _, inst := range instances {
		if _, err := meshOf(m, inst); err != nil {
			return err
		}
		h, err := p.dev.NewInstance(meshModels[inst.MeshID], inst.Xfm)
		if err != nil {
			return err
		}
		if err := p.dev.AddGeometry(model, h); err != nil {
			return err
		}
	}
	return nil
}

func meshOf(m *scene.Model, inst scene.Instance) (*scene.Mesh, error) {
	if inst.MeshID < 0 || inst.MeshID >= len(m.Mesh) {
		return nil, fmt.Errorf("instance refers to mesh %d of %d", inst.MeshID, len(m.Mesh))
	}
	return m.Mesh[inst.MeshID], nil
}

// bakeTransform returns a shallow copy of mesh with transformed positions.
func bakeTransform(mesh *scene.Mesh, xfm math.Affine3) *scene.Mesh {
	out := scene.NewMesh(mesh.Name, mesh.Material)
	out.Normal = mesh.Normal
	out.Texcoord = mesh.Texcoord
	out.Color = mesh.Color
	out.Triangle = mesh.Triangle
	out.MaterialList = mesh.MaterialList
	out.TriangleMaterialID = mesh.TriangleMaterialID
	out.Position = make([]math.Vec3, len(mesh.Position))
	for i, pos := range mesh.Position {
		out.Position[i] = xfm.TransformPoint(pos)
	}
	return out
}

// Geometry creates and commits the engine geometry for one mesh. Meshes
// without triangles yield a nil handle.
func (p *TriangleMeshParser) Geometry(mesh *scene.Mesh) (engine.Handle, error) {
	if len(mesh.Triangle) == 0 {
		p.log.Debug("skipping mesh without triangles", zap.String("mesh", mesh.Name))
		return engine.NilHandle, nil
	}
	kind := p.opts.GeometryType
	if p.opts.Alpha {
		kind = "alpha_aware_triangle_mesh"
	}
	geom, err := p.dev.NewGeometry(kind)
	if err != nil {
		return engine.NilHandle, err
	}

	if err := p.setData(geom, "position", engine.DataFloat3, len(mesh.Position), mesh.Position); err != nil {
		return engine.NilHandle, err
	}
	if len(mesh.TriangleMaterialID) > 0 {
		if err := p.setData(geom, "prim.materialID", engine.DataInt, len(mesh.TriangleMaterialID), mesh.TriangleMaterialID); err != nil {
			return engine.NilHandle, err
		}
	}
	if err := p.setData(geom, "index", engine.DataInt3, len(mesh.Triangle), mesh.Triangle); err != nil {
		return engine.NilHandle, err
	}
	if len(mesh.Normal) > 0 {
		if err := p.setData(geom, "vertex.normal", engine.DataFloat3, len(mesh.Normal), mesh.Normal); err != nil {
			return engine.NilHandle, err
		}
	}
	if len(mesh.Color) > 0 {
		if err := p.setData(geom, "vertex.color", engine.DataFloat4, len(mesh.Color), mesh.Color); err != nil {
			return engine.NilHandle, err
		}
	}
	if len(mesh.Texcoord) > 0 {
		if err := p.setData(geom, "vertex.texcoord", engine.DataFloat2, len(mesh.Texcoord), mesh.Texcoord); err != nil {
			return engine.NilHandle, err
		}
	}
	p.dev.SetInt(geom, "alpha_type", 0)
	p.dev.SetInt(geom, "alpha_component", 4)

	if len(mesh.MaterialList) == 0 {
		mat, err := p.Material(mesh.Material)
		if err != nil {
			return engine.NilHandle, err
		}
		if !mat.IsNil() {
			p.dev.SetObject(geom, "material", mat)
		}
	} else if err := p.setMaterialList(geom, mesh.MaterialList); err != nil {
		return engine.NilHandle, err
	}

	if err := p.dev.Commit(geom); err != nil {
		return engine.NilHandle, err
	}
	return geom, nil
}

func (p *TriangleMeshParser) setData(obj engine.Handle, slot string, typ engine.DataType, n int, values any) error {
	data, err := p.dev.NewData(typ, n, values)
	if err != nil {
		return fmt.Errorf("%s: %w", slot, err)
	}
	p.dev.SetData(obj, slot, data)
	return nil
}

func (p *TriangleMeshParser) setMaterialList(geom engine.Handle, list []*scene.Material) error {
	handles := make([]engine.Handle, 0, len(list))
	alphaMaps := make([]engine.Handle, 0, len(list))
	alphas := make([]float32, 0, len(list))
	for _, m := range list {
		h, err := p.Material(m)
		if err != nil {
			return err
		}
		handles = append(handles, h)

		alphaMap, alpha := engine.NilHandle, float32(0)
		if m != nil {
			if tex := m.Texture("map_Kd"); tex != nil {
				if alphaMap, err = p.Texture(tex); err != nil {
					return err
				}
			}
			alpha = m.Float("d", 0)
		}
		alphaMaps = append(alphaMaps, alphaMap)
		alphas = append(alphas, alpha)
	}
	if err := p.setData(geom, "materialList", engine.DataObject, len(handles), handles); err != nil {
		return err
	}
	if !p.opts.Alpha {
		return nil
	}
	if err := p.setData(geom, "alpha_maps", engine.DataObject, len(alphaMaps), alphaMaps); err != nil {
		return err
	}
	return p.setData(geom, "alphas", engine.DataFloat, len(alphas), alphas)
}

// DefaultMaterial returns the shared fallback material, a red OBJ material,
// creating it on first use. It is nil when default materials are disabled.
func (p *TriangleMeshParser) DefaultMaterial() (engine.Handle, error) {
	if p.opts.NoDefaultMaterial {
		return engine.NilHandle, nil
	}
	if !p.defaultMaterial.IsNil() {
		return p.defaultMaterial, nil
	}
	h, err := p.dev.NewMaterial(p.opts.Renderer, DefaultMaterialType)
	if err != nil {
		return engine.NilHandle, fmt.Errorf("creating default material: %w", err)
	}
	p.dev.SetVec3(h, "Kd", math.Vec3{X: 0.8})
	if err := p.dev.Commit(h); err != nil {
		return engine.NilHandle, err
	}
	p.defaultMaterial = h
	return h, nil
}

func materialType(mat *scene.Material) string {
	if t := mat.StringParam("type", ""); t != "" {
		return t
	}
	if mat.Type == "" || mat.Type == scene.DefaultMaterialType {
		return DefaultMaterialType
	}
	return mat.Type
}

// Material returns the engine material for mat, creating it on first use.
// A type the engine rejects is reported once per type and replaced by the
// default material.
func (p *TriangleMeshParser) Material(mat *scene.Material) (engine.Handle, error) {
	if mat == nil {
		return p.DefaultMaterial()
	}
	if h, ok := p.materials[mat]; ok {
		return h, nil
	}

	typ := materialType(mat)
	h, err := p.dev.NewMaterial(p.opts.Renderer, typ)
	if errors.Is(err, engine.ErrRejected) {
		if p.warned[typ] == 0 {
			p.log.Warn("could not create material type, replacing with default material",
				zap.String("type", typ),
				zap.String("material", mat.Name))
		}
		p.warned[typ]++
		return p.DefaultMaterial()
	}
	if err != nil {
		return engine.NilHandle, err
	}
	p.materials[mat] = h

	isOBJ := typ == DefaultMaterialType
	workaround3DMax, tfPrime := false, float32(0)
	if isOBJ {
		workaround3DMax, tfPrime = detect3DMaxTransparency(mat)
	}

	for _, name := range mat.Names() {
		param, _ := mat.Param(name)
		switch param.Type {
		case scene.ParamInt:
			p.dev.SetInt(h, name, param.I[0])
		case scene.ParamFloat:
			f := param.F[0]
			// Many MTL files store the Phong exponent in [0,1); the engine
			// expects [0,inf).
			if isOBJ && (name == "Ns" || name == "ns") && f < 1 {
				f = 1/(1-f) - 1
			}
			if workaround3DMax && name == "d" {
				f = 1
			}
			p.dev.SetFloat(h, name, f)
		case scene.ParamFloat2:
			p.dev.SetVec2(h, name, math.Vec2{X: param.F[0], Y: param.F[1]})
		case scene.ParamFloat3:
			v := math.Vec3{X: param.F[0], Y: param.F[1], Z: param.F[2]}
			if workaround3DMax && name == "Tf" {
				v = math.Splat(tfPrime)
			}
			p.dev.SetVec3(h, name, v)
		case scene.ParamFloat4:
			p.dev.SetVec4(h, name, math.Vec4{X: param.F[0], Y: param.F[1], Z: param.F[2], W: param.F[3]})
		case scene.ParamString:
			p.dev.SetString(h, name, param.S)
		case scene.ParamTexture:
			if param.Texture == nil {
				continue
			}
			tex, err := p.Texture(param.Texture)
			if err != nil {
				return engine.NilHandle, fmt.Errorf("material %q: %s: %w", mat.Name, name, err)
			}
			p.dev.SetObject(h, name, tex)
		default:
			p.log.Debug("skipping material parameter",
				zap.String("material", mat.Name),
				zap.String("param", name),
				zap.Stringer("type", param.Type))
		}
	}

	if err := p.dev.Commit(h); err != nil {
		return engine.NilHandle, err
	}
	return h, nil
}

// detect3DMaxTransparency recognizes the transparency encoding some 3ds Max
// exporters write, Tf+Tr == 1 and Tf == d, and returns the corrected Tf.
func detect3DMaxTransparency(mat *scene.Material) (bool, float32) {
	pd, okd := mat.Param("d")
	pTr, okTr := mat.Param("Tr")
	pTf, okTf := mat.Param("Tf")
	if !okd || !okTr || !okTf {
		return false, 0
	}
	if pd.Type != scene.ParamFloat || pTr.Type != scene.ParamFloat || pTf.Type != scene.ParamFloat3 {
		return false, 0
	}
	d, tr := pd.F[0], pTr.F[0]
	sumErr, dErr := float32(0), float32(0)
	for i := 0; i < 3; i++ {
		sumErr = max(sumErr, math32.Abs(pTf.F[i]+tr-1))
		dErr = max(dErr, math32.Abs(pTf.F[i]-d))
	}
	if sumErr < 1e-6 && dErr < 1e-6 {
		return true, 1 - d
	}
	return false, 0
}

// Texture returns the engine texture for tex, creating it on first use.
func (p *TriangleMeshParser) Texture(tex *scene.Texture2D) (engine.Handle, error) {
	if h, ok := p.textures[tex]; ok {
		return h, nil
	}
	h, err := p.dev.NewTexture(tex.Format(), tex.Width, tex.Height, tex.Data)
	if err != nil {
		return engine.NilHandle, err
	}
	if err := p.dev.Commit(h); err != nil {
		return engine.NilHandle, err
	}
	p.textures[tex] = h
	return h, nil
}
