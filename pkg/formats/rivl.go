package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	gomath "math"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
	"go.uber.org/zap"
)

// RIVL format errors.
var (
	ErrInvalidRIVLRoot   = errors.New("not a RIVL model: root element must be BGFscene")
	ErrInvalidRIVLNode   = errors.New("invalid RIVL node")
	ErrTruncatedRIVLData = errors.New("RIVL binary reference out of range")
)

const maxRIVLDepth = 1024

type rivlKind int

const (
	rivlKindNone rivlKind = iota
	rivlKindTexture
	rivlKindMaterial
	rivlKindCamera
	rivlKindTransform
	rivlKindMesh
	rivlKindGroup
)

var rivlKindNames = [...]string{"unknown", "Texture2D", "Material", "Camera", "Transform", "Mesh", "Group"}

func (k rivlKind) String() string {
	return rivlKindNames[k]
}

type rivlMesh struct {
	vertex    []math.Vec3
	normal    []math.Vec3
	texcoord  []math.Vec2
	prim      []math.Vec4i
	materials []int
	meshID    int // index in the output model once emitted, else -1
}

// rivlEntry is one arena slot. Only the fields of its kind are set.
type rivlEntry struct {
	kind     rivlKind
	texture  *scene.Texture2D
	material *scene.Material
	camera   *scene.Camera
	xfm      math.Affine3
	child    int
	mesh     *rivlMesh
	children []int
}

// rivlArena holds nodes in document order; RIVL nodes refer to earlier
// nodes by their ordinal.
type rivlArena struct {
	entries []rivlEntry
}

func (a *rivlArena) add(e rivlEntry) int {
	a.entries = append(a.entries, e)
	return len(a.entries) - 1
}

func (a *rivlArena) get(id int, want rivlKind) (*rivlEntry, error) {
	if id < 0 || id >= len(a.entries) {
		return nil, fmt.Errorf("%w: reference to node %d of %d", ErrInvalidRIVLNode, id, len(a.entries))
	}
	e := &a.entries[id]
	if want != rivlKindNone && e.kind != want {
		return nil, fmt.Errorf("%w: node %d is a %s, expected %s", ErrInvalidRIVLNode, id, e.kind, want)
	}
	return e, nil
}

type rivlLoader struct {
	model *scene.Model
	file  string
	bin   []byte
	opts  *options
	arena rivlArena
}

// ParseRIVL reads a RIVL scene: the XML node list from r and the binary blob
// its offsets point into.
func ParseRIVL(model *scene.Model, r io.Reader, bin []byte, name string, opts ...Option) error {
	root, err := readXMLTree(r)
	if err != nil {
		return withFile(err, name)
	}
	if root.Name != "BGFscene" {
		return parseErr(name, root.Line, fmt.Errorf("%w, got %q", ErrInvalidRIVLRoot, root.Name))
	}
	if len(root.Children) == 0 {
		return parseErr(name, root.Line, fmt.Errorf("%w: empty RIVL model", ErrInvalidRIVLNode))
	}

	l := &rivlLoader{model: model, file: name, bin: bin, opts: buildOptions(opts)}
	rootID := -1
	for _, n := range root.Children {
		id, err := l.parseNode(n)
		if err != nil {
			return parseErr(name, n.Line, err)
		}
		if k := l.arena.entries[id].kind; k == rivlKindMesh || k == rivlKindGroup {
			rootID = id
		}
	}
	if rootID < 0 {
		return parseErr(name, 0, fmt.Errorf("%w: no Mesh or Group node", ErrInvalidRIVLNode))
	}

	// Build into a scratch model so a failing traversal leaves model as is.
	out := scene.NewModel()
	if err := l.traverse(out, rootID, math.Identity(), 0); err != nil {
		return parseErr(name, 0, err)
	}
	model.Append(out)

	l.opts.log.Debug("RIVL imported",
		zap.String("file", name),
		zap.Int("nodes", len(l.arena.entries)),
		zap.Int("meshes", len(out.Mesh)),
		zap.Int("instances", len(out.Instance)))
	return nil
}

// ImportRIVL reads path and its companion path+".bin".
func ImportRIVL(model *scene.Model, path string, opts ...Option) error {
	bin, err := os.ReadFile(path + ".bin")
	if err != nil {
		return fmt.Errorf("reading RIVL binary file: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening RIVL file: %w", err)
	}
	defer f.Close()
	return ParseRIVL(model, f, bin, path, opts...)
}

func (l *rivlLoader) parseNode(n *xmlNode) (int, error) {
	switch n.Name {
	case "Texture2D":
		return l.parseTexture(n)
	case "Material":
		return l.parseMaterial(n)
	case "Camera":
		return l.parseCamera(n), nil
	case "Transform":
		return l.parseTransform(n)
	case "Mesh":
		return l.parseMesh(n)
	case "Group":
		return l.parseGroup(n)
	default:
		// Unknown kinds still occupy a slot so later ordinals line up.
		l.opts.diag.Skip(Skip{File: l.file, Line: n.Line, Kind: SkipUnknownNode, Detail: n.Name})
		return l.arena.add(rivlEntry{kind: rivlKindNone}), nil
	}
}

func intAttr(n *xmlNode, name string) (int, error) {
	s, ok := n.attr(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s missing attribute %q", ErrInvalidRIVLNode, n.Name, name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s attribute %s=%q", ErrInvalidRIVLNode, n.Name, name, s)
	}
	return v, nil
}

func parseIDList(s string) ([]int, error) {
	fields := strings.Fields(s)
	ids := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: bad node id %q", ErrInvalidRIVLNode, f)
		}
		ids[i] = v
	}
	return ids, nil
}

// blob returns n bytes of the binary file at ofs.
func (l *rivlLoader) blob(ofs, n int) ([]byte, error) {
	if ofs < 0 || n < 0 || ofs+n > len(l.bin) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d, file has %d", ErrTruncatedRIVLData, n, ofs, len(l.bin))
	}
	return l.bin[ofs : ofs+n], nil
}

func (l *rivlLoader) parseTexture(n *xmlNode) (int, error) {
	var v [5]int
	for i, name := range []string{"ofs", "width", "height", "channels", "depth"} {
		x, err := intAttr(n, name)
		if err != nil {
			return 0, err
		}
		v[i] = x
	}
	if _, ok := n.attr("format"); !ok {
		return 0, fmt.Errorf("%w: Texture2D missing attribute \"format\"", ErrInvalidRIVLNode)
	}
	ofs, w, h, channels, depth := v[0], v[1], v[2], v[3], v[4]

	raw, err := l.blob(ofs, w*h*channels*depth)
	if err != nil {
		return 0, err
	}
	tex := &scene.Texture2D{
		Width:        w,
		Height:       h,
		Channels:     channels,
		Depth:        depth,
		PreferLinear: true,
		Data:         append([]byte(nil), raw...),
	}
	// RIVL stores alpha inverted.
	if channels == 4 {
		for p := 0; p < w*h; p++ {
			if depth == 1 {
				i := p*4 + 3
				tex.Data[i] = 255 - tex.Data[i]
			} else {
				i := p*16 + 12
				a := gomath.Float32frombits(binary.LittleEndian.Uint32(tex.Data[i:]))
				binary.LittleEndian.PutUint32(tex.Data[i:], gomath.Float32bits(1-a))
			}
		}
	}
	return l.arena.add(rivlEntry{kind: rivlKindTexture, texture: tex}), nil
}

func (l *rivlLoader) parseMaterial(n *xmlNode) (int, error) {
	mat := &scene.Material{}
	if name, ok := n.attr("name"); ok {
		mat.Name = name
		mat.SetString("name", name)
	}
	if typ, ok := n.attr("type"); ok {
		mat.Type = typ
		mat.SetString("type", typ)
	}

	for _, child := range n.Children {
		switch child.Name {
		case "param":
			if err := l.parseMaterialParam(mat, child); err != nil {
				return 0, err
			}
		case "textures":
			ids, err := parseIDList(child.Content)
			if err != nil {
				return 0, err
			}
			for _, id := range ids {
				e, err := l.arena.get(id, rivlKindTexture)
				if err != nil {
					return 0, err
				}
				mat.Textures = append(mat.Textures, e.texture)
			}
			num, err := intAttr(child, "num")
			if err != nil {
				return 0, err
			}
			if num != len(mat.Textures) {
				return 0, fmt.Errorf("%w: material lists %d textures, num says %d",
					ErrInvalidRIVLNode, len(mat.Textures), num)
			}
		}
	}
	return l.arena.add(rivlEntry{kind: rivlKindMaterial, material: mat}), nil
}

func (l *rivlLoader) parseMaterialParam(mat *scene.Material, p *xmlNode) error {
	name := p.Attrs["name"]
	typ := p.Attrs["type"]
	fields := strings.Fields(p.Content)

	floats := func(k int) ([4]float32, error) {
		var f [4]float32
		if len(fields) < k {
			return f, fmt.Errorf("%w: param %s needs %d values", ErrInvalidRIVLNode, name, k)
		}
		for i := 0; i < k; i++ {
			v, err := parseFloat32(fields[i])
			if err != nil {
				return f, fmt.Errorf("%w: param %s: %v", ErrInvalidRIVLNode, name, err)
			}
			f[i] = v
		}
		return f, nil
	}
	ints := func(k int) ([4]int32, error) {
		var v [4]int32
		if len(fields) < k {
			return v, fmt.Errorf("%w: param %s needs %d values", ErrInvalidRIVLNode, name, k)
		}
		for i := 0; i < k; i++ {
			x, err := strconv.ParseInt(fields[i], 10, 32)
			if err != nil {
				return v, fmt.Errorf("%w: param %s: %v", ErrInvalidRIVLNode, name, err)
			}
			v[i] = int32(x)
		}
		return v, nil
	}

	switch typ {
	case "float", "float2", "float3", "float4":
		k := 1
		if typ != "float" {
			k = int(typ[5] - '0')
		}
		f, err := floats(k)
		if err != nil {
			return err
		}
		mat.Set(name, scene.Param{Type: scene.ParamFloat + scene.ParamType(k-1), F: f})
	case "int":
		v, err := ints(1)
		if err != nil {
			return err
		}
		if !strings.Contains(name, "map_") {
			mat.SetInt(name, v[0])
			return nil
		}
		if int(v[0]) < 0 || int(v[0]) >= len(mat.Textures) {
			l.opts.diag.Skip(Skip{File: l.file, Line: p.Line, Kind: SkipTexture,
				Detail: fmt.Sprintf("%s references texture %d of %d", name, v[0], len(mat.Textures))})
			return nil
		}
		mat.SetTexture(name, mat.Textures[v[0]])
	case "int2", "int3", "int4":
		k := int(typ[3] - '0')
		v, err := ints(k)
		if err != nil {
			return err
		}
		mat.SetInts(name, v, k)
	default:
		return fmt.Errorf("%w: unknown parameter type %q in material", ErrInvalidRIVLNode, typ)
	}
	return nil
}

func (l *rivlLoader) parseCamera(n *xmlNode) int {
	cam := &scene.Camera{}
	for _, child := range n.Children {
		var dst *math.Vec3
		switch child.Name {
		case "from":
			dst = &cam.From
		case "at":
			dst = &cam.At
		case "up":
			dst = &cam.Up
		default:
			continue
		}
		v, err := parseVec3(child.Content)
		if err != nil {
			l.opts.diag.Skip(Skip{File: l.file, Line: child.Line, Kind: SkipMalformedLine, Detail: "camera " + child.Name})
			continue
		}
		*dst = v
	}
	return l.arena.add(rivlEntry{kind: rivlKindCamera, camera: cam})
}

func (l *rivlLoader) parseTransform(n *xmlNode) (int, error) {
	child, err := intAttr(n, "child")
	if err != nil {
		return 0, err
	}
	if _, err := l.arena.get(child, rivlKindNone); err != nil {
		return 0, err
	}
	var f [12]float32
	if err := parseFloats(n.Content, f[:]); err != nil {
		return 0, fmt.Errorf("%w: transform needs 12 values: %v", ErrInvalidRIVLNode, err)
	}
	xfm := math.Affine3{
		Vx: math.Vec3{X: f[0], Y: f[1], Z: f[2]},
		Vy: math.Vec3{X: f[3], Y: f[4], Z: f[5]},
		Vz: math.Vec3{X: f[6], Y: f[7], Z: f[8]},
		P:  math.Vec3{X: f[9], Y: f[10], Z: f[11]},
	}
	return l.arena.add(rivlEntry{kind: rivlKindTransform, xfm: xfm, child: child}), nil
}

func (l *rivlLoader) parseMesh(n *xmlNode) (int, error) {
	m := &rivlMesh{meshID: -1}
	for _, child := range n.Children {
		if child.Name == "materiallist" {
			ids, err := parseIDList(child.Content)
			if err != nil {
				return 0, err
			}
			for _, id := range ids {
				if _, err := l.arena.get(id, rivlKindMaterial); err != nil {
					return 0, err
				}
			}
			m.materials = ids
			continue
		}

		var elemSize int
		switch child.Name {
		case "text":
			continue
		case "vertex", "normal":
			elemSize = 12
		case "texcoord":
			elemSize = 8
		case "prim":
			elemSize = 16
		default:
			return 0, fmt.Errorf("%w: unknown child node type %q for mesh node", ErrInvalidRIVLNode, child.Name)
		}
		ofs, err := intAttr(child, "ofs")
		if err != nil {
			return 0, err
		}
		num, err := intAttr(child, "num")
		if err != nil {
			return 0, err
		}
		raw, err := l.blob(ofs, num*elemSize)
		if err != nil {
			return 0, err
		}
		switch child.Name {
		case "vertex":
			m.vertex = decodeVec3s(raw, num)
		case "normal":
			m.normal = decodeVec3s(raw, num)
		case "texcoord":
			m.texcoord = make([]math.Vec2, num)
			for i := range m.texcoord {
				m.texcoord[i] = math.Vec2{X: readFloat32(raw[i*8:]), Y: readFloat32(raw[i*8+4:])}
			}
		case "prim":
			m.prim = make([]math.Vec4i, num)
			for i := range m.prim {
				b := raw[i*16:]
				m.prim[i] = math.Vec4i{
					X: int32(binary.LittleEndian.Uint32(b)),
					Y: int32(binary.LittleEndian.Uint32(b[4:])),
					Z: int32(binary.LittleEndian.Uint32(b[8:])),
					W: int32(binary.LittleEndian.Uint32(b[12:])),
				}
			}
		}
	}
	return l.arena.add(rivlEntry{kind: rivlKindMesh, mesh: m}), nil
}

func decodeVec3s(raw []byte, n int) []math.Vec3 {
	out := make([]math.Vec3, n)
	for i := range out {
		b := raw[i*12:]
		out[i] = math.Vec3{X: readFloat32(b), Y: readFloat32(b[4:]), Z: readFloat32(b[8:])}
	}
	return out
}

func (l *rivlLoader) parseGroup(n *xmlNode) (int, error) {
	ids, err := parseIDList(n.Content)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if _, err := l.arena.get(id, rivlKindNone); err != nil {
			return 0, err
		}
	}
	return l.arena.add(rivlEntry{kind: rivlKindGroup, children: ids}), nil
}

// traverse flattens the node graph below id into model. Meshes referenced
// from several places are emitted once and instanced.
func (l *rivlLoader) traverse(model *scene.Model, id int, xfm math.Affine3, depth int) error {
	if depth > maxRIVLDepth {
		return fmt.Errorf("%w: node graph deeper than %d", ErrInvalidRIVLNode, maxRIVLDepth)
	}
	e, err := l.arena.get(id, rivlKindNone)
	if err != nil {
		return err
	}

	switch e.kind {
	case rivlKindGroup:
		for _, c := range e.children {
			if err := l.traverse(model, c, xfm, depth+1); err != nil {
				return err
			}
		}
	case rivlKindTransform:
		return l.traverse(model, e.child, xfm.Mul(e.xfm), depth+1)
	case rivlKindCamera:
		cam := *e.camera
		model.Camera = append(model.Camera, &cam)
	case rivlKindMesh:
		if e.mesh.meshID < 0 {
			mesh, err := l.buildMesh(e.mesh)
			if err != nil {
				return err
			}
			e.mesh.meshID = len(model.Mesh)
			model.Mesh = append(model.Mesh, mesh)
		}
		model.AddInstance(scene.Instance{MeshID: e.mesh.meshID, Xfm: xfm})
	case rivlKindMaterial, rivlKindTexture:
	default:
		return fmt.Errorf("%w: unhandled node %d in scene graph", ErrInvalidRIVLNode, id)
	}
	return nil
}

func (l *rivlLoader) buildMesh(rm *rivlMesh) (*scene.Mesh, error) {
	mesh := &scene.Mesh{Position: rm.vertex}
	mesh.Triangle = make([]math.Vec3i, len(rm.prim))
	ids := make([]int32, len(rm.prim))
	anyNonZero := false
	for i, p := range rm.prim {
		mesh.Triangle[i] = math.Vec3i{X: p.X, Y: p.Y, Z: p.Z}
		ids[i] = p.W >> 16
		if ids[i] != 0 {
			anyNonZero = true
		}
	}
	if anyNonZero {
		mesh.TriangleMaterialID = ids
	}
	if len(rm.normal) > 0 {
		mesh.Normal = make([]math.Vec3, len(rm.vertex))
		copy(mesh.Normal, rm.normal)
	}
	if len(rm.texcoord) > 0 {
		mesh.Texcoord = make([]math.Vec2, len(rm.vertex))
		copy(mesh.Texcoord, rm.texcoord)
	}

	mats := make([]*scene.Material, len(rm.materials))
	for i, id := range rm.materials {
		mats[i] = l.arena.entries[id].material
	}
	if len(mats) == 1 {
		mesh.Material = mats[0]
	} else {
		mesh.MaterialList = mats
	}

	if err := mesh.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRIVLNode, err)
	}
	return mesh, nil
}
