package formats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
	"go.uber.org/zap"
)

// ErrInvalidX3DRoot is returned when the document root is not <X3D>.
var ErrInvalidX3DRoot = errors.New("not an X3D document: root element must be X3D")

type x3dLoader struct {
	model *scene.Model
	file  string
	opts  *options
}

// ParseX3D reads an X3D document into model. Each Shape becomes one mesh
// whose instance carries the accumulated Transform chain. Unsupported nodes
// are warned about once per kind and skipped.
func ParseX3D(model *scene.Model, r io.Reader, name string, opts ...Option) error {
	root, err := readXMLTree(r)
	if err != nil {
		return withFile(err, name)
	}
	if root.Name != "X3D" {
		return parseErr(name, root.Line, fmt.Errorf("%w, got %q", ErrInvalidX3DRoot, root.Name))
	}

	l := &x3dLoader{model: model, file: name, opts: buildOptions(opts)}
	for _, child := range root.Children {
		switch child.Name {
		case "head":
		case "Scene":
			l.parseScene(child)
		default:
			l.ignore(child, "X3D")
		}
	}
	return nil
}

// ImportX3D reads an X3D file into model.
func ImportX3D(model *scene.Model, path string, opts ...Option) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening X3D file: %w", err)
	}
	defer f.Close()
	return ParseX3D(model, f, path, opts...)
}

func (l *x3dLoader) ignore(n *xmlNode, context string) {
	key := fmt.Sprintf("'%s' (in %s node)", n.Name, context)
	l.opts.diag.WarnOnce("x3d:"+key, "X3D: ignoring "+key, zap.String("file", l.file))
	l.opts.diag.Skip(Skip{File: l.file, Line: n.Line, Kind: SkipUnknownNode, Detail: key})
}

func (l *x3dLoader) skip(n *xmlNode, kind SkipKind, detail string) {
	l.opts.diag.Skip(Skip{File: l.file, Line: n.Line, Kind: kind, Detail: detail})
}

func (l *x3dLoader) parseScene(scn *xmlNode) {
	for _, n := range scn.Children {
		switch n.Name {
		case "Transform":
			l.parseTransform(math.Identity(), n)
		case "Group":
			l.parseGroup(math.Identity(), n)
		case "Shape":
			l.parseShape(math.Identity(), n)
		default:
			// Background, Viewpoint, NavigationInfo, DirectionalLight and
			// anything unknown.
			l.ignore(n, "root")
		}
	}
}

func (l *x3dLoader) parseTransform(parent math.Affine3, n *xmlNode) {
	l.parseGroup(parent.Mul(l.localTransform(n)), n)
}

func (l *x3dLoader) parseGroup(xfm math.Affine3, n *xmlNode) {
	for _, child := range n.Children {
		switch child.Name {
		case "Transform":
			l.parseTransform(xfm, child)
		case "Group":
			l.parseGroup(xfm, child)
		case "Shape":
			l.parseShape(xfm, child)
		default:
			l.ignore(child, n.Name)
		}
	}
}

// localTransform builds T * C * R * SR * S * -SR * -C from the Transform
// attributes.
func (l *x3dLoader) localTransform(n *xmlNode) math.Affine3 {
	vec := func(attr string, def math.Vec3) math.Vec3 {
		s, ok := n.attr(attr)
		if !ok {
			return def
		}
		v, err := parseVec3(s)
		if err != nil {
			l.skip(n, SkipMalformedLine, fmt.Sprintf("Transform %s=%q", attr, s))
			return def
		}
		return v
	}
	rot := func(attr string) math.Quat {
		s, ok := n.attr(attr)
		if !ok {
			return math.QuatIdentity()
		}
		var f [4]float32
		if err := parseFloats(s, f[:]); err != nil {
			l.skip(n, SkipMalformedLine, fmt.Sprintf("Transform %s=%q", attr, s))
			return math.QuatIdentity()
		}
		return math.QuatFromAxisAngle(math.Vec3{X: f[0], Y: f[1], Z: f[2]}, f[3])
	}

	t := vec("translation", math.Vec3{})
	c := vec("center", math.Vec3{})
	s := vec("scale", math.Splat(1))
	r := rot("rotation").ToAffine()
	sr := rot("scaleOrientation")

	return math.Translate(t).
		Mul(math.Translate(c)).
		Mul(r).
		Mul(sr.ToAffine()).
		Mul(math.Scale(s)).
		Mul(sr.Conjugate().ToAffine()).
		Mul(math.Translate(c.Neg()))
}

func (l *x3dLoader) parseShape(xfm math.Affine3, n *xmlNode) {
	for _, child := range n.Children {
		switch child.Name {
		case "IndexedFaceSet":
			l.parseIndexedFaceSet(xfm, child)
		default:
			// Appearance, IndexedLineSet, ...
			l.ignore(child, "Shape")
		}
	}
}

func (l *x3dLoader) parseIndexedFaceSet(xfm math.Affine3, n *xmlNode) {
	mesh := scene.NewMesh("", scene.NewMaterial("x3d"))

	for _, child := range n.Children {
		switch child.Name {
		case "Coordinate":
			pts, err := parseVec3List(child.Attrs["point"])
			if err != nil {
				l.skip(child, SkipMalformedLine, "Coordinate point: "+err.Error())
				continue
			}
			for _, p := range pts {
				mesh.AddPosition(p)
			}
		case "Normal":
			nrm, err := parseVec3List(child.Attrs["vector"])
			if err != nil {
				l.skip(child, SkipMalformedLine, "Normal vector: "+err.Error())
				continue
			}
			mesh.Normal = nrm
		case "Color":
			cols, err := parseVec3List(child.Attrs["color"])
			if err != nil {
				l.skip(child, SkipMalformedLine, "Color color: "+err.Error())
				continue
			}
			mesh.Color = make([]math.Vec4, len(cols))
			for i, c := range cols {
				mesh.Color[i] = math.Vec4{X: c.X, Y: c.Y, Z: c.Z, W: 1}
			}
		default:
			l.ignore(child, "IndexedFaceSet")
		}
	}

	// Per-vertex attributes that do not line up with the coordinates
	// cannot be used.
	if len(mesh.Normal) != 0 && len(mesh.Normal) != len(mesh.Position) {
		l.skip(n, SkipMalformedLine, fmt.Sprintf("%d normals for %d points", len(mesh.Normal), len(mesh.Position)))
		mesh.Normal = nil
	}
	if len(mesh.Color) != 0 && len(mesh.Color) != len(mesh.Position) {
		l.skip(n, SkipMalformedLine, fmt.Sprintf("%d colors for %d points", len(mesh.Color), len(mesh.Position)))
		mesh.Color = nil
	}

	ids, err := parseIntList(n.Attrs["coordIndex"])
	if err != nil {
		l.skip(n, SkipMalformedLine, "coordIndex: "+err.Error())
		return
	}
	mesh.Triangle = l.fanTriangulate(n, ids, int32(len(mesh.Position)))

	l.model.AddMesh(mesh, xfm)
}

// fanTriangulate splits a -1 terminated index stream into polygons and fans
// each around its first index.
func (l *x3dLoader) fanTriangulate(n *xmlNode, ids []int32, numPoints int32) []math.Vec3i {
	var tris []math.Vec3i
	start := 0
	for i := 0; i <= len(ids); i++ {
		if i < len(ids) && ids[i] != -1 {
			continue
		}
		poly := ids[start:i]
		start = i + 1
		for k := 2; k < len(poly); k++ {
			t := math.Vec3i{X: poly[0], Y: poly[k-1], Z: poly[k]}
			if !inRange(t, numPoints) {
				l.skip(n, SkipBadIndex, fmt.Sprintf("triangle %v with %d points", t, numPoints))
				continue
			}
			tris = append(tris, t)
		}
	}
	return tris
}

func inRange(t math.Vec3i, n int32) bool {
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n && t.Z >= 0 && t.Z < n
}

func parseVec3List(s string) ([]math.Vec3, error) {
	fields := strings.FieldsFunc(s, isListSep)
	if len(fields)%3 != 0 {
		return nil, fmt.Errorf("%d values is not a multiple of 3", len(fields))
	}
	out := make([]math.Vec3, len(fields)/3)
	for i := range out {
		var f [3]float32
		for j := range f {
			v, err := parseFloat32(fields[i*3+j])
			if err != nil {
				return nil, err
			}
			f[j] = v
		}
		out[i] = math.Vec3{X: f[0], Y: f[1], Z: f[2]}
	}
	return out, nil
}

func parseIntList(s string) ([]int32, error) {
	fields := strings.FieldsFunc(s, isListSep)
	out := make([]int32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, err
		}
		out[i] = int32(v)
	}
	return out, nil
}
