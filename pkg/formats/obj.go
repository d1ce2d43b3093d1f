package formats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
	"github.com/chewxy/math32"
	"go.uber.org/zap"
)

// objVertex is one face corner: 0-based position, texcoord and normal
// indices, -1 where absent. It is the dedup key within a face group, so
// corners sharing a position but differing in normal or texcoord become
// distinct output vertices.
type objVertex struct {
	v, vt, vn int32
}

type objLoader struct {
	model *scene.Model
	file  string
	dir   string
	opts  *options

	v  []math.Vec3
	vn []math.Vec3
	vt []math.Vec2

	materials  map[string]*scene.Material
	defaultMat *scene.Material
	curMat     *scene.Material

	group     [][]objVertex
	groupLine []int
}

// ParseOBJ reads Wavefront OBJ data into model. name labels diagnostics and
// dir resolves mtllib references.
func ParseOBJ(model *scene.Model, r io.Reader, name, dir string, opts ...Option) error {
	o := buildOptions(opts)
	l := &objLoader{
		model:      model,
		file:       name,
		dir:        dir,
		opts:       o,
		materials:  make(map[string]*scene.Material),
		defaultMat: scene.NewMaterial("default"),
	}
	l.curMat = l.defaultMat
	return l.parse(r)
}

// ImportOBJ reads an OBJ file into model.
func ImportOBJ(model *scene.Model, path string, opts ...Option) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()
	return ParseOBJ(model, f, path, filepath.Dir(path), opts...)
}

func (l *objLoader) parse(r io.Reader) error {
	lr := newLineReader(r)
	for {
		line, lineNo, ok := lr.next()
		if !ok {
			break
		}
		if line == "" || line[0] == '#' {
			continue
		}
		keyword, rest := splitKeyword(line)
		switch keyword {
		case "v":
			p, err := parseVec3(rest)
			if err != nil {
				// Keep the slot so later indices stay aligned; faces using
				// it are dropped by the NaN check.
				l.skip(lineNo, SkipMalformedLine, "vertex: "+err.Error())
				p = math.Splat(math32.NaN())
			}
			l.v = append(l.v, p)
		case "vn":
			n, err := parseVec3(rest)
			if err != nil {
				l.skip(lineNo, SkipMalformedLine, "normal: "+err.Error())
				n = math.Splat(math32.NaN())
			}
			l.vn = append(l.vn, n)
		case "vt":
			t, err := parseVec2(rest)
			if err != nil {
				l.skip(lineNo, SkipMalformedLine, "texcoord: "+err.Error())
				t = math.Vec2{X: math32.NaN(), Y: math32.NaN()}
			}
			l.vt = append(l.vt, t)
		case "f":
			l.parseFace(rest, lineNo)
		case "usemtl":
			l.flushFaceGroup()
			if mat, ok := l.materials[rest]; ok {
				l.curMat = mat
			} else {
				l.curMat = l.defaultMat
				l.skip(lineNo, SkipUnknownMaterial, rest)
			}
		case "mtllib":
			l.loadMTL(rest, lineNo)
		}
		// everything else (o, g, s, comments of other tools) is ignored
	}
	if err := lr.err(); err != nil {
		return parseErr(l.file, lr.line, err)
	}
	l.flushFaceGroup()
	return nil
}

func (l *objLoader) skip(line int, kind SkipKind, detail string) {
	l.opts.diag.Skip(Skip{File: l.file, Line: line, Kind: kind, Detail: detail})
}

func (l *objLoader) loadMTL(name string, lineNo int) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.dir, name)
	}
	f, err := os.Open(path)
	if err != nil {
		l.skip(lineNo, SkipMissingFile, err.Error())
		return
	}
	defer f.Close()

	mats, err := ParseMTL(f, path, filepath.Dir(path), l.opts.rebuild()...)
	if err != nil {
		l.skip(lineNo, SkipMissingFile, err.Error())
	}
	for name, m := range mats {
		l.materials[name] = m
	}
}

// fixIndex converts a 1-based or negative relative OBJ index to 0-based.
func fixIndex(index, size int) int {
	switch {
	case index > 0:
		return index - 1
	case index == 0:
		return 0
	default:
		return size + index
	}
}

// parseFaceVertex parses i, i/t, i//n or i/t/n.
func (l *objLoader) parseFaceVertex(tok string) (objVertex, error) {
	vert := objVertex{v: -1, vt: -1, vn: -1}
	parts := strings.SplitN(tok, "/", 3)

	v, err := strconv.Atoi(parts[0])
	if err != nil {
		return vert, fmt.Errorf("bad position index %q", parts[0])
	}
	vert.v = int32(fixIndex(v, len(l.v)))

	if len(parts) > 1 && parts[1] != "" {
		vt, err := strconv.Atoi(parts[1])
		if err != nil {
			return vert, fmt.Errorf("bad texcoord index %q", parts[1])
		}
		vert.vt = int32(fixIndex(vt, len(l.vt)))
	}
	if len(parts) > 2 && parts[2] != "" {
		vn, err := strconv.Atoi(parts[2])
		if err != nil {
			return vert, fmt.Errorf("bad normal index %q", parts[2])
		}
		vert.vn = int32(fixIndex(vn, len(l.vn)))
	}
	return vert, nil
}

func (l *objLoader) parseFace(rest string, lineNo int) {
	toks := strings.Fields(rest)
	face := make([]objVertex, 0, len(toks))
	for _, tok := range toks {
		vert, err := l.parseFaceVertex(tok)
		if err != nil {
			l.skip(lineNo, SkipMalformedLine, err.Error())
			return
		}
		face = append(face, vert)
	}
	if len(face) < 3 {
		l.skip(lineNo, SkipDegenerateFace, fmt.Sprintf("face with %d vertices", len(face)))
		return
	}
	l.group = append(l.group, face)
	l.groupLine = append(l.groupLine, lineNo)
}

// meshBuilder resolves face corners into one mesh's vertex arrays.
type meshBuilder struct {
	l         *objLoader
	mesh      *scene.Mesh
	index     map[objVertex]int32
	normals   []math.Vec3
	texcoords []math.Vec2
	hasNormal bool
	hasTex    bool
}

// usable reports whether c references existing, finite data.
func (b *meshBuilder) usable(c objVertex) bool {
	if _, ok := b.index[c]; ok {
		return true
	}
	l := b.l
	if c.v < 0 || int(c.v) >= len(l.v) || l.v[c.v].HasNaN() {
		return false
	}
	if c.vn >= 0 && (int(c.vn) >= len(l.vn) || l.vn[c.vn].HasNaN()) {
		return false
	}
	if c.vt >= 0 && (int(c.vt) >= len(l.vt) || l.vt[c.vt].HasNaN()) {
		return false
	}
	return true
}

// vertex returns the output index for a usable corner c, adding it on
// first use.
func (b *meshBuilder) vertex(c objVertex) int32 {
	if idx, ok := b.index[c]; ok {
		return idx
	}
	l := b.l
	idx := b.mesh.AddPosition(l.v[c.v])
	var n math.Vec3
	if c.vn >= 0 {
		n = l.vn[c.vn]
		b.hasNormal = true
	}
	var t math.Vec2
	if c.vt >= 0 {
		t = l.vt[c.vt]
		b.hasTex = true
	}
	b.normals = append(b.normals, n)
	b.texcoords = append(b.texcoords, t)
	b.index[c] = idx
	return idx
}

// flushFaceGroup turns the pending faces into one mesh with the current
// material. Faces are fan-triangulated around their first corner. A group
// whose triangles were all dropped adds nothing.
func (l *objLoader) flushFaceGroup() {
	if len(l.group) == 0 {
		return
	}
	defer func() {
		l.group = l.group[:0]
		l.groupLine = l.groupLine[:0]
	}()
	b := &meshBuilder{
		l:     l,
		mesh:  scene.NewMesh(l.curMat.Name, l.curMat),
		index: make(map[objVertex]int32),
	}

	for fi, face := range l.group {
		i0 := face[0]
		for k := 2; k < len(face); k++ {
			if !b.usable(i0) || !b.usable(face[k-1]) || !b.usable(face[k]) {
				l.skip(l.groupLine[fi], SkipNaNVertex,
					fmt.Sprintf("triangle %d of face dropped", k-2))
				continue
			}
			v0 := b.vertex(i0)
			v1 := b.vertex(face[k-1])
			v2 := b.vertex(face[k])
			b.mesh.Triangle = append(b.mesh.Triangle, math.Vec3i{X: v0, Y: v1, Z: v2})
		}
	}
	if len(b.mesh.Triangle) == 0 {
		return
	}
	if b.hasNormal {
		b.mesh.Normal = b.normals
	}
	if b.hasTex {
		b.mesh.Texcoord = b.texcoords
	}

	l.model.AddMesh(b.mesh, math.Identity())
	l.opts.log.Debug("OBJ face group flushed",
		zap.String("file", l.file),
		zap.String("material", l.curMat.Name),
		zap.Int("faces", len(l.group)),
		zap.Int("triangles", len(b.mesh.Triangle)))
}
