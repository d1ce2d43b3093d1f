package tachyon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"go.uber.org/zap"
)

// Parser errors.
var (
	ErrUnknownCommand = errors.New("unsupported tachyon command")
	ErrSyntax         = errors.New("tachyon syntax error")
	ErrUnknownTexture = errors.New("undefined tachyon texture")
)

// Loc is a position in a scene file.
type Loc struct {
	File string
	Line int
}

func (l Loc) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// ParseError is a fatal parse error at a location.
type ParseError struct {
	Loc Loc
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Loc, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Builder receives the records of a scene in file order, one call per
// recognized primitive. *Model implements it.
type Builder interface {
	AddTexture(t Texture) int
	AddTriangle(t Triangle)
	AddSmoothTriangle(t Triangle)
	AddSphere(s Sphere)
	AddCylinder(c Cylinder)
	AddVertexArray(va *VertexArray)
	AddPointLight(l PointLight)
	AddDirLight(l DirLight)
	CameraOrCreate() *Camera
	SetResolution(x, y int)
	SetBackground(c math.Vec3)
}

// SetResolution sets the image size requested by the scene.
func (m *Model) SetResolution(x, y int) {
	m.Resolution = [2]int{x, y}
}

// SetBackground sets the background color.
func (m *Model) SetBackground(c math.Vec3) {
	m.BackgroundColor = c
}

// Commands lists the top-level keywords the parser accepts.
var Commands = []string{
	"Begin_Scene", "End_Scene", "Resolution", "Shader_Mode", "Camera",
	"Background", "Directional_Light", "Light", "Fog", "TexDef",
	"Sphere", "FCylinder", "STri", "TRI", "VertexArray",
}

// Suggest returns the known keyword closest to word, or "" if none is
// reasonably close.
func Suggest(word string, known []string) string {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	best, bestScore := "", 0.5
	for _, k := range known {
		if s := strutil.Similarity(word, k, lev); s > bestScore {
			best, bestScore = k, s
		}
	}
	return best
}

// Option configures parsing.
type Option func(*parser)

// WithLogger sets the logger for skipped blocks and summaries.
func WithLogger(log *zap.Logger) Option {
	return func(p *parser) { p.log = log }
}

type parser struct {
	b       Builder
	loc     Loc
	sc      *bufio.Scanner
	toks    []string
	log     *zap.Logger
	texDefs map[string]int
}

// Parse reads a Tachyon scene from r into b.
func Parse(b Builder, r io.Reader, name string, opts ...Option) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<24)
	p := &parser{
		b:       b,
		loc:     Loc{File: name},
		sc:      sc,
		log:     zap.NewNop(),
		texDefs: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p.parse()
}

// ImportFile parses the Tachyon file at path into a new model.
func ImportFile(path string, opts ...Option) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tachyon file: %w", err)
	}
	defer f.Close()

	m := NewModel()
	if err := Parse(m, f, path, opts...); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) errorf(err error, format string, args ...any) error {
	return &ParseError{Loc: p.loc, Err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))}
}

// next returns the next token, or io.EOF.
func (p *parser) next() (string, error) {
	for len(p.toks) == 0 {
		if !p.sc.Scan() {
			if err := p.sc.Err(); err != nil {
				return "", &ParseError{Loc: p.loc, Err: err}
			}
			return "", io.EOF
		}
		p.loc.Line++
		line := p.sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		p.toks = strings.Fields(line)
	}
	t := p.toks[0]
	p.toks = p.toks[1:]
	return t, nil
}

// must returns the next token, treating end of input as an error.
func (p *parser) must(what string) (string, error) {
	t, err := p.next()
	if errors.Is(err, io.EOF) {
		return "", p.errorf(ErrSyntax, "unexpected end of file, expected %s", what)
	}
	return t, err
}

func (p *parser) expect(keyword string) error {
	t, err := p.must(keyword)
	if err != nil {
		return err
	}
	if !strings.EqualFold(t, keyword) {
		return p.errorf(ErrSyntax, "expected %s, got %q", keyword, t)
	}
	return nil
}

func (p *parser) float() (float32, error) {
	t, err := p.must("number")
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(t, 32)
	if err != nil {
		return 0, p.errorf(ErrSyntax, "bad number %q", t)
	}
	return float32(f), nil
}

func (p *parser) int() (int, error) {
	t, err := p.must("integer")
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(t)
	if err != nil {
		return 0, p.errorf(ErrSyntax, "bad integer %q", t)
	}
	return v, nil
}

func (p *parser) vec3() (math.Vec3, error) {
	var f [3]float32
	for i := range f {
		v, err := p.float()
		if err != nil {
			return math.Vec3{}, err
		}
		f[i] = v
	}
	return math.Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
}

// keyVec3 reads "Keyword x y z".
func (p *parser) keyVec3(keyword string) (math.Vec3, error) {
	if err := p.expect(keyword); err != nil {
		return math.Vec3{}, err
	}
	return p.vec3()
}

// keyFloat reads "Keyword f".
func (p *parser) keyFloat(keyword string) (float32, error) {
	if err := p.expect(keyword); err != nil {
		return 0, err
	}
	return p.float()
}

func (p *parser) parse() error {
	counts := map[string]int{}
	for {
		tok, err := p.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		cmd := canonical(tok, Commands)
		switch cmd {
		case "Begin_Scene":
			continue
		case "End_Scene":
			p.log.Debug("tachyon scene parsed",
				zap.String("file", p.loc.File),
				zap.Int("spheres", counts["Sphere"]),
				zap.Int("cylinders", counts["FCylinder"]),
				zap.Int("triangles", counts["STri"]+counts["TRI"]))
			return nil
		case "Resolution":
			err = p.parseResolution()
		case "Shader_Mode":
			err = p.skipUntil("End_Shader_Mode")
		case "Camera":
			err = p.parseCamera()
		case "Background":
			var c math.Vec3
			if c, err = p.vec3(); err == nil {
				p.b.SetBackground(c)
			}
		case "Directional_Light":
			err = p.parseDirLight()
		case "Light":
			err = p.parsePointLight()
		case "Fog":
			err = p.skipFog()
		case "TexDef":
			err = p.parseTexDef()
		case "Sphere":
			err = p.parseSphere()
		case "FCylinder":
			err = p.parseCylinder()
		case "STri":
			err = p.parseTriangle(true)
		case "TRI":
			err = p.parseTriangle(false)
		case "VertexArray":
			err = p.parseVertexArray()
		default:
			if s := Suggest(tok, Commands); s != "" {
				return p.errorf(ErrUnknownCommand, "%q (did you mean %q?)", tok, s)
			}
			return p.errorf(ErrUnknownCommand, "%q", tok)
		}
		if err != nil {
			return err
		}
		counts[cmd]++
	}
	return nil
}

// canonical returns the spelling of tok in known, matched case-insensitively.
func canonical(tok string, known []string) string {
	for _, k := range known {
		if strings.EqualFold(tok, k) {
			return k
		}
	}
	return ""
}

func (p *parser) parseResolution() error {
	x, err := p.int()
	if err != nil {
		return err
	}
	y, err := p.int()
	if err != nil {
		return err
	}
	p.b.SetResolution(x, y)
	return nil
}

func (p *parser) skipUntil(end string) error {
	start := p.loc
	for {
		t, err := p.next()
		if errors.Is(err, io.EOF) {
			return &ParseError{Loc: start, Err: fmt.Errorf("%w: missing %s", ErrSyntax, end)}
		}
		if err != nil {
			return err
		}
		if strings.EqualFold(t, end) {
			return nil
		}
	}
}

// parseCamera reads Center, Viewdir and Updir and skips projection,
// zoom, aspect ratio and the other settings.
func (p *parser) parseCamera() error {
	cam := p.b.CameraOrCreate()
	for {
		t, err := p.must("End_Camera")
		if err != nil {
			return err
		}
		var dst *math.Vec3
		switch strings.ToLower(t) {
		case "end_camera":
			return nil
		case "center":
			dst = &cam.Center
		case "viewdir":
			dst = &cam.ViewDir
		case "updir":
			dst = &cam.UpDir
		default:
			continue
		}
		if *dst, err = p.vec3(); err != nil {
			return err
		}
	}
}

func (p *parser) parseDirLight() error {
	dir, err := p.keyVec3("Direction")
	if err != nil {
		return err
	}
	col, err := p.keyVec3("Color")
	if err != nil {
		return err
	}
	p.b.AddDirLight(DirLight{Color: col, Direction: dir})
	return nil
}

// parsePointLight reads "Center x y z Rad r [Attenuation Constant c Linear
// l Quadratic q] Color r g b". The radius is read and dropped.
func (p *parser) parsePointLight() error {
	l := PointLight{Atten: Attenuation{Constant: 1}}
	var err error
	if l.Center, err = p.keyVec3("Center"); err != nil {
		return err
	}
	if _, err = p.keyFloat("Rad"); err != nil {
		return err
	}
	t, err := p.must("Color")
	if err != nil {
		return err
	}
	if strings.EqualFold(t, "Attenuation") {
		if l.Atten.Constant, err = p.keyFloat("Constant"); err != nil {
			return err
		}
		if l.Atten.Linear, err = p.keyFloat("Linear"); err != nil {
			return err
		}
		if l.Atten.Quadratic, err = p.keyFloat("Quadratic"); err != nil {
			return err
		}
		if t, err = p.must("Color"); err != nil {
			return err
		}
	}
	if !strings.EqualFold(t, "Color") {
		return p.errorf(ErrSyntax, "expected Color, got %q", t)
	}
	if l.Color, err = p.vec3(); err != nil {
		return err
	}
	p.b.AddPointLight(l)
	return nil
}

// skipFog consumes a fog block up to and including its color.
func (p *parser) skipFog() error {
	if err := p.skipUntil("Color"); err != nil {
		return err
	}
	_, err := p.vec3()
	p.log.Debug("tachyon fog ignored", zap.Stringer("loc", p.loc))
	return err
}

// parseTextureBody reads a texture after its introducing keyword.
func (p *parser) parseTextureBody() (Texture, error) {
	t := DefaultTexture()
	var err error
	if t.Ambient, err = p.keyFloat("Ambient"); err != nil {
		return t, err
	}
	if t.Diffuse, err = p.keyFloat("Diffuse"); err != nil {
		return t, err
	}
	if t.Specular, err = p.keyFloat("Specular"); err != nil {
		return t, err
	}
	if t.Opacity, err = p.keyFloat("Opacity"); err != nil {
		return t, err
	}

	tok, err := p.must("Color")
	if err != nil {
		return t, err
	}
	if strings.EqualFold(tok, "Phong") {
		kind, err := p.must("Plastic or Metal")
		if err != nil {
			return t, err
		}
		if !strings.EqualFold(kind, "Plastic") && !strings.EqualFold(kind, "Metal") {
			return t, p.errorf(ErrSyntax, "unknown phong type %q", kind)
		}
		if t.Phong.Plastic, err = p.float(); err != nil {
			return t, err
		}
		if t.Phong.Size, err = p.keyFloat("Phong_size"); err != nil {
			return t, err
		}
		if tok, err = p.must("Color"); err != nil {
			return t, err
		}
	}
	if !strings.EqualFold(tok, "Color") {
		return t, p.errorf(ErrSyntax, "expected Color, got %q", tok)
	}
	if t.Color, err = p.vec3(); err != nil {
		return t, err
	}
	if err := p.expect("TexFunc"); err != nil {
		return t, err
	}
	texFunc, err := p.int()
	if err != nil {
		return t, err
	}
	t.TexFunc = int32(texFunc)
	return t, nil
}

// parseTexture reads an inline texture or a TexDef reference and returns
// its ID.
func (p *parser) parseTexture() (int, error) {
	tok, err := p.must("Texture")
	if err != nil {
		return 0, err
	}
	if !strings.EqualFold(tok, "Texture") {
		id, ok := p.texDefs[tok]
		if !ok {
			return 0, p.errorf(ErrUnknownTexture, "%q", tok)
		}
		return id, nil
	}
	t, err := p.parseTextureBody()
	if err != nil {
		return 0, err
	}
	return p.b.AddTexture(t), nil
}

func (p *parser) parseTexDef() error {
	name, err := p.must("texture name")
	if err != nil {
		return err
	}
	t, err := p.parseTextureBody()
	if err != nil {
		return err
	}
	p.texDefs[name] = p.b.AddTexture(t)
	return nil
}

func (p *parser) parseSphere() error {
	var s Sphere
	var err error
	if s.Center, err = p.keyVec3("Center"); err != nil {
		return err
	}
	if s.Radius, err = p.keyFloat("Rad"); err != nil {
		return err
	}
	if s.TextureID, err = p.parseTexture(); err != nil {
		return err
	}
	p.b.AddSphere(s)
	return nil
}

func (p *parser) parseCylinder() error {
	var c Cylinder
	var err error
	if c.Base, err = p.keyVec3("Base"); err != nil {
		return err
	}
	if c.Apex, err = p.keyVec3("Apex"); err != nil {
		return err
	}
	if c.Radius, err = p.keyFloat("Rad"); err != nil {
		return err
	}
	if c.TextureID, err = p.parseTexture(); err != nil {
		return err
	}
	p.b.AddCylinder(c)
	return nil
}

func (p *parser) parseTriangle(smooth bool) error {
	var t Triangle
	dst := []*math.Vec3{&t.V0, &t.V1, &t.V2}
	keys := []string{"V0", "V1", "V2"}
	if smooth {
		dst = append(dst, &t.N0, &t.N1, &t.N2)
		keys = append(keys, "N0", "N1", "N2")
	}
	for i, k := range keys {
		v, err := p.keyVec3(k)
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	var err error
	if t.TextureID, err = p.parseTexture(); err != nil {
		return err
	}
	if smooth {
		p.b.AddSmoothTriangle(t)
	} else {
		p.b.AddTriangle(t)
	}
	return nil
}

// parseVertexArray reads
//
//	VertexArray Numverts n Coords ... [Normals ...] [Colors ...]
//	  <texture> TriMesh m i j k ... End_VertexArray
func (p *parser) parseVertexArray() error {
	if err := p.expect("Numverts"); err != nil {
		return err
	}
	n, err := p.int()
	if err != nil {
		return err
	}
	if n < 0 {
		return p.errorf(ErrSyntax, "negative vertex count %d", n)
	}
	va := &VertexArray{}
	readVecs := func() ([]math.Vec3, error) {
		out := make([]math.Vec3, n)
		for i := range out {
			if out[i], err = p.vec3(); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	for {
		tok, err := p.must("End_VertexArray")
		if err != nil {
			return err
		}
		switch strings.ToLower(tok) {
		case "coords":
			if va.Coord, err = readVecs(); err != nil {
				return err
			}
		case "normals":
			if va.Normal, err = readVecs(); err != nil {
				return err
			}
		case "colors":
			if va.Color, err = readVecs(); err != nil {
				return err
			}
		case "texture":
			t, err := p.parseTextureBody()
			if err != nil {
				return err
			}
			va.TextureID = p.b.AddTexture(t)
		case "trimesh":
			m, err := p.int()
			if err != nil {
				return err
			}
			for i := 0; i < m; i++ {
				var idx [3]int
				for j := range idx {
					if idx[j], err = p.int(); err != nil {
						return err
					}
					if idx[j] < 0 || idx[j] >= n {
						return p.errorf(ErrSyntax, "vertex index %d out of range [0,%d)", idx[j], n)
					}
				}
				va.Triangle = append(va.Triangle, math.Vec3i{X: int32(idx[0]), Y: int32(idx[1]), Z: int32(idx[2])})
			}
		case "end_vertexarray":
			if len(va.Coord) != n {
				return p.errorf(ErrSyntax, "vertex array without coordinates")
			}
			p.b.AddVertexArray(va)
			return nil
		default:
			if id, ok := p.texDefs[tok]; ok {
				va.TextureID = id
				continue
			}
			return p.errorf(ErrSyntax, "unexpected %q in vertex array", tok)
		}
	}
}
