package formats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// VTK format errors.
var (
	ErrInvalidVTK = errors.New("invalid VTK file")
	ErrInvalidOFF = errors.New("invalid OFF tetrahedral file")
)

// VTK cell type codes handled by ClassifyCells.
const (
	VTKTriangle   = 5
	VTKTetra      = 10
	VTKHexahedron = 12
	VTKWedge      = 13
)

// UnstructuredVolume is a cell soup. Indices holds volume cells as runs of
// Vec4i: a tetrahedron is (-1,-1,-1,-1) followed by its 4 points, a
// hexahedron is two tuples of 4 points, and a wedge is (-2,-2,p0,p1)
// followed by (p2,p3,p4,p5). Triangles holds the surface cells.
type UnstructuredVolume struct {
	Vertices  []math.Vec3
	Values    []float32 // per vertex; empty if the file has no scalars
	Indices   []math.Vec4i
	Triangles []math.Vec3i
}

// Cell is one raw cell as read from a file.
type Cell struct {
	Type   int
	Points []int32
}

// ClassifyCells appends cells to v using the Vec4i run encoding. Cells of
// other types, or with the wrong point count, are reported to d and skipped.
func ClassifyCells(v *UnstructuredVolume, cells []Cell, d *Diagnostics) {
	for i, c := range cells {
		p := c.Points
		switch {
		case c.Type == VTKTetra && len(p) == 4:
			v.Indices = append(v.Indices,
				math.Vec4i{X: -1, Y: -1, Z: -1, W: -1},
				math.Vec4i{X: p[0], Y: p[1], Z: p[2], W: p[3]})
		case c.Type == VTKHexahedron && len(p) == 8:
			v.Indices = append(v.Indices,
				math.Vec4i{X: p[0], Y: p[1], Z: p[2], W: p[3]},
				math.Vec4i{X: p[4], Y: p[5], Z: p[6], W: p[7]})
		case c.Type == VTKWedge && len(p) == 6:
			v.Indices = append(v.Indices,
				math.Vec4i{X: -2, Y: -2, Z: p[0], W: p[1]},
				math.Vec4i{X: p[2], Y: p[3], Z: p[4], W: p[5]})
		case c.Type == VTKTriangle && len(p) == 3:
			v.Triangles = append(v.Triangles, math.Vec3i{X: p[0], Y: p[1], Z: p[2]})
		default:
			if d != nil {
				d.Skip(Skip{Kind: SkipUnsupportedCell,
					Detail: fmt.Sprintf("cell %d: type %d with %d points", i, c.Type, len(p))})
			}
		}
	}
}

// NumCells counts the volume cells in Indices.
func (v *UnstructuredVolume) NumCells() int {
	return len(v.Indices) / 2
}

// CellRange is the min/max of the vertex values of one cell.
type CellRange struct {
	Min, Max float32
}

// ComputeCellRanges returns the value range of every volume cell, in cell
// order. Work is split into disjoint chunks across workers goroutines.
func ComputeCellRanges(ctx context.Context, v *UnstructuredVolume, workers int) ([]CellRange, error) {
	if len(v.Values) == 0 {
		return nil, fmt.Errorf("%w: volume has no vertex values", ErrInvalidVTK)
	}
	n := v.NumCells()
	out := make([]CellRange, n)
	if workers <= 0 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers
	if chunk == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() error {
			for c := start; c < end; c++ {
				if c%4096 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				r, err := v.cellRange(c)
				if err != nil {
					return err
				}
				out[c] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *UnstructuredVolume) cellRange(c int) (CellRange, error) {
	a, b := v.Indices[2*c], v.Indices[2*c+1]
	ids := []int32{a.X, a.Y, a.Z, a.W, b.X, b.Y, b.Z, b.W}
	switch {
	case a.X == -1:
		ids = ids[4:]
	case a.X == -2:
		ids = ids[2:]
	}
	r := CellRange{Min: v.Values[0], Max: v.Values[0]}
	for i, id := range ids {
		if id < 0 || int(id) >= len(v.Values) {
			return r, fmt.Errorf("%w: cell %d references vertex %d of %d", ErrInvalidVTK, c, id, len(v.Values))
		}
		val := v.Values[id]
		if i == 0 {
			r = CellRange{Min: val, Max: val}
			continue
		}
		r.Min = min(r.Min, val)
		r.Max = max(r.Max, val)
	}
	return r, nil
}

// SurfaceMesh returns the triangle cells plus the faces of every
// tetrahedron as one mesh over v's vertices, or nil if there are none.
func (v *UnstructuredVolume) SurfaceMesh(name string) *scene.Mesh {
	tris := append(append([]math.Vec3i(nil), v.Triangles...), v.tetFaces()...)
	if len(tris) == 0 {
		return nil
	}
	mesh := scene.NewMesh(name, scene.NewMaterial("default"))
	mesh.Position = append([]math.Vec3(nil), v.Vertices...)
	mesh.Triangle = tris
	return mesh
}

// tokenReader walks whitespace separated tokens, tracking line numbers.
type tokenReader struct {
	sc   *bufio.Scanner
	line int
	toks []string
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<24)
	return &tokenReader{sc: sc}
}

func (t *tokenReader) next() (string, error) {
	for len(t.toks) == 0 {
		if !t.sc.Scan() {
			if err := t.sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		t.line++
		t.toks = strings.Fields(t.sc.Text())
	}
	s := t.toks[0]
	t.toks = t.toks[1:]
	return s, nil
}

// restOfLine drops the remaining tokens of the current line.
func (t *tokenReader) restOfLine() {
	t.toks = nil
}

func (t *tokenReader) int() (int, error) {
	s, err := t.next()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (t *tokenReader) float() (float32, error) {
	s, err := t.next()
	if err != nil {
		return 0, err
	}
	return parseFloat32(s)
}

func (t *tokenReader) vec3() (math.Vec3, error) {
	var f [3]float32
	for i := range f {
		v, err := t.float()
		if err != nil {
			return math.Vec3{}, err
		}
		f[i] = v
	}
	return math.Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
}

// ParseVTK reads a legacy ASCII VTK file holding an unstructured grid or
// polygon data.
func ParseVTK(r io.Reader, name string, opts ...Option) (*UnstructuredVolume, error) {
	o := buildOptions(opts)
	t := newTokenReader(r)

	// Header: version line, title line, then ASCII|BINARY.
	for i := 0; i < 2; i++ {
		if !t.sc.Scan() {
			return nil, parseErr(name, t.line, ErrEmptyFile)
		}
		t.line++
		if i == 0 && !strings.HasPrefix(t.sc.Text(), "# vtk DataFile") {
			return nil, parseErr(name, t.line, fmt.Errorf("%w: missing version header", ErrInvalidVTK))
		}
	}
	enc, err := t.next()
	if err != nil {
		return nil, parseErr(name, t.line, err)
	}
	if !strings.EqualFold(enc, "ASCII") {
		return nil, parseErr(name, t.line, fmt.Errorf("%w: %s encoding", ErrUnsupportedFormat, enc))
	}

	v := &UnstructuredVolume{}
	var cells []Cell
	var cellTypes []int
	polydata := false

	fail := func(err error) (*UnstructuredVolume, error) {
		return nil, parseErr(name, t.line, fmt.Errorf("%w: %v", ErrInvalidVTK, err))
	}

	for {
		kw, err := t.next()
		if errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, parseErr(name, t.line, err)
		}
		switch strings.ToUpper(kw) {
		case "DATASET":
			kind, err := t.next()
			if err != nil {
				return fail(err)
			}
			switch strings.ToUpper(kind) {
			case "UNSTRUCTURED_GRID":
			case "POLYDATA":
				polydata = true
			default:
				return nil, parseErr(name, t.line, fmt.Errorf("%w: dataset %s", ErrUnsupportedFormat, kind))
			}
		case "POINTS":
			n, err := t.int()
			if err != nil {
				return fail(err)
			}
			t.restOfLine()
			v.Vertices = make([]math.Vec3, n)
			for i := range v.Vertices {
				if v.Vertices[i], err = t.vec3(); err != nil {
					return fail(err)
				}
			}
		case "CELLS", "POLYGONS":
			n, err := t.int()
			if err != nil {
				return fail(err)
			}
			if _, err := t.int(); err != nil {
				return fail(err)
			}
			cells = make([]Cell, n)
			for i := range cells {
				k, err := t.int()
				if err != nil {
					return fail(err)
				}
				pts := make([]int32, k)
				for j := range pts {
					id, err := t.int()
					if err != nil {
						return fail(err)
					}
					if id < 0 || id >= len(v.Vertices) {
						return fail(fmt.Errorf("cell %d references point %d of %d", i, id, len(v.Vertices)))
					}
					pts[j] = int32(id)
				}
				cells[i].Points = pts
			}
		case "CELL_TYPES":
			n, err := t.int()
			if err != nil {
				return fail(err)
			}
			cellTypes = make([]int, n)
			for i := range cellTypes {
				if cellTypes[i], err = t.int(); err != nil {
					return fail(err)
				}
			}
		case "POINT_DATA":
			if _, err := t.int(); err != nil {
				return fail(err)
			}
		case "SCALARS":
			// SCALARS name type [numComp], then LOOKUP_TABLE name.
			t.restOfLine()
			lut, err := t.next()
			if err != nil || !strings.EqualFold(lut, "LOOKUP_TABLE") {
				return fail(fmt.Errorf("SCALARS without LOOKUP_TABLE"))
			}
			t.restOfLine()
			v.Values = make([]float32, len(v.Vertices))
			for i := range v.Values {
				if v.Values[i], err = t.float(); err != nil {
					return fail(err)
				}
			}
		default:
			o.diag.Skip(Skip{File: name, Line: t.line, Kind: SkipUnknownNode, Detail: kw})
			t.restOfLine()
		}
	}

	if polydata {
		for i := range cells {
			p := cells[i].Points
			for k := 2; k < len(p); k++ {
				v.Triangles = append(v.Triangles, math.Vec3i{X: p[0], Y: p[k-1], Z: p[k]})
			}
		}
	} else {
		if len(cellTypes) != len(cells) {
			return fail(fmt.Errorf("%d cells but %d cell types", len(cells), len(cellTypes)))
		}
		for i := range cells {
			cells[i].Type = cellTypes[i]
		}
		ClassifyCells(v, cells, o.diag)
	}
	if len(v.Vertices) == 0 {
		return nil, parseErr(name, t.line, ErrEmptyFile)
	}

	o.log.Debug("VTK parsed",
		zap.String("file", name),
		zap.Int("vertices", len(v.Vertices)),
		zap.Int("cells", v.NumCells()),
		zap.Int("triangles", len(v.Triangles)))
	return v, nil
}

// ParseOFF reads the tetrahedral OFF variant: a "nPoints nTets" header,
// then "x y z value" per point and four point ids per tetrahedron.
func ParseOFF(r io.Reader, name string, opts ...Option) (*UnstructuredVolume, error) {
	o := buildOptions(opts)
	t := newTokenReader(r)
	fail := func(err error) (*UnstructuredVolume, error) {
		return nil, parseErr(name, t.line, fmt.Errorf("%w: %v", ErrInvalidOFF, err))
	}

	nPoints, err := t.int()
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, parseErr(name, 0, ErrEmptyFile)
	}
	if err != nil {
		return fail(err)
	}
	nTets, err := t.int()
	if err != nil {
		return fail(err)
	}
	if nPoints < 0 || nTets < 0 {
		return fail(fmt.Errorf("negative counts %d %d", nPoints, nTets))
	}

	v := &UnstructuredVolume{
		Vertices: make([]math.Vec3, nPoints),
		Values:   make([]float32, nPoints),
	}
	for i := 0; i < nPoints; i++ {
		if v.Vertices[i], err = t.vec3(); err != nil {
			return fail(err)
		}
		if v.Values[i], err = t.float(); err != nil {
			return fail(err)
		}
	}
	cells := make([]Cell, nTets)
	for i := range cells {
		pts := make([]int32, 4)
		for j := range pts {
			id, err := t.int()
			if err != nil {
				return fail(err)
			}
			if id < 0 || id >= nPoints {
				return fail(fmt.Errorf("tet %d references point %d of %d", i, id, nPoints))
			}
			pts[j] = int32(id)
		}
		cells[i] = Cell{Type: VTKTetra, Points: pts}
	}
	ClassifyCells(v, cells, o.diag)

	o.log.Debug("OFF parsed", zap.String("file", name), zap.Int("points", nPoints), zap.Int("tets", nTets))
	return v, nil
}

// ImportVolume reads a .vtk or .off file.
func ImportVolume(path string, opts ...Option) (*UnstructuredVolume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume file: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(fileExt(path), "off") {
		return ParseOFF(f, path, opts...)
	}
	return ParseVTK(f, path, opts...)
}

// tetFaces returns the four faces of every tetrahedron.
func (v *UnstructuredVolume) tetFaces() []math.Vec3i {
	var out []math.Vec3i
	for i := 0; i+1 < len(v.Indices); i += 2 {
		if v.Indices[i].X != -1 {
			continue
		}
		p := v.Indices[i+1]
		out = append(out,
			math.Vec3i{X: p.X, Y: p.Y, Z: p.Z},
			math.Vec3i{X: p.X, Y: p.W, Z: p.Y},
			math.Vec3i{X: p.Y, Y: p.W, Z: p.Z},
			math.Vec3i{X: p.X, Y: p.Z, Z: p.W})
	}
	return out
}
