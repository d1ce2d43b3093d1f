package formats

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
	"github.com/Faultbox/rayscene/pkg/scene"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// STL format errors.
var (
	ErrInvalidSTLHeader = errors.New("invalid STL header")
	ErrTruncatedSTLData = errors.New("truncated STL data")
)

const (
	stlHeaderSize = 84 // 80 byte comment + uint32 triangle count
	stlRecordSize = 50 // normal, 3 vertices, uint16 attribute
)

// STLHeader is the fixed binary STL preamble.
type STLHeader struct {
	Comment      [80]byte
	NumTriangles uint32
}

// ParseSTL decodes binary or ASCII STL data into one new mesh of model.
// Every triangle gets three fresh vertices. Record normals are ignored.
func ParseSTL(model *scene.Model, data []byte, name string, opts ...Option) error {
	o := buildOptions(opts)

	if isASCIISTL(data) {
		return parseASCIISTL(model, data, name, o)
	}
	if len(data) < stlHeaderSize {
		return parseErr(name, 0, fmt.Errorf("%w: %d bytes", ErrInvalidSTLHeader, len(data)))
	}

	var hdr STLHeader
	if err := binary.Read(bytes.NewReader(data[:stlHeaderSize]), binary.LittleEndian, &hdr); err != nil {
		return parseErr(name, 0, fmt.Errorf("%w: %v", ErrInvalidSTLHeader, err))
	}

	n := int(hdr.NumTriangles)
	body := data[stlHeaderSize:]
	if len(body) < n*stlRecordSize {
		return parseErr(name, 0, fmt.Errorf("%w: header declares %d triangles, data holds %d",
			ErrTruncatedSTLData, n, len(body)/stlRecordSize))
	}

	h := scene.NewImportHelper(model)
	h.Begin(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), scene.NewMaterial("default"))
	for i := 0; i < n; i++ {
		rec := body[i*stlRecordSize:]
		var tri [3]int32
		for v := 0; v < 3; v++ {
			// skip the 12 byte normal
			off := 12 + v*12
			p := math.Vec3{
				X: readFloat32(rec[off:]),
				Y: readFloat32(rec[off+4:]),
				Z: readFloat32(rec[off+8:]),
			}
			tri[v] = h.AddVertex(p)
		}
		h.AddTriangle(math.Vec3i{X: tri[0], Y: tri[1], Z: tri[2]})
	}
	h.Finalize()

	o.log.Debug("STL imported", zap.String("file", name), zap.Int("triangles", n))
	return nil
}

func readFloat32(b []byte) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b))
}

// isASCIISTL reports whether data looks like ASCII STL: it starts with
// "solid", its length does not match the binary layout it would imply, and
// a later line starts with "facet" or "endsolid". Binary files whose header
// comment begins with "solid" fail the last check.
func isASCIISTL(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return false
	}
	if len(data) >= stlHeaderSize {
		n := int(binary.LittleEndian.Uint32(data[80:84]))
		if len(data) == stlHeaderSize+n*stlRecordSize {
			return false
		}
	}
	lines := bytes.Split(trimmed, []byte("\n"))
	for _, line := range lines[1:] {
		fields := bytes.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch string(fields[0]) {
		case "facet", "endsolid":
			return true
		}
	}
	return false
}

func parseASCIISTL(model *scene.Model, data []byte, name string, o *options) error {
	var verts []math.Vec3
	var tris [][3]math.Vec3
	inLoop := false

	lr := newLineReader(bytes.NewReader(data))
	for {
		line, lineNo, ok := lr.next()
		if !ok {
			break
		}
		keyword, rest := splitKeyword(line)
		switch keyword {
		case "outer":
			inLoop = true
			verts = verts[:0]
		case "vertex":
			p, err := parseVec3(rest)
			if err != nil || !inLoop {
				o.diag.Skip(Skip{File: name, Line: lineNo, Kind: SkipMalformedLine, Detail: line})
				continue
			}
			verts = append(verts, p)
		case "endloop":
			inLoop = false
			if len(verts) != 3 {
				o.diag.Skip(Skip{File: name, Line: lineNo, Kind: SkipDegenerateFace,
					Detail: fmt.Sprintf("facet with %d vertices", len(verts))})
				continue
			}
			tris = append(tris, [3]math.Vec3{verts[0], verts[1], verts[2]})
		}
	}
	if err := lr.err(); err != nil {
		return parseErr(name, lr.line, err)
	}

	h := scene.NewImportHelper(model)
	h.Begin(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), scene.NewMaterial("default"))
	for _, t := range tris {
		a := h.AddVertex(t[0])
		b := h.AddVertex(t[1])
		c := h.AddVertex(t[2])
		h.AddTriangle(math.Vec3i{X: a, Y: b, Z: c})
	}
	h.Finalize()
	return nil
}

// ImportSTL reads an STL file into model.
func ImportSTL(model *scene.Model, path string, opts ...Option) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading STL file: %w", err)
	}
	return ParseSTL(model, data, path, opts...)
}

// ImportSTLAnimation reads a list file naming one STL file per line and
// imports each into its own model. Frames are imported concurrently; the
// result keeps list order.
func ImportSTLAnimation(ctx context.Context, listPath string, opts ...Option) ([]*scene.Model, error) {
	o := buildOptions(opts)

	f, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("opening STL animation list: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(listPath)
	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		p := strings.TrimSpace(sc.Text())
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		paths = append(paths, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading STL animation list: %w", err)
	}

	frames := make([]*scene.Model, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			model := scene.NewModel()
			if err := ImportSTL(model, p, o.rebuild()...); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			frames[i] = model
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.log.Info("STL animation imported", zap.String("file", listPath), zap.Int("frames", len(frames)))
	return frames, nil
}
