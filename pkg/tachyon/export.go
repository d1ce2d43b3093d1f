package tachyon

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Faultbox/rayscene/pkg/math"
)

// ExportStats summarizes an export.
type ExportStats struct {
	Meshes    int
	Triangles int
	BinBytes  int64
}

// Export writes m to fileBase+".xml" and fileBase+".bin".
func Export(m *Model, fileBase string, opts TessellationOptions) (ExportStats, error) {
	xf, err := os.Create(fileBase + ".xml")
	if err != nil {
		return ExportStats{}, fmt.Errorf("creating xml: %w", err)
	}
	defer xf.Close()
	bf, err := os.Create(fileBase + ".bin")
	if err != nil {
		return ExportStats{}, fmt.Errorf("creating bin: %w", err)
	}
	defer bf.Close()

	stats, err := ExportTo(xf, bf, m, opts)
	if err != nil {
		return stats, err
	}
	if err := xf.Close(); err != nil {
		return stats, fmt.Errorf("closing xml: %w", err)
	}
	if err := bf.Close(); err != nil {
		return stats, fmt.Errorf("closing bin: %w", err)
	}
	return stats, nil
}

// ExportTo writes the scene description to xmlW and the vertex data to
// binW. Vertex arrays come first, split by texture where their triangles
// carry their own, then flat triangles, spheres and cylinders, each grouped
// by texture. Offsets in the XML are byte offsets into the binary stream.
func ExportTo(xmlW, binW io.Writer, m *Model, opts TessellationOptions) (ExportStats, error) {
	e := &exporter{
		model: m,
		xml:   bufio.NewWriter(xmlW),
		bin:   bufio.NewWriter(binW),
	}

	e.printf("<?xml version=\"1.0\"?>\n")
	e.printf("<scene>\n")
	e.printf(" <Group>\n")
	for _, va := range m.VertexArrays {
		for _, part := range SplitByTexture(va) {
			e.exportArray(part)
		}
	}
	for _, va := range FlatTriangles(m.Triangles) {
		e.exportArray(va)
	}
	for _, va := range TessellateSpheres(m.Spheres, opts) {
		e.exportArray(va)
	}
	for _, va := range TessellateCylinders(m.Cylinders, opts) {
		e.exportArray(va)
	}
	e.printf(" </Group>\n")
	e.printf("</scene>\n")

	if e.err != nil {
		return e.stats, e.err
	}
	if err := e.bin.Flush(); err != nil {
		return e.stats, fmt.Errorf("writing bin: %w", err)
	}
	if err := e.xml.Flush(); err != nil {
		return e.stats, fmt.Errorf("writing xml: %w", err)
	}
	return e.stats, nil
}

type exporter struct {
	model *Model
	xml   *bufio.Writer
	bin   *bufio.Writer
	stats ExportStats
	err   error
}

func (e *exporter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	if _, err := fmt.Fprintf(e.xml, format, args...); err != nil {
		e.err = fmt.Errorf("writing xml: %w", err)
	}
}

// writeBin appends data to the binary stream and returns its offset.
func (e *exporter) writeBin(data any) int64 {
	ofs := e.stats.BinBytes
	if e.err != nil {
		return ofs
	}
	if err := binary.Write(e.bin, binary.LittleEndian, data); err != nil {
		e.err = fmt.Errorf("writing bin: %w", err)
		return ofs
	}
	e.stats.BinBytes += int64(binary.Size(data))
	return ofs
}

func (e *exporter) exportArray(va *VertexArray) {
	tex := e.model.Texture(va.TextureID)
	kd := tex.Color.Scale(tex.Diffuse)
	ks := math.Splat(tex.Specular)

	e.printf("  <TriangleMesh>\n")
	e.printf("    <environment>0</environment>\n")
	e.printf("    <material>\n")
	e.printf("    <code>\"OBJ\"</code>\n")
	e.printf("    <parameters>\n")
	e.printf("      <float name=\"d\">%s</float>\n", formatFloat(tex.Opacity))
	e.printf("      <float3 name=\"Kd\">%s</float3>\n", formatVec3(kd))
	e.printf("      <float3 name=\"Ks\">%s</float3>\n", formatVec3(ks))
	e.printf("      <float name=\"Ns\">%s</float>\n", formatFloat(tex.Phong.Size))
	e.printf("    </parameters>\n")
	e.printf("    </material>\n")
	if len(va.Coord) > 0 {
		ofs := e.writeBin(va.Coord)
		e.printf("    <positions ofs=\"%d\" size=\"%d\"/>\n", ofs, len(va.Coord))
	}
	if len(va.Normal) > 0 {
		ofs := e.writeBin(va.Normal)
		e.printf("    <normals ofs=\"%d\" size=\"%d\"/>\n", ofs, len(va.Normal))
	}
	if len(va.Triangle) > 0 {
		ofs := e.writeBin(va.Triangle)
		e.printf("    <triangles ofs=\"%d\" size=\"%d\"/>\n", ofs, len(va.Triangle))
	}
	e.printf("  </TriangleMesh>\n")

	e.stats.Meshes++
	e.stats.Triangles += len(va.Triangle)
}

// formatFloat prints f with six significant digits and no trailing zeros.
func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', 6, 32)
}

func formatVec3(v math.Vec3) string {
	return formatFloat(v.X) + " " + formatFloat(v.Y) + " " + formatFloat(v.Z)
}
