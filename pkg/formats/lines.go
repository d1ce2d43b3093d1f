package formats

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/Faultbox/rayscene/pkg/math"
)

const maxLineSize = 1 << 24

// lineReader yields logical lines, joining physical lines that end in '\'.
type lineReader struct {
	sc   *bufio.Scanner
	line int // physical line number of the last line read
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &lineReader{sc: sc}
}

// next returns the next logical line with surrounding blanks trimmed and the
// line number it started on.
func (lr *lineReader) next() (string, int, bool) {
	if !lr.sc.Scan() {
		return "", lr.line, false
	}
	lr.line++
	start := lr.line
	text := lr.sc.Text()
	for strings.HasSuffix(text, "\\") {
		text = text[:len(text)-1] + " "
		if !lr.sc.Scan() {
			break
		}
		lr.line++
		text += lr.sc.Text()
	}
	return strings.TrimSpace(text), start, true
}

func (lr *lineReader) err() error {
	return lr.sc.Err()
}

// splitKeyword splits a line into its first whitespace-delimited token and
// the trimmed remainder.
func splitKeyword(line string) (string, string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

func parseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

// parseFloats parses exactly len(dst) whitespace or comma separated floats.
func parseFloats(s string, dst []float32) error {
	fields := strings.FieldsFunc(s, isListSep)
	if len(fields) < len(dst) {
		return io.ErrUnexpectedEOF
	}
	for i := range dst {
		f, err := parseFloat32(fields[i])
		if err != nil {
			return err
		}
		dst[i] = f
	}
	return nil
}

func parseVec3(s string) (math.Vec3, error) {
	var f [3]float32
	if err := parseFloats(s, f[:]); err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
}

func parseVec2(s string) (math.Vec2, error) {
	var f [2]float32
	if err := parseFloats(s, f[:]); err != nil {
		return math.Vec2{}, err
	}
	return math.Vec2{X: f[0], Y: f[1]}, nil
}

func isListSep(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ','
}
