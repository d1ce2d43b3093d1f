package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"path/filepath"
	"testing"
)

// createTestPPM creates a P6 image whose pixel at row y (top-down) has all
// components set to y.
func createTestPPM(width, height int) []byte {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "P6\n# test image\n%d %d\n255\n", width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width*3; x++ {
			buf.WriteByte(byte(y))
		}
	}
	return buf.Bytes()
}

func TestDecodePPM(t *testing.T) {
	tex, err := DecodePPM(createTestPPM(3, 2))
	if err != nil {
		t.Fatalf("DecodePPM failed: %v", err)
	}
	if tex.Width != 3 || tex.Height != 2 || tex.Channels != 3 || tex.Depth != 1 {
		t.Errorf("unexpected layout %dx%d c%d d%d", tex.Width, tex.Height, tex.Channels, tex.Depth)
	}
	if len(tex.Data) != tex.Size() {
		t.Fatalf("data length %d, want %d", len(tex.Data), tex.Size())
	}
	// bottom row first
	if tex.Data[0] != 1 || tex.Data[9] != 0 {
		t.Errorf("rows not flipped: first texel %d, second row %d", tex.Data[0], tex.Data[9])
	}
	if tex.Format() != "SRGB" {
		t.Errorf("format = %q, want SRGB", tex.Format())
	}
}

func TestDecodePPM_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"ascii", []byte("P3\n1 1\n255\n0 0 0\n")},
		{"maxval", []byte("P6\n1 1\n65535\n")},
		{"truncated", []byte("P6\n2 2\n255\n\x00\x00")},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePPM(tt.data); !errors.Is(err, ErrInvalidPPM) {
				t.Errorf("expected ErrInvalidPPM, got %v", err)
			}
		})
	}
}

func createTestPFM(magic string, width, height int, scale float32, values []float32) []byte {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "%s\n%d %d\n%g\n", magic, width, height, scale)
	for _, v := range values {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func TestDecodePFM(t *testing.T) {
	tex, err := DecodePFM(createTestPFM("Pf", 2, 1, -2, []float32{1.5, 3}))
	if err != nil {
		t.Fatalf("DecodePFM failed: %v", err)
	}
	if tex.Channels != 1 || tex.Depth != 4 || tex.Format() != "R32F" {
		t.Errorf("unexpected layout c%d d%d %q", tex.Channels, tex.Depth, tex.Format())
	}
	got := []float32{
		math.Float32frombits(binary.LittleEndian.Uint32(tex.Data)),
		math.Float32frombits(binary.LittleEndian.Uint32(tex.Data[4:])),
	}
	if got[0] != 3 || got[1] != 6 {
		t.Errorf("texels = %v, want scaled [3 6]", got)
	}
}

func TestDecodePFM_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"big endian", createTestPFM("PF", 1, 1, 1, []float32{0, 0, 0})},
		{"bad magic", createTestPFM("P7", 1, 1, -1, []float32{0})},
		{"truncated", createTestPFM("PF", 2, 2, -1, []float32{0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePFM(tt.data); !errors.Is(err, ErrInvalidPFM) {
				t.Errorf("expected ErrInvalidPFM, got %v", err)
			}
		})
	}
}

// createTestTGA creates an uncompressed bottom-up 24-bit TGA from BGR pixels.
func createTestTGA(width, height int, bgr []byte) []byte {
	hdr := make([]byte, 18)
	hdr[2] = TGATypeTrueColor
	binary.LittleEndian.PutUint16(hdr[12:], uint16(width))
	binary.LittleEndian.PutUint16(hdr[14:], uint16(height))
	hdr[16] = 24
	return append(hdr, bgr...)
}

func TestDecodeTGA_TrueColor(t *testing.T) {
	// bottom row: blue, green; top row: red, white
	data := createTestTGA(2, 2, []byte{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 255, 255, 255,
	})
	tex, err := DecodeTexture(data, ".tga", false)
	if err != nil {
		t.Fatalf("DecodeTexture failed: %v", err)
	}
	if tex.Channels != 3 {
		t.Fatalf("opaque TGA should decode to 3 channels, got %d", tex.Channels)
	}
	want := []byte{
		0, 0, 255, 0, 255, 0,
		255, 0, 0, 255, 255, 255,
	}
	if !bytes.Equal(tex.Data, want) {
		t.Errorf("texels = %v, want %v", tex.Data, want)
	}
}

func TestDecodeTGA_GrayRLE(t *testing.T) {
	hdr := make([]byte, 18)
	hdr[2] = TGATypeGrayRLE
	hdr[12] = 3
	hdr[14] = 1
	hdr[16] = 8
	data := append(hdr, 0x82, 77)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	for x := 0; x < 3; x++ {
		if c := color.NRGBAModel.Convert(img.At(x, 0)).(color.NRGBA); c.R != 77 || c.A != 255 {
			t.Errorf("pixel %d = %v", x, c)
		}
	}
}

func TestDecodeTGA_Errors(t *testing.T) {
	colorMapped := createTestTGA(1, 1, []byte{0, 0, 0})
	colorMapped[1] = 1
	truncated := createTestTGA(2, 2, []byte{0, 0, 0})

	for name, data := range map[string][]byte{
		"short header": {0, 0, 2},
		"color mapped": colorMapped,
		"truncated":    truncated,
	} {
		if _, err := DecodeTGA(data); !errors.Is(err, ErrInvalidTGA) {
			t.Errorf("%s: expected ErrInvalidTGA, got %v", name, err)
		}
	}
}

func TestDecodeTexture_PNGAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{G: 255, A: 128})
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}

	tex, err := DecodeTexture(buf.Bytes(), ".png", true)
	if err != nil {
		t.Fatalf("DecodeTexture failed: %v", err)
	}
	if tex.Channels != 4 || tex.Format() != "RGBA8" {
		t.Fatalf("expected linear RGBA8, got c%d %q", tex.Channels, tex.Format())
	}
	// The lower row of the picture comes first.
	if tex.Data[3] != 128 || tex.Data[7] != 255 {
		t.Errorf("alpha = %d/%d, want 128/255", tex.Data[3], tex.Data[7])
	}
}

func TestTextureLoader_Cache(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "a.ppm"), string(createTestPPM(1, 1)))

	loader := NewTextureLoader()
	first, err := loader.Load(path, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := loader.Load(filepath.Join(dir, ".", "a.ppm"), false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first != second {
		t.Error("equivalent paths should hit the cache")
	}

	loader.Cache().Clear()
	if hits, misses := loader.Cache().Stats(); hits != 0 || misses != 0 {
		t.Errorf("Clear should reset stats, got %d/%d", hits, misses)
	}
	if _, ok := loader.Cache().Get(path); ok {
		t.Error("Clear should drop entries")
	}
}
