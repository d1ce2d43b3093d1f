package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Faultbox/rayscene/pkg/scene"
	"github.com/chewxy/math32"
)

// Netpbm texture errors.
var (
	ErrInvalidPPM = errors.New("invalid PPM texture")
	ErrInvalidPFM = errors.New("invalid PFM texture")
)

// DecodePPM decodes a binary (P6) PPM with maxval 255. Rows are flipped so
// the origin is at the lower left.
func DecodePPM(data []byte) (*scene.Texture2D, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	magic, err := pnmToken(r, true)
	if err != nil || magic != "P6" {
		return nil, fmt.Errorf("%w: only binary P6 is supported", ErrInvalidPPM)
	}
	var dims [3]int
	for i := range dims {
		tok, err := pnmToken(r, true)
		if err != nil {
			return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidPPM, err)
		}
		if _, err := fmt.Sscan(tok, &dims[i]); err != nil {
			return nil, fmt.Errorf("%w: bad header value %q", ErrInvalidPPM, tok)
		}
	}
	width, height, maxVal := dims[0], dims[1], dims[2]
	if maxVal != 255 {
		return nil, fmt.Errorf("%w: maxval %d, only 255 is supported", ErrInvalidPPM, maxVal)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidPPM, width, height)
	}

	tex := &scene.Texture2D{Width: width, Height: height, Channels: 3, Depth: 1}
	tex.Data = make([]byte, width*height*3)
	if _, err := io.ReadFull(r, tex.Data); err != nil {
		return nil, fmt.Errorf("%w: truncated pixel data", ErrInvalidPPM)
	}
	flipRows(tex.Data, width*3, height)
	return tex, nil
}

// DecodePFM decodes a little-endian PF (RGB) or Pf (gray) float texture.
// Texels are multiplied by the absolute scale factor and flipped to a lower
// left origin.
func DecodePFM(data []byte) (*scene.Texture2D, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	magic, err := pnmToken(r, false)
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidPFM, err)
	}
	channels := 0
	switch magic {
	case "PF":
		channels = 3
	case "Pf":
		channels = 1
	default:
		return nil, fmt.Errorf("%w: header is not PF or Pf", ErrInvalidPFM)
	}

	var width, height int
	var scale float32
	for i, dst := range []any{&width, &height, &scale} {
		tok, err := pnmToken(r, false)
		if err != nil {
			return nil, fmt.Errorf("%w: reading header field %d: %v", ErrInvalidPFM, i, err)
		}
		if _, err := fmt.Sscan(tok, dst); err != nil {
			return nil, fmt.Errorf("%w: bad header value %q", ErrInvalidPFM, tok)
		}
	}
	if scale == 0 {
		return nil, fmt.Errorf("%w: scale factor can not be 0", ErrInvalidPFM)
	}
	if scale > 0 {
		return nil, fmt.Errorf("%w: big endian data is not supported", ErrInvalidPFM)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidPFM, width, height)
	}
	scale = math32.Abs(scale)

	n := width * height * channels
	raw := make([]byte, n*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: truncated pixel data", ErrInvalidPFM)
	}
	for i := 0; i < n; i++ {
		f := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f*scale))
	}
	flipRows(raw, width*channels*4, height)

	return &scene.Texture2D{
		Width:    width,
		Height:   height,
		Channels: channels,
		Depth:    4,
		Data:     raw,
	}, nil
}

// pnmToken reads one whitespace-delimited header token, consuming exactly one
// trailing whitespace byte. PPM allows '#' comments; PFM does not.
func pnmToken(r *bufio.Reader, comments bool) (string, error) {
	var tok []byte
	for {
		c, err := r.ReadByte()
		if err != nil {
			if len(tok) > 0 && err == io.EOF {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case comments && c == '#' && len(tok) == 0:
			if _, err := r.ReadString('\n'); err != nil {
				return "", err
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, c)
		}
	}
}

func flipRows(data []byte, stride, height int) {
	tmp := make([]byte, stride)
	for y := 0; y < height/2; y++ {
		top := data[y*stride : (y+1)*stride]
		bottom := data[(height-1-y)*stride : (height-y)*stride]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}
