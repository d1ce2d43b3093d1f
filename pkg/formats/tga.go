package formats

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types handled by DecodeTGA.
const (
	TGATypeTrueColor    = 2
	TGATypeGray         = 3
	TGATypeTrueColorRLE = 10
	TGATypeGrayRLE      = 11
)

// ErrInvalidTGA is returned for malformed or unsupported TGA data.
var ErrInvalidTGA = errors.New("invalid TGA texture")

// DecodeTGA decodes uncompressed or RLE true-color (24/32 bit) and grayscale
// (8 bit) TGA images into a top-down image.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("%w: header truncated", ErrInvalidTGA)
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped images are not supported", ErrInvalidTGA)
	}
	gray := imageType == TGATypeGray || imageType == TGATypeGrayRLE
	rle := imageType == TGATypeTrueColorRLE || imageType == TGATypeGrayRLE
	switch {
	case gray && bpp != 8:
		return nil, fmt.Errorf("%w: grayscale depth %d", ErrInvalidTGA, bpp)
	case !gray && imageType != TGATypeTrueColor && imageType != TGATypeTrueColorRLE:
		return nil, fmt.Errorf("%w: image type %d", ErrInvalidTGA, imageType)
	case !gray && bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidTGA, bpp)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: id field truncated", ErrInvalidTGA)
	}
	src := data[offset:]
	bytesPerPixel := bpp / 8

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	pixel := func(p []byte) color.NRGBA {
		if gray {
			return color.NRGBA{R: p[0], G: p[0], B: p[0], A: 255}
		}
		c := color.NRGBA{R: p[2], G: p[1], B: p[0], A: 255}
		if bytesPerPixel == 4 {
			c.A = p[3]
		}
		return c
	}
	put := func(i int, c color.NRGBA) {
		x, y := i%width, i/width
		if !topToBottom {
			y = height - 1 - y
		}
		img.SetNRGBA(x, y, c)
	}

	count := width * height
	if !rle {
		if len(src) < count*bytesPerPixel {
			return nil, fmt.Errorf("%w: pixel data truncated", ErrInvalidTGA)
		}
		for i := 0; i < count; i++ {
			put(i, pixel(src[i*bytesPerPixel:]))
		}
		return img, nil
	}

	i, pos := 0, 0
	for i < count {
		if pos >= len(src) {
			return nil, fmt.Errorf("%w: RLE data truncated", ErrInvalidTGA)
		}
		packet := src[pos]
		pos++
		n := int(packet&0x7F) + 1
		if packet&0x80 != 0 {
			if pos+bytesPerPixel > len(src) {
				return nil, fmt.Errorf("%w: RLE data truncated", ErrInvalidTGA)
			}
			c := pixel(src[pos:])
			pos += bytesPerPixel
			for ; n > 0 && i < count; n-- {
				put(i, c)
				i++
			}
			continue
		}
		for ; n > 0 && i < count; n-- {
			if pos+bytesPerPixel > len(src) {
				return nil, fmt.Errorf("%w: RLE data truncated", ErrInvalidTGA)
			}
			put(i, pixel(src[pos:]))
			pos += bytesPerPixel
			i++
		}
	}
	return img, nil
}
