package formats

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Faultbox/rayscene/pkg/scene"
	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// ErrUnsupportedTexture is returned for texel layouts the engine cannot take.
var ErrUnsupportedTexture = errors.New("unsupported texture layout")

// TextureCache holds decoded textures keyed by file path.
type TextureCache struct {
	mu     sync.Mutex
	data   map[string]*scene.Texture2D
	hits   int
	misses int
}

// NewTextureCache creates an empty cache.
func NewTextureCache() *TextureCache {
	return &TextureCache{data: make(map[string]*scene.Texture2D)}
}

// Get retrieves a texture from the cache.
func (c *TextureCache) Get(key string) (*scene.Texture2D, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tex, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return tex, ok
}

// Set stores a texture.
func (c *TextureCache) Set(key string, tex *scene.Texture2D) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = tex
}

// Clear empties the cache and resets statistics.
func (c *TextureCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*scene.Texture2D)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *TextureCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// TextureLoader decodes texture files referenced by materials. A texture is
// decoded once per path; later references share the same *Texture2D.
type TextureLoader struct {
	cache *TextureCache
}

// NewTextureLoader creates a loader with its own cache.
func NewTextureLoader() *TextureLoader {
	return &TextureLoader{cache: NewTextureCache()}
}

// Cache returns the loader's cache.
func (l *TextureLoader) Cache() *TextureCache {
	return l.cache
}

// Load reads and decodes the texture at path. Linear and sRGB uses of one
// file are cached separately.
func (l *TextureLoader) Load(path string, preferLinear bool) (*scene.Texture2D, error) {
	key := filepath.Clean(path)
	if preferLinear {
		key += "#linear"
	}
	if tex, ok := l.cache.Get(key); ok {
		return tex, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading texture: %w", err)
	}
	tex, err := DecodeTexture(data, filepath.Ext(path), preferLinear)
	if err != nil {
		return nil, fmt.Errorf("decoding texture %s: %w", path, err)
	}
	l.cache.Set(key, tex)
	return tex, nil
}

// DecodeTexture decodes texture bytes. ext selects the netpbm and TGA
// decoders; anything else goes through the registered image decoders.
func DecodeTexture(data []byte, ext string, preferLinear bool) (*scene.Texture2D, error) {
	var tex *scene.Texture2D
	var err error
	switch strings.ToLower(ext) {
	case ".ppm":
		tex, err = DecodePPM(data)
	case ".pfm":
		tex, err = DecodePFM(data)
	case ".tga":
		var img image.Image
		img, err = DecodeTGA(data)
		if err == nil {
			tex = TextureFromImage(img)
		}
	default:
		var img image.Image
		img, _, err = image.Decode(bytes.NewReader(data))
		if err == nil {
			tex = TextureFromImage(img)
		}
	}
	if err != nil {
		return nil, err
	}
	tex.PreferLinear = preferLinear
	if tex.Format() == "" {
		return nil, fmt.Errorf("%w: %d channels, depth %d", ErrUnsupportedTexture, tex.Channels, tex.Depth)
	}
	return tex, nil
}

// TextureFromImage converts a decoded image to 8-bit texels with the origin
// at the lower left. Opaque images keep 3 channels.
func TextureFromImage(img image.Image) *scene.Texture2D {
	flipped := transform.FlipV(img)
	b := flipped.Bounds()
	w, h := b.Dx(), b.Dy()

	channels := 4
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		channels = 3
	}

	tex := &scene.Texture2D{
		Width:    w,
		Height:   h,
		Channels: channels,
		Depth:    1,
		Data:     make([]byte, w*h*channels),
	}
	// After the flip the first row is the bottom of the picture.
	for y := 0; y < h; y++ {
		row := flipped.Pix[y*flipped.Stride : y*flipped.Stride+w*4]
		dst := tex.Data[y*w*channels:]
		for x := 0; x < w; x++ {
			copy(dst[x*channels:x*channels+channels], row[x*4:x*4+channels])
		}
	}
	return tex
}
