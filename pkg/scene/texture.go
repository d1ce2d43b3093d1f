package scene

// Texture2D is decoded texel data. Rows are stored bottom-up so that texel
// (0, 0) is the lower-left corner of the image.
type Texture2D struct {
	Width    int
	Height   int
	Channels int // 1, 3 or 4
	Depth    int // bytes per channel: 1 (uint8) or 4 (float32)

	// PreferLinear marks data textures (alpha, roughness) that must not be
	// treated as sRGB.
	PreferLinear bool

	Data []byte
}

// Format returns the engine texture format name for the texel layout, or ""
// if the combination is not representable.
func (t *Texture2D) Format() string {
	switch t.Depth {
	case 1:
		switch t.Channels {
		case 1:
			return "R8"
		case 3:
			if t.PreferLinear {
				return "RGB8"
			}
			return "SRGB"
		case 4:
			if t.PreferLinear {
				return "RGBA8"
			}
			return "SRGBA"
		}
	case 4:
		switch t.Channels {
		case 1:
			return "R32F"
		case 3:
			return "RGB32F"
		case 4:
			return "RGBA32F"
		}
	}
	return ""
}

// Size returns the expected byte length of Data.
func (t *Texture2D) Size() int {
	return t.Width * t.Height * t.Channels * t.Depth
}
