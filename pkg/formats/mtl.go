package formats

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/Faultbox/rayscene/pkg/scene"
)

// mtlTextures maps MTL texture keywords to the parameter they set and
// whether the texture holds linear data.
var mtlTextures = map[string]struct {
	param  string
	linear bool
}{
	"map_d":    {"map_d", true},
	"map_Ns":   {"map_Ns", true},
	"map_Ka":   {"map_Ka", false},
	"map_Kd":   {"map_Kd", false},
	"map_Ks":   {"map_Ks", false},
	"map_Refl": {"map_Refl", false},
	"map_Bump": {"map_Bump", true},
	"bumpMap":  {"map_Bump", true},
	"colorMap": {"map_Kd", false},
}

// ParseMTL reads a material library. Textures are resolved relative to dir.
// Unknown keywords are stored as float parameters.
func ParseMTL(r io.Reader, name, dir string, opts ...Option) (map[string]*scene.Material, error) {
	o := buildOptions(opts)
	mats := make(map[string]*scene.Material)
	skip := func(line int, kind SkipKind, detail string) {
		o.diag.Skip(Skip{File: name, Line: line, Kind: kind, Detail: detail})
	}

	var cur *scene.Material
	lr := newLineReader(r)
	for {
		line, lineNo, ok := lr.next()
		if !ok {
			break
		}
		if line == "" || line[0] == '#' {
			continue
		}
		keyword, rest := splitKeyword(line)

		if keyword == "newmtl" {
			cur = &scene.Material{Name: rest, Type: scene.DefaultMaterialType}
			mats[rest] = cur
			continue
		}
		if cur == nil {
			skip(lineNo, SkipOrphanDefinition, line)
			continue
		}

		switch keyword {
		case "illum", "illum_4":
			// VMD writes "illum_4"; both are ignored.
		case "d", "Ns", "Ni":
			f, err := parseFloat32(firstField(rest))
			if err != nil {
				skip(lineNo, SkipMalformedLine, fmt.Sprintf("%s: %v", keyword, err))
				continue
			}
			cur.SetFloat(keyword, f)
		case "Ka", "Kd", "Ks", "Tf", "color":
			v, err := parseVec3(rest)
			if err != nil {
				skip(lineNo, SkipMalformedLine, fmt.Sprintf("%s: %v", keyword, err))
				continue
			}
			cur.SetVec3(keyword, v)
		case "type":
			cur.Type = rest
			cur.SetString("type", rest)
		default:
			if tex, ok := mtlTextures[keyword]; ok {
				path := rest
				if !filepath.IsAbs(path) {
					path = filepath.Join(dir, rest)
				}
				t, err := o.textures.Load(path, tex.linear)
				if err != nil {
					skip(lineNo, SkipTexture, err.Error())
					continue
				}
				cur.SetTexture(tex.param, t)
				continue
			}
			f, err := parseFloat32(firstField(rest))
			if err != nil {
				skip(lineNo, SkipMalformedLine, fmt.Sprintf("%s: %v", keyword, err))
				continue
			}
			cur.SetFloat(keyword, f)
		}
	}
	if err := lr.err(); err != nil {
		return mats, parseErr(name, lr.line, err)
	}
	return mats, nil
}

func firstField(s string) string {
	k, _ := splitKeyword(s)
	return k
}
