package loaders

import (
	"fmt"

	"github.com/fzipp/bmfont"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

// tabWidth is the advance of a tab, in spaces.
const tabWidth = 4

// BitmapFontLoader imports AngelCode BMFont descriptors and their page
// sheets.
type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) ResourceType() metadata.ResourceType { return metadata.ResourceTypeBitmapFont }
func (fl *BitmapFontLoader) Extensions() []string                { return []string{".fnt"} }

// Load returns a *metadata.FontData.
func (fl *BitmapFontLoader) Load(path string, params any) (any, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, fmt.Errorf("bitmap font %s: %w: %w", path, core.ErrInvalidContent, err)
	}
	return importFont(font)
}

func importFont(font *bmfont.BitmapFont) (*metadata.FontData, error) {
	d := font.Descriptor
	out := &metadata.FontData{
		Face:       d.Info.Face,
		Size:       uint32(d.Info.Size),
		LineHeight: int32(d.Common.LineHeight),
		Baseline:   int32(d.Common.Base),
		AtlasSizeX: int32(d.Common.ScaleW),
		AtlasSizeY: int32(d.Common.ScaleH),
		Glyphs:     make(map[int32]*metadata.FontGlyph, len(d.Chars)),
		Kernings:   make(map[[2]int32]int16, len(d.Kerning)),
	}
	if out.AtlasSizeX <= 0 || out.AtlasSizeY <= 0 {
		return nil, fmt.Errorf("font %s has an empty atlas: %w", out.Face, core.ErrInvalidContent)
	}

	for _, p := range d.Pages {
		out.Pages = append(out.Pages, &metadata.BitmapFontPage{ID: int8(p.ID), Name: p.File})
	}
	for _, g := range d.Chars {
		out.Glyphs[int32(g.ID)] = &metadata.FontGlyph{
			Codepoint: int32(g.ID),
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		}
	}
	for pair, k := range d.Kerning {
		out.Kernings[[2]int32{int32(pair.First), int32(pair.Second)}] = int16(k.Amount)
	}

	if space, ok := out.Glyphs[' ']; ok {
		out.TabXAdvance = float32(space.XAdvance) * tabWidth
	} else {
		out.TabXAdvance = float32(out.Size) * tabWidth
	}
	return out, nil
}
