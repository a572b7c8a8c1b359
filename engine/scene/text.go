package scene

import (
	"fmt"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

// unknownCodepoint is the glyph drawn for characters missing from the font.
const unknownCodepoint int32 = -1

type TextSettings struct {
	Text   string
	Colour math.Vec4
}

/**
 * @brief SGText draws a string as screen space quads in the overlay group.
 * Positions are in pixels, the origin is the top left corner of the first
 * line and y grows downwards.
 */
type SGText struct {
	SGRenderable
	TextSettings

	font *metadata.FontData
}

func NewText(name string, font *metadata.FontData, material *metadata.Material) *SGText {
	t := &SGText{font: font}
	t.initRenderable(t, name, renderer.GroupOverlay, nil)
	t.Colour = math.NewVec4(1, 1, 1, 1)
	t.SetMaterial(material)
	return t
}

func (t *SGText) Font() *metadata.FontData {
	return t.font
}

// SetText lays text out and uploads the quads, replacing the previous
// geometry.
func (t *SGText) SetText(r *renderer.Renderer, text string) error {
	if t.font == nil {
		return fmt.Errorf("text %q: %w", t.Name(), core.ErrNilArgument)
	}
	t.Text = text
	vertices, indices := LayoutText(t.font, text, t.Colour)
	if len(vertices) == 0 {
		t.SetGeometry(nil)
		t.LocalBounds = math.AABB{}
		return nil
	}
	positions := make([]math.Vec3, len(vertices))
	for i, v := range vertices {
		positions[i] = v.Position
	}
	g, err := UploadGeometry(r, vertices, indices, math.NewAABBFromPoints(positions))
	if err != nil {
		return fmt.Errorf("text %q: %w", t.Name(), err)
	}
	defer g.Release()
	t.SetGeometry(g)
	return nil
}

// FrustumCulling ignores the camera frustum: overlay content is always on
// screen.
func (t *SGText) FrustumCulling(frustum *math.Frustum, queue *renderer.RenderQueue) error {
	if !t.Visible || t.Geometry() == nil {
		return nil
	}
	return t.addTo(queue)
}

func (t *SGText) Clone() (Node, error) {
	c := NewText(t.Name(), t.font, nil)
	if err := c.cloneRenderable(&t.SGRenderable); err != nil {
		c.Release()
		return nil, err
	}
	if err := copySettings(&c.TextSettings, &t.TextSettings); err != nil {
		c.Release()
		return nil, err
	}
	if err := c.cloneChildren(&t.NodeBase); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

// lookupGlyph falls back to the unknown glyph, which may also be missing.
func lookupGlyph(font *metadata.FontData, codepoint int32) *metadata.FontGlyph {
	if g, ok := font.Glyphs[codepoint]; ok {
		return g
	}
	return font.Glyphs[unknownCodepoint]
}

/**
 * @brief Generates one quad (4 vertices, 6 indices) per drawable rune.
 * Newlines and tabs move the pen without emitting geometry, runes with
 * neither a glyph nor an unknown glyph are skipped.
 */
func LayoutText(font *metadata.FontData, text string, colour math.Vec4) ([]math.Vertex3D, []uint32) {
	var (
		vertices []math.Vertex3D
		indices  []uint32
		x, y     float32
	)
	if font == nil {
		return nil, nil
	}
	runes := []rune(text)
	atlasW, atlasH := float32(font.AtlasSizeX), float32(font.AtlasSizeY)
	for i, r := range runes {
		switch r {
		case '\n':
			x = 0
			y += float32(font.LineHeight)
			continue
		case '\t':
			x += font.TabXAdvance
			continue
		}
		g := lookupGlyph(font, int32(r))
		if g == nil {
			core.LogWarn("no glyph for codepoint %d in font %s", r, font.Face)
			continue
		}

		minX := x + float32(g.XOffset)
		minY := y + float32(g.YOffset)
		maxX := minX + float32(g.Width)
		maxY := minY + float32(g.Height)
		tMinX := float32(g.X) / atlasW
		tMaxX := float32(g.X+g.Width) / atlasW
		tMinY := float32(g.Y) / atlasH
		tMaxY := float32(g.Y+g.Height) / atlasH

		base := uint32(len(vertices))
		vertices = append(vertices,
			glyphVertex(minX, minY, tMinX, tMinY, colour),
			glyphVertex(maxX, minY, tMaxX, tMinY, colour),
			glyphVertex(maxX, maxY, tMaxX, tMaxY, colour),
			glyphVertex(minX, maxY, tMinX, tMaxY, colour),
		)
		indices = append(indices, base, base+2, base+1, base, base+3, base+2)

		advance := float32(g.XAdvance)
		if i+1 < len(runes) {
			advance += float32(font.Kerning(int32(r), int32(runes[i+1])))
		}
		x += advance
	}
	return vertices, indices
}

func glyphVertex(x, y, u, v float32, colour math.Vec4) math.Vertex3D {
	return math.Vertex3D{
		Position: math.NewVec3(x, y, 0),
		Normal:   math.NewVec3(0, 0, 1),
		Texcoord: math.NewVec2(u, v),
		Colour:   colour,
	}
}
