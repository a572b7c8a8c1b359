package metadata

type FontGlyph struct {
	Codepoint int32
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	PageID    uint8
}

type FontKerning struct {
	Codepoint0 int32
	Codepoint1 int32
	Amount     int16
}

type BitmapFontPage struct {
	ID   int8
	Name string
}

// FontData is a bitmap font laid out for glyph quad generation.
type FontData struct {
	Face        string
	Size        uint32
	LineHeight  int32
	Baseline    int32
	AtlasSizeX  int32
	AtlasSizeY  int32
	Glyphs      map[int32]*FontGlyph
	Kernings    map[[2]int32]int16
	Pages       []*BitmapFontPage
	TabXAdvance float32
}

// Kerning returns the advance adjustment between two code points.
func (f *FontData) Kerning(first, second int32) int16 {
	return f.Kernings[[2]int32{first, second}]
}
