package metadata

import "github.com/spaghettifunk/tiny3d/engine/rhi"

/**
 * @brief Decoded image data. Rows are tightly packed top to bottom.
 */
type Image struct {
	Width  uint32
	Height uint32
	/** @brief Bytes per row. */
	Pitch uint32
	/** @brief Bits per pixel. */
	BPP    uint8
	Format rhi.PixelFormat
	Data   []byte
}

// NewImage allocates a zeroed image of the given format.
func NewImage(width, height uint32, format rhi.PixelFormat) *Image {
	bpp := uint32(format.BytesPerPixel())
	return &Image{
		Width:  width,
		Height: height,
		Pitch:  width * bpp,
		BPP:    uint8(bpp * 8),
		Format: format,
		Data:   make([]byte, width*height*bpp),
	}
}

func (img *Image) DataSize() int {
	return len(img.Data)
}

/** @brief Parameters used when loading an image. */
type ImageResourceParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
}

// FlipY mirrors the rows in place.
func (img *Image) FlipY() {
	pitch := int(img.Pitch)
	tmp := make([]byte, pitch)
	for top, bottom := 0, int(img.Height)-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := img.Data[top*pitch : (top+1)*pitch]
		b := img.Data[bottom*pitch : (bottom+1)*pitch]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
