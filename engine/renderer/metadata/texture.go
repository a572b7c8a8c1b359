package metadata

import (
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

/**
 * @brief A texture: the decoded image plus the pixel buffer holding it on
 * the GPU.
 */
type Texture struct {
	core.RefCounted
	ID         uint32
	Name       string
	Width      uint32
	Height     uint32
	Format     rhi.PixelFormat
	HasAlpha   bool
	Generation uint32
	Buffer     *rhi.PixelBuffer
}

func NewTexture(name string, img *Image) *Texture {
	t := &Texture{
		ID:     core.GenerateID(),
		Name:   name,
		Width:  img.Width,
		Height: img.Height,
		Format: img.Format,
	}
	t.HasAlpha = img.Format == rhi.PixelFormatR8G8B8A8 || img.Format == rhi.PixelFormatB8G8R8A8
	t.Init(func() {
		if t.Buffer != nil {
			t.Buffer.Release()
			t.Buffer = nil
		}
	})
	return t
}
