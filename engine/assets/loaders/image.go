package loaders

import (
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/tiny3d/engine/assets/codec"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/platform"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

// ImageLoader decodes image files through a codec registry.
type ImageLoader struct {
	Codecs *codec.Registry
}

func NewImageLoader(codecs *codec.Registry) *ImageLoader {
	return &ImageLoader{Codecs: codecs}
}

func (il *ImageLoader) ResourceType() metadata.ResourceType { return metadata.ResourceTypeImage }

func (il *ImageLoader) Extensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp", ".dds"}
}

/**
 * @brief Loads path as a *metadata.Image. params may be a
 * *metadata.ImageResourceParams. The file type comes from the extension,
 * unknown extensions are sniffed.
 */
func (il *ImageLoader) Load(path string, params any) (any, error) {
	ds, err := platform.OpenFileDataStream(path, platform.FileModeRead)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrResourceNotFound, err)
	}
	defer ds.Close()

	img, err := il.Codecs.DecodeStream(ds, codec.FileTypeFromExtension(filepath.Base(path)))
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", path, err)
	}
	if p, ok := params.(*metadata.ImageResourceParams); ok && p != nil && p.FlipY {
		img.FlipY()
	}
	return img, nil
}
