package codec

import (
	"fmt"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/h2non/filetype"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

type PNGCodec struct{}

func (PNGCodec) FileType() FileType              { return FileTypePNG }
func (PNGCodec) IsSupportedType(buf []byte) bool { return filetype.Is(buf, "png") }
func (PNGCodec) Decode(buf []byte) (*metadata.Image, error) {
	return decodeStd(buf, png.Decode)
}

func (PNGCodec) Encode(w io.Writer, img *metadata.Image) error {
	src, err := ToImage(img)
	if err != nil {
		return err
	}
	return png.Encode(w, src)
}

type JPEGCodec struct {
	// Quality in [1, 100]; zero selects the library default.
	Quality int
}

func (JPEGCodec) FileType() FileType              { return FileTypeJPEG }
func (JPEGCodec) IsSupportedType(buf []byte) bool { return filetype.Is(buf, "jpg") }
func (JPEGCodec) Decode(buf []byte) (*metadata.Image, error) {
	return decodeStd(buf, jpeg.Decode)
}

func (c JPEGCodec) Encode(w io.Writer, img *metadata.Image) error {
	src, err := ToImage(img)
	if err != nil {
		return err
	}
	var opts *jpeg.Options
	if c.Quality > 0 {
		opts = &jpeg.Options{Quality: c.Quality}
	}
	return jpeg.Encode(w, src, opts)
}

type BMPCodec struct{}

func (BMPCodec) FileType() FileType              { return FileTypeBMP }
func (BMPCodec) IsSupportedType(buf []byte) bool { return filetype.Is(buf, "bmp") }
func (BMPCodec) Decode(buf []byte) (*metadata.Image, error) {
	return decodeStd(buf, bmp.Decode)
}

func (BMPCodec) Encode(w io.Writer, img *metadata.Image) error {
	src, err := ToImage(img)
	if err != nil {
		return err
	}
	return bmp.Encode(w, src)
}

type TIFFCodec struct{}

func (TIFFCodec) FileType() FileType              { return FileTypeTIFF }
func (TIFFCodec) IsSupportedType(buf []byte) bool { return filetype.Is(buf, "tif") }
func (TIFFCodec) Decode(buf []byte) (*metadata.Image, error) {
	return decodeStd(buf, tiff.Decode)
}

func (TIFFCodec) Encode(w io.Writer, img *metadata.Image) error {
	src, err := ToImage(img)
	if err != nil {
		return err
	}
	return tiff.Encode(w, src, &tiff.Options{Compression: tiff.Deflate})
}

// WebPCodec only decodes.
type WebPCodec struct{}

func (WebPCodec) FileType() FileType              { return FileTypeWebP }
func (WebPCodec) IsSupportedType(buf []byte) bool { return filetype.Is(buf, "webp") }
func (WebPCodec) Decode(buf []byte) (*metadata.Image, error) {
	return decodeStd(buf, webp.Decode)
}

func (WebPCodec) Encode(w io.Writer, img *metadata.Image) error {
	return fmt.Errorf("webp encoding: %w", core.ErrInvalidCodec)
}
