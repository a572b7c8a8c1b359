package codec

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/platform"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
	"golang.org/x/image/draw"
)

type FileType uint8

const (
	/** @brief Resolved by sniffing the buffer content. */
	FileTypeUnknown FileType = iota
	FileTypePNG
	FileTypeJPEG
	FileTypeBMP
	FileTypeTIFF
	FileTypeWebP
	FileTypeDDS
)

func (ft FileType) String() string {
	switch ft {
	case FileTypePNG:
		return "png"
	case FileTypeJPEG:
		return "jpeg"
	case FileTypeBMP:
		return "bmp"
	case FileTypeTIFF:
		return "tiff"
	case FileTypeWebP:
		return "webp"
	case FileTypeDDS:
		return "dds"
	}
	return "unknown"
}

// FileTypeFromExtension maps a file name to the codec that handles it.
func FileTypeFromExtension(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FileTypePNG
	case ".jpg", ".jpeg":
		return FileTypeJPEG
	case ".bmp":
		return FileTypeBMP
	case ".tif", ".tiff":
		return FileTypeTIFF
	case ".webp":
		return FileTypeWebP
	case ".dds":
		return FileTypeDDS
	}
	return FileTypeUnknown
}

/**
 * @brief Codec converts between one file format and metadata.Image. Decoded
 * images are R8G8B8A8 unless the format stores something narrower.
 */
type Codec interface {
	FileType() FileType
	IsSupportedType(buf []byte) bool
	Decode(buf []byte) (*metadata.Image, error)
	Encode(w io.Writer, img *metadata.Image) error
}

/**
 * @brief Registry holds one codec per file type. Lookups are safe for
 * concurrent use, so loaders running on the job system can share it.
 */
type Registry struct {
	mu     sync.RWMutex
	codecs map[FileType]Codec
	// order is the sniffing order
	order  []FileType
	logger *log.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[FileType]Codec),
		logger: core.Logger("Codec"),
	}
}

// NewDefaultRegistry registers every codec built into the engine.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, c := range []Codec{PNGCodec{}, JPEGCodec{}, BMPCodec{}, TIFFCodec{}, WebPCodec{}, DDSCodec{}} {
		_ = r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ft := c.FileType()
	if ft == FileTypeUnknown {
		return fmt.Errorf("register codec: %w", core.ErrInvalidFileType)
	}
	if _, ok := r.codecs[ft]; ok {
		return fmt.Errorf("register %s codec: %w", ft, core.ErrDuplicateResource)
	}
	r.codecs[ft] = c
	r.order = append(r.order, ft)
	return nil
}

func (r *Registry) Codec(ft FileType) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[ft]
	return c, ok
}

// Sniff returns the first registered codec that recognises buf.
func (r *Registry) Sniff(buf []byte) FileType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ft := range r.order {
		if r.codecs[ft].IsSupportedType(buf) {
			return ft
		}
	}
	return FileTypeUnknown
}

func (r *Registry) resolve(buf []byte, ft FileType) (Codec, error) {
	if ft == FileTypeUnknown {
		if ft = r.Sniff(buf); ft == FileTypeUnknown {
			return nil, core.ErrInvalidFileType
		}
	}
	c, ok := r.Codec(ft)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ft, core.ErrInvalidCodec)
	}
	return c, nil
}

// Decode decodes buf as ft, or as whatever buf looks like when ft is
// FileTypeUnknown.
func (r *Registry) Decode(buf []byte, ft FileType) (*metadata.Image, error) {
	c, err := r.resolve(buf, ft)
	if err != nil {
		r.logger.Error("no codec for image", "type", ft, "err", err)
		return nil, fmt.Errorf("decode: %w", err)
	}
	img, err := c.Decode(buf)
	if err != nil {
		r.logger.Error("decode failed", "type", c.FileType(), "err", err)
		return nil, fmt.Errorf("decode %s: %w", c.FileType(), err)
	}
	return img, nil
}

func (r *Registry) DecodeStream(ds platform.DataStream, ft FileType) (*metadata.Image, error) {
	buf, err := platform.ReadAll(ds)
	if err != nil {
		return nil, fmt.Errorf("decode stream: %w", err)
	}
	return r.Decode(buf, ft)
}

func (r *Registry) Encode(w io.Writer, img *metadata.Image, ft FileType) error {
	if img == nil {
		return fmt.Errorf("encode: %w", core.ErrNilArgument)
	}
	c, ok := r.Codec(ft)
	if !ok {
		return fmt.Errorf("encode %s: %w", ft, core.ErrInvalidCodec)
	}
	if err := c.Encode(w, img); err != nil {
		r.logger.Error("encode failed", "type", ft, "err", err)
		return fmt.Errorf("encode %s: %w", ft, err)
	}
	return nil
}

// decodeStd runs a stdlib style decoder and converts the result.
func decodeStd(buf []byte, decode func(io.Reader) (image.Image, error)) (*metadata.Image, error) {
	src, err := decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidContent, err)
	}
	return FromImage(src), nil
}

// FromImage converts any image.Image to an R8G8B8A8 image.
func FromImage(src image.Image) *metadata.Image {
	b := src.Bounds()
	out := metadata.NewImage(uint32(b.Dx()), uint32(b.Dy()), rhi.PixelFormatR8G8B8A8)
	dst := &image.NRGBA{Pix: out.Data, Stride: int(out.Pitch), Rect: image.Rect(0, 0, b.Dx(), b.Dy())}
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return out
}

// ToImage wraps img as an image.Image without copying when the format
// allows it.
func ToImage(img *metadata.Image) (image.Image, error) {
	rect := image.Rect(0, 0, int(img.Width), int(img.Height))
	switch img.Format {
	case rhi.PixelFormatR8G8B8A8:
		return &image.NRGBA{Pix: img.Data, Stride: int(img.Pitch), Rect: rect}, nil
	case rhi.PixelFormatR8:
		return &image.Gray{Pix: img.Data, Stride: int(img.Pitch), Rect: rect}, nil
	case rhi.PixelFormatB8G8R8A8, rhi.PixelFormatR8G8B8:
		out := image.NewNRGBA(rect)
		bpp := img.Format.BytesPerPixel()
		for i, o := 0, 0; i+bpp <= len(img.Data); i, o = i+bpp, o+4 {
			px := img.Data[i : i+bpp]
			if img.Format == rhi.PixelFormatB8G8R8A8 {
				out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = px[2], px[1], px[0], px[3]
			} else {
				out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = px[0], px[1], px[2], 0xff
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("pixel format %d: %w", img.Format, core.ErrInvalidContent)
}
