package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mauserzjeh/dxt"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

var ddsMagic = []byte("DDS ")

const (
	ddsHeaderSize = 124
	// magic plus header
	ddsDataOffset = 128

	ddsdCaps        = 0x1
	ddsdHeight      = 0x2
	ddsdWidth       = 0x4
	ddsdPitch       = 0x8
	ddsdPixelFormat = 0x1000

	ddpfAlphaPixels = 0x1
	ddpfFourCC      = 0x4
	ddpfRGB         = 0x40

	ddsCapsTexture = 0x1000
)

type ddsPixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      [4]byte
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

type ddsHeader struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       ddsPixelFormat
	Caps              [4]uint32
	Reserved2         uint32
}

/**
 * @brief DDSCodec reads DXT1 and DXT5 compressed surfaces and uncompressed
 * 32 bit RGBA or BGRA surfaces. Only the top mip level is decoded. Encoding
 * writes an uncompressed 32 bit RGBA surface.
 */
type DDSCodec struct{}

func (DDSCodec) FileType() FileType { return FileTypeDDS }

func (DDSCodec) IsSupportedType(buf []byte) bool {
	return len(buf) >= ddsDataOffset && bytes.Equal(buf[:4], ddsMagic)
}

func (c DDSCodec) Decode(buf []byte) (*metadata.Image, error) {
	if !c.IsSupportedType(buf) {
		return nil, fmt.Errorf("dds magic: %w", core.ErrInvalidContent)
	}
	var h ddsHeader
	if err := binary.Read(bytes.NewReader(buf[4:ddsDataOffset]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("dds header: %w: %w", core.ErrInvalidContent, err)
	}
	if h.Size != ddsHeaderSize || h.Width == 0 || h.Height == 0 {
		return nil, fmt.Errorf("dds header %dx%d: %w", h.Width, h.Height, core.ErrInvalidContent)
	}
	data := buf[ddsDataOffset:]
	pf := h.PixelFormat

	switch {
	case pf.Flags&ddpfFourCC != 0:
		var (
			pix []byte
			err error
		)
		blocks := int((h.Width+3)/4) * int((h.Height+3)/4)
		switch string(pf.FourCC[:]) {
		case "DXT1":
			if len(data) < blocks*8 {
				return nil, fmt.Errorf("dxt1 payload of %d bytes: %w", len(data), core.ErrInvalidContent)
			}
			pix, err = dxt.DecodeDXT1(data, uint(h.Width), uint(h.Height))
		case "DXT5":
			if len(data) < blocks*16 {
				return nil, fmt.Errorf("dxt5 payload of %d bytes: %w", len(data), core.ErrInvalidContent)
			}
			pix, err = dxt.DecodeDXT5(data, uint(h.Width), uint(h.Height))
		default:
			return nil, fmt.Errorf("dds fourcc %q: %w", pf.FourCC[:], core.ErrInvalidContent)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidContent, err)
		}
		img := metadata.NewImage(h.Width, h.Height, rhi.PixelFormatR8G8B8A8)
		copy(img.Data, pix)
		return img, nil

	case pf.Flags&ddpfRGB != 0 && pf.RGBBitCount == 32:
		format := rhi.PixelFormatR8G8B8A8
		if pf.RBitMask == 0x00ff0000 {
			format = rhi.PixelFormatB8G8R8A8
		}
		img := metadata.NewImage(h.Width, h.Height, format)
		if len(data) < len(img.Data) {
			return nil, fmt.Errorf("dds payload of %d bytes: %w", len(data), core.ErrInvalidContent)
		}
		copy(img.Data, data)
		return img, nil
	}
	return nil, fmt.Errorf("dds pixel format flags %#x: %w", pf.Flags, core.ErrInvalidContent)
}

func (DDSCodec) Encode(w io.Writer, img *metadata.Image) error {
	if img.Format != rhi.PixelFormatR8G8B8A8 && img.Format != rhi.PixelFormatB8G8R8A8 {
		return fmt.Errorf("dds encode of pixel format %d: %w", img.Format, core.ErrInvalidContent)
	}
	h := ddsHeader{
		Size:              ddsHeaderSize,
		Flags:             ddsdCaps | ddsdHeight | ddsdWidth | ddsdPitch | ddsdPixelFormat,
		Height:            img.Height,
		Width:             img.Width,
		PitchOrLinearSize: img.Pitch,
		PixelFormat: ddsPixelFormat{
			Size:        32,
			Flags:       ddpfRGB | ddpfAlphaPixels,
			RGBBitCount: 32,
			RBitMask:    0x000000ff,
			GBitMask:    0x0000ff00,
			BBitMask:    0x00ff0000,
			ABitMask:    0xff000000,
		},
		Caps: [4]uint32{ddsCapsTexture},
	}
	if img.Format == rhi.PixelFormatB8G8R8A8 {
		h.PixelFormat.RBitMask, h.PixelFormat.BBitMask = 0x00ff0000, 0x000000ff
	}
	if _, err := w.Write(ddsMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	_, err := w.Write(img.Data)
	return err
}
