package rhi

import (
	"fmt"

	"github.com/spaghettifunk/tiny3d/engine/core"
)

type Usage uint32

const (
	UsageStatic Usage = 1 << iota
	UsageDynamic
	UsageWriteOnly

	UsageStaticWriteOnly  = UsageStatic | UsageWriteOnly
	UsageDynamicWriteOnly = UsageDynamic | UsageWriteOnly
)

func (u Usage) WriteOnly() bool {
	return u&UsageWriteOnly != 0
}

type LockOptions uint8

const (
	LockNormal LockOptions = iota
	// the previous contents may be thrown away
	LockDiscard
	// the caller promises not to touch data the GPU may still read
	LockNoOverwrite
	LockReadOnly
	LockWriteOnly
)

func (o LockOptions) String() string {
	switch o {
	case LockNormal:
		return "normal"
	case LockDiscard:
		return "discard"
	case LockNoOverwrite:
		return "no_overwrite"
	case LockReadOnly:
		return "read_only"
	case LockWriteOnly:
		return "write_only"
	}
	return fmt.Sprintf("LockOptions(%d)", o)
}

type BufferKind uint8

const (
	BufferKindVertex BufferKind = iota
	BufferKindIndex
	BufferKindPixel
	BufferKindConstant
)

// BufferStorage is the backend memory behind a HardwareBuffer. Lock maps a
// byte range, Unlock commits it. Honouring LockNoOverwrite against in-flight
// GPU reads is the backend's job.
type BufferStorage interface {
	Lock(offset, size int, opts LockOptions) ([]byte, error)
	Unlock() error
	Destroy()
}

/**
 * @brief HardwareBuffer is GPU memory with lock/unlock access. With a shadow
 * buffer the CPU works on a system memory mirror and the modified range is
 * pushed to the storage on unlock, which also makes reads of write-only
 * buffers possible.
 *
 * Mutation belongs to whoever executes RHI commands. The type does no
 * locking of its own.
 */
type HardwareBuffer struct {
	core.RefCounted
	kind    BufferKind
	size    int
	usage   Usage
	storage BufferStorage
	shadow  []byte

	locked      bool
	lockOffset  int
	lockSize    int
	lockOpts    LockOptions
	shadowDirty bool
}

func newHardwareBuffer(kind BufferKind, size int, usage Usage, useShadow bool, storage BufferStorage) *HardwareBuffer {
	hb := &HardwareBuffer{
		kind:    kind,
		size:    size,
		usage:   usage,
		storage: storage,
	}
	if useShadow {
		hb.shadow = make([]byte, size)
	}
	hb.Init(hb.destroy)
	return hb
}

func (hb *HardwareBuffer) destroy() {
	if hb.storage != nil {
		hb.storage.Destroy()
	}
	hb.shadow = nil
}

func (hb *HardwareBuffer) Kind() BufferKind { return hb.kind }
func (hb *HardwareBuffer) Size() int        { return hb.size }
func (hb *HardwareBuffer) Usage() Usage     { return hb.usage }
func (hb *HardwareBuffer) IsLocked() bool   { return hb.locked }
func (hb *HardwareBuffer) HasShadow() bool  { return hb.shadow != nil }

func (hb *HardwareBuffer) checkRange(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > hb.size {
		return fmt.Errorf("range [%d, %d) of %d byte buffer: %w", offset, offset+size, hb.size, core.ErrOutOfBounds)
	}
	return nil
}

// Lock maps [offset, offset+size). Every Lock must be paired with Unlock.
func (hb *HardwareBuffer) Lock(offset, size int, opts LockOptions) ([]byte, error) {
	if hb.locked {
		return nil, core.ErrBufferLocked
	}
	if err := hb.checkRange(offset, size); err != nil {
		return nil, err
	}
	if opts == LockReadOnly && hb.usage.WriteOnly() && hb.shadow == nil {
		return nil, core.ErrWriteOnlyBuffer
	}

	var data []byte
	if hb.shadow != nil {
		data = hb.shadow[offset : offset+size]
		hb.shadowDirty = opts != LockReadOnly
	} else {
		var err error
		data, err = hb.storage.Lock(offset, size, opts)
		if err != nil {
			return nil, err
		}
	}

	hb.locked = true
	hb.lockOffset = offset
	hb.lockSize = size
	hb.lockOpts = opts
	return data, nil
}

func (hb *HardwareBuffer) Unlock() error {
	if !hb.locked {
		return core.ErrBufferNotLocked
	}
	hb.locked = false

	if hb.shadow == nil {
		return hb.storage.Unlock()
	}
	if !hb.shadowDirty {
		return nil
	}
	hb.shadowDirty = false
	return hb.syncShadow(hb.lockOffset, hb.lockSize)
}

// syncShadow pushes a shadow range to the backend storage.
func (hb *HardwareBuffer) syncShadow(offset, size int) error {
	opts := LockNormal
	if offset == 0 && size == hb.size {
		opts = LockDiscard
	}
	dst, err := hb.storage.Lock(offset, size, opts)
	if err != nil {
		return fmt.Errorf("sync shadow: %w", err)
	}
	copy(dst, hb.shadow[offset:offset+size])
	return hb.storage.Unlock()
}

// ReadData copies len(dst) bytes starting at offset into dst.
func (hb *HardwareBuffer) ReadData(offset int, dst []byte) error {
	src, err := hb.Lock(offset, len(dst), LockReadOnly)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrReadFailed, err)
	}
	copy(dst, src)
	if err := hb.Unlock(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrReadFailed, err)
	}
	return nil
}

// WriteData copies src into the buffer at offset. discard allows the
// backend to orphan the previous contents.
func (hb *HardwareBuffer) WriteData(offset int, src []byte, discard bool) error {
	opts := LockNormal
	if discard {
		opts = LockDiscard
	}
	dst, err := hb.Lock(offset, len(src), opts)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	copy(dst, src)
	if err := hb.Unlock(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	return nil
}

// CopyData copies length bytes from src at srcOffset into this buffer at
// dstOffset.
func (hb *HardwareBuffer) CopyData(src *HardwareBuffer, srcOffset, dstOffset, length int, discard bool) error {
	if src == nil {
		return fmt.Errorf("copy data: %w", core.ErrNilArgument)
	}
	tmp := make([]byte, length)
	if err := src.ReadData(srcOffset, tmp); err != nil {
		return err
	}
	return hb.WriteData(dstOffset, tmp, discard)
}

type IndexType uint8

const (
	Index16 IndexType = iota
	Index32
)

func (t IndexType) Size() int {
	if t == Index16 {
		return 2
	}
	return 4
}

type PixelFormat uint8

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatR8
	PixelFormatR8G8B8
	PixelFormatR8G8B8A8
	PixelFormatB8G8R8A8
	PixelFormatR5G6B5
)

func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatR8:
		return 1
	case PixelFormatR5G6B5:
		return 2
	case PixelFormatR8G8B8:
		return 3
	case PixelFormatR8G8B8A8, PixelFormatB8G8R8A8:
		return 4
	}
	return 0
}

type VertexBuffer struct {
	*HardwareBuffer
	vertexSize  int
	vertexCount int
}

func (vb *VertexBuffer) VertexSize() int  { return vb.vertexSize }
func (vb *VertexBuffer) VertexCount() int { return vb.vertexCount }

type IndexBuffer struct {
	*HardwareBuffer
	indexType  IndexType
	indexCount int
}

func (ib *IndexBuffer) IndexType() IndexType { return ib.indexType }
func (ib *IndexBuffer) IndexCount() int      { return ib.indexCount }

type PixelBuffer struct {
	*HardwareBuffer
	width, height, depth int
	format               PixelFormat
}

func (pb *PixelBuffer) Width() int          { return pb.width }
func (pb *PixelBuffer) Height() int         { return pb.height }
func (pb *PixelBuffer) Depth() int          { return pb.depth }
func (pb *PixelBuffer) Format() PixelFormat { return pb.format }

// Pitch is the byte length of one row.
func (pb *PixelBuffer) Pitch() int {
	return pb.width * pb.format.BytesPerPixel()
}

type ConstantBuffer struct {
	*HardwareBuffer
}
