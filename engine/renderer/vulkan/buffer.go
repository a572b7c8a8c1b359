package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

func bufferUsage(kind rhi.BufferKind) vk.BufferUsageFlags {
	usage := vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	switch kind {
	case rhi.BufferKindVertex:
		usage |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	case rhi.BufferKindIndex:
		usage |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case rhi.BufferKindConstant:
		usage |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	case rhi.BufferKindPixel:
		usage |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	return usage
}

func memoryProperties(usage rhi.Usage) vk.MemoryPropertyFlags {
	if usage&rhi.UsageDynamic != 0 {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

/**
 * @brief DeviceBuffer is the storage behind a hardware buffer: the create
 * info a device allocation would use, plus host memory holding the contents.
 * Static buffers are written through a staging copy, dynamic ones are mapped.
 */
type DeviceBuffer struct {
	mu         sync.Mutex
	CreateInfo vk.BufferCreateInfo
	Memory     vk.MemoryPropertyFlags
	data       []byte
	mapped     bool
	destroyed  bool
	// staging uploads recorded for device local memory
	Uploads   int
	onDestroy func()
}

func newDeviceBuffer(kind rhi.BufferKind, size int, usage rhi.Usage) *DeviceBuffer {
	return &DeviceBuffer{
		CreateInfo: vk.BufferCreateInfo{
			SType:       vk.StructureTypeBufferCreateInfo,
			Size:        vk.DeviceSize(size),
			Usage:       bufferUsage(kind),
			SharingMode: vk.SharingModeExclusive,
		},
		Memory: memoryProperties(usage),
		data:   make([]byte, size),
	}
}

func (b *DeviceBuffer) hostVisible() bool {
	return b.Memory&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0
}

func (b *DeviceBuffer) Lock(offset, size int, opts rhi.LockOptions) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, fmt.Errorf("map destroyed buffer: %w", core.ErrInvariantViolation)
	}
	if b.mapped {
		return nil, core.ErrBufferLocked
	}
	if offset < 0 || size < 0 || offset+size > len(b.data) {
		return nil, core.ErrOutOfBounds
	}
	b.mapped = true
	if !b.hostVisible() && opts != rhi.LockReadOnly {
		b.Uploads++
	}
	return b.data[offset : offset+size], nil
}

func (b *DeviceBuffer) Unlock() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mapped {
		return core.ErrBufferNotLocked
	}
	b.mapped = false
	return nil
}

func (b *DeviceBuffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.data = nil
	hook := b.onDestroy
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
}
