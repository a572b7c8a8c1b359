package rhi

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/tiny3d/engine/core"
)

// BufferFactory allocates backend storage for hardware buffers.
type BufferFactory interface {
	CreateBufferStorage(kind BufferKind, size int, usage Usage) (BufferStorage, error)
}

/**
 * @brief HardwareBufferManager creates hardware buffers through the backend
 * and keeps track of the live ones. A buffer leaves the registry when its
 * last reference is released.
 */
type HardwareBufferManager struct {
	mu      sync.Mutex
	factory BufferFactory
	live    map[*HardwareBuffer]struct{}
}

func NewHardwareBufferManager(factory BufferFactory) *HardwareBufferManager {
	return &HardwareBufferManager{
		factory: factory,
		live:    make(map[*HardwareBuffer]struct{}),
	}
}

func (m *HardwareBufferManager) create(kind BufferKind, size int, usage Usage, useShadow bool) (*HardwareBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer size %d: %w", size, core.ErrOutOfBounds)
	}
	storage, err := m.factory.CreateBufferStorage(kind, size, usage)
	if err != nil {
		return nil, err
	}
	hb := newHardwareBuffer(kind, size, usage, useShadow, storage)
	hb.SetOnDestroy(func() {
		hb.destroy()
		m.mu.Lock()
		delete(m.live, hb)
		m.mu.Unlock()
	})

	m.mu.Lock()
	m.live[hb] = struct{}{}
	m.mu.Unlock()
	return hb, nil
}

func (m *HardwareBufferManager) CreateVertexBuffer(vertexSize, vertexCount int, usage Usage, useShadow bool) (*VertexBuffer, error) {
	hb, err := m.create(BufferKindVertex, vertexSize*vertexCount, usage, useShadow)
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	return &VertexBuffer{HardwareBuffer: hb, vertexSize: vertexSize, vertexCount: vertexCount}, nil
}

func (m *HardwareBufferManager) CreateIndexBuffer(indexType IndexType, indexCount int, usage Usage, useShadow bool) (*IndexBuffer, error) {
	hb, err := m.create(BufferKindIndex, indexType.Size()*indexCount, usage, useShadow)
	if err != nil {
		return nil, fmt.Errorf("create index buffer: %w", err)
	}
	return &IndexBuffer{HardwareBuffer: hb, indexType: indexType, indexCount: indexCount}, nil
}

func (m *HardwareBufferManager) CreatePixelBuffer(width, height, depth int, format PixelFormat, usage Usage, useShadow bool) (*PixelBuffer, error) {
	if depth <= 0 {
		depth = 1
	}
	hb, err := m.create(BufferKindPixel, width*height*depth*format.BytesPerPixel(), usage, useShadow)
	if err != nil {
		return nil, fmt.Errorf("create pixel buffer: %w", err)
	}
	return &PixelBuffer{HardwareBuffer: hb, width: width, height: height, depth: depth, format: format}, nil
}

func (m *HardwareBufferManager) CreateConstantBuffer(size int, usage Usage, useShadow bool) (*ConstantBuffer, error) {
	hb, err := m.create(BufferKindConstant, size, usage, useShadow)
	if err != nil {
		return nil, fmt.Errorf("create constant buffer: %w", err)
	}
	return &ConstantBuffer{HardwareBuffer: hb}, nil
}

func (m *HardwareBufferManager) CreateVertexDeclaration() *VertexDeclaration {
	return NewVertexDeclaration()
}

// LiveBuffers returns how many buffers are still referenced.
func (m *HardwareBufferManager) LiveBuffers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
