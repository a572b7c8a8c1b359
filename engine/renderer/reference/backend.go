package reference

import (
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

// stateHandle is the device object behind a cached state.
type stateHandle struct {
	id   uint32
	kind string
}

// DrawRecord captures the pipeline as it was when a draw was issued.
type DrawRecord struct {
	Primitive      rhi.PrimitiveType
	PrimitiveCount int
	Indexed        bool
	Start          int
	FillMode       rhi.FillMode
	Blend          *rhi.BlendStateObject
	World          math.Mat4
	Projection     math.Mat4
	Lights         int
}

type Stats struct {
	Frames       uint64
	DrawCalls    uint64
	Primitives   uint64
	StateChanges uint64
	Clears       uint64
	LiveStates   int
	LiveBuffers  int
}

/**
 * @brief Backend is the software reference renderer. It rasterizes nothing;
 * it validates every call against the bound pipeline the way a driver would
 * and records what was submitted. Safe for concurrent use.
 */
type Backend struct {
	mu     sync.Mutex
	logger *log.Logger

	initialized bool
	inFrame     bool
	config      renderer.BackendConfig
	viewport    renderer.Viewport

	world, view, projection math.Mat4

	blend        *rhi.BlendStateObject
	depthStencil *rhi.DepthStencilStateObject
	rasterizer   *rhi.RasterizerStateObject
	samplers     map[int]*rhi.SamplerStateObject
	textures     map[int]*rhi.PixelBuffer
	declaration  *rhi.VertexDeclaration
	vertexBufs   map[int]*rhi.VertexBuffer
	indexBuf     *rhi.IndexBuffer
	lights       []metadata.LightData

	nextHandle uint32
	calls      []string
	draws      []DrawRecord
	stats      Stats
}

func New() *Backend {
	return &Backend{
		logger:     core.Logger("Reference"),
		world:      math.NewMat4Identity(),
		view:       math.NewMat4Identity(),
		projection: math.NewMat4Identity(),
		samplers:   make(map[int]*rhi.SamplerStateObject),
		textures:   make(map[int]*rhi.PixelBuffer),
		vertexBufs: make(map[int]*rhi.VertexBuffer),
	}
}

func (b *Backend) record(name string) {
	b.calls = append(b.calls, name)
}

func (b *Backend) Type() renderer.RendererType {
	return renderer.Reference
}

func (b *Backend) Initialize(config renderer.BackendConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return fmt.Errorf("reference backend already initialized: %w", core.ErrInvariantViolation)
	}
	b.initialized = true
	b.config = config
	b.viewport = renderer.Viewport{Width: config.Width, Height: config.Height, MaxDepth: 1}
	b.logger.Debug("reference backend initialized", "width", config.Width, "height", config.Height)
	return nil
}

func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = false
	b.record("Shutdown")
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config.Width, b.config.Height = width, height
	b.record("Resized")
	return nil
}

func (b *Backend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return fmt.Errorf("begin frame inside a frame: %w", core.ErrInvariantViolation)
	}
	b.inFrame = true
	b.record("BeginFrame")
	return nil
}

func (b *Backend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return fmt.Errorf("end frame outside a frame: %w", core.ErrInvariantViolation)
	}
	b.inFrame = false
	b.stats.Frames++
	b.record("EndFrame")
	return nil
}

func (b *Backend) Clear(flags renderer.ClearFlags, colour math.Vec4, depth float32, stencil uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Clears++
	b.record("Clear")
	return nil
}

func (b *Backend) SetViewport(viewport renderer.Viewport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport = viewport
	b.record("SetViewport")
	return nil
}

func (b *Backend) SetTransform(kind renderer.TransformType, m math.Mat4) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch kind {
	case renderer.TransformWorld:
		b.world = m
	case renderer.TransformView:
		b.view = m
	case renderer.TransformProjection:
		b.projection = m
	default:
		return fmt.Errorf("transform type %d: %w", kind, core.ErrUnsupportedState)
	}
	b.record("SetTransform")
	return nil
}

func (b *Backend) SetBlendState(state *rhi.BlendStateObject) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blend = state
	b.stats.StateChanges++
	b.record("SetBlendState")
	return nil
}

func (b *Backend) SetDepthStencilState(state *rhi.DepthStencilStateObject) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.depthStencil = state
	b.stats.StateChanges++
	b.record("SetDepthStencilState")
	return nil
}

func (b *Backend) SetRasterizerState(state *rhi.RasterizerStateObject) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rasterizer = state
	b.stats.StateChanges++
	b.record("SetRasterizerState")
	return nil
}

func (b *Backend) SetSamplerState(unit int, state *rhi.SamplerStateObject) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samplers[unit] = state
	b.stats.StateChanges++
	b.record("SetSamplerState")
	return nil
}

func (b *Backend) SetTexture(unit int, texture *rhi.PixelBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if texture == nil {
		delete(b.textures, unit)
	} else {
		b.textures[unit] = texture
	}
	b.record("SetTexture")
	return nil
}

func (b *Backend) SetVertexDeclaration(decl *rhi.VertexDeclaration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.declaration = decl
	b.record("SetVertexDeclaration")
	return nil
}

func (b *Backend) SetVertexBuffer(stream int, vb *rhi.VertexBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if vb == nil {
		delete(b.vertexBufs, stream)
	} else {
		b.vertexBufs[stream] = vb
	}
	b.record("SetVertexBuffer")
	return nil
}

func (b *Backend) SetIndexBuffer(ib *rhi.IndexBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexBuf = ib
	b.record("SetIndexBuffer")
	return nil
}

func (b *Backend) SetLights(lights []metadata.LightData) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lights = slices.Clone(lights)
	b.record("SetLights")
	return nil
}

func (b *Backend) checkPipeline() error {
	if !b.inFrame {
		return fmt.Errorf("draw outside a frame: %w", core.ErrInvariantViolation)
	}
	if b.declaration == nil {
		return fmt.Errorf("draw without vertex declaration: %w", core.ErrInvariantViolation)
	}
	for _, stream := range b.declaration.Streams() {
		if b.vertexBufs[stream] == nil {
			return fmt.Errorf("draw with stream %d unbound: %w", stream, core.ErrInvariantViolation)
		}
	}
	return nil
}

func (b *Backend) recordDraw(p rhi.PrimitiveType, start, count int, indexed bool) {
	fill := rhi.FillModeSolid
	if b.rasterizer != nil {
		fill = b.rasterizer.Desc().FillMode
	}
	b.draws = append(b.draws, DrawRecord{
		Primitive:      p,
		PrimitiveCount: count,
		Indexed:        indexed,
		Start:          start,
		FillMode:       fill,
		Blend:          b.blend,
		World:          b.world,
		Projection:     b.projection,
		Lights:         len(b.lights),
	})
	b.stats.DrawCalls++
	b.stats.Primitives += uint64(count)
}

func (b *Backend) DrawPrimitives(p rhi.PrimitiveType, startVertex, primitiveCount int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkPipeline(); err != nil {
		return err
	}
	need := startVertex + rhi.ElementCount(p, primitiveCount)
	for stream, vb := range b.vertexBufs {
		if need > vb.VertexCount() {
			return fmt.Errorf("stream %d: %d vertices needed, %d bound: %w", stream, need, vb.VertexCount(), core.ErrOutOfBounds)
		}
	}
	b.recordDraw(p, startVertex, primitiveCount, false)
	b.record("DrawPrimitives")
	return nil
}

func (b *Backend) DrawIndexedPrimitives(p rhi.PrimitiveType, baseVertex, startIndex, primitiveCount int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkPipeline(); err != nil {
		return err
	}
	if b.indexBuf == nil {
		return fmt.Errorf("indexed draw without index buffer: %w", core.ErrInvariantViolation)
	}
	need := startIndex + rhi.ElementCount(p, primitiveCount)
	if need > b.indexBuf.IndexCount() {
		return fmt.Errorf("%d indices needed, %d bound: %w", need, b.indexBuf.IndexCount(), core.ErrOutOfBounds)
	}
	b.recordDraw(p, startIndex, primitiveCount, true)
	b.record("DrawIndexedPrimitives")
	return nil
}

func (b *Backend) newState(kind string, d rhi.Descriptor) (any, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextHandle++
	b.stats.LiveStates++
	return &stateHandle{id: b.nextHandle, kind: kind}, nil
}

func (b *Backend) CreateBlendState(desc *rhi.BlendState) (any, error) {
	return b.newState("blend", desc)
}

func (b *Backend) CreateDepthStencilState(desc *rhi.DepthStencilState) (any, error) {
	return b.newState("depth_stencil", desc)
}

func (b *Backend) CreateRasterizerState(desc *rhi.RasterizerState) (any, error) {
	return b.newState("rasterizer", desc)
}

func (b *Backend) CreateSamplerState(desc *rhi.SamplerState) (any, error) {
	return b.newState("sampler", desc)
}

func (b *Backend) DestroyState(handle any) {
	if _, ok := handle.(*stateHandle); !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.LiveStates--
}

func (b *Backend) CreateBufferStorage(kind rhi.BufferKind, size int, usage rhi.Usage) (rhi.BufferStorage, error) {
	if size <= 0 {
		return nil, core.ErrOutOfBounds
	}
	b.mu.Lock()
	b.stats.LiveBuffers++
	b.mu.Unlock()
	return &trackedStorage{memoryStorage: &memoryStorage{kind: kind, data: make([]byte, size)}, owner: b}, nil
}

type trackedStorage struct {
	*memoryStorage
	owner *Backend
	once  sync.Once
}

func (s *trackedStorage) Destroy() {
	s.once.Do(func() {
		s.memoryStorage.Destroy()
		s.owner.mu.Lock()
		s.owner.stats.LiveBuffers--
		s.owner.mu.Unlock()
	})
}

// Calls returns the names of the backend calls executed so far.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

func (b *Backend) Draws() []DrawRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.draws)
}

func (b *Backend) Lights() []metadata.LightData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.lights)
}

func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Reset forgets recorded calls and draws, keeping bound state.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
	b.draws = nil
}
