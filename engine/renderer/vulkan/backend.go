package vulkan

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

type Stats struct {
	Frames      uint64
	DrawCalls   uint64
	Pipelines   int
	LiveStates  int
	LiveBuffers int
}

/**
 * @brief VulkanRenderer translates engine state objects into Vulkan create
 * info structures and records frames into a host side command buffer. It
 * never touches a device, which makes it usable headless and in tests; a
 * device submission layer consumes the recorded frames.
 */
type VulkanRenderer struct {
	mu     sync.Mutex
	logger *log.Logger

	config      renderer.BackendConfig
	initialized bool
	viewport    vk.Viewport
	scissor     vk.Rect2D
	clearValues []vk.ClearValue

	cmd       *VulkanCommandBuffer
	lastFrame []RecordedCommand

	world, view, projection math.Mat4
	lights                  []metadata.LightData

	blend        *rhi.BlendStateObject
	depthStencil *rhi.DepthStencilStateObject
	rasterizer   *rhi.RasterizerStateObject
	declaration  *rhi.VertexDeclaration
	vertexBufs   map[int]*rhi.VertexBuffer
	indexBuf     *rhi.IndexBuffer

	pipelines    map[pipelineKey]*VulkanPipeline
	bound        *VulkanPipeline
	nextPipeline uint32

	stats Stats
}

func New() *VulkanRenderer {
	return &VulkanRenderer{
		logger:     core.Logger("Vulkan"),
		cmd:        NewVulkanCommandBuffer(),
		world:      math.NewMat4Identity(),
		view:       math.NewMat4Identity(),
		projection: math.NewMat4Identity(),
		vertexBufs: make(map[int]*rhi.VertexBuffer),
		pipelines:  make(map[pipelineKey]*VulkanPipeline),
	}
}

func colourClear(rgba []float32) vk.ClearValue {
	var cv vk.ClearValue
	cv.SetColor(rgba)
	return cv
}

func depthClear(depth float32, stencil uint32) vk.ClearValue {
	var cv vk.ClearValue
	cv.SetDepthStencil(depth, stencil)
	return cv
}

func (v *VulkanRenderer) Type() renderer.RendererType {
	return renderer.Vulkan
}

func (v *VulkanRenderer) Initialize(config renderer.BackendConfig) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.initialized {
		return fmt.Errorf("vulkan renderer already initialized: %w", core.ErrInvariantViolation)
	}
	v.config = config
	v.setViewport(renderer.Viewport{Width: config.Width, Height: config.Height, MaxDepth: 1})
	v.clearValues = []vk.ClearValue{colourClear([]float32{0, 0, 0.2, 1}), depthClear(1, 0)}
	v.initialized = true
	v.logger.Info("Vulkan renderer initialized", "app", config.ApplicationName, "width", config.Width, "height", config.Height)
	return nil
}

func (v *VulkanRenderer) Shutdown() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.pipelines)
	v.bound = nil
	v.initialized = false
	v.logger.Info("Vulkan renderer destroyed")
	return nil
}

func (v *VulkanRenderer) Resized(width, height uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.config.Width, v.config.Height = width, height
	v.setViewport(renderer.Viewport{Width: width, Height: height, MaxDepth: 1})
	// viewport and scissor are dynamic, pipelines survive a resize
	return nil
}

func (v *VulkanRenderer) setViewport(vp renderer.Viewport) {
	// flip y so clip space matches the other backends
	v.viewport = vk.Viewport{
		X:        float32(vp.X),
		Y:        float32(vp.Y) + float32(vp.Height),
		Width:    float32(vp.Width),
		Height:   -float32(vp.Height),
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
	v.scissor = vk.Rect2D{
		Offset: vk.Offset2D{X: vp.X, Y: vp.Y},
		Extent: vk.Extent2D{Width: vp.Width, Height: vp.Height},
	}
}

func (v *VulkanRenderer) BeginFrame() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return fmt.Errorf("begin frame before initialize: %w", core.ErrInvariantViolation)
	}
	v.cmd.Reset()
	if err := v.cmd.Begin(); err != nil {
		return err
	}
	if err := v.cmd.BeginRenderPass(slices.Clone(v.clearValues)); err != nil {
		return err
	}
	v.bound = nil
	return v.cmd.Record(RecordedCommand{Op: OpSetViewport, Viewport: v.viewport})
}

func (v *VulkanRenderer) EndFrame() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.cmd.EndRenderPass(); err != nil {
		return err
	}
	if err := v.cmd.End(); err != nil {
		return err
	}
	if err := v.cmd.UpdateSubmitted(); err != nil {
		return err
	}
	v.lastFrame = slices.Clone(v.cmd.Commands)
	v.stats.Frames++
	return nil
}

func (v *VulkanRenderer) Clear(flags renderer.ClearFlags, colour math.Vec4, depth float32, stencil uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	var values []vk.ClearValue
	if flags&renderer.ClearColour != 0 {
		values = append(values, colourClear([]float32{colour.X, colour.Y, colour.Z, colour.W}))
	}
	if flags&(renderer.ClearDepth|renderer.ClearStencil) != 0 {
		values = append(values, depthClear(depth, stencil))
	}
	if v.cmd.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		v.clearValues = values
		return nil
	}
	// mid frame clears restart the render pass with the new clear values
	if err := v.cmd.EndRenderPass(); err != nil {
		return err
	}
	v.bound = nil
	return v.cmd.BeginRenderPass(values)
}

func (v *VulkanRenderer) SetViewport(vp renderer.Viewport) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setViewport(vp)
	if v.cmd.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return nil
	}
	return v.cmd.Record(RecordedCommand{Op: OpSetViewport, Viewport: v.viewport})
}

func (v *VulkanRenderer) SetTransform(kind renderer.TransformType, m math.Mat4) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch kind {
	case renderer.TransformWorld:
		v.world = m
	case renderer.TransformView:
		v.view = m
	case renderer.TransformProjection:
		v.projection = m
	default:
		return fmt.Errorf("transform type %d: %w", kind, core.ErrUnsupportedState)
	}
	return nil
}

func (v *VulkanRenderer) SetBlendState(state *rhi.BlendStateObject) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blend = state
	return nil
}

func (v *VulkanRenderer) SetDepthStencilState(state *rhi.DepthStencilStateObject) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.depthStencil = state
	return nil
}

func (v *VulkanRenderer) SetRasterizerState(state *rhi.RasterizerStateObject) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rasterizer = state
	return nil
}

// SetSamplerState is folded into the texture descriptor written by
// SetTexture; the sampler only has to be a valid translated one.
func (v *VulkanRenderer) SetSamplerState(unit int, state *rhi.SamplerStateObject) error {
	if state == nil {
		return nil
	}
	if _, ok := state.Handle().(*vk.SamplerCreateInfo); !ok {
		return fmt.Errorf("sampler %d was not created by the vulkan renderer: %w", unit, core.ErrInvariantViolation)
	}
	return nil
}

func (v *VulkanRenderer) SetTexture(unit int, texture *rhi.PixelBuffer) error {
	if texture == nil {
		return nil
	}
	format, err := PixelFormat(texture.Format())
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cmd.Record(RecordedCommand{Op: OpBindTexture, Binding: uint32(unit), Format: format})
}

func (v *VulkanRenderer) SetVertexDeclaration(decl *rhi.VertexDeclaration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.declaration = decl
	return nil
}

func (v *VulkanRenderer) SetVertexBuffer(stream int, vb *rhi.VertexBuffer) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if vb == nil {
		delete(v.vertexBufs, stream)
		return nil
	}
	v.vertexBufs[stream] = vb
	return v.cmd.Record(RecordedCommand{Op: OpBindVertexBuffer, Binding: uint32(stream)})
}

func (v *VulkanRenderer) SetIndexBuffer(ib *rhi.IndexBuffer) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.indexBuf = ib
	if ib == nil {
		return nil
	}
	indexType := vk.IndexTypeUint32
	if ib.IndexType() == rhi.Index16 {
		indexType = vk.IndexTypeUint16
	}
	return v.cmd.Record(RecordedCommand{Op: OpBindIndexBuffer, IndexType: indexType})
}

func (v *VulkanRenderer) SetLights(lights []metadata.LightData) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lights = slices.Clone(lights)
	return nil
}

func (v *VulkanRenderer) pipelineFor(p rhi.PrimitiveType) (*VulkanPipeline, error) {
	if v.blend == nil || v.depthStencil == nil || v.rasterizer == nil {
		return nil, fmt.Errorf("draw without a complete pipeline state: %w", core.ErrInvariantViolation)
	}
	if v.declaration == nil {
		return nil, fmt.Errorf("draw without vertex declaration: %w", core.ErrInvariantViolation)
	}
	topology, err := Topology(p)
	if err != nil {
		return nil, err
	}
	key := pipelineKey{
		blend:        v.blend,
		depthStencil: v.depthStencil,
		rasterizer:   v.rasterizer,
		declaration:  v.declaration,
		topology:     topology,
	}
	if pl, ok := v.pipelines[key]; ok {
		return pl, nil
	}

	bindings, attributes, err := TranslateVertexDeclaration(v.declaration)
	if err != nil {
		return nil, err
	}
	blend, ok1 := v.blend.Handle().(*BlendStateInfo)
	depth, ok2 := v.depthStencil.Handle().(*vk.PipelineDepthStencilStateCreateInfo)
	raster, ok3 := v.rasterizer.Handle().(*RasterizerStateInfo)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("state objects were not created by the vulkan renderer: %w", core.ErrInvariantViolation)
	}
	v.nextPipeline++
	pl := NewGraphicsPipeline(v.nextPipeline, &VulkanPipelineConfig{
		Bindings:     bindings,
		Attributes:   attributes,
		Viewport:     v.viewport,
		Scissor:      v.scissor,
		Topology:     topology,
		Blend:        blend,
		DepthStencil: depth,
		Rasterizer:   raster,
	})
	v.pipelines[key] = pl
	v.stats.Pipelines = len(v.pipelines)
	v.logger.Debug("pipeline created", "id", pl.ID, "topology", p)
	return pl, nil
}

// pushConstants packs the model-view-projection matrix the vertex stage
// reads.
func (v *VulkanRenderer) pushConstants() []byte {
	mvp := v.world.Mul(v.view).Mul(v.projection)
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, mvp.Data)
	return buf.Bytes()
}

func (v *VulkanRenderer) prepareDraw(p rhi.PrimitiveType) error {
	if v.cmd.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return fmt.Errorf("draw outside a frame: %w", core.ErrInvariantViolation)
	}
	pl, err := v.pipelineFor(p)
	if err != nil {
		return err
	}
	if pl != v.bound {
		if err := v.cmd.Record(RecordedCommand{Op: OpBindPipeline, Pipeline: pl}); err != nil {
			return err
		}
		v.bound = pl
	}
	return v.cmd.Record(RecordedCommand{Op: OpPushConstants, Constants: v.pushConstants()})
}

func (v *VulkanRenderer) DrawPrimitives(p rhi.PrimitiveType, startVertex, primitiveCount int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.prepareDraw(p); err != nil {
		return err
	}
	count := rhi.ElementCount(p, primitiveCount)
	for stream, vb := range v.vertexBufs {
		if startVertex+count > vb.VertexCount() {
			return fmt.Errorf("stream %d: %d vertices bound: %w", stream, vb.VertexCount(), core.ErrOutOfBounds)
		}
	}
	v.stats.DrawCalls++
	return v.cmd.Record(RecordedCommand{
		Op:          OpDraw,
		VertexCount: uint32(count),
		FirstVertex: uint32(startVertex),
	})
}

func (v *VulkanRenderer) DrawIndexedPrimitives(p rhi.PrimitiveType, baseVertex, startIndex, primitiveCount int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.indexBuf == nil {
		return fmt.Errorf("indexed draw without index buffer: %w", core.ErrInvariantViolation)
	}
	if err := v.prepareDraw(p); err != nil {
		return err
	}
	count := rhi.ElementCount(p, primitiveCount)
	if startIndex+count > v.indexBuf.IndexCount() {
		return fmt.Errorf("%d indices bound: %w", v.indexBuf.IndexCount(), core.ErrOutOfBounds)
	}
	v.stats.DrawCalls++
	return v.cmd.Record(RecordedCommand{
		Op:           OpDrawIndexed,
		IndexCount:   uint32(count),
		FirstIndex:   uint32(startIndex),
		VertexOffset: int32(baseVertex),
	})
}

func (v *VulkanRenderer) trackState(handle any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.stats.LiveStates++
	v.mu.Unlock()
	return handle, nil
}

func (v *VulkanRenderer) CreateBlendState(desc *rhi.BlendState) (any, error) {
	return v.trackState(TranslateBlendState(desc))
}

func (v *VulkanRenderer) CreateDepthStencilState(desc *rhi.DepthStencilState) (any, error) {
	return v.trackState(TranslateDepthStencilState(desc))
}

func (v *VulkanRenderer) CreateRasterizerState(desc *rhi.RasterizerState) (any, error) {
	return v.trackState(TranslateRasterizerState(desc))
}

func (v *VulkanRenderer) CreateSamplerState(desc *rhi.SamplerState) (any, error) {
	return v.trackState(TranslateSamplerState(desc))
}

func (v *VulkanRenderer) DestroyState(handle any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats.LiveStates--
	// pipelines built from a destroyed state can never be looked up again
	for key := range v.pipelines {
		if key.blend.Handle() == handle || key.depthStencil.Handle() == handle || key.rasterizer.Handle() == handle {
			delete(v.pipelines, key)
		}
	}
	v.stats.Pipelines = len(v.pipelines)
}

func (v *VulkanRenderer) CreateBufferStorage(kind rhi.BufferKind, size int, usage rhi.Usage) (rhi.BufferStorage, error) {
	if size <= 0 {
		return nil, core.ErrOutOfBounds
	}
	buf := newDeviceBuffer(kind, size, usage)
	buf.onDestroy = func() {
		v.mu.Lock()
		v.stats.LiveBuffers--
		v.mu.Unlock()
	}
	v.mu.Lock()
	v.stats.LiveBuffers++
	v.mu.Unlock()
	return buf, nil
}

// LastFrame returns the commands of the most recently submitted frame.
func (v *VulkanRenderer) LastFrame() []RecordedCommand {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.lastFrame)
}

func (v *VulkanRenderer) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}
