package renderer

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

type Option func(*Renderer)

// WithThreaded controls whether commands run on a dedicated RHI thread or
// inline on the caller.
func WithThreaded(threaded bool) Option {
	return func(r *Renderer) {
		r.threaded = threaded
	}
}

func WithStateCacheOptions(opts ...rhi.StateCacheOption) Option {
	return func(r *Renderer) {
		r.cacheOpts = append(r.cacheOpts, opts...)
	}
}

func WithThreadOptions(opts ...rhi.ThreadOption) Option {
	return func(r *Renderer) {
		r.threadOpts = append(r.threadOpts, opts...)
	}
}

/**
 * @brief Renderer is the front-end the scene and the render queue talk to.
 * It owns the backend, the RHI thread, the state cache and the hardware
 * buffer manager. Every call that touches the GPU is turned into an RHI
 * command; when the RHI thread is not running the command executes inline.
 *
 * The Renderer itself belongs to the main thread.
 */
type Renderer struct {
	backend RendererBackend
	thread  *rhi.Thread
	states  *rhi.StateCache
	buffers *rhi.HardwareBufferManager
	logger  *log.Logger

	threaded   bool
	cacheOpts  []rhi.StateCacheOption
	threadOpts []rhi.ThreadOption

	viewport    Viewport
	view        math.Mat4
	projection  math.Mat4
	projections []math.Mat4
	renderModes []rhi.FillMode
	// rasterizer states derived from a pass with a forced fill mode
	overrides map[rhi.RasterizerState]*rhi.RasterizerStateObject
}

func New(backend RendererBackend, opts ...Option) *Renderer {
	r := &Renderer{
		backend:    backend,
		logger:     core.Logger("Renderer"),
		threaded:   true,
		view:       math.NewMat4Identity(),
		projection: math.NewMat4Identity(),
		overrides:  make(map[rhi.RasterizerState]*rhi.RasterizerStateObject),
	}
	for _, o := range opts {
		o(r)
	}
	r.thread = rhi.NewThread(r.threadOpts...)
	r.states = rhi.NewStateCache(backend, r.cacheOpts...)
	r.buffers = rhi.NewHardwareBufferManager(backend)
	return r
}

// Initialize brings the backend up and, when threaded, starts the RHI
// thread. Cancelling ctx stops the RHI thread.
func (r *Renderer) Initialize(ctx context.Context, config BackendConfig) error {
	if err := r.backend.Initialize(config); err != nil {
		return fmt.Errorf("initialize %s backend: %w", r.backend.Type(), err)
	}
	r.viewport = Viewport{Width: config.Width, Height: config.Height, MaxDepth: 1}
	if err := r.thread.Init(); err != nil {
		return err
	}
	if r.threaded {
		if err := r.thread.Start(ctx); err != nil {
			return err
		}
	}
	r.logger.Info("renderer initialized", "backend", r.backend.Type(), "threaded", r.threaded)
	return nil
}

// Shutdown stops the RHI thread, dropping whatever is still queued, and
// tears the backend down.
func (r *Renderer) Shutdown() error {
	r.thread.Stop()
	for desc, s := range r.overrides {
		s.Release()
		delete(r.overrides, desc)
	}
	if n := r.states.Purge(); n > 0 {
		r.logger.Debug("purged state objects", "count", n)
	}
	if live := r.buffers.LiveBuffers(); live > 0 {
		r.logger.Warn("hardware buffers still referenced at shutdown", "count", live)
	}
	return r.backend.Shutdown()
}

func (r *Renderer) Backend() RendererBackend            { return r.backend }
func (r *Renderer) Thread() *rhi.Thread                 { return r.thread }
func (r *Renderer) States() *rhi.StateCache             { return r.states }
func (r *Renderer) Buffers() *rhi.HardwareBufferManager { return r.buffers }
func (r *Renderer) Viewport() Viewport                  { return r.viewport }

func (r *Renderer) enqueue(name string, fn rhi.CommandFunc) error {
	return r.thread.Enqueue(name, fn)
}

// hold appends o to objs unless it is nil.
func hold[P interface {
	*E
	core.Object
}, E any](objs []core.Object, o P) []core.Object {
	if o == nil {
		return objs
	}
	return append(objs, o)
}

// enqueueHeld retains objs until the command has run or has been dropped.
func (r *Renderer) enqueueHeld(name string, fn rhi.CommandFunc, objs ...core.Object) error {
	for _, o := range objs {
		o.Retain()
	}
	return r.thread.AddCommand(rhi.NewCommandWithCleanup(name, fn, func() {
		for _, o := range objs {
			o.Release()
		}
	}))
}

func (r *Renderer) BeginFrame() error {
	return r.enqueue("BeginFrame", r.backend.BeginFrame)
}

// EndFrame queues the backend end of frame and marks the RHI frame boundary.
func (r *Renderer) EndFrame() error {
	err := r.enqueue("EndFrame", r.backend.EndFrame)
	r.thread.EndFrame()
	return err
}

// Flush waits until everything queued so far has executed.
func (r *Renderer) Flush() {
	r.thread.Flush()
}

func (r *Renderer) Resized(width, height uint32) error {
	r.viewport.Width, r.viewport.Height = width, height
	return r.enqueue("Resized", func() error {
		return r.backend.Resized(width, height)
	})
}

func (r *Renderer) Clear(flags ClearFlags, colour math.Vec4, depth float32, stencil uint32) error {
	return r.enqueue("Clear", func() error {
		return r.backend.Clear(flags, colour, depth, stencil)
	})
}

func (r *Renderer) SetViewport(viewport Viewport) error {
	r.viewport = viewport
	return r.enqueue("SetViewport", func() error {
		return r.backend.SetViewport(viewport)
	})
}

func (r *Renderer) SetWorldTransform(m math.Mat4) error {
	return r.enqueue("SetWorldTransform", func() error {
		return r.backend.SetTransform(TransformWorld, m)
	})
}

func (r *Renderer) SetViewTransform(m math.Mat4) error {
	r.view = m
	return r.enqueue("SetViewTransform", func() error {
		return r.backend.SetTransform(TransformView, m)
	})
}

// SetProjectionTransform sets the base projection, the one active when no
// override is pushed.
func (r *Renderer) SetProjectionTransform(m math.Mat4) error {
	r.projection = m
	if len(r.projections) > 0 {
		return nil
	}
	return r.applyProjection(m)
}

func (r *Renderer) applyProjection(m math.Mat4) error {
	return r.enqueue("SetProjectionTransform", func() error {
		return r.backend.SetTransform(TransformProjection, m)
	})
}

// Projection returns the projection currently in effect.
func (r *Renderer) Projection() math.Mat4 {
	if n := len(r.projections); n > 0 {
		return r.projections[n-1]
	}
	return r.projection
}

func (r *Renderer) PushProjection(m math.Mat4) error {
	r.projections = append(r.projections, m)
	return r.applyProjection(m)
}

func (r *Renderer) PopProjection() error {
	if len(r.projections) == 0 {
		return fmt.Errorf("pop projection: empty override stack: %w", core.ErrInvariantViolation)
	}
	r.projections = r.projections[:len(r.projections)-1]
	return r.applyProjection(r.Projection())
}

// PushRenderMode forces the fill mode of every pass bound until the
// matching PopRenderMode.
func (r *Renderer) PushRenderMode(mode rhi.FillMode) {
	r.renderModes = append(r.renderModes, mode)
}

func (r *Renderer) PopRenderMode() error {
	if len(r.renderModes) == 0 {
		return fmt.Errorf("pop render mode: empty override stack: %w", core.ErrInvariantViolation)
	}
	r.renderModes = r.renderModes[:len(r.renderModes)-1]
	return nil
}

// RenderMode returns the forced fill mode, if any.
func (r *Renderer) RenderMode() (rhi.FillMode, bool) {
	if n := len(r.renderModes); n > 0 {
		return r.renderModes[n-1], true
	}
	return rhi.FillModeSolid, false
}

// OverrideDepth returns how many overrides are active.
func (r *Renderer) OverrideDepth() int {
	return len(r.projections) + len(r.renderModes)
}

// OrthographicProjection spans the current viewport in pixels.
func (r *Renderer) OrthographicProjection() math.Mat4 {
	return math.NewMat4Orthographic(0, float32(r.viewport.Width), float32(r.viewport.Height), 0, -1, 1)
}

func (r *Renderer) SetLights(lights []metadata.LightData) error {
	lights = slices.Clone(lights)
	return r.enqueue("SetLights", func() error {
		return r.backend.SetLights(lights)
	})
}

func (r *Renderer) resolvePassStates(pass *metadata.Pass) error {
	var err error
	if pass.BlendObject == nil {
		if pass.BlendObject, err = r.states.CreateBlendState(pass.Blend); err != nil {
			return err
		}
	}
	if pass.DepthStencilObject == nil {
		if pass.DepthStencilObject, err = r.states.CreateDepthStencilState(pass.DepthStencil); err != nil {
			return err
		}
	}
	if pass.RasterizerObject == nil {
		if pass.RasterizerObject, err = r.states.CreateRasterizerState(pass.Rasterizer); err != nil {
			return err
		}
	}
	for _, tu := range pass.TextureUnits {
		if tu.SamplerObject == nil {
			if tu.SamplerObject, err = r.states.CreateSamplerState(tu.Sampler); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) rasterizerFor(pass *metadata.Pass) (*rhi.RasterizerStateObject, error) {
	mode, forced := r.RenderMode()
	if !forced || mode == pass.Rasterizer.FillMode {
		return pass.RasterizerObject, nil
	}
	desc := pass.Rasterizer
	desc.FillMode = mode
	if s, ok := r.overrides[desc]; ok {
		return s, nil
	}
	s, err := r.states.CreateRasterizerState(desc)
	if err != nil {
		return nil, err
	}
	r.overrides[desc] = s
	return s, nil
}

/**
 * @brief Binds the render state and textures of one material pass. State
 * objects are resolved through the state cache on first use and kept on the
 * pass. Every state object and texture is retained until its command has
 * run.
 */
func (r *Renderer) BindPass(pass *metadata.Pass) error {
	if pass == nil {
		return fmt.Errorf("bind pass: %w", core.ErrNilArgument)
	}
	if err := r.resolvePassStates(pass); err != nil {
		return fmt.Errorf("bind pass %s: %w", pass.Name, err)
	}
	raster, err := r.rasterizerFor(pass)
	if err != nil {
		return fmt.Errorf("bind pass %s: %w", pass.Name, err)
	}

	blend, depth := pass.BlendObject, pass.DepthStencilObject
	if err := r.enqueueHeld("SetBlendState", func() error { return r.backend.SetBlendState(blend) }, hold(nil, blend)...); err != nil {
		return err
	}
	if err := r.enqueueHeld("SetDepthStencilState", func() error { return r.backend.SetDepthStencilState(depth) }, hold(nil, depth)...); err != nil {
		return err
	}
	if err := r.enqueueHeld("SetRasterizerState", func() error { return r.backend.SetRasterizerState(raster) }, hold(nil, raster)...); err != nil {
		return err
	}
	for unit, tu := range pass.TextureUnits {
		sampler := tu.SamplerObject
		var pb *rhi.PixelBuffer
		if tu.Texture != nil {
			pb = tu.Texture.Buffer
		}
		if err := r.enqueueHeld("SetSamplerState", func() error { return r.backend.SetSamplerState(unit, sampler) }, hold(nil, sampler)...); err != nil {
			return err
		}
		if err := r.enqueueHeld("SetTexture", func() error { return r.backend.SetTexture(unit, pb) }, hold(nil, pb)...); err != nil {
			return err
		}
	}
	return nil
}

/**
 * @brief Binds vertex and index data and issues one draw. The primitive
 * count follows from the index count when indexed, else the vertex count.
 * Returns the number of primitives submitted; an empty draw submits nothing.
 * The declaration and buffers are retained until their commands have run.
 */
func (r *Renderer) Draw(primitive rhi.PrimitiveType, vd *rhi.VertexData, id *rhi.IndexData) (int, error) {
	if vd == nil || vd.Declaration == nil {
		return 0, fmt.Errorf("draw: vertex data: %w", core.ErrNilArgument)
	}
	indexed := id != nil && id.Buffer != nil
	count := vd.Count
	if indexed {
		count = id.Count
	}
	primitives := rhi.PrimitiveCount(primitive, count)
	if primitives == 0 {
		return 0, nil
	}

	decl := vd.Declaration
	if err := r.enqueueHeld("SetVertexDeclaration", func() error { return r.backend.SetVertexDeclaration(decl) }, decl); err != nil {
		return 0, err
	}
	bindings := vd.Bindings()
	streams := make([]int, 0, len(bindings))
	for s := range bindings {
		streams = append(streams, s)
	}
	slices.Sort(streams)
	for _, s := range streams {
		vb := bindings[s]
		if err := r.enqueueHeld("SetVertexBuffer", func() error { return r.backend.SetVertexBuffer(s, vb) }, hold(nil, vb)...); err != nil {
			return 0, err
		}
	}

	if indexed {
		ib, start, base := id.Buffer, id.Start, vd.Start
		if err := r.enqueueHeld("SetIndexBuffer", func() error { return r.backend.SetIndexBuffer(ib) }, ib); err != nil {
			return 0, err
		}
		err := r.enqueue("DrawIndexed", func() error {
			return r.backend.DrawIndexedPrimitives(primitive, base, start, primitives)
		})
		return primitives, err
	}
	start := vd.Start
	err := r.enqueue("Draw", func() error {
		return r.backend.DrawPrimitives(primitive, start, primitives)
	})
	return primitives, err
}

/**
 * @brief Schedules a write of data into hb. The data is copied and the
 * buffer retained until the command has run, so the caller may reuse both.
 */
func (r *Renderer) UpdateBuffer(hb *rhi.HardwareBuffer, offset int, data []byte, discard bool) error {
	if hb == nil {
		return fmt.Errorf("update buffer: %w", core.ErrNilArgument)
	}
	data = slices.Clone(data)
	return r.enqueueHeld("UpdateBuffer", func() error {
		return hb.WriteData(offset, data, discard)
	}, hb)
}

// CreateVertexData uploads vertices laid out as math.Vertex3D.
func (r *Renderer) CreateVertexData(vertices []math.Vertex3D, usage rhi.Usage) (*rhi.VertexData, error) {
	decl := rhi.NewVertex3DDeclaration()
	vb, err := r.buffers.CreateVertexBuffer(decl.VertexSize(0), len(vertices), usage, true)
	if err != nil {
		decl.Release()
		return nil, err
	}
	if err := r.UpdateBuffer(vb.HardwareBuffer, 0, rhi.EncodeVertices(vertices), true); err != nil {
		vb.Release()
		decl.Release()
		return nil, err
	}
	vd := rhi.NewVertexData(decl)
	vd.Count = len(vertices)
	vd.Bind(0, vb)
	return vd, nil
}

// CreateIndexData uploads indices, 16 bit when they fit.
func (r *Renderer) CreateIndexData(indices []uint32, usage rhi.Usage) (*rhi.IndexData, error) {
	indexType := rhi.Index16
	if len(indices) > 0 && slices.Max(indices) > 0xffff {
		indexType = rhi.Index32
	}
	ib, err := r.buffers.CreateIndexBuffer(indexType, len(indices), usage, true)
	if err != nil {
		return nil, err
	}
	if err := r.UpdateBuffer(ib.HardwareBuffer, 0, rhi.EncodeIndices(indices, indexType), true); err != nil {
		ib.Release()
		return nil, err
	}
	return &rhi.IndexData{Buffer: ib, Count: len(indices)}, nil
}

// ReleaseVertexData drops the references vd holds on its buffers.
func ReleaseVertexData(vd *rhi.VertexData) {
	if vd == nil {
		return
	}
	for s, vb := range vd.Bindings() {
		vb.Release()
		vd.Bind(s, nil)
	}
	if vd.Declaration != nil {
		vd.Declaration.Release()
		vd.Declaration = nil
	}
}

// UploadTexture creates the pixel buffer of tex from img.
func (r *Renderer) UploadTexture(tex *metadata.Texture, img *metadata.Image) error {
	if tex == nil || img == nil {
		return fmt.Errorf("upload texture: %w", core.ErrNilArgument)
	}
	pb, err := r.buffers.CreatePixelBuffer(int(img.Width), int(img.Height), 1, img.Format, rhi.UsageStaticWriteOnly, false)
	if err != nil {
		return fmt.Errorf("upload texture %s: %w", tex.Name, err)
	}
	if err := r.UpdateBuffer(pb.HardwareBuffer, 0, img.Data, true); err != nil {
		pb.Release()
		return fmt.Errorf("upload texture %s: %w", tex.Name, err)
	}
	if tex.Buffer != nil {
		tex.Buffer.Release()
	}
	tex.Buffer = pb
	tex.Generation++
	return nil
}
