package renderer_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/renderer/reference"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendererBindPassCachesStates(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	a, b := newMaterial(t, "a"), newMaterial(t, "b")

	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.BindPass(a.Passes[0]))
	require.NoError(t, r.BindPass(b.Passes[0]))

	assert.Same(t, a.Passes[0].BlendObject, b.Passes[0].BlendObject)
	assert.Same(t, a.Passes[0].RasterizerObject, b.Passes[0].RasterizerObject)
	assert.Equal(t, 3, r.States().Len())
}

func TestRendererRenderModeOverrideUsesCachedState(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	m := newMaterial(t, "m")
	require.NoError(t, r.BindPass(m.Passes[0]))
	before := r.States().Len()

	r.PushRenderMode(rhi.FillModeWireframe)
	require.NoError(t, r.BindPass(m.Passes[0]))
	require.NoError(t, r.BindPass(m.Passes[0]))
	require.NoError(t, r.PopRenderMode())

	assert.Equal(t, before+1, r.States().Len())
	assert.ErrorIs(t, r.PopRenderMode(), core.ErrInvariantViolation)
	assert.ErrorIs(t, r.PopProjection(), core.ErrInvariantViolation)
}

func TestRendererInvalidPassStateIsReported(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	pass := metadata.NewPass("broken")
	pass.DepthStencil.DepthTestEnable = false

	err := r.BindPass(pass)
	assert.ErrorIs(t, err, core.ErrUnsupportedState)
	assert.Error(t, r.BindPass(nil))
}

func TestRendererUploadTexture(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	img := metadata.NewImage(2, 2, rhi.PixelFormatR8G8B8A8)
	for i := range img.Data {
		img.Data[i] = byte(i)
	}
	tex := metadata.NewTexture("checker", img)
	defer tex.Release()

	require.NoError(t, r.UploadTexture(tex, img))
	require.NotNil(t, tex.Buffer)
	assert.Equal(t, 8, tex.Buffer.Pitch())
	assert.EqualValues(t, 1, tex.Generation)
	assert.True(t, tex.HasAlpha)
	assert.Equal(t, 1, r.Buffers().LiveBuffers())
}

func TestRendererUpdateBufferKeepsBufferAlive(t *testing.T) {
	r, _ := newTestRenderer(t, true)
	vb, err := r.Buffers().CreateVertexBuffer(4, 2, rhi.UsageDynamic, true)
	require.NoError(t, err)
	require.NoError(t, r.BeginFrame())

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, r.UpdateBuffer(vb.HardwareBuffer, 0, data, true))
	data[0] = 42
	vb.Release()
	assert.Equal(t, 1, r.Buffers().LiveBuffers(), "the queued update still holds a reference")

	require.NoError(t, r.EndFrame())
	r.Flush()
	assert.Equal(t, 0, r.Buffers().LiveBuffers())
}

// refCountBackend records the reference count of every object it is handed.
type refCountBackend struct {
	*reference.Backend
	mu   sync.Mutex
	seen map[string][]int32
}

func newRefCountRenderer(t *testing.T) (*renderer.Renderer, *refCountBackend) {
	t.Helper()
	backend := &refCountBackend{Backend: reference.New(), seen: make(map[string][]int32)}
	r := renderer.New(backend, renderer.WithThreaded(true))
	require.NoError(t, r.Initialize(context.Background(), renderer.BackendConfig{ApplicationName: "test", Width: 800, Height: 600}))
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, backend
}

func (b *refCountBackend) observe(name string, o core.Object) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen[name] = append(b.seen[name], o.RefCount())
}

func (b *refCountBackend) counts(name string) []int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.seen[name])
}

func (b *refCountBackend) SetBlendState(state *rhi.BlendStateObject) error {
	b.observe("SetBlendState", state)
	return b.Backend.SetBlendState(state)
}

func (b *refCountBackend) SetRasterizerState(state *rhi.RasterizerStateObject) error {
	b.observe("SetRasterizerState", state)
	return b.Backend.SetRasterizerState(state)
}

func (b *refCountBackend) SetSamplerState(unit int, state *rhi.SamplerStateObject) error {
	b.observe("SetSamplerState", state)
	return b.Backend.SetSamplerState(unit, state)
}

func (b *refCountBackend) SetTexture(unit int, texture *rhi.PixelBuffer) error {
	b.observe("SetTexture", texture)
	return b.Backend.SetTexture(unit, texture)
}

func (b *refCountBackend) SetVertexDeclaration(decl *rhi.VertexDeclaration) error {
	b.observe("SetVertexDeclaration", decl)
	return b.Backend.SetVertexDeclaration(decl)
}

func (b *refCountBackend) SetVertexBuffer(stream int, vb *rhi.VertexBuffer) error {
	b.observe("SetVertexBuffer", vb)
	return b.Backend.SetVertexBuffer(stream, vb)
}

func (b *refCountBackend) SetIndexBuffer(ib *rhi.IndexBuffer) error {
	b.observe("SetIndexBuffer", ib)
	return b.Backend.SetIndexBuffer(ib)
}

func assertAllLive(t *testing.T, b *refCountBackend, names ...string) {
	t.Helper()
	for _, name := range names {
		counts := b.counts(name)
		require.NotEmpty(t, counts, name)
		for _, c := range counts {
			assert.Positive(t, c, "%s saw a released object", name)
		}
	}
}

func TestRendererDrawKeepsGeometryAliveUntilExecuted(t *testing.T) {
	r, backend := newRefCountRenderer(t)
	vertices, indices, _ := math.GenerateCube(1, 1, 1, 1, 1)

	require.NoError(t, r.BeginFrame())
	vd, err := r.CreateVertexData(vertices, rhi.UsageStaticWriteOnly)
	require.NoError(t, err)
	id, err := r.CreateIndexData(indices, rhi.UsageStaticWriteOnly)
	require.NoError(t, err)
	n, err := r.Draw(rhi.PrimitiveTriangleList, vd, id)
	require.NoError(t, err)
	assert.Equal(t, len(indices)/3, n)

	renderer.ReleaseVertexData(vd)
	id.Buffer.Release()
	assert.Equal(t, 2, r.Buffers().LiveBuffers(), "queued commands still hold the geometry")

	require.NoError(t, r.EndFrame())
	r.Flush()
	assertAllLive(t, backend, "SetVertexDeclaration", "SetVertexBuffer", "SetIndexBuffer")
	assert.Equal(t, 0, r.Buffers().LiveBuffers())
}

func TestRendererBindPassKeepsMaterialAliveUntilExecuted(t *testing.T) {
	r, backend := newRefCountRenderer(t)
	img := metadata.NewImage(2, 2, rhi.PixelFormatR8G8B8A8)
	tex := metadata.NewTexture("checker", img)
	m := metadata.NewMaterial("fading")
	pass := metadata.NewPass("main")
	pass.TextureUnits = append(pass.TextureUnits, &metadata.TextureUnit{
		TextureName: tex.Name,
		Sampler:     rhi.DefaultSamplerState(),
		Texture:     tex,
	})
	m.Passes = append(m.Passes, pass)

	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.UploadTexture(tex, img))
	require.NoError(t, r.BindPass(pass))
	states := r.States().Len()

	m.Release()
	tex.Release()
	assert.Zero(t, r.States().Purge(), "queued commands still hold the states")
	assert.Equal(t, states, r.States().Len())
	assert.Equal(t, 1, r.Buffers().LiveBuffers())

	require.NoError(t, r.EndFrame())
	r.Flush()
	assertAllLive(t, backend, "SetBlendState", "SetRasterizerState", "SetSamplerState", "SetTexture")
	assert.Equal(t, 0, r.Buffers().LiveBuffers())
	assert.Equal(t, states, r.States().Purge())
	assert.Zero(t, r.States().Len())
}

func TestRendererStopReleasesQueuedCommands(t *testing.T) {
	r, _ := newTestRenderer(t, true)
	vb, err := r.Buffers().CreateVertexBuffer(4, 2, rhi.UsageDynamic, true)
	require.NoError(t, err)
	decl := rhi.NewVertex3DDeclaration()
	vd := rhi.NewVertexData(decl)
	vd.Count = 3
	vd.Bind(0, vb)

	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.UpdateBuffer(vb.HardwareBuffer, 0, make([]byte, 8), true))
	_, err = r.Draw(rhi.PrimitiveTriangleList, vd, nil)
	require.NoError(t, err)
	renderer.ReleaseVertexData(vd)
	assert.Equal(t, 1, r.Buffers().LiveBuffers())

	r.Thread().Stop()
	assert.Equal(t, 0, r.Buffers().LiveBuffers())
	assert.Zero(t, decl.RefCount())
	assert.Zero(t, r.Thread().Pending())
	assert.Positive(t, r.Thread().Stats().Dropped)
}

func TestRendererDrawCounts(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	vertices := make([]math.Vertex3D, 300)
	vd, err := r.CreateVertexData(vertices, rhi.UsageStatic)
	require.NoError(t, err)
	defer renderer.ReleaseVertexData(vd)

	require.NoError(t, r.BeginFrame())
	n, err := r.Draw(rhi.PrimitiveTriangleStrip, vd, nil)
	require.NoError(t, err)
	assert.Equal(t, 298, n)

	_, err = r.Draw(rhi.PrimitiveTriangleList, nil, nil)
	assert.True(t, errors.Is(err, core.ErrNilArgument))
}

func TestParseRendererType(t *testing.T) {
	rt, err := renderer.ParseRendererType("vulkan")
	require.NoError(t, err)
	assert.Equal(t, renderer.Vulkan, rt)
	_, err = renderer.ParseRendererType("glide")
	assert.Error(t, err)
}
