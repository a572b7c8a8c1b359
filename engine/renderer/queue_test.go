package renderer_test

import (
	"context"
	"testing"

	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/renderer/reference"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRenderable struct {
	material *metadata.Material
	prim     rhi.PrimitiveType
	vd       *rhi.VertexData
	id       *rhi.IndexData
	world    math.Mat4
}

func (r *testRenderable) Material() *metadata.Material     { return r.material }
func (r *testRenderable) PrimitiveType() rhi.PrimitiveType { return r.prim }
func (r *testRenderable) VertexData() *rhi.VertexData      { return r.vd }
func (r *testRenderable) IndexData() *rhi.IndexData        { return r.id }
func (r *testRenderable) WorldTransform() math.Mat4        { return r.world }

type testLight struct {
	testRenderable
	data metadata.LightData
}

func (l *testLight) LightData() metadata.LightData { return l.data }

func newTestRenderer(t *testing.T, threaded bool) (*renderer.Renderer, *reference.Backend) {
	t.Helper()
	backend := reference.New()
	r := renderer.New(backend, renderer.WithThreaded(threaded))
	require.NoError(t, r.Initialize(context.Background(), renderer.BackendConfig{ApplicationName: "test", Width: 800, Height: 600}))
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, backend
}

func newCube(t *testing.T, r *renderer.Renderer, m *metadata.Material) *testRenderable {
	t.Helper()
	vertices, indices, _ := math.GenerateCube(1, 1, 1, 1, 1)
	vd, err := r.CreateVertexData(vertices, rhi.UsageStaticWriteOnly)
	require.NoError(t, err)
	id, err := r.CreateIndexData(indices, rhi.UsageStaticWriteOnly)
	require.NoError(t, err)
	t.Cleanup(func() {
		renderer.ReleaseVertexData(vd)
		id.Buffer.Release()
	})
	return &testRenderable{
		material: m,
		prim:     rhi.PrimitiveTriangleList,
		vd:       vd,
		id:       id,
		world:    math.NewMat4Identity(),
	}
}

func newMaterial(t *testing.T, name string) *metadata.Material {
	t.Helper()
	m := metadata.NewMaterial(name)
	m.Passes = append(m.Passes, metadata.NewPass("main"))
	t.Cleanup(m.Release)
	return m
}

func renderFrame(t *testing.T, r *renderer.Renderer, q *renderer.RenderQueue) renderer.RenderStats {
	t.Helper()
	require.NoError(t, r.BeginFrame())
	stats, err := q.Render(r)
	require.NoError(t, err)
	require.NoError(t, r.EndFrame())
	r.Flush()
	return stats
}

func TestRenderQueueClearedQueueDrawsNothing(t *testing.T) {
	r, backend := newTestRenderer(t, false)
	q := renderer.NewRenderQueue()
	defer q.Destroy()
	cube := newCube(t, r, newMaterial(t, "crate"))

	require.NoError(t, q.AddRenderable(renderer.GroupSolid, cube))
	stats := renderFrame(t, r, q)
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 12, stats.Primitives)

	q.Clear()
	assert.Equal(t, 0, q.Len())
	backend.Reset()
	stats = renderFrame(t, r, q)
	assert.Equal(t, 0, stats.DrawCalls)
	assert.Empty(t, backend.Draws())
}

func TestRenderQueueHoldsMaterialsUntilCleared(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	q := renderer.NewRenderQueue()
	defer q.Destroy()
	m := newMaterial(t, "crate")
	a, b := newCube(t, r, m), newCube(t, r, m)

	require.NoError(t, q.AddRenderable(renderer.GroupSolid, a))
	require.NoError(t, q.AddRenderable(renderer.GroupSolid, b))
	require.NoError(t, q.AddRenderable(renderer.GroupTransparent, a))
	assert.EqualValues(t, 3, m.RefCount())

	q.Clear()
	assert.EqualValues(t, 1, m.RefCount())
}

func TestRenderQueueBucketsByMaterialInInsertionOrder(t *testing.T) {
	r, _ := newTestRenderer(t, false)
	q := renderer.NewRenderQueue()
	defer q.Destroy()
	stone, wood := newMaterial(t, "stone"), newMaterial(t, "wood")
	a, b, c := newCube(t, r, stone), newCube(t, r, wood), newCube(t, r, stone)

	for _, rd := range []*testRenderable{a, b, c} {
		require.NoError(t, q.AddRenderable(renderer.GroupSolid, rd))
	}

	assert.Equal(t, []*metadata.Material{stone, wood}, q.Group(renderer.GroupSolid).Materials())
	assert.Equal(t, []renderer.Renderable{a, c}, q.Bucket(renderer.GroupSolid, stone))
	assert.Equal(t, []renderer.Renderable{b}, q.Bucket(renderer.GroupSolid, wood))
	assert.Empty(t, q.Bucket(renderer.GroupOverlay, stone))

	stats := renderFrame(t, r, q)
	assert.Equal(t, 2, stats.MaterialBinds)
	assert.Equal(t, 3, stats.DrawCalls)
}

func TestRenderQueueWireframeOverrideIsRestored(t *testing.T) {
	r, backend := newTestRenderer(t, false)
	q := renderer.NewRenderQueue()
	defer q.Destroy()
	m := newMaterial(t, "shared")

	require.NoError(t, q.AddRenderable(renderer.GroupSolid, newCube(t, r, m)))
	require.NoError(t, q.AddRenderable(renderer.GroupWireframe, newCube(t, r, m)))
	require.NoError(t, q.AddRenderable(renderer.GroupIndicator, newCube(t, r, m)))
	require.NoError(t, q.AddRenderable(renderer.GroupTransparent, newCube(t, r, m)))
	renderFrame(t, r, q)

	draws := backend.Draws()
	require.Len(t, draws, 4)
	assert.Equal(t, rhi.FillModeSolid, draws[0].FillMode)
	assert.Equal(t, rhi.FillModeWireframe, draws[1].FillMode)
	assert.Equal(t, rhi.FillModeSolid, draws[2].FillMode, "transparent group must not inherit the override")
	assert.Equal(t, rhi.FillModeWireframe, draws[3].FillMode)
	assert.Equal(t, 0, r.OverrideDepth())
	_, forced := r.RenderMode()
	assert.False(t, forced)
}

func TestRenderQueueOverlayUsesOrthographicProjection(t *testing.T) {
	r, backend := newTestRenderer(t, false)
	q := renderer.NewRenderQueue()
	defer q.Destroy()
	m := newMaterial(t, "ui")
	perspective := math.NewMat4Perspective(math.DegToRad(45), 800.0/600.0, 0.1, 100)
	require.NoError(t, r.SetProjectionTransform(perspective))

	require.NoError(t, q.AddRenderable(renderer.GroupOverlay, newCube(t, r, m)))
	require.NoError(t, q.AddRenderable(renderer.GroupSolid, newCube(t, r, m)))
	renderFrame(t, r, q)

	draws := backend.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, perspective, draws[0].Projection)
	assert.Equal(t, r.OrthographicProjection(), draws[1].Projection)
	assert.Equal(t, perspective, r.Projection())
	assert.Equal(t, 0, r.OverrideDepth())
}

func TestRenderQueueLightGroupRegistersLights(t *testing.T) {
	r, backend := newTestRenderer(t, false)
	q := renderer.NewRenderQueue()
	defer q.Destroy()

	light := &testLight{data: metadata.LightData{Type: metadata.LightTypePoint, Range: 10}}
	require.NoError(t, q.AddRenderable(renderer.GroupLight, light))
	require.NoError(t, q.AddRenderable(renderer.GroupSolid, newCube(t, r, newMaterial(t, "lit"))))
	stats := renderFrame(t, r, q)

	assert.Equal(t, 1, stats.Lights)
	assert.Equal(t, 1, stats.DrawCalls)
	require.Len(t, backend.Lights(), 1)
	assert.Equal(t, float32(10), backend.Lights()[0].Range)
	assert.Equal(t, 1, backend.Draws()[0].Lights)
}

func TestRenderQueueFailedDrawDoesNotStopTheFrame(t *testing.T) {
	r, backend := newTestRenderer(t, false)
	q := renderer.NewRenderQueue()
	defer q.Destroy()
	m := newMaterial(t, "mixed")

	broken := &testRenderable{material: m, prim: rhi.PrimitiveTriangleList, vd: &rhi.VertexData{Count: 3}}
	require.NoError(t, q.AddRenderable(renderer.GroupSolid, broken))
	require.NoError(t, q.AddRenderable(renderer.GroupSolid, newCube(t, r, m)))
	stats := renderFrame(t, r, q)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Len(t, backend.Draws(), 1)
}

func TestRenderQueueRejectsBadInput(t *testing.T) {
	q := renderer.NewRenderQueue()
	defer q.Destroy()
	assert.Error(t, q.AddRenderable(renderer.GroupSolid, nil))
	assert.Error(t, q.AddRenderable(renderer.GroupCount, &testRenderable{}))

	// no material falls back to the default one
	require.NoError(t, q.AddRenderable(renderer.GroupSolid, &testRenderable{}))
	assert.Len(t, q.Bucket(renderer.GroupSolid, nil), 1)
}

func TestRenderQueueOnRHIThread(t *testing.T) {
	r, backend := newTestRenderer(t, true)
	require.True(t, r.Thread().IsRunning())
	q := renderer.NewRenderQueue()
	defer q.Destroy()
	m := newMaterial(t, "threaded")
	cube := newCube(t, r, m)

	for frame := 0; frame < 3; frame++ {
		q.Clear()
		require.NoError(t, q.AddRenderable(renderer.GroupSolid, cube))
		renderFrame(t, r, q)
	}

	assert.Len(t, backend.Draws(), 3)
	assert.EqualValues(t, 3, backend.Stats().Frames)
	assert.Zero(t, r.Thread().Stats().Failed)
}
