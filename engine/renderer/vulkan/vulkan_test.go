package vulkan

import (
	"context"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateBlendState(t *testing.T) {
	opaque := rhi.DefaultBlendState()
	info, err := TranslateBlendState(&opaque)
	require.NoError(t, err)
	require.EqualValues(t, 1, info.CreateInfo.AttachmentCount)
	att := info.CreateInfo.PAttachments[0]
	assert.EqualValues(t, vk.False, att.BlendEnable)
	assert.Equal(t, vk.BlendFactorOne, att.SrcColorBlendFactor)

	alpha := rhi.AlphaBlendState()
	alpha.IndependentBlend = true
	info, err = TranslateBlendState(&alpha)
	require.NoError(t, err)
	require.Len(t, info.CreateInfo.PAttachments, rhi.MaxRenderTargets)
	att = info.CreateInfo.PAttachments[3]
	assert.EqualValues(t, vk.True, att.BlendEnable)
	assert.Equal(t, vk.BlendFactorSrcAlpha, att.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, att.DstColorBlendFactor)
}

func TestTranslateRasterizerAndDepthState(t *testing.T) {
	rs := rhi.DefaultRasterizerState()
	rs.FillMode = rhi.FillModeWireframe
	rs.CullMode = rhi.CullModeNone
	info, err := TranslateRasterizerState(&rs)
	require.NoError(t, err)
	assert.Equal(t, vk.PolygonModeLine, info.CreateInfo.PolygonMode)
	assert.Equal(t, vk.CullModeFlags(vk.CullModeNone), info.CreateInfo.CullMode)
	assert.Equal(t, vk.FrontFaceCounterClockwise, info.CreateInfo.FrontFace)
	assert.Equal(t, vk.SampleCount1Bit, info.Samples)

	rs.FillMode = 99
	_, err = TranslateRasterizerState(&rs)
	assert.ErrorIs(t, err, core.ErrUnsupportedState)

	ds := rhi.DefaultDepthStencilState()
	depth, err := TranslateDepthStencilState(&ds)
	require.NoError(t, err)
	assert.EqualValues(t, vk.True, depth.DepthTestEnable)
	assert.Equal(t, vk.CompareOpLess, depth.DepthCompareOp)
	assert.Equal(t, vk.StencilOpKeep, depth.Front.PassOp)
	assert.EqualValues(t, 0xff, depth.Front.CompareMask)
}

func TestTranslateSamplerAndVertexLayout(t *testing.T) {
	ss := rhi.DefaultSamplerState()
	ss.MinFilter = rhi.FilterAnisotropic
	ss.MaxAnisotropy = 8
	ss.AddressU = rhi.AddressClamp
	info, err := TranslateSamplerState(&ss)
	require.NoError(t, err)
	assert.EqualValues(t, vk.True, info.AnisotropyEnable)
	assert.Equal(t, float32(8), info.MaxAnisotropy)
	assert.Equal(t, vk.SamplerAddressModeClampToEdge, info.AddressModeU)
	assert.Equal(t, vk.SamplerAddressModeRepeat, info.AddressModeV)

	decl := rhi.NewVertex3DDeclaration()
	bindings, attrs, err := TranslateVertexDeclaration(decl)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.EqualValues(t, 60, bindings[0].Stride)
	require.Len(t, attrs, 5)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, attrs[0].Format)
	assert.Equal(t, vk.FormatR32g32Sfloat, attrs[2].Format)
	assert.EqualValues(t, 48, attrs[4].Offset)
}

func TestCommandBufferStateMachine(t *testing.T) {
	cb := NewVulkanCommandBuffer()
	assert.ErrorIs(t, cb.End(), core.ErrInvariantViolation)
	require.NoError(t, cb.Begin())
	assert.Error(t, cb.Record(RecordedCommand{Op: OpDraw}), "draws need a render pass")
	require.NoError(t, cb.BeginRenderPass(nil))
	require.NoError(t, cb.Record(RecordedCommand{Op: OpDraw}))
	require.NoError(t, cb.EndRenderPass())
	require.NoError(t, cb.End())
	require.NoError(t, cb.UpdateSubmitted())
	assert.Equal(t, COMMAND_BUFFER_STATE_SUBMITTED, cb.State)
	assert.Equal(t, 1, cb.Count(OpDraw))
	assert.Error(t, cb.Begin())
	cb.Reset()
	assert.NoError(t, cb.Begin())
}

func TestVulkanRendererRecordsFrames(t *testing.T) {
	backend := New()
	r := renderer.New(backend, renderer.WithThreaded(false))
	require.NoError(t, r.Initialize(context.Background(), renderer.BackendConfig{ApplicationName: "test", Width: 640, Height: 480}))

	m := metadata.NewDefaultMaterial()
	vertices, indices, _ := math.GenerateCube(1, 1, 1, 1, 1)
	vd, err := r.CreateVertexData(vertices, rhi.UsageStaticWriteOnly)
	require.NoError(t, err)
	id, err := r.CreateIndexData(indices, rhi.UsageStaticWriteOnly)
	require.NoError(t, err)

	for frame := 0; frame < 2; frame++ {
		require.NoError(t, r.BeginFrame())
		require.NoError(t, r.BindPass(m.Passes[0]))
		require.NoError(t, r.SetWorldTransform(math.NewMat4Translation(math.NewVec3(0, 0, -5))))
		n, err := r.Draw(rhi.PrimitiveTriangleList, vd, id)
		require.NoError(t, err)
		assert.Equal(t, 12, n)
		require.NoError(t, r.EndFrame())
	}

	cmds := backend.LastFrame()
	require.NotEmpty(t, cmds)
	assert.Equal(t, OpBeginRenderPass, cmds[0].Op)
	assert.Equal(t, OpEndRenderPass, cmds[len(cmds)-1].Op)
	var drawn *RecordedCommand
	for i := range cmds {
		if cmds[i].Op == OpDrawIndexed {
			drawn = &cmds[i]
		}
	}
	require.NotNil(t, drawn)
	assert.EqualValues(t, 36, drawn.IndexCount)

	stats := backend.Stats()
	assert.EqualValues(t, 2, stats.Frames)
	assert.Equal(t, 1, stats.Pipelines, "the pipeline is reused across frames")
	assert.EqualValues(t, 2, stats.DrawCalls)

	renderer.ReleaseVertexData(vd)
	id.Buffer.Release()
	m.Release()
	require.NoError(t, r.Shutdown())
	assert.Zero(t, backend.Stats().LiveBuffers)
	assert.Zero(t, backend.Stats().LiveStates)
}
