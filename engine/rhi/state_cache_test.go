package rhi

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdenticalBlendStatesShareOneObject(t *testing.T) {
	factory := &fakeStateFactory{}
	cache := NewStateCache(factory)

	a := AlphaBlendState()
	b := BlendState{}
	for i := range b.RenderTargets {
		b.RenderTargets[i] = RenderTargetBlend{
			BlendEnable:   true,
			SrcBlend:      BlendFactorSrcAlpha,
			DstBlend:      BlendFactorInvSrcAlpha,
			BlendOp:       BlendOpAdd,
			SrcBlendAlpha: BlendFactorOne,
			DstBlendAlpha: BlendFactorInvSrcAlpha,
			BlendOpAlpha:  BlendOpAdd,
			WriteMask:     ColorWriteAll,
		}
	}

	assert.Equal(t, Hash(&a), Hash(&a))
	assert.Equal(t, Hash(&a), Hash(&b))

	sa, err := cache.CreateBlendState(a)
	require.NoError(t, err)
	sb, err := cache.CreateBlendState(b)
	require.NoError(t, err)

	assert.Same(t, sa, sb)
	assert.Equal(t, 1, factory.created)
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Entries: 1}, cache.Stats())
	assert.EqualValues(t, 3, sa.RefCount())
}

func TestDifferentDescriptorsGetDifferentEntries(t *testing.T) {
	factory := &fakeStateFactory{}
	cache := NewStateCache(factory)

	solid := DefaultRasterizerState()
	wire := DefaultRasterizerState()
	wire.FillMode = FillModeWireframe

	s1, err := cache.CreateRasterizerState(solid)
	require.NoError(t, err)
	s2, err := cache.CreateRasterizerState(wire)
	require.NoError(t, err)

	assert.NotSame(t, s1, s2)
	assert.NotEqual(t, s1.Hash(), s2.Hash())
	assert.Equal(t, 2, cache.Len())
}

func TestHashCollisionComparesFullDescriptor(t *testing.T) {
	factory := &fakeStateFactory{}
	cache := NewStateCache(factory, WithHashFunc(func([]byte) uint32 { return 42 }))

	linear := DefaultSamplerState()
	clamp := DefaultSamplerState()
	clamp.AddressU = AddressClamp

	s1, err := cache.CreateSamplerState(linear)
	require.NoError(t, err)
	s2, err := cache.CreateSamplerState(clamp)
	require.NoError(t, err)
	s3, err := cache.CreateSamplerState(linear)
	require.NoError(t, err)

	assert.Equal(t, s1.Hash(), s2.Hash())
	assert.NotSame(t, s1, s2)
	assert.Same(t, s1, s3)
	assert.Equal(t, AddressClamp, s2.Desc().AddressU)
	assert.Equal(t, 2, factory.created)
}

func TestBackendRefusalIsNotCached(t *testing.T) {
	refused := errors.New("device cannot do that")
	factory := &fakeStateFactory{refuse: refused}
	cache := NewStateCache(factory)

	_, err := cache.CreateDepthStencilState(DefaultDepthStencilState())
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 0, cache.Len())

	factory.refuse = nil
	s, err := cache.CreateDepthStencilState(DefaultDepthStencilState())
	require.NoError(t, err)
	assert.NotNil(t, s.Handle())
	assert.Equal(t, 1, cache.Len())
}

func TestInvalidDescriptorRejected(t *testing.T) {
	factory := &fakeStateFactory{}
	cache := NewStateCache(factory)

	ss := DefaultSamplerState()
	ss.MinFilter = FilterAnisotropic
	ss.MaxAnisotropy = 0
	_, err := cache.CreateSamplerState(ss)
	assert.ErrorIs(t, err, core.ErrUnsupportedState)

	ds := DefaultDepthStencilState()
	ds.DepthTestEnable = false
	_, err = cache.CreateDepthStencilState(ds)
	assert.ErrorIs(t, err, core.ErrUnsupportedState)

	bs := DefaultBlendState()
	bs.RenderTargets[3].SrcBlend = BlendFactor(200)
	_, err = cache.CreateBlendState(bs)
	assert.ErrorIs(t, err, core.ErrUnsupportedState)

	assert.Equal(t, 0, factory.created)
	assert.Equal(t, 0, cache.Len())
}

func TestPurgeDropsUnreferencedStates(t *testing.T) {
	factory := &fakeStateFactory{}
	cache := NewStateCache(factory)

	kept, err := cache.CreateBlendState(DefaultBlendState())
	require.NoError(t, err)
	dropped, err := cache.CreateBlendState(AlphaBlendState())
	require.NoError(t, err)
	dropped.Release()

	assert.Equal(t, 1, cache.Purge())
	assert.Equal(t, 1, factory.destroyed)
	assert.Equal(t, 1, cache.Len())
	assert.EqualValues(t, 2, kept.RefCount())
}

func TestDescriptorBytesAreStable(t *testing.T) {
	a := DefaultSamplerState()
	b := DefaultSamplerState()
	assert.Equal(t, a.CRCData(), b.CRCData())
	b.MipLODBias = 0.5
	assert.NotEqual(t, a.CRCData(), b.CRCData())
}
