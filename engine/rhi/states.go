package rhi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/tiny3d/engine/core"
)

const MaxRenderTargets = 8

type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcColor
	BlendFactorInvSrcColor
	BlendFactorSrcAlpha
	BlendFactorInvSrcAlpha
	BlendFactorDstAlpha
	BlendFactorInvDstAlpha
	BlendFactorDstColor
	BlendFactorInvDstColor
	BlendFactorSrcAlphaSat
	blendFactorCount
)

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
	blendOpCount
)

type ColorWriteMask uint8

const (
	ColorWriteRed ColorWriteMask = 1 << iota
	ColorWriteGreen
	ColorWriteBlue
	ColorWriteAlpha
	ColorWriteAll = ColorWriteRed | ColorWriteGreen | ColorWriteBlue | ColorWriteAlpha
)

type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
	compareFuncCount
)

type StencilOp uint8

const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrSat
	StencilOpDecrSat
	StencilOpInvert
	StencilOpIncrWrap
	StencilOpDecrWrap
	stencilOpCount
)

type FillMode uint8

const (
	FillModeSolid FillMode = iota
	FillModeWireframe
	FillModePoint
	fillModeCount
)

func (f FillMode) String() string {
	switch f {
	case FillModeSolid:
		return "solid"
	case FillModeWireframe:
		return "wireframe"
	case FillModePoint:
		return "point"
	}
	return fmt.Sprintf("FillMode(%d)", f)
}

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
	cullModeCount
)

type FilterType uint8

const (
	FilterPoint FilterType = iota
	FilterLinear
	FilterAnisotropic
	filterTypeCount
)

type TextureAddressMode uint8

const (
	AddressWrap TextureAddressMode = iota
	AddressMirror
	AddressClamp
	AddressBorder
	AddressMirrorOnce
	addressModeCount
)

// Descriptor is the plain-data description of one pipeline state block.
// CRCData is the exact byte range that identifies the state.
type Descriptor interface {
	CRCData() []byte
	Validate() error
}

func encodeDescriptor(desc any) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, desc); err != nil {
		// descriptors only hold fixed-size fields
		panic(fmt.Errorf("encode %T: %w", desc, err))
	}
	return buf.Bytes()
}

// Hash returns the CRC-32 of a descriptor's identifying bytes.
func Hash(d Descriptor) uint32 {
	return crc32.ChecksumIEEE(d.CRCData())
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), core.ErrUnsupportedState)
}

type RenderTargetBlend struct {
	BlendEnable   bool
	SrcBlend      BlendFactor
	DstBlend      BlendFactor
	BlendOp       BlendOp
	SrcBlendAlpha BlendFactor
	DstBlendAlpha BlendFactor
	BlendOpAlpha  BlendOp
	WriteMask     ColorWriteMask
}

type BlendState struct {
	AlphaToCoverage  bool
	IndependentBlend bool
	RenderTargets    [MaxRenderTargets]RenderTargetBlend
}

// DefaultBlendState writes colour opaquely to every render target.
func DefaultBlendState() BlendState {
	bs := BlendState{}
	for i := range bs.RenderTargets {
		bs.RenderTargets[i] = RenderTargetBlend{
			SrcBlend:      BlendFactorOne,
			DstBlend:      BlendFactorZero,
			BlendOp:       BlendOpAdd,
			SrcBlendAlpha: BlendFactorOne,
			DstBlendAlpha: BlendFactorZero,
			BlendOpAlpha:  BlendOpAdd,
			WriteMask:     ColorWriteAll,
		}
	}
	return bs
}

// AlphaBlendState is classic src-alpha / inv-src-alpha blending.
func AlphaBlendState() BlendState {
	bs := DefaultBlendState()
	for i := range bs.RenderTargets {
		rt := &bs.RenderTargets[i]
		rt.BlendEnable = true
		rt.SrcBlend = BlendFactorSrcAlpha
		rt.DstBlend = BlendFactorInvSrcAlpha
		rt.SrcBlendAlpha = BlendFactorOne
		rt.DstBlendAlpha = BlendFactorInvSrcAlpha
	}
	return bs
}

func (bs *BlendState) CRCData() []byte {
	return encodeDescriptor(bs)
}

func (bs *BlendState) Validate() error {
	for i, rt := range bs.RenderTargets {
		if rt.SrcBlend >= blendFactorCount || rt.DstBlend >= blendFactorCount ||
			rt.SrcBlendAlpha >= blendFactorCount || rt.DstBlendAlpha >= blendFactorCount {
			return unsupported("render target %d: unknown blend factor", i)
		}
		if rt.BlendOp >= blendOpCount || rt.BlendOpAlpha >= blendOpCount {
			return unsupported("render target %d: unknown blend op", i)
		}
		if rt.WriteMask&^ColorWriteAll != 0 {
			return unsupported("render target %d: write mask %#x", i, rt.WriteMask)
		}
	}
	return nil
}

type StencilOpDesc struct {
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
	Func        CompareFunc
}

type DepthStencilState struct {
	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthFunc        CompareFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	StencilRef       uint32
	Front            StencilOpDesc
	Back             StencilOpDesc
}

func DefaultDepthStencilState() DepthStencilState {
	face := StencilOpDesc{
		FailOp:      StencilOpKeep,
		DepthFailOp: StencilOpKeep,
		PassOp:      StencilOpKeep,
		Func:        CompareAlways,
	}
	return DepthStencilState{
		DepthTestEnable:  true,
		DepthWriteEnable: true,
		DepthFunc:        CompareLess,
		StencilReadMask:  0xff,
		StencilWriteMask: 0xff,
		Front:            face,
		Back:             face,
	}
}

func (ds *DepthStencilState) CRCData() []byte {
	return encodeDescriptor(ds)
}

func (ds *DepthStencilState) Validate() error {
	if ds.DepthFunc >= compareFuncCount {
		return unsupported("unknown depth func %d", ds.DepthFunc)
	}
	for _, face := range []StencilOpDesc{ds.Front, ds.Back} {
		if face.FailOp >= stencilOpCount || face.DepthFailOp >= stencilOpCount || face.PassOp >= stencilOpCount {
			return unsupported("unknown stencil op")
		}
		if face.Func >= compareFuncCount {
			return unsupported("unknown stencil func %d", face.Func)
		}
	}
	if ds.DepthWriteEnable && !ds.DepthTestEnable {
		return unsupported("depth write requires depth test")
	}
	return nil
}

type RasterizerState struct {
	FillMode              FillMode
	CullMode              CullMode
	FrontCounterClockwise bool
	DepthBias             int32
	DepthBiasClamp        float32
	SlopeScaledDepthBias  float32
	DepthClipEnable       bool
	ScissorEnable         bool
	MultisampleEnable     bool
	AntialiasedLineEnable bool
}

func DefaultRasterizerState() RasterizerState {
	return RasterizerState{
		FillMode:              FillModeSolid,
		CullMode:              CullModeBack,
		FrontCounterClockwise: true,
		DepthClipEnable:       true,
	}
}

func (rs *RasterizerState) CRCData() []byte {
	return encodeDescriptor(rs)
}

func (rs *RasterizerState) Validate() error {
	if rs.FillMode >= fillModeCount {
		return unsupported("unknown fill mode %d", rs.FillMode)
	}
	if rs.CullMode >= cullModeCount {
		return unsupported("unknown cull mode %d", rs.CullMode)
	}
	if math32.IsNaN(rs.DepthBiasClamp) || math32.IsNaN(rs.SlopeScaledDepthBias) {
		return unsupported("depth bias is NaN")
	}
	return nil
}

type SamplerState struct {
	MinFilter     FilterType
	MagFilter     FilterType
	MipFilter     FilterType
	AddressU      TextureAddressMode
	AddressV      TextureAddressMode
	AddressW      TextureAddressMode
	MipLODBias    float32
	MaxAnisotropy uint32
	CompareFunc   CompareFunc
	BorderColor   [4]float32
	MinLOD        float32
	MaxLOD        float32
}

func DefaultSamplerState() SamplerState {
	return SamplerState{
		MinFilter:     FilterLinear,
		MagFilter:     FilterLinear,
		MipFilter:     FilterLinear,
		AddressU:      AddressWrap,
		AddressV:      AddressWrap,
		AddressW:      AddressWrap,
		MaxAnisotropy: 1,
		CompareFunc:   CompareNever,
		MinLOD:        0,
		MaxLOD:        math32.MaxFloat32,
	}
}

func (ss *SamplerState) CRCData() []byte {
	return encodeDescriptor(ss)
}

func (ss *SamplerState) Anisotropic() bool {
	return ss.MinFilter == FilterAnisotropic || ss.MagFilter == FilterAnisotropic || ss.MipFilter == FilterAnisotropic
}

func (ss *SamplerState) Validate() error {
	if ss.MinFilter >= filterTypeCount || ss.MagFilter >= filterTypeCount || ss.MipFilter >= filterTypeCount {
		return unsupported("unknown filter")
	}
	if ss.MipFilter == FilterAnisotropic {
		return unsupported("anisotropic mip filtering")
	}
	if ss.AddressU >= addressModeCount || ss.AddressV >= addressModeCount || ss.AddressW >= addressModeCount {
		return unsupported("unknown address mode")
	}
	if ss.Anisotropic() && (ss.MaxAnisotropy < 1 || ss.MaxAnisotropy > 16) {
		return unsupported("max anisotropy %d outside [1, 16]", ss.MaxAnisotropy)
	}
	if ss.CompareFunc >= compareFuncCount {
		return unsupported("unknown compare func %d", ss.CompareFunc)
	}
	if ss.MinLOD > ss.MaxLOD {
		return unsupported("min LOD %g above max LOD %g", ss.MinLOD, ss.MaxLOD)
	}
	return nil
}
