package renderer

import (
	"fmt"

	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

type RendererType uint8

const (
	Reference RendererType = iota
	Vulkan
	DirectX
	Metal
	OpenGL
)

func (t RendererType) String() string {
	switch t {
	case Reference:
		return "reference"
	case Vulkan:
		return "vulkan"
	case DirectX:
		return "directx"
	case Metal:
		return "metal"
	case OpenGL:
		return "opengl"
	}
	return fmt.Sprintf("RendererType(%d)", t)
}

// ParseRendererType maps a configuration name to a RendererType.
func ParseRendererType(name string) (RendererType, error) {
	for t := Reference; t <= OpenGL; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return Reference, fmt.Errorf("unknown renderer backend %q", name)
}

type TransformType uint8

const (
	TransformWorld TransformType = iota
	TransformView
	TransformProjection
)

type ClearFlags uint8

const (
	ClearColour ClearFlags = 1 << iota
	ClearDepth
	ClearStencil
	ClearAll = ClearColour | ClearDepth | ClearStencil
)

type Viewport struct {
	X, Y          int32
	Width, Height uint32
	MinDepth      float32
	MaxDepth      float32
}

// AspectRatio returns width/height, or 1 for an empty viewport.
func (v Viewport) AspectRatio() float32 {
	if v.Height == 0 {
		return 1
	}
	return float32(v.Width) / float32(v.Height)
}

type BackendConfig struct {
	ApplicationName string
	Width           uint32
	Height          uint32
}

/**
 * @brief RendererBackend is what a concrete graphics API implements. The
 * frame, binding and draw methods are only ever invoked from whoever executes
 * RHI commands. The factory methods must be safe for concurrent use.
 */
type RendererBackend interface {
	rhi.StateFactory
	rhi.BufferFactory

	Type() RendererType
	Initialize(config BackendConfig) error
	Shutdown() error
	Resized(width, height uint32) error

	BeginFrame() error
	EndFrame() error
	Clear(flags ClearFlags, colour math.Vec4, depth float32, stencil uint32) error
	SetViewport(viewport Viewport) error
	SetTransform(kind TransformType, m math.Mat4) error

	SetBlendState(state *rhi.BlendStateObject) error
	SetDepthStencilState(state *rhi.DepthStencilStateObject) error
	SetRasterizerState(state *rhi.RasterizerStateObject) error
	SetSamplerState(unit int, state *rhi.SamplerStateObject) error
	SetTexture(unit int, texture *rhi.PixelBuffer) error

	SetVertexDeclaration(decl *rhi.VertexDeclaration) error
	SetVertexBuffer(stream int, vb *rhi.VertexBuffer) error
	SetIndexBuffer(ib *rhi.IndexBuffer) error
	SetLights(lights []metadata.LightData) error

	DrawPrimitives(primitive rhi.PrimitiveType, startVertex, primitiveCount int) error
	DrawIndexedPrimitives(primitive rhi.PrimitiveType, baseVertex, startIndex, primitiveCount int) error
}
