package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

var blendFactors = map[rhi.BlendFactor]vk.BlendFactor{
	rhi.BlendFactorZero:        vk.BlendFactorZero,
	rhi.BlendFactorOne:         vk.BlendFactorOne,
	rhi.BlendFactorSrcColor:    vk.BlendFactorSrcColor,
	rhi.BlendFactorInvSrcColor: vk.BlendFactorOneMinusSrcColor,
	rhi.BlendFactorSrcAlpha:    vk.BlendFactorSrcAlpha,
	rhi.BlendFactorInvSrcAlpha: vk.BlendFactorOneMinusSrcAlpha,
	rhi.BlendFactorDstAlpha:    vk.BlendFactorDstAlpha,
	rhi.BlendFactorInvDstAlpha: vk.BlendFactorOneMinusDstAlpha,
	rhi.BlendFactorDstColor:    vk.BlendFactorDstColor,
	rhi.BlendFactorInvDstColor: vk.BlendFactorOneMinusDstColor,
	rhi.BlendFactorSrcAlphaSat: vk.BlendFactorSrcAlphaSaturate,
}

var blendOps = map[rhi.BlendOp]vk.BlendOp{
	rhi.BlendOpAdd:         vk.BlendOpAdd,
	rhi.BlendOpSubtract:    vk.BlendOpSubtract,
	rhi.BlendOpRevSubtract: vk.BlendOpReverseSubtract,
	rhi.BlendOpMin:         vk.BlendOpMin,
	rhi.BlendOpMax:         vk.BlendOpMax,
}

var compareOps = map[rhi.CompareFunc]vk.CompareOp{
	rhi.CompareNever:        vk.CompareOpNever,
	rhi.CompareLess:         vk.CompareOpLess,
	rhi.CompareEqual:        vk.CompareOpEqual,
	rhi.CompareLessEqual:    vk.CompareOpLessOrEqual,
	rhi.CompareGreater:      vk.CompareOpGreater,
	rhi.CompareNotEqual:     vk.CompareOpNotEqual,
	rhi.CompareGreaterEqual: vk.CompareOpGreaterOrEqual,
	rhi.CompareAlways:       vk.CompareOpAlways,
}

var stencilOps = map[rhi.StencilOp]vk.StencilOp{
	rhi.StencilOpKeep:     vk.StencilOpKeep,
	rhi.StencilOpZero:     vk.StencilOpZero,
	rhi.StencilOpReplace:  vk.StencilOpReplace,
	rhi.StencilOpIncrSat:  vk.StencilOpIncrementAndClamp,
	rhi.StencilOpDecrSat:  vk.StencilOpDecrementAndClamp,
	rhi.StencilOpInvert:   vk.StencilOpInvert,
	rhi.StencilOpIncrWrap: vk.StencilOpIncrementAndWrap,
	rhi.StencilOpDecrWrap: vk.StencilOpDecrementAndWrap,
}

var addressModes = map[rhi.TextureAddressMode]vk.SamplerAddressMode{
	rhi.AddressWrap:       vk.SamplerAddressModeRepeat,
	rhi.AddressMirror:     vk.SamplerAddressModeMirroredRepeat,
	rhi.AddressClamp:      vk.SamplerAddressModeClampToEdge,
	rhi.AddressBorder:     vk.SamplerAddressModeClampToBorder,
	rhi.AddressMirrorOnce: vk.SamplerAddressModeMirrorClampToEdge,
}

var topologies = map[rhi.PrimitiveType]vk.PrimitiveTopology{
	rhi.PrimitivePointList:     vk.PrimitiveTopologyPointList,
	rhi.PrimitiveLineList:      vk.PrimitiveTopologyLineList,
	rhi.PrimitiveLineStrip:     vk.PrimitiveTopologyLineStrip,
	rhi.PrimitiveTriangleList:  vk.PrimitiveTopologyTriangleList,
	rhi.PrimitiveTriangleStrip: vk.PrimitiveTopologyTriangleStrip,
	rhi.PrimitiveTriangleFan:   vk.PrimitiveTopologyTriangleFan,
}

var attributeFormats = map[rhi.VertexAttributeType]vk.Format{
	rhi.VertexFloat1: vk.FormatR32Sfloat,
	rhi.VertexFloat2: vk.FormatR32g32Sfloat,
	rhi.VertexFloat3: vk.FormatR32g32b32Sfloat,
	rhi.VertexFloat4: vk.FormatR32g32b32a32Sfloat,
	rhi.VertexColor:  vk.FormatR8g8b8a8Unorm,
	rhi.VertexUByte4: vk.FormatR8g8b8a8Uint,
	rhi.VertexShort2: vk.FormatR16g16Sint,
	rhi.VertexShort4: vk.FormatR16g16b16a16Sint,
}

var pixelFormats = map[rhi.PixelFormat]vk.Format{
	rhi.PixelFormatR8:       vk.FormatR8Unorm,
	rhi.PixelFormatR8G8B8:   vk.FormatR8g8b8Unorm,
	rhi.PixelFormatR8G8B8A8: vk.FormatR8g8b8a8Unorm,
	rhi.PixelFormatB8G8R8A8: vk.FormatB8g8r8a8Unorm,
	rhi.PixelFormatR5G6B5:   vk.FormatR5g6b5UnormPack16,
}

func lookup[K comparable, V any](table map[K]V, key K, what string) (V, error) {
	v, ok := table[key]
	if !ok {
		return v, fmt.Errorf("no vulkan equivalent for %s %v: %w", what, key, core.ErrUnsupportedState)
	}
	return v, nil
}

// PixelFormat returns the image format used for a pixel buffer format.
func PixelFormat(f rhi.PixelFormat) (vk.Format, error) {
	return lookup(pixelFormats, f, "pixel format")
}

// Topology returns the input assembly topology of a primitive type.
func Topology(p rhi.PrimitiveType) (vk.PrimitiveTopology, error) {
	return lookup(topologies, p, "primitive type")
}

/**
 * @brief The colour blend stage of a pipeline, translated once per cached
 * blend state.
 */
type BlendStateInfo struct {
	CreateInfo      vk.PipelineColorBlendStateCreateInfo
	AlphaToCoverage bool
}

func colorWriteMask(m rhi.ColorWriteMask) vk.ColorComponentFlags {
	var flags vk.ColorComponentFlags
	if m&rhi.ColorWriteRed != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentRBit)
	}
	if m&rhi.ColorWriteGreen != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentGBit)
	}
	if m&rhi.ColorWriteBlue != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentBBit)
	}
	if m&rhi.ColorWriteAlpha != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentABit)
	}
	return flags
}

// TranslateBlendState builds one attachment per render target when
// independent blending is on, else a single shared attachment.
func TranslateBlendState(desc *rhi.BlendState) (*BlendStateInfo, error) {
	count := 1
	if desc.IndependentBlend {
		count = rhi.MaxRenderTargets
	}
	attachments := make([]vk.PipelineColorBlendAttachmentState, count)
	for i := range attachments {
		rt := desc.RenderTargets[i]
		src, err := lookup(blendFactors, rt.SrcBlend, "blend factor")
		if err != nil {
			return nil, err
		}
		dst, err := lookup(blendFactors, rt.DstBlend, "blend factor")
		if err != nil {
			return nil, err
		}
		srcAlpha, err := lookup(blendFactors, rt.SrcBlendAlpha, "blend factor")
		if err != nil {
			return nil, err
		}
		dstAlpha, err := lookup(blendFactors, rt.DstBlendAlpha, "blend factor")
		if err != nil {
			return nil, err
		}
		op, err := lookup(blendOps, rt.BlendOp, "blend op")
		if err != nil {
			return nil, err
		}
		opAlpha, err := lookup(blendOps, rt.BlendOpAlpha, "blend op")
		if err != nil {
			return nil, err
		}
		attachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vkBool(rt.BlendEnable),
			SrcColorBlendFactor: src,
			DstColorBlendFactor: dst,
			ColorBlendOp:        op,
			SrcAlphaBlendFactor: srcAlpha,
			DstAlphaBlendFactor: dstAlpha,
			AlphaBlendOp:        opAlpha,
			ColorWriteMask:      colorWriteMask(rt.WriteMask),
		}
	}
	return &BlendStateInfo{
		CreateInfo: vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOpEnable:   vk.False,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
		},
		AlphaToCoverage: desc.AlphaToCoverage,
	}, nil
}

func translateStencilFace(face rhi.StencilOpDesc, desc *rhi.DepthStencilState) (vk.StencilOpState, error) {
	fail, err := lookup(stencilOps, face.FailOp, "stencil op")
	if err != nil {
		return vk.StencilOpState{}, err
	}
	depthFail, err := lookup(stencilOps, face.DepthFailOp, "stencil op")
	if err != nil {
		return vk.StencilOpState{}, err
	}
	pass, err := lookup(stencilOps, face.PassOp, "stencil op")
	if err != nil {
		return vk.StencilOpState{}, err
	}
	cmp, err := lookup(compareOps, face.Func, "compare func")
	if err != nil {
		return vk.StencilOpState{}, err
	}
	return vk.StencilOpState{
		FailOp:      fail,
		PassOp:      pass,
		DepthFailOp: depthFail,
		CompareOp:   cmp,
		CompareMask: uint32(desc.StencilReadMask),
		WriteMask:   uint32(desc.StencilWriteMask),
		Reference:   desc.StencilRef,
	}, nil
}

func TranslateDepthStencilState(desc *rhi.DepthStencilState) (*vk.PipelineDepthStencilStateCreateInfo, error) {
	depthOp, err := lookup(compareOps, desc.DepthFunc, "compare func")
	if err != nil {
		return nil, err
	}
	front, err := translateStencilFace(desc.Front, desc)
	if err != nil {
		return nil, err
	}
	back, err := translateStencilFace(desc.Back, desc)
	if err != nil {
		return nil, err
	}
	return &vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(desc.DepthTestEnable),
		DepthWriteEnable:      vkBool(desc.DepthWriteEnable),
		DepthCompareOp:        depthOp,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vkBool(desc.StencilEnable),
		Front:                 front,
		Back:                  back,
		MinDepthBounds:        0,
		MaxDepthBounds:        1,
	}, nil
}

// RasterizerStateInfo carries the rasterization stage plus the sample count
// the multisample stage derives from it.
type RasterizerStateInfo struct {
	CreateInfo vk.PipelineRasterizationStateCreateInfo
	Samples    vk.SampleCountFlagBits
}

func TranslateRasterizerState(desc *rhi.RasterizerState) (*RasterizerStateInfo, error) {
	info := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vkBool(!desc.DepthClipEnable),
		RasterizerDiscardEnable: vk.False,
		LineWidth:               1.0,
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vkBool(desc.DepthBias != 0 || desc.SlopeScaledDepthBias != 0),
		DepthBiasConstantFactor: float32(desc.DepthBias),
		DepthBiasClamp:          desc.DepthBiasClamp,
		DepthBiasSlopeFactor:    desc.SlopeScaledDepthBias,
	}
	if desc.FrontCounterClockwise {
		info.FrontFace = vk.FrontFaceCounterClockwise
	}
	switch desc.FillMode {
	case rhi.FillModeSolid:
		info.PolygonMode = vk.PolygonModeFill
	case rhi.FillModeWireframe:
		info.PolygonMode = vk.PolygonModeLine
	case rhi.FillModePoint:
		info.PolygonMode = vk.PolygonModePoint
	default:
		return nil, fmt.Errorf("fill mode %s: %w", desc.FillMode, core.ErrUnsupportedState)
	}
	switch desc.CullMode {
	case rhi.CullModeNone:
		info.CullMode = vk.CullModeFlags(vk.CullModeNone)
	case rhi.CullModeFront:
		info.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
	case rhi.CullModeBack:
		info.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return nil, fmt.Errorf("cull mode %d: %w", desc.CullMode, core.ErrUnsupportedState)
	}
	samples := vk.SampleCount1Bit
	if desc.MultisampleEnable {
		samples = vk.SampleCount4Bit
	}
	return &RasterizerStateInfo{CreateInfo: info, Samples: samples}, nil
}

func filter(f rhi.FilterType) vk.Filter {
	if f == rhi.FilterPoint {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func borderColour(c [4]float32) vk.BorderColor {
	switch {
	case c == [4]float32{0, 0, 0, 1}:
		return vk.BorderColorFloatOpaqueBlack
	case c == [4]float32{1, 1, 1, 1}:
		return vk.BorderColorFloatOpaqueWhite
	}
	return vk.BorderColorFloatTransparentBlack
}

func TranslateSamplerState(desc *rhi.SamplerState) (*vk.SamplerCreateInfo, error) {
	u, err := lookup(addressModes, desc.AddressU, "address mode")
	if err != nil {
		return nil, err
	}
	v, err := lookup(addressModes, desc.AddressV, "address mode")
	if err != nil {
		return nil, err
	}
	w, err := lookup(addressModes, desc.AddressW, "address mode")
	if err != nil {
		return nil, err
	}
	cmp, err := lookup(compareOps, desc.CompareFunc, "compare func")
	if err != nil {
		return nil, err
	}
	mip := vk.SamplerMipmapModeLinear
	if desc.MipFilter == rhi.FilterPoint {
		mip = vk.SamplerMipmapModeNearest
	}
	info := &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter(desc.MagFilter),
		MinFilter:               filter(desc.MinFilter),
		MipmapMode:              mip,
		AddressModeU:            u,
		AddressModeV:            v,
		AddressModeW:            w,
		MipLodBias:              desc.MipLODBias,
		AnisotropyEnable:        vkBool(desc.Anisotropic()),
		MaxAnisotropy:           float32(desc.MaxAnisotropy),
		CompareEnable:           vkBool(desc.CompareFunc != rhi.CompareNever),
		CompareOp:               cmp,
		MinLod:                  desc.MinLOD,
		MaxLod:                  desc.MaxLOD,
		BorderColor:             borderColour(desc.BorderColor),
		UnnormalizedCoordinates: vk.False,
	}
	return info, nil
}

// TranslateVertexDeclaration builds the vertex input stage, one binding per
// stream.
func TranslateVertexDeclaration(decl *rhi.VertexDeclaration) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	var bindings []vk.VertexInputBindingDescription
	for _, stream := range decl.Streams() {
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   uint32(stream),
			Stride:    uint32(decl.VertexSize(stream)),
			InputRate: vk.VertexInputRateVertex,
		})
	}
	attrs := decl.Attributes()
	out := make([]vk.VertexInputAttributeDescription, len(attrs))
	for i, a := range attrs {
		format, err := lookup(attributeFormats, a.Type, "vertex attribute type")
		if err != nil {
			return nil, nil, err
		}
		out[i] = vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  uint32(a.Stream),
			Format:   format,
			Offset:   uint32(a.Offset),
		}
	}
	return bindings, out, nil
}
