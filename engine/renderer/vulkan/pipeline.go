package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

// pipelineKey identifies a pipeline by the cached state objects and input
// layout it was built from.
type pipelineKey struct {
	blend        *rhi.BlendStateObject
	depthStencil *rhi.DepthStencilStateObject
	rasterizer   *rhi.RasterizerStateObject
	declaration  *rhi.VertexDeclaration
	topology     vk.PrimitiveTopology
}

type VulkanPipelineConfig struct {
	/** @brief The vertex bindings, one per stream. */
	Bindings []vk.VertexInputBindingDescription
	/** @brief An array of attributes. */
	Attributes []vk.VertexInputAttributeDescription
	/** @brief The initial viewport configuration. */
	Viewport vk.Viewport
	/** @brief The initial scissor configuration. */
	Scissor vk.Rect2D

	Topology     vk.PrimitiveTopology
	Blend        *BlendStateInfo
	DepthStencil *vk.PipelineDepthStencilStateCreateInfo
	Rasterizer   *RasterizerStateInfo
}

/**
 * @brief Holds the fixed-function description of a graphics pipeline.
 */
type VulkanPipeline struct {
	ID            uint32
	InputAssembly vk.PipelineInputAssemblyStateCreateInfo
	VertexInput   vk.PipelineVertexInputStateCreateInfo
	Viewport      vk.PipelineViewportStateCreateInfo
	Rasterization vk.PipelineRasterizationStateCreateInfo
	Multisample   vk.PipelineMultisampleStateCreateInfo
	DepthStencil  vk.PipelineDepthStencilStateCreateInfo
	ColorBlend    vk.PipelineColorBlendStateCreateInfo
	DynamicState  vk.PipelineDynamicStateCreateInfo
}

func NewGraphicsPipeline(id uint32, config *VulkanPipelineConfig) *VulkanPipeline {
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateLineWidth,
	}
	return &VulkanPipeline{
		ID: id,
		InputAssembly: vk.PipelineInputAssemblyStateCreateInfo{
			SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               config.Topology,
			PrimitiveRestartEnable: vk.False,
		},
		VertexInput: vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(config.Bindings)),
			PVertexBindingDescriptions:      config.Bindings,
			VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
			PVertexAttributeDescriptions:    config.Attributes,
		},
		Viewport: vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			PViewports:    []vk.Viewport{config.Viewport},
			ScissorCount:  1,
			PScissors:     []vk.Rect2D{config.Scissor},
		},
		Rasterization: config.Rasterizer.CreateInfo,
		Multisample: vk.PipelineMultisampleStateCreateInfo{
			SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
			SampleShadingEnable:   vk.False,
			RasterizationSamples:  config.Rasterizer.Samples,
			MinSampleShading:      1.0,
			AlphaToCoverageEnable: vkBool(config.Blend.AlphaToCoverage),
			AlphaToOneEnable:      vk.False,
		},
		DepthStencil: *config.DepthStencil,
		ColorBlend:   config.Blend.CreateInfo,
		DynamicState: vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		},
	}
}
