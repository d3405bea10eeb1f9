// Copyright 2024 The vkwave-go Authors. All rights reserved.

package pipeline

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/reflect"
	"github.com/vkwave-go/vkwave/vkdevice"
)

// CullMode is a narrowed rasterization-state enum covering what vkwave's
// pipeline recipes need.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

func (c CullMode) vk() vk.CullModeFlags {
	switch c {
	case CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

// VertexInput describes a single vertex attribute. Binding 0 is assumed:
// vkwave draws from a single interleaved vertex buffer per mesh.
type VertexInput struct {
	Location uint32
	Format   vk.Format
	Offset   uint32
}

// PipelineSpec declaratively describes a graphics pipeline. Build derives
// the descriptor set layouts and push-constant ranges from shader
// reflection instead of requiring the caller to hand-write them.
type PipelineSpec struct {
	Name string

	// Stages holds the compiled SPIR-V for each shader stage. Compilation
	// itself (GLSL/HLSL to SPIR-V) happens outside this package.
	Stages []reflect.StageCode

	RenderPass vk.RenderPass
	Subpass    uint32

	VertexStride uint32
	VertexInputs []VertexInput

	Topology vk.PrimitiveTopology
	Cull     CullMode
	Wireframe bool

	Samples     vk.SampleCountFlagBits
	DepthTest   bool
	DepthWrite  bool
	DepthCompare vk.CompareOp

	Blend bool

	// DynamicCull, when set, makes cull mode a dynamic pipeline state
	// (vkCmdSetCullMode) instead of baking spec.Cull into the pipeline.
	DynamicCull bool
	// DynamicDepthWrite, when set, makes depth-write enable a dynamic
	// pipeline state (vkCmdSetDepthWriteEnable) instead of the static
	// DepthTest && DepthWrite gate below.
	DynamicDepthWrite bool
	// DynamicStencilReference, when set, makes the stencil reference value
	// a dynamic pipeline state (vkCmdSetStencilReference).
	DynamicStencilReference bool

	// Debug enables shader-reflection cross-checks (ValidateUBOSize,
	// ValidatePushConstantSize) meant for development builds only.
	Debug bool
}

// Built is the output of Build: the pipeline plus everything needed to
// bind and destroy it.
type Built struct {
	Pipeline       vk.Pipeline
	Layout         vk.PipelineLayout
	SetLayouts     []vk.DescriptorSetLayout
	Reflection     *reflect.Reflection
	device         vkdevice.Device
}

// Destroy releases the pipeline, its layout and its descriptor set
// layouts. It does not touch the render pass, which the caller owns.
func (b *Built) Destroy() {
	dev := b.device.LogicalHandle()
	if b.Pipeline != vk.NullPipeline {
		vk.DestroyPipeline(dev, b.Pipeline, nil)
	}
	if b.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dev, b.Layout, nil)
	}
	for _, sl := range b.SetLayouts {
		vk.DestroyDescriptorSetLayout(dev, sl, nil)
	}
}

func stageVk(stage vk.ShaderStageFlagBits) vk.ShaderStageFlagBits { return stage }

func bindingFlags(b reflect.Binding) vk.DescriptorSetLayoutBinding {
	count := uint32(b.Count)
	if count == 0 {
		count = 1
	}
	return vk.DescriptorSetLayoutBinding{
		Binding:         uint32(b.Index),
		DescriptorType:  b.Type,
		DescriptorCount: count,
		StageFlags:      b.StageMask,
	}
}

func createSetLayout(device vkdevice.Device, set reflect.DescriptorSet) (vk.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(set.Bindings))
	for i, b := range set.Bindings {
		bindings[i] = bindingFlags(b)
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(device.LogicalHandle(), &info, nil, &layout); res != vk.Success {
		return vk.NullDescriptorSetLayout, fmt.Errorf("pipeline: vkCreateDescriptorSetLayout failed: %d", res)
	}
	return layout, nil
}

func createPipelineLayout(device vkdevice.Device, setLayouts []vk.DescriptorSetLayout, pushConstants []reflect.PushConstantRange) (vk.PipelineLayout, error) {
	ranges := make([]vk.PushConstantRange, len(pushConstants))
	for i, pc := range pushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: pc.StageMask,
			Offset:     uint32(pc.Offset),
			Size:       uint32(pc.Size),
		}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(device.LogicalHandle(), &info, nil, &layout); res != vk.Success {
		return vk.NullPipelineLayout, fmt.Errorf("pipeline: vkCreatePipelineLayout failed: %d", res)
	}
	return layout, nil
}

// Build compiles a PipelineSpec into a graphics pipeline. It reflects the
// shader stages to derive descriptor set layouts and push-constant ranges,
// builds a pipeline layout from them, then creates the graphics pipeline
// itself bound to spec.RenderPass/spec.Subpass.
func Build(device vkdevice.Device, spec PipelineSpec) (*Built, error) {
	if len(spec.Stages) == 0 {
		return nil, fmt.Errorf("pipeline %q: at least one shader stage is required", spec.Name)
	}
	if spec.RenderPass == vk.NullRenderPass {
		return nil, fmt.Errorf("pipeline %q: render pass is required", spec.Name)
	}

	refl, err := reflect.Reflect(spec.Stages, spec.Debug)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: reflection failed: %w", spec.Name, err)
	}

	setLayouts := make([]vk.DescriptorSetLayout, len(refl.Sets))
	for i, set := range refl.Sets {
		sl, err := createSetLayout(device, set)
		if err != nil {
			for _, done := range setLayouts[:i] {
				vk.DestroyDescriptorSetLayout(device.LogicalHandle(), done, nil)
			}
			return nil, fmt.Errorf("pipeline %q: %w", spec.Name, err)
		}
		setLayouts[i] = sl
	}

	layout, err := createPipelineLayout(device, setLayouts, refl.PushConstants)
	if err != nil {
		for _, sl := range setLayouts {
			vk.DestroyDescriptorSetLayout(device.LogicalHandle(), sl, nil)
		}
		return nil, fmt.Errorf("pipeline %q: %w", spec.Name, err)
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(spec.Stages))
	for i, s := range spec.Stages {
		module, err := createShaderModule(device, s.Code)
		if err != nil {
			vk.DestroyPipelineLayout(device.LogicalHandle(), layout, nil)
			for _, sl := range setLayouts {
				vk.DestroyDescriptorSetLayout(device.LogicalHandle(), sl, nil)
			}
			return nil, fmt.Errorf("pipeline %q: %w", spec.Name, err)
		}
		defer vk.DestroyShaderModule(device.LogicalHandle(), module, nil)
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stageVk(s.Stage),
			Module: module,
			PName:  "main\x00",
		}
	}

	attrs := make([]vk.VertexInputAttributeDescription, len(spec.VertexInputs))
	for i, vi := range spec.VertexInputs {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: vi.Location,
			Binding:  0,
			Format:   vi.Format,
			Offset:   vi.Offset,
		}
	}
	var bindings []vk.VertexInputBindingDescription
	if spec.VertexStride > 0 {
		bindings = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    spec.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	topology := spec.Topology
	if topology == 0 && len(spec.VertexInputs) > 0 {
		topology = vk.PrimitiveTopologyTriangleList
	}
	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology,
	}

	// Viewport and scissor are set dynamically: framebuffer size tracks
	// the swapchain/offscreen target and a pipeline built ahead of a
	// resize has no way to know it.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	fill := vk.PolygonModeFill
	if spec.Wireframe {
		fill = vk.PolygonModeLine
	}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: fill,
		CullMode:    spec.Cull.vk(),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}

	samples := spec.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	ms := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: samples,
		MinSampleShading:     1,
	}

	depth := depthStencilState(spec)
	blend := blendState(spec)

	dynStates := dynamicStates(spec)
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynStates)),
		PDynamicStates:    dynStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &ms,
		PDepthStencilState:  &depth,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          spec.RenderPass,
		Subpass:             spec.Subpass,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(device.LogicalHandle(), vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(device.LogicalHandle(), layout, nil)
		for _, sl := range setLayouts {
			vk.DestroyDescriptorSetLayout(device.LogicalHandle(), sl, nil)
		}
		return nil, fmt.Errorf("pipeline %q: vkCreateGraphicsPipelines failed: %d", spec.Name, res)
	}

	return &Built{
		Pipeline:   pipelines[0],
		Layout:     layout,
		SetLayouts: setLayouts,
		Reflection: refl,
		device:     device,
	}, nil
}

// depthStencilState derives the depth/stencil state: depth-write is enabled
// iff both DepthTest and DepthWrite are set, unless DynamicDepthWrite hands
// that decision to vkCmdSetDepthWriteEnable instead.
func depthStencilState(spec PipelineSpec) vk.PipelineDepthStencilStateCreateInfo {
	depthCompare := spec.DepthCompare
	if depthCompare == 0 {
		depthCompare = vk.CompareOpLess
	}
	depthWrite := spec.DepthTest && spec.DepthWrite
	return vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.Bool32(boolToUint(spec.DepthTest)),
		DepthWriteEnable: vk.Bool32(boolToUint(depthWrite)),
		DepthCompareOp:   depthCompare,
	}
}

// blendState derives the color-blend state. Per-component factors follow
// the standard "over" compositing operator: Color = src*SrcAlpha +
// dst*(1-SrcAlpha), Alpha = src*1 + dst*(1-SrcAlpha).
func blendState(spec PipelineSpec) vk.PipelineColorBlendStateCreateInfo {
	attachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if spec.Blend {
		attachment.BlendEnable = vk.True
		attachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		attachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		attachment.ColorBlendOp = vk.BlendOpAdd
		attachment.SrcAlphaBlendFactor = vk.BlendFactorOne
		attachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		attachment.AlphaBlendOp = vk.BlendOpAdd
	}
	return vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{attachment},
	}
}

// dynamicStates derives the pipeline's dynamic-state list. Viewport and
// scissor are always dynamic; cull mode, depth-write enable and stencil
// reference are conditional on the matching PipelineSpec flag.
func dynamicStates(spec PipelineSpec) []vk.DynamicState {
	states := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	if spec.DynamicCull {
		states = append(states, vk.DynamicStateCullMode)
	}
	if spec.DynamicDepthWrite {
		states = append(states, vk.DynamicStateDepthWriteEnable)
	}
	if spec.DynamicStencilReference {
		states = append(states, vk.DynamicStateStencilReference)
	}
	return states
}

func createShaderModule(device vkdevice.Device, code []uint32) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(device.LogicalHandle(), &info, nil, &module); res != vk.Success {
		return vk.NullShaderModule, fmt.Errorf("vkCreateShaderModule failed: %d", res)
	}
	return module, nil
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
