// Copyright 2024 The vkwave-go Authors. All rights reserved.

package pipeline

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestLoadOpConv(t *testing.T) {
	assert.Equal(t, vk.AttachmentLoadOpClear, LClear.vk())
	assert.Equal(t, vk.AttachmentLoadOpLoad, LLoad.vk())
	assert.Equal(t, vk.AttachmentLoadOpDontCare, LDontCare.vk())
}

func TestStoreOpConv(t *testing.T) {
	assert.Equal(t, vk.AttachmentStoreOpStore, SStore.vk())
	assert.Equal(t, vk.AttachmentStoreOpDontCare, SDontCare.vk())
}

func TestCullModeConv(t *testing.T) {
	assert.Equal(t, vk.CullModeFlags(vk.CullModeNone), CullNone.vk())
	assert.Equal(t, vk.CullModeFlags(vk.CullModeFrontBit), CullFront.vk())
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), CullBack.vk())
}

func TestBoolToUint(t *testing.T) {
	assert.Equal(t, uint32(1), boolToUint(true))
	assert.Equal(t, uint32(0), boolToUint(false))
}

func TestBlendStateAlphaUsesOneMinusSrcAlpha(t *testing.T) {
	blend := blendState(PipelineSpec{Blend: true})
	a := blend.PAttachments[0]
	assert.Equal(t, vk.True, a.BlendEnable)
	assert.Equal(t, vk.BlendFactorSrcAlpha, a.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, a.DstColorBlendFactor)
	assert.Equal(t, vk.BlendFactorOne, a.SrcAlphaBlendFactor)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, a.DstAlphaBlendFactor)
}

func TestBlendStateDisabledLeavesFactorsZero(t *testing.T) {
	blend := blendState(PipelineSpec{Blend: false})
	a := blend.PAttachments[0]
	assert.Equal(t, vk.Bool32(0), a.BlendEnable)
	assert.Equal(t, vk.BlendFactorZero, a.SrcColorBlendFactor)
	assert.Equal(t, vk.BlendFactorZero, a.DstColorBlendFactor)
	assert.Equal(t, vk.BlendFactorZero, a.SrcAlphaBlendFactor)
	assert.Equal(t, vk.BlendFactorZero, a.DstAlphaBlendFactor)
}

func TestDepthWriteGatedOnDepthTestAndDepthWrite(t *testing.T) {
	cases := []struct {
		name       string
		depthTest  bool
		depthWrite bool
		want       vk.Bool32
	}{
		{"both enabled", true, true, vk.True},
		{"write without test", false, true, vk.Bool32(0)},
		{"test without write", true, false, vk.Bool32(0)},
		{"neither", false, false, vk.Bool32(0)},
	}
	for _, c := range cases {
		depth := depthStencilState(PipelineSpec{DepthTest: c.depthTest, DepthWrite: c.depthWrite})
		assert.Equal(t, c.want, depth.DepthWriteEnable, c.name)
	}
}

func TestDynamicStatesAlwaysIncludesViewportAndScissor(t *testing.T) {
	states := dynamicStates(PipelineSpec{})
	assert.Equal(t, []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}, states)
}

func TestDynamicStatesAppendsConditionalFlags(t *testing.T) {
	states := dynamicStates(PipelineSpec{
		DynamicCull:             true,
		DynamicDepthWrite:       true,
		DynamicStencilReference: true,
	})
	assert.Equal(t, []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateCullMode,
		vk.DynamicStateDepthWriteEnable,
		vk.DynamicStateStencilReference,
	}, states)
}
