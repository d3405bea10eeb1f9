// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package pipeline builds graphics pipelines and render passes from a
// declarative PipelineSpec, deriving descriptor set layouts and
// push-constant ranges from shader reflection instead of a hand-written
// registry (see package reflect).
package pipeline

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/vkdevice"
)

// LoadOp is the type of an attachment's load operation.
type LoadOp int

// Load operations.
const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is the type of an attachment's store operation.
type StoreOp int

// Store operations.
const (
	SDontCare StoreOp = iota
	SStore
)

func (op LoadOp) vk() vk.AttachmentLoadOp {
	switch op {
	case LClear:
		return vk.AttachmentLoadOpClear
	case LLoad:
		return vk.AttachmentLoadOpLoad
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func (op StoreOp) vk() vk.AttachmentStoreOp {
	if op == SStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

// Attachment describes the configuration of a single render target for use
// in a render pass.
type Attachment struct {
	Format        vk.Format
	Samples       vk.SampleCountFlagBits
	Load          LoadOp
	Store         StoreOp
	InitialLayout vk.ImageLayout
	FinalLayout   vk.ImageLayout
}

// Subpass defines a single subpass of a render pass. Color, DS and Resolve
// hold indices into the render pass' attachment list. DS of -1 means no
// depth-stencil attachment is used.
type Subpass struct {
	Color   []int
	DS      int
	Resolve []int
}

// NewRenderPass creates a render pass from an arbitrary attachment and
// subpass list. The three recipes below (Scene, Composite, Overlay) cover
// the common cases; callers needing something else can call this directly.
func NewRenderPass(device vkdevice.Device, att []Attachment, sub []Subpass) (vk.RenderPass, error) {
	if len(sub) == 0 {
		return vk.NullRenderPass, fmt.Errorf("pipeline: render pass needs at least one subpass")
	}

	vAtt := make([]vk.AttachmentDescription, len(att))
	for i, a := range att {
		vAtt[i] = vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        a.Samples,
			LoadOp:         a.Load.vk(),
			StoreOp:        a.Store.vk(),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  a.InitialLayout,
			FinalLayout:    a.FinalLayout,
		}
	}

	// Attachment references are allocated up front and sliced per subpass,
	// avoiding a separate heap allocation per subpass.
	var refs []vk.AttachmentReference
	subRanges := make([][3]int, len(sub)) // [colorStart, dsIdx(-1 none), resolveStart]
	for i, s := range sub {
		colorStart := len(refs)
		for _, idx := range s.Color {
			refs = append(refs, vk.AttachmentReference{
				Attachment: uint32(idx),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
		}
		dsIdx := -1
		if s.DS >= 0 {
			dsIdx = len(refs)
			refs = append(refs, vk.AttachmentReference{
				Attachment: uint32(s.DS),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			})
		}
		resolveStart := -1
		if len(s.Resolve) > 0 {
			resolveStart = len(refs)
			for _, idx := range s.Resolve {
				refs = append(refs, vk.AttachmentReference{
					Attachment: uint32(idx),
					Layout:     vk.ImageLayoutColorAttachmentOptimal,
				})
			}
		}
		subRanges[i] = [3]int{colorStart, dsIdx, resolveStart}
	}

	vSub := make([]vk.SubpassDescription, len(sub))
	for i, s := range sub {
		colorStart, dsIdx, resolveStart := subRanges[i][0], subRanges[i][1], subRanges[i][2]
		vSub[i] = vk.SubpassDescription{
			PipelineBindPoint: vk.PipelineBindPointGraphics,
		}
		if n := len(s.Color); n > 0 {
			vSub[i].ColorAttachmentCount = uint32(n)
			vSub[i].PColorAttachments = refs[colorStart : colorStart+n]
		}
		if dsIdx >= 0 {
			vSub[i].PDepthStencilAttachment = &refs[dsIdx]
		}
		if resolveStart >= 0 {
			vSub[i].PResolveAttachments = refs[resolveStart : resolveStart+len(s.Resolve)]
		}
	}

	// Only an external-to-subpass-0 dependency is declared; no explicit
	// subpass-to-external dependency is added. The three standard recipes
	// each have a single subpass, so no attachment usage overlaps across
	// subpasses within the same pass.
	deps := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) | vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) | vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask: 0,
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		},
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(vAtt)),
		PAttachments:    vAtt,
		SubpassCount:    uint32(len(vSub)),
		PSubpasses:      vSub,
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(device.LogicalHandle(), &info, nil, &pass); res != vk.Success {
		return vk.NullRenderPass, fmt.Errorf("pipeline: vkCreateRenderPass failed: %d", res)
	}
	return pass, nil
}

// SceneRenderPass builds the offscreen HDR scene pass: a single
// floating-point color attachment, a depth-stencil attachment, and an
// optional MSAA resolve attachment when samples is greater than 1x.
func SceneRenderPass(device vkdevice.Device, colorFormat, depthFormat vk.Format, samples vk.SampleCountFlagBits) (vk.RenderPass, error) {
	att, sub := SceneRecipe(colorFormat, depthFormat, samples)
	return NewRenderPass(device, att, sub)
}

// SceneRecipe returns the attachment and subpass description for
// SceneRenderPass without creating a vk.RenderPass, so the layout itself
// can be tested without a device.
func SceneRecipe(colorFormat, depthFormat vk.Format, samples vk.SampleCountFlagBits) ([]Attachment, []Subpass) {
	att := []Attachment{
		{
			Format:        colorFormat,
			Samples:       samples,
			Load:          LClear,
			Store:         SStore,
			InitialLayout: vk.ImageLayoutUndefined,
			FinalLayout:   vk.ImageLayoutShaderReadOnlyOptimal,
		},
		{
			Format:        depthFormat,
			Samples:       samples,
			Load:          LClear,
			Store:         SDontCare,
			InitialLayout: vk.ImageLayoutUndefined,
			FinalLayout:   vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	sub := Subpass{Color: []int{0}, DS: 1}

	if samples > vk.SampleCount1Bit {
		// The resolve target is always single-sampled and stored; the MSAA
		// attachment itself becomes store-don't-care since only the
		// resolved image is consumed downstream.
		att[0].Store = SDontCare
		att = append(att, Attachment{
			Format:        colorFormat,
			Samples:       vk.SampleCount1Bit,
			Load:          LDontCare,
			Store:         SStore,
			InitialLayout: vk.ImageLayoutUndefined,
			FinalLayout:   vk.ImageLayoutShaderReadOnlyOptimal,
		})
		sub.Resolve = []int{2}
	}

	return att, []Subpass{sub}
}

// CompositeRenderPass builds the final swapchain-format pass: a single
// color attachment cleared on load, stored, ending in PresentSrcOptimal
// layout ready for vkQueuePresentKHR.
func CompositeRenderPass(device vkdevice.Device, swapchainFormat vk.Format) (vk.RenderPass, error) {
	att, sub := CompositeRecipe(swapchainFormat)
	return NewRenderPass(device, att, sub)
}

// CompositeRecipe returns the attachment and subpass description for
// CompositeRenderPass without creating a vk.RenderPass.
func CompositeRecipe(swapchainFormat vk.Format) ([]Attachment, []Subpass) {
	att := []Attachment{
		{
			Format:        swapchainFormat,
			Samples:       vk.SampleCount1Bit,
			Load:          LClear,
			Store:         SStore,
			InitialLayout: vk.ImageLayoutUndefined,
			FinalLayout:   vk.ImageLayoutPresentSrc,
		},
	}
	return att, []Subpass{{Color: []int{0}, DS: -1}}
}

// OverlayRenderPass builds a pass meant to be chained after the composite
// pass within the same frame (e.g. a debug UI): it loads and preserves
// whatever the composite pass already wrote instead of clearing, and both
// layouts are PresentSrcOptimal since the image is already in presentation
// layout when this pass begins.
func OverlayRenderPass(device vkdevice.Device, swapchainFormat vk.Format) (vk.RenderPass, error) {
	att, sub := OverlayRecipe(swapchainFormat)
	return NewRenderPass(device, att, sub)
}

// OverlayRecipe returns the attachment and subpass description for
// OverlayRenderPass without creating a vk.RenderPass.
func OverlayRecipe(swapchainFormat vk.Format) ([]Attachment, []Subpass) {
	att := []Attachment{
		{
			Format:        swapchainFormat,
			Samples:       vk.SampleCount1Bit,
			Load:          LLoad,
			Store:         SStore,
			InitialLayout: vk.ImageLayoutPresentSrc,
			FinalLayout:   vk.ImageLayoutPresentSrc,
		},
	}
	return att, []Subpass{{Color: []int{0}, DS: -1}}
}
