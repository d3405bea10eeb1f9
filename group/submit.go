// Copyright 2024 The vkwave-go Authors. All rights reserved.

package group

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

func unsafePointer(p *vk.TimelineSemaphoreSubmitInfo) unsafe.Pointer {
	return unsafe.Pointer(p)
}

// Submit records and submits slot's command buffer: resets the pool,
// opens the render pass, invokes the record callback, ends the render
// pass, invokes the optional post-record callback, then submits with the
// timeline counter as the CPU-GPU sync point. No fence is passed unless
// one was installed with ArmFence, in which case that fence is passed to
// this submission only.
//
// waits are the caller-supplied semaphores to wait on before the color
// attachment output stage; a Wait with Value 0 is treated as binary.
// signalBinaryPresent additionally signals this slot's present semaphore,
// for WSI hand-off.
func (g *ExecutionGroup) Submit(slot int, waits []Wait, queue vk.Queue, elapsedTime float64, signalBinaryPresent bool) error {
	if slot < 0 || slot >= len(g.frames) {
		return fmt.Errorf("group %q: Submit: slot %d out of range", g.Name, slot)
	}

	g.lastRunTime = elapsedTime
	g.currentSlot = slot
	f := g.frames[slot]
	dev := g.device.LogicalHandle()

	if res := vk.ResetCommandPool(dev, f.CmdPool, 0); res != vk.Success {
		return fmt.Errorf("group %q: vkResetCommandPool failed: %d", g.Name, res)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(f.CmdBuffer, &beginInfo); res != vk.Success {
		return fmt.Errorf("group %q: vkBeginCommandBuffer failed: %d", g.Name, res)
	}

	g.recordRenderPass(f)

	if g.Record != nil {
		g.Record(f.CmdBuffer, slot)
	}

	vk.CmdEndRenderPass(f.CmdBuffer)

	if g.PostRecord != nil {
		g.PostRecord(f.CmdBuffer, slot)
	}

	if res := vk.EndCommandBuffer(f.CmdBuffer); res != vk.Success {
		return fmt.Errorf("group %q: vkEndCommandBuffer failed: %d", g.Name, res)
	}

	signalValue := g.nextSignalValue
	g.nextSignalValue++
	g.slotSignalValues[slot] = signalValue

	waitSems := make([]vk.Semaphore, len(waits))
	waitValues := make([]uint64, len(waits))
	waitStages := make([]vk.PipelineStageFlags, len(waits))
	for i, w := range waits {
		waitSems[i] = w.Semaphore
		waitValues[i] = w.Value
		waitStages[i] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}

	signalSems := []vk.Semaphore{g.timeline}
	signalValues := []uint64{signalValue}
	if signalBinaryPresent {
		signalSems = append(signalSems, g.presentSems[slot])
		signalValues = append(signalValues, 0)
	}

	timelineInfo := vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
		WaitSemaphoreValueCount:   uint32(len(waitValues)),
		PWaitSemaphoreValues:      waitValues,
		SignalSemaphoreValueCount: uint32(len(signalValues)),
		PSignalSemaphoreValues:    signalValues,
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                unsafePointer(&timelineInfo),
		WaitSemaphoreCount:   uint32(len(waitSems)),
		PWaitSemaphores:      waitSems,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{f.CmdBuffer},
		SignalSemaphoreCount: uint32(len(signalSems)),
		PSignalSemaphores:    signalSems,
	}

	fence := g.nextFence
	g.nextFence = vk.NullFence

	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
		return fmt.Errorf("group %q: vkQueueSubmit failed: %d", g.Name, res)
	}
	return nil
}

// PresentSemaphore returns slot's binary present semaphore, consumed by
// vkQueuePresentKHR.
func (g *ExecutionGroup) PresentSemaphore(slot int) vk.Semaphore {
	return g.presentSems[slot]
}

func (g *ExecutionGroup) recordRenderPass(f FrameResources) {
	clear := []vk.ClearValue{colorClear(g.clear.Color)}
	if g.clear.HasDepth {
		clear = append(clear, depthClear(g.clear.Depth, g.clear.Stencil))
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  g.renderPass,
		Framebuffer: f.Framebuf,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: g.extentWidth, Height: g.extentHeight},
		},
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}
	vk.CmdBeginRenderPass(f.CmdBuffer, &beginInfo, vk.SubpassContentsInline)
}

func colorClear(rgba [4]float32) vk.ClearValue {
	var cv vk.ClearValue
	cv.SetColor(rgba[:])
	return cv
}

func depthClear(depth float32, stencil uint32) vk.ClearValue {
	var cv vk.ClearValue
	cv.SetDepthStencil(depth, stencil)
	return cv
}
