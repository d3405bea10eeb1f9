// Copyright 2024 The vkwave-go Authors. All rights reserved.

package graph

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/group"
	"github.com/vkwave-go/vkwave/vkdevice"
)

// RenderFrame runs one pass of the frame loop. It returns true on a
// normally completed frame (presented or gated out), and false when the
// swapchain reported out-of-date and the caller must call Resize before
// the next RenderFrame.
func (g *RenderGraph) RenderFrame() (bool, error) {
	g.updateClock()

	graphicsQueue, _ := g.device.GraphicsQueue()
	presentQueue, _ := g.device.PresentQueue()

	offscreenDepth := g.offscreenDepth
	if offscreenDepth <= 0 {
		offscreenDepth = len(g.acquireSems)
	}
	offscreenSlot := int(g.cpuFrame % uint64(offscreenDepth))

	for _, eg := range g.offscreen {
		if err := eg.BeginFrame(offscreenSlot, true); err != nil {
			return false, fmt.Errorf("graph: offscreen BeginFrame: %w", err)
		}
		if err := eg.Submit(offscreenSlot, nil, graphicsQueue, g.elapsed, false); err != nil {
			return false, fmt.Errorf("graph: offscreen Submit: %w", err)
		}
	}

	isVsync := isVsyncPresentMode(g.swapchain.PresentMode())
	if !g.present.ShouldSubmit(g.elapsed, isVsync) {
		g.cpuFrame++
		return true, nil
	}

	numSw := len(g.acquireSems)
	semIndex := int(g.cpuFrame % uint64(numSw))

	if prior := g.semToImage[semIndex]; prior >= 0 {
		if err := g.present.BeginFrame(prior, false); err != nil {
			return false, fmt.Errorf("graph: present drain of reused acquire semaphore: %w", err)
		}
	}

	imageIndex, acquireResult, err := g.swapchain.AcquireNextImage(g.acquireSems[semIndex])
	if err != nil {
		return false, fmt.Errorf("graph: AcquireNextImage: %w", err)
	}
	if acquireResult == vkdevice.AcquireOutOfDate {
		g.cpuFrame++
		return false, nil
	}
	g.semToImage[semIndex] = int(imageIndex)

	waits := []group.Wait{{Semaphore: g.acquireSems[semIndex], Value: 0}}
	if last := g.lastOffscreen(); last != nil {
		waits = append(waits, group.Wait{Semaphore: last.Timeline(), Value: last.LatestSignalValue()})
	}

	if err := g.present.BeginFrame(int(imageIndex), true); err != nil {
		return false, fmt.Errorf("graph: present BeginFrame: %w", err)
	}
	if err := g.present.Submit(int(imageIndex), waits, graphicsQueue, g.elapsed, true); err != nil {
		return false, fmt.Errorf("graph: present Submit: %w", err)
	}

	presentResult, err := g.swapchain.Present(presentQueue, g.present.PresentSemaphore(int(imageIndex)), imageIndex)
	if err != nil {
		return false, fmt.Errorf("graph: Present: %w", err)
	}
	if presentResult == vkdevice.AcquireOutOfDate {
		g.cpuFrame++
		return false, nil
	}

	g.cpuFrame++
	return true, nil
}

func isVsyncPresentMode(mode vk.PresentModeKHR) bool {
	switch mode {
	case vk.PresentModeFifo, vk.PresentModeFifoRelaxed:
		return true
	default:
		return false
	}
}
