// Copyright 2024 The vkwave-go Authors. All rights reserved.

package graph

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/vkdevice"
)

// Build allocates the graph's swapchain-side resources: N_sw acquire
// semaphores, a zeroed sem→image map, offscreen group frame resources at
// swapchain extent with depth=offscreenDepth, and present group frame
// resources (one framebuffer per swapchain image view).
//
// offscreenViews supplies, per offscreen group in registration order, the
// per-slot attachment view lists CreateFrameResources needs; presentViews
// supplies the per-swapchain-image attachment view lists for the present
// group. Both are caller-built because attachment composition (HDR
// target, depth, MSAA resolve, swapchain image) is owned by the graph's
// caller, not the graph itself.
func (g *RenderGraph) Build(swapchain vkdevice.Swapchain, offscreenViews [][][]vk.ImageView, presentViews [][]vk.ImageView) error {
	if g.present == nil {
		return fmt.Errorf("graph: Build called with no present group set")
	}
	if len(offscreenViews) != len(g.offscreen) {
		return fmt.Errorf("graph: Build: len(offscreenViews)=%d != %d offscreen groups", len(offscreenViews), len(g.offscreen))
	}

	g.swapchain = swapchain
	g.numSwapchainSem = swapchain.ImageCount()
	g.acquireSems = make([]vk.Semaphore, g.numSwapchainSem)
	g.semToImage = make([]int, g.numSwapchainSem)
	for i := range g.semToImage {
		g.semToImage[i] = -1
	}
	for i := range g.acquireSems {
		sem, err := g.device.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("graph: Build: %w", err)
		}
		g.acquireSems[i] = sem
	}

	depth := g.offscreenDepth
	if depth <= 0 {
		depth = swapchain.ImageCount()
	}
	width, height := swapchain.Extent()

	for i, eg := range g.offscreen {
		if err := eg.CreateFrameResources(offscreenViews[i], width, height, depth); err != nil {
			return fmt.Errorf("graph: Build: offscreen group %d: %w", i, err)
		}
	}

	if err := g.present.CreateFrameResources(presentViews, width, height, swapchain.ImageCount()); err != nil {
		return fmt.Errorf("graph: Build: present group: %w", err)
	}

	return nil
}

// Drain waits for every group's in-flight work, then waits for the device
// to go idle as an outer safety net. Only used at teardown or resize.
func (g *RenderGraph) Drain() error {
	for _, eg := range g.offscreen {
		if err := eg.Drain(); err != nil {
			return err
		}
	}
	if g.present != nil {
		if err := g.present.Drain(); err != nil {
			return err
		}
	}
	if res := vk.DeviceWaitIdle(g.device.LogicalHandle()); res != vk.Success {
		return fmt.Errorf("graph: vkDeviceWaitIdle failed: %d", res)
	}
	return nil
}

// Resize drains, destroys every group's frame resources, drops the
// acquire semaphores and sem→image map, invokes the resize hook with the
// new extent, then rebuilds via Build.
func (g *RenderGraph) Resize(swapchain vkdevice.Swapchain, offscreenViews [][][]vk.ImageView, presentViews [][]vk.ImageView) error {
	if err := g.Drain(); err != nil {
		return err
	}

	g.present.DestroyFrameResources()
	for _, eg := range g.offscreen {
		eg.DestroyFrameResources()
	}

	dev := g.device.LogicalHandle()
	for _, sem := range g.acquireSems {
		vk.DestroySemaphore(dev, sem, nil)
	}
	g.acquireSems = nil
	g.semToImage = nil

	if g.resizeHook != nil {
		width, height := swapchain.Extent()
		if err := g.resizeHook(width, height); err != nil {
			return fmt.Errorf("graph: Resize: resize hook: %w", err)
		}
	}

	return g.Build(swapchain, offscreenViews, presentViews)
}
