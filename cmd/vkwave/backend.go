// Copyright 2024 The vkwave-go Authors. All rights reserved.

package main

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/config"
	"github.com/vkwave-go/vkwave/screenshot"
	"github.com/vkwave-go/vkwave/vkdevice"
	"github.com/vkwave-go/vkwave/wsi"
)

// backend bundles a vkdevice.Device/Swapchain pair plus the offscreen
// scene-target image views the demo's single offscreen group renders
// into. Everything in this file is plumbing around the core packages;
// none of it is part of the render-graph core itself.
type backend struct {
	device    vkdevice.Device
	swapchain vkdevice.Swapchain

	sceneColor      []vk.ImageView // one per offscreen frame slot
	sceneColorImage []vk.Image     // same indexing; screenshot's copy source
	sceneDepth      []vk.ImageView
}

// newBackend is the seam a platform integration layer fills in: create a
// VkInstance, pick a physical device, open a VkSurfaceKHR for win,
// create the logical device/queues and the swapchain, and allocate the
// offscreen scene-target images/views. None of that belongs to this
// module — instance/device/surface creation is an external collaborator's
// responsibility — so this stub always fails with a message naming what a
// real implementation must supply.
func newBackend(cfg config.Config, win wsi.Window) (*backend, error) {
	return nil, errBackendNotImplemented
}

var errBackendNotImplemented = backendError("vkwave: no graphics backend wired in; " +
	"instance/device/surface/swapchain creation is an external integration " +
	"concern (see vkdevice.Device/Swapchain) and newBackend must be replaced " +
	"with a concrete implementation before this binary can render")

type backendError string

func (e backendError) Error() string { return string(e) }

// Close releases backend-owned resources (the offscreen scene-target
// images/views; the device and swapchain are owned by whatever
// constructed them in newBackend).
func (b *backend) Close() {
	for _, v := range b.sceneColor {
		vk.DestroyImageView(b.device.LogicalHandle(), v, nil)
	}
	for _, img := range b.sceneColorImage {
		vk.DestroyImage(b.device.LogicalHandle(), img, nil)
	}
	for _, v := range b.sceneDepth {
		vk.DestroyImageView(b.device.LogicalHandle(), v, nil)
	}
}

// offscreenViews returns the per-group, per-frame attachment views for
// graph.Build/Resize: one offscreen group (the scene pass), each frame
// slot's [color, depth] attachment pair.
func (b *backend) offscreenViews() [][][]vk.ImageView {
	frames := make([][]vk.ImageView, len(b.sceneColor))
	for i := range frames {
		frames[i] = []vk.ImageView{b.sceneColor[i], b.sceneDepth[i]}
	}
	return [][][]vk.ImageView{frames}
}

// presentViews returns the per-swapchain-image attachment views for the
// present group: one color attachment (the swapchain image itself) per
// image.
func (b *backend) presentViews() [][]vk.ImageView {
	views := b.swapchain.ImageViews()
	out := make([][]vk.ImageView, len(views))
	for i, v := range views {
		out[i] = []vk.ImageView{v}
	}
	return out
}

// allocReadback creates a host-visible, host-cached buffer for screenshot
// capture's readback, following the same create/query/allocate/bind
// sequence used for the group package's auto-buffers.
func (b *backend) allocReadback(size int) (screenshot.Readback, error) {
	dev := b.device.LogicalHandle()

	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(dev, &info, nil, &buf); res != vk.Success {
		return screenshot.Readback{}, fmt.Errorf("screenshot: vkCreateBuffer failed: %d", res)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buf, &req)
	req.Deref()

	props := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit)
	typeIdx, err := b.device.FindMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(dev, buf, nil)
		return screenshot.Readback{}, fmt.Errorf("screenshot: %w", err)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(dev, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(dev, buf, nil)
		return screenshot.Readback{}, fmt.Errorf("screenshot: vkAllocateMemory failed: %d", res)
	}
	if res := vk.BindBufferMemory(dev, buf, mem, 0); res != vk.Success {
		vk.DestroyBuffer(dev, buf, nil)
		vk.FreeMemory(dev, mem, nil)
		return screenshot.Readback{}, fmt.Errorf("screenshot: vkBindBufferMemory failed: %d", res)
	}

	return screenshot.Readback{Buffer: buf, Memory: mem, Size: size}, nil
}

// freeReadback destroys a readback buffer and its backing memory.
func (b *backend) freeReadback(rb screenshot.Readback) {
	dev := b.device.LogicalHandle()
	vk.DestroyBuffer(dev, rb.Buffer, nil)
	vk.FreeMemory(dev, rb.Memory, nil)
}

// mapReadback maps the given readback buffer's memory for CPU reads.
func (b *backend) mapReadback(rb screenshot.Readback) ([]byte, error) {
	var data unsafe.Pointer
	if res := vk.MapMemory(b.device.LogicalHandle(), rb.Memory, 0, vk.DeviceSize(rb.Size), 0, &data); res != vk.Success {
		return nil, fmt.Errorf("screenshot: vkMapMemory failed: %d", res)
	}
	return unsafe.Slice((*byte)(data), rb.Size), nil
}

// unmapReadback unmaps a previously mapped readback buffer.
func (b *backend) unmapReadback(rb screenshot.Readback) {
	vk.UnmapMemory(b.device.LogicalHandle(), rb.Memory)
}
