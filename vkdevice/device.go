// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package vkdevice declares the contracts the render graph core consumes
// from its external collaborators: the logical device and the swapchain.
// Neither instance/device/surface creation, physical-device selection, nor
// queue-family discovery are implemented here — those belong to a driver
// layer outside this module. This package only defines the interfaces the
// core is written against, so it can be unit tested against fakes instead
// of a real GPU.
package vkdevice

import (
	vk "github.com/goki/vulkan"
)

// Device is the logical-device contract consumed by reflect/pipeline/group/
// graph. A concrete implementation wraps a real vk.Device plus whatever
// instance/physical-device state it needed to create it.
type Device interface {
	// LogicalHandle returns the logical device handle.
	LogicalHandle() vk.Device

	// PhysicalHandle returns the physical device handle, needed for memory
	// type and format queries.
	PhysicalHandle() vk.PhysicalDevice

	// GraphicsQueue returns the graphics queue and its family index.
	GraphicsQueue() (vk.Queue, uint32)

	// PresentQueue returns the present queue and its family index. May be
	// the same queue/family as GraphicsQueue.
	PresentQueue() (vk.Queue, uint32)

	// FindMemoryType returns a memory type index satisfying typeBits and
	// required properties, or an error if none exists.
	FindMemoryType(typeBits uint32, required vk.MemoryPropertyFlags) (uint32, error)

	// MaxUsableSampleCount returns the highest MSAA sample count the
	// physical device supports for both color and depth targets.
	MaxUsableSampleCount() vk.SampleCountFlagBits

	// SetDebugName assigns a debug object name. A no-op when debug output
	// is disabled.
	SetDebugName(object uint64, objectType vk.ObjectType, name string)

	// CreateFence creates a fence, optionally pre-signaled.
	CreateFence(signaled bool) (vk.Fence, error)

	// CreateSemaphore creates a binary semaphore.
	CreateSemaphore() (vk.Semaphore, error)

	// CreateTimelineSemaphore creates a timeline semaphore starting at the
	// given initial counter value.
	CreateTimelineSemaphore(initial uint64) (vk.Semaphore, error)
}

// AcquireResult is the outcome of Swapchain.AcquireNextImage.
type AcquireResult int

const (
	AcquireOK AcquireResult = iota
	AcquireSuboptimal
	AcquireOutOfDate
)

// Swapchain is the presentation contract consumed by package graph.
type Swapchain interface {
	Extent() (width, height uint32)
	ImageCount() int
	ImageFormat() vk.Format
	ImageViews() []vk.ImageView
	PresentMode() vk.PresentModeKHR
	AvailablePresentModes() []vk.PresentModeKHR
	SetPreferredPresentMode(mode vk.PresentModeKHR)
	Recreate(width, height uint32) error

	// AcquireNextImage acquires the next presentable image, signaling sem
	// when it is ready. No timeout is ever passed: the wait is unbounded.
	AcquireNextImage(sem vk.Semaphore) (imageIndex uint32, result AcquireResult, err error)

	// Present submits imageIndex for presentation, waiting on wait.
	Present(queue vk.Queue, wait vk.Semaphore, imageIndex uint32) (result AcquireResult, err error)

	// Handle returns the raw swapchain handle, for callers that need it
	// directly (e.g. vk.QueuePresent's pSwapchains array).
	Handle() vk.Swapchain
}
