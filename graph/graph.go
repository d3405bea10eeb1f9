// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package graph implements RenderGraph: the frame orchestrator that
// composes an ordered list of offscreen ExecutionGroups and exactly one
// present ExecutionGroup into a correct, pipelined frame.
package graph

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/group"
	"github.com/vkwave-go/vkwave/vkdevice"
)

// ResizeHook rebuilds offscreen attachments at the given extent. Installed
// by the graph's owner; called from Resize after frame resources have
// been drained and destroyed.
type ResizeHook func(width, height uint32) error

// RenderGraph composes offscreen groups and a present group into a single
// pipelined frame loop.
type RenderGraph struct {
	device vkdevice.Device

	offscreen []*group.ExecutionGroup
	present   *group.ExecutionGroup

	offscreenDepth int

	swapchain       vkdevice.Swapchain
	numSwapchainSem int
	acquireSems     []vk.Semaphore
	semToImage      []int // -1 = never used

	cpuFrame uint64

	startTime time.Time
	prevTime  time.Time
	started   bool
	elapsed   float64
	delta     float64

	resizeHook ResizeHook

	nowFn func() time.Time
}

// New constructs a graph against device. offscreenDepth, when zero,
// defaults to the swapchain's image count at Build time.
func New(device vkdevice.Device, offscreenDepth int) *RenderGraph {
	return &RenderGraph{
		device:         device,
		offscreenDepth: offscreenDepth,
		nowFn:          time.Now,
	}
}

// AddOffscreenGroup appends an offscreen group, run in registration order
// every frame before the present group's gate is checked.
func (g *RenderGraph) AddOffscreenGroup(eg *group.ExecutionGroup) {
	g.offscreen = append(g.offscreen, eg)
}

// SetPresentGroup sets the graph's single present group. Calling it twice
// is an error: a render graph has exactly one present group.
func (g *RenderGraph) SetPresentGroup(eg *group.ExecutionGroup) error {
	if g.present != nil {
		return fmt.Errorf("graph: present group already set")
	}
	g.present = eg
	return nil
}

// SetResizeHook installs the callback Resize invokes to let the owner
// reallocate offscreen attachments at a new extent.
func (g *RenderGraph) SetResizeHook(hook ResizeHook) {
	g.resizeHook = hook
}

func (g *RenderGraph) lastOffscreen() *group.ExecutionGroup {
	if len(g.offscreen) == 0 {
		return nil
	}
	return g.offscreen[len(g.offscreen)-1]
}

// updateClock advances the wall clock, following render_frame step 1:
// record a start time on first call, compute delta/elapsed, update prev.
func (g *RenderGraph) updateClock() {
	now := g.nowFn()
	if !g.started {
		g.startTime = now
		g.prevTime = now
		g.started = true
	}
	g.delta = now.Sub(g.prevTime).Seconds()
	g.elapsed = now.Sub(g.startTime).Seconds()
	g.prevTime = now
}

// Elapsed returns the wall-clock time since the first RenderFrame call.
func (g *RenderGraph) Elapsed() float64 { return g.elapsed }

// Delta returns the time since the previous RenderFrame call.
func (g *RenderGraph) Delta() float64 { return g.delta }

// CPUFrame returns the current CPU frame counter.
func (g *RenderGraph) CPUFrame() uint64 { return g.cpuFrame }
