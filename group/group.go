// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package group implements ExecutionGroup: a pipeline plus an N-deep ring
// of per-frame GPU resources, synchronized by a timeline semaphore, with
// auto-managed UBO/SSBO buffers and descriptor sets derived from shader
// reflection.
package group

import (
	"fmt"
	"math"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/pipeline"
	"github.com/vkwave-go/vkwave/reflect"
	"github.com/vkwave-go/vkwave/vkdevice"
)

// BufferSpec describes one auto-managed ring buffer, derived from a
// reflected binding whose block size is greater than zero.
type BufferSpec struct {
	Name    string
	Size    int
	Usage   vk.BufferUsageFlags
	Set     int
	Binding int
}

// FrameResources is the set of per-slot GPU objects a group rotates
// through. Framebuffers outlive a single submission; they are rebuilt on
// resize, not per frame.
type FrameResources struct {
	CmdPool   vk.CommandPool
	CmdBuffer vk.CommandBuffer
	Framebuf  vk.Framebuffer
}

// RecordFn records draw commands for one slot, inside the group's render
// pass scope (or, for the post-record callback, after it has ended).
type RecordFn func(cmd vk.CommandBuffer, slot int)

// GateMode selects when a group's submission runs.
type GateMode int

const (
	// GateAlways submits every frame.
	GateAlways GateMode = iota
	// GateDisplayOnly submits only when the display is vsync'd.
	GateDisplayOnly
	// GateWallClock submits at most Hz times per second of wall-clock time.
	GateWallClock
)

// Gate is a group's submission-gating configuration.
type Gate struct {
	Mode Hz
}

// Hz bundles the gate mode with its wall-clock rate, since only
// GateWallClock uses the rate.
type Hz struct {
	Mode GateMode
	Rate float64
}

// ShouldSubmit evaluates the gate against the current elapsed wall-clock
// time, the time this group last ran, and whether the display is vsync'd.
func (h Hz) ShouldSubmit(elapsed, lastRunTime float64, isVsync bool) bool {
	switch h.Mode {
	case GateAlways:
		return true
	case GateDisplayOnly:
		return isVsync
	case GateWallClock:
		if h.Rate <= 0 {
			return true
		}
		return elapsed-lastRunTime >= 1/h.Rate
	default:
		return true
	}
}

// ClearValues holds the render pass's clear values.
type ClearValues struct {
	Color        [4]float32
	Depth        float32
	Stencil      uint32
	HasDepth     bool
}

// DefaultClearValues returns vkwave's default clear: a dim grey color and,
// when hasDepth is true, depth=1/stencil=0.
func DefaultClearValues(hasDepth bool) ClearValues {
	return ClearValues{
		Color:    [4]float32{0.05, 0.05, 0.06, 1},
		Depth:    1,
		Stencil:  0,
		HasDepth: hasDepth,
	}
}

// Wait is one semaphore a submission waits on. Value 0 marks a binary
// semaphore (its value is ignored); any other value is a timeline wait.
type Wait struct {
	Semaphore vk.Semaphore
	Value     uint64
}

// ExecutionGroup owns a pipeline and its N-deep ring of per-frame
// resources, auto-managed UBO/SSBO buffers, and descriptor sets.
type ExecutionGroup struct {
	Name  string
	Debug bool

	device vkdevice.Device

	built      *pipeline.Built
	renderPass vk.RenderPass
	ownsPass   bool

	bufferSpecs []BufferSpec
	// bindingIndex maps (set,binding) to the index into bufferSpecs /
	// autoBuffers' second dimension.
	bindingIndex map[[2]int]int

	frames      []FrameResources
	autoBuffers [][]autoBuffer // [bufferSpecIndex][slot]
	presentSems []vk.Semaphore

	descPool  vk.DescriptorPool
	descSets  []vk.DescriptorSet
	setLayout vk.DescriptorSetLayout

	timeline         vk.Semaphore
	nextSignalValue  uint64
	slotSignalValues []uint64
	slotSubmitted    []bool

	extentWidth, extentHeight uint32

	gate        Hz
	lastRunTime float64

	clear ClearValues

	currentSlot int

	Record     RecordFn
	PostRecord RecordFn

	nextFence vk.Fence
}

type autoBuffer struct {
	buffer vk.Buffer
	memory vk.DeviceMemory
	mapped []byte
}

// New constructs a group's immutable pipeline state: it reflects the
// given shader stages, registers an auto-buffer for every binding with a
// non-zero block size in the first reflected descriptor set, and builds
// the pipeline against renderPass. Bindings in higher sets get no
// auto-buffer.
func New(device vkdevice.Device, name string, spec pipeline.PipelineSpec, renderPass vk.RenderPass, gate Hz, debug bool) (*ExecutionGroup, error) {
	spec.RenderPass = renderPass
	spec.Debug = debug

	built, err := pipeline.Build(device, spec)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", name, err)
	}

	g := &ExecutionGroup{
		Name:         name,
		Debug:        debug,
		device:       device,
		built:        built,
		renderPass:   renderPass,
		gate:         gate,
		bindingIndex: make(map[[2]int]int),
		clear:        DefaultClearValues(spec.DepthTest),
	}

	if len(built.Reflection.Sets) > 0 {
		g.setLayout = built.SetLayouts[0]
		for _, b := range built.Reflection.Sets[0].Bindings {
			if b.BlockSize <= 0 {
				continue
			}
			usage := usageFromDescriptorType(b.Type)
			idx := len(g.bufferSpecs)
			g.bufferSpecs = append(g.bufferSpecs, BufferSpec{
				Name:    b.Name,
				Size:    b.BlockSize,
				Usage:   usage,
				Set:     built.Reflection.Sets[0].Index,
				Binding: b.Index,
			})
			g.bindingIndex[[2]int{built.Reflection.Sets[0].Index, b.Index}] = idx
		}
	}

	timeline, err := device.CreateTimelineSemaphore(0)
	if err != nil {
		built.Destroy()
		return nil, fmt.Errorf("group %q: %w", name, err)
	}
	g.timeline = timeline
	g.nextSignalValue = 1

	return g, nil
}

func usageFromDescriptorType(t vk.DescriptorType) vk.BufferUsageFlags {
	switch t {
	case vk.DescriptorTypeStorageBuffer, vk.DescriptorTypeStorageBufferDynamic:
		return vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	default:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
}

// Destroy releases the pipeline and timeline counter. CreateFrameResources
// must have been undone via DestroyFrameResources first.
func (g *ExecutionGroup) Destroy() {
	if g.timeline != vk.NullSemaphore {
		vk.DestroySemaphore(g.device.LogicalHandle(), g.timeline, nil)
	}
	g.built.Destroy()
}

// LatestSignalValue returns next_signal_value-1 when positive, else 0.
func (g *ExecutionGroup) LatestSignalValue() uint64 {
	if g.nextSignalValue > 1 {
		return g.nextSignalValue - 1
	}
	return 0
}

// Timeline returns the group's timeline semaphore, for use as a wait by a
// downstream group's submission.
func (g *ExecutionGroup) Timeline() vk.Semaphore { return g.timeline }

// waitTimeline blocks until the timeline counter reaches value, with no
// timeout (the graph never issues bounded waits on GPU work it owns).
func (g *ExecutionGroup) waitTimeline(value uint64) error {
	if value == 0 {
		return nil
	}
	info := vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    []vk.Semaphore{g.timeline},
		PValues:        []uint64{value},
	}
	if res := vk.WaitSemaphores(g.device.LogicalHandle(), &info, math.MaxUint64); res != vk.Success {
		return fmt.Errorf("group %q: vkWaitSemaphores failed: %d", g.Name, res)
	}
	return nil
}

// CurrentTimelineValue reads the timeline counter's current value.
func (g *ExecutionGroup) CurrentTimelineValue() (uint64, error) {
	var value uint64
	if res := vk.GetSemaphoreCounterValue(g.device.LogicalHandle(), g.timeline, &value); res != vk.Success {
		return 0, fmt.Errorf("group %q: vkGetSemaphoreCounterValue failed: %d", g.Name, res)
	}
	return value, nil
}

// BeginFrame waits for slot's previous submission to finish draining (if
// it was submitted last time and has a nonzero signal value), then
// records whether this call intends to submit.
func (g *ExecutionGroup) BeginFrame(slot int, willSubmit bool) error {
	if g.slotSubmitted[slot] && g.slotSignalValues[slot] > 0 {
		if err := g.waitTimeline(g.slotSignalValues[slot]); err != nil {
			return err
		}
	}
	g.slotSubmitted[slot] = willSubmit
	return nil
}

// Drain waits for every submission issued so far to complete.
func (g *ExecutionGroup) Drain() error {
	if g.nextSignalValue <= 1 {
		return nil
	}
	return g.waitTimeline(g.nextSignalValue - 1)
}

// ShouldSubmit evaluates this group's gate.
func (g *ExecutionGroup) ShouldSubmit(elapsed float64, isVsync bool) bool {
	return g.gate.ShouldSubmit(elapsed, g.lastRunTime, isVsync)
}

// UBO returns the mapped host-coherent memory of the current slot's
// auto-buffer registered for (set, binding). Callers write directly into
// it; no explicit flush is needed.
func (g *ExecutionGroup) UBO(set, binding int) ([]byte, error) {
	idx, ok := g.bindingIndex[[2]int{set, binding}]
	if !ok {
		return nil, fmt.Errorf("group %q: no auto-buffer registered for (set=%d, binding=%d)", g.Name, set, binding)
	}
	return g.autoBuffers[idx][g.currentSlot].mapped, nil
}

// DescriptorSet returns the current slot's descriptor set (set 0, the
// auto-managed ring). Higher sets are caller-managed.
func (g *ExecutionGroup) DescriptorSet() vk.DescriptorSet {
	if g.currentSlot < 0 || g.currentSlot >= len(g.descSets) {
		return vk.NullDescriptorSet
	}
	return g.descSets[g.currentSlot]
}

// Reflection exposes the group's shader reflection, e.g. for debug-build
// validation calls.
func (g *ExecutionGroup) Reflection() *reflect.Reflection { return g.built.Reflection }

// Pipeline returns the built pipeline handle.
func (g *ExecutionGroup) Pipeline() vk.Pipeline { return g.built.Pipeline }

// Layout returns the built pipeline layout handle.
func (g *ExecutionGroup) Layout() vk.PipelineLayout { return g.built.Layout }

// SetClearValues overrides the default clear color (and, when the group
// has a depth attachment, depth/stencil).
func (g *ExecutionGroup) SetClearValues(c ClearValues) { g.clear = c }

// ArmFence installs a fence to be passed to the next Submit call's
// vkQueueSubmit only; it is cleared immediately after that submission.
// Used by screenshot capture to learn when its post-record copy has
// finished on the GPU without an extra device/queue wait.
func (g *ExecutionGroup) ArmFence(fence vk.Fence) { g.nextFence = fence }

// LastRunTime is a thin wrapper used by callers that want the group's
// last run time without reaching into its internals.
func (g *ExecutionGroup) LastRunTime() float64 { return g.lastRunTime }

// now returns the current wall-clock time. No code in this package calls
// it; render_frame's elapsed/delta bookkeeping lives in package graph and
// is always caller-driven, never this.
func now() time.Time { return time.Now() }
