// Copyright 2024 The vkwave-go Authors. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/camera"
	"github.com/vkwave-go/vkwave/config"
	"github.com/vkwave-go/vkwave/graph"
	"github.com/vkwave-go/vkwave/group"
	"github.com/vkwave-go/vkwave/node"
	"github.com/vkwave-go/vkwave/pipeline"
	"github.com/vkwave-go/vkwave/reflect"
	"github.com/vkwave-go/vkwave/scene"
	"github.com/vkwave-go/vkwave/sceneubo"
	"github.com/vkwave-go/vkwave/screenshot"
	"github.com/vkwave-go/vkwave/wsi"
)

// demo wires one offscreen "scene" group (HDR color + depth, PBR
// pipeline) and one present group (tonemap/composite to the swapchain)
// into a RenderGraph, plus the camera and scene graph feeding the scene
// group's per-frame uniform buffer and the screenshot capture state
// machine riding the scene group's post-record callback.
type demo struct {
	rg     *graph.RenderGraph
	scene  *group.ExecutionGroup
	cam    *camera.Camera
	sc     *scene.Scene
	shots  *screenshot.Capture
	b      *backend
	logger *slog.Logger

	shotFence vk.Fence
}

func newDemo(b *backend, cfg config.Config, win wsi.Window, logger *slog.Logger) (*demo, error) {
	logger.Debug("building demo render graph", "offscreen_frames", len(b.sceneColor))
	sceneSamples := b.device.MaxUsableSampleCount()

	sceneRP, err := pipeline.SceneRenderPass(b.device, vk.FormatR16g16b16a16Sfloat, vk.FormatD32Sfloat, sceneSamples)
	if err != nil {
		return nil, fmt.Errorf("scene render pass: %w", err)
	}
	presentRP, err := pipeline.CompositeRenderPass(b.device, b.swapchain.ImageFormat())
	if err != nil {
		return nil, fmt.Errorf("present render pass: %w", err)
	}

	pbrVert, err := loadSPIRV("assets/shaders/pbr.vert.spv", vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	pbrFrag, err := loadSPIRV("assets/shaders/pbr.frag.spv", vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, err
	}
	compositeVert, err := loadSPIRV("assets/shaders/composite.vert.spv", vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	compositeFrag, err := loadSPIRV("assets/shaders/composite.frag.spv", vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, err
	}

	sceneSpec := pipeline.PipelineSpec{
		Name:       "scene",
		Stages:     []reflect.StageCode{pbrVert, pbrFrag},
		RenderPass: sceneRP,
		Subpass:    0,
		VertexStride: 4 * (3 + 3 + 2), // position, normal, uv
		VertexInputs: []pipeline.VertexInput{
			{Location: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
			{Location: 2, Format: vk.FormatR32g32Sfloat, Offset: 24},
		},
		Topology:     vk.PrimitiveTopologyTriangleList,
		Cull:         pipeline.CullBack,
		Samples:      sceneSamples,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: vk.CompareOpLess,
		Debug:        cfg.Debug.ShaderDebug,
	}

	presentSpec := pipeline.PipelineSpec{
		Name:         "present",
		Stages:       []reflect.StageCode{compositeVert, compositeFrag},
		RenderPass:   presentRP,
		Subpass:      0,
		Topology:     vk.PrimitiveTopologyTriangleList,
		Cull:         pipeline.CullNone,
		Samples:      vk.SampleCount1Bit,
		DepthTest:    false,
		DepthWrite:   false,
		Debug:        cfg.Debug.ShaderDebug,
	}

	isVsync := isVsyncPresentMode(b.swapchain.PresentMode())
	presentGate := group.Hz{Mode: group.GateDisplayOnly}
	if !isVsync {
		presentGate = group.Hz{Mode: group.GateWallClock, Rate: 60}
	}

	sceneGroup, err := group.New(b.device, "scene", sceneSpec, sceneRP, group.Hz{Mode: group.GateAlways}, cfg.Debug.ShaderDebug)
	if err != nil {
		return nil, fmt.Errorf("scene group: %w", err)
	}
	presentGroup, err := group.New(b.device, "present", presentSpec, presentRP, presentGate, cfg.Debug.ShaderDebug)
	if err != nil {
		return nil, fmt.Errorf("present group: %w", err)
	}

	rg := graph.New(b.device, len(b.sceneColor))
	rg.AddOffscreenGroup(sceneGroup)
	if err := rg.SetPresentGroup(presentGroup); err != nil {
		return nil, err
	}
	if err := rg.Build(b.swapchain, b.offscreenViews(), b.presentViews()); err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}

	cam := camera.New()
	w, h := win.Width(), win.Height()
	if h > 0 {
		cam.SetAspectRatio(float32(w) / float32(h))
	}
	sc := scene.New()
	sc.Insert(camera.NewNode(cam), node.Nil)

	shotFence, err := b.device.CreateFence(false)
	if err != nil {
		return nil, fmt.Errorf("screenshot fence: %w", err)
	}

	d := &demo{
		rg:        rg,
		scene:     sceneGroup,
		cam:       cam,
		sc:        sc,
		shots:     screenshot.NewCapture(),
		b:         b,
		logger:    logger,
		shotFence: shotFence,
	}
	d.shots.SetFence(shotFence)
	d.shots.SetOnComplete(d.onScreenshotComplete)
	sceneGroup.PostRecord = d.recordScreenshotCopy

	return d, nil
}

// recordScreenshotCopy is the scene group's post-record callback: once the
// capture state machine has a readback buffer sized for the pending
// request and its fence armed, this appends the barrier/copy/barrier-back
// sequence to the same command buffer the group is already submitting,
// re-arms the fence for this submission, and marks the capture in flight.
func (d *demo) recordScreenshotCopy(cmd vk.CommandBuffer, slot int) {
	if !d.shots.ReadbackReady() {
		return
	}
	dev := d.b.device.LogicalHandle()
	if res := vk.ResetFences(dev, 1, []vk.Fence{d.shotFence}); res != vk.Success {
		d.logger.Error("screenshot: vkResetFences failed", "result", res)
		return
	}

	w, h := d.shots.RequestedSize()
	rb := d.shots.Readback()
	screenshot.RecordCopy(cmd, d.b.sceneColorImage[slot], rb.Buffer, w, h)

	d.scene.ArmFence(d.shotFence)
	d.shots.MarkInFlight()
}

// onScreenshotComplete writes the compressed capture to disk, named by the
// moment it finished compressing.
func (d *demo) onScreenshotComplete(pngBytes []byte, err error) {
	if err != nil {
		d.logger.Error("screenshot: capture failed", "error", err)
		return
	}
	name := fmt.Sprintf("screenshot-%d.png", time.Now().UnixNano())
	if err := os.WriteFile(name, pngBytes, 0o644); err != nil {
		d.logger.Error("screenshot: writing png", "path", name, "error", err)
		return
	}
	d.logger.Info("screenshot: wrote capture", "path", name)
}

// Close releases the screenshot fence and readback buffer. The caller must
// ensure all GPU work has drained first.
func (d *demo) Close() {
	if rb := d.shots.Readback(); rb.Size > 0 {
		d.b.freeReadback(rb)
	}
	vk.DestroyFence(d.b.device.LogicalHandle(), d.shotFence, nil)
}

// updateFrame advances the scene graph and pushes the camera's current
// view-projection matrix into the scene group's auto-managed camera
// UBO (set 0, binding 0 by shader convention), exercising the full
// ExecutionGroup.UBO path end to end every frame.
func (d *demo) updateFrame() {
	d.sc.Update()

	buf, err := d.scene.UBO(0, 0)
	if err != nil {
		// No camera UBO bound at (0,0): the shader reflection found no
		// matching binding, so there is nothing to push this frame.
		return
	}
	ubo := d.cam.ToCameraUBO()
	if len(buf) >= sceneubo.CameraUBOSize {
		ubo.Encode(buf)
	}

	d.pollScreenshot()
}

// pollScreenshot drives the capture state machine's non-blocking half: it
// grows the readback buffer to the pending request's size (requested ->
// requested, still) and polls the copy fence (in_flight -> compressing).
// The copy itself is recorded elsewhere, in the scene group's post-record
// callback.
func (d *demo) pollScreenshot() {
	if d.shots.State() == screenshot.Requested {
		w, h := d.shots.RequestedSize()
		minSize := w * h * 4 * 2 // RGBA16F: 4 channels, 2 bytes each
		if err := d.shots.EnsureReadback(minSize, d.b.allocReadback, d.b.freeReadback); err != nil {
			d.logger.Error("screenshot: growing readback buffer", "error", err)
		}
	}

	mapBuffer := func() ([]byte, error) { return d.b.mapReadback(d.shots.Readback()) }
	unmapBuffer := func() { d.b.unmapReadback(d.shots.Readback()) }
	if _, err := d.shots.PollOnce(d.b.device.LogicalHandle(), mapBuffer, unmapBuffer); err != nil {
		d.logger.Error("screenshot: polling capture fence", "error", err)
	}
}

func isVsyncPresentMode(mode vk.PresentModeKHR) bool {
	return mode == vk.PresentModeFifo || mode == vk.PresentModeFifoRelaxed
}
