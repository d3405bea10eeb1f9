// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package screenshot implements the non-blocking HDR screenshot capture
// state machine: idle -> requested -> in_flight -> compressing -> idle.
// Only one capture may be outstanding at a time, and the copy is recorded
// within the owning group's existing command buffer so no extra
// device/queue wait is ever issued.
package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/half"
)

// State is the capture state machine's current stage.
type State int

const (
	Idle State = iota
	Requested
	InFlight
	Compressing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requested:
		return "requested"
	case InFlight:
		return "in_flight"
	case Compressing:
		return "compressing"
	default:
		return "unknown"
	}
}

// Readback is the GPU-side readback buffer and its current capacity. It
// is grow-only: Capture replaces it only when a larger size is needed and
// no capture is currently in flight.
type Readback struct {
	Buffer vk.Buffer
	Memory vk.DeviceMemory
	Size   int
}

// RecordCopy appends the HDR-image-to-readback-buffer copy, with its
// surrounding layout/access barriers, to cmd. Called from the owning
// group's post-record callback once ReadbackReady reports true. image is
// the group's resolved color attachment for the current slot; buffer is
// the capture's current readback buffer.
//
// No device/queue wait is issued here: every barrier is memory-visibility
// only, recorded into the same command buffer the group already submits
// this frame.
func RecordCopy(cmd vk.CommandBuffer, image vk.Image, buffer vk.Buffer, width, height int) {
	colorRange := vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}

	toTransferSrc := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessTransferReadBit),
		OldLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		NewLayout:           vk.ImageLayoutTransferSrcOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    colorRange,
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.DependencyFlags(0),
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{toTransferSrc})

	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: uint32(width), Height: uint32(height), Depth: 1},
	}
	vk.CmdCopyImageToBuffer(cmd, image, vk.ImageLayoutTransferSrcOptimal, buffer, 1, []vk.BufferImageCopy{region})

	backToShaderRead := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferReadBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout:           vk.ImageLayoutTransferSrcOptimal,
		NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    colorRange,
	}
	bufferBarrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessHostReadBit),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buffer,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageHostBit),
		vk.DependencyFlags(0),
		0, nil,
		1, []vk.BufferMemoryBarrier{bufferBarrier},
		1, []vk.ImageMemoryBarrier{backToShaderRead})
}

// Capture owns the screenshot state machine for one execution group's
// output image.
type Capture struct {
	mu    sync.Mutex
	state State

	width, height int
	readback      Readback
	fence         vk.Fence

	onComplete func(pngBytes []byte, err error)

	workerBusy int32
}

// NewCapture constructs a capture state machine in the idle state.
func NewCapture() *Capture {
	return &Capture{state: Idle}
}

// State returns the current stage.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestCapture transitions idle -> requested. It is a no-op (returns
// false) if a capture is already in progress: the UI is expected to
// disable the trigger between requested and idle again, but Capture
// enforces it too.
func (c *Capture) RequestCapture(width, height int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return false
	}
	c.width, c.height = width, height
	c.state = Requested
	return true
}

// EnsureReadback grows the readback buffer to at least minSize bytes,
// replacing it only when larger and only when idle/requested (never
// while a capture is in flight, per the grow-only contract).
func (c *Capture) EnsureReadback(minSize int, alloc func(size int) (Readback, error), free func(Readback)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == InFlight || c.state == Compressing {
		return fmt.Errorf("screenshot: cannot grow readback buffer while a capture is in flight")
	}
	if c.readback.Size >= minSize {
		return nil
	}
	rb, err := alloc(minSize)
	if err != nil {
		return fmt.Errorf("screenshot: EnsureReadback: %w", err)
	}
	if c.readback.Size > 0 {
		free(c.readback)
	}
	c.readback = rb
	return nil
}

// Readback returns the current readback buffer, for a caller that needs
// its handles to map/unmap or copy into it.
func (c *Capture) Readback() Readback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readback
}

// RequestedSize returns the width/height passed to the request currently
// being serviced.
func (c *Capture) RequestedSize() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// ReadbackReady reports whether a readback buffer large enough for the
// pending request exists and a fence is armed, i.e. whether the
// per-frame copy-recording action should run this frame.
func (c *Capture) ReadbackReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	need := c.width * c.height * 4 * 2 // RGBA16F: 4 channels, 2 bytes each
	return c.state == Requested && c.readback.Size > 0 && c.readback.Size >= need && c.fence != vk.NullFence
}

// MarkInFlight transitions requested -> in_flight, called once the
// post-record callback has appended the copy commands for this frame.
func (c *Capture) MarkInFlight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Requested {
		c.state = InFlight
	}
}

// SetFence installs the fence the next in-flight transition will poll.
func (c *Capture) SetFence(fence vk.Fence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fence = fence
}

// PollOnce performs one non-blocking fence-status query. If signaled and
// no worker is already running, it launches the background compression
// worker, moves the state to compressing, and returns true.
func (c *Capture) PollOnce(device vk.Device, mapBuffer func() ([]byte, error), unmapBuffer func()) (bool, error) {
	c.mu.Lock()
	if c.state != InFlight {
		c.mu.Unlock()
		return false, nil
	}
	fence := c.fence
	width, height := c.width, c.height
	c.mu.Unlock()

	res := vk.GetFenceStatus(device, fence)
	switch res {
	case vk.NotReady:
		return false, nil
	case vk.Success:
		// fall through to launch the worker
	default:
		return false, fmt.Errorf("screenshot: vkGetFenceStatus failed: %d", res)
	}

	if !atomic.CompareAndSwapInt32(&c.workerBusy, 0, 1) {
		return false, nil
	}

	c.mu.Lock()
	c.state = Compressing
	c.mu.Unlock()

	go c.runWorker(width, height, mapBuffer, unmapBuffer)
	return true, nil
}

// runWorker maps the readback buffer, tonemaps + gamma-corrects + encodes
// it to PNG, unmaps, and hands the result to onComplete. It always
// finishes by transitioning back to idle.
func (c *Capture) runWorker(width, height int, mapBuffer func() ([]byte, error), unmapBuffer func()) {
	defer atomic.StoreInt32(&c.workerBusy, 0)

	data, err := mapBuffer()
	if err == nil {
		defer unmapBuffer()
	}

	var pngBytes []byte
	if err == nil {
		pngBytes, err = EncodePNG(data, width, height)
	}

	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()

	if c.onComplete != nil {
		c.onComplete(pngBytes, err)
	}
}

// SetOnComplete installs the callback invoked (on the worker goroutine)
// once compression finishes, with either PNG bytes or an error. The
// caller is responsible for hopping back to its own main thread before
// touching anything not safe for concurrent access.
func (c *Capture) SetOnComplete(fn func(pngBytes []byte, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

// EncodePNG converts a half-float RGBA readback (tightly packed, 8 bytes
// per pixel: R,G,B,A each uint16 binary16) to an LDR PNG: Reinhard
// tonemap c/(1+c) followed by gamma 2.2.
func EncodePNG(rgbaHalf []byte, width, height int) ([]byte, error) {
	want := width * height * 4 * 2
	if len(rgbaHalf) < want {
		return nil, fmt.Errorf("screenshot: EncodePNG: buffer too small: have %d bytes, need %d", len(rgbaHalf), want)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	const invGamma = 1.0 / 2.2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 8
			r := tonemapChannel(half.ToFloat32(readU16(rgbaHalf, i+0)), invGamma)
			g := tonemapChannel(half.ToFloat32(readU16(rgbaHalf, i+2)), invGamma)
			b := tonemapChannel(half.ToFloat32(readU16(rgbaHalf, i+4)), invGamma)
			a := tonemapChannel(half.ToFloat32(readU16(rgbaHalf, i+6)), 1.0)
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("screenshot: png.Encode: %w", err)
	}
	return buf.Bytes(), nil
}

func tonemapChannel(c float32, invGamma float64) uint8 {
	if c < 0 {
		c = 0
	}
	mapped := float64(c) / (1 + float64(c))
	corrected := math.Pow(mapped, invGamma)
	v := int(corrected*255 + 0.5)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func readU16(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}
