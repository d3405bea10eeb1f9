// Copyright 2024 The vkwave-go Authors. All rights reserved.

package group

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/vkdevice"
)

// CreateFrameResources allocates the group's N-deep ring: command
// pools/buffers, framebuffers against views (attachment order already
// matching the render pass: MSAA color + resolve, or just color; depth is
// appended by the caller into views when the group has a depth
// attachment), auto-buffers for every registered BufferSpec, and the
// descriptor pool/sets bound to them.
func (g *ExecutionGroup) CreateFrameResources(views [][]vk.ImageView, width, height uint32, n int) error {
	if n <= 0 {
		return fmt.Errorf("group %q: CreateFrameResources requires n > 0", g.Name)
	}
	if len(views) != n {
		return fmt.Errorf("group %q: CreateFrameResources: len(views)=%d != n=%d", g.Name, len(views), n)
	}

	g.extentWidth, g.extentHeight = width, height
	g.frames = make([]FrameResources, n)
	g.presentSems = make([]vk.Semaphore, n)
	g.slotSignalValues = make([]uint64, n)
	g.slotSubmitted = make([]bool, n)

	_, qfam := g.device.GraphicsQueue()
	for i := 0; i < n; i++ {
		pool, err := createCommandPool(g.device, qfam)
		if err != nil {
			g.destroyFramesPartial(i)
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		cmd, err := allocateCommandBuffer(g.device, pool)
		if err != nil {
			g.destroyFramesPartial(i)
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		fb, err := createFramebuffer(g.device, g.renderPass, views[i], width, height)
		if err != nil {
			g.destroyFramesPartial(i)
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		sem, err := g.device.CreateSemaphore()
		if err != nil {
			g.destroyFramesPartial(i)
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		g.frames[i] = FrameResources{CmdPool: pool, CmdBuffer: cmd, Framebuf: fb}
		g.presentSems[i] = sem
	}

	g.autoBuffers = make([][]autoBuffer, len(g.bufferSpecs))
	for specIdx, spec := range g.bufferSpecs {
		g.autoBuffers[specIdx] = make([]autoBuffer, n)
		for i := 0; i < n; i++ {
			ab, err := createAutoBuffer(g.device, spec)
			if err != nil {
				g.destroyFramesPartial(n)
				return fmt.Errorf("group %q: %w", g.Name, err)
			}
			g.autoBuffers[specIdx][i] = ab
		}
	}

	if g.setLayout != vk.NullDescriptorSetLayout && len(g.bufferSpecs) > 0 {
		if err := g.createDescriptors(n); err != nil {
			g.destroyFramesPartial(n)
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
	}

	return nil
}

// destroyFramesPartial tears down whatever CreateFrameResources managed to
// build before an error, and is also the body of DestroyFrameResources.
func (g *ExecutionGroup) destroyFramesPartial(framesBuilt int) {
	dev := g.device.LogicalHandle()

	if g.descPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(dev, g.descPool, nil)
		g.descPool = vk.NullDescriptorPool
		g.descSets = nil
	}

	for _, perSlot := range g.autoBuffers {
		for _, ab := range perSlot {
			if ab.buffer != vk.NullBuffer {
				if ab.mapped != nil {
					vk.UnmapMemory(dev, ab.memory)
				}
				vk.DestroyBuffer(dev, ab.buffer, nil)
				vk.FreeMemory(dev, ab.memory, nil)
			}
		}
	}
	g.autoBuffers = nil

	for i := 0; i < framesBuilt && i < len(g.frames); i++ {
		f := g.frames[i]
		if f.Framebuf != vk.NullFramebuffer {
			vk.DestroyFramebuffer(dev, f.Framebuf, nil)
		}
		if f.CmdPool != vk.NullCommandPool {
			vk.DestroyCommandPool(dev, f.CmdPool, nil)
		}
		if i < len(g.presentSems) && g.presentSems[i] != vk.NullSemaphore {
			vk.DestroySemaphore(dev, g.presentSems[i], nil)
		}
	}
	g.frames = nil
	g.presentSems = nil
}

// DestroyFrameResources tears down the descriptor pool, auto-buffers,
// framebuffers, command pools and present semaphores. The pipeline and
// timeline counter survive: they outlive resizes.
func (g *ExecutionGroup) DestroyFrameResources() {
	g.destroyFramesPartial(len(g.frames))
}

func createCommandPool(device interface {
	LogicalHandle() vk.Device
}, queueFamily uint32) (vk.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device.LogicalHandle(), &info, nil, &pool); res != vk.Success {
		return vk.NullCommandPool, fmt.Errorf("vkCreateCommandPool failed: %d", res)
	}
	return pool, nil
}

func allocateCommandBuffer(device interface {
	LogicalHandle() vk.Device
}, pool vk.CommandPool) (vk.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	bufs := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(device.LogicalHandle(), &info, bufs); res != vk.Success {
		return nil, fmt.Errorf("vkAllocateCommandBuffers failed: %d", res)
	}
	return bufs[0], nil
}

func createFramebuffer(device interface {
	LogicalHandle() vk.Device
}, pass vk.RenderPass, views []vk.ImageView, width, height uint32) (vk.Framebuffer, error) {
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(device.LogicalHandle(), &info, nil, &fb); res != vk.Success {
		return vk.NullFramebuffer, fmt.Errorf("vkCreateFramebuffer failed: %d", res)
	}
	return fb, nil
}

func createAutoBuffer(device vkdevice.Device, spec BufferSpec) (autoBuffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(spec.Size),
		Usage:       spec.Usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(device.LogicalHandle(), &info, nil, &buf); res != vk.Success {
		return autoBuffer{}, fmt.Errorf("vkCreateBuffer failed for %q: %d", spec.Name, res)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device.LogicalHandle(), buf, &req)
	req.Deref()

	props := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	typeIdx, err := device.FindMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(device.LogicalHandle(), buf, nil)
		return autoBuffer{}, fmt.Errorf("auto-buffer %q: %w", spec.Name, err)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(device.LogicalHandle(), &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(device.LogicalHandle(), buf, nil)
		return autoBuffer{}, fmt.Errorf("vkAllocateMemory failed for %q: %d", spec.Name, res)
	}
	if res := vk.BindBufferMemory(device.LogicalHandle(), buf, mem, 0); res != vk.Success {
		vk.DestroyBuffer(device.LogicalHandle(), buf, nil)
		vk.FreeMemory(device.LogicalHandle(), mem, nil)
		return autoBuffer{}, fmt.Errorf("vkBindBufferMemory failed for %q: %d", spec.Name, res)
	}

	var data unsafe.Pointer
	if res := vk.MapMemory(device.LogicalHandle(), mem, 0, vk.DeviceSize(spec.Size), 0, &data); res != vk.Success {
		vk.DestroyBuffer(device.LogicalHandle(), buf, nil)
		vk.FreeMemory(device.LogicalHandle(), mem, nil)
		return autoBuffer{}, fmt.Errorf("vkMapMemory failed for %q: %d", spec.Name, res)
	}
	mapped := unsafe.Slice((*byte)(data), spec.Size)

	return autoBuffer{buffer: buf, memory: mem, mapped: mapped}, nil
}

func (g *ExecutionGroup) createDescriptors(n int) error {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: uint32(n * len(g.bufferSpecs))},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: uint32(n * len(g.bufferSpecs))},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(n),
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(g.device.LogicalHandle(), &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateDescriptorPool failed: %d", res)
	}
	g.descPool = pool

	layouts := make([]vk.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = g.setLayout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(n),
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, n)
	if res := vk.AllocateDescriptorSets(g.device.LogicalHandle(), &allocInfo, sets); res != vk.Success {
		return fmt.Errorf("vkAllocateDescriptorSets failed: %d", res)
	}
	g.descSets = sets

	var writes []vk.WriteDescriptorSet
	for specIdx, spec := range g.bufferSpecs {
		for slot := 0; slot < n; slot++ {
			ab := g.autoBuffers[specIdx][slot]
			bufInfo := vk.DescriptorBufferInfo{
				Buffer: ab.buffer,
				Offset: 0,
				Range:  vk.DeviceSize(spec.Size),
			}
			descType := vk.DescriptorTypeUniformBuffer
			if spec.Usage&vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) != 0 {
				descType = vk.DescriptorTypeStorageBuffer
			}
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          sets[slot],
				DstBinding:      uint32(spec.Binding),
				DescriptorCount: 1,
				DescriptorType:  descType,
				PBufferInfo:     []vk.DescriptorBufferInfo{bufInfo},
			})
		}
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(g.device.LogicalHandle(), uint32(len(writes)), writes, 0, nil)
	}
	return nil
}
