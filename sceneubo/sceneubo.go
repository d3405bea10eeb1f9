// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package sceneubo mirrors the concrete UBO and push-constant layouts the
// demo's PBR pipeline binds, in std140/std430-compatible form. The graph
// core itself only needs a reflected block size; these types give the
// bytes written into ExecutionGroup's auto-buffers and push constants a
// concrete (and testable) layout instead of opaque byte counts. The demo
// encodes CameraUBO into its scene group's UBO; its pipeline specs do not
// name these types.
package sceneubo

import (
	"encoding/binary"
	"math"

	"github.com/vkwave-go/vkwave/linear"
)

// CameraUBO is the combined view-projection matrix, std140: one mat4,
// 4 columns of 16 bytes each, 64 bytes total.
type CameraUBO struct {
	ViewProj linear.M4
}

// CameraUBOSize is CameraUBO's std140 size in bytes.
const CameraUBOSize = 64

// LightUBO holds per-frame lighting data, std140: camera position,
// light direction, light color, each a vec4 (xyz used, w padding or an
// auxiliary scalar), 48 bytes total.
type LightUBO struct {
	CamPos         linear.V4 // xyz = camera position, w unused
	LightDirection linear.V4 // xyz = direction, w = intensity
	LightColor     linear.V4 // rgb = color, a unused
}

// LightUBOSize is LightUBO's std140 size in bytes.
const LightUBOSize = 48

// PBRPushConstants is the per-draw push-constant block for the PBR pass:
// a model matrix plus material and debug scalars, 108 bytes total (the
// S5 scenario's 108-byte reflection fixture is this exact layout).
type PBRPushConstants struct {
	Model           linear.M4 // 64 bytes
	BaseColorFactor linear.V4 // 16 bytes
	MetallicFactor  float32
	RoughnessFactor float32
	Time            float32
	DebugMode       int32
	Flags           uint32
	AlphaMode       uint32
	AlphaCutoff     float32
}

// PBRPushConstantsSize is PBRPushConstants' packed size in bytes.
const PBRPushConstantsSize = 108

// PBR feature flags, OR'd into PBRPushConstants.Flags.
const (
	PBRFlagNormalMapping uint32 = 1 << 0
	PBRFlagEmissive      uint32 = 1 << 1
	PBRFlagAll                  = PBRFlagNormalMapping | PBRFlagEmissive
)

// Alpha modes for PBRPushConstants.AlphaMode.
const (
	AlphaModeOpaque uint32 = iota
	AlphaModeMask
	AlphaModeBlend
)

// Encode writes c into dst in std140 layout: 16 bytes per column, in
// order. dst must be at least CameraUBOSize bytes (typically the mapped
// auto-buffer memory handed back by ExecutionGroup.UBO).
func (c CameraUBO) Encode(dst []byte) {
	off := 0
	for _, col := range c.ViewProj {
		putV4(dst[off:], col)
		off += 16
	}
}

// Encode writes l into dst in std140 layout.
func (l LightUBO) Encode(dst []byte) {
	putV4(dst[0:], l.CamPos)
	putV4(dst[16:], l.LightDirection)
	putV4(dst[32:], l.LightColor)
}

// Encode writes p into dst in the packed layout matching the shader's
// push_constant block (no std140 vec4-alignment padding between scalar
// members: push constants use std430-like tight packing).
func (p PBRPushConstants) Encode(dst []byte) {
	off := 0
	for _, col := range p.Model {
		putV4(dst[off:], col)
		off += 16
	}
	putV4(dst[off:], p.BaseColorFactor)
	off += 16
	putF32(dst[off:], p.MetallicFactor)
	off += 4
	putF32(dst[off:], p.RoughnessFactor)
	off += 4
	putF32(dst[off:], p.Time)
	off += 4
	binary.LittleEndian.PutUint32(dst[off:], uint32(p.DebugMode))
	off += 4
	binary.LittleEndian.PutUint32(dst[off:], p.Flags)
	off += 4
	binary.LittleEndian.PutUint32(dst[off:], p.AlphaMode)
	off += 4
	putF32(dst[off:], p.AlphaCutoff)
}

func putV4(dst []byte, v linear.V4) {
	for i, f := range v {
		putF32(dst[i*4:], f)
	}
}

func putF32(dst []byte, f float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(f))
}
