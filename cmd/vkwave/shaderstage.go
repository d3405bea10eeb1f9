// Copyright 2024 The vkwave-go Authors. All rights reserved.

package main

import (
	"encoding/binary"
	"fmt"
	"os"

	vk "github.com/goki/vulkan"

	"github.com/vkwave-go/vkwave/reflect"
)

// loadSPIRV reads a precompiled SPIR-V module from path. GLSL/HLSL to
// SPIR-V compilation happens outside this module (pipeline.PipelineSpec
// documents the same boundary); this only turns an on-disk .spv file
// into the []uint32 word stream reflect.Reflect expects.
func loadSPIRV(path string, stage vk.ShaderStageFlagBits) (reflect.StageCode, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return reflect.StageCode{}, fmt.Errorf("loading shader %s: %w", path, err)
	}
	if len(raw)%4 != 0 {
		return reflect.StageCode{}, fmt.Errorf("shader %s: length %d is not a multiple of 4", path, len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return reflect.StageCode{Code: words, Stage: stage}, nil
}
