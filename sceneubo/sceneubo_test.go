// Copyright 2024 The vkwave-go Authors. All rights reserved.

package sceneubo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkwave-go/vkwave/linear"
)

func TestCameraUBOEncodeSize(t *testing.T) {
	var m linear.M4
	m.I()
	c := CameraUBO{ViewProj: m}
	buf := make([]byte, CameraUBOSize)
	c.Encode(buf)

	// Identity matrix: column 0 = (1,0,0,0), column 3 = (0,0,0,1).
	assert.Equal(t, float32(1), readF32(t, buf[0:4]))
	assert.Equal(t, float32(1), readF32(t, buf[60:64]))
}

func TestLightUBOEncodeSize(t *testing.T) {
	l := LightUBO{
		CamPos:         linear.V4{1, 2, 3, 0},
		LightDirection: linear.V4{0, -1, 0, 2.5},
		LightColor:     linear.V4{1, 1, 1, 0},
	}
	buf := make([]byte, LightUBOSize)
	l.Encode(buf)
	assert.Equal(t, float32(1), readF32(t, buf[0:4]))
	assert.Equal(t, float32(2), readF32(t, buf[4:8]))
	assert.Equal(t, float32(2.5), readF32(t, buf[28:32]))
}

func TestPBRPushConstantsEncodeExact108Bytes(t *testing.T) {
	var m linear.M4
	m.I()
	p := PBRPushConstants{
		Model:           m,
		BaseColorFactor: linear.V4{1, 1, 1, 1},
		MetallicFactor:  0.5,
		RoughnessFactor: 0.3,
		Time:            12.25,
		DebugMode:       -1,
		Flags:           PBRFlagAll,
		AlphaMode:       AlphaModeMask,
		AlphaCutoff:     0.5,
	}
	buf := make([]byte, PBRPushConstantsSize)
	require.NotPanics(t, func() { p.Encode(buf) })
	// Layout: Model[0:64) BaseColorFactor[64:80) MetallicFactor[80:84)
	// RoughnessFactor[84:88) Time[88:92) DebugMode[92:96) Flags[96:100)
	// AlphaMode[100:104) AlphaCutoff[104:108).
	assert.Equal(t, float32(12.25), readF32(t, buf[88:92]))
	assert.Equal(t, int32(-1), int32(readU32(buf[92:96])))
	assert.Equal(t, PBRFlagAll, readU32(buf[96:100]))
	assert.Equal(t, AlphaModeMask, readU32(buf[100:104]))
}

func readF32(t *testing.T, b []byte) float32 {
	t.Helper()
	return math.Float32frombits(readU32(b))
}

func readU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
