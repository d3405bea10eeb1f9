package half

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat32SpecialValues(t *testing.T) {
	assert.Equal(t, float32(0.0), ToFloat32(0x0000))
	assert.True(t, math.Signbit(float64(ToFloat32(0x8000))))
	assert.Equal(t, float32(0.0), ToFloat32(0x8000))
	assert.Equal(t, float32(1.0), ToFloat32(0x3c00))
	assert.Equal(t, float32(math.Inf(1)), ToFloat32(0x7c00))
	assert.Equal(t, float32(math.Inf(-1)), ToFloat32(0xfc00))
	assert.True(t, math.IsNaN(float64(ToFloat32(0x7e00))))
}

func TestToFloat32OneThird(t *testing.T) {
	got := ToFloat32(0x3555)
	assert.InDelta(t, 1.0/3.0, float64(got), 1e-3)
}

func TestRoundTripNormalFinite(t *testing.T) {
	for h := 0; h < 0x10000; h++ {
		exp := (h >> 10) & 0x1f
		if exp == 0 || exp == 0x1f {
			// Subnormals and Inf/NaN are excluded from the round-trip
			// property.
			continue
		}
		f := ToFloat32(uint16(h))
		back := FromFloat32(f)
		assert.Equalf(t, uint16(h), back, "round-trip mismatch for 0x%04x -> %v -> 0x%04x", h, f, back)
	}
}
