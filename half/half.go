// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package half converts IEEE-754 binary16 values to binary32, preserving
// sign/exponent/mantissa semantics including denormals and ±∞/NaN.
//
// The screenshot capture path reads back an HDR (R16G16B16A16_SFLOAT) image
// and needs this conversion to tonemap and gamma-correct pixels on the CPU.
package half

import "math"

// ToFloat32 converts a single IEEE-754 binary16 value, stored in the low 16
// bits of h, to its binary32 equivalent.
func ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch {
	case exp == 0:
		if mant == 0 {
			// ±0.
			return math.Float32frombits(sign)
		}
		// Subnormal half: normalize by shifting the mantissa left until
		// the implicit leading bit falls out, adjusting the exponent to
		// match, then emit as a normal binary32.
		e := int32(0)
		m := mant
		for m&0x400 == 0 {
			m <<= 1
			e--
		}
		m &= 0x3ff
		bits := sign | uint32(int32(127-15)+e+1)<<23 | m<<13
		return math.Float32frombits(bits)
	case exp == 0x1f:
		// Inf/NaN: exponent field all ones carries through unchanged.
		bits := sign | 0xff<<23 | mant<<13
		return math.Float32frombits(bits)
	default:
		bits := sign | (exp-15+127)<<23 | mant<<13
		return math.Float32frombits(bits)
	}
}

// FromFloat32 truncates a binary32 value to binary16 (round-to-zero on
// the mantissa). It is used only by tests
// to check the round-trip property for normal finite values.
func FromFloat32(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case (bits>>23)&0xff == 0xff:
		// Inf/NaN.
		m := uint16(0)
		if mant != 0 {
			m = 0x200
		}
		he := uint16(0x1f) << 10
		return sign | he | m
	case exp >= 0x1f:
		// Overflow to infinity.
		return sign | 0x1f<<10
	case exp <= 0:
		// Too small to represent as a half (flushes to zero here; the
		// round-trip property in the tests is only checked for normal
		// finite magnitudes).
		return sign
	default:
		return sign | uint16(exp)<<10 | uint16(mant>>13)
	}
}
