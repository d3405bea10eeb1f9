// Copyright 2024 The vkwave-go Authors. All rights reserved.

package screenshot

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkwave-go/vkwave/half"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "requested", Requested.String())
	assert.Equal(t, "in_flight", InFlight.String())
	assert.Equal(t, "compressing", Compressing.String())
}

func TestRequestCaptureFromIdle(t *testing.T) {
	c := NewCapture()
	assert.True(t, c.RequestCapture(64, 64))
	assert.Equal(t, Requested, c.State())
}

func TestRequestCaptureRejectedWhenNotIdle(t *testing.T) {
	c := NewCapture()
	require.True(t, c.RequestCapture(64, 64))
	assert.False(t, c.RequestCapture(64, 64))
}

func TestEnsureReadbackGrowsOnlyWhenLarger(t *testing.T) {
	c := NewCapture()
	calls := 0
	alloc := func(size int) (Readback, error) {
		calls++
		return Readback{Size: size}, nil
	}
	free := func(Readback) {}

	require.NoError(t, c.EnsureReadback(1024, alloc, free))
	assert.Equal(t, 1, calls)
	// Smaller request should not reallocate.
	require.NoError(t, c.EnsureReadback(512, alloc, free))
	assert.Equal(t, 1, calls)
	// Larger request reallocates.
	require.NoError(t, c.EnsureReadback(2048, alloc, free))
	assert.Equal(t, 2, calls)
}

func TestEnsureReadbackRejectedWhileInFlight(t *testing.T) {
	c := NewCapture()
	require.True(t, c.RequestCapture(64, 64))
	c.MarkInFlight()
	assert.Error(t, c.EnsureReadback(4096, func(size int) (Readback, error) {
		return Readback{Size: size}, nil
	}, func(Readback) {}))
}

func TestReadbackReadyRequiresFenceAndBuffer(t *testing.T) {
	c := NewCapture()
	require.True(t, c.RequestCapture(2, 2))
	assert.False(t, c.ReadbackReady(), "no readback buffer yet")
	require.NoError(t, c.EnsureReadback(64, func(size int) (Readback, error) {
		return Readback{Size: size}, nil
	}, func(Readback) {}))
	assert.False(t, c.ReadbackReady(), "no fence armed yet")
}

func TestMarkInFlightOnlyFromRequested(t *testing.T) {
	c := NewCapture()
	c.MarkInFlight()
	assert.Equal(t, Idle, c.State(), "MarkInFlight from idle must be a no-op")
}

func TestRequestedSizeTracksRequestCapture(t *testing.T) {
	c := NewCapture()
	require.True(t, c.RequestCapture(320, 240))
	w, h := c.RequestedSize()
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)
}

func TestReadbackReflectsEnsureReadback(t *testing.T) {
	c := NewCapture()
	require.NoError(t, c.EnsureReadback(4096, func(size int) (Readback, error) {
		return Readback{Size: size}, nil
	}, func(Readback) {}))
	assert.Equal(t, 4096, c.Readback().Size)
}

func TestTonemapChannelClampsNegativeToZero(t *testing.T) {
	assert.Equal(t, uint8(0), tonemapChannel(-1, 1/2.2))
}

func TestTonemapChannelZeroStaysZero(t *testing.T) {
	assert.Equal(t, uint8(0), tonemapChannel(0, 1/2.2))
}

func TestTonemapChannelOneToneMapsBelowMax(t *testing.T) {
	// Reinhard(1) = 0.5, gamma-2.2 corrected: 0.5^(1/2.2) ~= 0.7297 -> ~186.
	v := tonemapChannel(1, 1/2.2)
	assert.InDelta(t, 186, int(v), 2)
}

func TestEncodePNGRoundTripsDimensionsAndDecodesPixel(t *testing.T) {
	w, h := 2, 2
	buf := make([]byte, w*h*8)
	// Pixel (0,0): full white at value 1.0 in each channel.
	one := half.FromFloat32(1.0)
	writeU16 := func(off int, v uint16) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	}
	writeU16(0, one)
	writeU16(2, one)
	writeU16(4, one)
	writeU16(6, one)

	out, err := EncodePNG(buf, w, h)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, w, img.Bounds().Dx())
	require.Equal(t, h, img.Bounds().Dy())
	// Reinhard(1) = 0.5: color 0.5^(1/2.2)*255 ~= 186, alpha (gamma 1) 128.
	assert.Equal(t, color.NRGBA{R: 186, G: 186, B: 186, A: 128}, color.NRGBAModel.Convert(img.At(0, 0)))
}

func TestEncodePNGRejectsUndersizedBuffer(t *testing.T) {
	_, err := EncodePNG(make([]byte, 4), 4, 4)
	assert.Error(t, err)
}
