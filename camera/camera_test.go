// Copyright 2024 The vkwave-go Authors. All rights reserved.

package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vkwave-go/vkwave/linear"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, linear.V3{0, 0, 1}, c.Position())
	assert.Equal(t, linear.V3{0, 0, 0}, c.FocalPoint())
	assert.Equal(t, linear.V3{0, 1, 0}, c.ViewUp())
	assert.InDelta(t, 1, c.Distance(), 1e-6)
	assert.True(t, c.UseVulkanClip())
}

func TestDirectionOfProjectionDefault(t *testing.T) {
	c := New()
	dir := c.DirectionOfProjection()
	assert.InDelta(t, 0, dir[0], 1e-6)
	assert.InDelta(t, 0, dir[1], 1e-6)
	assert.InDelta(t, -1, dir[2], 1e-6)
}

func TestDirectionOfProjectionDegenerateFallsBackToMinusZ(t *testing.T) {
	c := New()
	c.SetFocalPointV(c.Position())
	dir := c.DirectionOfProjection()
	assert.Equal(t, linear.V3{0, 0, -1}, dir)
}

func TestViewMatrixDefaultIsTranslationOnly(t *testing.T) {
	c := New()
	m := c.ViewMatrix()
	assert.InDelta(t, 1, m[0][0], 1e-5)
	assert.InDelta(t, 1, m[1][1], 1e-5)
	assert.InDelta(t, 1, m[2][2], 1e-5)
	assert.InDelta(t, -1, m[3][2], 1e-5)
}

func TestProjectionMatrixVulkanClipFlipsY(t *testing.T) {
	c := New()
	c.SetUseVulkanClip(false)
	noClip := c.ProjectionMatrix()

	c.SetUseVulkanClip(true)
	clipped := c.ProjectionMatrix()

	assert.InDelta(t, -noClip[1][1], clipped[1][1], 1e-6)
	assert.Greater(t, noClip[1][1], float32(0))
}

func TestAzimuthPreservesDistance(t *testing.T) {
	c := New()
	before := c.Distance()
	c.Azimuth(90)
	assert.InDelta(t, before, c.Distance(), 1e-4)
}

func TestAzimuthActuallyMoves(t *testing.T) {
	c := New()
	before := c.Position()
	c.Azimuth(90)
	after := c.Position()
	assert.NotEqual(t, before, after)
}

func TestDollyMovesCloser(t *testing.T) {
	c := New()
	c.SetPosition(0, 0, 4)
	before := c.Distance()
	c.Dolly(2)
	assert.InDelta(t, before/2, c.Distance(), 1e-4)
}

func TestDollyIgnoresNonPositiveFactor(t *testing.T) {
	c := New()
	before := c.Position()
	c.Dolly(0)
	c.Dolly(-1)
	assert.Equal(t, before, c.Position())
}

func TestZoomClampsViewAngle(t *testing.T) {
	c := New()
	c.SetViewAngle(10)
	c.Zoom(0.001)
	assert.Equal(t, float32(179), c.ViewAngle())

	c.SetViewAngle(10)
	c.Zoom(1000)
	assert.Equal(t, float32(1), c.ViewAngle())
}

func TestZoomParallelProjectionScalesParallelScale(t *testing.T) {
	c := New()
	c.SetParallelProjection(true)
	c.SetParallelScale(2)
	c.Zoom(2)
	assert.InDelta(t, 1, c.ParallelScale(), 1e-6)
}

func TestPanMovesPositionAndFocalPointTogether(t *testing.T) {
	c := New()
	beforeOffset := sub3(c.Position(), c.FocalPoint())
	c.Pan(1, 2)
	afterOffset := sub3(c.Position(), c.FocalPoint())
	assert.InDelta(t, beforeOffset[0], afterOffset[0], 1e-5)
	assert.InDelta(t, beforeOffset[1], afterOffset[1], 1e-5)
	assert.InDelta(t, beforeOffset[2], afterOffset[2], 1e-5)
	assert.NotEqual(t, linear.V3{0, 0, 1}, c.Position())
}

func TestResetCameraCentersFocalPointOnBounds(t *testing.T) {
	c := New()
	bounds := [6]float32{-1, 1, -2, 2, -3, 3}
	c.ResetCamera(bounds)

	assert.InDelta(t, 0, c.FocalPoint()[0], 1e-5)
	assert.InDelta(t, 0, c.FocalPoint()[1], 1e-5)
	assert.InDelta(t, 0, c.FocalPoint()[2], 1e-5)

	size := linear.V3{2, 4, 6}
	radius := size.Len() * 0.5
	halfAngle := radians(c.ViewAngle() * 0.5)
	wantDist := radius / float32(math.Sin(float64(halfAngle)))
	assert.InDelta(t, wantDist, c.Distance(), 1e-3)
}

func TestResetClippingRangeBracketsBoundingSphere(t *testing.T) {
	c := New()
	c.SetPosition(0, 0, 10)
	bounds := [6]float32{-1, 1, -1, 1, -1, 1}
	c.ResetClippingRange(bounds)

	assert.Less(t, c.NearPlane(), c.FarPlane())
	assert.Greater(t, c.NearPlane(), float32(0))
}

func TestOrthogonalizeViewUpFallsBackWhenParallelToDirection(t *testing.T) {
	c := New()
	// Direction is -Z; an up vector parallel to it must be replaced.
	c.SetViewUpV(linear.V3{0, 0, -1})
	up := c.ViewUp()
	assert.InDelta(t, 0, dot3(up, c.DirectionOfProjection()), 1e-5)
	assert.InDelta(t, 1, up.Len(), 1e-5)
}

func TestSetOrthogonalizesOnce(t *testing.T) {
	c := New()
	c.Set(linear.V3{0, 0, 5}, linear.V3{0, 0, 0}, linear.V3{0, 1, 0})
	assert.InDelta(t, 0, dot3(c.ViewUp(), c.DirectionOfProjection()), 1e-5)
}

func TestToCameraUBOUsesViewProjection(t *testing.T) {
	c := New()
	ubo := c.ToCameraUBO()
	assert.Equal(t, c.ViewProjectionMatrix(), ubo.ViewProj)
}

func TestToLightUBOCarriesCameraPosition(t *testing.T) {
	c := New()
	ubo := c.ToLightUBO(linear.V3{0, -1, 0}, linear.V3{1, 1, 1}, 2.5)
	assert.Equal(t, float32(0), ubo.CamPos[0])
	assert.Equal(t, float32(1), ubo.CamPos[2])
	assert.Equal(t, float32(2.5), ubo.LightDirection[3])
}
