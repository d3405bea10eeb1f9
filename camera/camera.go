// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package camera implements a VTK-style orbit/fly camera: position,
// focal point and view-up define the view, plus a perspective or
// parallel projection. It exists so the demo command has something
// real to push into sceneubo.CameraUBO/LightUBO every frame.
package camera

import (
	"math"

	"github.com/vkwave-go/vkwave/linear"
	"github.com/vkwave-go/vkwave/sceneubo"
)

// Camera is a mutable view/projection state, analogous to a VTK camera:
// callers move it by position/focal-point/view-up or via the relative
// movement methods (Azimuth, Dolly, Pan, Zoom, ...).
type Camera struct {
	position   linear.V3
	focalPoint linear.V3
	viewUp     linear.V3

	viewAngle   float32 // degrees, perspective FOV
	aspectRatio float32
	nearPlane   float32
	farPlane    float32

	parallelProjection bool
	parallelScale      float32

	useVulkanClip bool
}

// New returns a camera with the same defaults as a freshly constructed
// VTK-style camera: positioned at (0,0,1) looking at the origin, Y up,
// 60° FOV, 16:9 aspect, near/far of 0.1/1000, perspective projection,
// Vulkan clip-space correction enabled.
func New() *Camera {
	c := &Camera{
		position:      linear.V3{0, 0, 1},
		focalPoint:    linear.V3{0, 0, 0},
		viewUp:        linear.V3{0, 1, 0},
		viewAngle:     60,
		aspectRatio:   16.0 / 9.0,
		nearPlane:     0.1,
		farPlane:      1000,
		parallelScale: 1,
		useVulkanClip: true,
	}
	c.orthogonalizeViewUp()
	return c
}

// Position and Orientation.

func (c *Camera) SetPosition(x, y, z float32) { c.SetPositionV(linear.V3{x, y, z}) }

func (c *Camera) SetPositionV(position linear.V3) {
	c.position = position
	c.orthogonalizeViewUp()
}

func (c *Camera) Position() linear.V3 { return c.position }

func (c *Camera) SetFocalPoint(x, y, z float32) { c.SetFocalPointV(linear.V3{x, y, z}) }

func (c *Camera) SetFocalPointV(focalPoint linear.V3) {
	c.focalPoint = focalPoint
	c.orthogonalizeViewUp()
}

func (c *Camera) FocalPoint() linear.V3 { return c.focalPoint }

func (c *Camera) SetViewUp(x, y, z float32) { c.SetViewUpV(linear.V3{x, y, z}) }

func (c *Camera) SetViewUpV(viewUp linear.V3) {
	c.viewUp = viewUp
	c.orthogonalizeViewUp()
}

func (c *Camera) ViewUp() linear.V3 { return c.viewUp }

// Distance returns the distance between position and focal point.
func (c *Camera) Distance() float32 {
	return sub3(c.position, c.focalPoint).Len()
}

// DirectionOfProjection returns the normalized vector from position
// toward the focal point, or -Z if the two coincide.
func (c *Camera) DirectionOfProjection() linear.V3 {
	dir := sub3(c.focalPoint, c.position)
	if dir.Len() < 1e-6 {
		return linear.V3{0, 0, -1}
	}
	return norm3(dir)
}

// View Frustum.

func (c *Camera) SetClippingRange(near, far float32) {
	c.nearPlane = fmax(near, 0.0001)
	c.farPlane = fmax(far, c.nearPlane+0.0001)
}

func (c *Camera) NearPlane() float32 { return c.nearPlane }
func (c *Camera) FarPlane() float32  { return c.farPlane }

func (c *Camera) SetViewAngle(degrees float32) { c.viewAngle = clamp(degrees, 1, 179) }
func (c *Camera) ViewAngle() float32           { return c.viewAngle }

func (c *Camera) SetAspectRatio(aspect float32) { c.aspectRatio = fmax(aspect, 0.001) }
func (c *Camera) AspectRatio() float32          { return c.aspectRatio }

func (c *Camera) SetParallelProjection(parallel bool) { c.parallelProjection = parallel }
func (c *Camera) ParallelProjection() bool            { return c.parallelProjection }

func (c *Camera) SetParallelScale(scale float32) { c.parallelScale = fmax(scale, 0.0001) }
func (c *Camera) ParallelScale() float32         { return c.parallelScale }

// Camera Movements.

// Azimuth rotates the position around the focal point about the
// view-up axis.
func (c *Camera) Azimuth(angleDegrees float32) {
	offset := sub3(c.position, c.focalPoint)
	offset = rotateAroundAxis(offset, c.viewUp, radians(angleDegrees))
	c.position = add3(c.focalPoint, offset)
	c.orthogonalizeViewUp()
}

// Elevation rotates the position around the focal point about the
// right vector, also tilting view-up to match.
func (c *Camera) Elevation(angleDegrees float32) {
	right := rightVector(c.DirectionOfProjection(), c.viewUp)
	angle := radians(angleDegrees)

	offset := sub3(c.position, c.focalPoint)
	offset = rotateAroundAxis(offset, right, angle)
	c.position = add3(c.focalPoint, offset)

	c.viewUp = norm3(rotateAroundAxis(c.viewUp, right, angle))
	c.orthogonalizeViewUp()
}

// Roll rotates view-up about the direction of projection.
func (c *Camera) Roll(angleDegrees float32) {
	direction := c.DirectionOfProjection()
	c.viewUp = norm3(rotateAroundAxis(c.viewUp, direction, radians(angleDegrees)))
	c.orthogonalizeViewUp()
}

// Yaw rotates the focal point around the position about the view-up
// axis.
func (c *Camera) Yaw(angleDegrees float32) {
	offset := sub3(c.focalPoint, c.position)
	offset = rotateAroundAxis(offset, c.viewUp, radians(angleDegrees))
	c.focalPoint = add3(c.position, offset)
	c.orthogonalizeViewUp()
}

// Pitch rotates the focal point around the position about the right
// vector, also tilting view-up to match.
func (c *Camera) Pitch(angleDegrees float32) {
	right := rightVector(c.DirectionOfProjection(), c.viewUp)
	angle := radians(angleDegrees)

	offset := sub3(c.focalPoint, c.position)
	offset = rotateAroundAxis(offset, right, angle)
	c.focalPoint = add3(c.position, offset)

	c.viewUp = norm3(rotateAroundAxis(c.viewUp, right, angle))
	c.orthogonalizeViewUp()
}

// Dolly moves the position toward (factor > 1) or away from (factor <
// 1) the focal point. No-op for factor <= 0.
func (c *Camera) Dolly(factor float32) {
	if factor <= 0 {
		return
	}
	direction := c.DirectionOfProjection()
	newDist := c.Distance() / factor
	c.position = sub3(c.focalPoint, scale3(newDist, direction))
}

// Pan slides both position and focal point across the view plane.
func (c *Camera) Pan(dx, dy float32) {
	direction := c.DirectionOfProjection()
	right := rightVector(direction, c.viewUp)
	up := norm3(cross3(right, direction))

	offset := add3(scale3(dx, right), scale3(dy, up))
	c.position = add3(c.position, offset)
	c.focalPoint = add3(c.focalPoint, offset)
}

// Zoom narrows the view angle (perspective) or shrinks the parallel
// scale (orthographic). No-op for factor <= 0.
func (c *Camera) Zoom(factor float32) {
	if factor <= 0 {
		return
	}
	if c.parallelProjection {
		c.parallelScale = fmax(c.parallelScale/factor, 0.0001)
	} else {
		c.viewAngle = clamp(c.viewAngle/factor, 1, 179)
	}
}

// ResetCamera frames bounds = {xmin,xmax,ymin,ymax,zmin,zmax} entirely,
// keeping the current viewing direction, and resets the clipping range
// to match.
func (c *Camera) ResetCamera(bounds [6]float32) {
	center, radius := boundsSphere(bounds)
	c.focalPoint = center

	direction := c.DirectionOfProjection()
	if direction.Len() < 1e-6 {
		direction = linear.V3{0, 0, -1}
	}

	var distance float32
	if c.parallelProjection {
		c.parallelScale = radius
		distance = radius * 3
	} else {
		halfAngle := radians(c.viewAngle * 0.5)
		distance = radius / float32(math.Sin(float64(halfAngle)))
	}

	c.position = sub3(c.focalPoint, scale3(distance, direction))
	c.ResetClippingRange(bounds)
}

// ResetClippingRange sets near/far from the bounding sphere of bounds,
// independent of camera orientation.
func (c *Camera) ResetClippingRange(bounds [6]float32) {
	center, radius := boundsSphere(bounds)
	dist := sub3(c.position, center).Len()

	c.nearPlane = fmax(0.001, dist-radius)
	c.farPlane = fmax(c.nearPlane+0.001, dist+radius)
}

// Matrix Computation.

// ViewMatrix returns the look-at matrix for the current
// position/focalPoint/viewUp.
func (c *Camera) ViewMatrix() linear.M4 {
	return lookAt(c.position, c.focalPoint, c.viewUp)
}

// ProjectionMatrix returns the perspective or orthographic projection
// matrix, Vulkan clip-corrected (Y flip, Z in [0,1]) when
// useVulkanClip is set.
func (c *Camera) ProjectionMatrix() linear.M4 {
	var proj linear.M4
	if c.parallelProjection {
		halfWidth := c.parallelScale * c.aspectRatio
		halfHeight := c.parallelScale
		proj = ortho(-halfWidth, halfWidth, -halfHeight, halfHeight, c.nearPlane, c.farPlane)
	} else {
		proj = perspective(radians(c.viewAngle), c.aspectRatio, c.nearPlane, c.farPlane)
	}
	if c.useVulkanClip {
		proj[1][1] *= -1
	}
	return proj
}

// ViewProjectionMatrix returns ProjectionMatrix() * ViewMatrix().
func (c *Camera) ViewProjectionMatrix() linear.M4 {
	proj := c.ProjectionMatrix()
	view := c.ViewMatrix()
	var vp linear.M4
	vp.Mul(&proj, &view)
	return vp
}

// ToCameraUBO packs the current view-projection matrix for upload.
func (c *Camera) ToCameraUBO() sceneubo.CameraUBO {
	return sceneubo.CameraUBO{ViewProj: c.ViewProjectionMatrix()}
}

// ToLightUBO packs the current camera position alongside a light
// direction/color for upload.
func (c *Camera) ToLightUBO(lightDirection, lightColor linear.V3, intensity float32) sceneubo.LightUBO {
	return sceneubo.LightUBO{
		CamPos:         linear.V4{c.position[0], c.position[1], c.position[2], 0},
		LightDirection: linear.V4{lightDirection[0], lightDirection[1], lightDirection[2], intensity},
		LightColor:     linear.V4{lightColor[0], lightColor[1], lightColor[2], 0},
	}
}

// Convenience Methods.

// Set positions the camera in one call, equivalent to SetPositionV +
// SetFocalPointV + SetViewUpV but orthogonalizing only once.
func (c *Camera) Set(position, focalPoint, viewUp linear.V3) {
	c.position = position
	c.focalPoint = focalPoint
	c.viewUp = viewUp
	c.orthogonalizeViewUp()
}

func (c *Camera) SetUseVulkanClip(use bool) { c.useVulkanClip = use }
func (c *Camera) UseVulkanClip() bool       { return c.useVulkanClip }

// orthogonalizeViewUp re-projects view-up onto the plane perpendicular
// to the viewing direction, picking a fallback axis if the two are
// parallel.
func (c *Camera) orthogonalizeViewUp() {
	direction := c.DirectionOfProjection()

	right := cross3(direction, c.viewUp)
	rightLen := right.Len()

	if rightLen < 1e-6 {
		if fabs(direction[1]) < 0.9 {
			c.viewUp = linear.V3{0, 1, 0}
		} else {
			c.viewUp = linear.V3{0, 0, 1}
		}
		right = cross3(direction, c.viewUp)
		rightLen = right.Len()
	}

	right = scale3(1/rightLen, right)
	c.viewUp = norm3(cross3(right, direction))
}

func rightVector(direction, viewUp linear.V3) linear.V3 {
	return norm3(cross3(direction, viewUp))
}

func boundsSphere(bounds [6]float32) (center linear.V3, radius float32) {
	center = linear.V3{
		(bounds[0] + bounds[1]) * 0.5,
		(bounds[2] + bounds[3]) * 0.5,
		(bounds[4] + bounds[5]) * 0.5,
	}
	size := linear.V3{bounds[1] - bounds[0], bounds[3] - bounds[2], bounds[5] - bounds[4]}
	radius = size.Len() * 0.5
	return
}
