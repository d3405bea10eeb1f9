// Copyright 2024 The vkwave-go Authors. All rights reserved.

package camera

import (
	"math"

	"github.com/vkwave-go/vkwave/linear"
)

// Value-returning wrappers over linear.V3's pointer-receiver API, so
// camera math reads as ordinary expressions instead of a sequence of
// out-parameter calls.

func add3(a, b linear.V3) (r linear.V3) { r.Add(&a, &b); return }
func sub3(a, b linear.V3) (r linear.V3) { r.Sub(&a, &b); return }
func scale3(s float32, a linear.V3) (r linear.V3) { r.Scale(s, &a); return }
func cross3(a, b linear.V3) (r linear.V3)         { r.Cross(&a, &b); return }
func norm3(a linear.V3) (r linear.V3)             { r.Norm(&a); return }
func dot3(a, b linear.V3) float32                 { return a.Dot(&b) }

// rotateAroundAxis rotates v by angleRad radians about axis, via
// Rodrigues' rotation formula. axis need not be normalized.
func rotateAroundAxis(v, axis linear.V3, angleRad float32) linear.V3 {
	k := norm3(axis)
	cosA := float32(math.Cos(float64(angleRad)))
	sinA := float32(math.Sin(float64(angleRad)))

	term1 := scale3(cosA, v)
	term2 := scale3(sinA, cross3(k, v))
	term3 := scale3(dot3(k, v)*(1-cosA), k)

	return add3(add3(term1, term2), term3)
}

// lookAt builds a right-handed view matrix, matching glm::lookAt.
func lookAt(eye, center, up linear.V3) linear.M4 {
	f := norm3(sub3(center, eye))
	s := norm3(cross3(f, up))
	u := cross3(s, f)

	return linear.M4{
		{s[0], u[0], -f[0], 0},
		{s[1], u[1], -f[1], 0},
		{s[2], u[2], -f[2], 0},
		{-dot3(s, eye), -dot3(u, eye), dot3(f, eye), 1},
	}
}

// perspective builds a right-handed perspective projection with depth
// range [0,1], matching glm::perspective under GLM_FORCE_DEPTH_ZERO_TO_ONE.
func perspective(fovyRad, aspect, near, far float32) linear.M4 {
	tanHalfFovy := float32(math.Tan(float64(fovyRad) / 2))
	var m linear.M4
	m[0][0] = 1 / (aspect * tanHalfFovy)
	m[1][1] = 1 / tanHalfFovy
	m[2][2] = far / (near - far)
	m[2][3] = -1
	m[3][2] = -(far * near) / (far - near)
	return m
}

// ortho builds an orthographic projection with depth range [0,1],
// matching glm::ortho under GLM_FORCE_DEPTH_ZERO_TO_ONE.
func ortho(left, right, bottom, top, near, far float32) linear.M4 {
	var m linear.M4
	m[0][0] = 2 / (right - left)
	m[1][1] = 2 / (top - bottom)
	m[2][2] = -1 / (far - near)
	m[3][0] = -(right + left) / (right - left)
	m[3][1] = -(top + bottom) / (top - bottom)
	m[3][2] = -near / (far - near)
	m[3][3] = 1
	return m
}

func radians(degrees float32) float32 { return degrees * math.Pi / 180 }

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func fmax(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func fabs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
