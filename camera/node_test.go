// Copyright 2024 The vkwave-go Authors. All rights reserved.

package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeLocalTracksCameraPosition(t *testing.T) {
	c := New()
	c.SetPosition(1, 2, 3)
	n := NewNode(c)

	local := n.Local()
	assert.Equal(t, float32(1), local[3][0])
	assert.Equal(t, float32(2), local[3][1])
	assert.Equal(t, float32(3), local[3][2])
	assert.Equal(t, float32(1), local[0][0])
	assert.True(t, n.Changed())
}

func TestNodeLocalReflectsLaterMoves(t *testing.T) {
	c := New()
	n := NewNode(c)
	n.Local()

	c.SetPosition(5, 6, 7)
	local := n.Local()
	assert.Equal(t, float32(5), local[3][0])
}
