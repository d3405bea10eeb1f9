// Copyright 2024 The vkwave-go Authors. All rights reserved.

package camera

import "github.com/vkwave-go/vkwave/linear"

// Node adapts a Camera to node.Interface so it can be placed in a
// scene graph: its local transform is a pure translation to the
// camera's position, letting a parent node (e.g. a dolly or a rig)
// carry the camera around without the camera itself knowing about
// the rest of the scene.
type Node struct {
	Camera *Camera
	local  linear.M4
}

// NewNode wraps cam for insertion into a scene graph.
func NewNode(cam *Camera) *Node { return &Node{Camera: cam} }

// Local returns the camera's position as a translation matrix.
func (n *Node) Local() *linear.M4 {
	n.local.I()
	p := n.Camera.Position()
	n.local[3][0] = p[0]
	n.local[3][1] = p[1]
	n.local[3][2] = p[2]
	return &n.local
}

// Changed always reports true: a camera can be repositioned at any
// time by the controller driving it, and recomputing one 4x4 product
// per frame is cheap enough that tracking a dirty bit isn't worth the
// bookkeeping.
func (n *Node) Changed() bool { return true }
