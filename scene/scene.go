// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package scene provides functionality for creating and
// rendering scene graphs.
package scene

import (
	"github.com/vkwave-go/vkwave/linear"
	"github.com/vkwave-go/vkwave/node"
)

// Scene defines a scene graph.
type Scene struct {
	graph node.Graph
}

// New creates an initialized scene.
func New() *Scene { return new(Scene).Init() }

// Init initializes a scene.
func (s *Scene) Init() *Scene {
	return s
}

// Insert inserts n as a descendant of prev (node.Nil for an
// unconnected/root node) and returns its identifying Node.
func (s *Scene) Insert(n node.Interface, prev node.Node) node.Node {
	return s.graph.Insert(n, prev)
}

// Remove removes a node and its descendants from the scene.
func (s *Scene) Remove(n node.Node) []node.Interface {
	return s.graph.Remove(n)
}

// Update recomputes world transforms for every node whose local
// transform (or an ancestor's) has changed.
func (s *Scene) Update() {
	s.graph.Update()
}

// World returns the world transform of n (node.Nil for the scene's
// global transform).
func (s *Scene) World(n node.Node) *linear.M4 {
	return s.graph.World(n)
}

// SetWorld sets the scene's global transform, applied to every
// unconnected (root) node.
func (s *Scene) SetWorld(w linear.M4) {
	s.graph.SetWorld(w)
}

// Len returns the number of nodes currently in the scene.
func (s *Scene) Len() int {
	return s.graph.Len()
}
