// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scene provides the scene model that local clones operate on:
// a node hierarchy with poses, mesh and skinned mesh renderers,
// materials, cameras, and the markers avatar authors place on nodes.
// Hosts mirror their own scene graph into it.
package scene

import (
	"cogentcore.org/core/tree"
	"github.com/go-gl/mathgl/mgl32"
)

// Node is a single node in a scene hierarchy. The hierarchy itself is
// a [tree.NodeBase] tree; Node adds the pose and the markers that local
// clones read.
type Node struct {
	tree.NodeBase

	// Pose is the local transform relative to the parent.
	Pose Pose

	// Active is whether the node itself is active; see [Node.ActiveInHierarchy].
	Active bool

	// Layer is the render layer of the node.
	Layer int

	// Renderer is the renderer attached to this node, if any.
	Renderer Renderer

	// Exclusions are the exclusion markers placed on this node.
	Exclusions []*ExclusionMarker

	// OptOut marks the renderer on this node as never to be cloned.
	OptOut bool

	// Humanoid is the humanoid rig binding, set on avatar roots.
	Humanoid *Humanoid

	destroyed bool
}

var _ tree.Node = (*Node)(nil)

// NewNode returns a new active root node with an identity pose.
// Names do not need to be unique; an empty name becomes "node".
func NewNode(name string) *Node {
	if name == "" {
		name = "node"
	}
	n := &Node{Active: true, Pose: NewPose()}
	n.Name = name
	tree.InitNode(n)
	return n
}

// AsNode returns the given tree node as a *Node, or nil if it is not one.
func AsNode(k tree.Node) *Node {
	n, _ := k.(*Node)
	return n
}

// NewChild adds a new child node with the given name.
func (n *Node) NewChild(name string) *Node {
	c := NewNode(name)
	n.AddChild(c)
	return c
}

// ParentNode returns the parent of the node, or nil for a root.
func (n *Node) ParentNode() *Node {
	if n.Parent == nil {
		return nil
	}
	return AsNode(n.Parent)
}

// FindNode returns the descendant at the given slash separated path
// of names relative to n, or nil if there is none.
func (n *Node) FindNode(path string) *Node {
	if n.This == nil {
		return nil
	}
	return AsNode(n.FindPath(path))
}

// Destroy destroys the node and its whole subtree and deletes it from
// its parent. Destroyed nodes and their renderers are no longer valid.
func (n *Node) Destroy() {
	if n.destroyed {
		return
	}
	n.destroyed = true
	if n.Parent != nil {
		n.Parent.AsTree().DeleteChild(n)
	}
	n.NodeBase.Destroy()
}

// IsDestroyed returns whether the node has been destroyed.
// A nil node counts as destroyed.
func (n *Node) IsDestroyed() bool {
	return n == nil || n.destroyed
}

// ActiveInHierarchy returns whether the node and all of its ancestors are active.
func (n *Node) ActiveInHierarchy() bool {
	for k := n; k != nil; k = k.ParentNode() {
		if !k.Active || k.destroyed {
			return false
		}
	}
	return true
}

// HasAncestor returns whether a is n or one of its ancestors.
func (n *Node) HasAncestor(a *Node) bool {
	if n.IsDestroyed() || a == nil {
		return false
	}
	found := false
	n.WalkUp(func(k tree.Node) bool {
		found = k == tree.Node(a)
		return !found
	})
	return found
}

// WalkDown calls the given function on the node and all of its
// descendants, depth first in child order. The descendants of a node
// are skipped when the function returns [tree.Break] for it.
func (n *Node) WalkDown(fun func(k *Node) bool) {
	n.NodeBase.WalkDown(func(k tree.Node) bool {
		kn := AsNode(k)
		if kn == nil {
			return tree.Break
		}
		return fun(kn)
	})
}

// Renderers returns every renderer in the subtree of n, including
// those on inactive nodes, in depth first order.
func (n *Node) Renderers() []Renderer {
	var rs []Renderer
	n.WalkDown(func(k *Node) bool {
		if k.Renderer != nil {
			rs = append(rs, k.Renderer)
		}
		return tree.Continue
	})
	return rs
}

// LocalMatrix returns the local transform matrix.
func (n *Node) LocalMatrix() mgl32.Mat4 {
	return n.Pose.Matrix()
}

// WorldMatrix returns the local to world transform matrix.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.Pose.Matrix()
	for k := n.ParentNode(); k != nil; k = k.ParentNode() {
		m = k.Pose.Matrix().Mul4(m)
	}
	return m
}

// WorldPosition returns the position of the node in world space.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

// WorldRotation returns the rotation of the node in world space.
func (n *Node) WorldRotation() mgl32.Quat {
	q := n.Pose.Rot
	for k := n.ParentNode(); k != nil; k = k.ParentNode() {
		q = k.Pose.Rot.Mul(q)
	}
	return q.Normalize()
}

// AddExclusion places a new exclusion marker on the node, targeting
// the given node.
func (n *Node) AddExclusion(target *Node) *ExclusionMarker {
	em := &ExclusionMarker{Target: target}
	n.Exclusions = append(n.Exclusions, em)
	return em
}

// ExclusionMarker is a manual exclusion placed by an avatar author.
// The subtree rooted at Target is hidden from the primary viewpoint
// as its own exclusion group.
type ExclusionMarker struct {
	Target *Node
}
