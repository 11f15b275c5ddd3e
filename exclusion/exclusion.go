// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exclusion builds exclusion maps, which assign the nodes of an
// avatar to the exclusion groups that are hidden from the player
// viewpoint, such as the head.
package exclusion

import (
	"errors"
	"fmt"
	"log/slog"

	"cogentcore.org/core/base/ordmap"
	"cogentcore.org/core/tree"
	"github.com/localclone/localclone/scene"
)

// MaxGroups is the maximum number of exclusion groups of one avatar,
// which is the width of a vertex exclusion mask.
const MaxGroups = 32

// HeadGroupName is the name of the implicit exclusion group on the head bone.
const HeadGroupName = "Head"

var (
	// ErrNoHumanoid is returned when the avatar root has no usable humanoid rig.
	ErrNoHumanoid = errors.New("exclusion: avatar has no humanoid rig")

	// ErrNoHead is returned when the head bone is missing or outside the avatar.
	ErrNoHead = errors.New("exclusion: head bone not found")

	// ErrGroupOverflow is reported when more than [MaxGroups] exclusion
	// groups are requested; the extra groups are dropped.
	ErrGroupOverflow = fmt.Errorf("exclusion: more than %d exclusion groups", MaxGroups)
)

// Group is an exclusion group: a named region hidden from the player
// viewpoint, identified by its bit position in vertex exclusion masks.
type Group struct {
	// ID is the bit position of the group, 0 to 31.
	ID int

	// Name is the name of the group.
	Name string

	// Target is the root node of the region.
	Target *scene.Node
}

// Bit returns the mask bit of the group.
func (g *Group) Bit() uint32 {
	return 1 << uint(g.ID)
}

func (g *Group) String() string {
	return fmt.Sprintf("%d:%s", g.ID, g.Name)
}

// Map maps nodes to the exclusion group they belong to.
// Each node belongs to at most one group. A Map is read only
// once built.
type Map struct {
	nodes  *ordmap.Map[*scene.Node, *Group]
	groups []*Group
}

func newMap() *Map {
	return &Map{nodes: ordmap.New[*scene.Node, *Group]()}
}

// Lookup returns the group of the given node.
func (m *Map) Lookup(n *scene.Node) (*Group, bool) {
	if m == nil {
		return nil, false
	}
	return m.nodes.ValueByKeyTry(n)
}

// Contains returns whether the node belongs to any group.
func (m *Map) Contains(n *scene.Node) bool {
	_, ok := m.Lookup(n)
	return ok
}

// Len returns the number of mapped nodes.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.nodes.Len()
}

// Groups returns the groups in id order. The slice must not be modified.
func (m *Map) Groups() []*Group {
	if m == nil {
		return nil
	}
	return m.groups
}

// Group returns the group with the given id, or nil.
func (m *Map) Group(id int) *Group {
	if m == nil || id < 0 || id >= len(m.groups) {
		return nil
	}
	return m.groups[id]
}

// Each calls the given function for every mapped node, in the order
// nodes were claimed, until it returns false.
func (m *Map) Each(fun func(n *scene.Node, g *Group) bool) {
	if m == nil {
		return
	}
	for _, kv := range m.nodes.Order {
		if !fun(kv.Key, kv.Value) {
			return
		}
	}
}

// Build builds the exclusion map of the avatar rooted at root.
//
// The head bone always forms a group named [HeadGroupName], discovered
// at the head node after any markers placed on it. Every
// [scene.ExclusionMarker] under root whose target is a live node under
// root forms a group, with ids assigned in depth first discovery order. When two markers
// target the same node, the first one discovered wins and the others
// are ignored. Each group then claims the subtree of its target, up to
// nodes claimed by another group.
//
// When root has no humanoid rig or head is not under root, Build
// returns an empty map and [ErrNoHumanoid] or [ErrNoHead].
func Build(root, head *scene.Node) (*Map, error) {
	m := newMap()
	if root.IsDestroyed() || !root.Humanoid.IsHuman() {
		return m, ErrNoHumanoid
	}
	if head.IsDestroyed() || !head.HasAncestor(root) {
		return m, ErrNoHead
	}

	overflow := 0
	claim := func(target *scene.Node, name string) {
		if _, has := m.nodes.ValueByKeyTry(target); has {
			return
		}
		if len(m.groups) >= MaxGroups {
			overflow++
			return
		}
		g := &Group{ID: len(m.groups), Name: name, Target: target}
		m.groups = append(m.groups, g)
		m.nodes.Add(target, g)
	}

	discarded := 0
	root.WalkDown(func(n *scene.Node) bool {
		for _, em := range n.Exclusions {
			if em == nil || em.Target.IsDestroyed() || !em.Target.HasAncestor(root) {
				discarded++
				continue
			}
			claim(em.Target, em.Target.Name)
		}
		if n == head {
			claim(head, HeadGroupName)
		}
		return tree.Continue
	})
	if discarded > 0 {
		slog.Debug("exclusion.Build: discarded markers without a target in the avatar", "avatar", root.Name, "count", discarded)
	}
	if overflow > 0 {
		slog.Warn(ErrGroupOverflow.Error(), "avatar", root.Name, "dropped", overflow)
	}

	for _, g := range m.groups {
		m.propagate(g)
	}
	return m, nil
}

// propagate claims the subtree of the group target, depth first in
// child order, stopping at nodes claimed by a different group.
func (m *Map) propagate(g *Group) {
	stack := []*scene.Node{g.Target}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur, has := m.nodes.ValueByKeyTry(n); has {
			if cur != g {
				continue
			}
		} else {
			m.nodes.Add(n, g)
		}
		for i := n.NumChildren() - 1; i >= 0; i-- {
			if k := scene.AsNode(n.Child(i)); k != nil {
				stack = append(stack, k)
			}
		}
	}
}
