// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exclusion

import (
	"fmt"
	"testing"

	"github.com/localclone/localclone/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rig is a small humanoid hierarchy:
//
//	avatar
//	  hips
//	    spine
//	      neck
//	        head
//	          hat
//	            feather
//	          hair
//	    leg
func rig() (root, head *scene.Node) {
	root = scene.NewNode("avatar")
	hips := root.NewChild("hips")
	spine := hips.NewChild("spine")
	neck := spine.NewChild("neck")
	head = neck.NewChild("head")
	hat := head.NewChild("hat")
	hat.NewChild("feather")
	head.NewChild("hair")
	hips.NewChild("leg")
	root.Humanoid = scene.NewHumanoid().SetBone(scene.Hips, hips).SetBone(scene.Head, head)
	return
}

func groupOf(t *testing.T, m *Map, root *scene.Node, path string) *Group {
	t.Helper()
	n := root.FindNode(path)
	require.NotNil(t, n, path)
	g, _ := m.Lookup(n)
	return g
}

func TestHeadOnly(t *testing.T) {
	root, head := rig()
	m, err := Build(root, head)
	require.NoError(t, err)
	require.Len(t, m.Groups(), 1)
	g := m.Group(0)
	assert.Equal(t, HeadGroupName, g.Name)
	assert.Equal(t, uint32(1), g.Bit())

	assert.Equal(t, 4, m.Len())
	for _, p := range []string{"hips/spine/neck/head", "hips/spine/neck/head/hat", "hips/spine/neck/head/hat/feather", "hips/spine/neck/head/hair"} {
		assert.Equal(t, g, groupOf(t, m, root, p), p)
	}
	assert.False(t, m.Contains(root.FindNode("hips/spine/neck")))
	assert.False(t, m.Contains(root.FindNode("hips/leg")))
}

func TestNestedGroups(t *testing.T) {
	root, head := rig()
	hat := root.FindNode("hips/spine/neck/head/hat")
	leg := root.FindNode("hips/leg")
	// markers on the avatar root are discovered before the head
	root.AddExclusion(hat)
	leg.AddExclusion(leg)

	m, err := Build(root, head)
	require.NoError(t, err)
	require.Len(t, m.Groups(), 3)
	assert.Equal(t, "hat", m.Group(0).Name)
	assert.Equal(t, HeadGroupName, m.Group(1).Name)
	assert.Equal(t, "leg", m.Group(2).Name)

	// the head group does not overwrite the inner hat root
	assert.Equal(t, m.Group(0), groupOf(t, m, root, "hips/spine/neck/head/hat"))
	assert.Equal(t, m.Group(0), groupOf(t, m, root, "hips/spine/neck/head/hat/feather"))
	assert.Equal(t, m.Group(1), groupOf(t, m, root, "hips/spine/neck/head"))
	assert.Equal(t, m.Group(1), groupOf(t, m, root, "hips/spine/neck/head/hair"))
	assert.Equal(t, m.Group(2), groupOf(t, m, root, "hips/leg"))
}

func TestPropagation(t *testing.T) {
	root, head := rig()
	root.AddExclusion(root.FindNode("hips/spine"))
	root.AddExclusion(root.FindNode("hips/spine/neck/head/hair"))
	m, err := Build(root, head)
	require.NoError(t, err)

	// every mapped node has the group of its nearest group root
	roots := map[*scene.Node]*Group{}
	for _, g := range m.Groups() {
		roots[g.Target] = g
	}
	seen := map[*scene.Node]bool{}
	m.Each(func(n *scene.Node, g *Group) bool {
		assert.False(t, seen[n], "node mapped twice: %s", n.Path())
		seen[n] = true
		for k := n; k != nil; k = k.ParentNode() {
			if rg, ok := roots[k]; ok {
				assert.Equal(t, rg, g, n.Path())
				break
			}
		}
		return true
	})
	assert.Equal(t, "spine", groupOf(t, m, root, "hips/spine/neck").Name)
	assert.Equal(t, HeadGroupName, groupOf(t, m, root, "hips/spine/neck/head/hat").Name)
	assert.Equal(t, "hair", groupOf(t, m, root, "hips/spine/neck/head/hair").Name)
}

func TestTieBreak(t *testing.T) {
	root, head := rig()
	leg := root.FindNode("hips/leg")
	root.AddExclusion(leg)
	root.FindNode("hips").AddExclusion(leg)

	m, err := Build(root, head)
	require.NoError(t, err)
	require.Len(t, m.Groups(), 2)
	g := groupOf(t, m, root, "hips/leg")
	assert.Equal(t, 0, g.ID)
	assert.Equal(t, HeadGroupName, m.Group(1).Name)
}

func TestInvalidMarkers(t *testing.T) {
	root, head := rig()
	gone := root.NewChild("gone")
	root.AddExclusion(nil)
	root.AddExclusion(gone)
	gone.Destroy()
	other := scene.NewNode("other")
	root.AddExclusion(other.NewChild("prop"))

	m, err := Build(root, head)
	require.NoError(t, err)
	require.Len(t, m.Groups(), 1)
	assert.Equal(t, 0, groupOf(t, m, root, "hips/spine/neck/head").ID)
	assert.False(t, m.Contains(other.FindNode("prop")))
}

func TestOverflow(t *testing.T) {
	root, head := rig()
	extra := root.NewChild("extra")
	for i := range MaxGroups + 3 {
		root.AddExclusion(extra.NewChild(fmt.Sprintf("x%d", i)))
	}
	m, err := Build(root, head)
	require.NoError(t, err)
	assert.Len(t, m.Groups(), MaxGroups)
	assert.Equal(t, MaxGroups-1, m.Group(MaxGroups-1).ID)
	// the head is discovered after the markers on the root and is dropped
	assert.False(t, m.Contains(head))
	assert.False(t, m.Contains(root.FindNode("extra/x32")))
}

func TestBuildFailures(t *testing.T) {
	root, head := rig()
	m, err := Build(root, scene.NewNode("loose"))
	assert.ErrorIs(t, err, ErrNoHead)
	assert.Equal(t, 0, m.Len())

	_, err = Build(root, nil)
	assert.ErrorIs(t, err, ErrNoHead)

	root.Humanoid = nil
	m, err = Build(root, head)
	assert.ErrorIs(t, err, ErrNoHumanoid)
	assert.Empty(t, m.Groups())

	var none *Map
	assert.False(t, none.Contains(head))
	assert.Equal(t, 0, none.Len())
}
