// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"testing"

	"cogentcore.org/core/tree"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/localclone/localclone/compute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHierarchy(t *testing.T) {
	root := NewNode("root")
	a := root.NewChild("a")
	b := a.NewChild("b")
	c := root.NewChild("c")

	assert.Equal(t, "/root/a/b", b.Path())
	assert.Equal(t, b, root.FindNode("a/b"))
	assert.Equal(t, tree.Node(b), root.FindPath("a/b"))
	assert.Nil(t, root.FindNode("a/x"))
	assert.True(t, b.HasAncestor(root))
	assert.False(t, c.HasAncestor(a))

	var order []string
	root.WalkDown(func(k *Node) bool {
		order = append(order, k.Name)
		return k != a
	})
	assert.Equal(t, []string{"root", "a", "c"}, order)

	tree.MoveToParent(b, c)
	assert.Equal(t, 0, a.NumChildren())
	assert.Equal(t, c, b.ParentNode())
	assert.Equal(t, "/root/c/b", b.Path())
	assert.Nil(t, root.ParentNode())
}

func TestActiveAndDestroy(t *testing.T) {
	root := NewNode("root")
	a := root.NewChild("a")
	b := a.NewChild("b")
	assert.True(t, b.ActiveInHierarchy())
	a.Active = false
	assert.False(t, b.ActiveInHierarchy())
	a.Active = true

	mr := NewMeshRenderer(b, &Mesh{Positions: make([]mgl32.Vec3, 3)}, NewMaterial("m", "standard"))
	assert.False(t, mr.IsDestroyed())
	a.Destroy()
	assert.True(t, a.IsDestroyed())
	assert.True(t, b.IsDestroyed())
	assert.True(t, mr.IsDestroyed())
	assert.Equal(t, 0, root.NumChildren())
	assert.False(t, b.ActiveInHierarchy())

	var nilNode *Node
	assert.True(t, nilNode.IsDestroyed())

	// deleting through the tree destroys the subtree too
	c := root.NewChild("c")
	d := c.NewChild("d")
	assert.True(t, root.DeleteChild(c))
	assert.True(t, c.IsDestroyed())
	assert.True(t, d.IsDestroyed())
	assert.Equal(t, 0, root.NumChildren())
	assert.False(t, d.HasAncestor(root))
}

func TestWorldMatrix(t *testing.T) {
	root := NewNode("root")
	root.Pose.Pos = mgl32.Vec3{1, 0, 0}
	root.Pose.SetAxisRotation(0, 1, 0, 90)
	child := root.NewChild("child")
	child.Pose.Pos = mgl32.Vec3{0, 0, 1}

	p := child.WorldPosition()
	assert.InDelta(t, 2, p[0], 1e-5)
	assert.InDelta(t, 0, p[1], 1e-5)
	assert.InDelta(t, 0, p[2], 1e-5)
	assert.True(t, child.WorldRotation().ApproxEqualThreshold(root.Pose.Rot, 1e-5))
}

func TestRendererAttach(t *testing.T) {
	n := NewNode("n")
	mr := NewMeshRenderer(n, &Mesh{})
	assert.Equal(t, n, mr.Node())
	assert.Equal(t, ShadowsOn, mr.Shadow)

	sr := NewSkinnedMeshRenderer(n, &Mesh{}, nil, nil)
	assert.True(t, mr.IsDestroyed())
	assert.False(t, sr.IsDestroyed())
	assert.Equal(t, n, sr.Root())

	Detach(sr)
	assert.True(t, sr.IsDestroyed())
	assert.Nil(t, n.Renderer)
	assert.Equal(t, "ShadowsOnly", ShadowsOnly.String())
}

func TestPropertyBlockCopy(t *testing.T) {
	var src, dst PropertyBlock
	src.SetColor("_Color", mgl32.Vec4{1, 0, 0, 1})
	src.SetFloat("_Blend", 0.5)
	dst.SetFloat("_Stale", 1)
	src.CopyTo(&dst)
	assert.Equal(t, src.Colors, dst.Colors)
	assert.NotContains(t, dst.Floats, "_Stale")

	src.SetColor("_Color", mgl32.Vec4{0, 1, 0, 1})
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, dst.Colors["_Color"])
}

func TestMeshLayout(t *testing.T) {
	m := &Mesh{
		Positions: []mgl32.Vec3{{1, 2, 3}},
		Normals:   []mgl32.Vec3{{0, 1, 0}},
	}
	l := m.Layout()
	assert.Equal(t, compute.VertexLayout{Position: true, Normal: true}, l)
	assert.Equal(t, []float32{1, 2, 3, 0, 1, 0}, compute.BytesFloat32(m.VertexBytes()))

	c := m.Clone()
	c.Positions[0] = mgl32.Vec3{}
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, m.Positions[0])
	c.Destroy()
	assert.True(t, c.IsDestroyed())
	assert.Equal(t, 0, c.NumVertex())
}

func TestSkinning(t *testing.T) {
	root := NewNode("avatar")
	hips := root.NewChild("hips")
	head := hips.NewChild("head")
	head.Pose.Pos = mgl32.Vec3{0, 1, 0}

	mesh := &Mesh{
		Positions: []mgl32.Vec3{{0, 0, 0}, {0, 1.5, 0}},
		Weights: []BoneWeight{
			{Index: [4]int{0}, Weight: [4]float32{1}},
			{Index: [4]int{1}, Weight: [4]float32{1}},
		},
		BindPoses: []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(0, -1, 0)},
	}
	body := root.NewChild("body")
	sr := NewSkinnedMeshRenderer(body, mesh, []*Node{hips, head}, hips)

	dev := compute.NewCPU()
	_, err := sr.AcquireVertexBuffer()
	assert.ErrorIs(t, err, compute.ErrBufferUnavailable)

	// moving the whole avatar leaves root bone space unchanged
	root.Pose.Pos = mgl32.Vec3{5, 0, 0}
	head.Pose.Pos = mgl32.Vec3{0, 2, 0}
	require.NoError(t, sr.UpdateSkinning(dev))
	buf, err := sr.AcquireVertexBuffer()
	require.NoError(t, err)
	out, err := dev.Read(buf)
	require.NoError(t, err)
	buf.Release()
	f := compute.BytesFloat32(out)
	assert.InDeltaSlice(t, []float32{0, 0, 0, 0, 2.5, 0}, f, 1e-5)

	sr.ReleaseSkinning()
	assert.Equal(t, 0, dev.Live())
	assert.Equal(t, 0, dev.OverReleased())
}

func TestHumanoid(t *testing.T) {
	root := NewNode("avatar")
	h := NewHumanoid()
	assert.False(t, h.IsHuman())
	hips := root.NewChild("hips")
	head := hips.NewChild("head")
	h.SetBone(Hips, hips).SetBone(Head, head)
	assert.True(t, h.IsHuman())
	assert.Equal(t, head, h.Head())
	head.Destroy()
	assert.Nil(t, h.Head())
	assert.False(t, h.IsHuman())

	b, ok := HumanBoneByName("head")
	assert.True(t, ok)
	assert.Equal(t, Head, b)
	var nilH *Humanoid
	assert.Nil(t, nilH.Head())
}
