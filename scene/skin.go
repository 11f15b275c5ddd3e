// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/localclone/localclone/compute"
)

// UpdateSkinning runs linear blend skinning on the CPU and writes the
// deformed vertex stream into the renderer's deformed vertex buffer on
// the given device, allocating it on first use. The stream is laid out
// as [Mesh.Layout] and expressed in the space of [SkinnedMeshRenderer.Root]
// with unit scale, which is what a GPU skinning pass produces.
func (sr *SkinnedMeshRenderer) UpdateSkinning(dev compute.Device) error {
	m := sr.Mesh
	if m.IsDestroyed() || m.NumVertex() == 0 {
		return fmt.Errorf("scene.SkinnedMeshRenderer %s: no mesh to skin", sr.name())
	}
	layout := m.Layout()
	size := m.NumVertex() * layout.Stride()
	if sr.deformed != nil && sr.deformed.Size() != size {
		sr.ReleaseSkinning()
	}
	if sr.deformed == nil {
		buf, err := dev.NewBuffer(sr.name()+"_deformed", size)
		if err != nil {
			return err
		}
		sr.deformed = buf
	}
	return dev.Write(sr.deformed, 0, compute.Float32Bytes(sr.Skin()))
}

// Skin returns the deformed vertices interleaved in [Mesh.Layout].
func (sr *SkinnedMeshRenderer) Skin() []float32 {
	m := sr.Mesh
	n := m.NumVertex()
	layout := m.Layout()
	mats := sr.boneMatrices()
	pos := make([]mgl32.Vec3, n)
	nrm := make([]mgl32.Vec3, 0, n)
	tan := make([]mgl32.Vec4, 0, n)
	for i := range n {
		sm := mgl32.Ident4()
		if i < len(m.Weights) {
			sm = blend(m.Weights[i], mats, sr.influences())
		}
		pos[i] = mgl32.TransformCoordinate(m.Positions[i], sm)
		if layout.Normal {
			nrm = append(nrm, mgl32.TransformNormal(m.Normals[i], sm).Normalize())
		}
		if layout.Tangent {
			t := m.Tangents[i]
			tan = append(tan, mgl32.TransformNormal(t.Vec3(), sm).Normalize().Vec4(t[3]))
		}
	}
	return interleave(layout, pos, nrm, tan)
}

// boneMatrices returns the skinning matrix of every bone, taking bind
// pose vertices into root space.
func (sr *SkinnedMeshRenderer) boneMatrices() []mgl32.Mat4 {
	root := mgl32.Ident4()
	if rn := sr.Root(); rn != nil {
		root = TRS(rn.WorldPosition(), rn.WorldRotation(), mgl32.Vec3{1, 1, 1}).Inv()
	}
	mats := make([]mgl32.Mat4, len(sr.Bones))
	for j, b := range sr.Bones {
		bind := mgl32.Ident4()
		if j < len(sr.Mesh.BindPoses) {
			bind = sr.Mesh.BindPoses[j]
		}
		world := mgl32.Ident4()
		if !b.IsDestroyed() {
			world = b.WorldMatrix()
		}
		mats[j] = root.Mul4(world).Mul4(bind)
	}
	return mats
}

func (sr *SkinnedMeshRenderer) influences() int {
	if sr.Quality <= SkinAuto || sr.Quality > MaxInfluences {
		return MaxInfluences
	}
	return int(sr.Quality)
}

// blend returns the weighted sum of the bone matrices of the influences.
func blend(bw BoneWeight, mats []mgl32.Mat4, influences int) mgl32.Mat4 {
	var sum mgl32.Mat4
	total := float32(0)
	for k := range influences {
		w := bw.Weight[k]
		if w <= 0 || bw.Index[k] < 0 || bw.Index[k] >= len(mats) {
			continue
		}
		sum = sum.Add(mats[bw.Index[k]].Mul(w))
		total += w
	}
	if total == 0 {
		return mgl32.Ident4()
	}
	return sum.Mul(1 / total)
}

// AcquireVertexBuffer returns a new reference to the deformed vertex
// buffer, which the caller must release. It returns
// [compute.ErrBufferUnavailable] before skinning has run once.
func (sr *SkinnedMeshRenderer) AcquireVertexBuffer() (compute.Buffer, error) {
	if sr.deformed == nil {
		return nil, fmt.Errorf("scene.SkinnedMeshRenderer %s: %w", sr.name(), compute.ErrBufferUnavailable)
	}
	sr.deformed.Retain()
	return sr.deformed, nil
}

// ReleaseSkinning drops the renderer's reference to its deformed
// vertex buffer, as a renderer does when it reallocates buffers.
func (sr *SkinnedMeshRenderer) ReleaseSkinning() {
	if sr.deformed != nil {
		sr.deformed.Release()
		sr.deformed = nil
	}
}

func (sr *SkinnedMeshRenderer) name() string {
	if sr.node != nil {
		return sr.node.Name
	}
	return "<detached>"
}
