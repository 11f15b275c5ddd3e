// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/localclone/localclone/compute"
)

// MaxInfluences is the number of bone influences per vertex.
const MaxInfluences = 4

// BoneWeight holds the bone influences of one vertex. Influences
// with a zero weight are unused.
type BoneWeight struct {
	Index  [MaxInfluences]int
	Weight [MaxInfluences]float32
}

// Mesh is vertex geometry with optional skinning data.
type Mesh struct {
	Name string

	Positions []mgl32.Vec3

	// Normals is empty or has one normal per position.
	Normals []mgl32.Vec3

	// Tangents is empty or has one tangent per position,
	// with the handedness in w.
	Tangents []mgl32.Vec4

	Indices []uint32

	// Weights is empty for static meshes or has one entry per position.
	Weights []BoneWeight

	// BindPoses are the inverse bind matrices, one per bone.
	BindPoses []mgl32.Mat4

	destroyed bool
}

// NumVertex returns the number of vertices.
func (m *Mesh) NumVertex() int {
	if m == nil {
		return 0
	}
	return len(m.Positions)
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Name:      m.Name,
		Positions: slices.Clone(m.Positions),
		Normals:   slices.Clone(m.Normals),
		Tangents:  slices.Clone(m.Tangents),
		Indices:   slices.Clone(m.Indices),
		Weights:   slices.Clone(m.Weights),
		BindPoses: slices.Clone(m.BindPoses),
	}
}

// Destroy releases the mesh data.
func (m *Mesh) Destroy() {
	m.Positions, m.Normals, m.Tangents = nil, nil, nil
	m.Indices, m.Weights, m.BindPoses = nil, nil, nil
	m.destroyed = true
}

// IsDestroyed returns whether the mesh has been destroyed.
// A nil mesh counts as destroyed.
func (m *Mesh) IsDestroyed() bool {
	return m == nil || m.destroyed
}

// Layout returns the layout of the deformed vertex stream of the mesh.
func (m *Mesh) Layout() compute.VertexLayout {
	n := len(m.Positions)
	return compute.VertexLayout{
		Position: n > 0,
		Normal:   n > 0 && len(m.Normals) == n,
		Tangent:  n > 0 && len(m.Tangents) == n,
	}
}

// VertexBytes returns the undeformed vertices interleaved in [Mesh.Layout].
func (m *Mesh) VertexBytes() []byte {
	return compute.Float32Bytes(interleave(m.Layout(), m.Positions, m.Normals, m.Tangents))
}

func interleave(l compute.VertexLayout, pos, nrm []mgl32.Vec3, tan []mgl32.Vec4) []float32 {
	vals := make([]float32, 0, len(pos)*l.Floats())
	for i := range pos {
		vals = append(vals, pos[i][:]...)
		if l.Normal {
			vals = append(vals, nrm[i][:]...)
		}
		if l.Tangent {
			vals = append(vals, tan[i][:]...)
		}
	}
	return vals
}
