// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"fmt"

	"github.com/localclone/localclone/compute"
)

// ShadowMode is how a renderer takes part in shadow casting.
type ShadowMode int32

const (
	// ShadowsOff does not cast shadows.
	ShadowsOff ShadowMode = iota

	// ShadowsOn casts shadows and renders normally.
	ShadowsOn

	// ShadowsTwoSided casts shadows from both faces.
	ShadowsTwoSided

	// ShadowsOnly casts shadows but is invisible to cameras.
	ShadowsOnly
)

var shadowModeNames = [...]string{"Off", "On", "TwoSided", "ShadowsOnly"}

func (m ShadowMode) String() string {
	if m < 0 || int(m) >= len(shadowModeNames) {
		return fmt.Sprintf("ShadowMode(%d)", int32(m))
	}
	return shadowModeNames[m]
}

// ProbeUsage is how a renderer samples light or reflection probes.
type ProbeUsage int32

const (
	ProbesOff ProbeUsage = iota
	ProbesBlend
	ProbesSimple
)

// ProbeSettings are the probe sampling settings of a renderer.
// It holds values only, so it can be copied between renderers.
type ProbeSettings struct {
	LightProbes      ProbeUsage
	ReflectionProbes ProbeUsage

	// AnchorPath is the path of the node used as the probe
	// interpolation anchor; empty means the renderer's own bounds.
	AnchorPath string
}

// Renderer is a drawable attached to a [Node]. The set of renderers
// is closed: [*MeshRenderer] and [*SkinnedMeshRenderer].
type Renderer interface {
	// AsRendererBase returns the shared renderer state.
	AsRendererBase() *RendererBase
}

// RendererBase is the state shared by every [Renderer].
type RendererBase struct {
	// Enabled is whether the renderer draws at all.
	Enabled bool

	// Shadow is the shadow casting mode.
	Shadow ShadowMode

	// ReceiveShadows is whether shadows are cast onto this renderer.
	ReceiveShadows bool

	// Materials are the shared materials, one per sub mesh.
	Materials []*Material

	// Props are per instance material overrides.
	Props PropertyBlock

	// Probes are the probe sampling settings.
	Probes ProbeSettings

	// MotionVectors is whether the renderer writes motion vectors.
	MotionVectors bool

	// DynamicOcclusion is whether the renderer is subject to
	// dynamic occlusion culling.
	DynamicOcclusion bool

	// InfiniteBounds disables bounds based culling.
	InfiniteBounds bool

	node *Node
}

func (rb *RendererBase) AsRendererBase() *RendererBase { return rb }

// Node returns the node the renderer is attached to.
func (rb *RendererBase) Node() *Node { return rb.node }

// IsDestroyed returns whether the renderer is gone, which is when
// it is detached or its node has been destroyed.
func (rb *RendererBase) IsDestroyed() bool {
	return rb == nil || rb.node.IsDestroyed() || rb.node.Renderer == nil ||
		rb.node.Renderer.AsRendererBase() != rb
}

// SetSharedMaterials replaces the shared materials with a copy of mats.
func (rb *RendererBase) SetSharedMaterials(mats []*Material) {
	rb.Materials = append(rb.Materials[:0:0], mats...)
}

func newRendererBase() RendererBase {
	return RendererBase{
		Enabled:          true,
		Shadow:           ShadowsOn,
		ReceiveShadows:   true,
		MotionVectors:    true,
		DynamicOcclusion: true,
	}
}

// Attach attaches the renderer to the node, replacing any renderer
// the node already has.
func Attach(n *Node, r Renderer) {
	if old := n.Renderer; old != nil {
		old.AsRendererBase().node = nil
	}
	r.AsRendererBase().node = n
	n.Renderer = r
}

// Detach removes the renderer from its node.
func Detach(r Renderer) {
	rb := r.AsRendererBase()
	if rb.node != nil && rb.node.Renderer == r {
		rb.node.Renderer = nil
	}
	rb.node = nil
}

// MeshRenderer draws a static mesh.
type MeshRenderer struct {
	RendererBase

	// Mesh is the mesh to draw.
	Mesh *Mesh

	// VertexBuffer, if set, is a device vertex buffer drawn in place
	// of the mesh vertices, laid out as [Mesh.Layout].
	VertexBuffer compute.Buffer
}

// NewMeshRenderer attaches a new mesh renderer to the node.
func NewMeshRenderer(n *Node, mesh *Mesh, mats ...*Material) *MeshRenderer {
	mr := &MeshRenderer{RendererBase: newRendererBase(), Mesh: mesh}
	mr.Materials = mats
	Attach(n, mr)
	return mr
}

// SkinQuality is the maximum number of bones that influence a vertex.
type SkinQuality int32

const (
	SkinAuto   SkinQuality = 0
	SkinBone1  SkinQuality = 1
	SkinBones2 SkinQuality = 2
	SkinBones4 SkinQuality = 4
)

// SkinnedMeshRenderer draws a mesh deformed by a skeleton.
type SkinnedMeshRenderer struct {
	RendererBase

	// Mesh is the bind pose mesh.
	Mesh *Mesh

	// Bones are the skeleton nodes, indexed by the mesh bone weights.
	Bones []*Node

	// RootBone is the node whose space the deformed vertices are in.
	// If nil, the renderer node is used.
	RootBone *Node

	// Quality is the number of bone influences used for skinning.
	Quality SkinQuality

	// ForceMatrixRecalculation recomputes skinning for every render
	// instead of once per frame.
	ForceMatrixRecalculation bool

	// SkinnedMotionVectors is whether motion vectors use the
	// previous frame skinning.
	SkinnedMotionVectors bool

	deformed compute.Buffer
}

// NewSkinnedMeshRenderer attaches a new skinned mesh renderer to the node.
func NewSkinnedMeshRenderer(n *Node, mesh *Mesh, bones []*Node, rootBone *Node, mats ...*Material) *SkinnedMeshRenderer {
	sr := &SkinnedMeshRenderer{
		RendererBase:         newRendererBase(),
		Mesh:                 mesh,
		Bones:                bones,
		RootBone:             rootBone,
		SkinnedMotionVectors: true,
	}
	sr.Materials = mats
	Attach(n, sr)
	return sr
}

// Root returns the root bone, falling back on the renderer node.
func (sr *SkinnedMeshRenderer) Root() *Node {
	if sr.RootBone != nil && !sr.RootBone.IsDestroyed() {
		return sr.RootBone
	}
	return sr.node
}

// RendererMesh returns the mesh of a renderer, or nil.
func RendererMesh(r Renderer) *Mesh {
	switch rr := r.(type) {
	case *MeshRenderer:
		return rr.Mesh
	case *SkinnedMeshRenderer:
		return rr.Mesh
	}
	return nil
}
