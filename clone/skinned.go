// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clone

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/localclone/localclone/compute"
	"github.com/localclone/localclone/scene"
)

// SkinnedClone is the clone of a [scene.SkinnedMeshRenderer].
// In the primary pass it copies the deformed vertex stream of the
// source into the vertex buffer of a static duplicate on the compute
// device, moving the vertices of hidden exclusion groups out of view.
type SkinnedClone struct {
	// HiddenVertexMask selects the exclusion groups to hide.
	// It can be changed at any time.
	HiddenVertexMask uint32

	source   *scene.SkinnedMeshRenderer
	rootBone *scene.Node
	node     *scene.Node
	dup      *scene.MeshRenderer
	mesh     *scene.Mesh

	dev         compute.Device
	target      compute.Buffer
	mask        compute.Buffer
	layout      compute.VertexLayout
	vertexCount int
	groups      int
	threads     int

	materials        []*scene.Material
	cullingMaterial  *scene.Material
	cullingMaterials []*scene.Material
	culling          bool

	park       ParkMode
	origShadow scene.ShadowMode
	shown      bool
	failed     bool
	disposed   bool
}

// NewSkinnedClone creates the clone of the given skinned renderer,
// allocating its duplicate vertex buffer and uploading the vertex
// exclusion mask to the device.
func NewSkinnedClone(src *scene.SkinnedMeshRenderer, mask VertexExclusionMask, dev compute.Device, opts *Options) (*SkinnedClone, error) {
	n := src.Mesh.NumVertex()
	if len(mask) != n {
		return nil, fmt.Errorf("clone.NewSkinnedClone %s: mask has %d entries for %d vertices", src.Node().Name, len(mask), n)
	}
	threads := compute.ThreadsPerGroup(dev, opts.ThreadsPerGroup)
	sc := &SkinnedClone{
		HiddenVertexMask: opts.HiddenVertexMask,
		source:           src,
		rootBone:         src.Root(),
		dev:              dev,
		vertexCount:      n,
		groups:           compute.Groups(n, threads),
		threads:          threads,
		park:             opts.Park,
		origShadow:       src.Shadow,
		mesh:             src.Mesh.Clone(),
	}
	sc.mesh.Name = src.Mesh.Name + Suffix
	sc.layout = sc.mesh.Layout()

	var err error
	sc.target, err = dev.NewBufferInit(sc.mesh.Name, sc.mesh.VertexBytes())
	if err != nil {
		return nil, fmt.Errorf("clone.NewSkinnedClone %s: %w", src.Node().Name, err)
	}
	sc.mask, err = dev.NewBufferInit(sc.mesh.Name+"_mask", compute.Uint32Bytes(mask))
	if err != nil {
		sc.target.Release()
		return nil, fmt.Errorf("clone.NewSkinnedClone %s: %w", src.Node().Name, err)
	}

	sc.node, sc.dup = newDuplicate(&src.RendererBase, sc.mesh, opts)
	sc.dup.InfiniteBounds = true
	sc.dup.VertexBuffer = sc.target
	sc.cullingMaterial = opts.CullingMaterial
	sc.setMaterials(sc.dup.Materials)
	park(sc.node, sc.park)
	return sc, nil
}

// Duplicate returns the duplicate renderer.
func (sc *SkinnedClone) Duplicate() *scene.MeshRenderer { return sc.dup }

// Target returns the vertex buffer of the duplicate.
func (sc *SkinnedClone) Target() compute.Buffer { return sc.target }

// Groups returns the number of work groups dispatched per frame.
func (sc *SkinnedClone) Groups() int { return sc.groups }

func (sc *SkinnedClone) IsValid() bool {
	return !sc.disposed && !sc.source.IsDestroyed() && !sc.dup.IsDestroyed() &&
		!sc.rootBone.IsDestroyed() && !sc.mesh.IsDestroyed()
}

// RenderForPrimaryPass masks the current deformed vertices of the source
// into the duplicate, then shows the duplicate and turns the source into
// a shadow caster. It returns whether the duplicate is shown. When the
// source has no deformed vertices yet, or the dispatch fails, the source
// renders normally this frame. A failing dispatch is logged once, until
// it succeeds again.
func (sc *SkinnedClone) RenderForPrimaryPass() bool {
	if err := sc.dispatch(); err != nil {
		switch {
		case errors.Is(err, compute.ErrBufferUnavailable):
			slog.Debug("clone.SkinnedClone: skipping frame", "node", sc.node.Name, "err", err)
		case !sc.failed:
			sc.failed = true
			slog.Error("clone.SkinnedClone: dispatch failed, rendering the source until it succeeds", "node", sc.node.Name, "err", err)
		}
		return false
	}
	if sc.failed {
		sc.failed = false
		slog.Info("clone.SkinnedClone: dispatch recovered", "node", sc.node.Name)
	}
	sc.syncMaterials()
	unpark(sc.node, sc.park)
	if sc.source.Shadow != scene.ShadowsOnly {
		sc.origShadow = sc.source.Shadow
	}
	sc.source.Shadow = scene.ShadowsOnly
	sc.shown = true
	return true
}

// dispatch runs the masking kernel on the deformed vertex buffer of the
// source, which is acquired and released within the call.
func (sc *SkinnedClone) dispatch() error {
	src, err := sc.source.AcquireVertexBuffer()
	if err != nil {
		return err
	}
	defer src.Release()
	return sc.dev.Dispatch(&compute.Kernel{
		Source:          src,
		Target:          sc.target,
		Mask:            sc.mask,
		Layout:          sc.layout,
		VertexCount:     sc.vertexCount,
		HiddenMask:      sc.HiddenVertexMask,
		HiddenPos:       compute.Sentinel,
		Root:            sc.rootMatrix(),
		Groups:          sc.groups,
		ThreadsPerGroup: sc.threads,
	})
}

// rootMatrix maps root bone space into the space of the source node.
func (sc *SkinnedClone) rootMatrix() mgl32.Mat4 {
	root := scene.TRS(sc.rootBone.WorldPosition(), sc.rootBone.WorldRotation(), mgl32.Vec3{1, 1, 1})
	return sc.source.Node().WorldMatrix().Inv().Mul4(root)
}

// syncMaterials copies the shared materials of the source when they
// differ from the duplicate, and the property block every frame.
func (sc *SkinnedClone) syncMaterials() {
	if !scene.SameMaterials(sc.source.Materials, sc.dup.Materials) {
		sc.dup.SetSharedMaterials(sc.source.Materials)
		sc.setMaterials(sc.dup.Materials)
	}
	sc.source.Props.CopyTo(&sc.dup.Props)
}

// setMaterials records the materials of the duplicate, with one
// culling material per slot.
func (sc *SkinnedClone) setMaterials(mats []*scene.Material) {
	sc.materials = mats
	if len(sc.cullingMaterials) == len(mats) {
		return
	}
	sc.cullingMaterials = make([]*scene.Material, len(mats))
	for i := range sc.cullingMaterials {
		sc.cullingMaterials[i] = sc.cullingMaterial
	}
}

// RenderForSecondaryPass swaps the duplicate to the culling materials,
// reusing the vertices of the primary pass.
func (sc *SkinnedClone) RenderForSecondaryPass() {
	if !sc.shown {
		return
	}
	sc.dup.Materials = sc.cullingMaterials
	sc.culling = true
}

func (sc *SkinnedClone) ResetAfterFrame() {
	if sc.culling {
		sc.dup.Materials = sc.materials
		sc.culling = false
	}
	if !sc.shown {
		return
	}
	sc.source.Shadow = sc.origShadow
	park(sc.node, sc.park)
	sc.shown = false
}

func (sc *SkinnedClone) Dispose() {
	if sc.disposed {
		return
	}
	sc.disposed = true
	sc.target.Release()
	sc.mask.Release()
	sc.target, sc.mask = nil, nil
	sc.dup.VertexBuffer = nil
	if !sc.node.IsDestroyed() {
		sc.node.Destroy()
	}
	sc.mesh.Destroy()
	slog.Debug("clone.SkinnedClone: disposed", "node", sc.node.Name)
}
