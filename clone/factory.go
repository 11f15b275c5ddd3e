// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clone

import (
	"strings"

	"github.com/localclone/localclone/compute"
	"github.com/localclone/localclone/exclusion"
	"github.com/localclone/localclone/scene"
)

// Factory decides which renderers get a clone and creates them.
type Factory struct {
	// Options are the options of new clones.
	Options Options

	// Device is the compute device of skinned clones.
	Device compute.Device
}

// NewFactory returns a new factory creating clones on the given device.
func NewFactory(dev compute.Device, opts Options) *Factory {
	return &Factory{Options: opts, Device: dev}
}

// Create returns the clone of the given renderer, or nil if the
// renderer is not eligible, which is not an error. The renderer is
// eligible when:
//   - it is not opted out and its node name has no [LegacyTag];
//   - for a [scene.MeshRenderer], its node is in the exclusion map,
//     it has materials, and its mesh has vertices;
//   - for a [scene.SkinnedMeshRenderer], one of its bones or else its
//     own node is in the exclusion map, it has materials, and it has
//     a mesh with vertices.
//
// [Options.CloneEverything] drops the exclusion map condition.
// Accepted renderers are configured for cloning: no motion vectors,
// no dynamic occlusion, and four bone skinning.
func (f *Factory) Create(r scene.Renderer, m *exclusion.Map) (*Clone, error) {
	if r == nil {
		return nil, nil
	}
	rb := r.AsRendererBase()
	node := rb.Node()
	if rb.IsDestroyed() || node.OptOut || strings.Contains(node.Name, LegacyTag) || IsDuplicate(node) {
		return nil, nil
	}
	opts := &f.Options
	switch rr := r.(type) {
	case *scene.MeshRenderer:
		if !opts.CloneEverything && !m.Contains(node) {
			return nil, nil
		}
		if len(rr.Materials) == 0 || rr.Mesh.IsDestroyed() || rr.Mesh.NumVertex() == 0 {
			return nil, nil
		}
		configure(rr)
		return NewStatic(NewStaticClone(rr, opts)), nil

	case *scene.SkinnedMeshRenderer:
		if !opts.CloneEverything && !f.skinnedExcluded(rr, m) {
			return nil, nil
		}
		if len(rr.Materials) == 0 || rr.Mesh.IsDestroyed() || rr.Mesh.NumVertex() == 0 {
			return nil, nil
		}
		configure(rr)
		mask := BuildVertexMask(rr, m, opts.WeightThreshold)
		sc, err := NewSkinnedClone(rr, mask, f.Device, opts)
		if err != nil {
			return nil, err
		}
		return NewSkinned(sc), nil
	}
	return nil, nil
}

// skinnedExcluded returns whether any bone of the renderer, or else
// its own node, is in the exclusion map.
func (f *Factory) skinnedExcluded(sr *scene.SkinnedMeshRenderer, m *exclusion.Map) bool {
	for _, b := range sr.Bones {
		if m.Contains(b) {
			return true
		}
	}
	return m.Contains(sr.Node())
}
