// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clone

import (
	"log/slog"

	"github.com/localclone/localclone/scene"
)

// StaticClone is the clone of a [scene.MeshRenderer]. Static meshes
// need no deformation, so the primary pass only turns the source into
// a shadow caster. The duplicate shares the source mesh and materials
// and stays parked.
type StaticClone struct {
	source *scene.MeshRenderer
	node   *scene.Node
	dup    *scene.MeshRenderer
	park   ParkMode

	origShadow scene.ShadowMode
	shown      bool
	disposed   bool
}

// NewStaticClone creates the clone of the given mesh renderer.
func NewStaticClone(src *scene.MeshRenderer, opts *Options) *StaticClone {
	sc := &StaticClone{source: src, park: opts.Park, origShadow: src.Shadow}
	sc.node, sc.dup = newDuplicate(&src.RendererBase, src.Mesh, opts)
	park(sc.node, sc.park)
	return sc
}

// Duplicate returns the duplicate renderer.
func (sc *StaticClone) Duplicate() *scene.MeshRenderer { return sc.dup }

func (sc *StaticClone) IsValid() bool {
	return !sc.disposed && !sc.source.IsDestroyed() && !sc.dup.IsDestroyed()
}

func (sc *StaticClone) RenderForPrimaryPass() bool {
	if sc.source.Shadow != scene.ShadowsOnly {
		sc.origShadow = sc.source.Shadow
	}
	sc.source.Shadow = scene.ShadowsOnly
	sc.shown = true
	return true
}

func (sc *StaticClone) RenderForSecondaryPass() {}

func (sc *StaticClone) ResetAfterFrame() {
	if !sc.shown {
		return
	}
	sc.source.Shadow = sc.origShadow
	sc.shown = false
}

func (sc *StaticClone) Dispose() {
	if sc.disposed {
		return
	}
	sc.disposed = true
	if !sc.node.IsDestroyed() {
		sc.node.Destroy()
	}
	slog.Debug("clone.StaticClone: disposed", "node", sc.node.Name)
}
