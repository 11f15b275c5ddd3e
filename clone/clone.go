// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package clone provides local clones: duplicates of avatar renderers
// that stand in for them during the player camera pass, with the
// vertices of hidden exclusion groups masked out.
package clone

import (
	"fmt"

	"github.com/localclone/localclone/scene"
)

// Kind is the variant of a [Clone].
type Kind int32

const (
	// Static clones wrap a [scene.MeshRenderer].
	Static Kind = iota

	// Skinned clones wrap a [scene.SkinnedMeshRenderer].
	Skinned
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "Static"
	case Skinned:
		return "Skinned"
	}
	return fmt.Sprintf("Kind(%d)", int32(k))
}

// Clone is a local clone. It is a closed variant over [StaticClone]
// and [SkinnedClone]: exactly one of them is set, as given by Kind.
type Clone struct {
	Kind Kind

	Static  *StaticClone
	Skinned *SkinnedClone

	inactive bool
}

// NewStatic returns a clone holding the given static clone.
func NewStatic(sc *StaticClone) *Clone {
	return &Clone{Kind: Static, Static: sc}
}

// NewSkinned returns a clone holding the given skinned clone.
func NewSkinned(sc *SkinnedClone) *Clone {
	return &Clone{Kind: Skinned, Skinned: sc}
}

// IsValid returns false once the source renderer or the duplicate
// has been destroyed outside of the clone, or the clone is disposed.
func (c *Clone) IsValid() bool {
	switch c.Kind {
	case Static:
		return c.Static.IsValid()
	case Skinned:
		return c.Skinned.IsValid()
	}
	return false
}

// IsActive returns whether the clone takes part in rendering.
// Inactive clones are skipped every frame but still checked for validity.
func (c *Clone) IsActive() bool {
	return !c.inactive
}

// SetActive sets whether the clone takes part in rendering.
func (c *Clone) SetActive(active bool) {
	c.inactive = !active
}

// PreProcess returns whether the source is eligible to render this
// frame: enabled, with every ancestor node active.
func (c *Clone) PreProcess() bool {
	return eligible(c.Source())
}

// RenderForPrimaryPass substitutes the duplicate for the source
// for the player camera pass. It returns false when the source keeps
// rendering this frame instead.
func (c *Clone) RenderForPrimaryPass() bool {
	switch c.Kind {
	case Static:
		return c.Static.RenderForPrimaryPass()
	case Skinned:
		return c.Skinned.RenderForPrimaryPass()
	}
	return false
}

// RenderForSecondaryPass prepares the duplicate for a culling pass
// that renders after the primary pass.
func (c *Clone) RenderForSecondaryPass() {
	switch c.Kind {
	case Static:
		c.Static.RenderForSecondaryPass()
	case Skinned:
		c.Skinned.RenderForSecondaryPass()
	}
}

// ResetAfterFrame restores the source and parks the duplicate,
// once every pass of the frame has rendered.
func (c *Clone) ResetAfterFrame() {
	switch c.Kind {
	case Static:
		c.Static.ResetAfterFrame()
	case Skinned:
		c.Skinned.ResetAfterFrame()
	}
}

// Dispose releases the device buffers of the clone and destroys
// its duplicate. It can be called any number of times.
func (c *Clone) Dispose() {
	switch c.Kind {
	case Static:
		c.Static.Dispose()
	case Skinned:
		c.Skinned.Dispose()
	}
}

// Source returns the source renderer.
func (c *Clone) Source() scene.Renderer {
	switch c.Kind {
	case Static:
		return c.Static.source
	case Skinned:
		return c.Skinned.source
	}
	return nil
}

// Duplicate returns the renderer of the duplicate.
func (c *Clone) Duplicate() *scene.MeshRenderer {
	switch c.Kind {
	case Static:
		return c.Static.dup
	case Skinned:
		return c.Skinned.dup
	}
	return nil
}

func (c *Clone) String() string {
	name := "<destroyed>"
	if src := c.Source(); src != nil {
		if n := src.AsRendererBase().Node(); n != nil {
			name = n.Name
		}
	}
	return fmt.Sprintf("%s clone of %s", c.Kind, name)
}

func eligible(r scene.Renderer) bool {
	if r == nil {
		return false
	}
	rb := r.AsRendererBase()
	return rb.Enabled && !rb.IsDestroyed() && rb.Node().ActiveInHierarchy()
}
