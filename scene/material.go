// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"slices"

	"cogentcore.org/core/base/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/jinzhu/copier"
)

// Material is a shared material. Materials are compared by identity.
type Material struct {
	Name   string
	Shader string
	Color  mgl32.Vec4
}

// NewMaterial returns a new material using the given shader.
func NewMaterial(name, shader string) *Material {
	return &Material{Name: name, Shader: shader, Color: mgl32.Vec4{1, 1, 1, 1}}
}

// SameMaterials returns whether the two material sequences hold the
// same materials in the same order.
func SameMaterials(a, b []*Material) bool {
	return slices.Equal(a, b)
}

// PropertyBlock holds per instance material overrides, such as
// animated color tints.
type PropertyBlock struct {
	Colors map[string]mgl32.Vec4
	Floats map[string]float32
}

// SetColor sets a color override.
func (pb *PropertyBlock) SetColor(name string, c mgl32.Vec4) {
	if pb.Colors == nil {
		pb.Colors = map[string]mgl32.Vec4{}
	}
	pb.Colors[name] = c
}

// SetFloat sets a float override.
func (pb *PropertyBlock) SetFloat(name string, v float32) {
	if pb.Floats == nil {
		pb.Floats = map[string]float32{}
	}
	pb.Floats[name] = v
}

// IsEmpty returns whether the block has no overrides.
func (pb *PropertyBlock) IsEmpty() bool {
	return len(pb.Colors) == 0 && len(pb.Floats) == 0
}

// CopyTo replaces the overrides of dst with a deep copy of pb.
func (pb *PropertyBlock) CopyTo(dst *PropertyBlock) {
	*dst = PropertyBlock{}
	errors.Log(copier.CopyWithOption(dst, pb, copier.Option{DeepCopy: true}))
}

// CopyProbes copies the probe settings of src into dst.
func CopyProbes(dst, src *RendererBase) {
	errors.Log(copier.Copy(&dst.Probes, &src.Probes))
}
