// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clone

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/localclone/localclone/compute"
	"github.com/localclone/localclone/scene"
)

const (
	// Suffix is appended to the source node name to name the duplicate node.
	Suffix = "_LocalClone"

	// DefaultLayer is the render layer of duplicates.
	DefaultLayer = 9

	// DefaultHiddenVertexMask hides exclusion groups 0 to 9,
	// which covers the head group and the first extra groups.
	DefaultHiddenVertexMask uint32 = 0x3FF

	// DefaultWeightThreshold is the bone weight above which a vertex
	// belongs to the exclusion group of the bone.
	DefaultWeightThreshold float32 = 0.2

	// LegacyTag in a node name excludes its renderer from cloning.
	LegacyTag = "[FPR]"
)

// ParkMode is how a duplicate is moved out of view between frames.
// Duplicates are parked instead of disabled.
type ParkMode int32

const (
	// ParkPosition moves the duplicate to an infinite position.
	ParkPosition ParkMode = iota

	// ParkScale collapses the scale of the duplicate to zero, for
	// environments that reject infinite transforms.
	ParkScale
)

func (p ParkMode) String() string {
	if p == ParkScale {
		return "scale"
	}
	return "position"
}

// ParseParkMode parses "position" or "scale".
func ParseParkMode(s string) (ParkMode, error) {
	switch strings.ToLower(s) {
	case "", "position":
		return ParkPosition, nil
	case "scale":
		return ParkScale, nil
	}
	return ParkPosition, fmt.Errorf("clone: unknown park mode %q", s)
}

// Options are the settings used to create clones.
type Options struct {
	// CloneEverything clones every eligible renderer, whether or
	// not it belongs to an exclusion group.
	CloneEverything bool

	// HiddenVertexMask is the initial hidden vertex mask of skinned clones.
	HiddenVertexMask uint32

	// WeightThreshold is the bone weight above which a vertex
	// belongs to the exclusion group of the bone.
	WeightThreshold float32

	// ThreadsPerGroup is the dispatch granularity of skinned clones.
	ThreadsPerGroup int

	// Park is how duplicates are parked.
	Park ParkMode

	// Layer is the render layer of duplicates.
	Layer int

	// CullingMaterial is used on every slot of skinned duplicates
	// during the secondary pass.
	CullingMaterial *scene.Material
}

// DefaultOptions returns the default clone options.
func DefaultOptions() Options {
	return Options{
		HiddenVertexMask: DefaultHiddenVertexMask,
		WeightThreshold:  DefaultWeightThreshold,
		ThreadsPerGroup:  compute.DefaultThreadsPerGroup,
		Park:             ParkPosition,
		Layer:            DefaultLayer,
		CullingMaterial:  scene.NewMaterial("LocalCloneCulling", "localclone/culling"),
	}
}

// newDuplicate creates the duplicate node as a child of the source node,
// with a mesh renderer drawing the given mesh with the source materials.
func newDuplicate(src *scene.RendererBase, mesh *scene.Mesh, opts *Options) (*scene.Node, *scene.MeshRenderer) {
	node := scene.NewNode(src.Node().Name + Suffix)
	node.Layer = opts.Layer
	src.Node().AddChild(node)
	dup := scene.NewMeshRenderer(node, mesh)
	dup.SetSharedMaterials(src.Materials)
	dup.Shadow = scene.ShadowsOff
	dup.ReceiveShadows = src.ReceiveShadows
	scene.CopyProbes(&dup.RendererBase, src)
	configure(dup)
	return node, dup
}

// configure applies the renderer settings shared by sources and duplicates.
func configure(r scene.Renderer) {
	rb := r.AsRendererBase()
	rb.MotionVectors = false
	rb.DynamicOcclusion = false
	if sr, ok := r.(*scene.SkinnedMeshRenderer); ok {
		sr.SkinnedMotionVectors = false
		sr.ForceMatrixRecalculation = false
		sr.Quality = scene.SkinBones4
	}
}

// park moves the duplicate node out of view.
func park(n *scene.Node, mode ParkMode) {
	switch mode {
	case ParkScale:
		n.Pose.Scale = mgl32.Vec3{}
	default:
		n.Pose.Pos = compute.Sentinel.Vec3()
	}
}

// unpark undoes park with the same mode.
func unpark(n *scene.Node, mode ParkMode) {
	switch mode {
	case ParkScale:
		n.Pose.Scale = mgl32.Vec3{1, 1, 1}
	default:
		n.Pose.Pos = mgl32.Vec3{}
	}
}

// IsDuplicate returns whether the node is a duplicate created by a clone.
func IsDuplicate(n *scene.Node) bool {
	return strings.HasSuffix(n.Name, Suffix)
}
