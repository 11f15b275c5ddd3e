// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package demo builds procedural humanoid avatars, used by the
// localclone command and by tests.
package demo

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/localclone/localclone/scene"
)

const (
	// Height is the height of the body mesh.
	Height = 1.8

	// Radius is the radius of the body mesh.
	Radius = 0.2

	spineY = 0.6
	headY  = 1.4
	blendY = 1.2
)

// Config configures [NewAvatar].
type Config struct {
	// Segments is the number of vertices around the body.
	Segments int `default:"8"`

	// Rings is the number of vertex rings along the body.
	Rings int `default:"16"`

	// Accessories adds a hat on the head and shoes on the hips,
	// as static meshes.
	Accessories bool `default:"true"`
}

// Avatar is a procedural humanoid avatar with a three bone skeleton
// (hips, spine, head) and a skinned cylindrical body.
type Avatar struct {
	Root  *scene.Node
	Hips  *scene.Node
	Spine *scene.Node
	Head  *scene.Node

	Body *scene.SkinnedMeshRenderer

	// Hat is on the head, and Shoes on the hips; both are nil
	// without accessories.
	Hat   *scene.MeshRenderer
	Shoes *scene.MeshRenderer
}

// NewAvatar returns a new avatar with the given name.
func NewAvatar(name string, cfg Config) *Avatar {
	if cfg.Segments < 3 {
		cfg.Segments = 3
	}
	if cfg.Rings < 2 {
		cfg.Rings = 2
	}
	av := &Avatar{Root: scene.NewNode(name)}
	armature := av.Root.NewChild("Armature")
	av.Hips = armature.NewChild("Hips")
	av.Spine = av.Hips.NewChild("Spine")
	av.Spine.Pose.Pos = mgl32.Vec3{0, spineY, 0}
	av.Head = av.Spine.NewChild("Head")
	av.Head.Pose.Pos = mgl32.Vec3{0, headY - spineY, 0}
	av.Root.Humanoid = scene.NewHumanoid().
		SetBone(scene.Hips, av.Hips).
		SetBone(scene.Spine, av.Spine).
		SetBone(scene.Head, av.Head)

	skin := scene.NewMaterial("Skin", "standard")
	bodyNode := av.Root.NewChild("Body")
	av.Body = scene.NewSkinnedMeshRenderer(bodyNode, bodyMesh(cfg.Segments, cfg.Rings),
		[]*scene.Node{av.Hips, av.Spine, av.Head}, av.Hips, skin)
	av.Body.Props.SetColor("_Color", mgl32.Vec4{1, 0.8, 0.7, 1})

	if cfg.Accessories {
		cloth := scene.NewMaterial("Cloth", "standard")
		hat := av.Head.NewChild("Hat")
		hat.Pose.Pos = mgl32.Vec3{0, Height - headY, 0}
		av.Hat = scene.NewMeshRenderer(hat, boxMesh("Hat", 0.25), cloth)
		shoes := av.Hips.NewChild("Shoes")
		av.Shoes = scene.NewMeshRenderer(shoes, boxMesh("Shoes", 0.15), cloth)
	}
	return av
}

// Pose turns the head by the given yaw and the spine by the given
// pitch, in degrees.
func (av *Avatar) Pose(yaw, pitch float32) {
	av.Head.Pose.SetAxisRotation(0, 1, 0, yaw)
	av.Spine.Pose.SetAxisRotation(1, 0, 0, pitch)
}

// bodyMesh returns a cylinder along y, weighted to the hips, spine
// and head bones by height, blending from spine to head below the head.
func bodyMesh(segments, rings int) *scene.Mesh {
	m := &scene.Mesh{
		Name: "Body",
		BindPoses: []mgl32.Mat4{
			mgl32.Ident4(),
			mgl32.Translate3D(0, -spineY, 0),
			mgl32.Translate3D(0, -headY, 0),
		},
	}
	for r := range rings {
		y := Height * float32(r) / float32(rings-1)
		for s := range segments {
			a := 2 * math32.Pi * float32(s) / float32(segments)
			sin, cos := math32.Sincos(a)
			m.Positions = append(m.Positions, mgl32.Vec3{Radius * cos, y, Radius * sin})
			m.Normals = append(m.Normals, mgl32.Vec3{cos, 0, sin})
			m.Tangents = append(m.Tangents, mgl32.Vec4{-sin, 0, cos, 1})
			m.Weights = append(m.Weights, weight(y))
		}
	}
	for r := range rings - 1 {
		for s := range segments {
			a := uint32(r*segments + s)
			b := uint32(r*segments + (s+1)%segments)
			c, d := a+uint32(segments), b+uint32(segments)
			m.Indices = append(m.Indices, a, c, b, b, c, d)
		}
	}
	return m
}

// weight returns the bone weights at the given height.
func weight(y float32) scene.BoneWeight {
	switch {
	case y < spineY:
		return scene.BoneWeight{Index: [4]int{0}, Weight: [4]float32{1}}
	case y < blendY:
		return scene.BoneWeight{Index: [4]int{1}, Weight: [4]float32{1}}
	case y < headY:
		h := (y - blendY) / (headY - blendY)
		return scene.BoneWeight{Index: [4]int{2, 1}, Weight: [4]float32{h, 1 - h}}
	}
	return scene.BoneWeight{Index: [4]int{2}, Weight: [4]float32{1}}
}

// boxMesh returns an axis aligned cube of the given half size.
func boxMesh(name string, h float32) *scene.Mesh {
	m := &scene.Mesh{Name: name}
	for i := range 8 {
		m.Positions = append(m.Positions, mgl32.Vec3{
			h * sign(i&1), h * sign(i&2), h * sign(i&4),
		})
	}
	m.Indices = []uint32{
		0, 2, 1, 1, 2, 3, 4, 5, 6, 5, 7, 6,
		0, 1, 4, 1, 5, 4, 2, 6, 3, 3, 6, 7,
		0, 4, 2, 2, 4, 6, 1, 3, 5, 3, 7, 5,
	}
	return m
}

func sign(bit int) float32 {
	if bit != 0 {
		return 1
	}
	return -1
}
