// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Pose is a local transform: scale, then rotation, then translation.
type Pose struct {
	Pos   mgl32.Vec3
	Rot   mgl32.Quat
	Scale mgl32.Vec3
}

// NewPose returns the identity pose.
func NewPose() Pose {
	return Pose{Rot: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix returns the transform matrix of the pose.
func (p *Pose) Matrix() mgl32.Mat4 {
	return TRS(p.Pos, p.Rot, p.Scale)
}

// SetAxisRotation sets the rotation from an axis and an angle in degrees.
func (p *Pose) SetAxisRotation(x, y, z, angle float32) {
	p.Rot = mgl32.QuatRotate(mgl32.DegToRad(angle), mgl32.Vec3{x, y, z}.Normalize())
}

// TRS returns the matrix translating by pos, rotating by rot and scaling by scale.
func TRS(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}
