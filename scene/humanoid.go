// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

// HumanBone is a bone of a humanoid rig.
type HumanBone int32

const (
	Hips HumanBone = iota
	Spine
	Chest
	UpperChest
	Neck
	Head
	LeftEye
	RightEye
	Jaw
	LeftShoulder
	LeftUpperArm
	LeftLowerArm
	LeftHand
	RightShoulder
	RightUpperArm
	RightLowerArm
	RightHand
	LeftUpperLeg
	LeftLowerLeg
	LeftFoot
	RightUpperLeg
	RightLowerLeg
	RightFoot
	humanBoneCount
)

var humanBoneNames = [...]string{
	"hips", "spine", "chest", "upperChest", "neck", "head",
	"leftEye", "rightEye", "jaw",
	"leftShoulder", "leftUpperArm", "leftLowerArm", "leftHand",
	"rightShoulder", "rightUpperArm", "rightLowerArm", "rightHand",
	"leftUpperLeg", "leftLowerLeg", "leftFoot",
	"rightUpperLeg", "rightLowerLeg", "rightFoot",
}

func (b HumanBone) String() string {
	if b < 0 || b >= humanBoneCount {
		return "unknown"
	}
	return humanBoneNames[b]
}

// HumanBoneByName returns the bone with the given name, as used
// by VRM humanoid descriptions.
func HumanBoneByName(name string) (HumanBone, bool) {
	for i, nm := range humanBoneNames {
		if nm == name {
			return HumanBone(i), true
		}
	}
	return 0, false
}

// Humanoid binds the bones of a humanoid rig to scene nodes.
// It is set on the root node of an avatar once the skeleton
// binding is known.
type Humanoid struct {
	Bones map[HumanBone]*Node
}

// NewHumanoid returns an empty humanoid binding.
func NewHumanoid() *Humanoid {
	return &Humanoid{Bones: map[HumanBone]*Node{}}
}

// SetBone binds the given bone to a node.
func (h *Humanoid) SetBone(b HumanBone, n *Node) *Humanoid {
	h.Bones[b] = n
	return h
}

// Bone returns the node bound to the given bone, or nil if the bone
// is unbound or its node has been destroyed.
func (h *Humanoid) Bone(b HumanBone) *Node {
	if h == nil {
		return nil
	}
	n := h.Bones[b]
	if n.IsDestroyed() {
		return nil
	}
	return n
}

// Head returns the head bone node, or nil.
func (h *Humanoid) Head() *Node {
	return h.Bone(Head)
}

// IsHuman returns whether the binding is a usable humanoid rig,
// which requires at least the hips and the head.
func (h *Humanoid) IsHuman() bool {
	return h.Bone(Hips) != nil && h.Head() != nil
}
