// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scene

// CameraRole is the role of a camera within a frame.
type CameraRole int32

const (
	// RoleOther is any camera that does not take part in substitution,
	// such as mirrors or portals.
	RoleOther CameraRole = iota

	// RolePrimary is the camera representing the player viewpoint.
	RolePrimary

	// RoleSecondary is a UI or occlusion culling camera that renders
	// after the primary camera.
	RoleSecondary
)

func (r CameraRole) String() string {
	switch r {
	case RolePrimary:
		return "Primary"
	case RoleSecondary:
		return "Secondary"
	}
	return "Other"
}

// Camera is a camera as seen by render event callbacks.
type Camera struct {
	Name string
	Role CameraRole

	// Node is the node the camera is attached to, if any.
	Node *Node
}

// NewCamera returns a new camera with the given role.
func NewCamera(name string, role CameraRole) *Camera {
	return &Camera{Name: name, Role: role}
}
