// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package localclone

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/localclone/localclone/clone"
	"github.com/localclone/localclone/compute"
	"github.com/localclone/localclone/demo"
	"github.com/localclone/localclone/exclusion"
	"github.com/localclone/localclone/scene"
	"github.com/localclone/localclone/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	primary   = scene.NewCamera("player", scene.RolePrimary)
	secondary = scene.NewCamera("culling", scene.RoleSecondary)
	mirror    = scene.NewCamera("mirror", scene.RoleOther)
)

// setup returns a manager with the demo avatar set up on a CPU device.
func setup(t *testing.T) (*Manager, *demo.Avatar, *compute.CPU) {
	dev := compute.NewCPU()
	m := NewManager(dev).SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	av := demo.NewAvatar("avatar", demo.Config{Segments: 4, Rings: 4, Accessories: true})
	n, err := m.SetupSubstitution(av.Root)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, av.Body.UpdateSkinning(dev))
	return m, av, dev
}

func cloneOf(m *Manager, kind clone.Kind) *clone.Clone {
	for _, c := range m.Clones() {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

func parked(n *scene.Node) bool {
	return math32.IsInf(n.Pose.Pos[0], 1)
}

func TestSetupSubstitution(t *testing.T) {
	m, av, dev := setup(t)
	assert.Equal(t, 2, m.Len())
	sk := cloneOf(m, clone.Skinned)
	st := cloneOf(m, clone.Static)
	require.NotNil(t, sk)
	require.NotNil(t, st)
	assert.Equal(t, av.Body, sk.Source())
	assert.Equal(t, av.Hat, st.Source())
	assert.Equal(t, "Skinned clone of Body", sk.String())

	// the deformed buffer, the clone target and the vertex mask
	assert.Equal(t, 3, dev.Live())

	// setting up again clones neither the sources nor the duplicates
	n, err := m.SetupSubstitution(av.Root)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, av.Body.Node().NumChildren())
	assert.Equal(t, 3, dev.Live())

	m.OnBeginCameraRender(primary)
	assert.Equal(t, 2, m.Stats().LastRendered)
	m.OnEndCameraRender(primary)

	// once cleared, the avatar can be set up again
	require.NoError(t, m.ClearAll())
	assert.Zero(t, av.Body.Node().NumChildren())
	n, err = m.SetupSubstitution(av.Root)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, av.Body.Node().NumChildren())
}

func TestSetupSkipped(t *testing.T) {
	m := NewManager(compute.NewCPU()).SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := m.SetupSubstitution(nil)
	assert.ErrorIs(t, err, ErrSetupSkipped)

	root := scene.NewNode("prop")
	scene.NewMeshRenderer(root.NewChild("box"), &scene.Mesh{Positions: []mgl32.Vec3{{}}}, scene.NewMaterial("m", "standard"))
	_, err = m.SetupSubstitution(root)
	assert.ErrorIs(t, err, ErrSetupSkipped)
	assert.ErrorIs(t, err, exclusion.ErrNoHumanoid)

	root = scene.NewNode("bare")
	hips := root.NewChild("hips")
	root.Humanoid = scene.NewHumanoid().SetBone(scene.Hips, hips).SetBone(scene.Head, hips.NewChild("head"))
	n, err := m.SetupSubstitution(root)
	assert.ErrorIs(t, err, ErrSetupSkipped)
	assert.Zero(t, n)
	assert.Zero(t, m.Len())
}

func TestPrimaryPass(t *testing.T) {
	m, av, _ := setup(t)
	sk := cloneOf(m, clone.Skinned)
	dup := sk.Duplicate()
	assert.Equal(t, Idle, m.State())

	m.OnBeginCameraRender(mirror)
	assert.Equal(t, Idle, m.State())

	m.OnBeginCameraRender(primary)
	assert.Equal(t, PrimaryPassDone, m.State())
	assert.Equal(t, scene.ShadowsOnly, av.Body.Shadow)
	assert.Equal(t, scene.ShadowsOnly, av.Hat.Shadow)
	assert.Equal(t, scene.ShadowsOn, av.Shoes.Shadow)
	assert.False(t, parked(dup.Node()))

	// the secondary camera is ignored without the secondary pass
	m.OnBeginCameraRender(secondary)
	m.OnEndCameraRender(secondary)
	assert.Equal(t, PrimaryPassDone, m.State())
	assert.Equal(t, "Skin", dup.Materials[0].Name)

	m.OnEndCameraRender(primary)
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
	assert.Equal(t, scene.ShadowsOn, av.Hat.Shadow)
	assert.True(t, parked(dup.Node()))

	st := m.Stats()
	assert.Equal(t, 1, st.Frames)
	assert.Equal(t, 2, st.Rendered)
	assert.Equal(t, 2, st.LastRendered)
	assert.Equal(t, 1, st.Resets)
	assert.Zero(t, st.Pruned)
}

func TestUnskinnedSource(t *testing.T) {
	m := NewManager(compute.NewCPU()).SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	av := demo.NewAvatar("avatar", demo.Config{Segments: 4, Rings: 4, Accessories: true})
	n, err := m.SetupSubstitution(av.Root)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	s := settings.Default()
	s.UseSecondaryPass = true
	m.SetSettings(s)
	dup := cloneOf(m, clone.Skinned).Duplicate()
	mats := dup.Materials

	// the body has no deformed vertices yet, so only the hat is substituted
	m.OnBeginCameraRender(primary)
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
	assert.Equal(t, scene.ShadowsOnly, av.Hat.Shadow)
	assert.True(t, parked(dup.Node()))
	m.OnEndCameraRender(primary)
	m.OnBeginCameraRender(secondary)
	assert.Equal(t, mats, dup.Materials)
	m.OnEndCameraRender(secondary)

	st := m.Stats()
	assert.Equal(t, 1, st.LastRendered)
	assert.Equal(t, 1, st.Rendered)
	assert.Equal(t, 2, m.Len())
}

func TestSecondaryPass(t *testing.T) {
	m, av, _ := setup(t)
	s := settings.Default()
	s.UseSecondaryPass = true
	m.SetSettings(s)
	dup := cloneOf(m, clone.Skinned).Duplicate()
	mats := dup.Materials

	// no primary pass this frame
	m.OnBeginCameraRender(secondary)
	assert.Equal(t, Idle, m.State())

	m.OnBeginCameraRender(primary)
	m.OnEndCameraRender(primary)
	assert.Equal(t, PrimaryPassDone, m.State())
	assert.Equal(t, scene.ShadowsOnly, av.Body.Shadow)

	m.OnBeginCameraRender(secondary)
	assert.Equal(t, SecondaryPassDone, m.State())
	require.Len(t, dup.Materials, 1)
	assert.Equal(t, "LocalCloneCulling", dup.Materials[0].Name)
	assert.False(t, parked(dup.Node()))

	m.OnEndCameraRender(secondary)
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, mats, dup.Materials)
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
	assert.True(t, parked(dup.Node()))
}

func TestMissedEnd(t *testing.T) {
	m, av, _ := setup(t)
	av.Body.Shadow = scene.ShadowsTwoSided
	m.OnBeginCameraRender(primary)
	m.OnBeginCameraRender(primary)
	assert.Equal(t, scene.ShadowsOnly, av.Body.Shadow)
	st := m.Stats()
	assert.Equal(t, 2, st.Frames)
	assert.Equal(t, 1, st.Resets)

	m.OnEndCameraRender(primary)
	assert.Equal(t, scene.ShadowsTwoSided, av.Body.Shadow, "the original shadow mode survives")
}

func TestPredicates(t *testing.T) {
	m, av, _ := setup(t)
	var calls []string
	removeA := m.AddRenderPredicate(func() bool { calls = append(calls, "a"); return false })
	m.AddRenderPredicate(func() bool { calls = append(calls, "b"); return true })

	m.OnBeginCameraRender(primary)
	assert.Equal(t, []string{"a"}, calls)
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
	m.OnEndCameraRender(primary)
	assert.Equal(t, 1, m.Stats().SkippedFrames)
	assert.Zero(t, m.Stats().Resets)

	removeA()
	calls = nil
	m.OnBeginCameraRender(primary)
	assert.Equal(t, []string{"b"}, calls)
	assert.Equal(t, scene.ShadowsOnly, av.Body.Shadow)
	m.OnEndCameraRender(primary)

	d := NewDisabler(m)
	d.Disabled = true
	m.OnBeginCameraRender(primary)
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
	d.Close()
	d.Close()
	m.OnBeginCameraRender(primary)
	assert.Equal(t, scene.ShadowsOnly, av.Body.Shadow)
	m.OnEndCameraRender(primary)
}

func TestEligibility(t *testing.T) {
	m, av, _ := setup(t)
	cloneOf(m, clone.Skinned).SetActive(false)
	av.Hat.Node().Active = false

	m.OnBeginCameraRender(primary)
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
	assert.Equal(t, scene.ShadowsOn, av.Hat.Shadow)
	assert.Zero(t, m.Stats().LastRendered)
	m.OnEndCameraRender(primary)
	assert.Equal(t, 2, m.Len(), "inactive and ineligible clones are kept")

	cloneOf(m, clone.Skinned).SetActive(true)
	av.Hat.Node().Active = true
	av.Hat.Enabled = false
	m.OnBeginCameraRender(primary)
	assert.Equal(t, scene.ShadowsOnly, av.Body.Shadow)
	assert.Equal(t, scene.ShadowsOn, av.Hat.Shadow)
	assert.Equal(t, 1, m.Stats().LastRendered)
	m.OnEndCameraRender(primary)
}

func TestPruning(t *testing.T) {
	m, av, dev := setup(t)
	sk := cloneOf(m, clone.Skinned)
	target := sk.Skinned.Target().(*compute.CPUBuffer)

	av.Root.ChildByName("Body").Destroy()
	m.OnBeginCameraRender(primary)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.Stats().Pruned)
	assert.True(t, target.Freed())
	assert.Equal(t, 1, dev.Live())
	assert.Equal(t, scene.ShadowsOnly, av.Hat.Shadow)
	m.OnEndCameraRender(primary)

	av.Hat.Node().Destroy()
	m.OnBeginCameraRender(primary)
	m.OnEndCameraRender(primary)
	m.OnBeginCameraRender(primary)
	m.OnEndCameraRender(primary)
	assert.Zero(t, m.Len())
	assert.Equal(t, 2, m.Stats().Pruned)
	assert.Zero(t, dev.OverReleased(), "clones are disposed exactly once")
}

func TestPanicRecovery(t *testing.T) {
	m, av, _ := setup(t)
	m.Register(&clone.Clone{Kind: clone.Static})
	assert.NotPanics(t, func() {
		m.OnBeginCameraRender(primary)
		m.OnEndCameraRender(primary)
	})
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, m.Stats().Pruned)
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)

	m.AddRenderPredicate(func() bool { panic("predicate") })
	assert.NotPanics(t, func() { m.OnBeginCameraRender(primary) })
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, 1, m.Stats().SkippedFrames)
}

func TestClearAll(t *testing.T) {
	m, av, dev := setup(t)
	dup := cloneOf(m, clone.Skinned).Duplicate()

	m.OnBeginCameraRender(primary)
	require.NoError(t, m.ClearAll())
	assert.Zero(t, m.Len())
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
	assert.Equal(t, scene.ShadowsOn, av.Hat.Shadow)
	assert.True(t, dup.IsDestroyed())
	assert.Equal(t, 1, dev.Live())

	m.OnBeginCameraRender(primary)
	m.OnEndCameraRender(primary)
	require.NoError(t, m.Close())
	assert.Zero(t, dev.OverReleased())
}

func TestQueueSettings(t *testing.T) {
	m, _, _ := setup(t)
	s := settings.Default()
	s.UseSecondaryPass = true
	m.QueueSettings(s)
	assert.False(t, m.Settings().UseSecondaryPass, "applied at the next frame")

	m.OnBeginCameraRender(primary)
	assert.True(t, m.Settings().UseSecondaryPass)
	m.OnEndCameraRender(primary)
	assert.Equal(t, PrimaryPassDone, m.State())
	m.OnBeginCameraRender(secondary)
	m.OnEndCameraRender(secondary)
	assert.Equal(t, Idle, m.State())
}

func TestWatchSettings(t *testing.T) {
	m, _, _ := setup(t)
	fn := filepath.Join(t.TempDir(), "localclone.toml")
	require.NoError(t, settings.Default().Save(fn))
	require.NoError(t, m.WatchSettings(fn))
	defer m.Close()

	require.NoError(t, os.WriteFile(fn, []byte("layer = 4\n"), 0666))
	assert.Eventually(t, func() bool {
		m.OnBeginCameraRender(primary)
		m.OnEndCameraRender(primary)
		return m.Settings().Layer == 4
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExplicitCameras(t *testing.T) {
	m, av, _ := setup(t)
	player := scene.NewCamera("vr", scene.RoleOther)
	m.SetPrimaryCamera(player)

	m.OnBeginCameraRender(primary)
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
	m.OnBeginCameraRender(player)
	assert.Equal(t, scene.ShadowsOnly, av.Body.Shadow)
	m.OnEndCameraRender(player)
	assert.Equal(t, scene.ShadowsOn, av.Body.Shadow)
}
