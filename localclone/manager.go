// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package localclone substitutes local clones for avatar renderers during
// the player camera pass, so that a first person camera does not see the
// inside of the head it is attached to while shadows stay intact.
//
// A [Manager] is driven by the camera begin and end render events of the
// host renderer. Avatars are registered with [Manager.SetupSubstitution]
// once their skeleton is bound, and unregistered with [Manager.ClearAll]
// before their nodes are destroyed.
package localclone

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	cerrors "cogentcore.org/core/base/errors"
	"github.com/localclone/localclone/clone"
	"github.com/localclone/localclone/compute"
	"github.com/localclone/localclone/scene"
	"github.com/localclone/localclone/settings"
)

// State is the state of a [Manager] within a frame.
type State int32

const (
	// Idle is the state between frames.
	Idle State = iota

	// PrimaryPassPending is the state while the primary pass is prepared.
	PrimaryPassPending

	// PrimaryPassDone is the state once clones are substituted for
	// the primary pass.
	PrimaryPassDone

	// SecondaryPassDone is the state once clones are prepared for
	// the secondary pass.
	SecondaryPassDone
)

var stateNames = [...]string{"Idle", "PrimaryPassPending", "PrimaryPassDone", "SecondaryPassDone"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// Stats are counters of the work done by a [Manager].
type Stats struct {
	// Frames is the number of primary passes with substitution.
	Frames int

	// SkippedFrames is the number of primary passes vetoed by a predicate.
	SkippedFrames int

	// Rendered is the total number of clones shown in primary passes.
	Rendered int

	// LastRendered is the number of clones shown in the last primary pass.
	LastRendered int

	// Pruned is the number of invalid clones disposed and removed.
	Pruned int

	// Resets is the number of end of frame resets.
	Resets int
}

// entry is a registered clone.
type entry struct {
	clone    *clone.Clone
	rendered bool
}

// predicate is a registered render predicate.
type predicate struct {
	fun func() bool
}

// Manager owns the local clones of every registered avatar and swaps
// them in and out around camera passes. A Manager is used from the
// render thread only, except for settings updates from a settings watcher.
type Manager struct {
	dev      compute.Device
	logger   *slog.Logger
	settings *settings.Settings
	pending  atomic.Pointer[settings.Settings]
	watcher  *settings.Watcher

	primary   *scene.Camera
	secondary *scene.Camera

	clones     []*entry
	predicates []*predicate

	state        State
	resetPending bool
	stats        Stats
}

// NewManager returns a new manager dispatching on the given compute device,
// with default settings.
func NewManager(dev compute.Device) *Manager {
	return &Manager{dev: dev, logger: slog.Default(), settings: settings.Default()}
}

// SetLogger sets the logger of the manager.
func (m *Manager) SetLogger(l *slog.Logger) *Manager {
	m.logger = l
	return m
}

// SetSettings sets the settings used by the manager.
// They apply to avatars set up afterwards and to the next frame.
func (m *Manager) SetSettings(s *settings.Settings) *Manager {
	m.settings = s
	return m
}

// SetPrimaryCamera sets the camera of the player viewpoint. Without it,
// any camera with [scene.RolePrimary] is the primary camera.
func (m *Manager) SetPrimaryCamera(cam *scene.Camera) *Manager {
	m.primary = cam
	return m
}

// SetSecondaryCamera sets the culling camera. Without it, any camera with
// [scene.RoleSecondary] is the secondary camera.
func (m *Manager) SetSecondaryCamera(cam *scene.Camera) *Manager {
	m.secondary = cam
	return m
}

// Settings returns the current settings.
func (m *Manager) Settings() *settings.Settings { return m.settings }

// State returns the current frame state.
func (m *Manager) State() State { return m.state }

// Stats returns the work counters.
func (m *Manager) Stats() Stats { return m.stats }

// Len returns the number of registered clones.
func (m *Manager) Len() int { return len(m.clones) }

// Clones returns the registered clones in registration order.
func (m *Manager) Clones() []*clone.Clone {
	cs := make([]*clone.Clone, len(m.clones))
	for i, e := range m.clones {
		cs[i] = e.clone
	}
	return cs
}

// Register adds a clone. Clones are normally registered by
// [Manager.SetupSubstitution].
func (m *Manager) Register(c *clone.Clone) {
	m.clones = append(m.clones, &entry{clone: c})
}

// AddRenderPredicate adds a function that can veto substitution for a
// frame by returning false. Predicates are evaluated in the order they
// were added, stopping at the first false. The returned function
// removes the predicate.
func (m *Manager) AddRenderPredicate(fun func() bool) (remove func()) {
	p := &predicate{fun: fun}
	m.predicates = append(m.predicates, p)
	return func() {
		m.predicates = slices.DeleteFunc(m.predicates, func(q *predicate) bool { return q == p })
	}
}

func (m *Manager) isPrimary(cam *scene.Camera) bool {
	if cam == nil {
		return false
	}
	if m.primary != nil {
		return cam == m.primary
	}
	return cam.Role == scene.RolePrimary
}

func (m *Manager) isSecondary(cam *scene.Camera) bool {
	if cam == nil {
		return false
	}
	if m.secondary != nil {
		return cam == m.secondary
	}
	return cam.Role == scene.RoleSecondary
}

// OnBeginCameraRender must be called by the host renderer before each
// camera renders. For the primary camera it substitutes every eligible
// clone for its source; for the secondary camera, when the secondary
// pass is enabled, it prepares the clones rendered in the primary pass.
// Other cameras are ignored.
func (m *Manager) OnBeginCameraRender(cam *scene.Camera) {
	switch {
	case m.isPrimary(cam):
		m.beginPrimary()
	case m.isSecondary(cam) && m.settings.UseSecondaryPass:
		m.beginSecondary()
	}
}

// OnEndCameraRender must be called by the host renderer after each camera
// renders. After the last substituted camera of the frame, which is the
// secondary camera when the secondary pass is enabled and the primary
// camera otherwise, it restores every source and parks every duplicate.
func (m *Manager) OnEndCameraRender(cam *scene.Camera) {
	last := m.isPrimary(cam)
	if m.settings.UseSecondaryPass {
		last = m.isSecondary(cam)
	}
	if last && m.resetPending {
		m.reset()
	}
}

func (m *Manager) beginPrimary() {
	if s := m.pending.Swap(nil); s != nil {
		m.settings = s
		m.logger.Info("localclone: settings applied", "clone_everything", s.CloneEverything, "use_secondary_pass", s.UseSecondaryPass)
	}
	if m.resetPending {
		// the last camera of the previous frame never ended
		m.reset()
	}
	m.state = PrimaryPassPending
	if !m.wantsToRender() {
		m.state = Idle
		m.stats.SkippedFrames++
		return
	}
	rendered := 0
	m.walk("primary", func(e *entry) {
		e.rendered = false
		if !e.clone.IsActive() || !e.clone.PreProcess() {
			return
		}
		if e.clone.RenderForPrimaryPass() {
			e.rendered = true
			rendered++
		}
	})
	m.resetPending = true
	m.state = PrimaryPassDone
	m.stats.Frames++
	m.stats.Rendered += rendered
	m.stats.LastRendered = rendered
}

func (m *Manager) beginSecondary() {
	if m.state != PrimaryPassDone {
		return
	}
	m.walk("secondary", func(e *entry) {
		if e.rendered && e.clone.IsActive() {
			e.clone.RenderForSecondaryPass()
		}
	})
	m.state = SecondaryPassDone
}

func (m *Manager) reset() {
	m.walk("reset", func(e *entry) {
		e.clone.ResetAfterFrame()
		e.rendered = false
	})
	m.resetPending = false
	m.state = Idle
	m.stats.Resets++
}

// wantsToRender evaluates the render predicates in order.
func (m *Manager) wantsToRender() bool {
	for _, p := range m.predicates {
		ok := true
		if !m.guard("predicate", func() { ok = p.fun() }) {
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// walk calls fun on every valid clone in reverse registration order.
// Invalid clones, and clones that panic, are disposed and removed.
// Validity is always checked before fun, so fun never sees the
// buffers of a clone found invalid.
func (m *Manager) walk(pass string, fun func(e *entry)) {
	for i := len(m.clones) - 1; i >= 0; i-- {
		e := m.clones[i]
		valid := false
		m.guard(pass, func() { valid = e.clone != nil && e.clone.IsValid() })
		if !valid {
			m.logger.Debug("localclone: pruning invalid clone", "pass", pass, "index", i)
			m.remove(i)
			continue
		}
		if !m.guard(pass, func() { fun(e) }) {
			m.remove(i)
		}
	}
}

// remove disposes of the clone at index i and removes it.
func (m *Manager) remove(i int) {
	e := m.clones[i]
	if e.clone != nil {
		m.guard("dispose", e.clone.Dispose)
	}
	m.clones = slices.Delete(m.clones, i, i+1)
	m.stats.Pruned++
}

// guard calls fun, turning a panic into a logged error so that nothing
// escapes into the host frame loop. It returns false on panic.
func (m *Manager) guard(pass string, fun func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			cerrors.Log(fmt.Errorf("localclone: panic in %s pass: %v", pass, r))
			ok = false
		}
	}()
	fun()
	return true
}

// ClearAll disposes every clone, first restoring sources if a frame is
// still in progress. Hosts call it when avatars unload, before their nodes
// are destroyed.
func (m *Manager) ClearAll() error {
	if m.resetPending {
		m.reset()
	}
	var errs []error
	for _, e := range m.clones {
		if e.clone == nil {
			continue
		}
		if !m.guard("dispose", e.clone.Dispose) {
			errs = append(errs, fmt.Errorf("localclone: disposing %s failed", e.clone))
		}
	}
	n := len(m.clones)
	m.clones = nil
	m.state = Idle
	if n > 0 {
		m.logger.Info("localclone: cleared", "clones", n)
	}
	return errors.Join(errs...)
}

// Close clears every clone and stops watching settings.
func (m *Manager) Close() error {
	err := m.ClearAll()
	if m.watcher != nil {
		err = errors.Join(err, m.watcher.Close())
		m.watcher = nil
	}
	return err
}

// WatchSettings reloads settings from the given file whenever it changes.
// New settings apply at the start of the next primary pass.
func (m *Manager) WatchSettings(filename string) error {
	if m.watcher != nil {
		cerrors.Log(m.watcher.Close())
		m.watcher = nil
	}
	w, err := settings.Watch(filename, m.QueueSettings)
	if err != nil {
		return err
	}
	m.watcher = w
	return nil
}

// QueueSettings queues settings to apply at the start of the next
// primary pass. It is safe to call from any goroutine.
func (m *Manager) QueueSettings(s *settings.Settings) {
	m.pending.Store(s)
}
