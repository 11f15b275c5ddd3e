// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package localclone

import (
	"errors"
	"fmt"
	"time"

	cerrors "cogentcore.org/core/base/errors"
	"github.com/localclone/localclone/clone"
	"github.com/localclone/localclone/compute"
	"github.com/localclone/localclone/exclusion"
	"github.com/localclone/localclone/scene"
)

// ErrSetupSkipped is returned when an avatar cannot be set up, because it
// has no humanoid rig, no head bone or no renderers. The avatar then
// renders normally.
var ErrSetupSkipped = errors.New("localclone: avatar setup skipped")

// SetupSubstitution builds the exclusion map of the avatar rooted at root
// and registers a clone for every eligible renderer under it, including
// renderers on inactive nodes. Renderers that already have a live
// registered clone are skipped, so setting up an avatar again only clones
// the renderers added since. It returns the number of clones registered.
// Errors wrap [ErrSetupSkipped]; they are logged and leave nothing registered.
func (m *Manager) SetupSubstitution(root *scene.Node) (int, error) {
	n, err := m.setup(root)
	if err != nil {
		m.logger.Warn(err.Error(), "avatar", nodeName(root))
	}
	return n, err
}

func (m *Manager) setup(root *scene.Node) (int, error) {
	if root.IsDestroyed() {
		return 0, fmt.Errorf("%w: no avatar", ErrSetupSkipped)
	}
	if !root.Humanoid.IsHuman() {
		return 0, fmt.Errorf("%w: %w", ErrSetupSkipped, exclusion.ErrNoHumanoid)
	}
	head := root.Humanoid.Head()
	renderers := root.Renderers()
	if len(renderers) == 0 {
		return 0, fmt.Errorf("%w: no renderers", ErrSetupSkipped)
	}
	m.logger.Debug("localclone: processing renderers", "avatar", root.Name, "renderers", len(renderers))

	start := time.Now()
	emap, err := exclusion.Build(root, head)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSetupSkipped, err)
	}
	built := time.Since(start)

	cloned := m.clonedSources()
	opts := m.settings.Options()
	if t := compute.ThreadsPerGroup(m.dev, opts.ThreadsPerGroup); t != opts.ThreadsPerGroup {
		m.logger.Warn("localclone: threads_per_group replaced by the group size of the device",
			"threads_per_group", opts.ThreadsPerGroup, "group_size", t)
	}
	f := clone.NewFactory(m.dev, opts)
	n, skipped := 0, 0
	for _, r := range renderers {
		if cloned[r] {
			skipped++
			continue
		}
		c, err := f.Create(r, emap)
		if cerrors.Log(err) != nil || c == nil {
			continue
		}
		m.Register(c)
		n++
	}
	m.logger.Info("localclone: avatar set up", "avatar", root.Name,
		"renderers", len(renderers), "clones", n, "already_cloned", skipped, "groups", len(emap.Groups()),
		"hidden", m.settings.HiddenGroups(emap),
		"map", built, "total", time.Since(start))
	return n, nil
}

// clonedSources returns the sources of the registered clones that are
// still valid.
func (m *Manager) clonedSources() map[scene.Renderer]bool {
	cloned := make(map[scene.Renderer]bool, len(m.clones))
	for _, e := range m.clones {
		valid := false
		m.guard("setup", func() { valid = e.clone != nil && e.clone.IsValid() })
		if valid {
			cloned[e.clone.Source()] = true
		}
	}
	return cloned
}

func nodeName(n *scene.Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.Name
}
