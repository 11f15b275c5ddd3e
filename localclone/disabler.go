// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package localclone

// Disabler is a debugging switch that turns substitution off for
// every frame while Disabled is set.
type Disabler struct {
	Disabled bool

	remove func()
}

// NewDisabler adds a new disabler to the manager.
func NewDisabler(m *Manager) *Disabler {
	d := &Disabler{}
	d.remove = m.AddRenderPredicate(func() bool { return !d.Disabled })
	return d
}

// Close removes the disabler from its manager.
func (d *Disabler) Close() {
	if d.remove != nil {
		d.remove()
		d.remove = nil
	}
}
