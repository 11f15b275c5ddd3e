// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command localclone renders a procedural avatar for a number of frames
// with local clone substitution, and reports what the player camera saw.
// The masking kernel runs on the CPU unless -gpu is given.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/cli"
	"cogentcore.org/core/gpu"
	"github.com/chewxy/math32"
	"github.com/localclone/localclone/clone"
	"github.com/localclone/localclone/compute"
	"github.com/localclone/localclone/compute/wgpucompute"
	"github.com/localclone/localclone/demo"
	"github.com/localclone/localclone/localclone"
	"github.com/localclone/localclone/scene"
	"github.com/localclone/localclone/settings"
	"github.com/muesli/termenv"
)

// Config is the configuration of the localclone command.
type Config struct {

	// Settings is an optional TOML or YAML settings file.
	Settings string `posarg:"0" required:"-"`

	// Frames is the number of frames to render.
	Frames int `default:"60" flag:"n,frames"`

	// Segments is the number of vertices around the avatar body.
	Segments int `default:"8"`

	// Rings is the number of vertex rings along the avatar body.
	Rings int `default:"16"`

	// Secondary enables the secondary culling pass.
	Secondary bool

	// CloneEverything clones every renderer of the avatar.
	CloneEverything bool

	// Watch reloads the settings file when it changes.
	Watch bool

	// GPU runs the masking kernel on a WebGPU compute device
	// instead of the CPU.
	GPU bool

	// Verbose enables debug logging.
	Verbose bool `flag:"v,verbose"`
}

func main() {
	opts := cli.DefaultOptions("localclone", "Renders an avatar with local clone substitution and reports the result.")
	cli.Run(opts, &Config{}, Run)
}

// Run renders the frames.
func Run(c *Config) error { //cli:cmd -root
	s := settings.Default()
	if c.Settings != "" {
		var err error
		s, err = settings.Load(c.Settings)
		if err != nil {
			return err
		}
	}
	if c.Secondary {
		s.UseSecondaryPass = true
	}
	if c.CloneEverything {
		s.CloneEverything = true
	}
	if c.Verbose || s.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	dev, release, err := newDevice(c.GPU)
	if err != nil {
		return err
	}
	defer release()
	m := localclone.NewManager(dev).SetSettings(s)
	defer func() { errors.Log(m.Close()) }()
	if c.Watch && c.Settings != "" {
		if err := m.WatchSettings(c.Settings); err != nil {
			return err
		}
	}

	av := demo.NewAvatar("Avatar", demo.Config{Segments: c.Segments, Rings: c.Rings, Accessories: true})
	n, err := m.SetupSubstitution(av.Root)
	if err != nil {
		return err
	}
	primary := scene.NewCamera("Player", scene.RolePrimary)
	secondary := scene.NewCamera("Culling", scene.RoleSecondary)

	hidden := 0
	for f := range c.Frames {
		av.Pose(360*float32(f)/float32(max(c.Frames, 1)), 10*math32.Sin(float32(f)/10))
		if err := av.Body.UpdateSkinning(dev); err != nil {
			return err
		}
		m.OnBeginCameraRender(primary)
		hidden = hiddenVertices(dev, m)
		m.OnEndCameraRender(primary)
		if m.Settings().UseSecondaryPass {
			m.OnBeginCameraRender(secondary)
			m.OnEndCameraRender(secondary)
		}
	}
	report(m, n, hidden)
	return nil
}

// newDevice returns the compute device to dispatch on,
// and a function releasing it.
func newDevice(useGPU bool) (compute.Device, func(), error) {
	if !useGPU {
		return compute.NewCPU(), func() {}, nil
	}
	gp := gpu.NewComputeGPU()
	gd, err := gpu.NewDevice(gp)
	if err != nil {
		return nil, nil, err
	}
	d, err := wgpucompute.New(gd.Device)
	if err != nil {
		gd.Release()
		return nil, nil, err
	}
	return d, func() {
		d.Release()
		gd.Release()
		gp.Release()
	}, nil
}

// hiddenVertices returns the number of vertices moved out of view
// in the duplicates shown by the current primary pass.
func hiddenVertices(dev compute.Device, m *localclone.Manager) int {
	hidden := 0
	for _, c := range m.Clones() {
		if c.Kind != clone.Skinned || !c.IsValid() {
			continue
		}
		b, err := dev.Read(c.Skinned.Target())
		if errors.Log(err) != nil {
			continue
		}
		f := compute.BytesFloat32(b)
		stride := c.Duplicate().Mesh.Layout().Floats()
		for i := 0; i+stride <= len(f); i += stride {
			if math32.IsInf(f[i], 1) {
				hidden++
			}
		}
	}
	return hidden
}

func report(m *localclone.Manager, clones, hidden int) {
	out := termenv.NewOutput(os.Stdout)
	label := func(s string) termenv.Style { return out.String(fmt.Sprintf("%-16s", s)).Faint() }
	value := func(v any) termenv.Style { return out.String(fmt.Sprint(v)).Foreground(out.Color("2")).Bold() }

	st := m.Stats()
	fmt.Fprintln(out, out.String("localclone").Bold())
	rows := []struct {
		name  string
		value any
	}{
		{"clones", clones},
		{"frames", st.Frames},
		{"skipped frames", st.SkippedFrames},
		{"rendered", st.Rendered},
		{"pruned", st.Pruned},
		{"hidden vertices", hidden},
		{"secondary pass", m.Settings().UseSecondaryPass},
	}
	for _, r := range rows {
		fmt.Fprintln(out, label(r.name), value(r.value))
	}
	if st.Pruned > 0 {
		fmt.Fprintln(out, out.String("some clones were pruned").Foreground(out.Color("3")))
	}
}
