// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package settings provides the process wide settings of local clones,
// which can be loaded from TOML or YAML files and reloaded on change.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cerrors "cogentcore.org/core/base/errors"
	"cogentcore.org/core/cli"
	"github.com/localclone/localclone/clone"
	"github.com/localclone/localclone/compute"
	"github.com/localclone/localclone/exclusion"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for settings files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("settings: unknown file format")

// Settings are the settings of local clones.
type Settings struct {
	// CloneEverything clones every renderer of an avatar, not only
	// those in exclusion groups.
	CloneEverything bool `toml:"clone_everything" yaml:"clone_everything"`

	// UseSecondaryPass enables the secondary culling pass. The frame
	// then ends with the secondary camera instead of the primary one.
	UseSecondaryPass bool `toml:"use_secondary_pass" yaml:"use_secondary_pass"`

	// HiddenVertexMask is the initial hidden vertex mask of skinned clones.
	HiddenVertexMask uint32 `toml:"hidden_vertex_mask" yaml:"hidden_vertex_mask" default:"1023"`

	// WeightThreshold is the bone weight above which a vertex belongs
	// to the exclusion group of the bone.
	WeightThreshold float32 `toml:"weight_threshold" yaml:"weight_threshold" default:"0.2"`

	// ThreadsPerGroup is the compute dispatch granularity, at most
	// [compute.MaxThreadsPerGroup]. Devices with a fixed group size,
	// such as the WebGPU device, use their own size instead.
	ThreadsPerGroup int `toml:"threads_per_group" yaml:"threads_per_group" default:"64"`

	// Park is how duplicates are parked between frames: position or scale.
	Park string `toml:"park" yaml:"park" default:"position"`

	// Layer is the render layer of duplicates.
	Layer int `toml:"layer" yaml:"layer" default:"9"`

	// Debug enables debug logging.
	Debug bool `toml:"debug" yaml:"debug"`
}

// Default returns the default settings.
func Default() *Settings {
	s := &Settings{}
	cerrors.Log(cli.SetFromDefaults(s))
	return s
}

// Validate checks that the settings are usable.
func (s *Settings) Validate() error {
	var errs []error
	if s.WeightThreshold < 0 || s.WeightThreshold >= 1 {
		errs = append(errs, fmt.Errorf("weight_threshold %g must be in [0, 1)", s.WeightThreshold))
	}
	if s.ThreadsPerGroup <= 0 || s.ThreadsPerGroup > compute.MaxThreadsPerGroup {
		errs = append(errs, fmt.Errorf("threads_per_group %d must be in [1, %d]", s.ThreadsPerGroup, compute.MaxThreadsPerGroup))
	}
	if s.Layer < 0 || s.Layer > 31 {
		errs = append(errs, fmt.Errorf("layer %d must be in [0, 31]", s.Layer))
	}
	if _, err := clone.ParseParkMode(s.Park); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}

// Options returns the clone options for the settings.
// The settings must be valid.
func (s *Settings) Options() clone.Options {
	opts := clone.DefaultOptions()
	opts.CloneEverything = s.CloneEverything
	opts.HiddenVertexMask = s.HiddenVertexMask
	opts.WeightThreshold = s.WeightThreshold
	opts.ThreadsPerGroup = s.ThreadsPerGroup
	opts.Park, _ = clone.ParseParkMode(s.Park)
	opts.Layer = s.Layer
	return opts
}

// HiddenGroups returns the names of the exclusion groups hidden by
// default, for the groups of the given map.
func (s *Settings) HiddenGroups(m *exclusion.Map) string {
	return clone.DescribeMask(s.HiddenVertexMask, clone.MaskGroupNames(m))
}

type format int

const (
	formatTOML format = iota
	formatYAML
)

func formatOf(filename string) (format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		return formatTOML, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, filename)
}

// Decode decodes settings in the format given by the filename extension,
// starting from the defaults, and validates them.
func Decode(data []byte, filename string) (*Settings, error) {
	f, err := formatOf(filename)
	if err != nil {
		return nil, err
	}
	s := Default()
	switch f {
	case formatTOML:
		err = toml.Unmarshal(data, s)
	case formatYAML:
		err = yaml.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("settings: decoding %s: %w", filename, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Encode encodes the settings in the format given by the filename extension.
func (s *Settings) Encode(filename string) ([]byte, error) {
	f, err := formatOf(filename)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	switch f {
	case formatTOML:
		err = toml.NewEncoder(&b).Encode(s)
	case formatYAML:
		enc := yaml.NewEncoder(&b)
		enc.SetIndent(2)
		err = enc.Encode(s)
		if err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("settings: encoding %s: %w", filename, err)
	}
	return b.Bytes(), nil
}

// Load loads settings from the given TOML or YAML file.
func Load(filename string) (*Settings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Decode(data, filename)
}

// Save saves the settings to the given TOML or YAML file.
func (s *Settings) Save(filename string) error {
	data, err := s.Encode(filename)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0666)
}
