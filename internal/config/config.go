// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config implements the Configuration Store: persistent,
// user-editable declarative desired state, reloadable at any time.
//
// Filesystem access goes through an afero.Fs so tests can swap in
// afero.NewMemMapFs() instead of touching the real disk.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/spf13/afero"

	"github.com/PasukiTV/audiorouter/internal/model"
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

const (
	vsinksFile = "vsinks.json"
	rulesFile  = "routing-rules.json"
	inputsFile = "input-routes.json"
	combined   = "config.json"
)

// splitDoc and combinedDoc mirror the on-disk split/combined layouts.
// The split layout stores each top-level key as a standalone file; the
// combined layout stores them all together for backward compatibility.
type splitVsinks struct {
	Buses     []model.Bus           `json:"buses"`
	Companion model.CompanionConfig `json:"companion"`
}

type splitRules struct {
	Rules     []model.StreamRule `json:"rules"`
	MicRoutes []model.MicRule    `json:"mic_routes"`
}

type splitInputs struct {
	InputRoutes []model.InputRoute `json:"input_routes"`
}

// Store loads and saves Configuration under a directory, normally the
// user's config directory (e.g. $XDG_CONFIG_HOME/vsinkd).
type Store struct {
	fs  afero.Fs
	dir string
}

// New returns a Store rooted at dir, using fs for all file access.
func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// NewOS returns a Store backed by the real filesystem.
func NewOS(dir string) *Store {
	return New(afero.NewOsFs(), dir)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) exists(name string) bool {
	ok, _ := afero.Exists(s.fs, s.path(name))
	return ok
}

// Load returns the current Configuration, preferring split files if any
// exists, otherwise falling back to the combined file, otherwise defaults.
// Unreadable or malformed files degrade to defaults for that file/section
// rather than failing the whole load (ConfigError is recovered, not fatal).
func (s *Store) Load() model.Configuration {
	var cfg model.Configuration
	if s.exists(vsinksFile) || s.exists(rulesFile) || s.exists(inputsFile) {
		s.loadSplit(&cfg)
	} else if s.exists(combined) {
		s.loadCombined(&cfg)
	}
	cfg.Normalize()
	return cfg
}

func (s *Store) loadSplit(cfg *model.Configuration) {
	var v splitVsinks
	if s.readJSON(vsinksFile, &v) {
		cfg.Buses = v.Buses
		cfg.Companion = v.Companion
	}
	var r splitRules
	if s.readJSON(rulesFile, &r) {
		cfg.Rules = r.Rules
		cfg.MicRoutes = r.MicRoutes
	}
	var in splitInputs
	if s.readJSON(inputsFile, &in) {
		cfg.InputRoutes = in.InputRoutes
	}
}

func (s *Store) loadCombined(cfg *model.Configuration) {
	s.readJSON(combined, cfg)
}

func (s *Store) readJSON(name string, v interface{}) bool {
	data, err := afero.ReadFile(s.fs, s.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			tracelog.Log("config: read %s: %v", name, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		tracelog.Log("config: parse %s: %v", name, err)
		return false
	}
	return true
}

// Save atomically writes every split file and the combined file with the
// normalized content, so both layouts remain coherent no matter which one
// a future Load prefers.
func (s *Store) Save(cfg model.Configuration) error {
	cfg.Normalize()
	if err := s.fs.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	v := splitVsinks{Buses: cfg.Buses, Companion: cfg.Companion}
	r := splitRules{Rules: cfg.Rules, MicRoutes: cfg.MicRoutes}
	in := splitInputs{InputRoutes: cfg.InputRoutes}

	if err := s.writeJSON(vsinksFile, v); err != nil {
		return err
	}
	if err := s.writeJSON(rulesFile, r); err != nil {
		return err
	}
	if err := s.writeJSON(inputsFile, in); err != nil {
		return err
	}
	return s.writeJSON(combined, cfg)
}

func (s *Store) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.fs, s.path(name), data, 0600)
}

// atomicWrite durably replaces the file at path with data. When fs is the
// real OS filesystem it uses renameio (fsync + atomic rename, so a crash
// mid-write never leaves a half-written config behind); otherwise (test
// filesystems) it falls back to a plain afero write, since renameio's
// temp-file-plus-rename dance assumes a real path on a real filesystem.
func atomicWrite(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	if _, ok := fs.(*afero.OsFs); ok {
		return renameio.WriteFile(path, data, perm)
	}
	return afero.WriteFile(fs, path, data, perm)
}
