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

// Package state implements the Runtime State Store: the ownership
// ledger of server modules this process created, persisted across
// restarts under the user state directory. Concurrent writers are
// prevented by the event loop's single-instance lock; this package does
// no in-file locking of its own.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/spf13/afero"

	"github.com/PasukiTV/audiorouter/internal/model"
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

const fileName = "state.json"

// Store loads and saves RuntimeState under a directory, normally the
// user's state directory (e.g. $XDG_STATE_HOME/vsinkd).
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

func (s *Store) path() string { return filepath.Join(s.dir, fileName) }

// Load returns the persisted RuntimeState, defaulting to an empty ledger
// (all four maps present but empty) if the file is absent or malformed.
func (s *Store) Load() model.RuntimeState {
	st := model.NewRuntimeState()
	data, err := afero.ReadFile(s.fs, s.path())
	if err != nil {
		if !os.IsNotExist(err) {
			tracelog.Log("state: read %s: %v", s.path(), err)
		}
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		tracelog.Log("state: parse %s: %v", s.path(), err)
		return model.NewRuntimeState()
	}
	st.Normalize()
	return st
}

// Save whole-file-replaces the persisted RuntimeState.
func (s *Store) Save(st model.RuntimeState) error {
	st.Normalize()
	if err := s.fs.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if _, ok := s.fs.(*afero.OsFs); ok {
		return renameio.WriteFile(s.path(), data, 0600)
	}
	return afero.WriteFile(s.fs, s.path(), data, 0600)
}
