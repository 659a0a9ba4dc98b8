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

package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsinkd.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.NoError(t, l.Release())
	assert.NoFileExists(t, path)
}

func TestAcquireContentionFromLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsinkd.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	_, err := Acquire(path)
	assert.ErrorIs(t, err, ErrContention)
}

func TestAcquireRecoversStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsinkd.lock")
	// PID 999999 is exceedingly unlikely to be alive in any test environment.
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))

	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data[:len(data)-1]))
}

func TestReleaseDoesNotRemoveOtherOwnersLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsinkd.lock")
	l := &Lock{path: path, pid: os.Getpid() + 1}
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	require.NoError(t, l.Release())
	assert.FileExists(t, path, "Release must not remove a lock file owned by a different pid")
}
