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

// Package confwatch uses fsnotify to watch the configuration store's files
// for changes made by the external UI collaborator, so the event loop can
// reload Configuration without polling.
package confwatch

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/PasukiTV/audiorouter/internal/notify"
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

// Watcher watches one named config file. The file, its directory, or any
// ancestor may not exist yet, or may be removed and recreated wholesale
// (the UI collaborator may rewrite config by replacing the whole
// directory); the watch follows the nearest existing ancestor and moves
// as the hierarchy appears and disappears.
type Watcher struct {
	Updates <-chan struct{}
	Errors  <-chan error

	filename string
	fsw      *fsnotify.Watcher
	notifyFn func()
	errs     chan error
	done     int32 // atomic bool
	ready    chan struct{}
}

// Watch starts watching filename. It blocks until the watch is
// established (or has failed to establish), so callers can rely on
// Updates/Errors being live immediately after.
func Watch(filename string) *Watcher {
	w := &Watcher{
		filename: filename,
		errs:     make(chan error, 1),
		ready:    make(chan struct{}, 1),
	}
	w.Errors = w.errs
	w.notifyFn, w.Updates = notify.New()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.errs <- err
		return w
	}
	w.fsw = fsw
	go w.run()
	<-w.ready
	return w
}

// Unsubscribe stops the watch and frees its resources.
func (w *Watcher) Unsubscribe() {
	if atomic.CompareAndSwapInt32(&w.done, 0, 1) {
		tracelog.Fine("confwatch %s: done", w.filename)
		w.fsw.Close()
	}
}

func (w *Watcher) markReady() {
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

// addNearest walks up from the file's directory and adds a watch on the
// closest ancestor that exists. fsnotify adds are idempotent, so calling
// it again with an unchanged hierarchy is free.
func (w *Watcher) addNearest() (string, error) {
	for p := filepath.Dir(w.filename); ; p = filepath.Dir(p) {
		err := w.fsw.Add(p)
		if err == nil {
			return p, nil
		}
		if !os.IsNotExist(err) || p == filepath.Dir(p) {
			return "", err
		}
	}
}

// run re-resolves the watched ancestor after every event: any create,
// remove, or rename below the file may change which ancestor is closest.
func (w *Watcher) run() {
	watching := ""
	for atomic.LoadInt32(&w.done) == 0 {
		p, err := w.addNearest()
		if err != nil {
			if atomic.LoadInt32(&w.done) == 0 {
				tracelog.Log("confwatch %s: %v", w.filename, err)
				w.Unsubscribe()
				w.errs <- err
			}
			w.markReady()
			return
		}
		if p != watching {
			if watching != "" {
				// May already be gone along with its directory.
				w.fsw.Remove(watching)
				tracelog.Fine("confwatch %s: watch moved from %s -> %s", w.filename, watching, p)
				// The file may have (re)appeared while no watch covered
				// its directory.
				if _, err := os.Stat(w.filename); err == nil {
					w.notifyFn()
				}
			}
			watching = p
		}
		w.markReady()

		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			tracelog.Fine("confwatch %s: notified: %s", w.filename, event)
			if event.Name == w.filename {
				w.notifyFn()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			tracelog.Log("confwatch %s: %v", w.filename, err)
			w.Unsubscribe()
			w.errs <- err
			return
		}
	}
}
