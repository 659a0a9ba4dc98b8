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

// Package tracelog provides process-wide leveled logging: Log lines are
// always written to stderr, while fine-grained tracing is gated by a
// runtime toggle (an environment variable or a sentinel file) checked
// once at startup.
package tracelog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	mu      sync.Mutex
	logger  = log.New(os.Stderr, "", log.LstdFlags)
	fineOn  int32 // atomic bool
	initted int32 // atomic bool
)

// Init enables or disables Fine-level tracing and, when a cacheDir is
// given and tracing is enabled, mirrors all output into cacheDir/trace.log
// in addition to stderr. Init is idempotent; only the first call has
// effect.
func Init(traceEnabled bool, cacheDir string) {
	if !atomic.CompareAndSwapInt32(&initted, 0, 1) {
		return
	}
	if !traceEnabled {
		return
	}
	atomic.StoreInt32(&fineOn, 1)
	if cacheDir == "" {
		return
	}
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		Log("tracelog: could not create cache dir %s: %v", cacheDir, err)
		return
	}
	path := filepath.Join(cacheDir, "trace.log")
	truncateIfLarge(path, 10<<20)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		Log("tracelog: could not open %s: %v", path, err)
		return
	}
	mu.Lock()
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	mu.Unlock()
}

func truncateIfLarge(path string, max int64) {
	info, err := os.Stat(path)
	if err != nil || info.Size() < max {
		return
	}
	os.Truncate(path, 0)
}

// Enabled reports whether VSINKD_TRACE is set or a "trace" sentinel file
// exists under cacheDir. Call this before Init to decide its first arg.
func Enabled(cacheDir string) bool {
	if os.Getenv("VSINKD_TRACE") != "" {
		return true
	}
	if cacheDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(cacheDir, "trace"))
	return err == nil
}

// Log always writes a line, regardless of the trace toggle. Used for
// warnings and errors that a user running without tracing should still see.
func Log(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	logger.Output(2, fmt.Sprintf(format, args...))
}

// Fine writes a line only when tracing is enabled. Used for the
// high-volume, low-value detail of reconciliation and driver calls.
func Fine(format string, args ...interface{}) {
	if atomic.LoadInt32(&fineOn) == 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	logger.Output(2, fmt.Sprintf(format, args...))
}

// NewRunID returns a correlation id to stamp onto one reconciliation's
// trace lines, so interleaved Fine() calls from concurrent subsystems can
// be grouped back together when reading trace.log.
func NewRunID() string {
	return uuid.NewString()
}
