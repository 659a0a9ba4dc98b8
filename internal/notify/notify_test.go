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

package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func assertNotified(t *testing.T, n <-chan struct{}, message string) {
	t.Helper()
	select {
	case <-n:
	case <-time.After(time.Second):
		require.Fail(t, "not notified", message)
	}
}

func assertNoUpdate(t *testing.T, n <-chan struct{}, message string) {
	t.Helper()
	select {
	case <-n:
		require.Fail(t, "unexpectedly notified", message)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSimpleNotify(t *testing.T) {
	fn, n := New()
	fn()
	assertNotified(t, n, "when notified")
	assertNoUpdate(t, n, "when not notified")
}

func TestMultipleNotify(t *testing.T) {
	fn, n := New()
	for i := 0; i < 5; i++ {
		fn()
	}
	assertNotified(t, n, "when notified")
	assertNoUpdate(t, n, "multiple notifications are merged")
}

func TestNotifyWithWaiting(t *testing.T) {
	fn, n := New()

	var launched sync.WaitGroup
	var waited sync.WaitGroup
	for i := 0; i < 5; i++ {
		launched.Add(1)
		waited.Add(1)
		go func() {
			launched.Done()
			<-n
			waited.Done()
		}()
	}
	launched.Wait()
	for i := 0; i < 5; i++ {
		fn()
	}
	doneChan := make(chan struct{})
	go func() {
		waited.Wait()
		doneChan <- struct{}{}
	}()

	select {
	case <-doneChan:
	case <-time.After(time.Second):
		require.Fail(t, "waits did not complete")
	}
}
