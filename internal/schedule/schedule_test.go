// Copyright 2017 Google Inc.
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

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler(t *testing.T) {
	ch := make(chan interface{})
	doFunc := func() {
		ch <- nil
	}

	assertCalled := func(message string) {
		select {
		case <-ch:
		case <-time.After(time.Second):
			assert.Fail(t, "doFunc was not called", message)
		}
	}

	assertNotCalled := func(message string) {
		select {
		case <-ch:
			assert.Fail(t, "doFunc was called", message)
		case <-time.After(10 * time.Millisecond):
		}
	}

	sch := Do(doFunc)
	assertNotCalled("when not armed")

	sch.After(5 * time.Millisecond).Stop()
	assertNotCalled("when stopped")

	sch.Every(5 * time.Millisecond).Stop()
	assertNotCalled("when stopped")

	sch.After(10 * time.Millisecond)
	assertCalled("after delay elapses")
	assertNotCalled("After fires only once")

	sch.Stop()
	assertNotCalled("when elapsed scheduler is stopped")

	sch.Stop()
	assertNotCalled("when elapsed scheduler is stopped again")

	sch = Do(doFunc).Every(5 * time.Millisecond)
	assertCalled("after interval elapses")
	assertCalled("after interval elapses")
	assertCalled("after interval elapses")

	sch.Stop()
	assertNotCalled("when stopped")

	sch.After(5 * time.Millisecond)
	assertCalled("re-armed after Stop")
}

func TestAfterReplacesPendingTrigger(t *testing.T) {
	ch := make(chan interface{}, 4)
	sch := Do(func() { ch <- nil })

	// Re-arming within the delay keeps pushing the trigger out, so a
	// burst collapses into a single firing.
	for i := 0; i < 4; i++ {
		sch.After(20 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		assert.Fail(t, "debounced trigger never fired")
	}
	select {
	case <-ch:
		assert.Fail(t, "burst of After calls fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
}
