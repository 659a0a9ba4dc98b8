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

/*
Package notify provides a channel that sends coalesced wake-up
notifications. A notifier automatically coalesces multiple notifications
such that if a previous notification is already pending, a new notification
will not be created. The event loop uses this to collapse a burst of
"other" server events into at most one pending reconciliation request.
*/
package notify

import (
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

// New constructs a new notifier. It returns a func that triggers a
// notification, and a <-chan that consumes these notifications.
func New() (func(), <-chan struct{}) {
	ch := make(chan struct{}, 1)
	return func() { fire(ch) }, ch
}

func fire(ch chan<- struct{}) {
	tracelog.Fine("notify")
	select {
	case ch <- struct{}{}:
	default:
	}
}
