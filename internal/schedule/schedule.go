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

// Package schedule paces the event loop's reconciliation triggers: a
// debounce timer that is re-armed on every burst of server events, and a
// fixed maintenance ticker. A Scheduler holds at most one pending
// trigger; arming it again replaces whatever was pending.
package schedule

import (
	"sync"
	"time"
)

// Scheduler calls a function after a delay or at a fixed interval.
type Scheduler struct {
	do func()

	mu     sync.Mutex
	timer  *time.Timer
	ticker *time.Ticker
}

// Do returns a Scheduler that calls f on every trigger. It is inert
// until After or Every arms it.
func Do(f func()) *Scheduler {
	return &Scheduler{do: f}
}

// After arms the scheduler to fire once after delay, replacing any
// pending trigger. Re-arming before the delay elapses restarts it, which
// is exactly the debounce behavior the event loop wants.
func (s *Scheduler) After(delay time.Duration) *Scheduler {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = time.AfterFunc(delay, s.do)
	return s
}

// Every arms the scheduler to fire at a fixed interval, replacing any
// pending trigger.
func (s *Scheduler) Every(interval time.Duration) *Scheduler {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	ticker := time.NewTicker(interval)
	s.ticker = ticker
	go func() {
		for range ticker.C {
			s.do()
		}
	}()
	return s
}

// Stop cancels any pending trigger. The scheduler can be armed again
// afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}
