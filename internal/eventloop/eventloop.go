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

// Package eventloop implements the Event Loop: the single-instance
// guarded process that waits for the sound server, then keeps the
// Reconciler's view of the world in sync via a subscription backend (with
// a debounced/rate-limited full reconciliation) and a polling safety net
// that fast-paths streams the subscription backend missed or delayed.
package eventloop

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/PasukiTV/audiorouter/internal/companion"
	"github.com/PasukiTV/audiorouter/internal/config"
	"github.com/PasukiTV/audiorouter/internal/confwatch"
	"github.com/PasukiTV/audiorouter/internal/fastpath"
	"github.com/PasukiTV/audiorouter/internal/lock"
	"github.com/PasukiTV/audiorouter/internal/model"
	"github.com/PasukiTV/audiorouter/internal/notify"
	"github.com/PasukiTV/audiorouter/internal/reconcile"
	"github.com/PasukiTV/audiorouter/internal/schedule"
	"github.com/PasukiTV/audiorouter/internal/sound"
	"github.com/PasukiTV/audiorouter/internal/state"
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

// Timing parameters: load-bearing behavior, not tuning knobs.
const (
	EventDebounce       = 250 * time.Millisecond
	MaintenanceInterval = 5 * time.Second
	PollInterval        = 10 * time.Millisecond
	ServerWaitTimeout   = 15 * time.Second
	serverWaitPoll      = 100 * time.Millisecond
	ReconnectDelay      = 1 * time.Second
)

// ErrServerUnreachable is returned by Run if the sound server never
// becomes reachable within ServerWaitTimeout.
var ErrServerUnreachable = errors.New("eventloop: server did not become reachable")

// driver is everything the event loop itself needs from the sound server,
// beyond what the Reconciler and Fast-Path Router already require of it.
type driver interface {
	reconcile.ServerDriver
	fastpath.Driver
	TryInfo() bool
	Subscribe() *sound.Subscription
	GetSinkVolume(name string) string
}

// Loop wires together the Server Driver, Reconciler, Fast-Path Router,
// Configuration Store and Runtime State Store into the steady-state
// process this daemon runs as.
type Loop struct {
	Driver      driver
	Reconciler  *reconcile.Reconciler
	FastPath    *fastpath.Router
	ConfigStore *config.Store
	StateStore  *state.Store
	// Companion, if non-nil, is notified of bus sink mute and volume changes observed
	// after each reconciliation. It never participates in reconcile's
	// control flow; pushes run on their own goroutine.
	Companion *companion.Client

	// LockPath is the single-instance lock file path. Empty skips
	// the lock, for use in tests that construct a Loop directly.
	LockPath string
	// WatchPaths, if set, are passed to confwatch (one watcher per path)
	// so external config edits to any of the Configuration Store's
	// split or combined files trigger a debounced reconciliation instead
	// of waiting for the next maintenance tick.
	WatchPaths []string

	stop     chan struct{}
	stopOnce sync.Once

	reconcileMu sync.Mutex

	cfgMu sync.RWMutex
	cfg   model.Configuration

	seenMu sync.Mutex
	seen   map[uint32]bool
	// pollLimiter bounds how often the polling safety net is allowed to
	// shell out for a sink-input listing, in case ticker delivery ever
	// bursts past PollInterval.
	pollLimiter *rate.Limiter

	companionMu sync.Mutex
	lastMute    map[string]bool
	lastVolume  map[string]string
}

// New returns a Loop ready for Run.
func New(d driver, r *reconcile.Reconciler, fp *fastpath.Router, cs *config.Store, ss *state.Store) *Loop {
	return &Loop{
		Driver:      d,
		Reconciler:  r,
		FastPath:    fp,
		ConfigStore: cs,
		StateStore:  ss,
		stop:        make(chan struct{}),
		seen:        map[uint32]bool{},
		pollLimiter: rate.NewLimiter(rate.Every(PollInterval), 1),
		lastMute:    map[string]bool{},
		lastVolume:  map[string]string{},
	}
}

// Run acquires the single-instance lock, waits for the server, performs
// one initial reconciliation, then drives the steady-state loop until
// Stop is called or an unrecoverable startup error occurs.
func (l *Loop) Run() error {
	if l.LockPath != "" {
		held, err := lock.Acquire(l.LockPath)
		if err != nil {
			return err
		}
		defer held.Release()
	}

	if !l.waitForServer() {
		return ErrServerUnreachable
	}

	l.reconcileNow()

	notifyFn, notifyCh := notify.New()

	watchers := make([]*confwatch.Watcher, 0, len(l.WatchPaths))
	for _, p := range l.WatchPaths {
		w := confwatch.Watch(p)
		watchers = append(watchers, w)
		go l.forwardConfigChanges(w, notifyFn)
	}

	debounce := schedule.Do(l.reconcileNow)
	maintenance := schedule.Do(l.reconcileNow).Every(MaintenanceInterval)
	defer maintenance.Stop()
	defer debounce.Stop()

	go l.debounceLoop(notifyCh, debounce)
	go l.subscriptionLoop(notifyFn)
	go l.pollingSafetyNet()

	<-l.stop
	for _, w := range watchers {
		w.Unsubscribe()
	}
	return nil
}

// Stop signals every loop goroutine to exit at its next check.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Loop) waitForServer() bool {
	deadline := time.Now().Add(ServerWaitTimeout)
	for {
		if l.Driver.TryInfo() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-time.After(serverWaitPoll):
		case <-l.stop:
			return false
		}
	}
}

func (l *Loop) forwardConfigChanges(w *confwatch.Watcher, notifyFn func()) {
	for {
		select {
		case _, ok := <-w.Updates:
			if !ok {
				return
			}
			notifyFn()
		case <-w.Errors:
			return
		case <-l.stop:
			return
		}
	}
}

// debounceLoop collapses a burst of "other" events into at most one
// reconciliation per EventDebounce window.
func (l *Loop) debounceLoop(notifyCh <-chan struct{}, debounce *schedule.Scheduler) {
	for {
		select {
		case <-notifyCh:
			debounce.After(EventDebounce)
		case <-l.stop:
			return
		}
	}
}

// subscriptionLoop runs the preferred steady-state backend: it streams
// parsed server events and fast-paths new sink-inputs immediately,
// reconnecting after a fixed delay if the subscription ends.
func (l *Loop) subscriptionLoop(notifyOther func()) {
	for {
		select {
		case <-l.stop:
			return
		default:
		}

		sub := l.Driver.Subscribe()
		draining := true
		for draining {
			select {
			case ev, ok := <-sub.Events:
				if !ok {
					draining = false
					break
				}
				if ev.Kind == sound.EventNewSinkInput {
					l.markSeen(ev.ID)
					l.FastPath.RouteSinkInputNow(l.config(), ev.ID)
					l.reconcileNow()
				} else {
					notifyOther()
				}
			case err := <-sub.Errors:
				tracelog.Fine("eventloop: subscription ended: %v", err)
				draining = false
			case <-l.stop:
				sub.Close()
				return
			}
		}

		select {
		case <-time.After(ReconnectDelay):
		case <-l.stop:
			return
		}
	}
}

// pollingSafetyNet scans for sink-inputs the subscription backend missed
// or delayed past their own lifetime.
func (l *Loop) pollingSafetyNet() {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.pollOnce()
		case <-l.stop:
			return
		}
	}
}

func (l *Loop) pollOnce() {
	if !l.pollLimiter.Allow() {
		return
	}
	cfg := l.config()
	current := l.Driver.ListSinkInputs()

	l.seenMu.Lock()
	next := make(map[uint32]bool, len(current))
	var fresh []uint32
	for _, si := range current {
		next[si.ID] = true
		if !l.seen[si.ID] {
			fresh = append(fresh, si.ID)
		}
	}
	l.seen = next
	l.seenMu.Unlock()

	for _, id := range fresh {
		l.FastPath.RouteSinkInputNow(cfg, id)
	}
}

func (l *Loop) markSeen(id uint32) {
	l.seenMu.Lock()
	l.seen[id] = true
	l.seenMu.Unlock()
}

func (l *Loop) config() model.Configuration {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.cfg
}

// reconcileNow loads the current Configuration and RuntimeState, runs one
// reconciliation, and persists the result. It is single-flight: if a
// reconciliation is already running, this call waits for it rather than
// overlapping.
func (l *Loop) reconcileNow() {
	l.reconcileMu.Lock()
	defer l.reconcileMu.Unlock()

	cfg := l.ConfigStore.Load()
	l.cfgMu.Lock()
	l.cfg = cfg
	l.cfgMu.Unlock()

	st := l.StateStore.Load()
	st = l.Reconciler.Run(cfg, st)
	if err := l.StateStore.Save(st); err != nil {
		tracelog.Log("eventloop: save state: %v", err)
	}

	l.notifyCompanionOfSinkChanges(cfg)
}

// notifyCompanionOfSinkChanges pushes each configured bus's mute state
// and volume to the Companion client iff they changed since the last
// push. This runs after state is persisted and never blocks the next
// reconciliation: each push is fired on its own goroutine.
func (l *Loop) notifyCompanionOfSinkChanges(cfg model.Configuration) {
	if l.Companion == nil {
		return
	}
	for _, b := range cfg.Buses {
		mute := l.Driver.GetSinkMute(b.Name)
		volume := l.Driver.GetSinkVolume(b.Name)

		l.companionMu.Lock()
		muteChanged := l.lastMute[b.Name] != mute
		l.lastMute[b.Name] = mute
		volumeChanged := volume != "" && l.lastVolume[b.Name] != volume
		l.lastVolume[b.Name] = volume
		l.companionMu.Unlock()

		if muteChanged {
			go l.Companion.PushMute(b.Name, mute)
		}
		if volumeChanged {
			go l.Companion.PushVolume(b.Name, volume)
		}
	}
}
