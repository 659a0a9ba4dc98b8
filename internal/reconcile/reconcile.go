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

// Package reconcile implements the Reconciler: the idempotent algorithm
// that drives the sound server's actual module/routing graph toward the
// declared Configuration, phase by phase, using a ServerDriver and a
// persisted ownership ledger (model.RuntimeState). Each module owns
// exactly what it created and re-asserts that ownership every pass.
package reconcile

import (
	"strings"
	"time"

	"github.com/PasukiTV/audiorouter/internal/classify"
	"github.com/PasukiTV/audiorouter/internal/model"
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

const (
	vsinkPrefix = "vsink."

	routeLatencyMs = 30
	inputLatencyMs = 30

	breakBeforeMakeSleep = 20 * time.Millisecond
	breakBeforeMakeWait  = 120 * time.Millisecond
	makeBeforeBreakSleep = 50 * time.Millisecond
)

// sleeper is overridden in tests so the handover sequencing can be
// exercised without spending real wall-clock time on every case.
var sleeper = time.Sleep

// Reconciler holds everything a reconciliation needs beyond the
// Configuration and RuntimeState passed to Run: the Server Driver. Run
// draws a fresh trace id for each pass to correlate its log lines.
type Reconciler struct {
	Driver ServerDriver
}

// New returns a Reconciler driving d.
func New(d ServerDriver) *Reconciler {
	return &Reconciler{Driver: d}
}

// Run executes one full reconciliation: phases (a)-(g) in order, mutating
// state in place and returning it for the caller to persist. Running it
// twice in a row with no external changes issues no server commands on
// the second call.
func (r *Reconciler) Run(cfg model.Configuration, state model.RuntimeState) model.RuntimeState {
	runID := tracelog.NewRunID()
	tracelog.Fine("reconcile[%s]: start", runID)
	cfg.Normalize()
	state.Normalize()

	r.removeGhosts(&cfg, &state)
	r.ensureNullSinks(&cfg, &state)
	r.routes(&cfg, &state)
	r.inputRoutes(&cfg, &state)
	r.ensurePlacementPolicy()
	r.streamRules(&cfg)
	r.micRules(&cfg)

	tracelog.Fine("reconcile[%s]: done", runID)
	return state
}

// (a) removeGhosts drops ownership of, and unloads, every module this
// process created for a bus/source/input-route that is no longer
// configured.
func (r *Reconciler) removeGhosts(cfg *model.Configuration, state *model.RuntimeState) {
	for bus, id := range state.RouteModules {
		if cfg.HasBus(bus) {
			continue
		}
		r.Driver.UnloadModule(id)
		delete(state.RouteModules, bus)
		delete(state.RouteTarget, bus)
	}
	for bus, id := range state.BusModules {
		if cfg.HasBus(bus) {
			continue
		}
		r.Driver.UnloadModule(id)
		delete(state.BusModules, bus)
	}
	configuredSources := map[string]bool{}
	for _, ir := range cfg.InputRoutes {
		configuredSources[ir.Source] = true
	}
	for source, id := range state.InputRouteModules {
		if configuredSources[source] {
			continue
		}
		r.Driver.UnloadModule(id)
		delete(state.InputRouteModules, source)
		delete(state.InputRouteTarget, source)
	}
}

// (b) ensureNullSinks creates any missing bus backing sinks and keeps the
// system bus's role tag (and every bus's label) asserted.
func (r *Reconciler) ensureNullSinks(cfg *model.Configuration, state *model.RuntimeState) {
	descriptions := r.Driver.ListSinkDescriptions()
	for _, b := range cfg.Buses {
		if !r.Driver.SinkExists(b.Name) {
			id, err := r.Driver.LoadNullSink(b.Name, b.Label)
			if err != nil {
				tracelog.Fine("reconcile: load_null_sink(%s): %v", b.Name, err)
				continue
			}
			state.BusModules[b.Name] = id
			descriptions[b.Name] = b.Label
		} else if b.Label != "" && descriptions[b.Name] != b.Label {
			r.Driver.ApplySinkLabel(b.Name, b.Label)
		}
		if b.Name == model.SystemBus {
			r.Driver.ApplySystemRoleTag(b.Name)
		}
	}
}

// (c) routes resolves and installs, or tears down, each bus's route to its
// RouteTo target, using the low-artifact handover when the route changes.
func (r *Reconciler) routes(cfg *model.Configuration, state *model.RuntimeState) {
	for _, b := range cfg.Buses {
		r.reconcileRoute(b, state)
	}
}

func (r *Reconciler) reconcileRoute(b model.Bus, state *model.RuntimeState) {
	if b.RouteTo == model.RouteNone {
		if id, ok := state.RouteModules[b.Name]; ok {
			r.Driver.UnloadModule(id)
			delete(state.RouteModules, b.Name)
		}
		state.RouteTarget[b.Name] = model.RouteNone
		return
	}

	target := r.resolveRouteTarget(b.RouteTo)
	if target == "" || target == b.Name || model.IsMonitor(target) {
		return
	}

	monitor := model.Monitor(b.Name)
	if !r.Driver.SourceExists(monitor) {
		// Null sink just created this tick; its monitor isn't visible yet.
		return
	}

	if r.Driver.LoopbackExists(monitor, target) {
		state.RouteTarget[b.Name] = target
		r.Driver.CleanupWrongLoopbacksForSource(monitor, target)
		return
	}

	r.handoverRoute(b, monitor, target, state)
}

// resolveRouteTarget resolves "default" to the server's physical default
// sink, falling back to the first non-virtual sink if the default is
// itself a vsink.
func (r *Reconciler) resolveRouteTarget(routeTo string) string {
	if routeTo != model.RouteDefault {
		return routeTo
	}
	def := r.Driver.GetDefaultSink()
	if def != "" && !strings.HasPrefix(def, vsinkPrefix) {
		return def
	}
	for _, s := range r.Driver.ListSinks() {
		if !strings.HasPrefix(s.Name, vsinkPrefix) {
			return s.Name
		}
	}
	return def
}

// handoverRoute installs a new loopback from monitor to target, muting
// around the change to keep the handover free of audible artifacts, and
// guaranteeing every mute it applies is undone regardless of outcome.
func (r *Reconciler) handoverRoute(b model.Bus, monitor, target string, state *model.RuntimeState) {
	prevTarget := state.RouteTarget[b.Name]
	involvesVirtual := strings.HasPrefix(target, vsinkPrefix) || strings.HasPrefix(prevTarget, vsinkPrefix)

	var prevOwnerInputs, newOwnerInputs []uint32
	if id, ok := state.RouteModules[b.Name]; ok {
		prevOwnerInputs = r.Driver.SinkInputsForOwnerModule(id)
	}

	r.Driver.SetSinkMute(b.Name, true)
	r.Driver.SetSourceMute(monitor, true)
	for _, id := range prevOwnerInputs {
		r.Driver.SetSinkInputMute(id, true)
	}

	defer func() {
		for _, id := range prevOwnerInputs {
			r.Driver.SetSinkInputMute(id, false)
		}
		for _, id := range newOwnerInputs {
			r.Driver.SetSinkInputMute(id, false)
		}
		r.Driver.SetSourceMute(monitor, false)
		r.Driver.SetSinkMute(b.Name, false)
	}()

	var newID uint32
	var err error
	if involvesVirtual {
		r.Driver.CleanupWrongLoopbacksForSource(monitor, target)
		sleeper(breakBeforeMakeSleep)
		newID, err = r.Driver.LoadLoopback(monitor, target, routeLatencyMs)
		sleeper(breakBeforeMakeWait)
	} else {
		newID, err = r.Driver.LoadLoopback(monitor, target, routeLatencyMs)
		r.Driver.CleanupWrongLoopbacksForSource(monitor, target)
		sleeper(makeBeforeBreakSleep)
	}
	if err != nil {
		tracelog.Fine("reconcile: handover %s -> %s: %v", b.Name, target, err)
		return
	}

	newOwnerInputs = r.Driver.SinkInputsForOwnerModule(newID)
	state.RouteModules[b.Name] = newID
	state.RouteTarget[b.Name] = target
}

// (d) inputRoutes installs persistent loopbacks for capture sources, no
// low-artifact handover: input routes are explicit user wiring, not a
// live playback path being re-steered.
func (r *Reconciler) inputRoutes(cfg *model.Configuration, state *model.RuntimeState) {
	for _, ir := range cfg.InputRoutes {
		if model.IsMonitor(ir.Source) || !r.Driver.SourceExists(ir.Source) {
			continue
		}
		if !r.Driver.SinkExists(ir.TargetBus) {
			continue
		}

		if r.Driver.LoopbackExists(ir.Source, ir.TargetBus) {
			state.InputRouteTarget[ir.Source] = ir.TargetBus
			r.Driver.CleanupWrongLoopbacksForSource(ir.Source, ir.TargetBus)
			continue
		}

		if prevID, ok := state.InputRouteModules[ir.Source]; ok {
			if state.InputRouteTarget[ir.Source] != ir.TargetBus {
				r.Driver.UnloadModule(prevID)
			}
		}
		r.Driver.CleanupWrongLoopbacksForSource(ir.Source, ir.TargetBus)
		id, err := r.Driver.LoadLoopback(ir.Source, ir.TargetBus, inputLatencyMs)
		if err != nil {
			tracelog.Fine("reconcile: input route %s -> %s: %v", ir.Source, ir.TargetBus, err)
			continue
		}
		state.InputRouteModules[ir.Source] = id
		state.InputRouteTarget[ir.Source] = ir.TargetBus
	}
}

// (e) ensurePlacementPolicy loads module-intended-roles once, so the
// server itself places event/notification streams on sinks tagged with
// matching intended roles.
func (r *Reconciler) ensurePlacementPolicy() {
	if err := r.Driver.EnsureModuleLoaded("module-intended-roles"); err != nil {
		tracelog.Fine("reconcile: module-intended-roles: %v", err)
	}
}

// sinkNamesByID builds an id -> name lookup so stream-rule phases can tell
// whether a stream is already sitting on its target bus.
func (r *Reconciler) sinkNamesByID() map[uint32]string {
	out := map[uint32]string{}
	for _, s := range r.Driver.ListSinks() {
		out[s.ID] = s.Name
	}
	return out
}

// (f) streamRules moves every sink-input matching a configured StreamRule
// onto its target bus, falling back to the Classifier for the system bus.
func (r *Reconciler) streamRules(cfg *model.Configuration) {
	sinkNames := r.sinkNamesByID()
	for _, si := range r.Driver.ListSinkInputs() {
		target, matched := matchStreamRule(cfg.Rules, si.Props, cfg)
		if matched {
			if sinkNames[si.SinkID] != target {
				if err := r.Driver.MoveSinkInput(si.ID, target); err != nil {
					tracelog.Fine("reconcile: move_sink_input(%d, %s): %v", si.ID, target, err)
				}
			}
			continue
		}
		if cfg.HasBus(model.SystemBus) && classify.IsSystemSound(si.Props) && sinkNames[si.SinkID] != model.SystemBus {
			if err := r.Driver.MoveSinkInput(si.ID, model.SystemBus); err != nil {
				tracelog.Fine("reconcile: move_sink_input(%d, %s): %v", si.ID, model.SystemBus, err)
			}
		}
	}
}

func matchStreamRule(rules []model.StreamRule, props interface {
	Binary() string
	AppName() string
	AppID() string
}, cfg *model.Configuration) (string, bool) {
	for _, rule := range rules {
		if !rule.Match.Matches(props.Binary(), props.AppName(), props.AppID()) {
			continue
		}
		if !cfg.HasBus(rule.TargetBus) {
			continue
		}
		return rule.TargetBus, true
	}
	return "", false
}

// (g) micRules moves every source-output matching a configured MicRule
// onto its target bus's monitor source. There is no Classifier fallback
// for capture streams.
func (r *Reconciler) micRules(cfg *model.Configuration) {
	sourceNames := r.sourceNamesByID()
	for _, so := range r.Driver.ListSourceOutputs() {
		target, matched := matchMicRule(cfg.MicRoutes, so.Props, cfg)
		if !matched {
			continue
		}
		dest := model.Monitor(target)
		if sourceNames[so.SourceID] == dest {
			continue
		}
		if err := r.Driver.MoveSourceOutput(so.ID, dest); err != nil {
			tracelog.Fine("reconcile: move_source_output(%d, %s): %v", so.ID, dest, err)
		}
	}
}

func (r *Reconciler) sourceNamesByID() map[uint32]string {
	out := map[uint32]string{}
	for _, s := range r.Driver.ListSources() {
		out[s.ID] = s.Name
	}
	return out
}

func matchMicRule(rules []model.MicRule, props interface {
	Binary() string
	AppName() string
	AppID() string
}, cfg *model.Configuration) (string, bool) {
	for _, rule := range rules {
		if !rule.Match.Matches(props.Binary(), props.AppName(), props.AppID()) {
			continue
		}
		if !cfg.HasBus(rule.TargetBus) {
			continue
		}
		return rule.TargetBus, true
	}
	return "", false
}
