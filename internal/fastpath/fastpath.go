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

// Package fastpath implements the Fast-Path Router: placing a
// single newly observed stream onto its correct bus immediately, ahead of
// the next full reconciliation, so it is never audible on the wrong sink
// even for a moment.
package fastpath

import (
	"github.com/PasukiTV/audiorouter/internal/classify"
	"github.com/PasukiTV/audiorouter/internal/model"
	"github.com/PasukiTV/audiorouter/internal/sound"
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

// Driver is the subset of the Server Driver the Fast-Path Router needs.
// Narrower than reconcile.ServerDriver: the fast path never creates or
// destroys modules, it only inspects and moves.
type Driver interface {
	ListSinks() []sound.Sink
	ListSources() []sound.Source
	ListSinkInputs() []sound.SinkInput
	ListSourceOutputs() []sound.SourceOutput
	SinkExists(name string) bool
	MoveSinkInput(id uint32, sinkName string) error
	MoveSourceOutput(id uint32, sourceName string) error
}

// Router places newly observed streams using the same declarative rules
// the Reconciler applies, without touching the module graph.
type Router struct {
	Driver Driver
}

// New returns a Router driving d.
func New(d Driver) *Router {
	return &Router{Driver: d}
}

// RouteSinkInputNow places a single playback stream by id onto its
// matching bus. It reports whether it issued a move.
func (r *Router) RouteSinkInputNow(cfg model.Configuration, id uint32) bool {
	si, ok := findSinkInput(r.Driver.ListSinkInputs(), id)
	if !ok {
		return false
	}
	sinkNames := sinkNamesByID(r.Driver.ListSinks())

	for _, rule := range cfg.Rules {
		if !rule.Match.Matches(si.Props.Binary(), si.Props.AppName(), si.Props.AppID()) {
			continue
		}
		if !cfg.HasBus(rule.TargetBus) {
			continue
		}
		return r.move(si.ID, rule.TargetBus, sinkNames[si.SinkID])
	}

	if cfg.HasBus(model.SystemBus) && classify.IsSystemSound(si.Props) && sinkNames[si.SinkID] != model.SystemBus {
		return r.move(si.ID, model.SystemBus, sinkNames[si.SinkID])
	}
	return false
}

func (r *Router) move(id uint32, target, current string) bool {
	if current == target {
		return false
	}
	if !r.Driver.SinkExists(target) {
		return false
	}
	if err := r.Driver.MoveSinkInput(id, target); err != nil {
		tracelog.Fine("fastpath: move_sink_input(%d, %s): %v", id, target, err)
		return false
	}
	return true
}

// RouteSourceOutputNow places a single capture stream by id onto its
// matching bus's monitor source, analogous to RouteSinkInputNow.
func (r *Router) RouteSourceOutputNow(cfg model.Configuration, id uint32) bool {
	so, ok := findSourceOutput(r.Driver.ListSourceOutputs(), id)
	if !ok {
		return false
	}
	sourceNames := sourceNamesByID(r.Driver.ListSources())

	for _, rule := range cfg.MicRoutes {
		if !rule.Match.Matches(so.Props.Binary(), so.Props.AppName(), so.Props.AppID()) {
			continue
		}
		if !cfg.HasBus(rule.TargetBus) {
			continue
		}
		dest := model.Monitor(rule.TargetBus)
		if sourceNames[so.SourceID] == dest {
			return false
		}
		if err := r.Driver.MoveSourceOutput(so.ID, dest); err != nil {
			tracelog.Fine("fastpath: move_source_output(%d, %s): %v", so.ID, dest, err)
			return false
		}
		return true
	}
	return false
}

func findSinkInput(all []sound.SinkInput, id uint32) (sound.SinkInput, bool) {
	for _, si := range all {
		if si.ID == id {
			return si, true
		}
	}
	return sound.SinkInput{}, false
}

func findSourceOutput(all []sound.SourceOutput, id uint32) (sound.SourceOutput, bool) {
	for _, so := range all {
		if so.ID == id {
			return so, true
		}
	}
	return sound.SourceOutput{}, false
}

func sinkNamesByID(sinks []sound.Sink) map[uint32]string {
	out := make(map[uint32]string, len(sinks))
	for _, s := range sinks {
		out[s.ID] = s.Name
	}
	return out
}

func sourceNamesByID(sources []sound.Source) map[uint32]string {
	out := make(map[uint32]string, len(sources))
	for _, s := range sources {
		out[s.ID] = s.Name
	}
	return out
}
