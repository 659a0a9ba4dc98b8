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

package reconcile

import "github.com/PasukiTV/audiorouter/internal/sound"

// ServerDriver is the subset of the Server Driver the Reconciler needs.
// Defined here (the consumer) rather than in package sound, so tests can
// supply a fake without depending on *sound.Driver's subprocess plumbing.
type ServerDriver interface {
	ListSinks() []sound.Sink
	ListSinkDescriptions() map[string]string
	ListSources() []sound.Source
	ListModules() []sound.Module
	ListSinkInputs() []sound.SinkInput
	ListSourceOutputs() []sound.SourceOutput
	GetDefaultSink() string
	SinkExists(name string) bool
	SourceExists(name string) bool

	LoadNullSink(name, label string) (uint32, error)
	ApplySystemRoleTag(sinkName string)
	ApplySinkLabel(sinkName, label string)
	LoadLoopback(source, sink string, latencyMs int) (uint32, error)
	UnloadModule(id uint32) error
	MoveSinkInput(id uint32, sinkName string) error
	MoveSourceOutput(id uint32, sourceName string) error
	SetSinkMute(name string, mute bool) error
	SetSourceMute(name string, mute bool) error
	SetSinkInputMute(id uint32, mute bool) error
	SetSinkVolume(name, spec string) error
	GetSinkMute(name string) bool
	EnsureModuleLoaded(name string, args ...string) error
	LoopbackExists(source, sink string) bool
	CleanupWrongLoopbacksForSource(source, wantedSink string)
	SinkInputsForOwnerModule(moduleID uint32) []uint32
}
