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

package fastpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PasukiTV/audiorouter/internal/model"
	"github.com/PasukiTV/audiorouter/internal/sound"
)

type fakeDriver struct {
	sinks         map[string]uint32
	sources       map[string]uint32
	sinkInputs    []sound.SinkInput
	sourceOutputs []sound.SourceOutput
	moved         map[uint32]string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{sinks: map[string]uint32{}, sources: map[string]uint32{}, moved: map[uint32]string{}}
}

func (f *fakeDriver) ListSinks() []sound.Sink {
	out := make([]sound.Sink, 0, len(f.sinks))
	for name, id := range f.sinks {
		out = append(out, sound.Sink{ID: id, Name: name})
	}
	return out
}

func (f *fakeDriver) ListSources() []sound.Source {
	out := make([]sound.Source, 0, len(f.sources))
	for name, id := range f.sources {
		out = append(out, sound.Source{ID: id, Name: name})
	}
	return out
}

func (f *fakeDriver) ListSinkInputs() []sound.SinkInput       { return f.sinkInputs }
func (f *fakeDriver) ListSourceOutputs() []sound.SourceOutput { return f.sourceOutputs }
func (f *fakeDriver) SinkExists(name string) bool             { _, ok := f.sinks[name]; return ok }

func (f *fakeDriver) MoveSinkInput(id uint32, sinkName string) error {
	f.moved[id] = sinkName
	for i := range f.sinkInputs {
		if f.sinkInputs[i].ID == id {
			f.sinkInputs[i].SinkID = f.sinks[sinkName]
		}
	}
	return nil
}

func (f *fakeDriver) MoveSourceOutput(id uint32, sourceName string) error {
	f.moved[id] = sourceName
	for i := range f.sourceOutputs {
		if f.sourceOutputs[i].ID == id {
			f.sourceOutputs[i].SourceID = f.sources[sourceName]
		}
	}
	return nil
}

func TestRouteSinkInputNowByRule(t *testing.T) {
	f := newFakeDriver()
	f.sinks["alsa_output.hw0"] = 1
	f.sinks["vsink.browser"] = 2
	f.sinkInputs = []sound.SinkInput{{
		ID: 26, SinkID: 1, OwnerModule: -1,
		Props: sound.Props{"application.process.binary": "/usr/bin/vivaldi-bin"},
	}}

	cfg := model.Configuration{
		Buses: []model.Bus{{Name: "vsink.browser"}},
		Rules: []model.StreamRule{{Match: model.Match{Binary: "vivaldi"}, TargetBus: "vsink.browser"}},
	}

	r := New(f)
	ok := r.RouteSinkInputNow(cfg, 26)
	require.True(t, ok)
	assert.Equal(t, "vsink.browser", f.moved[26])
}

func TestRouteSinkInputNowClassifierFallback(t *testing.T) {
	f := newFakeDriver()
	f.sinks["alsa_output.hw0"] = 1
	f.sinks[model.SystemBus] = 2
	f.sinkInputs = []sound.SinkInput{{
		ID: 27, SinkID: 1, OwnerModule: -1,
		Props: sound.Props{"media.role": "event"},
	}}

	cfg := model.Configuration{Buses: []model.Bus{{Name: model.SystemBus}}}

	r := New(f)
	ok := r.RouteSinkInputNow(cfg, 27)
	require.True(t, ok)
	assert.Equal(t, model.SystemBus, f.moved[27])
}

func TestRouteSinkInputNowUnknownID(t *testing.T) {
	f := newFakeDriver()
	r := New(f)
	assert.False(t, r.RouteSinkInputNow(model.Configuration{}, 999))
}

func TestRouteSinkInputNowAlreadyOnTarget(t *testing.T) {
	f := newFakeDriver()
	f.sinks["vsink.browser"] = 2
	f.sinkInputs = []sound.SinkInput{{
		ID: 26, SinkID: 2, OwnerModule: -1,
		Props: sound.Props{"application.process.binary": "/usr/bin/vivaldi-bin"},
	}}
	cfg := model.Configuration{
		Buses: []model.Bus{{Name: "vsink.browser"}},
		Rules: []model.StreamRule{{Match: model.Match{Binary: "vivaldi"}, TargetBus: "vsink.browser"}},
	}
	r := New(f)
	assert.False(t, r.RouteSinkInputNow(cfg, 26), "already on target bus, no move issued")
}

func TestRouteSourceOutputNowByMicRule(t *testing.T) {
	f := newFakeDriver()
	f.sources["alsa_input.hw0"] = 1
	f.sources["vsink.voice.monitor"] = 2
	f.sourceOutputs = []sound.SourceOutput{{
		ID: 9, SourceID: 1, OwnerModule: -1,
		Props: sound.Props{"application.process.binary": "/usr/bin/discord"},
	}}
	cfg := model.Configuration{
		Buses:     []model.Bus{{Name: "vsink.voice"}},
		MicRoutes: []model.MicRule{{Match: model.Match{Binary: "discord"}, TargetBus: "vsink.voice"}},
	}
	r := New(f)
	ok := r.RouteSourceOutputNow(cfg, 9)
	require.True(t, ok)
	assert.Equal(t, "vsink.voice.monitor", f.moved[9])
}
