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

package sound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const englishSinkInputs = `Sink Input #26
	Driver: protocol-native.c
	Owner Module: 7
	Client: 12
	Sink: 2
	Sample Specification: s16le 2ch 44100Hz
	Properties:
		application.name = "Vivaldi"
		application.process.binary = "/usr/bin/vivaldi-bin"
		media.name = "Playback"

Sink Input #27
	Driver: protocol-native.c
	Owner Module: n/a
	Client: 13
	Sink: 1
	Properties:
		application.name = "gnome-shell"
		media.role = "event"
`

const germanSinkInputs = `Ziel-Eingabe #26
	Treiber: protocol-native.c
	Besitzer-Modul: 7
	Client: 12
	Ziel: 2
	Eigenschaften:
		application.name = "Vivaldi"
		application.process.binary = "/usr/bin/vivaldi-bin"
`

func TestParseStreamListingEnglish(t *testing.T) {
	recs := parseStreamListing(englishSinkInputs, sinkInputFields)
	require.Len(t, recs, 2)
	assert.Equal(t, uint32(26), recs[0].id)
	assert.Equal(t, uint32(2), recs[0].attachedID)
	assert.Equal(t, int64(7), recs[0].ownerModule)
	assert.Equal(t, "/usr/bin/vivaldi-bin", recs[0].props["application.process.binary"])

	assert.Equal(t, int64(-1), recs[1].ownerModule, "n/a owner module is dropped")
	assert.Equal(t, "event", recs[1].props["media.role"])
}

func TestParseStreamListingGerman(t *testing.T) {
	recs := parseStreamListing(germanSinkInputs, sinkInputFields)
	require.Len(t, recs, 1)
	assert.Equal(t, uint32(26), recs[0].id)
	assert.Equal(t, uint32(2), recs[0].attachedID)
	assert.Equal(t, int64(7), recs[0].ownerModule)
	assert.Equal(t, "/usr/bin/vivaldi-bin", recs[0].props["application.process.binary"])
}

func TestParseShortListingModules(t *testing.T) {
	text := "7\tmodule-null-sink\tsink_name=vsink.browser sink_properties=device.description=Browser\n" +
		"8\tmodule-loopback\tsource=vsink.browser.monitor sink=alsa_output.hw0 latency_msec=30\n"
	mods := parseShortListing(text)
	require.Len(t, mods, 2)
	assert.Equal(t, "module-null-sink", mods[0].Name)
	assert.Contains(t, mods[1].Args, "sink=alsa_output.hw0")
}

func TestParseSubscribeLine(t *testing.T) {
	ev, ok := parseSubscribeLine("Event 'new' on sink-input #26")
	require.True(t, ok)
	assert.Equal(t, EventNewSinkInput, ev.Kind)
	assert.Equal(t, uint32(26), ev.ID)

	ev, ok = parseSubscribeLine("Event 'change' on sink #1")
	require.True(t, ok)
	assert.Equal(t, EventOther, ev.Kind)

	ev, ok = parseSubscribeLine("Event 'new' on sink #1")
	require.True(t, ok)
	assert.Equal(t, EventOther, ev.Kind, "new events on classes other than sink-input are not fast-pathed")
}

func TestParseShortListingSkipsMalformedLines(t *testing.T) {
	text := "not-a-number\tmodule-x\n\n9\tmodule-loopback\tsource=a sink=b\n"
	mods := parseShortListing(text)
	require.Len(t, mods, 1)
	assert.Equal(t, uint32(9), mods[0].ID)
	assert.Equal(t, "source=a sink=b", mods[0].Args)
}
