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

package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PasukiTV/audiorouter/internal/sound"
)

func TestIsSystemSound(t *testing.T) {
	cases := []struct {
		name  string
		props sound.Props
		want  bool
	}{
		{"event role", sound.Props{"media.role": "event"}, true},
		{"notification role", sound.Props{"media.role": "notification"}, true},
		{"gnome-shell with space never matches", sound.Props{"application.name": "GNOME Shell"}, false},
		{"gnome-shell app exact", sound.Props{"application.name": "gnome-shell"}, true},
		{"canberra binary", sound.Props{"application.process.binary": "canberra-gtk-play"}, true},
		{"path-valued binary never matches", sound.Props{"application.process.binary": "/usr/bin/canberra-gtk-play"}, false},
		{"portal notification", sound.Props{
			"pipewire.access.portal.app_id": "org.freedesktop.impl.portal.desktop.gtk",
			"media.name":                    "Portal notification sound",
		}, true},
		{"portal without portal in media name", sound.Props{
			"pipewire.access.portal.app_id": "org.freedesktop.impl.portal.desktop.gtk",
			"media.name":                    "Music",
		}, false},
		{"media name substring", sound.Props{"media.name": "System Sounds Test"}, true},
		{"unrelated music stream", sound.Props{
			"application.name":           "Vivaldi",
			"application.process.binary": "/usr/bin/vivaldi-bin",
			"media.name":                 "Playback",
		}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IsSystemSound(c.props))
		})
	}
}
