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

// Package classify implements the Classifier: a stateless predicate over
// a stream's property bag deciding whether it is a "system sound" that
// should default onto the system bus.
package classify

import (
	"strings"

	"github.com/PasukiTV/audiorouter/internal/sound"
)

var eventRoles = map[string]bool{
	"event":        true,
	"notification": true,
}

var systemApps = map[string]bool{
	"gnome-shell":         true,
	"plasmashell":         true,
	"kded5":               true,
	"kded6":               true,
	"xfce4-notifyd":       true,
	"notification-daemon": true,
	"mako":                true,
}

var systemBinaries = map[string]bool{
	"gnome-shell":         true,
	"plasmashell":         true,
	"kded5":               true,
	"kded6":               true,
	"xfce4-notifyd":       true,
	"notification-daemon": true,
	"mako":                true,
	"canberra-gtk-play":   true,
}

var systemMediaNameSubstrings = []string{
	"system sound",
	"system sounds",
	"systemklänge",
	"benachrichtigung",
	"notification",
	"event",
}

const portalPrefix = "org.freedesktop.impl.portal"

// IsSystemSound reports whether props describes a "system sound" stream,
// by five independent conditions (any one suffices).
func IsSystemSound(props sound.Props) bool {
	if role := strings.ToLower(props.MediaRole()); eventRoles[role] {
		return true
	}
	if systemApps[strings.ToLower(props.AppName())] {
		return true
	}
	if systemBinaries[strings.ToLower(props.Binary())] {
		return true
	}
	if props.HasAppIDPrefix(portalPrefix) && strings.Contains(strings.ToLower(props.MediaName()), "portal") {
		return true
	}
	mediaName := strings.ToLower(props.MediaName())
	for _, sub := range systemMediaNameSubstrings {
		if strings.Contains(mediaName, sub) {
			return true
		}
	}
	return false
}
