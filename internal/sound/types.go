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

import "strings"

// Sink is an observed server sink.
type Sink struct {
	ID   uint32
	Name string
}

// Source is an observed server source.
type Source struct {
	ID   uint32
	Name string
}

// Module is an observed server module.
type Module struct {
	ID   uint32
	Name string
	Args string
}

// Props is a dynamic property bag on a stream: unbounded keys stored as
// plain strings, with typed accessors below covering the handful of keys
// the Classifier and stream matcher use.
type Props map[string]string

func (p Props) get(keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			return v
		}
	}
	return ""
}

// Binary returns application.process.binary.
func (p Props) Binary() string { return p.get("application.process.binary") }

// AppName returns application.name.
func (p Props) AppName() string { return p.get("application.name") }

// AppID returns pipewire.access.portal.app_id.
func (p Props) AppID() string { return p.get("pipewire.access.portal.app_id") }

// MediaRole returns media.role.
func (p Props) MediaRole() string { return p.get("media.role") }

// MediaName returns media.name.
func (p Props) MediaName() string { return p.get("media.name") }

// NodeName returns node.name.
func (p Props) NodeName() string { return p.get("node.name") }

// HasAppIDPrefix reports whether app_id has the given prefix, case-sensitive
// (portal app ids are reverse-DNS style and not locale-sensitive).
func (p Props) HasAppIDPrefix(prefix string) bool {
	return strings.HasPrefix(p.AppID(), prefix)
}

// SinkInput is an observed playback stream attached to a sink.
type SinkInput struct {
	ID          uint32
	SinkID      uint32
	OwnerModule int64 // -1 when absent
	Props       Props
}

// SourceOutput is an observed capture stream attached to a source.
type SourceOutput struct {
	ID          uint32
	SourceID    uint32
	OwnerModule int64
	Props       Props
}
