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

// Package model holds the declarative desired-state types shared by the
// Configuration Store and the Reconciler: buses, stream/mic rules, input
// routes, the companion push config, and the runtime ownership ledger.
package model

import "strings"

// SystemBus is the well-known name of the bus used as the default
// destination for notification and bell sounds.
const SystemBus = "vsink.system"

// RouteDefault and RouteNone are the two sentinel values a Bus's RouteTo
// may take in addition to a concrete sink name.
const (
	RouteDefault = "default"
	RouteNone    = "none"
)

// MonitorSuffix is appended to a sink name to get its monitor source name.
const MonitorSuffix = ".monitor"

// Monitor returns the monitor source name for a sink.
func Monitor(sink string) string { return sink + MonitorSuffix }

// IsMonitor reports whether name looks like a monitor source.
func IsMonitor(name string) bool { return strings.HasSuffix(name, MonitorSuffix) }

// Bus is a virtual bus: a null sink plus the route that feeds its monitor
// to a physical (or another virtual) sink.
type Bus struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	RouteTo string `json:"route_to"`
}

// Validate checks that the bus name is non-empty and that RouteTo, if a
// concrete name, is neither Name itself nor a monitor name.
func (b Bus) Validate() error {
	if b.Name == "" {
		return errInvalidBus("bus name must not be empty")
	}
	if b.RouteTo == "" || b.RouteTo == RouteDefault || b.RouteTo == RouteNone {
		return nil
	}
	if b.RouteTo == b.Name {
		return errInvalidBus("bus " + b.Name + " cannot route to itself")
	}
	if IsMonitor(b.RouteTo) {
		return errInvalidBus("bus " + b.Name + " cannot route to a monitor source")
	}
	return nil
}

type errInvalidBus string

func (e errInvalidBus) Error() string { return string(e) }

// Match is the set of substring predicates a StreamRule or MicRule applies
// against a stream's properties. Absent keys are not checked; an entirely
// empty Match never matches.
type Match struct {
	Binary string `json:"binary,omitempty"`
	App    string `json:"app,omitempty"`
	AppID  string `json:"app_id,omitempty"`
}

// Empty reports whether none of the match fields are set.
func (m Match) Empty() bool {
	return m.Binary == "" && m.App == "" && m.AppID == ""
}

// Matches reports whether every present field of m is a lowercase substring
// of the corresponding property. binary, app, and appID are the candidate
// stream's already-available properties (case preserved; this function
// lowercases both sides).
func (m Match) Matches(binary, app, appID string) bool {
	if m.Empty() {
		return false
	}
	if m.Binary != "" && !contains(binary, m.Binary) {
		return false
	}
	if m.App != "" && !contains(app, m.App) {
		return false
	}
	if m.AppID != "" && !contains(appID, m.AppID) {
		return false
	}
	return true
}

func contains(prop, substr string) bool {
	return strings.Contains(strings.ToLower(prop), strings.ToLower(substr))
}

// StreamRule routes a playback stream (sink-input) matching Match onto
// TargetBus.
type StreamRule struct {
	Match     Match  `json:"match"`
	TargetBus string `json:"target_bus"`
}

// MicRule routes a capture stream (source-output) matching Match onto
// TargetBus's monitor source.
type MicRule struct {
	Match     Match  `json:"match"`
	TargetBus string `json:"target_bus"`
}

// InputRoute establishes a persistent loopback from a concrete capture
// Source into TargetBus's sink.
type InputRoute struct {
	Source    string `json:"source"`
	TargetBus string `json:"target_bus"`
}

// CompanionConfig describes the optional outbound push of per-sink
// mute/volume state to an external control surface. It is purely outbound
// and is never consulted by the Reconciler.
type CompanionConfig struct {
	Enabled      bool   `json:"enabled"`
	URL          string `json:"url"`
	VolumeSuffix string `json:"volume_suffix"`
	MuteSuffix   string `json:"mute_suffix"`
	TimeoutSec   int    `json:"timeout_sec"`
}

// Configuration is the full declarative desired state.
type Configuration struct {
	Buses       []Bus           `json:"buses"`
	Rules       []StreamRule    `json:"rules"`
	MicRoutes   []MicRule       `json:"mic_routes"`
	InputRoutes []InputRoute    `json:"input_routes"`
	Companion   CompanionConfig `json:"companion"`
}

// Normalize guarantees list-valued fields are non-nil, so callers can range
// over them without a nil check, matching the Configuration Store's
// contract that every configuration exposes buses/rules/mic_routes/
// input_routes/companion.
func (c *Configuration) Normalize() {
	if c.Buses == nil {
		c.Buses = []Bus{}
	}
	if c.Rules == nil {
		c.Rules = []StreamRule{}
	}
	if c.MicRoutes == nil {
		c.MicRoutes = []MicRule{}
	}
	if c.InputRoutes == nil {
		c.InputRoutes = []InputRoute{}
	}
}

// BusByName returns the bus with the given name, if configured.
func (c *Configuration) BusByName(name string) (Bus, bool) {
	for _, b := range c.Buses {
		if b.Name == name {
			return b, true
		}
	}
	return Bus{}, false
}

// HasBus reports whether a bus with the given name is configured.
func (c *Configuration) HasBus(name string) bool {
	_, ok := c.BusByName(name)
	return ok
}

// RuntimeState is the persistent ownership ledger: which server
// modules this process created, and for which bus/source.
type RuntimeState struct {
	BusModules        map[string]uint32 `json:"bus_modules"`
	RouteModules      map[string]uint32 `json:"route_modules"`
	RouteTarget       map[string]string `json:"route_target"`
	InputRouteModules map[string]uint32 `json:"input_route_modules"`
	InputRouteTarget  map[string]string `json:"input_route_target"`
}

// NewRuntimeState returns a RuntimeState with all four maps initialized
// empty, matching the Runtime State Store's load contract.
func NewRuntimeState() RuntimeState {
	return RuntimeState{
		BusModules:        map[string]uint32{},
		RouteModules:      map[string]uint32{},
		RouteTarget:       map[string]string{},
		InputRouteModules: map[string]uint32{},
		InputRouteTarget:  map[string]string{},
	}
}

// Normalize guarantees all four maps are non-nil.
func (s *RuntimeState) Normalize() {
	if s.BusModules == nil {
		s.BusModules = map[string]uint32{}
	}
	if s.RouteModules == nil {
		s.RouteModules = map[string]uint32{}
	}
	if s.RouteTarget == nil {
		s.RouteTarget = map[string]string{}
	}
	if s.InputRouteModules == nil {
		s.InputRouteModules = map[string]uint32{}
	}
	if s.InputRouteTarget == nil {
		s.InputRouteTarget = map[string]string{}
	}
}
