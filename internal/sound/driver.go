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

// Package sound implements the Server Driver: the sole gateway to the
// PipeWire/PulseAudio-compatible sound server, over its small CLI
// protocol. It hides whether commands cross a sandbox boundary and
// parses the server's tabular/text responses into structured
// observations.
package sound

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

// CommandTimeout bounds every individual Server Driver call so a frozen
// server cannot stall the event loop indefinitely.
const CommandTimeout = 2 * time.Second

const (
	loopbackModuleName = "module-loopback"
	nullSinkModuleName = "module-null-sink"
	rolesModuleName    = "module-intended-roles"
)

// Driver is the Server Driver: it issues control commands to the sound
// server via its CLI tool (by default "pactl") and parses the responses.
type Driver struct {
	bin       string
	sandboxed bool
	timeout   time.Duration
}

// New returns a Driver using the named control tool binary (normally
// "pactl"), auto-detecting whether the process is sandboxed.
func New(bin string) *Driver {
	return &Driver{bin: bin, sandboxed: detectSandbox(), timeout: CommandTimeout}
}

func (d *Driver) argv(args ...string) []string {
	return wrapArgv(d.sandboxed, append([]string{d.bin}, args...))
}

// run executes argv and returns stdout, raising a CommandError on
// non-zero exit. It never retries; retry policy is the caller's.
func (d *Driver) run(args ...string) (string, error) {
	argv := d.argv(args...)
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	tracelog.Fine("sound: exec %v", argv)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return "", &CommandError{Argv: argv, Stderr: stderr.String()}
	}
	return stdout.String(), nil
}

// tryRun degrades to an empty result instead of an error, used by the
// listing/introspection operations.
func (d *Driver) tryRun(args ...string) string {
	out, err := d.run(args...)
	if err != nil {
		tracelog.Fine("sound: %v (degrading to empty)", err)
		return ""
	}
	return out
}

// ListSinks returns all sinks the server currently reports.
func (d *Driver) ListSinks() []Sink {
	mods := parseShortListing(d.tryRun("list", "short", "sinks"))
	out := make([]Sink, 0, len(mods))
	for _, m := range mods {
		out = append(out, Sink{ID: m.ID, Name: m.Name})
	}
	return out
}

// ListSinkDescriptions maps sink name -> human description.
func (d *Driver) ListSinkDescriptions() map[string]string {
	return parseDescriptions(d.tryRun("list", "sinks"))
}

// ListSources returns all sources the server currently reports.
func (d *Driver) ListSources() []Source {
	mods := parseShortListing(d.tryRun("list", "short", "sources"))
	out := make([]Source, 0, len(mods))
	for _, m := range mods {
		out = append(out, Source{ID: m.ID, Name: m.Name})
	}
	return out
}

// ListSourceDescriptions maps source name -> human description.
func (d *Driver) ListSourceDescriptions() map[string]string {
	return parseDescriptions(d.tryRun("list", "sources"))
}

// ListModules returns all modules the server currently has loaded.
func (d *Driver) ListModules() []Module {
	return parseShortListing(d.tryRun("list", "short", "modules"))
}

// ListSinkInputs returns all playback streams.
func (d *Driver) ListSinkInputs() []SinkInput {
	recs := parseStreamListing(d.tryRun("list", "sink-inputs"), sinkInputFields)
	out := make([]SinkInput, 0, len(recs))
	for _, r := range recs {
		out = append(out, SinkInput{ID: r.id, SinkID: r.attachedID, OwnerModule: r.ownerModule, Props: r.props})
	}
	return out
}

// ListSourceOutputs returns all capture streams.
func (d *Driver) ListSourceOutputs() []SourceOutput {
	recs := parseStreamListing(d.tryRun("list", "source-outputs"), sourceOutputFields)
	out := make([]SourceOutput, 0, len(recs))
	for _, r := range recs {
		out = append(out, SourceOutput{ID: r.id, SourceID: r.attachedID, OwnerModule: r.ownerModule, Props: r.props})
	}
	return out
}

// GetDefaultSink returns the server's current default sink name, or "" if
// unknown.
func (d *Driver) GetDefaultSink() string {
	out := d.tryRun("get-default-sink")
	return strings.TrimSpace(out)
}

// SinkExists reports whether a sink with the given name currently exists.
func (d *Driver) SinkExists(name string) bool {
	for _, s := range d.ListSinks() {
		if s.Name == name {
			return true
		}
	}
	return false
}

// SourceExists reports whether a source with the given name currently
// exists.
func (d *Driver) SourceExists(name string) bool {
	for _, s := range d.ListSources() {
		if s.Name == name {
			return true
		}
	}
	return false
}

// LoadNullSink creates a null sink to act as a virtual bus's backing
// object, marking its monitor hidden/passive and tagging the sink
// Audio/Sink. It does not set the intended-roles property; the system
// bus gets that from ApplySystemRoleTag, which the Reconciler calls for
// it in phase (b) of every pass.
func (d *Driver) LoadNullSink(name, label string) (uint32, error) {
	args := fmt.Sprintf("sink_name=%s sink_properties=device.description=%s,media.class=Audio/Sink",
		name, escapeArg(label))
	out, err := d.run("load-module", nullSinkModuleName, args)
	if err != nil {
		return 0, err
	}
	id, perr := parseModuleID(out)
	if perr != nil {
		return 0, perr
	}
	d.hideMonitor(name)
	return id, nil
}

// hideMonitor marks a newly created null sink's monitor source as
// hidden/passive so it never shows up as a pickable device in user-facing
// device pickers.
func (d *Driver) hideMonitor(sinkName string) {
	monitor := sinkName + ".monitor"
	d.tryRun("set-source-properties", monitor, "node.hidden=true", "node.passive=true")
}

// hideLoopbackNode marks a loopback's internal node (named loopback-<id>
// by the server) hidden/passive on both its sink-input and source-output
// sides.
func (d *Driver) hideLoopbackNode(id uint32) {
	node := fmt.Sprintf("loopback-%d", id)
	d.tryRun("set-sink-properties", node, "node.hidden=true", "node.passive=true")
	d.tryRun("set-source-properties", node, "node.hidden=true", "node.passive=true")
}

// ApplySystemRoleTag re-applies the intended-roles property to the system
// bus's sink; idempotent, called unconditionally in phase (b).
func (d *Driver) ApplySystemRoleTag(sinkName string) {
	d.tryRun("set-sink-properties", sinkName, `device.intended_roles="event notification"`)
}

// ApplySinkLabel reapplies a bus's device.description, correcting drift
// when some other tool (or the server itself, on reconnect) has reset a
// null sink's label back to a generic default.
func (d *Driver) ApplySinkLabel(sinkName, label string) {
	d.tryRun("set-sink-properties", sinkName, "device.description="+escapeArg(label))
}

// LoadLoopback creates a loopback module copying audio from source to
// sink, requesting sink_dont_move so user tools do not steer it
// elsewhere, hides its internal node, and returns its module id.
func (d *Driver) LoadLoopback(source, sink string, latencyMs int) (uint32, error) {
	args := fmt.Sprintf("source=%s sink=%s latency_msec=%d sink_dont_move=true", source, sink, latencyMs)
	out, err := d.run("load-module", loopbackModuleName, args)
	if err != nil {
		return 0, err
	}
	id, perr := parseModuleID(out)
	if perr != nil {
		return 0, perr
	}
	d.hideLoopbackNode(id)
	return id, nil
}

// UnloadModule unloads a module by id. Unloads of unknown module ids are
// silently accepted.
func (d *Driver) UnloadModule(id uint32) error {
	_, err := d.run("unload-module", strconv.FormatUint(uint64(id), 10))
	if err != nil {
		tracelog.Fine("sound: unload-module %d: %v (ignored)", id, err)
	}
	return nil
}

// MoveSinkInput moves a sink-input onto a named sink.
func (d *Driver) MoveSinkInput(id uint32, sinkName string) error {
	_, err := d.run("move-sink-input", strconv.FormatUint(uint64(id), 10), sinkName)
	return err
}

// MoveSourceOutput moves a source-output onto a named source.
func (d *Driver) MoveSourceOutput(id uint32, sourceName string) error {
	_, err := d.run("move-source-output", strconv.FormatUint(uint64(id), 10), sourceName)
	return err
}

// SetSinkMute mutes or unmutes a sink.
func (d *Driver) SetSinkMute(name string, mute bool) error {
	_, err := d.run("set-sink-mute", name, muteArg(mute))
	return err
}

// SetSourceMute mutes or unmutes a source.
func (d *Driver) SetSourceMute(name string, mute bool) error {
	_, err := d.run("set-source-mute", name, muteArg(mute))
	return err
}

// SetSinkInputMute mutes or unmutes an individual sink-input.
func (d *Driver) SetSinkInputMute(id uint32, mute bool) error {
	_, err := d.run("set-sink-input-mute", strconv.FormatUint(uint64(id), 10), muteArg(mute))
	return err
}

// SetSinkVolume sets a sink's volume to the given pactl-style spec (e.g.
// "65536" or "100%").
func (d *Driver) SetSinkVolume(name, spec string) error {
	_, err := d.run("set-sink-volume", name, spec)
	return err
}

// GetSinkMute reports a sink's current mute state.
func (d *Driver) GetSinkMute(name string) bool {
	out := d.tryRun("list", "sinks")
	return sinkMuteFromListing(out, name)
}

// GetSinkVolume reports a sink's current volume as the first percentage
// the server lists for it (e.g. "60%"), or "" if unknown.
func (d *Driver) GetSinkVolume(name string) string {
	out := d.tryRun("list", "sinks")
	return sinkVolumeFromListing(out, name)
}

// EnsureModuleLoaded loads a module with the given name and arguments iff
// no module with that name is already loaded.
func (d *Driver) EnsureModuleLoaded(name string, args ...string) error {
	for _, m := range d.ListModules() {
		if m.Name == name {
			return nil
		}
	}
	argv := append([]string{"load-module", name}, args...)
	_, err := d.run(argv...)
	return err
}

// LoopbackExists reports whether a loopback module already exists from
// source to sink, by scanning modules whose name is module-loopback and
// whose Args contains both "source=<source>" and "sink=<sink>".
func (d *Driver) LoopbackExists(source, sink string) bool {
	want1, want2 := "source="+source, "sink="+sink
	for _, m := range d.ListModules() {
		if m.Name == loopbackModuleName && strings.Contains(m.Args, want1) && strings.Contains(m.Args, want2) {
			return true
		}
	}
	return false
}

// CleanupWrongLoopbacksForSource unloads every loopback module whose args
// contain source=<source> but not sink=<wantedSink>. This is id-agnostic:
// it is safe because only modules matching both the source and the wrong
// sink substrings are ever unloaded.
func (d *Driver) CleanupWrongLoopbacksForSource(source, wantedSink string) {
	want1, want2 := "source="+source, "sink="+wantedSink
	for _, m := range d.ListModules() {
		if m.Name != loopbackModuleName || !strings.Contains(m.Args, want1) {
			continue
		}
		if strings.Contains(m.Args, want2) {
			continue
		}
		d.UnloadModule(m.ID)
	}
}

// SinkInputsForOwnerModule lists sink-input ids owned by the given module.
func (d *Driver) SinkInputsForOwnerModule(moduleID uint32) []uint32 {
	var out []uint32
	for _, si := range d.ListSinkInputs() {
		if si.OwnerModule >= 0 && uint32(si.OwnerModule) == moduleID {
			out = append(out, si.ID)
		}
	}
	return out
}

// TryInfo probes server reachability, returning true iff `info` produced
// non-empty output. Used by the event loop's startup wait.
func (d *Driver) TryInfo() bool {
	return strings.TrimSpace(d.tryRun("info")) != ""
}

func muteArg(mute bool) string {
	if mute {
		return "1"
	}
	return "0"
}

func escapeArg(s string) string {
	// pactl property values with spaces must be quoted; a literal quote in
	// the label would otherwise terminate the value early.
	s = strings.ReplaceAll(s, `"`, `\"`)
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

func parseModuleID(out string) (uint32, error) {
	line := strings.TrimSpace(out)
	if line == "" {
		return 0, &ParseError{Context: "load-module", Line: out}
	}
	// pactl prints only the new module's id, possibly with trailing text.
	fields := strings.Fields(line)
	n, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, &ParseError{Context: "load-module", Line: out}
	}
	return uint32(n), nil
}

func sinkMuteFromListing(listing, name string) bool {
	inTarget := false
	for _, line := range strings.Split(listing, "\n") {
		if rest, ok := matchPrefix(line, []string{"Name:"}); ok {
			inTarget = rest == name
			continue
		}
		if !inTarget {
			continue
		}
		if rest, ok := matchPrefix(line, []string{"Mute:", "Stumm:"}); ok {
			return strings.EqualFold(strings.TrimSpace(rest), "yes") ||
				strings.EqualFold(strings.TrimSpace(rest), "ja")
		}
	}
	return false
}

func sinkVolumeFromListing(listing, name string) string {
	inTarget := false
	for _, line := range strings.Split(listing, "\n") {
		if rest, ok := matchPrefix(line, []string{"Name:"}); ok {
			inTarget = rest == name
			continue
		}
		if !inTarget {
			continue
		}
		if rest, ok := matchPrefix(line, []string{"Volume:", "Lautstärke:"}); ok {
			for _, f := range strings.Fields(rest) {
				if strings.HasSuffix(f, "%") {
					return f
				}
			}
			return ""
		}
	}
	return ""
}
