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

// vsinkctl is the CLI surface of the core: it runs the Event Loop as a
// daemon, performs a single reconciliation pass for scripting, or reports
// the process's current ownership ledger and a server snapshot.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/PasukiTV/audiorouter/internal/companion"
	"github.com/PasukiTV/audiorouter/internal/config"
	"github.com/PasukiTV/audiorouter/internal/eventloop"
	"github.com/PasukiTV/audiorouter/internal/fastpath"
	"github.com/PasukiTV/audiorouter/internal/reconcile"
	"github.com/PasukiTV/audiorouter/internal/sound"
	"github.com/PasukiTV/audiorouter/internal/state"
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

const binaryName = "pactl"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	dirs := resolveDirs()

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(dirs))
	case "reconcile-once":
		os.Exit(runReconcileOnce(dirs))
	case "status":
		os.Exit(runStatus(dirs))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vsinkctl <daemon|reconcile-once|status>")
}

type dirs struct {
	config string
	state  string
	cache  string
}

func resolveDirs() dirs {
	fs := flag.NewFlagSet("vsinkctl", flag.ExitOnError)
	configDir := fs.String("config-dir", defaultDir("XDG_CONFIG_HOME", ".config"), "configuration directory")
	stateDir := fs.String("state-dir", defaultDir("XDG_STATE_HOME", ".local/state"), "runtime state directory")
	cacheDir := fs.String("cache-dir", defaultDir("XDG_CACHE_HOME", ".cache"), "cache directory (lock file, trace log)")
	fs.Parse(os.Args[2:])
	return dirs{config: *configDir, state: *stateDir, cache: *cacheDir}
}

func defaultDir(xdgVar, fallbackSuffix string) string {
	if v := os.Getenv(xdgVar); v != "" {
		return filepath.Join(v, "vsinkd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vsinkd")
	}
	return filepath.Join(home, fallbackSuffix, "vsinkd")
}

func runDaemon(d dirs) int {
	tracelog.Init(tracelog.Enabled(d.cache), d.cache)

	drv := sound.New(binaryName)
	cs := config.NewOS(d.config)
	ss := state.NewOS(d.state)
	r := reconcile.New(drv)
	fp := fastpath.New(drv)

	loop := eventloop.New(drv, r, fp, cs, ss)
	loop.LockPath = filepath.Join(d.cache, "vsinkd.lock")
	loop.WatchPaths = []string{
		filepath.Join(d.config, "vsinks.json"),
		filepath.Join(d.config, "routing-rules.json"),
		filepath.Join(d.config, "input-routes.json"),
		filepath.Join(d.config, "config.json"),
	}

	if cfg := cs.Load(); cfg.Companion.Enabled {
		loop.Companion = companion.New(cfg.Companion)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		loop.Stop()
	}()

	if err := loop.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "vsinkctl: %v\n", err)
		return 1
	}
	return 0
}

func runReconcileOnce(d dirs) int {
	tracelog.Init(tracelog.Enabled(d.cache), d.cache)

	drv := sound.New(binaryName)
	cs := config.NewOS(d.config)
	ss := state.NewOS(d.state)
	r := reconcile.New(drv)

	cfg := cs.Load()
	st := ss.Load()
	st = r.Run(cfg, st)
	if err := ss.Save(st); err != nil {
		fmt.Fprintf(os.Stderr, "vsinkctl: save state: %v\n", err)
		return 1
	}
	return 0
}

type statusOutput struct {
	State      interface{}       `json:"state"`
	Sinks      []sound.Sink      `json:"sinks"`
	Sources    []sound.Source    `json:"sources"`
	SinkInputs []sound.SinkInput `json:"sink_inputs"`
}

func runStatus(d dirs) int {
	ss := state.NewOS(d.state)
	drv := sound.New(binaryName)
	st := ss.Load()

	out := statusOutput{
		State:      st,
		Sinks:      drv.ListSinks(),
		Sources:    drv.ListSources(),
		SinkInputs: drv.ListSinkInputs(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "vsinkctl: %v\n", err)
		return 1
	}
	return 0
}
