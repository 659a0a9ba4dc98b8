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

import "os"

// sandboxEnvVar and sandboxMarkerFile are the two detection signals: a
// sandbox environment variable and a well-known sandbox marker file.
const (
	sandboxEnvVar     = "FLATPAK_ID"
	sandboxMarkerFile = "/.flatpak-info"
)

// hostExecWrapper prefixes every command with this when sandboxed, so
// control-tool invocations escape the sandbox to reach the host's sound
// server.
var hostExecWrapper = []string{"flatpak-spawn", "--host"}

// detectSandbox reports whether the process is running inside a sandboxed
// environment, by presence of a sandbox environment variable or of a
// well-known sandbox marker file.
func detectSandbox() bool {
	if os.Getenv(sandboxEnvVar) != "" {
		return true
	}
	_, err := os.Stat(sandboxMarkerFile)
	return err == nil
}

// wrapArgv prefixes argv with the host-execution wrapper when sandboxed.
func wrapArgv(sandboxed bool, argv []string) []string {
	if !sandboxed {
		return argv
	}
	full := make([]string, 0, len(hostExecWrapper)+len(argv))
	full = append(full, hostExecWrapper...)
	full = append(full, argv...)
	return full
}
