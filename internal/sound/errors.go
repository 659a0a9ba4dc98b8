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

import "fmt"

// CommandError is raised when a control-tool invocation exits non-zero.
type CommandError struct {
	Argv   []string
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("server command %v failed: %s", e.Argv, e.Stderr)
}

// ParseError is raised for malformed listing output or a missing expected
// field.
type ParseError struct {
	Context string
	Line    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %q", e.Context, e.Line)
}
