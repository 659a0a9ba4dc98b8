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
	"bufio"
	"strconv"
	"strings"
)

// localeFields is a small table of synonyms per field, so header
// recognition doesn't need a separate parser per locale, covering the
// locales the verbose `pactl list sink-inputs`/`source-outputs` listing
// has been observed in.
type localeFields struct {
	recordHeader []string // e.g. "Sink Input #", "Ziel-Eingabe #"
	attachedTo   []string // "Sink:" / "Ziel:" or "Source:" / "Quelle:"
	ownerModule  []string // "Owner Module:" / "Besitzer-Modul:"
	properties   []string // "Properties:" / "Eigenschaften:"
}

var sinkInputFields = localeFields{
	recordHeader: []string{"Sink Input #", "Ziel-Eingabe #"},
	attachedTo:   []string{"Sink:", "Ziel:"},
	ownerModule:  []string{"Owner Module:", "Besitzer-Modul:"},
	properties:   []string{"Properties:", "Eigenschaften:"},
}

var sourceOutputFields = localeFields{
	recordHeader: []string{"Source Output #", "Quellausgabe #"},
	attachedTo:   []string{"Source:", "Quelle:"},
	ownerModule:  []string{"Owner Module:", "Besitzer-Modul:"},
	properties:   []string{"Properties:", "Eigenschaften:"},
}

// notApplicable lists the locale spellings of "not applicable" used for an
// absent Owner Module; an owner module value equivalent to one of these is
// dropped.
var notApplicable = map[string]bool{
	"n/a":   true,
	"k.a.":  true,
	"keine": true,
}

func matchPrefix(line string, prefixes []string) (rest string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, p)), true
		}
	}
	return "", false
}

func isHeaderLine(line string, fields localeFields) bool {
	trimmed := strings.TrimSpace(line)
	for _, h := range fields.recordHeader {
		if strings.HasPrefix(trimmed, h) {
			return true
		}
	}
	return false
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// parseStreamListing parses the verbose `pactl list sink-inputs` or
// `pactl list source-outputs` output into a generic record per stream:
// its id, the id of the sink/source it's attached to, its owner module
// (-1 if absent), and its property bag.
func parseStreamListing(text string, fields localeFields) []streamRecord {
	var records []streamRecord
	var cur *streamRecord
	inProps := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if isHeaderLine(line, fields) {
			if cur != nil {
				records = append(records, *cur)
			}
			id := parseRecordID(line, fields)
			cur = &streamRecord{id: id, attachedID: 0, ownerModule: -1, props: Props{}}
			inProps = false
			continue
		}
		if cur == nil {
			continue
		}
		if _, ok := matchPrefix(line, fields.properties); ok {
			inProps = true
			continue
		}
		if rest, ok := matchPrefix(line, fields.attachedTo); ok {
			cur.attachedID = parseLeadingID(rest)
			inProps = false
			continue
		}
		if rest, ok := matchPrefix(line, fields.ownerModule); ok {
			if !notApplicable[strings.ToLower(strings.TrimSpace(rest))] {
				if n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64); err == nil {
					cur.ownerModule = n
				}
			}
			inProps = false
			continue
		}
		// Inside the properties block, key = value lines are collected and
		// a blank line closes the block; other lines are ignored.
		if inProps {
			if k, v, ok := parseProp(line); ok {
				cur.props[k] = v
			} else if strings.TrimSpace(line) == "" {
				inProps = false
			}
		}
	}
	if cur != nil {
		records = append(records, *cur)
	}
	return records
}

type streamRecord struct {
	id          uint32
	attachedID  uint32
	ownerModule int64
	props       Props
}

func parseRecordID(line string, fields localeFields) uint32 {
	trimmed := strings.TrimSpace(line)
	for _, h := range fields.recordHeader {
		if strings.HasPrefix(trimmed, h) {
			n, _ := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(trimmed, h)), 10, 32)
			return uint32(n)
		}
	}
	return 0
}

func parseLeadingID(rest string) uint32 {
	// "2 <alsa_output...>" -> 2
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.ParseUint(fields[0], 10, 32)
	return uint32(n)
}

func parseProp(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	idx := strings.Index(trimmed, "=")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(trimmed[:idx])
	value = unquote(trimmed[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// parseShortListing parses `pactl list short sinks|sources|modules` output:
// tab-separated columns, first column numeric id, second column name, the
// rest ignored for sinks/sources and kept verbatim as Args for modules.
func parseShortListing(text string) []Module {
	var out []Module
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.SplitN(line, "\t", 3)
		if len(cols) < 2 {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(cols[0]), 10, 32)
		if err != nil {
			continue
		}
		args := ""
		if len(cols) == 3 {
			args = cols[2]
		}
		out = append(out, Module{ID: uint32(id), Name: strings.TrimSpace(cols[1]), Args: args})
	}
	return out
}

// parseDescriptions parses the verbose `pactl list sinks|sources` output
// into a name -> description map: each "Description:" (or
// "Beschreibung:") field, keyed by the preceding "Name:" field.
func parseDescriptions(text string) map[string]string {
	out := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	var lastName string
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := matchPrefix(line, []string{"Name:"}); ok {
			lastName = rest
			continue
		}
		if rest, ok := matchPrefix(line, []string{"Description:", "Beschreibung:"}); ok && lastName != "" {
			out[lastName] = rest
		}
	}
	return out
}
