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

// Package companion implements the outbound-only push client to an
// external control surface: whenever a bus sink's mute or volume changes,
// POST the new value to the configured URL. It is a passive observer of
// reconciliation, never consulted by it, and a failed or slow push never
// blocks or fails a reconcile.
package companion

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/PasukiTV/audiorouter/internal/model"
	"github.com/PasukiTV/audiorouter/internal/tracelog"
)

// Client pushes per-sink state changes to an external control surface.
type Client struct {
	cfg    model.CompanionConfig
	client *http.Client
}

// New returns a Client for cfg. If cfg.Enabled is false, every push is a
// no-op; callers do not need to branch on Enabled themselves.
func New(cfg model.CompanionConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// muteUpdate and volumeUpdate are the JSON bodies posted for each kind of
// change, named by the bus sink they describe.
type muteUpdate struct {
	Sink string `json:"sink"`
	Mute bool   `json:"mute"`
}

type volumeUpdate struct {
	Sink   string `json:"sink"`
	Volume string `json:"volume"`
}

// PushMute reports a bus sink's mute state. Errors are logged, not
// returned: a Companion outage must never affect reconciliation.
func (c *Client) PushMute(sink string, mute bool) {
	if !c.cfg.Enabled {
		return
	}
	c.post(c.cfg.MuteSuffix, muteUpdate{Sink: sink, Mute: mute})
}

// PushVolume reports a bus sink's volume.
func (c *Client) PushVolume(sink, volume string) {
	if !c.cfg.Enabled {
		return
	}
	c.post(c.cfg.VolumeSuffix, volumeUpdate{Sink: sink, Volume: volume})
}

func (c *Client) post(suffix string, body interface{}) {
	if c.cfg.URL == "" {
		return
	}
	data, err := json.Marshal(body)
	if err != nil {
		tracelog.Fine("companion: marshal: %v", err)
		return
	}
	url := c.cfg.URL + suffix
	resp, err := c.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		tracelog.Fine("companion: post %s: %v", url, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		tracelog.Fine("companion: post %s: %s", url, resp.Status)
	}
}
