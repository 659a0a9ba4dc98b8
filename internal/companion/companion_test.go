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

package companion

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PasukiTV/audiorouter/internal/model"
)

func TestPushMuteDisabledIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(model.CompanionConfig{Enabled: false, URL: srv.URL, MuteSuffix: "/mute"})
	c.PushMute("vsink.browser", true)

	assert.False(t, called)
}

func TestPushMutePostsJSON(t *testing.T) {
	received := make(chan muteUpdate, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body muteUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "/mute", r.URL.Path)
		received <- body
	}))
	defer srv.Close()

	c := New(model.CompanionConfig{Enabled: true, URL: srv.URL, MuteSuffix: "/mute", TimeoutSec: 2})
	c.PushMute("vsink.browser", true)

	select {
	case body := <-received:
		assert.Equal(t, "vsink.browser", body.Sink)
		assert.True(t, body.Mute)
	case <-time.After(time.Second):
		t.Fatal("companion push never arrived")
	}
}

func TestPushVolumePostsJSON(t *testing.T) {
	received := make(chan volumeUpdate, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body volumeUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "/volume", r.URL.Path)
		received <- body
	}))
	defer srv.Close()

	c := New(model.CompanionConfig{Enabled: true, URL: srv.URL, VolumeSuffix: "/volume"})
	c.PushVolume("vsink.browser", "65536")

	select {
	case body := <-received:
		assert.Equal(t, "65536", body.Volume)
	case <-time.After(time.Second):
		t.Fatal("companion push never arrived")
	}
}

func TestPushSurvivesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(model.CompanionConfig{Enabled: true, URL: srv.URL, MuteSuffix: "/mute"})
	assert.NotPanics(t, func() { c.PushMute("vsink.browser", false) })
}
