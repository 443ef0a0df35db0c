// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediamux/pkg/compression"
	"mediamux/pkg/container"
	"mediamux/pkg/container/memtrack"
	"mediamux/pkg/engine"
	"mediamux/pkg/log"

	"github.com/stretchr/testify/require"
)

type paramCodec struct {
	params map[string]string
}

func (c *paramCodec) Name() string { return "param" }

func (c *paramCodec) SetParameter(key, value string) error {
	c.params[key] = value
	return nil
}

func (c *paramCodec) CompressionID() compression.ID { return compression.AAC }

func newTestApp(t *testing.T) *App {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	configYAML := []byte(`
log:
  level: debug
  stdout: false
container: m4a
codecs:
  aac:
    bitrate: "96000"
`)
	require.NoError(t, os.WriteFile(configPath, configYAML, 0o600))

	a, err := New(configPath)
	require.NoError(t, err)
	return a
}

func TestApp(t *testing.T) {
	t.Run("trackOptions", func(t *testing.T) {
		a := newTestApp(t)
		require.Equal(t, container.TypeM4A, a.Config.ContainerType)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- a.Run(ctx) }()

		c := &paramCodec{params: make(map[string]string)}
		sink := memtrack.NewAudio(memtrack.AudioConfig{VBR: true})
		d := compression.Descriptor{ID: compression.AAC, SampleRate: 48000}

		opts := append(a.TrackOptions(compression.AAC, "audio 0"), engine.WithCodec(c))
		track, err := engine.OpenAudioWriter(sink, d, opts...)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"bitrate": "96000"}, c.params)
		require.NoError(t, track.Close())

		// Messages are only saved after the saver has subscribed.
		require.Eventually(t, func() bool {
			go a.Logger.Debug().Src("test").Track("audio 0").Msg("probe")
			logs, err := a.LogDB.Query(log.Query{Tracks: []string{"audio 0"}})
			return err == nil && len(logs) > 0
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
	})
	t.Run("beforeRun", func(t *testing.T) {
		a := newTestApp(t)
		sink := memtrack.NewAudio(memtrack.AudioConfig{BlockAlign: 2})

		// Debug events are dropped until Run starts the logger.
		track, err := engine.OpenAudioWriter(sink, compression.Descriptor{},
			a.TrackOptions(compression.None, "audio 1")...)
		require.NoError(t, err)
		require.NoError(t, track.Close())
	})
	t.Run("missingConfig", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "config.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("dbError", func(t *testing.T) {
		a := newTestApp(t)
		a.Config.Log.DBPath = "/dev/null"
		a.LogDB = log.NewDB("/dev/null", a.wg)
		require.Error(t, a.Run(context.Background()))
	})
}
