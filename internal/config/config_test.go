package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 8, cfg.Audio.Channels)
	assert.Equal(t, 8, cfg.Audio.QueueDepth)
	assert.Equal(t, 2048, cfg.Audio.StreamUnit)
	assert.Equal(t, "oto", cfg.Audio.Backend)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "cuemix.toml", `
[audio]
backend = "headless"
sample_rate = 48000
channels = 4

[scheduler]
lookahead_ms = 80

[log]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "headless", cfg.Audio.Backend)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 4, cfg.Audio.Channels)
	assert.Equal(t, DefaultQueueDepth, cfg.Audio.QueueDepth, "unset keys keep defaults")
	assert.Equal(t, 80*time.Millisecond, cfg.Player().Lookahead)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "cuemix.yaml", `
audio:
  backend: malgo
  queue_depth: 16
  buffer_ms: 10
metrics:
  enabled: true
  addr: ":9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "malgo", cfg.Audio.Backend)
	assert.Equal(t, 16, cfg.Mixer().QueueDepth)
	assert.Equal(t, DefaultSampleRate, cfg.Mixer().SampleRate)
	assert.Equal(t, 10*time.Millisecond, cfg.BufferSize())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9000", cfg.Metrics.Addr)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "c.toml", "[audio]\nvolume = 3\n"},
		{"yaml", "c.yml", "audio:\n  volume: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audio.Backend = "jack"
	cfg.Audio.Channels = 0
	cfg.Scheduler.TickMs = 0
	cfg.Log.Level = "loud"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ""

	err := Validate(cfg)
	require.Error(t, err)
	for _, want := range []string{"audio.backend", "audio.channels", "scheduler.tick_ms", "log.level", "metrics.addr"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	path := writeFile(t, "bad.toml", "[audio]\nsample_rate = 100\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "audio.sample_rate")
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out/config.toml", "out/config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.Audio.Channels = 3
			cfg.Log.File = "/tmp/cuemix.log"

			require.NoError(t, cfg.Save(path))
			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestConfigPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, "/xdg/cuemix/config.toml", ConfigPath())
}
