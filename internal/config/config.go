// Package config loads cuemix settings from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/cuemix/internal/player"
	"github.com/Resonate-Protocol/cuemix/pkg/audio/output"
	"github.com/Resonate-Protocol/cuemix/pkg/mixer"
)

// Default configuration values.
const (
	DefaultBackend     = output.BackendOto
	DefaultSampleRate  = 44100
	DefaultChannels    = 8
	DefaultQueueDepth  = 8
	DefaultBufferMs    = 20
	DefaultStreamUnit  = 2048
	DefaultLookaheadMs = 50
	DefaultTickMs      = 10
	DefaultLogLevel    = "info"
	DefaultMetricsAddr = "127.0.0.1:9464"
)

// ValidBackends lists the output backends New accepts.
var ValidBackends = []string{output.BackendOto, output.BackendMalgo, output.BackendPortAudio, output.BackendHeadless}

// ValidLogLevels lists accepted log.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Config is the root configuration.
type Config struct {
	Audio     AudioConfig     `toml:"audio" yaml:"audio"`
	Scheduler SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	Log       LogConfig       `toml:"log" yaml:"log"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
}

// AudioConfig holds engine and device settings.
type AudioConfig struct {
	Backend    string `toml:"backend" yaml:"backend"`
	SampleRate int    `toml:"sample_rate" yaml:"sample_rate"`
	Channels   int    `toml:"channels" yaml:"channels"`
	QueueDepth int    `toml:"queue_depth" yaml:"queue_depth"`
	BufferMs   int    `toml:"buffer_ms" yaml:"buffer_ms"`     // Device buffer, also the reported output latency
	StreamUnit int    `toml:"stream_unit" yaml:"stream_unit"` // Frames per streaming buffer
}

// SchedulerConfig holds cue scheduler settings.
type SchedulerConfig struct {
	LookaheadMs int `toml:"lookahead_ms" yaml:"lookahead_ms"`
	TickMs      int `toml:"tick_ms" yaml:"tick_ms"`
	MaxLateMs   int `toml:"max_late_ms" yaml:"max_late_ms"` // 0 = never drop
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"` // Empty = stderr
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" yaml:"addr"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Backend:    DefaultBackend,
			SampleRate: DefaultSampleRate,
			Channels:   DefaultChannels,
			QueueDepth: DefaultQueueDepth,
			BufferMs:   DefaultBufferMs,
			StreamUnit: DefaultStreamUnit,
		},
		Scheduler: SchedulerConfig{
			LookaheadMs: DefaultLookaheadMs,
			TickMs:      DefaultTickMs,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "cuemix", "config.toml")
}

// Load reads the configuration at path on top of the defaults. The format
// follows the extension: .yaml and .yml are YAML, anything else TOML.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no config file, using defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml %q: %w", path, err)
		}
	} else {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode toml %q: %w", path, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path in the format its extension names.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := c.Marshal(isYAML(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal encodes the configuration as YAML or TOML.
func (c *Config) Marshal(asYAML bool) ([]byte, error) {
	if asYAML {
		return yaml.Marshal(c)
	}
	return toml.Marshal(c)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(ValidBackends, cfg.Audio.Backend) {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: %s", cfg.Audio.Backend, strings.Join(ValidBackends, ", ")))
	}
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 192000]", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.channels must be positive, got %d", cfg.Audio.Channels))
	}
	if cfg.Audio.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("audio.queue_depth must be positive, got %d", cfg.Audio.QueueDepth))
	}
	if cfg.Audio.BufferMs < 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_ms must not be negative, got %d", cfg.Audio.BufferMs))
	}
	if cfg.Audio.StreamUnit <= 0 {
		errs = append(errs, fmt.Errorf("audio.stream_unit must be positive, got %d", cfg.Audio.StreamUnit))
	}

	if cfg.Scheduler.LookaheadMs < 0 {
		errs = append(errs, fmt.Errorf("scheduler.lookahead_ms must not be negative, got %d", cfg.Scheduler.LookaheadMs))
	}
	if cfg.Scheduler.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.tick_ms must be positive, got %d", cfg.Scheduler.TickMs))
	}
	if cfg.Scheduler.MaxLateMs < 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_late_ms must not be negative, got %d", cfg.Scheduler.MaxLateMs))
	}

	if !slices.Contains(ValidLogLevels, strings.ToLower(cfg.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: %s", cfg.Log.Level, strings.Join(ValidLogLevels, ", ")))
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// Mixer returns the engine setup parameters.
func (c *Config) Mixer() mixer.Config {
	return mixer.Config{
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		QueueDepth: c.Audio.QueueDepth,
	}
}

// BufferSize returns the device buffer length.
func (c *Config) BufferSize() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

// Player returns the cue scheduler settings.
func (c *Config) Player() player.Config {
	return player.Config{
		Lookahead: time.Duration(c.Scheduler.LookaheadMs) * time.Millisecond,
		Tick:      time.Duration(c.Scheduler.TickMs) * time.Millisecond,
		MaxLate:   time.Duration(c.Scheduler.MaxLateMs) * time.Millisecond,
	}
}

// LogLevel returns the slog level for log.level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
