package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel     string        `json:"log_level" mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	Hotkey       string        `json:"hotkey" mapstructure:"hotkey" validate:"required"`
	HotkeyDarwin string        `json:"hotkey_darwin" mapstructure:"hotkey_darwin"`
	Headless     bool          `json:"headless" mapstructure:"headless"`
	Audio        AudioConfig   `json:"audio" mapstructure:"audio"`
	Monitor      MonitorConfig `json:"monitor" mapstructure:"monitor"`

	path string
}

type AudioConfig struct {
	Backend     string `json:"backend" mapstructure:"backend" validate:"oneof=portaudio malgo"`
	DeviceIndex int    `json:"device_index" mapstructure:"device_index" validate:"gte=-1"` // -1 = system default
	SampleRate  int    `json:"sample_rate" mapstructure:"sample_rate" validate:"gt=0"`
	ChunkMs     int    `json:"chunk_ms" mapstructure:"chunk_ms" validate:"gt=0"`
	RetentionMs int    `json:"retention_ms" mapstructure:"retention_ms" validate:"gt=0"`
}

type MonitorConfig struct {
	PollMs   int `json:"poll_ms" mapstructure:"poll_ms" validate:"gt=0"`
	WindowMs int `json:"window_ms" mapstructure:"window_ms" validate:"gt=0"`
}

// Chunk is the requested device delivery period.
func (a AudioConfig) Chunk() time.Duration { return time.Duration(a.ChunkMs) * time.Millisecond }

// Retention is the length of the capture window.
func (a AudioConfig) Retention() time.Duration {
	return time.Duration(a.RetentionMs) * time.Millisecond
}

// PollInterval is how often the monitor drains the window.
func (m MonitorConfig) PollInterval() time.Duration {
	return time.Duration(m.PollMs) * time.Millisecond
}

// Window is the span of audio the monitor asks for on each poll.
func (m MonitorConfig) Window() time.Duration { return time.Duration(m.WindowMs) * time.Millisecond }

// SetDefaults registers every key with its default so env overrides apply to
// all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("hotkey", "Alt+Space")
	v.SetDefault("hotkey_darwin", "Ctrl+Space")
	v.SetDefault("headless", false)

	v.SetDefault("audio.backend", "portaudio")
	v.SetDefault("audio.device_index", -1)
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.chunk_ms", 32)
	v.SetDefault("audio.retention_ms", 10000)

	v.SetDefault("monitor.poll_ms", 100)
	v.SetDefault("monitor.window_ms", 100)
}

// New returns a viper instance with defaults, STREAMCAP_* environment
// overrides and the JSON file at path (the platform config path when empty)
// loaded if it exists.
func New(path string) (*viper.Viper, error) {
	if path == "" {
		path = configPath()
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("STREAMCAP")
	// STREAMCAP_AUDIO_SAMPLE_RATE overrides audio.sample_rate
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return v, nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{path: v.ConfigFileUsed()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	v, err := New("")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = configPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the file this config was loaded from and is saved to.
func (c *Config) Path() string {
	if c.path == "" {
		return configPath()
	}
	return c.path
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "streamcap", "config.json")
}
