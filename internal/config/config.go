// Package config loads btserial application configuration from YAML, with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Adapter    AdapterConfig    `mapstructure:"adapter"`
	Connection ConnectionConfig `mapstructure:"connection"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AdapterConfig configures the Linux BlueZ adapter.
type AdapterConfig struct {
	HCI      string `mapstructure:"hci"`
	BaudRate int    `mapstructure:"baud_rate"`
	// Bindings maps peer address to a TTY bound with rfcomm(1).
	Bindings map[string]string `mapstructure:"bindings"`
	// Services maps a service UUID to its RFCOMM channel.
	Services         map[string]int `mapstructure:"services"`
	DisableDBus      bool           `mapstructure:"disable_dbus"`
	RequireKnownPeer bool           `mapstructure:"require_known_peer"`
}

// ConnectionConfig configures the connection controller.
type ConnectionConfig struct {
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	ReadBufferSize int           `mapstructure:"read_buffer_size"`
	LegacyChannel  int           `mapstructure:"legacy_channel"`
	// ServiceID is used when the command line does not name one.
	ServiceID string `mapstructure:"service_id"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/btserial.log",
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Adapter: AdapterConfig{
			HCI:      "hci0",
			BaudRate: 115200,
		},
		Connection: ConnectionConfig{
			GracePeriod:    time.Second,
			ReadBufferSize: 1024,
			LegacyChannel:  1,
		},
	}
}

// Load reads configuration from path (if non-empty), otherwise it searches
// common locations. Environment variables use the prefix BTSERIAL and
// `.`/`-` are replaced with `_`, e.g. BTSERIAL_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BTSERIAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("adapter.hci", cfg.Adapter.HCI)
	v.SetDefault("adapter.baud_rate", cfg.Adapter.BaudRate)
	v.SetDefault("adapter.disable_dbus", cfg.Adapter.DisableDBus)
	v.SetDefault("adapter.require_known_peer", cfg.Adapter.RequireKnownPeer)
	v.SetDefault("connection.grace_period", cfg.Connection.GracePeriod)
	v.SetDefault("connection.read_buffer_size", cfg.Connection.ReadBufferSize)
	v.SetDefault("connection.legacy_channel", cfg.Connection.LegacyChannel)
	v.SetDefault("connection.service_id", cfg.Connection.ServiceID)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)

	if path == "" {
		if envPath := os.Getenv("BTSERIAL_CONFIG"); envPath != "" {
			path = envPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("btserial")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".btserial"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if c.Connection.GracePeriod < 0 {
		return fmt.Errorf("invalid connection.grace_period: %s", c.Connection.GracePeriod)
	}
	if ch := c.Connection.LegacyChannel; ch < 1 || ch > 30 {
		return fmt.Errorf("invalid connection.legacy_channel: %d", ch)
	}
	if c.Connection.ServiceID != "" {
		if _, err := uuid.Parse(c.Connection.ServiceID); err != nil {
			return fmt.Errorf("invalid connection.service_id: %w", err)
		}
	}
	for id, ch := range c.Adapter.Services {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid adapter.services key %q: %w", id, err)
		}
		if ch < 1 || ch > 30 {
			return fmt.Errorf("invalid adapter.services[%s] channel: %d", id, ch)
		}
	}
	return nil
}

// ServiceChannels returns Adapter.Services keyed by parsed UUID. Call it on
// a validated Config.
func (c *Config) ServiceChannels() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(c.Adapter.Services))
	for id, ch := range c.Adapter.Services {
		out[uuid.MustParse(id)] = ch
	}
	return out
}

// DefaultServiceID returns Connection.ServiceID, or uuid.Nil when unset.
func (c *Config) DefaultServiceID() uuid.UUID {
	if c.Connection.ServiceID == "" {
		return uuid.Nil
	}
	return uuid.MustParse(c.Connection.ServiceID)
}
