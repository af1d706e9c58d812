// Package config handles TOML configuration loading with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for filtersvc.
type Config struct {
	Server ServerConfig `toml:"server"`
	Kafka  KafkaConfig  `toml:"kafka"`
	DB     DBConfig     `toml:"db"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Listen          string   `toml:"listen"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	// Tokens maps AuthToken header values to usernames. When empty,
	// authentication is disabled and requests run as "anonymous".
	Tokens map[string]string `toml:"tokens"`
}

// KafkaConfig controls the event consumer.
type KafkaConfig struct {
	Brokers     []string `toml:"brokers"`
	Topic       string   `toml:"topic"`
	Group       string   `toml:"group"`
	ClientID    string   `toml:"client_id"`
	PollTimeout Duration `toml:"poll_timeout"`
}

// DBConfig controls SQLite storage.
type DBConfig struct {
	Path string `toml:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps time.Duration for TOML string parsing (e.g. "5s", "1m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			Topic:       "notifications.decorated",
			Group:       "filtersvc",
			ClientID:    "filtersvc",
			PollTimeout: Duration{5 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "filtersvc", "config.toml")
}

// Load reads configuration from the given path, falling back to defaults
// for any unset fields. If the file does not exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// DBPath returns the configured database path, or a default under the
// user's data directory when unset.
func (c *Config) DBPath() string {
	if c.DB.Path != "" {
		return c.DB.Path
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "filtersvc.db"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "filtersvc", "filtersvc.db")
}
