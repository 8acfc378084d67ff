package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultPort              = 8765
	DefaultMessagesPerSecond = 20.0
	DefaultBurst             = 40
	DefaultMaxMessageBytes   = 1 << 20 // 1 MiB
)

// Config holds the configuration parsed from the `server:` section of
// config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// Host is the interface to bind; empty means all interfaces.
	Host string `yaml:"host"`

	// Port is the HTTP/WebSocket listen port (default 8765).
	Port int `yaml:"port"`

	// Limits bounds what a single session may send.
	Limits LimitsConfig `yaml:"limits"`
}

// LimitsConfig bounds inbound traffic per session.
type LimitsConfig struct {
	// MessagesPerSecond is the sustained edit rate allowed per session
	// (default 20). Zero disables rate limiting.
	MessagesPerSecond float64 `yaml:"messages_per_second"`

	// Burst is the token-bucket depth (default 40).
	Burst int `yaml:"burst"`

	// MaxMessageBytes caps a single inbound frame (default 1 MiB). A frame
	// over the cap closes the connection at the transport level.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation. A missing file is an error; run with the
// defaults by pointing at an empty file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: DefaultPort,
			Limits: LimitsConfig{
				MessagesPerSecond: DefaultMessagesPerSecond,
				Burst:             DefaultBurst,
				MaxMessageBytes:   DefaultMaxMessageBytes,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port)
	}
	if cfg.Server.Limits.MessagesPerSecond < 0 {
		return fmt.Errorf("server.limits.messages_per_second must not be negative")
	}
	if cfg.Server.Limits.Burst < 0 {
		return fmt.Errorf("server.limits.burst must not be negative")
	}
	if cfg.Server.Limits.MessagesPerSecond > 0 && cfg.Server.Limits.Burst == 0 {
		return fmt.Errorf("server.limits.burst must be positive when rate limiting is enabled")
	}
	if cfg.Server.Limits.MaxMessageBytes <= 0 {
		return fmt.Errorf("server.limits.max_message_bytes must be positive")
	}
	return nil
}
