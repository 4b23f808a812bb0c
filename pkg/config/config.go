package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen        string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		Hostname      string        `yaml:"hostname" json:"hostname" jsonschema:"required,description=Public hostname this instance is served from"`
		PublicKeyFile string        `yaml:"public_key_file" json:"public_key_file" jsonschema:"description=PEM file with the actor public key exposed in profiles"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:feedbridge.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"default=15m,description=Interval between full polling cycles"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"default=30s,description=HTTP timeout for a single feed fetch"`
		DeliverTimeout time.Duration `yaml:"deliver_timeout" json:"deliver_timeout" jsonschema:"default=30s,description=HTTP timeout for a single inbox delivery"`
		UserAgent      string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=feedbridge/1.0,description=User agent for outgoing requests"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Polling configuration"`

	Sources map[string]Source `yaml:"sources" json:"sources" jsonschema:"description=Known feed sources keyed by hostname"`
}

// Source describes one followable feed origin.
type Source struct {
	URL   string `yaml:"url" json:"url" jsonschema:"required,description=Feed URL for this source"`
	Title string `yaml:"title" json:"title" jsonschema:"description=Display name for the source actor"`
	Icon  string `yaml:"icon" json:"icon" jsonschema:"description=Avatar image URL for the source actor"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Server.Hostname == "" {
		return nil, fmt.Errorf("server.hostname is required")
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:feedbridge.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for polling
	if cfg.Schedule.PollInterval == 0 {
		cfg.Schedule.PollInterval = 15 * time.Minute
	}
	if cfg.Schedule.FetchTimeout == 0 {
		cfg.Schedule.FetchTimeout = 30 * time.Second
	}
	if cfg.Schedule.DeliverTimeout == 0 {
		cfg.Schedule.DeliverTimeout = 30 * time.Second
	}
	if cfg.Schedule.UserAgent == "" {
		cfg.Schedule.UserAgent = "feedbridge/1.0"
	}

	return &cfg, nil
}

// GetServerConfig returns server settings for the HTTP layer.
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// PublicKeyPEM reads the configured actor public key. Missing configuration
// yields an empty string, not an error: profiles are still served, just
// without a key.
func (c *Config) PublicKeyPEM() string {
	if c.Server.PublicKeyFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.Server.PublicKeyFile)
	if err != nil {
		return ""
	}
	return string(data)
}
