// Package config loads and validates the server configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete chess-mcp-server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Agents     AgentsConfig     `yaml:"agents"`
	RateLimits RateLimitsConfig `yaml:"rate_limits"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds identity and transport addresses.
type ServerConfig struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	ListenAddr string `yaml:"listen_addr"` // empty disables the socket transport
	Stdio      bool   `yaml:"stdio"`
}

// SessionsConfig holds session caps and timing.
type SessionsConfig struct {
	MaxPerAgent int `yaml:"max_per_agent"`
	MaxTotal    int `yaml:"max_total"`

	OpponentTimeout time.Duration `yaml:"-"`
	IdleTimeout     time.Duration `yaml:"-"`
	SweepInterval   time.Duration `yaml:"-"`

	OpponentTimeoutRaw string `yaml:"opponent_timeout"`
	IdleTimeoutRaw     string `yaml:"idle_timeout"`
	SweepIntervalRaw   string `yaml:"sweep_interval"`
}

// AgentsConfig holds agent liveness timing.
type AgentsConfig struct {
	IdleTimeout   time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	IdleTimeoutRaw   string `yaml:"idle_timeout"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// RateLimitsConfig holds the per-agent sliding-window limits.
type RateLimitsConfig struct {
	BurstLimit         int `yaml:"burst_limit"`
	RequestsPerMinute  int `yaml:"requests_per_minute"`
	MovesPerMinute     int `yaml:"moves_per_minute"`
	SessionsPerHour    int `yaml:"sessions_per_hour"`
	BurstWindowSeconds int `yaml:"burst_window_seconds"`
}

// DispatcherConfig holds the per-category worker pool sizes.
type DispatcherConfig struct {
	HeavySearchWorkers  int `yaml:"heavy_search_workers"`
	LearnedModelWorkers int `yaml:"learned_model_workers"`
	HeuristicWorkers    int `yaml:"heuristic_workers"`
	QueueDepth          int `yaml:"queue_depth"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "chess-mcp-server",
			Version: "1.0.0",
			Stdio:   true,
		},
		Sessions: SessionsConfig{
			MaxPerAgent:     10,
			MaxTotal:        1000,
			OpponentTimeout: 60 * time.Second,
			IdleTimeout:     60 * time.Minute,
			SweepInterval:   5 * time.Minute,
		},
		Agents: AgentsConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		RateLimits: RateLimitsConfig{
			BurstLimit:         10,
			RequestsPerMinute:  100,
			MovesPerMinute:     60,
			SessionsPerHour:    20,
			BurstWindowSeconds: 10,
		},
		Dispatcher: DispatcherConfig{
			HeavySearchWorkers:  8,
			LearnedModelWorkers: 4,
			HeuristicWorkers:    6,
			QueueDepth:          32,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parseDurations() error {
	entries := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{c.Sessions.OpponentTimeoutRaw, &c.Sessions.OpponentTimeout, "sessions.opponent_timeout"},
		{c.Sessions.IdleTimeoutRaw, &c.Sessions.IdleTimeout, "sessions.idle_timeout"},
		{c.Sessions.SweepIntervalRaw, &c.Sessions.SweepInterval, "sessions.sweep_interval"},
		{c.Agents.IdleTimeoutRaw, &c.Agents.IdleTimeout, "agents.idle_timeout"},
		{c.Agents.SweepIntervalRaw, &c.Agents.SweepInterval, "agents.sweep_interval"},
	}
	for _, e := range entries {
		if e.raw == "" {
			continue
		}
		d, err := time.ParseDuration(e.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", e.name, err)
		}
		*e.dst = d
	}
	return nil
}

func (c *Config) validate() error {
	if c.Sessions.MaxPerAgent <= 0 {
		return fmt.Errorf("sessions.max_per_agent must be positive, got %d", c.Sessions.MaxPerAgent)
	}
	if c.Sessions.MaxTotal < c.Sessions.MaxPerAgent {
		return fmt.Errorf("sessions.max_total (%d) must be at least sessions.max_per_agent (%d)",
			c.Sessions.MaxTotal, c.Sessions.MaxPerAgent)
	}
	if !c.Server.Stdio && c.Server.ListenAddr == "" {
		return fmt.Errorf("no transport configured: enable server.stdio or set server.listen_addr")
	}
	return nil
}
