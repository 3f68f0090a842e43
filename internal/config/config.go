package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for its configuration when --config is
// not given.
const DefaultPath = "echeancier.yml"

// RealtimeMode selects the push channel implementation.
type RealtimeMode string

const (
	RealtimeNone      RealtimeMode = "none"
	RealtimeRedis     RealtimeMode = "redis"
	RealtimeSSE       RealtimeMode = "sse"
	RealtimeWebSocket RealtimeMode = "websocket"
)

// Config represents the top-level echeancier.yml configuration
type Config struct {
	Version  string          `yaml:"version"`
	Endpoint string          `yaml:"endpoint"` // Required: backend API base URL
	Instance string          `yaml:"instance"` // Required: instance name, scopes the redis event channel
	Realtime *RealtimeConfig `yaml:"realtime,omitempty"`
	Scans    *ScansConfig    `yaml:"scans,omitempty"`
	Cache    *CacheConfig    `yaml:"cache,omitempty"`
}

// RealtimeConfig selects and tunes the push channel
type RealtimeConfig struct {
	Mode     RealtimeMode `yaml:"mode"`                // none, redis, sse, or websocket
	RedisURL string       `yaml:"redis_url,omitempty"` // Required for mode=redis

	// Reconnect backoff bounds for the sse and websocket modes.
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty"`
}

// ScansConfig tunes the periodic deadline scans
type ScansConfig struct {
	ApproachingWindow   time.Duration `yaml:"approaching_window,omitempty"`   // Default: 72h
	ApproachingInterval time.Duration `yaml:"approaching_interval,omitempty"` // Default: 1h
	OverdueInterval     time.Duration `yaml:"overdue_interval,omitempty"`     // Default: 24h
}

// CacheConfig tunes the in-memory cache
type CacheConfig struct {
	FreshnessWindow time.Duration `yaml:"freshness_window,omitempty"` // Default: 5m
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted sections.
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: endpoint
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	// Required: instance
	if c.Instance == "" {
		return fmt.Errorf("instance is required")
	}

	// Apply default realtime config if missing
	if c.Realtime == nil {
		c.Realtime = &RealtimeConfig{Mode: RealtimeNone}
	}

	switch c.Realtime.Mode {
	case RealtimeNone, RealtimeSSE, RealtimeWebSocket:
	case RealtimeRedis:
		if c.Realtime.RedisURL == "" {
			return fmt.Errorf("realtime.redis_url is required when realtime.mode is 'redis'")
		}
	default:
		return fmt.Errorf("invalid realtime.mode: %s (must be 'none', 'redis', 'sse', or 'websocket')", c.Realtime.Mode)
	}

	if c.Realtime.InitialBackoff < 0 {
		return fmt.Errorf("realtime.initial_backoff must be >= 0, got %s", c.Realtime.InitialBackoff)
	}
	if c.Realtime.MaxBackoff < 0 {
		return fmt.Errorf("realtime.max_backoff must be >= 0, got %s", c.Realtime.MaxBackoff)
	}
	if c.Realtime.InitialBackoff > 0 && c.Realtime.MaxBackoff > 0 && c.Realtime.InitialBackoff > c.Realtime.MaxBackoff {
		return fmt.Errorf("realtime.initial_backoff (%s) must not exceed realtime.max_backoff (%s)",
			c.Realtime.InitialBackoff, c.Realtime.MaxBackoff)
	}

	// Apply default scans config if missing
	if c.Scans == nil {
		c.Scans = &ScansConfig{}
	}
	if c.Scans.ApproachingWindow < 0 || c.Scans.ApproachingInterval < 0 || c.Scans.OverdueInterval < 0 {
		return fmt.Errorf("scan durations must be >= 0")
	}

	if c.Cache == nil {
		c.Cache = &CacheConfig{}
	}
	if c.Cache.FreshnessWindow < 0 {
		return fmt.Errorf("cache.freshness_window must be >= 0, got %s", c.Cache.FreshnessWindow)
	}

	return nil
}

// Load reads and validates echeancier.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
