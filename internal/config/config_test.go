package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create temporary directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "echeancier.yml")

	// Write valid config
	validConfig := `version: "1.0"
endpoint: "http://localhost:3001/api"
instance: "cabinet-principal"
realtime:
  mode: "redis"
  redis_url: "redis://localhost:6379"
scans:
  approaching_window: 48h
  approaching_interval: 30m
cache:
  freshness_window: 2m
`
	err := os.WriteFile(configPath, []byte(validConfig), 0644)
	require.NoError(t, err)

	// Load and validate
	config, err := Load(configPath)
	require.NoError(t, err)
	assert.NotNil(t, config)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "http://localhost:3001/api", config.Endpoint)
	assert.Equal(t, "cabinet-principal", config.Instance)
	assert.Equal(t, RealtimeRedis, config.Realtime.Mode)
	assert.Equal(t, "redis://localhost:6379", config.Realtime.RedisURL)
	assert.Equal(t, 48*time.Hour, config.Scans.ApproachingWindow)
	assert.Equal(t, 30*time.Minute, config.Scans.ApproachingInterval)
	assert.Equal(t, 2*time.Minute, config.Cache.FreshnessWindow)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/echeancier.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "echeancier.yml")

	// Write invalid YAML
	invalidYAML := `version: "1.0"
realtime:
  - this is invalid
    yaml syntax
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	config := &Config{
		Version:  "2.0",
		Endpoint: "http://localhost:3001/api",
		Instance: "cabinet",
	}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version: 2.0")
}

func TestValidate_MissingEndpoint(t *testing.T) {
	config := &Config{Version: "1.0", Instance: "cabinet"}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestValidate_MissingInstance(t *testing.T) {
	config := &Config{Version: "1.0", Endpoint: "http://localhost:3001/api"}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "instance is required")
}

func TestValidate_DefaultsAppliedWhenSectionsOmitted(t *testing.T) {
	config := &Config{
		Version:  "1.0",
		Endpoint: "http://localhost:3001/api",
		Instance: "cabinet",
	}

	err := config.Validate()
	require.NoError(t, err)

	require.NotNil(t, config.Realtime)
	assert.Equal(t, RealtimeNone, config.Realtime.Mode)
	assert.NotNil(t, config.Scans)
	assert.NotNil(t, config.Cache)
}

func TestValidate_RedisModeRequiresURL(t *testing.T) {
	config := &Config{
		Version:  "1.0",
		Endpoint: "http://localhost:3001/api",
		Instance: "cabinet",
		Realtime: &RealtimeConfig{Mode: RealtimeRedis},
	}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "realtime.redis_url is required")
}

func TestValidate_InvalidRealtimeMode(t *testing.T) {
	config := &Config{
		Version:  "1.0",
		Endpoint: "http://localhost:3001/api",
		Instance: "cabinet",
		Realtime: &RealtimeConfig{Mode: "carrier-pigeon"},
	}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid realtime.mode: carrier-pigeon")
}

func TestValidate_BackoffBounds(t *testing.T) {
	config := &Config{
		Version:  "1.0",
		Endpoint: "http://localhost:3001/api",
		Instance: "cabinet",
		Realtime: &RealtimeConfig{
			Mode:           RealtimeSSE,
			InitialBackoff: 5 * time.Minute,
			MaxBackoff:     time.Minute,
		},
	}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed realtime.max_backoff")
}
