package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLINIGRAPH_DB_PATH",
		"CLINIGRAPH_RESOLUTION_CACHE_SIZE",
		"CLINIGRAPH_LOG_LEVEL",
		"CLINIGRAPH_LOG_FORMAT",
	} {
		os.Unsetenv(key)
	}
}

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, 512, cfg.ResolutionCacheSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, 512, cfg.ResolutionCacheSize)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("CLINIGRAPH_DB_PATH", "/tmp/test-clinigraph.db")
	os.Setenv("CLINIGRAPH_RESOLUTION_CACHE_SIZE", "64")
	os.Setenv("CLINIGRAPH_LOG_LEVEL", "debug")
	os.Setenv("CLINIGRAPH_LOG_FORMAT", "json")
	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-clinigraph.db", cfg.DBPath)
	assert.Equal(t, 64, cfg.ResolutionCacheSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_InvalidCacheSizeIgnored(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("CLINIGRAPH_RESOLUTION_CACHE_SIZE", "not-a-number")
	defer clearEnvVars(t)

	cfg := LoadLiteConfig()
	assert.Equal(t, 512, cfg.ResolutionCacheSize)
}
