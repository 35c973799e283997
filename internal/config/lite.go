// This file contains the lightweight configuration for the command line
// tool, which needs no config file and reads only environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// LiteConfig is a simplified configuration for standalone command line use.
type LiteConfig struct {
	// DBPath locates the snapshot database file.
	DBPath string

	// ResolutionCacheSize bounds the semantic resolution LRU.
	ResolutionCacheSize int

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	return &LiteConfig{
		DBPath:              filepath.Join(homeDir, ".clinigraph", "clinigraph.db"),
		ResolutionCacheSize: 512,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// LoadLiteConfig loads configuration from environment variables, falling
// back to defaults.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("CLINIGRAPH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CLINIGRAPH_RESOLUTION_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ResolutionCacheSize = n
		}
	}
	if v := os.Getenv("CLINIGRAPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CLINIGRAPH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}
