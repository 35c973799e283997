// Package config provides configuration management for the knowledge graph
// server.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinigraph-server/internal/domain"
)

// Manager loads and holds the application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a configuration manager, reading the optional config
// file, environment variables and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/clinigraph/")

	viper.SetEnvPrefix("CLINIGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// The config file is optional; defaults and env vars suffice.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit", 50)
	viper.SetDefault("server.rate_burst", 100)

	// Storage defaults
	viper.SetDefault("storage.path", "data/clinigraph.db")
	viper.SetDefault("storage.resolution_cache_size", 512)

	// Scoring weights. The values reproduce long-standing behavior and are
	// tunable, not derived from a stated principle.
	viper.SetDefault("scoring.presence_score", 1)
	viper.SetDefault("scoring.keyword_bonus", 5)
	viper.SetDefault("scoring.syndrome_bonus", 10)
	viper.SetDefault("scoring.pivot_bonus", 15)
	viper.SetDefault("scoring.expansion_top", 5)

	// Auto-linker weights
	viper.SetDefault("linker.similarity_threshold", 0.3)
	viper.SetDefault("linker.trigger_bonus", 0.5)
	viper.SetDefault("linker.substring_bonus", 1.0)
	viper.SetDefault("linker.max_matches", 5)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns the server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetStorageConfig returns the storage configuration.
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}
