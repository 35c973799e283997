package domain

import "time"

// Config is the main application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Linker  LinkerConfig  `mapstructure:"linker"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig is the HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// StorageConfig locates the snapshot database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
	// ResolutionCacheSize bounds the LRU over semantic label resolution.
	ResolutionCacheSize int `mapstructure:"resolution_cache_size"`
}

// ScoringConfig carries the inference weights. The defaults reproduce the
// historical behavior; the values are tunable, not derived from a stated
// principle.
type ScoringConfig struct {
	PresenceScore float64 `mapstructure:"presence_score"`
	KeywordBonus  float64 `mapstructure:"keyword_bonus"`
	SyndromeBonus float64 `mapstructure:"syndrome_bonus"`
	PivotBonus    float64 `mapstructure:"pivot_bonus"`
	// ExpansionTop is how many top-ranked nodes seed graph expansion.
	ExpansionTop int `mapstructure:"expansion_top"`
}

// LinkerConfig carries the auto-linker similarity weights.
type LinkerConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	TriggerBonus        float64 `mapstructure:"trigger_bonus"`
	SubstringBonus      float64 `mapstructure:"substring_bonus"`
	MaxMatches          int     `mapstructure:"max_matches"`
}

// LoggingConfig is the logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
