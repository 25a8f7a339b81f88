package core

import "time"

// SourceConfig selects and configures where graph data is read from.
type SourceConfig struct {
	Type string `koanf:"type" validate:"required,oneof=http neo4j file"` // http, neo4j, file

	// HTTP backend
	BaseURL string         `koanf:"base_url"`
	Timeout time.Duration  `koanf:"timeout" validate:"gte=0"`
	Breaker *BreakerConfig `koanf:"breaker"`

	// Direct database access
	Neo4j *Neo4jConfig `koanf:"neo4j"`

	// Offline snapshot file
	File *FileConfig `koanf:"file"`
}

// BreakerConfig tunes the circuit breaker around the HTTP backend.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
	MinRequests  uint32        `koanf:"min_requests"`
}

// Neo4jConfig holds direct database connection settings.
type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	User     string `koanf:"user"`
	Password string `koanf:"password"` // supports ${VAR} expansion
	Database string `koanf:"database"`
}

// FileConfig points at an exported snapshot document.
type FileConfig struct {
	Path  string `koanf:"path"`
	Watch bool   `koanf:"watch"` // reload when the file changes
}

// UIConfig holds web UI settings.
type UIConfig struct {
	Port          int    `koanf:"port" validate:"gte=0,lte=65535"`
	AutoOpen      bool   `koanf:"auto_open"`
	SessionSecret string `koanf:"session_secret"`
}
