// Package config provides configuration management for the fraudviz CLI.
//
// Source and UI settings are the shared types from pkg/core, re-exported
// here via type aliases so commands need only this package.
package config

import (
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// SourceConfig is an alias for the shared source configuration.
type SourceConfig = core.SourceConfig

// UIConfig is an alias for the shared UI configuration.
type UIConfig = core.UIConfig

// Config holds all CLI configuration options.
type Config struct {
	Source       SourceConfig `koanf:"source"`
	StatePath    string       `koanf:"state_path"`
	HistoryKeep  int          `koanf:"history_keep" validate:"gte=0"`
	DefaultView  string       `koanf:"default_view" validate:"required,oneof=transactions fraud"`
	UI           UIConfig     `koanf:"ui"`
	Verbose      bool         `koanf:"verbose"`
	OutputFormat string       `koanf:"output" validate:"oneof=auto text markdown json"`
	LogLevel     string       `koanf:"log_level" validate:"oneof=debug info warn error"`
}

// View returns the configured default view mode.
func (c *Config) View() core.ViewMode {
	return core.ViewMode(c.DefaultView)
}

// Default configuration values.
const (
	DefaultSourceType  = "http"
	DefaultBaseURL     = "http://localhost:8000"
	DefaultTimeout     = "10s"
	DefaultStateFile   = ".fraudviz/history.db"
	DefaultHistoryKeep = 20
	DefaultView        = "transactions"
	DefaultPort        = 8765
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel    = "info"

	// DefaultSessionSecret signs the browser session cookie when no secret
	// is configured. It only keys a session id, never credentials.
	DefaultSessionSecret = "fraudviz-dev-secret-change-in-production" //nolint:gosec
)
