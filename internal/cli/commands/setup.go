package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/fraudviz/internal/cli/config"
	"github.com/leapstack-labs/fraudviz/internal/cli/output"
	"github.com/leapstack-labs/fraudviz/internal/loader"
	"github.com/leapstack-labs/fraudviz/internal/metrics"
	"github.com/leapstack-labs/fraudviz/internal/source"
	"github.com/leapstack-labs/fraudviz/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Metrics  *metrics.Collector
	Source   source.Source
	Store    *state.SQLiteStore
	Loader   *loader.Loader
}

// NewCommandContext opens the configured source and history store and
// builds a loader over them.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutSource(cmd)
	ctx := cmd.Context()

	src, err := source.Open(ctx, &cc.Cfg.Source, source.Options{Logger: cc.Logger, Metrics: cc.Metrics})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open source: %w", err)
	}
	cc.Source = src

	store, err := openStore(cc.Cfg)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	cc.Store = store

	lcfg := loader.Config{
		Source:      src,
		Metrics:     cc.Metrics,
		Logger:      cc.Logger,
		HistoryKeep: cc.Cfg.HistoryKeep,
	}
	if store != nil {
		lcfg.Store = store
	}
	cc.Loader = loader.New(lcfg)

	cleanup := func() {
		_ = src.Close()
		if store != nil {
			_ = store.Close()
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutSource creates a CommandContext without a source
// or loader. Useful for commands that only read history.
func NewCommandContextWithoutSource(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
		Metrics:  metrics.New(),
	}
}

// Prime seeds the loader from history and then loads from the source.
// A failed load is only fatal when no stored snapshot could stand in.
func (cc *CommandContext) Prime(ctx context.Context) error {
	if _, err := cc.Loader.Seed(ctx); err != nil {
		cc.Logger.Warn("could not read snapshot history", "error", err)
	}
	if _, err := cc.Loader.Load(ctx); err != nil {
		if cc.Loader.Snapshot() == nil {
			return fmt.Errorf("load failed: %w", err)
		}
		cc.Renderer.Warning(fmt.Sprintf("load failed, showing stored snapshot %s: %v", cc.Loader.Snapshot().ID, err))
	}
	return nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise loads defaults
// and environment overrides.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{
			Source:       config.SourceConfig{Type: config.DefaultSourceType, BaseURL: config.DefaultBaseURL},
			StatePath:    config.DefaultStateFile,
			HistoryKeep:  config.DefaultHistoryKeep,
			DefaultView:  config.DefaultView,
			UI:           config.UIConfig{Port: config.DefaultPort},
			OutputFormat: config.DefaultOutput,
			LogLevel:     config.DefaultLogLevel,
		}
	}
	return cfg
}

// openStore opens the history database. An empty state path disables
// history.
func openStore(cfg *config.Config) (*state.SQLiteStore, error) {
	if cfg.StatePath == "" {
		return nil, nil
	}
	if cfg.StatePath != ":memory:" {
		if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

// requireStore opens the history database for commands that cannot work
// without it.
func requireStore(cfg *config.Config) (*state.SQLiteStore, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("snapshot history is disabled (empty state_path)")
	}
	return store, nil
}
