package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/fraudviz/internal/cli/config"
	"github.com/leapstack-labs/fraudviz/internal/ui"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port      int
	NoBrowser bool
	Watch     bool
	Dev       bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"ui"},
		Short:   "Start the browser graph explorer",
		Long: `Start a local web server with the interactive fraud graph explorer.

The explorer provides:
- Transaction and fraud views of the graph
- Click-to-highlight of a node and its neighbours
- Search across names, emails and ids
- Relationship details for the selected node
- Live updates whenever a new snapshot is loaded`,
		Example: `  # Start on the default port
  fraudviz serve

  # Start on a custom port against a snapshot file
  fraudviz serve --port 3000 --source file

  # Start without auto-opening the browser
  fraudviz serve --no-browser`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, fmt.Sprintf("Port to serve on (default: %d)", config.DefaultPort))
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload when a file source changes")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Enable the live-reload endpoint for asset development")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cc.Cfg

	// CLI flags override config file
	port := cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	if port == 0 {
		port = config.DefaultPort
	}

	autoOpen := cfg.UI.AutoOpen && !opts.NoBrowser

	watch := opts.Watch
	if !cmd.Flags().Changed("watch") && cfg.Source.File != nil {
		watch = cfg.Source.File.Watch
	}

	// An unreachable backend is not fatal here: the explorer shows the
	// stored snapshot, or an empty graph with the failure as its status.
	if _, err := cc.Loader.Seed(cmd.Context()); err != nil {
		cc.Logger.Warn("could not read snapshot history", "error", err)
	}
	if _, err := cc.Loader.Load(cmd.Context()); err != nil {
		cc.Renderer.Warning("initial load failed: " + err.Error())
	}

	server := ui.NewServer(ui.Config{
		Loader:        cc.Loader,
		Metrics:       cc.Metrics,
		DefaultView:   cfg.View(),
		Port:          port,
		Watch:         watch,
		Dev:           opts.Dev,
		SessionSecret: sessionSecret(cfg),
		Logger:        cc.Logger,
	})

	url := fmt.Sprintf("http://localhost:%d", port)
	if autoOpen {
		go openBrowser(url)
	}

	cc.Renderer.Printf("Starting explorer on %s (source: %s)\n", url, cc.Source.Name())
	cc.Renderer.Println("Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}

// sessionSecret returns the configured cookie secret or the development
// default.
func sessionSecret(cfg *config.Config) string {
	if cfg.UI.SessionSecret != "" {
		return cfg.UI.SessionSecret
	}
	return config.DefaultSessionSecret
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
