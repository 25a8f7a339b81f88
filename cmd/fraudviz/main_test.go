// Package main provides tests for the fraudviz CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/fraudviz/internal/cli"
	"github.com/leapstack-labs/fraudviz/internal/cli/config"
	clitest "github.com/leapstack-labs/fraudviz/internal/cli/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	output, err := run(t, "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(output, "fraudviz") {
		t.Errorf("version output should contain 'fraudviz', got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	output, err := run(t, "--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}

	expectedCommands := []string{"serve", "tui", "shell", "summary", "view", "relationships", "export", "snapshots"}
	for _, expected := range expectedCommands {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestSummaryCommand(t *testing.T) {
	clitest.SetupWorkspace(t)

	output, err := run(t, "summary", "--output", "markdown")
	if err != nil {
		t.Fatalf("summary command error = %v", err)
	}
	if !strings.Contains(output, "Graph summary") {
		t.Errorf("summary output should contain 'Graph summary', got: %s", output)
	}
}

func TestViewCommandFlags(t *testing.T) {
	ws := clitest.SetupWorkspace(t)

	output, err := run(t, "view",
		"--view", "fraud",
		"--select", "u1",
		"--output", "json",
		"--state", filepath.Join(ws.Dir, "other.db"),
	)
	if err != nil {
		t.Fatalf("view command error = %v", err)
	}

	var model struct {
		Mode  string `json:"mode"`
		Focus string `json:"focus"`
	}
	if err := json.Unmarshal([]byte(output), &model); err != nil {
		t.Fatalf("view output is not JSON: %v\n%s", err, output)
	}
	if model.Mode != "fraud" || model.Focus != "u1" {
		t.Errorf("got mode=%q focus=%q, want fraud/u1", model.Mode, model.Focus)
	}
	if _, err := os.Stat(filepath.Join(ws.Dir, "other.db")); err != nil {
		t.Errorf("--state should choose the history database: %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	clitest.SetupWorkspace(t)

	_, err := run(t, "summary", "--view", "sideways")
	if err == nil {
		t.Fatal("an invalid view should fail")
	}
	if !strings.Contains(err.Error(), "default_view must be one of") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompletionCommand(t *testing.T) {
	shells := []string{"bash", "zsh", "fish", "powershell"}

	for _, shell := range shells {
		t.Run(shell, func(t *testing.T) {
			if _, err := run(t, "completion", shell); err != nil {
				t.Errorf("completion %s command error = %v", shell, err)
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := run(t, "unknown-command"); err == nil {
		t.Error("unknown command should return an error")
	}
}
