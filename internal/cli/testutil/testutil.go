// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/fraudviz/internal/cli/config"
	"github.com/leapstack-labs/fraudviz/internal/cli/output"
	"github.com/leapstack-labs/fraudviz/internal/source/filesrc"
	sampledata "github.com/leapstack-labs/fraudviz/internal/testutil"
)

// Workspace is a temporary working directory with an exported sample graph
// and a history database path.
type Workspace struct {
	Dir       string
	GraphPath string
	StatePath string
}

// SetupWorkspace writes the sample snapshot to a temp directory, changes
// into it, and points the FRAUDVIZ_ environment at it so every command
// uses the file source and a private history database.
func SetupWorkspace(t *testing.T) *Workspace {
	t.Helper()

	dir := t.TempDir()
	ws := &Workspace{
		Dir:       dir,
		GraphPath: filepath.Join(dir, "graph.json"),
		StatePath: filepath.Join(dir, ".fraudviz", "history.db"),
	}

	f, err := os.Create(ws.GraphPath)
	if err != nil {
		t.Fatalf("failed to create graph file: %v", err)
	}
	if err := filesrc.Encode(f, sampledata.SampleSnapshot(), filesrc.FormatJSON); err != nil {
		t.Fatalf("failed to encode sample snapshot: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close graph file: %v", err)
	}

	t.Chdir(dir)
	t.Setenv("FRAUDVIZ_SOURCE__TYPE", "file")
	t.Setenv("FRAUDVIZ_SOURCE__FILE__PATH", ws.GraphPath)
	t.Setenv("FRAUDVIZ_STATE_PATH", ws.StatePath)

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	return ws
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
