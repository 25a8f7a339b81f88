package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/fraudviz/internal/cli/config"
	clitest "github.com/leapstack-labs/fraudviz/internal/cli/testutil"
	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/loader"
	"github.com/leapstack-labs/fraudviz/internal/source/filesrc"
	"github.com/leapstack-labs/fraudviz/internal/state"
	"github.com/leapstack-labs/fraudviz/internal/testutil"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// useOutput selects the output format for the next command run.
func useOutput(t *testing.T, format string) {
	t.Helper()
	t.Setenv("FRAUDVIZ_OUTPUT", format)
	config.ResetConfig()
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewServeCommand(), "serve", []string{"port", "no-browser", "watch", "dev"}},
		{NewTUICommand(), "tui", nil},
		{NewShellCommand(), "shell", nil},
		{NewSummaryCommand(), "summary", nil},
		{NewViewCommand(), "view", []string{"select", "search"}},
		{NewRelationshipsCommand(), "relationships user|transaction <id>", nil},
		{NewExportCommand(), "export", []string{"format", "out", "id"}},
		{NewSnapshotsCommand(), "snapshots", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}

	assert.Contains(t, NewServeCommand().Aliases, "ui")
	assert.Contains(t, NewRelationshipsCommand().Aliases, "rels")
}

func TestSummaryCommand(t *testing.T) {
	clitest.SetupWorkspace(t)

	t.Run("json", func(t *testing.T) {
		useOutput(t, "json")
		out, _, err := execute(t, NewSummaryCommand())
		require.NoError(t, err)

		var got SummaryOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.NotEmpty(t, got.Summary.SnapshotID)
		assert.Equal(t, core.ViewTransactions, got.Summary.Mode)
		assert.Equal(t, 4, got.Summary.Users)
		assert.Equal(t, 2, got.Summary.Transactions)
		assert.Len(t, got.Users, 4)
		assert.Len(t, got.Transactions, 2)
	})

	t.Run("markdown", func(t *testing.T) {
		useOutput(t, "markdown")
		out, _, err := execute(t, NewSummaryCommand())
		require.NoError(t, err)

		assert.Contains(t, out, "# Graph summary (transactions view)")
		assert.Contains(t, out, "| ID | Name | Email | Phone |")
		assert.Contains(t, out, "Alice")
		assert.Contains(t, out, "$120.5")
		clitest.AssertNoANSI(t, out)
		clitest.AssertValidMarkdown(t, out)
	})

	t.Run("fraud view", func(t *testing.T) {
		t.Setenv("FRAUDVIZ_DEFAULT_VIEW", "fraud")
		useOutput(t, "json")
		out, _, err := execute(t, NewSummaryCommand())
		require.NoError(t, err)

		var got SummaryOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, core.ViewFraud, got.Summary.Mode)
		assert.Equal(t, 2, got.Summary.Relationships)
	})
}

func TestViewCommand(t *testing.T) {
	clitest.SetupWorkspace(t)
	t.Setenv("FRAUDVIZ_DEFAULT_VIEW", "fraud")

	type model struct {
		Nodes []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"nodes"`
		Edges     []json.RawMessage `json:"edges"`
		Highlight string            `json:"highlight"`
		Focus     string            `json:"focus"`
	}

	tests := []struct {
		name      string
		args      []string
		highlight string
		states    map[string]string
	}{
		{
			name:   "plain",
			states: map[string]string{"u1": "normal", "u2": "normal", "u3": "normal", "u4": "normal"},
		},
		{
			name:      "select",
			args:      []string{"--select", "u2"},
			highlight: "select",
			states:    map[string]string{"u1": "faded", "u2": "highlighted", "u3": "faded", "u4": "highlighted"},
		},
		{
			name:      "search",
			args:      []string{"--search", "carol"},
			highlight: "search",
			states:    map[string]string{"u1": "highlighted", "u2": "faded", "u3": "highlighted", "u4": "faded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useOutput(t, "json")
			out, _, err := execute(t, NewViewCommand(), tt.args...)
			require.NoError(t, err)

			var got model
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, tt.highlight, got.Highlight)
			assert.Len(t, got.Edges, 2)
			states := make(map[string]string, len(got.Nodes))
			for _, n := range got.Nodes {
				states[n.ID] = n.State
			}
			assert.Equal(t, tt.states, states)
		})
	}

	t.Run("markdown", func(t *testing.T) {
		useOutput(t, "markdown")
		out, _, err := execute(t, NewViewCommand(), "--select", "u2")
		require.NoError(t, err)
		assert.Contains(t, out, "# fraud view")
		assert.Contains(t, out, `select "u2": 2 highlighted`)
		assert.Contains(t, out, "| Source | Type | Target | State |")
	})

	t.Run("unknown node", func(t *testing.T) {
		useOutput(t, "json")
		_, _, err := execute(t, NewViewCommand(), "--select", "t1")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrUnknownNode)
	})
}

func TestRelationshipsCommand(t *testing.T) {
	clitest.SetupWorkspace(t)

	t.Run("user markdown", func(t *testing.T) {
		useOutput(t, "markdown")
		out, _, err := execute(t, NewRelationshipsCommand(), "user", "u2")
		require.NoError(t, err)
		assert.Contains(t, out, "# Relationships of u2 (4)")
		assert.Contains(t, out, "## Shared Phone")
		assert.Contains(t, out, "u4")
	})

	t.Run("transaction json", func(t *testing.T) {
		useOutput(t, "json")
		out, _, err := execute(t, NewRelationshipsCommand(), "transaction", "t1")
		require.NoError(t, err)

		var got core.TransactionRelationships
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "t1", got.TxnID)
		assert.Len(t, got.SharedDevice, 1)
		assert.Equal(t, 120.5, got.TransactionDetails["amount"])
	})

	t.Run("unknown kind", func(t *testing.T) {
		useOutput(t, "json")
		_, _, err := execute(t, NewRelationshipsCommand(), "device", "d1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown node type")
	})
}

func TestExportCommand(t *testing.T) {
	ws := clitest.SetupWorkspace(t)

	t.Run("yaml file", func(t *testing.T) {
		useOutput(t, "json")
		path := filepath.Join(ws.Dir, "out.yaml")
		_, errOut, err := execute(t, NewExportCommand(), "--out", path)
		require.NoError(t, err)
		assert.Contains(t, errOut, "Exported snapshot")

		f, err := os.Open(path)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		doc, err := filesrc.Decode(f, filesrc.FormatYAML)
		require.NoError(t, err)
		assert.Len(t, doc.Graph.Nodes, 6)
		assert.Len(t, doc.Graph.Edges, 8)
		assert.Len(t, doc.Users, 4)
	})

	t.Run("json stdout", func(t *testing.T) {
		useOutput(t, "json")
		out, _, err := execute(t, NewExportCommand())
		require.NoError(t, err)
		doc, err := filesrc.Decode(bytes.NewBufferString(out), filesrc.FormatJSON)
		require.NoError(t, err)
		assert.Len(t, doc.Transactions, 2)
	})

	t.Run("bad format", func(t *testing.T) {
		_, _, err := execute(t, NewExportCommand(), "--format", "csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown format")
	})
}

func TestExportFormat(t *testing.T) {
	tests := []struct {
		opts ExportOptions
		want filesrc.Format
	}{
		{ExportOptions{Out: "-"}, filesrc.FormatJSON},
		{ExportOptions{Out: "graph.yml"}, filesrc.FormatYAML},
		{ExportOptions{Out: "graph.json"}, filesrc.FormatJSON},
		{ExportOptions{Out: "graph.json", Format: "yaml"}, filesrc.FormatYAML},
	}
	for _, tt := range tests {
		got, err := exportFormat(&tt.opts)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "out=%s format=%s", tt.opts.Out, tt.opts.Format)
	}
}

func TestSnapshotsCommands(t *testing.T) {
	ws := clitest.SetupWorkspace(t)
	useOutput(t, "json")

	// every successful load is stored
	for range 3 {
		_, _, err := execute(t, NewSummaryCommand())
		require.NoError(t, err)
	}

	out, _, err := execute(t, NewSnapshotsCommand(), "list")
	require.NoError(t, err)
	var infos []state.SnapshotInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 3)
	assert.Equal(t, 6, infos[0].Nodes)

	out, _, err = execute(t, NewExportCommand(), "--id", infos[2].ID)
	require.NoError(t, err)
	doc, err := filesrc.Decode(bytes.NewBufferString(out), filesrc.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, doc.Graph.Edges, 8)

	out, _, err = execute(t, NewSnapshotsCommand(), "prune", "--keep", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"deleted": 2, "kept": 1}`, out)

	_, _, err = execute(t, NewSnapshotsCommand(), "prune", "--keep", "0")
	require.Error(t, err)

	store, err := state.Open(ws.StatePath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	remaining, err := store.ListSnapshots(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, infos[0].ID, remaining[0].ID)
}

func TestSnapshotsCommands_HistoryDisabled(t *testing.T) {
	clitest.SetupWorkspace(t)
	t.Setenv("FRAUDVIZ_STATE_PATH", "")
	useOutput(t, "json")

	_, _, err := execute(t, NewSnapshotsCommand(), "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestRunShellLine(t *testing.T) {
	src := testutil.NewFakeSource()
	rels := &core.UserRelationships{UserID: "u2"}
	rels.Add(core.Connection{RelationshipType: core.RelSharedPhone, Connected: map[string]any{"user_id": "u4"}, NodeType: "User"})
	src.UserRels["u2"] = rels
	l := loader.New(loader.Config{Source: src, Logger: testutil.NewTestLogger(t)})
	_, err := l.Load(context.Background())
	require.NoError(t, err)
	s := explorer.NewSession("shell", l, explorer.Options{Logger: testutil.NewTestLogger(t)})
	t.Cleanup(s.Wait)

	tests := []struct {
		line    string
		quit    bool
		wantOut []string
		wantErr string
	}{
		{line: ""},
		{line: ".help", wantOut: []string{"Commands:", "select <id>", ".quit"}},
		{line: "view fraud", wantOut: []string{"fraud view: 4 users, 2 transactions, 2 relationships"}},
		{line: "select u2", wantOut: []string{"selected u2: u2, u4", "Shared Phone: u4"}},
		{line: "search carol", wantOut: []string{`search "carol": u1, u3`}},
		{line: "show", wantOut: []string{`search "carol"`}},
		{line: "select t1", wantErr: "Error:"},
		{line: "frobnicate", wantErr: "Error:"},
		{line: "reset", wantOut: []string{"fraud view:"}},
		{line: ".quit", quit: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			out, errOut := new(bytes.Buffer), new(bytes.Buffer)
			quit := runShellLine(context.Background(), out, errOut, s, tt.line)
			assert.Equal(t, tt.quit, quit)
			for _, want := range tt.wantOut {
				assert.Contains(t, out.String(), want)
			}
			if tt.wantErr != "" {
				assert.Contains(t, errOut.String(), tt.wantErr)
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestPrintFrame_Empty(t *testing.T) {
	l := loader.New(loader.Config{Source: testutil.NewFakeSource()})
	s := explorer.NewSession("empty", l, explorer.Options{})
	t.Cleanup(s.Wait)

	var out bytes.Buffer
	printFrame(&out, s)
	assert.Contains(t, out.String(), "No graph loaded yet.")
}

func TestNodeIDs(t *testing.T) {
	assert.Nil(t, nodeIDs(nil))
	assert.Equal(t, []string{"u1", "u2", "u3", "u4", "t1", "t2"}, nodeIDs(testutil.SampleSnapshot()))
}
