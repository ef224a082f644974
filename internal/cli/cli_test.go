package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mindcanvas/internal/config"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/storage"
	"github.com/matzehuels/mindcanvas/pkg/storage/filestore"
)

// testEnv writes a config that stores documents in a temp directory.
func testEnv(t *testing.T) (cfgPath, docDir string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Dir = filepath.Join(dir, "docs")
	cfg.Editor.UserID = "tester"
	cfgPath = filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(cfg, cfgPath))
	return cfgPath, cfg.Storage.Dir
}

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func loadRecord(t *testing.T, dir, docID string) storage.Record {
	t.Helper()
	fs, err := filestore.New(dir)
	require.NoError(t, err)
	rec, err := fs.Load(context.Background(), docID)
	require.NoError(t, err)
	return rec
}

func TestNewCommandCreatesDocument(t *testing.T) {
	cfgPath, dir := testEnv(t)

	_, err := runCLI(t, cfgPath, "new", "ideas", "--title", "Project ideas", "--edge-type", "step")
	require.NoError(t, err)

	rec := loadRecord(t, dir, "ideas")
	assert.Equal(t, "Project ideas", rec.Title)
	assert.Equal(t, "tester", rec.UserID)
	assert.Equal(t, graph.EdgeStep, rec.Settings.EdgeType)
	require.Len(t, rec.Nodes, 1)
	assert.Equal(t, graph.RootID, rec.Nodes[0].ID)
}

func TestNewCommandRefusesOverwrite(t *testing.T) {
	cfgPath, _ := testEnv(t)

	_, err := runCLI(t, cfgPath, "new", "ideas")
	require.NoError(t, err)

	_, err = runCLI(t, cfgPath, "new", "ideas")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidInput))

	_, err = runCLI(t, cfgPath, "new", "ideas", "--force", "--title", "Again")
	require.NoError(t, err)
}

func TestNewCommandRejectsBadID(t *testing.T) {
	cfgPath, _ := testEnv(t)
	_, err := runCLI(t, cfgPath, "new", "../escape")
	require.Error(t, err)
}

func TestNewDocument(t *testing.T) {
	doc, err := newDocument("plans", newOptions{})
	require.NoError(t, err)
	assert.Equal(t, "plans", doc.Title)
	assert.Equal(t, 1, doc.NodeCount())

	_, err = newDocument("plans", newOptions{edgeType: "zigzag"})
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidInput))

	_, err = newDocument("plans", newOptions{background: "not a color"})
	assert.Error(t, err)

	doc, err = newDocument("plans", newOptions{background: "#fafafa", edgeType: "bezier"})
	require.NoError(t, err)
	assert.Equal(t, "#fafafa", doc.Settings.BackgroundColor)
	assert.Equal(t, graph.EdgeBezier, doc.Settings.EdgeType)
}

// writeTree writes a root with three children stacked on top of each other.
func writeTree(t *testing.T) string {
	t.Helper()
	d := graph.NewWithRoot("Tree")
	for _, id := range []string{"2", "3", "4"} {
		n := graph.NewNode(id, graph.TypeText, graph.Position{})
		n.Data = graph.TextData{Label: "child " + id}
		require.NoError(t, d.AddNode(n))
		require.NoError(t, d.AddEdge(graph.Edge{Source: graph.RootID, Target: id}))
	}
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, graph.WriteFile(d, path))
	return path
}

func TestLayoutCommandSpreadsChildren(t *testing.T) {
	cfgPath, dir := testEnv(t)

	_, err := runCLI(t, cfgPath, "new", "tree", "--import", writeTree(t))
	require.NoError(t, err)

	_, err = runCLI(t, cfgPath, "layout", "tree")
	require.NoError(t, err)

	doc, err := loadRecord(t, dir, "tree").Document()
	require.NoError(t, err)
	seen := make(map[graph.Position]bool)
	root, _ := doc.Node(graph.RootID)
	for _, id := range []string{"2", "3", "4"} {
		n, ok := doc.Node(id)
		require.True(t, ok)
		assert.Greater(t, n.Position.Y, root.Position.Y, "child %s should sit below the root", id)
		assert.False(t, seen[n.Position], "child %s overlaps a sibling", id)
		seen[n.Position] = true
	}
}

func TestLayoutCommandDryRunKeepsDocument(t *testing.T) {
	cfgPath, dir := testEnv(t)

	_, err := runCLI(t, cfgPath, "new", "tree", "--import", writeTree(t))
	require.NoError(t, err)
	before := loadRecord(t, dir, "tree")

	_, err = runCLI(t, cfgPath, "layout", "tree", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, before.Nodes, loadRecord(t, dir, "tree").Nodes)
}

func TestLayoutCommandMissingDocument(t *testing.T) {
	cfgPath, _ := testEnv(t)
	_, err := runCLI(t, cfgPath, "layout", "nothing")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrCodeNotFound))
}

func TestExportCommandWritesFormats(t *testing.T) {
	cfgPath, _ := testEnv(t)

	_, err := runCLI(t, cfgPath, "new", "tree", "--import", writeTree(t))
	require.NoError(t, err)

	base := filepath.Join(t.TempDir(), "out")
	_, err = runCLI(t, cfgPath, "export", "tree", "-f", "dot,json", "-o", base+".svg")
	require.NoError(t, err)

	dot, err := os.ReadFile(base + ".dot")
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph")
	assert.Contains(t, string(dot), "child 2")

	doc, err := graph.ReadFile(base + ".json")
	require.NoError(t, err)
	assert.Equal(t, 4, doc.NodeCount())
	assert.Equal(t, 3, doc.EdgeCount())
}

func TestExportCommandFromFile(t *testing.T) {
	cfgPath, _ := testEnv(t)
	out := filepath.Join(t.TempDir(), "tree.dot")

	_, err := runCLI(t, cfgPath, "export", "--in", writeTree(t), "-f", "dot", "-o", out)
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestExportCommandNeedsSource(t *testing.T) {
	cfgPath, _ := testEnv(t)
	_, err := runCLI(t, cfgPath, "export")
	require.Error(t, err)
}

func TestParseFormats(t *testing.T) {
	got, err := parseFormats("svg, DOT,svg,json")
	require.NoError(t, err)
	assert.Equal(t, []string{"svg", "dot", "json"}, got)

	got, err = parseFormats("")
	require.NoError(t, err)
	assert.Equal(t, []string{"svg"}, got)

	_, err = parseFormats("svg,gif")
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		output, name, format string
		multi                bool
		want                 string
	}{
		{"", "ideas", "svg", false, "ideas.svg"},
		{"", "ideas", "png", true, "ideas.png"},
		{"map.svg", "ideas", "svg", false, "map.svg"},
		{"out/map.svg", "ideas", "pdf", true, "out/map.pdf"},
		{"out/map", "ideas", "dot", true, "out/map.dot"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outputPath(tt.output, tt.name, tt.format, tt.multi))
	}
}

func TestListCommand(t *testing.T) {
	cfgPath, _ := testEnv(t)
	_, err := runCLI(t, cfgPath, "list")
	require.NoError(t, err)

	_, err = runCLI(t, cfgPath, "new", "alpha")
	require.NoError(t, err)
	_, err = runCLI(t, cfgPath, "ls")
	require.NoError(t, err)
}

func TestDocumentTable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := documentTable([]storage.Summary{
		{DocumentID: "alpha", Title: "First", UpdatedAt: now.Add(-2 * time.Hour)},
		{DocumentID: "beta", Title: "Second"},
	}, now)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "2h ago")
	assert.Contains(t, out, "beta")
	assert.Contains(t, out, "Document")
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "—"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-4 * 24 * time.Hour), "4d ago"},
		{now.Add(-90 * 24 * time.Hour), "2025-12-01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRelativeTime(tt.t, now))
	}
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")

	out, err := runCLI(t, cfgPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, cfgPath, strings.TrimSpace(out))

	_, err = runCLI(t, cfgPath, "config", "init")
	require.NoError(t, err)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Editor.UserID)

	_, err = runCLI(t, cfgPath, "config", "init")
	assert.Error(t, err)

	out, err = runCLI(t, cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, cfg.Editor.UserID)
	assert.Contains(t, out, "[layout]")
}

func TestCompletionCommand(t *testing.T) {
	cfgPath, _ := testEnv(t)
	out, err := runCLI(t, cfgPath, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "mindcanvas")

	_, err = runCLI(t, cfgPath, "completion", "tcsh")
	assert.Error(t, err)
}
