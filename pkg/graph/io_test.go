package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleDocument(t *testing.T) *Document {
	t.Helper()
	d := NewWithRoot("Ideas")
	w, h := 320.0, 90.0
	nodes := []Node{
		{ID: "2", Type: TypeLink, Position: Position{X: -200, Y: 160}, Data: LinkData{URL: "https://go.dev", DisplayText: "Go"}},
		{ID: "3", Type: TypePlaylist, Position: Position{X: 200, Y: 160}, Width: &w, Height: &h,
			Data: PlaylistData{Label: "Focus", Items: []PlaylistItem{{Title: "One", MediaURL: "https://a/1.mp3"}}}},
		{ID: "4", Type: TypeSocial, Position: Position{X: 0, Y: 320}, Data: SocialData{Platform: "mastodon", Username: "gopher"},
			Style: Style{Background: "#ffe4b5"}},
	}
	for _, n := range nodes {
		if err := d.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	_ = d.AddEdge(Edge{Source: RootID, Target: "2"})
	_ = d.AddEdge(Edge{Source: RootID, Target: "3", Type: EdgeBezier})
	_ = d.AddEdge(Edge{Source: "3", Target: "4"})
	return d
}

func TestMarshalRoundTrip(t *testing.T) {
	d := sampleDocument(t)
	data, err := Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Snapshot().Equal(d.Snapshot()) {
		t.Errorf("round trip changed the document:\n%s", data)
	}

	n, _ := got.Node("3")
	pl, ok := n.Data.(PlaylistData)
	if !ok || len(pl.Items) != 1 || pl.Items[0].Title != "One" {
		t.Errorf("playlist payload = %#v", n.Data)
	}
}

func TestReadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"BadJSON", `{"nodes": [`},
		{"UnknownType", `{"nodes":[{"id":"1","type":"hologram"}],"edges":[]}`},
		{"DanglingEdge", `{"nodes":[{"id":"1","type":"text"}],"edges":[{"id":"e","source":"1","target":"2"}]}`},
		{"DuplicateNode", `{"nodes":[{"id":"1"},{"id":"1"}],"edges":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.json)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadDefaultsMissingType(t *testing.T) {
	d, err := Read(strings.NewReader(`{"nodes":[{"id":"1","data":{"label":"hi"}}],"edges":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	n, _ := d.Node("1")
	if n.Type != TypeText || n.Label() != "hi" {
		t.Errorf("node = %+v", n)
	}
	if d.Settings.EdgeType != EdgeDefault {
		t.Errorf("edge type default = %q", d.Settings.EdgeType)
	}
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	d := sampleDocument(t)
	if err := WriteFile(d, path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.NodeCount() != 4 || got.EdgeCount() != 3 {
		t.Errorf("got %d nodes %d edges", got.NodeCount(), got.EdgeCount())
	}
}

func TestReadFileNotFound(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error")
	}
}
