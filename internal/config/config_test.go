package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/layout"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Collab.Transport != TransportNone {
		t.Errorf("transport = %q, want none", cfg.Collab.Transport)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("backend = %q, want file", cfg.Storage.Backend)
	}
	if cfg.Editor.Autosave.D() != 30*time.Second {
		t.Errorf("autosave = %v, want 30s", cfg.Editor.Autosave.D())
	}
	if cfg.Layout != layout.DefaultOptions() {
		t.Errorf("layout = %+v, want defaults", cfg.Layout)
	}
}

func TestDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg")
	if got := Dir(); got != "/tmp/test-xdg/mindcanvas" {
		t.Errorf("Dir() = %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, _ := os.UserHomeDir()
	if got, want := Dir(), filepath.Join(home, ".config", "mindcanvas"); got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Relay.Addr != Default().Relay.Addr {
		t.Errorf("addr = %q", cfg.Relay.Addr)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Editor.UserID = "alice"
	cfg.Editor.Autosave = Duration(2 * time.Minute)
	cfg.Layout.LevelSpacing = 160
	cfg.Collab.Transport = TransportRedis
	cfg.Collab.RedisURL = "redis://localhost:6379/0"
	cfg.Relay.AllowedOrigins = []string{"https://mind.example"}
	if err := Save(cfg, ""); err != nil {
		t.Fatal(err)
	}

	got, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got.Editor.UserID != "alice" || got.Editor.Autosave.D() != 2*time.Minute {
		t.Errorf("editor = %+v", got.Editor)
	}
	if got.Layout.LevelSpacing != 160 {
		t.Errorf("level spacing = %v", got.Layout.LevelSpacing)
	}
	if got.Collab.RedisURL != cfg.Collab.RedisURL {
		t.Errorf("redis url = %q", got.Collab.RedisURL)
	}
	if len(got.Relay.AllowedOrigins) != 1 {
		t.Errorf("origins = %v", got.Relay.AllowedOrigins)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[layout]\ngrid = 10\n\n[editor]\nautosave = \"5s\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Layout.Grid != 10 {
		t.Errorf("grid = %v, want 10", cfg.Layout.Grid)
	}
	if cfg.Layout.NodeSpacing != layout.DefaultOptions().NodeSpacing {
		t.Errorf("node spacing = %v, want default", cfg.Layout.NodeSpacing)
	}
	if cfg.Editor.Autosave.D() != 5*time.Second {
		t.Errorf("autosave = %v, want 5s", cfg.Editor.Autosave.D())
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "[editor\n"},
		{"duration", "[editor]\nautosave = \"soon\"\n"},
		{"transport", "[collab]\ntransport = \"carrier-pigeon\"\n"},
		{"missing redis url", "[collab]\ntransport = \"redis\"\n"},
		{"missing mongo uri", "[storage]\nbackend = \"mongo\"\n"},
		{"bad addr", "[relay]\naddr = \"nowhere\"\n"},
		{"negative spacing", "[layout]\nlevel_spacing = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
				t.Errorf("Load() err = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestEncodeWritesDurationsAsStrings(t *testing.T) {
	data, err := Default().Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `autosave = "30s"`) {
		t.Errorf("encoded config:\n%s", data)
	}
}

func TestEnsureUserID(t *testing.T) {
	cfg := Default()
	if !cfg.EnsureUserID() || cfg.Editor.UserID == "" {
		t.Fatal("EnsureUserID should assign an id")
	}
	id := cfg.Editor.UserID
	if cfg.EnsureUserID() || cfg.Editor.UserID != id {
		t.Error("EnsureUserID should keep an existing id")
	}
}
