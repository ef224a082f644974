// Package config loads and saves the mindcanvas configuration file.
//
// The file lives at $XDG_CONFIG_HOME/mindcanvas/config.toml (falling back to
// ~/.config). A missing file means defaults; command-line flags override
// whatever the file sets.
package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/layout"
)

const appName = "mindcanvas"

// Collaboration transports.
const (
	TransportNone      = "none"
	TransportRedis     = "redis"
	TransportNATS      = "nats"
	TransportWebsocket = "websocket"
)

// Storage backends.
const (
	BackendFile  = "file"
	BackendMongo = "mongo"
)

// Config is the whole configuration file.
type Config struct {
	Editor  EditorConfig   `toml:"editor"`
	Layout  layout.Options `toml:"layout"`
	Collab  CollabConfig   `toml:"collab"`
	Storage StorageConfig  `toml:"storage"`
	Relay   RelayConfig    `toml:"relay"`
}

// EditorConfig controls the interactive editor.
type EditorConfig struct {
	// UserID identifies this editor to collaborators. Generated by
	// "config init" when empty.
	UserID       string   `toml:"user_id" validate:"max=256"`
	Autosave     Duration `toml:"autosave"`
	LiveDrag     bool     `toml:"live_drag"`
	HistoryLimit int      `toml:"history_limit" validate:"gte=0"`
}

// CollabConfig selects the channel collaborators share events over.
type CollabConfig struct {
	Transport string `toml:"transport" validate:"oneof=none redis nats websocket"`
	Prefix    string `toml:"prefix"`
	RedisURL  string `toml:"redis_url" validate:"required_if=Transport redis"`
	NATSURL   string `toml:"nats_url" validate:"required_if=Transport nats"`
	RelayURL  string `toml:"relay_url" validate:"required_if=Transport websocket"`
}

// StorageConfig selects where documents are saved.
type StorageConfig struct {
	Backend         string   `toml:"backend" validate:"oneof=file mongo"`
	Dir             string   `toml:"dir"`
	MongoURI        string   `toml:"mongo_uri" validate:"required_if=Backend mongo"`
	MongoDatabase   string   `toml:"mongo_database"`
	MongoCollection string   `toml:"mongo_collection"`
	Timeout         Duration `toml:"timeout"`
}

// RelayConfig configures "mindcanvas relay".
type RelayConfig struct {
	Addr           string   `toml:"addr" validate:"required,hostname_port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	Metrics        bool     `toml:"metrics"`
	// Bridge connects relay instances through the collab transport. Only
	// redis and nats make sense here.
	Bridge     string `toml:"bridge" validate:"oneof=none redis nats"`
	SendBuffer int    `toml:"send_buffer" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			Autosave:     Duration(30 * time.Second),
			HistoryLimit: 500,
		},
		Layout: layout.DefaultOptions(),
		Collab: CollabConfig{
			Transport: TransportNone,
			Prefix:    appName,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Timeout: Duration(10 * time.Second),
		},
		Relay: RelayConfig{
			Addr:    "127.0.0.1:8470",
			Metrics: true,
			Bridge:  TransportNone,
		},
	}
}

// Dir returns the configuration directory.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName)
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the file at path over the defaults. An empty path means
// [Path]. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory. An empty path means
// [Path].
func Save(cfg *Config, path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "create config directory")
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "write %s", path)
	}
	return nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "encode config")
	}
	return buf.Bytes(), nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field values and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "invalid configuration")
	}
	if c.Layout.NodeSpacing < 0 || c.Layout.SubtreeSpacing < 0 || c.Layout.LevelSpacing < 0 || c.Layout.ParentGap < 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "layout spacing cannot be negative")
	}
	if c.Layout.Grid < 0 || c.Layout.MaxDepth < 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "layout grid and max_depth cannot be negative")
	}
	if c.Editor.Autosave < 0 || c.Storage.Timeout < 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "durations cannot be negative")
	}
	return nil
}

// EnsureUserID assigns a random user id when none is set and reports
// whether it did.
func (c *Config) EnsureUserID() bool {
	if c.Editor.UserID != "" {
		return false
	}
	c.Editor.UserID = uuid.NewString()
	return true
}

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
