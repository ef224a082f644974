package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
)

// Cache stores rendered output keyed by a hash of its inputs. Rendering a
// large map with Graphviz or rsvg-convert is slow; the inputs change far
// less often than exports run.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Key hashes the format, the source and any extra parameters (scale,
// layout mode) into a cache key.
func Key(format Format, source []byte, extra ...string) string {
	h := sha256.New()
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write(source)
	for _, e := range extra {
		h.Write([]byte{0})
		h.Write([]byte(e))
	}
	return string(format) + "-" + hex.EncodeToString(h.Sum(nil))
}

// Cached returns the entry for key when present, and otherwise runs fn and
// stores its output. Cache failures are not fatal: fn's result is returned
// either way.
func Cached(ctx context.Context, c Cache, key string, fn func() ([]byte, error)) ([]byte, error) {
	if c == nil {
		return fn()
	}
	if data, ok, err := c.Get(ctx, key); err == nil && ok {
		return data, nil
	}
	data, err := fn()
	if err != nil {
		return nil, err
	}
	_ = c.Set(ctx, key, data)
	return data, nil
}

// FileCache keeps entries as files under a directory. Entries older than
// the TTL are misses; a zero TTL keeps them forever.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFileCache creates the directory if needed.
func NewFileCache(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidPath, err, "create cache directory")
	}
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// DefaultCacheDir is the per-user render cache directory.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "mindcanvas", "render")
	}
	return filepath.Join(os.TempDir(), "mindcanvas-render")
}

// Get returns the entry for key. Expired entries are removed.
func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if c.ttl > 0 && c.now().Sub(info.ModTime()) > c.ttl {
		_ = os.Remove(path)
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set writes the entry through a temporary file so readers never see a
// partial one.
func (c *FileCache) Set(_ context.Context, key string, data []byte) error {
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// path spreads entries over subdirectories by the first two hash digits.
func (c *FileCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, h[:2], h[2:])
}

var _ Cache = (*FileCache)(nil)
