// Package filestore persists documents as JSON files in a directory.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

// Store keeps one <id>.json file per document under a base directory.
type Store struct {
	mu      sync.RWMutex
	baseDir string
	now     func() time.Time
}

var (
	_ storage.Persister = (*Store)(nil)
	_ storage.Lister    = (*Store)(nil)
)

// New creates a store rooted at baseDir, creating the directory if needed.
// If baseDir is empty, defaults to ~/.local/share/mindcanvas/documents.
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".local", "share", "mindcanvas", "documents")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "create document dir")
	}
	return &Store{baseDir: baseDir, now: time.Now}, nil
}

// Path returns the base directory.
func (s *Store) Path() string { return s.baseDir }

func (s *Store) docPath(docID string) (string, error) {
	if err := apperr.ValidateDocumentID(docID); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, docID+".json"), nil
}

// Save writes the record atomically: a temp file in the same directory is
// renamed over the previous version.
func (s *Store) Save(ctx context.Context, r storage.Record) error {
	path, err := s.docPath(r.DocumentID)
	if err != nil {
		return err
	}
	r.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "marshal document %s", r.DocumentID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.baseDir, "."+r.DocumentID+"-*.tmp")
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.Wrap(apperr.ErrCodeStorage, err, "write document %s", r.DocumentID)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "replace document %s", r.DocumentID)
	}
	return nil
}

// Load reads the record with the given id.
func (s *Store) Load(ctx context.Context, docID string) (storage.Record, error) {
	path, err := s.docPath(docID)
	if err != nil {
		return storage.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.Record{}, apperr.Wrap(apperr.ErrCodeNotFound, storage.ErrNotFound, "document %s", docID)
		}
		return storage.Record{}, apperr.Wrap(apperr.ErrCodeStorage, err, "read document %s", docID)
	}
	var r storage.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return storage.Record{}, apperr.Wrap(apperr.ErrCodeStorage, err, "parse document %s", docID)
	}
	if r.DocumentID == "" {
		r.DocumentID = docID
	}
	return r, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, docID string) error {
	path, err := s.docPath(docID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "remove document %s", docID)
	}
	return nil
}

// List returns a summary of every stored document, most recently updated
// first. Unreadable files are skipped.
func (s *Store) List(ctx context.Context) ([]storage.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "read document dir")
	}

	var out []storage.Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, name))
		if err != nil {
			continue
		}
		var sum storage.Summary
		if err := json.Unmarshal(data, &sum); err != nil {
			continue
		}
		if sum.DocumentID == "" {
			sum.DocumentID = strings.TrimSuffix(name, ".json")
		}
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b storage.Summary) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}
