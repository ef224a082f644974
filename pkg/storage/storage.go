// Package storage defines the persistence collaborator of the editor.
//
// The editor hands a [Record] to a [Persister] on an explicit save or a
// timed autosave and, on success, moves its history watermark. Backends live
// in subpackages: filestore (JSON files) and mongostore (MongoDB).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/observability"
)

// ErrNotFound is returned by Load when no document has the given id.
var ErrNotFound = errors.New("document not found")

// Record is the persisted form of a document.
type Record struct {
	DocumentID string         `json:"document_id"`
	Title      string         `json:"title"`
	UserID     string         `json:"user_id"`
	Nodes      []graph.Node   `json:"nodes"`
	Edges      []graph.Edge   `json:"edges"`
	Settings   graph.Settings `json:"settings"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// RecordOf captures d as a record. Selection flags are cleared.
func RecordOf(docID, userID string, d *graph.Document) Record {
	s := d.Snapshot()
	for i := range s.Nodes {
		s.Nodes[i].Selected = false
	}
	return Record{
		DocumentID: docID,
		Title:      s.Title,
		UserID:     userID,
		Nodes:      s.Nodes,
		Edges:      s.Edges,
		Settings:   s.Settings,
	}
}

// Snapshot returns the document state held by the record.
func (r Record) Snapshot() graph.Snapshot {
	return graph.Snapshot{Title: r.Title, Settings: r.Settings, Nodes: r.Nodes, Edges: r.Edges}
}

// Document rebuilds the document, failing on the first invalid node or edge.
func (r Record) Document() (*graph.Document, error) {
	return graph.FromSnapshot(r.Snapshot())
}

// Persister saves and loads documents.
type Persister interface {
	// Save stores the record, replacing any previous version. Backends set
	// UpdatedAt.
	Save(ctx context.Context, r Record) error
	// Load returns the record with the given id or an error wrapping
	// ErrNotFound.
	Load(ctx context.Context, docID string) (Record, error)
}

// Summary describes a stored document without its contents.
type Summary struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Lister is implemented by backends that can enumerate documents.
type Lister interface {
	List(ctx context.Context) ([]Summary, error)
}

// Instrument wraps p so every call reports to the registered storage hooks
// under the given backend name.
func Instrument(p Persister, backend string) Persister {
	return instrumented{p: p, backend: backend}
}

type instrumented struct {
	p       Persister
	backend string
}

func (i instrumented) Save(ctx context.Context, r Record) error {
	start := time.Now()
	err := i.p.Save(ctx, r)
	observability.Storage().OnSave(ctx, i.backend, time.Since(start), err)
	return err
}

func (i instrumented) Load(ctx context.Context, docID string) (Record, error) {
	start := time.Now()
	r, err := i.p.Load(ctx, docID)
	observability.Storage().OnLoad(ctx, i.backend, time.Since(start), err)
	return r, err
}

// List forwards to the wrapped backend when it implements Lister.
func (i instrumented) List(ctx context.Context) ([]Summary, error) {
	if l, ok := i.p.(Lister); ok {
		return l.List(ctx)
	}
	return nil, errors.ErrUnsupported
}
