// Package mongostore persists documents in a MongoDB collection.
//
// Each document is one BSON record keyed by its id. Nodes are stored as
// embedded documents converted from their JSON wire form, so the polymorphic
// payload round-trips without a per-type BSON codec.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultDatabase   = "mindcanvas"
	DefaultCollection = "documents"
)

// collection is the subset of *mongo.Collection the store uses.
type collection interface {
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// Options configure [Dial].
type Options struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store is a MongoDB-backed [storage.Persister].
type Store struct {
	coll   collection
	client *mongo.Client
	now    func() time.Time
}

var (
	_ storage.Persister = (*Store)(nil)
	_ storage.Lister    = (*Store)(nil)
)

// Dial connects to MongoDB and verifies the connection with a ping.
func Dial(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "mongodb uri is required")
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI).SetTimeout(opts.Timeout))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "ping mongodb")
	}

	s := New(client.Database(opts.Database).Collection(opts.Collection))
	s.client = client
	return s, nil
}

// New wraps an existing collection.
func New(coll *mongo.Collection) *Store {
	return newStore(coll)
}

func newStore(coll collection) *Store {
	return &Store{coll: coll, now: time.Now}
}

// Close disconnects the client opened by [Dial]. It is a no-op for stores
// created with [New].
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// record is the BSON form of storage.Record.
type record struct {
	ID        string         `bson:"_id"`
	Title     string         `bson:"title"`
	UserID    string         `bson:"user_id,omitempty"`
	Nodes     []bson.Raw     `bson:"nodes"`
	Edges     []graph.Edge   `bson:"edges"`
	Settings  graph.Settings `bson:"settings"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

// Save upserts the record.
func (s *Store) Save(ctx context.Context, r storage.Record) error {
	if err := apperr.ValidateDocumentID(r.DocumentID); err != nil {
		return err
	}
	r.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	doc, err := toBSON(r)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "encode document %s", r.DocumentID)
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": r.DocumentID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "save document %s", r.DocumentID)
	}
	return nil
}

// Load fetches the record with the given id.
func (s *Store) Load(ctx context.Context, docID string) (storage.Record, error) {
	if err := apperr.ValidateDocumentID(docID); err != nil {
		return storage.Record{}, err
	}
	var doc record
	if err := s.coll.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return storage.Record{}, apperr.Wrap(apperr.ErrCodeNotFound, storage.ErrNotFound, "document %s", docID)
		}
		return storage.Record{}, apperr.Wrap(apperr.ErrCodeStorage, err, "load document %s", docID)
	}
	r, err := fromBSON(doc)
	if err != nil {
		return storage.Record{}, apperr.Wrap(apperr.ErrCodeStorage, err, "decode document %s", docID)
	}
	return r, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": docID}); err != nil {
		return apperr.Wrap(apperr.ErrCodeStorage, err, "delete document %s", docID)
	}
	return nil
}

// List returns document summaries, most recently updated first.
func (s *Store) List(ctx context.Context) ([]storage.Summary, error) {
	opts := options.Find().
		SetProjection(bson.M{"title": 1, "updated_at": 1}).
		SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "list documents")
	}
	var rows []struct {
		ID        string    `bson:"_id"`
		Title     string    `bson:"title"`
		UpdatedAt time.Time `bson:"updated_at"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "list documents")
	}
	out := make([]storage.Summary, len(rows))
	for i, row := range rows {
		out[i] = storage.Summary{DocumentID: row.ID, Title: row.Title, UpdatedAt: row.UpdatedAt}
	}
	return out, nil
}

func toBSON(r storage.Record) (record, error) {
	nodes := make([]bson.Raw, len(r.Nodes))
	for i, n := range r.Nodes {
		raw, err := nodeToBSON(n)
		if err != nil {
			return record{}, err
		}
		nodes[i] = raw
	}
	return record{
		ID:        r.DocumentID,
		Title:     r.Title,
		UserID:    r.UserID,
		Nodes:     nodes,
		Edges:     r.Edges,
		Settings:  r.Settings,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func fromBSON(doc record) (storage.Record, error) {
	nodes := make([]graph.Node, len(doc.Nodes))
	for i, raw := range doc.Nodes {
		n, err := nodeFromBSON(raw)
		if err != nil {
			return storage.Record{}, err
		}
		nodes[i] = n
	}
	edges := doc.Edges
	if edges == nil {
		edges = []graph.Edge{}
	}
	return storage.Record{
		DocumentID: doc.ID,
		Title:      doc.Title,
		UserID:     doc.UserID,
		Nodes:      nodes,
		Edges:      edges,
		Settings:   doc.Settings,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

func nodeToBSON(n graph.Node) (bson.Raw, error) {
	n.Selected = false
	js, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(js, false, &d); err != nil {
		return nil, fmt.Errorf("node %s: %w", n.ID, err)
	}
	return bson.Marshal(d)
}

func nodeFromBSON(raw bson.Raw) (graph.Node, error) {
	js, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return graph.Node{}, err
	}
	var n graph.Node
	if err := json.Unmarshal(js, &n); err != nil {
		return graph.Node{}, err
	}
	return n, nil
}
