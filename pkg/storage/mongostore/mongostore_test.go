package mongostore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

// fakeCollection keeps raw BSON documents keyed by _id.
type fakeCollection struct {
	mu      sync.Mutex
	order   []string
	docs    map[string]bson.Raw
	upserts int
	failing error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]bson.Raw)}
}

func idOf(filter any) string {
	id, _ := filter.(bson.M)["_id"].(string)
	return id
}

func (f *fakeCollection) ReplaceOne(_ context.Context, filter, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	if f.failing != nil {
		return nil, f.failing
	}
	raw, err := bson.Marshal(replacement)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := idOf(filter)
	if _, ok := f.docs[id]; !ok {
		f.order = append(f.order, id)
		f.upserts++
	}
	f.docs[id] = raw
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (f *fakeCollection) FindOne(_ context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.docs[idOf(filter)]
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(raw, nil, nil)
}

func (f *fakeCollection) Find(_ context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := make([]any, 0, len(f.order))
	for _, id := range f.order {
		docs = append(docs, f.docs[id])
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (f *fakeCollection) DeleteOne(_ context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := idOf(filter)
	if _, ok := f.docs[id]; !ok {
		return &mongo.DeleteResult{}, nil
	}
	delete(f.docs, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func sampleRecord(t *testing.T, id string) storage.Record {
	t.Helper()
	d := graph.NewWithRoot("Trip")
	w := 320.5
	img := graph.NewNode("2", graph.TypeImage, graph.Position{X: -40, Y: 180})
	img.Data = graph.ImageData{ImageURL: "https://img/x.png", Caption: "view"}
	img.Width = &w
	img.Style.Background = "#ffeeaa"
	list := graph.NewNode("3", graph.TypePlaylist, graph.Position{X: 300, Y: 180})
	list.Data = graph.PlaylistData{Label: "songs", Items: []graph.PlaylistItem{{Title: "a", MediaURL: "https://m/a"}}}
	require.NoError(t, d.AddNode(img))
	require.NoError(t, d.AddNode(list))
	require.NoError(t, d.AddEdge(graph.Edge{Source: graph.RootID, Target: "2"}))
	require.NoError(t, d.AddEdge(graph.Edge{Source: graph.RootID, Target: "3", Type: graph.EdgeStep}))
	d.Settings.DotColor = "#000000"
	return storage.RecordOf(id, "bob", d)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	coll := newFakeCollection()
	s := newStore(coll)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	rec := sampleRecord(t, "trip")
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, "trip", got.DocumentID)
	assert.Equal(t, "bob", got.UserID)
	assert.True(t, fixed.Equal(got.UpdatedAt))
	assert.True(t, got.Snapshot().Equal(rec.Snapshot()), "snapshot survives BSON round trip")

	img, ok := got.Snapshot().Node("2")
	require.True(t, ok)
	require.NotNil(t, img.Width)
	assert.InDelta(t, 320.5, *img.Width, 1e-9)
}

func TestSaveUpserts(t *testing.T) {
	coll := newFakeCollection()
	s := newStore(coll)
	ctx := context.Background()

	rec := sampleRecord(t, "trip")
	require.NoError(t, s.Save(ctx, rec))
	rec.Title = "Renamed"
	require.NoError(t, s.Save(ctx, rec))

	assert.Equal(t, 1, coll.upserts)
	got, err := s.Load(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
}

func TestLoadMissing(t *testing.T) {
	s := newStore(newFakeCollection())
	_, err := s.Load(context.Background(), "ghost")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.True(t, apperr.Is(err, apperr.ErrCodeNotFound))
}

func TestSaveErrors(t *testing.T) {
	coll := newFakeCollection()
	s := newStore(coll)
	ctx := context.Background()

	rec := sampleRecord(t, "../x")
	assert.True(t, apperr.Is(s.Save(ctx, rec), apperr.ErrCodeInvalidPath))

	coll.failing = errors.New("server selection timeout")
	err := s.Save(ctx, sampleRecord(t, "ok"))
	assert.True(t, apperr.Is(err, apperr.ErrCodeStorage))
}

func TestListAndDelete(t *testing.T) {
	s := newStore(newFakeCollection())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleRecord(t, "a")))
	require.NoError(t, s.Save(ctx, sampleRecord(t, "b")))

	list, err := s.List(ctx)
	require.NoError(t, err)
	ids := []string{}
	for _, sum := range list {
		ids = append(ids, sum.DocumentID)
		assert.Equal(t, "Trip", sum.Title)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDialRequiresURI(t *testing.T) {
	_, err := Dial(context.Background(), Options{})
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidConfig))
}

func TestCloseWithoutClient(t *testing.T) {
	assert.NoError(t, newStore(newFakeCollection()).Close(context.Background()))
}
