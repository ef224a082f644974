package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

func sampleRecord(t *testing.T, id string) storage.Record {
	t.Helper()
	d := graph.NewWithRoot("Plan " + id)
	n := graph.NewNode("2", graph.TypeAudio, graph.Position{X: 20, Y: 160})
	n.Data = graph.AudioData{AudioURL: "https://a/b.mp3", Label: "intro"}
	require.NoError(t, d.AddNode(n))
	require.NoError(t, d.AddEdge(graph.Edge{Source: graph.RootID, Target: "2"}))
	d.SetSelected("2", true)
	return storage.RecordOf(id, "alice", d)
}

func TestSaveLoad(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	rec := sampleRecord(t, "plan")
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "plan")
	require.NoError(t, err)
	assert.Equal(t, fixed, got.UpdatedAt)
	assert.Equal(t, "alice", got.UserID)
	assert.True(t, got.Snapshot().Equal(rec.Snapshot()))
	assert.False(t, got.Nodes[1].Selected, "selection is not persisted")

	doc, err := got.Document()
	require.NoError(t, err)
	assert.Equal(t, 2, doc.NodeCount())
}

func TestSaveOverwrites(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	rec := sampleRecord(t, "plan")
	require.NoError(t, s.Save(ctx, rec))
	rec.Title = "Second"
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "plan")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)

	entries, err := os.ReadDir(s.Path())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestLoadMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.True(t, apperr.Is(err, apperr.ErrCodeNotFound))
}

func TestRejectsUnsafeIDs(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		rec := sampleRecord(t, "x")
		rec.DocumentID = id
		assert.Error(t, s.Save(ctx, rec), "id %q", id)
		_, err := s.Load(ctx, id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestListAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	require.NoError(t, s.Save(ctx, sampleRecord(t, "old")))
	require.NoError(t, s.Save(ctx, sampleRecord(t, "new")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("{"), 0o600))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].DocumentID)
	assert.Equal(t, "Plan new", list[0].Title)

	require.NoError(t, s.Delete(ctx, "old"))
	require.NoError(t, s.Delete(ctx, "old"))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInstrumentedForwards(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	p := storage.Instrument(s, "file")
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, sampleRecord(t, "doc")))
	_, err = p.Load(ctx, "doc")
	require.NoError(t, err)

	list, err := p.(storage.Lister).List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
