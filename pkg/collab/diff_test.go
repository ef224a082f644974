package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mindcanvas/pkg/graph"
)

func TestDiffReplaysOnPeer(t *testing.T) {
	mine := newDoc(t)
	peer := mine.Clone()
	before := mine.Snapshot()

	require.NoError(t, mine.AddNode(graph.NewNode("3", graph.TypeImage, graph.Position{X: 200, Y: 320})))
	require.NoError(t, mine.AddEdge(graph.Edge{Source: "2", Target: "3"}))
	require.NoError(t, mine.SetPosition("2", graph.Position{X: -100, Y: 160}))
	_, err := mine.RemoveEdge(graph.EdgeID(graph.RootID, "2"))
	require.NoError(t, err)
	mine.Settings.BackgroundColor = "#fafafa"

	events := Diff("doc", before, mine.Snapshot(), local)
	for _, ev := range events {
		res, err := Apply(peer, ev, remote)
		require.NoError(t, err)
		require.Equal(t, ResultApplied, res, "event %s %s %s", ev.Type, ev.Action, ev.ID)
	}
	assert.True(t, peer.Snapshot().Equal(mine.Snapshot()))
}

func TestDiffOrdering(t *testing.T) {
	d := newDoc(t)
	before := d.Snapshot()
	_, err := d.RemoveNode("2")
	require.NoError(t, err)
	require.NoError(t, d.AddNode(graph.NewNode("4", graph.TypeText, graph.Position{})))
	require.NoError(t, d.AddEdge(graph.Edge{Source: graph.RootID, Target: "4"}))

	events := Diff("doc", before, d.Snapshot(), local)
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, string(ev.Type)+":"+string(ev.Action))
	}
	assert.Equal(t, []string{"node:create", "edge:create", "edge:delete", "node:delete"}, kinds)
}

func TestDiffIgnoresSelection(t *testing.T) {
	d := newDoc(t)
	before := d.Snapshot()
	d.SetSelected("2", true)
	assert.Empty(t, Diff("doc", before, d.Snapshot(), local))
}
