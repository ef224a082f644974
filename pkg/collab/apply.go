package collab

import (
	"encoding/json"
	"errors"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Result is the outcome of applying a remote event.
type Result int

// Results of [Apply]. Only ResultApplied changes the document.
const (
	ResultApplied   Result = iota // the document changed
	ResultEcho                    // the event came from the local user
	ResultDuplicate               // a create for an existing id
	ResultMissing                 // the referent no longer exists
	ResultRejected                // the event would break a document invariant
)

func (r Result) String() string {
	switch r {
	case ResultApplied:
		return "applied"
	case ResultEcho:
		return "echo"
	case ResultDuplicate:
		return "duplicate"
	case ResultMissing:
		return "missing"
	case ResultRejected:
		return "rejected"
	}
	return "unknown"
}

// Apply merges a collaborator's event into d. The returned error is non-nil
// only when the event or its payload is malformed, in which case the result
// is ResultRejected and d is unchanged.
//
// Apply never touches history: remote changes are not undoable locally.
func Apply(d *graph.Document, ev Event, localUser string) (Result, error) {
	if ev.UserID == localUser {
		return ResultEcho, nil
	}
	if err := ev.Validate(); err != nil {
		return ResultRejected, err
	}

	switch ev.Type {
	case EntityNode:
		return applyNode(d, ev)
	case EntityEdge:
		return applyEdge(d, ev)
	case EntityDocument:
		return applyDocument(d, ev)
	}
	return ResultRejected, apperr.New(apperr.ErrCodeInvalidEvent, "unknown entity type %q", ev.Type)
}

func applyNode(d *graph.Document, ev Event) (Result, error) {
	if ev.Action == ActionDelete {
		if _, err := d.RemoveNode(ev.ID); err != nil {
			return resultOf(err), nil
		}
		return ResultApplied, nil
	}

	var n graph.Node
	if err := json.Unmarshal(ev.Data, &n); err != nil {
		return ResultRejected, apperr.Wrap(apperr.ErrCodeInvalidEvent, err, "node %s payload", ev.ID)
	}
	if n.ID == "" {
		n.ID = ev.ID
	}
	if n.ID != ev.ID {
		return ResultRejected, apperr.New(apperr.ErrCodeInvalidEvent, "node payload id %q does not match event id %q", n.ID, ev.ID)
	}

	switch ev.Action {
	case ActionCreate:
		if d.HasNode(n.ID) {
			return ResultDuplicate, nil
		}
		n.Selected = false
		if err := d.AddNode(n); err != nil {
			return ResultRejected, apperr.Wrap(apperr.ErrCodeInvalidEvent, err, "create node %s", n.ID)
		}
	case ActionUpdate:
		cur, ok := d.Node(n.ID)
		if !ok {
			return ResultMissing, nil
		}
		n.Selected = cur.Selected
		if err := d.ReplaceNode(n); err != nil {
			return ResultRejected, apperr.Wrap(apperr.ErrCodeInvalidEvent, err, "update node %s", n.ID)
		}
	}
	return ResultApplied, nil
}

func applyEdge(d *graph.Document, ev Event) (Result, error) {
	if ev.Action == ActionDelete {
		if _, err := d.RemoveEdge(ev.ID); err != nil {
			return ResultMissing, nil
		}
		return ResultApplied, nil
	}

	var e graph.Edge
	if err := json.Unmarshal(ev.Data, &e); err != nil {
		return ResultRejected, apperr.Wrap(apperr.ErrCodeInvalidEvent, err, "edge %s payload", ev.ID)
	}
	if e.ID == "" {
		e.ID = ev.ID
	}
	if e.ID != ev.ID {
		return ResultRejected, apperr.New(apperr.ErrCodeInvalidEvent, "edge payload id %q does not match event id %q", e.ID, ev.ID)
	}

	var err error
	switch ev.Action {
	case ActionCreate:
		if _, exists := d.Edge(e.ID); exists {
			return ResultDuplicate, nil
		}
		err = d.AddEdge(e)
	case ActionUpdate:
		err = d.ReplaceEdge(e)
	}
	if err != nil {
		return resultOf(err), nil
	}
	return ResultApplied, nil
}

func applyDocument(d *graph.Document, ev Event) (Result, error) {
	var data DocumentData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return ResultRejected, apperr.Wrap(apperr.ErrCodeInvalidEvent, err, "document payload")
	}
	if data.Settings.EdgeType != "" && !data.Settings.EdgeType.Valid() {
		return ResultRejected, apperr.New(apperr.ErrCodeInvalidEvent, "unknown edge type %q", data.Settings.EdgeType)
	}
	d.Title = data.Title
	if data.Settings.EdgeType == "" {
		data.Settings.EdgeType = d.Settings.EdgeType
	}
	d.Settings = data.Settings
	return ResultApplied, nil
}

// resultOf maps a structural error from the graph model to a result.
func resultOf(err error) Result {
	switch {
	case errors.Is(err, graph.ErrUnknownNode),
		errors.Is(err, graph.ErrUnknownEdge),
		errors.Is(err, graph.ErrUnknownSourceNode),
		errors.Is(err, graph.ErrUnknownTargetNode):
		return ResultMissing
	case errors.Is(err, graph.ErrDuplicateEdgeID):
		return ResultDuplicate
	}
	return ResultRejected
}
