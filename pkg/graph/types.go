package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// RootID is the id of the root node of every document.
const RootID = "1"

// Handle ids. The bottom anchor plays the "source" role and the top anchor the
// "target" role; custom anchors follow the "<side>-source"/"<side>-target"
// naming convention.
const (
	HandleBottomSource = "bottom-source"
	HandleTopTarget    = "top-target"

	sourceHandleSuffix = "-source"
)

// EdgeType is the visual routing of an edge. It is orthogonal to the graph
// semantics.
type EdgeType string

// Edge routing types.
const (
	EdgeDefault    EdgeType = "default"
	EdgeStraight   EdgeType = "straight"
	EdgeStep       EdgeType = "step"
	EdgeSmoothStep EdgeType = "smoothstep"
	EdgeBezier     EdgeType = "bezier"
)

// Valid reports whether t is a known routing type.
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeDefault, EdgeStraight, EdgeStep, EdgeSmoothStep, EdgeBezier:
		return true
	}
	return false
}

// Position is a point in canvas (world) coordinates.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position { return Position{X: p.X + d.X, Y: p.Y + d.Y} }

// Sub returns the vector from q to p.
func (p Position) Sub(q Position) Position { return Position{X: p.X - q.X, Y: p.Y - q.Y} }

// Distance returns the euclidean distance between p and q.
func (p Position) Distance(q Position) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Style holds the presentational attributes of a node.
type Style struct {
	// Background is a CSS color. Empty means inherit from the document.
	Background string `json:"background,omitempty" bson:"background,omitempty"`
}

// Node is a positioned, typed vertex of the mind map.
//
// Width and Height are optional explicit overrides of the intrinsic size of
// the node type. Selected is a transient UI flag; it is ignored by
// [Snapshot.Equal].
type Node struct {
	ID       string
	Type     NodeType
	Position Position
	Width    *float64
	Height   *float64
	Data     Payload
	Style    Style
	Selected bool
}

// NewNode creates a node of type t with the zero payload for that type.
func NewNode(id string, t NodeType, pos Position) Node {
	return Node{ID: id, Type: t, Position: pos, Data: EmptyPayload(t)}
}

// Size returns the effective size of the node: explicit override first, the
// intrinsic size of its type otherwise.
func (n Node) Size() (w, h float64) {
	w, h = DefaultSize(n.Type)
	if n.Width != nil {
		w = *n.Width
	}
	if n.Height != nil {
		h = *n.Height
	}
	return w, h
}

// Center returns the center point of the node's bounding box.
func (n Node) Center() Position {
	w, h := n.Size()
	return Position{X: n.Position.X + w/2, Y: n.Position.Y + h/2}
}

// Label returns the payload title, or the id when the payload has none.
func (n Node) Label() string {
	if n.Data != nil {
		if t := n.Data.Title(); t != "" {
			return t
		}
	}
	return n.ID
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	c := n
	if n.Width != nil {
		w := *n.Width
		c.Width = &w
	}
	if n.Height != nil {
		h := *n.Height
		c.Height = &h
	}
	c.Data = ClonePayload(n.Data)
	return c
}

// nodeJSON is the wire form of Node.
type nodeJSON struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Position Position        `json:"position"`
	Width    *float64        `json:"width,omitempty"`
	Height   *float64        `json:"height,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Style    Style           `json:"style,omitempty"`
	Selected bool            `json:"selected,omitempty"`
}

// MarshalJSON encodes the node with its payload under "data".
func (n Node) MarshalJSON() ([]byte, error) {
	var data json.RawMessage
	if n.Data != nil {
		if n.Data.NodeType() != n.Type {
			return nil, fmt.Errorf("node %s: payload %s does not match type %s", n.ID, n.Data.NodeType(), n.Type)
		}
		b, err := json.Marshal(n.Data)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(nodeJSON{
		ID:       n.ID,
		Type:     n.Type,
		Position: n.Position,
		Width:    n.Width,
		Height:   n.Height,
		Data:     data,
		Style:    n.Style,
		Selected: n.Selected,
	})
}

// UnmarshalJSON decodes a node, dispatching the payload on its type.
// A missing type defaults to text.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		raw.Type = TypeText
	}
	payload, err := DecodePayload(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}
	*n = Node{
		ID:       raw.ID,
		Type:     raw.Type,
		Position: raw.Position,
		Width:    raw.Width,
		Height:   raw.Height,
		Data:     payload,
		Style:    raw.Style,
		Selected: raw.Selected,
	}
	return nil
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string   `json:"id" bson:"id"`
	Source       string   `json:"source" bson:"source"`
	Target       string   `json:"target" bson:"target"`
	SourceHandle string   `json:"sourceHandle,omitempty" bson:"source_handle,omitempty"`
	TargetHandle string   `json:"targetHandle,omitempty" bson:"target_handle,omitempty"`
	Type         EdgeType `json:"type,omitempty" bson:"type,omitempty"`
}

// Touches reports whether the edge has id as either endpoint.
func (e Edge) Touches(id string) bool { return e.Source == id || e.Target == id }

// EdgeID derives the deterministic id of the edge source→target.
func EdgeID(source, target string) string {
	return "e" + source + "-" + target
}

// NewEdgeID returns a random edge id for edges that must not collide with a
// derived one.
func NewEdgeID() string {
	return "e-" + uuid.NewString()
}

// IsSourceHandle reports whether h names an anchor in the "source" role.
func IsSourceHandle(h string) bool { return strings.HasSuffix(h, sourceHandleSuffix) }

// Settings are the document-level display attributes.
type Settings struct {
	EdgeType        EdgeType `json:"edgeType,omitempty" bson:"edge_type,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty" bson:"background_color,omitempty"`
	DotColor        string   `json:"dotColor,omitempty" bson:"dot_color,omitempty"`
}

// DefaultSettings returns the settings of a new document.
func DefaultSettings() Settings {
	return Settings{
		EdgeType:        EdgeDefault,
		BackgroundColor: "#ffffff",
		DotColor:        "#e5e7eb",
	}
}
