package graph

import (
	"strings"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
)

const targetHandleSuffix = "-target"

// Connection is a proposed edge, as produced by a connect gesture.
type Connection struct {
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
	Type         EdgeType
}

// Validator decides whether a proposed connection is legal.
//
// MaxDepth bounds the forward walk of the cycle check. Zero means unbounded:
// the walk is a full reachability search guarded by a visited set, which is
// linear in the size of the document.
type Validator struct {
	MaxDepth int
}

// ValidateConnection validates c against d with an unbounded cycle check.
func ValidateConnection(d *Document, c Connection) (Edge, error) {
	return Validator{}.Validate(d, c)
}

// IsValidConnection reports whether c would be accepted by
// [ValidateConnection].
func IsValidConnection(d *Document, c Connection) bool {
	_, err := ValidateConnection(d, c)
	return err == nil
}

// Validate checks c against the document and returns the edge that should be
// added. It never mutates d. Rejections carry the codes ErrCodeSelfLoop,
// ErrCodeInvalidConnection or ErrCodeCycle.
//
// A direct bidirectional pair is legal: with A→B present, B→A is accepted.
// Any longer cycle is rejected: with A→B→C present, C→A is not.
func (v Validator) Validate(d *Document, c Connection) (Edge, error) {
	if c.Source == c.Target {
		return Edge{}, apperr.Wrap(apperr.ErrCodeSelfLoop, ErrSelfLoop, "connect %s to itself", c.Source)
	}
	if !d.HasNode(c.Source) {
		return Edge{}, apperr.Wrap(apperr.ErrCodeInvalidConnection, ErrUnknownSourceNode, "source %q", c.Source)
	}
	if !d.HasNode(c.Target) {
		return Edge{}, apperr.Wrap(apperr.ErrCodeInvalidConnection, ErrUnknownTargetNode, "target %q", c.Target)
	}
	if d.HasEdge(c.Source, c.Target) {
		return Edge{}, apperr.New(apperr.ErrCodeInvalidConnection, "%s already connects to %s", c.Source, c.Target)
	}

	sourceHandle, targetHandle := assignHandles(c.SourceHandle, c.TargetHandle)

	if v.createsCycle(d, c.Source, c.Target) {
		return Edge{}, apperr.New(apperr.ErrCodeCycle, "connecting %s to %s would create a cycle", c.Source, c.Target)
	}

	typ := c.Type
	if typ == "" {
		typ = d.Settings.EdgeType
	}
	return Edge{
		ID:           EdgeID(c.Source, c.Target),
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
		Type:         typ,
	}, nil
}

// assignHandles gives the edge parent→child anchor roles. A caller-fixed
// source anchor is kept and the target gets a target anchor; anything else
// falls back to bottom-to-top.
func assignHandles(source, target string) (string, string) {
	if IsSourceHandle(source) {
		if !strings.HasSuffix(target, targetHandleSuffix) {
			target = HandleTopTarget
		}
		return source, target
	}
	return HandleBottomSource, HandleTopTarget
}

// createsCycle walks forward from target looking for source. Reaching source
// in one hop is the permitted bidirectional pair; reaching it through any
// longer path is a cycle.
func (v Validator) createsCycle(d *Document, source, target string) bool {
	type step struct {
		id    string
		depth int
	}

	visited := map[string]bool{target: true}
	var stack []step
	for _, c := range d.Children(target) {
		if c == source {
			continue
		}
		visited[c] = true
		stack = append(stack, step{c, 1})
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if v.MaxDepth > 0 && cur.depth >= v.MaxDepth {
			continue
		}
		for _, c := range d.Children(cur.id) {
			if c == source {
				return true
			}
			if !visited[c] {
				visited[c] = true
				stack = append(stack, step{c, cur.depth + 1})
			}
		}
	}
	return false
}
