package collab

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// EntityType is the kind of entity an event describes.
type EntityType string

// Entity types.
const (
	EntityNode     EntityType = "node"
	EntityEdge     EntityType = "edge"
	EntityDocument EntityType = "document"
)

// Action is what happened to the entity.
type Action string

// Actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event describes one change to one entity. Data holds the full entity for
// create and update, and only {"id": ...} for delete.
type Event struct {
	ID     string          `json:"id" validate:"required,max=256"`
	Type   EntityType      `json:"type" validate:"required,oneof=node edge document"`
	Action Action          `json:"action" validate:"required,oneof=create update delete"`
	Data   json.RawMessage `json:"data" validate:"required"`
	UserID string          `json:"user_id" validate:"required,max=256"`
}

// DocumentData is the payload of document events.
type DocumentData struct {
	Title    string         `json:"title"`
	Settings graph.Settings `json:"settings"`
}

type idOnly struct {
	ID string `json:"id"`
}

// NodeEvent builds a create or update event carrying the full node.
// The transient selection flag is not broadcast.
func NodeEvent(action Action, n graph.Node, userID string) (Event, error) {
	n.Selected = false
	return newEvent(n.ID, EntityNode, action, n, userID)
}

// EdgeEvent builds a create or update event carrying the full edge.
func EdgeEvent(action Action, e graph.Edge, userID string) (Event, error) {
	return newEvent(e.ID, EntityEdge, action, e, userID)
}

// DeleteEvent builds a delete event for the entity with the given id.
func DeleteEvent(typ EntityType, id, userID string) Event {
	data, _ := json.Marshal(idOnly{ID: id})
	return Event{ID: id, Type: typ, Action: ActionDelete, Data: data, UserID: userID}
}

// DocumentEvent builds an update event for the document-level attributes.
// docID names the document on the channel.
func DocumentEvent(docID, title string, s graph.Settings, userID string) (Event, error) {
	return newEvent(docID, EntityDocument, ActionUpdate, DocumentData{Title: title, Settings: s}, userID)
}

func newEvent(id string, typ EntityType, action Action, v any, userID string) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, apperr.Wrap(apperr.ErrCodeInvalidEvent, err, "encode %s %s", typ, id)
	}
	return Event{ID: id, Type: typ, Action: action, Data: data, UserID: userID}, nil
}

// Encode returns the wire form of the event.
func (ev Event) Encode() ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

// Decode parses and validates an event from its wire form.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, apperr.Wrap(apperr.ErrCodeInvalidEvent, err, "decode event")
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate checks the envelope fields. It does not decode Data.
func (ev Event) Validate() error {
	if err := eventValidator().Struct(ev); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidEvent, err, "invalid event %q", ev.ID)
	}
	if ev.Type == EntityDocument && ev.Action != ActionUpdate {
		return apperr.New(apperr.ErrCodeInvalidEvent, "document events only support update, got %s", ev.Action)
	}
	return nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func eventValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}
