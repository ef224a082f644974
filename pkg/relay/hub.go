package relay

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/observability"
)

const transportName = "websocket"

// Hub tracks the connections of every room and fans events out between
// them.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	closed bool

	// subMu serializes bridge subscription changes; subs is only touched
	// with it held.
	subMu  sync.Mutex
	subs   map[string]collab.Subscription
	bridge collab.Channel

	ctx    context.Context
	logger *log.Logger
}

// NewHub creates a hub. bridge may be nil for a single-instance relay.
func NewHub(ctx context.Context, bridge collab.Channel, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		subs:   make(map[string]collab.Subscription),
		bridge: bridge,
		ctx:    ctx,
		logger: logger,
	}
}

// Rooms returns the number of rooms with at least one connection.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Clients returns the number of connections in a room.
func (h *Hub) Clients(docID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[docID])
}

func (h *Hub) join(c *client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return apperr.New(apperr.ErrCodeTransport, "relay is shutting down")
	}
	if h.rooms[c.docID] == nil {
		h.rooms[c.docID] = make(map[*client]struct{})
	}
	h.rooms[c.docID][c] = struct{}{}
	n := len(h.rooms[c.docID])
	h.mu.Unlock()

	c.logger.Debug("relay: joined", "clients", n)
	observability.Relay().OnJoin(h.ctx, c.docID)
	h.syncBridge(c.docID)
	return nil
}

// leave removes c from its room and closes its send queue. It is safe to
// call more than once.
func (h *Hub) leave(c *client) {
	if !h.remove(c) {
		return
	}
	c.logger.Debug("relay: left")
	observability.Relay().OnLeave(h.ctx, c.docID)
	h.syncBridge(c.docID)
}

func (h *Hub) remove(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) bool {
	room, ok := h.rooms[c.docID]
	if !ok {
		return false
	}
	if _, ok := room[c]; !ok {
		return false
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.docID)
	}
	return true
}

// relay forwards an event from c. Without a bridge it goes straight to the
// rest of the room; with one it takes the round trip through the channel.
func (h *Hub) relay(c *client, ev collab.Event, raw []byte) {
	if h.bridge == nil {
		h.fanout(c.docID, raw, c)
		return
	}
	if err := h.bridge.Publish(h.ctx, c.docID, ev); err != nil {
		c.logger.Warn("relay: bridge publish failed", "transport", h.bridge.Name(), "err", err)
	}
}

// fanout queues data on every connection of the room except skip. A
// connection whose queue is full is disconnected rather than slowing the
// room down.
func (h *Hub) fanout(docID string, data []byte, skip *client) int {
	h.mu.Lock()
	var slow []*client
	n := 0
	for c := range h.rooms[docID] {
		if c == skip {
			continue
		}
		select {
		case c.send <- data:
			n++
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	for _, c := range slow {
		c.logger.Warn("relay: closing slow connection")
		observability.Relay().OnLeave(h.ctx, docID)
		observability.Collab().OnDrop(h.ctx, transportName, "queue_full")
		c.conn.Close()
	}
	if len(slow) > 0 {
		// fanout may run on the bridge's delivery goroutine.
		go h.syncBridge(docID)
	}
	observability.Relay().OnRelay(h.ctx, docID, n)
	return n
}

// syncBridge subscribes the bridge to a room that has connections and
// unsubscribes it from one that has none.
func (h *Hub) syncBridge(docID string) {
	if h.bridge == nil {
		return
	}
	h.subMu.Lock()
	defer h.subMu.Unlock()

	want := h.Clients(docID) > 0
	sub, have := h.subs[docID]
	switch {
	case want && !have:
		s, err := h.bridge.Subscribe(h.ctx, docID, func(ev collab.Event) { h.fromBridge(docID, ev) })
		if err != nil {
			h.logger.Warn("relay: bridge subscribe failed", "doc", docID, "transport", h.bridge.Name(), "err", err)
			return
		}
		h.subs[docID] = s
	case !want && have:
		if err := sub.Unsubscribe(); err != nil {
			h.logger.Debug("relay: bridge unsubscribe failed", "doc", docID, "err", err)
		}
		delete(h.subs, docID)
	}
}

func (h *Hub) fromBridge(docID string, ev collab.Event) {
	data, err := ev.Encode()
	if err != nil {
		h.logger.Debug("relay: dropping bridged event", "doc", docID, "err", err)
		return
	}
	h.fanout(docID, data, nil)
}

// Close disconnects every client and drops every bridge subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, room := range h.rooms {
		for c := range room {
			all = append(all, c)
		}
	}
	for _, c := range all {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	for _, c := range all {
		c.conn.Close()
	}

	h.subMu.Lock()
	for docID, sub := range h.subs {
		_ = sub.Unsubscribe()
		delete(h.subs, docID)
	}
	h.subMu.Unlock()
}

// bridged reports whether the bridge is subscribed to a room.
func (h *Hub) bridged(docID string) bool {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	_, ok := h.subs[docID]
	return ok
}
