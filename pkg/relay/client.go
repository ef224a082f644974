package relay

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	"github.com/matzehuels/mindcanvas/pkg/observability"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// DefaultSendBuffer is the per-connection outbound queue.
	DefaultSendBuffer = 256
)

// client is one websocket connection in a room.
type client struct {
	id     string
	docID  string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *log.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, docID, userID string, buffer int) *client {
	id := uuid.NewString()
	return &client{
		id:     id,
		docID:  docID,
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, buffer),
		logger: hub.logger.With("doc", docID, "user", userID, "conn", id[:8]),
	}
}

// readPump decodes frames from the connection and hands valid events to
// the hub. It owns the read side and unregisters the client on exit.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("relay: read failed", "err", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			c.logger.Debug("relay: ignoring non-text frame")
			continue
		}
		ev, err := collab.Decode(msg)
		if err != nil {
			c.logger.Debug("relay: dropping malformed event", "err", err)
			observability.Collab().OnDrop(ctx, transportName, "malformed")
			continue
		}
		observability.Collab().OnReceive(ctx, transportName, string(ev.Type))
		c.hub.relay(c, ev, msg)
	}
}

// writePump sends queued frames and keeps the connection alive with pings.
// It exits when the hub closes the send queue or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("relay: write failed", "err", err)
				return
			}
			// Flush whatever queued up meanwhile.
			for range len(c.send) {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					c.logger.Debug("relay: write failed", "err", err)
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
