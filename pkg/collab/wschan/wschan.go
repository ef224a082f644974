// Package wschan carries collaboration events over a websocket connection
// to a mindcanvas relay.
//
// The relay scopes connections to one document, so the channel keeps one
// connection per document id, opened on first use. A dropped connection is
// redialled with backoff and keeps its subscribers.
package wschan

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/observability"
)

const (
	transportName = "websocket"
	writeWait     = 10 * time.Second
)

// Options configures a Channel.
type Options struct {
	// URL is the relay's base URL: http, https, ws or wss.
	URL string
	// UserID identifies this client to the relay.
	UserID  string
	Logger  *log.Logger
	Dialer  *websocket.Dialer
	Backoff collab.Backoff
}

// Channel implements collab.Channel against a relay.
type Channel struct {
	base    *url.URL
	userID  string
	dialer  *websocket.Dialer
	backoff collab.Backoff
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
}

var _ collab.Channel = (*Channel)(nil)

// New validates opts. No connection is made until the first Publish or
// Subscribe.
func New(opts Options) (*Channel, error) {
	base, err := baseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	if opts.UserID == "" {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "websocket channel needs a user id")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Backoff.Attempts == 0 {
		opts.Backoff = collab.DefaultBackoff
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		base:    base,
		userID:  opts.UserID,
		dialer:  opts.Dialer,
		backoff: opts.Backoff,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		rooms:   make(map[string]*room),
	}, nil
}

func baseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "parse relay url")
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "relay url %q: unsupported scheme %q", raw, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

// Name returns "websocket".
func (c *Channel) Name() string { return transportName }

// RoomURL returns the websocket URL of a document's room.
func (c *Channel) RoomURL(docID string) string {
	u := *c.base
	u.Path += "/documents/" + url.PathEscape(docID) + "/ws"
	u.RawQuery = url.Values{"user": {c.userID}}.Encode()
	return u.String()
}

// Publish sends ev to the relay room of docID.
func (c *Channel) Publish(ctx context.Context, docID string, ev collab.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	r, err := c.room(ctx, docID)
	if err == nil {
		err = r.write(payload)
	}
	observability.Collab().OnPublish(ctx, transportName, string(ev.Type), err)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeTransport, err, "publish to room %s", docID)
	}
	return nil
}

// Subscribe delivers the room's events for docID to h until the
// subscription ends or ctx is done.
func (c *Channel) Subscribe(ctx context.Context, docID string, h collab.Handler) (collab.Subscription, error) {
	r, err := c.room(ctx, docID)
	if err != nil {
		return nil, err
	}
	s := &subscription{room: r, h: h}
	r.add(s)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Unsubscribe()
			case <-r.done:
			}
		}()
	}
	return s, nil
}

// Close disconnects from every room.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	rooms := make([]*room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.rooms = make(map[string]*room)
	c.mu.Unlock()

	c.cancel()
	for _, r := range rooms {
		r.close()
	}
	return nil
}

// room returns the connection for docID, dialling it if needed.
func (c *Channel) room(ctx context.Context, docID string) (*room, error) {
	if err := apperr.ValidateDocumentID(docID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, apperr.New(apperr.ErrCodeTransport, "websocket channel closed")
	}
	if r, ok := c.rooms[docID]; ok {
		return r, nil
	}

	conn, err := c.dial(ctx, docID)
	if err != nil {
		return nil, err
	}
	r := &room{
		ch:     c,
		docID:  docID,
		conn:   conn,
		subs:   make(map[*subscription]struct{}),
		done:   make(chan struct{}),
		logger: c.logger.With("doc", docID, "transport", transportName),
	}
	c.rooms[docID] = r
	go r.run()
	return r, nil
}

func (c *Channel) dial(ctx context.Context, docID string) (*websocket.Conn, error) {
	target := c.RoomURL(docID)
	var conn *websocket.Conn
	err := collab.Retry(ctx, c.backoff, func() error {
		cn, resp, err := c.dialer.DialContext(ctx, target, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			// A relay that answered with an HTTP error will answer the same
			// way next time.
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "dial %s: status %d", target, resp.StatusCode)
			}
			c.logger.Debug("wschan: dial failed", "doc", docID, "err", err)
			return apperr.Wrap(apperr.ErrCodeTransport, err, "dial %s", target)
		}
		conn = cn
		return nil
	})
	return conn, err
}

func (c *Channel) forget(r *room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rooms[r.docID] == r {
		delete(c.rooms, r.docID)
	}
}

// room is one connection and the subscribers reading from it.
type room struct {
	ch     *Channel
	docID  string
	logger *log.Logger

	wmu  sync.Mutex
	conn *websocket.Conn

	smu    sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool

	done chan struct{}
	once sync.Once
}

func (r *room) write(payload []byte) error {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteMessage(websocket.TextMessage, payload)
}

func (r *room) add(s *subscription) {
	r.smu.Lock()
	r.subs[s] = struct{}{}
	r.smu.Unlock()
}

func (r *room) remove(s *subscription) {
	r.smu.Lock()
	delete(r.subs, s)
	r.smu.Unlock()
}

func (r *room) handlers() []collab.Handler {
	r.smu.RLock()
	defer r.smu.RUnlock()
	hs := make([]collab.Handler, 0, len(r.subs))
	for s := range r.subs {
		hs = append(hs, s.h)
	}
	return hs
}

func (r *room) isClosed() bool {
	r.smu.RLock()
	defer r.smu.RUnlock()
	return r.closed
}

// run reads frames until the room is closed, redialling when the
// connection drops.
func (r *room) run() {
	defer r.once.Do(func() { close(r.done) })
	for {
		r.read()
		if r.isClosed() {
			return
		}
		r.logger.Warn("wschan: connection lost, reconnecting")
		conn, err := r.ch.dial(r.ch.ctx, r.docID)
		if err != nil {
			if !r.isClosed() {
				r.logger.Error("wschan: giving up on room", "err", err)
			}
			r.ch.forget(r)
			return
		}
		r.wmu.Lock()
		r.conn = conn
		r.wmu.Unlock()
		if r.isClosed() {
			conn.Close()
			return
		}
	}
}

func (r *room) read() {
	r.wmu.Lock()
	conn := r.conn
	r.wmu.Unlock()

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if !r.isClosed() {
				r.logger.Debug("wschan: read failed", "err", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		ev, err := collab.Decode(msg)
		if err != nil {
			r.logger.Debug("wschan: dropping malformed event", "err", err)
			observability.Collab().OnDrop(r.ch.ctx, transportName, "malformed")
			continue
		}
		observability.Collab().OnReceive(r.ch.ctx, transportName, string(ev.Type))
		for _, h := range r.handlers() {
			h(ev)
		}
	}
}

func (r *room) close() {
	r.smu.Lock()
	r.closed = true
	r.subs = make(map[*subscription]struct{})
	r.smu.Unlock()

	r.wmu.Lock()
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = r.conn.Close()
	r.wmu.Unlock()
}

type subscription struct {
	room *room
	h    collab.Handler
	once sync.Once
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() { s.room.remove(s) })
	return nil
}
