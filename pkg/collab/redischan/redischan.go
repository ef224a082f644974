// Package redischan carries collaboration events over Redis pub/sub.
//
// Each document maps to one Redis channel named "<prefix>:doc:<docID>".
// Messages are the JSON wire form of [collab.Event].
package redischan

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/observability"
)

const transportName = "redis"

// DefaultPrefix is the channel prefix when none is configured.
const DefaultPrefix = "mindcanvas"

// messageSource is the subset of *redis.PubSub the channel uses.
type messageSource interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// conn is the subset of a Redis client the channel uses.
type conn interface {
	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channel string) (messageSource, error)
	Close() error
}

// Channel implements collab.Channel on Redis pub/sub.
type Channel struct {
	conn   conn
	prefix string
	logger *log.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

var _ collab.Channel = (*Channel)(nil)

// Options configures a Channel.
type Options struct {
	// URL is a redis:// URL passed to redis.ParseURL.
	URL    string
	Prefix string
	Logger *log.Logger
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, opts Options) (*Channel, error) {
	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "parse redis url")
	}
	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperr.Wrap(apperr.ErrCodeTransport, err, "connect to redis %s", ro.Addr)
	}
	return New(client, opts.Prefix, opts.Logger), nil
}

// New wraps an existing client. The channel owns the client and closes it on
// Close.
func New(client *redis.Client, prefix string, logger *log.Logger) *Channel {
	return newChannel(clientConn{client}, prefix, logger)
}

func newChannel(c conn, prefix string, logger *log.Logger) *Channel {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Channel{conn: c, prefix: prefix, logger: logger, subs: make(map[*subscription]struct{})}
}

// Name returns "redis".
func (c *Channel) Name() string { return transportName }

// Topic returns the Redis channel of a document.
func (c *Channel) Topic(docID string) string {
	return c.prefix + ":doc:" + docID
}

// Publish sends ev to every subscriber of docID.
func (c *Channel) Publish(ctx context.Context, docID string, ev collab.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	err = c.conn.Publish(ctx, c.Topic(docID), payload)
	observability.Collab().OnPublish(ctx, transportName, string(ev.Type), err)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeTransport, err, "publish to %s", c.Topic(docID))
	}
	return nil
}

// Subscribe delivers decoded events for docID to h until the subscription
// is closed or ctx is done. Malformed messages are logged and dropped.
func (c *Channel) Subscribe(ctx context.Context, docID string, h collab.Handler) (collab.Subscription, error) {
	src, err := c.conn.Subscribe(ctx, c.Topic(docID))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeTransport, err, "subscribe to %s", c.Topic(docID))
	}
	s := &subscription{ch: c, src: src, done: make(chan struct{})}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	go s.run(ctx, h)
	return s, nil
}

// Close ends every subscription and closes the client.
func (c *Channel) Close() error {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()
	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return c.conn.Close()
}

type subscription struct {
	ch   *Channel
	src  messageSource
	done chan struct{}
	once sync.Once
	err  error
}

func (s *subscription) run(ctx context.Context, h collab.Handler) {
	msgs := s.src.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Unsubscribe()
			return
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := collab.Decode([]byte(msg.Payload))
			if err != nil {
				s.ch.logger.Warn("redischan: dropping malformed event", "channel", msg.Channel, "err", err)
				observability.Collab().OnDrop(ctx, transportName, "malformed")
				continue
			}
			observability.Collab().OnReceive(ctx, transportName, string(ev.Type))
			h(ev)
		}
	}
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.ch.mu.Lock()
		delete(s.ch.subs, s)
		s.ch.mu.Unlock()
		close(s.done)
		s.err = s.src.Close()
	})
	return s.err
}

// clientConn adapts *redis.Client to conn.
type clientConn struct{ c *redis.Client }

func (a clientConn) Publish(ctx context.Context, channel string, message any) error {
	return a.c.Publish(ctx, channel, message).Err()
}

func (a clientConn) Subscribe(ctx context.Context, channel string) (messageSource, error) {
	ps := a.c.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so no message published right
	// after Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}

func (a clientConn) Close() error { return a.c.Close() }
