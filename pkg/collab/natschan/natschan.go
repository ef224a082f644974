// Package natschan carries collaboration events over NATS core subjects.
//
// Each document maps to the subject "<prefix>.doc.<docID>". Messages are the
// JSON wire form of [collab.Event].
package natschan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/observability"
)

const transportName = "nats"

// DefaultPrefix is the subject prefix when none is configured.
const DefaultPrefix = "mindcanvas"

// conn is the subset of *nats.Conn the channel uses.
type conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Drain() error
}

// Channel implements collab.Channel on NATS subjects.
type Channel struct {
	conn   conn
	prefix string
	logger *log.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

var _ collab.Channel = (*Channel)(nil)

// Options configures a connection.
type Options struct {
	URL           string
	Prefix        string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Logger        *log.Logger
}

// Dial connects to a NATS server.
func Dial(opts Options) (*Channel, error) {
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	if opts.ReconnectWait == 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("natschan: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("natschan: reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeTransport, err, "connect to nats %s", opts.URL)
	}
	return newChannel(nc, opts.Prefix, logger), nil
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

// Name returns "nats".
func (c *Channel) Name() string { return transportName }

// Subject returns the NATS subject of a document. Characters that are
// significant in subjects are replaced with underscores.
func (c *Channel) Subject(docID string) string {
	return c.prefix + ".doc." + subjectReplacer.Replace(docID)
}

var subjectReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// Publish sends ev to every subscriber of docID.
func (c *Channel) Publish(ctx context.Context, docID string, ev collab.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	err = c.conn.Publish(c.Subject(docID), payload)
	observability.Collab().OnPublish(ctx, transportName, string(ev.Type), err)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeTransport, err, "publish to %s", c.Subject(docID))
	}
	return nil
}

// Subscribe delivers decoded events for docID to h. The subscription ends on
// Unsubscribe, on Close or when ctx is done.
func (c *Channel) Subscribe(ctx context.Context, docID string, h collab.Handler) (collab.Subscription, error) {
	s := &subscription{ch: c, done: make(chan struct{})}
	sub, err := c.conn.Subscribe(c.Subject(docID), func(msg *nats.Msg) {
		select {
		case <-s.done:
			return
		default:
		}
		ev, err := collab.Decode(msg.Data)
		if err != nil {
			c.logger.Warn("natschan: dropping malformed event", "subject", msg.Subject, "err", err)
			observability.Collab().OnDrop(ctx, transportName, "malformed")
			return
		}
		observability.Collab().OnReceive(ctx, transportName, string(ev.Type))
		h(ev)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeTransport, err, "subscribe to %s", c.Subject(docID))
	}
	s.sub = sub

	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Unsubscribe()
		case <-s.done:
		}
	}()
	return s, nil
}

// Close ends every subscription and drains the connection.
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
	if err := c.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return apperr.Wrap(apperr.ErrCodeTransport, err, "drain nats connection")
	}
	return nil
}

type subscription struct {
	ch   *Channel
	sub  *nats.Subscription
	done chan struct{}
	once sync.Once
	err  error
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.ch.mu.Lock()
		delete(s.ch.subs, s)
		s.ch.mu.Unlock()
		close(s.done)
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.err = err
		}
	})
	return s.err
}
