package collab

import (
	"context"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mindcanvas/pkg/observability"
)

// Session connects one editor to a document's channel.
//
// Outbound events are queued by [Session.Broadcast] and published by
// [Session.Run]; publishing is fire-and-forget, so transport failures are
// logged and never reach the editor. Inbound events from other users are
// handed to the delivery callback; the session's own echoes are filtered
// before delivery.
type Session struct {
	ch     Channel
	docID  string
	userID string
	out    chan Event
	logger *log.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithQueueSize sets the outbound buffer size.
func WithQueueSize(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.out = make(chan Event, n)
		}
	}
}

// NewSession creates a session for userID on document docID.
func NewSession(ch Channel, docID, userID string, opts ...SessionOption) *Session {
	s := &Session{
		ch:     ch,
		docID:  docID,
		userID: userID,
		out:    make(chan Event, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logOrDefault(s.logger)
	return s
}

// DocumentID returns the document the session is bound to.
func (s *Session) DocumentID() string { return s.docID }

// UserID returns the local user id.
func (s *Session) UserID() string { return s.userID }

// Broadcast queues events for publishing without blocking. Events that do
// not fit in the queue are dropped and logged.
func (s *Session) Broadcast(evs ...Event) {
	for _, ev := range evs {
		select {
		case s.out <- ev:
		default:
			s.logger.Warn("collab: outbound queue full, dropping event", "type", ev.Type, "id", ev.ID)
			observability.Collab().OnDrop(context.Background(), s.ch.Name(), "queue_full")
		}
	}
}

// Run subscribes to the document and publishes queued events until ctx is
// done. deliver is called for every inbound event from another user, from
// a transport goroutine.
func (s *Session) Run(ctx context.Context, deliver Handler) error {
	sub, err := s.ch.Subscribe(ctx, s.docID, func(ev Event) {
		if ev.UserID == s.userID {
			return
		}
		deliver(ev)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("collab: session started", "transport", s.ch.Name(), "doc", s.docID, "user", s.userID)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return sub.Unsubscribe()
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-s.out:
				if err := s.ch.Publish(ctx, s.docID, ev); err != nil {
					s.logger.Warn("collab: publish failed", "transport", s.ch.Name(), "id", ev.ID, "err", err)
				}
			}
		}
	})
	return g.Wait()
}
