package collab

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/observability"
)

// Handler receives decoded, validated events.
type Handler func(Event)

// Subscription is an active subscription to a document's events.
type Subscription interface {
	Unsubscribe() error
}

// Channel is a publish/subscribe transport scoped per document.
// Implementations must be safe for concurrent use. Handlers may be called
// from transport goroutines.
type Channel interface {
	// Name identifies the transport in logs and metrics.
	Name() string
	Publish(ctx context.Context, docID string, ev Event) error
	Subscribe(ctx context.Context, docID string, h Handler) (Subscription, error)
	Close() error
}

// DefaultQueueSize is the per-subscriber buffer of [MemoryBus] and the
// outbound buffer of [Session].
const DefaultQueueSize = 256

// MemoryBus is an in-process Channel. Each subscriber has its own buffered
// queue drained by a goroutine; a subscriber that falls behind loses events
// rather than blocking publishers.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memSub]struct{}
	closed bool
	queue  int
}

var _ Channel = (*MemoryBus)(nil)

// NewMemoryBus returns an empty bus. A queue size <= 0 uses
// [DefaultQueueSize].
func NewMemoryBus(queue int) *MemoryBus {
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	return &MemoryBus{subs: make(map[string]map[*memSub]struct{}), queue: queue}
}

// Name returns "memory".
func (b *MemoryBus) Name() string { return "memory" }

// Publish delivers ev to every subscriber of docID, including the
// publisher's own subscription.
func (b *MemoryBus) Publish(ctx context.Context, docID string, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return apperr.New(apperr.ErrCodeTransport, "memory bus closed")
	}
	for s := range b.subs[docID] {
		select {
		case s.ch <- ev:
		default:
			observability.Collab().OnDrop(ctx, b.Name(), "queue_full")
		}
	}
	observability.Collab().OnPublish(ctx, b.Name(), string(ev.Type), nil)
	return nil
}

// Subscribe registers h for docID. The subscription ends on Unsubscribe,
// when ctx is done or when the bus is closed.
func (b *MemoryBus) Subscribe(ctx context.Context, docID string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, apperr.New(apperr.ErrCodeTransport, "memory bus closed")
	}
	s := &memSub{bus: b, docID: docID, ch: make(chan Event, b.queue), done: make(chan struct{})}
	if b.subs[docID] == nil {
		b.subs[docID] = make(map[*memSub]struct{})
	}
	b.subs[docID][s] = struct{}{}

	go s.run(ctx, h)
	return s, nil
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*memSub
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.mu.Unlock()

	for _, s := range all {
		_ = s.Unsubscribe()
	}
	return nil
}

type memSub struct {
	bus   *MemoryBus
	docID string
	ch    chan Event
	done  chan struct{}
	once  sync.Once
}

func (s *memSub) run(ctx context.Context, h Handler) {
	for {
		select {
		case ev := <-s.ch:
			observability.Collab().OnReceive(ctx, s.bus.Name(), string(ev.Type))
			h(ev)
		case <-s.done:
			return
		case <-ctx.Done():
			_ = s.Unsubscribe()
			return
		}
	}
}

func (s *memSub) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.docID], s)
		if len(s.bus.subs[s.docID]) == 0 {
			delete(s.bus.subs, s.docID)
		}
		s.bus.mu.Unlock()
		close(s.done)
	})
	return nil
}

// logOrDefault returns l, or the default logger when l is nil.
func logOrDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}
