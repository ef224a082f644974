package redischan

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
)

// fakeConn is an in-memory stand-in for a Redis server's pub/sub.
type fakeConn struct {
	mu        sync.Mutex
	sources   map[string][]*fakeSource
	published []string
	failPub   error
	closed    bool
}

func newFakeConn() *fakeConn { return &fakeConn{sources: make(map[string][]*fakeSource)} }

func (f *fakeConn) Publish(_ context.Context, channel string, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPub != nil {
		return f.failPub
	}
	payload := string(message.([]byte))
	f.published = append(f.published, channel)
	for _, s := range f.sources[channel] {
		s.ch <- &redis.Message{Channel: channel, Payload: payload}
	}
	return nil
}

func (f *fakeConn) Subscribe(_ context.Context, channel string) (messageSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSource{ch: make(chan *redis.Message, 16)}
	f.sources[channel] = append(f.sources[channel], s)
	return s, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) inject(channel, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sources[channel] {
		s.ch <- &redis.Message{Channel: channel, Payload: payload}
	}
}

type fakeSource struct {
	ch     chan *redis.Message
	closed bool
}

func (s *fakeSource) Channel(...redis.ChannelOption) <-chan *redis.Message { return s.ch }
func (s *fakeSource) Close() error                                         { s.closed = true; return nil }

func quiet() *log.Logger { return log.New(io.Discard) }

func TestTopic(t *testing.T) {
	c := newChannel(newFakeConn(), "", quiet())
	assert.Equal(t, "mindcanvas:doc:roadmap", c.Topic("roadmap"))

	c = newChannel(newFakeConn(), "team", quiet())
	assert.Equal(t, "team:doc:roadmap", c.Topic("roadmap"))
}

func TestPublishSubscribe(t *testing.T) {
	fc := newFakeConn()
	c := newChannel(fc, "mc", quiet())
	ctx := context.Background()

	got := make(chan collab.Event, 4)
	sub, err := c.Subscribe(ctx, "doc", func(ev collab.Event) { got <- ev })
	require.NoError(t, err)

	ev := collab.DeleteEvent(collab.EntityNode, "7", "bob")
	require.NoError(t, c.Publish(ctx, "doc", ev))

	select {
	case r := <-got:
		assert.Equal(t, "7", r.ID)
		assert.Equal(t, collab.ActionDelete, r.Action)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Equal(t, []string{"mc:doc:doc"}, fc.published)

	require.NoError(t, sub.Unsubscribe())
	assert.True(t, fc.sources["mc:doc:doc"][0].closed)
}

func TestSubscribeDropsMalformed(t *testing.T) {
	fc := newFakeConn()
	c := newChannel(fc, "", quiet())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan collab.Event, 4)
	_, err := c.Subscribe(ctx, "doc", func(ev collab.Event) { got <- ev })
	require.NoError(t, err)

	fc.inject(c.Topic("doc"), `not json`)
	fc.inject(c.Topic("doc"), `{"id":"x","type":"node"}`)
	valid, _ := collab.DeleteEvent(collab.EntityEdge, "e1-2", "bob").Encode()
	fc.inject(c.Topic("doc"), string(valid))

	select {
	case r := <-got:
		assert.Equal(t, "e1-2", r.ID, "only the valid event is delivered")
	case <-time.After(time.Second):
		t.Fatal("valid event not delivered")
	}
	assert.Empty(t, got)
}

func TestPublishErrors(t *testing.T) {
	fc := newFakeConn()
	fc.failPub = errors.New("connection refused")
	c := newChannel(fc, "", quiet())

	err := c.Publish(context.Background(), "doc", collab.DeleteEvent(collab.EntityNode, "7", "bob"))
	assert.True(t, apperr.Is(err, apperr.ErrCodeTransport))

	err = c.Publish(context.Background(), "doc", collab.Event{ID: "bad"})
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidEvent))
}

func TestCloseEndsSubscriptions(t *testing.T) {
	fc := newFakeConn()
	c := newChannel(fc, "", quiet())
	_, err := c.Subscribe(context.Background(), "a", func(collab.Event) {})
	require.NoError(t, err)
	_, err = c.Subscribe(context.Background(), "b", func(collab.Event) {})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.True(t, fc.closed)
	assert.Empty(t, c.subs)
}

func TestDialRejectsBadURL(t *testing.T) {
	_, err := Dial(context.Background(), Options{URL: "://nope"})
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidConfig))
}
