package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/presence"
	"parley/internal/ws"
	"parley/pkg/wire"
)

var errTransportClosed = errors.New("transport closed")

// fakeTransport scripts inbound frames and records outbound ones.
type fakeTransport struct {
	id        string
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	sent      [][]byte
}

func newFakeTransport(id string) *fakeTransport {
	return &fakeTransport{
		id:      id,
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) Identity() string { return f.id }

func (f *fakeTransport) TrySend(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return true
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case raw, ok := <-f.inbound:
		if !ok {
			return nil, errTransportClosed
		}
		return raw, nil
	case <-f.closed:
		return nil, errTransportClosed
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) presenceFrames(t *testing.T) []wire.PresenceFrame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []wire.PresenceFrame
	for _, raw := range f.sent {
		var frame wire.PresenceFrame
		require.NoError(t, json.Unmarshal(raw, &frame))
		out = append(out, frame)
	}
	return out
}

// frameRecorder stands in for the router.
type frameRecorder struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *frameRecorder) HandleFrame(ctx context.Context, sender ws.Sink, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, raw)
}

func (r *frameRecorder) recorded() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

func TestSession_LifecycleAndForwarding(t *testing.T) {
	registry := ws.NewRegistry()
	notifier := presence.NewNotifier(registry)
	handler := &frameRecorder{}

	observer := newFakeTransport("observer")
	registry.Join("observer", observer)

	transport := newFakeTransport("alice")
	transport.inbound <- []byte(`frame-1`)
	transport.inbound <- []byte(`frame-2`)
	close(transport.inbound)

	sess := New(transport, registry, handler, notifier)
	assert.Equal(t, StateConnecting, sess.State())

	sess.Run(context.Background())

	// Frames reached the handler in arrival order.
	frames := handler.recorded()
	require.Len(t, frames, 2)
	assert.Equal(t, []byte(`frame-1`), frames[0])
	assert.Equal(t, []byte(`frame-2`), frames[1])

	// The observer saw the join and then the leave.
	announcements := observer.presenceFrames(t)
	require.Len(t, announcements, 2)
	assert.Equal(t, wire.TypeUserConnected, announcements[0].Type)
	assert.Equal(t, "alice", announcements[0].Username)
	assert.Equal(t, wire.TypeUserDisconnected, announcements[1].Type)

	// Teardown removed the registration and reached the terminal state.
	_, ok := registry.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, StateClosed, sess.State())
}

func TestSession_CloseIdempotent(t *testing.T) {
	registry := ws.NewRegistry()
	notifier := presence.NewNotifier(registry)

	observer := newFakeTransport("observer")
	registry.Join("observer", observer)

	transport := newFakeTransport("alice")
	sess := New(transport, registry, &frameRecorder{}, notifier)

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("alice")
		return ok
	}, time.Second, 5*time.Millisecond)

	// Simulate the race between a read-loop failure and an external shutdown
	// both tearing the session down.
	sess.Close()
	sess.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	_, ok := registry.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, StateClosed, sess.State())

	var disconnects int
	for _, frame := range observer.presenceFrames(t) {
		if frame.Type == wire.TypeUserDisconnected {
			disconnects++
		}
	}
	assert.Equal(t, 1, disconnects, "leave must be announced exactly once")
}

func TestSession_SupersedeOrphansFirstConnection(t *testing.T) {
	registry := ws.NewRegistry()
	notifier := presence.NewNotifier(registry)
	handler := &frameRecorder{}

	first := newFakeTransport("alice")
	second := newFakeTransport("alice")

	firstSess := New(first, registry, handler, notifier)
	go firstSess.Run(context.Background())
	require.Eventually(t, func() bool {
		sink, ok := registry.Lookup("alice")
		return ok && sink == ws.Sink(first)
	}, time.Second, 5*time.Millisecond)

	secondSess := New(second, registry, handler, notifier)
	go secondSess.Run(context.Background())
	require.Eventually(t, func() bool {
		sink, ok := registry.Lookup("alice")
		return ok && sink == ws.Sink(second)
	}, time.Second, 5*time.Millisecond)

	// The orphaned session's teardown must not evict its replacement.
	firstSess.Close()
	require.Eventually(t, func() bool {
		return firstSess.State() == StateClosed
	}, time.Second, 5*time.Millisecond)

	sink, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, ws.Sink(second), sink)

	secondSess.Close()
	_, ok = registry.Lookup("alice")
	assert.False(t, ok)
}
