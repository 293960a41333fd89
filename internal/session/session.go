// Package session binds one authenticated identity to one live transport
// and drives the connection lifecycle: Connecting -> Joined -> Closing ->
// Closed. A session owns nothing shared; it delegates to the registry, the
// router, and the presence notifier.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"parley/internal/presence"
	"parley/internal/ws"
)

// State is a session lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosing
	StateClosed
)

// Transport is the session's view of its connection: the outbound sink plus
// the blocking read side. *ws.Connection satisfies it; tests substitute an
// in-memory fake.
type Transport interface {
	ws.Sink
	ReadMessage() ([]byte, error)
	Close() error
}

// FrameHandler consumes inbound frames. Satisfied by *router.Router.
type FrameHandler interface {
	HandleFrame(ctx context.Context, sender ws.Sink, raw []byte)
}

// Session is the per-connection state machine.
type Session struct {
	transport Transport
	registry  *ws.Registry
	router    FrameHandler
	presence  *presence.Notifier

	state     atomic.Int32
	closeOnce sync.Once
}

// New creates a session in the Connecting state.
func New(transport Transport, registry *ws.Registry, router FrameHandler, notifier *presence.Notifier) *Session {
	s := &Session{
		transport: transport,
		registry:  registry,
		router:    router,
		presence:  notifier,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run joins the registry, announces presence, and pumps inbound frames to
// the router until the transport closes. It always leaves through Close, so
// the registry and presence teardown runs exactly once no matter how the
// read loop ends.
func (s *Session) Run(ctx context.Context) {
	identity := s.transport.Identity()

	_, replaced := s.registry.Join(identity, s.transport)
	s.state.Store(int32(StateJoined))
	if replaced {
		// Supersede-and-orphan: the old transport is left to die on its own;
		// its Leave becomes a no-op because the registry now points at us.
		logrus.WithFields(logrus.Fields{
			"identity": identity,
		}).Info("Superseding existing connection")
	}
	s.presence.AnnounceJoin(identity)

	logrus.WithFields(logrus.Fields{
		"identity": identity,
	}).Info("Session joined")

	defer s.Close()

	for {
		raw, err := s.transport.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithFields(logrus.Fields{
					"identity": identity,
					"error":    err,
				}).Warn("Read loop terminated")
			}
			return
		}
		s.router.HandleFrame(ctx, s.transport, raw)
	}
}

// Close runs the Closing -> Closed transition exactly once, no matter how
// many paths race into it: leave the registry, announce the departure, then
// tear down the transport.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		identity := s.transport.Identity()
		s.state.Store(int32(StateClosing))

		s.registry.Leave(identity, s.transport)
		s.presence.AnnounceLeave(identity)
		_ = s.transport.Close()

		s.state.Store(int32(StateClosed))
		logrus.WithFields(logrus.Fields{
			"identity": identity,
		}).Info("Session closed")
	})
}
