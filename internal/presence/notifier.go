// Package presence announces joins and leaves to the other live connections.
// Presence frames are best-effort side information: a drop is never an error
// and nothing downstream depends on their ordering.
package presence

import (
	"parley/internal/ws"
	"parley/pkg/wire"
)

// Notifier fans presence announcements out over a registry snapshot.
type Notifier struct {
	registry *ws.Registry
}

// NewNotifier creates a notifier bound to the connection registry.
func NewNotifier(registry *ws.Registry) *Notifier {
	return &Notifier{registry: registry}
}

// AnnounceJoin delivers a user_connected frame to every registered
// connection except the one that just joined.
func (n *Notifier) AnnounceJoin(identity string) {
	frame := wire.UserConnected(identity)
	for _, entry := range n.registry.Enumerate() {
		if entry.Identity == identity {
			continue
		}
		entry.Sink.TrySend(frame)
	}
}

// AnnounceLeave delivers a user_disconnected frame to every connection still
// registered. The departing identity has already left the registry, so no
// self-exclusion is needed.
func (n *Notifier) AnnounceLeave(identity string) {
	frame := wire.UserDisconnected(identity)
	for _, entry := range n.registry.Enumerate() {
		entry.Sink.TrySend(frame)
	}
}
