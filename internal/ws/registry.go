package ws

import "sync"

// Sink is the outbound capability of a live connection. TrySend must never
// block: a sink that cannot accept a payload reports false and the payload
// is dropped.
type Sink interface {
	Identity() string
	TrySend(payload []byte) bool
}

// Entry pairs an identity with its registered sink.
type Entry struct {
	Identity string
	Sink     Sink
}

// Registry is the thread-safe mapping from identity to outbound sink. At any
// instant its key set equals the identities that have joined and not yet
// left. A plain Mutex is used deliberately: router operations read and write
// under the same critical section, so a reader/writer split buys nothing.
type Registry struct {
	mu    sync.Mutex
	sinks map[string]Sink
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]Sink)}
}

// Join inserts or replaces the sink for identity. When a previous sink is
// superseded it is returned so the caller can orphan it; the registry never
// closes sinks itself.
func (r *Registry) Join(identity string, sink Sink) (prev Sink, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced = r.sinks[identity]
	r.sinks[identity] = sink
	return prev, replaced
}

// Leave removes the mapping for identity, but only if it still points at
// sink. A session that was superseded by a newer connection therefore cannot
// evict its replacement during its own teardown. Idempotent: leaving twice,
// or leaving an identity that never joined, is a no-op.
func (r *Registry) Leave(identity string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sinks[identity]
	if !ok || current != sink {
		return
	}
	delete(r.sinks, identity)
}

// Lookup returns the current sink for identity.
func (r *Registry) Lookup(identity string) (Sink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sink, ok := r.sinks[identity]
	return sink, ok
}

// Enumerate returns a consistent snapshot of all registered entries.
func (r *Registry) Enumerate() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.sinks))
	for identity, sink := range r.sinks {
		entries = append(entries, Entry{Identity: identity, Sink: sink})
	}
	return entries
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}
