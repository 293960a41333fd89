// Package history keeps the in-process transcript of delivered messages.
// Transcripts are append-only and live for the lifetime of the process;
// durability across restarts is explicitly not a goal.
package history

import "sync"

// Store maps an identity to its ordered transcript. Appends are atomic
// units: Get never observes a partially appended line.
type Store struct {
	mu          sync.Mutex
	transcripts map[string][]string
}

// NewStore creates an empty history store.
func NewStore() *Store {
	return &Store{transcripts: make(map[string][]string)}
}

// Append adds line to the end of identity's transcript, creating the
// transcript on first use. Growth is unbounded; there is no eviction.
func (s *Store) Append(identity, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[identity] = append(s.transcripts[identity], line)
}

// Get returns a copy of identity's transcript in append order, or an empty
// slice if the identity has never received anything.
func (s *Store) Get(identity string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript := s.transcripts[identity]
	out := make([]string, len(transcript))
	copy(out, transcript)
	return out
}
