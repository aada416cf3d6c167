package application

import (
	"sync"

	"chesspot/domain/entities"
)

// Session holds the in-memory state of one active match. All mutation of the
// match goes through the session mutex so a human move, a bot move and a
// clock tick never interleave.
type Session struct {
	mu    sync.Mutex
	Match *entities.Match
}

// Lock acquires the session mutex
func (s *Session) Lock() {
	s.mu.Lock()
}

// Unlock releases the session mutex
func (s *Session) Unlock() {
	s.mu.Unlock()
}

// Registry tracks the sessions of all active matches
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session for a match and returns it
func (r *Registry) Add(match *entities.Match) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := &Session{Match: match}
	r.sessions[match.ID] = session
	return session
}

// Get returns the session for a match, or nil when the match is not active
// in this process
func (r *Registry) Get(matchID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[matchID]
}

// Remove drops a session from the registry
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, matchID)
}

// Len returns the number of active sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
