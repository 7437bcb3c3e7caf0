package inspector

import (
	"sort"

	"pkg.world.dev/world-engine/inspector/tracker"
)

// SessionStore maps clients to what they have been told. It is owned by the step loop.
type SessionStore struct {
	sessions map[ClientID]*tracker.Session
}

// NewSessionStore returns an empty store.
func NewSessionStore() SessionStore {
	return SessionStore{sessions: make(map[ClientID]*tracker.Session)}
}

// GetOrCreate returns the session of a client, creating it on first use.
func (s *SessionStore) GetOrCreate(client ClientID) (*tracker.Session, bool) {
	if session, ok := s.sessions[client]; ok {
		return session, false
	}
	session := tracker.NewSession()
	s.sessions[client] = session
	return session, true
}

// Get returns the session of a client, if it has one.
func (s *SessionStore) Get(client ClientID) (*tracker.Session, bool) {
	session, ok := s.sessions[client]
	return session, ok
}

// Remove deletes the session of a client and reports whether it existed.
func (s *SessionStore) Remove(client ClientID) bool {
	_, ok := s.sessions[client]
	delete(s.sessions, client)
	return ok
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	return len(s.sessions)
}

// Clients returns every client with a session, sorted.
func (s *SessionStore) Clients() []ClientID {
	out := make([]ClientID, 0, len(s.sessions))
	for client := range s.sessions {
		out = append(out, client)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
