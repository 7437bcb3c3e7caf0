package tracker

import (
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/shadow"
)

// Session is what one client has been told so far. It holds identifiers only, never Store values,
// apart from the client's own cache of volatile values.
type Session struct {
	typeRegistrySent bool
	knownKinds       map[ecs.ComponentID]struct{}
	knownEntities    map[ecs.Entity]map[ecs.ComponentID]struct{}
	lastRun          ecs.Tick
	values           *shadow.ValueCache
}

// NewSession returns a session for a client that has been told nothing yet.
func NewSession() *Session {
	return &Session{
		knownKinds:    make(map[ecs.ComponentID]struct{}),
		knownEntities: make(map[ecs.Entity]map[ecs.ComponentID]struct{}),
		values:        shadow.NewValueCache(),
	}
}

// TypeRegistrySent reports whether the type export was already sent to the client.
func (s *Session) TypeRegistrySent() bool {
	return s.typeRegistrySent
}

// Entities returns the number of entities the client knows about.
func (s *Session) Entities() int {
	return len(s.knownEntities)
}

// LastRun returns the tick of the client's previous scan.
func (s *Session) LastRun() ecs.Tick {
	return s.lastRun
}

