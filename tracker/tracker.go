// Package tracker computes, per client, what changed in the Store since the client last looked.
// The first scan of a session yields the type export, the component catalog and a full snapshot
// of every entity. Later scans only yield new component kinds, entity removals and per-entity
// component changes.
package tracker

import (
	"sort"

	"github.com/rs/zerolog"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/shadow"
)

// Tracker scans a world on behalf of client sessions.
type Tracker struct {
	world    *ecs.World
	registry *TypeRegistry
	shadow   *shadow.State
	logger   zerolog.Logger
}

// New returns a tracker over world. The registry and shadow state must belong to the same world.
func New(world *ecs.World, registry *TypeRegistry, state *shadow.State, logger zerolog.Logger) *Tracker {
	return &Tracker{
		world:    world,
		registry: registry,
		shadow:   state,
		logger:   logger,
	}
}

// Scan returns the events a session has not seen yet and records them as seen. Events come in
// this order: the type export, new component kinds, entity events. Entity removals precede
// entity changes.
func (t *Tracker) Scan(s *Session) []Event {
	var events []Event

	if !s.typeRegistrySent {
		s.typeRegistrySent = true
		events = append(events, TypeRegistryEvent{Types: t.registry.Export()})
	}
	if fresh := trackComponents(t.world, s); len(fresh) > 0 {
		events = append(events, ComponentEvent{Components: fresh})
	}

	events = t.trackEntities(s, events)

	s.lastRun = t.world.Tick()
	return events
}

func (t *Tracker) trackEntities(s *Session, events []Event) []Event {
	// Entities that are gone.
	var gone []ecs.Entity
	for e := range s.knownEntities {
		if !t.world.Alive(e) {
			gone = append(gone, e)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })
	for _, e := range gone {
		delete(s.knownEntities, e)
		t.shadow.RemoveEntity(e)
		s.values.RemoveEntity(e)
		events = append(events, EntityEvent{Entity: e, Mutation: Mutation{Remove: true}})
	}

	for _, e := range t.world.Entities() {
		kinds, err := t.world.Kinds(e)
		if err != nil {
			continue
		}
		known, ok := s.knownEntities[e]
		if !ok {
			events = append(events, t.snapshot(s, e, kinds))
			continue
		}
		if mutation, changed := t.diff(s, e, kinds, known); changed {
			events = append(events, EntityEvent{Entity: e, Mutation: mutation})
		}
	}
	return events
}

// snapshot describes an entity the client has never seen: every current kind plus every disabled
// kind, the latter flagged as disabled.
func (t *Tracker) snapshot(s *Session, e ecs.Entity, kinds []ecs.ComponentID) Event {
	known := make(map[ecs.ComponentID]struct{}, len(kinds))
	changes := make([]Change, 0, len(kinds))
	for _, id := range kinds {
		known[id] = struct{}{}
		change := Change{Component: id}
		if v, ok := t.encode(e, id); ok {
			change.Value, change.HasValue = v, true
			t.shadow.DeepCompare.Seed(s.values, e, id, v)
		}
		changes = append(changes, change)
	}
	for _, id := range t.shadow.Disabled.Kinds(e) {
		change := Change{Component: id, Disabled: true}
		if v, ok := t.encodeDisabled(e, id); ok {
			change.Value, change.HasValue = v, true
		}
		changes = append(changes, change)
	}
	s.knownEntities[e] = known
	return EntityEvent{Entity: e, Mutation: Mutation{Changes: changes}}
}

// diff computes the changes and removals of an entity the client already knows.
func (t *Tracker) diff(
	s *Session, e ecs.Entity, kinds []ecs.ComponentID, known map[ecs.ComponentID]struct{},
) (Mutation, bool) {
	var mutation Mutation

	present := make(map[ecs.ComponentID]struct{}, len(kinds))
	for _, id := range kinds {
		present[id] = struct{}{}
	}
	for _, id := range sortedKinds(known) {
		if _, ok := present[id]; ok {
			continue
		}
		delete(known, id)
		mutation.Removes = append(mutation.Removes, Removal{Component: id, Disabled: t.shadow.Disabled.Has(e, id)})
	}
	// A kind removed and inserted again since the last scan is reported as removed, then as new.
	for _, id := range t.world.RemovedSince(e, s.lastRun) {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, ok := present[id]; !ok {
			continue
		}
		delete(known, id)
		mutation.Removes = append(mutation.Removes, Removal{Component: id, Disabled: t.shadow.Disabled.Has(e, id)})
	}

	for _, id := range kinds {
		changed, err := t.world.ChangedSince(e, id, s.lastRun)
		if err != nil || !changed {
			continue
		}
		info, err := t.world.Component(id)
		if err != nil {
			continue
		}
		disabled := t.shadow.Disabled.Has(e, id)
		_, tracked := known[id]

		if info.Reflected() && t.registry.ZeroSized(info.TypePath) {
			// Zero-sized kinds only carry presence.
			if !tracked {
				known[id] = struct{}{}
				mutation.Changes = append(mutation.Changes, Change{Component: id, Disabled: disabled})
			}
			continue
		}

		v, ok := t.encode(e, id)
		if !tracked {
			known[id] = struct{}{}
			change := Change{Component: id, Disabled: disabled}
			if ok {
				change.Value, change.HasValue = v, true
				t.shadow.DeepCompare.Seed(s.values, e, id, v)
			}
			mutation.Changes = append(mutation.Changes, change)
			continue
		}
		if !ok {
			continue
		}
		if eq, compared := t.shadow.DeepCompare.IsEq(s.values, e, id, v); compared && eq {
			continue
		}
		mutation.Changes = append(mutation.Changes, Change{Component: id, Disabled: disabled, Value: v, HasValue: true})
	}

	return mutation, len(mutation.Changes) > 0 || len(mutation.Removes) > 0
}

// encode returns the wire value of a stored component. Kinds without a schema and values that fail
// to encode yield false.
func (t *Tracker) encode(e ecs.Entity, id ecs.ComponentID) (codec.Value, bool) {
	info, err := t.world.Component(id)
	if err != nil || !info.Reflected() {
		return nil, false
	}
	v, err := t.world.Get(e, id)
	if err != nil {
		return nil, false
	}
	return t.encodeValue(e, info, v)
}

func (t *Tracker) encodeDisabled(e ecs.Entity, id ecs.ComponentID) (codec.Value, bool) {
	info, err := t.world.Component(id)
	if err != nil || !info.Reflected() {
		return nil, false
	}
	v, ok := t.shadow.Disabled.Get(e, id)
	if !ok {
		return nil, false
	}
	return t.encodeValue(e, info, v)
}

func (t *Tracker) encodeValue(e ecs.Entity, info ecs.ComponentInfo, v any) (codec.Value, bool) {
	encoded, err := codec.Encode(t.world.Catalog(), info.TypePath, v)
	if err != nil {
		t.logger.Debug().Err(err).
			Uint64("entity", e.Bits()).
			Uint32("component", uint32(info.ID)).
			Msg("skipping component that failed to encode")
		return nil, false
	}
	return encoded, true
}

func sortedKinds(kinds map[ecs.ComponentID]struct{}) []ecs.ComponentID {
	out := make([]ecs.ComponentID, 0, len(kinds))
	for id := range kinds {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
