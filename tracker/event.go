package tracker

import (
	"github.com/goccy/go-json"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
)

// Event is one item of a client's per-step batch. The wire form is an object tagged with "kind".
type Event interface {
	EventKind() string
}

const (
	KindTypeRegistry = "type_registry"
	KindComponent    = "component"
	KindEntity       = "entity"
)

// TypeRegistryEvent carries the full type export. It is sent once per client.
type TypeRegistryEvent struct {
	Types []TypeEntry
}

func (TypeRegistryEvent) EventKind() string { return KindTypeRegistry }

func (e TypeRegistryEvent) MarshalJSON() ([]byte, error) {
	types := e.Types
	if types == nil {
		types = []TypeEntry{}
	}
	return json.Marshal(struct {
		Kind  string      `json:"kind"`
		Types []TypeEntry `json:"types"`
	}{Kind: KindTypeRegistry, Types: types})
}

// ComponentEvent announces component kinds the client has not seen yet.
type ComponentEvent struct {
	Components []ComponentInfo
}

func (ComponentEvent) EventKind() string { return KindComponent }

func (e ComponentEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind       string          `json:"kind"`
		Components []ComponentInfo `json:"components"`
	}{Kind: KindComponent, Components: e.Components})
}

// EntityEvent describes what happened to one entity since the client's previous scan.
type EntityEvent struct {
	Entity   ecs.Entity
	Mutation Mutation
}

func (EntityEvent) EventKind() string { return KindEntity }

func (e EntityEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     string     `json:"kind"`
		Entity   ecs.Entity `json:"entity"`
		Mutation Mutation   `json:"mutation"`
	}{Kind: KindEntity, Entity: e.Entity, Mutation: e.Mutation})
}

// Mutation is either the removal of the whole entity or a set of component changes and removals.
type Mutation struct {
	Remove  bool
	Changes []Change
	Removes []Removal
}

func (m Mutation) MarshalJSON() ([]byte, error) {
	if m.Remove {
		return []byte(`{"kind":"remove"}`), nil
	}
	changes, removes := m.Changes, m.Removes
	if changes == nil {
		changes = []Change{}
	}
	if removes == nil {
		removes = []Removal{}
	}
	return json.Marshal(struct {
		Kind    string    `json:"kind"`
		Changes []Change  `json:"changes"`
		Removes []Removal `json:"removes"`
	}{Kind: "change", Changes: changes, Removes: removes})
}

// Change reports a component that was added or written. Presence-only changes carry no value:
// the kind is zero-sized, or its value could not be encoded.
type Change struct {
	Component ecs.ComponentID
	Disabled  bool
	Value     codec.Value
	HasValue  bool
}

// MarshalJSON encodes the change as [id, disabled] or [id, disabled, value].
func (c Change) MarshalJSON() ([]byte, error) {
	if !c.HasValue {
		return json.Marshal([]any{c.Component, c.Disabled})
	}
	return json.Marshal([]any{c.Component, c.Disabled, c.Value})
}

// Removal reports a component kind that is no longer on the entity. Disabled is set when the kind
// was moved into the disabled shadow store rather than removed for good.
type Removal struct {
	Component ecs.ComponentID
	Disabled  bool
}

// MarshalJSON encodes the removal as [id, disabled].
func (r Removal) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Component, r.Disabled})
}
