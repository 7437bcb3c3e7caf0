// Package command parses and executes the mutations a client can request: editing, inserting,
// removing and toggling components, toggling visibility, and spawning, despawning and reparenting
// entities. Execution keeps the shadow state consistent with the world: a component is either in
// the world or disabled, never both.
package command

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
)

// Method names.
const (
	MethodUpdateComponent  = "update_component"
	MethodToggleComponent  = "toggle_component"
	MethodRemoveComponent  = "remove_component"
	MethodInsertComponent  = "insert_component"
	MethodDespawnEntity    = "despawn_entity"
	MethodToggleVisibility = "toggle_visibility"
	MethodReparentEntity   = "reparent_entity"
	MethodSpawnEntity      = "spawn_entity"
)

// Command is a parsed mutation request.
type Command interface {
	Method() string
}

// UpdateComponent replaces the value of a component the entity has.
type UpdateComponent struct {
	Entity    ecs.Entity
	Component ecs.ComponentID
	Value     codec.Value
}

// ToggleComponent disables an enabled component or re-enables a disabled one.
type ToggleComponent struct {
	Entity    ecs.Entity
	Component ecs.ComponentID
}

// RemoveComponent removes a component for good, including a disabled copy.
type RemoveComponent struct {
	Entity    ecs.Entity
	Component ecs.ComponentID
}

// InsertComponent adds a component the entity doesn't have.
type InsertComponent struct {
	Entity    ecs.Entity
	Component ecs.ComponentID
	Value     codec.Value
}

// DespawnMode selects what DespawnEntity destroys.
type DespawnMode string

const (
	// DespawnRecursive destroys the entity and its subtree.
	DespawnRecursive DespawnMode = "recursive"
	// DespawnDescendants destroys the subtree and keeps the entity.
	DespawnDescendants DespawnMode = "descendants"
)

// DespawnEntity destroys an entity and its subtree, or only its descendants with DespawnDescendants.
type DespawnEntity struct {
	Entity ecs.Entity
	Mode   DespawnMode
}

// ToggleVisibility hides a visible entity or shows a hidden one. The next toggle restores the
// original Visibility value.
type ToggleVisibility struct {
	Entity ecs.Entity
}

// ReparentEntity moves an entity under a new parent, or to the root when Parent is nil.
type ReparentEntity struct {
	Entity ecs.Entity
	Parent *ecs.Entity
}

// SpawnEntity creates an empty entity, optionally as a child of Parent.
type SpawnEntity struct {
	Parent *ecs.Entity
}

func (UpdateComponent) Method() string  { return MethodUpdateComponent }
func (ToggleComponent) Method() string  { return MethodToggleComponent }
func (RemoveComponent) Method() string  { return MethodRemoveComponent }
func (InsertComponent) Method() string  { return MethodInsertComponent }
func (DespawnEntity) Method() string    { return MethodDespawnEntity }
func (ToggleVisibility) Method() string { return MethodToggleVisibility }
func (ReparentEntity) Method() string   { return MethodReparentEntity }
func (SpawnEntity) Method() string      { return MethodSpawnEntity }

// componentParams is the wire form shared by the component commands.
type componentParams struct {
	Entity    *ecs.Entity      `json:"entity"`
	Component *ecs.ComponentID `json:"component"`
	Value     json.RawMessage  `json:"value"`
}

type despawnParams struct {
	Entity *ecs.Entity `json:"entity"`
	Kind   DespawnMode `json:"kind"`
}

type entityParams struct {
	Entity *ecs.Entity `json:"entity"`
	Parent *ecs.Entity `json:"parent"`
}

// Parse builds a command from a method name and its JSON params.
func Parse(method string, params []byte) (Command, error) {
	switch method {
	case MethodUpdateComponent, MethodInsertComponent:
		p, err := parseComponent(params, true)
		if err != nil {
			return nil, err
		}
		value, err := codec.Unmarshal(p.Value)
		if err != nil {
			return nil, eris.Wrap(ErrInvalidParams, err.Error())
		}
		if method == MethodUpdateComponent {
			return UpdateComponent{Entity: *p.Entity, Component: *p.Component, Value: value}, nil
		}
		return InsertComponent{Entity: *p.Entity, Component: *p.Component, Value: value}, nil
	case MethodToggleComponent, MethodRemoveComponent:
		p, err := parseComponent(params, false)
		if err != nil {
			return nil, err
		}
		if method == MethodToggleComponent {
			return ToggleComponent{Entity: *p.Entity, Component: *p.Component}, nil
		}
		return RemoveComponent{Entity: *p.Entity, Component: *p.Component}, nil
	case MethodDespawnEntity:
		var p despawnParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		if p.Entity == nil {
			return nil, eris.Wrap(ErrInvalidParams, "missing field entity")
		}
		switch p.Kind {
		case "":
			p.Kind = DespawnRecursive
		case DespawnRecursive, DespawnDescendants:
		default:
			return nil, eris.Wrapf(ErrInvalidParams, "unknown despawn kind %q", p.Kind)
		}
		return DespawnEntity{Entity: *p.Entity, Mode: p.Kind}, nil
	case MethodToggleVisibility, MethodReparentEntity:
		var p entityParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		if p.Entity == nil {
			return nil, eris.Wrap(ErrInvalidParams, "missing field entity")
		}
		if method == MethodToggleVisibility {
			return ToggleVisibility{Entity: *p.Entity}, nil
		}
		return ReparentEntity{Entity: *p.Entity, Parent: p.Parent}, nil
	case MethodSpawnEntity:
		var p entityParams
		if len(params) > 0 {
			if err := unmarshalParams(params, &p); err != nil {
				return nil, err
			}
		}
		return SpawnEntity{Parent: p.Parent}, nil
	default:
		return nil, eris.Wrapf(ErrUnknownMethod, "method %q", method)
	}
}

func parseComponent(params []byte, withValue bool) (componentParams, error) {
	var p componentParams
	if err := unmarshalParams(params, &p); err != nil {
		return p, err
	}
	if p.Entity == nil {
		return p, eris.Wrap(ErrInvalidParams, "missing field entity")
	}
	if p.Component == nil {
		return p, eris.Wrap(ErrInvalidParams, "missing field component")
	}
	if withValue && len(p.Value) == 0 {
		return p, eris.Wrap(ErrInvalidParams, "missing field value")
	}
	return p, nil
}

func unmarshalParams(params []byte, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return eris.Wrap(ErrInvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return eris.Wrap(ErrInvalidParams, err.Error())
	}
	return nil
}
