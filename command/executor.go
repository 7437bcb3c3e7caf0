package command

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/shadow"
)

// Executor applies commands to a world and its shadow state. A failed command leaves both as they
// were.
type Executor struct {
	world  *ecs.World
	shadow *shadow.State
	logger zerolog.Logger
}

// NewExecutor returns an executor that mutates the given world and shadow state.
func NewExecutor(world *ecs.World, state *shadow.State, logger zerolog.Logger) *Executor {
	return &Executor{world: world, shadow: state, logger: logger}
}

// Execute applies a command. The result is nil for every command except SpawnEntity, which
// returns the new entity.
func (x *Executor) Execute(cmd Command) (any, error) {
	x.logger.Debug().Str("method", cmd.Method()).Interface("command", cmd).Msg("executing command")

	result, err := x.execute(cmd)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrInvariantViolation) {
			x.logger.Error().Str("method", cmd.Method()).Msg(eris.ToString(err, true))
		} else {
			x.logger.Warn().Err(err).Str("method", cmd.Method()).Msg("command failed")
		}
		return nil, err
	}
	return result, nil
}

func (x *Executor) execute(cmd Command) (any, error) {
	switch c := cmd.(type) {
	case UpdateComponent:
		return nil, x.updateComponent(c)
	case ToggleComponent:
		return nil, x.toggleComponent(c)
	case RemoveComponent:
		return nil, x.removeComponent(c)
	case InsertComponent:
		return nil, x.insertComponent(c)
	case DespawnEntity:
		return nil, x.despawnEntity(c)
	case ToggleVisibility:
		return nil, x.toggleVisibility(c)
	case ReparentEntity:
		return nil, x.reparentEntity(c)
	case SpawnEntity:
		return x.spawnEntity(c)
	default:
		return nil, eris.Wrapf(ErrUnknownMethod, "command %T", cmd)
	}
}

// target validates the entity and component kind a command addresses.
func (x *Executor) target(e ecs.Entity, id ecs.ComponentID) (ecs.ComponentInfo, error) {
	if !x.world.Alive(e) {
		return ecs.ComponentInfo{}, eris.Wrapf(ErrNotFound, "entity %s", e)
	}
	info, err := x.world.Component(id)
	if err != nil {
		return ecs.ComponentInfo{}, eris.Wrapf(ErrNotFound, "component %d", id)
	}
	if info.Resource {
		return ecs.ComponentInfo{}, eris.Wrapf(ErrUnsupported, "component %s is a resource", info.Name)
	}
	return info, nil
}

func (x *Executor) decode(info ecs.ComponentInfo, value codec.Value) (codec.Value, error) {
	if !info.Reflected() {
		return nil, eris.Wrapf(ErrUnsupported, "component %s has no schema", info.Name)
	}
	v, err := codec.Decode(x.world.Catalog(), info.TypePath, value)
	if err != nil {
		return nil, eris.Wrap(ErrDeserialize, err.Error())
	}
	return v, nil
}

func (x *Executor) updateComponent(c UpdateComponent) error {
	info, err := x.target(c.Entity, c.Component)
	if err != nil {
		return err
	}
	if !x.world.Has(c.Entity, c.Component) {
		return eris.Wrapf(ErrNotFound, "component %s on entity %s", info.Name, c.Entity)
	}
	v, err := x.decode(info, c.Value)
	if err != nil {
		return err
	}
	return x.world.Set(c.Entity, c.Component, v)
}

func (x *Executor) toggleComponent(c ToggleComponent) error {
	info, err := x.target(c.Entity, c.Component)
	if err != nil {
		return err
	}
	if !info.Reflected() {
		return eris.Wrapf(ErrUnsupported, "component %s has no schema", info.Name)
	}

	if x.shadow.Disabled.Has(c.Entity, c.Component) {
		if x.world.Has(c.Entity, c.Component) {
			return eris.Wrapf(ErrInvariantViolation,
				"component %s on entity %s is both disabled and present", info.Name, c.Entity)
		}
		value, err := x.shadow.Disabled.Take(c.Entity, c.Component)
		if err != nil {
			return eris.Wrap(ErrInvariantViolation, err.Error())
		}
		if err := x.world.Insert(c.Entity, c.Component, value); err != nil {
			// Keep the value disabled so the component is not lost.
			if perr := x.shadow.Disabled.Put(c.Entity, c.Component, value); perr != nil {
				return eris.Wrap(ErrInvariantViolation, perr.Error())
			}
			return err
		}
		return nil
	}

	if !x.world.Has(c.Entity, c.Component) {
		return eris.Wrapf(ErrNotFound, "component %s on entity %s", info.Name, c.Entity)
	}
	value, err := x.world.Remove(c.Entity, c.Component)
	if err != nil {
		return err
	}
	if err := x.shadow.Disabled.Put(c.Entity, c.Component, value); err != nil {
		return eris.Wrap(ErrInvariantViolation, err.Error())
	}
	return nil
}

func (x *Executor) removeComponent(c RemoveComponent) error {
	info, err := x.target(c.Entity, c.Component)
	if err != nil {
		return err
	}
	if x.world.Has(c.Entity, c.Component) {
		if _, err := x.world.Remove(c.Entity, c.Component); err != nil {
			return eris.Wrapf(err, "failed to remove component %s", info.Name)
		}
	}
	x.shadow.Disabled.Purge(c.Entity, c.Component)
	return nil
}

func (x *Executor) insertComponent(c InsertComponent) error {
	info, err := x.target(c.Entity, c.Component)
	if err != nil {
		return err
	}
	if x.world.Has(c.Entity, c.Component) {
		return eris.Wrapf(ErrAlreadyExists, "component %s on entity %s", info.Name, c.Entity)
	}
	if x.shadow.Disabled.Has(c.Entity, c.Component) {
		return eris.Wrapf(ErrAlreadyExists, "component %s on entity %s is disabled", info.Name, c.Entity)
	}
	v, err := x.decode(info, c.Value)
	if err != nil {
		return err
	}
	return x.world.Insert(c.Entity, c.Component, v)
}

func (x *Executor) despawnEntity(c DespawnEntity) error {
	if !x.world.Alive(c.Entity) {
		return eris.Wrapf(ErrNotFound, "entity %s", c.Entity)
	}
	switch c.Mode {
	case DespawnDescendants:
		return x.world.DespawnDescendants(c.Entity)
	case DespawnRecursive, "":
		return x.world.DespawnRecursive(c.Entity)
	default:
		return eris.Wrapf(ErrInvalidParams, "unknown despawn kind %q", c.Mode)
	}
}

func (x *Executor) toggleVisibility(c ToggleVisibility) error {
	if !x.world.Alive(c.Entity) {
		return eris.Wrapf(ErrNotFound, "entity %s", c.Entity)
	}
	visibility := x.world.Builtins().Visibility

	if x.shadow.Visibilities.Has(c.Entity) {
		if x.world.Has(c.Entity, visibility) {
			previous, _ := x.shadow.Visibilities.Restore(c.Entity)
			if err := x.world.Set(c.Entity, visibility, string(previous)); err != nil {
				x.shadow.Visibilities.Capture(c.Entity, previous)
				return err
			}
			return nil
		}
		x.shadow.Visibilities.RemoveEntity(c.Entity)
		return nil
	}

	view, err := x.world.ViewVisibilityOf(c.Entity)
	if err != nil {
		return eris.Wrapf(ErrNotFound, "entity %s has no view visibility", c.Entity)
	}
	current, err := x.world.VisibilityOf(c.Entity)
	if err != nil {
		return eris.Wrapf(ErrNotFound, "entity %s has no visibility", c.Entity)
	}

	next := current
	switch {
	case view && (current == ecs.VisibilityInherited || current == ecs.VisibilityVisible):
		next = ecs.VisibilityHidden
	case !view && (current == ecs.VisibilityInherited || current == ecs.VisibilityHidden):
		next = ecs.VisibilityVisible
	}
	if next != current {
		if err := x.world.Set(c.Entity, visibility, string(next)); err != nil {
			return err
		}
	}
	x.shadow.Visibilities.Capture(c.Entity, current)
	return nil
}

func (x *Executor) reparentEntity(c ReparentEntity) error {
	if c.Parent == nil {
		if !x.world.Alive(c.Entity) {
			return eris.Wrapf(ErrNotFound, "entity %s", c.Entity)
		}
		return x.world.RemoveParent(c.Entity)
	}
	parent := *c.Parent
	if !x.world.Alive(parent) {
		return eris.Wrapf(ErrInvalidOperation, "parent entity %s does not exist", parent)
	}
	if !x.world.Alive(c.Entity) {
		return eris.Wrapf(ErrNotFound, "entity %s", c.Entity)
	}
	if parent == c.Entity {
		return eris.Wrapf(ErrInvalidOperation, "entity %s cannot be its own parent", c.Entity)
	}
	return x.world.SetParent(c.Entity, parent)
}

func (x *Executor) spawnEntity(c SpawnEntity) (any, error) {
	if c.Parent != nil && !x.world.Alive(*c.Parent) {
		return nil, eris.Wrapf(ErrNotFound, "parent entity %s", *c.Parent)
	}
	e, err := x.world.Spawn()
	if err != nil {
		return nil, err
	}
	if c.Parent != nil {
		if err := x.world.SetParent(e, *c.Parent); err != nil {
			if derr := x.world.Despawn(e); derr != nil {
				x.logger.Error().Err(derr).Str("entity", e.String()).Msg("failed to roll back spawned entity")
			}
			return nil, err
		}
	}
	return e, nil
}
