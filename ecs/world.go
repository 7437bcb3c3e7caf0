// Package ecs is the in-memory entity store observed by the inspector. Entities are grouped into
// archetypes by their exact set of component kinds. Every stored value carries the tick it was
// added at and the tick it was last written at, and removals are recorded in a short log, so
// observers can compute what changed since they last looked.
//
// Values of reflected kinds are kept in canonical value-tree form (see package codec) and are
// validated against their schema on every write. Kinds without a schema store whatever they are
// given.
//
// The world is not safe for concurrent use. It is owned by the step loop.
package ecs

import (
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/schema"
)

// Tick is the logical clock of the world. It advances once per step.
type Tick uint32

// removal records that a component kind was removed from an entity at a tick.
type removal struct {
	id   ComponentID
	tick Tick
}

// Builtins are the component kinds every world registers.
type Builtins struct {
	Parent         ComponentID
	Children       ComponentID
	Visibility     ComponentID
	ViewVisibility ComponentID
}

// World is the entity store.
type World struct {
	catalog    *schema.Catalog
	entities   entityManager
	components componentManager
	archetypes []*archetype
	resources  map[ComponentID]*cell
	tick       Tick

	// Removal log, double buffered. removals[0] collects the current step, removals[1] holds the
	// previous one. Advance rotates them.
	removals [2]map[Entity][]removal

	builtins Builtins
}

// NewWorld creates an empty world whose reflected kinds resolve against catalog. A nil catalog
// creates a fresh one.
func NewWorld(catalog *schema.Catalog) (*World, error) {
	if catalog == nil {
		catalog = schema.NewCatalog()
	}
	w := &World{
		catalog:    catalog,
		entities:   newEntityManager(),
		components: newComponentManager(),
		archetypes: make([]*archetype, 0),
		resources:  make(map[ComponentID]*cell),
		tick:       1,
		removals:   [2]map[Entity][]removal{make(map[Entity][]removal), make(map[Entity][]removal)},
	}
	// The empty archetype always exists at index 0.
	w.archetypes = append(w.archetypes, newArchetype(0, bitmap.Bitmap{}))

	if err := w.registerBuiltins(); err != nil {
		return nil, eris.Wrap(err, "failed to register builtin components")
	}
	return w, nil
}

func (w *World) registerBuiltins() error {
	var err error
	if w.builtins.Parent, err = Register[Parent](w); err != nil {
		return err
	}
	if w.builtins.Children, err = Register[Children](w); err != nil {
		return err
	}
	if w.builtins.ViewVisibility, err = Register[ViewVisibility](w); err != nil {
		return err
	}
	if w.builtins.Visibility, err = Register[Visibility](w, WithRequired(w.builtins.ViewVisibility)); err != nil {
		return err
	}
	return nil
}

// Catalog returns the schema catalog the world validates values against.
func (w *World) Catalog() *schema.Catalog {
	return w.catalog
}

// Builtins returns the ids of the builtin component kinds.
func (w *World) Builtins() Builtins {
	return w.builtins
}

// Tick returns the current logical tick. Writes made now are stamped with it.
func (w *World) Tick() Tick {
	return w.tick
}

// Advance moves the world to the next tick and rotates the removal log.
func (w *World) Advance() {
	w.tick++
	w.removals[1] = w.removals[0]
	w.removals[0] = make(map[Entity][]removal)
}

// SetTick overrides the logical tick. Used when restoring a snapshot.
func (w *World) SetTick(t Tick) {
	w.tick = t
}

// -------------------------------------------------------------------------------------------------
// Entities
// -------------------------------------------------------------------------------------------------

// Spawn creates an empty entity.
func (w *World) Spawn() (Entity, error) {
	return w.entities.new(w.archetypes[0])
}

// Restore allocates the exact handle e in an empty slot. Used when loading a snapshot.
func (w *World) Restore(e Entity) error {
	return w.entities.restore(e, w.archetypes[0])
}

// Alive reports whether the handle refers to a live entity.
func (w *World) Alive(e Entity) bool {
	return w.entities.isAlive(e)
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.entities.alive
}

// Entities returns every live entity, grouped by archetype.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, w.entities.alive)
	for _, arch := range w.archetypes {
		out = append(out, arch.entities...)
	}
	return out
}

// Kinds returns the component kinds of an entity in ascending id order.
func (w *World) Kinds(e Entity) ([]ComponentID, error) {
	arch, err := w.entities.getArchetype(e)
	if err != nil {
		return nil, err
	}
	out := make([]ComponentID, len(arch.ids))
	copy(out, arch.ids)
	return out, nil
}

// Despawn removes an entity. Its children are detached to the root and it is removed from its
// parent's children.
func (w *World) Despawn(e Entity) error {
	if !w.Alive(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	if err := w.RemoveParent(e); err != nil {
		return err
	}
	for _, child := range w.Children(e) {
		if w.Alive(child) {
			if _, err := w.removeRaw(child, w.builtins.Parent); err != nil {
				return err
			}
		}
	}
	return w.entities.remove(e)
}

// -------------------------------------------------------------------------------------------------
// Components
// -------------------------------------------------------------------------------------------------

// Has reports whether the entity has a component kind. Returns false for dead entities.
func (w *World) Has(e Entity, id ComponentID) bool {
	arch, err := w.entities.getArchetype(e)
	if err != nil {
		return false
	}
	return arch.has(id)
}

// Get returns the stored value of a component. The returned value is shared with the store and
// must not be modified.
func (w *World) Get(e Entity, id ComponentID) (any, error) {
	c, err := w.cellOf(e, id)
	if err != nil {
		return nil, err
	}
	return c.value, nil
}

// ComponentTicks returns the ticks a component was added and last changed at.
func (w *World) ComponentTicks(e Entity, id ComponentID) (added Tick, changed Tick, err error) {
	c, err := w.cellOf(e, id)
	if err != nil {
		return 0, 0, err
	}
	return c.added, c.changed, nil
}

// ChangedSince reports whether a component was added or written after the given tick.
func (w *World) ChangedSince(e Entity, id ComponentID, since Tick) (bool, error) {
	_, changed, err := w.ComponentTicks(e, id)
	if err != nil {
		return false, err
	}
	return changed > since, nil
}

// RemovedSince returns the kinds removed from an entity after the given tick, even if they have
// been inserted again since. Only the current and previous step are retained. Observers scanning
// every step therefore see each removal exactly once.
func (w *World) RemovedSince(e Entity, since Tick) []ComponentID {
	var out []ComponentID
	for _, log := range w.removals {
		for _, r := range log[e] {
			if r.tick > since && !containsID(out, r.id) {
				out = append(out, r.id)
			}
		}
	}
	return out
}

// Insert adds a component to an entity. Missing required kinds are inserted with their defaults.
// Fails with ErrComponentExists if the entity already has the kind. Nothing is modified on error.
func (w *World) Insert(e Entity, id ComponentID, value any) error {
	info, err := w.entityComponent(id)
	if err != nil {
		return err
	}
	arch, err := w.entities.getArchetype(e)
	if err != nil {
		return err
	}
	if arch.has(id) {
		return eris.Wrapf(ErrComponentExists, "component %s on entity %s", info.Name, e)
	}

	switch id {
	case w.builtins.Parent:
		parent, err := entityFromValue(value)
		if err != nil {
			return err
		}
		return w.SetParent(e, parent)
	case w.builtins.Children:
		return w.adoptChildren(e, value)
	}

	v, err := w.prepare(info, value)
	if err != nil {
		return err
	}
	return w.insertPrepared(e, map[ComponentID]any{id: v}, info)
}

// Set inserts a component or overwrites its current value.
func (w *World) Set(e Entity, id ComponentID, value any) error {
	if !w.Has(e, id) {
		return w.Insert(e, id, value)
	}
	info, err := w.entityComponent(id)
	if err != nil {
		return err
	}

	switch id {
	case w.builtins.Parent:
		parent, err := entityFromValue(value)
		if err != nil {
			return err
		}
		return w.SetParent(e, parent)
	case w.builtins.Children:
		return w.adoptChildren(e, value)
	}

	v, err := w.prepare(info, value)
	if err != nil {
		return err
	}
	c, err := w.cellOf(e, id)
	if err != nil {
		return err
	}
	c.value = v
	c.changed = w.tick
	return nil
}

// Mutate replaces a component's value with the result of fn, applied to a private copy of the
// current value. The change tick advances even if the value is unchanged.
func (w *World) Mutate(e Entity, id ComponentID, fn func(v any) (any, error)) error {
	current, err := w.Get(e, id)
	if err != nil {
		return err
	}
	info, err := w.entityComponent(id)
	if err != nil {
		return err
	}
	if info.Reflected() {
		if current, err = codec.Clone(current); err != nil {
			return eris.Wrap(err, "failed to copy component value")
		}
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return w.Set(e, id, next)
}

// Remove removes a component from an entity and returns its value. Removing Parent detaches the
// entity; removing Children detaches every child.
func (w *World) Remove(e Entity, id ComponentID) (any, error) {
	if _, err := w.entityComponent(id); err != nil {
		return nil, err
	}
	if !w.Alive(e) {
		return nil, eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	if !w.Has(e, id) {
		return nil, eris.Wrapf(ErrComponentNotOnEntity, "component %d on entity %s", id, e)
	}

	switch id {
	case w.builtins.Parent:
		value, _ := w.Get(e, id)
		return value, w.RemoveParent(e)
	case w.builtins.Children:
		value, _ := w.Get(e, id)
		for _, child := range w.Children(e) {
			if w.Alive(child) {
				if _, err := w.removeRaw(child, w.builtins.Parent); err != nil {
					return nil, err
				}
			}
		}
		if _, err := w.removeRaw(e, id); err != nil {
			return nil, err
		}
		return value, nil
	}
	return w.removeRaw(e, id)
}

// DefaultValue returns the canonical default of a type, if it has one.
func (w *World) DefaultValue(typePath string) (any, bool) {
	s, ok := w.catalog.Lookup(typePath)
	if !ok || s.Default == nil {
		return nil, false
	}
	v, err := codec.Decode(w.catalog, typePath, s.Default())
	if err != nil {
		return nil, false
	}
	return v, true
}

// -------------------------------------------------------------------------------------------------
// Resources
// -------------------------------------------------------------------------------------------------

// SetResource stores the value of a resource kind.
func (w *World) SetResource(id ComponentID, value any) error {
	info, err := w.components.get(id)
	if err != nil {
		return err
	}
	if !info.Resource {
		return eris.Wrapf(ErrResourceKind, "component %s is not a resource", info.Name)
	}
	v, err := w.prepare(info, value)
	if err != nil {
		return err
	}
	if c, ok := w.resources[id]; ok {
		c.value = v
		c.changed = w.tick
		return nil
	}
	w.resources[id] = &cell{value: v, added: w.tick, changed: w.tick}
	return nil
}

// Resource returns the value of a resource kind.
func (w *World) Resource(id ComponentID) (any, error) {
	c, ok := w.resources[id]
	if !ok {
		return nil, eris.Wrapf(ErrComponentNotFound, "resource %d is not set", id)
	}
	return c.value, nil
}

// -------------------------------------------------------------------------------------------------
// Internal helpers
// -------------------------------------------------------------------------------------------------

// entityComponent returns the info of a registered, non-resource kind.
func (w *World) entityComponent(id ComponentID) (ComponentInfo, error) {
	info, err := w.components.get(id)
	if err != nil {
		return ComponentInfo{}, err
	}
	if info.Resource {
		return ComponentInfo{}, eris.Wrapf(ErrResourceKind, "component %s is a resource", info.Name)
	}
	return info, nil
}

// prepare validates a value against the kind's schema and returns its canonical form.
func (w *World) prepare(info ComponentInfo, value any) (any, error) {
	if !info.Reflected() {
		return value, nil
	}
	v, err := codec.Decode(w.catalog, info.TypePath, value)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid value for component %s", info.Name)
	}
	return v, nil
}

// insertPrepared inserts already validated values plus the defaults of any missing required
// kinds. Defaults are resolved before the entity is touched so a failure leaves it unchanged.
func (w *World) insertPrepared(e Entity, values map[ComponentID]any, info ComponentInfo) error {
	arch, err := w.entities.getArchetype(e)
	if err != nil {
		return err
	}

	pending := append([]ComponentID(nil), info.Required...)
	for len(pending) > 0 {
		req := pending[0]
		pending = pending[1:]
		if arch.has(req) {
			continue
		}
		if _, ok := values[req]; ok {
			continue
		}
		reqInfo, err := w.components.get(req)
		if err != nil {
			return err
		}
		def, ok := w.DefaultValue(reqInfo.TypePath)
		if !ok {
			return eris.Errorf("required component %s of %s has no default", reqInfo.Name, info.Name)
		}
		values[req] = def
		pending = append(pending, reqInfo.Required...)
	}

	components := arch.components.Clone(nil)
	for id := range values {
		components.Set(uint32(id))
	}
	dst := w.findOrCreateArchetype(components)
	if err := w.entities.move(e, dst); err != nil {
		return err
	}
	for id, v := range values {
		c := dst.cell(e, id)
		c.value = v
		c.added = w.tick
		c.changed = w.tick
	}
	return nil
}

// removeRaw removes a cell without hierarchy bookkeeping and logs the removal.
func (w *World) removeRaw(e Entity, id ComponentID) (any, error) {
	arch, err := w.entities.getArchetype(e)
	if err != nil {
		return nil, err
	}
	c := arch.cell(e, id)
	if c == nil {
		return nil, eris.Wrapf(ErrComponentNotOnEntity, "component %d on entity %s", id, e)
	}
	value := c.value

	components := arch.components.Clone(nil)
	components.Remove(uint32(id))
	if err := w.entities.move(e, w.findOrCreateArchetype(components)); err != nil {
		return nil, err
	}
	w.removals[0][e] = append(w.removals[0][e], removal{id: id, tick: w.tick})
	return value, nil
}

func (w *World) cellOf(e Entity, id ComponentID) (*cell, error) {
	arch, err := w.entities.getArchetype(e)
	if err != nil {
		return nil, err
	}
	c := arch.cell(e, id)
	if c == nil {
		return nil, eris.Wrapf(ErrComponentNotOnEntity, "component %d on entity %s", id, e)
	}
	return c, nil
}

func (w *World) findOrCreateArchetype(components bitmap.Bitmap) *archetype {
	for _, arch := range w.archetypes {
		if arch.exact(components) {
			return arch
		}
	}
	arch := newArchetype(len(w.archetypes), components)
	w.archetypes = append(w.archetypes, arch)
	return arch
}

func containsID(ids []ComponentID, id ComponentID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
