package shadow

import (
	"sort"

	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
)

var (
	ErrAlreadyDisabled = eris.New("component is already disabled")
	ErrNotDisabled     = eris.New("component is not disabled")
)

// DisabledComponents holds components that were pulled out of the Store by value so they can be
// put back later. A (entity, kind) pair is either in the Store or here, never both.
type DisabledComponents struct {
	rows map[ecs.Entity]map[ecs.ComponentID]codec.Value
}

func NewDisabledComponents() *DisabledComponents {
	return &DisabledComponents{rows: make(map[ecs.Entity]map[ecs.ComponentID]codec.Value)}
}

// Put stores the value of a disabled component.
func (d *DisabledComponents) Put(e ecs.Entity, id ecs.ComponentID, value codec.Value) error {
	row, ok := d.rows[e]
	if !ok {
		row = make(map[ecs.ComponentID]codec.Value)
		d.rows[e] = row
	}
	if _, exists := row[id]; exists {
		return eris.Wrapf(ErrAlreadyDisabled, "component %d on entity %s", id, e)
	}
	row[id] = value
	return nil
}

// Take removes a disabled component and returns its value.
func (d *DisabledComponents) Take(e ecs.Entity, id ecs.ComponentID) (codec.Value, error) {
	row, ok := d.rows[e]
	if !ok {
		return nil, eris.Wrapf(ErrNotDisabled, "component %d on entity %s", id, e)
	}
	value, ok := row[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotDisabled, "component %d on entity %s", id, e)
	}
	d.Purge(e, id)
	return value, nil
}

// Get returns the value of a disabled component without removing it.
func (d *DisabledComponents) Get(e ecs.Entity, id ecs.ComponentID) (codec.Value, bool) {
	value, ok := d.rows[e][id]
	return value, ok
}

func (d *DisabledComponents) Has(e ecs.Entity, id ecs.ComponentID) bool {
	_, ok := d.rows[e][id]
	return ok
}

// Purge drops the shadow of one (entity, kind) pair. It reports whether there was one.
func (d *DisabledComponents) Purge(e ecs.Entity, id ecs.ComponentID) bool {
	row, ok := d.rows[e]
	if !ok {
		return false
	}
	if _, ok := row[id]; !ok {
		return false
	}
	delete(row, id)
	if len(row) == 0 {
		delete(d.rows, e)
	}
	return true
}

// Kinds returns the disabled kinds of an entity in ascending id order.
func (d *DisabledComponents) Kinds(e ecs.Entity) []ecs.ComponentID {
	row := d.rows[e]
	out := make([]ecs.ComponentID, 0, len(row))
	for id := range row {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RemoveEntity drops every shadow row of an entity.
func (d *DisabledComponents) RemoveEntity(e ecs.Entity) {
	delete(d.rows, e)
}

// Entities returns every entity with at least one disabled component.
func (d *DisabledComponents) Entities() []ecs.Entity {
	out := make([]ecs.Entity, 0, len(d.rows))
	for e := range d.rows {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of disabled (entity, kind) pairs.
func (d *DisabledComponents) Len() int {
	n := 0
	for _, row := range d.rows {
		n += len(row)
	}
	return n
}
