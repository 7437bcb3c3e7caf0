package ecs

import (
	"github.com/kelindar/bitmap"
	"pkg.world.dev/world-engine/inspector/assert"
)

// cell is one stored component value with its change detection ticks.
type cell struct {
	value   any
	added   Tick
	changed Tick
}

// column stores the cells of one component kind. Its length always matches the number of
// entities in the owning archetype.
type column struct {
	id    ComponentID
	cells []cell
}

func (c *column) extend() {
	c.cells = append(c.cells, cell{})
}

// remove swap-removes the cell at row.
func (c *column) remove(row int) {
	last := len(c.cells) - 1
	c.cells[row] = c.cells[last]
	c.cells[last] = cell{}
	c.cells = c.cells[:last]
}

// archetype holds every entity with exactly the same set of component kinds.
type archetype struct {
	id         int
	components bitmap.Bitmap // Component kinds contained in this archetype
	ids        []ComponentID // Same kinds in ascending order, matching columns
	rows       rowIndex
	entities   []Entity
	columns    []column
}

func newArchetype(aid int, components bitmap.Bitmap) *archetype {
	ids := make([]ComponentID, 0, components.Count())
	components.Range(func(x uint32) {
		ids = append(ids, ComponentID(x))
	})
	columns := make([]column, len(ids))
	for i, id := range ids {
		columns[i] = column{id: id, cells: make([]cell, 0)}
	}
	return &archetype{
		id:         aid,
		components: components,
		ids:        ids,
		rows:       newRowIndex(),
		entities:   make([]Entity, 0),
		columns:    columns,
	}
}

// exact returns true if the given components match the archetype's exactly.
func (a *archetype) exact(components bitmap.Bitmap) bool {
	if len(a.ids) != components.Count() {
		return false
	}
	intersect := components.Clone(nil)
	intersect.And(a.components)
	return intersect.Count() == components.Count()
}

func (a *archetype) has(id ComponentID) bool {
	return a.components.Contains(uint32(id))
}

// column returns the column index of a component kind, or -1.
func (a *archetype) column(id ComponentID) int {
	if !a.has(id) {
		return -1
	}
	for i, cid := range a.ids {
		if cid == id {
			return i
		}
	}
	assert.That(false, "bitmap and column list disagree")
	return -1
}

func (a *archetype) row(e Entity) int {
	row, ok := a.rows.get(e.Index())
	assert.That(ok, "entity %s is not in archetype %d", e, a.id)
	return row
}

// cell returns a pointer to the entity's cell for a component kind, or nil if absent.
func (a *archetype) cell(e Entity, id ComponentID) *cell {
	col := a.column(id)
	if col < 0 {
		return nil
	}
	return &a.columns[col].cells[a.row(e)]
}

// newEntity appends an entity with empty cells.
func (a *archetype) newEntity(e Entity) {
	a.entities = append(a.entities, e)
	for i := range a.columns {
		a.columns[i].extend()
		assert.That(len(a.columns[i].cells) == len(a.entities), "column length doesn't match entities")
	}
	a.rows.set(e.Index(), len(a.entities)-1)
}

// removeEntity swap-removes an entity and repairs the row of the entity moved into its place.
func (a *archetype) removeEntity(e Entity) {
	row := a.row(e)
	last := len(a.entities) - 1

	a.entities[row] = a.entities[last]
	a.entities = a.entities[:last]
	for i := range a.columns {
		a.columns[i].remove(row)
		assert.That(len(a.columns[i].cells) == len(a.entities), "column length doesn't match entities")
	}

	ok := a.rows.remove(e.Index())
	assert.That(ok, "entity %s has no row in archetype %d", e, a.id)

	if row != last {
		a.rows.set(a.entities[row].Index(), row)
	}
	assert.That(a.rows.len() == len(a.entities), "row index doesn't match entities")
}

// moveEntity moves an entity into dst, copying every cell whose kind exists in both archetypes.
func (a *archetype) moveEntity(dst *archetype, e Entity) {
	row := a.row(e)
	dst.newEntity(e)
	newRow := dst.row(e)

	for i := range dst.columns {
		src := a.column(dst.columns[i].id)
		if src >= 0 {
			dst.columns[i].cells[newRow] = a.columns[src].cells[row]
		}
	}
	a.removeEntity(e)
}
