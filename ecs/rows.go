package ecs

import "pkg.world.dev/world-engine/inspector/assert"

const (
	rowPageBits = 8
	rowPageSize = 1 << rowPageBits
	noRow       = -1
)

// rowIndex maps an entity slot index to its row in an archetype. Entries live in fixed-size pages
// allocated on first write, so an archetype holding a few entities with far apart slot indices
// only pays for the pages it touches.
type rowIndex struct {
	pages map[uint32][]int
	count int
}

func newRowIndex() rowIndex {
	return rowIndex{pages: make(map[uint32][]int)}
}

func (r *rowIndex) get(key uint32) (int, bool) {
	entries, ok := r.pages[key>>rowPageBits]
	if !ok {
		return 0, false
	}
	row := entries[key&(rowPageSize-1)]
	return row, row != noRow
}

func (r *rowIndex) set(key uint32, row int) {
	assert.That(row >= 0, "row must be non-negative, got %d", row)

	entries, ok := r.pages[key>>rowPageBits]
	if !ok {
		entries = make([]int, rowPageSize)
		for i := range entries {
			entries[i] = noRow
		}
		r.pages[key>>rowPageBits] = entries
	}
	offset := key & (rowPageSize - 1)
	if entries[offset] == noRow {
		r.count++
	}
	entries[offset] = row
}

// remove clears the row of a slot index and reports whether there was one. Pages are kept once
// allocated.
func (r *rowIndex) remove(key uint32) bool {
	entries, ok := r.pages[key>>rowPageBits]
	offset := key & (rowPageSize - 1)
	if !ok || entries[offset] == noRow {
		return false
	}
	entries[offset] = noRow
	r.count--
	return true
}

func (r *rowIndex) len() int {
	return r.count
}
