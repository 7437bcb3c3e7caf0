package ecs

import (
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/assert"
)

// Entity is a generation-checked handle. The low 32 bits are the slot index and the high 32 bits
// the slot's generation at the time of allocation. A despawned slot is recycled with a bumped
// generation, so handles to the old occupant stop resolving instead of aliasing the new one.
type Entity uint64

// MaxEntityIndex is the maximum slot index that can be allocated.
const MaxEntityIndex = math.MaxUint32 - 1

func newEntity(index, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

// Index returns the slot index of the entity.
func (e Entity) Index() uint32 {
	return uint32(e) //nolint:gosec // truncation intended
}

// Generation returns the generation of the slot the handle was allocated in.
func (e Entity) Generation() uint32 {
	return uint32(e >> 32) //nolint:gosec // truncation intended
}

// Bits returns the raw 64-bit representation used on the wire.
func (e Entity) Bits() uint64 {
	return uint64(e)
}

func (e Entity) String() string {
	return strconv.FormatUint(uint64(e.Index()), 10) + "v" + strconv.FormatUint(uint64(e.Generation()), 10)
}

// slot is the bookkeeping for one entity index.
type slot struct {
	generation uint32
	arch       *archetype // nil while the slot is free
}

// entityManager allocates entity handles and maps live entities to their archetype. All methods
// that accept a pointer to an archetype expect a non-nil pointer.
type entityManager struct {
	slots []slot
	free  []uint32 // FIFO queue of free slot indices
	alive int
}

func newEntityManager() entityManager {
	return entityManager{
		slots: make([]slot, 0),
		free:  make([]uint32, 0),
	}
}

// new allocates an entity in the given archetype.
func (em *entityManager) new(arch *archetype) (Entity, error) {
	assert.That(arch != nil, "archetype must not be nil")

	var index uint32
	if len(em.free) > 0 {
		index = em.free[0]
		em.free = em.free[1:]
	} else {
		if len(em.slots) > MaxEntityIndex {
			return 0, eris.New("max number of entities exceeded")
		}
		index = uint32(len(em.slots)) //nolint:gosec // bounded above
		em.slots = append(em.slots, slot{})
	}

	s := &em.slots[index]
	s.arch = arch
	e := newEntity(index, s.generation)
	arch.newEntity(e)
	em.alive++
	return e, nil
}

// restore allocates a specific handle, used when loading a snapshot into an empty world. Slots
// skipped over are added to the free list with the generation they would have had.
func (em *entityManager) restore(e Entity, arch *archetype) error {
	index := e.Index()
	for uint32(len(em.slots)) <= index { //nolint:gosec // slot count is bounded by MaxEntityIndex
		em.free = append(em.free, uint32(len(em.slots))) //nolint:gosec // same as above
		em.slots = append(em.slots, slot{})
	}
	s := &em.slots[index]
	if s.arch != nil {
		return eris.Errorf("entity slot %d is already in use", index)
	}
	for i, idx := range em.free {
		if idx == index {
			em.free = append(em.free[:i], em.free[i+1:]...)
			break
		}
	}
	s.generation = e.Generation()
	s.arch = arch
	arch.newEntity(e)
	em.alive++
	return nil
}

// remove frees an entity's slot and bumps its generation.
func (em *entityManager) remove(e Entity) error {
	arch, err := em.getArchetype(e)
	if err != nil {
		return err
	}
	arch.removeEntity(e)

	s := &em.slots[e.Index()]
	s.arch = nil
	s.generation++
	em.free = append(em.free, e.Index())
	em.alive--
	return nil
}

// move moves an entity into another archetype, carrying over the cells both archetypes share.
func (em *entityManager) move(e Entity, dst *archetype) error {
	src, err := em.getArchetype(e)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	src.moveEntity(dst, e)
	em.slots[e.Index()].arch = dst
	return nil
}

// isAlive checks if the handle refers to the current occupant of a live slot.
func (em *entityManager) isAlive(e Entity) bool {
	index := e.Index()
	if int(index) >= len(em.slots) {
		return false
	}
	s := em.slots[index]
	return s.arch != nil && s.generation == e.Generation()
}

// getArchetype returns the archetype of a live entity or ErrEntityNotFound.
func (em *entityManager) getArchetype(e Entity) (*archetype, error) {
	if !em.isAlive(e) {
		return nil, eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	return em.slots[e.Index()].arch, nil
}
