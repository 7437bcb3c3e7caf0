package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkg.world.dev/world-engine/inspector/internal/testutils"
)

// -------------------------------------------------------------------------------------------------
// Model-based fuzzing
//
// Random sequences of operations run against both the implementation and a plain Go map. After
// every operation the two must agree.
// -------------------------------------------------------------------------------------------------

func TestRowIndex_ModelBasedFuzz(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	impl := newRowIndex()
	model := make(map[uint32]int)

	for range 1 << 14 {
		// Mostly dense keys with the occasional far away one.
		key := uint32(prng.IntN(5_000)) //nolint:gosec // bounded
		if prng.IntN(20) == 0 {
			key = prng.Uint32()
		}
		switch prng.IntN(3) {
		case 0:
			value := prng.IntN(1 << 20)
			impl.set(key, value)
			model[key] = value
		case 1:
			_, inModel := model[key]
			delete(model, key)
			assert.Equal(t, inModel, impl.remove(key), "remove(%d)", key)
		default:
			if len(model) > 0 && prng.IntN(5) > 0 {
				key = testutils.RandMapKey(prng, model)
			}
			want, inModel := model[key]
			got, ok := impl.get(key)
			require.Equal(t, inModel, ok, "get(%d)", key)
			if ok {
				assert.Equal(t, want, got, "get(%d)", key)
			}
		}
	}

	assert.Equal(t, len(model), impl.len())
	for key, want := range model {
		got, ok := impl.get(key)
		require.True(t, ok, "key %d", key)
		assert.Equal(t, want, got, "key %d", key)
	}
}

func TestWorld_ModelBasedFuzz(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	w, err := NewWorld(nil)
	require.NoError(t, err)
	kinds := make([]ComponentID, 0, 4)
	for _, name := range []string{"a", "b", "c", "d"} {
		id, err := w.RegisterComponent(name, "uint64")
		require.NoError(t, err)
		kinds = append(kinds, id)
	}

	model := make(map[Entity]map[ComponentID]uint64)
	var dead []Entity

	for range 1 << 13 {
		switch op := prng.IntN(10); {
		case op < 2 || len(model) == 0:
			e, err := w.Spawn()
			require.NoError(t, err)
			require.NotContains(t, model, e)
			model[e] = make(map[ComponentID]uint64)
		case op < 3:
			e := testutils.RandMapKey(prng, model)
			require.NoError(t, w.Despawn(e))
			delete(model, e)
			dead = append(dead, e)
		case op < 7:
			e := testutils.RandMapKey(prng, model)
			id := kinds[prng.IntN(len(kinds))]
			value := prng.Uint64()
			require.NoError(t, w.Set(e, id, value))
			model[e][id] = value
		default:
			e := testutils.RandMapKey(prng, model)
			id := kinds[prng.IntN(len(kinds))]
			_, inModel := model[e][id]
			_, err := w.Remove(e, id)
			if inModel {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrComponentNotOnEntity)
			}
			delete(model[e], id)
		}
		if prng.IntN(50) == 0 {
			w.Advance()
		}
	}

	require.Equal(t, len(model), w.Len())
	assert.ElementsMatch(t, mapKeys(model), w.Entities())
	for e, values := range model {
		for _, id := range kinds {
			want, ok := values[id]
			require.Equal(t, ok, w.Has(e, id), "entity %s kind %d", e, id)
			if !ok {
				continue
			}
			got, err := w.Get(e, id)
			require.NoError(t, err)
			assert.Equal(t, want, got, "entity %s kind %d", e, id)
		}
	}
	for _, e := range dead {
		assert.False(t, w.Alive(e), "entity %s", e)
	}
	checkArchetypes(t, w)
}

// checkArchetypes verifies that every archetype's rows, entities and columns line up.
func checkArchetypes(t *testing.T, w *World) {
	t.Helper()
	for _, arch := range w.archetypes {
		for row, e := range arch.entities {
			got, ok := arch.rows.get(e.Index())
			require.True(t, ok, "archetype %d entity %s", arch.id, e)
			assert.Equal(t, row, got, "archetype %d entity %s", arch.id, e)
			assert.Same(t, arch, w.entities.slots[e.Index()].arch)
		}
		for _, col := range arch.columns {
			assert.Len(t, col.cells, len(arch.entities), "archetype %d column %d", arch.id, col.id)
		}
	}
}

func TestArchetype_MoveKeepsSharedCells(t *testing.T) {
	t.Parallel()

	w, err := NewWorld(nil)
	require.NoError(t, err)
	a, err := w.RegisterComponent("a", "string")
	require.NoError(t, err)
	b, err := w.RegisterComponent("b", "string")
	require.NoError(t, err)

	e, err := w.Spawn()
	require.NoError(t, err)
	require.NoError(t, w.Insert(e, a, "first"))
	w.Advance()
	require.NoError(t, w.Insert(e, b, "second"))

	v, err := w.Get(e, a)
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	added, _, err := w.ComponentTicks(e, a)
	require.NoError(t, err)
	assert.Equal(t, Tick(1), added)

	// Archetypes are reused by exact component set.
	other, err := w.Spawn()
	require.NoError(t, err)
	require.NoError(t, w.Insert(other, b, "x"))
	require.NoError(t, w.Insert(other, a, "y"))
	assert.Same(t, w.entities.slots[e.Index()].arch, w.entities.slots[other.Index()].arch)
	assert.Len(t, w.archetypes, 4)
}

func mapKeys[K comparable, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
