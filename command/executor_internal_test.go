package command

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/shadow"
)

type health struct {
	Current int64 `json:"current"`
	Max     int64 `json:"max"`
}

type fixture struct {
	world  *ecs.World
	state  *shadow.State
	exec   *Executor
	health ecs.ComponentID
	raw    ecs.ComponentID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	w, err := ecs.NewWorld(nil)
	require.NoError(t, err)
	hp, err := ecs.Register[health](w)
	require.NoError(t, err)
	raw, err := w.RegisterComponent("raw", "")
	require.NoError(t, err)
	state := shadow.NewState(w.Builtins().ViewVisibility)
	return &fixture{
		world:  w,
		state:  state,
		exec:   NewExecutor(w, state, zerolog.Nop()),
		health: hp,
		raw:    raw,
	}
}

func (f *fixture) spawn(t *testing.T) ecs.Entity {
	t.Helper()
	e, err := f.world.Spawn()
	require.NoError(t, err)
	return e
}

func hp(current, limit int64) map[string]any {
	return map[string]any{"current": current, "max": limit}
}

func TestExecutor_UpdateComponent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.spawn(t)
	require.NoError(t, f.world.Insert(e, f.health, hp(5, 10)))

	_, err := f.exec.Execute(UpdateComponent{Entity: e, Component: f.health, Value: hp(7, 10)})
	require.NoError(t, err)
	v, err := f.world.Get(e, f.health)
	require.NoError(t, err)
	assert.Equal(t, hp(7, 10), v)

	rejected := []map[string]any{
		{"current": "x", "max": 10},
		{"nope": 1},
		{"current": 1, "nope": 2},
		{"current": 1},
	}
	for _, value := range rejected {
		_, err = f.exec.Execute(UpdateComponent{Entity: e, Component: f.health, Value: value})
		require.ErrorIs(t, err, ErrDeserialize, "value %v", value)
		v, err = f.world.Get(e, f.health)
		require.NoError(t, err)
		assert.Equal(t, hp(7, 10), v, "value %v must leave the component unchanged", value)
	}

	other := f.spawn(t)
	_, err = f.exec.Execute(UpdateComponent{Entity: other, Component: f.health, Value: hp(1, 1)})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.exec.Execute(UpdateComponent{Entity: e, Component: 999, Value: hp(1, 1)})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.world.Despawn(other))
	_, err = f.exec.Execute(UpdateComponent{Entity: other, Component: f.health, Value: hp(1, 1)})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExecutor_ToggleComponent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.spawn(t)
	require.NoError(t, f.world.Insert(e, f.health, hp(3, 4)))
	before, err := f.world.Kinds(e)
	require.NoError(t, err)

	_, err = f.exec.Execute(ToggleComponent{Entity: e, Component: f.health})
	require.NoError(t, err)
	assert.False(t, f.world.Has(e, f.health))
	shadowed, ok := f.state.Disabled.Get(e, f.health)
	require.True(t, ok)
	assert.Equal(t, hp(3, 4), shadowed)

	_, err = f.exec.Execute(ToggleComponent{Entity: e, Component: f.health})
	require.NoError(t, err)
	assert.False(t, f.state.Disabled.Has(e, f.health))
	v, err := f.world.Get(e, f.health)
	require.NoError(t, err)
	assert.Equal(t, hp(3, 4), v)
	after, err := f.world.Kinds(e)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestExecutor_ToggleComponentErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.spawn(t)

	_, err := f.exec.Execute(ToggleComponent{Entity: e, Component: f.health})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.world.Insert(e, f.raw, struct{}{}))
	_, err = f.exec.Execute(ToggleComponent{Entity: e, Component: f.raw})
	require.ErrorIs(t, err, ErrUnsupported)
	assert.True(t, f.world.Has(e, f.raw))

	// Present in both places.
	require.NoError(t, f.world.Insert(e, f.health, hp(1, 1)))
	require.NoError(t, f.state.Disabled.Put(e, f.health, hp(2, 2)))
	_, err = f.exec.Execute(ToggleComponent{Entity: e, Component: f.health})
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.True(t, f.state.Disabled.Has(e, f.health))
	v, _ := f.world.Get(e, f.health)
	assert.Equal(t, hp(1, 1), v)

	// A disabled value the world rejects stays disabled.
	broken := f.spawn(t)
	require.NoError(t, f.state.Disabled.Put(broken, f.health, "not a health value"))
	_, err = f.exec.Execute(ToggleComponent{Entity: broken, Component: f.health})
	require.ErrorIs(t, err, ErrDeserialize)
	assert.False(t, f.world.Has(broken, f.health))
	kept, ok := f.state.Disabled.Get(broken, f.health)
	require.True(t, ok)
	assert.Equal(t, "not a health value", kept)
}

func TestExecutor_RemoveComponent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.spawn(t)
	require.NoError(t, f.world.Insert(e, f.health, hp(1, 1)))

	_, err := f.exec.Execute(ToggleComponent{Entity: e, Component: f.health})
	require.NoError(t, err)
	_, err = f.exec.Execute(RemoveComponent{Entity: e, Component: f.health})
	require.NoError(t, err)
	assert.False(t, f.state.Disabled.Has(e, f.health))
	assert.False(t, f.world.Has(e, f.health))

	// Nothing left to restore.
	_, err = f.exec.Execute(ToggleComponent{Entity: e, Component: f.health})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.exec.Execute(RemoveComponent{Entity: e, Component: 999})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExecutor_InsertComponent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.spawn(t)

	_, err := f.exec.Execute(InsertComponent{Entity: e, Component: f.health, Value: hp(2, 3)})
	require.NoError(t, err)
	v, err := f.world.Get(e, f.health)
	require.NoError(t, err)
	assert.Equal(t, hp(2, 3), v)

	_, err = f.exec.Execute(InsertComponent{Entity: e, Component: f.health, Value: hp(2, 3)})
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = f.exec.Execute(ToggleComponent{Entity: e, Component: f.health})
	require.NoError(t, err)
	_, err = f.exec.Execute(InsertComponent{Entity: e, Component: f.health, Value: hp(2, 3)})
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = f.exec.Execute(InsertComponent{Entity: e, Component: f.raw, Value: 1})
	require.ErrorIs(t, err, ErrUnsupported)

	other := f.spawn(t)
	_, err = f.exec.Execute(InsertComponent{Entity: other, Component: f.health, Value: []any{}})
	require.ErrorIs(t, err, ErrDeserialize)
	assert.False(t, f.world.Has(other, f.health))

	// Required kinds come along with their defaults.
	_, err = f.exec.Execute(InsertComponent{Entity: other, Component: f.world.Builtins().Visibility, Value: "Hidden"})
	require.NoError(t, err)
	assert.True(t, f.world.Has(other, f.world.Builtins().ViewVisibility))
}

func TestExecutor_DespawnEntity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mode       DespawnMode
		rootAlive  bool
		childAlive bool
	}{
		{name: "recursive", mode: DespawnRecursive, rootAlive: false, childAlive: false},
		{name: "descendants", mode: DespawnDescendants, rootAlive: true, childAlive: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			root := f.spawn(t)
			child := f.spawn(t)
			grandchild := f.spawn(t)
			require.NoError(t, f.world.SetParent(child, root))
			require.NoError(t, f.world.SetParent(grandchild, child))

			_, err := f.exec.Execute(DespawnEntity{Entity: root, Mode: tc.mode})
			require.NoError(t, err)
			assert.Equal(t, tc.rootAlive, f.world.Alive(root))
			assert.Equal(t, tc.childAlive, f.world.Alive(child))
			assert.False(t, f.world.Alive(grandchild))
			if tc.rootAlive {
				assert.Empty(t, f.world.Children(root))
			}

			_, err = f.exec.Execute(DespawnEntity{Entity: child, Mode: tc.mode})
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestExecutor_ToggleVisibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		view   bool
		start  ecs.Visibility
		forced ecs.Visibility
	}{
		{name: "visible inherited", view: true, start: ecs.VisibilityInherited, forced: ecs.VisibilityHidden},
		{name: "visible explicit", view: true, start: ecs.VisibilityVisible, forced: ecs.VisibilityHidden},
		{name: "hidden by parent", view: false, start: ecs.VisibilityInherited, forced: ecs.VisibilityVisible},
		{name: "hidden explicit", view: false, start: ecs.VisibilityHidden, forced: ecs.VisibilityVisible},
		{name: "inconsistent hidden", view: true, start: ecs.VisibilityHidden, forced: ecs.VisibilityHidden},
		{name: "inconsistent visible", view: false, start: ecs.VisibilityVisible, forced: ecs.VisibilityVisible},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			e := f.spawn(t)
			require.NoError(t, f.world.Insert(e, f.world.Builtins().Visibility, string(tc.start)))
			require.NoError(t, f.world.Set(e, f.world.Builtins().ViewVisibility, tc.view))

			_, err := f.exec.Execute(ToggleVisibility{Entity: e})
			require.NoError(t, err)
			vis, err := f.world.VisibilityOf(e)
			require.NoError(t, err)
			assert.Equal(t, tc.forced, vis)
			assert.True(t, f.state.Visibilities.Has(e))

			_, err = f.exec.Execute(ToggleVisibility{Entity: e})
			require.NoError(t, err)
			vis, err = f.world.VisibilityOf(e)
			require.NoError(t, err)
			assert.Equal(t, tc.start, vis)
			assert.False(t, f.state.Visibilities.Has(e))
		})
	}
}

func TestExecutor_ToggleVisibilityFollowsInheritance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	parent := f.spawn(t)
	child := f.spawn(t)
	require.NoError(t, f.world.Insert(parent, f.world.Builtins().Visibility, "Hidden"))
	require.NoError(t, f.world.Insert(child, f.world.Builtins().Visibility, "Inherited"))
	require.NoError(t, f.world.SetParent(child, parent))
	require.NoError(t, f.world.PropagateVisibility())

	_, err := f.exec.Execute(ToggleVisibility{Entity: child})
	require.NoError(t, err)
	require.NoError(t, f.world.PropagateVisibility())
	view, err := f.world.ViewVisibilityOf(child)
	require.NoError(t, err)
	assert.True(t, view)
}

func TestExecutor_ToggleVisibilityWithoutComponent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.spawn(t)
	_, err := f.exec.Execute(ToggleVisibility{Entity: e})
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, f.state.Visibilities.Has(e))
}

func TestExecutor_ReparentEntity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.spawn(t)
	b := f.spawn(t)
	c := f.spawn(t)

	_, err := f.exec.Execute(ReparentEntity{Entity: b, Parent: &a})
	require.NoError(t, err)
	parent, ok := f.world.ParentOf(b)
	require.True(t, ok)
	assert.Equal(t, a, parent)
	assert.Equal(t, []ecs.Entity{b}, f.world.Children(a))

	_, err = f.exec.Execute(ReparentEntity{Entity: b, Parent: &c})
	require.NoError(t, err)
	assert.Empty(t, f.world.Children(a))
	assert.Equal(t, []ecs.Entity{b}, f.world.Children(c))

	_, err = f.exec.Execute(ReparentEntity{Entity: b})
	require.NoError(t, err)
	_, ok = f.world.ParentOf(b)
	assert.False(t, ok)

	_, err = f.exec.Execute(ReparentEntity{Entity: a, Parent: &a})
	require.ErrorIs(t, err, ErrInvalidOperation)

	// Cycles are rejected.
	_, err = f.exec.Execute(ReparentEntity{Entity: b, Parent: &a})
	require.NoError(t, err)
	_, err = f.exec.Execute(ReparentEntity{Entity: a, Parent: &b})
	require.ErrorIs(t, err, ErrInvalidOperation)

	require.NoError(t, f.world.Despawn(c))
	_, err = f.exec.Execute(ReparentEntity{Entity: b, Parent: &c})
	require.ErrorIs(t, err, ErrInvalidOperation)
	_, err = f.exec.Execute(ReparentEntity{Entity: c})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExecutor_SpawnEntity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	root := f.spawn(t)

	result, err := f.exec.Execute(SpawnEntity{})
	require.NoError(t, err)
	e, ok := result.(ecs.Entity)
	require.True(t, ok)
	assert.True(t, f.world.Alive(e))
	kinds, err := f.world.Kinds(e)
	require.NoError(t, err)
	assert.Empty(t, kinds)

	result, err = f.exec.Execute(SpawnEntity{Parent: &root})
	require.NoError(t, err)
	child := result.(ecs.Entity) //nolint:forcetypeassert // test
	assert.Equal(t, []ecs.Entity{child}, f.world.Children(root))

	n := f.world.Len()
	require.NoError(t, f.world.Despawn(root))
	_, err = f.exec.Execute(SpawnEntity{Parent: &root})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, n-1, f.world.Len())
}
