package tracker

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/shadow"
)

type position struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

type marker struct{}

type fixture struct {
	world   *ecs.World
	state   *shadow.State
	tracker *Tracker
	pos     ecs.ComponentID
	mark    ecs.ComponentID
	opaque  ecs.ComponentID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	w, err := ecs.NewWorld(nil)
	require.NoError(t, err)
	pos, err := ecs.Register[position](w)
	require.NoError(t, err)
	mark, err := ecs.Register[marker](w)
	require.NoError(t, err)
	opaque, err := w.RegisterComponent("opaque", "")
	require.NoError(t, err)

	state := shadow.NewState(w.Builtins().ViewVisibility)
	registry := NewTypeRegistry(w.Catalog(), w, zerolog.Nop())
	return &fixture{
		world:   w,
		state:   state,
		tracker: New(w, registry, state, zerolog.Nop()),
		pos:     pos,
		mark:    mark,
		opaque:  opaque,
	}
}

// scan runs a scan and advances the world, like one step of the loop.
func (f *fixture) scan(s *Session) []Event {
	events := f.tracker.Scan(s)
	f.world.Advance()
	return events
}

func entityEvents(events []Event) []EntityEvent {
	var out []EntityEvent
	for _, e := range events {
		if ee, ok := e.(EntityEvent); ok {
			out = append(out, ee)
		}
	}
	return out
}

func point(x, y int64) map[string]any {
	return map[string]any{"x": x, "y": y}
}

func TestTracker_Scenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()

	e, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(e, f.pos, map[string]any{"x": 1, "y": 0}))

	events := f.scan(s)
	require.Len(t, events, 3)
	assert.Equal(t, KindTypeRegistry, events[0].EventKind())
	assert.Equal(t, KindComponent, events[1].EventKind())
	assert.Equal(t, EntityEvent{Entity: e, Mutation: Mutation{
		Changes: []Change{{Component: f.pos, Value: point(1, 0), HasValue: true}},
	}}, events[2])

	require.NoError(t, f.world.Mutate(e, f.pos, func(v any) (any, error) {
		m := v.(map[string]any) //nolint:forcetypeassert // test
		m["x"] = int64(2)
		return m, nil
	}))
	assert.Equal(t, []Event{EntityEvent{Entity: e, Mutation: Mutation{
		Changes: []Change{{Component: f.pos, Value: point(2, 0), HasValue: true}},
	}}}, f.scan(s))

	_, err = f.world.Remove(e, f.pos)
	require.NoError(t, err)
	assert.Equal(t, []Event{EntityEvent{Entity: e, Mutation: Mutation{
		Removes: []Removal{{Component: f.pos}},
	}}}, f.scan(s))

	require.NoError(t, f.world.DespawnRecursive(e))
	assert.Equal(t, []Event{EntityEvent{Entity: e, Mutation: Mutation{Remove: true}}}, f.scan(s))

	assert.Empty(t, f.scan(s))
	assert.Equal(t, 0, s.Entities())
}

func TestTracker_NothingChanged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()
	e, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(e, f.pos, point(1, 1)))

	require.NotEmpty(t, f.scan(s))
	assert.Empty(t, f.scan(s))
	assert.Empty(t, f.scan(s))
}

func TestTracker_LevelTriggered(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()
	e, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(e, f.pos, point(0, 0)))
	f.scan(s)

	require.NoError(t, f.world.Set(e, f.pos, point(1, 0)))
	require.NoError(t, f.world.Set(e, f.pos, point(2, 0)))
	events := entityEvents(f.scan(s))
	require.Len(t, events, 1)
	assert.Equal(t, []Change{{Component: f.pos, Value: point(2, 0), HasValue: true}}, events[0].Mutation.Changes)
}

func TestTracker_SnapshotListsEveryKind(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(e, f.pos, point(3, 4)))
	require.NoError(t, f.world.Insert(e, f.mark, nil))
	require.NoError(t, f.world.Insert(e, f.opaque, func() {}))

	_, err = f.world.Spawn()
	require.NoError(t, err)
	// A disabled kind is reported from its shadow value.
	require.NoError(t, f.state.Disabled.Put(e, f.world.Builtins().Visibility, "Hidden"))

	events := entityEvents(f.tracker.Scan(NewSession()))
	require.Len(t, events, 2)

	var snapshot EntityEvent
	for _, ev := range events {
		if ev.Entity == e {
			snapshot = ev
		}
	}
	assert.ElementsMatch(t, []Change{
		{Component: f.pos, Value: point(3, 4), HasValue: true},
		{Component: f.mark, Value: map[string]any{}, HasValue: true},
		{Component: f.opaque},
		{Component: f.world.Builtins().Visibility, Disabled: true, Value: "Hidden", HasValue: true},
	}, snapshot.Mutation.Changes)
	assert.Empty(t, snapshot.Mutation.Removes)
}

func TestTracker_ZeroSizedSentOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()
	e, err := f.world.Spawn()
	require.NoError(t, err)
	f.scan(s)

	require.NoError(t, f.world.Insert(e, f.mark, marker{}))
	events := entityEvents(f.scan(s))
	require.Len(t, events, 1)
	assert.Equal(t, []Change{{Component: f.mark}}, events[0].Mutation.Changes)

	require.NoError(t, f.world.Set(e, f.mark, marker{}))
	assert.Empty(t, f.scan(s))
}

func TestTracker_UnencodableKindSentOnceAsPresence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()
	e, err := f.world.Spawn()
	require.NoError(t, err)
	f.scan(s)

	require.NoError(t, f.world.Insert(e, f.opaque, 1))
	events := entityEvents(f.scan(s))
	require.Len(t, events, 1)
	assert.Equal(t, []Change{{Component: f.opaque}}, events[0].Mutation.Changes)

	require.NoError(t, f.world.Set(e, f.opaque, 2))
	assert.Empty(t, f.scan(s))
}

func TestTracker_RemoveThenReinsertReportsBoth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()
	e, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(e, f.pos, point(1, 1)))
	f.scan(s)

	_, err = f.world.Remove(e, f.pos)
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(e, f.pos, point(1, 1)))

	events := entityEvents(f.scan(s))
	require.Len(t, events, 1)
	assert.Equal(t, []Removal{{Component: f.pos}}, events[0].Mutation.Removes)
	assert.Equal(t, []Change{{Component: f.pos, Value: point(1, 1), HasValue: true}}, events[0].Mutation.Changes)

	assert.Empty(t, f.scan(s))
}

func TestTracker_DisabledRemovalIsFlagged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()
	e, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(e, f.pos, point(1, 1)))
	f.scan(s)

	v, err := f.world.Remove(e, f.pos)
	require.NoError(t, err)
	require.NoError(t, f.state.Disabled.Put(e, f.pos, v))

	events := entityEvents(f.scan(s))
	require.Len(t, events, 1)
	assert.Equal(t, []Removal{{Component: f.pos, Disabled: true}}, events[0].Mutation.Removes)
}

func TestTracker_VolatileKindDedup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()
	view := f.world.Builtins().ViewVisibility

	parent, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(parent, f.world.Builtins().Visibility, "Inherited"))
	child, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(child, f.world.Builtins().Visibility, "Inherited"))
	require.NoError(t, f.world.SetParent(child, parent))

	require.NoError(t, f.world.PropagateVisibility())
	f.scan(s)

	// ViewVisibility is written every step with the same value.
	require.NoError(t, f.world.PropagateVisibility())
	assert.Empty(t, f.scan(s))

	require.NoError(t, f.world.Set(parent, f.world.Builtins().Visibility, "Hidden"))
	require.NoError(t, f.world.PropagateVisibility())
	events := entityEvents(f.scan(s))
	require.Len(t, events, 2)
	for _, ev := range events {
		if ev.Entity == parent {
			assert.ElementsMatch(t, []Change{
				{Component: f.world.Builtins().Visibility, Value: "Hidden", HasValue: true},
				{Component: view, Value: false, HasValue: true},
			}, ev.Mutation.Changes)
		} else {
			assert.Equal(t, []Change{{Component: view, Value: false, HasValue: true}}, ev.Mutation.Changes)
		}
	}

	require.NoError(t, f.world.PropagateVisibility())
	assert.Empty(t, f.scan(s))
}

func TestTracker_SessionsAreIndependent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a, b := NewSession(), NewSession()
	e, err := f.world.Spawn()
	require.NoError(t, err)
	require.NoError(t, f.world.Insert(e, f.world.Builtins().Visibility, "Visible"))
	require.NoError(t, f.world.PropagateVisibility())

	f.tracker.Scan(a)
	f.tracker.Scan(b)
	f.world.Advance()

	require.NoError(t, f.world.Set(e, f.world.Builtins().Visibility, "Hidden"))
	require.NoError(t, f.world.PropagateVisibility())
	assert.Len(t, entityEvents(f.tracker.Scan(a)), 1)
	assert.Len(t, entityEvents(f.tracker.Scan(b)), 1)
	f.world.Advance()

	// A session created late still gets the full snapshot.
	late := NewSession()
	assert.Equal(t, ecs.Tick(0), late.LastRun())
	events := f.tracker.Scan(late)
	require.Len(t, events, 3)
	assert.True(t, late.TypeRegistrySent())
	assert.Equal(t, f.world.Tick(), late.LastRun())
}

func TestTracker_ComponentCatalog(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := NewSession()

	events := f.scan(s)
	require.Len(t, events, 2)
	catalog, ok := events[1].(ComponentEvent)
	require.True(t, ok)
	assert.Len(t, catalog.Components, len(f.world.Components()))

	var visibility ComponentInfo
	for _, info := range catalog.Components {
		if info.ID == f.world.Builtins().Visibility {
			visibility = info
		}
	}
	assert.True(t, visibility.Reflected)
	assert.True(t, visibility.Serializable)
	assert.Equal(t, []ecs.ComponentID{f.world.Builtins().ViewVisibility}, visibility.RequiredComponents)

	// Idempotent until a new kind shows up.
	assert.Empty(t, f.scan(s))

	_, err := f.world.RegisterComponent("late", "")
	require.NoError(t, err)
	res, err := f.world.RegisterComponent("resource", "int64", ecs.AsResource())
	require.NoError(t, err)
	events = f.scan(s)
	require.Len(t, events, 1)
	fresh := events[0].(ComponentEvent) //nolint:forcetypeassert // test
	require.Len(t, fresh.Components, 1)
	assert.Equal(t, "late", fresh.Components[0].Name)
	assert.False(t, fresh.Components[0].Reflected)
	assert.NotEqual(t, res, fresh.Components[0].ID)
}
