package snapshot_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/snapshot"
)

type position struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

type kinds struct {
	position ecs.ComponentID
	raw      ecs.ComponentID
}

func newWorld(t *testing.T) (*ecs.World, kinds) {
	t.Helper()

	w, err := ecs.NewWorld(nil)
	require.NoError(t, err)
	pos, err := ecs.Register[position](w)
	require.NoError(t, err)
	raw, err := w.RegisterComponent("raw", "")
	require.NoError(t, err)
	return w, kinds{position: pos, raw: raw}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *snapshot.Redis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:     s.Addr(),
		Password: "", // no password set
		DB:       0,  // use default DB
	})
	return s, snapshot.NewRedis(client, "test", zerolog.Nop())
}

func TestRedis_SaveLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w, k := newWorld(t)
	// Burn a slot so restored handles must keep their generation.
	stale, err := w.Spawn()
	require.NoError(t, err)
	require.NoError(t, w.Despawn(stale))

	root, err := w.Spawn()
	require.NoError(t, err)
	first, err := w.Spawn()
	require.NoError(t, err)
	second, err := w.Spawn()
	require.NoError(t, err)
	require.NoError(t, w.Insert(root, k.position, map[string]any{"x": int64(1), "y": int64(-2)}))
	require.NoError(t, w.Insert(root, w.Builtins().Visibility, "Hidden"))
	require.NoError(t, w.Insert(first, k.raw, []byte("opaque")))
	require.NoError(t, w.SetParent(second, root))
	require.NoError(t, w.SetParent(first, root))
	for range 5 {
		w.Advance()
	}

	s, store := newRedis(t)
	require.NoError(t, store.Save(ctx, w))
	assert.True(t, s.Exists("test:world"))
	tick, err := s.Get("test:tick")
	require.NoError(t, err)
	assert.Equal(t, "6", tick)

	restored, rk := newWorld(t)
	require.NoError(t, store.Load(ctx, restored))

	assert.Equal(t, w.Tick(), restored.Tick())
	assert.ElementsMatch(t, w.Entities(), restored.Entities())
	assert.False(t, restored.Alive(stale))

	v, err := restored.Get(root, rk.position)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": int64(1), "y": int64(-2)}, v)
	vis, err := restored.VisibilityOf(root)
	require.NoError(t, err)
	assert.Equal(t, ecs.VisibilityHidden, vis)
	assert.True(t, restored.Has(root, restored.Builtins().ViewVisibility))

	assert.Equal(t, []ecs.Entity{second, first}, restored.Children(root))
	parent, ok := restored.ParentOf(first)
	require.True(t, ok)
	assert.Equal(t, root, parent)

	// Kinds without a schema aren't persisted.
	assert.False(t, restored.Has(first, rk.raw))
}

func TestRedis_LoadWithoutSnapshot(t *testing.T) {
	t.Parallel()

	_, store := newRedis(t)
	w, _ := newWorld(t)
	err := store.Load(context.Background(), w)
	require.ErrorIs(t, err, snapshot.ErrNoSnapshot)
	assert.Equal(t, 0, w.Len())
}

func TestRedis_LoadIntoPopulatedWorld(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w, _ := newWorld(t)
	_, err := w.Spawn()
	require.NoError(t, err)

	_, store := newRedis(t)
	require.NoError(t, store.Save(ctx, w))
	require.ErrorIs(t, store.Load(ctx, w), snapshot.ErrWorldNotEmpty)
}

func TestRedis_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	w, _ := newWorld(t)
	s, store := newRedis(t)
	require.NoError(t, store.Save(ctx, w))
	require.NoError(t, store.Clear(ctx))
	assert.False(t, s.Exists("test:world"))
	assert.False(t, s.Exists("test:tick"))

	s.Close()
	require.ErrorContains(t, store.Clear(ctx), "failed to clear snapshot")
}

func TestApply_SkipsUnknownComponents(t *testing.T) {
	t.Parallel()

	w, _ := newWorld(t)
	e, err := w.Spawn()
	require.NoError(t, err)

	doc := snapshot.Document{Entities: []snapshot.EntityRecord{{
		Entity:     e,
		Components: map[string]any{"gone": true},
	}}}
	restored, _ := newWorld(t)
	require.NoError(t, snapshot.Apply(restored, doc, zerolog.Nop()))
	assert.True(t, restored.Alive(e))
	kinds, err := restored.Kinds(e)
	require.NoError(t, err)
	assert.Empty(t, kinds)
}

func TestCapture(t *testing.T) {
	t.Parallel()

	w, k := newWorld(t)
	e, err := w.Spawn()
	require.NoError(t, err)
	require.NoError(t, w.Insert(e, k.position, map[string]any{"x": int64(3), "y": int64(4)}))

	doc, err := snapshot.Capture(w, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, doc.Entities, 1)
	assert.Equal(t, e, doc.Entities[0].Entity)
	assert.Equal(t, map[string]any{
		"pkg.world.dev/world-engine/inspector/snapshot_test.position": map[string]any{"x": int64(3), "y": int64(4)},
	}, doc.Entities[0].Components)
	assert.Empty(t, doc.Entities[0].Children)
}
