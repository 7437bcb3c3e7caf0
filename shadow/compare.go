package shadow

import (
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
)

// DeepCompare is the set of kinds that are written every step but often encode to the same value.
// Changes of these kinds are only reported when the encoded value differs from the last one sent.
type DeepCompare struct {
	volatile map[ecs.ComponentID]struct{}
}

func NewDeepCompare(ids ...ecs.ComponentID) *DeepCompare {
	d := &DeepCompare{volatile: make(map[ecs.ComponentID]struct{}, len(ids))}
	d.MarkVolatile(ids...)
	return d
}

// MarkVolatile adds kinds to the volatile set.
func (d *DeepCompare) MarkVolatile(ids ...ecs.ComponentID) {
	for _, id := range ids {
		d.volatile[id] = struct{}{}
	}
}

func (d *DeepCompare) IsVolatile(id ecs.ComponentID) bool {
	_, ok := d.volatile[id]
	return ok
}

// IsEq compares value with the one last cached for (entity, kind). It returns compared=false for
// kinds outside the volatile set. When the values differ the cache is updated to the new value.
func (d *DeepCompare) IsEq(cache *ValueCache, e ecs.Entity, id ecs.ComponentID, value codec.Value) (eq, compared bool) {
	if !d.IsVolatile(id) {
		return false, false
	}
	if old, ok := cache.get(e, id); ok && codec.Equal(old, value) {
		return true, true
	}
	cache.put(e, id, value)
	return false, true
}

// Seed caches a value that was sent as part of a full snapshot. Values of non-volatile kinds are
// ignored.
func (d *DeepCompare) Seed(cache *ValueCache, e ecs.Entity, id ecs.ComponentID, value codec.Value) {
	if d.IsVolatile(id) {
		cache.put(e, id, value)
	}
}

// ValueCache holds the last value of each volatile kind sent to one client.
type ValueCache struct {
	values map[ecs.Entity]map[ecs.ComponentID]codec.Value
}

func NewValueCache() *ValueCache {
	return &ValueCache{values: make(map[ecs.Entity]map[ecs.ComponentID]codec.Value)}
}

func (c *ValueCache) get(e ecs.Entity, id ecs.ComponentID) (codec.Value, bool) {
	v, ok := c.values[e][id]
	return v, ok
}

func (c *ValueCache) put(e ecs.Entity, id ecs.ComponentID, value codec.Value) {
	row, ok := c.values[e]
	if !ok {
		row = make(map[ecs.ComponentID]codec.Value)
		c.values[e] = row
	}
	row[id] = value
}

// RemoveEntity drops the cached values of an entity.
func (c *ValueCache) RemoveEntity(e ecs.Entity) {
	delete(c.values, e)
}

// Len returns the number of entities with cached values.
func (c *ValueCache) Len() int {
	return len(c.values)
}
