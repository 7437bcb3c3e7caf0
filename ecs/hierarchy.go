package ecs

import (
	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/codec"
)

// Parent links a child entity to its parent. The canonical value is the parent's handle bits.
type Parent Entity

// Children lists the children of an entity in attach order. It is maintained from Parent links.
type Children []Entity

// ParentOf returns the parent of an entity, if it has one.
func (w *World) ParentOf(e Entity) (Entity, bool) {
	v, err := w.Get(e, w.builtins.Parent)
	if err != nil {
		return 0, false
	}
	p, err := entityFromValue(v)
	if err != nil {
		return 0, false
	}
	return p, true
}

// Children returns the children of an entity in attach order.
func (w *World) Children(e Entity) []Entity {
	v, err := w.Get(e, w.builtins.Children)
	if err != nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Entity, 0, len(items))
	for _, item := range items {
		child, err := entityFromValue(item)
		if err == nil {
			out = append(out, child)
		}
	}
	return out
}

// Descendants returns every descendant of an entity, depth first, children before grandchildren
// of the same branch.
func (w *World) Descendants(e Entity) []Entity {
	var out []Entity
	var walk func(Entity)
	walk = func(parent Entity) {
		for _, child := range w.Children(parent) {
			out = append(out, child)
			walk(child)
		}
	}
	walk(e)
	return out
}

// SetParent attaches child under parent, detaching it from its previous parent first.
func (w *World) SetParent(child, parent Entity) error {
	if !w.Alive(child) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", child)
	}
	if !w.Alive(parent) {
		return eris.Wrapf(ErrEntityNotFound, "parent %s", parent)
	}
	if child == parent {
		return eris.Wrapf(ErrHierarchyCycle, "entity %s", child)
	}
	for ancestor, ok := w.ParentOf(parent); ok; ancestor, ok = w.ParentOf(ancestor) {
		if ancestor == child {
			return eris.Wrapf(ErrHierarchyCycle, "entity %s is an ancestor of %s", child, parent)
		}
	}

	if current, ok := w.ParentOf(child); ok {
		if current == parent {
			return nil
		}
		if err := w.detachChild(current, child); err != nil {
			return err
		}
	}

	if err := w.writeRaw(child, w.builtins.Parent, parent.Bits()); err != nil {
		return err
	}
	children := append(w.Children(parent), child)
	return w.writeRaw(parent, w.builtins.Children, entitiesToValue(children))
}

// RemoveParent detaches an entity to the root. It is a no-op for root entities.
func (w *World) RemoveParent(child Entity) error {
	if !w.Alive(child) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", child)
	}
	parent, ok := w.ParentOf(child)
	if !ok {
		return nil
	}
	if w.Alive(parent) {
		if err := w.detachChild(parent, child); err != nil {
			return err
		}
	}
	_, err := w.removeRaw(child, w.builtins.Parent)
	return err
}

// DespawnRecursive despawns an entity and its whole subtree.
func (w *World) DespawnRecursive(e Entity) error {
	if !w.Alive(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	if err := w.DespawnDescendants(e); err != nil {
		return err
	}
	return w.Despawn(e)
}

// DespawnDescendants despawns every descendant of an entity and keeps the entity itself.
func (w *World) DespawnDescendants(e Entity) error {
	if !w.Alive(e) {
		return eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}
	descendants := w.Descendants(e)
	// Leaves first so no despawn has to re-link an orphan.
	for i := len(descendants) - 1; i >= 0; i-- {
		if !w.Alive(descendants[i]) {
			continue
		}
		if err := w.entities.remove(descendants[i]); err != nil {
			return err
		}
	}
	if w.Has(e, w.builtins.Children) {
		if _, err := w.removeRaw(e, w.builtins.Children); err != nil {
			return err
		}
	}
	return nil
}

// adoptChildren attaches every entity listed in a Children value under parent.
func (w *World) adoptChildren(parent Entity, value any) error {
	items, ok := value.([]any)
	if !ok {
		tree, err := codec.FromGo(value)
		if err != nil {
			return eris.Wrap(err, "invalid children value")
		}
		if items, ok = tree.([]any); !ok {
			return eris.Errorf("invalid children value %T", value)
		}
	}
	children := make([]Entity, 0, len(items))
	for _, item := range items {
		child, err := entityFromValue(item)
		if err != nil {
			return err
		}
		if !w.Alive(child) {
			return eris.Wrapf(ErrEntityNotFound, "child %s", child)
		}
		children = append(children, child)
	}
	for _, child := range children {
		if err := w.SetParent(child, parent); err != nil {
			return err
		}
	}
	return nil
}

// detachChild removes child from the parent's Children, dropping the component when it empties.
func (w *World) detachChild(parent, child Entity) error {
	children := w.Children(parent)
	kept := children[:0]
	for _, c := range children {
		if c != child {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		if w.Has(parent, w.builtins.Children) {
			_, err := w.removeRaw(parent, w.builtins.Children)
			return err
		}
		return nil
	}
	return w.writeRaw(parent, w.builtins.Children, entitiesToValue(kept))
}

// writeRaw stores a canonical value without hierarchy hooks, inserting the cell if needed.
func (w *World) writeRaw(e Entity, id ComponentID, value any) error {
	if c, err := w.cellOf(e, id); err == nil {
		c.value = value
		c.changed = w.tick
		return nil
	}
	info, err := w.components.get(id)
	if err != nil {
		return err
	}
	return w.insertPrepared(e, map[ComponentID]any{id: value}, info)
}

func entitiesToValue(entities []Entity) []any {
	out := make([]any, len(entities))
	for i, e := range entities {
		out[i] = e.Bits()
	}
	return out
}

func entityFromValue(v any) (Entity, error) {
	switch tv := v.(type) {
	case Entity:
		return tv, nil
	case Parent:
		return Entity(tv), nil
	}
	bits, err := codec.AsUint64(v)
	if err != nil {
		return 0, eris.Wrap(err, "invalid entity value")
	}
	return Entity(bits), nil
}
