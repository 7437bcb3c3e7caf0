package shadow

import (
	"pkg.world.dev/world-engine/inspector/ecs"
)

// EntityVisibilities remembers the Visibility an entity had before it was toggled, so a second
// toggle restores it exactly.
type EntityVisibilities struct {
	rows map[ecs.Entity]ecs.Visibility
}

func NewEntityVisibilities() *EntityVisibilities {
	return &EntityVisibilities{rows: make(map[ecs.Entity]ecs.Visibility)}
}

// Capture records the visibility an entity had before a toggle.
func (v *EntityVisibilities) Capture(e ecs.Entity, vis ecs.Visibility) {
	v.rows[e] = vis
}

// Restore removes and returns the captured visibility of an entity.
func (v *EntityVisibilities) Restore(e ecs.Entity) (ecs.Visibility, bool) {
	vis, ok := v.rows[e]
	if ok {
		delete(v.rows, e)
	}
	return vis, ok
}

func (v *EntityVisibilities) Has(e ecs.Entity) bool {
	_, ok := v.rows[e]
	return ok
}

func (v *EntityVisibilities) RemoveEntity(e ecs.Entity) {
	delete(v.rows, e)
}

func (v *EntityVisibilities) Len() int {
	return len(v.rows)
}
