package shadow

import (
	"pkg.world.dev/world-engine/inspector/ecs"
)

// State bundles the shadow stores shared by every client.
type State struct {
	Disabled     *DisabledComponents
	Visibilities *EntityVisibilities
	DeepCompare  *DeepCompare
}

func NewState(volatile ...ecs.ComponentID) *State {
	return &State{
		Disabled:     NewDisabledComponents(),
		Visibilities: NewEntityVisibilities(),
		DeepCompare:  NewDeepCompare(volatile...),
	}
}

// RemoveEntity drops every row of a despawned entity.
func (s *State) RemoveEntity(e ecs.Entity) {
	s.Disabled.RemoveEntity(e)
	s.Visibilities.RemoveEntity(e)
}

// Sweep drops the rows of every entity that is no longer alive in the world and returns them.
func (s *State) Sweep(w *ecs.World) []ecs.Entity {
	var dead []ecs.Entity
	for _, e := range s.Disabled.Entities() {
		if !w.Alive(e) {
			dead = append(dead, e)
		}
	}
	for e := range s.Visibilities.rows {
		if !w.Alive(e) && !containsEntity(dead, e) {
			dead = append(dead, e)
		}
	}
	for _, e := range dead {
		s.RemoveEntity(e)
	}
	return dead
}

func containsEntity(entities []ecs.Entity, e ecs.Entity) bool {
	for _, x := range entities {
		if x == e {
			return true
		}
	}
	return false
}
