package tracker

import (
	"pkg.world.dev/world-engine/inspector/ecs"
	"pkg.world.dev/world-engine/inspector/schema"
)

// ComponentInfo describes a component kind to clients.
type ComponentInfo struct {
	ID                 ecs.ComponentID   `json:"id"`
	Name               string            `json:"name"`
	Reflected          bool              `json:"reflected"`
	Serializable       bool              `json:"serializable"`
	RequiredComponents []ecs.ComponentID `json:"required_components"`
}

func describeComponent(info ecs.ComponentInfo, catalog *schema.Catalog) ComponentInfo {
	required := make([]ecs.ComponentID, len(info.Required))
	copy(required, info.Required)
	return ComponentInfo{
		ID:                 info.ID,
		Name:               info.Name,
		Reflected:          info.Reflected(),
		Serializable:       info.Reflected() && catalog.Serializable(info.TypePath),
		RequiredComponents: required,
	}
}

// DescribeComponents returns every entity component kind of the world in id order. Resource kinds
// are left out.
func DescribeComponents(w *ecs.World) []ComponentInfo {
	var out []ComponentInfo
	for _, info := range w.Components() {
		if info.Resource {
			continue
		}
		out = append(out, describeComponent(info, w.Catalog()))
	}
	return out
}

// trackComponents returns the kinds the session has not been told about and marks them known.
func trackComponents(w *ecs.World, s *Session) []ComponentInfo {
	var fresh []ComponentInfo
	for _, info := range w.Components() {
		if info.Resource {
			continue
		}
		if _, ok := s.knownKinds[info.ID]; ok {
			continue
		}
		s.knownKinds[info.ID] = struct{}{}
		fresh = append(fresh, describeComponent(info, w.Catalog()))
	}
	return fresh
}
