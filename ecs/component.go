package ecs

import (
	"math"

	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/assert"
	"pkg.world.dev/world-engine/inspector/schema"
)

// ComponentID is a unique identifier for a component kind.
type ComponentID uint32

// MaxComponentID is the maximum number of component kinds that can be registered.
const MaxComponentID = math.MaxUint32 - 1

// ComponentInfo describes a registered component kind. It is immutable once registered.
type ComponentInfo struct {
	ID       ComponentID
	Name     string        // Display name, the type path for reflected kinds
	TypePath string        // Schema type path, empty if the kind is not reflected
	Resource bool          // Kind holds a single world-global value instead of per-entity values
	Required []ComponentID // Kinds inserted with their defaults alongside this one
}

// Reflected reports whether the kind has a known schema.
func (c ComponentInfo) Reflected() bool {
	return c.TypePath != ""
}

// ComponentOption configures a component kind at registration.
type ComponentOption func(*ComponentInfo)

// WithRequired declares kinds that are inserted with their default value whenever this kind is
// inserted on an entity that lacks them.
func WithRequired(ids ...ComponentID) ComponentOption {
	return func(info *ComponentInfo) {
		info.Required = append(info.Required, ids...)
	}
}

// AsResource registers the kind as a world-global resource.
func AsResource() ComponentOption {
	return func(info *ComponentInfo) {
		info.Resource = true
	}
}

// componentManager is the catalog of component kinds.
type componentManager struct {
	nextID   ComponentID
	registry map[string]ComponentID // Component name -> component ID
	infos    []ComponentInfo        // Component ID -> info
}

func newComponentManager() componentManager {
	return componentManager{
		nextID:   0,
		registry: make(map[string]ComponentID),
		infos:    make([]ComponentInfo, 0),
	}
}

// register adds a component kind. Registering a name twice returns the existing ID.
func (cm *componentManager) register(info ComponentInfo) (ComponentID, error) {
	if info.Name == "" {
		return 0, eris.New("component name cannot be empty")
	}
	if id, exists := cm.registry[info.Name]; exists {
		return id, nil
	}
	if cm.nextID > MaxComponentID {
		return 0, eris.New("max number of components exceeded")
	}
	for _, req := range info.Required {
		if int(req) >= len(cm.infos) {
			return 0, eris.Wrapf(ErrComponentNotFound, "required component %d of %s", req, info.Name)
		}
		if cm.infos[req].Resource {
			return 0, eris.Wrapf(ErrResourceKind, "required component %d of %s", req, info.Name)
		}
	}

	info.ID = cm.nextID
	cm.registry[info.Name] = info.ID
	cm.infos = append(cm.infos, info)
	cm.nextID++
	assert.That(int(cm.nextID) == len(cm.infos), "component id doesn't match number of components")

	return info.ID, nil
}

func (cm *componentManager) get(id ComponentID) (ComponentInfo, error) {
	if int(id) >= len(cm.infos) {
		return ComponentInfo{}, eris.Wrapf(ErrComponentNotFound, "component %d", id)
	}
	return cm.infos[id], nil
}

func (cm *componentManager) getID(name string) (ComponentID, error) {
	id, exists := cm.registry[name]
	if !exists {
		return 0, eris.Wrapf(ErrComponentNotFound, "component %s", name)
	}
	return id, nil
}

// RegisterComponent registers a component kind whose values follow the schema at typePath. An
// empty typePath registers a kind with no schema: values are stored as given and cannot be
// encoded.
func (w *World) RegisterComponent(name, typePath string, opts ...ComponentOption) (ComponentID, error) {
	if typePath != "" {
		if _, ok := w.catalog.Lookup(typePath); !ok {
			return 0, eris.Wrapf(schema.ErrTypeNotFound, "component %s", name)
		}
	}
	info := ComponentInfo{Name: name, TypePath: typePath}
	for _, opt := range opts {
		opt(&info)
	}
	id, err := w.components.register(info)
	if err != nil {
		return 0, eris.Wrapf(err, "failed to register component %s", name)
	}
	return id, nil
}

// Register reflects the Go type T into the world's catalog and registers it as a component kind
// named after its type path.
func Register[T any](w *World, opts ...ComponentOption) (ComponentID, error) {
	typePath, err := schema.Reflect[T](w.catalog)
	if err != nil {
		return 0, eris.Wrap(err, "failed to reflect component type")
	}
	return w.RegisterComponent(typePath, typePath, opts...)
}

// Components returns every registered kind in id order.
func (w *World) Components() []ComponentInfo {
	out := make([]ComponentInfo, len(w.components.infos))
	copy(out, w.components.infos)
	return out
}

// Component returns the info of a registered kind.
func (w *World) Component(id ComponentID) (ComponentInfo, error) {
	return w.components.get(id)
}

// LookupComponent returns the id of the kind registered under name.
func (w *World) LookupComponent(name string) (ComponentID, error) {
	return w.components.getID(name)
}
