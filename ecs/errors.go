package ecs

import "github.com/rotisserie/eris"

var (
	// ErrEntityNotFound is returned when an entity handle is stale or was never allocated.
	ErrEntityNotFound = eris.New("entity does not exist")

	// ErrComponentNotFound is returned when a component id is not registered.
	ErrComponentNotFound = eris.New("component is not registered")

	// ErrComponentNotOnEntity is returned when an entity doesn't have the requested component.
	ErrComponentNotOnEntity = eris.New("component not on entity")

	// ErrComponentExists is returned when inserting a component the entity already has.
	ErrComponentExists = eris.New("component already on entity")

	// ErrResourceKind is returned when a resource kind is used as an entity component or the
	// other way around.
	ErrResourceKind = eris.New("component kind mismatch between resource and entity component")

	// ErrHierarchyCycle is returned when a reparent would make an entity its own ancestor.
	ErrHierarchyCycle = eris.New("entity cannot be parented to itself or its descendant")
)
