// Package snapshot persists the live state of a world so a restarted process can resume where it
// left off. Only what is stored in the world is saved: disabled components and visibility overlays
// belong to the inspector's shadow state and are not persisted, and ViewVisibility is recomputed by
// the first step after a restore.
package snapshot

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
)

var (
	// ErrWorldNotEmpty is returned when restoring into a world that already has entities.
	ErrWorldNotEmpty = eris.New("world must be empty to restore a snapshot")

	// ErrNoSnapshot is returned when no snapshot has been saved under the namespace.
	ErrNoSnapshot = eris.New("no snapshot saved")
)

// Document is the persisted form of a world.
type Document struct {
	Entities []EntityRecord `json:"entities"`
}

// EntityRecord is one entity. Components are keyed by component name and hold wire values.
// Children are listed in attach order.
type EntityRecord struct {
	Entity     ecs.Entity     `json:"entity"`
	Components map[string]any `json:"components"`
	Children   []ecs.Entity   `json:"children,omitempty"`
}

// Capture builds the document of w. Kinds without a schema cannot be encoded and are skipped, as
// are values that fail to encode.
func Capture(w *ecs.World, logger zerolog.Logger) (Document, error) {
	builtins := w.Builtins()
	skip := map[ecs.ComponentID]struct{}{
		builtins.Parent:         {},
		builtins.Children:       {},
		builtins.ViewVisibility: {},
	}

	doc := Document{Entities: make([]EntityRecord, 0, w.Len())}
	for _, e := range w.Entities() {
		kinds, err := w.Kinds(e)
		if err != nil {
			return Document{}, eris.Wrapf(err, "failed to list components of %s", e)
		}
		record := EntityRecord{Entity: e, Components: make(map[string]any, len(kinds)), Children: w.Children(e)}
		for _, id := range kinds {
			if _, ok := skip[id]; ok {
				continue
			}
			info, err := w.Component(id)
			if err != nil {
				return Document{}, err
			}
			if !info.Reflected() {
				continue
			}
			v, err := w.Get(e, id)
			if err != nil {
				return Document{}, err
			}
			wire, err := codec.Encode(w.Catalog(), info.TypePath, v)
			if err != nil {
				logger.Debug().Err(err).Uint64("entity", e.Bits()).Str("component", info.Name).
					Msg("skipping component that failed to encode")
				continue
			}
			record.Components[info.Name] = wire
		}
		doc.Entities = append(doc.Entities, record)
	}
	return doc, nil
}

// Apply restores doc into the empty world w. Entities keep their handles. Components whose name is
// no longer registered are skipped.
func Apply(w *ecs.World, doc Document, logger zerolog.Logger) error {
	if w.Len() != 0 {
		return eris.Wrapf(ErrWorldNotEmpty, "world has %d entities", w.Len())
	}

	for _, record := range doc.Entities {
		if err := w.Restore(record.Entity); err != nil {
			return eris.Wrapf(err, "failed to restore entity %s", record.Entity)
		}
	}
	for _, record := range doc.Entities {
		for name, value := range record.Components {
			id, err := w.LookupComponent(name)
			if err != nil {
				logger.Warn().Str("component", name).Msg("skipping component that is no longer registered")
				continue
			}
			if w.Has(record.Entity, id) {
				// Inserted earlier as a required kind.
				err = w.Set(record.Entity, id, value)
			} else {
				err = w.Insert(record.Entity, id, value)
			}
			if err != nil {
				return eris.Wrapf(err, "failed to restore component %s of %s", name, record.Entity)
			}
		}
	}
	for _, record := range doc.Entities {
		for _, child := range record.Children {
			if err := w.SetParent(child, record.Entity); err != nil {
				return eris.Wrapf(err, "failed to restore parent of %s", child)
			}
		}
	}
	return nil
}
