package ecs

import (
	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/schema"
)

// Visibility is the user-set visibility of an entity.
type Visibility string

const (
	// VisibilityInherited follows the parent's effective visibility. Roots are visible.
	VisibilityInherited Visibility = "Inherited"
	// VisibilityHidden hides the entity and, unless they override it, its descendants.
	VisibilityHidden Visibility = "Hidden"
	// VisibilityVisible shows the entity regardless of its parent.
	VisibilityVisible Visibility = "Visible"
)

// EnumVariants implements schema.Enum.
func (Visibility) EnumVariants() []schema.Variant {
	return []schema.Variant{
		{Kind: schema.VariantUnit, Name: string(VisibilityInherited)},
		{Kind: schema.VariantUnit, Name: string(VisibilityHidden)},
		{Kind: schema.VariantUnit, Name: string(VisibilityVisible)},
	}
}

// DefaultValue implements schema.Defaulter.
func (Visibility) DefaultValue() any {
	return string(VisibilityInherited)
}

// ViewVisibility is the effective visibility of an entity after inheritance. It is recomputed
// every step by PropagateVisibility.
type ViewVisibility bool

// PropagateVisibility recomputes ViewVisibility for every entity with a Visibility. The value is
// written every time, so its change tick advances every step whether or not it changed.
func (w *World) PropagateVisibility() error {
	resolved := make(map[Entity]bool)
	for _, e := range w.Entities() {
		if !w.Has(e, w.builtins.Visibility) {
			continue
		}
		view := w.resolveVisibility(e, resolved)
		if err := w.writeRaw(e, w.builtins.ViewVisibility, view); err != nil {
			return eris.Wrapf(err, "failed to write view visibility of %s", e)
		}
	}
	return nil
}

// VisibilityOf returns the user-set visibility of an entity.
func (w *World) VisibilityOf(e Entity) (Visibility, error) {
	v, err := w.Get(e, w.builtins.Visibility)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", eris.Errorf("visibility of %s has unexpected value %T", e, v)
	}
	return Visibility(s), nil
}

// ViewVisibilityOf returns the effective visibility computed by the last propagation.
func (w *World) ViewVisibilityOf(e Entity) (bool, error) {
	v, err := w.Get(e, w.builtins.ViewVisibility)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, eris.Errorf("view visibility of %s has unexpected value %T", e, v)
	}
	return b, nil
}

func (w *World) resolveVisibility(e Entity, resolved map[Entity]bool) bool {
	if view, ok := resolved[e]; ok {
		return view
	}
	view := true
	vis, err := w.VisibilityOf(e)
	switch {
	case err != nil:
		// Entities without Visibility don't restrict their descendants.
		if parent, ok := w.ParentOf(e); ok {
			view = w.resolveVisibility(parent, resolved)
		}
	case vis == VisibilityHidden:
		view = false
	case vis == VisibilityVisible:
		view = true
	default:
		if parent, ok := w.ParentOf(e); ok {
			view = w.resolveVisibility(parent, resolved)
		}
	}
	resolved[e] = view
	return view
}
