package compiler

import (
	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/schema"
)

// ValidateProperties checks every atomic filter reachable from root,
// including those in nested OR alternatives, against the provider. A path
// is accepted when it is a mapped attribute of entity or when its first
// segment names an embedded object or relation. The first unknown path
// fails with UnmappedProperty.
func ValidateProperties(p schema.Provider, entity string, root filterir.AndGroup) error {
	return validateProperties(p, entity, root, nil)
}

func validateProperties(p schema.Provider, entity string, root filterir.AndGroup, positions map[*filterir.Atomic]expr.Pos) error {
	return filterir.Walk(root, func(a *filterir.Atomic) error {
		if p.IsMappedAttribute(entity, a.Property) {
			return nil
		}
		if prefix, ok := p.EmbeddedOrRelationPrefix(entity, a.Property); ok && prefix != "" {
			return nil
		}
		err := Errorf(KindUnmappedProperty, a.Property,
			"property %s is not mapped on %s", a.Property, entity)
		err.Pos = positions[a]
		return err
	})
}
