package schema

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Provider answers mapping questions about entity types. The compiler
// consults it to validate parameter types and property paths.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// HasEntity reports whether entity is a known entity type.
	HasEntity(entity string) bool

	// IsMappedAttribute reports whether path (dotted, relative to the
	// entity) is a directly mapped attribute.
	IsMappedAttribute(entity, path string) bool

	// EmbeddedOrRelationPrefix returns the first dot segment of path when
	// it names an embedded object or relation of the entity.
	EmbeddedOrRelationPrefix(entity, path string) (string, bool)

	// Supertypes returns every supertype or interface of entity,
	// nearest first. The entity itself is not included.
	Supertypes(entity string) []string
}

// Entity declares the mapping of one entity type.
type Entity struct {
	Name       string   `json:"name" yaml:"name"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Embedded   []string `json:"embedded,omitempty" yaml:"embedded,omitempty"`
	Relations  []string `json:"relations,omitempty" yaml:"relations,omitempty"`
	Extends    []string `json:"extends,omitempty" yaml:"extends,omitempty"`
}

// Static is a Provider built from Entity declarations. Members of a
// supertype (attributes, embedded objects, relations) are visible on
// every subtype.
type Static struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewStatic builds a Static provider from the given declarations.
func NewStatic(entities ...Entity) (*Static, error) {
	s := &Static{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if err := s.Add(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustStatic is NewStatic that panics on error. Intended for tests and
// package-level fixtures.
func MustStatic(entities ...Entity) *Static {
	s, err := NewStatic(entities...)
	if err != nil {
		panic(err)
	}
	return s
}

// Add registers one entity declaration.
func (s *Static) Add(e Entity) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entity name is required")
	}
	for _, a := range e.Attributes {
		if a == "" || strings.HasPrefix(a, ".") || strings.HasSuffix(a, ".") || strings.Contains(a, "..") {
			return fmt.Errorf("entity %s: invalid attribute path %q", e.Name, a)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entities[e.Name]; dup {
		return fmt.Errorf("entity %s declared twice", e.Name)
	}
	cp := e
	cp.Attributes = slices.Clone(e.Attributes)
	cp.Embedded = slices.Clone(e.Embedded)
	cp.Relations = slices.Clone(e.Relations)
	cp.Extends = slices.Clone(e.Extends)
	s.entities[e.Name] = &cp
	return nil
}

// Entities returns the declared entity names in sorted order.
func (s *Static) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entities))
	for n := range s.entities {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (s *Static) HasEntity(entity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[entity]
	return ok
}

func (s *Static) IsMappedAttribute(entity, path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.lineage(entity) {
		if slices.Contains(e.Attributes, path) {
			return true
		}
	}
	return false
}

func (s *Static) EmbeddedOrRelationPrefix(entity, path string) (string, bool) {
	prefix, _, _ := strings.Cut(path, ".")
	if prefix == "" {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.lineage(entity) {
		if slices.Contains(e.Embedded, prefix) || slices.Contains(e.Relations, prefix) {
			return prefix, true
		}
	}
	return "", false
}

func (s *Static) Supertypes(entity string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	root, ok := s.entities[entity]
	if !ok {
		return nil
	}
	// Undeclared supertypes (plain interfaces) are still reported.
	seen := map[string]bool{entity: true}
	var names []string
	queue := slices.Clone(root.Extends)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
		if e, ok := s.entities[name]; ok {
			queue = append(queue, e.Extends...)
		}
	}
	return names
}

// lineage returns the entity followed by its supertypes in breadth-first
// order. Undeclared supertypes are skipped; cycles are cut.
// Callers hold s.mu.
func (s *Static) lineage(entity string) []*Entity {
	root, ok := s.entities[entity]
	if !ok {
		return nil
	}
	seen := map[string]bool{entity: true}
	out := []*Entity{root}
	for i := 0; i < len(out); i++ {
		for _, parent := range out[i].Extends {
			if seen[parent] {
				continue
			}
			seen[parent] = true
			if pe, ok := s.entities[parent]; ok {
				out = append(out, pe)
			}
		}
	}
	return out
}

// AcceptsType reports whether a parameter declared as typ may stand for
// entity: typ is the entity itself or one of its supertypes.
func AcceptsType(p Provider, entity, typ string) bool {
	if typ == entity {
		return true
	}
	return slices.Contains(p.Supertypes(entity), typ)
}
