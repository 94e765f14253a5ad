package schema

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/wherefn/internal/ir"
)

// Constants is a registry of named constants: class constants keyed by
// qualified class name, plus global constants usable as bare identifiers.
// A nil *Constants is an empty registry.
type Constants struct {
	mu      sync.RWMutex
	classes map[string]map[string]ir.IRValue
	globals map[string]ir.IRValue
}

// NewConstants returns an empty registry.
func NewConstants() *Constants {
	return &Constants{
		classes: make(map[string]map[string]ir.IRValue),
		globals: make(map[string]ir.IRValue),
	}
}

// Define registers class::name = v.
func (c *Constants) Define(class, name string, v any) error {
	if class == "" || name == "" {
		return fmt.Errorf("constant %s::%s: class and name are required", class, name)
	}
	irv, err := ir.FromGo(v)
	if err != nil {
		return fmt.Errorf("constant %s::%s: %w", class, name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	members, ok := c.classes[class]
	if !ok {
		members = make(map[string]ir.IRValue)
		c.classes[class] = members
	}
	members[name] = irv
	return nil
}

// DefineGlobal registers a global constant.
func (c *Constants) DefineGlobal(name string, v any) error {
	if name == "" {
		return fmt.Errorf("global constant name is required")
	}
	irv, err := ir.FromGo(v)
	if err != nil {
		return fmt.Errorf("global constant %s: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globals[name] = irv
	return nil
}

// Lookup returns the value of class::name.
func (c *Constants) Lookup(class, name string) (ir.IRValue, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.classes[class][name]
	return v, ok
}

// Global returns the value of a global constant.
func (c *Constants) Global(name string) (ir.IRValue, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.globals[name]
	return v, ok
}

// Classes returns the registered class names in sorted order.
func (c *Constants) Classes() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.classes))
}

// Merge copies every constant of other into c, replacing duplicates.
func (c *Constants) Merge(other *Constants) {
	if other == nil || other == c {
		return
	}
	other.mu.RLock()
	classes := make(map[string]map[string]ir.IRValue, len(other.classes))
	for class, members := range other.classes {
		classes[class] = maps.Clone(members)
	}
	globals := maps.Clone(other.globals)
	other.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for class, members := range classes {
		if c.classes[class] == nil {
			c.classes[class] = make(map[string]ir.IRValue, len(members))
		}
		maps.Copy(c.classes[class], members)
	}
	maps.Copy(c.globals, globals)
}

// Qualify resolves a class name as written in a predicate to the
// qualified name constants are registered under. An import alias wins;
// otherwise the name is placed in namespace (when set).
//
//	Qualify("Status", map[string]string{"Status": "billing.Status"}, "app") == "billing.Status"
//	Qualify("Status", nil, "app") == "app.Status"
//	Qualify("Status", nil, "") == "Status"
func Qualify(class string, imports map[string]string, namespace string) string {
	if q, ok := imports[class]; ok && q != "" {
		return q
	}
	if namespace == "" {
		return class
	}
	return namespace + "." + class
}
