// Package schema holds the metadata the predicate compiler validates
// against: which entity types exist, which property paths they map, how
// they inherit, and which named constants predicates may reference.
//
// Provider is the consumed contract; Static is an in-memory
// implementation that can be declared in Go or loaded from CUE specs.
package schema
