// Package source turns predicate text into expression trees.
//
// Predicate bodies are written in CUE expression syntax and parsed with
// the CUE parser; ParseExpr lowers the CUE AST into package expr nodes.
// LoadDir reads a directory of CUE specs declaring entities, constants and
// named predicates, the form the wherefn CLI and scenario harness consume.
package source
