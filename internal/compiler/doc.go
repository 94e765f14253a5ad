// Package compiler statically compiles predicate bodies into filter trees.
//
// Compilation is structural: the left side of every comparison resolves to
// a property path rooted at the predicate parameter, the right side to a
// value descriptor naming where the value will come from. Nothing is
// evaluated, so the resulting filterir.CompiledUnit can be cached by
// SourceKey and shared by every scope that runs the same source.
//
// Components:
//   - ResolveAccessor: left operands -> property paths (getter sugar included)
//   - value resolver: right operands -> value descriptors
//   - call resolver: contains/startsWith/endsWith/elementOf
//   - expression compiler: &&, ||, !, comparisons, bare accessors
//   - ValidateProperties: property paths against a schema.Provider
//
// Every failure is an *Error with a Kind and a stable code; the
// materializer reports its own failures with the same type.
package compiler
