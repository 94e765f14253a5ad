// Package expr defines the analyzable form of a filter predicate: a small
// expression tree plus the predicate's formal parameter, captured variables
// and class-name resolution context.
//
// Predicates reach the compiler as trees, never as executable Go closures.
// Trees come from two places:
//
//	[CUE-syntax body] → source.ParseExpr → expr.Expr
//	[Go code]         → expr.Id / expr.Sel / expr.Fn ... → expr.Expr
//
// The node set is closed. Every compiler stage switches over it exhaustively
// and rejects unknown kinds explicitly.
package expr
