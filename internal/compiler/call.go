package compiler

import (
	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/ir"
)

// Predicate functions. Each takes (accessor, value) and compiles to one
// atomic filter.
const (
	FuncContains   = "contains"
	FuncStartsWith = "startsWith"
	FuncEndsWith   = "endsWith"
	FuncElementOf  = "elementOf"
)

var likeFuncs = map[string]filterir.LikeMode{
	FuncContains:   filterir.LikeContains,
	FuncStartsWith: filterir.LikeStartsWith,
	FuncEndsWith:   filterir.LikeEndsWith,
}

// IsPredicateFunc reports whether name is one of the supported predicate
// functions.
func IsPredicateFunc(name string) bool {
	_, like := likeFuncs[name]
	return like || name == FuncElementOf
}

// resolveCall compiles a whitelisted function call:
//
//	contains(a, v)   -> a :like %v%
//	startsWith(a, v) -> a :like v%
//	endsWith(a, v)   -> a :like %v
//	elementOf(a, v)  -> a :in v
func (s *scope) resolveCall(c *expr.Call) (*filterir.Atomic, error) {
	fn, ok := c.Fun.(*expr.Ident)
	if !ok || !IsPredicateFunc(fn.Name) {
		return nil, errorAt(KindUnsupportedFunctionCall, c,
			"%s is not a supported function (contains, startsWith, endsWith, elementOf)", expr.String(c.Fun))
	}
	for _, arg := range c.Args {
		if _, spread := arg.(*expr.Spread); spread {
			return nil, errorAt(KindUnsupportedArgumentSpread, arg,
				"%s does not accept spread arguments", fn.Name)
		}
	}
	if len(c.Args) != 2 {
		return nil, errorAt(KindUnsupportedFunctionCall, c,
			"%s expects 2 arguments, got %d", fn.Name, len(c.Args))
	}

	prop, err := ResolveAccessor(c.Args[0], s.param)
	if err != nil {
		return nil, err
	}
	val, err := s.resolveValue(c.Args[1])
	if err != nil {
		return nil, err
	}

	if mode, like := likeFuncs[fn.Name]; like {
		return s.atom(c, prop, filterir.OpLike, &filterir.LikePattern{Inner: val, Mode: mode}), nil
	}

	// elementOf: the value must be able to produce a list.
	if k, ok := val.(*filterir.Constant); ok && !ir.IsList(k.Value) {
		return nil, errorAt(KindUnsupportedValueExpression, c.Args[1],
			"elementOf needs a list, got %s", expr.String(c.Args[1]))
	}
	return s.atom(c, prop, filterir.OpIn, val), nil
}
