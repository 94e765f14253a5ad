package compiler

import (
	"slices"

	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
)

// compileExpr compiles a boolean expression into an AND group.
//
//	A && B        -> members of A followed by members of B
//	A || B        -> one OR group; alternatives of A and B are flattened
//	!accessor     -> accessor = false
//	accessor      -> accessor = true
//	L op R        -> accessor(L) op' value(R), op' normalized
//	f(a, v)       -> predicate function
//
// Every other node fails with UnsupportedExpression naming its kind.
func (s *scope) compileExpr(e expr.Expr) (filterir.AndGroup, error) {
	switch n := e.(type) {
	case *expr.Paren:
		return s.compileExpr(n.X)

	case *expr.Binary:
		switch n.Op {
		case "&&":
			return s.compileAnd(n)
		case "||":
			return s.compileOr(n)
		}
		op, ok := filterir.NormalizeOperator(n.Op)
		if !ok {
			return filterir.AndGroup{}, errorAt(KindUnsupportedExpression, n,
				"%s is not a supported operator", expr.Kind(n))
		}
		prop, err := ResolveAccessor(n.X, s.param)
		if err != nil {
			return filterir.AndGroup{}, err
		}
		val, err := s.resolveValue(n.Y)
		if err != nil {
			return filterir.AndGroup{}, err
		}
		return filterir.And(s.atom(n, prop, op, val)), nil

	case *expr.Unary:
		if n.Op != "!" {
			return filterir.AndGroup{}, errorAt(KindUnsupportedExpression, n,
				"%s is not a boolean expression", expr.Kind(n))
		}
		inner := expr.Unparen(n.X)
		if !isAccessorShape(inner) {
			return filterir.AndGroup{}, errorAt(KindUnsupportedExpression, n,
				"negation is only supported on a property access, got %s", expr.Kind(inner))
		}
		prop, err := ResolveAccessor(inner, s.param)
		if err != nil {
			return filterir.AndGroup{}, err
		}
		return filterir.And(s.atom(n, prop, filterir.OpEq, filterir.Const(false))), nil

	case *expr.Call:
		if _, free := n.Fun.(*expr.Ident); free {
			atom, err := s.resolveCall(n)
			if err != nil {
				return filterir.AndGroup{}, err
			}
			return filterir.And(atom), nil
		}
		return s.compileTruthy(n)

	case *expr.Selector, *expr.Ident:
		return s.compileTruthy(n)

	default:
		return filterir.AndGroup{}, errorAt(KindUnsupportedExpression, e,
			"%s is not a supported boolean expression", expr.Kind(e))
	}
}

func (s *scope) compileAnd(n *expr.Binary) (filterir.AndGroup, error) {
	left, err := s.compileExpr(n.X)
	if err != nil {
		return filterir.AndGroup{}, err
	}
	right, err := s.compileExpr(n.Y)
	if err != nil {
		return filterir.AndGroup{}, err
	}
	filters := make([]filterir.Filter, 0, len(left.Filters)+len(right.Filters))
	filters = append(filters, left.Filters...)
	filters = append(filters, right.Filters...)
	return filterir.AndGroup{Filters: filters}, nil
}

// compileOr builds one OR group. A side that compiled to a lone OR group
// contributes its alternatives directly, so a || b || c is a single
// three-way group and (a && b) || c has alternatives [a, b] and [c].
func (s *scope) compileOr(n *expr.Binary) (filterir.AndGroup, error) {
	left, err := s.compileExpr(n.X)
	if err != nil {
		return filterir.AndGroup{}, err
	}
	right, err := s.compileExpr(n.Y)
	if err != nil {
		return filterir.AndGroup{}, err
	}
	alts := slices.Concat(alternatives(left), alternatives(right))
	return filterir.And(filterir.Or(alts...)), nil
}

func alternatives(g filterir.AndGroup) []filterir.AndGroup {
	if f, ok := g.Single(); ok {
		if or, ok := f.(*filterir.OrGroup); ok {
			return or.Alternatives
		}
	}
	return []filterir.AndGroup{g}
}

// compileTruthy compiles a bare accessor to accessor = true.
func (s *scope) compileTruthy(n expr.Expr) (filterir.AndGroup, error) {
	prop, err := ResolveAccessor(n, s.param)
	if err != nil {
		return filterir.AndGroup{}, err
	}
	return filterir.And(s.atom(n, prop, filterir.OpEq, filterir.Const(true))), nil
}

func isAccessorShape(e expr.Expr) bool {
	switch n := e.(type) {
	case *expr.Selector, *expr.Ident:
		return true
	case *expr.Call:
		_, method := n.Fun.(*expr.Selector)
		return method
	}
	return false
}
