package compiler

import (
	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/ir"
	"github.com/roach88/wherefn/internal/schema"
)

// resolveValue resolves the right operand of a comparison into a value
// descriptor. Rules, first match wins:
//
//  1. literal                            -> Constant
//  2. identifier naming a capture        -> Captured
//  3. global constant / Class.NAME       -> Constant, or ClassConstant when
//     the class constant is not known yet
//  4. list literal                       -> ArrayLiteral
//  5. base[key]                          -> ArrayIndex
//  6. base.field / base.getter()         -> PropertyChain / GetterChain
//
// Anything that reads the predicate parameter, and every other node kind,
// fails with UnsupportedValueExpression.
func (s *scope) resolveValue(e expr.Expr) (filterir.Value, error) {
	switch n := e.(type) {
	case *expr.Paren:
		return s.resolveValue(n.X)

	case *expr.Literal:
		return literalConstant(n)

	case *expr.Unary:
		if lit, ok := expr.Unparen(n.X).(*expr.Literal); ok && (n.Op == "-" || n.Op == "+") {
			return signedConstant(n, lit)
		}
		return nil, errorAt(KindUnsupportedValueExpression, n,
			"%s is not a supported value expression", expr.Kind(n))

	case *expr.Ident:
		switch {
		case n.Name == s.param:
			return nil, s.paramAsValue(n)
		case s.captures.Has(n.Name):
			return &filterir.Captured{Name: n.Name}, nil
		}
		if v, ok := s.constants.Global(n.Name); ok {
			return &filterir.Constant{Value: v}, nil
		}
		return nil, errorAt(KindUnsupportedValueExpression, n,
			"%s is neither a captured variable nor a known constant", n.Name)

	case *expr.ClassConst:
		class, ok := expr.Unparen(n.Class).(*expr.Ident)
		if !ok {
			return nil, errorAt(KindUnresolvableClassConstant, n,
				"class of constant %s is not a static name", n.Name)
		}
		return s.classConstant(class.Name, n.Name), nil

	case *expr.List:
		items := make([]filterir.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := s.resolveValue(el)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &filterir.ArrayLiteral{Items: items}, nil

	case *expr.Index:
		if n.Key == nil {
			return nil, errorAt(KindUnsupportedValueExpression, n,
				"index key omitted in %s", expr.String(n))
		}
		base, err := s.resolveValue(n.X)
		if err != nil {
			return nil, err
		}
		key, err := s.resolveValue(n.Key)
		if err != nil {
			return nil, err
		}
		return &filterir.ArrayIndex{Base: base, Key: key}, nil

	case *expr.Selector:
		if n.Dynamic != nil {
			return nil, errorAt(KindUnsupportedValueExpression, n,
				"computed field name %s cannot be resolved statically", expr.String(n))
		}
		if class, ok := s.classReference(n.X); ok {
			return s.classConstant(class, n.Name), nil
		}
		base, err := s.resolveValue(n.X)
		if err != nil {
			return nil, err
		}
		return &filterir.PropertyChain{Base: base, Field: n.Name}, nil

	case *expr.Call:
		sel, ok := n.Fun.(*expr.Selector)
		if !ok {
			return nil, errorAt(KindUnsupportedValueExpression, n,
				"function call %s cannot be used as a value", expr.String(n))
		}
		if sel.Dynamic != nil {
			return nil, errorAt(KindUnsupportedValueExpression, n,
				"computed method name %s cannot be resolved statically", expr.String(n))
		}
		if len(n.Args) > 0 {
			return nil, errorAt(KindUnsupportedValueExpression, n,
				"getter %s must not take arguments", sel.Name)
		}
		base, err := s.resolveValue(sel.X)
		if err != nil {
			return nil, err
		}
		return &filterir.GetterChain{Base: base, Method: sel.Name}, nil

	default:
		return nil, errorAt(KindUnsupportedValueExpression, e,
			"%s is not a supported value expression", expr.Kind(e))
	}
}

// classReference reports whether x names a class: a bare identifier that is
// not the parameter, not a capture and not a global constant.
func (s *scope) classReference(x expr.Expr) (string, bool) {
	id, ok := expr.Unparen(x).(*expr.Ident)
	if !ok || id.Name == s.param || s.captures.Has(id.Name) {
		return "", false
	}
	if _, global := s.constants.Global(id.Name); global {
		return "", false
	}
	return id.Name, true
}

// classConstant resolves class.name now when the constant is registered,
// and defers it to materialization otherwise.
func (s *scope) classConstant(class, name string) filterir.Value {
	qualified := schema.Qualify(class, s.imports, s.namespace)
	if v, ok := s.constants.Lookup(qualified, name); ok {
		return &filterir.Constant{Value: v}
	}
	return &filterir.ClassConstant{Class: qualified, Name: name}
}

func (s *scope) paramAsValue(n expr.Expr) error {
	return errorAt(KindUnsupportedValueExpression, n,
		"values cannot read from the predicate parameter %s", s.param)
}

func literalConstant(lit *expr.Literal) (filterir.Value, error) {
	v, err := ir.FromGo(lit.Value)
	if err != nil {
		return nil, errorAt(KindUnsupportedValueExpression, lit, "invalid literal: %v", err)
	}
	return &filterir.Constant{Value: v}, nil
}

// signedConstant folds -<number> and +<number> into a Constant.
func signedConstant(u *expr.Unary, lit *expr.Literal) (filterir.Value, error) {
	var v any
	switch x := lit.Value.(type) {
	case int64:
		v = x
		if u.Op == "-" {
			v = -x
		}
	case float64:
		v = x
		if u.Op == "-" {
			v = -x
		}
	default:
		return nil, errorAt(KindUnsupportedValueExpression, u,
			"%s applied to a %s literal", u.Op, lit.Kind)
	}
	return literalConstant(&expr.Literal{Kind: lit.Kind, Value: v, At: u.At})
}
