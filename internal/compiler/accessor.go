package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/wherefn/internal/expr"
)

// ResolveAccessor resolves the left operand of a comparison into a property
// path relative to the predicate parameter:
//
//	e.age            -> age
//	e.address.city   -> address.city
//	e.getAge()       -> age
//	e.a.getB()       -> a.b
//	e.isActive()     -> isActive
//
// The root must be the parameter itself. Computed names, getter calls with
// arguments and every other node kind fail with InvalidAccessor.
func ResolveAccessor(e expr.Expr, param string) (string, error) {
	segs, err := accessorSegments(e, param)
	if err != nil {
		return "", err
	}
	if len(segs) == 0 {
		return "", errorAt(KindInvalidAccessor, e,
			"the parameter %s itself is not a property; compare one of its fields", param)
	}
	return strings.Join(segs, "."), nil
}

func accessorSegments(e expr.Expr, param string) ([]string, error) {
	switch n := e.(type) {
	case *expr.Paren:
		return accessorSegments(n.X, param)

	case *expr.Ident:
		if n.Name != param {
			return nil, errorAt(KindInvalidAccessor, n,
				"%s is not rooted at the predicate parameter %s", n.Name, param)
		}
		return nil, nil

	case *expr.Selector:
		if n.Dynamic != nil {
			return nil, errorAt(KindInvalidAccessor, n,
				"computed field name %s cannot be resolved statically", expr.String(n))
		}
		base, err := accessorSegments(n.X, param)
		if err != nil {
			return nil, err
		}
		return append(base, n.Name), nil

	case *expr.Call:
		sel, ok := n.Fun.(*expr.Selector)
		if !ok {
			return nil, errorAt(KindInvalidAccessor, n,
				"%s is a function call, not a property access", expr.String(n))
		}
		if sel.Dynamic != nil {
			return nil, errorAt(KindInvalidAccessor, n,
				"computed method name %s cannot be resolved statically", expr.String(n))
		}
		if len(n.Args) > 0 {
			return nil, errorAt(KindInvalidAccessor, n,
				"getter %s must not take arguments", sel.Name)
		}
		base, err := accessorSegments(sel.X, param)
		if err != nil {
			return nil, err
		}
		return append(base, GetterProperty(sel.Name)), nil

	default:
		return nil, errorAt(KindInvalidAccessor, e,
			"%s is not a property access", expr.Kind(e))
	}
}

// GetterProperty maps a getter method name to the property it reads:
// a "get" prefix followed by an upper-case letter is stripped and the next
// letter lower-cased (getAge -> age, getURL -> uRL). Other names are
// returned unchanged.
func GetterProperty(method string) string {
	rest, ok := strings.CutPrefix(method, "get")
	if !ok || rest == "" {
		return method
	}
	r, size := utf8.DecodeRuneInString(rest)
	if !unicode.IsUpper(r) {
		return method
	}
	return string(unicode.ToLower(r)) + rest[size:]
}
