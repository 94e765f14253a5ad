package expr

import "fmt"

// The helpers below build predicate bodies directly in Go:
//
//	body := expr.And(
//	    expr.Gt(expr.Sel(expr.Id("e"), "age"), expr.Lit(18)),
//	    expr.Fn("contains", expr.Sel(expr.Id("e"), "name"), expr.Id("needle")),
//	)
//
// Builder nodes carry no source positions.

// Id returns an identifier node.
func Id(name string) *Ident { return &Ident{Name: name} }

// Lit returns a literal node for nil, bool, string, any integer or float.
// It panics on any other type; builder input is program text, not data.
func Lit(v any) *Literal {
	switch val := v.(type) {
	case nil:
		return &Literal{Kind: LitNull}
	case bool:
		return &Literal{Kind: LitBool, Value: val}
	case string:
		return &Literal{Kind: LitString, Value: val}
	case int:
		return &Literal{Kind: LitInt, Value: int64(val)}
	case int32:
		return &Literal{Kind: LitInt, Value: int64(val)}
	case int64:
		return &Literal{Kind: LitInt, Value: val}
	case float32:
		return &Literal{Kind: LitFloat, Value: float64(val)}
	case float64:
		return &Literal{Kind: LitFloat, Value: val}
	default:
		panic(fmt.Sprintf("expr.Lit: unsupported literal type %T", v))
	}
}

// Sel returns x.name.
func Sel(x Expr, name string) *Selector { return &Selector{X: x, Name: name} }

// Path returns root.a.b.c for a dotted list of names.
func Path(root string, names ...string) Expr {
	var e Expr = Id(root)
	for _, n := range names {
		e = Sel(e, n)
	}
	return e
}

// DynSel returns x.{name}, a selector whose name is computed.
func DynSel(x, name Expr) *Selector { return &Selector{X: x, Dynamic: name} }

// Method returns x.method(args...).
func Method(x Expr, method string, args ...Expr) *Call {
	return &Call{Fun: Sel(x, method), Args: args}
}

// Fn returns name(args...).
func Fn(name string, args ...Expr) *Call {
	return &Call{Fun: Id(name), Args: args}
}

// Idx returns x[key]. A nil key builds the append form x[].
func Idx(x, key Expr) *Index { return &Index{X: x, Key: key} }

// Arr returns an array literal.
func Arr(elems ...Expr) *List { return &List{Elems: elems} }

// Not returns !x.
func Not(x Expr) *Unary { return &Unary{Op: "!", X: x} }

// Neg returns -x.
func Neg(x Expr) *Unary { return &Unary{Op: "-", X: x} }

// Bin returns x op y.
func Bin(x Expr, op string, y Expr) *Binary { return &Binary{X: x, Op: op, Y: y} }

// And folds operands left to right with &&.
func And(x, y Expr, more ...Expr) Expr { return fold("&&", x, y, more) }

// Or folds operands left to right with ||.
func Or(x, y Expr, more ...Expr) Expr { return fold("||", x, y, more) }

func fold(op string, x, y Expr, more []Expr) Expr {
	e := Expr(Bin(x, op, y))
	for _, m := range more {
		e = Bin(e, op, m)
	}
	return e
}

func Eq(x, y Expr) *Binary { return Bin(x, "==", y) }
func Ne(x, y Expr) *Binary { return Bin(x, "!=", y) }
func Lt(x, y Expr) *Binary { return Bin(x, "<", y) }
func Le(x, y Expr) *Binary { return Bin(x, "<=", y) }
func Gt(x, y Expr) *Binary { return Bin(x, ">", y) }
func Ge(x, y Expr) *Binary { return Bin(x, ">=", y) }

// Group returns (x).
func Group(x Expr) *Paren { return &Paren{X: x} }

// Spr returns ...x.
func Spr(x Expr) *Spread { return &Spread{X: x} }

// Const returns class::name with a static class name.
func Const(class, name string) *ClassConst {
	return &ClassConst{Class: Id(class), Name: name}
}
