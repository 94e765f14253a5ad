package source

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/wherefn/internal/expr"
)

// ParseError reports a predicate body that is not valid expression syntax
// or uses syntax no predicate can contain (struct literals, comprehensions,
// string interpolation).
type ParseError struct {
	File    string
	Pos     expr.Pos
	Message string
}

func (e *ParseError) Error() string {
	file := e.File
	if file == "" {
		file = "<inline>"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", file, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", file, e.Message)
}

// ParseExpr parses a predicate body written in CUE expression syntax:
//
//	e.age > 18 && contains(e.name, "foo")
//	elementOf(e.id, [1, 2, v]) || !e.active
//	e.getAge() >= limits["adult"]
//
// and lowers it to an expr tree. Positions in the tree are relative to src.
func ParseExpr(filename, src string) (expr.Expr, error) {
	node, err := parser.ParseExpr(filename, src)
	if err != nil {
		return nil, formatCUEError(filename, err)
	}
	l := &lowerer{file: filename}
	return l.lower(node)
}

// MustParseExpr is ParseExpr that panics on error.
func MustParseExpr(src string) expr.Expr {
	e, err := ParseExpr("", src)
	if err != nil {
		panic(err)
	}
	return e
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(filename string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ParseError{File: filename, Message: err.Error()}
	}

	// Report the first error with its position
	first := errs[0]
	pe := &ParseError{File: filename, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		pe.Pos = position(positions[0])
		format, args := first.Msg()
		pe.Message = fmt.Sprintf(format, args...)
	}
	return pe
}

func position(p token.Pos) expr.Pos {
	if !p.IsValid() {
		return expr.Pos{}
	}
	return expr.Pos{Line: p.Line(), Column: p.Column()}
}

type lowerer struct {
	file string
}

func (l *lowerer) errorf(n ast.Node, format string, args ...any) error {
	return &ParseError{File: l.file, Pos: position(n.Pos()), Message: fmt.Sprintf(format, args...)}
}

func (l *lowerer) lower(n ast.Expr) (expr.Expr, error) {
	switch x := n.(type) {
	case *ast.Ident:
		at := position(x.Pos())
		switch x.Name {
		case "true", "false":
			return &expr.Literal{Kind: expr.LitBool, Value: x.Name == "true", At: at}, nil
		case "null":
			return &expr.Literal{Kind: expr.LitNull, At: at}, nil
		}
		return &expr.Ident{Name: x.Name, At: at}, nil

	case *ast.BasicLit:
		return l.lowerBasicLit(x)

	case *ast.SelectorExpr:
		base, err := l.lower(x.X)
		if err != nil {
			return nil, err
		}
		sel := &expr.Selector{X: base, At: position(x.Sel.Pos())}
		if name, _, err := ast.LabelName(x.Sel); err == nil {
			sel.Name = name
			return sel, nil
		}
		// Computed selector: keep the name expression so the compiler can
		// reject it with a precise message.
		dyn, ok := x.Sel.(ast.Expr)
		if !ok {
			return nil, l.errorf(x.Sel, "unsupported selector label %T", x.Sel)
		}
		if sel.Dynamic, err = l.lowerLabel(dyn); err != nil {
			return nil, err
		}
		return sel, nil

	case *ast.CallExpr:
		fun, err := l.lower(x.Fun)
		if err != nil {
			return nil, err
		}
		args, err := l.lowerList(x.Args)
		if err != nil {
			return nil, err
		}
		return &expr.Call{Fun: fun, Args: args, At: position(x.Pos())}, nil

	case *ast.IndexExpr:
		base, err := l.lower(x.X)
		if err != nil {
			return nil, err
		}
		idx := &expr.Index{X: base, At: position(x.Lbrack)}
		if x.Index != nil {
			if idx.Key, err = l.lower(x.Index); err != nil {
				return nil, err
			}
		}
		return idx, nil

	case *ast.ListLit:
		elems, err := l.lowerList(x.Elts)
		if err != nil {
			return nil, err
		}
		return &expr.List{Elems: elems, At: position(x.Lbrack)}, nil

	case *ast.Ellipsis:
		if x.Type == nil {
			return nil, l.errorf(x, "spread without operand")
		}
		inner, err := l.lower(x.Type)
		if err != nil {
			return nil, err
		}
		return &expr.Spread{X: inner, At: position(x.Ellipsis)}, nil

	case *ast.UnaryExpr:
		inner, err := l.lower(x.X)
		if err != nil {
			return nil, err
		}
		return &expr.Unary{Op: x.Op.String(), X: inner, At: position(x.OpPos)}, nil

	case *ast.BinaryExpr:
		left, err := l.lower(x.X)
		if err != nil {
			return nil, err
		}
		right, err := l.lower(x.Y)
		if err != nil {
			return nil, err
		}
		return &expr.Binary{X: left, Op: x.Op.String(), Y: right, At: position(x.OpPos)}, nil

	case *ast.ParenExpr:
		inner, err := l.lower(x.X)
		if err != nil {
			return nil, err
		}
		return &expr.Paren{X: inner, At: position(x.Lparen)}, nil

	case *ast.Interpolation:
		return nil, l.errorf(x, "string interpolation is not supported in predicates")
	case *ast.StructLit:
		return nil, l.errorf(x, "struct literals are not supported in predicates")
	case *ast.Comprehension:
		return nil, l.errorf(x, "comprehensions are not supported in predicates")
	case *ast.BottomLit:
		return nil, l.errorf(x, "_|_ is not supported in predicates")
	case nil:
		return nil, &ParseError{File: l.file, Message: "empty expression"}
	default:
		return nil, l.errorf(n, "unsupported syntax %T", n)
	}
}

// lowerLabel lowers the expression form of a computed selector label.
// A parenthesized label is the dynamic name itself.
func (l *lowerer) lowerLabel(e ast.Expr) (expr.Expr, error) {
	if p, ok := e.(*ast.ParenExpr); ok {
		return l.lower(p.X)
	}
	return l.lower(e)
}

func (l *lowerer) lowerList(in []ast.Expr) ([]expr.Expr, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]expr.Expr, 0, len(in))
	for _, e := range in {
		le, err := l.lower(e)
		if err != nil {
			return nil, err
		}
		out = append(out, le)
	}
	return out, nil
}

func (l *lowerer) lowerBasicLit(x *ast.BasicLit) (expr.Expr, error) {
	at := position(x.ValuePos)
	switch x.Kind {
	case token.NULL:
		return &expr.Literal{Kind: expr.LitNull, At: at}, nil
	case token.TRUE:
		return &expr.Literal{Kind: expr.LitBool, Value: true, At: at}, nil
	case token.FALSE:
		return &expr.Literal{Kind: expr.LitBool, Value: false, At: at}, nil
	case token.INT:
		digits := strings.ReplaceAll(x.Value, "_", "")
		n, err := strconv.ParseInt(digits, 0, 64)
		if err != nil {
			return nil, l.errorf(x, "invalid integer literal %s", x.Value)
		}
		return &expr.Literal{Kind: expr.LitInt, Value: n, At: at}, nil
	case token.FLOAT:
		digits := strings.ReplaceAll(x.Value, "_", "")
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return nil, l.errorf(x, "invalid number literal %s", x.Value)
		}
		return &expr.Literal{Kind: expr.LitFloat, Value: f, At: at}, nil
	case token.STRING:
		s, err := literal.Unquote(x.Value)
		if err != nil {
			return nil, l.errorf(x, "invalid string literal: %v", err)
		}
		return &expr.Literal{Kind: expr.LitString, Value: s, At: at}, nil
	default:
		return nil, l.errorf(x, "unsupported literal %s", x.Value)
	}
}
