package expr

import "fmt"

// Pos is a source position inside a predicate body. The zero value means
// "unknown" (trees built with the builder helpers carry no positions).
type Pos struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// IsValid reports whether the position is known.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Expr is a node of a predicate body.
//
// This is a sealed interface - only types in this package implement it.
// The compiler switches exhaustively over the node kinds and reports every
// kind it does not understand as unsupported instead of falling through.
type Expr interface {
	Position() Pos
	exprNode() // Marker method - seals interface to this package
}

// Ident is a bare identifier: the predicate parameter, a captured variable,
// a named constant or a class name.
type Ident struct {
	Name string
	At   Pos
}

// LitKind classifies a Literal.
type LitKind int

const (
	LitNull LitKind = iota
	LitBool
	LitInt
	LitFloat
	LitString
)

func (k LitKind) String() string {
	switch k {
	case LitNull:
		return "null"
	case LitBool:
		return "bool"
	case LitInt:
		return "int"
	case LitFloat:
		return "float"
	case LitString:
		return "string"
	default:
		return fmt.Sprintf("LitKind(%d)", int(k))
	}
}

// Literal is a scalar literal. Value holds nil, bool, int64, float64 or
// string according to Kind.
type Literal struct {
	Kind  LitKind
	Value any
	At    Pos
}

// Selector is a field access X.Name.
//
// When Dynamic is non-nil the accessed name is computed at runtime
// (X.{expr}); such selectors can never be compiled.
type Selector struct {
	X       Expr
	Name    string
	Dynamic Expr
	At      Pos
}

// Call is a function call. Fun is an *Ident for free functions
// (contains(...)) and a *Selector for method calls (e.getAge()).
type Call struct {
	Fun  Expr
	Args []Expr
	At   Pos
}

// Index is an element access X[Key]. Key is nil for the append form X[].
type Index struct {
	X   Expr
	Key Expr
	At  Pos
}

// List is an array literal.
type List struct {
	Elems []Expr
	At    Pos
}

// Unary is a prefix operation: "!" or "-" (or "+").
type Unary struct {
	Op string
	X  Expr
	At Pos
}

// Binary is an infix operation: logical (&&, ||) or comparison
// (==, ===, !=, !==, <, <=, >, >=).
type Binary struct {
	X  Expr
	Op string
	Y  Expr
	At Pos
}

// Paren is a parenthesized expression.
type Paren struct {
	X  Expr
	At Pos
}

// Spread is an argument expansion (...X).
type Spread struct {
	X  Expr
	At Pos
}

// ClassConst is an explicit class constant fetch (Class::NAME). Class is
// normally an *Ident; any other expression is a dynamic class reference.
type ClassConst struct {
	Class Expr
	Name  string
	At    Pos
}

func (n *Ident) Position() Pos { return n.At }
func (n *Literal) Position() Pos { return n.At }
func (n *Selector) Position() Pos { return n.At }
func (n *Call) Position() Pos { return n.At }
func (n *Index) Position() Pos { return n.At }
func (n *List) Position() Pos { return n.At }
func (n *Unary) Position() Pos { return n.At }
func (n *Binary) Position() Pos { return n.At }
func (n *Paren) Position() Pos { return n.At }
func (n *Spread) Position() Pos { return n.At }
func (n *ClassConst) Position() Pos { return n.At }

func (*Ident) exprNode() {}
func (*Literal) exprNode() {}
func (*Selector) exprNode() {}
func (*Call) exprNode() {}
func (*Index) exprNode() {}
func (*List) exprNode() {}
func (*Unary) exprNode() {}
func (*Binary) exprNode() {}
func (*Paren) exprNode() {}
func (*Spread) exprNode() {}
func (*ClassConst) exprNode() {}

// Kind returns the node kind name used in diagnostics.
func Kind(e Expr) string {
	switch n := e.(type) {
	case nil:
		return "nil"
	case *Ident:
		return "identifier"
	case *Literal:
		return n.Kind.String() + " literal"
	case *Selector:
		return "field access"
	case *Call:
		if _, ok := n.Fun.(*Selector); ok {
			return "method call"
		}
		return "function call"
	case *Index:
		return "index access"
	case *List:
		return "array literal"
	case *Unary:
		return "unary " + n.Op
	case *Binary:
		return "binary " + n.Op
	case *Paren:
		return "parenthesized expression"
	case *Spread:
		return "spread"
	case *ClassConst:
		return "class constant"
	default:
		return fmt.Sprintf("%T", e)
	}
}

// Unparen strips any number of enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}
		e = p.X
	}
}
