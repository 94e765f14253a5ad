package expr

import (
	"strconv"
	"strings"
)

// String renders e back into predicate source form. The output is meant
// for diagnostics and logs; it parenthesizes every nested binary operation
// instead of reproducing the original spacing.
func String(e Expr) string {
	var b strings.Builder
	write(&b, e, false)
	return b.String()
}

func write(b *strings.Builder, e Expr, nested bool) {
	switch n := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Ident:
		b.WriteString(n.Name)
	case *Literal:
		writeLiteral(b, n)
	case *Selector:
		write(b, n.X, true)
		b.WriteByte('.')
		if n.Dynamic != nil {
			b.WriteByte('{')
			write(b, n.Dynamic, false)
			b.WriteByte('}')
			return
		}
		b.WriteString(n.Name)
	case *Call:
		write(b, n.Fun, true)
		b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			write(b, a, false)
		}
		b.WriteByte(')')
	case *Index:
		write(b, n.X, true)
		b.WriteByte('[')
		if n.Key != nil {
			write(b, n.Key, false)
		}
		b.WriteByte(']')
	case *List:
		b.WriteByte('[')
		for i, el := range n.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			write(b, el, false)
		}
		b.WriteByte(']')
	case *Unary:
		b.WriteString(n.Op)
		write(b, n.X, true)
	case *Binary:
		if nested {
			b.WriteByte('(')
		}
		write(b, n.X, true)
		b.WriteByte(' ')
		b.WriteString(n.Op)
		b.WriteByte(' ')
		write(b, n.Y, true)
		if nested {
			b.WriteByte(')')
		}
	case *Paren:
		b.WriteByte('(')
		write(b, n.X, false)
		b.WriteByte(')')
	case *Spread:
		b.WriteString("...")
		write(b, n.X, true)
	case *ClassConst:
		write(b, n.Class, true)
		b.WriteString("::")
		b.WriteString(n.Name)
	default:
		b.WriteString("<")
		b.WriteString(Kind(e))
		b.WriteString(">")
	}
}

func writeLiteral(b *strings.Builder, n *Literal) {
	switch v := n.Value.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case string:
		b.WriteString(strconv.Quote(v))
	default:
		b.WriteString("<?>")
	}
}
