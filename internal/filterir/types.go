package filterir

import (
	"fmt"
	"strings"

	"github.com/roach88/wherefn/internal/ir"
)

// Operator is a filter comparison operator understood by filter sinks.
type Operator string

const (
	OpEq   Operator = "="
	OpNe   Operator = "!="
	OpLt   Operator = "<"
	OpLe   Operator = "<="
	OpGt   Operator = ">"
	OpGe   Operator = ">="
	OpLike Operator = ":like"
	OpIn   Operator = ":in"
)

// Valid reports whether o is one of the sink operators.
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpIn:
		return true
	}
	return false
}

// NormalizeOperator maps a source comparison spelling to a sink operator.
//
// Loose and strict equality collapse to the same operator: == and === become
// =, != and !== become !=. Ordering operators pass through unchanged.
// Any other spelling is not a comparison and reports false.
func NormalizeOperator(op string) (Operator, bool) {
	switch op {
	case "==", "===", "=":
		return OpEq, true
	case "!=", "!==", "<>":
		return OpNe, true
	case "<", "<=", ">", ">=":
		return Operator(op), true
	}
	return "", false
}

// LikeMode controls where a :like pattern gets its % wildcards.
type LikeMode string

const (
	LikeContains   LikeMode = "contains"
	LikeStartsWith LikeMode = "starts_with"
	LikeEndsWith   LikeMode = "ends_with"
)

// Valid reports whether m is a known mode.
func (m LikeMode) Valid() bool {
	return m == LikeContains || m == LikeStartsWith || m == LikeEndsWith
}

// Wrap adds % wildcards around s according to the mode.
// The value itself is not escaped; % and _ inside s keep their meaning.
func (m LikeMode) Wrap(s string) string {
	switch m {
	case LikeContains:
		return "%" + s + "%"
	case LikeStartsWith:
		return s + "%"
	case LikeEndsWith:
		return "%" + s
	default:
		return s
	}
}

// Value is a value descriptor: a deferred recipe for the right-hand side of
// a comparison.
//
// This is a sealed interface - only types in this package implement it.
// Descriptors never hold values taken from the predicate's captured scope;
// they only name where those values come from, so a compiled unit can be
// shared by every scope that runs the same predicate source.
//
// Value types:
//   - Constant: literal or compile-time resolved named constant
//   - Captured: captured outer variable, by name
//   - PropertyChain / GetterChain: field read / zero-arg accessor on a base
//   - ArrayLiteral / ArrayIndex: list construction / element access
//   - ClassConstant: class constant resolved at materialization
//   - LikePattern: :like wrapping of an inner descriptor
//
// Chain and index bases bottom out in Captured, ClassConstant or Constant,
// never in the predicate parameter.
type Value interface {
	valueNode() // Marker method - seals interface to this package
}

// Constant is a value fixed at compile time.
type Constant struct {
	Value ir.IRValue
}

// Captured reads a captured outer variable.
type Captured struct {
	Name string
}

// PropertyChain reads Field from the value of Base.
type PropertyChain struct {
	Base  Value
	Field string
}

// GetterChain invokes the zero-argument accessor Method on the value of Base.
type GetterChain struct {
	Base   Value
	Method string
}

// ArrayLiteral builds an ordered list from its items.
type ArrayLiteral struct {
	Items []Value
}

// ArrayIndex reads element Key of the value of Base.
type ArrayIndex struct {
	Base Value
	Key  Value
}

// ClassConstant is a constant whose owning class is known by qualified
// name but whose value was not available when the unit was compiled.
type ClassConstant struct {
	Class string
	Name  string
}

// LikePattern wraps the string form of Inner with % wildcards.
type LikePattern struct {
	Inner Value
	Mode  LikeMode
}

func (*Constant) valueNode()      {}
func (*Captured) valueNode()      {}
func (*PropertyChain) valueNode() {}
func (*GetterChain) valueNode()   {}
func (*ArrayLiteral) valueNode()  {}
func (*ArrayIndex) valueNode()    {}
func (*ClassConstant) valueNode() {}
func (*LikePattern) valueNode()   {}

// Filter is a member of an AndGroup.
//
// This is a sealed interface - only *Atomic and *OrGroup implement it.
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// Atomic is a single comparison: <property> <operator> <value>.
//
// Property is a dotted path relative to the entity (age, address.city),
// never prefixed with the predicate parameter name.
type Atomic struct {
	Property string
	Operator Operator
	Value    Value
}

// AndGroup is an ordered list of filters that must all hold.
type AndGroup struct {
	Filters []Filter
}

// OrGroup is an ordered list of alternatives, at least one of which must
// hold. An OrGroup never contains another OrGroup directly: alternatives
// are AndGroups, so the tree alternates AND / OR by construction.
type OrGroup struct {
	Alternatives []AndGroup
}

func (*Atomic) filterNode()  {}
func (*OrGroup) filterNode() {}

// CompiledUnit is the cacheable result of compiling one predicate source.
// It holds descriptors only, no captured values, and is never mutated once
// built; materialization reads it concurrently.
type CompiledUnit struct {
	SourceKey string
	Entity    string
	Root      AndGroup
}

// Atom builds an atomic filter.
func Atom(property string, op Operator, value Value) *Atomic {
	return &Atomic{Property: property, Operator: op, Value: value}
}

// And builds an AndGroup.
func And(filters ...Filter) AndGroup {
	return AndGroup{Filters: filters}
}

// Or builds an OrGroup.
func Or(alternatives ...AndGroup) *OrGroup {
	return &OrGroup{Alternatives: alternatives}
}

// Const builds a Constant descriptor from a plain Go value.
// It panics if v cannot be represented as an ir.IRValue.
func Const(v any) *Constant {
	irv, err := ir.FromGo(v)
	if err != nil {
		panic(fmt.Sprintf("filterir.Const: %v", err))
	}
	return &Constant{Value: irv}
}

// Single reports the lone member of g when g has exactly one filter.
func (g AndGroup) Single() (Filter, bool) {
	if len(g.Filters) != 1 {
		return nil, false
	}
	return g.Filters[0], true
}

// DescribeValue renders a descriptor for diagnostics and text output.
func DescribeValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case *Constant:
		b, err := ir.MarshalCanonical(val.Value)
		if err != nil {
			return "<invalid constant>"
		}
		return string(b)
	case *Captured:
		return "$" + val.Name
	case *PropertyChain:
		return DescribeValue(val.Base) + "." + val.Field
	case *GetterChain:
		return DescribeValue(val.Base) + "." + val.Method + "()"
	case *ArrayLiteral:
		parts := make([]string, len(val.Items))
		for i, item := range val.Items {
			parts[i] = DescribeValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ArrayIndex:
		return DescribeValue(val.Base) + "[" + DescribeValue(val.Key) + "]"
	case *ClassConstant:
		return val.Class + "::" + val.Name
	case *LikePattern:
		return fmt.Sprintf("like(%s, %s)", DescribeValue(val.Inner), val.Mode)
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

// String renders the group as a single line, e.g.
// `age > 18 AND (name :like like($q, contains) OR id :in [1, 2])`.
func (g AndGroup) String() string {
	parts := make([]string, len(g.Filters))
	for i, f := range g.Filters {
		switch n := f.(type) {
		case *Atomic:
			parts[i] = fmt.Sprintf("%s %s %s", n.Property, n.Operator, DescribeValue(n.Value))
		case *OrGroup:
			alts := make([]string, len(n.Alternatives))
			for j, alt := range n.Alternatives {
				s := alt.String()
				if len(alt.Filters) > 1 {
					s = "(" + s + ")"
				}
				alts[j] = s
			}
			parts[i] = "(" + strings.Join(alts, " OR ") + ")"
		default:
			parts[i] = fmt.Sprintf("<%T>", f)
		}
	}
	return strings.Join(parts, " AND ")
}
