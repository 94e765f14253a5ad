package materialize

import (
	"fmt"
	"strings"

	"github.com/roach88/wherefn/internal/filterir"
)

// Combinator joins the alternatives of a Group.
type Combinator string

const CombinatorOr Combinator = "OR"

// Clause is one member of a materialized AND list: either a comparison
// with a concrete value or a nested Group.
type Clause struct {
	Property string
	Operator filterir.Operator
	Value    any

	// Group is set for nested alternations; the comparison fields are
	// then empty.
	Group *Group
}

// IsGroup reports whether c carries a nested group.
func (c Clause) IsGroup() bool { return c.Group != nil }

// Group is a parenthesized alternation of AND lists.
type Group struct {
	Combinator   Combinator
	Alternatives [][]Clause
}

// Filter is the materialized form of a compiled unit: concrete values in
// IR order, ready to be replayed into a sink.
type Filter struct {
	SourceKey string
	Entity    string
	Clauses   []Clause
}

// Whereable is the filter sink contract.
//
// And and Or add one comparison joined to what came before with AND or
// OR. Nested adds a parenthesized alternation; sinks usually replay each
// alternative into a fresh sub-sink with Replay and join the results
// with OR.
type Whereable interface {
	And(property string, op filterir.Operator, value any)
	Or(property string, op filterir.Operator, value any)
	Nested(group *Group)
}

// Apply replays the filter into sink, one call per top-level clause.
func (f *Filter) Apply(sink Whereable) {
	Replay(f.Clauses, sink)
}

// Replay feeds clauses into sink in order: comparisons through And,
// groups through Nested.
func Replay(clauses []Clause, sink Whereable) {
	for _, c := range clauses {
		if c.Group != nil {
			sink.Nested(c.Group)
			continue
		}
		sink.And(c.Property, c.Operator, c.Value)
	}
}

// String renders the filter on one line, e.g.
// `age > 18 AND (name :like "%a%" OR id :in [1 2])`.
func (f *Filter) String() string {
	return clausesString(f.Clauses)
}

func clausesString(clauses []Clause) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		if c.Group == nil {
			parts[i] = fmt.Sprintf("%s %s %s", c.Property, c.Operator, formatValue(c.Value))
			continue
		}
		alts := make([]string, len(c.Group.Alternatives))
		for j, alt := range c.Group.Alternatives {
			s := clausesString(alt)
			if len(alt) > 1 {
				s = "(" + s + ")"
			}
			alts[j] = s
		}
		parts[i] = "(" + strings.Join(alts, " "+string(c.Group.Combinator)+" ") + ")"
	}
	return strings.Join(parts, " AND ")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
