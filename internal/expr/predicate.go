package expr

import (
	"fmt"
	"maps"
)

// Param is a formal parameter of a predicate. Type is the declared entity
// type name; an empty Type means the declaration carried none.
type Param struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Source identifies where a predicate body came from. File and Line give a
// stable identity for predicates declared in spec files; Text is the body
// source, used as identity when no file is known.
type Source struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Text string `json:"text,omitempty"`
}

// String formats the source location for diagnostics.
func (s Source) String() string {
	switch {
	case s.File != "" && s.Line > 0:
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	case s.File != "":
		return s.File
	default:
		return "<inline>"
	}
}

// Bindings maps captured outer variable names to their current values.
type Bindings map[string]any

// Lookup returns the value bound to name.
func (b Bindings) Lookup(name string) (any, bool) {
	v, ok := b[name]
	return v, ok
}

// Has reports whether name is captured, regardless of its value.
func (b Bindings) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// Predicate is an analyzable single-parameter boolean function.
//
// A Predicate is never mutated by the compiler. Two predicates that share
// the same Source but carry different Captures compile to the same unit and
// materialize to different values.
type Predicate struct {
	Source Source
	Params []Param
	Body   Expr

	// Captures holds the outer variables visible to Body. The key set
	// decides which bare identifiers are captured variables at compile
	// time; the values are read only at materialization.
	Captures Bindings

	// Imports maps short class aliases to fully qualified class names.
	Imports map[string]string

	// Namespace qualifies bare class names that have no import.
	Namespace string
}

// New returns a predicate over a single typed parameter.
func New(param, typ string, body Expr) *Predicate {
	return &Predicate{
		Params: []Param{{Name: param, Type: typ}},
		Body:   body,
	}
}

// Param returns the single formal parameter, if the predicate has exactly one.
func (p *Predicate) Param() (Param, bool) {
	if len(p.Params) != 1 {
		return Param{}, false
	}
	return p.Params[0], true
}

// WithCaptures returns a shallow copy of p bound to a different scope.
// The body, source and imports are shared with p.
func (p *Predicate) WithCaptures(b Bindings) *Predicate {
	cp := *p
	cp.Captures = maps.Clone(b)
	return &cp
}

// Capture returns a copy of p with one additional captured variable.
func (p *Predicate) Capture(name string, value any) *Predicate {
	b := maps.Clone(p.Captures)
	if b == nil {
		b = Bindings{}
	}
	b[name] = value
	cp := *p
	cp.Captures = b
	return &cp
}
