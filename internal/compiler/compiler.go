package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/ir"
	"github.com/roach88/wherefn/internal/schema"
)

// Compiler turns predicates into compiled units. It holds no mutable state;
// one instance may be shared by any number of goroutines.
type Compiler struct {
	provider  schema.Provider
	constants *schema.Constants
}

// New returns a compiler validating against provider. constants may be nil.
func New(provider schema.Provider, constants *schema.Constants) *Compiler {
	return &Compiler{provider: provider, constants: constants}
}

// Compile analyzes pred as a filter over entity and returns the cacheable
// compiled unit. The unit holds value descriptors only; captured values
// are read at materialization.
//
// Compile checks the signature (exactly one parameter whose declared type
// is entity or one of its supertypes), compiles the body and validates
// every property path against the schema provider.
func (c *Compiler) Compile(entity string, pred *expr.Predicate) (*filterir.CompiledUnit, error) {
	unit, err := c.compile(entity, pred)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Source == "" && pred != nil {
			ce.Source = pred.Source.String()
		}
		return nil, err
	}
	return unit, nil
}

func (c *Compiler) compile(entity string, pred *expr.Predicate) (*filterir.CompiledUnit, error) {
	if pred == nil || pred.Body == nil {
		return nil, Errorf(KindUnsupportedExpression, "", "predicate has no body")
	}
	param, err := c.checkSignature(entity, pred)
	if err != nil {
		return nil, err
	}

	s := &scope{
		param:     param.Name,
		captures:  pred.Captures,
		constants: c.constants,
		imports:   pred.Imports,
		namespace: pred.Namespace,
		positions: make(map[*filterir.Atomic]expr.Pos),
	}
	root, err := s.compileExpr(pred.Body)
	if err != nil {
		return nil, err
	}
	if err := validateProperties(c.provider, entity, root, s.positions); err != nil {
		return nil, err
	}

	return &filterir.CompiledUnit{
		SourceKey: SourceKey(entity, pred),
		Entity:    entity,
		Root:      root,
	}, nil
}

func (c *Compiler) checkSignature(entity string, pred *expr.Predicate) (expr.Param, error) {
	switch n := len(pred.Params); {
	case n == 0:
		return expr.Param{}, Errorf(KindMissingParameterType, "",
			"predicate must declare exactly one typed parameter")
	case n > 1:
		return expr.Param{}, Errorf(KindTooManyParameters, "",
			"predicate declares %d parameters, expected exactly one", n)
	}

	p := pred.Params[0]
	if strings.TrimSpace(p.Name) == "" {
		return p, Errorf(KindMissingParameterType, "", "parameter has no name")
	}
	if strings.TrimSpace(p.Type) == "" {
		return p, Errorf(KindMissingParameterType, p.Name, "parameter %s has no declared type", p.Name)
	}
	if !schema.AcceptsType(c.provider, entity, p.Type) {
		if !c.provider.HasEntity(entity) {
			return p, Errorf(KindParameterTypeMismatch, p.Name,
				"entity %s is not known to the schema", entity)
		}
		return p, Errorf(KindParameterTypeMismatch, p.Name,
			"parameter %s is declared as %s, which is neither %s nor one of its supertypes",
			p.Name, p.Type, entity)
	}
	return p, nil
}

// scope is the per-compilation context shared by the resolvers.
type scope struct {
	param     string
	captures  expr.Bindings
	constants *schema.Constants
	imports   map[string]string
	namespace string

	// positions remembers where each atomic filter came from so schema
	// errors can point at source.
	positions map[*filterir.Atomic]expr.Pos
}

func (s *scope) atom(n expr.Expr, prop string, op filterir.Operator, val filterir.Value) *filterir.Atomic {
	a := filterir.Atom(prop, op, val)
	if s.positions != nil && n != nil {
		s.positions[a] = n.Position()
	}
	return a
}

// sourceNamespace is the UUIDv5 namespace for source keys.
var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/wherefn/source-key"))

// SourceKey returns the cache key of a predicate's source identity.
//
// With a file and line the key covers entity, file and line, so every
// evaluation of the same source shares one compiled unit whatever its
// captured values. Without file identity the key covers the body text, the
// parameter and the class-name context instead. Both forms also cover the
// sorted capture names: a bare identifier compiles to a capture or to a
// global constant depending on them. Captured values never contribute.
func SourceKey(entity string, pred *expr.Predicate) string {
	var b strings.Builder
	b.WriteString(ir.CompilerVersion)
	b.WriteByte(0)
	b.WriteString(entity)
	b.WriteByte(0)
	names := make([]string, 0, len(pred.Captures))
	for name := range pred.Captures {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString(strings.Join(names, ","))
	b.WriteByte(0)

	if pred.Source.File != "" && pred.Source.Line > 0 {
		fmt.Fprintf(&b, "%s:%d", pred.Source.File, pred.Source.Line)
		return uuid.NewSHA1(sourceNamespace, []byte(b.String())).String()
	}

	text := pred.Source.Text
	if text == "" {
		text = expr.String(pred.Body)
	}
	for _, p := range pred.Params {
		fmt.Fprintf(&b, "%s:%s,", p.Name, p.Type)
	}
	b.WriteByte(0)
	b.WriteString(pred.Namespace)
	b.WriteByte(0)
	aliases := make([]string, 0, len(pred.Imports))
	for alias := range pred.Imports {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		fmt.Fprintf(&b, "%s=%s,", alias, pred.Imports[alias])
	}
	b.WriteByte(0)
	b.WriteString(text)
	return uuid.NewSHA1(sourceNamespace, []byte(b.String())).String()
}
