package materialize

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/wherefn/internal/compiler"
	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/ir"
	"github.com/roach88/wherefn/internal/schema"
)

// Materializer evaluates value descriptors. It is stateless apart from
// the class constant registry and safe for concurrent use.
type Materializer struct {
	constants *schema.Constants
}

// New returns a materializer resolving deferred class constants from
// constants, which may be nil.
func New(constants *schema.Constants) *Materializer {
	return &Materializer{constants: constants}
}

// Materialize evaluates every descriptor in unit against bindings.
//
// Descriptors evaluate as follows:
//   - Constant: its value (integers as int64, lists as []any)
//   - Captured: the bound value, as is
//   - PropertyChain: struct field or map key of the base
//   - GetterChain: zero-argument method of the base
//   - ArrayLiteral: []any of the items
//   - ArrayIndex: slice/array element or map entry
//   - ClassConstant: the registered constant
//   - LikePattern: the inner string (or each list element) wrapped in %
//
// The operand of :in must evaluate to a list. The first failure aborts
// materialization; no partial Filter is returned.
func (m *Materializer) Materialize(unit *filterir.CompiledUnit, bindings expr.Bindings) (*Filter, error) {
	if unit == nil {
		return nil, errors.New("materialize: nil compiled unit")
	}
	clauses, err := m.group(unit.Root, bindings)
	if err != nil {
		return nil, err
	}
	return &Filter{SourceKey: unit.SourceKey, Entity: unit.Entity, Clauses: clauses}, nil
}

func (m *Materializer) group(g filterir.AndGroup, b expr.Bindings) ([]Clause, error) {
	out := make([]Clause, 0, len(g.Filters))
	for _, f := range g.Filters {
		switch n := f.(type) {
		case *filterir.Atomic:
			c, err := m.atomic(n, b)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		case *filterir.OrGroup:
			grp := &Group{Combinator: CombinatorOr, Alternatives: make([][]Clause, len(n.Alternatives))}
			for i, alt := range n.Alternatives {
				clauses, err := m.group(alt, b)
				if err != nil {
					return nil, err
				}
				grp.Alternatives[i] = clauses
			}
			out = append(out, Clause{Group: grp})
		default:
			return nil, fmt.Errorf("materialize: unknown filter node %T", f)
		}
	}
	return out, nil
}

func (m *Materializer) atomic(a *filterir.Atomic, b expr.Bindings) (Clause, error) {
	v, err := m.eval(a.Value, b)
	if err != nil {
		return Clause{}, err
	}
	if a.Operator == filterir.OpIn {
		list, ok := asList(v)
		if !ok {
			return Clause{}, compiler.Errorf(compiler.KindNonListMembership, a.Property,
				"%s :in needs a list, %s evaluated to %T", a.Property, filterir.DescribeValue(a.Value), v)
		}
		v = list
	}
	return Clause{Property: a.Property, Operator: a.Operator, Value: v}, nil
}

func (m *Materializer) eval(v filterir.Value, b expr.Bindings) (any, error) {
	switch d := v.(type) {
	case *filterir.Constant:
		return ir.ToGo(d.Value), nil

	case *filterir.Captured:
		val, ok := b.Lookup(d.Name)
		if !ok {
			return nil, compiler.Errorf(compiler.KindUnboundCapture, d.Name,
				"captured variable %s has no binding", d.Name)
		}
		return val, nil

	case *filterir.PropertyChain:
		base, err := m.eval(d.Base, b)
		if err != nil {
			return nil, err
		}
		return readField(base, d.Field, d)

	case *filterir.GetterChain:
		base, err := m.eval(d.Base, b)
		if err != nil {
			return nil, err
		}
		return callGetter(base, d.Method, d)

	case *filterir.ArrayLiteral:
		items := make([]any, len(d.Items))
		for i, item := range d.Items {
			val, err := m.eval(item, b)
			if err != nil {
				return nil, err
			}
			items[i] = val
		}
		return items, nil

	case *filterir.ArrayIndex:
		base, err := m.eval(d.Base, b)
		if err != nil {
			return nil, err
		}
		key, err := m.eval(d.Key, b)
		if err != nil {
			return nil, err
		}
		return index(base, key, d)

	case *filterir.ClassConstant:
		val, ok := m.constants.Lookup(d.Class, d.Name)
		if !ok {
			return nil, compiler.Errorf(compiler.KindUnresolvableClassConstant, d.Class+"::"+d.Name,
				"constant %s::%s is not defined", d.Class, d.Name)
		}
		return ir.ToGo(val), nil

	case *filterir.LikePattern:
		inner, err := m.eval(d.Inner, b)
		if err != nil {
			return nil, err
		}
		return likeValue(inner, d)

	default:
		return nil, compiler.Errorf(compiler.KindUnsupportedValueExpression, "",
			"cannot evaluate value descriptor %s", filterir.DescribeValue(v))
	}
}

func nullBase(d filterir.Value, base filterir.Value, what string) error {
	return compiler.Errorf(compiler.KindNullBaseDereference, filterir.DescribeValue(d),
		"cannot read %s: %s is null", what, filterir.DescribeValue(base))
}

func missingKey(d filterir.Value, format string, args ...any) error {
	return compiler.Errorf(compiler.KindMissingKey, filterir.DescribeValue(d), format, args...)
}

// readField reads a struct field (exact name, exported form, then any
// case) or a map entry.
func readField(base any, field string, d *filterir.PropertyChain) (any, error) {
	rv, ok := indirect(base)
	if !ok {
		return nil, nullBase(d, d.Base, "field "+field)
	}
	switch rv.Kind() {
	case reflect.Map:
		if val, ok := mapLookup(rv, field); ok {
			return val, nil
		}
		return nil, missingKey(d, "%s has no key %q", filterir.DescribeValue(d.Base), field)
	case reflect.Struct:
		if f, ok := structField(rv, field); ok {
			return f.Interface(), nil
		}
	}
	return nil, missingKey(d, "%s (%s) has no field %s", filterir.DescribeValue(d.Base), rv.Type(), field)
}

func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	lookups := []func() (reflect.StructField, bool){
		func() (reflect.StructField, bool) { return t.FieldByName(name) },
		func() (reflect.StructField, bool) { return t.FieldByName(exportedName(name)) },
		func() (reflect.StructField, bool) {
			return t.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
		},
	}
	for _, lookup := range lookups {
		sf, ok := lookup()
		if !ok || !sf.IsExported() {
			continue
		}
		f, err := rv.FieldByIndexErr(sf.Index)
		if err != nil {
			return reflect.Value{}, false
		}
		return f, true
	}
	return reflect.Value{}, false
}

// callGetter invokes a zero-argument method of base. Methods returning
// (T, error) propagate the error. Map bases have no methods; for them the
// getter reads the property it names (getName -> "name").
func callGetter(base any, method string, d *filterir.GetterChain) (any, error) {
	rv := reflect.ValueOf(base)
	if inner, ok := indirect(base); !ok {
		return nil, nullBase(d, d.Base, method+"()")
	} else if inner.Kind() == reflect.Map {
		for _, key := range []string{compiler.GetterProperty(method), method} {
			if val, ok := mapLookup(inner, key); ok {
				return val, nil
			}
		}
		return nil, missingKey(d, "%s has no key %q", filterir.DescribeValue(d.Base), compiler.GetterProperty(method))
	}

	fn, ok := findMethod(rv, method)
	if !ok {
		return nil, missingKey(d, "%s (%T) has no method %s", filterir.DescribeValue(d.Base), base, method)
	}
	ft := fn.Type()
	if ft.NumIn() != 0 {
		return nil, compiler.Errorf(compiler.KindUnsupportedValueExpression, filterir.DescribeValue(d),
			"method %s takes %d arguments", method, ft.NumIn())
	}
	switch {
	case ft.NumOut() == 1:
		return fn.Call(nil)[0].Interface(), nil
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		out := fn.Call(nil)
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, fmt.Errorf("%s: %w", filterir.DescribeValue(d), err)
		}
		return out[0].Interface(), nil
	default:
		return nil, compiler.Errorf(compiler.KindUnsupportedValueExpression, filterir.DescribeValue(d),
			"method %s must return a value or (value, error)", method)
	}
}

var errorType = reflect.TypeFor[error]()

func findMethod(rv reflect.Value, name string) (reflect.Value, bool) {
	for _, n := range []string{name, exportedName(name)} {
		if fn := rv.MethodByName(n); fn.IsValid() {
			return fn, true
		}
		// Pointer-receiver methods on a value base.
		if rv.Kind() != reflect.Pointer {
			p := reflect.New(rv.Type())
			p.Elem().Set(rv)
			if fn := p.MethodByName(n); fn.IsValid() {
				return fn, true
			}
		}
	}
	return reflect.Value{}, false
}

// index reads element key of a slice or array, or entry key of a map.
func index(base, key any, d *filterir.ArrayIndex) (any, error) {
	rv, ok := indirect(base)
	if !ok {
		return nil, nullBase(d, d.Base, "index "+formatValue(key))
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := toInt(key)
		if !ok {
			return nil, missingKey(d, "list index %s is not an integer", formatValue(key))
		}
		if i < 0 || i >= rv.Len() {
			return nil, compiler.Errorf(compiler.KindIndexOutOfRange, filterir.DescribeValue(d),
				"index %d out of range for %s of length %d", i, filterir.DescribeValue(d.Base), rv.Len())
		}
		return rv.Index(i).Interface(), nil
	case reflect.Map:
		if val, ok := mapLookup(rv, key); ok {
			return val, nil
		}
		return nil, missingKey(d, "%s has no key %s", filterir.DescribeValue(d.Base), formatValue(key))
	}
	return nil, missingKey(d, "%s (%s) cannot be indexed", filterir.DescribeValue(d.Base), rv.Type())
}

// likeValue wraps a string, or every element of a list, with % wildcards.
// Numbers and booleans use their fmt form.
func likeValue(v any, d *filterir.LikePattern) (any, error) {
	if list, ok := asList(v); ok {
		out := make([]any, len(list))
		for i, elem := range list {
			s, err := likeString(elem, d)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	}
	return likeString(v, d)
}

func likeString(v any, d *filterir.LikePattern) (string, error) {
	rv, ok := indirect(v)
	if !ok {
		return "", compiler.Errorf(compiler.KindNullBaseDereference, filterir.DescribeValue(d),
			"%s pattern of null %s", d.Mode, filterir.DescribeValue(d.Inner))
	}
	if rv.Kind() == reflect.String {
		return d.Mode.Wrap(rv.String()), nil
	}
	return d.Mode.Wrap(fmt.Sprint(rv.Interface())), nil
}

// indirect unwraps pointers and interfaces. It reports false when it
// reaches nil.
func indirect(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

// asList converts any slice or array except []byte to []any.
func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func mapLookup(m reflect.Value, key any) (any, bool) {
	kt := m.Type().Key()
	kv := reflect.ValueOf(key)
	if !kv.IsValid() {
		return nil, false
	}
	switch {
	case kv.Type().AssignableTo(kt):
	case kv.Kind() == reflect.String && kt.Kind() == reflect.String:
		kv = kv.Convert(kt)
	case isInteger(kv.Kind()) && isInteger(kt.Kind()):
		kv = kv.Convert(kt)
	default:
		return nil, false
	}
	if !kv.Type().Comparable() {
		return nil, false
	}
	val := m.MapIndex(kv)
	if !val.IsValid() {
		return nil, false
	}
	return val.Interface(), true
}

func toInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return 0, false
	case rv.CanInt():
		return int(rv.Int()), true
	case rv.CanUint():
		return int(rv.Uint()), true
	case rv.CanFloat():
		f := rv.Float()
		if f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// exportedName upper-cases the first rune: name -> Name.
func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
