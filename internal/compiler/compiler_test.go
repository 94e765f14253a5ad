package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
)

func TestCompileSignature(t *testing.T) {
	body := expr.Gt(expr.Path("e", "age"), expr.Lit(18))
	c := New(testProvider(), nil)

	tests := []struct {
		name   string
		params []expr.Param
		kind   Kind
	}{
		{"no parameters", nil, KindMissingParameterType},
		{"untyped", []expr.Param{{Name: "e"}}, KindMissingParameterType},
		{"unnamed", []expr.Param{{Type: "User"}}, KindMissingParameterType},
		{"two parameters", []expr.Param{{Name: "e", Type: "User"}, {Name: "o", Type: "Order"}}, KindTooManyParameters},
		{"other entity", []expr.Param{{Name: "e", Type: "Order"}}, KindParameterTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile("User", &expr.Predicate{Params: tt.params, Body: body})
			requireKind(t, err, tt.kind)
		})
	}
}

func TestCompileAcceptsSupertype(t *testing.T) {
	c := New(testProvider(), nil)
	unit, err := c.Compile("User", expr.New("e", "Named", expr.Fn(FuncContains, expr.Path("e", "name"), expr.Lit("a"))))
	require.NoError(t, err)
	assert.Equal(t, "User", unit.Entity)
}

func TestCompileUnknownEntity(t *testing.T) {
	c := New(testProvider(), nil)
	_, err := c.Compile("Ghost", expr.New("e", "User", expr.Path("e", "active")))
	ce := requireKind(t, err, KindParameterTypeMismatch)
	assert.Contains(t, ce.Message, "not known")
}

func TestCompileNilBody(t *testing.T) {
	c := New(testProvider(), nil)
	_, err := c.Compile("User", expr.New("e", "User", nil))
	requireKind(t, err, KindUnsupportedExpression)
	_, err = c.Compile("User", nil)
	requireKind(t, err, KindUnsupportedExpression)
}

func TestCompileUnmappedProperty(t *testing.T) {
	_, err := compileBody(t, `e.age > 1 && e.nickname == "x"`, nil)
	ce := requireKind(t, err, KindUnmappedProperty)
	assert.Equal(t, "nickname", ce.Path)
	assert.Equal(t, 1, ce.Pos.Line)
	assert.ErrorIs(t, err, ErrUnmappedProperty)
}

func TestCompileUnmappedPropertyInsideOr(t *testing.T) {
	_, err := compileBody(t, `e.age > 1 || (e.active && e.getShoeSize() > 40)`, nil)
	ce := requireKind(t, err, KindUnmappedProperty)
	assert.Equal(t, "shoeSize", ce.Path)
}

func TestCompileEmbeddedAndRelationPaths(t *testing.T) {
	unit := mustCompile(t, `e.address.zip == "1000" && e.orders.total > 10 && e.address.getCity() == "Oslo"`, nil)
	props := make([]string, 0, 3)
	for _, a := range filterir.Atomics(unit.Root) {
		props = append(props, a.Property)
	}
	assert.Equal(t, []string{"address.zip", "orders.total", "address.city"}, props)
}

func TestCompileInheritedAttribute(t *testing.T) {
	// name is declared on Named, which User extends.
	unit := mustCompile(t, `startsWith(e.name, "A")`, nil)
	assert.Equal(t, "name", filterir.Atomics(unit.Root)[0].Property)
}

func TestCompileIsIdempotent(t *testing.T) {
	p := pred(t, `e.age >= 18 && (contains(e.name, q) || elementOf(e.id, ids))`, expr.Bindings{"q": "a", "ids": []any{1}})
	c := New(testProvider(), testConstants(t))

	first, err := c.Compile("User", p)
	require.NoError(t, err)
	second, err := c.Compile("User", p)
	require.NoError(t, err)
	assert.True(t, filterir.Equal(first, second))
	assert.Equal(t, first, second)
}

func TestCompiledUnitHoldsNoCapturedValues(t *testing.T) {
	p := pred(t, `e.age > limit`, expr.Bindings{"limit": 18})
	c := New(testProvider(), nil)

	a, err := c.Compile("User", p)
	require.NoError(t, err)
	b, err := c.Compile("User", p.WithCaptures(expr.Bindings{"limit": 99}))
	require.NoError(t, err)

	assert.True(t, filterir.Equal(a, b))
	assert.Equal(t, a.SourceKey, b.SourceKey)
	assert.Equal(t, []string{"limit"}, filterir.CapturedNames(a))
}

func TestCompileErrorSource(t *testing.T) {
	p := pred(t, `e.nickname == "x"`, nil)
	p.Source.File = "preds.cue"
	p.Source.Line = 12

	_, err := New(testProvider(), nil).Compile("User", p)
	ce := requireKind(t, err, KindUnmappedProperty)
	assert.Equal(t, "preds.cue:12", ce.Source)
	assert.Equal(t, "[E250] preds.cue:12 1:12: UnmappedProperty: property nickname is not mapped on User", err.Error())
}

func TestErrorFormat(t *testing.T) {
	e := Errorf(KindUnboundCapture, "q", "captured variable %s has no binding", "q")
	assert.Equal(t, "[E260] UnboundCapture: captured variable q has no binding", e.Error())

	e.Pos = expr.Pos{Line: 2, Column: 5}
	assert.Equal(t, "[E260] 2:5: UnboundCapture: captured variable q has no binding", e.Error())

	assert.Equal(t, "[E240] UnsupportedExpression", (&Error{Kind: KindUnsupportedExpression}).Error())
}

func TestErrorIs(t *testing.T) {
	err := error(Errorf(KindIndexOutOfRange, "", "index 4 of 2"))
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	assert.False(t, errors.Is(err, ErrMissingKey))

	wrapped := errors.Join(errors.New("materialize"), err)
	assert.ErrorIs(t, wrapped, ErrIndexOutOfRange)
}

func TestKindCodes(t *testing.T) {
	seen := map[string]Kind{}
	for kind, code := range kindCodes {
		prev, dup := seen[code]
		assert.False(t, dup, "%s and %s share %s", kind, prev, code)
		seen[code] = kind
	}
	assert.Equal(t, "E200", Kind("Other").Code())

	assert.True(t, KindNonListMembership.Materialization())
	assert.True(t, KindUnboundCapture.Materialization())
	assert.False(t, KindUnmappedProperty.Materialization())
	assert.False(t, KindUnresolvableClassConstant.Materialization())
}

func TestSourceKey(t *testing.T) {
	body := expr.Gt(expr.Path("e", "age"), expr.Id("x"))
	base := expr.New("e", "User", body)

	k := SourceKey("User", base)
	assert.Len(t, k, 36)
	assert.Equal(t, k, SourceKey("User", expr.New("e", "User", expr.Gt(expr.Path("e", "age"), expr.Id("x")))))
	assert.Equal(t, SourceKey("User", base.Capture("x", 1)), SourceKey("User", base.Capture("x", 2)))
	assert.NotEqual(t, k, SourceKey("User", base.Capture("x", 1)))

	assert.NotEqual(t, k, SourceKey("Order", base))
	assert.NotEqual(t, k, SourceKey("User", expr.New("u", "User", body)))
	assert.NotEqual(t, k, SourceKey("User", expr.New("e", "User", expr.Gt(expr.Path("e", "age"), expr.Id("y")))))

	ns := *base
	ns.Namespace = "app"
	assert.NotEqual(t, k, SourceKey("User", &ns))

	withImports := *base
	withImports.Imports = map[string]string{"S": "app.Status", "R": "app.Role"}
	reordered := *base
	reordered.Imports = map[string]string{"R": "app.Role", "S": "app.Status"}
	assert.Equal(t, SourceKey("User", &withImports), SourceKey("User", &reordered))
}

func TestSourceKeyFileIdentity(t *testing.T) {
	a := expr.New("e", "User", expr.Path("e", "active"))
	a.Source = expr.Source{File: "preds.cue", Line: 4}
	b := expr.New("e", "User", expr.Not(expr.Path("e", "active")))
	b.Source = expr.Source{File: "preds.cue", Line: 4}
	c := expr.New("e", "User", expr.Path("e", "active"))
	c.Source = expr.Source{File: "preds.cue", Line: 5}

	assert.Equal(t, SourceKey("User", a), SourceKey("User", b))
	assert.NotEqual(t, SourceKey("User", a), SourceKey("User", c))
}

func TestSourceKeyCoversCaptureNames(t *testing.T) {
	p := expr.New("e", "User", expr.Gt(expr.Path("e", "age"), expr.Id("LIMIT")))
	p.Source = expr.Source{File: "preds.cue", Line: 9}

	global := SourceKey("User", p)
	captured := SourceKey("User", p.Capture("LIMIT", 99))
	assert.NotEqual(t, global, captured)
	assert.Equal(t, captured, SourceKey("User", p.Capture("LIMIT", 1)))

	both := p.WithCaptures(expr.Bindings{"a": 1, "b": 2})
	reordered := p.WithCaptures(expr.Bindings{"b": 3, "a": 4})
	assert.Equal(t, SourceKey("User", both), SourceKey("User", reordered))
}
