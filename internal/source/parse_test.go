package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wherefn/internal/expr"
)

func TestParseExprRendering(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`e.age > 18`, `e.age > 18`},
		{`e.age >= 18 && e.name == "x"`, `(e.age >= 18) && (e.name == "x")`},
		{`e.age > 10 || e.age < 2`, `(e.age > 10) || (e.age < 2)`},
		{`contains(e.name, "foo")`, `contains(e.name, "foo")`},
		{`elementOf(e.id, [1, 2, v])`, `elementOf(e.id, [1, 2, v])`},
		{`!e.active`, `!e.active`},
		{`e.getAge() != -1`, `e.getAge() != -1`},
		{`e.address.city == m["k"]`, `e.address.city == m["k"]`},
		{`(e.a || e.b) && e.c`, `(e.a || e.b) && e.c`},
		{`e.x == null`, `e.x == null`},
		{`e.x == true`, `e.x == true`},
		{`e.x == 1.5`, `e.x == 1.5`},
		{`e.x == 0x10`, `e.x == 16`},
		{`e.x == 1_000`, `e.x == 1000`},
		{`e.x == "a\nb"`, `e.x == "a\nb"`},
		{`e.x == user.profile.getId()`, `e.x == user.profile.getId()`},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := ParseExpr("test.cue", tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.String(e))
		})
	}
}

func TestParseExprNodes(t *testing.T) {
	e, err := ParseExpr("", `e.age > 18`)
	require.NoError(t, err)

	bin, ok := e.(*expr.Binary)
	require.True(t, ok)
	assert.Equal(t, ">", bin.Op)

	sel, ok := bin.X.(*expr.Selector)
	require.True(t, ok)
	assert.Equal(t, "age", sel.Name)
	assert.Equal(t, &expr.Ident{Name: "e", At: expr.Pos{Line: 1, Column: 1}}, sel.X)

	lit, ok := bin.Y.(*expr.Literal)
	require.True(t, ok)
	assert.Equal(t, expr.LitInt, lit.Kind)
	assert.Equal(t, int64(18), lit.Value)
	assert.Equal(t, expr.Pos{Line: 1, Column: 9}, lit.At)
}

func TestParseExprLiteralKinds(t *testing.T) {
	tests := []struct {
		src   string
		kind  expr.LitKind
		value any
	}{
		{`null`, expr.LitNull, nil},
		{`true`, expr.LitBool, true},
		{`false`, expr.LitBool, false},
		{`42`, expr.LitInt, int64(42)},
		{`2.5`, expr.LitFloat, 2.5},
		{`"s"`, expr.LitString, "s"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := ParseExpr("", tt.src)
			require.NoError(t, err)
			lit, ok := e.(*expr.Literal)
			require.True(t, ok, "got %s", expr.Kind(e))
			assert.Equal(t, tt.kind, lit.Kind)
			assert.Equal(t, tt.value, lit.Value)
		})
	}
}

func TestParseExprCallShapes(t *testing.T) {
	e, err := ParseExpr("", `e.getAge()`)
	require.NoError(t, err)
	call, ok := e.(*expr.Call)
	require.True(t, ok)
	assert.Empty(t, call.Args)
	assert.Equal(t, "method call", expr.Kind(call))

	e, err = ParseExpr("", `startsWith(e.name, prefix)`)
	require.NoError(t, err)
	call, ok = e.(*expr.Call)
	require.True(t, ok)
	assert.Equal(t, "function call", expr.Kind(call))
	assert.Len(t, call.Args, 2)
}

func TestParseExprListSpread(t *testing.T) {
	e, err := ParseExpr("", `elementOf(e.id, [...ids])`)
	require.NoError(t, err)
	call := e.(*expr.Call)
	list, ok := call.Args[1].(*expr.List)
	require.True(t, ok)
	require.Len(t, list.Elems, 1)
	spread, ok := list.Elems[0].(*expr.Spread)
	require.True(t, ok)
	assert.Equal(t, "ids", spread.X.(*expr.Ident).Name)
}

func TestParseExprErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `e.age >`, ""},
		{"struct literal", `e.x == {a: 1}`, "struct literals"},
		{"interpolation", `e.x == "a\(b)"`, "interpolation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpr("preds.cue", tt.src)
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "preds.cue", pe.File)
			assert.True(t, pe.Pos.IsValid(), "error should carry a position")
			assert.Contains(t, err.Error(), "preds.cue:1:")
			if tt.want != "" {
				assert.Contains(t, pe.Message, tt.want)
			}
		})
	}
}

func TestParseErrorFormat(t *testing.T) {
	err := &ParseError{Message: "bad"}
	assert.Equal(t, "<inline>: bad", err.Error())

	err = &ParseError{File: "a.cue", Pos: expr.Pos{Line: 2, Column: 3}, Message: "bad"}
	assert.Equal(t, "a.cue:2:3: bad", err.Error())
}

func TestMustParseExprPanics(t *testing.T) {
	assert.Panics(t, func() { MustParseExpr(`e.age >`) })
	assert.NotPanics(t, func() { MustParseExpr(`e.age > 1`) })
}
