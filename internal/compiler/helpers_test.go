package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/wherefn/internal/expr"
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/schema"
	"github.com/roach88/wherefn/internal/source"
)

func testProvider() *schema.Static {
	return schema.MustStatic(
		schema.Entity{Name: "Named", Attributes: []string{"name"}},
		schema.Entity{
			Name:       "User",
			Attributes: []string{"id", "age", "name", "email", "active", "deleted", "score", "status", "address.city"},
			Embedded:   []string{"address"},
			Relations:  []string{"orders"},
			Extends:    []string{"Named"},
		},
		schema.Entity{Name: "Order", Attributes: []string{"total"}},
	)
}

func testConstants(t *testing.T) *schema.Constants {
	t.Helper()
	c := schema.NewConstants()
	require.NoError(t, c.Define("app.Status", "ACTIVE", 1))
	require.NoError(t, c.Define("app.Status", "OPEN", []any{1, 2}))
	require.NoError(t, c.DefineGlobal("MAX_AGE", 120))
	return c
}

// pred parses body (CUE syntax) into a predicate over e: User.
func pred(t *testing.T, body string, captures expr.Bindings) *expr.Predicate {
	t.Helper()
	e, err := source.ParseExpr("", body)
	require.NoError(t, err)
	p := expr.New("e", "User", e)
	p.Source.Text = body
	p.Captures = captures
	return p
}

func compileBody(t *testing.T, body string, captures expr.Bindings) (*filterir.CompiledUnit, error) {
	t.Helper()
	return New(testProvider(), testConstants(t)).Compile("User", pred(t, body, captures))
}

func mustCompile(t *testing.T, body string, captures expr.Bindings) *filterir.CompiledUnit {
	t.Helper()
	unit, err := compileBody(t, body, captures)
	require.NoError(t, err)
	require.NoError(t, filterir.Check(unit, "e"))
	return unit
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	require.Equal(t, kind, ce.Kind, "error: %v", err)
	return ce
}
