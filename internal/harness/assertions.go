package harness

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/wherefn/internal/compiler"
	"github.com/roach88/wherefn/internal/ir"
	"github.com/roach88/wherefn/internal/materialize"
	"github.com/roach88/wherefn/internal/querysql"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Path     string // Where in the expectation the mismatch is
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// EvaluateExpectation compares a result with its expectation and returns
// one message per mismatch.
func EvaluateExpectation(result *Result, expect Expectation) []string {
	var errs []error

	if expect.Error != "" {
		if err := assertError(result.Err, expect.Error); err != nil {
			errs = append(errs, err)
		}
		return messages(errs)
	}
	if result.Err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", result.Err)}
	}

	if expect.Filters != nil {
		errs = append(errs, compareClauses("filters", expect.Filters, result.Filter.Clauses)...)
	}
	if expect.Where != nil {
		if err := assertWhere(result.Filter, expect.Where); err != nil {
			errs = append(errs, err)
		}
	}
	return messages(errs)
}

func messages(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

// assertError matches err against a kind name or a code.
func assertError(err error, want string) error {
	if err == nil {
		return &AssertionError{Path: "error", Expected: want, Actual: "no error"}
	}
	var ce *compiler.Error
	if !errors.As(err, &ce) {
		return &AssertionError{Path: "error", Expected: want, Actual: err.Error()}
	}
	if string(ce.Kind) == want || ce.Kind.Code() == want {
		return nil
	}
	return &AssertionError{
		Path:     "error",
		Expected: want,
		Actual:   fmt.Sprintf("%s (%s)", ce.Kind, ce.Kind.Code()),
	}
}

func compareClauses(path string, want []ExpectedClause, got []materialize.Clause) []error {
	if len(want) != len(got) {
		return []error{&AssertionError{
			Path:     path,
			Expected: fmt.Sprintf("%d clauses", len(want)),
			Actual:   fmt.Sprintf("%d clauses (%s)", len(got), (&materialize.Filter{Clauses: got}).String()),
		}}
	}

	var errs []error
	for i, w := range want {
		at := fmt.Sprintf("%s[%d]", path, i)
		g := got[i]
		if w.Or != nil {
			if !g.IsGroup() {
				errs = append(errs, &AssertionError{Path: at, Expected: "OR group", Actual: "comparison on " + g.Property})
				continue
			}
			if len(w.Or) != len(g.Group.Alternatives) {
				errs = append(errs, &AssertionError{
					Path:     at,
					Expected: fmt.Sprintf("%d alternatives", len(w.Or)),
					Actual:   fmt.Sprintf("%d alternatives", len(g.Group.Alternatives)),
				})
				continue
			}
			for j, alt := range w.Or {
				errs = append(errs, compareClauses(fmt.Sprintf("%s.or[%d]", at, j), alt, g.Group.Alternatives[j])...)
			}
			continue
		}

		if g.IsGroup() {
			errs = append(errs, &AssertionError{Path: at, Expected: "comparison on " + w.Property, Actual: "OR group"})
			continue
		}
		if w.Property != g.Property {
			errs = append(errs, &AssertionError{Path: at + ".property", Expected: w.Property, Actual: g.Property})
		}
		if w.Operator != string(g.Operator) {
			errs = append(errs, &AssertionError{Path: at + ".operator", Expected: w.Operator, Actual: string(g.Operator)})
		}
		if !valuesEqual(w.Value, g.Value) {
			errs = append(errs, &AssertionError{
				Path:     at + ".value",
				Expected: fmt.Sprintf("%v", w.Value),
				Actual:   fmt.Sprintf("%v (%T)", g.Value, g.Value),
			})
		}
	}
	return errs
}

func assertWhere(f *materialize.Filter, want *ExpectedWhere) error {
	sql, params, err := querysql.WhereSQL(f, nil)
	if err != nil {
		return &AssertionError{Path: "where", Expected: want.SQL, Actual: "error: " + err.Error()}
	}
	if sql != want.SQL {
		return &AssertionError{Path: "where.sql", Expected: want.SQL, Actual: sql}
	}
	if len(params) == 0 && len(want.Params) == 0 {
		return nil
	}
	if !valuesEqual(want.Params, params) {
		return &AssertionError{
			Path:     "where.params",
			Expected: fmt.Sprintf("%v", want.Params),
			Actual:   fmt.Sprintf("%v", params),
		}
	}
	return nil
}

// valuesEqual compares through canonical JSON so that YAML's int matches
// the materializer's int64, and any slice matches []any.
func valuesEqual(want, got any) bool {
	w, errW := ir.FromGo(want)
	g, errG := ir.FromGo(got)
	if errW != nil || errG != nil {
		return reflect.DeepEqual(want, got)
	}
	wb, errW := ir.MarshalCanonical(w)
	gb, errG := ir.MarshalCanonical(g)
	if errW != nil || errG != nil {
		return false
	}
	return bytes.Equal(wb, gb)
}
