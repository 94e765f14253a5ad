package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/roach88/wherefn/internal/engine"
	"github.com/roach88/wherefn/internal/source"
)

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Load the scenario's spec directory
// 2. Look up the predicate and merge the scenario captures over its defaults
// 3. Compile and materialize through a fresh engine
// 4. Compare the outcome with the expectation
//
// The returned error reports setup failures only (unreadable specs, unknown
// predicate). A failed expectation is reported through Result.Pass.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	bundle, errs := source.LoadDir(scenario.Specs, source.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load specs %s: %w", scenario.Specs, errors.Join(errs...))
	}

	np, ok := bundle.Predicate(scenario.Predicate)
	if !ok {
		return nil, fmt.Errorf("predicate %q not declared in %s", scenario.Predicate, scenario.Specs)
	}
	pred := np.Predicate
	if len(scenario.Captures) > 0 {
		captures := maps.Clone(pred.Captures)
		if captures == nil {
			captures = make(map[string]any, len(scenario.Captures))
		}
		maps.Copy(captures, scenario.Captures)
		pred = pred.WithCaptures(captures)
	}

	eng := engine.New(bundle.Schema,
		engine.WithConstants(bundle.Constants),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)

	result := NewResult()
	result.Unit, result.Err = eng.Unit(ctx, np.Entity, pred)
	if result.Err == nil {
		result.Filter, result.Err = eng.Compile(ctx, np.Entity, pred)
	}

	for _, msg := range EvaluateExpectation(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

// Outcome pairs a scenario with its result or setup error.
type Outcome struct {
	Scenario *Scenario
	Result   *Result
	Err      error
}

// Passed reports whether the scenario ran and met its expectation.
func (o Outcome) Passed() bool {
	return o.Err == nil && o.Result != nil && o.Result.Pass
}

// RunAll runs every scenario in order. A setup failure in one scenario
// does not stop the others.
func RunAll(ctx context.Context, scenarios []*Scenario) []Outcome {
	out := make([]Outcome, len(scenarios))
	for i, s := range scenarios {
		res, err := RunContext(ctx, s)
		out[i] = Outcome{Scenario: s, Result: res, Err: err}
	}
	return out
}
