package harness

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/wherefn/internal/compiler"
	"github.com/roach88/wherefn/internal/filterir"
)

// Snapshot renders a result for golden comparison:
//
//	scenario: adults
//	unit: {"entity":"User","root":{...},"source_key":"","version":"1"}
//	filter: age > 18
//
// The source key is blanked so snapshots do not depend on where the spec
// directory lives. A failed compilation renders its error kind instead of
// the unit and filter.
func Snapshot(name string, result *Result) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)

	if result.Err != nil {
		var ce *compiler.Error
		if errors.As(result.Err, &ce) {
			fmt.Fprintf(&b, "error: [%s] %s\n", ce.Kind.Code(), ce.Kind)
		} else {
			fmt.Fprintf(&b, "error: %v\n", result.Err)
		}
		return []byte(b.String()), nil
	}

	unit := *result.Unit
	unit.SourceKey = ""
	data, err := filterir.Marshal(&unit)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&b, "unit: %s\n", data)
	fmt.Fprintf(&b, "filter: %s\n", result.Filter)
	return []byte(b.String()), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file for
// scenarioName without re-running it.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
