package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/wherefn/internal/filterir"
)

// Scenario defines one predicate conformance case: a spec directory, a
// predicate declared in it, optional captured values and the expected
// outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description,omitempty"`

	// Specs is the CUE spec directory holding entities, constants and
	// predicates. Relative paths resolve against the scenario file.
	Specs string `yaml:"specs"`

	// Predicate is the ID of the predicate under test.
	Predicate string `yaml:"predicate"`

	// Captures overrides (or adds to) the predicate's default captures.
	Captures map[string]any `yaml:"captures,omitempty"`

	Expect Expectation `yaml:"expect"`
}

// Expectation is what a scenario must produce. Error excludes Filters and
// Where.
type Expectation struct {
	// Filters is the expected materialized filter, clause by clause.
	Filters []ExpectedClause `yaml:"filters,omitempty"`

	// Where is the expected SQL rendering of the filter.
	Where *ExpectedWhere `yaml:"where,omitempty"`

	// Error is the expected error kind (UnmappedProperty) or code (E250).
	Error string `yaml:"error,omitempty"`
}

// ExpectedClause is either a comparison (property, operator, value) or an
// OR group listing its alternatives.
type ExpectedClause struct {
	Property string             `yaml:"property,omitempty"`
	Operator string             `yaml:"operator,omitempty"`
	Value    any                `yaml:"value,omitempty"`
	Or       [][]ExpectedClause `yaml:"or,omitempty"`
}

// ExpectedWhere is the expected output of querysql.WhereSQL.
type ExpectedWhere struct {
	SQL    string `yaml:"sql"`
	Params []any  `yaml:"params,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The specs path is
// resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the specs path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) && basePath != "" {
		scenario.Specs = filepath.Join(basePath, scenario.Specs)
	}
	if info, err := os.Stat(scenario.Specs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("invalid scenario: specs directory not found: %s", scenario.Specs)
	}
	return scenario, nil
}

// ParseScenario decodes and validates a scenario document. Unknown fields
// are rejected. The specs path is not checked.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, in file name
// order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Specs == "" {
		return fmt.Errorf("specs directory is required")
	}
	if s.Predicate == "" {
		return fmt.Errorf("predicate is required")
	}

	e := s.Expect
	switch {
	case e.Error != "" && (len(e.Filters) > 0 || e.Where != nil):
		return fmt.Errorf("expect: error excludes filters and where")
	case e.Error == "" && e.Filters == nil && e.Where == nil:
		return fmt.Errorf("expect: one of filters, where or error is required")
	}
	return validateClauses("expect.filters", e.Filters)
}

func validateClauses(at string, clauses []ExpectedClause) error {
	for i, c := range clauses {
		path := fmt.Sprintf("%s[%d]", at, i)
		if c.Or != nil {
			if c.Property != "" || c.Operator != "" || c.Value != nil {
				return fmt.Errorf("%s: or excludes property, operator and value", path)
			}
			for j, alt := range c.Or {
				if err := validateClauses(fmt.Sprintf("%s.or[%d]", path, j), alt); err != nil {
					return err
				}
			}
			continue
		}
		if c.Property == "" {
			return fmt.Errorf("%s: property is required", path)
		}
		if !filterir.Operator(c.Operator).Valid() {
			return fmt.Errorf("%s: unknown operator %q", path, c.Operator)
		}
	}
	return nil
}
