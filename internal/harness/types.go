package harness

import (
	"github.com/roach88/wherefn/internal/filterir"
	"github.com/roach88/wherefn/internal/materialize"
)

// Result is the outcome of running one scenario.
type Result struct {
	// Pass indicates every expectation matched.
	Pass bool `json:"pass"`

	// Errors contains one message per failed expectation.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Unit is the compiled unit, nil when compilation failed.
	Unit *filterir.CompiledUnit `json:"-"`

	// Filter is the materialized filter, nil on any error.
	Filter *materialize.Filter `json:"-"`

	// Err is the compile or materialization error, if any.
	Err error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
