package materialize

import "github.com/roach88/wherefn/internal/filterir"

// Call is one recorded sink invocation.
type Call struct {
	Method   string // "and", "or" or "nested"
	Property string
	Operator filterir.Operator
	Value    any

	// Alternatives holds one sub-recorder per alternative of a nested
	// group, each fed with Replay.
	Alternatives []*Recorder
}

// Recorder is a Whereable that records every call it receives.
type Recorder struct {
	Calls []Call
}

func (r *Recorder) And(property string, op filterir.Operator, value any) {
	r.Calls = append(r.Calls, Call{Method: "and", Property: property, Operator: op, Value: value})
}

func (r *Recorder) Or(property string, op filterir.Operator, value any) {
	r.Calls = append(r.Calls, Call{Method: "or", Property: property, Operator: op, Value: value})
}

func (r *Recorder) Nested(group *Group) {
	call := Call{Method: "nested"}
	for _, alt := range group.Alternatives {
		sub := &Recorder{}
		Replay(alt, sub)
		call.Alternatives = append(call.Alternatives, sub)
	}
	r.Calls = append(r.Calls, call)
}

// Empty reports whether nothing was recorded.
func (r *Recorder) Empty() bool { return len(r.Calls) == 0 }
