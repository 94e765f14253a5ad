package filterir

import (
	"fmt"
	"strings"
)

// CheckError lists every structural problem found in a compiled unit.
type CheckError struct {
	Problems []string
}

func (e *CheckError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid filter tree: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid filter tree: %d problems: %s",
		len(e.Problems), strings.Join(e.Problems, "; "))
}

// Check verifies the structural invariants of a compiled unit:
//  1. The root group and every OR alternative are non-empty
//  2. OR groups are never direct members of OR groups (guaranteed by the
//     types) and hold at least one alternative
//  3. Property paths are non-empty dotted identifiers and never start with
//     the predicate parameter name param (pass "" to skip this rule)
//  4. Operators are sink operators and every value descriptor is complete
//  5. :like comparisons carry a LikePattern, and LikePattern appears nowhere
//     else
//
// Check is a pure function; it returns nil or a *CheckError.
func Check(unit *CompiledUnit, param string) error {
	if unit == nil {
		return &CheckError{Problems: []string{"nil unit"}}
	}
	c := &checker{param: param}
	if len(unit.Root.Filters) == 0 {
		c.addProblem("empty root group")
	}
	c.checkGroup(unit.Root, "root")
	if len(c.problems) == 0 {
		return nil
	}
	return &CheckError{Problems: c.problems}
}

// checker accumulates problems during traversal.
type checker struct {
	param    string
	problems []string
}

func (c *checker) addProblem(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *checker) checkGroup(g AndGroup, at string) {
	for i, f := range g.Filters {
		where := fmt.Sprintf("%s[%d]", at, i)
		switch n := f.(type) {
		case *Atomic:
			c.checkAtomic(n, where)
		case *OrGroup:
			if len(n.Alternatives) == 0 {
				c.addProblem("%s: OR group without alternatives", where)
			}
			for j, alt := range n.Alternatives {
				altAt := fmt.Sprintf("%s.or[%d]", where, j)
				if len(alt.Filters) == 0 {
					c.addProblem("%s: empty alternative", altAt)
				}
				c.checkGroup(alt, altAt)
			}
		case nil:
			c.addProblem("%s: nil filter", where)
		default:
			c.addProblem("%s: unknown filter type %T", where, f)
		}
	}
}

func (c *checker) checkAtomic(a *Atomic, at string) {
	if a.Property == "" {
		c.addProblem("%s: empty property path", at)
	} else {
		segs := strings.Split(a.Property, ".")
		for _, s := range segs {
			if s == "" {
				c.addProblem("%s: empty segment in property path %q", at, a.Property)
				break
			}
		}
		if c.param != "" && segs[0] == c.param {
			c.addProblem("%s: property path %q is rooted at the parameter", at, a.Property)
		}
	}

	if !a.Operator.Valid() {
		c.addProblem("%s: unknown operator %q", at, a.Operator)
	}
	if a.Value == nil {
		c.addProblem("%s: missing value", at)
		return
	}

	_, isLike := a.Value.(*LikePattern)
	if a.Operator == OpLike && !isLike {
		c.addProblem("%s: :like value is not a like pattern", at)
	}
	if a.Operator != OpLike && isLike {
		c.addProblem("%s: like pattern used with operator %q", at, a.Operator)
	}
	c.checkValue(a.Value, at, true)
}

func (c *checker) checkValue(v Value, at string, top bool) {
	switch val := v.(type) {
	case nil:
		c.addProblem("%s: nil value descriptor", at)
	case *Constant:
		if val.Value == nil {
			c.addProblem("%s: constant without value", at)
		}
	case *Captured:
		if val.Name == "" {
			c.addProblem("%s: captured variable without name", at)
		}
	case *PropertyChain:
		if val.Field == "" {
			c.addProblem("%s: property chain without field", at)
		}
		c.checkValue(val.Base, at, false)
	case *GetterChain:
		if val.Method == "" {
			c.addProblem("%s: getter chain without method", at)
		}
		c.checkValue(val.Base, at, false)
	case *ArrayLiteral:
		for _, item := range val.Items {
			c.checkValue(item, at, false)
		}
	case *ArrayIndex:
		c.checkValue(val.Base, at, false)
		c.checkValue(val.Key, at, false)
	case *ClassConstant:
		if val.Class == "" || val.Name == "" {
			c.addProblem("%s: incomplete class constant %s::%s", at, val.Class, val.Name)
		}
	case *LikePattern:
		if !top {
			c.addProblem("%s: nested like pattern", at)
		}
		if !val.Mode.Valid() {
			c.addProblem("%s: unknown like mode %q", at, val.Mode)
		}
		c.checkValue(val.Inner, at, false)
	default:
		c.addProblem("%s: unknown value descriptor %T", at, v)
	}
}
