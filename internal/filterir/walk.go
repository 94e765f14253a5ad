package filterir

// Walk calls fn for every atomic filter reachable from g, including those
// inside nested OR alternatives, in IR order. It stops at the first error
// returned by fn and returns it.
func Walk(g AndGroup, fn func(*Atomic) error) error {
	for _, f := range g.Filters {
		switch n := f.(type) {
		case *Atomic:
			if err := fn(n); err != nil {
				return err
			}
		case *OrGroup:
			for _, alt := range n.Alternatives {
				if err := Walk(alt, fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Atomics returns every atomic filter reachable from g in IR order.
func Atomics(g AndGroup) []*Atomic {
	var out []*Atomic
	_ = Walk(g, func(a *Atomic) error {
		out = append(out, a)
		return nil
	})
	return out
}

// WalkValue calls fn for v and every descriptor nested inside it,
// parents before children.
func WalkValue(v Value, fn func(Value)) {
	if v == nil {
		return
	}
	fn(v)
	switch val := v.(type) {
	case *PropertyChain:
		WalkValue(val.Base, fn)
	case *GetterChain:
		WalkValue(val.Base, fn)
	case *ArrayLiteral:
		for _, item := range val.Items {
			WalkValue(item, fn)
		}
	case *ArrayIndex:
		WalkValue(val.Base, fn)
		WalkValue(val.Key, fn)
	case *LikePattern:
		WalkValue(val.Inner, fn)
	}
}

// CapturedNames returns the distinct captured variable names the unit
// reads, in first-use order.
func CapturedNames(unit *CompiledUnit) []string {
	seen := map[string]bool{}
	var names []string
	_ = Walk(unit.Root, func(a *Atomic) error {
		WalkValue(a.Value, func(v Value) {
			if c, ok := v.(*Captured); ok && !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		})
		return nil
	})
	return names
}
