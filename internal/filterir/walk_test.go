package filterir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUnit() *CompiledUnit {
	return &CompiledUnit{
		SourceKey: "k1",
		Entity:    "User",
		Root: And(
			Atom("age", OpGe, Const(18)),
			Or(
				And(Atom("name", OpLike, &LikePattern{Inner: &Captured{Name: "q"}, Mode: LikeStartsWith})),
				And(
					Atom("id", OpIn, &ArrayLiteral{Items: []Value{Const(1), &Captured{Name: "v"}}}),
					Atom("owner.id", OpEq, &PropertyChain{Base: &Captured{Name: "user"}, Field: "id"}),
				),
			),
			Atom("status", OpEq, &ClassConstant{Class: "Status", Name: "ACTIVE"}),
			Atom("tag", OpEq, &ArrayIndex{Base: &Captured{Name: "m"}, Key: &Captured{Name: "q"}}),
		),
	}
}

func TestWalkVisitsAtomicsInOrder(t *testing.T) {
	var props []string
	err := Walk(sampleUnit().Root, func(a *Atomic) error {
		props = append(props, a.Property)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "name", "id", "owner.id", "status", "tag"}, props)
}

func TestWalkStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	var seen int
	err := Walk(sampleUnit().Root, func(a *Atomic) error {
		seen++
		if a.Property == "name" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, seen)
}

func TestAtomics(t *testing.T) {
	assert.Len(t, Atomics(sampleUnit().Root), 6)
	assert.Empty(t, Atomics(AndGroup{}))
}

func TestCapturedNames(t *testing.T) {
	assert.Equal(t, []string{"q", "v", "user", "m"}, CapturedNames(sampleUnit()))
}

func TestWalkValueOrder(t *testing.T) {
	v := &LikePattern{
		Inner: &PropertyChain{Base: &Captured{Name: "u"}, Field: "name"},
		Mode:  LikeContains,
	}
	var kinds []string
	WalkValue(v, func(v Value) {
		switch v.(type) {
		case *LikePattern:
			kinds = append(kinds, "like")
		case *PropertyChain:
			kinds = append(kinds, "property")
		case *Captured:
			kinds = append(kinds, "captured")
		}
	})
	assert.Equal(t, []string{"like", "property", "captured"}, kinds)
}
