package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeInheritance_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeInheritance(nil))
}

func TestAnalyzeInheritance_DAG(t *testing.T) {
	warnings := AnalyzeInheritance([]Entity{
		{Name: "Admin", Extends: []string{"User"}},
		{Name: "User", Extends: []string{"Named", "Auditable"}},
		{Name: "Named"},
	})
	assert.Empty(t, warnings, "acyclic hierarchy should produce no warnings")
}

func TestAnalyzeInheritance_SelfExtension(t *testing.T) {
	warnings := AnalyzeInheritance([]Entity{{Name: "Node", Extends: []string{"Node"}}})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Node", "Node"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "extends itself")
	assert.Equal(t, "warning", warnings[0].Level)
}

func TestAnalyzeInheritance_TwoNodeCycle(t *testing.T) {
	warnings := AnalyzeInheritance([]Entity{
		{Name: "A", Extends: []string{"B"}},
		{Name: "B", Extends: []string{"A"}},
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "A"}, warnings[0].Path)
	assert.Equal(t, "inheritance cycle: A -> B -> A", warnings[0].Message)
}

func TestAnalyzeInheritance_ThreeNodeCycleWithTail(t *testing.T) {
	warnings := AnalyzeInheritance([]Entity{
		{Name: "Leaf", Extends: []string{"A"}},
		{Name: "A", Extends: []string{"B"}},
		{Name: "B", Extends: []string{"C"}},
		{Name: "C", Extends: []string{"A"}},
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, warnings[0].Path)
}

func TestAnalyzeInheritance_IndependentCycles(t *testing.T) {
	warnings := AnalyzeInheritance([]Entity{
		{Name: "X", Extends: []string{"Y"}},
		{Name: "Y", Extends: []string{"X"}},
		{Name: "P", Extends: []string{"P"}},
	})
	require.Len(t, warnings, 2)
	assert.Equal(t, "P", warnings[0].Path[0])
	assert.Equal(t, "X", warnings[1].Path[0])
}

func TestStaticCycles(t *testing.T) {
	s := MustStatic(
		Entity{Name: "A", Extends: []string{"B"}},
		Entity{Name: "B", Extends: []string{"A"}},
		Entity{Name: "C"},
	)
	require.Len(t, s.Cycles(), 1)
}

func TestTarjanSCC_DAG(t *testing.T) {
	sccs := tarjanSCC(inheritanceGraph{"a": {"b"}, "b": {"c"}, "c": {}})
	assert.Len(t, sccs, 3)
	for _, scc := range sccs {
		assert.Len(t, scc, 1)
	}
}

func TestReconstructCyclePath_Empty(t *testing.T) {
	assert.Equal(t, []string{}, reconstructCyclePath(nil, inheritanceGraph{}))
}
