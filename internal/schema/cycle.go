package schema

import (
	"fmt"
	"slices"
	"strings"
)

// CycleWarning reports entities that extend each other in a loop.
//
// Cycles are warnings, not errors: Static cuts them when walking
// supertypes, so every lookup still terminates. They are almost always
// a declaration mistake, though, and `wherefn validate` surfaces them.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeInheritance detects cycles in the extends graph of the given
// entity declarations.
//
// The algorithm:
//  1. Build entity -> supertype edges from extends lists
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-extension as a warning
//
// An acyclic hierarchy returns an empty list. Warnings are ordered by
// their first entity name.
func AnalyzeInheritance(entities []Entity) []CycleWarning {
	if len(entities) == 0 {
		return []CycleWarning{}
	}

	graph := buildInheritanceGraph(entities)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			slices.Sort(scc)
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// Cycles runs AnalyzeInheritance over the provider's declarations.
func (s *Static) Cycles() []CycleWarning {
	s.mu.RLock()
	entities := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, *e)
	}
	s.mu.RUnlock()
	return AnalyzeInheritance(entities)
}

// inheritanceGraph maps entity name -> names it extends.
type inheritanceGraph map[string][]string

func buildInheritanceGraph(entities []Entity) inheritanceGraph {
	graph := make(inheritanceGraph)
	for _, e := range entities {
		if graph[e.Name] == nil {
			graph[e.Name] = []string{}
		}
		graph[e.Name] = append(graph[e.Name], e.Extends...)
	}
	return graph
}

func hasSelfLoop(node string, graph inheritanceGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph inheritanceGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into one SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph inheritanceGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("entity %s extends itself", name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("inheritance cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows extends edges inside the SCC from its
// first member until it returns to the start.
func reconstructCyclePath(scc []string, graph inheritanceGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
