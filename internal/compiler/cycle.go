package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/docrepo/internal/ir"
)

// CycleWarning is a loop of eagerly joined references between entities.
//
// A cycle compiles: joins are one level deep. It is reported because
// materializing the joined documents of a loop into nested values never
// terminates for callers that follow references recursively. Marking one
// reference lazy breaks it.
type CycleWarning struct {
	Path    []string `json:"path"` // ["Item", "Owner", "Item"]
	Message string   `json:"message"`
}

// AnalyzeCycles finds strongly connected components of the eager
// reference graph. Lazy references and references resolved by a lookup
// are not edges.
func AnalyzeCycles(entities map[string]*ir.EntityMeta) []CycleWarning {
	graph := buildReferenceGraph(entities)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Path[0] < warnings[j].Path[0] })
	return warnings
}

// referenceGraph maps entity name to the entities it joins eagerly.
type referenceGraph map[string][]string

func buildReferenceGraph(entities map[string]*ir.EntityMeta) referenceGraph {
	graph := make(referenceGraph, len(entities))
	for name, meta := range entities {
		edges := []string{}
		for _, ref := range meta.References {
			if ref.Lazy || ref.Lookup != "" {
				continue
			}
			if _, ok := entities[ref.Entity]; ok {
				edges = append(edges, ref.Entity)
			}
		}
		sort.Strings(edges)
		graph[name] = edges
	}
	return graph
}

func (g referenceGraph) nodes() []string {
	out := make([]string, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func hasSelfLoop(node string, graph referenceGraph) bool {
	for _, n := range graph[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of graph. Members
// of each component are sorted.
func tarjanSCC(graph referenceGraph) [][]string {
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
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range graph.nodes() {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleWarning(scc []string, graph referenceGraph) CycleWarning {
	path := []string{scc[0], scc[0]}
	if len(scc) > 1 {
		path = cyclePath(scc, graph)
	}
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("eager reference cycle: %s", strings.Join(path, " -> ")),
	}
}

// cyclePath walks from the first member along edges inside the component
// until it returns to the start.
func cyclePath(scc []string, graph referenceGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	for current := start; ; {
		next := ""
		for _, n := range graph[current] {
			if members[n] && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
