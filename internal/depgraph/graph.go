// Package depgraph implements the in-memory dependency graph (C5): forward
// and reverse adjacency maps over "imports" relations, cycle detection,
// transitive closure and fan metrics.
package depgraph

import (
	"sort"

	"github.com/dominikbraun/graph"
)

// Edge is the minimal shape the graph is built from: one "imports" relation.
type Edge struct {
	SrcFilePath string
	DstFilePath string
}

// FanMetrics is the result of getFanMetrics.
type FanMetrics struct {
	FilePath string
	FanIn    int
	FanOut   int
}

// Graph is the per-project dependency graph of spec.md §4.5. It wraps a
// dominikbraun/graph directed graph (grounded on the teacher's
// internal/graph/searcher.go) as the sole substrate: adj/radj are lookup
// caches derived once from the graph's own AdjacencyMap/PredecessorMap,
// and HasCycle defers to the library's TopologicalSort. Only cycle-path
// enumeration (getCyclePaths), which the library has no primitive for,
// walks adj by hand.
type Graph struct {
	g    graph.Graph[string, string]
	adj  map[string]map[string]struct{}
	radj map[string]map[string]struct{}
}

// Build constructs a Graph from the full "imports" edge list of a project.
// Rebuilding is cheap and correct; a Graph is not restartable (spec.md
// §4.5): callers rebuild via Build on every onIndexed invalidation.
func Build(edges []Edge) *Graph {
	g := graph.New(graph.StringHash, graph.Directed())

	seen := make(map[string]struct{})
	ensureVertex := func(f string) {
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		_ = g.AddVertex(f)
	}

	for _, e := range edges {
		ensureVertex(e.SrcFilePath)
		ensureVertex(e.DstFilePath)
		_ = g.AddEdge(e.SrcFilePath, e.DstFilePath)
	}

	adjMap, _ := g.AdjacencyMap()
	adj := make(map[string]map[string]struct{}, len(adjMap))
	for src, out := range adjMap {
		m := make(map[string]struct{}, len(out))
		for dst := range out {
			m[dst] = struct{}{}
		}
		adj[src] = m
	}

	predMap, _ := g.PredecessorMap()
	radj := make(map[string]map[string]struct{}, len(predMap))
	for dst, in := range predMap {
		m := make(map[string]struct{}, len(in))
		for src := range in {
			m[src] = struct{}{}
		}
		radj[dst] = m
	}

	return &Graph{g: g, adj: adj, radj: radj}
}

// GetDependencies returns the files f directly imports; unknown f -> [].
func (g *Graph) GetDependencies(f string) []string {
	return sortedKeys(g.adj[f])
}

// GetDependents returns the files that directly import f; unknown f -> [].
func (g *Graph) GetDependents(f string) []string {
	return sortedKeys(g.radj[f])
}

// GetTransitiveDependents is a BFS over radj from f, excluding f itself.
func (g *Graph) GetTransitiveDependents(f string) []string {
	visited := map[string]struct{}{f: {}}
	queue := []string{f}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range sortedKeys(g.radj[cur]) {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	sort.Strings(out)
	return out
}

// GetAffectedByChange returns the deduplicated union of transitive
// dependents of every input file. An empty input returns [] without any
// traversal, matching spec.md §9's stated default for the empty-input case.
func (g *Graph) GetAffectedByChange(files []string) []string {
	if len(files) == 0 {
		return []string{}
	}
	union := make(map[string]struct{})
	for _, f := range files {
		for _, dep := range g.GetTransitiveDependents(f) {
			union[dep] = struct{}{}
		}
	}
	return sortedSetKeys(union)
}

// HasCycle reports whether the graph contains any cycle, via the library's
// TopologicalSort: a DAG sorts cleanly, a cyclic graph returns an error.
func (g *Graph) HasCycle() bool {
	_, err := graph.TopologicalSort(g.g)
	return err != nil
}

// GetCyclePaths enumerates up to maxCycles simple cycles as path arrays,
// using a recursive DFS with a path stack so each closed back-edge yields
// the cycle slice from its start node onward.
func (g *Graph) GetCyclePaths(maxCycles int) [][]string {
	if maxCycles <= 0 {
		maxCycles = 10
	}
	var cycles [][]string
	visited := make(map[string]bool)

	var path []string
	onPath := make(map[string]int) // node -> index in path

	var dfs func(node string)
	dfs = func(node string) {
		if len(cycles) >= maxCycles {
			return
		}
		path = append(path, node)
		onPath[node] = len(path) - 1

		for _, next := range sortedKeys(g.adj[node]) {
			if len(cycles) >= maxCycles {
				break
			}
			if idx, inPath := onPath[next]; inPath {
				cycle := append([]string{}, path[idx:]...)
				cycle = append(cycle, next)
				cycles = append(cycles, cycle)
				continue
			}
			if !visited[next] {
				dfs(next)
			}
		}

		delete(onPath, node)
		path = path[:len(path)-1]
		visited[node] = true
	}

	for _, v := range sortedKeys(vertexSet(g.adj)) {
		if len(cycles) >= maxCycles {
			break
		}
		if !visited[v] {
			dfs(v)
		}
	}
	return cycles
}

// GetFanMetrics returns fan-in/fan-out counts for f.
func (g *Graph) GetFanMetrics(f string) FanMetrics {
	return FanMetrics{
		FilePath: f,
		FanIn:    len(g.radj[f]),
		FanOut:   len(g.adj[f]),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSetKeys(m map[string]struct{}) []string {
	return sortedKeys(m)
}

func vertexSet(adj map[string]map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(adj))
	for k := range adj {
		out[k] = struct{}{}
	}
	return out
}
