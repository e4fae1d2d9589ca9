package dependencies

import (
	"strings"
)

// CycleSeverity ranks how disruptive a dependency cycle is
type CycleSeverity string

const (
	SeverityLow    CycleSeverity = "low"
	SeverityMedium CycleSeverity = "medium"
	SeverityHigh   CycleSeverity = "high"
)

// MediumCycleLength is the shortest single-repository cycle rated medium
const MediumCycleLength = 6

// Cycle is a closed chain of dependencies. Nodes starts at the smallest id.
type Cycle struct {
	Nodes        []string      `json:"nodes"`
	Length       int           `json:"length"`
	Repositories []string      `json:"repositories"`
	Severity     CycleSeverity `json:"severity"`
}

// CrossRepoLink aggregates every edge from one repository to another
type CrossRepoLink struct {
	SourceRepo   string `json:"sourceRepo"`
	TargetRepo   string `json:"targetRepo"`
	Dependencies []Edge `json:"dependencies"`
}

// RepositoryHealth summarizes the dependency depth of a repository's nodes
type RepositoryHealth struct {
	MaxDependencyDepth     int     `json:"maxDependencyDepth"`
	AverageDependencyDepth float64 `json:"averageDependencyDepth"`
}

// RepositoryMetrics describes the outgoing dependencies of one repository
type RepositoryMetrics struct {
	Repository            string           `json:"repository"`
	DependencyCount       int              `json:"dependencyCount"`
	CrossRepoDependencies int              `json:"crossRepoDependencies"`
	Health                RepositoryHealth `json:"health"`
}

// GraphAnalyzer runs read-only analyses over a built graph.
// It never mutates the graph and is safe for concurrent use.
type GraphAnalyzer struct {
	graph *DependencyGraph
}

// NewGraphAnalyzer wraps graph
func NewGraphAnalyzer(graph *DependencyGraph) *GraphAnalyzer {
	return &GraphAnalyzer{graph: graph}
}

// Graph returns the analyzed graph
func (a *GraphAnalyzer) Graph() *DependencyGraph {
	return a.graph
}

// DetectCycles finds dependency cycles. A depth-first search runs from every
// node in id order; reaching a node already on the active path yields the
// sub-path as a cycle. Cycles are rotated to their smallest id and reported once.
func (a *GraphAnalyzer) DetectCycles() []Cycle {
	cycles := make([]Cycle, 0)
	seen := make(map[string]struct{})

	for _, start := range a.graph.sortedNodeIDs() {
		visited := make(map[string]bool)
		onPath := make(map[string]int)
		path := make([]string, 0)

		var dfs func(id string)
		dfs = func(id string) {
			visited[id] = true
			onPath[id] = len(path)
			path = append(path, id)

			for _, dep := range a.graph.Nodes[id].Dependencies {
				if idx, ok := onPath[dep]; ok {
					canonical := rotateToSmallest(path[idx:])
					key := strings.Join(canonical, "\x00")
					if _, dup := seen[key]; !dup {
						seen[key] = struct{}{}
						cycles = append(cycles, a.newCycle(canonical))
					}
					continue
				}
				if !visited[dep] {
					dfs(dep)
				}
			}

			path = path[:len(path)-1]
			delete(onPath, id)
		}
		dfs(start)
	}

	return cycles
}

func (a *GraphAnalyzer) newCycle(nodes []string) Cycle {
	repos := make(map[string]struct{})
	for _, id := range nodes {
		repos[a.graph.Nodes[id].Repository] = struct{}{}
	}

	return Cycle{
		Nodes:        nodes,
		Length:       len(nodes),
		Repositories: sortedKeys(repos),
		Severity:     cycleSeverity(len(nodes), len(repos)),
	}
}

func cycleSeverity(length, repositories int) CycleSeverity {
	switch {
	case repositories > 1:
		return SeverityHigh
	case length >= MediumCycleLength:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// rotateToSmallest returns a copy of cycle starting at its smallest id
func rotateToSmallest(cycle []string) []string {
	first := 0
	for i, id := range cycle {
		if id < cycle[first] {
			first = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[first:]...)
	return append(out, cycle[:first]...)
}

// FindCrossRepoLinks groups edges between different repositories by
// (source, target) repository pair, in order of first appearance.
func (a *GraphAnalyzer) FindCrossRepoLinks() []CrossRepoLink {
	type pair struct{ src, dst string }

	links := make([]CrossRepoLink, 0)
	index := make(map[pair]int)
	for _, e := range a.graph.Edges {
		src := a.graph.Nodes[e.From].Repository
		dst := a.graph.Nodes[e.To].Repository
		if src == dst {
			continue
		}

		key := pair{src, dst}
		i, ok := index[key]
		if !ok {
			i = len(links)
			index[key] = i
			links = append(links, CrossRepoLink{SourceRepo: src, TargetRepo: dst, Dependencies: make([]Edge, 0, 1)})
		}
		links[i].Dependencies = append(links[i].Dependencies, e)
	}
	return links
}

// CalculateRepositoryMetrics returns one entry per repository, sorted by name
func (a *GraphAnalyzer) CalculateRepositoryMetrics() []RepositoryMetrics {
	byRepo := make(map[string]*RepositoryMetrics)
	nodeCount := make(map[string]int)
	depthSum := make(map[string]int)

	walker := newDepthWalker(a.graph)
	for _, id := range a.graph.sortedNodeIDs() {
		node := a.graph.Nodes[id]
		m, ok := byRepo[node.Repository]
		if !ok {
			m = &RepositoryMetrics{Repository: node.Repository}
			byRepo[node.Repository] = m
		}

		m.DependencyCount += len(node.Dependencies)
		for _, dep := range node.Dependencies {
			if a.graph.Nodes[dep].Repository != node.Repository {
				m.CrossRepoDependencies++
			}
		}

		depth := walker.longest(id)
		if depth > m.Health.MaxDependencyDepth {
			m.Health.MaxDependencyDepth = depth
		}
		depthSum[node.Repository] += depth
		nodeCount[node.Repository]++
	}

	repos := a.graph.Repositories()
	out := make([]RepositoryMetrics, 0, len(repos))
	for _, repo := range repos {
		m := byRepo[repo]
		m.Health.AverageDependencyDepth = float64(depthSum[repo]) / float64(nodeCount[repo])
		out = append(out, *m)
	}
	return out
}

// depthWalker computes the longest simple chain of dependency edges leaving a
// node. Only nodes on the active path are excluded, so a cycle caps a branch
// where it re-enters the path; the re-entering edge is counted.
type depthWalker struct {
	graph  *DependencyGraph
	cyclic map[string]bool
	memo   map[string]int
	onPath map[string]bool
	// limit is the number of nodes reachable from the walk's start
	limit   int
	pathLen int
}

func newDepthWalker(graph *DependencyGraph) *depthWalker {
	return &depthWalker{
		graph:  graph,
		cyclic: cyclicNodes(graph, func(n *Node) []string { return n.Dependencies }),
		memo:   make(map[string]int),
		onPath: make(map[string]bool),
	}
}

// longest returns the depth of the chains leaving id
func (w *depthWalker) longest(id string) int {
	if d, ok := w.memo[id]; ok {
		return d
	}
	w.limit = len(reachable(w.graph, id, func(n *Node) []string { return n.Dependencies }))
	return w.depth(id)
}

func (w *depthWalker) depth(id string) int {
	if d, ok := w.memo[id]; ok {
		return d
	}

	w.onPath[id] = true
	w.pathLen++
	// Every node off the path plus one edge back onto it.
	bound := w.limit - w.pathLen + 1
	best := 0
	for _, dep := range w.graph.Nodes[id].Dependencies {
		d := 1
		if !w.onPath[dep] {
			d += w.depth(dep)
		}
		best = max(best, d)
		if best >= bound {
			break
		}
	}
	delete(w.onPath, id)
	w.pathLen--

	// Outside a cycle no path node is reachable, so the result does not
	// depend on how the node was reached.
	if !w.cyclic[id] {
		w.memo[id] = best
	}
	return best
}

// reachable returns start and every node reachable from it over next
func reachable(graph *DependencyGraph, start string, next func(*Node) []string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, nb := range next(graph.Nodes[current]) {
			if !seen[nb] {
				seen[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	return seen
}

// cyclicNodes marks every node in a strongly connected component with more
// than one node, using Tarjan's algorithm over the given adjacency.
func cyclicNodes(graph *DependencyGraph, next func(*Node) []string) map[string]bool {
	var (
		index   = 0
		indices = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   = make([]string, 0)
		cyclic  = make(map[string]bool)
	)

	var connect func(id string)
	connect = func(id string) {
		indices[id] = index
		low[id] = index
		index++
		stack = append(stack, id)
		onStack[id] = true

		for _, nb := range next(graph.Nodes[id]) {
			if _, seen := indices[nb]; !seen {
				connect(nb)
				low[id] = min(low[id], low[nb])
			} else if onStack[nb] {
				low[id] = min(low[id], indices[nb])
			}
		}

		if low[id] != indices[id] {
			return
		}
		component := make([]string, 0, 1)
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == id {
				break
			}
		}
		if len(component) > 1 {
			for _, c := range component {
				cyclic[c] = true
			}
		}
	}

	for _, id := range graph.sortedNodeIDs() {
		if _, seen := indices[id]; !seen {
			connect(id)
		}
	}
	return cyclic
}
