package dependencies

import (
	"fmt"
	"math"
)

// Impact score weights. A direct dependent counts twice as much as a
// transitive one.
const (
	DirectImpactWeight     = 2
	TransitiveImpactWeight = 1
)

// ImpactAnalysis describes what a change to one node would affect
type ImpactAnalysis struct {
	NodeID               string   `json:"nodeId"`
	DirectImpact         []string `json:"directImpact"`
	TransitiveImpact     []string `json:"transitiveImpact"`
	ImpactScore          int      `json:"impactScore"`
	CriticalPath         []string `json:"criticalPath"`
	AffectedRepositories []string `json:"affectedRepositories"`
}

// AnalyzeImpact reports the dependents of nodeID. It returns false when the
// node is not in the graph.
func (a *GraphAnalyzer) AnalyzeImpact(nodeID string) (*ImpactAnalysis, bool) {
	node, ok := a.graph.Nodes[nodeID]
	if !ok {
		return nil, false
	}

	direct := append([]string(nil), node.Dependents...)
	seen := map[string]bool{nodeID: true}
	for _, id := range direct {
		seen[id] = true
	}

	transitive := make([]string, 0)
	queue := append([]string(nil), direct...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dependent := range a.graph.Nodes[current].Dependents {
			if seen[dependent] {
				continue
			}
			seen[dependent] = true
			transitive = append(transitive, dependent)
			queue = append(queue, dependent)
		}
	}

	repos := make(map[string]struct{})
	for _, id := range direct {
		repos[a.graph.Nodes[id].Repository] = struct{}{}
	}
	for _, id := range transitive {
		repos[a.graph.Nodes[id].Repository] = struct{}{}
	}

	if direct == nil {
		direct = make([]string, 0)
	}
	return &ImpactAnalysis{
		NodeID:               nodeID,
		DirectImpact:         direct,
		TransitiveImpact:     transitive,
		ImpactScore:          impactScore(len(direct), len(transitive), len(a.graph.Nodes)),
		CriticalPath:         a.criticalPath(nodeID),
		AffectedRepositories: sortedKeys(repos),
	}, true
}

func impactScore(direct, transitive, total int) int {
	if total == 0 {
		return 0
	}
	weighted := float64(DirectImpactWeight*direct + TransitiveImpactWeight*transitive)
	score := int(math.Round(100 * weighted / float64(DirectImpactWeight+TransitiveImpactWeight) / float64(total)))
	return max(0, min(100, score))
}

// criticalPath returns the longest simple chain of dependents starting at
// nodeID that crosses at least one repository boundary, or an empty slice.
func (a *GraphAnalyzer) criticalPath(nodeID string) []string {
	dependents := func(n *Node) []string { return n.Dependents }
	affected := reachable(a.graph, nodeID, dependents)

	repo := a.graph.Nodes[nodeID].Repository
	crosses := false
	for id := range affected {
		if a.graph.Nodes[id].Repository != repo {
			crosses = true
			break
		}
	}
	if !crosses {
		return make([]string, 0)
	}

	w := &chainWalker{
		graph:  a.graph,
		cyclic: cyclicNodes(a.graph, dependents),
		memo:   make(map[string]chains),
		onPath: make(map[string]bool),
		limit:  len(affected),
	}
	best := w.walk(nodeID).crossing
	if best == nil {
		return make([]string, 0)
	}
	return best
}

// chains holds the longest chain from a node and the longest one that
// changes repository at least once. crossing is nil when none exists.
type chains struct {
	any      []string
	crossing []string
}

type chainWalker struct {
	graph  *DependencyGraph
	cyclic map[string]bool
	memo   map[string]chains
	onPath map[string]bool
	// limit is the number of nodes reachable from the start. A crossing
	// chain that long cannot be beaten and ends the walk.
	limit     int
	pathLen   int
	crossings int
	done      bool
}

func (w *chainWalker) walk(id string) chains {
	if c, ok := w.memo[id]; ok {
		return c
	}

	node := w.graph.Nodes[id]
	best := chains{any: []string{id}}

	w.onPath[id] = true
	w.pathLen++
	bound := w.limit - w.pathLen + 1
	for _, dependent := range node.Dependents {
		if w.onPath[dependent] {
			continue
		}
		cross := w.graph.Nodes[dependent].Repository != node.Repository
		if cross {
			w.crossings++
		}
		sub := w.walk(dependent)
		if cross {
			w.crossings--
		}

		if len(sub.any)+1 > len(best.any) {
			best.any = prepend(id, sub.any)
		}

		var crossing []string
		if cross {
			crossing = sub.any
		}
		if sub.crossing != nil && len(sub.crossing) > len(crossing) {
			crossing = sub.crossing
		}
		if crossing != nil && len(crossing)+1 > len(best.crossing) {
			best.crossing = prepend(id, crossing)
		}

		// The path from the start plus this node's chain covers every
		// reachable node and changes repository somewhere.
		if len(best.crossing) == bound || (w.crossings > 0 && len(best.any) == bound) {
			w.done = true
		}
		if w.done {
			break
		}
	}
	delete(w.onPath, id)
	w.pathLen--

	if !w.cyclic[id] && !w.done {
		w.memo[id] = best
	}
	return best
}

func prepend(id string, rest []string) []string {
	out := make([]string, 0, len(rest)+1)
	out = append(out, id)
	return append(out, rest...)
}

// FindShortestPath returns the fewest-hop chain of dependencies from one node
// to another, including both ends. It returns false when either node is
// unknown or to is unreachable.
func (a *GraphAnalyzer) FindShortestPath(from, to string) ([]string, bool) {
	if _, ok := a.graph.Nodes[from]; !ok {
		return nil, false
	}
	if _, ok := a.graph.Nodes[to]; !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range a.graph.Nodes[current].Dependencies {
			if _, seen := parent[dep]; seen {
				continue
			}
			parent[dep] = current
			if dep == to {
				return tracePath(parent, from, to), true
			}
			queue = append(queue, dep)
		}
	}
	return nil, false
}

func tracePath(parent map[string]string, from, to string) []string {
	path := []string{to}
	for id := to; id != from; {
		id = parent[id]
		path = append(path, id)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// GetTransitiveDependencies returns every node reachable from nodeID by
// following dependencies, in breadth-first order
func (a *GraphAnalyzer) GetTransitiveDependencies(nodeID string) ([]string, bool) {
	if _, ok := a.graph.Nodes[nodeID]; !ok {
		return nil, false
	}

	seen := map[string]bool{nodeID: true}
	out := make([]string, 0)
	queue := []string{nodeID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range a.graph.Nodes[current].Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out, true
}

// TopologicalOrder lists every node after all of its dependencies.
// It fails when the graph has a cycle.
func (a *GraphAnalyzer) TopologicalOrder() ([]string, error) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	result := make([]string, 0, len(a.graph.Nodes))

	var visit func(string) error
	visit = func(id string) error {
		if recStack[id] {
			return fmt.Errorf("circular dependency detected at %s", id)
		}
		if visited[id] {
			return nil
		}

		visited[id] = true
		recStack[id] = true
		for _, dep := range a.graph.Nodes[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		recStack[id] = false

		result = append(result, id)
		return nil
	}

	for _, id := range a.graph.sortedNodeIDs() {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return result, nil
}
