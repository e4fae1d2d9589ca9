package dependencies

import (
	"fmt"
	"sort"
	"time"
)

// EdgeType classifies how one node depends on another
type EdgeType string

const (
	EdgeDirect     EdgeType = "direct"
	EdgeDev        EdgeType = "dev"
	EdgePeer       EdgeType = "peer"
	EdgeTransitive EdgeType = "transitive"
)

// Node is a single package version as declared by one repository
type Node struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Repository     string   `json:"repository"`
	PackageManager string   `json:"packageManager,omitempty"`
	Dependencies   []string `json:"dependencies"`
	Dependents     []string `json:"dependents"`
}

// Edge points from the dependent to the dependency
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}

// GraphMetadata describes a built graph
type GraphMetadata struct {
	WorkspaceID    string    `json:"workspaceId"`
	GeneratedAt    time.Time `json:"generatedAt"`
	TotalNodes     int       `json:"totalNodes"`
	TotalEdges     int       `json:"totalEdges"`
	CrossRepoLinks int       `json:"crossRepoLinks"`
}

// DependencyGraph is a workspace-wide dependency graph.
// It is only mutated while being built; analyses treat it as read-only.
type DependencyGraph struct {
	Nodes    map[string]*Node `json:"nodes"`
	Edges    []Edge           `json:"edges"`
	Metadata GraphMetadata    `json:"metadata"`

	edgeIndex map[edgeKey]struct{}
}

type edgeKey struct {
	from, to string
}

// NodeID returns the identifier of a (repository, name, version) triple
func NodeID(repository, name, version string) string {
	return repository + ":" + name + "@" + version
}

// NewDependencyGraph creates an empty graph
func NewDependencyGraph(workspaceID string, generatedAt time.Time) *DependencyGraph {
	return &DependencyGraph{
		Nodes:     make(map[string]*Node),
		Edges:     make([]Edge, 0),
		Metadata:  GraphMetadata{WorkspaceID: workspaceID, GeneratedAt: generatedAt},
		edgeIndex: make(map[edgeKey]struct{}),
	}
}

// AddNode adds the node for (repository, name, version), or returns the
// existing one when the triple was already added.
func (g *DependencyGraph) AddNode(repository, name, version, packageManager string) *Node {
	id := NodeID(repository, name, version)
	if node, ok := g.Nodes[id]; ok {
		return node
	}

	node := &Node{
		ID:             id,
		Name:           name,
		Version:        version,
		Repository:     repository,
		PackageManager: packageManager,
		Dependencies:   make([]string, 0),
		Dependents:     make([]string, 0),
	}
	g.Nodes[id] = node
	g.Metadata.TotalNodes = len(g.Nodes)
	return node
}

// AddEdge links from -> to. Self-edges and repeats of an existing (from, to)
// pair are ignored and reported as false.
func (g *DependencyGraph) AddEdge(from, to string, edgeType EdgeType) (bool, error) {
	src, ok := g.Nodes[from]
	if !ok {
		return false, fmt.Errorf("unknown source node %s", from)
	}
	dst, ok := g.Nodes[to]
	if !ok {
		return false, fmt.Errorf("unknown target node %s", to)
	}
	if from == to || g.HasEdge(from, to) {
		return false, nil
	}

	g.edgeIndex[edgeKey{from, to}] = struct{}{}
	g.Edges = append(g.Edges, Edge{From: from, To: to, Type: edgeType})
	src.Dependencies = append(src.Dependencies, to)
	dst.Dependents = append(dst.Dependents, from)

	g.Metadata.TotalEdges = len(g.Edges)
	if src.Repository != dst.Repository {
		g.Metadata.CrossRepoLinks++
	}
	return true, nil
}

// HasEdge reports whether from -> to exists
func (g *DependencyGraph) HasEdge(from, to string) bool {
	if g.edgeIndex == nil {
		// Decoded graphs carry no index.
		g.edgeIndex = make(map[edgeKey]struct{}, len(g.Edges))
		for _, e := range g.Edges {
			g.edgeIndex[edgeKey{e.From, e.To}] = struct{}{}
		}
	}
	_, ok := g.edgeIndex[edgeKey{from, to}]
	return ok
}

// GetNode looks a node up by id
func (g *DependencyGraph) GetNode(id string) (*Node, bool) {
	node, ok := g.Nodes[id]
	return node, ok
}

// Repositories returns the distinct repositories owning nodes, sorted
func (g *DependencyGraph) Repositories() []string {
	seen := make(map[string]struct{})
	for _, node := range g.Nodes {
		seen[node.Repository] = struct{}{}
	}
	return sortedKeys(seen)
}

// Validate checks that every edge has both endpoints and that the
// dependencies and dependents lists mirror the edge list.
func (g *DependencyGraph) Validate() error {
	deps := make(map[edgeKey]int)
	for _, node := range g.Nodes {
		for _, to := range node.Dependencies {
			deps[edgeKey{node.ID, to}]++
		}
	}
	dependents := make(map[edgeKey]int)
	for _, node := range g.Nodes {
		for _, from := range node.Dependents {
			dependents[edgeKey{from, node.ID}]++
		}
	}

	cross := 0
	for _, e := range g.Edges {
		src, ok := g.Nodes[e.From]
		if !ok {
			return fmt.Errorf("edge %s -> %s: missing source node", e.From, e.To)
		}
		dst, ok := g.Nodes[e.To]
		if !ok {
			return fmt.Errorf("edge %s -> %s: missing target node", e.From, e.To)
		}
		key := edgeKey{e.From, e.To}
		if deps[key] != 1 {
			return fmt.Errorf("edge %s -> %s: listed %d times in dependencies", e.From, e.To, deps[key])
		}
		if dependents[key] != 1 {
			return fmt.Errorf("edge %s -> %s: listed %d times in dependents", e.From, e.To, dependents[key])
		}
		delete(deps, key)
		delete(dependents, key)
		if src.Repository != dst.Repository {
			cross++
		}
	}

	for key := range deps {
		return fmt.Errorf("dependency %s -> %s has no edge", key.from, key.to)
	}
	for key := range dependents {
		return fmt.Errorf("dependent %s -> %s has no edge", key.from, key.to)
	}

	if g.Metadata.TotalNodes != len(g.Nodes) || g.Metadata.TotalEdges != len(g.Edges) {
		return fmt.Errorf("metadata counts %d/%d do not match graph %d/%d",
			g.Metadata.TotalNodes, g.Metadata.TotalEdges, len(g.Nodes), len(g.Edges))
	}
	if g.Metadata.CrossRepoLinks != cross {
		return fmt.Errorf("metadata reports %d cross-repo links, graph has %d", g.Metadata.CrossRepoLinks, cross)
	}
	return nil
}

// sortedNodeIDs returns every node id in lexical order
func (g *DependencyGraph) sortedNodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
