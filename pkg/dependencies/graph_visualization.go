package dependencies

// VisualizationNode is a node in the rendering-agnostic projection
type VisualizationNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Group string `json:"group"`
	Value int    `json:"value"`
}

// VisualizationEdge is an edge in the rendering-agnostic projection.
// Label is empty for direct edges; dev edges are dashed.
type VisualizationEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Label  string `json:"label,omitempty"`
	Dashes bool   `json:"dashes"`
}

// VisualizationData is a projection any graph front end can draw
type VisualizationData struct {
	Nodes []VisualizationNode `json:"nodes"`
	Edges []VisualizationEdge `json:"edges"`
}

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Repository string `json:"repository"`
	Parent     string `json:"parent,omitempty"`
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// GenerateVisualizationData projects nodes (sorted by id) sized by their
// dependent count and grouped by repository, plus every edge in graph order.
func (a *GraphAnalyzer) GenerateVisualizationData() VisualizationData {
	data := VisualizationData{
		Nodes: make([]VisualizationNode, 0, len(a.graph.Nodes)),
		Edges: make([]VisualizationEdge, 0, len(a.graph.Edges)),
	}

	for _, id := range a.graph.sortedNodeIDs() {
		node := a.graph.Nodes[id]
		data.Nodes = append(data.Nodes, VisualizationNode{
			ID:    node.ID,
			Label: node.Name,
			Group: node.Repository,
			Value: len(node.Dependents),
		})
	}

	for _, e := range a.graph.Edges {
		edge := VisualizationEdge{
			From:   e.From,
			To:     e.To,
			Dashes: e.Type == EdgeDev,
		}
		if e.Type != EdgeDirect {
			edge.Label = string(e.Type)
		}
		data.Edges = append(data.Edges, edge)
	}
	return data
}

// ToCytoscape projects the graph into Cytoscape.js elements. Each repository
// becomes a compound parent node containing its packages.
func (a *GraphAnalyzer) ToCytoscape() CytoscapeGraph {
	cyto := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0, len(a.graph.Nodes)),
		Edges: make([]CytoscapeEdge, 0, len(a.graph.Edges)),
	}

	for _, repo := range a.graph.Repositories() {
		cyto.Nodes = append(cyto.Nodes, CytoscapeNode{
			Data: CytoscapeNodeData{ID: repo, Name: repo, Repository: repo},
		})
	}
	for _, id := range a.graph.sortedNodeIDs() {
		node := a.graph.Nodes[id]
		cyto.Nodes = append(cyto.Nodes, CytoscapeNode{
			Data: CytoscapeNodeData{
				ID:         node.ID,
				Name:       node.Name,
				Version:    node.Version,
				Repository: node.Repository,
				Parent:     node.Repository,
			},
		})
	}

	for _, e := range a.graph.Edges {
		cyto.Edges = append(cyto.Edges, CytoscapeEdge{
			Data: CytoscapeEdgeData{
				ID:     e.From + "->" + e.To,
				Source: e.From,
				Target: e.To,
				Type:   e.Type,
			},
		})
	}
	return cyto
}
