package dependencies

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// DefaultTopN is the length of the ranked lists in a GraphSummary
const DefaultTopN = 10

// VersionEntry is one declaration of a package at a specific version
type VersionEntry struct {
	Version    string `json:"version"`
	Repository string `json:"repository"`
	NodeID     string `json:"nodeId"`
}

// RankedNode is a node with the count it was ranked by
type RankedNode struct {
	NodeID     string `json:"nodeId"`
	Name       string `json:"name"`
	Repository string `json:"repository"`
	Count      int    `json:"count"`
}

// GraphSummary is a short overview of a graph
type GraphSummary struct {
	TotalRepositories int          `json:"totalRepositories"`
	TotalDependencies int          `json:"totalDependencies"`
	CrossRepoLinks    int          `json:"crossRepoLinks"`
	MostDependedOn    []RankedNode `json:"mostDependedOn"`
	MostDependent     []RankedNode `json:"mostDependent"`
}

// FindDuplicateDependencies groups nodes by package name and reports the
// names declared at more than one distinct version. Entries are ordered by
// version, then repository.
func (a *GraphAnalyzer) FindDuplicateDependencies() map[string][]VersionEntry {
	byName := make(map[string][]VersionEntry)
	for _, id := range a.graph.sortedNodeIDs() {
		node := a.graph.Nodes[id]
		byName[node.Name] = append(byName[node.Name], VersionEntry{
			Version:    node.Version,
			Repository: node.Repository,
			NodeID:     node.ID,
		})
	}

	duplicates := make(map[string][]VersionEntry)
	for name, entries := range byName {
		versions := make(map[string]struct{})
		for _, e := range entries {
			versions[e.Version] = struct{}{}
		}
		if len(versions) < 2 {
			continue
		}

		sort.SliceStable(entries, func(i, j int) bool {
			if c := compareVersions(entries[i].Version, entries[j].Version); c != 0 {
				return c < 0
			}
			return entries[i].Repository < entries[j].Repository
		})
		duplicates[name] = entries
	}
	return duplicates
}

// LatestVersion returns the highest version among entries. Versions that are
// not semantic versions sort below those that are.
func LatestVersion(entries []VersionEntry) string {
	latest := ""
	for i, e := range entries {
		if i == 0 || compareVersions(e.Version, latest) > 0 {
			latest = e.Version
		}
	}
	return latest
}

// compareVersions orders semantic versions by precedence and anything else
// lexically, below every semantic version. Range prefixes like ^ and ~ are
// not stripped, so "^1.2.0" is compared as an opaque string.
func compareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// GenerateSummary counts repositories and nodes and ranks the DefaultTopN
// most depended-on and most dependent nodes. Nodes with a zero count are
// left out of the rankings; ties are broken by node id.
func (a *GraphAnalyzer) GenerateSummary() GraphSummary {
	return GraphSummary{
		TotalRepositories: len(a.graph.Repositories()),
		TotalDependencies: len(a.graph.Nodes),
		CrossRepoLinks:    a.graph.Metadata.CrossRepoLinks,
		MostDependedOn:    a.rank(func(n *Node) int { return len(n.Dependents) }),
		MostDependent:     a.rank(func(n *Node) int { return len(n.Dependencies) }),
	}
}

func (a *GraphAnalyzer) rank(count func(*Node) int) []RankedNode {
	ranked := make([]RankedNode, 0)
	for _, id := range a.graph.sortedNodeIDs() {
		node := a.graph.Nodes[id]
		c := count(node)
		if c == 0 {
			continue
		}
		ranked = append(ranked, RankedNode{
			NodeID:     node.ID,
			Name:       node.Name,
			Repository: node.Repository,
			Count:      c,
		})
	}

	// Ids are already sorted, so a stable sort keeps them as the tie-break.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > DefaultTopN {
		ranked = ranked[:DefaultTopN]
	}
	return ranked
}
