// Package dependencies builds and analyzes workspace-wide dependency graphs.
//
// # Overview
//
// A workspace is a set of repositories, each publishing one package described
// by a manifest. The Builder fetches every manifest concurrently and links
// packages declared by one repository to the repositories that publish them.
// Packages no repository publishes are external and left out of the graph.
// The GraphAnalyzer answers read-only questions about the result.
//
// # Key Features
//
// Graph Building: Concurrent manifest fetches with isolated failures
// Cycle Detection: Report circular dependencies ranked by severity
// Cross-Repository Links: Group edges by the pair of repositories they connect
// Impact Analysis: Direct and transitive dependents with a critical path
// Duplicates: Packages declared at more than one version
// Visualization: Generic and Cytoscape.js projections
//
// # Usage Example
//
// Build a graph:
//
//	builder := dependencies.NewBuilder(source, log)
//	result := builder.BuildDependencyGraph(ctx, ws.ID, ws.Repositories, dependencies.DefaultBuildOptions())
//	for _, f := range result.Failures {
//		fmt.Printf("skipped %s: %s\n", f.Repository, f.Error)
//	}
//
// Analyze it:
//
//	analyzer := dependencies.NewGraphAnalyzer(result.Graph)
//	for _, cycle := range analyzer.DetectCycles() {
//		fmt.Printf("%s cycle: %s\n", cycle.Severity, strings.Join(cycle.Nodes, " -> "))
//	}
//
//	impact, ok := analyzer.AnalyzeImpact(nodeID)
//	if ok {
//		fmt.Printf("impact score %d across %d repositories\n",
//			impact.ImpactScore, len(impact.AffectedRepositories))
//	}
//
// # Related Packages
//
//   - pkg/manifest: Manifest sources and parsers
//   - pkg/workspace: Workspace definitions
package dependencies
