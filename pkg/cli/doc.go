// Package cli implements the depgraph command-line interface.
//
// # Overview
//
// Every command loads one workspace from a YAML file, builds its dependency
// graph and prints one analysis. Manifests are read from a YAML file, local
// checkouts or the GitHub API, in that order of preference.
//
// # Commands
//
// summary: Totals and the most connected packages
//
//	depgraph summary -workspaces workspaces.yaml -workspace frontend
//
// cycles: Dependency cycles, optionally failing a CI job
//
//	depgraph cycles -root ./checkouts -fail-on high
//
// impact: Dependents of a node
//
//	depgraph impact -node 'acme/ui:@acme/ui@1.0.0' -transitive
//
// path: Shortest dependency chain between two nodes
//
//	depgraph path -from 'acme/web:@acme/web@3.0.0' -to 'acme/types:@acme/types@2.0.0'
//
// viz: Graph export for a front end
//
//	depgraph viz -format cytoscape > graph.json
//
// links, metrics, duplicates, transitive and order complete the set. Every
// command accepts -json and the build flags -dev, -peer, -transitive and -depth.
//
// # Environment
//
//   - DEPGRAPH_GITHUB_TOKEN: token for the GitHub manifest source
//
// # Related Packages
//
//   - pkg/dependencies: Graph building and analysis
//   - pkg/manifest: Manifest sources
package cli
