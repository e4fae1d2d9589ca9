// Package workspace describes the repositories that make up a workspace and the
// stores that supply them.
//
// # Overview
//
// A workspace is a named collection of repositories analyzed together. This
// package only reads workspace definitions; nothing produced by the analysis is
// written back.
//
// # Stores
//
// FileStore: YAML file on disk, optionally reloaded on change
// PostgresStore: workspaces and workspace_repositories tables
//
// # Usage Example
//
//	store, err := workspace.NewFileStore("workspaces.yaml", log)
//	ws, err := store.GetWorkspace(ctx, "platform")
//	for _, repo := range ws.Repositories {
//		fmt.Println(repo.FullName(), repo.DefaultBranch)
//	}
//
// # Related Packages
//
//   - pkg/manifest: Fetches the manifest of each repository
//   - pkg/dependencies: Builds the workspace graph
package workspace
