// Package manifest fetches and parses the dependency manifests declared by
// workspace repositories.
//
// # Overview
//
// A Source returns the Manifest of one repository: the package it publishes and
// the dependencies it declares, each tagged with a closed Kind (direct, dev, peer).
// Version strings are kept exactly as declared.
//
// # Sources
//
// GitHubSource: Contents API with token auth and request throttling
// FilesystemSource: local checkouts laid out as <root>/<owner>/<name>
// StaticSource: in-memory manifests, loadable from YAML
// CachingSource: in-process LRU with TTL in front of another Source
// RedisSource: shared Redis cache in front of another Source
//
// # Supported Formats
//
//   - package.json (npm): dependencies, devDependencies, peerDependencies
//   - go.mod: require directives, indirect requirements skipped
//
// # Usage Example
//
//	src := manifest.NewCachingSource(manifest.NewGitHubSource(manifest.GitHubConfig{
//		Token: os.Getenv("GITHUB_TOKEN"),
//	}), 512, 10*time.Minute)
//
//	m, err := src.Fetch(ctx, workspace.Repository{Owner: "acme", Name: "api"})
//	if errors.Is(err, manifest.ErrManifestNotFound) {
//		// repository has no supported manifest
//	}
package manifest
