// Package config loads application configuration from environment variables.
//
// # Overview
//
// Every setting has a default; LoadConfig validates the combination before
// returning it. The binaries load a .env file first when one exists.
//
// # Configuration Structure
//
// Server settings:
//
//	DEPGRAPH_HOST="0.0.0.0"
//	DEPGRAPH_PORT="8080"
//	DEPGRAPH_HEALTH_PORT="9090"
//	DEPGRAPH_SHUTDOWN_TIMEOUT="30s"
//
// Workspace settings:
//
//	DEPGRAPH_WORKSPACE_STORE="file"  # file, postgres
//	DEPGRAPH_WORKSPACE_FILE="workspaces.yaml"
//	DEPGRAPH_WORKSPACE_WATCH="true"
//	DEPGRAPH_POSTGRES_URL="postgres://localhost/depgraph"
//
// Manifest settings:
//
//	DEPGRAPH_MANIFEST_SOURCE="github"  # github, filesystem, static
//	DEPGRAPH_GITHUB_TOKEN="ghp_..."
//	DEPGRAPH_FILESYSTEM_ROOT="/srv/checkouts"
//	DEPGRAPH_STATIC_FILE="manifests.yaml"
//	DEPGRAPH_CACHE_SIZE="1000"
//	DEPGRAPH_REDIS_URL="redis://localhost:6379"
//
// Build settings:
//
//	DEPGRAPH_INCLUDE_DEV="false"
//	DEPGRAPH_INCLUDE_PEER="false"
//	DEPGRAPH_INCLUDE_TRANSITIVE="false"
//	DEPGRAPH_MAX_DEPTH="3"
//	DEPGRAPH_CONCURRENCY="8"
//	DEPGRAPH_SCHEDULE="@every 15m"
//
// Observability settings:
//
//	DEPGRAPH_LOG_LEVEL="info"  # debug, info, warn, error
//	DEPGRAPH_METRICS_ENABLED="true"
//	DEPGRAPH_OTEL_ENABLED="true"
//	DEPGRAPH_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// # Related Packages
//
//   - pkg/dependencies: Uses the build options
//   - pkg/observability: Uses observability configuration
package config
