package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/depgraph/pkg/dependencies"
	"github.com/platinummonkey/depgraph/pkg/observability"
)

// Workspace store types
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Manifest source types
const (
	SourceGitHub     = "github"
	SourceFilesystem = "filesystem"
	SourceStatic     = "static"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Where workspace definitions come from
	Workspaces WorkspaceConfig

	// Where manifests come from and how they are cached
	Manifests ManifestConfig

	// Default graph build options
	Build dependencies.BuildOptions

	// Periodic re-analysis
	Schedule ScheduleConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Analysis requests per minute per client; 0 disables limiting
	RateLimit      int
	RateLimitBurst int
}

// WorkspaceConfig selects the workspace store
type WorkspaceConfig struct {
	Store string

	// File store
	File  string
	Watch bool

	// Postgres store
	PostgresURL      string
	PostgresMaxConns int
}

// ManifestConfig selects the manifest source and its caches
type ManifestConfig struct {
	Source string

	GitHubToken     string
	GitHubBaseURL   string
	GitHubRateLimit int

	FilesystemRoot string
	StaticFile     string

	// In-process LRU; disabled when CacheSize is 0
	CacheSize int
	CacheTTL  time.Duration

	// Shared Redis cache; disabled when RedisURL is empty
	RedisURL      string
	RedisPoolSize int
	RedisTTL      time.Duration
}

// ScheduleConfig controls periodic rebuilds of every workspace
type ScheduleConfig struct {
	// Cron spec, e.g. "@every 15m". Empty disables the scheduler.
	Spec    string
	Timeout time.Duration

	// Report webhooks; no URLs disables notification
	WebhookURLs   []string
	WebhookSecret string
	WebhookFormat string
	WebhookEvents []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Workspaces:    loadWorkspaceConfig(),
		Manifests:     loadManifestConfig(),
		Build:         loadBuildOptions(),
		Schedule:      loadScheduleConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("DEPGRAPH_HOST", "0.0.0.0"),
		Port:            getEnv("DEPGRAPH_PORT", "8080"),
		ReadTimeout:     getEnvDuration("DEPGRAPH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("DEPGRAPH_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("DEPGRAPH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("DEPGRAPH_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("DEPGRAPH_HEALTH_PORT", "9090"),
		RateLimit:       getEnvInt("DEPGRAPH_RATE_LIMIT", 0),
		RateLimitBurst:  getEnvInt("DEPGRAPH_RATE_LIMIT_BURST", 10),
	}
}

func loadWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Store:            strings.ToLower(getEnv("DEPGRAPH_WORKSPACE_STORE", StoreFile)),
		File:             getEnv("DEPGRAPH_WORKSPACE_FILE", "workspaces.yaml"),
		Watch:            getEnvBool("DEPGRAPH_WORKSPACE_WATCH", false),
		PostgresURL:      getEnv("DEPGRAPH_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("DEPGRAPH_POSTGRES_MAX_CONNS", 10),
	}
}

func loadManifestConfig() ManifestConfig {
	return ManifestConfig{
		Source:          strings.ToLower(getEnv("DEPGRAPH_MANIFEST_SOURCE", SourceGitHub)),
		GitHubToken:     getEnv("DEPGRAPH_GITHUB_TOKEN", ""),
		GitHubBaseURL:   getEnv("DEPGRAPH_GITHUB_BASE_URL", ""),
		GitHubRateLimit: getEnvInt("DEPGRAPH_GITHUB_RATE_LIMIT", 0),
		FilesystemRoot:  getEnv("DEPGRAPH_FILESYSTEM_ROOT", ""),
		StaticFile:      getEnv("DEPGRAPH_STATIC_FILE", ""),
		CacheSize:       getEnvInt("DEPGRAPH_CACHE_SIZE", 1000),
		CacheTTL:        getEnvDuration("DEPGRAPH_CACHE_TTL", 5*time.Minute),
		RedisURL:        getEnv("DEPGRAPH_REDIS_URL", ""),
		RedisPoolSize:   getEnvInt("DEPGRAPH_REDIS_POOL_SIZE", 0),
		RedisTTL:        getEnvDuration("DEPGRAPH_REDIS_TTL", time.Hour),
	}
}

func loadBuildOptions() dependencies.BuildOptions {
	return dependencies.BuildOptions{
		IncludeDevDependencies:        getEnvBool("DEPGRAPH_INCLUDE_DEV", false),
		IncludePeerDependencies:       getEnvBool("DEPGRAPH_INCLUDE_PEER", false),
		IncludeTransitiveDependencies: getEnvBool("DEPGRAPH_INCLUDE_TRANSITIVE", false),
		MaxDepth:                      getEnvInt("DEPGRAPH_MAX_DEPTH", dependencies.DefaultMaxDepth),
		Concurrency:                   getEnvInt("DEPGRAPH_CONCURRENCY", dependencies.DefaultConcurrency),
	}
}

func loadScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Spec:    getEnv("DEPGRAPH_SCHEDULE", ""),
		Timeout: getEnvDuration("DEPGRAPH_SCHEDULE_TIMEOUT", 5*time.Minute),

		WebhookURLs:   getEnvList("DEPGRAPH_WEBHOOK_URLS"),
		WebhookSecret: getEnv("DEPGRAPH_WEBHOOK_SECRET", ""),
		WebhookFormat: strings.ToLower(getEnv("DEPGRAPH_WEBHOOK_FORMAT", "json")),
		WebhookEvents: getEnvList("DEPGRAPH_WEBHOOK_EVENTS"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("DEPGRAPH_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("DEPGRAPH_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("DEPGRAPH_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("DEPGRAPH_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("DEPGRAPH_OTEL_SERVICE_NAME", "depgraph"),
		OTelServiceVersion: getEnv("DEPGRAPH_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("DEPGRAPH_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1")
	}

	switch c.Workspaces.Store {
	case StoreFile:
		if c.Workspaces.File == "" {
			return fmt.Errorf("workspace file is required for the file store")
		}
	case StorePostgres:
		if c.Workspaces.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("invalid workspace store: %s (must be file or postgres)", c.Workspaces.Store)
	}

	switch c.Manifests.Source {
	case SourceGitHub:
	case SourceFilesystem:
		if c.Manifests.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for the filesystem source")
		}
	case SourceStatic:
		if c.Manifests.StaticFile == "" {
			return fmt.Errorf("static manifest file is required for the static source")
		}
	default:
		return fmt.Errorf("invalid manifest source: %s (must be github, filesystem, or static)", c.Manifests.Source)
	}
	if c.Manifests.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative")
	}

	if c.Build.MaxDepth < 1 {
		return fmt.Errorf("max depth must be at least 1")
	}
	if c.Build.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	if len(c.Schedule.WebhookURLs) > 0 {
		switch c.Schedule.WebhookFormat {
		case "json", "slack":
		default:
			return fmt.Errorf("invalid webhook format: %s (must be json or slack)", c.Schedule.WebhookFormat)
		}
		for _, event := range c.Schedule.WebhookEvents {
			if event != "graph.refreshed" && event != "graph.cycles_detected" {
				return fmt.Errorf("invalid webhook event: %s", event)
			}
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable, dropping
// empty items
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
