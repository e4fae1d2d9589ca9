package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/depgraph/pkg/config"
	"github.com/platinummonkey/depgraph/pkg/manifest"
	"github.com/platinummonkey/depgraph/pkg/middleware"
	"github.com/platinummonkey/depgraph/pkg/scheduler"
	"github.com/platinummonkey/depgraph/pkg/webhooks"
	"github.com/platinummonkey/depgraph/pkg/workspace"
)

// backends holds the long-lived clients that need closing on shutdown
type backends struct {
	db    *sql.DB
	redis *redis.Client
	file  *workspace.FileStore
}

func (b *backends) close() {
	if b.db != nil {
		b.db.Close()
	}
	if b.redis != nil {
		b.redis.Close()
	}
}

func newWorkspaceStore(ctx context.Context, cfg config.WorkspaceConfig, log *logrus.Logger, b *backends) (scheduler.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := workspace.OpenPostgres(ctx, cfg.PostgresURL, cfg.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		b.db = db

		store := workspace.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case config.StoreFile:
		store, err := workspace.NewFileStore(cfg.File, log)
		if err != nil {
			return nil, err
		}
		b.file = store
		return store, nil
	}
	return nil, fmt.Errorf("unknown workspace store: %s", cfg.Store)
}

// newManifestSource builds the configured source wrapped, outermost first, in
// the in-process LRU and the shared Redis cache
func newManifestSource(ctx context.Context, cfg config.ManifestConfig, log *logrus.Logger, b *backends) (manifest.Source, error) {
	var source manifest.Source
	switch cfg.Source {
	case config.SourceGitHub:
		gh, err := manifest.NewGitHubSource(manifest.GitHubConfig{
			Token:     cfg.GitHubToken,
			BaseURL:   cfg.GitHubBaseURL,
			RateLimit: cfg.GitHubRateLimit,
		})
		if err != nil {
			return nil, err
		}
		source = gh
	case config.SourceFilesystem:
		source = manifest.NewFilesystemSource(cfg.FilesystemRoot)
	case config.SourceStatic:
		static, err := manifest.LoadStaticFile(cfg.StaticFile)
		if err != nil {
			return nil, err
		}
		source = static
	default:
		return nil, fmt.Errorf("unknown manifest source: %s", cfg.Source)
	}

	if cfg.RedisURL != "" {
		client, err := manifest.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			return nil, err
		}
		b.redis = client
		source = manifest.NewRedisSource(source, client, cfg.RedisTTL, log)
	}

	if cfg.CacheSize > 0 {
		source = manifest.NewCachingSource(source, cfg.CacheSize, cfg.CacheTTL)
	}
	return source, nil
}

// newRateLimiter returns nil when limiting is off. With a Redis cache
// configured the limit is shared across instances.
func newRateLimiter(cfg config.ServerConfig, b *backends) middleware.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.RateLimitBurst,
	}
	if b.redis != nil {
		return middleware.NewDistributedRateLimiter(b.redis, limits, "")
	}
	return middleware.NewLocalRateLimiter(limits, 0)
}

// newNotifier returns nil when no webhook URLs are configured
func newNotifier(cfg config.ScheduleConfig, log *logrus.Logger) (*webhooks.Notifier, error) {
	if len(cfg.WebhookURLs) == 0 {
		return nil, nil
	}
	events := make([]webhooks.EventType, 0, len(cfg.WebhookEvents))
	for _, e := range cfg.WebhookEvents {
		events = append(events, webhooks.EventType(e))
	}
	hooks := make([]webhooks.Webhook, 0, len(cfg.WebhookURLs))
	for _, url := range cfg.WebhookURLs {
		hooks = append(hooks, webhooks.Webhook{
			URL:    url,
			Events: events,
			Secret: cfg.WebhookSecret,
			Format: cfg.WebhookFormat,
		})
	}
	return webhooks.NewNotifier(hooks, webhooks.DefaultRetryConfig(), log)
}
