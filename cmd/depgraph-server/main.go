package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/depgraph/pkg/config"
	"github.com/platinummonkey/depgraph/pkg/dependencies"
	"github.com/platinummonkey/depgraph/pkg/httputil"
	"github.com/platinummonkey/depgraph/pkg/middleware"
	"github.com/platinummonkey/depgraph/pkg/observability"
	"github.com/platinummonkey/depgraph/pkg/scheduler"
	"github.com/platinummonkey/depgraph/pkg/swagger"
)

var version = "dev"

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("depgraph-server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	otel, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, log)
	if err != nil {
		return err
	}

	b := &backends{}
	defer b.close()

	store, err := newWorkspaceStore(ctx, cfg.Workspaces, log, b)
	if err != nil {
		return err
	}
	source, err := newManifestSource(ctx, cfg.Manifests, log, b)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"workspace_store": cfg.Workspaces.Store,
		"manifest_source": cfg.Manifests.Source,
		"redis_cache":     b.redis != nil,
	}).Info("Backends initialized")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	builder := dependencies.NewBuilder(source, log)
	refresher := scheduler.NewRefresher(store, builder, cfg.Build, log)
	refresher.SetTimeout(cfg.Schedule.Timeout)
	if cfg.Observability.MetricsEnabled {
		builder.SetMetrics(metrics)
		refresher.SetMetrics(metrics)
	}

	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(httputil.RequestIDMiddleware))
	router.Use(mux.MiddlewareFunc(httputil.RecoveryMiddleware(log)))
	router.Use(mux.MiddlewareFunc(httputil.LoggingMiddleware(log)))
	if cfg.Observability.MetricsEnabled {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	swagger.NewSwaggerHandlers().RegisterRoutes(router)
	api := router.PathPrefix("/api/v1").Subrouter()
	if limiter := newRateLimiter(cfg.Server, b); limiter != nil {
		api.Use(mux.MiddlewareFunc(middleware.RateLimit(limiter, log)))
	}
	dependencies.NewHandlers(store, builder, cfg.Build, log).RegisterRoutes(api)
	refresher.RegisterRoutes(api)

	notifier, err := newNotifier(cfg.Schedule, log)
	if err != nil {
		return err
	}
	if notifier != nil {
		refresher.SetNotifier(notifier)
		notifier.Deliveries().RegisterRoutes(api)
	}

	healthRouter := mux.NewRouter()
	observability.NewHealthChecker(b.db, b.redis, version).RegisterRoutes(healthRouter)
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", observability.MetricsHandler(registry))
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthRouter,
	}

	shutdown := observability.NewShutdownManager(log, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(refresher.Stop)
	shutdown.RegisterShutdownFunc(otel.Shutdown)

	if cfg.Schedule.Spec != "" {
		if err := refresher.Start(cfg.Schedule.Spec); err != nil {
			return err
		}
	}
	if b.file != nil && cfg.Workspaces.Watch {
		go func() {
			if err := b.file.Watch(ctx); err != nil {
				log.WithError(err).Error("Workspace file watcher stopped")
			}
		}()
	}

	serverErr := make(chan error, 2)
	for _, srv := range []*http.Server{server, healthServer} {
		go func() {
			log.Infof("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("server on %s: %w", srv.Addr, err)
			}
		}()
	}

	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case err := <-serverErr:
			cancel(err)
		case <-waitCtx.Done():
		}
	}()

	err = shutdown.WaitForShutdown(waitCtx)
	if cause := context.Cause(waitCtx); !errors.Is(cause, context.Canceled) {
		return errors.Join(cause, err)
	}
	return err
}
