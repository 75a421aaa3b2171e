package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/codepad/config"
	"github.com/isdmx/codepad/gateway"
	"github.com/isdmx/codepad/logger"
	"github.com/isdmx/codepad/marketplace"
	"github.com/isdmx/codepad/mcpserver"
	"github.com/isdmx/codepad/project"
	"github.com/isdmx/codepad/session"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Metrics registry shared by every collector
			newRegistry,
			session.NewMetrics,

			// Outbound calls to the container controller
			newGateway,

			// Session lifecycle
			session.NewRegistry,
			newSessionManager,

			// Collaborator stores
			fx.Annotate(project.NewMemoryStore, fx.As(new(mcpserver.ProjectStore))),
			fx.Annotate(newTemplateStore, fx.As(new(mcpserver.TemplateStore))),

			// MCP Server
			mcpserver.New,
		),

		fx.Invoke(registerMetricsServer),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					// Use fx to run this as a background task
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

func newRegistry() (*prometheus.Registry, prometheus.Registerer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg
}

func newGateway(cfg *config.Config, log *zap.Logger) gateway.Caller {
	return gateway.New(log.Named("gateway"), gateway.WithTimeout(cfg.GetRequestTimeout()))
}

// newSessionManager builds the manager and stops its sessions when the app stops.
func newSessionManager(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	gw gateway.Caller,
	registry *session.Registry,
	metrics *session.Metrics,
) mcpserver.SessionManager {
	initialBackoff, maxBackoff := cfg.GetCleanupBackoff()
	m := session.NewManager(log.Named("session"), session.Config{
		ControllerURL:         cfg.Controller.BaseURL,
		ProjectID:             cfg.Controller.ProjectID,
		MaxResponseBytes:      cfg.Controller.MaxResponseBytes,
		Expiry:                cfg.GetSessionExpiry(),
		StopReplaced:          cfg.Session.StopReplaced,
		StopOnShutdown:        cfg.Session.StopOnShutdown,
		CleanupMaxRetries:     cfg.Session.Cleanup.MaxRetries,
		CleanupInitialBackoff: initialBackoff,
		CleanupMaxBackoff:     maxBackoff,
	}, gw, registry, session.WithMetrics(metrics))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down session manager", zap.Int("live_sessions", registry.Len()))
			return m.Shutdown(ctx)
		},
	})
	return m
}

func newTemplateStore(cfg *config.Config, log *zap.Logger) (*marketplace.Store, error) {
	store := marketplace.NewStore()
	if !cfg.Marketplace.SeedSamples {
		return store, nil
	}

	n, err := store.SeedSamples()
	if err != nil {
		return nil, err
	}
	log.Info("marketplace seeded", zap.Int("templates", n))
	return store, nil
}

func registerMetricsServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) {
	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
