package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DinhCNTT/unimarket-chat/internal/config"
	httpcontroller "github.com/DinhCNTT/unimarket-chat/internal/controller/http"
	"github.com/DinhCNTT/unimarket-chat/internal/database"
	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/dao"
	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/scheduler"
	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/service"
	"github.com/DinhCNTT/unimarket-chat/internal/realtime"
	"github.com/DinhCNTT/unimarket-chat/internal/storage"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	pg       *pgxpool.Pool
	media    *storage.S3Storage
	registry *realtime.Registry
	chat     *service.Service
	janitor  *scheduler.Janitor
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	app := &App{
		cfg:    cfg,
		router: r,
		logger: logger,
	}

	if err := app.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("initializing infrastructure: %w", err)
	}

	app.initDomains()
	app.registerRoutes()

	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Janitor.Enabled {
		app.janitor = scheduler.New(
			dao.NewConversationPostgres(app.pg),
			scheduler.Config{
				Interval:  cfg.Janitor.Interval,
				TTL:       cfg.Janitor.TTL,
				BatchSize: cfg.Janitor.BatchSize,
			},
			logger,
		)
	}

	return app, nil
}

// initInfrastructure initializes infrastructure components (DB, S3)
func (a *App) initInfrastructure(ctx context.Context) error {
	pool, err := database.NewPostgresPool(ctx, a.cfg.Database.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	a.pg = pool

	media, err := storage.NewS3Storage(storage.S3Config{
		Endpoint:        a.cfg.S3.Endpoint,
		AccessKeyID:     a.cfg.S3.AccessKeyID,
		SecretAccessKey: a.cfg.S3.SecretAccessKey,
		Bucket:          a.cfg.S3.Bucket,
		Region:          a.cfg.S3.Region,
		PublicURL:       a.cfg.S3.PublicURL,
	})
	if err != nil {
		return fmt.Errorf("creating s3 storage: %w", err)
	}
	a.media = media

	return nil
}

// initDomains wires the chat engine: repositories, session registry and the
// messaging service.
func (a *App) initDomains() {
	a.registry = realtime.NewRegistry(a.logger)

	a.chat = service.New(
		dao.NewConversationPostgres(a.pg),
		dao.NewMessagePostgres(a.pg),
		dao.NewMarkerPostgres(a.pg),
		a.registry,
		a.media,
		dao.NewUserDirectoryPostgres(a.pg),
		dao.NewListingCatalogPostgres(a.pg),
		a.cfg.Chat.RecallWindow,
		a.logger,
	)
}

// registerRoutes registers all HTTP routes
func (a *App) registerRoutes() {
	a.router.Get("/healthz", a.healthHandler)
	a.router.Get("/readyz", a.readyHandler)

	// Realtime surface
	wsHandler := httpcontroller.NewWSHandler(a.registry, a.chat, a.logger)
	a.router.Get("/ws", wsHandler.ServeHTTP)

	// API v1. The timeout stays off the websocket route: those connections
	// are long-lived.
	a.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		chatHandler := httpcontroller.NewChatHandler(a.chat)
		chatHandler.RegisterRoutes(r)

		mediaHandler := httpcontroller.NewMediaHandler(a.media)
		mediaHandler.RegisterRoutes(r)
	})
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readyHandler handles readiness check requests
func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.pg.Ping(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	if a.janitor != nil {
		a.janitor.Start(ctx)
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	if a.janitor != nil {
		a.janitor.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	if a.pg != nil {
		a.pg.Close()
	}

	a.logger.Info("shutdown complete")
	return nil
}
