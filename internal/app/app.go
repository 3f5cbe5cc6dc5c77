package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"go-office-trash/internal/config"
	"go-office-trash/internal/database"
	"go-office-trash/internal/datastore"
	"go-office-trash/internal/entity"
	"go-office-trash/internal/event"
	"go-office-trash/internal/handler"
	"go-office-trash/internal/metrics"
	"go-office-trash/internal/middleware"
	"go-office-trash/internal/repository"
	"go-office-trash/internal/router"
	"go-office-trash/internal/service"
	"go-office-trash/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	hub          *websocket.Hub
	jobs         *service.JobService
	scheduler    *service.ExpiryScheduler
	cleanupFuncs []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	settings, err := config.LoadTrashSettings(cfg.TrashSettingsFile, cfg.TrashNearExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to load trash settings: %w", err)
	}

	var (
		store   datastore.Datastore
		cleanup []func()
	)
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set; using in-memory datastore")
		store = datastore.NewMemory()
	} else {
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		store = datastore.NewPostgres(db.Pool)
		cleanup = append(cleanup, db.Close)
	}
	closeAll := func() {
		for _, fn := range cleanup {
			fn()
		}
	}

	registry := entity.Default()
	trashRepo := repository.NewTrashRepository(store)
	auditRepo := repository.NewAuditRepository(store)
	userRepo := repository.NewUserRepository(store)
	jobRepo := repository.NewJobRepository(store)
	slog.Info("datastore ready")

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	appMetrics := metrics.New()

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}

	auditService := service.NewAuditService(auditRepo)
	trashService := service.NewTrashService(trashRepo, store, registry, auditService, bus)
	trashService.SetMetrics(appMetrics)
	entityService := service.NewEntityService(store, registry, trashService, trashRepo, auditService, bus)
	jobService := service.NewJobService(trashService, jobRepo, bus)
	scheduler := service.NewExpiryScheduler(trashService, settings)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(authService),
		Entity: handler.NewEntityHandler(entityService, settings),
		Trash:  handler.NewTrashHandler(trashService, settings),
		Jobs:   handler.NewJobsHandler(jobService, settings),
		Audit:  handler.NewAuditHandler(auditService),
		System: handler.NewSystemHandler(store, settings),
		Events: hub.Serve,
	}, appMetrics)

	bus.Publish(event.New(event.TypeSettingsLoaded, settings, ""))
	slog.Info("trash settings loaded",
		"enabled", settings.Enabled,
		"default_retention_days", settings.DefaultRetentionDays,
		"auto_cleanup", settings.AutoCleanupEnabled,
		"cleanup_interval", scheduler.Interval().String(),
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		hub:          hub,
		jobs:         jobService,
		scheduler:    scheduler,
		cleanupFuncs: cleanup,
	}, nil
}

// Run serves until SIGINT/SIGTERM or until one of the background loops fails,
// then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error { return a.hub.Run(groupCtx) })
	group.Go(func() error { return a.jobs.Run(groupCtx) })
	group.Go(func() error { return a.scheduler.Run(groupCtx) })

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err := group.Wait()

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
