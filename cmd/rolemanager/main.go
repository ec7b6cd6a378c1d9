package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hamidscode/role-manager/internal/app"
	"github.com/hamidscode/role-manager/internal/permissions"
	"github.com/hamidscode/role-manager/internal/platform/cache"
	"github.com/hamidscode/role-manager/internal/platform/db"
	"github.com/hamidscode/role-manager/internal/resolver"
	"github.com/hamidscode/role-manager/internal/roles"
	"github.com/hamidscode/role-manager/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The cache is an optimization, not a dependency; degrade to
		// always-miss rather than refusing to start.
		logger.Warn("redis unavailable, caching degraded", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	resolutionCache := cache.NewCache(redisClient)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	permissionsRepo := permissions.NewRepository(pool)
	rolesRepo := roles.NewRepository(pool)

	permissionResolver := resolver.New(rolesRepo, resolutionCache, logger, cfg.ResolveCacheTTL)

	permissionsService := permissions.NewService(permissionsRepo, permissionResolver, jobsClient, logger)
	rolesService := roles.NewService(rolesRepo, permissionsRepo, permissionResolver, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		PermissionsHandler: permissions.NewHandler(logger, permissionsService),
		RolesHandler:       roles.NewHandler(logger, rolesService),
		ResolveHandler:     resolver.NewHandler(logger, permissionResolver),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      http.TimeoutHandler(router, cfg.AppRequestTimeout, "request timed out"),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
