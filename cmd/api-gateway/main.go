package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/bus-dispatch-api/api/swagger"
	"github.com/noah-isme/bus-dispatch-api/internal/handler"
	"github.com/noah-isme/bus-dispatch-api/internal/repository"
	"github.com/noah-isme/bus-dispatch-api/internal/router"
	"github.com/noah-isme/bus-dispatch-api/internal/service"
	"github.com/noah-isme/bus-dispatch-api/pkg/cache"
	"github.com/noah-isme/bus-dispatch-api/pkg/config"
	"github.com/noah-isme/bus-dispatch-api/pkg/database"
	"github.com/noah-isme/bus-dispatch-api/pkg/logger"
)

// @title Bus Dispatch API
// @version 1.0.0
// @description Bus assignment lifecycle and station clearance workflow
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Redis backs the route cache and event fan-out; both degrade when it is down.
	redisClient, err := cache.NewRedis(ctx, cfg.Redis, 3*time.Second)
	if err != nil {
		logr.Warn("redis unavailable, route cache and notifications disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	retry := repository.RetryPolicy{Attempts: cfg.Store.RetryAttempts, Delay: cfg.Store.RetryDelay}
	assignmentRepo := repository.NewAssignmentRepository(db, retry)
	clearanceRepo := repository.NewClearanceRepository(db, retry)
	routeRepo := repository.NewRouteRepository(db)
	userRepo := repository.NewUserRepository(db)
	busRepo := repository.NewBusRepository(db)

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metrics,
		cfg.RouteCache.TTL,
		logr,
		cfg.RouteCache.Enabled && redisClient != nil,
	)
	catalog := service.NewRouteCatalogService(routeRepo, cacheSvc, cfg.RouteCache.TTL, logr)

	notifierCfg := cfg.Notifier
	notifierCfg.Enabled = notifierCfg.Enabled && redisClient != nil
	notifications := service.NewNotificationService(
		repository.NewEventPublisher(redisClient, cfg.Notifier.ChannelPrefix),
		metrics,
		logr,
		notifierCfg,
	)
	notifications.Start(ctx)
	defer notifications.Stop()

	validate := validator.New()
	assignments := service.NewAssignmentService(assignmentRepo, busRepo, catalog, userRepo, notifications, metrics, validate, logr)
	clearance := service.NewClearanceService(clearanceRepo, assignmentRepo, catalog, userRepo, notifications, metrics, validate, logr)
	tripSheets := service.NewTripSheetService(assignmentRepo, clearanceRepo, busRepo, catalog, cfg.TripSheets.Enabled)

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = redisPing(redisClient)
	}

	engine := router.Setup(cfg, router.Handlers{
		Assignments: handler.NewAssignmentHandler(assignments, tripSheets),
		Clearance:   handler.NewClearanceHandler(clearance),
		Metrics:     handler.NewMetricsHandler(metrics, checks),
	}, service.NewTokenVerifier(cfg.JWT.Secret), metrics, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func redisPing(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
