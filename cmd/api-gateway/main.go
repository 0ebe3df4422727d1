package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/defense-allocation-api/api/swagger"
	"github.com/noah-isme/defense-allocation-api/internal/handler"
	internalmiddleware "github.com/noah-isme/defense-allocation-api/internal/middleware"
	"github.com/noah-isme/defense-allocation-api/internal/notification"
	"github.com/noah-isme/defense-allocation-api/internal/repository"
	"github.com/noah-isme/defense-allocation-api/internal/service"
	"github.com/noah-isme/defense-allocation-api/pkg/cache"
	"github.com/noah-isme/defense-allocation-api/pkg/config"
	"github.com/noah-isme/defense-allocation-api/pkg/database"
	"github.com/noah-isme/defense-allocation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/defense-allocation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/defense-allocation-api/pkg/middleware/requestid"
)

// @title Defense Allocation API
// @version 1.0.0
// @description Schedules thesis defenses, allocates areas and case studies, and balances juries.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logr.Warn("unknown timezone, using UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		location = time.UTC
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient redis.UniversalClient
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, running without cache and retry queue", zap.Error(err))
	} else if client != nil {
		redisClient = client
		defer client.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	catalogRepo := repository.NewCatalogRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	defenseRepo := repository.NewDefenseRepository(db)
	juryRepo := repository.NewJuryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Redis.Prefix)

	// Notification workers outlive the signal context so events published by
	// requests still draining in srv.Shutdown are delivered.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	dispatcher, retryWorker := buildNotifications(cfg.Notification, location, redisClient, studentRepo, metrics, logr)
	var publisher interface{ Publish(notification.Event) }
	if dispatcher != nil {
		dispatcher.Start(workCtx)
		publisher = dispatcher
	}
	if retryWorker != nil {
		retryWorker.Start(workCtx)
	}

	planner := service.NewAllocationPlanner(catalogRepo, service.NewRandomizer())
	defenseSvc := service.NewDefenseService(defenseRepo, publisher, validate, logr)
	allocationSvc := service.NewAllocationService(db, catalogRepo, studentRepo, planner, defenseSvc, publisher, metrics, validate, logr)
	jurySvc := service.NewJuryService(db, defenseRepo, juryRepo, cacheRepo, metrics, logr, service.JuryServiceConfig{
		SuggestionCacheTTL: cfg.Jury.SuggestionCacheTTL,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.Routes{
		Defenses: handler.NewDefenseHandler(allocationSvc, defenseSvc),
		Juries:   handler.NewJuryHandler(jurySvc),
		Metrics:  handler.NewMetricsHandler(metrics.Handler(), db),
		Tokens:   service.NewTokenVerifier(cfg.JWT.Secret),
	}.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	cancelWork()
	if retryWorker != nil {
		retryWorker.Stop()
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
	logr.Info("server stopped")
}

func buildNotifications(
	cfg config.NotificationConfig,
	location *time.Location,
	redisClient redis.UniversalClient,
	contacts *repository.StudentRepository,
	metrics *service.MetricsService,
	logr *zap.Logger,
) (*notification.Dispatcher, *notification.RetryWorker) {
	if !cfg.Enabled {
		logr.Info("notifications disabled")
		return nil, nil
	}

	var messages notification.MessageSender
	if cfg.TelegramToken != "" {
		sender, err := notification.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			logr.Warn("telegram channel disabled", zap.Error(err))
		} else {
			messages = sender
		}
	}

	var emails notification.EmailSender
	if cfg.SMTP.Host != "" {
		emails = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	var retry notification.RetryStore
	if redisClient != nil {
		retry = notification.NewRedisRetryQueue(redisClient, cfg.RetryKey)
	}

	dispatcher := notification.NewDispatcher(
		contacts,
		notification.NewRenderer(cfg.CaseLinkBase, location),
		messages,
		emails,
		retry,
		metrics,
		logr.Named("notification"),
		notification.DispatcherConfig{
			SendTimeout:      cfg.SendTimeout,
			Workers:          cfg.Workers,
			BufferSize:       cfg.BufferSize,
			LookupRetries:    cfg.LookupRetries,
			LookupRetryDelay: cfg.LookupRetryDelay,
		},
	)

	var worker *notification.RetryWorker
	if retry != nil && messages != nil {
		worker = notification.NewRetryWorker(retry, messages, metrics, logr.Named("notification.retry"), notification.RetryWorkerConfig{
			Interval:    cfg.RetryInterval,
			SendTimeout: cfg.SendTimeout,
		})
	}
	return dispatcher, worker
}
