// Package main runs the event platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventflow/backend/config"
	"github.com/eventflow/backend/internal/admin"
	"github.com/eventflow/backend/internal/auth"
	"github.com/eventflow/backend/internal/emaillogs"
	"github.com/eventflow/backend/internal/events"
	"github.com/eventflow/backend/internal/metrics"
	"github.com/eventflow/backend/internal/middleware"
	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/internal/realtime"
	"github.com/eventflow/backend/internal/registrations"
	"github.com/eventflow/backend/pkg/database"
	"github.com/eventflow/backend/pkg/queue"
	"github.com/eventflow/backend/pkg/redis"
	"github.com/eventflow/backend/pkg/response"
	"github.com/eventflow/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := newLogger("info")
		bootLogger.Fatal("load config", zap.Error(err))
	}
	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Event images are optional; without a bucket the image endpoints answer 503.
	var images events.ImageStore
	if cfg.AWS.ImagesBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			images = s3Client
		}
	}

	m := metrics.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, auth.EmailDomains{
		Student: cfg.Auth.StudentDomain,
		Admin:   cfg.Auth.AdminDomain,
	}, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventCache := events.NewCache(rdb.Client, cfg.Cache.EventsTTL, m, logger)
	eventHandler := events.NewHandler(eventRepo, eventCache, images, hub, logger)

	// Registrations
	registrationRepo := registrations.NewRepository(pool)
	controller := registrations.NewController(eventRepo, registrationRepo, registrations.Options{
		Seats:   hub,
		Cache:   eventCache,
		Emails:  jobQueue,
		Users:   authRepo,
		Metrics: m,
		Logger:  logger,
	})
	registrationHandler := registrations.NewHandler(controller, registrationRepo, logger)

	// Admin
	adminHandler := admin.NewHandler(admin.NewRepository(pool), registrationRepo, logger)
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), jobQueue, logger)

	seatsLookup := func(ctx context.Context, eventID uuid.UUID) (models.Seats, error) {
		e, err := eventRepo.GetByID(ctx, eventID)
		if err != nil {
			return models.Seats{}, err
		}
		return e.Seats(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(m.Middleware())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", middleware.JWT(jwtService), authHandler.Me)
	}

	// Public catalog
	api.GET("/events", eventHandler.List)
	api.GET("/events/:id", eventHandler.GetByID)
	api.GET("/events/:id/seats", eventHandler.Seats)

	protected := api.Group("")
	protected.Use(middleware.JWT(jwtService))
	{
		adminOnly := middleware.RequireRole(string(models.RoleAdmin))
		studentOnly := middleware.RequireRole(string(models.RoleStudent))

		protected.POST("/events", adminOnly, eventHandler.Create)
		protected.PUT("/events/:id", adminOnly, eventHandler.Update)
		protected.DELETE("/events/:id", adminOnly, eventHandler.Delete)
		protected.POST("/events/:id/image-upload-url", adminOnly, eventHandler.ImageUploadURL)
		protected.POST("/events/:id/image", adminOnly, eventHandler.UploadImage)

		protected.POST("/registrations", studentOnly, registrationHandler.Create)
		protected.GET("/registrations", registrationHandler.Mine)
		protected.DELETE("/registrations/:id", registrationHandler.Cancel)

		adminGroup := protected.Group("/admin", adminOnly)
		adminGroup.GET("/students", adminHandler.Students)
		adminGroup.GET("/reports", adminHandler.Reports)
		adminGroup.GET("/reports/export", adminHandler.Export)
		adminGroup.PATCH("/registrations/:id/attended", adminHandler.MarkAttended)
		adminGroup.GET("/emails", emailLogsHandler.List)
	}

	// WebSocket (token in query; no Authorization header required)
	upgrader := realtime.Upgrader(middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins))
	router.GET("/ws", realtime.ServeWs(hub, upgrader, jwtService.ValidateWS, seatsLookup, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, _ := config.Build()
	return logger
}
