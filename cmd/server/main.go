// Package main runs the provider portal HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/provider-portal/backend/config"
	"github.com/provider-portal/backend/internal/auth"
	"github.com/provider-portal/backend/internal/customers"
	"github.com/provider-portal/backend/internal/emaillogs"
	"github.com/provider-portal/backend/internal/middleware"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/notifications"
	"github.com/provider-portal/backend/internal/providergroups"
	"github.com/provider-portal/backend/internal/providers"
	"github.com/provider-portal/backend/internal/submissions"
	"github.com/provider-portal/backend/internal/users"
	"github.com/provider-portal/backend/pkg/database"
	"github.com/provider-portal/backend/pkg/metrics"
	"github.com/provider-portal/backend/pkg/queue"
	"github.com/provider-portal/backend/pkg/redis"
	"github.com/provider-portal/backend/pkg/response"
	"github.com/provider-portal/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		DocumentsBucket:      cfg.AWS.DocumentsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	m := metrics.New()
	jobQueue := queue.NewQueue(rdb.Client, logger)

	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, logger)
	dispatcher := notifications.NewDispatcher(emailLogsRepo, jobQueue, m, logger)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(auth.NewService(authRepo, jwtService, logger), middleware.GetPrincipal, logger)

	// Tenancy hierarchy
	customerHandler := customers.NewHandler(
		customers.NewService(customers.NewRepository(pool), dispatcher, cfg.Server.BaseURL, logger), logger)
	groupHandler := providergroups.NewHandler(
		providergroups.NewService(providergroups.NewRepository(pool), logger), logger)
	providerHandler := providers.NewHandler(
		providers.NewService(providers.NewRepository(pool), logger), logger)
	userHandler := users.NewHandler(
		users.NewService(users.NewRepository(pool), dispatcher, cfg.Server.BaseURL, logger), logger)

	// Submissions
	submissionHandler := submissions.NewHandler(
		submissions.NewService(submissions.NewRepository(pool), s3Client, dispatcher, submissions.Options{
			MaxDocumentMB: cfg.AWS.MaxDocumentMB,
			BaseURL:       cfg.Server.BaseURL,
		}, logger), logger)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))
	router.MaxMultipartMemory = 8 << 20
	router.NoRoute(middleware.NoRoute)

	// Operational
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil || !rdb.Healthy(c.Request.Context()) {
			response.ServiceUnavailable(c, "degraded")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")

	// Auth (public)
	api.POST("/auth/login", authHandler.Login)

	// Protected API (JWT and an active principal required)
	protected := api.Group("")
	protected.Use(middleware.JWT(jwtService), middleware.Identity(authRepo, logger))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/auth/password", authHandler.ChangePassword)

		// Customers: every role reads its own; mutations are system-admin only
		protected.GET("/admin/customers", customerHandler.List)
		protected.GET("/admin/customers/:id", customerHandler.Get)
		protected.POST("/admin/customers", middleware.RequireRole(m, models.RoleSystemAdmin), customerHandler.Action)

		// Users
		userAdmins := protected.Group("/admin/users")
		userAdmins.Use(middleware.RequireRole(m, models.RoleSystemAdmin, models.RoleCustomerAdmin, models.RoleProviderGroupAdmin))
		userAdmins.GET("", userHandler.List)
		userAdmins.GET("/:id", userHandler.Get)
		userAdmins.POST("", userHandler.Action)

		// Provider groups: provider-group admins read their own group only
		groups := protected.Group("/admin/provider-groups")
		groups.GET("", middleware.RequireRole(m, models.RoleSystemAdmin, models.RoleCustomerAdmin, models.RoleProviderGroupAdmin), groupHandler.List)
		groups.GET("/:id", middleware.RequireRole(m, models.RoleSystemAdmin, models.RoleCustomerAdmin, models.RoleProviderGroupAdmin), groupHandler.Get)
		groups.POST("", middleware.RequireRole(m, models.RoleSystemAdmin, models.RoleCustomerAdmin), groupHandler.Action)

		// Providers (NPIs): basic users read their assigned NPIs
		protected.GET("/providers", providerHandler.List)
		protected.GET("/providers/:id", providerHandler.Get)
		protected.POST("/providers", middleware.RequireRole(m, models.RoleSystemAdmin, models.RoleCustomerAdmin, models.RoleProviderGroupAdmin), providerHandler.Action)

		// Submissions
		protected.GET("/submissions", submissionHandler.List)
		protected.GET("/submissions/:id", submissionHandler.Get)
		protected.POST("/submissions", submissionHandler.Action)
		protected.POST("/submissions/:id/documents", submissionHandler.UploadDocument)
		protected.DELETE("/submissions/:id/documents/:documentId", submissionHandler.DeleteDocument)

		// Email logs
		protected.GET("/admin/email-logs", middleware.RequireRole(m, models.RoleSystemAdmin, models.RoleCustomerAdmin), emailLogsHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
