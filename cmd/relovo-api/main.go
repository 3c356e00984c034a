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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/relovo/relovo-api/api/swagger"
	"github.com/relovo/relovo-api/internal/handler"
	"github.com/relovo/relovo-api/internal/middleware"
	"github.com/relovo/relovo-api/internal/models"
	"github.com/relovo/relovo-api/internal/repository"
	"github.com/relovo/relovo-api/internal/service"
	"github.com/relovo/relovo-api/pkg/cache"
	"github.com/relovo/relovo-api/pkg/config"
	"github.com/relovo/relovo-api/pkg/database"
	"github.com/relovo/relovo-api/pkg/export"
	"github.com/relovo/relovo-api/pkg/jobs"
	"github.com/relovo/relovo-api/pkg/logger"
	corsmiddleware "github.com/relovo/relovo-api/pkg/middleware/cors"
	reqidmiddleware "github.com/relovo/relovo-api/pkg/middleware/requestid"
	"github.com/relovo/relovo-api/pkg/storage"
)

// @title Relovo Deal API
// @version 1.0.0
// @description Deal lifecycle service for the Relovo rental marketplace
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init file storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	dealRepo := repository.NewDealRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	contractRepo := repository.NewContractRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		JWTSecret:     cfg.JWT.Secret,
		JWTExpiration: cfg.JWT.Expiration,
	})
	auditSvc := service.NewAuditService(auditRepo, logr)
	contractSvc := service.NewContractService(contractRepo, dealRepo, userRepo, listingRepo, files,
		export.NewContractRenderer(), auditSvc, cfg.Contracts.TemplatePath, cfg.Uploads.MaxFileSizeBytes, logr)
	dealSvc := service.NewDealService(dealRepo, listingRepo, documentRepo, contractSvc, auditSvc,
		export.NewCSVExporter(), logr)
	documentSvc := service.NewDocumentService(documentRepo, dealRepo, files, auditSvc, cfg.Uploads.MaxFileSizeBytes, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var listingSvc *service.ListingService
	purgeQueue := jobs.NewQueue("deal-file-purge", func(jobCtx context.Context, job jobs.Job) error {
		return listingSvc.HandlePurge(jobCtx, job)
	}, jobs.QueueConfig{Workers: 2, Logger: logr})
	listingSvc = service.NewListingService(listingRepo, dealRepo, cacheSvc, files, purgeQueue, logr)
	purgeQueue.Start(ctx)
	defer purgeQueue.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	listingHandler := handler.NewListingHandler(listingSvc)
	dealHandler := handler.NewDealHandler(dealSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	contractHandler := handler.NewContractHandler(contractSvc)
	fileHandler := handler.NewFileHandler(dealSvc, signer, files)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)
		api.GET("/listings", listingHandler.List)
		api.GET("/listings/:id", listingHandler.Get)
		api.GET("/files/:token", fileHandler.Download)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.POST("/listings/:id/reserve", middleware.RequireRoles(models.RoleTenant), dealHandler.Reserve)
		authed.DELETE("/listings/:id", middleware.RequireRoles(models.RoleAdmin), listingHandler.Delete)

		authed.GET("/deals", dealHandler.List)
		authed.GET("/deals/:id", dealHandler.Get)
		authed.POST("/deals/:id/dates", middleware.RequireRoles(models.RoleTenant), dealHandler.SetDates)
		authed.POST("/deals/:id/dates/confirm", middleware.RequireRoles(models.RoleLandlord, models.RoleAdmin), dealHandler.ConfirmDates)
		authed.PATCH("/deals/:id/status", middleware.RequireRoles(models.RoleAdmin), dealHandler.SetStatus)
		authed.POST("/deals/:id/cancel", middleware.RequireRoles(models.RoleAdmin), dealHandler.Cancel)

		authed.POST("/deals/:id/documents", middleware.RequireRoles(models.RoleTenant, models.RoleLandlord), documentHandler.Upload)
		authed.POST("/documents/:id/review", middleware.RequireRoles(models.RoleAdmin), documentHandler.Review)

		authed.POST("/deals/:id/contract/generate", contractHandler.Generate)
		authed.POST("/deals/:id/contract/signed", middleware.RequireRoles(models.RoleTenant, models.RoleLandlord), contractHandler.UploadSigned)
		authed.POST("/deals/:id/files/link", fileHandler.CreateLink)

		admin := authed.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
		admin.GET("/deals/export", dealHandler.Export)
		admin.GET("/metrics", metricsHandler.Snapshot)
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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
