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

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/vanzer80/solicitacao-materiais-api/api/swagger"
	"github.com/vanzer80/solicitacao-materiais-api/internal/handler"
	"github.com/vanzer80/solicitacao-materiais-api/internal/imaging"
	"github.com/vanzer80/solicitacao-materiais-api/internal/middleware"
	"github.com/vanzer80/solicitacao-materiais-api/internal/repository"
	"github.com/vanzer80/solicitacao-materiais-api/internal/service"
	"github.com/vanzer80/solicitacao-materiais-api/internal/webhook"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/cache"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/config"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/database"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/logger"
	corsmiddleware "github.com/vanzer80/solicitacao-materiais-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vanzer80/solicitacao-materiais-api/pkg/middleware/requestid"
	"github.com/vanzer80/solicitacao-materiais-api/pkg/storage"
)

// @title Solicitação de Materiais API
// @version 1.0.0
// @description Intake, delivery and history API for field-technician material requests
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades gracefully without Redis: lojas listings just
		// hit the upstream on every request.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	uploadStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("upload storage init failed", "error", err)
	}

	// Repositories.
	solicitacoes := repository.NewSolicitacaoRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metrics := service.NewMetricsService()
	compressor := imaging.NewCompressor(logr)
	uploads := service.NewUploadService(uploadStorage, cfg.Uploads, cfg.PublicBaseURL, logr, metrics)
	webhookClient := webhook.NewClient(cfg.Webhook, logr, metrics)
	historico := service.NewHistoricoService(solicitacoes, logr)
	submissions := service.NewSubmissionService(compressor, uploads, webhookClient, solicitacoes, historico, metrics, logr)
	lojas := service.NewLojasService(cfg.Lojas, cacheRepo, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exports *service.ExportService
	if cfg.Exports.Enabled {
		exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("export storage init failed", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportRepo := repository.NewExportRepository(db)
		exports = service.NewExportService(exportRepo, solicitacoes, exportStorage, signer,
			cfg.APIPrefix, cfg.Exports.WorkerConcurrency, cfg.Exports.WorkerRetries, logr)
		exports.Start(rootCtx)
		defer exports.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					exports.CleanupExpired(rootCtx)
				}
			}
		}()
	}

	// Handlers.
	solicitacaoHandler := handler.NewSolicitacaoHandler(submissions)
	historicoHandler := handler.NewHistoricoHandler(historico, exports)
	lojasHandler := handler.NewLojasHandler(lojas)
	uploadHandler := handler.NewUploadHandler(uploads, cfg.Uploads.MaxFileSizeBytes)
	webhookHandler := handler.NewWebhookHandler(webhookClient)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	globalLimiter := middleware.NewRateLimiter(cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow)
	r.Use(middleware.RateLimit(globalLimiter, cfg.RateLimit))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static("/uploads", cfg.Uploads.StorageDir)

	api := r.Group(cfg.APIPrefix)
	{
		submitLimiter := middleware.NewRateLimiter(cfg.RateLimit.SubmitLimit, cfg.RateLimit.SubmitWindow)
		api.POST("/solicitacoes", middleware.SubmitRateLimit(submitLimiter, cfg.RateLimit), solicitacaoHandler.Submit)

		api.GET("/historico", historicoHandler.Listar)
		api.GET("/historico/:requestId", historicoHandler.Detalhe)
		api.POST("/historico/exportacoes", historicoHandler.Exportar)
		api.GET("/historico/exportacoes/download", historicoHandler.Download)
		api.GET("/historico/exportacoes/:id", historicoHandler.ExportStatus)

		api.GET("/lojas", lojasHandler.Listar)
		api.DELETE("/lojas/cache", lojasHandler.Invalidate)

		api.POST("/uploads", uploadHandler.Upload)
		api.POST("/webhook/diagnostico", webhookHandler.Diagnostico)
		api.GET("/metrics/snapshot", metricsHandler.Snapshot)
	}

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
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
