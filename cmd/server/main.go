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
	"github.com/redis/go-redis/v9"

	"github.com/emredeveloper/invoice-ai-extractor/api/handlers"
	"github.com/emredeveloper/invoice-ai-extractor/api/routes"
	"github.com/emredeveloper/invoice-ai-extractor/config"
	"github.com/emredeveloper/invoice-ai-extractor/internal/service/invoice"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/internal/task"
	"github.com/emredeveloper/invoice-ai-extractor/internal/webhook"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/queue"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	invoices := store.NewRedisInvoiceStore(rdb)
	webhooks := store.NewRedisWebhookStore(rdb)

	dispatcher := webhook.NewDispatcher(cfg.Webhook.Timeout, cfg.Webhook.MaxRetries, webhooks, log)
	manager := webhook.NewManager(webhooks, dispatcher, cfg.Webhook.MaxPerUser, log)

	// With the queue enabled, the server only accepts uploads and the
	// worker runs the pipeline. Otherwise the pipeline runs in-process.
	var q queue.Queue
	var processor *task.Processor
	if cfg.Queue.Enabled {
		aq, err := queue.NewAsynqQueue(&queue.Config{
			RedisAddr:      cfg.Redis.Addr,
			RedisPassword:  cfg.Redis.Password,
			RedisDB:        cfg.Redis.DB,
			MaxRetries:     cfg.Queue.MaxRetries,
			ProcessTimeout: cfg.Queue.TaskTimeout,
		})
		if err != nil {
			log.Fatal("Failed to initialize queue", logger.Error(err))
		}
		defer aq.Close()
		q = aq
	} else {
		processor, err = task.NewProcessorFromConfig(cfg, rdb, invoices, webhooks, log)
		if err != nil {
			log.Fatal("Failed to initialize pipeline", logger.Error(err))
		}
	}

	// Object-store archival is best effort; the pipeline reads the
	// local copy.
	archive, err := storage.New(cfg.Storage, log)
	if err != nil {
		log.Warn("Object storage unavailable, archival disabled", logger.Error(err))
		archive = nil
	}

	svc := invoice.NewService(invoices, q, processor, archive, log, &invoice.ServiceConfig{
		MaxFileSize:    cfg.Upload.MaxFileSize,
		AllowedTypes:   cfg.Upload.AllowedTypes,
		UploadDir:      cfg.Storage.UploadDir,
		BatchLimit:     cfg.Upload.BatchLimit,
		MaxConcurrent:  cfg.Queue.Concurrency,
		ProcessTimeout: cfg.Pipeline.LocalTimeout,
	})

	h := handlers.NewHandlers(svc, manager, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, cfg)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
