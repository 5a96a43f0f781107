package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/emredeveloper/invoice-ai-extractor/config"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/internal/task"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/queue"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
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

	processor, err := task.NewProcessorFromConfig(cfg, rdb, invoices, webhooks, log)
	if err != nil {
		log.Error("Failed to build processor", logger.Error(err))
		os.Exit(1)
	}

	statuses, err := queue.NewAsynqQueue(&queue.Config{
		RedisAddr:      cfg.Redis.Addr,
		RedisPassword:  cfg.Redis.Password,
		RedisDB:        cfg.Redis.DB,
		MaxRetries:     cfg.Queue.MaxRetries,
		ProcessTimeout: cfg.Queue.TaskTimeout,
	})
	if err != nil {
		log.Error("Failed to initialize queue", logger.Error(err))
		os.Exit(1)
	}
	defer statuses.Close()

	workerCfg := &worker.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Queue.Concurrency,
		Queues:        map[string]int{"default": 1},
	}

	invoiceWorker, err := worker.NewInvoiceWorker(workerCfg, processor, statuses, log)
	if err != nil {
		log.Error("Failed to create invoice worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := invoiceWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	invoiceWorker.Stop()
	log.Info("Worker stopped")
}
