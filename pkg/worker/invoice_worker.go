package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/hibiken/asynq"

	"github.com/emredeveloper/invoice-ai-extractor/internal/task"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/queue"
)

// InvoiceWorker consumes invoice processing tasks. Retries are handled by
// asynq; the worker's job is to decide which failures deserve one.
type InvoiceWorker struct {
	BaseWorker
	processor *task.Processor
	statuses  queue.Queue
}

func NewInvoiceWorker(cfg *Config, processor *task.Processor, statuses queue.Queue, log logger.Logger) (*InvoiceWorker, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Queues == nil {
		cfg.Queues = map[string]int{"default": 1}
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency:    cfg.Concurrency,
			Queues:         cfg.Queues,
			RetryDelayFunc: retryDelay,
		},
	)

	w := &InvoiceWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		processor: processor,
		statuses:  statuses,
	}

	w.mux.HandleFunc(queue.TaskTypeInvoiceProcess, w.handleInvoiceProcess)
	return w, nil
}

func (w *InvoiceWorker) handleInvoiceProcess(ctx context.Context, t *asynq.Task) error {
	var qt queue.Task
	if err := json.Unmarshal(t.Payload(), &qt); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %v: %w", err, asynq.SkipRetry)
	}

	var req task.Request
	if err := json.Unmarshal(qt.Payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal request: %v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing invoice task",
		logger.String("task_id", qt.ID),
		logger.String("invoice_id", req.InvoiceID),
	)

	started := time.Now()
	_, err := w.processor.Process(ctx, req)
	if err == nil {
		w.saveStatus(&queue.TaskStatus{
			TaskID:     qt.ID,
			Status:     "completed",
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		return nil
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	retryable := task.Retryable(err)

	if retryable && retried < maxRetry {
		w.logger.Warn("Invoice task failed, will retry",
			logger.String("invoice_id", req.InvoiceID),
			logger.Int("attempt", retried+1),
			logger.Error(err),
		)
		return err
	}

	// Permanent failure, or retries exhausted. Write the terminal state
	// now so the record never sticks in processing.
	w.logger.Error("Invoice task failed permanently",
		logger.String("invoice_id", req.InvoiceID),
		logger.Int("attempts", retried+1),
		logger.Error(err),
	)
	w.processor.Fail(req.InvoiceID, err.Error(), started)
	w.saveStatus(&queue.TaskStatus{
		TaskID:     qt.ID,
		Status:     "failed",
		Error:      err.Error(),
		Retries:    retried,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})

	if !retryable {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (w *InvoiceWorker) saveStatus(status *queue.TaskStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.statuses.SaveFinalStatus(ctx, status); err != nil {
		w.logger.Warn("Failed to save task status",
			logger.String("task_id", status.TaskID),
			logger.Error(err),
		)
	}
}

func (w *InvoiceWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

// retryDelay backs off exponentially with jitter so a downstream rate
// limit is not hammered by every retry at once.
func retryDelay(n int, err error, t *asynq.Task) time.Duration {
	base := time.Duration(1<<uint(n)) * time.Second
	if base > 2*time.Minute {
		base = 2 * time.Minute
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return base + jitter
}
