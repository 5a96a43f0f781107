package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Task types routed through the queue.
const (
	TaskTypeInvoiceProcess = "invoice:process"
	TaskTypeInvoiceNotify  = "invoice:notify"
)

// Queue abstracts enqueueing and status inspection so the HTTP layer
// never touches asynq directly.
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveFinalStatus(ctx context.Context, status *TaskStatus) error
	Close() error
}

// Task is the unit handed to the worker. ID doubles as the asynq task id,
// which makes enqueueing the same invoice twice a no-op.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// TaskStatus is the queue-level view of a task, independent of the
// invoice record it produced.
type TaskStatus struct {
	TaskID     string    `json:"task_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Retries    int       `json:"retries,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Config holds the queue's redis and retry settings.
type Config struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
}

// AsynqQueue implements Queue over asynq with a redis side channel for
// final statuses, which asynq drops once a task leaves its queues.
type AsynqQueue struct {
	client     *asynq.Client
	inspector  *asynq.Inspector
	redis      *redis.Client
	maxRetries int
	timeout    time.Duration
}

func NewAsynqQueue(cfg *Config) (*AsynqQueue, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 10 * time.Minute
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &AsynqQueue{
		client:     asynq.NewClient(redisOpt),
		inspector:  asynq.NewInspector(redisOpt),
		redis:      redisClient,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.ProcessTimeout,
	}, nil
}

// Enqueue submits the task. The task id is pinned with asynq.TaskID so a
// duplicate submit for the same invoice returns ErrTaskIDConflict instead
// of running the pipeline twice.
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(task.ID),
		asynq.MaxRetry(q.maxRetries),
		asynq.Timeout(q.timeout),
		asynq.Queue("default"),
	}

	t := asynq.NewTask(task.Type, payload, opts...)
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// GetTaskStatus prefers the persisted final status, falling back to the
// live queue for tasks still pending or active.
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	data, err := q.redis.Get(ctx, statusKey(taskID)).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	info, err := q.inspector.GetTaskInfo("default", taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	return convertTaskInfo(info), nil
}

// CancelTask removes a task that has not started yet. Active tasks run to
// completion; their record carries the outcome.
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	if err := q.inspector.DeleteTask("default", taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	return nil
}

// SaveFinalStatus records the terminal status with a 24h TTL, outliving
// asynq's own retention.
func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}

	return nil
}

func (q *AsynqQueue) Close() error {
	q.redis.Close()
	return q.client.Close()
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

func convertTaskInfo(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:  info.ID,
		Retries: info.Retried,
	}

	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled:
		status.Status = "pending"
	case asynq.TaskStateActive:
		status.Status = "processing"
	case asynq.TaskStateRetry:
		status.Status = "processing"
		status.Error = info.LastErr
	case asynq.TaskStateCompleted:
		status.Status = "completed"
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateArchived:
		status.Status = "failed"
		status.Error = info.LastErr
	default:
		status.Status = info.State.String()
	}

	return status
}
