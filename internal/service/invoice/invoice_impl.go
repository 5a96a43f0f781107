// Package invoice accepts uploads, creates records and hands the work to
// either the queue or an in-process goroutine, depending on deployment.
package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/internal/task"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/queue"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/storage"
)

// ServiceConfig bounds uploads and selects the execution mode.
type ServiceConfig struct {
	MaxFileSize     int64
	AllowedTypes    []string
	UploadDir       string
	BatchLimit      int
	MaxConcurrent   int
	ProcessTimeout  time.Duration
	RetentionPeriod time.Duration
}

type Service struct {
	invoices  store.InvoiceStore
	queue     queue.Queue // nil runs the pipeline in-process
	processor *task.Processor
	archive   storage.Storage // nil disables object-store archival
	logger    logger.Logger
	config    *ServiceConfig
}

func NewService(
	invoices store.InvoiceStore,
	q queue.Queue,
	processor *task.Processor,
	archive storage.Storage,
	log logger.Logger,
	cfg *ServiceConfig,
) *Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = []string{".pdf", ".jpg", ".jpeg", ".png", ".txt"}
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 180 * time.Second
	}
	if cfg.RetentionPeriod <= 0 {
		cfg.RetentionPeriod = 24 * time.Hour
	}

	return &Service{
		invoices:  invoices,
		queue:     q,
		processor: processor,
		archive:   archive,
		logger:    log,
		config:    cfg,
	}
}

// ProcessFile validates and saves one upload, creates the pending record
// and starts processing. The record is returned immediately; results
// arrive through status polling or webhooks.
func (s *Service) ProcessFile(
	ctx context.Context,
	userID string,
	file multipart.File,
	header *multipart.FileHeader,
) (*models.Invoice, error) {
	s.logger.Info("Received invoice upload",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
		logger.String("user_id", userID),
	)

	if err := s.validateFile(header); err != nil {
		return nil, err
	}

	invoiceID := uuid.New().String()
	taskID := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(header.Filename))

	localPath, err := s.saveLocal(file, invoiceID+ext)
	if err != nil {
		return nil, err
	}

	s.archiveCopy(ctx, localPath, fmt.Sprintf("invoices/%s/%s%s", userID, invoiceID, ext))

	now := time.Now().UTC()
	inv := &models.Invoice{
		ID:               invoiceID,
		UserID:           userID,
		TaskID:           taskID,
		OriginalFilename: header.Filename,
		FileType:         ext,
		FileSize:         header.Size,
		FilePath:         localPath,
		Status:           models.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.invoices.Insert(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invoice record: %w", err)
	}

	req := task.Request{
		InvoiceID:   invoiceID,
		FilePath:    localPath,
		ContentType: header.Header.Get("Content-Type"),
	}

	if s.queue != nil {
		if err := s.enqueue(ctx, taskID, req); err != nil {
			return nil, err
		}
	} else {
		s.runInProcess(req, taskID)
	}

	return inv, nil
}

// ProcessBatch fans the files out concurrently. A failed file does not
// stop the others; the first error is reported alongside the accepted
// records.
func (s *Service) ProcessBatch(ctx context.Context, userID string, files []*multipart.FileHeader) ([]*models.Invoice, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files in batch")
	}
	if len(files) > s.config.BatchLimit {
		return nil, fmt.Errorf("batch size %d exceeds limit of %d", len(files), s.config.BatchLimit)
	}

	invoices := make([]*models.Invoice, 0, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)

	for _, header := range files {
		header := header
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			inv, err := s.ProcessFile(ctx, userID, file, header)
			if err != nil {
				return fmt.Errorf("failed to accept file %s: %w", header.Filename, err)
			}

			mu.Lock()
			invoices = append(invoices, inv)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return invoices, err
	}

	return invoices, nil
}

func (s *Service) GetInvoice(ctx context.Context, userID, id string) (*models.Invoice, error) {
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, store.ErrNotFound
	}
	return inv, nil
}

func (s *Service) GetByTaskID(ctx context.Context, userID, taskID string) (*models.Invoice, error) {
	inv, err := s.invoices.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, store.ErrNotFound
	}
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, userID string) ([]*models.Invoice, error) {
	return s.invoices.ListByUser(ctx, userID)
}

// GetTaskStatus reports queue-level progress. Without a queue the record
// itself is the source of truth.
func (s *Service) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	if s.queue != nil {
		return s.queue.GetTaskStatus(ctx, taskID)
	}

	inv, err := s.invoices.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return &queue.TaskStatus{
		TaskID:    taskID,
		Status:    string(inv.Status),
		Error:     inv.ErrorMessage,
		StartedAt: inv.CreatedAt,
	}, nil
}

func (s *Service) CancelTask(ctx context.Context, taskID string) error {
	if s.queue == nil {
		return fmt.Errorf("task cancellation requires the queue")
	}
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("Task cancelled", logger.String("task_id", taskID))
	return nil
}

// CleanupFiles removes archived and local files older than the retention
// period.
func (s *Service) CleanupFiles(ctx context.Context) error {
	threshold := time.Now().Add(-s.config.RetentionPeriod)

	if s.archive != nil {
		if err := s.archive.CleanupBefore(ctx, threshold); err != nil {
			return fmt.Errorf("failed to cleanup archive: %w", err)
		}
	}

	entries, err := os.ReadDir(s.config.UploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read upload dir: %w", err)
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(threshold) {
			_ = os.Remove(filepath.Join(s.config.UploadDir, entry.Name()))
		}
	}

	s.logger.Info("Completed file cleanup", logger.Time("threshold", threshold))
	return nil
}

func (s *Service) enqueue(ctx context.Context, taskID string, req task.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	qt := &queue.Task{
		ID:        taskID,
		Type:      queue.TaskTypeInvoiceProcess,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	if err := s.queue.Enqueue(ctx, qt); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	initial := &queue.TaskStatus{
		TaskID:    taskID,
		Status:    "pending",
		StartedAt: time.Now(),
	}
	if err := s.queue.SaveFinalStatus(ctx, initial); err != nil {
		s.logger.Warn("Failed to save initial task status",
			logger.String("task_id", taskID),
			logger.Error(err),
		)
	}

	return nil
}

// runInProcess executes the pipeline on a goroutine detached from the
// request. The timeout bounds the whole attempt; a timed-out invoice is
// marked failed, never retried.
func (s *Service) runInProcess(req task.Request, taskID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ProcessTimeout)
		defer cancel()

		started := time.Now()
		if _, err := s.processor.Process(ctx, req); err != nil {
			s.logger.Error("In-process invoice task failed",
				logger.String("invoice_id", req.InvoiceID),
				logger.String("task_id", taskID),
				logger.Error(err),
			)
			s.processor.Fail(req.InvoiceID, err.Error(), started)
		}
	}()
}

func (s *Service) saveLocal(file multipart.File, name string) (string, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(s.config.UploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return path, nil
}

// archiveCopy stores the original in object storage. Best effort: the
// pipeline reads the local copy, so archival failure is only logged.
func (s *Service) archiveCopy(ctx context.Context, localPath, key string) {
	if s.archive == nil {
		return
	}

	f, err := os.Open(localPath)
	if err != nil {
		s.logger.Warn("Failed to open file for archival", logger.Error(err))
		return
	}
	defer f.Close()

	if _, err := s.archive.Store(ctx, f, key); err != nil {
		s.logger.Warn("Failed to archive file",
			logger.String("key", key),
			logger.Error(err),
		)
	}
}

func (s *Service) validateFile(header *multipart.FileHeader) error {
	if header.Size > s.config.MaxFileSize {
		return fmt.Errorf("file size exceeds maximum limit of %d bytes", s.config.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	for _, t := range s.config.AllowedTypes {
		if t == ext {
			return nil
		}
	}
	return fmt.Errorf("unsupported file type: %s", ext)
}
