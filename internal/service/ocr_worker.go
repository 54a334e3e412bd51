package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"
	"gestor-financiero/internal/models"
	"gestor-financiero/internal/repository"
	"gestor-financiero/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OCRExtractor is the external OCR capability.
type OCRExtractor interface {
	Extract(ctx context.Context, filename, mimetype string, data []byte) (*dto.OCRResponse, error)
}

// BlobFetcher reads stored documents back for reprocessing.
type BlobFetcher interface {
	FetchStream(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error)
}

// OCRTask carries either the uploaded bytes or the key to fetch them from.
type OCRTask struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID
	Filename   string
	Mimetype   string
	ObjectKey  string
	Data       []byte
}

// TaskResult is published for every finished task.
type TaskResult struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID
	Status     models.DocumentStatus
	Err        error
	Duration   time.Duration
}

type OCRWorkerConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// OCRWorker runs OCR tasks on a fixed pool. Every task ends with the document
// in processed_pending_review or error_ocr.
type OCRWorker struct {
	extractor OCRExtractor
	blobs     BlobFetcher
	registry  *Registry
	results   repository.OCRResultRepository
	cfg       OCRWorkerConfig
	logger    *zap.Logger

	queue   chan OCRTask
	out     chan TaskResult
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

func NewOCRWorker(
	extractor OCRExtractor,
	blobs BlobFetcher,
	registry *Registry,
	results repository.OCRResultRepository,
	cfg OCRWorkerConfig,
	logger *zap.Logger,
) *OCRWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OCRWorker{
		extractor: extractor,
		blobs:     blobs,
		registry:  registry,
		results:   results,
		cfg:       cfg,
		logger:    logger,
		queue:     make(chan OCRTask, cfg.QueueSize),
		out:       make(chan TaskResult, cfg.QueueSize),
	}
}

// Start launches the pool. Workers exit when Stop is called.
func (w *OCRWorker) Start() {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			for task := range w.queue {
				w.publish(w.Process(context.Background(), task))
			}
			w.logger.Debug("OCR worker stopped", zap.Int("worker", id))
		}(i)
	}
	w.logger.Info("OCR worker pool started", zap.Int("workers", w.cfg.Workers), zap.Int("queue", w.cfg.QueueSize))
}

// Submit enqueues without blocking. A full queue or a stopped pool is
// reported as ErrServiceUnavailable.
func (w *OCRWorker) Submit(task OCRTask) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return fmt.Errorf("%w: ocr worker stopped", apperr.ErrServiceUnavailable)
	}
	select {
	case w.queue <- task:
		return nil
	default:
		return fmt.Errorf("%w: ocr queue is full", apperr.ErrServiceUnavailable)
	}
}

// Results delivers task outcomes. It is closed by Stop.
func (w *OCRWorker) Results() <-chan TaskResult {
	return w.out
}

// Stop drains queued tasks and waits for the workers.
func (w *OCRWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	close(w.out)
}

func (w *OCRWorker) publish(res TaskResult) {
	select {
	case w.out <- res:
	default:
		w.logger.Warn("OCR result dropped, no consumer", zap.String("document_id", res.DocumentID.String()))
	}
}

// Process runs one task to completion. It never returns with the document
// still in uploaded.
func (w *OCRWorker) Process(ctx context.Context, task OCRTask) (res TaskResult) {
	start := time.Now()
	res = TaskResult{DocumentID: task.DocumentID, UserID: task.UserID}
	log := w.logger.With(zap.String("document_id", task.DocumentID.String()))

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("%w: ocr task panicked: %v", apperr.ErrInternal, p)
			log.Error("OCR task panicked", zap.Any("panic", p))
			w.fail(task.DocumentID)
			res.Status = models.StatusErrorOCR
		}
		res.Duration = time.Since(start)
	}()

	if err := w.run(ctx, task); err != nil {
		log.Warn("OCR processing failed", zap.Error(err))
		w.fail(task.DocumentID)
		res.Status = models.StatusErrorOCR
		res.Err = err
		return res
	}

	log.Info("OCR processing completed")
	res.Status = models.StatusProcessedPendingReview
	return res
}

func (w *OCRWorker) run(ctx context.Context, task OCRTask) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	data := task.Data
	mimetype := task.Mimetype
	if data == nil {
		var err error
		data, mimetype, err = w.load(ctx, task)
		if err != nil {
			return err
		}
	}

	resp, err := w.extractor.Extract(ctx, task.Filename, mimetype, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: ocr call exceeded %s", apperr.ErrUpstreamTimeout, w.cfg.Timeout)
		}
		return fmt.Errorf("ocr call failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("%w: empty ocr response", apperr.ErrInternal)
	}
	if resp.ExtractedData.Error != "" {
		return fmt.Errorf("%w: ocr reported: %s", apperr.ErrInternal, resp.ExtractedData.Error)
	}

	confidence := resp.Confidence
	if confidence == 0 {
		confidence = resp.ExtractedData.Confidence
	}

	result := &models.OCRResult{
		ID:            uuid.New(),
		DocumentID:    task.DocumentID,
		FullText:      sanitizeUTF8(resp.Text),
		ExtractedData: resp.ExtractedData,
		Confidence:    confidence,
		CreatedAt:     time.Now().UTC(),
	}
	if err := w.results.Create(ctx, result); err != nil {
		return fmt.Errorf("failed to store ocr result: %w", err)
	}

	if err := w.registry.MarkOcrComplete(ctx, task.DocumentID); err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}
	return nil
}

func (w *OCRWorker) load(ctx context.Context, task OCRTask) ([]byte, string, error) {
	if w.blobs == nil || task.ObjectKey == "" {
		return nil, "", fmt.Errorf("%w: no document content to process", apperr.ErrInvalidInput)
	}
	body, meta, err := w.blobs.FetchStream(ctx, task.ObjectKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch document: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}
	mimetype := task.Mimetype
	if mimetype == "" && meta != nil {
		mimetype = meta.ContentType
	}
	return data, mimetype, nil
}

// fail uses its own context: the task context may be the one that expired.
func (w *OCRWorker) fail(documentID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	w.registry.MarkOcrFailed(ctx, documentID)
}
